// Package astro computes sun and moon events for an observer.
//
// Positions and threshold crossings come from suncalc. This package adds
// the polar sentinel policy: a band the sun never crosses on a date is
// reported as spanning solar midnight to solar midnight (always above) or
// collapsed onto solar noon (never reached), and every inner band is kept
// inside the one around it. Lunar altitude is corrected for parallax so it
// is topocentric.
//
// Every function is pure: the same coordinate and instant always produce
// the same result, and nothing is cached between calls.
package astro
