package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/astro-viewing-conditions/internal/conditions"
	"github.com/i474232898/astro-viewing-conditions/internal/geo"
	"github.com/i474232898/astro-viewing-conditions/internal/weather"
)

var (
	reykjavik = weather.Location{Name: "Reykjavik", Coordinate: geo.Coordinate{Latitude: 64.1466, Longitude: -21.9426}}
	tucson    = weather.Location{Name: "Tucson", Coordinate: geo.Coordinate{Latitude: 32.2226, Longitude: -110.9747}}
	base      = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
)

func snapshotAt(loc weather.Location, t time.Time) conditions.ViewingConditions {
	return conditions.ViewingConditions{FetchedAt: t, Location: loc, Provider: "test", TimeZone: "UTC"}
}

func TestMemoryStoreLatestAndRange(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(10, 0)

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Save(ctx, snapshotAt(reykjavik, base.Add(time.Duration(i)*time.Hour))))
	}
	require.NoError(t, s.Save(ctx, snapshotAt(tucson, base)))

	latest, err := s.Latest(ctx, reykjavik)
	require.NoError(t, err)
	assert.True(t, latest.FetchedAt.Equal(base.Add(2*time.Hour)))

	got, err := s.Range(ctx, reykjavik, base, base.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].FetchedAt.Equal(base))

	_, err = s.Range(ctx, reykjavik, base.Add(5*time.Hour), base.Add(6*time.Hour))
	assert.True(t, errors.Is(err, ErrNotFound))

	other, err := s.Latest(ctx, tucson)
	require.NoError(t, err)
	assert.Equal(t, tucson.Key(), other.Location.Key())
}

func TestMemoryStoreNotFound(t *testing.T) {
	s := NewMemoryStore(0, 0)
	_, err := s.Latest(context.Background(), tucson)
	assert.ErrorIs(t, err, conditions.ErrNotFound)
}

func TestMemoryStoreOutOfOrderSave(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0, 0)

	require.NoError(t, s.Save(ctx, snapshotAt(tucson, base.Add(time.Hour))))
	require.NoError(t, s.Save(ctx, snapshotAt(tucson, base)))

	latest, err := s.Latest(ctx, tucson)
	require.NoError(t, err)
	assert.True(t, latest.FetchedAt.Equal(base.Add(time.Hour)))
}

func TestMemoryStoreRetentionByCount(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(2, 0)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Save(ctx, snapshotAt(tucson, base.Add(time.Duration(i)*time.Minute))))
	}

	got, err := s.Range(ctx, tucson, base, base.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].FetchedAt.Equal(base.Add(3*time.Minute)))
}

func TestMemoryStoreRetentionByAgeKeepsNewest(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0, time.Hour)
	s.now = func() time.Time { return base.Add(48 * time.Hour) }

	require.NoError(t, s.Save(ctx, snapshotAt(tucson, base)))
	require.NoError(t, s.Save(ctx, snapshotAt(tucson, base.Add(time.Minute))))

	got, err := s.Range(ctx, tucson, base.Add(-time.Hour), base.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].FetchedAt.Equal(base.Add(time.Minute)))
}
