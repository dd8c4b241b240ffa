package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"allergystats/internal/feeds/models"
	"allergystats/pkg/platform/sentinel"
)

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Minute)
	snap := &models.Snapshot{Population: 42, AllergyNames: []string{"pollen"}}

	_, err := c.Get(ctx, "feeds")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	require.NoError(t, c.Set(ctx, "feeds", snap, time.Minute))
	got, err := c.Get(ctx, "feeds")
	require.NoError(t, err)
	assert.Same(t, snap, got)

	require.NoError(t, c.Set(ctx, "short", snap, time.Millisecond))
	time.Sleep(5 * time.Millisecond)
	_, err = c.Get(ctx, "short")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}
