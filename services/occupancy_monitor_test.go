package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeremiapane/table-orders/events"
	"github.com/yeremiapane/table-orders/services"
)

func TestOccupancyMonitorFlagsPersistentMismatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	healthy := f.createTable(t, "warung-1", 1, 4)
	stuck := f.createTable(t, "warung-1", 2, 4)
	other := f.createTable(t, "warung-2", 1, 2)

	_, err := f.saga.CreateOrder(ctx, dineInCart("warung-1", healthy.ID))
	require.NoError(t, err)
	// occupied with nothing bound to it
	require.NoError(t, f.registry.Reserve(ctx, stuck.ID))
	require.NoError(t, f.registry.Reserve(ctx, other.ID))

	monitor := services.NewOccupancyMonitor(f.registry)
	assert.Equal(t, 0, monitor.Sweep(ctx), "first sighting is not flagged")
	assert.Equal(t, 2, monitor.Sweep(ctx))

	assert.True(t, f.table(t, stuck.ID).NeedsAttention)
	assert.True(t, f.table(t, other.ID).NeedsAttention)
	assert.False(t, f.table(t, healthy.ID).NeedsAttention)
	assert.Equal(t, 2, f.recorder.Count(events.TableFlagged))

	// already flagged tables are not flagged again
	assert.Equal(t, 0, monitor.Sweep(ctx))
}

func TestOccupancyMonitorForgetsTransientMismatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	table := f.createTable(t, "warung-1", 1, 4)

	monitor := services.NewOccupancyMonitor(f.registry)
	require.NoError(t, f.registry.Reserve(ctx, table.ID))
	assert.Equal(t, 0, monitor.Sweep(ctx))

	require.NoError(t, f.registry.Release(ctx, table.ID))
	assert.Equal(t, 0, monitor.Sweep(ctx))

	require.NoError(t, f.registry.Reserve(ctx, table.ID))
	assert.Equal(t, 0, monitor.Sweep(ctx))
	assert.False(t, f.table(t, table.ID).NeedsAttention)
}
