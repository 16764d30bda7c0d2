package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeremiapane/table-orders/services"
)

func TestMemoryIdempotency(t *testing.T) {
	ctx := context.Background()
	store := services.NewMemoryIdempotency(time.Hour)

	id, err := store.Begin(ctx, "key-1")
	require.NoError(t, err)
	assert.Zero(t, id)

	_, err = store.Begin(ctx, "key-1")
	assert.ErrorIs(t, err, services.ErrConflict, "attempt still running")

	require.NoError(t, store.Complete(ctx, "key-1", 17))
	id, err = store.Begin(ctx, "key-1")
	require.NoError(t, err)
	assert.Equal(t, uint(17), id)

	_, err = store.Begin(ctx, "key-2")
	require.NoError(t, err)
	require.NoError(t, store.Abandon(ctx, "key-2"))
	id, err = store.Begin(ctx, "key-2")
	require.NoError(t, err)
	assert.Zero(t, id, "abandoned keys can be claimed again")
}
