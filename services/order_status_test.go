package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeremiapane/table-orders/events"
	"github.com/yeremiapane/table-orders/models"
	"github.com/yeremiapane/table-orders/services"
)

func placeDineIn(t *testing.T, f *fixture) (*models.Order, *models.Table) {
	t.Helper()
	table := f.createTable(t, "resto-1", 1, 4)
	order, err := f.saga.CreateOrder(context.Background(), dineInCart("resto-1", table.ID))
	require.NoError(t, err)
	return order, table
}

func TestTransition_FullDineInLifecycleReleasesOnce(t *testing.T) {
	tables := &failingTables{}
	f := newFixture(t, withoutTransactions(), withStores(func(s services.Stores) services.Stores {
		tables.TableStore = s.Tables
		s.Tables = tables
		return s
	}))
	ctx := context.Background()
	order, table := placeDineIn(t, f)

	path := []models.OrderStatus{
		models.OrderStatusConfirmed,
		models.OrderStatusPreparing,
		models.OrderStatusReady,
		models.OrderStatusDelivered,
	}
	for _, status := range path {
		updated, err := f.machine.Transition(ctx, order.ID, status, services.TransitionOptions{})
		require.NoError(t, err, "to %s", status)
		assert.Equal(t, status, updated.Status)
		assert.False(t, f.table(t, table.ID).IsActive, "table stays occupied while %s", status)
	}
	assert.Zero(t, tables.releases)

	completed, err := f.machine.Transition(ctx, order.ID, models.OrderStatusCompleted, services.TransitionOptions{})
	require.NoError(t, err)
	assert.NotNil(t, completed.ConfirmedAt)
	assert.NotNil(t, completed.PreparingAt)
	assert.NotNil(t, completed.ActualReadyTime)
	assert.NotNil(t, completed.DeliveredAt)
	assert.NotNil(t, completed.CompletedAt)
	assert.NotNil(t, completed.TableReleasedAt)
	assert.True(t, f.table(t, table.ID).IsActive)
	assert.Equal(t, 1, tables.releases)

	// re-applying the terminal status is a no-op
	again, err := f.machine.Transition(ctx, order.ID, models.OrderStatusCompleted, services.TransitionOptions{})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCompleted, again.Status)
	assert.Equal(t, 1, tables.releases)
	assert.Equal(t, 5, f.recorder.Count(events.OrderStatusChanged))
}

func TestTransition_RejectsNonAdjacentTargets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order, _ := placeDineIn(t, f)

	for _, target := range []models.OrderStatus{
		models.OrderStatusReady,
		models.OrderStatusPreparing,
		models.OrderStatusCompleted,
		models.OrderStatusPending,
	} {
		_, err := f.machine.Transition(ctx, order.ID, target, services.TransitionOptions{})
		assert.ErrorIs(t, err, services.ErrInvalidTransition, "pending -> %s", target)
	}

	_, err := f.machine.Transition(ctx, order.ID, "bogus", services.TransitionOptions{})
	assert.ErrorIs(t, err, services.ErrValidation)

	_, err = f.machine.Transition(ctx, 404, models.OrderStatusConfirmed, services.TransitionOptions{})
	assert.ErrorIs(t, err, services.ErrNotFound)
}

func TestTransition_CancelFromEveryNonTerminalState(t *testing.T) {
	ctx := context.Background()
	paths := [][]models.OrderStatus{
		{},
		{models.OrderStatusConfirmed},
		{models.OrderStatusConfirmed, models.OrderStatusPreparing},
		{models.OrderStatusConfirmed, models.OrderStatusPreparing, models.OrderStatusReady},
		{models.OrderStatusConfirmed, models.OrderStatusPreparing, models.OrderStatusReady, models.OrderStatusPickedUp},
	}
	for _, path := range paths {
		f := newFixture(t)
		order, table := placeDineIn(t, f)
		for _, status := range path {
			_, err := f.machine.Transition(ctx, order.ID, status, services.TransitionOptions{})
			require.NoError(t, err)
		}

		cancelled, err := f.machine.Transition(ctx, order.ID, models.OrderStatusCancelled, services.TransitionOptions{Reason: "customer left"})
		require.NoError(t, err)
		assert.Equal(t, "customer left", cancelled.CancelReason)
		assert.NotNil(t, cancelled.CancelledAt)
		assert.True(t, f.table(t, table.ID).IsActive)

		_, err = f.machine.Transition(ctx, order.ID, models.OrderStatusConfirmed, services.TransitionOptions{})
		assert.ErrorIs(t, err, services.ErrInvalidTransition)
	}
}

func TestTransition_FailedReleaseIsFlaggedAndRetried(t *testing.T) {
	tables := &failingTables{}
	f := newFixture(t, withoutTransactions(), withStores(func(s services.Stores) services.Stores {
		tables.TableStore = s.Tables
		s.Tables = tables
		return s
	}))
	ctx := context.Background()
	order, table := placeDineIn(t, f)

	tables.failRelease = true
	updated, err := f.machine.Transition(ctx, order.ID, models.OrderStatusCancelled, services.TransitionOptions{})
	assert.ErrorIs(t, err, services.ErrPartialFailure)
	require.NotNil(t, updated)
	assert.Equal(t, models.OrderStatusCancelled, updated.Status)

	stuck := f.table(t, table.ID)
	assert.False(t, stuck.IsActive)
	assert.True(t, stuck.NeedsAttention)

	tables.failRelease = false
	_, err = f.machine.Transition(ctx, order.ID, models.OrderStatusCancelled, services.TransitionOptions{})
	require.NoError(t, err)
	assert.True(t, f.table(t, table.ID).IsActive)
	assert.Equal(t, 2, tables.releases)
}

func TestTransition_TakeawayNeverTouchesTables(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := dineInCart("resto-1", 0)
	in.OrderType = models.OrderTypeTakeaway
	in.TableID = nil
	order, err := f.saga.CreateOrder(ctx, in)
	require.NoError(t, err)

	_, err = f.machine.Transition(ctx, order.ID, models.OrderStatusCancelled, services.TransitionOptions{})
	require.NoError(t, err)
	assert.Zero(t, f.recorder.Count(events.TableReleased))
}

func TestListOrders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order, _ := placeDineIn(t, f)
	_, err := f.machine.Transition(ctx, order.ID, models.OrderStatusConfirmed, services.TransitionOptions{})
	require.NoError(t, err)

	confirmed, err := f.machine.ListOrders(ctx, "resto-1", []models.OrderStatus{models.OrderStatusConfirmed})
	require.NoError(t, err)
	assert.Len(t, confirmed, 1)

	pending, err := f.machine.ListOrders(ctx, "resto-1", []models.OrderStatus{models.OrderStatusPending})
	require.NoError(t, err)
	assert.Empty(t, pending)

	_, err = f.machine.ListOrders(ctx, "resto-1", []models.OrderStatus{"nope"})
	assert.ErrorIs(t, err, services.ErrValidation)
}
