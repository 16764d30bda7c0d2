package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderTransitions(t *testing.T) {
	assert.True(t, OrderStatusPending.CanTransitionTo(OrderStatusConfirmed))
	assert.True(t, OrderStatusReady.CanTransitionTo(OrderStatusPickedUp))
	assert.True(t, OrderStatusReady.CanTransitionTo(OrderStatusDelivered))
	assert.False(t, OrderStatusPending.CanTransitionTo(OrderStatusReady))
	assert.False(t, OrderStatusPreparing.CanTransitionTo(OrderStatusConfirmed))

	for _, s := range OrderStatuses {
		if s.Terminal() {
			assert.Empty(t, s.Next(), "%s is terminal", s)
			continue
		}
		assert.True(t, s.CanTransitionTo(OrderStatusCancelled), "%s -> cancelled", s)
	}
}

func TestRequestTransitions(t *testing.T) {
	assert.True(t, RequestStatusPending.CanTransitionTo(RequestStatusRejected))
	assert.False(t, RequestStatusApproved.CanTransitionTo(RequestStatusRejected))
	assert.ElementsMatch(t, []RequestStatus{RequestStatusApproved, RequestStatusSeated}, RequestStatusCompleted.From())
	assert.True(t, RequestStatusSeated.HoldsTable())
	assert.False(t, RequestStatusPending.HoldsTable())
}

func TestValidateGraph(t *testing.T) {
	states := []OrderStatus{"a", "b", "z"}
	terminal := func(s OrderStatus) bool { return s == "z" }

	assert.NoError(t, validateGraph(states, map[OrderStatus][]OrderStatus{"a": {"b"}, "b": {"z"}}, terminal))
	assert.Error(t, validateGraph(states, map[OrderStatus][]OrderStatus{"a": {"b"}}, terminal), "dead end")
	assert.Error(t, validateGraph(states, map[OrderStatus][]OrderStatus{"a": {"b"}, "b": {"z"}, "z": {"a"}}, terminal), "terminal edge")
	assert.Error(t, validateGraph(states, map[OrderStatus][]OrderStatus{"a": {"q"}, "b": {"z"}}, terminal), "unknown target")
	assert.Error(t, validateGraph(states, map[OrderStatus][]OrderStatus{"a": {"a"}, "b": {"z"}}, terminal), "self edge")
}
