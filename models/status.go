package models

import "fmt"

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusPreparing OrderStatus = "preparing"
	OrderStatusReady     OrderStatus = "ready"
	OrderStatusPickedUp  OrderStatus = "picked_up"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// OrderStatuses lists every order status in lifecycle order.
var OrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusPreparing,
	OrderStatusReady,
	OrderStatusPickedUp,
	OrderStatusDelivered,
	OrderStatusCompleted,
	OrderStatusCancelled,
}

// orderTransitions holds the forward edges only. Cancellation is added for
// every non-terminal state in init.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:   {OrderStatusConfirmed},
	OrderStatusConfirmed: {OrderStatusPreparing},
	OrderStatusPreparing: {OrderStatusReady},
	OrderStatusReady:     {OrderStatusPickedUp, OrderStatusDelivered},
	OrderStatusPickedUp:  {OrderStatusCompleted},
	OrderStatusDelivered: {OrderStatusCompleted},
}

func (s OrderStatus) Valid() bool {
	for _, known := range OrderStatuses {
		if s == known {
			return true
		}
	}
	return false
}

func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// CanTransitionTo reports whether next is directly reachable from s.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	return contains(orderTransitions[s], next)
}

// Next returns the statuses directly reachable from s.
func (s OrderStatus) Next() []OrderStatus {
	out := make([]OrderStatus, len(orderTransitions[s]))
	copy(out, orderTransitions[s])
	return out
}

type RequestStatus string

const (
	RequestStatusPending   RequestStatus = "pending"
	RequestStatusApproved  RequestStatus = "approved"
	RequestStatusSeated    RequestStatus = "seated"
	RequestStatusCompleted RequestStatus = "completed"
	RequestStatusRejected  RequestStatus = "rejected"
)

var RequestStatuses = []RequestStatus{
	RequestStatusPending,
	RequestStatusApproved,
	RequestStatusSeated,
	RequestStatusCompleted,
	RequestStatusRejected,
}

var requestTransitions = map[RequestStatus][]RequestStatus{
	RequestStatusPending:  {RequestStatusApproved, RequestStatusRejected},
	RequestStatusApproved: {RequestStatusSeated, RequestStatusCompleted},
	RequestStatusSeated:   {RequestStatusCompleted},
}

func (s RequestStatus) Valid() bool {
	for _, known := range RequestStatuses {
		if s == known {
			return true
		}
	}
	return false
}

func (s RequestStatus) Terminal() bool {
	return s == RequestStatusCompleted || s == RequestStatusRejected
}

func (s RequestStatus) CanTransitionTo(next RequestStatus) bool {
	return contains(requestTransitions[s], next)
}

// HoldsTable reports whether a dine-in request in this status occupies its table.
func (s RequestStatus) HoldsTable() bool {
	return s == RequestStatusApproved || s == RequestStatusSeated
}

// From returns every status that may move directly to s.
func (s RequestStatus) From() []RequestStatus {
	var out []RequestStatus
	for _, from := range RequestStatuses {
		if from.CanTransitionTo(s) {
			out = append(out, from)
		}
	}
	return out
}

func init() {
	for _, s := range OrderStatuses {
		if !s.Terminal() {
			orderTransitions[s] = append(orderTransitions[s], OrderStatusCancelled)
		}
	}
	if err := validateGraph(OrderStatuses, orderTransitions, OrderStatus.Terminal); err != nil {
		panic(err)
	}
	if err := validateGraph(RequestStatuses, requestTransitions, RequestStatus.Terminal); err != nil {
		panic(err)
	}
}

// validateGraph checks that every edge joins known states, terminal states
// have no outgoing edges, and every non-terminal state can move somewhere.
func validateGraph[S ~string](states []S, edges map[S][]S, terminal func(S) bool) error {
	known := make(map[S]bool, len(states))
	for _, s := range states {
		known[s] = true
	}
	for from, targets := range edges {
		if !known[from] {
			return fmt.Errorf("transition table: unknown source state %q", from)
		}
		if terminal(from) && len(targets) > 0 {
			return fmt.Errorf("transition table: terminal state %q has outgoing edges", from)
		}
		for _, to := range targets {
			if !known[to] {
				return fmt.Errorf("transition table: unknown target state %q from %q", to, from)
			}
			if to == from {
				return fmt.Errorf("transition table: self edge on %q", from)
			}
		}
	}
	for _, s := range states {
		if !terminal(s) && len(edges[s]) == 0 {
			return fmt.Errorf("transition table: non-terminal state %q is a dead end", s)
		}
	}
	return nil
}

func contains[S comparable](list []S, v S) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
