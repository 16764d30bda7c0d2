package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yeremiapane/table-orders/events"
	"github.com/yeremiapane/table-orders/models"
	"github.com/yeremiapane/table-orders/utils"
)

type TransitionOptions struct {
	// Reason is stored as the cancel reason when the target is cancelled.
	Reason  string
	ActorID *uint
}

// OrderStatusMachine moves orders through their lifecycle and releases the
// dine-in table once the order reaches a terminal status.
type OrderStatusMachine struct {
	stores    Stores
	registry  *TableRegistry
	publisher events.Publisher
	now       func() time.Time
}

func NewOrderStatusMachine(stores Stores, registry *TableRegistry, publisher events.Publisher) *OrderStatusMachine {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &OrderStatusMachine{
		stores:    stores,
		registry:  registry,
		publisher: publisher,
		now:       time.Now,
	}
}

func (m *OrderStatusMachine) GetOrder(ctx context.Context, id uint) (*models.Order, error) {
	return m.stores.Orders.FindByID(ctx, id)
}

func (m *OrderStatusMachine) ListOrders(ctx context.Context, restaurantID string, statuses []models.OrderStatus) ([]models.Order, error) {
	for _, s := range statuses {
		if !s.Valid() {
			return nil, validationErr("unknown order status %q", s)
		}
	}
	return m.stores.Orders.List(ctx, OrderFilter{
		RestaurantID: strings.TrimSpace(restaurantID),
		Statuses:     statuses,
	})
}

// Transition moves an order to target. Only edges of the order status graph
// are accepted. Re-applying the current terminal status succeeds and retries
// a table release that failed earlier.
func (m *OrderStatusMachine) Transition(ctx context.Context, orderID uint, target models.OrderStatus, opts TransitionOptions) (*models.Order, error) {
	if !target.Valid() {
		return nil, validationErr("unknown order status %q", target)
	}
	if target == models.OrderStatusCancelled && strings.TrimSpace(opts.Reason) == "" {
		opts.Reason = "cancelled"
	}

	order, err := m.stores.Orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	log := utils.InfoLogger.WithFields(logrus.Fields{
		"order_id": order.ID,
		"from":     order.Status,
		"to":       target,
	})

	if order.Status == target && target.Terminal() {
		log.Info("terminal status re-applied")
		if err := m.releaseTable(ctx, order); err != nil {
			return order, err
		}
		return m.stores.Orders.FindByID(ctx, orderID)
	}
	if !order.Status.CanTransitionTo(target) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, target)
	}

	now := m.now()
	fields := stageFields(target, now, opts)
	// claim the release in the same write so only one caller ever releases
	if target.Terminal() && order.BindsTable() && order.TableReleasedAt == nil {
		fields["table_released_at"] = now
	}
	changed, err := m.stores.Orders.UpdateStatus(ctx, order.ID, order.Status, fields)
	if err != nil {
		return nil, fmt.Errorf("update order %d status: %w", order.ID, err)
	}
	if !changed {
		return nil, conflictErr("order %d changed concurrently, status is no longer %s", order.ID, order.Status)
	}
	from := order.Status
	if opts.ActorID != nil {
		log = log.WithField("actor_id", *opts.ActorID)
	}
	log.Info("order status changed")

	updated, err := m.stores.Orders.FindByID(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	m.publisher.Publish(ctx, events.Event{
		Type:         events.OrderStatusChanged,
		RestaurantID: updated.RestaurantID,
		OrderID:      events.UintPtr(updated.ID),
		TableID:      updated.TableID,
		Status:       string(updated.Status),
		OccurredAt:   now.UTC(),
		Data:         map[string]string{"from": string(from), "to": string(target)},
	})

	if _, claimed := fields["table_released_at"]; claimed {
		if err := m.releaseClaimed(ctx, updated); err != nil {
			return updated, err
		}
	}
	return updated, nil
}

// releaseTable claims and performs the table release for a terminal order
// whose release has not happened yet.
func (m *OrderStatusMachine) releaseTable(ctx context.Context, order *models.Order) error {
	if !order.BindsTable() || order.TableReleasedAt != nil {
		return nil
	}
	claimed, err := m.stores.Orders.ClaimTableRelease(ctx, order.ID, m.now())
	if err != nil {
		return fmt.Errorf("claim table release for order %d: %w", order.ID, err)
	}
	if !claimed {
		return nil
	}
	return m.releaseClaimed(ctx, order)
}

func (m *OrderStatusMachine) releaseClaimed(ctx context.Context, order *models.Order) error {
	tableID := *order.TableID
	err := m.registry.Release(ctx, tableID)
	if err == nil {
		return nil
	}

	fields := logrus.Fields{"order_id": order.ID, "table_id": tableID}
	if uerr := m.stores.Orders.UnclaimTableRelease(context.WithoutCancel(ctx), order.ID); uerr != nil {
		utils.ErrorLogger.WithFields(fields).Errorf("failed to revert table release claim: %v", uerr)
	}
	m.registry.Flag(ctx, tableID, fmt.Sprintf("order %d reached %s but the table could not be released", order.ID, order.Status))
	utils.ErrorLogger.WithFields(fields).Errorf("table release failed: %v", err)

	if errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%w: order %d status committed, table %d no longer exists", ErrPartialFailure, order.ID, tableID)
	}
	return fmt.Errorf("%w: order %d status committed, table %d not released: %v", ErrPartialFailure, order.ID, tableID, err)
}

// stageFields returns the columns written together with a status change.
func stageFields(target models.OrderStatus, now time.Time, opts TransitionOptions) map[string]interface{} {
	fields := map[string]interface{}{
		"status":     string(target),
		"updated_at": now,
	}
	switch target {
	case models.OrderStatusConfirmed:
		fields["confirmed_at"] = now
	case models.OrderStatusPreparing:
		fields["preparing_at"] = now
	case models.OrderStatusReady:
		fields["actual_ready_time"] = now
	case models.OrderStatusPickedUp:
		fields["picked_up_at"] = now
	case models.OrderStatusDelivered:
		fields["delivered_at"] = now
	case models.OrderStatusCompleted:
		fields["completed_at"] = now
	case models.OrderStatusCancelled:
		fields["cancelled_at"] = now
		fields["cancel_reason"] = opts.Reason
	}
	return fields
}
