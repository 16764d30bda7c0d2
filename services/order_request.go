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

type CreateRequestInput struct {
	RestaurantID  string             `json:"restaurant_id"`
	CustomerName  string             `json:"customer_name"`
	CustomerPhone string             `json:"customer_phone"`
	RequestType   models.RequestType `json:"request_type"`
	TableID       *uint              `json:"table_id"`
	GuestCount    int                `json:"guest_count"`
	Notes         string             `json:"notes"`
}

func (in *CreateRequestInput) Validate() error {
	switch {
	case strings.TrimSpace(in.RestaurantID) == "":
		return validationErr("restaurant_id is required")
	case strings.TrimSpace(in.CustomerName) == "":
		return validationErr("customer_name is required")
	case strings.TrimSpace(in.CustomerPhone) == "":
		return validationErr("customer_phone is required")
	case !in.RequestType.Valid():
		return validationErr("unknown request_type %q", in.RequestType)
	case in.GuestCount < 1:
		return validationErr("guest_count must be at least 1")
	case in.RequestType == models.RequestTypeTakeaway && in.TableID != nil:
		return validationErr("table_id is only allowed on dine_in requests")
	}
	return nil
}

// OrderRequestWorkflow runs the reservation lifecycle
// pending -> approved -> seated -> completed, or pending -> rejected.
// Approval of a dine-in request reserves a table; completion releases it.
type OrderRequestWorkflow struct {
	stores    Stores
	tx        Transactor
	registry  *TableRegistry
	publisher events.Publisher
	now       func() time.Time
}

// NewOrderRequestWorkflow builds the workflow. tx may be nil, in which case
// approval runs as independent writes and undoes the reservation on failure.
func NewOrderRequestWorkflow(stores Stores, tx Transactor, registry *TableRegistry, publisher events.Publisher) *OrderRequestWorkflow {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &OrderRequestWorkflow{
		stores:    stores,
		tx:        tx,
		registry:  registry,
		publisher: publisher,
		now:       time.Now,
	}
}

func (w *OrderRequestWorkflow) Create(ctx context.Context, in CreateRequestInput) (*models.OrderRequest, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	in.RestaurantID = strings.TrimSpace(in.RestaurantID)
	if in.TableID != nil {
		if err := w.checkTableRestaurant(ctx, *in.TableID, in.RestaurantID); err != nil {
			return nil, err
		}
	}

	now := w.now()
	req := &models.OrderRequest{
		RestaurantID:  in.RestaurantID,
		CustomerName:  strings.TrimSpace(in.CustomerName),
		CustomerPhone: strings.TrimSpace(in.CustomerPhone),
		RequestType:   in.RequestType,
		TableID:       in.TableID,
		GuestCount:    in.GuestCount,
		Status:        models.RequestStatusPending,
		Notes:         in.Notes,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := w.stores.Requests.Create(ctx, req); err != nil {
		return nil, err
	}
	utils.InfoLogger.WithFields(logrus.Fields{
		"request_id":    req.ID,
		"restaurant_id": req.RestaurantID,
		"request_type":  req.RequestType,
		"guests":        req.GuestCount,
	}).Info("order request created")
	w.publish(ctx, events.RequestCreated, req, nil)
	return req, nil
}

func (w *OrderRequestWorkflow) Get(ctx context.Context, id uint) (*models.OrderRequest, error) {
	return w.stores.Requests.FindByID(ctx, id)
}

func (w *OrderRequestWorkflow) List(ctx context.Context, restaurantID string, status *models.RequestStatus) ([]models.OrderRequest, error) {
	if status != nil && !status.Valid() {
		return nil, validationErr("unknown request status %q", *status)
	}
	return w.stores.Requests.List(ctx, strings.TrimSpace(restaurantID), status)
}

// Approve accepts a pending request. For dine-in requests a table is reserved
// first: tableID when given, otherwise the request's preferred table, otherwise
// the smallest free table that seats the party.
func (w *OrderRequestWorkflow) Approve(ctx context.Context, id uint, approverID *uint, tableID *uint) (*models.OrderRequest, error) {
	req, err := w.stores.Requests.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Status != models.RequestStatusPending {
		return nil, conflictErr("request %d is %s, only pending requests can be approved", req.ID, req.Status)
	}
	if req.RequestType == models.RequestTypeTakeaway && tableID != nil {
		return nil, validationErr("takeaway requests do not take a table")
	}
	if tableID != nil {
		if err := w.checkTableRestaurant(ctx, *tableID, req.RestaurantID); err != nil {
			return nil, err
		}
	}

	if w.tx != nil {
		buf := &eventBuffer{}
		err = w.tx.WithinTransaction(ctx, func(tx Stores) error {
			return w.approve(ctx, tx, w.registry.bind(tx, buf), req, approverID, tableID, nil)
		})
		if err == nil {
			buf.flush(ctx, w.publisher)
		}
	} else {
		comp := newCompensator("approve_request")
		if err = w.approve(ctx, w.stores, w.registry, req, approverID, tableID, comp); err != nil {
			err = comp.rollback(ctx, err)
		}
	}
	if err != nil {
		utils.InfoLogger.WithField("request_id", req.ID).Warnf("order request approval failed: %v", err)
		return nil, err
	}

	approved, err := w.stores.Requests.FindByID(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	utils.InfoLogger.WithFields(logrus.Fields{
		"request_id": approved.ID,
		"table_id":   approved.TableID,
	}).Info("order request approved")
	w.publish(ctx, events.RequestApproved, approved, nil)
	return approved, nil
}

func (w *OrderRequestWorkflow) approve(ctx context.Context, stores Stores, registry *TableRegistry, req *models.OrderRequest, approverID *uint, explicit *uint, comp *compensator) error {
	now := w.now()
	fields := map[string]interface{}{
		"status":      string(models.RequestStatusApproved),
		"approved_by": approverID,
		"approved_at": now,
		"updated_at":  now,
	}

	if req.RequestType == models.RequestTypeDineIn {
		table, err := w.pickTable(ctx, registry, req, explicit)
		if err != nil {
			return err
		}
		tableID := table.ID
		comp.push("release table", func(ctx context.Context) error {
			return registry.releaseOrFlag(ctx, tableID, fmt.Sprintf("approval of request %d failed and the reservation could not be released", req.ID))
		})
		fields["table_id"] = tableID
	}

	changed, err := stores.Requests.UpdateStatus(ctx, req.ID, []models.RequestStatus{models.RequestStatusPending}, fields)
	if err != nil {
		return fmt.Errorf("update request %d status: %w", req.ID, err)
	}
	if !changed {
		return conflictErr("request %d was resolved concurrently", req.ID)
	}
	return nil
}

// pickTable reserves the table a dine-in request will hold.
func (w *OrderRequestWorkflow) pickTable(ctx context.Context, registry *TableRegistry, req *models.OrderRequest, explicit *uint) (*models.Table, error) {
	if explicit != nil {
		if err := registry.Reserve(ctx, *explicit); err != nil {
			if errors.Is(err, ErrConflict) {
				return nil, fmt.Errorf("%w: table %d", ErrTableUnavailable, *explicit)
			}
			return nil, err
		}
		return registry.GetTable(ctx, *explicit)
	}

	if req.TableID != nil {
		err := registry.Reserve(ctx, *req.TableID)
		if err == nil {
			return registry.GetTable(ctx, *req.TableID)
		}
		if !errors.Is(err, ErrConflict) && !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		utils.InfoLogger.WithFields(logrus.Fields{
			"request_id": req.ID,
			"table_id":   *req.TableID,
		}).Info("preferred table unavailable, selecting another")
	}
	return registry.reserveFirstFitting(ctx, req.RestaurantID, req.GuestCount)
}

// Seat marks the party of an approved dine-in request as seated.
func (w *OrderRequestWorkflow) Seat(ctx context.Context, id uint) (*models.OrderRequest, error) {
	req, err := w.stores.Requests.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.RequestType != models.RequestTypeDineIn {
		return nil, validationErr("only dine_in requests can be seated")
	}
	if !req.Status.CanTransitionTo(models.RequestStatusSeated) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, req.Status, models.RequestStatusSeated)
	}

	now := w.now()
	changed, err := w.stores.Requests.UpdateStatus(ctx, req.ID, []models.RequestStatus{req.Status}, map[string]interface{}{
		"status":     string(models.RequestStatusSeated),
		"seated_at":  now,
		"updated_at": now,
	})
	if err != nil {
		return nil, err
	}
	if !changed {
		return nil, conflictErr("request %d changed concurrently", req.ID)
	}
	seated, err := w.stores.Requests.FindByID(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	utils.InfoLogger.WithField("request_id", seated.ID).Info("order request seated")
	w.publish(ctx, events.RequestSeated, seated, nil)
	return seated, nil
}

// Reject declines a pending request. A reason is mandatory.
func (w *OrderRequestWorkflow) Reject(ctx context.Context, id uint, reason string) (*models.OrderRequest, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, validationErr("a rejection reason is required")
	}
	req, err := w.stores.Requests.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Status != models.RequestStatusPending {
		return nil, conflictErr("request %d is %s, only pending requests can be rejected", req.ID, req.Status)
	}

	now := w.now()
	changed, err := w.stores.Requests.UpdateStatus(ctx, req.ID, []models.RequestStatus{models.RequestStatusPending}, map[string]interface{}{
		"status":           string(models.RequestStatusRejected),
		"rejection_reason": reason,
		"rejected_at":      now,
		"updated_at":       now,
	})
	if err != nil {
		return nil, err
	}
	if !changed {
		return nil, conflictErr("request %d was resolved concurrently", req.ID)
	}
	rejected, err := w.stores.Requests.FindByID(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	utils.InfoLogger.WithFields(logrus.Fields{
		"request_id": rejected.ID,
		"reason":     reason,
	}).Info("order request rejected")
	w.publish(ctx, events.RequestRejected, rejected, map[string]string{"reason": reason})
	return rejected, nil
}

// Complete closes an approved or seated request and releases its table
// exactly once. Completing an already completed request retries a release
// that failed earlier and otherwise does nothing.
func (w *OrderRequestWorkflow) Complete(ctx context.Context, id uint) (*models.OrderRequest, error) {
	req, err := w.stores.Requests.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Status == models.RequestStatusCompleted {
		if err := w.releaseTable(ctx, req); err != nil {
			return req, err
		}
		return w.stores.Requests.FindByID(ctx, req.ID)
	}
	if !req.Status.CanTransitionTo(models.RequestStatusCompleted) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, req.Status, models.RequestStatusCompleted)
	}

	now := w.now()
	fields := map[string]interface{}{
		"status":       string(models.RequestStatusCompleted),
		"completed_at": now,
		"updated_at":   now,
	}
	claim := req.BindsTable() && req.TableReleasedAt == nil
	if claim {
		fields["table_released_at"] = now
	}
	changed, err := w.stores.Requests.UpdateStatus(ctx, req.ID, []models.RequestStatus{req.Status}, fields)
	if err != nil {
		return nil, err
	}
	if !changed {
		return nil, conflictErr("request %d changed concurrently", req.ID)
	}

	completed, err := w.stores.Requests.FindByID(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	utils.InfoLogger.WithField("request_id", completed.ID).Info("order request completed")
	w.publish(ctx, events.RequestCompleted, completed, nil)

	if claim {
		if err := w.releaseClaimed(ctx, completed); err != nil {
			return completed, err
		}
	}
	return completed, nil
}

func (w *OrderRequestWorkflow) releaseTable(ctx context.Context, req *models.OrderRequest) error {
	if !req.BindsTable() || req.TableReleasedAt != nil {
		return nil
	}
	claimed, err := w.stores.Requests.ClaimTableRelease(ctx, req.ID, w.now())
	if err != nil {
		return fmt.Errorf("claim table release for request %d: %w", req.ID, err)
	}
	if !claimed {
		return nil
	}
	return w.releaseClaimed(ctx, req)
}

func (w *OrderRequestWorkflow) releaseClaimed(ctx context.Context, req *models.OrderRequest) error {
	tableID := *req.TableID
	err := w.registry.Release(ctx, tableID)
	if err == nil {
		return nil
	}

	fields := logrus.Fields{"request_id": req.ID, "table_id": tableID}
	if uerr := w.stores.Requests.UnclaimTableRelease(context.WithoutCancel(ctx), req.ID); uerr != nil {
		utils.ErrorLogger.WithFields(fields).Errorf("failed to revert table release claim: %v", uerr)
	}
	w.registry.Flag(ctx, tableID, fmt.Sprintf("request %d completed but the table could not be released", req.ID))
	utils.ErrorLogger.WithFields(fields).Errorf("table release failed: %v", err)
	return fmt.Errorf("%w: request %d completed, table %d not released: %v", ErrPartialFailure, req.ID, tableID, err)
}

func (w *OrderRequestWorkflow) checkTableRestaurant(ctx context.Context, tableID uint, restaurantID string) error {
	table, err := w.registry.GetTable(ctx, tableID)
	if err != nil {
		return err
	}
	if table.RestaurantID != restaurantID {
		return notFoundErr("table %d in restaurant %s", tableID, restaurantID)
	}
	return nil
}

func (w *OrderRequestWorkflow) publish(ctx context.Context, eventType string, req *models.OrderRequest, data interface{}) {
	if data == nil {
		data = req
	}
	w.publisher.Publish(ctx, events.Event{
		Type:         eventType,
		RestaurantID: req.RestaurantID,
		RequestID:    events.UintPtr(req.ID),
		TableID:      req.TableID,
		Status:       string(req.Status),
		OccurredAt:   w.now().UTC(),
		Data:         data,
	})
}
