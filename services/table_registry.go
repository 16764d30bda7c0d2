package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yeremiapane/table-orders/events"
	"github.com/yeremiapane/table-orders/models"
	"github.com/yeremiapane/table-orders/scanner"
	"github.com/yeremiapane/table-orders/utils"
)

// TableRegistry owns table occupancy. Orders and order requests only hold a
// table reference and go through Reserve/Release to change occupancy.
type TableRegistry struct {
	stores    Stores
	publisher events.Publisher
	now       func() time.Time
}

func NewTableRegistry(stores Stores, publisher events.Publisher) *TableRegistry {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &TableRegistry{
		stores:    stores,
		publisher: publisher,
		now:       time.Now,
	}
}

// bind returns a registry working on the given stores (usually a transaction)
// and publishing to the given publisher.
func (r *TableRegistry) bind(stores Stores, publisher events.Publisher) *TableRegistry {
	return &TableRegistry{stores: stores, publisher: publisher, now: r.now}
}

type CreateTableInput struct {
	RestaurantID string `json:"restaurant_id"`
	TableNumber  int    `json:"table_number"`
	Seats        int    `json:"seats"`
}

func (r *TableRegistry) CreateTable(ctx context.Context, in CreateTableInput) (*models.Table, error) {
	in.RestaurantID = strings.TrimSpace(in.RestaurantID)
	if in.RestaurantID == "" {
		return nil, validationErr("restaurant_id is required")
	}
	if in.TableNumber <= 0 {
		return nil, validationErr("table_number must be a positive integer")
	}
	if in.Seats < 0 {
		return nil, validationErr("seats must not be negative")
	}

	if existing, err := r.stores.Tables.FindByNumber(ctx, in.RestaurantID, in.TableNumber); err == nil {
		return nil, conflictErr("table %d already exists in restaurant %s (id=%d)", in.TableNumber, in.RestaurantID, existing.ID)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	table := &models.Table{
		RestaurantID: in.RestaurantID,
		TableNumber:  in.TableNumber,
		Seats:        in.Seats,
		IsActive:     true,
	}
	if err := r.stores.Tables.Create(ctx, table); err != nil {
		return nil, err
	}
	utils.InfoLogger.WithFields(logrus.Fields{
		"table_id":      table.ID,
		"restaurant_id": table.RestaurantID,
		"table_number":  table.TableNumber,
	}).Info("table created")
	return table, nil
}

func (r *TableRegistry) GetTable(ctx context.Context, id uint) (*models.Table, error) {
	return r.stores.Tables.FindByID(ctx, id)
}

// LookupTable resolves a table by restaurant and printed table number.
func (r *TableRegistry) LookupTable(ctx context.Context, restaurantID string, tableNumber int) (*models.Table, error) {
	if strings.TrimSpace(restaurantID) == "" || tableNumber <= 0 {
		return nil, validationErr("restaurant id and a positive table number are required")
	}
	return r.stores.Tables.FindByNumber(ctx, restaurantID, tableNumber)
}

func (r *TableRegistry) ListTables(ctx context.Context, restaurantID string) ([]models.Table, error) {
	return r.stores.Tables.List(ctx, restaurantID)
}

// Reserve marks a free table occupied in one conditional update. It returns
// an error wrapping ErrConflict when the table is already occupied and
// ErrNotFound when it does not exist.
func (r *TableRegistry) Reserve(ctx context.Context, id uint) error {
	changed, err := r.stores.Tables.MarkOccupied(ctx, id)
	if err != nil {
		return fmt.Errorf("reserve table %d: %w", id, err)
	}
	if !changed {
		if _, err := r.stores.Tables.FindByID(ctx, id); err != nil {
			return err
		}
		return conflictErr("table %d is already occupied", id)
	}

	utils.InfoLogger.WithField("table_id", id).Info("table reserved")
	r.publisher.Publish(ctx, events.Event{
		Type:       events.TableReserved,
		TableID:    events.UintPtr(id),
		OccurredAt: r.now().UTC(),
	})
	return nil
}

// Release marks a table available. Releasing a free table is a no-op.
func (r *TableRegistry) Release(ctx context.Context, id uint) error {
	exists, err := r.stores.Tables.MarkAvailable(ctx, id)
	if err != nil {
		return fmt.Errorf("release table %d: %w", id, err)
	}
	if !exists {
		return notFoundErr("table %d", id)
	}

	utils.InfoLogger.WithField("table_id", id).Info("table released")
	r.publisher.Publish(ctx, events.Event{
		Type:       events.TableReleased,
		TableID:    events.UintPtr(id),
		OccurredAt: r.now().UTC(),
	})
	return nil
}

// Flag records that a table's occupancy could not be restored automatically
// and needs manual correction. Flag failures are logged only.
func (r *TableRegistry) Flag(ctx context.Context, id uint, reason string) {
	now := r.now()
	if err := r.stores.Tables.Flag(ctx, id, reason, now); err != nil {
		utils.ErrorLogger.WithFields(logrus.Fields{
			"table_id": id,
			"reason":   reason,
		}).Errorf("failed to flag table: %v", err)
		return
	}
	utils.ErrorLogger.WithFields(logrus.Fields{
		"table_id": id,
		"reason":   reason,
	}).Error("table flagged for manual correction")
	r.publisher.Publish(ctx, events.Event{
		Type:       events.TableFlagged,
		TableID:    events.UintPtr(id),
		OccurredAt: now.UTC(),
		Data:       map[string]string{"reason": reason},
	})
}

// releaseOrFlag is the undo step for a reservation.
func (r *TableRegistry) releaseOrFlag(ctx context.Context, id uint, reason string) error {
	if err := r.Release(ctx, id); err != nil {
		r.Flag(ctx, id, reason)
		return err
	}
	return nil
}

// Resolve is the manual admin correction for a flagged table: it sets the
// availability explicitly and clears the flag.
func (r *TableRegistry) Resolve(ctx context.Context, id uint, available bool) (*models.Table, error) {
	if _, err := r.stores.Tables.FindByID(ctx, id); err != nil {
		return nil, err
	}
	if err := r.stores.Tables.Resolve(ctx, id, available); err != nil {
		return nil, err
	}
	table, err := r.stores.Tables.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	utils.InfoLogger.WithFields(logrus.Fields{
		"table_id":  id,
		"available": available,
	}).Info("table resolved manually")
	r.publisher.Publish(ctx, events.Event{
		Type:         events.TableResolved,
		RestaurantID: table.RestaurantID,
		TableID:      events.UintPtr(id),
		OccurredAt:   r.now().UTC(),
	})
	return table, nil
}

// QRBinding is what gets printed on a table's QR sticker.
type QRBinding struct {
	Table   *models.Table   `json:"table"`
	Token   string          `json:"token"`
	Payload scanner.Payload `json:"payload"`
	Encoded string          `json:"encoded"`
}

// BindQR issues a fresh QR token for a table and returns the scan payload.
// Re-binding replaces the previous token.
func (r *TableRegistry) BindQR(ctx context.Context, id uint, restaurantName string) (*QRBinding, error) {
	table, err := r.stores.Tables.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	token := uuid.NewString()
	if err := r.stores.Tables.SetQRToken(ctx, id, token); err != nil {
		return nil, err
	}
	table.QRToken = &token

	payload := scanner.NewPayload(table.RestaurantID, restaurantName, table.TableNumber)
	encoded, err := payload.Encode()
	if err != nil {
		return nil, err
	}
	return &QRBinding{Table: table, Token: token, Payload: payload, Encoded: encoded}, nil
}

// OccupancyMismatch describes a table whose is_active flag disagrees with
// the orders and requests bound to it.
type OccupancyMismatch struct {
	TableID     uint   `json:"table_id"`
	TableNumber int    `json:"table_number"`
	IsActive    bool   `json:"is_active"`
	Bindings    int    `json:"bindings"`
	Problem     string `json:"problem"`
}

// Audit checks the occupancy invariant: a table is occupied iff exactly one
// live dine-in order or approved/seated request binds it.
func (r *TableRegistry) Audit(ctx context.Context, restaurantID string) ([]OccupancyMismatch, error) {
	tables, err := r.stores.Tables.List(ctx, restaurantID)
	if err != nil {
		return nil, err
	}
	orderBindings, err := r.stores.Orders.ActiveTableBindings(ctx, restaurantID)
	if err != nil {
		return nil, err
	}
	requestBindings, err := r.stores.Requests.ActiveTableBindings(ctx, restaurantID)
	if err != nil {
		return nil, err
	}

	mismatches := []OccupancyMismatch{}
	for _, t := range tables {
		bound := orderBindings[t.ID] + requestBindings[t.ID]
		var problem string
		switch {
		case bound > 1:
			problem = "table bound more than once"
		case bound == 1 && t.IsActive:
			problem = "bound table marked available"
		case bound == 0 && !t.IsActive:
			problem = "occupied table has no binding"
		}
		if problem == "" {
			continue
		}
		mismatches = append(mismatches, OccupancyMismatch{
			TableID:     t.ID,
			TableNumber: t.TableNumber,
			IsActive:    t.IsActive,
			Bindings:    bound,
			Problem:     problem,
		})
	}
	return mismatches, nil
}

// reserveFirstFitting walks the free tables of a restaurant from the smallest
// that fits and reserves the first one it wins.
func (r *TableRegistry) reserveFirstFitting(ctx context.Context, restaurantID string, guests int) (*models.Table, error) {
	free, err := r.stores.Tables.ListAvailable(ctx, restaurantID)
	if err != nil {
		return nil, err
	}
	// unknown capacity sorts last
	capacity := func(t models.Table) int {
		if t.Seats == 0 {
			return math.MaxInt
		}
		return t.Seats
	}
	sort.SliceStable(free, func(i, j int) bool {
		if ci, cj := capacity(free[i]), capacity(free[j]); ci != cj {
			return ci < cj
		}
		return free[i].TableNumber < free[j].TableNumber
	})
	for i := range free {
		t := free[i]
		if !t.Fits(guests) {
			continue
		}
		err := r.Reserve(ctx, t.ID)
		if err == nil {
			t.IsActive = false
			return &t, nil
		}
		if errors.Is(err, ErrConflict) {
			continue
		}
		return nil, err
	}
	return nil, fmt.Errorf("%w: restaurant %s has no free table for %d guests", ErrNoTableAvailable, restaurantID, guests)
}
