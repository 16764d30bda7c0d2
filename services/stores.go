package services

import (
	"context"
	"time"

	"github.com/yeremiapane/table-orders/models"
)

// TableStore is the row-level persistence the registry needs. MarkOccupied
// must be a single conditional update.
type TableStore interface {
	Create(ctx context.Context, table *models.Table) error
	FindByID(ctx context.Context, id uint) (*models.Table, error)
	FindByNumber(ctx context.Context, restaurantID string, number int) (*models.Table, error)
	List(ctx context.Context, restaurantID string) ([]models.Table, error)
	ListAvailable(ctx context.Context, restaurantID string) ([]models.Table, error)
	// MarkOccupied flips is_active from true to false and reports whether a row changed.
	MarkOccupied(ctx context.Context, id uint) (bool, error)
	// MarkAvailable sets is_active to true and reports whether the row exists.
	MarkAvailable(ctx context.Context, id uint) (bool, error)
	SetQRToken(ctx context.Context, id uint, token string) error
	Flag(ctx context.Context, id uint, reason string, at time.Time) error
	Resolve(ctx context.Context, id uint, available bool) error
}

type OrderFilter struct {
	RestaurantID string
	Statuses     []models.OrderStatus
	Limit        int
}

type OrderStore interface {
	Create(ctx context.Context, order *models.Order) error
	CreateItems(ctx context.Context, items []models.OrderItem) error
	Delete(ctx context.Context, id uint) error
	FindByID(ctx context.Context, id uint) (*models.Order, error)
	List(ctx context.Context, filter OrderFilter) ([]models.Order, error)
	// UpdateStatus applies fields only while the order is still in status from.
	UpdateStatus(ctx context.Context, id uint, from models.OrderStatus, fields map[string]interface{}) (bool, error)
	// ClaimTableRelease stamps table_released_at if it is still empty.
	ClaimTableRelease(ctx context.Context, id uint, at time.Time) (bool, error)
	UnclaimTableRelease(ctx context.Context, id uint) error
	// ActiveTableBindings counts non-terminal dine-in orders per table.
	ActiveTableBindings(ctx context.Context, restaurantID string) (map[uint]int, error)
}

type RequestStore interface {
	Create(ctx context.Context, req *models.OrderRequest) error
	FindByID(ctx context.Context, id uint) (*models.OrderRequest, error)
	List(ctx context.Context, restaurantID string, status *models.RequestStatus) ([]models.OrderRequest, error)
	// UpdateStatus applies fields only while the request is in one of from.
	UpdateStatus(ctx context.Context, id uint, from []models.RequestStatus, fields map[string]interface{}) (bool, error)
	ClaimTableRelease(ctx context.Context, id uint, at time.Time) (bool, error)
	UnclaimTableRelease(ctx context.Context, id uint) error
	// ActiveTableBindings counts approved or seated dine-in requests per table.
	ActiveTableBindings(ctx context.Context, restaurantID string) (map[uint]int, error)
}

// Stores groups the stores of one connection or one transaction.
type Stores struct {
	Tables   TableStore
	Orders   OrderStore
	Requests RequestStore
}

// Transactor runs fn against stores bound to a single database transaction.
// Returning an error from fn rolls the transaction back.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(Stores) error) error
}
