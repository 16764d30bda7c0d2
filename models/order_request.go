package models

import "time"

type RequestType string

const (
	RequestTypeDineIn   RequestType = "dine_in"
	RequestTypeTakeaway RequestType = "takeaway"
)

func (t RequestType) Valid() bool {
	return t == RequestTypeDineIn || t == RequestTypeTakeaway
}

// OrderRequest is a customer's ask for a table (or a takeaway slot) made
// before any order exists. Staff approve, seat, complete or reject it.
type OrderRequest struct {
	ID              uint          `gorm:"primaryKey" json:"id"`
	RestaurantID    string        `gorm:"type:varchar(64);not null;index" json:"restaurant_id"`
	CustomerName    string        `gorm:"type:varchar(255);not null" json:"customer_name"`
	CustomerPhone   string        `gorm:"type:varchar(32);not null" json:"customer_phone"`
	RequestType     RequestType   `gorm:"type:varchar(20);not null" json:"request_type"`
	TableID         *uint         `gorm:"index" json:"table_id,omitempty"`
	GuestCount      int           `gorm:"not null" json:"guest_count"`
	Status          RequestStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	Notes           string        `gorm:"type:text" json:"notes,omitempty"`
	ApprovedBy      *uint         `json:"approved_by,omitempty"`
	ApprovedAt      *time.Time    `json:"approved_at,omitempty"`
	SeatedAt        *time.Time    `json:"seated_at,omitempty"`
	CompletedAt     *time.Time    `json:"completed_at,omitempty"`
	RejectedAt      *time.Time    `json:"rejected_at,omitempty"`
	RejectionReason string        `gorm:"type:text" json:"rejection_reason,omitempty"`
	TableReleasedAt *time.Time    `json:"table_released_at,omitempty"`
	CreatedAt       time.Time     `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time     `gorm:"not null" json:"updated_at"`
}

// BindsTable reports whether the request currently references a table.
func (r *OrderRequest) BindsTable() bool {
	return r.RequestType == RequestTypeDineIn && r.TableID != nil
}
