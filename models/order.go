package models

import (
	"fmt"
	"time"
)

type OrderType string

const (
	OrderTypeDelivery OrderType = "delivery"
	OrderTypeTakeaway OrderType = "takeaway"
	OrderTypeDineIn   OrderType = "dine_in"
)

func (t OrderType) Valid() bool {
	switch t {
	case OrderTypeDelivery, OrderTypeTakeaway, OrderTypeDineIn:
		return true
	}
	return false
}

type Order struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	RestaurantID string    `gorm:"type:varchar(64);not null;index" json:"restaurant_id"`
	CustomerID   *uint     `gorm:"index" json:"customer_id,omitempty"`
	OrderType    OrderType `gorm:"type:varchar(20);not null" json:"order_type"`
	TableID      *uint     `gorm:"index" json:"table_id,omitempty"`

	Subtotal    float64 `gorm:"type:decimal(10,2);not null;default:0.00" json:"subtotal"`
	DeliveryFee float64 `gorm:"type:decimal(10,2);not null;default:0.00" json:"delivery_fee"`
	ServiceFee  float64 `gorm:"type:decimal(10,2);not null;default:0.00" json:"service_fee"`
	Tax         float64 `gorm:"type:decimal(10,2);not null;default:0.00" json:"tax"`
	Tip         float64 `gorm:"type:decimal(10,2);not null;default:0.00" json:"tip"`
	Total       float64 `gorm:"type:decimal(10,2);not null;default:0.00" json:"total"`

	Status       OrderStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	Notes        string      `gorm:"type:text" json:"notes,omitempty"`
	CancelReason string      `gorm:"type:text" json:"cancel_reason,omitempty"`

	EstimatedReadyTime *time.Time `json:"estimated_ready_time,omitempty"`
	ConfirmedAt        *time.Time `json:"confirmed_at,omitempty"`
	PreparingAt        *time.Time `json:"preparing_at,omitempty"`
	ActualReadyTime    *time.Time `json:"actual_ready_time,omitempty"`
	PickedUpAt         *time.Time `json:"picked_up_at,omitempty"`
	DeliveredAt        *time.Time `json:"delivered_at,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	TableReleasedAt    *time.Time `json:"table_released_at,omitempty"`

	CreatedAt  time.Time   `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time   `gorm:"not null" json:"updated_at"`
	OrderItems []OrderItem `gorm:"foreignKey:OrderID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"order_items,omitempty"`
}

// BindsTable reports whether the order holds a dine-in table reference.
func (o *Order) BindsTable() bool {
	return o.OrderType == OrderTypeDineIn && o.TableID != nil
}

// Reference is a short human-readable identifier for receipts and logs.
func (o *Order) Reference() string {
	return fmt.Sprintf("ORD-%s-%d", o.RestaurantID, o.ID)
}
