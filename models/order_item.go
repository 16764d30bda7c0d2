package models

import (
	"time"
)

// OrderItem is a priced snapshot of one cart line. Rows are written together
// with their order and never updated afterwards.
type OrderItem struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	OrderID    uint      `gorm:"not null;index" json:"order_id"`
	MenuItemID string    `gorm:"type:varchar(64);not null" json:"menu_item_id"`
	Name       string    `gorm:"type:varchar(255)" json:"name,omitempty"`
	Quantity   int       `gorm:"not null" json:"quantity"`
	UnitPrice  float64   `gorm:"type:decimal(10,2);not null" json:"unit_price"`
	TotalPrice float64   `gorm:"type:decimal(10,2);not null" json:"total_price"`
	Notes      string    `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt  time.Time `gorm:"not null" json:"created_at"`
}
