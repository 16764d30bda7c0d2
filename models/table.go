package models

import "time"

// Table is a physical dine-in table. IsActive means "free to assign"; it is
// flipped only by the table registry.
type Table struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	RestaurantID    string     `gorm:"type:varchar(64);not null;uniqueIndex:idx_restaurant_table_number" json:"restaurant_id"`
	TableNumber     int        `gorm:"not null;uniqueIndex:idx_restaurant_table_number" json:"table_number"`
	Seats           int        `gorm:"not null" json:"seats"`
	IsActive        bool       `gorm:"not null;index" json:"is_active"`
	QRToken         *string    `gorm:"type:varchar(64);uniqueIndex" json:"qr_token,omitempty"`
	NeedsAttention  bool       `gorm:"not null" json:"needs_attention"`
	AttentionReason string     `gorm:"type:text" json:"attention_reason,omitempty"`
	FlaggedAt       *time.Time `json:"flagged_at,omitempty"`
	CreatedAt       time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"not null" json:"updated_at"`
}

func (Table) TableName() string {
	return "restaurant_tables"
}

// Fits reports whether the table can seat a party of the given size.
// A table with unknown capacity fits any party.
func (t Table) Fits(guests int) bool {
	return t.Seats == 0 || t.Seats >= guests
}
