package models

import "time"

const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
	RoleChef  = "chef"
)

// ValidRole reports whether role is one the API authorises.
func ValidRole(role string) bool {
	return role == RoleAdmin || role == RoleStaff || role == RoleChef
}

// User is a staff account. Customers never log in.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	RestaurantID string    `gorm:"type:varchar(64);index" json:"restaurant_id,omitempty"`
	Name         string    `gorm:"type:varchar(255);not null" json:"name"`
	Email        string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Password     string    `gorm:"type:varchar(255);not null" json:"-"`
	Role         string    `gorm:"type:varchar(20);not null" json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
