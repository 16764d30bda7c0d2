// Package repository implements the service stores on top of gorm.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/yeremiapane/table-orders/models"
	"github.com/yeremiapane/table-orders/services"
)

// notFound maps gorm's record-not-found to the service taxonomy.
func notFound(err error, format string, args ...interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", services.ErrNotFound, fmt.Sprintf(format, args...))
	}
	return err
}

type TableRepository struct {
	DB *gorm.DB
}

func NewTableRepository(db *gorm.DB) *TableRepository {
	return &TableRepository{DB: db}
}

func (r *TableRepository) Create(ctx context.Context, table *models.Table) error {
	return r.DB.WithContext(ctx).Create(table).Error
}

func (r *TableRepository) FindByID(ctx context.Context, id uint) (*models.Table, error) {
	var table models.Table
	if err := r.DB.WithContext(ctx).First(&table, id).Error; err != nil {
		return nil, notFound(err, "table %d", id)
	}
	return &table, nil
}

func (r *TableRepository) FindByNumber(ctx context.Context, restaurantID string, number int) (*models.Table, error) {
	var table models.Table
	err := r.DB.WithContext(ctx).
		Where("restaurant_id = ? AND table_number = ?", restaurantID, number).
		First(&table).Error
	if err != nil {
		return nil, notFound(err, "table %d in restaurant %s", number, restaurantID)
	}
	return &table, nil
}

func (r *TableRepository) List(ctx context.Context, restaurantID string) ([]models.Table, error) {
	var tables []models.Table
	q := r.DB.WithContext(ctx).Order("restaurant_id, table_number")
	if restaurantID != "" {
		q = q.Where("restaurant_id = ?", restaurantID)
	}
	if err := q.Find(&tables).Error; err != nil {
		return nil, err
	}
	return tables, nil
}

func (r *TableRepository) ListAvailable(ctx context.Context, restaurantID string) ([]models.Table, error) {
	var tables []models.Table
	err := r.DB.WithContext(ctx).
		Where("restaurant_id = ? AND is_active = ?", restaurantID, true).
		Order("table_number").
		Find(&tables).Error
	if err != nil {
		return nil, err
	}
	return tables, nil
}

// MarkOccupied is the atomic reservation:
// UPDATE restaurant_tables SET is_active=false WHERE id=? AND is_active=true.
func (r *TableRepository) MarkOccupied(ctx context.Context, id uint) (bool, error) {
	res := r.DB.WithContext(ctx).
		Model(&models.Table{}).
		Where("id = ? AND is_active = ?", id, true).
		Updates(map[string]interface{}{"is_active": false, "updated_at": time.Now()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *TableRepository) MarkAvailable(ctx context.Context, id uint) (bool, error) {
	res := r.DB.WithContext(ctx).
		Model(&models.Table{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"is_active": true, "updated_at": time.Now()})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return true, nil
	}
	// mysql reports 0 affected rows when nothing changed
	var n int64
	if err := r.DB.WithContext(ctx).Model(&models.Table{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *TableRepository) SetQRToken(ctx context.Context, id uint, token string) error {
	return r.update(ctx, id, map[string]interface{}{"qr_token": token, "updated_at": time.Now()})
}

func (r *TableRepository) Flag(ctx context.Context, id uint, reason string, at time.Time) error {
	return r.update(ctx, id, map[string]interface{}{
		"needs_attention":  true,
		"attention_reason": reason,
		"flagged_at":       at,
		"updated_at":       at,
	})
}

func (r *TableRepository) Resolve(ctx context.Context, id uint, available bool) error {
	return r.update(ctx, id, map[string]interface{}{
		"is_active":        available,
		"needs_attention":  false,
		"attention_reason": "",
		"flagged_at":       nil,
		"updated_at":       time.Now(),
	})
}

func (r *TableRepository) update(ctx context.Context, id uint, fields map[string]interface{}) error {
	res := r.DB.WithContext(ctx).Model(&models.Table{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var n int64
		if err := r.DB.WithContext(ctx).Model(&models.Table{}).Where("id = ?", id).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: table %d", services.ErrNotFound, id)
		}
	}
	return nil
}
