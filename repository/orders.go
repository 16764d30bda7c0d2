package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/yeremiapane/table-orders/models"
	"github.com/yeremiapane/table-orders/services"
)

type OrderRepository struct {
	DB *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{DB: db}
}

// Create inserts the order row only; items go through CreateItems.
func (r *OrderRepository) Create(ctx context.Context, order *models.Order) error {
	return r.DB.WithContext(ctx).Omit("OrderItems").Create(order).Error
}

func (r *OrderRepository) CreateItems(ctx context.Context, items []models.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.DB.WithContext(ctx).Create(&items).Error
}

func (r *OrderRepository) Delete(ctx context.Context, id uint) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("order_id = ?", id).Delete(&models.OrderItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Order{}, id).Error
	})
}

func (r *OrderRepository) FindByID(ctx context.Context, id uint) (*models.Order, error) {
	var order models.Order
	if err := r.DB.WithContext(ctx).Preload("OrderItems").First(&order, id).Error; err != nil {
		return nil, notFound(err, "order %d", id)
	}
	return &order, nil
}

func (r *OrderRepository) List(ctx context.Context, filter services.OrderFilter) ([]models.Order, error) {
	var orders []models.Order
	q := r.DB.WithContext(ctx).Preload("OrderItems").Order("created_at DESC")
	if filter.RestaurantID != "" {
		q = q.Where("restaurant_id = ?", filter.RestaurantID)
	}
	if len(filter.Statuses) > 0 {
		q = q.Where("status IN ?", filter.Statuses)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if err := q.Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, id uint, from models.OrderStatus, fields map[string]interface{}) (bool, error) {
	res := r.DB.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(fields)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *OrderRepository) ClaimTableRelease(ctx context.Context, id uint, at time.Time) (bool, error) {
	res := r.DB.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND table_released_at IS NULL", id).
		Update("table_released_at", at)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *OrderRepository) UnclaimTableRelease(ctx context.Context, id uint) error {
	return r.DB.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Update("table_released_at", nil).Error
}

func (r *OrderRepository) ActiveTableBindings(ctx context.Context, restaurantID string) (map[uint]int, error) {
	var rows []struct {
		TableID uint
		Count   int
	}
	err := r.DB.WithContext(ctx).
		Model(&models.Order{}).
		Select("table_id, COUNT(*) AS count").
		Where("restaurant_id = ? AND order_type = ? AND table_id IS NOT NULL", restaurantID, models.OrderTypeDineIn).
		Where("status NOT IN ?", []models.OrderStatus{models.OrderStatusCompleted, models.OrderStatusCancelled}).
		Group("table_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[uint]int, len(rows))
	for _, row := range rows {
		out[row.TableID] = row.Count
	}
	return out, nil
}
