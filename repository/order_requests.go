package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/yeremiapane/table-orders/models"
)

type RequestRepository struct {
	DB *gorm.DB
}

func NewRequestRepository(db *gorm.DB) *RequestRepository {
	return &RequestRepository{DB: db}
}

func (r *RequestRepository) Create(ctx context.Context, req *models.OrderRequest) error {
	return r.DB.WithContext(ctx).Create(req).Error
}

func (r *RequestRepository) FindByID(ctx context.Context, id uint) (*models.OrderRequest, error) {
	var req models.OrderRequest
	if err := r.DB.WithContext(ctx).First(&req, id).Error; err != nil {
		return nil, notFound(err, "order request %d", id)
	}
	return &req, nil
}

func (r *RequestRepository) List(ctx context.Context, restaurantID string, status *models.RequestStatus) ([]models.OrderRequest, error) {
	var reqs []models.OrderRequest
	q := r.DB.WithContext(ctx).Order("created_at DESC")
	if restaurantID != "" {
		q = q.Where("restaurant_id = ?", restaurantID)
	}
	if status != nil {
		q = q.Where("status = ?", *status)
	}
	if err := q.Find(&reqs).Error; err != nil {
		return nil, err
	}
	return reqs, nil
}

func (r *RequestRepository) UpdateStatus(ctx context.Context, id uint, from []models.RequestStatus, fields map[string]interface{}) (bool, error) {
	res := r.DB.WithContext(ctx).
		Model(&models.OrderRequest{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(fields)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *RequestRepository) ClaimTableRelease(ctx context.Context, id uint, at time.Time) (bool, error) {
	res := r.DB.WithContext(ctx).
		Model(&models.OrderRequest{}).
		Where("id = ? AND table_released_at IS NULL", id).
		Update("table_released_at", at)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *RequestRepository) UnclaimTableRelease(ctx context.Context, id uint) error {
	return r.DB.WithContext(ctx).
		Model(&models.OrderRequest{}).
		Where("id = ?", id).
		Update("table_released_at", nil).Error
}

func (r *RequestRepository) ActiveTableBindings(ctx context.Context, restaurantID string) (map[uint]int, error) {
	var rows []struct {
		TableID uint
		Count   int
	}
	err := r.DB.WithContext(ctx).
		Model(&models.OrderRequest{}).
		Select("table_id, COUNT(*) AS count").
		Where("restaurant_id = ? AND request_type = ? AND table_id IS NOT NULL", restaurantID, models.RequestTypeDineIn).
		Where("status IN ?", []models.RequestStatus{models.RequestStatusApproved, models.RequestStatusSeated}).
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
