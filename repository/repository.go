package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/yeremiapane/table-orders/models"
	"github.com/yeremiapane/table-orders/services"
)

// Models lists every table the subsystem owns, in migration order.
var Models = []interface{}{
	&models.Table{},
	&models.Order{},
	&models.OrderItem{},
	&models.OrderRequest{},
	&models.User{},
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(Models...)
}

// NewStores returns the stores bound to db, which may be a transaction.
func NewStores(db *gorm.DB) services.Stores {
	return services.Stores{
		Tables:   NewTableRepository(db),
		Orders:   NewOrderRepository(db),
		Requests: NewRequestRepository(db),
	}
}

// Transactor runs service work inside a gorm transaction.
type Transactor struct {
	DB *gorm.DB
}

func NewTransactor(db *gorm.DB) *Transactor {
	return &Transactor{DB: db}
}

func (t *Transactor) WithinTransaction(ctx context.Context, fn func(services.Stores) error) error {
	return t.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStores(tx))
	})
}
