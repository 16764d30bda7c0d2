package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yeremiapane/table-orders/events"
	"github.com/yeremiapane/table-orders/models"
	"github.com/yeremiapane/table-orders/utils"
)

type SagaMode string

const (
	// SagaTransactional runs reserve, insert order and insert items in one
	// database transaction.
	SagaTransactional SagaMode = "transactional"
	// SagaCompensating runs the steps as independent writes and undoes the
	// completed ones when a later step fails.
	SagaCompensating SagaMode = "compensating"
)

const DefaultReadyEstimate = 30 * time.Minute

type OrderSagaConfig struct {
	Mode          SagaMode
	ReadyEstimate time.Duration
}

type OrderItemInput struct {
	MenuItemID string  `json:"menu_item_id"`
	Name       string  `json:"name"`
	Quantity   int     `json:"quantity"`
	UnitPrice  float64 `json:"unit_price"`
	Notes      string  `json:"notes"`
}

// CreateOrderInput is the checkout cart as sent by the ordering client.
type CreateOrderInput struct {
	RestaurantID string           `json:"restaurant_id"`
	CustomerID   *uint            `json:"-"`
	OrderType    models.OrderType `json:"order_type"`
	TableID      *uint            `json:"table_id"`
	Items        []OrderItemInput `json:"items"`
	Subtotal     float64          `json:"subtotal"`
	DeliveryFee  float64          `json:"delivery_fee"`
	ServiceFee   float64          `json:"service_fee"`
	Tax          float64          `json:"tax"`
	Tip          float64          `json:"tip"`
	Total        float64          `json:"total"`
	Notes        string           `json:"notes"`
}

// Validate rejects a cart before anything is written.
func (in *CreateOrderInput) Validate() error {
	if strings.TrimSpace(in.RestaurantID) == "" {
		return validationErr("restaurant_id is required")
	}
	if !in.OrderType.Valid() {
		return validationErr("unknown order_type %q", in.OrderType)
	}
	if in.OrderType == models.OrderTypeDineIn && in.TableID == nil {
		return validationErr("dine_in orders require a table_id")
	}
	if in.OrderType != models.OrderTypeDineIn && in.TableID != nil {
		return validationErr("table_id is only allowed on dine_in orders")
	}
	if len(in.Items) == 0 {
		return validationErr("order has no items")
	}

	lines := make([]float64, 0, len(in.Items))
	for i, item := range in.Items {
		if strings.TrimSpace(item.MenuItemID) == "" {
			return validationErr("item %d: menu_item_id is required", i)
		}
		if item.Quantity <= 0 {
			return validationErr("item %d: quantity must be greater than zero", i)
		}
		if item.UnitPrice < 0 {
			return validationErr("item %d: unit_price must not be negative", i)
		}
		lines = append(lines, utils.LineTotal(item.UnitPrice, item.Quantity))
	}

	for name, amount := range map[string]float64{
		"subtotal":     in.Subtotal,
		"delivery_fee": in.DeliveryFee,
		"service_fee":  in.ServiceFee,
		"tax":          in.Tax,
		"tip":          in.Tip,
		"total":        in.Total,
	} {
		if amount < 0 {
			return validationErr("%s must not be negative", name)
		}
	}

	if itemsTotal := utils.SumMoney(lines...); !utils.AmountsMatch(itemsTotal, in.Subtotal) {
		return validationErr("subtotal %.2f does not match items total %.2f", in.Subtotal, itemsTotal)
	}
	expected := utils.SumMoney(in.Subtotal, in.DeliveryFee, in.ServiceFee, in.Tax, in.Tip)
	if !utils.AmountsMatch(expected, in.Total) {
		return validationErr("total %.2f does not match subtotal+fees+tax+tip %.2f", in.Total, expected)
	}
	return nil
}

// OrderSaga places orders: reserve the table (dine-in), insert the order,
// insert its items. A failure leaves no order, no items and the table free.
type OrderSaga struct {
	stores    Stores
	tx        Transactor
	registry  *TableRegistry
	publisher events.Publisher
	cfg       OrderSagaConfig
	now       func() time.Time
}

func NewOrderSaga(stores Stores, tx Transactor, registry *TableRegistry, publisher events.Publisher, cfg OrderSagaConfig) *OrderSaga {
	if publisher == nil {
		publisher = events.Noop{}
	}
	if cfg.ReadyEstimate <= 0 {
		cfg.ReadyEstimate = DefaultReadyEstimate
	}
	if cfg.Mode == "" {
		cfg.Mode = SagaTransactional
	}
	if cfg.Mode == SagaTransactional && tx == nil {
		utils.InfoLogger.Warn("order saga: no transactor configured, falling back to compensating mode")
		cfg.Mode = SagaCompensating
	}
	return &OrderSaga{
		stores:    stores,
		tx:        tx,
		registry:  registry,
		publisher: publisher,
		cfg:       cfg,
		now:       time.Now,
	}
}

func (s *OrderSaga) Mode() SagaMode {
	return s.cfg.Mode
}

func (s *OrderSaga) CreateOrder(ctx context.Context, in CreateOrderInput) (*models.Order, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	in.RestaurantID = strings.TrimSpace(in.RestaurantID)

	if in.OrderType == models.OrderTypeDineIn {
		table, err := s.registry.GetTable(ctx, *in.TableID)
		if err != nil {
			return nil, err
		}
		if table.RestaurantID != in.RestaurantID {
			return nil, notFoundErr("table %d in restaurant %s", *in.TableID, in.RestaurantID)
		}
	}

	order, items := s.buildOrder(in)
	log := utils.InfoLogger.WithFields(logrus.Fields{
		"restaurant_id": order.RestaurantID,
		"order_type":    order.OrderType,
		"mode":          s.cfg.Mode,
	})

	if s.cfg.Mode == SagaTransactional {
		buf := &eventBuffer{}
		err := s.tx.WithinTransaction(ctx, func(tx Stores) error {
			return s.run(ctx, tx, s.registry.bind(tx, buf), order, items, nil)
		})
		if err != nil {
			log.Warnf("order placement rolled back: %v", err)
			return nil, err
		}
		buf.flush(ctx, s.publisher)
	} else {
		comp := newCompensator("create_order")
		if err := s.run(ctx, s.stores, s.registry, order, items, comp); err != nil {
			log.Warnf("order placement failed, compensating: %v", err)
			return nil, comp.rollback(ctx, err)
		}
	}

	log.WithField("order_id", order.ID).Infof("order placed, total %.2f", order.Total)
	s.publisher.Publish(ctx, events.Event{
		Type:         events.OrderCreated,
		RestaurantID: order.RestaurantID,
		OrderID:      events.UintPtr(order.ID),
		TableID:      order.TableID,
		Status:       string(order.Status),
		OccurredAt:   s.now().UTC(),
		Data:         order,
	})
	return order, nil
}

// run executes the forward steps. Each completed step registers its undo
// with comp; comp is nil inside a transaction.
func (s *OrderSaga) run(ctx context.Context, stores Stores, registry *TableRegistry, order *models.Order, items []models.OrderItem, comp *compensator) error {
	if order.BindsTable() {
		tableID := *order.TableID
		if err := registry.Reserve(ctx, tableID); err != nil {
			if errors.Is(err, ErrConflict) {
				return fmt.Errorf("%w: table %d", ErrTableUnavailable, tableID)
			}
			return err
		}
		comp.push("release table", func(ctx context.Context) error {
			return registry.releaseOrFlag(ctx, tableID, "order placement failed and the reservation could not be released")
		})
	}

	if err := stores.Orders.Create(ctx, order); err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	orderID := order.ID
	comp.push("delete order", func(ctx context.Context) error {
		return stores.Orders.Delete(ctx, orderID)
	})

	for i := range items {
		items[i].OrderID = orderID
	}
	if err := stores.Orders.CreateItems(ctx, items); err != nil {
		return fmt.Errorf("insert order items: %w", err)
	}
	order.OrderItems = items
	return nil
}

func (s *OrderSaga) buildOrder(in CreateOrderInput) (*models.Order, []models.OrderItem) {
	now := s.now()
	eta := now.Add(s.cfg.ReadyEstimate)
	order := &models.Order{
		RestaurantID:       in.RestaurantID,
		CustomerID:         in.CustomerID,
		OrderType:          in.OrderType,
		TableID:            in.TableID,
		Subtotal:           utils.RoundMoney(in.Subtotal),
		DeliveryFee:        utils.RoundMoney(in.DeliveryFee),
		ServiceFee:         utils.RoundMoney(in.ServiceFee),
		Tax:                utils.RoundMoney(in.Tax),
		Tip:                utils.RoundMoney(in.Tip),
		Total:              utils.RoundMoney(in.Total),
		Status:             models.OrderStatusPending,
		Notes:              in.Notes,
		EstimatedReadyTime: &eta,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	items := make([]models.OrderItem, 0, len(in.Items))
	for _, item := range in.Items {
		items = append(items, models.OrderItem{
			MenuItemID: strings.TrimSpace(item.MenuItemID),
			Name:       item.Name,
			Quantity:   item.Quantity,
			UnitPrice:  utils.RoundMoney(item.UnitPrice),
			TotalPrice: utils.LineTotal(item.UnitPrice, item.Quantity),
			Notes:      item.Notes,
			CreatedAt:  now,
		})
	}
	return order, items
}
