package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yeremiapane/table-orders/middlewares"
	"github.com/yeremiapane/table-orders/models"
	"github.com/yeremiapane/table-orders/services"
	"github.com/yeremiapane/table-orders/utils"
)

const IdempotencyHeader = "Idempotency-Key"

type OrderController struct {
	Saga        *services.OrderSaga
	Machine     *services.OrderStatusMachine
	Idempotency services.IdempotencyStore
}

func NewOrderController(saga *services.OrderSaga, machine *services.OrderStatusMachine, idem services.IdempotencyStore) *OrderController {
	return &OrderController{Saga: saga, Machine: machine, Idempotency: idem}
}

// CreateOrder -> place an order from a checkout cart. A repeated
// Idempotency-Key returns the order placed by the first attempt.
func (oc *OrderController) CreateOrder(c *gin.Context) {
	var req services.CreateOrderInput
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	req.CustomerID = middlewares.ActingUserID(c)
	ctx := c.Request.Context()

	key := strings.TrimSpace(c.GetHeader(IdempotencyHeader))
	if key != "" && oc.Idempotency != nil {
		existing, err := oc.Idempotency.Begin(ctx, key)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		if existing != 0 {
			order, err := oc.Machine.GetOrder(ctx, existing)
			if err != nil {
				respondServiceError(c, err)
				return
			}
			utils.RespondJSON(c, http.StatusOK, "Order already placed", order)
			return
		}
	}

	order, err := oc.Saga.CreateOrder(ctx, req)
	if err != nil {
		if key != "" && oc.Idempotency != nil {
			if aerr := oc.Idempotency.Abandon(ctx, key); aerr != nil {
				utils.ErrorLogger.Printf("failed to release idempotency key %s: %v", key, aerr)
			}
		}
		respondServiceError(c, err)
		return
	}
	if key != "" && oc.Idempotency != nil {
		if err := oc.Idempotency.Complete(ctx, key, order.ID); err != nil {
			utils.ErrorLogger.Printf("failed to store idempotency key %s: %v", key, err)
		}
	}
	utils.RespondJSON(c, http.StatusCreated, "Order created", order)
}

// GetOrderByID -> one order with its items
func (oc *OrderController) GetOrderByID(c *gin.Context) {
	id, ok := paramID(c, "order_id")
	if !ok {
		return
	}
	order, err := oc.Machine.GetOrder(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order detail", order)
}

// GetAllOrders -> list orders, filtered by restaurant_id and a
// comma-separated status list
func (oc *OrderController) GetAllOrders(c *gin.Context) {
	var statuses []models.OrderStatus
	if raw := c.Query("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			statuses = append(statuses, models.OrderStatus(strings.TrimSpace(s)))
		}
	}
	orders, err := oc.Machine.ListOrders(c.Request.Context(), c.Query("restaurant_id"), statuses)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of orders", orders)
}

// UpdateOrderStatus -> move an order to its next stage
func (oc *OrderController) UpdateOrderStatus(c *gin.Context) {
	id, ok := paramID(c, "order_id")
	if !ok {
		return
	}
	var body struct {
		Status string `json:"status" binding:"required"`
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	order, err := oc.Machine.Transition(c.Request.Context(), id, models.OrderStatus(body.Status), services.TransitionOptions{
		Reason:  body.Reason,
		ActorID: middlewares.ActingUserID(c),
	})
	if err != nil {
		if errors.Is(err, services.ErrPartialFailure) && order != nil {
			// the status change is committed; report it alongside the failure
			c.JSON(http.StatusInternalServerError, utils.JSONResponse{Status: false, Message: err.Error(), Data: order})
			return
		}
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order status updated", order)
}
