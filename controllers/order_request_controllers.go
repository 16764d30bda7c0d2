package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeremiapane/table-orders/middlewares"
	"github.com/yeremiapane/table-orders/models"
	"github.com/yeremiapane/table-orders/services"
	"github.com/yeremiapane/table-orders/utils"
)

type OrderRequestController struct {
	Workflow *services.OrderRequestWorkflow
}

func NewOrderRequestController(workflow *services.OrderRequestWorkflow) *OrderRequestController {
	return &OrderRequestController{Workflow: workflow}
}

func (rc *OrderRequestController) CreateRequest(c *gin.Context) {
	var req services.CreateRequestInput
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	created, err := rc.Workflow.Create(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Order request created", created)
}

func (rc *OrderRequestController) GetRequest(c *gin.Context) {
	id, ok := paramID(c, "request_id")
	if !ok {
		return
	}
	req, err := rc.Workflow.Get(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order request detail", req)
}

func (rc *OrderRequestController) ListRequests(c *gin.Context) {
	var status *models.RequestStatus
	if raw := c.Query("status"); raw != "" {
		s := models.RequestStatus(raw)
		status = &s
	}
	reqs, err := rc.Workflow.List(c.Request.Context(), c.Query("restaurant_id"), status)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of order requests", reqs)
}

func (rc *OrderRequestController) ApproveRequest(c *gin.Context) {
	id, ok := paramID(c, "request_id")
	if !ok {
		return
	}
	var body struct {
		TableID *uint `json:"table_id"`
	}
	if !bindOptionalJSON(c, &body) {
		return
	}

	req, err := rc.Workflow.Approve(c.Request.Context(), id, middlewares.ActingUserID(c), body.TableID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order request approved", req)
}

func (rc *OrderRequestController) RejectRequest(c *gin.Context) {
	id, ok := paramID(c, "request_id")
	if !ok {
		return
	}
	var body struct {
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	req, err := rc.Workflow.Reject(c.Request.Context(), id, body.Reason)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order request rejected", req)
}

func (rc *OrderRequestController) SeatRequest(c *gin.Context) {
	id, ok := paramID(c, "request_id")
	if !ok {
		return
	}
	req, err := rc.Workflow.Seat(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Guests seated", req)
}

func (rc *OrderRequestController) CompleteRequest(c *gin.Context) {
	id, ok := paramID(c, "request_id")
	if !ok {
		return
	}
	req, err := rc.Workflow.Complete(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrPartialFailure) && req != nil {
			c.JSON(http.StatusInternalServerError, utils.JSONResponse{Status: false, Message: err.Error(), Data: req})
			return
		}
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order request completed", req)
}
