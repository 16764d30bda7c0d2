package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yeremiapane/table-orders/services"
	"github.com/yeremiapane/table-orders/utils"
)

type TableController struct {
	Registry *services.TableRegistry
}

func NewTableController(registry *services.TableRegistry) *TableController {
	return &TableController{Registry: registry}
}

// CreateTable -> add a table to a restaurant
func (tc *TableController) CreateTable(c *gin.Context) {
	var req services.CreateTableInput
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	table, err := tc.Registry.CreateTable(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Table created successfully", table)
}

// GetAllTables -> list tables, optionally for one restaurant
func (tc *TableController) GetAllTables(c *gin.Context) {
	tables, err := tc.Registry.ListTables(c.Request.Context(), c.Query("restaurant_id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of tables", tables)
}

func (tc *TableController) GetTableByID(c *gin.Context) {
	id, ok := paramID(c, "table_id")
	if !ok {
		return
	}
	table, err := tc.Registry.GetTable(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Table detail", table)
}

// LookupTable -> public lookup by restaurant and printed table number
func (tc *TableController) LookupTable(c *gin.Context) {
	number, err := strconv.Atoi(c.Param("table_number"))
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, errors.New("invalid table_number"))
		return
	}
	table, err := tc.Registry.LookupTable(c.Request.Context(), c.Param("restaurant_id"), number)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Table detail", table)
}

// BindQR -> issue a new QR token for a table
func (tc *TableController) BindQR(c *gin.Context) {
	id, ok := paramID(c, "table_id")
	if !ok {
		return
	}
	var body struct {
		RestaurantName string `json:"restaurant_name"`
	}
	if !bindOptionalJSON(c, &body) {
		return
	}

	binding, err := tc.Registry.BindQR(c.Request.Context(), id, body.RestaurantName)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "QR code generated", binding)
}

// ResolveTable -> manual correction of a flagged table
func (tc *TableController) ResolveTable(c *gin.Context) {
	id, ok := paramID(c, "table_id")
	if !ok {
		return
	}
	var body struct {
		Available *bool `json:"available" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	table, err := tc.Registry.Resolve(c.Request.Context(), id, *body.Available)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Table resolved", table)
}

// AuditTables -> tables whose occupancy disagrees with live orders and requests
func (tc *TableController) AuditTables(c *gin.Context) {
	restaurantID := c.Query("restaurant_id")
	if restaurantID == "" {
		utils.RespondError(c, http.StatusBadRequest, errors.New("restaurant_id is required"))
		return
	}
	mismatches, err := tc.Registry.Audit(c.Request.Context(), restaurantID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Table occupancy audit", mismatches)
}
