package controllers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yeremiapane/table-orders/models"
	"github.com/yeremiapane/table-orders/scanner"
	"github.com/yeremiapane/table-orders/utils"
)

const DeviceHeader = "X-Device-ID"

// ScanController feeds QR scans from ordering devices through one
// scanner.Guard per device.
type ScanController struct {
	Sessions *scanner.Sessions
	Now      func() time.Time
}

func NewScanController(sessions *scanner.Sessions) *ScanController {
	return &ScanController{Sessions: sessions, Now: time.Now}
}

type scanResponse struct {
	Outcome scanner.Outcome  `json:"outcome"`
	Phase   scanner.Phase    `json:"phase"`
	Table   *models.Table    `json:"table,omitempty"`
	Payload *scanner.Payload `json:"payload,omitempty"`
}

func (sc *ScanController) deviceID(c *gin.Context) (string, bool) {
	id := strings.TrimSpace(c.GetHeader(DeviceHeader))
	if id == "" {
		utils.RespondError(c, http.StatusBadRequest, errors.New(DeviceHeader+" header is required"))
		return "", false
	}
	return id, true
}

// Scan -> handle one raw scan event from a device
func (sc *ScanController) Scan(c *gin.Context) {
	device, ok := sc.deviceID(c)
	if !ok {
		return
	}
	var body struct {
		Data string `json:"data" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	now := sc.Now()
	res := sc.Sessions.Get(device, now).HandleScan(c.Request.Context(), body.Data, now)
	out := scanResponse{Outcome: res.Outcome, Phase: res.Phase, Table: res.Table, Payload: res.Payload}

	switch res.Outcome {
	case scanner.Accepted:
		utils.RespondJSON(c, http.StatusOK, "Table found", out)
	case scanner.Ignored:
		utils.RespondJSON(c, http.StatusAccepted, "Scan ignored", out)
	case scanner.TableUnavailable:
		c.JSON(http.StatusConflict, utils.JSONResponse{Message: "Table is currently occupied, please ask staff", Data: out})
	default:
		c.JSON(statusFor(res.Err), utils.JSONResponse{Message: res.Err.Error(), Data: out})
	}
}

// ResetScan -> explicit "scan again" for a device
func (sc *ScanController) ResetScan(c *gin.Context) {
	device, ok := sc.deviceID(c)
	if !ok {
		return
	}
	sc.Sessions.Reset(device)
	utils.RespondJSON(c, http.StatusOK, "Scanner reset", gin.H{"phase": scanner.PhaseIdle})
}
