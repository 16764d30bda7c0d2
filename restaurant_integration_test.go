package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yeremiapane/table-orders/controllers"
	"github.com/yeremiapane/table-orders/events"
	"github.com/yeremiapane/table-orders/kds"
	"github.com/yeremiapane/table-orders/models"
	"github.com/yeremiapane/table-orders/repository"
	"github.com/yeremiapane/table-orders/router"
	"github.com/yeremiapane/table-orders/scanner"
	"github.com/yeremiapane/table-orders/services"
	"github.com/yeremiapane/table-orders/utils"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	utils.SilenceLoggers()
	os.Exit(m.Run())
}

// TestEndToEndIntegration walks one table through a full dine-in visit:
// 1. Scan the table QR -> accepted
// 2. Checkout -> table occupied, second scan sees it taken
// 3. Kitchen moves the order to ready, staff completes it
// 4. Table is free again and the KDS saw every step
func TestEndToEndIntegration(t *testing.T) {
	db := setupTestDB(t)
	stores := repository.NewStores(db)
	tx := repository.NewTransactor(db)
	rec := &events.Recorder{}
	hub := kds.NewHub()
	publisher := events.Multi{hub, rec}

	registry := services.NewTableRegistry(stores, publisher)
	saga := services.NewOrderSaga(stores, tx, registry, publisher, services.OrderSagaConfig{})
	machine := services.NewOrderStatusMachine(stores, registry, publisher)
	workflow := services.NewOrderRequestWorkflow(stores, tx, registry, publisher)

	var handedOff []uint
	sessions := scanner.NewSessions(time.Minute, func() *scanner.Guard {
		return scanner.NewGuard(registry, func(_ context.Context, table *models.Table, payload scanner.Payload) {
			logHandoff(context.Background(), table, payload)
			handedOff = append(handedOff, table.ID)
		}, scanner.DefaultConfig())
	})

	auth := services.NewStaffAuth(repository.NewUserRepository(db), time.Hour)
	r := router.SetupRouter(router.Controllers{
		Users:    controllers.NewUserController(auth),
		Tables:   controllers.NewTableController(registry),
		Orders:   controllers.NewOrderController(saga, machine, services.NewMemoryIdempotency(0)),
		Requests: controllers.NewOrderRequestController(workflow),
		Scans:    controllers.NewScanController(sessions),
		KDS:      controllers.NewKDSController(hub),
	}, router.Options{CORSOrigin: "*"})

	require.NoError(t, auth.EnsureAdmin(context.Background(), "admin@warung.id", "admin-pass"))
	admin := login(t, r, "admin@warung.id", "admin-pass")
	code, _ := call(t, r, "POST", "/admin/users", map[string]string{
		"name": "Sari", "email": "sari@warung.id", "password": "dapur-123", "role": "chef",
	}, "Authorization", "Bearer "+admin)
	require.Equal(t, http.StatusCreated, code)
	staff := admin
	chef := login(t, r, "sari@warung.id", "dapur-123")

	// 1. Admin creates the table and prints its QR
	code, body := call(t, r, "POST", "/admin/tables", map[string]interface{}{
		"restaurant_id": "warung-1", "table_number": 12, "seats": 4,
	}, "Authorization", "Bearer "+staff)
	require.Equal(t, http.StatusCreated, code)
	tableID := uint(body["data"].(map[string]interface{})["id"].(float64))

	code, body = call(t, r, "POST", fmt.Sprintf("/admin/tables/%d/qr", tableID), map[string]string{"restaurant_name": "Warung"}, "Authorization", "Bearer "+staff)
	require.Equal(t, http.StatusOK, code)
	qrData := body["data"].(map[string]interface{})["encoded"].(string)

	code, _ = call(t, r, "POST", "/scan", map[string]string{"data": qrData}, controllers.DeviceHeader, "tablet-1")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []uint{tableID}, handedOff)

	// 2. Checkout
	code, body = call(t, r, "POST", "/orders", map[string]interface{}{
		"restaurant_id": "warung-1",
		"order_type":    "dine_in",
		"table_id":      tableID,
		"items": []map[string]interface{}{
			{"menu_item_id": "soto", "name": "Soto Ayam", "quantity": 2, "unit_price": 22500},
		},
		"subtotal": 45000,
		"tax":      4500,
		"total":    49500,
	})
	require.Equal(t, http.StatusCreated, code, body["message"])
	orderID := uint(body["data"].(map[string]interface{})["id"].(float64))

	code, _ = call(t, r, "POST", "/scan", map[string]string{"data": qrData}, controllers.DeviceHeader, "tablet-2")
	assert.Equal(t, http.StatusConflict, code)

	// 3. Kitchen and floor
	statusPath := fmt.Sprintf("/orders/%d/status", orderID)
	steps := []struct {
		prefix, token, status string
	}{
		{"/admin", staff, "confirmed"},
		{"/chef", chef, "preparing"},
		{"/chef", chef, "ready"},
		{"/admin", staff, "picked_up"},
		{"/admin", staff, "completed"},
	}
	for _, step := range steps {
		code, body = call(t, r, "PATCH", step.prefix+statusPath, map[string]string{"status": step.status}, "Authorization", "Bearer "+step.token)
		require.Equal(t, http.StatusOK, code, "%s: %v", step.status, body["message"])
	}

	// 4. Table is free and nothing is left to audit
	table, err := registry.GetTable(context.Background(), tableID)
	require.NoError(t, err)
	assert.True(t, table.IsActive)
	mismatches, err := registry.Audit(context.Background(), "warung-1")
	require.NoError(t, err)
	assert.Empty(t, mismatches)

	assert.Equal(t, 1, rec.Count(events.OrderCreated))
	assert.Equal(t, 5, rec.Count(events.OrderStatusChanged))
	assert.Equal(t, 1, rec.Count(events.TableReleased))
}

func TestSweepSessions(t *testing.T) {
	sessions := scanner.NewSessions(time.Nanosecond, func() *scanner.Guard {
		return scanner.NewGuard(nil, nil, scanner.DefaultConfig())
	})
	sessions.Get("tablet-1", time.Now().Add(-time.Hour))
	require.Equal(t, 1, sessions.Len())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sweepSessions(ctx, sessions)
	assert.Equal(t, 1, sessions.Len(), "a cancelled sweeper exits without evicting")

	assert.Equal(t, 1, sessions.Evict(time.Now()))
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, repository.Migrate(db))
	return db
}

func login(t *testing.T, r *gin.Engine, email, password string) string {
	t.Helper()
	code, body := call(t, r, "POST", "/login", map[string]string{"email": email, "password": password})
	require.Equal(t, http.StatusOK, code, body["message"])
	return body["data"].(map[string]interface{})["token"].(string)
}

// call sends body as JSON and decodes the JSON response. headers are name/value pairs.
func call(t *testing.T, r *gin.Engine, method, path string, body interface{}, headers ...string) (int, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return w.Code, resp
}
