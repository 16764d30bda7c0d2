package main

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/yeremiapane/table-orders/config"
	"github.com/yeremiapane/table-orders/controllers"
	"github.com/yeremiapane/table-orders/events"
	"github.com/yeremiapane/table-orders/kds"
	"github.com/yeremiapane/table-orders/middlewares"
	"github.com/yeremiapane/table-orders/models"
	"github.com/yeremiapane/table-orders/repository"
	"github.com/yeremiapane/table-orders/router"
	"github.com/yeremiapane/table-orders/scanner"
	"github.com/yeremiapane/table-orders/services"
	"github.com/yeremiapane/table-orders/utils"
)

const (
	sessionSweepInterval = time.Minute
	loginRPS             = 5.0 / 60 // 5 per minute
)

func main() {
	utils.InitLogger()
	config.LoadEnv()

	cfg, err := config.Load()
	if err != nil {
		utils.ErrorLogger.Fatalf("Invalid configuration: %v", err)
	}
	utils.SetJWTSecret(cfg.JWTSecret)
	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize DB
	db, err := config.InitDB(cfg)
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to connect to database: %v", err)
	}
	if err := repository.Migrate(db); err != nil {
		utils.ErrorLogger.Fatalf("Failed to AutoMigrate: %v", err)
	}
	utils.InfoLogger.Println("AutoMigrate completed.")

	// Event fan-out: KDS screens always, the broker when configured
	hub := kds.NewHub()
	publisher := events.Multi{hub}
	if cfg.AMQPURL != "" {
		amqpPub, err := events.NewAMQPPublisher(cfg.AMQPURL, events.DefaultExchange)
		if err != nil {
			utils.ErrorLogger.Printf("AMQP unavailable, events stay local: %v", err)
		} else {
			defer amqpPub.Close()
			publisher = append(publisher, amqpPub)
		}
	}

	var idem services.IdempotencyStore = services.NewMemoryIdempotency(services.DefaultIdempotencyTTL)
	if client := config.NewRedisClient(cfg); client != nil {
		defer client.Close()
		idem = services.NewRedisIdempotency(client, services.DefaultIdempotencyTTL)
	}

	auth := services.NewStaffAuth(repository.NewUserRepository(db), cfg.TokenTTL)
	if cfg.AdminEmail != "" {
		if err := auth.EnsureAdmin(context.Background(), cfg.AdminEmail, cfg.AdminPassword); err != nil {
			utils.ErrorLogger.Fatalf("Failed to create admin account: %v", err)
		}
	}

	stores := repository.NewStores(db)
	tx := repository.NewTransactor(db)
	registry := services.NewTableRegistry(stores, publisher)
	saga := services.NewOrderSaga(stores, tx, registry, publisher, services.OrderSagaConfig{
		Mode:          cfg.SagaMode,
		ReadyEstimate: cfg.ReadyEstimate,
	})
	machine := services.NewOrderStatusMachine(stores, registry, publisher)
	workflow := services.NewOrderRequestWorkflow(stores, tx, registry, publisher)
	utils.InfoLogger.WithField("mode", saga.Mode()).Info("order saga ready")

	if cfg.AuditInterval > 0 {
		monitor := services.NewOccupancyMonitor(registry)
		monitor.Interval = cfg.AuditInterval
		monitor.Start()
		defer monitor.Stop()
	}

	sessions := scanner.NewSessions(scanner.DefaultSessionTTL, func() *scanner.Guard {
		return scanner.NewGuard(registry, logHandoff, scanner.DefaultConfig())
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sweepSessions(ctx, sessions)

	r := router.SetupRouter(router.Controllers{
		Users:    controllers.NewUserController(auth),
		Tables:   controllers.NewTableController(registry),
		Orders:   controllers.NewOrderController(saga, machine, idem),
		Requests: controllers.NewOrderRequestController(workflow),
		Scans:    controllers.NewScanController(sessions),
		KDS:      controllers.NewKDSController(hub),
	}, router.Options{
		CORSOrigin:   cfg.CORSOrigin,
		RateLimiter:  middlewares.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
		LoginLimiter: middlewares.NewRateLimiter(loginRPS, 5),
	})

	utils.InfoLogger.Printf("Listening on port %s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		utils.ErrorLogger.Fatal(err)
	}
}

func logHandoff(_ context.Context, table *models.Table, payload scanner.Payload) {
	utils.InfoLogger.WithFields(logrus.Fields{
		"restaurant_id": payload.RestaurantID,
		"table_id":      table.ID,
		"table_number":  payload.TableNumber,
	}).Info("table scan accepted")
}

func sweepSessions(ctx context.Context, sessions *scanner.Sessions) {
	ticker := time.NewTicker(sessionSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := sessions.Evict(now); n > 0 {
				utils.InfoLogger.Printf("evicted %d idle scan sessions", n)
			}
		}
	}
}
