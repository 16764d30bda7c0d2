package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeremiapane/table-orders/controllers"
	"github.com/yeremiapane/table-orders/middlewares"
)

// Controllers groups everything the router mounts.
type Controllers struct {
	Users    *controllers.UserController
	Tables   *controllers.TableController
	Orders   *controllers.OrderController
	Requests *controllers.OrderRequestController
	Scans    *controllers.ScanController
	KDS      *controllers.KDSController
}

type Options struct {
	CORSOrigin   string
	RateLimiter  *middlewares.RateLimiter
	LoginLimiter *middlewares.RateLimiter // stricter, /login only
}

func SetupRouter(ctrl Controllers, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddlewares(opts.CORSOrigin))
	r.Use(middlewares.LoggerMiddleware())
	if opts.RateLimiter != nil {
		r.Use(opts.RateLimiter.RateLimit())
	}

	// ----------------------------------------------------------------
	//                      PUBLIC ROUTES
	// ----------------------------------------------------------------
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	login := r.Group("/")
	if opts.LoginLimiter != nil {
		login.Use(opts.LoginLimiter.RateLimit())
	}
	login.POST("/login", ctrl.Users.Login)

	// -- CUSTOMER (Tanpa Auth) --
	r.GET("/restaurants/:restaurant_id/tables/:table_number", ctrl.Tables.LookupTable)
	r.POST("/scan", ctrl.Scans.Scan)
	r.POST("/scan/reset", ctrl.Scans.ResetScan)

	r.POST("/orders", ctrl.Orders.CreateOrder)
	r.GET("/orders/:order_id", ctrl.Orders.GetOrderByID)

	r.POST("/order-requests", ctrl.Requests.CreateRequest)
	r.GET("/order-requests/:request_id", ctrl.Requests.GetRequest)

	// ----------------------------------------------------------------
	//                      STAFF / ADMIN
	// ----------------------------------------------------------------
	admin := r.Group("/admin")
	admin.Use(middlewares.AuthMiddleware(), middlewares.RequireRoles("admin", "staff"))
	{
		admin.GET("/tables", ctrl.Tables.GetAllTables)
		admin.POST("/tables", ctrl.Tables.CreateTable)
		admin.GET("/tables/audit", ctrl.Tables.AuditTables)
		admin.GET("/tables/:table_id", ctrl.Tables.GetTableByID)
		admin.POST("/tables/:table_id/qr", ctrl.Tables.BindQR)
		admin.POST("/tables/:table_id/resolve", ctrl.Tables.ResolveTable)

		admin.GET("/orders", ctrl.Orders.GetAllOrders)
		admin.PATCH("/orders/:order_id/status", ctrl.Orders.UpdateOrderStatus)

		admin.GET("/order-requests", ctrl.Requests.ListRequests)
		admin.POST("/order-requests/:request_id/approve", ctrl.Requests.ApproveRequest)
		admin.POST("/order-requests/:request_id/reject", ctrl.Requests.RejectRequest)
		admin.POST("/order-requests/:request_id/seat", ctrl.Requests.SeatRequest)
		admin.POST("/order-requests/:request_id/complete", ctrl.Requests.CompleteRequest)

		admin.POST("/users", middlewares.RequireRoles("admin"), ctrl.Users.Register)
	}

	// Kitchen staff move orders through preparation too
	chef := r.Group("/chef")
	chef.Use(middlewares.AuthMiddleware(), middlewares.RequireRoles("admin", "chef"))
	{
		chef.GET("/orders", ctrl.Orders.GetAllOrders)
		chef.PATCH("/orders/:order_id/status", ctrl.Orders.UpdateOrderStatus)
	}

	ws := r.Group("/ws")
	ws.Use(middlewares.WebSocketAuthMiddleware())
	{
		ws.GET("/:role", middlewares.RoleCheck(), ctrl.KDS.KDSHandler)
	}

	return r
}
