package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/son28bmt/Bus-Ticketing-sub002/internal/config"
	"github.com/son28bmt/Bus-Ticketing-sub002/internal/database"
	"github.com/son28bmt/Bus-Ticketing-sub002/internal/handlers"
	"github.com/son28bmt/Bus-Ticketing-sub002/internal/middleware"
	"github.com/son28bmt/Bus-Ticketing-sub002/internal/services"
	"github.com/son28bmt/Bus-Ticketing-sub002/pkg/jwt"
	"github.com/son28bmt/Bus-Ticketing-sub002/pkg/notify"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	logger.Info("Starting Bus Ticketing Backend")
	logger.Infof("Version: %s, Build Time: %s", version, buildTime)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Set log level
	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Set Gin mode
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// Initialize database connection
	logger.Info("Connecting to database...")
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("Database connection established")

	// Initialize repositories
	tripRepo := database.NewTripRepository(db)
	reservationRepo := database.NewReservationRepository(db)
	paymentRepo := database.NewPaymentRepository(db)
	voucherRepo := database.NewVoucherRepository(db)

	// Initialize notification delivery
	var notifier notify.Notifier
	if cfg.Notify.Mode == "production" && cfg.Notify.APIURL != "" {
		logger.Info("Initializing HTTP notification gateway...")
		notifier = notify.NewHTTPGateway(notify.HTTPGatewayConfig{
			APIURL:  cfg.Notify.APIURL,
			APIKey:  cfg.Notify.APIKey,
			Sender:  cfg.Notify.Sender,
			Timeout: cfg.Notify.Timeout,
		})
	} else {
		logger.Info("Notification gateway in development mode (messages are logged)")
		notifier = notify.NewLogNotifier()
	}

	// Initialize services
	logger.Info("Initializing services...")
	jwtService := jwt.NewService(cfg.JWT.Secret, cfg.JWT.AccessTokenExpiry)
	inventoryService := services.NewInventoryService(tripRepo, reservationRepo)
	voucherService := services.NewVoucherService(voucherRepo)
	reservationService := services.NewReservationService(
		tripRepo,
		reservationRepo,
		paymentRepo,
		inventoryService,
		voucherService,
		cfg.Booking,
	)
	gatewayService := services.NewGatewayService(cfg.Gateway)
	reconciliationService := services.NewReconciliationService(reservationRepo, paymentRepo, notifier)
	tripLifecycleService := services.NewTripLifecycleService(tripRepo)
	logger.Info("Services initialized")

	// Initialize handlers
	reservationHandler := handlers.NewReservationHandler(reservationService)
	paymentHandler := handlers.NewPaymentHandler(gatewayService, reconciliationService, paymentRepo, reservationRepo)
	tripStatusHandler := handlers.NewTripStatusHandler(tripLifecycleService)

	// Start the stale-payment sweeper: abandoned checkouts are cancelled
	// through the same path as a manual cancellation, releasing seats and
	// rolling back vouchers.
	sweeperCtx, stopSweeper := context.WithCancel(context.Background())
	go runSweeper(sweeperCtx, reservationService, cfg.Booking.PendingPaymentTTL)

	// Initialize Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))

	// CORS configuration
	corsConfig := cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	router.Use(cors.New(corsConfig))

	// Health check endpoint
	router.GET("/health", healthCheckHandler(db))

	// API routes
	v1 := router.Group("/api/v1")
	{
		// Gateway callback is signature-gated, not JWT-gated: the external
		// processor calls it directly.
		v1.GET("/payments/callback", paymentHandler.HandleCallback)

		authed := v1.Group("")
		authed.Use(middleware.AuthMiddleware(jwtService))
		{
			authed.POST("/reservations", reservationHandler.CreateReservation)
			authed.GET("/reservations", reservationHandler.ListMyReservations)
			authed.GET("/reservations/:id", reservationHandler.GetReservation)
			authed.POST("/reservations/:id/cancel", reservationHandler.RequestCancellation)
			authed.POST("/reservations/:id/retry-payment", reservationHandler.RetryPayment)
			authed.GET("/payments/:orderId/redirect", paymentHandler.BuildRedirect)

			staff := authed.Group("")
			staff.Use(middleware.RequireRole(middleware.RoleCompanyStaff, middleware.RoleAdmin))
			{
				staff.POST("/reservations/:id/approve-cancellation", reservationHandler.ApproveCancellation)
				staff.POST("/reservations/:id/refund", paymentHandler.RequestRefund)
				staff.POST("/reservations/:id/complete-refund", paymentHandler.CompleteRefund)
				staff.POST("/payments/:orderId/query", paymentHandler.QueryTransaction)
				staff.PATCH("/trips/:id/status", tripStatusHandler.UpdateStatus)
				staff.POST("/trips/:id/issues", tripStatusHandler.ReportIssue)
				staff.GET("/trips/:id/status-log", tripStatusHandler.GetStatusLog)
			}
		}
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Infof("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	stopSweeper()

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited successfully")
}

// runSweeper periodically cancels reservations whose payment stayed pending
// past the configured TTL. The interval is a quarter of the TTL so a stale
// hold never outlives the window by much.
func runSweeper(ctx context.Context, reservations *services.ReservationService, ttl time.Duration) {
	interval := ttl / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reservations.SweepStalePending(100)
		}
	}
}

// requestLogger middleware for logging HTTP requests
func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		fields := logrus.Fields{
			"status":     c.Writer.Status(),
			"method":     c.Request.Method,
			"path":       path,
			"query":      query,
			"ip":         c.ClientIP(),
			"latency_ms": latency.Milliseconds(),
			"user_agent": c.Request.UserAgent(),
		}

		if c.Writer.Status() >= 500 {
			logger.WithFields(fields).Error("Request completed")
		} else {
			logger.WithFields(fields).Info("Request completed")
		}
	}
}

// healthCheckHandler returns server and database health
func healthCheckHandler(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database unreachable",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": version,
		})
	}
}
