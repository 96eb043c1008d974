package api

import (
	"fmt"
	"log/slog"
	"net/http"

	"cinebook/internal/cache"
	"cinebook/internal/clock"
	"cinebook/internal/config"
	"cinebook/internal/database"
	"cinebook/internal/external"
	"cinebook/internal/handlers"
	"cinebook/internal/logger"
	"cinebook/internal/messaging"
	"cinebook/internal/metrics"
	"cinebook/internal/middleware"
	"cinebook/internal/reaper"
	"cinebook/internal/repository"
	"cinebook/internal/search"
	"cinebook/internal/service"

	"github.com/gin-gonic/gin"
)

// Server wires the full reservation core: HTTP API, storage, search, cache,
// messaging and the lock expiry reaper.
type Server struct {
	router   *gin.Engine
	config   *config.Config
	db       *database.DB
	nats     *messaging.NATSClient
	valkey   *cache.ValkeyClient
	es       *search.Client
	services *service.Services
	repos    *repository.Repositories
	reaper   *reaper.Reaper
}

func NewServer(cfg *config.Config) *Server {
	gin.SetMode(cfg.GinMode)

	db, err := database.Connect(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}

	if err := db.RunMigrations(); err != nil {
		logger.Fatal("Failed to run migrations", "error", err)
	}

	natsClient, err := messaging.NewNATSClient(cfg.NATS)
	if err != nil {
		logger.Fatal("Failed to connect to NATS", "error", err)
	}

	esClient, err := search.NewClient(cfg.Elasticsearch)
	if err != nil {
		logger.Fatal("Failed to connect to Elasticsearch", "error", err)
	}

	// Valkey is an optimization, not a dependency: without it auth just
	// falls through to Postgres.
	valkeyClient, err := cache.NewValkeyClient(cfg.Valkey)
	if err != nil {
		slog.Warn("Valkey unavailable, auth cache disabled", "error", err)
		valkeyClient = nil
	}

	gatewayClient := external.NewGatewayClient(cfg.Payment)

	repos := repository.New(db, esClient)

	clk := clock.System()
	services := service.New(service.Deps{
		Locks:     repos.Locks,
		Bookings:  repos.Bookings,
		Ledger:    repos.Ledger,
		Showtimes: repos.Showtimes,
		Users:     repos.Users,
		Publisher: natsClient,
		Gateway:   gatewayClient,
		Clock:     clk,
		LockCfg:   cfg.Lock,
	})

	sweeper := reaper.New(repos.Locks, repos.Bookings, natsClient, clk, cfg.Reaper)

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(middleware.CORS())
	router.Use(middleware.Logger())
	router.Use(metrics.HTTPMetrics())

	server := &Server{
		router:   router,
		config:   cfg,
		db:       db,
		nats:     natsClient,
		valkey:   valkeyClient,
		es:       esClient,
		services: services,
		repos:    repos,
		reaper:   sweeper,
	}

	server.setupRoutes()

	return server
}

func (s *Server) setupRoutes() {
	h := handlers.New(s.services)

	api := s.router.Group("/api")
	api.Use(middleware.BasicAuth(s.repos.Users, s.valkey))
	{
		api.POST("/reservations", h.CreateReservation)

		bookings := api.Group("/bookings")
		{
			bookings.GET("", h.ListBookings)
			bookings.GET("/:id", h.GetBooking)
			bookings.GET("/:id/transactions", h.ListBookingTransactions)
			bookings.PATCH("/confirm", h.ConfirmBooking)
			bookings.PATCH("/cancel", h.CancelBooking)
			bookings.PATCH("/refund", h.RequestRefund)
			bookings.PATCH("/refund/complete", h.CompleteRefund)
		}

		locks := api.Group("/locks")
		{
			locks.GET("/:id", h.GetLock)
			locks.PATCH("/extend", h.ExtendLock)
			locks.PATCH("/release", h.ReleaseLock)
		}

		showtimes := api.Group("/showtimes")
		{
			showtimes.POST("", h.CreateShowtime)
			showtimes.GET("", h.ListShowtimes)
			showtimes.GET("/:id", h.GetShowtime)
		}

		payments := api.Group("/payments")
		{
			payments.POST("/initiate", h.InitiatePayment)
			payments.POST("/attempts", h.RecordPaymentAttempt)
			payments.GET("/:transaction_id", h.GetTransaction)
		}
	}

	// The gateway webhook authenticates by signed token, not Basic Auth.
	s.router.POST("/api/payments/notifications", h.PaymentNotification)

	s.router.GET("/health", s.healthCheck)
	s.router.GET("/metrics", metrics.Handler())
}

func (s *Server) healthCheck(c *gin.Context) {
	dbHealth := s.db.HealthCheck(c.Request.Context())

	status := http.StatusOK
	if dbHealth.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"status":   dbHealth.Status,
		"service":  "cinebook-api",
		"version":  "1.0.0",
		"database": dbHealth,
	})
}

// Run starts the reaper and serves HTTP until the listener fails.
func (s *Server) Run() error {
	s.reaper.Start()
	addr := fmt.Sprintf(":%s", s.config.Port)
	return s.router.Run(addr)
}

// GetRouter exposes the router for tests.
func (s *Server) GetRouter() *gin.Engine {
	return s.router
}

// Handler exposes the router as an http.Handler for graceful shutdown wiring.
func (s *Server) Handler() http.Handler {
	return s.router
}

// StartBackground starts the reaper without blocking on HTTP.
func (s *Server) StartBackground() {
	s.reaper.Start()
}

// Cleanup stops the reaper and closes connections.
func (s *Server) Cleanup() error {
	if s.reaper != nil {
		s.reaper.Stop()
	}

	if s.nats != nil {
		if err := s.nats.Close(); err != nil {
			slog.Error("Error closing NATS connection", "error", err)
		}
	}

	if s.valkey != nil {
		if err := s.valkey.Close(); err != nil {
			slog.Error("Error closing Valkey connection", "error", err)
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			slog.Error("Error closing database connection", "error", err)
			return err
		}
	}

	return nil
}
