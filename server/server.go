package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/telecart-dev/reward-engine/auth"
	"github.com/telecart-dev/reward-engine/config"
	"github.com/telecart-dev/reward-engine/engine"
	apperrors "github.com/telecart-dev/reward-engine/errors"
	"github.com/telecart-dev/reward-engine/middleware"
	"github.com/telecart-dev/reward-engine/store"
)

// RewardHistory lists a user's reward ledger entries.
type RewardHistory interface {
	ListByUser(ctx context.Context, userID string, limit int) ([]store.RewardEntry, error)
}

// App represents the reward engine HTTP application
type App struct {
	engine     *gin.Engine
	config     *config.Config
	logger     zerolog.Logger
	httpServer *http.Server
	onShutdown []func()

	rewardHandler   *RewardHandler
	promoHandler    *PromoHandler
	orderHandler    *OrderHandler
	referralHandler *ReferralHandler
	adminHandler    *AdminHandler
}

// Options holds server configuration options. The engine components are built
// by the caller (cmd wiring) and injected here.
type Options struct {
	Config      *config.Config
	Logger      zerolog.Logger
	Draw        *engine.DrawEngine
	Streak      *engine.StreakEngine
	Promos      *engine.PromoValidator
	Fulfillment *engine.FulfillmentEngine
	Referrals   *engine.ReferralAttributor
	Rotator     *engine.ScarcityRotator
	Rewards     RewardHistory
}

// New creates a new reward engine application
func New(opts Options) *App {
	if opts.Config.IsDevelopment() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	app := &App{
		engine: gin.New(),
		config: opts.Config,
		logger: opts.Logger,
	}

	app.rewardHandler = NewRewardHandler(opts.Draw, opts.Streak, opts.Rewards, opts.Logger)
	app.promoHandler = NewPromoHandler(opts.Promos, opts.Logger)
	app.orderHandler = NewOrderHandler(opts.Fulfillment, opts.Logger)
	app.referralHandler = NewReferralHandler(opts.Referrals, opts.Logger)
	app.adminHandler = NewAdminHandler(opts.Rotator, opts.Logger)

	return app
}

// UseCommonMiddlewares adds common middlewares to the application
func (a *App) UseCommonMiddlewares() {
	// Recovery middleware (must be first)
	a.engine.Use(middleware.Recovery(a.logger))
	a.engine.Use(middleware.TraceID())
	a.engine.Use(middleware.Logging(a.logger))
	a.engine.Use(middleware.Timeout(a.config.Server.RequestTimeout))
	if a.config.Server.EnableCORS {
		a.engine.Use(middleware.CORS())
	}
}

// UseMiddleware adds a custom middleware
func (a *App) UseMiddleware(m gin.HandlerFunc) {
	a.engine.Use(m)
}

// RegisterHealthCheck adds health check endpoints
func (a *App) RegisterHealthCheck() {
	a.engine.GET("/health", a.healthCheck)
	a.engine.GET("/api/health", a.healthCheck)
}

func (a *App) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now(),
		"service":   a.config.Environment,
	})
}

// RegisterRoutes registers the reward engine API routes.
//
// Routes registered:
//   - POST /api/rewards/wheel/spin      -> RewardHandler.SpinWheel
//   - POST /api/rewards/slots/play     -> RewardHandler.PlaySlots
//   - POST /api/rewards/checkin        -> RewardHandler.CheckIn
//   - GET  /api/rewards/history        -> RewardHandler.History
//   - POST /api/promos/validate        -> PromoHandler.Validate
//   - POST /api/referrals/attach       -> ReferralHandler.Attach
//   - POST /api/orders                 -> OrderHandler.Place
//   - GET  /api/orders/:id             -> OrderHandler.Get
//   - POST /api/orders/:id/notify      -> OrderHandler.Notify
//   - POST /api/orders/:id/status      -> OrderHandler.UpdateStatus (admin)
//   - POST /api/admin/flash-sales/rotate -> AdminHandler.Rotate (admin)
//   - POST /api/admin/promos/cleanup     -> AdminHandler.CleanupPromos (admin)
func (a *App) RegisterRoutes() {
	api := a.engine.Group("/api")
	api.Use(auth.JWTMiddleware(a.config.JWT.Secret, a.logger))

	rewards := api.Group("/rewards")
	{
		rewards.POST("/wheel/spin", a.rewardHandler.SpinWheel)
		rewards.POST("/slots/play", a.rewardHandler.PlaySlots)
		rewards.POST("/checkin", a.rewardHandler.CheckIn)
		rewards.GET("/history", a.rewardHandler.History)
	}

	api.POST("/promos/validate", a.promoHandler.Validate)
	api.POST("/referrals/attach", a.referralHandler.Attach)

	orders := api.Group("/orders")
	{
		orders.POST("", a.orderHandler.Place)
		orders.GET("/:id", a.orderHandler.Get)
		orders.POST("/:id/notify", a.orderHandler.Notify)
		orders.POST("/:id/status", a.adminOnly(), a.orderHandler.UpdateStatus)
	}

	admin := api.Group("/admin")
	admin.Use(a.adminOnly())
	{
		admin.POST("/flash-sales/rotate", a.adminHandler.Rotate)
		admin.POST("/promos/cleanup", a.adminHandler.CleanupPromos)
	}

	a.logger.Info().Msg("Reward engine routes registered: /api")
}

// adminOnly rejects callers whose user ID is not in the configured admin
// list. The list is resolved once at startup.
func (a *App) adminOnly() gin.HandlerFunc {
	admins := make(map[string]bool, len(a.config.Engine.AdminIDs))
	for _, id := range a.config.Engine.AdminIDs {
		admins[id] = true
	}

	return func(c *gin.Context) {
		userID, ok := auth.GetUserID(c)
		if !ok || !admins[userID] {
			Forbidden(c, apperrors.New(apperrors.ErrForbidden, "admin access required"))
			c.Abort()
			return
		}
		c.Next()
	}
}

// Router returns the Gin engine for custom route registration
func (a *App) Router() *gin.Engine {
	return a.engine
}

// OnShutdown registers a function to be called on shutdown
func (a *App) OnShutdown(fn func()) {
	a.onShutdown = append(a.onShutdown, fn)
}

// Run starts the HTTP server
func (a *App) Run() error {
	addr := fmt.Sprintf(":%d", a.config.Server.Port)

	a.httpServer = &http.Server{
		Addr:         addr,
		Handler:      a.engine,
		ReadTimeout:  a.config.Server.ReadTimeout,
		WriteTimeout: a.config.Server.WriteTimeout,
		IdleTimeout:  a.config.Server.IdleTimeout,
	}

	go func() {
		a.logger.Info().
			Int("port", a.config.Server.Port).
			Str("environment", a.config.Environment).
			Msg("Starting HTTP server")

		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	return a.waitForShutdown()
}

// RunWithContext starts the HTTP server with context
func (a *App) RunWithContext(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", a.config.Server.Port)

	a.httpServer = &http.Server{
		Addr:         addr,
		Handler:      a.engine,
		ReadTimeout:  a.config.Server.ReadTimeout,
		WriteTimeout: a.config.Server.WriteTimeout,
		IdleTimeout:  a.config.Server.IdleTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		a.logger.Info().
			Int("port", a.config.Server.Port).
			Str("environment", a.config.Environment).
			Msg("Starting HTTP server")

		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		return a.shutdown()
	case err := <-errChan:
		return err
	}
}

func (a *App) waitForShutdown() error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	return a.shutdown()
}

func (a *App) shutdown() error {
	a.logger.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, fn := range a.onShutdown {
		fn()
	}

	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.logger.Error().Err(err).Msg("Error during server shutdown")
		return err
	}

	a.logger.Info().Msg("Server shutdown complete")
	return nil
}

// Config returns the application configuration
func (a *App) Config() *config.Config {
	return a.config
}

// Logger returns the application logger
func (a *App) Logger() zerolog.Logger {
	return a.logger
}
