package application

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jeongyiya/steno-caption/internal/config"
	"github.com/jeongyiya/steno-caption/internal/handler"
	"github.com/jeongyiya/steno-caption/internal/router"
	"github.com/jeongyiya/steno-caption/internal/service"
	"github.com/jeongyiya/steno-caption/internal/session"
	"go.uber.org/zap"
)

// API is the HTTP + WebSocket API application.
type API struct {
	cfg     *config.Config
	srv     *http.Server
	router  *service.BroadcastRouter
	sweeper *Sweeper
	log     *zap.Logger
}

// NewLogger builds the zap logger for cfg: development output when
// APP_ENV=development, JSON otherwise, at LOG_LEVEL.
func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	zc := zap.NewProductionConfig()
	if cfg.AppEnv == "development" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = level
	return zc.Build()
}

// NewAPI creates the API application: validates config, builds the in-memory
// registry, authorization store, broadcast router and HTTP router.
func NewAPI(cfg *config.Config, logger *zap.Logger) (*API, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	jobs := service.NewJobRegistry(cfg.JobTTL)
	limiter := service.NewAttemptLimiter(cfg.PINAttemptRate, cfg.PINAttemptBurst)
	store := service.NewAuthorizationStore(jobs, limiter, cfg.SessionLifetime)
	broadcast := service.NewBroadcastRouter(cfg.SubscriberBuffer, logger)
	jobSvc := service.NewJobService(jobs, broadcast, cfg.RequireWriterToken, logger)
	issuer := session.NewIssuer(cfg.SessionSecret, cfg.SecureCookie)

	sweeper, err := NewSweeper(cfg.SweepSchedule, map[string]Sweepable{
		"jobs":     jobSvc,
		"sessions": store,
	}, logger)
	if err != nil {
		return nil, err
	}

	wsCfg := handler.WSConfig{
		ReadBufferSize:  cfg.WSReadBufferSize,
		WriteBufferSize: cfg.WSWriteBufferSize,
		MaxMessageSize:  cfg.WSMaxMessageSize,
		PingInterval:    cfg.WSPingInterval,
		PingTimeout:     cfg.WSPingTimeout,
		AllowedOrigins:  cfg.WSAllowedOrigins,
	}
	r, err := router.New(
		handler.NewJobHandler(jobSvc, store, issuer, logger),
		handler.NewStreamWSHandler(jobSvc, store, issuer, wsCfg, logger),
		handler.NewEventsHandler(jobSvc, store, issuer, logger),
		handler.NewHealthHandler(),
		cfg.TrustedProxies,
		logger,
	)
	if err != nil {
		return nil, err
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &API{cfg: cfg, srv: srv, router: broadcast, sweeper: sweeper, log: logger}, nil
}

// Handler returns the HTTP handler (used by tests).
func (a *API) Handler() http.Handler { return a.srv.Handler }

// Run starts the HTTP server and blocks until ctx is cancelled; then shuts down gracefully.
func (a *API) Run(ctx context.Context) error {
	host := a.cfg.AppHost
	if host == "0.0.0.0" {
		host = "localhost"
	}
	base := "http://" + host + ":" + a.cfg.HTTPPort
	a.log.Info("HTTP server listening",
		zap.String("addr", a.srv.Addr),
		zap.String("create_job", base+"/create_job"),
		zap.String("websocket", "ws://"+host+":"+a.cfg.HTTPPort+"/ws"),
		zap.String("events", base+"/events"))

	a.sweeper.Start()

	errCh := make(chan error, 1)
	go func() {
		if err := a.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err, ok := <-errCh:
		if ok {
			a.sweeper.Stop()
			a.router.Close()
			return fmt.Errorf("http: %w", err)
		}
	}

	a.sweeper.Stop()
	// Closing subscriptions ends WebSocket and SSE loops so Shutdown can drain.
	a.router.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
