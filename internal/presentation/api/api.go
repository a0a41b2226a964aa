package api

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	_ "github.com/hilthontt/votehub/docs"
	"github.com/hilthontt/votehub/internal/infrastructure/configs"
	"github.com/hilthontt/votehub/internal/infrastructure/logging"
	"github.com/hilthontt/votehub/internal/infrastructure/metrics"
	"github.com/hilthontt/votehub/internal/infrastructure/ratelimiter"
	healthHandler "github.com/hilthontt/votehub/internal/presentation/handler/health"
	roomHandler "github.com/hilthontt/votehub/internal/presentation/handler/rooms"
	sessionHandler "github.com/hilthontt/votehub/internal/presentation/handler/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	requestTimeout  = 60 * time.Second
	shutdownTimeout = 5 * time.Second
)

type Application struct {
	config         configs.Config
	roomHandler    *roomHandler.Handler
	healthHandler  *healthHandler.Handler
	sessionHandler *sessionHandler.Handler
	logger         logging.Logger
	ratelimiter    ratelimiter.Limiter
	metrics        *metrics.Metrics
	gatherer       prometheus.Gatherer
}

func NewApplication(
	config configs.Config,
	roomHandler *roomHandler.Handler,
	healthHandler *healthHandler.Handler,
	sessionHandler *sessionHandler.Handler,
	logger logging.Logger,
	ratelimiter ratelimiter.Limiter,
	metrics *metrics.Metrics,
	gatherer prometheus.Gatherer,
) *Application {
	return &Application{
		config:         config,
		roomHandler:    roomHandler,
		healthHandler:  healthHandler,
		sessionHandler: sessionHandler,
		logger:         logger,
		ratelimiter:    ratelimiter,
		metrics:        metrics,
		gatherer:       gatherer,
	}
}

func (app *Application) Mount() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(app.loggerMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(app.prometheusMiddleware)

	r.Use(app.rateLimiterMiddleware)
	r.Use(app.enableCors)

	if app.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(app.gatherer, promhttp.HandlerOpts{}))
	}
	r.Handle("/debug/vars", expvar.Handler())
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	r.Route("/api", func(r chi.Router) {
		// Long-lived; must stay outside the request timeout.
		r.Get("/ws", app.sessionHandler.ConnectHandler)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(requestTimeout))

			r.Route("/rooms", func(r chi.Router) {
				r.Post("/", app.roomHandler.CreateRoomHandler)
				r.Get("/{code}", app.roomHandler.GetRoomHandler)
				r.Get("/{code}/audit", app.roomHandler.GetRoomAuditHandler)
			})

			r.Get("/health", app.healthHandler.GetHealth)
			r.Get("/healthz", app.healthHandler.GetHealth)
			r.Get("/ready", app.healthHandler.GetHealth)
			r.Get("/live", app.healthHandler.GetHealth)
		})
	})

	return r
}

// Run serves mux until ctx is cancelled or SIGINT/SIGTERM arrives, then
// drains in-flight requests.
func (app *Application) Run(ctx context.Context, mux http.Handler) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", app.config.HTTP.Host, app.config.HTTP.Port),
		Handler:      otelhttp.NewHandler(mux, "votehub-http"),
		WriteTimeout: app.config.HTTP.WriteTimeout,
		ReadTimeout:  app.config.HTTP.ReadTimeout,
		IdleTimeout:  time.Minute,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown := make(chan error, 1)

	go func() {
		<-ctx.Done()

		app.healthHandler.MarkUnhealthy()
		app.logger.Info(logging.General, logging.Shutdown, "shutting down http server", map[logging.ExtraKey]any{
			"addr": srv.Addr,
		})

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		shutdown <- srv.Shutdown(shutdownCtx)
	}()

	app.logger.Info(logging.General, logging.Startup, "server has started", map[logging.ExtraKey]any{
		"addr": srv.Addr,
	})

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	if err := <-shutdown; err != nil {
		return err
	}

	app.logger.Info(logging.General, logging.Shutdown, "server has stopped", map[logging.ExtraKey]any{
		"addr": srv.Addr,
	})

	return nil
}
