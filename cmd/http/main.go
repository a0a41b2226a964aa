package main

import (
	"context"
	"expvar"
	"log"
	"runtime"
	"time"

	"github.com/hilthontt/votehub/internal/application/voting"
	"github.com/hilthontt/votehub/internal/domain"
	"github.com/hilthontt/votehub/internal/infrastructure/configs"
	"github.com/hilthontt/votehub/internal/infrastructure/events"
	"github.com/hilthontt/votehub/internal/infrastructure/logging"
	"github.com/hilthontt/votehub/internal/infrastructure/messaging"
	"github.com/hilthontt/votehub/internal/infrastructure/metrics"
	"github.com/hilthontt/votehub/internal/infrastructure/ratelimiter"
	"github.com/hilthontt/votehub/internal/infrastructure/repository"
	"github.com/hilthontt/votehub/internal/infrastructure/tracing"
	"github.com/hilthontt/votehub/internal/infrastructure/ws"
	"github.com/hilthontt/votehub/internal/persistence/db"
	persistence "github.com/hilthontt/votehub/internal/persistence/repository"
	"github.com/hilthontt/votehub/internal/presentation/api"
	"github.com/hilthontt/votehub/internal/presentation/handler/health"
	"github.com/hilthontt/votehub/internal/presentation/handler/rooms"
	"github.com/hilthontt/votehub/internal/presentation/handler/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

// @title          votehub API
// @version        1.0
// @description    Real-time voting rooms: REST for room creation and snapshots, a WebSocket session for room commands and live state.
// @BasePath       /api
func main() {
	configPath := configs.DetermineConfigPath()
	cfg, err := configs.Load(configPath)
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.NewLogger(&logging.LoggerConfig{
		FilePath: cfg.Logger.FilePath,
		Encoding: cfg.Logger.Encoding,
		Level:    cfg.Logger.Level,
		Logger:   cfg.Logger.Logger,
	})
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tracerCfg := tracing.Config{
		ServiceName: cfg.Tracing.ServiceName,
		Environment: cfg.Tracing.Environment,
	}
	if cfg.Tracing.Enabled {
		tracerCfg.Endpoint = cfg.Tracing.Endpoint
	}
	shutdownTracer, err := tracing.InitTracer(ctx, tracerCfg)
	if err != nil {
		logger.Fatal(logging.General, logging.Startup, "failed to initialize the tracer", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracer(shutdownCtx)
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	roomRepository := repository.NewRoomRepository(cfg.RoomStore.Capacity, cfg.RoomStore.IdleExpiry)

	wsCore := ws.NewCore(logger, m, cfg.WS.BroadcastQueueSize)
	go wsCore.Run(ctx)

	var auditRepository domain.RoomAuditRepository
	if cfg.Audit.Enabled {
		mongoCfg := &db.MongoConfig{URI: cfg.Audit.MongoDBURI, Database: cfg.Audit.Database}
		mongoClient, err := db.NewMongoClient(ctx, mongoCfg, logger)
		if err != nil {
			logger.Fatal(logging.MongoDB, logging.Startup, "failed to connect to mongodb", map[logging.ExtraKey]any{
				logging.ErrorMessage: err.Error(),
			})
		}
		defer func() { _ = db.DisconnectMongo(context.Background(), mongoClient) }()

		auditRepository = persistence.NewRoomAuditLogRepository(db.GetDatabase(mongoClient, mongoCfg))
		if err := auditRepository.EnsureIndexes(ctx); err != nil {
			logger.Warn(logging.MongoDB, logging.Startup, "failed to ensure audit indexes", map[logging.ExtraKey]any{
				logging.ErrorMessage: err.Error(),
			})
		}
	}

	var publisher voting.EventPublisher = events.NopPublisher{}
	if cfg.Events.Enabled {
		rabbitmq, err := messaging.NewRabbitMQ(cfg.Events.RabbitMQURI, logger)
		if err != nil {
			logger.Fatal(logging.RabbitMQ, logging.Startup, "failed to connect to rabbitmq", map[logging.ExtraKey]any{
				logging.ErrorMessage: err.Error(),
			})
		}
		defer rabbitmq.Close()

		publisher = events.NewRoomPublisher(rabbitmq)

		if auditRepository != nil {
			roomConsumer := events.NewRoomConsumer(rabbitmq, auditRepository, logger)
			go func() {
				if err := roomConsumer.Listen(ctx); err != nil {
					logger.Error(logging.RabbitMQ, logging.Consume, "room consumer stopped", map[logging.ExtraKey]any{
						logging.ErrorMessage: err.Error(),
					})
				}
			}()
		}
	}

	votingService := voting.NewService(roomRepository, wsCore, publisher, logger, m, voting.Config{
		MaxOptions:      cfg.Rooms.MaxOptions,
		MaxTimerSeconds: cfg.Rooms.MaxTimerSeconds,
		MaxAudioBytes:   cfg.Chat.MaxAudioBytes,
	})
	defer votingService.Close()

	limiterCache := ratelimiter.NewInMemory()
	if cfg.RateLimiter.Backend == "redis" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn(logging.Redis, logging.Startup, "redis unreachable, rate limits fail open until it recovers", map[logging.ExtraKey]any{
				logging.ErrorMessage: err.Error(),
			})
		}
		_ = limiterCache.Close()
		limiterCache = ratelimiter.NewRedis(redisClient)
	}
	defer limiterCache.Close()

	httpLimiter, err := ratelimiter.New(ratelimiter.Options{
		MaxRatePerSecond: cfg.RateLimiter.MaxRatePerSecond,
		MaxBurst:         cfg.RateLimiter.MaxBurst,
		Cache:            limiterCache,
		CacheTTL:         cfg.RateLimiter.CacheTTL,
		SourceHeaderKey:  cfg.RateLimiter.SourceHeaderKey,
	})
	if err != nil {
		logger.Fatal(logging.General, logging.Startup, "invalid http rate limit", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
	}

	// Command buckets are keyed by connection id, which only this process knows.
	commandCache := ratelimiter.NewInMemory()
	defer commandCache.Close()
	commandLimiter, err := ratelimiter.New(ratelimiter.Options{
		MaxRatePerSecond: cfg.WS.CommandsPerSecond,
		MaxBurst:         cfg.WS.CommandBurst,
		Cache:            commandCache,
		CacheTTL:         time.Minute,
	})
	if err != nil {
		logger.Fatal(logging.General, logging.Startup, "invalid command rate limit", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
	}

	creationLimiter := ratelimiter.NewFixedWindowRateLimiter(cfg.Rooms.CreateLimit, cfg.Rooms.CreateWindow)
	defer creationLimiter.Close()

	roomHandler := rooms.NewHandler(votingService, creationLimiter, httpLimiter, auditRepository, logger)
	healthHandler := health.NewHandler(votingService, wsCore)
	sessionHandler := session.NewHandler(wsCore, votingService, session.Options{
		Client: ws.ClientConfig{
			MaxMessageBytes: cfg.WS.MaxMessageBytes,
			SendBuffer:      cfg.WS.SendBuffer,
		},
		Limiter:         commandLimiter,
		CreationLimiter: creationLimiter,
		Sourcer:         httpLimiter,
		AllowedOrigins:  cfg.HTTP.AllowedOrigins,
		Logger:          logger,
		Metrics:         m,
	})

	app := api.NewApplication(*cfg, roomHandler, healthHandler, sessionHandler, logger, httpLimiter, m, registry)

	expvar.Publish("goroutines", expvar.Func(func() any {
		return runtime.NumGoroutine()
	}))
	expvar.Publish("rooms", expvar.Func(func() any {
		return votingService.RoomCount()
	}))
	expvar.Publish("connections", expvar.Func(func() any {
		return wsCore.ClientCount()
	}))

	mux := app.Mount()
	if err := app.Run(ctx, mux); err != nil {
		logger.Fatal(logging.General, logging.Shutdown, "server stopped with error", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
	}
}
