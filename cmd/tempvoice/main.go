package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tempvoice/internal/core/ports"
	"tempvoice/internal/core/services"
	handlers "tempvoice/internal/handlers/http"
	"tempvoice/internal/infrastructure/bridge"
	"tempvoice/internal/infrastructure/distributed"
	"tempvoice/internal/infrastructure/guildconfig"
	"tempvoice/internal/infrastructure/logsink"
	"tempvoice/internal/infrastructure/middleware"
	"tempvoice/internal/infrastructure/monitoring"
	"tempvoice/internal/infrastructure/reliability"
	"tempvoice/internal/infrastructure/repositories/memory"
	"tempvoice/pkg/circuitbreaker"
	"tempvoice/pkg/config"
	"tempvoice/pkg/logger"
	"tempvoice/pkg/tracing"
	"tempvoice/pkg/workerpool"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

var version = "dev"

func main() {
	flags := pflag.NewFlagSet("tempvoice", pflag.ContinueOnError)
	configPath := flags.StringP("config", "c", envOr("TEMPVOICE_CONFIG", "configs/config.yaml"), "path to the service config file")
	envFile := flags.String("env-file", ".env", "dotenv file loaded before the config")
	showVersion := flags.Bool("version", false, "print the version and exit")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if *showVersion {
		fmt.Println(version)
		return
	}

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to load %s: %v\n", *envFile, err)
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	base, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer base.Sync()
	log := base.Sugar()

	if err := run(cfg, log, base); err != nil {
		log.Errorw("tempvoice stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *zap.SugaredLogger, base *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp, err := tracing.Init(cfg.Tracing, version)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}

	store, err := guildconfig.NewStore(ctx, cfg.Guilds.Dir, log.Named("guildconfig"))
	if err != nil {
		return fmt.Errorf("load guild config: %w", err)
	}

	var authService services.AuthService
	if cfg.Auth.Enabled {
		authService = services.NewAuthService(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	}

	collector := monitoring.NewPrometheusCollector(nil)

	pool := workerpool.New(cfg.Workers.Count, cfg.Workers.QueueSize)
	bridgeCfg := bridge.Config{
		PingInterval:   cfg.Bridge.PingInterval,
		ReadTimeout:    cfg.Bridge.ReadTimeout,
		WriteTimeout:   cfg.Bridge.WriteTimeout,
		AllowedOrigins: cfg.Bridge.AllowedOrigins,
	}
	if cfg.RateLimiting.Enabled {
		bridgeCfg.MessagesPerSecond = cfg.RateLimiting.Bridge.MessagesPerSecond
		bridgeCfg.Burst = cfg.RateLimiting.Bridge.Burst
	}
	bridgeServer := bridge.NewServer(bridgeCfg, authService, pool, log.Named("bridge"))
	bridgeServer.SetMetrics(collector)

	gateway := bridge.NewPlatform(bridgeServer)
	var platform ports.Platform = gateway
	if cfg.CircuitBreaker.Enabled {
		platform = reliability.NewPlatformWrapper(gateway, circuitbreaker.Config{
			FailureThreshold:    cfg.CircuitBreaker.FailureThreshold,
			SuccessThreshold:    cfg.CircuitBreaker.SuccessThreshold,
			Timeout:             cfg.CircuitBreaker.Timeout,
			MaxRequestsHalfOpen: cfg.CircuitBreaker.MaxRequestsHalfOpen,
		}, log.Named("breaker"), nil)
	}
	if cfg.Platform.GuildCacheTTL > 0 {
		guilds := reliability.NewGuildCache(platform, cfg.Platform.GuildCacheTTL)
		defer guilds.Close()
		platform = guilds
	}

	sinks := logsink.Multi{
		logsink.NewZapSink(log.Named("activity")),
		logsink.NewPlatformSink(platform, cfg.Platform.CommandTimeout, log.Named("logsink")),
	}

	var redisClient *redis.Client
	var eventBus *distributed.EventBus
	if cfg.Redis.Enabled {
		redisClient, err = distributed.NewRedisClient(ctx, cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.PoolSize, cfg.Redis.ConnectAttempts, log.Named("redis"))
		if err != nil {
			return err
		}
		defer redisClient.Close()

		eventBus = distributed.NewEventBus(redisClient, cfg.Redis.Channel, uuid.NewString(),
			cfg.Redis.BatchSize, cfg.Redis.FlushInterval, log.Named("eventbus"))
		sinks = append(sinks, eventBus)
	}

	rooms := memory.NewMemoryRoomRepository()
	cooldown := services.NewCooldownService(cfg.CooldownWindow(), nil)
	lifecycle := services.NewLifecycleService(rooms, store, cooldown, platform, sinks, log.Named("lifecycle"),
		services.WithCommandTimeout(cfg.Platform.CommandTimeout),
		services.WithMetrics(collector),
	)
	controls := services.NewControlService(lifecycle, store, platform, gateway, sinks, log.Named("controls"), cfg.Interaction.InputTimeout)
	dispatcher := bridge.NewDispatcher(lifecycle, controls)
	bridgeServer.Bind(lifecycle, dispatcher)

	collector.TrackActiveRooms(func() int { return rooms.Count(context.Background()) })

	health := monitoring.NewHealthChecker()
	health.AddBridgeCheck(bridgeServer.Connected, cfg.Monitoring.HealthCheckInterval, cfg.Monitoring.HealthCheckTimeout)
	health.AddGuildConfigCheck(store, cfg.Monitoring.HealthCheckInterval, cfg.Monitoring.HealthCheckTimeout)
	if redisClient != nil {
		health.AddRedisCheck(redisClient, cfg.Monitoring.HealthCheckInterval, cfg.Monitoring.HealthCheckTimeout)
	}
	health.StartBackgroundChecks(ctx, log.Named("health"))

	router := newRouter(cfg, log, base, routerDeps{
		auth:       authService,
		health:     health,
		bridge:     bridgeServer,
		lifecycle:  lifecycle,
		cooldown:   cooldown,
		dispatcher: dispatcher,
		store:      store,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	log.Infow("tempvoice ready",
		"version", version,
		"address", cfg.Server.Address,
		"guilds", store.Snapshot().Len(),
		"cooldown", cfg.CooldownWindow(),
		"auth", cfg.Auth.Enabled,
		"redis", cfg.Redis.Enabled,
	)

	select {
	case <-ctx.Done():
		log.Infow("shutting down")
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warnw("http shutdown", "error", err)
	}
	if err := pool.Stop(shutdownCtx); err != nil {
		log.Warnw("worker pool shutdown", "error", err)
	}
	if eventBus != nil {
		if err := eventBus.Close(shutdownCtx); err != nil {
			log.Warnw("event bus flush", "error", err, "dropped", eventBus.Dropped())
		}
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Warnw("tracer shutdown", "error", err)
	}
	return nil
}

type routerDeps struct {
	auth       services.AuthService
	health     *monitoring.HealthChecker
	bridge     *bridge.Server
	lifecycle  *services.LifecycleService
	cooldown   *services.CooldownService
	dispatcher *bridge.Dispatcher
	store      *guildconfig.Store
}

func newRouter(cfg *config.Config, log *zap.SugaredLogger, base *zap.Logger, deps routerDeps) *gin.Engine {
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	requests := logger.NewContextLogger(base.Named("http"))

	router := gin.New()
	router.Use(
		middleware.RecoveryMiddleware(log),
		middleware.TracingMiddleware(),
		requestLogger(requests),
		middleware.NewHTTPRateLimitMiddleware(cfg),
		middleware.ErrorHandlerMiddleware(log),
	)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "version": version, "checks": deps.health.LastReport().Checks})
	})
	router.GET("/ready", func(c *gin.Context) {
		report := deps.health.Readiness(c.Request.Context())
		code := http.StatusOK
		if report.Status != monitoring.StatusHealthy {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, report)
	})
	if cfg.Monitoring.PrometheusEnabled {
		router.GET(cfg.Monitoring.MetricsPath, gin.WrapH(promhttp.Handler()))
	}
	router.GET(cfg.Bridge.Path, gin.WrapF(deps.bridge.HandleWebSocket))

	api := router.Group("/api/v1")
	guard := func(role services.Role) []gin.HandlerFunc {
		if deps.auth == nil {
			return nil
		}
		return []gin.HandlerFunc{middleware.AuthMiddleware(deps.auth), middleware.RequireRole(deps.auth, role)}
	}
	operator := api.Group("", guard(services.RoleOperator)...)
	admin := api.Group("", guard(services.RoleAdmin)...)
	gatewayGroup := api.Group("", guard(services.RoleBridge)...)

	handlers.NewRoomHandler(deps.lifecycle, deps.cooldown).SetupRoutes(operator)
	handlers.NewGuildHandler(deps.store, log.Named("guilds")).SetupRoutes(operator, admin)
	handlers.NewGatewayHandler(deps.lifecycle, deps.dispatcher).SetupRoutes(gatewayGroup)
	if deps.auth != nil {
		handlers.NewTokenHandler(deps.auth).SetupRoutes(admin)
	}
	return router
}

// requestLogger logs each request with its id, trace id and token subject.
func requestLogger(cl *logger.ContextLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header("X-Request-ID", requestID)
		ctx := logger.WithRequestID(c.Request.Context(), requestID)
		c.Request = c.Request.WithContext(ctx)

		start := time.Now()
		c.Next()

		if claims, ok := middleware.ClaimsFromContext(c); ok {
			ctx = logger.WithSubject(ctx, claims.Subject)
		}
		cl.LogRequest(ctx, c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start).Milliseconds())
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
