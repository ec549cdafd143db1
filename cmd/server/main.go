package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	fulfillmentapp "github.com/orderbridge/backend/internal/application/fulfillment"
	"github.com/orderbridge/backend/internal/domain/fulfillment"
	"github.com/orderbridge/backend/internal/infrastructure/auth"
	"github.com/orderbridge/backend/internal/infrastructure/cache"
	"github.com/orderbridge/backend/internal/infrastructure/config"
	"github.com/orderbridge/backend/internal/infrastructure/designplugin"
	"github.com/orderbridge/backend/internal/infrastructure/factory"
	"github.com/orderbridge/backend/internal/infrastructure/imageproxy"
	"github.com/orderbridge/backend/internal/infrastructure/logger"
	"github.com/orderbridge/backend/internal/infrastructure/scheduler"
	"github.com/orderbridge/backend/internal/infrastructure/shopify"
	"github.com/orderbridge/backend/internal/infrastructure/storage"
	"github.com/orderbridge/backend/internal/infrastructure/telemetry"
	"github.com/orderbridge/backend/internal/interfaces/http/handler"
	"github.com/orderbridge/backend/internal/interfaces/http/middleware"
	"github.com/orderbridge/backend/internal/interfaces/http/router"
)

// sessionTokenLeeway absorbs clock skew between the admin browser and this host
const sessionTokenLeeway = 5 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	logCfg := &logger.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Output:  cfg.Log.Output,
		Service: cfg.App.Name,
	}
	log, err := logger.New(logCfg)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Telemetry
	telCfg := telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telCfg, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, telCfg, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	loggerProvider, err := telemetry.NewLoggerProvider(ctx, telCfg, cfg.Telemetry.LogExportEnabled, log)
	if err != nil {
		log.Fatal("Failed to initialize logger provider", zap.Error(err))
	}
	if loggerProvider.IsEnabled() {
		// Rebuild the logger so entries also reach the collector
		log, err = logger.New(logCfg, loggerProvider.ZapCore(telCfg.ServiceName, logger.ParseLevel(cfg.Log.Level)))
		if err != nil {
			panic("Failed to initialize logger: " + err.Error())
		}
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting order bridge",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.Bool("auto_push", cfg.Factory.AutoPush),
	)

	// Caches
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.ConnectRedis(ctx, cache.RedisConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.Error("Error closing Redis", zap.Error(err))
			}
		}()
		log.Info("Redis connected", zap.String("host", cfg.Redis.Host))
	}
	caches := cache.NewFactory(redisClient, cfg.Redis.KeyPrefix, cache.Options{
		DesignMaxEntries:   cfg.Cache.DesignMaxEntries,
		DesignTTL:          cfg.Cache.DesignTTL,
		DeliveryMaxEntries: cfg.Cache.DeliveryMaxEntries,
	}, log)
	designStore := caches.DesignStore()

	// Upstream and factory clients
	syncMetrics, err := telemetry.NewSyncMetrics(meterProvider.Meter("orderbridge/sync"))
	if err != nil {
		log.Fatal("Failed to create sync metrics", zap.Error(err))
	}

	factoryCfg := factory.NewConfig(cfg.Factory.BaseURL, cfg.Factory.SecretKey)
	factoryCfg.MaxInFlight = cfg.Factory.MaxInFlight
	factoryCfg.Cooldown = cfg.Factory.Cooldown
	if cfg.Factory.TimeoutSeconds > 0 {
		factoryCfg.TimeoutSeconds = cfg.Factory.TimeoutSeconds
	}
	factoryClient, err := factory.NewClient(factoryCfg,
		factory.WithLogger(log.Named("factory")),
		factory.WithRecorder(syncMetrics),
	)
	if err != nil {
		log.Fatal("Failed to create factory client", zap.Error(err))
	}

	shopClient, err := shopify.NewClient(&shopify.Config{
		Shop:           cfg.Shopify.Shop,
		AccessToken:    cfg.Shopify.AccessToken,
		APIVersion:     cfg.Shopify.APIVersion,
		TimeoutSeconds: cfg.Shopify.TimeoutSeconds,
	}, shopify.WithLogger(log.Named("shopify")))
	if err != nil {
		log.Fatal("Failed to create Shopify client", zap.Error(err))
	}

	designSource := newDesignSource(cfg, designStore, log)

	// Order synchronization
	location := time.Local
	if cfg.Mapping.Timezone != "" {
		location, err = time.LoadLocation(cfg.Mapping.Timezone)
		if err != nil {
			log.Fatal("Invalid mapping timezone", zap.String("timezone", cfg.Mapping.Timezone), zap.Error(err))
		}
	}
	pipeline := fulfillmentapp.NewImagePipeline(designSource, cfg.Qstomizer.Shop, fulfillmentapp.ImageOptions{
		AllowPlaceholder: cfg.Mapping.AllowPlaceholder,
		ForcePNGDPI:      cfg.Mapping.ForcePNGDPI,
		PrintDPI:         cfg.Mapping.PrintDPI,
		ProxyBase:        cfg.Mapping.ProxyBase,
	}, log.Named("images"))
	syncService := fulfillmentapp.NewSyncService(fulfillmentapp.SyncServiceConfig{
		Upstream: shopClient,
		Factory:  factoryClient,
		Mapper:   fulfillmentapp.NewPayloadMapper(pipeline, fulfillmentapp.WithLocation(location)),
		Config:   fulfillmentapp.SyncConfig{AutoPush: cfg.Factory.AutoPush},
		Logger:   log.Named("sync"),
		Metrics:  syncMetrics,
	})
	log.Info("Image resolution chain", zap.Strings("resolvers", pipeline.Resolvers()))

	// Pull metrics and the image proxy
	pullMetrics := telemetry.NewPullMetrics(factoryClient.Throttle(), designCacheStats(designStore))
	proxy := newImageProxy(ctx, cfg, pullMetrics, log)

	// HTTP
	engine, err := router.New(ctx, router.Config{
		ServiceName:       telCfg.ServiceName,
		Logger:            log,
		Meter:             meterProvider.Meter("orderbridge/http"),
		TracingEnabled:    tracerProvider.IsEnabled(),
		CORSAllowOrigins:  cfg.HTTP.CORSAllowOrigins,
		TrustedProxies:    cfg.HTTP.TrustedProxies,
		MaxBodySize:       cfg.HTTP.MaxBodySize,
		RateLimitEnabled:  cfg.HTTP.RateLimitEnabled,
		RateLimitRequests: cfg.HTTP.RateLimitRequests,
		RateLimitWindow:   cfg.HTTP.RateLimitWindow,
		DevEndpoints:      cfg.HTTP.DevEndpoints,
	}, router.Handlers{
		Webhook: handler.NewWebhookHandler(syncService, handler.WebhookConfig{
			Secret:     cfg.Shopify.APISecret,
			Deliveries: caches.IdempotencyStore(),
		}),
		Tasks:   handler.NewTaskHandler(syncService),
		Dev:     handler.NewDevHandler(syncService, shopClient),
		Image:   handler.NewImageHandler(proxy),
		System:  handler.NewSystemHandler(pullMetrics.Handler()),
		Session: middleware.SessionAuth(auth.NewSessionTokenVerifier(cfg.Shopify.APISecret, cfg.Shopify.APIKey, sessionTokenLeeway)),
	})
	if err != nil {
		log.Fatal("Failed to build router", zap.Error(err))
	}

	// Periodic sync
	var trigger *scheduler.SyncTrigger
	if cfg.Scheduler.Enabled {
		trigger, err = newSyncTrigger(cfg.Scheduler, syncService, log.Named("scheduler"))
		if err != nil {
			log.Fatal("Failed to create sync trigger", zap.Error(err))
		}
		if err := trigger.Start(ctx); err != nil {
			log.Fatal("Failed to start sync trigger", zap.Error(err))
		}
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if trigger != nil {
		if err := trigger.Stop(shutdownCtx); err != nil {
			log.Warn("Sync trigger did not stop cleanly", zap.Error(err))
		}
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	for name, shutdown := range map[string]func(context.Context) error{
		"tracer": tracerProvider.Shutdown,
		"meter":  meterProvider.Shutdown,
		"logger": loggerProvider.Shutdown,
	} {
		if err := shutdown(shutdownCtx); err != nil {
			log.Warn("Telemetry shutdown failed", zap.String("provider", name), zap.Error(err))
		}
	}

	log.Info("Server exited gracefully")
}

// newDesignSource returns the Qstomizer client, or nil when lookups are not configured
func newDesignSource(cfg *config.Config, store cache.DesignStore, log *zap.Logger) fulfillment.DesignSource {
	pluginCfg := &designplugin.Config{
		Shop:     cfg.Qstomizer.Shop,
		APIKey:   cfg.Qstomizer.APIKey,
		Endpoint: cfg.Qstomizer.Endpoint,
	}
	if !pluginCfg.Enabled() {
		log.Info("Design plugin lookups disabled")
		return nil
	}
	client, err := designplugin.NewClient(pluginCfg, store, designplugin.WithLogger(log.Named("designplugin")))
	if err != nil {
		log.Fatal("Failed to create design plugin client", zap.Error(err))
	}
	return client
}

// designCacheStats adapts the design cache counters for Prometheus
func designCacheStats(store cache.DesignStore) telemetry.CacheStats {
	switch c := store.(type) {
	case *cache.InMemoryDesignCache:
		return c.Stats
	case *cache.TieredDesignCache:
		return func() (int64, int64) {
			l1, l2, misses := c.Stats()
			return l1 + l2, misses
		}
	}
	return nil
}

// newImageProxy builds the DPI proxy. Rewritten PNGs are cached in the bucket
// when one is configured, in memory otherwise.
func newImageProxy(ctx context.Context, cfg *config.Config, recorder imageproxy.CacheRecorder, log *zap.Logger) *imageproxy.Proxy {
	opts := []imageproxy.Option{
		imageproxy.WithLogger(log.Named("imageproxy")),
		imageproxy.WithCacheRecorder(recorder),
	}
	if cfg.ImageProxy.Timeout > 0 {
		opts = append(opts, imageproxy.WithHTTPClient(&http.Client{Timeout: cfg.ImageProxy.Timeout}))
	}
	if cfg.ImageProxy.MaxBytes > 0 {
		opts = append(opts, imageproxy.WithMaxBytes(cfg.ImageProxy.MaxBytes))
	}
	if !cfg.ImageProxy.CacheEnabled {
		return imageproxy.New(opts...)
	}

	if cfg.Storage.Bucket == "" {
		log.Info("Image cache kept in memory")
		return imageproxy.New(append(opts, imageproxy.WithStore(storage.NewMemoryObjectStore()))...)
	}
	store, err := storage.NewS3ObjectStorage(&cfg.Storage,
		storage.WithLogger(log.Named("storage")),
		storage.WithCacheControl(handler.ImmutableCacheControl),
	)
	if err != nil {
		log.Fatal("Failed to create object storage", zap.Error(err))
	}
	if err := store.EnsureBucket(ctx); err != nil {
		log.Fatal("Failed to prepare image cache bucket", zap.String("bucket", cfg.Storage.Bucket), zap.Error(err))
	}
	log.Info("Image cache stored in bucket", zap.String("bucket", cfg.Storage.Bucket))
	return imageproxy.New(append(opts, imageproxy.WithStore(store))...)
}

// newSyncTrigger schedules the fulfillment poll and, when enabled, the push sweep
func newSyncTrigger(cfg config.SchedulerConfig, svc *fulfillmentapp.SyncService, log *zap.Logger) (*scheduler.SyncTrigger, error) {
	jobs := []scheduler.Job{{
		Name: "poll-fulfillments",
		Run: func(ctx context.Context) error {
			res, err := svc.PollFulfillments(ctx)
			if err != nil {
				return err
			}
			log.Info("Fulfillment poll finished", zap.Int("checked", res.Checked), zap.Int("created", res.Created))
			return nil
		},
	}}
	if cfg.PushSweep {
		jobs = append(jobs, scheduler.Job{
			Name: "push-placed",
			Run: func(ctx context.Context) error {
				res, err := svc.PushOrders(ctx, nil)
				if err != nil {
					return err
				}
				log.Info("Push sweep finished", zap.Int("pushed", res.Pushed))
				return nil
			},
		})
	}
	return scheduler.NewSyncTrigger(scheduler.SyncTriggerConfig{
		Interval:   cfg.Interval,
		RunTimeout: cfg.RunTimeout,
		RunOnStart: cfg.RunOnStart,
	}, log, jobs...)
}
