package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/Amund211/batchroom/internal/adapters/cache"
	"github.com/Amund211/batchroom/internal/adapters/coachingapi"
	"github.com/Amund211/batchroom/internal/adapters/database"
	"github.com/Amund211/batchroom/internal/adapters/keystore"
	"github.com/Amund211/batchroom/internal/app"
	"github.com/Amund211/batchroom/internal/config"
	"github.com/Amund211/batchroom/internal/logging"
	"github.com/Amund211/batchroom/internal/ports"
	"github.com/Amund211/batchroom/internal/reporting"
	"github.com/Amund211/batchroom/internal/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	_ "golang.org/x/crypto/x509roots/fallback"
	"golang.org/x/net/http2"
)

const serviceName = "batchroom"

func main() {
	ctx := context.Background()

	instanceID := uuid.New().String()

	handler := logging.NewGoogleCloudTracingLogHandler(slog.NewJSONHandler(os.Stdout, nil), os.Getenv("GOOGLE_CLOUD_PROJECT"))
	logger := slog.New(handler).With("instanceID", instanceID)

	fail := func(msg string, args ...any) {
		logger.Error(msg, args...)
		os.Exit(1)
	}

	conf, err := config.ConfigFromEnv()
	if err != nil {
		fail("Failed to load config", "error", err.Error())
	}
	logger.Info("Loaded config", "config", conf.NonSensitiveString())

	shutdownOTel, err := telemetry.SetupOTelSDK(ctx, serviceName, instanceID)
	if err != nil {
		fail("Failed to initialize OpenTelemetry", "error", err.Error())
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(shutdownCtx); err != nil {
			logger.Error("Failed to shut down OpenTelemetry", "error", err.Error())
		}
	}()
	logger.Info("Initialized OpenTelemetry")

	sentryMiddleware, flush, err := reporting.NewSentryMiddlewareOrMock(conf)
	if err != nil {
		fail("Failed to initialize Sentry", "error", err.Error())
	}
	defer flush()
	logger.Info("Initialized Sentry middleware")

	var store cache.KeyStore
	switch conf.CacheBackend() {
	case config.CacheBackendMemory:
		store = cache.NewMemoryKeyStore(time.Now)
	case config.CacheBackendPostgres:
		logger.Info("Initializing database connection")
		db, err := database.NewCloudsqlPostgresDatabase(ctx, conf)
		if err != nil {
			fail("Failed to initialize database connection", "error", err.Error())
		}
		defer db.Close()
		logger.Info("Initialized database connection")

		schemaName := database.GetSchemaName(!conf.IsProduction())

		err = database.NewDatabaseMigrator(db, logger.With("component", "migrator")).Migrate(ctx, schemaName)
		if err != nil {
			fail("Failed to migrate database", "error", err.Error())
		}

		store = keystore.NewPostgres(db, schemaName, time.Now)
	case config.CacheBackendRedis:
		redisStore, err := keystore.NewRedis(ctx, keystore.RedisConfig{
			Addr:      conf.RedisAddr(),
			Password:  conf.RedisPassword(),
			DB:        0,
			Namespace: fmt.Sprintf("%s:%s", serviceName, conf.Environment()),
		}, time.Now)
		if err != nil {
			fail("Failed to initialize redis key store", "error", err.Error())
		}
		defer redisStore.Close()
		store = redisStore
	default:
		fail("Unknown cache backend", "cacheBackend", string(conf.CacheBackend()))
	}
	logger.Info("Initialized key store", "cacheBackend", string(conf.CacheBackend()))

	swrCache, err := cache.NewSWRCache(store)
	if err != nil {
		fail("Failed to initialize SWR cache", "error", err.Error())
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	if err := http2.ConfigureTransport(transport); err != nil {
		fail("Failed to configure http2 transport", "error", err.Error())
	}
	httpClient := &http.Client{
		Timeout:   10 * time.Second,
		Transport: otelhttp.NewTransport(transport),
	}

	coachingAPI, err := coachingapi.NewCoachingAPIOrMock(conf, httpClient)
	if err != nil {
		fail("Failed to initialize coaching API", "error", err.Error())
	}
	logger.Info("Initialized coaching API")

	batchService := app.NewBatchService(swrCache, coachingAPI)

	allowedOrigins, err := ports.NewDomainSuffixes(conf.AllowedOriginSuffixes()...)
	if err != nil {
		fail("Failed to initialize allowed origins", "error", err.Error())
	}

	mux := http.NewServeMux()
	stopRateLimiters := ports.RegisterBatchRoutes(
		mux,
		batchService,
		allowedOrigins,
		conf.TrustedProxyHops(),
		logger,
		sentryMiddleware,
	)
	defer stopRateLimiters()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", conf.Port()),
		Handler:           otelhttp.NewHandler(mux, serviceName),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Init complete")
	err = server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		logger.Info("Server shutdown")
	} else {
		fail("Server error", "error", err.Error())
	}
}
