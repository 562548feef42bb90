// Package main provides the entrypoint for the NutriPlan food data API server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/nutriplan/nutriplan/internal/api"
	"github.com/nutriplan/nutriplan/internal/database"
	"github.com/nutriplan/nutriplan/internal/fooddata"
	"github.com/nutriplan/nutriplan/internal/fooddata/cache"
	"github.com/nutriplan/nutriplan/internal/fooddata/fatsecret"
	"github.com/nutriplan/nutriplan/internal/fooddata/localdb"
	"github.com/nutriplan/nutriplan/internal/fooddata/postgres"
	"github.com/nutriplan/nutriplan/internal/resilience"
	"github.com/nutriplan/nutriplan/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "nutriplan-api"

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting NutriPlan food data API")

	// Get configuration from environment
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	otlpEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otlpEndpoint == "" {
		otlpEndpoint = "localhost:4317"
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	// Initialize OpenTelemetry
	ctx := context.Background()
	telemetryEnabled := os.Getenv("OTEL_ENABLED") == "true"

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    env,
		OTLPEndpoint:   otlpEndpoint,
		Enabled:        telemetryEnabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if telemetryEnabled {
		log.Info().
			Str("otlp_endpoint", otlpEndpoint).
			Msg("OpenTelemetry initialized")
	}

	// Initialize metrics
	metrics, err := telemetry.NewMetrics(tp.Meter)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	// Optional shared cache store
	var shared cache.SharedStore
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     redisAddr,
			Password: os.Getenv("REDIS_PASSWORD"),
		})
		if pingErr := client.Ping(ctx).Err(); pingErr != nil {
			log.Warn().Err(pingErr).Msg("redis unreachable, continuing without shared cache")
		} else {
			shared = cache.NewRedisStore(client, "fooddata")
			log.Info().Str("addr", redisAddr).Msg("shared cache connected")
		}
	}

	// Fallback provider: a Postgres catalog when configured, otherwise the
	// embedded local dataset.
	var fallback fooddata.Provider
	if os.Getenv("CATALOG_BACKEND") == "postgres" {
		dbConfig := database.ConfigFromEnv()
		pool, poolErr := database.Connect(ctx, dbConfig)
		if poolErr != nil {
			log.Fatal().Err(poolErr).Msg("failed to connect to catalog database")
		}
		defer pool.Close()
		log.Info().
			Str("host", dbConfig.Host).
			Int("port", dbConfig.Port).
			Str("database", dbConfig.Database).
			Msg("catalog database connected")
		fallback = postgres.NewProvider(pool, log)
	} else {
		local, localErr := localdb.NewProvider()
		if localErr != nil {
			log.Fatal().Err(localErr).Msg("failed to load local food catalog")
		}
		fallback = local
	}

	// Upstream provider, only when real credentials are present
	var upstream fooddata.Provider
	clientID := os.Getenv("FATSECRET_CLIENT_ID")
	clientSecret := os.Getenv("FATSECRET_CLIENT_SECRET")
	if credentialsConfigured(clientID, clientSecret) {
		breaker := resilience.NewBreaker[[]byte](resilience.BreakerConfig{
			Name:         fatsecret.ProviderName,
			IsSuccessful: fatsecret.BreakerSuccess,
			OnStateChange: func(name string, from, to resilience.State) {
				log.Warn().
					Str("breaker", name).
					Str("from", string(from)).
					Str("to", string(to)).
					Msg("circuit breaker state change")
				metrics.RecordBreakerTransition(context.Background(), name, string(from), string(to))
			},
		})
		upstream = fatsecret.NewClient(fatsecret.ClientConfig{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Breaker:      breaker,
			Logger:       log,
		})
		log.Info().Msg("upstream food data provider initialized")
	} else {
		log.Warn().Msg("upstream credentials not configured, serving from local catalog only")
	}

	foodService := fooddata.NewService(fooddata.ServiceConfig{
		Upstream: upstream,
		Fallback: fallback,
		Shared:   shared,
		Logger:   log,
		Metrics:  metrics,
	})
	log.Info().
		Bool("upstream", foodService.Configured()).
		Str("fallback", fallback.Name()).
		Msg("food data service initialized")

	// Create router with configuration
	router := api.NewRouter(api.RouterConfig{
		Version:     Version,
		BuildTime:   BuildTime,
		Logger:      log,
		FoodService: foodService,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}

// credentialsConfigured reports whether the OAuth2 credentials look real.
// Placeholder values left in env files count as unconfigured.
func credentialsConfigured(id, secret string) bool {
	if id == "" || secret == "" {
		return false
	}
	for _, v := range []string{id, secret} {
		if strings.HasPrefix(v, "your_") || strings.HasPrefix(v, "YOUR_") {
			return false
		}
	}
	return true
}
