package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/edforecast/edforecast/internal/config"
	"github.com/edforecast/edforecast/internal/domain/arrival"
	"github.com/edforecast/edforecast/internal/domain/forecast"
	"github.com/edforecast/edforecast/internal/domain/holiday"
	"github.com/edforecast/edforecast/internal/domain/livestatus"
	"github.com/edforecast/edforecast/internal/domain/profile"
	"github.com/edforecast/edforecast/internal/domain/triage"
	"github.com/edforecast/edforecast/internal/platform/auth"
	"github.com/edforecast/edforecast/internal/platform/cache"
	"github.com/edforecast/edforecast/internal/platform/db"
	"github.com/edforecast/edforecast/internal/platform/fhir"
	"github.com/edforecast/edforecast/internal/platform/metrics"
	"github.com/edforecast/edforecast/internal/platform/middleware"
	"github.com/edforecast/edforecast/internal/platform/mlclient"
	"github.com/edforecast/edforecast/internal/platform/publish"
)

const (
	version         = "0.1.0"
	redisAttempts   = 5
	shutdownTimeout = 10 * time.Second
	maxBodySize     = "1M"
)

// routeRegistrar is implemented by every domain handler.
type routeRegistrar interface {
	RegisterRoutes(api *echo.Group, fhirGroup *echo.Group)
}

func main() {
	rootCmd := &cobra.Command{
		Use:          "ed-forecast-server",
		Short:        "Emergency department arrival, triage and influenza forecasting API",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(profileCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(forecastCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// loadConfig loads and validates the configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func profileConfig(cfg *config.Config) profile.Config {
	return profile.Config{
		ArrivalFile: cfg.Resolve(cfg.ArrivalProfile),
		HourlyFile:  cfg.Resolve(cfg.HourlyProfile),
		TriageFile:  cfg.Resolve(cfg.TriageProfile),
		Strict:      cfg.ProfileStrict,
	}
}

// loadProfiles never fails: a broken profile set leaves the profile
// endpoints answering 503 while the rest of the server runs.
func loadProfiles(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *profile.Holder {
	set, err := profile.Load(ctx, profileConfig(cfg))
	if err != nil {
		logger.Error().Err(err).Str("kind", profile.Classify(err)).Msg("profiles unavailable")
		return profile.NewHolder(nil, err)
	}
	logger.Info().
		Str("arrival", set.Sources.ArrivalFile).
		Bool("hourly", set.Hourly != nil).
		Int("triage_labels", len(set.Triage.Labels())).
		Msg("profiles loaded")
	return profile.NewHolder(set, nil)
}

func newPublisher(cfg *config.Config, c *cache.Cache, logger zerolog.Logger) (publish.Publisher, error) {
	switch cfg.PublishBackend {
	case "redis":
		if !c.Available() {
			return nil, fmt.Errorf("PUBLISH_BACKEND=redis but redis is not connected")
		}
		return publish.NewRedis(c), nil
	case "mqtt":
		return publish.NewMQTT(cfg.MQTTURL, cfg.MQTTTopicPrefix, logger)
	default:
		return publish.Nop{}, nil
	}
}

// newTriageService wires the remote classifier when CLASSIFIER_URL is set.
// Without it risk assessment answers 503 and the hourly lookup still works.
func newTriageService(cfg *config.Config, holder *profile.Holder, loc *time.Location, logger zerolog.Logger) *triage.Service {
	if cfg.ClassifierURL == "" {
		return triage.NewService(holder, nil, nil, loc, logger)
	}
	columns, err := mlclient.LoadColumns(cfg.Resolve(cfg.ClassifierColumns))
	if err != nil {
		logger.Error().Err(err).Msg("classifier columns unavailable, risk assessment disabled")
		return triage.NewService(holder, nil, nil, loc, logger)
	}
	encoder, err := mlclient.NewEncoder(columns)
	if err != nil {
		logger.Error().Err(err).Msg("invalid classifier columns, risk assessment disabled")
		return triage.NewService(holder, nil, nil, loc, logger)
	}
	logger.Info().Str("url", cfg.ClassifierURL).Int("columns", len(columns)).Msg("classifier configured")
	return triage.NewService(holder, mlclient.NewHTTPClassifier(cfg.ClassifierURL), encoder, loc, logger)
}

func newCaseHistory(cfg *config.Config, pool *pgxpool.Pool) forecast.CaseHistory {
	if cfg.FluHistorySource == "postgres" && pool != nil {
		return forecast.NewCaseHistoryPG(pool)
	}
	return forecast.NewCaseHistoryCSV(cfg.Resolve(cfg.FluHistoryFile), cfg.FluHistoryColumn)
}

func newForecaster(cfg *config.Config) forecast.Forecaster {
	if cfg.ForecastURL != "" {
		return forecast.NewRemoteForecaster(cfg.ForecastURL, cfg.RequestTimeout)
	}
	return forecast.NewBaselineForecaster()
}

func newForecastService(cfg *config.Config, pool *pgxpool.Pool, loc *time.Location, logger zerolog.Logger) *forecast.Service {
	return forecast.NewService(newCaseHistory(cfg, pool), newForecaster(cfg), cfg.ForecastRegion, loc, logger)
}

func newHolidayService(cfg *config.Config, loc *time.Location, logger zerolog.Logger) (*holiday.Service, error) {
	path := cfg.Resolve(cfg.HolidaysFile)
	cal, found, err := holiday.LoadCalendar(path)
	if err != nil {
		return nil, fmt.Errorf("load holidays: %w", err)
	}
	if !found {
		logger.Warn().Str("path", path).Msg("holiday calendar not found, every day is a working day")
	} else {
		logger.Info().Str("path", path).Int("holidays", cal.Len()).Msg("holiday calendar loaded")
	}
	return holiday.NewService(cal, loc), nil
}

// newEcho builds the server with its middleware chain and registers the
// given handlers. pool may be nil.
func newEcho(cfg *config.Config, logger zerolog.Logger, pool *pgxpool.Pool, handlers ...routeRegistrar) (*echo.Echo, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = fhir.ErrorHandler(logger)

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
	}))
	e.Use(echomw.BodyLimit(maxBodySize))
	if cfg.RequestTimeout > 0 {
		e.Use(middleware.RequestTimeout(cfg.RequestTimeout, "/metrics"))
	}

	// Auth middleware
	if cfg.IsDev() && cfg.AuthSigningKey == "" && cfg.AuthJWKSURL == "" {
		logger.Warn().Msg("development auth enabled, roles are taken from the " + auth.DevRolesHeader + " header")
		e.Use(auth.DevAuthMiddleware())
	} else {
		jwtMW, err := auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			SigningKey: []byte(cfg.AuthSigningKey),
			JWKSURL:    cfg.AuthJWKSURL,
			Skipper:    auth.AuthSkipper,
		})
		if err != nil {
			return nil, err
		}
		e.Use(jwtMW)
	}

	// API groups
	apiV1 := e.Group("/api/v1")
	fhirGroup := e.Group("/fhir")

	rateLimitCfg := middleware.DefaultRateLimitConfig()
	rateLimitCfg.RequestsPerSecond = cfg.RateLimitRPS
	rateLimitCfg.BurstSize = cfg.RateLimitBurst
	apiV1.Use(middleware.RateLimit(rateLimitCfg))
	fhirGroup.Use(middleware.RateLimit(rateLimitCfg))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	if pool != nil {
		e.GET("/health/db", db.HealthHandler(pool))
	}
	if cfg.MetricsEnabled {
		e.GET("/metrics", metrics.Handler())
	}

	fhirGroup.GET("/metadata", capabilities(cfg).MetadataHandler())

	for _, h := range handlers {
		h.RegisterRoutes(apiV1, fhirGroup)
	}
	return e, nil
}

// capabilities lists the FHIR operations the server exposes.
func capabilities(cfg *config.Config) *fhir.CapabilityBuilder {
	b := fhir.NewCapabilityBuilder(fmt.Sprintf("http://localhost:%s/fhir", cfg.Port), version)
	b.AddOperation("Organization", fhir.OperationCapability{
		Name:          "predict-remaining",
		Documentation: "Estimated remaining ED arrivals today from the arrivals so far",
	})
	b.AddOperation("Organization", fhir.OperationCapability{
		Name:          "live-status",
		Documentation: "Patients waiting and in the emergency department, scraped from the public dashboard",
	})
	b.AddOperation("Patient", fhir.OperationCapability{
		Name:          "triage-by-hour",
		Documentation: "Most likely triage category for an hour of the day",
	})
	b.AddOperation("Patient", fhir.OperationCapability{
		Name:          "assess-risk",
		Documentation: "Triage risk category predicted by the classifier",
	})
	b.AddOperation("Observation", fhir.OperationCapability{
		Name:          "flu-forecast-today",
		Documentation: "Predicted influenza cases today and risk against the same-week average",
	})
	b.AddOperation("MeasureReport", fhir.OperationCapability{
		Name:          "flu-forecast-weekly",
		Documentation: "Weekly influenza case outlook",
	})
	b.AddServerOperation(fhir.OperationCapability{
		Name:          "holiday-status-today",
		Documentation: "Whether today is a public holiday",
	})
	return b
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg.Env)
	if err := cfg.Validate(); err != nil {
		logger.Error().Err(err).Msg("invalid config")
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database
	var pool *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		pool, err = db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			logger.Error().Err(err).Msg("failed to connect to database")
			return err
		}
		defer pool.Close()
		logger.Info().Msg("connected to database")
	}

	// Redis
	redisCache := cache.Disabled()
	if cfg.RedisURL != "" {
		redisCache, err = cache.New(ctx, cfg.RedisURL, redisAttempts, logger)
		if err != nil {
			if cfg.PublishBackend == "redis" {
				logger.Error().Err(err).Msg("failed to connect to redis")
				return err
			}
			logger.Warn().Err(err).Msg("redis unavailable, live status responses will not be cached")
			redisCache = cache.Disabled()
		} else {
			logger.Info().Msg("connected to redis")
		}
	}
	defer redisCache.Close()

	publisher, err := newPublisher(cfg, redisCache, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to create publisher")
		return err
	}
	defer publisher.Close()

	// Domain services
	profiles := loadProfiles(ctx, cfg, logger)

	arrivalSvc := arrival.NewService(profiles, loc, logger)
	arrivalSvc.SetPublisher(publisher)

	holidaySvc, err := newHolidayService(cfg, loc, logger)
	if err != nil {
		logger.Error().Err(err).Msg("invalid holiday calendar")
		return err
	}

	scraper := livestatus.NewPageScraper(cfg.LiveStatusBaseURL, cfg.LiveStatusTimeout)
	liveSrc := livestatus.NewCachedSource(scraper, redisCache, cfg.LiveStatusCacheTTL, logger)

	e, err := newEcho(cfg, logger, pool,
		arrival.NewHandler(arrivalSvc),
		triage.NewHandler(newTriageService(cfg, profiles, loc, logger)),
		forecast.NewHandler(newForecastService(cfg, pool, loc, logger)),
		livestatus.NewHandler(livestatus.NewService(liveSrc, cfg.LiveStatusBaseURL, logger)),
		holiday.NewHandler(holidaySvc),
	)
	if err != nil {
		logger.Error().Err(err).Msg("failed to configure server")
		return err
	}

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Str("publisher", publisher.Backend()).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
		return err
	}

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
