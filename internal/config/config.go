package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/spf13/viper"
)

type Config struct {
	Port           string        `mapstructure:"PORT"`
	Env            string        `mapstructure:"ENV"`
	DatabaseURL    string        `mapstructure:"DATABASE_URL"`
	DBMaxConns     int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns     int32         `mapstructure:"DB_MIN_CONNS"`
	MigrationsDir  string        `mapstructure:"MIGRATIONS_DIR"`
	RedisURL       string        `mapstructure:"REDIS_URL"`
	AuthSigningKey string        `mapstructure:"AUTH_SIGNING_KEY"`
	AuthJWKSURL    string        `mapstructure:"AUTH_JWKS_URL"`
	AuthIssuer     string        `mapstructure:"AUTH_ISSUER"`
	AuthAudience   string        `mapstructure:"AUTH_AUDIENCE"`
	CORSOrigins    []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS   float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int           `mapstructure:"RATE_LIMIT_BURST"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	MetricsEnabled bool          `mapstructure:"METRICS_ENABLED"`

	ProfileDir        string `mapstructure:"PROFILE_DIR"`
	ArrivalProfile    string `mapstructure:"ARRIVAL_PROFILE_FILE"`
	HourlyProfile     string `mapstructure:"HOURLY_PROFILE_FILE"`
	TriageProfile     string `mapstructure:"TRIAGE_PROFILE_FILE"`
	ProfileStrict     bool   `mapstructure:"PROFILE_STRICT"`
	ProfileTimezone   string `mapstructure:"PROFILE_TIMEZONE"`
	HolidaysFile      string `mapstructure:"HOLIDAYS_FILE"`
	FluHistoryFile    string `mapstructure:"FLU_HISTORY_FILE"`
	FluHistoryColumn  string `mapstructure:"FLU_HISTORY_COLUMN"`
	FluHistorySource  string `mapstructure:"FLU_HISTORY_SOURCE"`
	ForecastRegion    string `mapstructure:"FORECAST_REGION"`
	ForecastURL       string `mapstructure:"FORECAST_URL"`
	ClassifierURL     string `mapstructure:"CLASSIFIER_URL"`
	ClassifierColumns string `mapstructure:"CLASSIFIER_COLUMNS_FILE"`

	LiveStatusBaseURL  string        `mapstructure:"LIVE_STATUS_BASE_URL"`
	LiveStatusTimeout  time.Duration `mapstructure:"LIVE_STATUS_TIMEOUT"`
	LiveStatusCacheTTL time.Duration `mapstructure:"LIVE_STATUS_CACHE_TTL"`

	PublishBackend  string `mapstructure:"PUBLISH_BACKEND"`
	MQTTURL         string `mapstructure:"MQTT_URL"`
	MQTTTopicPrefix string `mapstructure:"MQTT_TOPIC_PREFIX"`
}

var defaults = map[string]interface{}{
	"PORT":                    "8000",
	"ENV":                     "development",
	"DB_MAX_CONNS":            10,
	"DB_MIN_CONNS":            1,
	"MIGRATIONS_DIR":          "migrations",
	"CORS_ORIGINS":            "*",
	"RATE_LIMIT_RPS":          20,
	"RATE_LIMIT_BURST":        40,
	"REQUEST_TIMEOUT":         "30s",
	"METRICS_ENABLED":         true,
	"PROFILE_DIR":             "data",
	"ARRIVAL_PROFILE_FILE":    "arrival_profile.csv",
	"HOURLY_PROFILE_FILE":     "hourly_arrival_profile.csv",
	"TRIAGE_PROFILE_FILE":     "triage_by_hour_profile.csv",
	"PROFILE_STRICT":          false,
	"PROFILE_TIMEZONE":        "Australia/Brisbane",
	"HOLIDAYS_FILE":           "holidays.json",
	"FLU_HISTORY_FILE":        "daily_flu_data.csv",
	"FLU_HISTORY_COLUMN":      "QLD",
	"FLU_HISTORY_SOURCE":      "csv",
	"FORECAST_REGION":         "Queensland",
	"CLASSIFIER_COLUMNS_FILE": "X_train_columns.json",
	"LIVE_STATUS_BASE_URL":    "https://openhospitals.health.qld.gov.au",
	"LIVE_STATUS_TIMEOUT":     "20s",
	"LIVE_STATUS_CACHE_TTL":   "2m",
	"PUBLISH_BACKEND":         "none",
	"MQTT_TOPIC_PREFIX":       "hospital",
}

var optional = []string{
	"DATABASE_URL", "REDIS_URL", "AUTH_SIGNING_KEY", "AUTH_JWKS_URL",
	"AUTH_ISSUER", "AUTH_AUDIENCE", "FORECAST_URL", "CLASSIFIER_URL", "MQTT_URL",
}

// Load reads .env from the working directory, when present, and then the
// environment, which takes precedence.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	for key, val := range defaults {
		v.SetDefault(key, val)
		v.BindEnv(key)
	}
	for _, key := range optional {
		v.BindEnv(key)
	}

	// A missing .env is fine.
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.CORSOrigins = splitList(v.GetString("CORS_ORIGINS"))
	cfg.Env = strings.ToLower(strings.TrimSpace(cfg.Env))
	cfg.FluHistorySource = strings.ToLower(cfg.FluHistorySource)
	cfg.PublishBackend = strings.ToLower(cfg.PublishBackend)
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Resolve returns name unchanged when absolute, and otherwise relative to
// PROFILE_DIR. An empty name stays empty.
func (c *Config) Resolve(name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.ProfileDir, name)
}

// Location is the timezone used to decide the current hour and date.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.ProfileTimezone)
	if err != nil {
		return nil, fmt.Errorf("PROFILE_TIMEZONE %q: %w", c.ProfileTimezone, err)
	}
	return loc, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if !c.IsDev() && c.AuthSigningKey == "" && c.AuthJWKSURL == "" {
		errs = append(errs, fmt.Errorf("AUTH_SIGNING_KEY or AUTH_JWKS_URL is required when ENV=%q", c.Env))
	}
	if c.AuthSigningKey != "" && len(c.AuthSigningKey) < 32 {
		errs = append(errs, errors.New("AUTH_SIGNING_KEY must be at least 32 characters"))
	}

	switch c.FluHistorySource {
	case "csv":
	case "postgres":
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required when FLU_HISTORY_SOURCE=postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("FLU_HISTORY_SOURCE must be \"csv\" or \"postgres\", got %q", c.FluHistorySource))
	}

	switch c.PublishBackend {
	case "none":
	case "redis":
		if c.RedisURL == "" {
			errs = append(errs, errors.New("REDIS_URL is required when PUBLISH_BACKEND=redis"))
		}
	case "mqtt":
		if c.MQTTURL == "" {
			errs = append(errs, errors.New("MQTT_URL is required when PUBLISH_BACKEND=mqtt"))
		}
	default:
		errs = append(errs, fmt.Errorf("PUBLISH_BACKEND must be \"none\", \"redis\" or \"mqtt\", got %q", c.PublishBackend))
	}

	if c.ArrivalProfile == "" || c.TriageProfile == "" {
		errs = append(errs, errors.New("ARRIVAL_PROFILE_FILE and TRIAGE_PROFILE_FILE are required"))
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst < 1 {
		errs = append(errs, errors.New("RATE_LIMIT_RPS must be positive and RATE_LIMIT_BURST at least 1"))
	}
	if c.DBMinConns > c.DBMaxConns {
		errs = append(errs, fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}
