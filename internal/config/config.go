// Package config loads gateway settings.
//
// Sources, lowest to highest priority:
//  1. built-in defaults;
//  2. a YAML file given by --config or CONFIG_FILE;
//  3. a .env file in the working directory;
//  4. the process environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"github.com/Adda-Baaj/edgar-gateway/internal/domain"
	"github.com/Adda-Baaj/edgar-gateway/internal/fanout"
	"github.com/Adda-Baaj/edgar-gateway/internal/logger"
	"github.com/Adda-Baaj/edgar-gateway/pkg/providers"
)

// Keys double as environment variable names (upper-cased) and YAML keys.
const (
	keyEnv              = "app_env"
	keyHost             = "host"
	keyPort             = "port"
	keyClientOrigin     = "client_origin"
	keyRequestTimeout   = "request_timeout"
	keyRequestTimeoutMS = "request_timeout_ms"
	keyShutdownTimeout  = "shutdown_timeout"
	keyHandlerTimeout   = "handler_timeout"
	keyLogLevel         = "log_level"
	keyPublishersFile   = "publishers_file"

	keyNewsBaseURL        = "news_base_url"
	keyNewsMaxConcurrency = "news_max_concurrency"
	keyNewsMaxStories     = "news_max_stories"
	keyNewsRequestDelay   = "news_request_delay"
	keyQuotesBaseURL      = "quotes_base_url"
	keyGeocodingBaseURL   = "geocoding_base_url"
	keyForecastBaseURL    = "forecast_base_url"
	keyDefaultCity        = "default_city"

	// handlerBudget is the default handler deadline in request timeouts: weather makes two
	// sequential upstream calls, each allowed one retry.
	handlerBudget    = 4
	// minHandlerBudget is the smallest handler deadline that still leaves room for one retry.
	minHandlerBudget = 2

	// ConfigFileEnv names the variable consulted when no --config path is given.
	ConfigFileEnv = "CONFIG_FILE"
)

// Config is the fully resolved gateway configuration.
type Config struct {
	Env             string
	Host            string
	Port            int
	ClientOrigin    string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	// HandlerTimeout bounds one inbound request; 0 disables the deadline.
	HandlerTimeout  time.Duration
	LogLevel        string
	PublishersFile  string

	Upstreams Upstreams
}

// Upstreams holds per-provider endpoints and fan-out tuning.
type Upstreams struct {
	NewsBaseURL        string
	NewsMaxConcurrency int
	NewsMaxStories     int
	NewsRequestDelay   time.Duration
	QuotesBaseURL      string
	GeocodingBaseURL   string
	ForecastBaseURL    string
	DefaultCity        string
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// IsProduction reports whether the gateway runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == logger.EnvProduction
}

// Providers maps the upstream settings onto the adapter configs.
func (c *Config) Providers() providers.Config {
	u := c.Upstreams
	return providers.Config{
		News: providers.NewsConfig{
			BaseURL:        u.NewsBaseURL,
			MaxConcurrency: u.NewsMaxConcurrency,
			MaxStories:     u.NewsMaxStories,
			RequestDelay:   u.NewsRequestDelay,
		},
		Quotes: providers.QuotesConfig{BaseURL: u.QuotesBaseURL},
		Weather: providers.WeatherConfig{
			GeocodingURL: u.GeocodingBaseURL,
			ForecastURL:  u.ForecastBaseURL,
			DefaultCity:  u.DefaultCity,
		},
	}
}

// Load resolves configuration from defaults, an optional YAML file, .env and the environment.
// An empty path falls back to CONFIG_FILE; when both are empty no file is read.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if path == "" {
		path = strings.TrimSpace(os.Getenv(ConfigFileEnv))
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %q: %w", path, err)
		}
	}

	requestTimeout, err := resolveRequestTimeout(v)
	if err != nil {
		return nil, err
	}
	shutdownTimeout, err := parseDuration(keyShutdownTimeout, v.GetString(keyShutdownTimeout))
	if err != nil {
		return nil, err
	}
	handlerTimeout, err := resolveHandlerTimeout(v, requestTimeout)
	if err != nil {
		return nil, err
	}
	newsDelay, err := parseDuration(keyNewsRequestDelay, v.GetString(keyNewsRequestDelay))
	if err != nil {
		return nil, err
	}

	env := strings.ToLower(strings.TrimSpace(v.GetString(keyEnv)))
	logLevel := strings.TrimSpace(v.GetString(keyLogLevel))
	if logLevel == "" {
		logLevel = defaultLogLevel(env)
	}

	cfg := &Config{
		Env:             env,
		Host:            strings.TrimSpace(v.GetString(keyHost)),
		Port:            v.GetInt(keyPort),
		ClientOrigin:    strings.TrimSpace(v.GetString(keyClientOrigin)),
		RequestTimeout:  requestTimeout,
		ShutdownTimeout: shutdownTimeout,
		HandlerTimeout:  handlerTimeout,
		LogLevel:        logLevel,
		PublishersFile:  strings.TrimSpace(v.GetString(keyPublishersFile)),
		Upstreams: Upstreams{
			NewsBaseURL:        strings.TrimSpace(v.GetString(keyNewsBaseURL)),
			NewsMaxConcurrency: v.GetInt(keyNewsMaxConcurrency),
			NewsMaxStories:     v.GetInt(keyNewsMaxStories),
			NewsRequestDelay:   newsDelay,
			QuotesBaseURL:      strings.TrimSpace(v.GetString(keyQuotesBaseURL)),
			GeocodingBaseURL:   strings.TrimSpace(v.GetString(keyGeocodingBaseURL)),
			ForecastBaseURL:    strings.TrimSpace(v.GetString(keyForecastBaseURL)),
			DefaultCity:        strings.TrimSpace(v.GetString(keyDefaultCity)),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the gateway cannot run with.
func (c *Config) Validate() error {
	var errs []error

	switch c.Env {
	case logger.EnvDevelopment, logger.EnvProduction:
	default:
		errs = append(errs, fmt.Errorf("%s must be %q or %q, got %q",
			strings.ToUpper(keyEnv), logger.EnvDevelopment, logger.EnvProduction, c.Env))
	}
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be within [1,65535], got %d", c.Port))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("REQUEST_TIMEOUT must be positive, got %s", c.RequestTimeout))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("SHUTDOWN_TIMEOUT must be positive, got %s", c.ShutdownTimeout))
	}
	if c.HandlerTimeout < 0 {
		errs = append(errs, fmt.Errorf("HANDLER_TIMEOUT must be >= 0, got %s", c.HandlerTimeout))
	} else if c.HandlerTimeout > 0 && c.HandlerTimeout < minHandlerBudget*c.RequestTimeout {
		errs = append(errs, fmt.Errorf("HANDLER_TIMEOUT must be 0 or at least %d x REQUEST_TIMEOUT (%s), got %s",
			minHandlerBudget, minHandlerBudget*c.RequestTimeout, c.HandlerTimeout))
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}

	u := c.Upstreams
	if u.NewsMaxConcurrency < 1 {
		errs = append(errs, fmt.Errorf("NEWS_MAX_CONCURRENCY must be >= 1, got %d", u.NewsMaxConcurrency))
	}
	if u.NewsMaxStories < 0 {
		errs = append(errs, fmt.Errorf("NEWS_MAX_STORIES must be >= 0, got %d", u.NewsMaxStories))
	}
	if u.NewsRequestDelay < 0 {
		errs = append(errs, fmt.Errorf("NEWS_REQUEST_DELAY must be >= 0, got %s", u.NewsRequestDelay))
	}
	if u.DefaultCity == "" {
		errs = append(errs, errors.New("DEFAULT_CITY must not be empty"))
	}
	for key, raw := range map[string]string{
		keyNewsBaseURL:      u.NewsBaseURL,
		keyQuotesBaseURL:    u.QuotesBaseURL,
		keyGeocodingBaseURL: u.GeocodingBaseURL,
		keyForecastBaseURL:  u.ForecastBaseURL,
	} {
		if err := checkURL(raw); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", strings.ToUpper(key), err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(keyEnv, logger.EnvDevelopment)
	v.SetDefault(keyHost, "0.0.0.0")
	v.SetDefault(keyPort, 3001)
	v.SetDefault(keyClientOrigin, "http://localhost:5173")
	v.SetDefault(keyRequestTimeout, "")
	v.SetDefault(keyRequestTimeoutMS, "")
	v.SetDefault(keyShutdownTimeout, "10s")
	v.SetDefault(keyHandlerTimeout, "")
	v.SetDefault(keyLogLevel, "")
	v.SetDefault(keyPublishersFile, "")

	v.SetDefault(keyNewsBaseURL, providers.DefaultHackerNewsBaseURL)
	v.SetDefault(keyNewsMaxConcurrency, fanout.DefaultWorkers)
	v.SetDefault(keyNewsMaxStories, 0)
	v.SetDefault(keyNewsRequestDelay, "0s")
	v.SetDefault(keyQuotesBaseURL, providers.DefaultQuotesBaseURL)
	v.SetDefault(keyGeocodingBaseURL, providers.DefaultGeocodingURL)
	v.SetDefault(keyForecastBaseURL, providers.DefaultForecastURL)
	v.SetDefault(keyDefaultCity, domain.DefaultCity)
}

// resolveHandlerTimeout reads HANDLER_TIMEOUT. Unset means handlerBudget request timeouts.
func resolveHandlerTimeout(v *viper.Viper, requestTimeout time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(keyHandlerTimeout))
	if raw == "" {
		return handlerBudget * requestTimeout, nil
	}
	return parseDuration(keyHandlerTimeout, raw)
}

// resolveRequestTimeout prefers REQUEST_TIMEOUT and falls back to the millisecond REQUEST_TIMEOUT_MS.
func resolveRequestTimeout(v *viper.Viper) (time.Duration, error) {
	if raw := strings.TrimSpace(v.GetString(keyRequestTimeout)); raw != "" {
		return parseDuration(keyRequestTimeout, raw)
	}
	if raw := strings.TrimSpace(v.GetString(keyRequestTimeoutMS)); raw != "" {
		ms, err := strconv.Atoi(raw)
		if err != nil {
			return 0, fmt.Errorf("%s: %q is not an integer", strings.ToUpper(keyRequestTimeoutMS), raw)
		}
		return time.Duration(ms) * time.Millisecond, nil
	}
	return 8 * time.Second, nil
}

// parseDuration accepts Go duration strings; a bare integer is read as milliseconds.
func parseDuration(key, raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	if ms, err := strconv.Atoi(raw); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", strings.ToUpper(key), err)
	}
	return d, nil
}

func defaultLogLevel(env string) string {
	if env == logger.EnvProduction {
		return "info"
	}
	return "debug"
}

func checkURL(raw string) error {
	if raw == "" {
		return errors.New("must not be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}
