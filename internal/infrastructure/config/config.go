package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App        AppConfig
	Factory    FactoryConfig `validate:"required"`
	Shopify    ShopifyConfig `validate:"required"`
	Qstomizer  QstomizerConfig
	Mapping    MappingConfig
	ImageProxy ImageProxyConfig
	Storage    StorageConfig
	Redis      RedisConfig
	Cache      CacheConfig
	Scheduler  SchedulerConfig
	HTTP       HTTPConfig
	Log        LogConfig
	Telemetry  TelemetryConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// FactoryConfig holds the RIIN factory API settings
type FactoryConfig struct {
	BaseURL        string `validate:"required,url"`
	SecretKey      string `validate:"required"`
	AutoPush       bool   // push right after a successful placement
	MaxInFlight    int    `validate:"min=1"`
	Cooldown       time.Duration
	TimeoutSeconds int
}

// ShopifyConfig holds Admin API and app credentials
type ShopifyConfig struct {
	Shop        string `validate:"required"`
	AccessToken string `validate:"required"`
	APIVersion  string
	APIKey      string // app client id, the session token audience
	APISecret   string // signs webhooks and session tokens
	// TimeoutSeconds is the Admin API request timeout
	TimeoutSeconds int
}

// QstomizerConfig holds design plugin settings. Lookups are off without a shop and key.
type QstomizerConfig struct {
	Shop     string
	APIKey   string
	Endpoint string `validate:"omitempty,url"`
}

// MappingConfig controls payload image handling
type MappingConfig struct {
	AllowPlaceholder bool
	ForcePNGDPI      bool
	PrintDPI         int    `validate:"min=1"`
	ProxyBase        string `validate:"omitempty,url"` // public base of this service for /img/pngdpi
	Timezone         string // order time zone; empty = local
}

// ImageProxyConfig holds /img/pngdpi settings
type ImageProxyConfig struct {
	MaxBytes     int64
	Timeout      time.Duration
	CacheEnabled bool // cache rewritten PNGs in object storage
}

// StorageConfig holds S3-compatible object storage settings
type StorageConfig struct {
	Bucket       string
	AccessKey    string
	SecretKey    string
	Endpoint     string
	Region       string
	UseSSL       bool
	UsePathStyle bool
	KeyPrefix    string
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Enabled   bool
	Host      string
	Port      int
	Password  string
	DB        int
	KeyPrefix string
}

// CacheConfig sizes the process-local caches
type CacheConfig struct {
	DesignMaxEntries   int
	DesignTTL          time.Duration
	DeliveryMaxEntries int
}

// SchedulerConfig holds the periodic sync settings
type SchedulerConfig struct {
	Enabled    bool
	Interval   time.Duration
	RunTimeout time.Duration
	RunOnStart bool
	PushSweep  bool // also push placed orders on every tick
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	MaxBodySize       int64
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration
	CORSAllowOrigins  []string
	TrustedProxies    []string
	DevEndpoints      bool
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string
	SamplingRatio     float64
	ServiceName       string
	Insecure          bool
	LogExportEnabled  bool // ship zap logs through the OTLP log exporter
}

// legacyEnv maps keys to the environment names used by earlier deployments
var legacyEnv = map[string][]string{
	"app.port":                  {"PORT"},
	"factory.base_url":          {"RIIN_BASE_URL"},
	"factory.secret_key":        {"RIIN_SECRET_KEY", "RIIN_SECRET"},
	"factory.auto_push":         {"FACTORY_AUTO_PUSH"},
	"shopify.shop":              {"SHOP"},
	"shopify.access_token":      {"ADMIN_API_ACCESS_TOKEN"},
	"shopify.api_version":       {"SHOPIFY_API_VERSION"},
	"shopify.api_key":           {"SHOPIFY_API_KEY"},
	"shopify.api_secret":        {"SHOPIFY_API_SECRET"},
	"qstomizer.shop":            {"QSTOMIZER_SHOP"},
	"qstomizer.api_key":         {"QSTOMIZER_API_KEY"},
	"mapping.allow_placeholder": {"RIIN_ALLOW_FALLBACK_IMAGE"},
	"mapping.force_png_dpi":     {"RIIN_FORCE_PNG_DPI"},
	"mapping.print_dpi":         {"RIIN_PRINT_DPI"},
	"mapping.proxy_base":        {"IMAGE_PROXY_BASE"},
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with BRIDGE_ prefix (e.g., BRIDGE_FACTORY_SECRET_KEY)
// 2. Legacy environment names (e.g., RIIN_SECRET_KEY)
// 3. config.toml
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("BRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range legacyEnv {
		envKey := "BRIDGE_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		_ = v.BindEnv(append([]string{key, envKey}, names...)...)
	}

	// booleans that default to on cannot be told apart from "unset" after decoding
	v.SetDefault("factory.auto_push", true)

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Factory: FactoryConfig{
			BaseURL:        v.GetString("factory.base_url"),
			SecretKey:      v.GetString("factory.secret_key"),
			AutoPush:       v.GetBool("factory.auto_push"),
			MaxInFlight:    v.GetInt("factory.max_in_flight"),
			Cooldown:       v.GetDuration("factory.cooldown"),
			TimeoutSeconds: v.GetInt("factory.timeout_seconds"),
		},
		Shopify: ShopifyConfig{
			Shop:           v.GetString("shopify.shop"),
			AccessToken:    v.GetString("shopify.access_token"),
			APIVersion:     v.GetString("shopify.api_version"),
			APIKey:         v.GetString("shopify.api_key"),
			APISecret:      v.GetString("shopify.api_secret"),
			TimeoutSeconds: v.GetInt("shopify.timeout_seconds"),
		},
		Qstomizer: QstomizerConfig{
			Shop:     v.GetString("qstomizer.shop"),
			APIKey:   v.GetString("qstomizer.api_key"),
			Endpoint: v.GetString("qstomizer.endpoint"),
		},
		Mapping: MappingConfig{
			AllowPlaceholder: v.GetBool("mapping.allow_placeholder"),
			ForcePNGDPI:      v.GetBool("mapping.force_png_dpi"),
			PrintDPI:         v.GetInt("mapping.print_dpi"),
			ProxyBase:        v.GetString("mapping.proxy_base"),
			Timezone:         v.GetString("mapping.timezone"),
		},
		ImageProxy: ImageProxyConfig{
			MaxBytes:     v.GetInt64("image_proxy.max_bytes"),
			Timeout:      v.GetDuration("image_proxy.timeout"),
			CacheEnabled: v.GetBool("image_proxy.cache_enabled"),
		},
		Storage: StorageConfig{
			Bucket:       v.GetString("storage.bucket"),
			AccessKey:    v.GetString("storage.access_key"),
			SecretKey:    v.GetString("storage.secret_key"),
			Endpoint:     v.GetString("storage.endpoint"),
			Region:       v.GetString("storage.region"),
			UseSSL:       v.GetBool("storage.use_ssl"),
			UsePathStyle: v.GetBool("storage.use_path_style"),
			KeyPrefix:    v.GetString("storage.key_prefix"),
		},
		Redis: RedisConfig{
			Enabled:   v.GetBool("redis.enabled"),
			Host:      v.GetString("redis.host"),
			Port:      v.GetInt("redis.port"),
			Password:  v.GetString("redis.password"),
			DB:        v.GetInt("redis.db"),
			KeyPrefix: v.GetString("redis.key_prefix"),
		},
		Cache: CacheConfig{
			DesignMaxEntries:   v.GetInt("cache.design_max_entries"),
			DesignTTL:          v.GetDuration("cache.design_ttl"),
			DeliveryMaxEntries: v.GetInt("cache.delivery_max_entries"),
		},
		Scheduler: SchedulerConfig{
			Enabled:    v.GetBool("scheduler.enabled"),
			Interval:   v.GetDuration("scheduler.interval"),
			RunTimeout: v.GetDuration("scheduler.run_timeout"),
			RunOnStart: v.GetBool("scheduler.run_on_start"),
			PushSweep:  v.GetBool("scheduler.push_sweep"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:       v.GetDuration("http.read_timeout"),
			WriteTimeout:      v.GetDuration("http.write_timeout"),
			IdleTimeout:       v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:    v.GetInt("http.max_header_bytes"),
			MaxBodySize:       v.GetInt64("http.max_body_size"),
			RateLimitEnabled:  v.GetBool("http.rate_limit_enabled"),
			RateLimitRequests: v.GetInt("http.rate_limit_requests"),
			RateLimitWindow:   v.GetDuration("http.rate_limit_window"),
			CORSAllowOrigins:  v.GetStringSlice("http.cors_allow_origins"),
			TrustedProxies:    v.GetStringSlice("http.trusted_proxies"),
			DevEndpoints:      v.GetBool("http.dev_endpoints"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			LogExportEnabled:  v.GetBool("telemetry.log_export_enabled"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "order-bridge"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	cfg.Factory.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.Factory.BaseURL), "/")
	if cfg.Factory.MaxInFlight == 0 {
		cfg.Factory.MaxInFlight = 10
	}
	if cfg.Factory.Cooldown == 0 {
		cfg.Factory.Cooldown = 120 * time.Millisecond
	}
	if cfg.Factory.TimeoutSeconds == 0 {
		cfg.Factory.TimeoutSeconds = 30
	}
	if cfg.Shopify.APIVersion == "" {
		cfg.Shopify.APIVersion = "2025-07"
	}
	if cfg.Shopify.TimeoutSeconds == 0 {
		cfg.Shopify.TimeoutSeconds = 30
	}
	if cfg.Qstomizer.Shop == "" {
		cfg.Qstomizer.Shop = cfg.Shopify.Shop
	}
	if cfg.Mapping.PrintDPI == 0 {
		cfg.Mapping.PrintDPI = 300
	}
	if cfg.ImageProxy.MaxBytes == 0 {
		cfg.ImageProxy.MaxBytes = 50 << 20 // 50MB
	}
	if cfg.ImageProxy.Timeout == 0 {
		cfg.ImageProxy.Timeout = 30 * time.Second
	}
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "us-east-1"
	}
	if cfg.Storage.KeyPrefix == "" {
		cfg.Storage.KeyPrefix = "pngdpi"
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = "bridge:"
	}
	if cfg.Cache.DesignMaxEntries == 0 {
		cfg.Cache.DesignMaxEntries = 10000
	}
	if cfg.Cache.DesignTTL == 0 {
		cfg.Cache.DesignTTL = 24 * time.Hour
	}
	if cfg.Cache.DeliveryMaxEntries == 0 {
		cfg.Cache.DeliveryMaxEntries = 50000
	}
	if cfg.Scheduler.Interval == 0 {
		cfg.Scheduler.Interval = 5 * time.Minute
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 60 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 5 << 20 // 5MB
	}
	if cfg.HTTP.RateLimitRequests == 0 {
		cfg.HTTP.RateLimitRequests = 300
	}
	if cfg.HTTP.RateLimitWindow == 0 {
		cfg.HTTP.RateLimitWindow = time.Minute
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("config: %s failed %q validation", configKey(fe.Namespace()), fe.Tag())
		}
		return fmt.Errorf("config: %w", err)
	}

	if c.ImageProxy.CacheEnabled && c.Storage.Bucket == "" {
		return fmt.Errorf("storage.bucket is required when image_proxy.cache_enabled is set")
	}

	if c.App.Env == "production" {
		if c.Shopify.APISecret == "" {
			return fmt.Errorf("shopify.api_secret is required in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
		if c.HTTP.DevEndpoints {
			return fmt.Errorf("http.dev_endpoints must be false in production")
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
}

// configKey turns "Config.Factory.BaseURL" into "factory.base_url"
func configKey(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	for i, p := range parts {
		parts[i] = snakeCase(p)
	}
	return strings.Join(parts, ".")
}

func snakeCase(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		upper := r >= 'A' && r <= 'Z'
		if upper && i > 0 {
			prevLower := runes[i-1] >= 'a' && runes[i-1] <= 'z'
			nextLower := i+1 < len(runes) && runes[i+1] >= 'a' && runes[i+1] <= 'z'
			if prevLower || nextLower {
				b.WriteByte('_')
			}
		}
		if upper {
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Addr returns the Redis address
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
