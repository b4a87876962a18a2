package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvironmentProduction enables real mail delivery.
const EnvironmentProduction = "production"

// Config holds all configuration for the application
type Config struct {
	Environment  string             `mapstructure:"environment"`
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabasesConfig    `mapstructure:"database"`
	Logging      LoggingConfig      `mapstructure:"logging"`
	CORS         CORSConfig         `mapstructure:"cors"`
	Auth         AuthConfig         `mapstructure:"auth"`
	Hosts        HostsConfig        `mapstructure:"hosts"`
	Notification NotificationConfig `mapstructure:"notification"`
	Blob         BlobConfig         `mapstructure:"blob"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Documents    DocumentsConfig    `mapstructure:"documents"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Hostname     string        `mapstructure:"hostname"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"readTimeout"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout"`
	IdleTimeout  time.Duration `mapstructure:"idleTimeout"`
}

// DatabasesConfig holds all database configurations
type DatabasesConfig struct {
	Registry DatabaseConfig `mapstructure:"registry"`
}

// DatabaseConfig holds individual database configuration
type DatabaseConfig struct {
	Type            string        `mapstructure:"type"`
	Hostname        string        `mapstructure:"hostname"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// CORSConfig holds CORS configuration
type CORSConfig struct {
	Enabled          bool     `mapstructure:"enabled"`
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
}

// AuthConfig holds the shared secret used to verify actor tokens issued by the auth service.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
}

// HostsConfig holds the external hosts used to build links.
type HostsConfig struct {
	App       string `mapstructure:"app"`
	Admin     string `mapstructure:"admin"`
	Maps      string `mapstructure:"maps"`
	Tools     string `mapstructure:"tools"`
	PublicAPI string `mapstructure:"public_api"`
}

// NotificationConfig holds mail notification configuration
type NotificationConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Sender     string        `mapstructure:"sender"`
	AdminEmail string        `mapstructure:"admin_email"`
	Templates  MailTemplates `mapstructure:"templates"`
	Kafka      KafkaConfig   `mapstructure:"kafka"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// MailTemplates holds mail provider template ids.
type MailTemplates struct {
	FormUpdate    int64 `mapstructure:"form_update"`
	RequestUpdate int64 `mapstructure:"request_update"`
	FileGenerated int64 `mapstructure:"file_generated"`
	FormAssigned  int64 `mapstructure:"form_assigned"`
}

// KafkaConfig holds the mail event producer settings.
type KafkaConfig struct {
	Brokers  []string `mapstructure:"brokers"`
	Topic    string   `mapstructure:"topic"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
	TLS      bool     `mapstructure:"tls"`
}

// BlobConfig holds object storage configuration
type BlobConfig struct {
	Endpoint      string        `mapstructure:"endpoint"`
	AccessKey     string        `mapstructure:"access_key"`
	SecretKey     string        `mapstructure:"secret_key"`
	Bucket        string        `mapstructure:"bucket"`
	UseSSL        bool          `mapstructure:"use_ssl"`
	PresignExpiry time.Duration `mapstructure:"presign_expiry"`
}

// RedisConfig holds job tracker storage configuration
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// DocumentsConfig holds the document pipeline settings.
type DocumentsConfig struct {
	Concurrency      int           `mapstructure:"concurrency"`
	Attempts         int           `mapstructure:"attempts"`
	BackoffType      string        `mapstructure:"backoff_type"`
	BackoffDelay     time.Duration `mapstructure:"backoff_delay"`
	ScreenshotMaxAge time.Duration `mapstructure:"screenshot_max_age"`
	JobTTL           time.Duration `mapstructure:"job_ttl"`
	ToolsTimeout     time.Duration `mapstructure:"tools_timeout"`
	ExecutorWorkers  int           `mapstructure:"executor_workers"`
}

var globalConfig *Config

// Load reads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	// A local .env is optional; variables already set in the environment win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("deployment")
		v.SetConfigType("yaml")
		v.AddConfigPath("./repository/conf")
		v.AddConfigPath("./cmd/server/repository/conf")
		v.AddConfigPath("../repository/conf")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("REGISTRY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	globalConfig = &config
	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("server.hostname", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("database.registry.type", "mysql")
	v.SetDefault("database.registry.port", 3306)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("hosts.maps", "https://maps.biip.lt")
	v.SetDefault("notification.sender", "noreply@biip.lt")
	v.SetDefault("notification.templates.form_update", 32594846)
	v.SetDefault("notification.templates.request_update", 32594663)
	v.SetDefault("notification.templates.file_generated", 32594847)
	v.SetDefault("notification.timeout", 10*time.Second)
	v.SetDefault("blob.presign_expiry", 24*time.Hour)
	v.SetDefault("documents.concurrency", 10)
	v.SetDefault("documents.attempts", 5)
	v.SetDefault("documents.backoff_type", "fixed")
	v.SetDefault("documents.backoff_delay", time.Second)
	v.SetDefault("documents.screenshot_max_age", 5*24*time.Hour)
	v.SetDefault("documents.job_ttl", 7*24*time.Hour)
	v.SetDefault("documents.tools_timeout", 2*time.Minute)
	v.SetDefault("documents.executor_workers", 8)
}

// validateConfig validates the configuration
func validateConfig(config *Config) error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Database.Registry.Hostname == "" {
		return fmt.Errorf("database hostname is required")
	}

	if config.Database.Registry.Database == "" {
		return fmt.Errorf("database name is required")
	}

	if config.Auth.JWTSecret == "" {
		return fmt.Errorf("auth jwt secret is required")
	}

	if config.Notification.Enabled && config.Notification.AdminEmail == "" {
		return fmt.Errorf("notification admin email is required when notifications are enabled")
	}

	if config.Documents.Concurrency <= 0 {
		return fmt.Errorf("documents concurrency must be positive")
	}

	if config.Documents.Attempts <= 0 {
		return fmt.Errorf("documents attempts must be positive")
	}

	switch config.Documents.BackoffType {
	case "fixed", "linear":
	default:
		return fmt.Errorf("unsupported documents backoff type: %s", config.Documents.BackoffType)
	}

	return nil
}

// Get returns the global configuration
func Get() *Config {
	return globalConfig
}

// SetGlobal sets the global configuration (for testing purposes)
func SetGlobal(cfg *Config) {
	globalConfig = cfg
}

// IsProduction reports whether the server runs in production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, EnvironmentProduction)
}

// GetServerAddress returns the server address in host:port format
func (s *ServerConfig) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", s.Hostname, s.Port)
}

// HostURL returns the front-end host used in links for admins or regular users.
func (h *HostsConfig) HostURL(isAdmin bool) string {
	if isAdmin {
		return h.Admin
	}
	return h.App
}

// KafkaEnabled reports whether a mail event producer can be built.
func (n *NotificationConfig) KafkaEnabled() bool {
	return len(n.Kafka.Brokers) > 0 && n.Kafka.Topic != ""
}
