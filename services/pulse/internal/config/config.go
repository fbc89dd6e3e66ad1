package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"learningpulse/pkg/kv"
)

// ConfigPath is the default config file location.
const ConfigPath = "config.yaml"

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port     string `yaml:"port"`
	LogLevel string `yaml:"logLevel"`

	StorageDriver  string `yaml:"storageDriver"`
	StoragePath    string `yaml:"storagePath"`
	PersistTimeout string `yaml:"persistTimeout"`
	RedisAddr      string `yaml:"redisAddr"`
	RedisPassword  string `yaml:"redisPassword"`
	RedisPrefix    string `yaml:"redisPrefix"`
	DatabaseURL    string `yaml:"databaseURL"`
	MinioEndpoint  string `yaml:"minioEndpoint"`
	MinioAccessKey string `yaml:"minioAccessKey"`
	MinioSecretKey string `yaml:"minioSecretKey"`
	MinioBucket    string `yaml:"minioBucket"`
	MinioPrefix    string `yaml:"minioPrefix"`
	MinioUseSSL    bool   `yaml:"minioUseSSL"`

	DefaultTheme      string `yaml:"defaultTheme"`
	TokenSecret       string `yaml:"tokenSecret"`
	TokenTTL          string `yaml:"tokenTTL"`
	RemoteAuthURL     string `yaml:"remoteAuthURL"`
	RemoteAuthTimeout string `yaml:"remoteAuthTimeout"`

	LoginRateLimit  int      `yaml:"loginRateLimit"`
	LoginRateWindow string   `yaml:"loginRateWindow"`
	AllowedOrigins  []string `yaml:"allowedOrigins"`
	TrustedProxies  []string `yaml:"trustedProxies"`
}

// Defaults returns the configuration used for anything the file leaves out.
func Defaults() FileConfig {
	return FileConfig{
		Port:              "8090",
		LogLevel:          "info",
		StorageDriver:     kv.DriverSQLite,
		StoragePath:       "pulse.db",
		PersistTimeout:    "3s",
		RedisPrefix:       "pulse",
		MinioPrefix:       "state",
		DefaultTheme:      "dark",
		TokenTTL:          "720h",
		RemoteAuthTimeout: "10s",
		LoginRateLimit:    10,
		LoginRateWindow:   "1m",
	}
}

// Load reads config from path (defaults to config.yaml). A missing file leaves
// the defaults in place; environment variables override either.
func Load(path string) (FileConfig, error) {
	cfg := Defaults()
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return cfg, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}
	applyEnv(&cfg)
	cfg.StorageDriver = strings.ToLower(strings.TrimSpace(cfg.StorageDriver))
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *FileConfig) {
	setString := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	setString(&cfg.Port, "PULSE_PORT")
	setString(&cfg.LogLevel, "PULSE_LOG_LEVEL")
	setString(&cfg.StorageDriver, "PULSE_STORAGE_DRIVER")
	setString(&cfg.StoragePath, "PULSE_STORAGE_PATH")
	setString(&cfg.PersistTimeout, "PULSE_PERSIST_TIMEOUT")
	setString(&cfg.RedisAddr, "REDIS_ADDR")
	setString(&cfg.RedisPassword, "REDIS_PASSWORD")
	setString(&cfg.DatabaseURL, "DATABASE_URL")
	setString(&cfg.MinioEndpoint, "MINIO_ENDPOINT")
	setString(&cfg.MinioAccessKey, "MINIO_ACCESS_KEY")
	setString(&cfg.MinioSecretKey, "MINIO_SECRET_KEY")
	setString(&cfg.MinioBucket, "MINIO_BUCKET")
	if v := os.Getenv("MINIO_USE_SSL"); v == "true" {
		cfg.MinioUseSSL = true
	}
	setString(&cfg.DefaultTheme, "PULSE_DEFAULT_THEME")
	setString(&cfg.TokenSecret, "PULSE_TOKEN_SECRET")
	setString(&cfg.RemoteAuthURL, "PULSE_REMOTE_AUTH_URL")
	if v := os.Getenv("PULSE_LOGIN_RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.LoginRateLimit = n
		}
	}
	if v := os.Getenv("PULSE_ALLOWED_ORIGINS"); v != "" {
		cfg.AllowedOrigins = splitCSV(v)
	}
	if v := os.Getenv("PULSE_TRUSTED_PROXIES"); v != "" {
		cfg.TrustedProxies = splitCSV(v)
	}
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml or PULSE_PORT)")
	}
	if n, err := strconv.Atoi(cfg.Port); err != nil || n <= 0 || n > 65535 {
		return fmt.Errorf("config: invalid port %q", cfg.Port)
	}
	switch cfg.StorageDriver {
	case kv.DriverSQLite:
		if cfg.StoragePath == "" {
			return errors.New("config: storagePath is required for the sqlite driver")
		}
	case kv.DriverMemory:
	case kv.DriverRedis:
		if cfg.RedisAddr == "" {
			return errors.New("config: redisAddr is required for the redis driver (set in config.yaml or REDIS_ADDR)")
		}
	case kv.DriverPostgres:
		if cfg.DatabaseURL == "" {
			return errors.New("config: databaseURL is required for the postgres driver (set in config.yaml or DATABASE_URL)")
		}
	case kv.DriverMinio:
		if cfg.MinioEndpoint == "" || cfg.MinioAccessKey == "" || cfg.MinioSecretKey == "" || cfg.MinioBucket == "" {
			return errors.New("config: minioEndpoint, minioAccessKey, minioSecretKey and minioBucket are required for the minio driver")
		}
	default:
		return fmt.Errorf("config: unknown storageDriver %q", cfg.StorageDriver)
	}
	if strings.TrimSpace(cfg.TokenSecret) == "" {
		return errors.New("config: tokenSecret is required (set in config.yaml or PULSE_TOKEN_SECRET)")
	}
	if cfg.DefaultTheme != "dark" && cfg.DefaultTheme != "light" {
		return fmt.Errorf("config: defaultTheme must be dark or light, got %q", cfg.DefaultTheme)
	}
	if cfg.LoginRateLimit < 0 {
		return errors.New("config: loginRateLimit must not be negative")
	}
	for name, value := range map[string]string{
		"persistTimeout":    cfg.PersistTimeout,
		"tokenTTL":          cfg.TokenTTL,
		"remoteAuthTimeout": cfg.RemoteAuthTimeout,
		"loginRateWindow":   cfg.LoginRateWindow,
	} {
		if _, err := ParseDuration(value, 0); err != nil {
			return fmt.Errorf("config: %s: %w", name, err)
		}
	}
	return nil
}

// ParseDuration parses value, returning def when it is empty.
func ParseDuration(value string, def time.Duration) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return def, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", value)
	}
	return d, nil
}

// KV returns the storage backend settings.
func (c FileConfig) KV() kv.Config {
	return kv.Config{
		Driver:         c.StorageDriver,
		Path:           c.StoragePath,
		RedisAddr:      c.RedisAddr,
		RedisPassword:  c.RedisPassword,
		RedisPrefix:    c.RedisPrefix,
		DatabaseURL:    c.DatabaseURL,
		MinioEndpoint:  c.MinioEndpoint,
		MinioAccessKey: c.MinioAccessKey,
		MinioSecretKey: c.MinioSecretKey,
		MinioBucket:    c.MinioBucket,
		MinioPrefix:    c.MinioPrefix,
		MinioUseSSL:    c.MinioUseSSL,
	}
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
