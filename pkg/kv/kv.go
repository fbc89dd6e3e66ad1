package kv

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Driver names accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
	DriverMinio    = "minio"
)

// ErrUnknownDriver is returned by Open for an unsupported backend name.
var ErrUnknownDriver = errors.New("unknown kv driver")

// Store is a durable string-keyed, string-valued store.
// Get reports found=false for a missing key; Remove of a missing key is not an error.
type Store interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Driver string

	// sqlite
	Path string

	// redis
	RedisAddr     string
	RedisPassword string
	RedisPrefix   string

	// postgres
	DatabaseURL string

	// minio
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
	MinioPrefix    string
}

// Open builds the backend named by cfg.Driver.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", DriverSQLite:
		if strings.TrimSpace(cfg.Path) == "" {
			return nil, errors.New("kv: sqlite path required")
		}
		return NewSQLiteStore(ctx, cfg.Path)
	case DriverMemory:
		return NewMemoryStore(), nil
	case DriverRedis:
		if strings.TrimSpace(cfg.RedisAddr) == "" {
			return nil, errors.New("kv: redis addr required")
		}
		return NewRedisStoreFromAddr(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisPrefix), nil
	case DriverPostgres:
		if strings.TrimSpace(cfg.DatabaseURL) == "" {
			return nil, errors.New("kv: database URL required")
		}
		return NewGormStore(cfg.DatabaseURL)
	case DriverMinio:
		return NewMinioStore(ctx, MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
			Prefix:    cfg.MinioPrefix,
		})
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}
