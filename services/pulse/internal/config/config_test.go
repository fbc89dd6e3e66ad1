package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"learningpulse/pkg/kv"
)

var envKeys = []string{
	"PULSE_PORT", "PULSE_LOG_LEVEL", "PULSE_STORAGE_DRIVER", "PULSE_STORAGE_PATH", "PULSE_PERSIST_TIMEOUT",
	"REDIS_ADDR", "REDIS_PASSWORD", "DATABASE_URL", "MINIO_ENDPOINT", "MINIO_ACCESS_KEY",
	"MINIO_SECRET_KEY", "MINIO_BUCKET", "MINIO_USE_SSL", "PULSE_DEFAULT_THEME", "PULSE_TOKEN_SECRET",
	"PULSE_REMOTE_AUTH_URL", "PULSE_LOGIN_RATE_LIMIT", "PULSE_ALLOWED_ORIGINS", "PULSE_TRUSTED_PROXIES",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFileWithDefaults(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
port: "9000"
storagePath: /tmp/pulse-test.db
tokenSecret: dev-secret
remoteAuthURL: https://dummyjson.com
allowedOrigins: ["http://localhost:8081"]
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "9000" || cfg.StorageDriver != kv.DriverSQLite || cfg.DefaultTheme != "dark" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.LoginRateLimit != 10 || cfg.LoginRateWindow != "1m" {
		t.Fatalf("expected rate limit defaults, got %d/%s", cfg.LoginRateLimit, cfg.LoginRateWindow)
	}
	if got := cfg.KV(); got.Path != "/tmp/pulse-test.db" || got.Driver != kv.DriverSQLite {
		t.Fatalf("unexpected kv config: %+v", got)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "tokenSecret: from-file\n")
	t.Setenv("PULSE_STORAGE_DRIVER", " Redis ")
	t.Setenv("REDIS_ADDR", "127.0.0.1:6379")
	t.Setenv("PULSE_TOKEN_SECRET", "from-env")
	t.Setenv("PULSE_ALLOWED_ORIGINS", "http://a.test, http://b.test")
	t.Setenv("PULSE_LOGIN_RATE_LIMIT", "3")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StorageDriver != kv.DriverRedis || cfg.RedisAddr != "127.0.0.1:6379" {
		t.Fatalf("expected redis overrides, got %+v", cfg)
	}
	if cfg.TokenSecret != "from-env" || cfg.LoginRateLimit != 3 {
		t.Fatalf("expected env to win, got %+v", cfg)
	}
	if strings.Join(cfg.AllowedOrigins, "|") != "http://a.test|http://b.test" {
		t.Fatalf("unexpected origins %v", cfg.AllowedOrigins)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("PULSE_TOKEN_SECRET", "s")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8090" || cfg.StoragePath != "pulse.db" {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestValidateConfig(t *testing.T) {
	clearEnv(t)
	cases := map[string]string{
		"missing secret":  "port: \"8090\"\n",
		"bad port":        "port: \"http\"\ntokenSecret: s\n",
		"unknown driver":  "storageDriver: etcd\ntokenSecret: s\n",
		"redis no addr":   "storageDriver: redis\ntokenSecret: s\n",
		"postgres no url": "storageDriver: postgres\ntokenSecret: s\n",
		"minio partial":   "storageDriver: minio\nminioEndpoint: localhost:9000\ntokenSecret: s\n",
		"bad theme":       "defaultTheme: sepia\ntokenSecret: s\n",
		"bad duration":    "persistTimeout: soon\ntokenSecret: s\n",
		"malformed yaml":  "port: [\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, body)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestParseDuration(t *testing.T) {
	if d, err := ParseDuration("", 5*time.Second); err != nil || d != 5*time.Second {
		t.Fatalf("expected default, got %v %v", d, err)
	}
	if d, err := ParseDuration("250ms", 0); err != nil || d != 250*time.Millisecond {
		t.Fatalf("expected 250ms, got %v %v", d, err)
	}
	if _, err := ParseDuration("-1s", 0); err == nil {
		t.Fatalf("expected negative duration to fail")
	}
}

func TestAppConfig(t *testing.T) {
	cfg := Defaults()
	cfg.TokenSecret = "s"
	cfg.StorageDriver = kv.DriverMemory
	cfg.RemoteAuthURL = "https://auth.example.com"

	out, err := cfg.AppConfig(nil)
	if err != nil {
		t.Fatalf("app config: %v", err)
	}
	if out.PersistTimeout != 3*time.Second || out.TokenTTL != 720*time.Hour || out.RemoteAuthTimeout != 10*time.Second {
		t.Fatalf("unexpected durations: %+v", out)
	}
	if out.KV.Driver != kv.DriverMemory || out.DefaultTheme != "dark" || out.RemoteAuthURL != "https://auth.example.com" {
		t.Fatalf("unexpected app config: %+v", out)
	}

	cfg.TokenTTL = "soon"
	if _, err := cfg.AppConfig(nil); err == nil {
		t.Fatalf("expected error for bad tokenTTL")
	}
}
