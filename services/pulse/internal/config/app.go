package config

import (
	"fmt"
	"log/slog"
	"time"

	"learningpulse/pkg/domain"
	"learningpulse/services/pulse/internal/app"
)

// AppConfig converts the file config into app settings.
func (c FileConfig) AppConfig(logger *slog.Logger) (app.Config, error) {
	persistTimeout, err := ParseDuration(c.PersistTimeout, 3*time.Second)
	if err != nil {
		return app.Config{}, fmt.Errorf("persistTimeout: %w", err)
	}
	tokenTTL, err := ParseDuration(c.TokenTTL, 0)
	if err != nil {
		return app.Config{}, fmt.Errorf("tokenTTL: %w", err)
	}
	remoteTimeout, err := ParseDuration(c.RemoteAuthTimeout, 0)
	if err != nil {
		return app.Config{}, fmt.Errorf("remoteAuthTimeout: %w", err)
	}
	return app.Config{
		KV:                c.KV(),
		PersistTimeout:    persistTimeout,
		DefaultTheme:      domain.Theme(c.DefaultTheme),
		TokenSecret:       c.TokenSecret,
		TokenTTL:          tokenTTL,
		RemoteAuthURL:     c.RemoteAuthURL,
		RemoteAuthTimeout: remoteTimeout,
		Logger:            logger,
	}, nil
}
