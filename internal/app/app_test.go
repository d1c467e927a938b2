package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kumanday/OmniLearn/internal/config"
)

func TestPostgresConfig_MapsServiceSettings(t *testing.T) {
	cfg := &config.Config{
		PostgresHost: "db",
		PostgresPort: 6543,
		PostgresUser: "ol",
		PostgresPass: "p@ss",
		PostgresDB:   "learn",
		PostgresSSL:  "require",
		DBMaxConns:   8,
		DBMinConns:   1,
	}

	pg := PostgresConfig(cfg)

	assert.Equal(t, "db", pg.Host)
	assert.Equal(t, 6543, pg.Port)
	assert.Equal(t, int32(8), pg.MaxConns)
	assert.Equal(t, int32(1), pg.MinConns)
	assert.Equal(t, time.Hour, pg.MaxConnLifetime)
	assert.Contains(t, pg.DSN(), "sslmode=require")
	assert.NotContains(t, pg.DSN(), "p@ss@")
}

func TestLLMConfig_CarriesProviderSettings(t *testing.T) {
	cfg := &config.Config{
		AIProvider:    "gemini",
		AIModel:       "gemini-1.5-flash",
		AITimeout:     30 * time.Second,
		GeminiKey:     "g-key",
		GeminiBaseURL: "https://gemini.test/v1beta",
	}

	lc := LLMConfig(cfg)

	assert.Equal(t, "gemini", lc.Provider)
	assert.Equal(t, "gemini-1.5-flash", lc.Model)
	assert.Equal(t, "g-key", lc.GeminiKey)
	assert.Equal(t, "https://gemini.test/v1beta", lc.GeminiBaseURL)
	assert.Equal(t, 30*time.Second, lc.Timeout)
}

func TestRelease_FlushesTracerOnPartialApp(t *testing.T) {
	var order []string
	a := &App{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		tracerShutdown: func(ctx context.Context) error {
			_, hasDeadline := ctx.Deadline()
			assert.True(t, hasDeadline)
			order = append(order, "tracer")
			return nil
		},
		stopBackground: func() { order = append(order, "background") },
	}

	require.NoError(t, a.release())
	assert.Equal(t, []string{"tracer", "background"}, order)
}

func TestRelease_ReportsTracerError(t *testing.T) {
	a := &App{
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		tracerShutdown: func(context.Context) error { return errors.New("exporter unreachable") },
	}

	err := a.release()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "exporter unreachable")
}

func TestNewApp_BadProviderReleasesResources(t *testing.T) {
	cfg := &config.Config{AIProvider: "carrier-pigeon"}

	a, err := NewApp(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))

	require.Error(t, err)
	assert.Nil(t, a)
}
