package cli

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	applog "moneylens/internal/log"
)

func TestSetupLoggerReadsEnv(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "json")

	logger := SetupLogger("api")
	assert.Equal(t, "api", logger.Component())
	assert.True(t, slog.Default().Enabled(context.Background(), slog.LevelDebug))
}

func TestLoadConfigByRole(t *testing.T) {
	t.Setenv("JWT_SECRET", "0123456789abcdef0123")
	t.Setenv("DATA_BACKEND", "memory")
	t.Setenv("AMQP_URL", "")

	cfg, err := LoadConfig(RoleAPI)
	require.NoError(t, err)
	assert.False(t, cfg.EventsEnabled())

	_, err = LoadConfig(RoleWorker)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AMQP_URL is required")

	t.Setenv("JWT_SECRET", "")
	_, err = LoadConfig(RoleAPI)
	require.Error(t, err)
}

func TestShutdownRunsCleanup(t *testing.T) {
	var buf bytes.Buffer
	logger := applog.New(applog.Config{Level: slog.LevelInfo, Format: "text", Output: &buf})

	sig := make(chan os.Signal, 1)
	cleaned := make(chan struct{})
	ctx, done := shutdownOn(logger, sig, time.Second, func(ctx context.Context) {
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		close(cleaned)
	})

	sig <- syscall.SIGTERM
	WaitForShutdown(ctx, done)

	select {
	case <-cleaned:
	default:
		t.Fatal("cleanup was not called")
	}
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
	assert.Contains(t, buf.String(), "Shutdown complete")
}
