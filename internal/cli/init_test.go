package cli

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"casa/internal/config"
	applog "casa/internal/log"
)

func bufferLogger(buf *bytes.Buffer) *applog.Logger {
	cfg := applog.DefaultConfig()
	cfg.Output = buf
	return applog.New(cfg)
}

func TestGracefulShutdown(t *testing.T) {
	tests := []struct {
		name    string
		cleanup func(ctx context.Context) error
		want    string
	}{
		{
			name:    "clean",
			cleanup: func(context.Context) error { return nil },
			want:    "Shutdown complete",
		},
		{
			name:    "cleanup error",
			cleanup: func(context.Context) error { return errors.New("close failed") },
			want:    "close failed",
		},
		{
			name: "timeout",
			cleanup: func(ctx context.Context) error {
				<-ctx.Done()
				time.Sleep(50 * time.Millisecond)
				return nil
			},
			want: "Shutdown timeout reached",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			GracefulShutdown(bufferLogger(&buf), 20*time.Millisecond, tt.cleanup)
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("log = %q, want it to contain %q", buf.String(), tt.want)
			}
		})
	}
}

func TestSetupLogger(t *testing.T) {
	logger := SetupLogger("debug", "json")
	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug level not enabled")
	}
}

func TestLoadAndValidateConfigReturnsError(t *testing.T) {
	var buf bytes.Buffer
	logger := bufferLogger(&buf)

	t.Setenv("JWT_SECRET", "short")
	if cfg, err := LoadAndValidateConfig(logger); err == nil || cfg != nil {
		t.Fatalf("LoadAndValidateConfig() = %v, %v, want error", cfg, err)
	}
	if !strings.Contains(buf.String(), "Configuration validation failed") {
		t.Errorf("failure not logged: %s", buf.String())
	}

	t.Setenv("JWT_SECRET", strings.Repeat("k", config.MinJWTSecretLength))
	t.Setenv("DATA_BACKEND", "memory")
	if _, err := LoadAndValidateConfig(logger); err != nil {
		t.Fatalf("LoadAndValidateConfig() with valid env: %v", err)
	}
}

func TestInitBackend(t *testing.T) {
	var buf bytes.Buffer
	logger := bufferLogger(&buf)
	ctx := context.Background()

	if _, err := InitBackend(ctx, logger, &config.Config{DataBackend: "postgres"}); err == nil {
		t.Fatal("expected error for unknown backend")
	}

	res, err := InitBackend(ctx, logger, &config.Config{DataBackend: "memory", DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("InitBackend(memory): %v", err)
	}
	if err := res.Ready(ctx); err != nil {
		t.Errorf("Ready() = %v", err)
	}
	if err := res.Cleanup(); err != nil {
		t.Errorf("Cleanup() = %v", err)
	}
}
