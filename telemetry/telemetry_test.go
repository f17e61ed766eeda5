package telemetry

import (
	"context"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/embed-runtime/config"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.Log
		enabled zapcore.Level
		hidden  zapcore.Level
		wantErr bool
	}{
		{"json info", config.Log{Level: "info", Format: "json"}, zapcore.InfoLevel, zapcore.DebugLevel, false},
		{"console debug", config.Log{Level: "debug", Format: "console"}, zapcore.DebugLevel, zapcore.DebugLevel - 1, false},
		{"json error", config.Log{Level: "error", Format: "json"}, zapcore.ErrorLevel, zapcore.WarnLevel, false},
		{"bad level", config.Log{Level: "loud", Format: "json"}, 0, 0, true},
		{"bad format", config.Log{Level: "info", Format: "xml"}, 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := NewLogger(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("NewLogger(%+v) succeeded", tt.cfg)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewLogger: %v", err)
			}
			if !l.Core().Enabled(tt.enabled) {
				t.Fatalf("level %s disabled", tt.enabled)
			}
			if l.Core().Enabled(tt.hidden) {
				t.Fatalf("level %s enabled", tt.hidden)
			}
		})
	}
}

func TestSetupTracingDisabled(t *testing.T) {
	ctx := context.Background()
	for _, cfg := range []config.Telemetry{
		{Enabled: false, Endpoint: "localhost:4318"},
		{Enabled: true},
	} {
		tp, shutdown, err := SetupTracing(ctx, cfg)
		if err != nil {
			t.Fatalf("SetupTracing(%+v): %v", cfg, err)
		}
		if _, ok := tp.(noop.TracerProvider); !ok {
			t.Fatalf("provider = %T, want no-op", tp)
		}
		if err := shutdown(ctx); err != nil {
			t.Fatalf("shutdown: %v", err)
		}
	}
}

func TestSetupTracingEnabled(t *testing.T) {
	ctx := context.Background()
	tp, shutdown, err := SetupTracing(ctx, config.Telemetry{
		Enabled:     true,
		Endpoint:    "http://127.0.0.1:4318",
		ServiceName: "embed-test",
	})
	if err != nil {
		t.Fatalf("SetupTracing: %v", err)
	}
	if _, ok := tp.(*sdktrace.TracerProvider); !ok {
		t.Fatalf("provider = %T, want sdk provider", tp)
	}
	if err := shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}
