package logging

import (
	"context"
	"log/slog"
	"testing"

	"github.com/lovendo/analytics-service/common/middleware"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name   string
		level  slog.Level
		format string
	}{
		{
			name:   "json format with info level",
			level:  slog.LevelInfo,
			format: "json",
		},
		{
			name:   "text format with debug level",
			level:  slog.LevelDebug,
			format: "text",
		},
		{
			name:   "default format (json) with error level",
			level:  slog.LevelError,
			format: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := New(tt.level, tt.format)
			if logger == nil {
				t.Fatal("expected non-nil logger")
			}
			if logger.Logger == nil {
				t.Fatal("expected non-nil underlying logger")
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestWithContext(t *testing.T) {
	logger := New(slog.LevelInfo, "json")

	t.Run("without request ID", func(t *testing.T) {
		l := logger.WithContext(context.Background())
		if l == nil {
			t.Fatal("expected non-nil logger")
		}
	})

	t.Run("with request ID", func(t *testing.T) {
		ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-123")
		l := logger.WithContext(ctx)
		if l == nil {
			t.Fatal("expected non-nil logger")
		}
		if l == logger.Logger {
			t.Error("expected a derived logger when request ID is present")
		}
	})
}

func TestWith(t *testing.T) {
	logger := New(slog.LevelInfo, "json")
	derived := logger.With(Service("analytics"))
	if derived == nil || derived.Logger == nil {
		t.Fatal("expected non-nil derived logger")
	}
	if derived == logger {
		t.Error("With should return a new logger")
	}
}
