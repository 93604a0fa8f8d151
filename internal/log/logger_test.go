package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewJSONLoggerStampsComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelInfo, Format: FormatJSON, Component: ComponentLedger, Output: &buf})

	logger.Info("hello", FieldUserID, 7)
	logger.Debug("hidden")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d: %q", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if rec[FieldComponent] != ComponentLedger || rec[FieldUserID] != float64(7) {
		t.Fatalf("unexpected record %v", rec)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
		"loud":  slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestContextRoundTrip(t *testing.T) {
	logger := New(Config{Format: FormatText, Output: &bytes.Buffer{}, Component: ComponentHTTP})
	ctx := NewContext(context.Background(), logger)
	if FromContext(ctx) != logger {
		t.Fatalf("logger not carried in context")
	}
	if FromContext(context.Background()).Component() != "unknown" {
		t.Fatalf("expected fallback logger")
	}
}

func TestLogHTTPEndAndError(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelDebug, Format: FormatJSON, Output: &buf, Component: ComponentHTTP})
	ctx := NewContext(context.Background(), logger)

	r := httptest.NewRequest("GET", "/api/summary/monthly?year=2025&month=3", nil)
	LogHTTPEnd(ctx, r, 503, 12, "127.0.0.1")
	LogError(ctx, logger, "store failed", errors.New("disk full"), OpCreate, NewFields().WithUser(3))

	out := buf.String()
	for _, want := range []string{`"level":"ERROR"`, `"status_code":503`, `"error":"disk full"`, `"operation":"create"`, `"user_id":3`} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %s: %s", want, out)
		}
	}
}
