package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNew_JSONFormatAddsComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelInfo, Format: FormatJSON, Component: ComponentLedger, Output: &buf})

	logger.Info("applied", FieldCommand, "AddExpense", FieldRevision, int64(3))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%s)", err, buf.String())
	}
	if entry[FieldComponent] != ComponentLedger {
		t.Errorf("component = %v, want %s", entry[FieldComponent], ComponentLedger)
	}
	if entry[FieldCommand] != "AddExpense" {
		t.Errorf("command = %v", entry[FieldCommand])
	}
	if entry[FieldRevision] != float64(3) {
		t.Errorf("revision = %v", entry[FieldRevision])
	}
}

func TestNew_LevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelWarn, Format: FormatText, Output: &buf})

	logger.Debug("hidden")
	logger.Info("hidden too")
	if buf.Len() != 0 {
		t.Fatalf("expected no output below warn, got %q", buf.String())
	}

	logger.Warn("shown")
	if !strings.Contains(buf.String(), "shown") || !strings.Contains(buf.String(), "component=app") {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Output: &buf}).WithComponent(ComponentSync)
	if logger.Component() != ComponentSync {
		t.Fatalf("Component() = %s", logger.Component())
	}
	logger.Info("pushed")
	if !strings.Contains(buf.String(), "component=sync") {
		t.Errorf("component missing from %q", buf.String())
	}
}

func TestMiddleware_RequestIDReachesHandlerLogger(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Output: &buf, Component: ComponentHTTP})

	handler := Middleware(base)(RequestIDMiddleware(func(*http.Request) string { return "req_42" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			FromContext(r.Context()).Info("inside")
		})))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	out := buf.String()
	if !strings.Contains(out, "request_id=req_42") || !strings.Contains(out, "component=http") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestFromContext_FallsBackToDefault(t *testing.T) {
	logger := FromContext(context.Background())
	if logger == nil || logger.Component() != "unknown" {
		t.Fatalf("unexpected fallback logger %+v", logger)
	}
}

func TestStructuredLogger_LogErrorLevels(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Output: &buf, Level: slog.LevelDebug}))

	sl.LogError(context.Background(), "rejected", errors.New("amount must be positive"), ErrorTypeValidation, OpDispatch, nil)
	if !strings.Contains(buf.String(), "level=WARN") {
		t.Errorf("validation errors should log at warn: %q", buf.String())
	}

	buf.Reset()
	sl.LogError(context.Background(), "upload failed", errors.New("timeout"), ErrorTypeTransport, OpPush, NewFields().WithClientIP("10.0.0.1"))
	out := buf.String()
	if !strings.Contains(out, "level=ERROR") || !strings.Contains(out, "client_ip=10.0.0.1") || !strings.Contains(out, "operation=push") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestLogFields_WithHTTPResponse(t *testing.T) {
	f := NewFields().WithHTTPResponse(422, 12)
	if f[FieldSuccess] != false || f[FieldStatusCode] != 422 {
		t.Errorf("unexpected fields %v", f)
	}
	if len(f.ToSlice()) != 6 {
		t.Errorf("ToSlice length = %d", len(f.ToSlice()))
	}
}
