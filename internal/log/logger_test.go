package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestLogger_WithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelDebug, Output: &buf})
	if logger.Component() != ComponentApp {
		t.Errorf("Component() = %q, want %q", logger.Component(), ComponentApp)
	}

	worker := logger.WithComponent(ComponentWorker)
	worker.Info("Exported purchase", FieldPurchaseID, 7)

	out := buf.String()
	if !strings.Contains(out, "component=worker") {
		t.Errorf("missing component in %q", out)
	}
	if !strings.Contains(out, "purchase_id=7") {
		t.Errorf("missing purchase id in %q", out)
	}
}

func TestLogger_Level(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelWarn, Output: &buf})
	logger.Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("info written at warn level: %q", buf.String())
	}
}

func TestFromContext(t *testing.T) {
	if FromContext(context.Background()) != slog.Default() {
		t.Error("expected default logger without a stored one")
	}

	stored := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	ctx := WithContext(context.Background(), stored)
	if FromContext(ctx) != stored {
		t.Error("expected stored logger")
	}
}

func TestFields(t *testing.T) {
	f := NewFields().
		WithComponent(ComponentHTTP).
		WithOperation("delete_card").
		WithError(errors.New("boom")).
		WithRequest("DELETE", "/api/cards/1", "")

	if f[FieldError] != "boom" || f[FieldComponent] != ComponentHTTP {
		t.Errorf("unexpected fields %v", f)
	}
	if _, ok := f[FieldQuery]; ok {
		t.Error("empty query should be omitted")
	}
	if got := len(f.ToSlice()); got != 2*len(f) {
		t.Errorf("ToSlice() len = %d, want %d", got, 2*len(f))
	}
	if _, ok := NewFields().WithError(nil)[FieldError]; ok {
		t.Error("nil error should be omitted")
	}
}
