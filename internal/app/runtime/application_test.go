package runtime

import (
	"context"
	"testing"
	"time"
)

func TestNewApplicationDefaultsToMemoryStore(t *testing.T) {
	t.Setenv("FG_DB_DSN", "")
	t.Setenv("FG_SERVER_PORT", "18099")

	app, err := NewApplication()
	if err != nil {
		t.Fatalf("new application: %v", err)
	}

	ctx := context.Background()
	m, err := app.Engine().Members.Create(ctx, "f1", "Ana", "parent")
	if err != nil {
		t.Fatalf("create member through engine: %v", err)
	}
	if m.ID == "" {
		t.Fatalf("member id not assigned: %+v", m)
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := app.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}
