package shutdown

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"publishd/internal/pkg/logger"
)

func newTestLogger() *logger.Logger {
	var buf bytes.Buffer
	return logger.New(logger.Config{
		Level:  "debug",
		Format: "json",
		Output: &buf,
	})
}

func TestRegister(t *testing.T) {
	mgr := NewManager(newTestLogger(), 5*time.Second)

	mgr.Register("test", func(ctx context.Context) error {
		return nil
	})

	if len(mgr.handlers) != 1 {
		t.Fatalf("expected 1 handler, got %d", len(mgr.handlers))
	}
	if mgr.handlers[0].Name != "test" {
		t.Errorf("expected handler name 'test', got %s", mgr.handlers[0].Name)
	}
}

func TestShutdownRunsHandlersLIFO(t *testing.T) {
	mgr := NewManager(newTestLogger(), 5*time.Second)

	var order []string
	mgr.RegisterSimple("first", func() { order = append(order, "first") })
	mgr.RegisterSimple("second", func() { order = append(order, "second") })

	mgr.Shutdown()

	if len(order) != 2 || order[0] != "second" || order[1] != "first" {
		t.Errorf("expected LIFO order [second first], got %v", order)
	}
}

func TestShutdownContinuesAfterHandlerError(t *testing.T) {
	mgr := NewManager(newTestLogger(), 5*time.Second)

	var ran bool
	mgr.RegisterSimple("survivor", func() { ran = true })
	mgr.Register("failing", func(ctx context.Context) error {
		return fmt.Errorf("cleanup failed")
	})

	mgr.Shutdown()

	if !ran {
		t.Error("expected remaining handlers to run after a handler error")
	}
}

func TestShutdownIsIdempotent(t *testing.T) {
	mgr := NewManager(newTestLogger(), 5*time.Second)

	var count int
	mgr.RegisterSimple("counter", func() { count++ })

	mgr.Shutdown()
	mgr.Shutdown()

	if count != 1 {
		t.Errorf("expected handlers to run once, ran %d times", count)
	}
}

func TestDoneClosedAfterShutdown(t *testing.T) {
	mgr := NewManager(newTestLogger(), time.Second)

	select {
	case <-mgr.Done():
		t.Fatal("done channel closed before shutdown")
	default:
	}

	mgr.Shutdown()

	select {
	case <-mgr.Done():
	case <-time.After(time.Second):
		t.Fatal("done channel not closed after shutdown")
	}
}

func TestDefaultTimeout(t *testing.T) {
	mgr := NewManager(newTestLogger(), 0)
	if mgr.timeout != 30*time.Second {
		t.Errorf("expected default timeout 30s, got %s", mgr.timeout)
	}
}
