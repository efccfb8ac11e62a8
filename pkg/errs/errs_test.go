package errs

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	t.Run("typed error", func(t *testing.T) {
		err := New(KindConflict, "ORDER_ALREADY_CANCELLED", "order is already cancelled")
		if KindOf(err) != KindConflict {
			t.Fatalf("expected conflict, got %v", KindOf(err))
		}
		if CodeOf(err) != "ORDER_ALREADY_CANCELLED" {
			t.Fatalf("unexpected code %q", CodeOf(err))
		}
	})

	t.Run("wrapped typed error", func(t *testing.T) {
		inner := New(KindNotFound, "PRODUCT_NOT_FOUND", "no such product")
		err := fmt.Errorf("pricing cart: %w", inner)
		if KindOf(err) != KindNotFound {
			t.Fatalf("expected not_found through wrap, got %v", KindOf(err))
		}
	})

	t.Run("plain error", func(t *testing.T) {
		err := errors.New("boom")
		if KindOf(err) != KindInternal {
			t.Fatalf("expected internal, got %v", KindOf(err))
		}
		if CodeOf(err) != "INTERNAL" {
			t.Fatalf("unexpected code %q", CodeOf(err))
		}
	})
}

func TestUnwrap(t *testing.T) {
	inner := errors.New("socket closed")
	err := Wrap(KindDependency, "PROVIDER_UNREACHABLE", "payment provider call failed", inner)
	if !errors.Is(err, inner) {
		t.Fatal("expected errors.Is to reach the wrapped cause")
	}
}
