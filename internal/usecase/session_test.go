package usecase

import (
	"context"
	"errors"
	"testing"
)

func TestSessionSlotBeginCancelsPrevious(t *testing.T) {
	slot := NewSessionSlot()
	first := slot.Begin(context.Background())
	second := slot.Begin(context.Background())

	if !first.Cancelled() {
		t.Fatalf("expected first session cancelled")
	}
	if !errors.Is(context.Cause(first.Context()), ErrCancelled) {
		t.Fatalf("unexpected cause %v", context.Cause(first.Context()))
	}
	if second.Cancelled() || second.ID <= first.ID {
		t.Fatalf("unexpected second session %+v", second)
	}

	// a stale release must not clear the newer session
	slot.Release(first)
	if !slot.Active() {
		t.Fatalf("expected second session still active")
	}
	slot.Release(second)
	if slot.Active() || slot.Cancel() {
		t.Fatalf("expected empty slot")
	}
}

func TestSessionSlotCancel(t *testing.T) {
	slot := NewSessionSlot()
	sess := slot.Begin(context.Background())
	if !slot.Cancel() {
		t.Fatalf("expected cancel to report an active session")
	}
	if !sess.Cancelled() || slot.Active() {
		t.Fatalf("expected cancelled and empty")
	}
}
