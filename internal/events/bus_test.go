package events

import (
	"testing"
	"time"
)

func TestEmitDeliversInRegistrationOrder(t *testing.T) {
	b := New()
	var order []int
	b.On(Progress, func(args ...any) { order = append(order, 1) })
	b.On(Progress, func(args ...any) { order = append(order, 2) })
	b.On(Progress, func(args ...any) { order = append(order, 3) })

	b.Emit(Progress, 0.5, 0)

	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Fatalf("expected in-order delivery 1,2,3; got %v", order)
	}
}

func TestEmitPassesArgsThenExtra(t *testing.T) {
	b := New()
	var got []any
	b.On(Info, func(args ...any) { got = args }, "constant-tag")

	b.Emit(Info, "message text", 2)

	want := []any{"message text", 2, "constant-tag"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("arg %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestOffRemovesOnlyThatObserver(t *testing.T) {
	b := New()
	var firedA, firedB bool
	ha := b.On(Debug, func(args ...any) { firedA = true })
	b.On(Debug, func(args ...any) { firedB = true })

	b.Off(ha)
	b.Emit(Debug, "x")

	if firedA {
		t.Fatalf("observer A should have been unregistered")
	}
	if !firedB {
		t.Fatalf("observer B should still fire")
	}
}

func TestEmitIsSynchronous(t *testing.T) {
	b := New()
	done := make(chan struct{})
	b.On(PartFinished, func(args ...any) {
		time.Sleep(10 * time.Millisecond)
		close(done)
	})

	b.Emit(PartFinished, 0)

	select {
	case <-done:
	default:
		t.Fatalf("Emit returned before the blocking observer finished")
	}
}

func TestEmitWithNoObserversIsNoop(t *testing.T) {
	b := New()
	b.Emit(GotDuration, 12.5)
}
