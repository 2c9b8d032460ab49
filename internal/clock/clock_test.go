package clock_test

import (
	"testing"
	"time"

	"github.com/jpalmerr/slowpoll/internal/clock"
)

func TestRealNowUsesUTC(t *testing.T) {
	now := clock.Real{}.Now()
	if loc := now.Location(); loc != time.UTC {
		t.Fatalf("Now() location = %v, want UTC", loc)
	}
	if delta := time.Since(now); delta < 0 || delta > time.Second {
		t.Fatalf("unexpected Now() delta: %v", delta)
	}
}

func TestRealAfterFires(t *testing.T) {
	select {
	case <-clock.Real{}.After(10 * time.Millisecond):
	case <-time.After(500 * time.Millisecond):
		t.Fatal("After() did not fire")
	}
}

func TestManualAdvance(t *testing.T) {
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	m := clock.NewManual(start)

	if got := m.Now(); !got.Equal(start) {
		t.Fatalf("Now() = %v, want %v", got, start)
	}

	ch := m.After(2 * time.Second)
	if m.Waiters() != 1 {
		t.Fatalf("Waiters() = %d, want 1", m.Waiters())
	}

	m.Advance(time.Second)
	select {
	case <-ch:
		t.Fatal("After(2s) fired after advancing 1s")
	default:
	}

	m.Advance(time.Second)
	select {
	case at := <-ch:
		if want := start.Add(2 * time.Second); !at.Equal(want) {
			t.Errorf("fired at %v, want %v", at, want)
		}
	default:
		t.Fatal("After(2s) did not fire after advancing 2s")
	}

	if m.Waiters() != 0 {
		t.Errorf("Waiters() = %d, want 0", m.Waiters())
	}
}

func TestManualAfterNonPositiveFiresImmediately(t *testing.T) {
	m := clock.NewManual(time.Unix(0, 0))

	select {
	case <-m.After(0):
	default:
		t.Fatal("After(0) should fire immediately")
	}
}

func TestManualAdvanceNegativeIsNoop(t *testing.T) {
	start := time.Unix(100, 0)
	m := clock.NewManual(start)

	if got := m.Advance(-time.Hour); !got.Equal(start.UTC()) {
		t.Errorf("Advance(-1h) = %v, want %v", got, start.UTC())
	}
}
