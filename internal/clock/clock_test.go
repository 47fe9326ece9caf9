package clock

import (
	"testing"
	"time"
)

func TestMockClock(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mc := NewMockClock(start)

	if !mc.Now().Equal(start) {
		t.Errorf("Now() = %v, want %v", mc.Now(), start)
	}

	mc.Advance(90 * time.Second)
	if got := mc.Since(start); got != 90*time.Second {
		t.Errorf("Since() = %v, want 90s", got)
	}
}

func TestSet(t *testing.T) {
	fixed := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	restore := Set(NewMockClock(fixed))

	if !Now().Equal(fixed) {
		t.Errorf("Now() = %v, want %v", Now(), fixed)
	}

	restore()
	if Now().Equal(fixed) {
		t.Error("restore did not reinstate the real clock")
	}
}
