package timeutil

import (
	"testing"
	"time"
)

func TestMockClock_Advance(t *testing.T) {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c := NewMockClock(start)

	if !c.Now().Equal(start) {
		t.Fatalf("Expected %v, got %v", start, c.Now())
	}

	c.Advance(1500 * time.Millisecond)
	if want := start.Add(1500 * time.Millisecond); !c.Now().Equal(want) {
		t.Errorf("Expected %v, got %v", want, c.Now())
	}
}

func TestRealClock_Now(t *testing.T) {
	before := time.Now()
	got := RealClock{}.Now()
	if got.Before(before) {
		t.Errorf("Expected time at or after %v, got %v", before, got)
	}
}
