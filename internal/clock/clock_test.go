package clock

import (
	"testing"
	"time"
)

func TestTestClockAdvanceAndSet(t *testing.T) {
	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewTestClock(start)

	c.Advance(90 * time.Second)
	if got := c.Now(); !got.Equal(start.Add(90 * time.Second)) {
		t.Fatalf("Expected %v, got %v", start.Add(90*time.Second), got)
	}

	c.Set(start)
	if got := c.Now(); !got.Equal(start) {
		t.Fatalf("Expected %v, got %v", start, got)
	}
}

func TestTestClockTickersFireOnDemand(t *testing.T) {
	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewTestClock(start)

	ticker := c.NewTicker(time.Second)
	if c.ActiveTickers() != 1 {
		t.Fatalf("Expected 1 active ticker, got %d", c.ActiveTickers())
	}

	select {
	case <-ticker.C():
		t.Fatal("ticker fired before Fire")
	default:
	}

	c.Advance(time.Second)
	c.Fire()
	c.Fire() // dropped, previous tick unread

	if got := <-ticker.C(); !got.Equal(start.Add(time.Second)) {
		t.Errorf("Expected tick at %v, got %v", start.Add(time.Second), got)
	}
	select {
	case <-ticker.C():
		t.Fatal("expected second tick to be dropped")
	default:
	}

	ticker.Stop()
	if c.ActiveTickers() != 0 {
		t.Errorf("Expected 0 active tickers, got %d", c.ActiveTickers())
	}
}

func TestRealClockTicker(t *testing.T) {
	ticker := RealClock{}.NewTicker(time.Millisecond)
	defer ticker.Stop()

	select {
	case <-ticker.C():
	case <-time.After(time.Second):
		t.Fatal("real ticker did not fire")
	}
}
