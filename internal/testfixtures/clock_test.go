package testfixtures

import (
	"testing"
	"time"
)

func TestClockDefaultsToReferenceTime(t *testing.T) {
	clock := NewClock(time.Time{})
	if !clock.Now().Equal(ReferenceTime()) {
		t.Fatalf("expected ReferenceTime, got %v", clock.Now())
	}
	if !clock.Now().Equal(clock.Now()) {
		t.Fatal("expected frozen clock to keep returning the same instant")
	}
}

func TestClockAdvance(t *testing.T) {
	start := time.Date(2024, time.March, 14, 9, 26, 0, 0, time.UTC)
	clock := NewClock(start)

	if got := clock.Advance(90 * time.Minute); !got.Equal(start.Add(90 * time.Minute)) {
		t.Fatalf("advance returned %v", got)
	}
	if got := clock.NowFunc()(); !got.Equal(start.Add(90 * time.Minute)) {
		t.Fatalf("NowFunc returned %v", got)
	}
}

func TestTickingClock(t *testing.T) {
	start := time.Date(2024, time.March, 14, 9, 0, 0, 0, time.UTC)
	clock := NewTickingClock(start, time.Second)

	first := clock.Now()
	second := clock.Now()
	if !first.Equal(start) || !second.Equal(start.Add(time.Second)) {
		t.Fatalf("unexpected readings %v, %v", first, second)
	}
}

func TestNilClockNowFuncFallsBack(t *testing.T) {
	var clock *Clock
	if clock.NowFunc() == nil {
		t.Fatal("expected fallback function")
	}
}
