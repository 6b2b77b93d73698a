package timeutil

import (
	"testing"
	"time"
)

func TestRealClock_Now(t *testing.T) {
	clock := RealClock{}
	before := time.Now()
	now := clock.Now()
	after := time.Now()

	if now.Before(before) || now.After(after) {
		t.Errorf("Now() = %v, expected between %v and %v", now, before, after)
	}
}

func TestRealClock_Since(t *testing.T) {
	clock := RealClock{}
	past := time.Now().Add(-time.Second)
	d := clock.Since(past)

	if d < time.Second {
		t.Errorf("Since() returned %v, expected >= 1s", d)
	}
}

func TestRealClock_Sleep(t *testing.T) {
	clock := RealClock{}
	start := time.Now()
	clock.Sleep(5 * time.Millisecond)

	if elapsed := time.Since(start); elapsed < 5*time.Millisecond {
		t.Errorf("Sleep returned after %v, expected >= 5ms", elapsed)
	}
}

func TestMockClock_Now(t *testing.T) {
	fixedTime := time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)
	clock := NewMockClock(fixedTime)
	now := clock.Now()

	if !now.Equal(fixedTime) {
		t.Errorf("got %v, want %v", now, fixedTime)
	}
}

func TestMockClock_Advance(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewMockClock(start)
	clock.Advance(90 * time.Second)

	if got := clock.Since(start); got != 90*time.Second {
		t.Errorf("Since() = %v, want 90s", got)
	}
}

func TestMockClock_SleepRecordsAndAdvances(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewMockClock(start)

	clock.Sleep(time.Millisecond)
	clock.Sleep(10 * time.Millisecond)

	sleeps := clock.Sleeps()
	if len(sleeps) != 2 {
		t.Fatalf("expected 2 sleeps, got %d", len(sleeps))
	}
	if sleeps[0] != time.Millisecond || sleeps[1] != 10*time.Millisecond {
		t.Errorf("unexpected sleeps %v", sleeps)
	}
	if got := clock.Since(start); got != 11*time.Millisecond {
		t.Errorf("Since() = %v, want 11ms", got)
	}
}

func TestMockClock_OnSleepHook(t *testing.T) {
	clock := NewMockClock(time.Time{})
	var calls []int
	clock.OnSleep = func(n int) { calls = append(calls, n) }

	for i := 0; i < 3; i++ {
		clock.Sleep(time.Millisecond)
	}

	if len(calls) != 3 || calls[0] != 1 || calls[2] != 3 {
		t.Errorf("OnSleep calls = %v, want [1 2 3]", calls)
	}
}

func TestMockClock_SleepsReturnsCopy(t *testing.T) {
	clock := NewMockClock(time.Time{})
	clock.Sleep(time.Millisecond)

	s := clock.Sleeps()
	s[0] = time.Hour

	if clock.Sleeps()[0] != time.Millisecond {
		t.Error("Sleeps() should return a copy")
	}
}
