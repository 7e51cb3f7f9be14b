package clock

import (
	"testing"
	"time"
)

func TestNow_ReturnsCurrentTime(t *testing.T) {
	before := time.Now()
	result := Now()
	after := time.Now()

	if result.Before(before) || result.After(after) {
		t.Errorf("Now() returned %v, expected between %v and %v", result, before, after)
	}
}

func TestMockClock_Advance(t *testing.T) {
	mockTime := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	mock := NewMockClock(mockTime)

	mock.Advance(time.Hour)

	expected := mockTime.Add(time.Hour)
	if !mock.Now().Equal(expected) {
		t.Errorf("After Advance, Now() = %v, expected %v", mock.Now(), expected)
	}
	if mock.Since(mockTime) != time.Hour {
		t.Errorf("Since() = %v, expected 1h", mock.Since(mockTime))
	}
}

func TestMockClock_Set(t *testing.T) {
	mock := NewMockClock(time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC))

	newTime := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)
	mock.Set(newTime)

	if !mock.Now().Equal(newTime) {
		t.Errorf("After Set, Now() = %v, expected %v", mock.Now(), newTime)
	}
}

func TestMockClock_SleepAdvancesAndHooks(t *testing.T) {
	start := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	mock := NewMockClock(start)

	var slept []time.Duration
	mock.OnSleep(func(d time.Duration) { slept = append(slept, d) })

	mock.Sleep(100 * time.Millisecond)
	mock.Sleep(100 * time.Millisecond)

	if mock.Sleeps() != 2 {
		t.Errorf("Sleeps() = %d, expected 2", mock.Sleeps())
	}
	if got := mock.Since(start); got != 200*time.Millisecond {
		t.Errorf("Since(start) = %v, expected 200ms", got)
	}
	if len(slept) != 2 {
		t.Errorf("hook called %d times, expected 2", len(slept))
	}
}

func TestClockInterface(t *testing.T) {
	var _ Clock = &RealClock{}
	var _ Clock = &MockClock{}
}

func TestRealClock_Since(t *testing.T) {
	c := &RealClock{}

	past := time.Now().Add(-time.Hour)
	result := c.Since(past)

	if result < time.Hour-time.Second || result > time.Hour+time.Second {
		t.Errorf("RealClock.Since() = %v, expected approximately 1 hour", result)
	}
}
