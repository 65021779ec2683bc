package engine

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestSimpleTimerScheduleAfter(t *testing.T) {
	timer := NewSimpleTimer()
	defer timer.Stop()

	var fired atomic.Int32
	id, err := timer.ScheduleAfter(10*time.Millisecond, func() { fired.Add(1) })
	if err != nil {
		t.Fatalf("ScheduleAfter failed: %v", err)
	}
	if id == "" {
		t.Fatal("empty timer id")
	}

	deadline := time.After(2 * time.Second)
	for fired.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("timer never fired")
		case <-time.After(5 * time.Millisecond):
		}
	}
	if fired.Load() != 1 {
		t.Errorf("fired %d times, want 1", fired.Load())
	}
}

func TestSimpleTimerCancel(t *testing.T) {
	timer := NewSimpleTimer()
	defer timer.Stop()

	var fired atomic.Int32
	id, err := timer.ScheduleAfter(50*time.Millisecond, func() { fired.Add(1) })
	if err != nil {
		t.Fatalf("ScheduleAfter failed: %v", err)
	}
	if err := timer.Cancel(id); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	time.Sleep(100 * time.Millisecond)
	if fired.Load() != 0 {
		t.Errorf("canceled timer fired")
	}

	// Canceling an unknown or already-canceled id is not an error.
	if err := timer.Cancel(id); err != nil {
		t.Errorf("second Cancel errored: %v", err)
	}
	if err := timer.Cancel("timer_999"); err != nil {
		t.Errorf("Cancel of unknown id errored: %v", err)
	}
}

func TestSimpleTimerStop(t *testing.T) {
	timer := NewSimpleTimer()

	var fired atomic.Int32
	for i := 0; i < 3; i++ {
		if _, err := timer.ScheduleAfter(50*time.Millisecond, func() { fired.Add(1) }); err != nil {
			t.Fatalf("ScheduleAfter failed: %v", err)
		}
	}
	timer.Stop()

	time.Sleep(100 * time.Millisecond)
	if fired.Load() != 0 {
		t.Errorf("timers fired after Stop: %d", fired.Load())
	}
}

func TestSimpleTimerIDsUnique(t *testing.T) {
	timer := NewSimpleTimer()
	defer timer.Stop()

	seen := make(map[string]bool)
	for i := 0; i < 10; i++ {
		id, err := timer.ScheduleAfter(time.Hour, func() {})
		if err != nil {
			t.Fatalf("ScheduleAfter failed: %v", err)
		}
		if seen[id] {
			t.Fatalf("duplicate timer id %s", id)
		}
		seen[id] = true
	}
}
