package notify

import (
	"sort"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/Joseda-hg/taskflow/internal/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type manualClock struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*manualTimer
}

type manualTimer struct {
	at      time.Duration
	fn      func()
	stopped bool
	fired   bool
}

func (t *manualTimer) Stop() bool {
	was := !t.stopped && !t.fired
	t.stopped = true
	return was
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	timer := &manualTimer{at: c.now + d, fn: f}
	c.timers = append(c.timers, timer)
	return timer
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	due := make([]*manualTimer, 0)
	for _, timer := range c.timers {
		if !timer.stopped && !timer.fired && timer.at <= c.now {
			timer.fired = true
			due = append(due, timer)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].at < due[j].at })
	c.mu.Unlock()
	for _, timer := range due {
		timer.fn()
	}
}

func TestShowThenExpire(t *testing.T) {
	clock := &manualClock{}
	q := New(3*time.Second, WithAfterFunc(clock.AfterFunc))

	q.Success("Task added successfully")
	current, ok := q.Current()
	if !ok || current.Message != "Task added successfully" || current.Severity != model.SeveritySuccess {
		t.Fatalf("expected visible success notification, got %+v", current)
	}

	clock.Advance(2999 * time.Millisecond)
	if _, ok := q.Current(); !ok {
		t.Fatalf("expected notification to still be visible before the duration")
	}
	clock.Advance(time.Millisecond)
	if _, ok := q.Current(); ok {
		t.Fatalf("expected notification to be hidden after the duration")
	}
}

func TestShowTwiceRestartsTimer(t *testing.T) {
	clock := &manualClock{}
	q := New(3*time.Second, WithAfterFunc(clock.AfterFunc))

	q.Success("first")
	clock.Advance(2 * time.Second)
	q.Error("second")

	clock.Advance(1500 * time.Millisecond)
	current, ok := q.Current()
	if !ok || current.Message != "second" || current.Severity != model.SeverityError {
		t.Fatalf("expected second notification to survive the first timer, got %+v visible=%v", current, ok)
	}

	clock.Advance(1500 * time.Millisecond)
	if _, ok := q.Current(); ok {
		t.Fatalf("expected second notification to expire 3s after it was shown")
	}
}

func TestStaleTimerIgnoredEvenIfStopRaces(t *testing.T) {
	var fns []func()
	q := New(time.Second, WithAfterFunc(func(_ time.Duration, f func()) Timer {
		fns = append(fns, f)
		return noopTimer{}
	}))

	q.Success("first")
	q.Success("second")
	fns[0]()
	if current, ok := q.Current(); !ok || current.Message != "second" {
		t.Fatalf("expected stale timer to be ignored, got %+v visible=%v", current, ok)
	}
	fns[1]()
	if _, ok := q.Current(); ok {
		t.Fatalf("expected current timer to hide the notification")
	}
}

func TestDismissAndOnChange(t *testing.T) {
	clock := &manualClock{}
	q := New(time.Second, WithAfterFunc(clock.AfterFunc))
	changes := 0
	q.OnChange(func() { changes++ })

	q.Error("failed to fetch tasks")
	q.Dismiss()
	if _, ok := q.Current(); ok {
		t.Fatalf("expected dismissed notification to be hidden")
	}
	clock.Advance(time.Second)
	q.Dismiss()
	if changes != 2 {
		t.Fatalf("expected show and dismiss to notify once each, got %d", changes)
	}
}

func TestDefaultDurationAndRealTimer(t *testing.T) {
	if New(0).Duration() != DefaultDuration {
		t.Fatalf("expected default duration")
	}

	q := New(10 * time.Millisecond)
	done := make(chan struct{})
	q.OnChange(func() {
		if _, ok := q.Current(); !ok {
			close(done)
		}
	})
	q.Success("saved")
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("expected real timer to dismiss the notification")
	}
}

type noopTimer struct{}

func (noopTimer) Stop() bool { return false }
