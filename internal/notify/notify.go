// Package notify holds the single transient message shown in the footer.
package notify

import (
	"sync"
	"time"

	"github.com/Joseda-hg/taskflow/internal/model"
)

const DefaultDuration = 3 * time.Second

type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d. It matches time.AfterFunc so tests can swap
// in a manual clock.
type AfterFunc func(d time.Duration, f func()) Timer

type Queue struct {
	duration  time.Duration
	afterFunc AfterFunc

	mu         sync.Mutex
	current    model.Notification
	timer      Timer
	generation uint64
	onChange   func()
}

type Option func(*Queue)

func WithAfterFunc(fn AfterFunc) Option {
	return func(q *Queue) { q.afterFunc = fn }
}

func New(duration time.Duration, opts ...Option) *Queue {
	if duration <= 0 {
		duration = DefaultDuration
	}
	q := &Queue{
		duration: duration,
		afterFunc: func(d time.Duration, f func()) Timer {
			return time.AfterFunc(d, f)
		},
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// OnChange registers a callback run after every visibility change. It is
// called without the queue lock held.
func (q *Queue) OnChange(fn func()) {
	q.mu.Lock()
	q.onChange = fn
	q.mu.Unlock()
}

// Show replaces any visible notification and restarts the dismiss timer.
func (q *Queue) Show(message string, severity model.Severity) {
	q.mu.Lock()
	if q.timer != nil {
		q.timer.Stop()
	}
	q.generation++
	gen := q.generation
	q.current = model.Notification{Message: message, Severity: severity, Visible: true}
	q.timer = q.afterFunc(q.duration, func() { q.expire(gen) })
	fn := q.onChange
	q.mu.Unlock()

	if fn != nil {
		fn()
	}
}

func (q *Queue) Success(message string) {
	q.Show(message, model.SeveritySuccess)
}

func (q *Queue) Error(message string) {
	q.Show(message, model.SeverityError)
}

func (q *Queue) Dismiss() {
	q.hide(0, false)
}

func (q *Queue) Current() (model.Notification, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.current, q.current.Visible
}

func (q *Queue) Duration() time.Duration {
	return q.duration
}

func (q *Queue) expire(gen uint64) {
	q.hide(gen, true)
}

// hide moves Visible to Hidden. A timer callback only counts when it belongs
// to the latest Show.
func (q *Queue) hide(gen uint64, fromTimer bool) {
	q.mu.Lock()
	if !q.current.Visible || (fromTimer && gen != q.generation) {
		q.mu.Unlock()
		return
	}
	if !fromTimer && q.timer != nil {
		q.timer.Stop()
	}
	q.timer = nil
	q.current.Visible = false
	fn := q.onChange
	q.mu.Unlock()

	if fn != nil {
		fn()
	}
}
