package session

import (
	"sync"
	"time"
)

// Sequencer is the "main sequencer": every task posted to it, whether
// immediate or delayed, runs serially with respect to every other task
// posted to the same Sequencer. It stands in for the handler/looper
// abstraction session bookkeeping and cursor change-notifications are
// specified against.
type Sequencer struct {
	tasks chan func()
	once  sync.Once
	done  chan struct{}
}

// NewSequencer starts a Sequencer's worker goroutine.
func NewSequencer() *Sequencer {
	s := &Sequencer{
		tasks: make(chan func(), 128),
		done:  make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *Sequencer) run() {
	defer close(s.done)
	for task := range s.tasks {
		task()
	}
}

// Post enqueues fn to run next, after any task already queued.
func (s *Sequencer) Post(fn func()) {
	s.tasks <- fn
}

// DelayedTask is a cancellable handle returned by PostDelayed.
type DelayedTask struct {
	timer *time.Timer
}

// Cancel prevents the task from running if it hasn't fired yet. It returns
// true iff the cancellation won the race against the timer firing.
func (d *DelayedTask) Cancel() bool {
	if d == nil || d.timer == nil {
		return false
	}
	return d.timer.Stop()
}

// PostDelayed schedules fn to run on the sequencer after d elapses.
func (s *Sequencer) PostDelayed(fn func(), d time.Duration) *DelayedTask {
	timer := time.AfterFunc(d, func() { s.Post(fn) })
	return &DelayedTask{timer: timer}
}

// Stop drains the sequencer. Only safe to call once no more tasks will be posted.
func (s *Sequencer) Stop() {
	s.once.Do(func() { close(s.tasks) })
}
