package coordinator

import "time"

// TimerHandle is a cancelable pending callback.
type TimerHandle interface {
	// Cancel stops the timer; it reports whether the callback was prevented
	// from running.
	Cancel() bool
}

// Scheduler submits delayed callbacks. The coordinator takes it as a
// dependency so tests can drive the poll loop with a fake clock.
type Scheduler interface {
	After(d time.Duration, fn func()) TimerHandle
}

type timerScheduler struct{}

// NewScheduler returns the real, time.AfterFunc-backed scheduler.
func NewScheduler() Scheduler {
	return timerScheduler{}
}

func (timerScheduler) After(d time.Duration, fn func()) TimerHandle {
	return timerHandle{time.AfterFunc(d, fn)}
}

type timerHandle struct {
	t *time.Timer
}

func (h timerHandle) Cancel() bool {
	return h.t.Stop()
}
