package sakura

import "time"

// TaskHandle is a one-shot scheduled task. Cancel reports whether the task
// was stopped before it fired. Baseline behavior never cancels, but the
// handle exists so cancellation-on-game-end can be added without redesign.
type TaskHandle interface {
	Cancel() bool
}

// Scheduler abstracts delayed execution so tests can run callbacks inline.
type Scheduler interface {
	After(d time.Duration, fn func()) TaskHandle
}

type timerScheduler struct{}

// NewTimerScheduler returns the production scheduler backed by time.AfterFunc.
func NewTimerScheduler() Scheduler { return timerScheduler{} }

type timerTask struct{ t *time.Timer }

func (timerScheduler) After(d time.Duration, fn func()) TaskHandle {
	return timerTask{t: time.AfterFunc(d, fn)}
}

func (tt timerTask) Cancel() bool { return tt.t.Stop() }
