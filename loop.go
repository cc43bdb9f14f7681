package scriptx

import (
	"errors"
	"sync"
)

// Job is work queued to run later inside a scope of the loop's engine.
type Job func(sc *EngineScope) error

// ErrLoopStopped is returned when scheduling on a stopped loop.
var ErrLoopStopped = errors.New("scriptx: loop stopped")

// Loop is an engine's job queue. Jobs may be scheduled from any goroutine;
// Run executes them on the caller's goroutine, each inside its own scope.
type Loop struct {
	engine  *Engine
	mu      sync.Mutex
	jobs    []Job
	stopped bool
}

func newLoop(e *Engine) *Loop {
	return &Loop{engine: e}
}

// ScheduleJob adds a job to the loop.
func (l *Loop) ScheduleJob(j Job) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return ErrLoopStopped
	}
	l.jobs = append(l.jobs, j)
	return nil
}

// IsLoopPending reports whether jobs are waiting.
func (l *Loop) IsLoopPending() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.jobs) > 0
}

// Run executes pending jobs, including jobs scheduled by jobs, until the
// queue is empty. It stops at the first failing job and returns its error;
// the remaining jobs stay queued.
func (l *Loop) Run() error {
	for {
		l.mu.Lock()
		if len(l.jobs) == 0 {
			l.mu.Unlock()
			return nil
		}
		job := l.jobs[0]
		l.jobs = l.jobs[1:]
		l.mu.Unlock()

		if err := l.engine.Run(job); err != nil {
			return err
		}
	}
}

// Stop drops pending jobs and rejects new ones.
func (l *Loop) Stop() {
	l.mu.Lock()
	l.jobs = nil
	l.stopped = true
	l.mu.Unlock()
}
