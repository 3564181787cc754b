// Package lightloop implements the cooperative background loop that
// keeps an aim pattern running on the galvo between real jobs, yielding
// to the job queue whenever work arrives. Grounded on
// original_source/balor/BalorLooper.py's BalorLooper.data_sender loop
// (job_queue drained first, loop_job run when the queue is empty, idle
// sleep when there is nothing to send).
package lightloop

import (
	"context"
	"sync"
	"time"

	"github.com/meerk40t/galvo/internal/galvo/builder"
	"github.com/meerk40t/galvo/internal/galvo/engine"
)

// IdleInterval is how long Run sleeps when there is neither a queued job
// nor an aim pattern to run, mirroring data_sender's time.sleep(0.5).
const IdleInterval = 500 * time.Millisecond

// Loop runs jobs from a FIFO queue, falling back to a repeating aim
// pattern whenever the queue drains. A single Loop drives one
// engine.Session; callers must not also call that Session's
// Execute/RunOnce/Loop directly while a Loop is running against it.
type Loop struct {
	session *engine.Session

	mu      sync.Mutex
	pattern *builder.CommandList
	queue   []*builder.CommandList

	// OnJobDone, if set, is invoked (outside any lock) after each queued
	// job finishes, with its result and error.
	OnJobDone func(cl *builder.CommandList, res engine.Result, err error)
	// OnPatternTick, if set, is invoked after each aim-pattern iteration.
	OnPatternTick func(res engine.Result, err error)
}

// New returns a Loop with no pattern and an empty queue.
func New(session *engine.Session) *Loop {
	return &Loop{session: session}
}

// SetPattern installs the aim pattern to run when the job queue is
// empty. Passing nil stops pattern iteration until a new pattern is set.
func (l *Loop) SetPattern(cl *builder.CommandList) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pattern = cl
}

// Enqueue appends a job to the FIFO queue. Queued jobs always run before
// the aim pattern is given another turn.
func (l *Loop) Enqueue(cl *builder.CommandList) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.queue = append(l.queue, cl)
}

func (l *Loop) dequeue() *builder.CommandList {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil
	}
	next := l.queue[0]
	l.queue = l.queue[1:]
	return next
}

func (l *Loop) currentPattern() *builder.CommandList {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pattern
}

// QueueLen reports the number of jobs currently waiting.
func (l *Loop) QueueLen() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Run drains the job queue and interleaves the aim pattern until ctx is
// cancelled. It returns ctx.Err() on exit. The session's own Abort()
// remains the way to cut short whichever single RunOnce call is
// currently in flight.
func (l *Loop) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if job := l.dequeue(); job != nil {
			res, err := l.session.RunOnce(ctx, job)
			if l.OnJobDone != nil {
				l.OnJobDone(job, res, err)
			}
			continue
		}

		if pattern := l.currentPattern(); pattern != nil {
			res, err := l.session.RunOnce(ctx, pattern)
			if l.OnPatternTick != nil {
				l.OnPatternTick(res, err)
			}
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(IdleInterval):
		}
	}
}
