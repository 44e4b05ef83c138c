// Package workerpool implements the priority-queue worker pool (C2): a
// pool of workers sharing a single min-heap keyed by (ready_time,
// seq), unifying immediate work, delayed work, and shutdown into one
// dequeue loop.
//
// Idle self-termination is implemented as a per-worker timeout on the
// dequeue wait rather than an "overtime marker" task threaded through the
// queue: the priority queue here only ever carries
// caller-submitted delayed work, so a marker task would exist purely to
// smuggle a timeout through a data structure that already has one
// available via select/time.After.
package workerpool

import (
	"container/heap"
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ingestsdk/go-sdk/metrics"
)

// Pool is a fixed-minimum, elastic-maximum pool of workers draining a
// shared priority queue.
type Pool struct {
	mu      sync.Mutex
	heap    *taskHeap
	seq     int64
	notify  chan struct{} // buffered 1; signaled whenever the heap changes
	barrier chan struct{} // closed == not paused; replaced on PlaceBarrier

	workerCount  int64
	minWorkers   int
	idleTimeout  time.Duration
	terminating  bool
	wg           sync.WaitGroup
	onAllStopped func()
	onTerminated func()
	stoppedOnce  sync.Once

	logger *slog.Logger
	meters *metrics.Meters
}

// Config configures a Pool at construction time.
type Config struct {
	MinWorkers  int
	IdleTimeout time.Duration // 0 disables idle self-termination
	Logger      *slog.Logger
	Meters      *metrics.Meters
}

// New constructs a Pool and starts cfg.MinWorkers workers immediately.
func New(cfg Config) *Pool {
	if cfg.MinWorkers < 0 {
		cfg.MinWorkers = 0
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Meters == nil {
		cfg.Meters = metrics.Default()
	}

	p := &Pool{
		heap:        newTaskHeap(),
		notify:      make(chan struct{}, 1),
		barrier:     closedChan(),
		minWorkers:  cfg.MinWorkers,
		idleTimeout: cfg.IdleTimeout,
		logger:      cfg.Logger,
		meters:      cfg.Meters,
	}

	for i := 0; i < cfg.MinWorkers; i++ {
		p.spawnWorker(true)
	}

	return p
}

func closedChan() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

// Execute schedules fn to run no earlier than delay from now, reviving
// the pool with one worker first if it has idled all the way down to
// zero.
func (p *Pool) Execute(fn func(), delay time.Duration) {
	p.mu.Lock()
	p.seq++
	heap.Push(p.heap, &task{readyAt: time.Now().Add(delay), seq: p.seq, fn: fn})
	p.mu.Unlock()
	p.reviveIfIdle()
	p.signal()
}

// reviveIfIdle spawns one worker if the pool has shrunk to zero, so a
// pool that idled all the way out comes back to life on the next
// submission instead of staying dead forever.
func (p *Pool) reviveIfIdle() {
	for {
		cur := atomic.LoadInt64(&p.workerCount)
		if cur != 0 {
			return
		}
		if atomic.CompareAndSwapInt64(&p.workerCount, 0, 1) {
			p.wg.Add(1)
			go p.runWorker()
			return
		}
	}
}

// Submit schedules fn to run as soon as a worker is free.
func (p *Pool) Submit(fn func()) {
	p.Execute(fn, 0)
}

func (p *Pool) signal() {
	select {
	case p.notify <- struct{}{}:
	default:
	}
}

// PlaceBarrier pauses every worker before its next dequeue. Workers
// already running a task finish it first.
func (p *Pool) PlaceBarrier() {
	p.mu.Lock()
	defer p.mu.Unlock()
	select {
	case <-p.barrier:
		// already closed (open state) -> replace with a fresh gate
		p.barrier = make(chan struct{})
	default:
		// already paused, no-op
	}
}

// RemoveBarrier resumes all paused workers.
func (p *Pool) RemoveBarrier() {
	p.mu.Lock()
	defer p.mu.Unlock()
	select {
	case <-p.barrier:
		// already open, no-op
	default:
		close(p.barrier)
	}
}

// ActiveWorkers returns the current worker count (elastic due to idle
// self-termination, revival on submission, and Grow).
func (p *Pool) ActiveWorkers() int {
	return int(atomic.LoadInt64(&p.workerCount))
}

// OnAllStopped registers a callback that fires once every worker has
// exited, whether by idle self-termination or Terminate.
func (p *Pool) OnAllStopped(cb func()) {
	p.mu.Lock()
	p.onAllStopped = cb
	p.mu.Unlock()
}

// OnTerminated registers a callback that fires once after Terminate
// completes (as opposed to OnAllStopped, which can fire earlier if
// workers idle out before Terminate is ever called).
func (p *Pool) OnTerminated(cb func()) {
	p.mu.Lock()
	p.onTerminated = cb
	p.mu.Unlock()
}

// Terminate posts one sentinel per currently running worker, wakes
// everyone, and blocks until all have exited.
func (p *Pool) Terminate(ctx context.Context) {
	p.mu.Lock()
	p.terminating = true
	n := int(atomic.LoadInt64(&p.workerCount))
	for i := 0; i < n; i++ {
		p.seq++
		heap.Push(p.heap, &task{readyAt: time.Time{}, seq: p.seq, fn: nil})
	}
	// Unpause so sentinels are actually reachable.
	select {
	case <-p.barrier:
	default:
		close(p.barrier)
	}
	p.mu.Unlock()

	for i := 0; i < n; i++ {
		p.signal()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		p.logger.Warn("worker pool terminate timed out waiting for workers")
	}

	p.mu.Lock()
	cb := p.onTerminated
	p.mu.Unlock()
	if cb != nil {
		cb()
	}
}

func (p *Pool) spawnWorker(counted bool) {
	if counted {
		atomic.AddInt64(&p.workerCount, 1)
	}
	p.wg.Add(1)
	go p.runWorker()
}

func (p *Pool) runWorker() {
	defer p.wg.Done()
	defer p.workerExited()

	for {
		barrier := p.currentBarrier()
		<-barrier // blocks while paused

		fn, ready, isSentinel, timedOutIdle := p.dequeue()
		if isSentinel {
			atomic.AddInt64(&p.workerCount, -1)
			return
		}
		if timedOutIdle {
			if p.tryShrink() {
				return
			}
			continue
		}
		if !ready {
			continue
		}

		func() {
			defer func() {
				if r := recover(); r != nil {
					p.logger.Error("worker task panicked", slog.Any("panic", r))
				}
			}()
			fn()
		}()
	}
}

func (p *Pool) currentBarrier() chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.barrier
}

// dequeue waits for the earliest ready task, a notification of new work,
// or — when the queue is empty and idle self-termination is enabled — the
// configured idle timeout. Returns (fn, ready, isSentinel, timedOutIdle).
func (p *Pool) dequeue() (func(), bool, bool, bool) {
	for {
		p.mu.Lock()
		if p.heap.Len() == 0 {
			p.mu.Unlock()

			if p.idleTimeout <= 0 {
				<-p.notify
				continue
			}

			select {
			case <-p.notify:
				continue
			case <-time.After(p.idleTimeout):
				return nil, false, false, true
			}
		}

		next := (*p.heap)[0]
		now := time.Now()
		if next.readyAt.After(now) {
			wait := next.readyAt.Sub(now)
			p.mu.Unlock()
			select {
			case <-p.notify:
				continue
			case <-time.After(wait):
				continue
			}
		}

		heap.Pop(p.heap)
		p.mu.Unlock()

		if next.fn == nil {
			return nil, false, true, false
		}
		return next.fn, true, false, false
	}
}

// tryShrink decrements the worker count if doing so keeps it at or above
// minWorkers; returns true if the caller should exit.
func (p *Pool) tryShrink() bool {
	for {
		cur := atomic.LoadInt64(&p.workerCount)
		if int(cur) <= p.minWorkers {
			return false
		}
		if atomic.CompareAndSwapInt64(&p.workerCount, cur, cur-1) {
			return true
		}
	}
}

func (p *Pool) workerExited() {
	if atomic.LoadInt64(&p.workerCount) != 0 {
		return
	}
	p.mu.Lock()
	cb := p.onAllStopped
	p.mu.Unlock()
	if cb != nil {
		p.stoppedOnce.Do(cb)
	}
}

// Grow adds n additional workers above the configured minimum, e.g. when
// the consumer wants extra upload parallelism under load.
func (p *Pool) Grow(n int) {
	for i := 0; i < n; i++ {
		p.spawnWorker(true)
	}
}
