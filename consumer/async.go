package consumer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/ingestsdk/go-sdk/metrics"
	"github.com/ingestsdk/go-sdk/pager"
	"github.com/ingestsdk/go-sdk/transport"
	"github.com/ingestsdk/go-sdk/workerpool"
)

// maxBatchBytes is the implicit per-request byte cap: once
// crossed, a group boundary is forced regardless of item count.
const maxBatchBytes = 16 * 1024 * 1024

// Config wires an AsyncBatchConsumer to its collaborators. Transport,
// Pool, and Pager are required; Meters falls back to metrics.Default()
// and Logger to slog.Default() when nil, and QueueSize, FlushLen,
// Interval, and QueueWarnThreshold fall back to spec defaults when left
// zero. CloseRetry is used as given.
type Config struct {
	Transport *transport.Transport
	Pool      *workerpool.Pool
	Pager     *pager.Pager
	Meters    *metrics.Meters
	Logger    *slog.Logger

	QueueSize          int
	FlushLen           int
	Interval           time.Duration
	CloseRetry         int
	QueueWarnThreshold float64
}

// AsyncBatchConsumer is the C5 implementation: a bounded FIFO of
// encoded records drained in caps-respecting groups by the shared
// worker pool, with a quiet-period timer and bounded shutdown drain.
type AsyncBatchConsumer struct {
	sem   *semaphore.Weighted // weight 1; guards queue for both producer and flusher
	queue []string

	accSize            int
	itemsSinceBoundary int
	crossedThreshold   bool

	queueSize          int
	flushLen           int
	queueWarnThreshold float64
	closeRetryLimit    int

	transport *transport.Transport
	pool      *workerpool.Pool
	pager     *pager.Pager
	meters    *metrics.Meters
	logger    *slog.Logger

	timer       *timerThread
	closed      int32 // atomic bool
	droppedAddr int64 // atomic; events dropped (queue full or unresendable oversize)
}

// New builds an AsyncBatchConsumer and starts its timer thread.
func New(cfg Config) *AsyncBatchConsumer {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100000
	}
	if cfg.FlushLen <= 0 {
		cfg.FlushLen = 10000
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 3 * time.Second
	}
	if cfg.QueueWarnThreshold <= 0 {
		cfg.QueueWarnThreshold = 0.7
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Meters == nil {
		cfg.Meters = metrics.Default()
	}

	c := &AsyncBatchConsumer{
		sem:                semaphore.NewWeighted(1),
		queueSize:          cfg.QueueSize,
		flushLen:           cfg.FlushLen,
		queueWarnThreshold: cfg.QueueWarnThreshold,
		closeRetryLimit:    cfg.CloseRetry,
		transport:          cfg.Transport,
		pool:               cfg.Pool,
		pager:              cfg.Pager,
		meters:             cfg.Meters,
		logger:             cfg.Logger.With(slog.String("component", "consumer")),
	}
	c.timer = newTimerThread(cfg.Interval, c.isEmpty, c.Flush)
	return c
}

// Add enqueues records at the tail of the queue, triggering one flush
// per group-boundary crossed — a single Add spanning several
// maxBatchBytes/flushLen boundaries flushes once per boundary rather
// than collapsing them into a single flush and leaving the rest to the
// timer thread.
func (c *AsyncBatchConsumer) Add(records []string) {
	if atomic.LoadInt32(&c.closed) == 1 {
		return
	}
	crossed := c.insert(records, false)
	for i := 0; i < crossed; i++ {
		c.Flush()
	}
	c.timer.resumePaused()
}

// requeueAtHead restores a drained-but-failed batch to the front of the
// queue, preserving original ordering, using the same insert path but
// discarding its boundary count so requeuing never triggers a flush.
func (c *AsyncBatchConsumer) requeueAtHead(records []string) {
	c.insert(records, true)
}

// insert appends (or, at the head, prepends) records, dropping whatever
// doesn't fit, updating the group-boundary accounting, and emitting
// watermark/full pager codes. Returns the number of group boundaries
// crossed while inserting, so the caller can trigger one flush per
// boundary instead of collapsing them into one.
func (c *AsyncBatchConsumer) insert(records []string, atHead bool) int {
	ctx := context.Background()
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return 0
	}
	defer c.sem.Release(1)

	avail := c.queueSize - len(c.queue)
	if avail < 0 {
		avail = 0
	}
	toInsert := records
	dropped := 0
	if len(records) > avail {
		dropped = len(records) - avail
		toInsert = records[:avail]
	}

	if atHead {
		merged := make([]string, 0, len(toInsert)+len(c.queue))
		merged = append(merged, toInsert...)
		merged = append(merged, c.queue...)
		c.queue = merged
	} else {
		c.queue = append(c.queue, toInsert...)
	}

	boundariesCrossed := 0
	for _, rec := range toInsert {
		c.accSize += len(rec)
		c.itemsSinceBoundary++
		if c.accSize >= maxBatchBytes || c.itemsSinceBoundary >= c.flushLen {
			c.accSize = 0
			c.itemsSinceBoundary = 0
			boundariesCrossed++
		}
	}

	if dropped > 0 {
		atomic.AddInt64(&c.droppedAddr, int64(dropped))
		c.meters.Add("consumer_dropped_total", float64(dropped))
		c.pager.Emit(pager.CodeQueueFull, fmt.Sprintf("queue full, dropped %d event(s)", dropped))
	} else if c.queueSize > 0 {
		ratio := float64(len(c.queue)) / float64(c.queueSize)
		if ratio >= c.queueWarnThreshold {
			if !c.crossedThreshold {
				c.crossedThreshold = true
				c.pager.Emit(pager.CodeQueueThreshold, fmt.Sprintf("queue at %.0f%% of capacity", ratio*100))
			}
		} else {
			c.crossedThreshold = false
		}
	}

	return boundariesCrossed
}

// Flush submits a best-effort upload job and refreshes the timer. It
// does not block on the result.
func (c *AsyncBatchConsumer) Flush() {
	if atomic.LoadInt32(&c.closed) == 1 {
		return
	}
	c.pool.Submit(c.performRequest)
	c.timer.refresh()
}

// performRequest is the flush job: drain a caps-respecting prefix,
// upload it, and react to the outcome.
func (c *AsyncBatchConsumer) performRequest() {
	batch, ok := c.drain()
	if !ok {
		return
	}

	body := "[" + strings.Join(batch, ",") + "]"
	result := c.transport.PostEvent(context.Background(), []byte(body), len(batch))

	switch result.Outcome {
	case transport.OutcomeSuccess:
		c.meters.Add("consumer_upload_success_total", float64(len(batch)))

	case transport.OutcomeNetworkError:
		c.pager.Emit(networkCodeFor(result.NetworkSubcode), result.Message)
		c.requeueAtHead(batch)

	case transport.OutcomeIllegalData:
		c.pager.Emit(pager.CodeDataIllegal, result.Message)
		c.requeueAtHead(batch)

	case transport.OutcomeOversize:
		c.pager.Emit(pager.CodeNetworkOversize, result.Message)
		if len(batch) == 1 {
			atomic.AddInt64(&c.droppedAddr, 1)
			c.meters.Add("consumer_dropped_total", 1)
			c.logger.Warn("dropping single oversize event", slog.Int("max_size", result.MaxSize))
		} else {
			c.logger.Warn("requeuing oversize batch", slog.Int("batch_len", len(batch)), slog.Int("max_size", result.MaxSize))
			c.requeueAtHead(batch)
		}
	}
}

// drain removes and returns the leading prefix of the queue that fits
// under the byte cap and the flush_len item cap: the
// first item is always attempted even if it alone exceeds the cap.
func (c *AsyncBatchConsumer) drain() ([]string, bool) {
	ctx := context.Background()
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, false
	}
	defer c.sem.Release(1)

	size := 0
	n := 0
	for n < len(c.queue) && n < c.flushLen {
		next := len(c.queue[n])
		if n > 0 && size+next > maxBatchBytes {
			break
		}
		size += next
		n++
		if size >= maxBatchBytes {
			break
		}
	}
	if n == 0 {
		return nil, false
	}

	batch := append([]string{}, c.queue[:n]...)
	c.queue = c.queue[n:]
	return batch, true
}

func (c *AsyncBatchConsumer) isEmpty() bool {
	return c.queueLen() == 0
}

func (c *AsyncBatchConsumer) queueLen() int {
	ctx := context.Background()
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return 0
	}
	defer c.sem.Release(1)
	return len(c.queue)
}

// Close triggers a final flush, stops the timer, drains the queue until
// empty or until the same queue length is observed close_retry+1 times
// in a row, then terminates the worker pool.
func (c *AsyncBatchConsumer) Close(ctx context.Context) {
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return
	}
	c.timer.shutdown()

	lastSize := -1
	sameCount := 0
drainLoop:
	for {
		qlen := c.queueLen()
		if qlen == 0 {
			break
		}
		if qlen == lastSize {
			sameCount++
			if sameCount >= c.closeRetryLimit {
				c.logger.Warn("close giving up on drain", slog.Int("remaining", qlen))
				break
			}
		} else {
			sameCount = 0
		}
		lastSize = qlen

		c.performRequest()

		select {
		case <-ctx.Done():
			c.logger.Warn("close context expired during drain")
			break drainLoop
		default:
		}
	}

	if remaining := c.queueLen(); remaining > 0 {
		c.logger.Warn("events lost at close", slog.Int("count", remaining))
		c.meters.Add("consumer_lost_total", float64(remaining))
	}

	c.pool.Terminate(ctx)
}

// RegisterPager adds a pager listener for this consumer's diagnostic codes.
func (c *AsyncBatchConsumer) RegisterPager(l pager.Listener) pager.Handle {
	return c.pager.Register(l)
}

// UnregisterPager removes a previously registered pager listener.
func (c *AsyncBatchConsumer) UnregisterPager(h pager.Handle) {
	c.pager.Unregister(h)
}

// DroppedTotal returns the running count of events dropped for being
// enqueued against a full queue or as an unresendable single oversize event.
func (c *AsyncBatchConsumer) DroppedTotal() int64 {
	return atomic.LoadInt64(&c.droppedAddr)
}

func networkCodeFor(subcode string) pager.Code {
	switch subcode {
	case "max_retries_exceeded":
		return pager.CodeNetworkMaxRetries
	case "connection_error", "read_failed":
		return pager.CodeNetworkConnection
	default:
		return pager.CodeNetworkOther
	}
}
