// Package consumer implements the async batch consumer (C5): a bounded
// FIFO queue of already-serialized records, a group-boundary/flush
// trigger policy driven by item count and a byte cap, a timer thread
// for quiet-period flushes, and a bounded shutdown drain.
package consumer

import (
	"context"

	"github.com/ingestsdk/go-sdk/pager"
)

// Consumer is the surface the façade (C7) depends on. AsyncBatchConsumer
// is the only implementation in this module; the interface exists so a
// future durable (database-cache) consumer can be swapped in without
// touching the façade.
type Consumer interface {
	// Add enqueues already-serialized records. Adds after Close are
	// silently dropped.
	Add(records []string)
	// Flush requests a best-effort upload; it does not block.
	Flush()
	// Close blocks until the queue drains (bounded by ctx and the
	// configured close-retry budget) or gives up, then stops the
	// consumer's worker pool.
	Close(ctx context.Context)
	// RegisterPager/UnregisterPager manage pager listeners for this
	// consumer's diagnostic codes.
	RegisterPager(l pager.Listener) pager.Handle
	UnregisterPager(h pager.Handle)
}
