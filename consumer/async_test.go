package consumer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ingestsdk/go-sdk/metrics"
	"github.com/ingestsdk/go-sdk/pager"
	"github.com/ingestsdk/go-sdk/transport"
	"github.com/ingestsdk/go-sdk/workerpool"
)

type harness struct {
	consumer *AsyncBatchConsumer
	server   *httptest.Server
	pool     *workerpool.Pool
}

func (h *harness) shutdown(t *testing.T) {
	t.Helper()
	h.server.Close()
}

func newHarness(t *testing.T, handler http.HandlerFunc, cfgOverride func(*Config)) *harness {
	t.Helper()
	srv := httptest.NewServer(handler)

	tr := transport.New(transport.Config{
		ServerURL:      srv.URL,
		AppID:          "app-1",
		Token:          "tok-1",
		RequestTimeout: 2 * time.Second,
		MaxRetries:     0,
	})

	pool := workerpool.New(workerpool.Config{MinWorkers: 2})

	cfg := Config{
		Transport:          tr,
		Pool:               pool,
		Pager:              pager.New(nil),
		Meters:             metrics.New(),
		QueueSize:          1000,
		FlushLen:           10,
		Interval:           50 * time.Millisecond,
		CloseRetry:         1,
		QueueWarnThreshold: 0.7,
	}
	if cfgOverride != nil {
		cfgOverride(&cfg)
	}

	return &harness{consumer: New(cfg), server: srv, pool: pool}
}

func successHandler(received *int32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var items []json.RawMessage
		_ = json.NewDecoder(r.Body).Decode(&items)
		atomic.AddInt32(received, int32(len(items)))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"code": 0})
	}
}

func TestAddTriggersFlushAtFlushLen(t *testing.T) {
	var received int32
	h := newHarness(t, successHandler(&received), nil)
	defer h.shutdown(t)

	records := make([]string, 10)
	for i := range records {
		records[i] = `{"event_name":"x"}`
	}
	h.consumer.Add(records)

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&received) == 10
	}, time.Second, 5*time.Millisecond)

	h.consumer.Close(context.Background())
}

func TestAddTriggersOneFlushPerBoundaryCrossed(t *testing.T) {
	var received int32
	var requests int32
	handler := func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		var items []json.RawMessage
		_ = json.NewDecoder(r.Body).Decode(&items)
		atomic.AddInt32(&received, int32(len(items)))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"code": 0})
	}

	h := newHarness(t, handler, func(cfg *Config) {
		cfg.FlushLen = 10
		cfg.Interval = time.Hour
	})
	defer h.shutdown(t)

	// 25 records at flushLen=10 crosses 2 group boundaries within a
	// single Add call; each boundary crossing must submit its own flush
	// rather than collapsing into a single one and waiting on the timer.
	records := make([]string, 25)
	for i := range records {
		records[i] = `{"event_name":"x"}`
	}
	h.consumer.Add(records)

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&requests) >= 2
	}, time.Second, 5*time.Millisecond, "expected at least 2 flushes for 2 boundary crossings")

	h.consumer.Close(context.Background())

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&received) == 25
	}, time.Second, 5*time.Millisecond)
}

func TestTimerFlushesOnQuietPeriod(t *testing.T) {
	var received int32
	h := newHarness(t, successHandler(&received), nil)
	defer h.shutdown(t)

	h.consumer.Add([]string{`{"event_name":"x"}`})

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&received) == 1
	}, time.Second, 5*time.Millisecond)

	h.consumer.Close(context.Background())
}

func TestQueueFullDropsExcessAndEmitsPagerCode(t *testing.T) {
	var codeSeen int32
	var mu sync.Mutex
	var lastMessage string

	h := newHarness(t, successHandler(new(int32)), func(cfg *Config) {
		cfg.QueueSize = 5
		cfg.FlushLen = 1000
		cfg.Interval = time.Hour
	})
	defer h.shutdown(t)

	h.consumer.RegisterPager(func(code pager.Code, message string) {
		if code == pager.CodeQueueFull {
			atomic.AddInt32(&codeSeen, 1)
			mu.Lock()
			lastMessage = message
			mu.Unlock()
		}
	})

	records := make([]string, 8)
	for i := range records {
		records[i] = `{"event_name":"x"}`
	}
	h.consumer.Add(records)

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&codeSeen) > 0
	}, time.Second, 5*time.Millisecond)

	assert.EqualValues(t, 3, h.consumer.DroppedTotal())
	mu.Lock()
	assert.Contains(t, lastMessage, "3")
	mu.Unlock()

	h.consumer.Close(context.Background())
}

func TestNetworkFailureRequeuesAtHeadPreservingOrder(t *testing.T) {
	var attempt int32
	var mu sync.Mutex
	var delivered []string
	handler := func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&attempt, 1)
		var items []json.RawMessage
		_ = json.NewDecoder(r.Body).Decode(&items)
		if n == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		mu.Lock()
		for _, item := range items {
			delivered = append(delivered, string(item))
		}
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"code": 0})
	}

	// The requeued batch is re-sent by the timer thread (requeueing itself
	// never triggers a flush), so the harness's short Interval is kept.
	h := newHarness(t, handler, func(cfg *Config) {
		cfg.FlushLen = 3
	})
	defer h.shutdown(t)

	h.consumer.Add([]string{`{"n":1}`, `{"n":2}`, `{"n":3}`})

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&attempt) >= 2
	}, time.Second, 5*time.Millisecond)

	h.consumer.Close(context.Background())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{`{"n":1}`, `{"n":2}`, `{"n":3}`}, delivered)
}

func TestOversizeSingleEventIsDroppedNotRequeued(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"code": 11, "msg": "too big", "max_size": 1024})
	}

	h := newHarness(t, handler, func(cfg *Config) {
		cfg.FlushLen = 1
		cfg.Interval = time.Hour
	})
	defer h.shutdown(t)

	h.consumer.Add([]string{strings.Repeat("x", 10)})

	require.Eventually(t, func() bool {
		return h.consumer.DroppedTotal() == 1
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, 0, h.consumer.queueLen())
	h.consumer.Close(context.Background())
}

func TestCloseDrainsQueueBeforeReturning(t *testing.T) {
	var received int32
	h := newHarness(t, successHandler(&received), func(cfg *Config) {
		cfg.FlushLen = 2
		cfg.Interval = time.Hour
	})
	defer h.shutdown(t)

	records := make([]string, 6)
	for i := range records {
		records[i] = `{"event_name":"x"}`
	}
	h.consumer.Add(records)
	h.consumer.Close(context.Background())

	assert.Equal(t, 0, h.consumer.queueLen())
}

func TestAddAfterCloseIsNoop(t *testing.T) {
	h := newHarness(t, successHandler(new(int32)), nil)
	defer h.shutdown(t)

	h.consumer.Close(context.Background())
	h.consumer.Add([]string{`{"event_name":"x"}`})

	assert.Equal(t, 0, h.consumer.queueLen())
}
