package pager

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"golang.org/x/time/rate"

	"github.com/ingestsdk/go-sdk/workerpool"
)

// qualityRateLimit/qualityRateBurst cap how often the reporter will POST
// to the external quality endpoint: a flush storm emitting hundreds of
// pager codes a second must not turn into hundreds of outbound requests
// against a third-party diagnostic service. This throttles the outbound
// HTTP call itself, not delivery to Pager listeners.
const (
	qualityRateLimit = 5 // requests per second
	qualityRateBurst = 5
)

// qualityPayload is the fire-and-forget diagnostic payload:
// sdk identity, the offending error code/level/message, and the app id.
type qualityPayload struct {
	SDKType    string `json:"sdk_type"`
	SDKVersion string `json:"sdk_version"`
	OS         string `json:"os"`
	AppID      string `json:"app_id"`
	Code       int    `json:"code"`
	Level      string `json:"level"`
	Message    string `json:"message"`
}

// QualityReporter posts diagnostic events to a separate quality endpoint,
// modeled on a Discord-webhook-style notifier: build a small JSON
// payload, POST it, and never let a failure propagate to the caller.
type QualityReporter struct {
	endpoint string
	appID    string
	client   *http.Client
	pool     *workerpool.Pool
	limiter  *rate.Limiter
	logger   *slog.Logger
}

// NewQualityReporter builds a reporter backed by its own short-lived
// worker pool (keep_alive 100ms, per spec) so report bursts don't borrow
// capacity from the upload pool.
func NewQualityReporter(endpoint, appID string, logger *slog.Logger) *QualityReporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &QualityReporter{
		endpoint: endpoint,
		appID:    appID,
		client:   &http.Client{Timeout: 5 * time.Second},
		pool: workerpool.New(workerpool.Config{
			MinWorkers:  0,
			IdleTimeout: 100 * time.Millisecond,
			Logger:      logger,
		}),
		limiter: rate.NewLimiter(rate.Limit(qualityRateLimit), qualityRateBurst),
		logger:  logger,
	}
}

// Report enqueues a fire-and-forget POST of code/level/message. A no-op
// if no endpoint is configured or the outbound rate limit is exceeded —
// dropping a diagnostic POST under a burst is preferable to hammering
// the quality endpoint.
func (q *QualityReporter) Report(code Code, level, message string) {
	if q.endpoint == "" || !q.limiter.Allow() {
		return
	}
	payload := qualityPayload{
		SDKType:    "go",
		SDKVersion: "1.0.0",
		OS:         runtime.GOOS,
		AppID:      q.appID,
		Code:       int(code),
		Level:      level,
		Message:    message,
	}
	q.pool.Submit(func() {
		q.post(payload)
	})
}

func (q *QualityReporter) post(payload qualityPayload) {
	body, err := json.Marshal(payload)
	if err != nil {
		q.logger.Warn("quality reporter failed to encode payload", "error", err)
		return
	}

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, q.endpoint, bytes.NewReader(body))
	if err != nil {
		q.logger.Warn("quality reporter failed to build request", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := q.client.Do(req)
	if err != nil {
		q.logger.Warn("quality reporter POST failed", "error", err)
		return
	}
	defer resp.Body.Close()
}

// Close terminates the reporter's worker pool, bounded by ctx.
func (q *QualityReporter) Close(ctx context.Context) {
	q.pool.Terminate(ctx)
}
