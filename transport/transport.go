// Package transport implements the HTTP transport (C3): a single pooled
// HTTPS client that gzip-compresses request bodies, posts to the
// collector, classifies responses into success / illegal-data / oversize
// / network-error, and feeds compression statistics back into the C1
// meter table.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/gzip"

	"github.com/ingestsdk/go-sdk/metrics"
)

const (
	sdkType    = "go"
	sdkVersion = "1.0.0"

	collectorCodeSuccess = 0
	collectorCodeOversize = 11
)

// collectorResponse is the JSON envelope the collector returns.
type collectorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"msg"`
	MaxSize int    `json:"max_size"`
}

// Outcome classifies the result of a post.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeIllegalData
	OutcomeOversize
	OutcomeNetworkError
)

// Transport is the single pooled HTTP client used for every collector
// POST. Construct one per consumer instance; it is safe for concurrent use.
type Transport struct {
	client     *http.Client
	serverURL  string
	appID      string
	token      string
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	compress   bool

	debug          bool
	simulateDelay  time.Duration
	simulateResult bool

	logger *slog.Logger
	meters *metrics.Meters
}

// Config configures a Transport.
type Config struct {
	ServerURL       string
	AppID           string
	Token           string
	RequestTimeout  time.Duration
	MaxRetries      int
	RetryBaseDelay  time.Duration
	RetryMaxDelay   time.Duration
	MaxIdleConns    int
	MaxConnsPerHost int
	CompressGzip    bool

	Debug          bool
	SimulateDelay  time.Duration
	SimulateResult bool

	Logger *slog.Logger
	Meters *metrics.Meters
}

// New builds a Transport around a single pooled *http.Transport, shared
// by every request it issues.
func New(cfg Config) *Transport {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Meters == nil {
		cfg.Meters = metrics.Default()
	}

	httpTransport := &http.Transport{
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxConnsPerHost,
		MaxConnsPerHost:     cfg.MaxConnsPerHost,
		IdleConnTimeout:     90 * time.Second,
	}

	return &Transport{
		client: &http.Client{
			Transport: httpTransport,
			Timeout:   cfg.RequestTimeout,
		},
		serverURL:      cfg.ServerURL,
		appID:          cfg.AppID,
		token:          cfg.Token,
		maxRetries:     cfg.MaxRetries,
		baseDelay:      cfg.RetryBaseDelay,
		maxDelay:       cfg.RetryMaxDelay,
		compress:       cfg.CompressGzip,
		debug:          cfg.Debug,
		simulateDelay:  cfg.SimulateDelay,
		simulateResult: cfg.SimulateResult,
		logger:         cfg.Logger.With(slog.String("component", "transport")),
		meters:         cfg.Meters,
	}
}

// Result carries the outcome of a PostEvent call plus the detail needed
// by the consumer to decide whether to requeue, drop, or succeed.
type Result struct {
	Outcome        Outcome
	Message        string
	ReceivedSize   int
	CompressedSize int
	MaxSize        int
	StatusCode     int
	NetworkSubcode string
}

func (r Result) String() string {
	return fmt.Sprintf("outcome=%d message=%q status=%d", r.Outcome, r.Message, r.StatusCode)
}

// PostEvent posts a pre-serialized batch body (a JSON array of canonical
// records) and returns its classified Result.
func (t *Transport) PostEvent(ctx context.Context, body []byte, itemCount int) Result {
	compressed, compress, err := t.maybeCompress(body)
	if err != nil {
		return Result{Outcome: OutcomeNetworkError, Message: err.Error(), NetworkSubcode: "compress_failed"}
	}

	t.meters.CountAvg("transport_compression_ratio", float64(len(compressed))/float64(max(len(body), 1)), 10000, 0)
	t.meters.CountAvg("transport_compressed_bytes", float64(len(compressed)), 10000, 0)

	if t.debug {
		return t.simulate()
	}

	headers := map[string]string{
		"app_id":      t.appID,
		"token":       t.token,
		"sdk-type":    sdkType,
		"sdk-version": sdkVersion,
		"data-count":  fmt.Sprintf("%d", itemCount),
		"compress":    compress,
		"Content-Type": "application/json",
	}

	return t.postWithRetry(ctx, compressed, headers, len(body), len(compressed))
}

func (t *Transport) maybeCompress(body []byte) ([]byte, string, error) {
	if !t.compress {
		return body, "none", nil
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(body); err != nil {
		return nil, "", fmt.Errorf("gzip write: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, "", fmt.Errorf("gzip close: %w", err)
	}
	return buf.Bytes(), "gzip", nil
}

// simulate performs no network I/O; it returns a configured
// sleep, and a forced outcome.
func (t *Transport) simulate() Result {
	if t.simulateDelay > 0 {
		time.Sleep(t.simulateDelay)
	}
	if t.simulateResult {
		return Result{Outcome: OutcomeSuccess}
	}
	return Result{Outcome: OutcomeNetworkError, Message: "simulated failure", NetworkSubcode: "simulated"}
}

func (t *Transport) postWithRetry(ctx context.Context, body []byte, headers map[string]string, receivedSize, compressedSize int) Result {
	var result Result

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = t.baseDelay
	bo.MaxInterval = t.maxDelay
	bo.MaxElapsedTime = 0
	bounded := backoff.WithMaxRetries(bo, uint64(t.maxRetries))
	withCtx := backoff.WithContext(bounded, ctx)

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		res, retryable, err := t.doRequest(ctx, body, headers, receivedSize, compressedSize)
		result = res
		if err != nil && retryable {
			t.logger.Warn("transport retrying", slog.Int("attempt", attempt), slog.String("error", err.Error()))
			return err
		}
		return nil
	}, withCtx)

	if err != nil && result.Outcome == 0 && result.StatusCode == 0 {
		result = Result{Outcome: OutcomeNetworkError, Message: err.Error(), NetworkSubcode: "max_retries_exceeded"}
	} else if err != nil && t.maxRetries > 0 && ctx.Err() == nil {
		// Every attempt, retries included, failed with a retryable error.
		result.NetworkSubcode = "max_retries_exceeded"
	}

	return result
}

func (t *Transport) doRequest(ctx context.Context, body []byte, headers map[string]string, receivedSize, compressedSize int) (Result, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.serverURL, bytes.NewReader(body))
	if err != nil {
		return Result{Outcome: OutcomeNetworkError, Message: err.Error(), NetworkSubcode: "bad_request"}, false, nil
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return Result{Outcome: OutcomeNetworkError, Message: err.Error(), NetworkSubcode: "connection_error"}, true, err
	}
	defer resp.Body.Close()

	respBody, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return Result{Outcome: OutcomeNetworkError, Message: readErr.Error(), NetworkSubcode: "read_failed"}, true, readErr
	}

	if resp.StatusCode != http.StatusOK {
		t.logger.Warn("collector returned non-200",
			slog.Int("status", resp.StatusCode),
			slog.String("body_preview", previewBytes(respBody)),
		)
		return Result{
			Outcome:        OutcomeNetworkError,
			Message:        fmt.Sprintf("unexpected status %d", resp.StatusCode),
			StatusCode:     resp.StatusCode,
			NetworkSubcode: "non_200_status",
		}, true, fmt.Errorf("status %d", resp.StatusCode)
	}

	var parsed collectorResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return Result{Outcome: OutcomeNetworkError, Message: "malformed collector response", StatusCode: resp.StatusCode, NetworkSubcode: "bad_json"}, false, nil
	}

	switch parsed.Code {
	case collectorCodeSuccess:
		t.meters.Incr("transport_post_success_total")
		return Result{Outcome: OutcomeSuccess, StatusCode: resp.StatusCode}, false, nil
	case collectorCodeOversize:
		t.meters.Incr("transport_post_oversize_total")
		t.logger.Warn("collector rejected batch as oversize",
			slog.String("received", humanize.Bytes(uint64(receivedSize))),
			slog.String("compressed", humanize.Bytes(uint64(compressedSize))),
			slog.Int("max_size", parsed.MaxSize),
		)
		return Result{
			Outcome:        OutcomeOversize,
			Message:        parsed.Message,
			ReceivedSize:   receivedSize,
			CompressedSize: compressedSize,
			MaxSize:        parsed.MaxSize,
			StatusCode:     resp.StatusCode,
		}, false, nil
	default:
		t.meters.Incr("transport_post_illegal_data_total")
		return Result{
			Outcome:    OutcomeIllegalData,
			Message:    parsed.Message,
			StatusCode: resp.StatusCode,
		}, false, nil
	}
}

func previewBytes(b []byte) string {
	const max = 256
	if len(b) > max {
		return string(b[:max])
	}
	return string(b)
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
