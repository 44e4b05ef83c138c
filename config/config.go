package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds every configuration knob for the ingestion pipeline: the
// identity/endpoint fields the caller must supply, and the consumer,
// worker pool, and transport tuning parameters with production defaults.
type Config struct {
	// Identity and endpoint.
	AppID     string
	Token     string
	ServerURL string

	// Async batch consumer (C5).
	Interval           time.Duration // max quiet time before a timer-triggered flush
	FlushLen           int           // max items per upload batch/group
	QueueSize          int           // hard queue capacity
	CloseRetry         int           // max consecutive same-size observations during shutdown drain
	NumNetworkThreads  int           // worker-pool size dedicated to uploads
	QueueWarnThreshold float64       // fraction of QueueSize at which a queue-threshold pager fires

	// Debug/simulation.
	Debug          bool
	SimulateDelay  time.Duration // sleep instead of a real POST when Debug is set
	SimulateResult bool          // forced outcome of the simulated POST

	// HTTP transport (C3).
	RequestTimeout  time.Duration
	MaxRetries      int
	RetryBaseDelay  time.Duration
	RetryMaxDelay   time.Duration
	MaxIdleConns    int
	MaxConnsPerHost int
	CompressGzip    bool

	// Worker pool (C2).
	WorkerIdleTimeout   time.Duration // how long an idle worker waits before self-terminating
	WorkerMinCount      int
	ResourceAwarePause  bool // pause workers under memory pressure (gopsutil-driven)
	MemoryPauseLimitPct float64

	// Ops server (ambient, optional).
	OpsServerEnabled bool
	OpsServerPort    string

	// Environment label for logging.
	Environment string
}

// New builds a Config from environment variables, falling back to the
// production defaults.
func New() *Config {
	interval, _ := strconv.Atoi(getEnv("DT_INTERVAL_SECONDS", "3"))
	flushLen, _ := strconv.Atoi(getEnv("DT_FLUSH_LEN", "10000"))
	queueSize, _ := strconv.Atoi(getEnv("DT_QUEUE_SIZE", "100000"))
	closeRetry, _ := strconv.Atoi(getEnv("DT_CLOSE_RETRY", "1"))
	numNetworkThreads, _ := strconv.Atoi(getEnv("DT_NUM_NETWORK_THREADS", "1"))
	queueWarnThreshold, _ := strconv.ParseFloat(getEnv("DT_QUEUE_WARN_THRESHOLD", "0.7"), 64)

	debug, _ := strconv.ParseBool(getEnv("DT_DEBUG", "false"))
	simulateDelayMs, _ := strconv.Atoi(getEnv("DT_SIMULATE_DELAY_MS", "0"))
	simulateResult, _ := strconv.ParseBool(getEnv("DT_SIMULATE_RESULT", "true"))

	requestTimeoutSec, _ := strconv.Atoi(getEnv("DT_REQUEST_TIMEOUT_SECONDS", "30"))
	maxRetries, _ := strconv.Atoi(getEnv("DT_MAX_RETRIES", "3"))
	retryBaseMs, _ := strconv.Atoi(getEnv("DT_RETRY_BASE_MS", "500"))
	retryMaxMs, _ := strconv.Atoi(getEnv("DT_RETRY_MAX_MS", "10000"))
	maxIdleConns, _ := strconv.Atoi(getEnv("DT_MAX_IDLE_CONNS", "10"))
	maxConnsPerHost, _ := strconv.Atoi(getEnv("DT_MAX_CONNS_PER_HOST", "5"))
	compressGzip, _ := strconv.ParseBool(getEnv("DT_COMPRESS_GZIP", "true"))

	workerIdleTimeoutSec, _ := strconv.Atoi(getEnv("DT_WORKER_IDLE_TIMEOUT_SECONDS", "60"))
	workerMinCount, _ := strconv.Atoi(getEnv("DT_WORKER_MIN_COUNT", "1"))
	resourceAwarePause, _ := strconv.ParseBool(getEnv("DT_RESOURCE_AWARE_PAUSE", "true"))
	memoryPauseLimitPct, _ := strconv.ParseFloat(getEnv("DT_MEMORY_PAUSE_LIMIT_PCT", "90"), 64)

	opsServerEnabled, _ := strconv.ParseBool(getEnv("DT_OPS_SERVER_ENABLED", "false"))

	return &Config{
		AppID:     getEnv("DT_APP_ID", ""),
		Token:     getEnv("DT_TOKEN", ""),
		ServerURL: getEnv("DT_SERVER_URL", "https://api.datatower.ai"),

		Interval:           time.Duration(interval) * time.Second,
		FlushLen:           flushLen,
		QueueSize:          queueSize,
		CloseRetry:         closeRetry,
		NumNetworkThreads:  numNetworkThreads,
		QueueWarnThreshold: queueWarnThreshold,

		Debug:          debug,
		SimulateDelay:  time.Duration(simulateDelayMs) * time.Millisecond,
		SimulateResult: simulateResult,

		RequestTimeout:  time.Duration(requestTimeoutSec) * time.Second,
		MaxRetries:      maxRetries,
		RetryBaseDelay:  time.Duration(retryBaseMs) * time.Millisecond,
		RetryMaxDelay:   time.Duration(retryMaxMs) * time.Millisecond,
		MaxIdleConns:    maxIdleConns,
		MaxConnsPerHost: maxConnsPerHost,
		CompressGzip:    compressGzip,

		WorkerIdleTimeout:   time.Duration(workerIdleTimeoutSec) * time.Second,
		WorkerMinCount:      workerMinCount,
		ResourceAwarePause:  resourceAwarePause,
		MemoryPauseLimitPct: memoryPauseLimitPct,

		OpsServerEnabled: opsServerEnabled,
		OpsServerPort:    getEnv("DT_OPS_SERVER_PORT", "8088"),

		Environment: getEnv("ENV", "production"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
