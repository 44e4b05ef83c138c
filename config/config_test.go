package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func clearIngestEnv() {
	for _, env := range []string{
		"DT_APP_ID", "DT_TOKEN", "DT_SERVER_URL",
		"DT_INTERVAL_SECONDS", "DT_FLUSH_LEN", "DT_QUEUE_SIZE", "DT_CLOSE_RETRY",
		"DT_NUM_NETWORK_THREADS", "DT_QUEUE_WARN_THRESHOLD",
		"DT_DEBUG", "DT_SIMULATE_DELAY_MS", "DT_SIMULATE_RESULT",
		"DT_REQUEST_TIMEOUT_SECONDS", "DT_MAX_RETRIES", "DT_RETRY_BASE_MS", "DT_RETRY_MAX_MS",
		"DT_MAX_IDLE_CONNS", "DT_MAX_CONNS_PER_HOST", "DT_COMPRESS_GZIP",
		"DT_WORKER_IDLE_TIMEOUT_SECONDS", "DT_WORKER_MIN_COUNT",
		"DT_RESOURCE_AWARE_PAUSE", "DT_MEMORY_PAUSE_LIMIT_PCT",
		"DT_OPS_SERVER_ENABLED", "DT_OPS_SERVER_PORT", "ENV",
	} {
		os.Unsetenv(env)
	}
}

func TestNew(t *testing.T) {
	clearIngestEnv()
	defer clearIngestEnv()

	cfg := New()

	assert.NotNil(t, cfg)
	assert.Equal(t, "https://api.datatower.ai", cfg.ServerURL)
	assert.Equal(t, 3*time.Second, cfg.Interval)
	assert.Equal(t, 10000, cfg.FlushLen)
	assert.Equal(t, 100000, cfg.QueueSize)
	assert.Equal(t, 1, cfg.CloseRetry)
	assert.Equal(t, 1, cfg.NumNetworkThreads)
	assert.False(t, cfg.Debug)
	assert.True(t, cfg.CompressGzip)
	assert.Equal(t, "production", cfg.Environment)
}

func TestNewWithEnvironmentVariables(t *testing.T) {
	clearIngestEnv()
	defer clearIngestEnv()

	os.Setenv("DT_APP_ID", "test-app")
	os.Setenv("DT_TOKEN", "test-token")
	os.Setenv("DT_SERVER_URL", "https://collector.test")
	os.Setenv("DT_INTERVAL_SECONDS", "5")
	os.Setenv("DT_FLUSH_LEN", "250")
	os.Setenv("DT_QUEUE_SIZE", "1000")
	os.Setenv("DT_CLOSE_RETRY", "2")
	os.Setenv("DT_NUM_NETWORK_THREADS", "4")
	os.Setenv("DT_DEBUG", "true")

	cfg := New()

	assert.Equal(t, "test-app", cfg.AppID)
	assert.Equal(t, "test-token", cfg.Token)
	assert.Equal(t, "https://collector.test", cfg.ServerURL)
	assert.Equal(t, 5*time.Second, cfg.Interval)
	assert.Equal(t, 250, cfg.FlushLen)
	assert.Equal(t, 1000, cfg.QueueSize)
	assert.Equal(t, 2, cfg.CloseRetry)
	assert.Equal(t, 4, cfg.NumNetworkThreads)
	assert.True(t, cfg.Debug)
}

func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		expected     string
	}{
		{
			name:         "Environment variable exists",
			key:          "TEST_KEY",
			defaultValue: "default",
			envValue:     "env-value",
			expected:     "env-value",
		},
		{
			name:         "Environment variable does not exist",
			key:          "NONEXISTENT_KEY",
			defaultValue: "default",
			envValue:     "",
			expected:     "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Unsetenv(tt.key)

			if tt.envValue != "" {
				os.Setenv(tt.key, tt.envValue)
				defer os.Unsetenv(tt.key)
			}

			result := getEnv(tt.key, tt.defaultValue)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestTransportDefaults(t *testing.T) {
	clearIngestEnv()
	defer clearIngestEnv()

	cfg := New()

	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.RetryBaseDelay)
	assert.Equal(t, 10*time.Second, cfg.RetryMaxDelay)
	assert.Equal(t, 10, cfg.MaxIdleConns)
	assert.Equal(t, 5, cfg.MaxConnsPerHost)
}

func TestWorkerPoolDefaults(t *testing.T) {
	clearIngestEnv()
	defer clearIngestEnv()

	cfg := New()

	assert.Equal(t, 60*time.Second, cfg.WorkerIdleTimeout)
	assert.Equal(t, 1, cfg.WorkerMinCount)
	assert.True(t, cfg.ResourceAwarePause)
	assert.Equal(t, 90.0, cfg.MemoryPauseLimitPct)
}

func TestConfigConsistency(t *testing.T) {
	clearIngestEnv()
	defer clearIngestEnv()

	cfg1 := New()
	cfg2 := New()

	assert.Equal(t, cfg1.ServerURL, cfg2.ServerURL)
	assert.Equal(t, cfg1.FlushLen, cfg2.FlushLen)
	assert.Equal(t, cfg1.QueueSize, cfg2.QueueSize)
}

// BenchmarkNew benchmarks config creation
func BenchmarkNew(b *testing.B) {
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = New()
	}
}
