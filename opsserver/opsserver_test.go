package opsserver

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ingestsdk/go-sdk/metrics"
	"github.com/ingestsdk/go-sdk/pager"
	"github.com/ingestsdk/go-sdk/workerpool"
)

func TestHandleMetricsReturnsSnapshot(t *testing.T) {
	meters := metrics.New()
	meters.Incr("test_counter")
	pool := workerpool.New(workerpool.Config{MinWorkers: 1})
	defer pool.Terminate(context.Background())

	srv := New(meters, pool, pager.New(nil), nil)

	req := httptest.NewRequest("GET", "/ops/metrics", nil)
	resp, err := srv.app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]float64
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	assert.Equal(t, float64(1), decoded["test_counter"])
}

func TestHandlePoolStatsReturnsActiveWorkers(t *testing.T) {
	meters := metrics.New()
	pool := workerpool.New(workerpool.Config{MinWorkers: 3})
	defer pool.Terminate(context.Background())

	srv := New(meters, pool, pager.New(nil), nil)

	req := httptest.NewRequest("GET", "/ops/pool", nil)
	resp, err := srv.app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]int
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	assert.Equal(t, 3, decoded["active_workers"])
}
