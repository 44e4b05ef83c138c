package workerpool

import (
	"context"
	"log/slog"
	"time"

	"github.com/shirou/gopsutil/v4/mem"
)

// ResourceMonitor periodically checks host memory pressure and places or
// removes the pool's pause barrier accordingly, generalizing the
// teacher's Pi-specific thermal-throttling poll loop into the pool's
// pause-barrier primitive instead of a hardcoded sleep-and-retry.
type ResourceMonitor struct {
	pool          *Pool
	limitPct      float64
	interval      time.Duration
	logger        *slog.Logger
	memPercentFn  func() (float64, error)
	pausedAlready bool
}

// NewResourceMonitor builds a monitor for pool, tripping the pause
// barrier when used memory crosses limitPct.
func NewResourceMonitor(pool *Pool, limitPct float64, logger *slog.Logger) *ResourceMonitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResourceMonitor{
		pool:     pool,
		limitPct: limitPct,
		interval: 5 * time.Second,
		logger:   logger,
		memPercentFn: func() (float64, error) {
			v, err := mem.VirtualMemory()
			if err != nil {
				return 0, err
			}
			return v.UsedPercent, nil
		},
	}
}

// Run blocks, polling until ctx is cancelled.
func (m *ResourceMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.checkOnce()
		}
	}
}

func (m *ResourceMonitor) checkOnce() {
	usedPct, err := m.memPercentFn()
	if err != nil {
		m.logger.Warn("resource monitor: failed to read memory stats", slog.String("error", err.Error()))
		return
	}

	if usedPct >= m.limitPct {
		if !m.pausedAlready {
			m.logger.Warn("pausing worker pool under memory pressure",
				slog.Float64("used_percent", usedPct),
				slog.Float64("limit_percent", m.limitPct),
			)
			m.pool.PlaceBarrier()
			m.pausedAlready = true
		}
		return
	}

	if m.pausedAlready {
		m.logger.Info("resuming worker pool, memory pressure cleared",
			slog.Float64("used_percent", usedPct),
		)
		m.pool.RemoveBarrier()
		m.pausedAlready = false
	}
}
