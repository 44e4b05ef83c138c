package consumer

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimerFiresAfterInterval(t *testing.T) {
	var fires int32
	empty := int32(1)

	timer := newTimerThread(20*time.Millisecond, func() bool { return atomic.LoadInt32(&empty) == 1 }, func() {
		atomic.AddInt32(&fires, 1)
	})
	defer timer.shutdown()

	time.Sleep(30 * time.Millisecond)
	atomic.StoreInt32(&empty, 0)
	timer.resumePaused()

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&fires) >= 1
	}, time.Second, 5*time.Millisecond)
}

func TestTimerRefreshRestartsCountdown(t *testing.T) {
	var fires int32
	timer := newTimerThread(40*time.Millisecond, func() bool { return false }, func() {
		atomic.AddInt32(&fires, 1)
	})
	defer timer.shutdown()

	deadline := time.Now().Add(100 * time.Millisecond)
	for time.Now().Before(deadline) {
		timer.refresh()
		time.Sleep(10 * time.Millisecond)
	}

	assert.EqualValues(t, 0, atomic.LoadInt32(&fires), "refresh should keep restarting the countdown before it fires")
}

func TestTimerShutdownFiresFinalFlush(t *testing.T) {
	var fires int32
	timer := newTimerThread(time.Hour, func() bool { return true }, func() {
		atomic.AddInt32(&fires, 1)
	})

	timer.shutdown()
	assert.EqualValues(t, 1, atomic.LoadInt32(&fires))
}

func TestTimerDoesNotBusyPollWhenEmpty(t *testing.T) {
	var fires int32
	timer := newTimerThread(10*time.Millisecond, func() bool { return true }, func() {
		atomic.AddInt32(&fires, 1)
	})
	defer timer.shutdown()

	time.Sleep(80 * time.Millisecond)
	assert.EqualValues(t, 0, atomic.LoadInt32(&fires), "an empty consumer should not fire the timer repeatedly")
}
