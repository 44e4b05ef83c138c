package consumer

import "time"

// timerThread fires onFire after interval of quiet, coalescing into a
// single unbounded wait whenever isEmpty reports nothing to upload (spec
// §4.5 "Timer thread"), so it never busy-polls an idle consumer.
type timerThread struct {
	interval time.Duration
	isEmpty  func() bool
	onFire   func()

	refreshCh chan struct{} // buffered 1: restart the interval wait from now
	resumeCh  chan struct{} // buffered 1: wake the idle (no-timeout) wait
	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func newTimerThread(interval time.Duration, isEmpty func() bool, onFire func()) *timerThread {
	t := &timerThread{
		interval:  interval,
		isEmpty:   isEmpty,
		onFire:    onFire,
		refreshCh: make(chan struct{}, 1),
		resumeCh:  make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
	go t.run()
	return t
}

func (t *timerThread) run() {
	defer close(t.stoppedCh)

	for {
		select {
		case <-t.stopCh:
			t.onFire()
			return
		case <-t.refreshCh:
			continue
		case <-time.After(t.interval):
		}

		if t.isEmpty() {
			select {
			case <-t.stopCh:
				t.onFire()
				return
			case <-t.resumeCh:
				continue
			case <-t.refreshCh:
				continue
			}
		}

		t.onFire()
	}
}

// refresh restarts the quiet-period countdown from now, rate-limiting
// spurious flushes after a burst of adds.
func (t *timerThread) refresh() {
	nonBlockingSend(t.refreshCh)
}

// resumePaused wakes only the idle (nothing-to-upload) wait; called on
// every Add so a newly non-empty queue is noticed promptly.
func (t *timerThread) resumePaused() {
	nonBlockingSend(t.resumeCh)
}

// shutdown stops the timer thread. It fires one last flush (via onFire)
// before exiting.
func (t *timerThread) shutdown() {
	close(t.stopCh)
	<-t.stoppedCh
}

func nonBlockingSend(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
