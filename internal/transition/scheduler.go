package transition

import (
	"sync"
	"time"
)

// Token cancels a periodic callback. Cancel must be safe to call more than
// once and from inside the callback itself.
type Token interface {
	Cancel()
}

// Scheduler runs a callback at a fixed interval until its token is
// cancelled. Callbacks for one token run strictly in order.
type Scheduler interface {
	SchedulePeriodic(interval time.Duration, fn func(now time.Time)) Token
}

// TickerScheduler schedules callbacks on a time.Ticker, one goroutine per
// token.
type TickerScheduler struct{}

// SchedulePeriodic starts a ticker goroutine that calls fn every interval.
func (TickerScheduler) SchedulePeriodic(interval time.Duration, fn func(now time.Time)) Token {
	t := &tickerToken{stop: make(chan struct{})}
	ticker := time.NewTicker(interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-t.stop:
				return
			case now := <-ticker.C:
				// Cancel may race with a ready tick; prefer the stop.
				select {
				case <-t.stop:
					return
				default:
				}
				fn(now)
			}
		}
	}()

	return t
}

type tickerToken struct {
	stop chan struct{}
	once sync.Once
}

// Cancel stops the ticker. It does not wait for an in-flight callback.
func (t *tickerToken) Cancel() {
	t.once.Do(func() { close(t.stop) })
}
