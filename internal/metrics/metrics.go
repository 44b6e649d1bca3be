package metrics

import (
	"sync/atomic"
	"time"
)

type Counter struct {
	value uint64
}

func (c *Counter) Inc() {
	atomic.AddUint64(&c.value, 1)
}

func (c *Counter) Add(n uint64) {
	atomic.AddUint64(&c.value, n)
}

func (c *Counter) Load() uint64 {
	return atomic.LoadUint64(&c.value)
}

type Timer struct {
	start time.Time
}

func StartTimer() *Timer {
	return &Timer{start: time.Now()}
}

func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// WebhookStats counts inbound webhook deliveries by disposition.
type WebhookStats struct {
	Received  Counter
	Duplicate Counter
	Rejected  Counter
	Processed Counter
	Failed    Counter
}

func (s *WebhookStats) Snapshot() map[string]uint64 {
	return map[string]uint64{
		"received":  s.Received.Load(),
		"duplicate": s.Duplicate.Load(),
		"rejected":  s.Rejected.Load(),
		"processed": s.Processed.Load(),
		"failed":    s.Failed.Load(),
	}
}

// CheckoutStats counts payment initiations.
type CheckoutStats struct {
	Started   Counter
	Succeeded Counter
	Failed    Counter
}

func (s *CheckoutStats) Snapshot() map[string]uint64 {
	return map[string]uint64{
		"started":   s.Started.Load(),
		"succeeded": s.Succeeded.Load(),
		"failed":    s.Failed.Load(),
	}
}
