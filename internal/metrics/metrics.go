package metrics

import (
	"sort"
	"sync"
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

// Counter names.
const (
	WebhookReceived    = "webhook_received"
	WebhookDuplicate   = "webhook_duplicate"
	WebhookRejected    = "webhook_rejected"
	WebhookNoOwner     = "webhook_no_owner"
	PaymentsApplied    = "payments_applied"
	CorrelationLoss    = "payment_correlation_loss"
	AmountMismatch     = "payment_amount_mismatch"
	DoublePayment      = "payment_double"
	AdminOverrides     = "order_admin_overrides"
	EmailsFailed       = "emails_failed"
	DocsRequestPending = "docs_request_unsent"
)

// Registry holds named counters. The zero value is not usable; use
// NewRegistry.
type Registry struct {
	mu       sync.RWMutex
	counters map[string]*Counter
}

func NewRegistry() *Registry {
	r := &Registry{counters: make(map[string]*Counter)}
	for _, name := range []string{
		WebhookReceived, WebhookDuplicate, WebhookRejected, WebhookNoOwner,
		PaymentsApplied, CorrelationLoss, AmountMismatch, DoublePayment,
		AdminOverrides, EmailsFailed, DocsRequestPending,
	} {
		r.counters[name] = &Counter{}
	}
	return r
}

// Counter returns the named counter, creating it on first use.
func (r *Registry) Counter(name string) *Counter {
	r.mu.RLock()
	c, ok := r.counters[name]
	r.mu.RUnlock()
	if ok {
		return c
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok = r.counters[name]; ok {
		return c
	}
	c = &Counter{}
	r.counters[name] = c
	return c
}

func (r *Registry) Inc(name string) {
	r.Counter(name).Inc()
}

type Sample struct {
	Name  string `json:"name"`
	Value uint64 `json:"value"`
}

// Snapshot returns every counter sorted by name.
func (r *Registry) Snapshot() []Sample {
	r.mu.RLock()
	out := make([]Sample, 0, len(r.counters))
	for name, c := range r.counters {
		out = append(out, Sample{Name: name, Value: c.Load()})
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
