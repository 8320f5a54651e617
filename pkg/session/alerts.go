package session

import "time"

const (
	// DefaultAlertWindow bounds how many proctoring alerts stay visible at
	// once; older ones fall off first.
	DefaultAlertWindow = 5
	// DefaultAlertTTL is how long one alert stays visible.
	DefaultAlertTTL = 4 * time.Second
)

// Alert is one visible proctoring alert.
type Alert struct {
	Reason     string
	FaceCount  *int
	ReceivedAt time.Time
	ExpiresAt  time.Time
}

// AlertDebouncer keeps the bounded, self-expiring window of proctoring
// alerts. Arrival order is preserved; when the window is full the oldest
// alert is evicted. Not safe for concurrent use; the orchestrator loop owns
// it.
type AlertDebouncer struct {
	now    func() time.Time
	ttl    time.Duration
	window int
	alerts []Alert
}

// NewAlertDebouncer creates a debouncer with the given window and lifetime.
func NewAlertDebouncer(window int, ttl time.Duration, now func() time.Time) *AlertDebouncer {
	if window <= 0 {
		window = DefaultAlertWindow
	}
	if ttl <= 0 {
		ttl = DefaultAlertTTL
	}
	if now == nil {
		now = time.Now
	}
	return &AlertDebouncer{now: now, ttl: ttl, window: window}
}

// Add records one alert, evicting the oldest if the window is full, and
// returns the stored alert. Expiry is timer-driven by the caller via Prune.
func (d *AlertDebouncer) Add(reason string, faceCount *int) Alert {
	t := d.now()
	a := Alert{
		Reason:     reason,
		FaceCount:  faceCount,
		ReceivedAt: t,
		ExpiresAt:  t.Add(d.ttl),
	}
	d.alerts = append(d.alerts, a)
	if len(d.alerts) > d.window {
		d.alerts = append(d.alerts[:0], d.alerts[len(d.alerts)-d.window:]...)
	}
	return a
}

// TTL returns the configured lifetime per alert.
func (d *AlertDebouncer) TTL() time.Duration { return d.ttl }

// Prune drops expired alerts and reports whether anything changed.
func (d *AlertDebouncer) Prune() bool {
	t := d.now()
	kept := d.alerts[:0]
	for _, a := range d.alerts {
		if a.ExpiresAt.After(t) {
			kept = append(kept, a)
		}
	}
	changed := len(kept) != len(d.alerts)
	d.alerts = kept
	return changed
}

// Active returns a copy of the visible alerts in arrival order.
func (d *AlertDebouncer) Active() []Alert {
	if len(d.alerts) == 0 {
		return nil
	}
	return append([]Alert(nil), d.alerts...)
}
