package webhook

import (
	"net/http"
	"time"
)

// Option configures an Extension.
type Option func(*Extension)

// WithEvents restricts delivery to the listed event types. By default
// all event types are delivered. Unknown types are silently ignored.
func WithEvents(events ...string) Option {
	return func(e *Extension) {
		e.enabled = make(map[string]bool, len(events))
		for _, evt := range events {
			e.enabled[evt] = true
		}
	}
}

// WithClient replaces the HTTP client (default: 10s timeout).
func WithClient(c *http.Client) Option {
	return func(e *Extension) { e.client = c }
}

// WithHeader sets a header on every delivery, e.g. an auth token.
func WithHeader(key, value string) Option {
	return func(e *Extension) {
		if e.headers == nil {
			e.headers = make(map[string]string)
		}
		e.headers[key] = value
	}
}

// WithClock overrides the time source for envelope timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Extension) { e.now = now }
}
