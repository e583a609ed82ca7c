// Package ratelimit implements per-client sliding window limits for the
// public capture endpoints.
package ratelimit

import (
	"context"
	"time"
)

// Limiter answers whether a key exhausted its window and records attempts
// against it. Implementations must be safe for concurrent use.
type Limiter interface {
	IsLimited(ctx context.Context, key string) (bool, error)
	RecordAttempt(ctx context.Context, key string) error
}

// Policy is a named attempt budget per window.
type Policy struct {
	Name   string
	Max    int
	Window time.Duration
}

var (
	ContactPolicy    = Policy{Name: "contact", Max: 5, Window: time.Hour}
	NewsletterPolicy = Policy{Name: "newsletter", Max: 3, Window: time.Hour}
)

// GlobalWindow is the default window of the API-wide request budget.
const GlobalWindow = 15 * time.Minute
