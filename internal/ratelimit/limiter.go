// Package ratelimit admits or rejects HTTP requests per client before they
// reach the invoice handlers. A limiter enforces one or more quotas using a
// sliding log: a request is admitted only if, for every quota, fewer than
// Limit requests from the same key were admitted during the preceding Window.
// Rejected requests are not recorded and do not consume quota.
package ratelimit

import (
	"context"
	"time"

	"requestinvoice/internal/models"
)

// Limiter defines the rate limiting contract. Implementations must be safe for
// concurrent use.
type Limiter interface {
	// Allow checks whether a request identified by key should be allowed and
	// records it when it is. The returned Info describes the most restrictive
	// quota for populating response headers.
	Allow(ctx context.Context, key string) (allowed bool, info Info)

	// Close stops background goroutines and releases resources.
	Close()
}

// Info contains rate limit state for populating response headers.
type Info struct {
	Limit      int           // Maximum requests per window of the binding quota
	Remaining  int           // Requests left in the binding quota
	ResetAt    time.Time     // When the oldest counted request leaves the window
	RetryAfter time.Duration // How long to wait (meaningful only when denied)
}

// Quota caps a key to Limit admitted requests in any Window.
type Quota struct {
	Limit  int
	Window time.Duration
}

// QuotasFromConfig converts configured quotas.
func QuotasFromConfig(cfg []models.QuotaConfig) []Quota {
	quotas := make([]Quota, 0, len(cfg))
	for _, q := range cfg {
		quotas = append(quotas, Quota{Limit: q.Limit, Window: q.Window})
	}
	return quotas
}

func longestWindow(quotas []Quota) time.Duration {
	var longest time.Duration
	for _, q := range quotas {
		if q.Window > longest {
			longest = q.Window
		}
	}
	return longest
}
