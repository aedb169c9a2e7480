package ratelimit

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"requestinvoice/internal/models"
)

// KeyFunc derives the client identity a request is counted against.
type KeyFunc func(r *http.Request) string

// Middleware returns HTTP middleware that enforces the limiter's quotas.
// A non-empty scope gives the wrapped routes their own counters, so the same
// client is counted separately per scope.
func Middleware(limiter Limiter, scope string, keyFn KeyFunc) func(http.Handler) http.Handler {
	if keyFn == nil {
		keyFn = ClientIP(false)
	}

	rejections, err := otel.Meter("requestinvoice/ratelimit").Int64Counter(
		"ratelimit.rejections",
		metric.WithDescription("Number of requests rejected by the rate limiter"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		slog.Warn("Failed to create rate limit counter", "error", err)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client := keyFn(r)
			key := client
			if scope != "" {
				key = scope + ":" + client
			}

			allowed, info := limiter.Allow(r.Context(), key)

			// Always set rate limit headers
			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", info.Limit))
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", info.Remaining))
			w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", info.ResetAt.Unix()))

			if !allowed {
				retryAfterSecs := int(info.RetryAfter.Seconds()) + 1
				w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfterSecs))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)

				errorResp := models.NewErrorResponse("Rate limit exceeded", models.ErrorCodeRateLimited)
				json.NewEncoder(w).Encode(errorResp)

				if rejections != nil {
					rejections.Add(r.Context(), 1, metric.WithAttributes(attribute.String("scope", scopeLabel(scope))))
				}
				slog.Warn("Rate limit exceeded",
					"client", client,
					"scope", scopeLabel(scope),
					"limit", info.Limit,
					"retry_after", retryAfterSecs,
				)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func scopeLabel(scope string) string {
	if scope == "" {
		return "default"
	}
	return scope
}

// ClientIP keys requests by the network origin address. Proxy headers are
// only honoured when trustProxyHeaders is set, since any client can forge them.
func ClientIP(trustProxyHeaders bool) KeyFunc {
	return func(r *http.Request) string {
		if trustProxyHeaders {
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				if ip := strings.TrimSpace(strings.Split(xff, ",")[0]); ip != "" {
					return ip
				}
			}
			if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
				return xri
			}
		}

		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err == nil && host != "" {
			return host
		}
		if r.RemoteAddr != "" {
			return r.RemoteAddr
		}
		return "unknown"
	}
}
