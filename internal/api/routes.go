package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"

	"requestinvoice/internal/ratelimit"
)

type routeConfig struct {
	otelServiceName string
	defaultLimiter  ratelimit.Limiter
	routeLimiter    ratelimit.Limiter
	keyFn           ratelimit.KeyFunc
}

// RouteOption configures optional route behavior.
type RouteOption func(*routeConfig)

// WithOTelMiddleware adds OpenTelemetry HTTP instrumentation middleware.
func WithOTelMiddleware(serviceName string) RouteOption {
	return func(c *routeConfig) {
		c.otelServiceName = serviceName
	}
}

// WithRateLimits guards the invoice routes. defaultLimiter counts every
// gateway request of a client together; routeLimiter counts each route
// separately. Either may be nil.
func WithRateLimits(defaultLimiter, routeLimiter ratelimit.Limiter, keyFn ratelimit.KeyFunc) RouteOption {
	return func(c *routeConfig) {
		c.defaultLimiter = defaultLimiter
		c.routeLimiter = routeLimiter
		c.keyFn = keyFn
	}
}

// SetupRoutes configures the HTTP routes for the gateway
func SetupRoutes(handlers *Handlers, opts ...RouteOption) *mux.Router {
	cfg := &routeConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	router := mux.NewRouter()
	router.UseEncodedPath()

	if cfg.otelServiceName != "" {
		router.Use(otelmux.Middleware(cfg.otelServiceName,
			otelmux.WithFilter(func(r *http.Request) bool {
				return r.URL.Path != "/health"
			}),
		))
	}
	router.Use(loggingMiddleware)
	router.Use(recoveryMiddleware)

	router.HandleFunc("/health", handlers.HealthCheck).Methods("GET")

	gateway := router.PathPrefix("/").Subrouter()
	if cfg.defaultLimiter != nil {
		gateway.Use(ratelimit.Middleware(cfg.defaultLimiter, "", cfg.keyFn))
	}

	routeLimit := func(scope string, h http.HandlerFunc) http.Handler {
		if cfg.routeLimiter == nil {
			return h
		}
		return ratelimit.Middleware(cfg.routeLimiter, scope, cfg.keyFn)(h)
	}

	gateway.Handle("/invoice/{amount}/{description}", routeLimit("invoice", handlers.InvoiceByPath)).Methods("GET")
	gateway.Handle("/payRequest", routeLimit("payRequest", handlers.PayRequest)).Methods("GET")

	router.NotFoundHandler = http.HandlerFunc(notFoundHandler)
	router.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowedHandler)

	return router
}
