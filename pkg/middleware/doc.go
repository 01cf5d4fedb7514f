// Package middleware provides HTTP middleware for the docrelay gateway.
//
// This package includes:
//   - OpenTelemetry distributed tracing middleware
//   - Prometheus request metrics middleware
//
// # OpenTelemetry Middleware
//
// The tracing middleware creates a server span per HTTP request. Spans
// carry the method and target, and requests that fail with a 5xx status
// are marked as errors.
//
//	r := chi.NewRouter()
//	r.Use(middleware.Tracing("docrelay"))
//
// Configure with options:
//
//	middleware.Tracing("docrelay",
//	    middleware.WithRequestFilter(func(r *http.Request) bool {
//	        return r.URL.Path != "/healthz"
//	    }),
//	)
//
// # Prometheus Metrics
//
// The metrics middleware records request counts, durations, and in-flight
// requests. When the request was routed through chi, the route pattern is
// used as the path label so path parameters such as room ids do not create
// unbounded label cardinality.
//
//	r.Use(middleware.Metrics(
//	    middleware.WithRegistry(registry),
//	))
//
// Both middlewares pass WebSocket upgrades through: the wrapped response
// writer implements http.Hijacker when the underlying writer does.
package middleware
