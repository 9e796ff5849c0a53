// Package server runs the optional local status server.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support. [BasicRouter] implements it on
// [http.ServeMux]. [Middleware] added first wraps outermost.
//
// # Endpoints
//
//   - GET /status : JSON snapshot of the current job, overlay, review counts and processes ([StatusHandler])
//   - GET /metrics : Prometheus collectors from the telemetry package
//
// [Serve] listens on the configured metrics.addr and shuts down when its context is cancelled.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
