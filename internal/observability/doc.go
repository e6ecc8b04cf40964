// Package observability provides logging, metrics, and tracing
// functionality for avaroute.
//
// # Logging
//
// The Logger interface provides structured logging backed by zap:
//
//	logger, err := observability.NewLogger(observability.LogConfig{Level: "info", Format: "json"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer logger.Sync()
//
//	logger.Info("request dispatched",
//	    observability.String("method", "GET"),
//	    observability.String("outcome", "success"),
//	)
//
// # Metrics
//
// A dedicated Prometheus registry backs the /metrics endpoint. Router and
// filter metrics register with the same registry:
//
//	metrics := observability.NewMetrics("avaroute")
//	routerMetrics := router.NewMetrics("avaroute", metrics.Registry())
//	handler := metrics.Handler()
//
// # Tracing
//
// OpenTelemetry tracing with optional OTLP gRPC export:
//
//	tracer, err := observability.NewTracer(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tracer.Shutdown(ctx)
package observability
