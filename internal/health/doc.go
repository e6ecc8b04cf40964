// Package health provides liveness and readiness probe endpoints.
//
// Liveness always answers 200 while the process serves requests.
// Readiness runs every registered check concurrently under a timeout and
// answers 503 when any of them fails:
//
//	h := health.NewHandler(health.WithLogger(logger))
//	h.AddCheck(health.RouterCheck(func() *router.Router { return srv.Router() }))
//	h.RegisterRoutes(engine, "/livez", "/readyz")
package health
