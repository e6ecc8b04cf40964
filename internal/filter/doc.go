// Package filter provides cross-cutting router.Filter implementations.
//
// Filters run before any route. Each one either intercepts the request,
// writing a response and returning router.Success, or lets it fall through
// with router.WrongURL:
//
//   - CORS answers preflight requests.
//   - BasicAuth challenges unauthenticated requests under a path prefix.
//   - JWTAuth rejects requests under a path prefix without a valid bearer token.
//   - RateLimit rejects requests over a budget, counted locally or in Redis.
//   - Rules rejects requests matching CEL expressions.
//
// Example:
//
//	auth, err := filter.NewBasicAuth("admin", "/admin", users,
//	    filter.WithLogger(logger),
//	)
//	if err != nil {
//	    return err
//	}
//	r.Filter(auth)
package filter
