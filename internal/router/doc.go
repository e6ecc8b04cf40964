// Package router provides request dispatch for avaroute.
//
// A Router holds two ordered sequences: filters and routes. Each request is
// offered to every filter (in registration order) and then to every route
// (most recently registered first) until one of them reports Success. When
// nothing succeeds, Dispatch returns the most specific failure seen:
// WrongMethod when some route matched the path but not the method, WrongURL
// otherwise.
//
// # Features
//
//   - Positional path parameters (":name") bound to handlers of arity 0 to 4
//   - Registration-time validation of pattern/arity agreement
//   - Handler objects declaring their own routes (Resource)
//   - Static file roots with ".html"/".md" extension fallback, directory
//     index documents and path traversal protection
//   - Thread-safe registration and lookup
//
// # Usage
//
//	r := router.New()
//	if err := r.Get("/hello/:name", router.OneParamRoute(func(name string) (any, error) {
//	    return "Hello " + name, nil
//	})); err != nil {
//	    log.Fatal(err)
//	}
//	if err := r.StaticDir("public"); err != nil {
//	    log.Fatal(err)
//	}
//
//	match, err := r.Dispatch(req.URL.Path, exchange)
//	// match is Success, WrongMethod or WrongURL
package router
