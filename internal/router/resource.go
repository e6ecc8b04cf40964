package router

import "net/http"

// Resource is implemented by handler objects that declare their own routes.
//
// A type wrapping a Resource (a test spy, an instrumentation decorator) that
// embeds it keeps the same declarations through method promotion.
type Resource interface {
	Routes() []Declaration
}

// Declaration binds a method and a path pattern to a handler.
type Declaration struct {
	Method  string
	Pattern string
	Route   AnyRoute
}

// GET declares a handler responding to GET requests at pattern.
func GET(pattern string, route AnyRoute) Declaration {
	return Declaration{Method: http.MethodGet, Pattern: pattern, Route: route}
}

// POST declares a handler responding to POST requests at pattern.
func POST(pattern string, route AnyRoute) Declaration {
	return Declaration{Method: http.MethodPost, Pattern: pattern, Route: route}
}

// ResourceFunc adapts a function to the Resource interface.
type ResourceFunc func() []Declaration

// Routes calls f().
func (f ResourceFunc) Routes() []Declaration {
	return f()
}
