package router

import (
	"net/http"
	"strings"

	"github.com/vyrodovalexey/avaroute/internal/uri"
)

// MaxArity is the largest number of positional parameters a route accepts.
const MaxArity = 4

// AnyRoute is a handler of fixed arity. It is implemented by Route,
// OneParamRoute, TwoParamsRoute, ThreeParamsRoute and FourParamsRoute only.
type AnyRoute interface {
	// Arity returns the number of positional parameters.
	Arity() int

	body(params []string) (any, error)
}

// Route is a handler without parameters.
type Route func() (any, error)

// Arity implements AnyRoute.
func (r Route) Arity() int { return 0 }

func (r Route) body(_ []string) (any, error) { return r() }

// OneParamRoute is a handler bound to one path parameter.
type OneParamRoute func(p1 string) (any, error)

// Arity implements AnyRoute.
func (r OneParamRoute) Arity() int { return 1 }

func (r OneParamRoute) body(p []string) (any, error) { return r(p[0]) }

// TwoParamsRoute is a handler bound to two path parameters.
type TwoParamsRoute func(p1, p2 string) (any, error)

// Arity implements AnyRoute.
func (r TwoParamsRoute) Arity() int { return 2 }

func (r TwoParamsRoute) body(p []string) (any, error) { return r(p[0], p[1]) }

// ThreeParamsRoute is a handler bound to three path parameters.
type ThreeParamsRoute func(p1, p2, p3 string) (any, error)

// Arity implements AnyRoute.
func (r ThreeParamsRoute) Arity() int { return 3 }

func (r ThreeParamsRoute) body(p []string) (any, error) { return r(p[0], p[1], p[2]) }

// FourParamsRoute is a handler bound to four path parameters.
type FourParamsRoute func(p1, p2, p3, p4 string) (any, error)

// Arity implements AnyRoute.
func (r FourParamsRoute) Arity() int { return 4 }

func (r FourParamsRoute) body(p []string) (any, error) { return r(p[0], p[1], p[2], p[3]) }

// routeEntry binds a method and a compiled pattern to a handler.
// Entries are immutable once created.
type routeEntry struct {
	method  string
	pattern *uri.Pattern
	route   AnyRoute
}

// Apply implements Filter.
func (e *routeEntry) Apply(path string, ex Exchange) (Match, error) {
	params, ok := e.pattern.Match(path)
	if !ok {
		return WrongURL, nil
	}

	if !strings.EqualFold(e.method, ex.Method()) {
		return WrongMethod, nil
	}

	body, err := e.route.body(params)
	if err != nil {
		return Success, err
	}

	return Success, ex.Write(http.StatusOK, body)
}

// String describes the entry for route listings.
func (e *routeEntry) String() string {
	return e.method + " " + e.pattern.String()
}
