package router

import (
	"container/list"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/avaroute/internal/observability"
	"github.com/vyrodovalexey/avaroute/internal/uri"
	"github.com/vyrodovalexey/avaroute/internal/util"
)

// Sentinel errors for route registration.
var (
	// ErrArityMismatch is reported when a pattern binds a different number
	// of parameters than its handler accepts.
	ErrArityMismatch = errors.New("pattern parameters do not match handler arity")

	// ErrInvalidRoute is reported for unusable route declarations.
	ErrInvalidRoute = errors.New("invalid route declaration")
)

const tracerName = "github.com/vyrodovalexey/avaroute/internal/router"

// Registration kinds reported by Describe and metrics.
const (
	KindFilter = "filter"
	KindRoute  = "route"
	KindStatic = "static"
)

// Router is the route registry and dispatcher.
//
// Filters run first, in registration order. Routes follow, most recently
// registered first, except static roots which are appended behind every
// route registered so far. Registration is safe for concurrent use with
// Dispatch; a Dispatch in flight keeps evaluating the sequence it started
// with.
type Router struct {
	filters *list.List
	routes  *list.List
	mu      sync.RWMutex

	logger  observability.Logger
	metrics *Metrics
	tracer  trace.Tracer
}

// Option is a functional option for configuring the router.
type Option func(*Router)

// WithLogger sets the logger for the router.
func WithLogger(logger observability.Logger) Option {
	return func(r *Router) {
		r.logger = logger
	}
}

// WithMetrics sets the metrics for the router.
func WithMetrics(metrics *Metrics) Option {
	return func(r *Router) {
		r.metrics = metrics
	}
}

// WithTracer sets the tracer used for dispatch spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(r *Router) {
		r.tracer = tracer
	}
}

// Configuration populates a router.
type Configuration func(r *Router) error

// RouteInfo describes one registered filter, route or static root.
type RouteInfo struct {
	Kind    string
	Method  string
	Pattern string
}

// New creates a new router.
func New(opts ...Option) *Router {
	r := &Router{
		filters: list.New(),
		routes:  list.New(),
		logger:  observability.NopLogger(),
		tracer:  otel.Tracer(tracerName),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// StaticDir serves files from a directory on disk. The directory must exist.
func (r *Router) StaticDir(dir string) error {
	route, err := newDirRoute(dir, r.metrics)
	if err != nil {
		return util.NewConfigErrorWithCause(dir, "invalid static root", err)
	}

	r.addStatic(route)
	return nil
}

// StaticFS serves files from dir inside a bundled file system such as an
// embed.FS. The directory is looked up per request.
func (r *Router) StaticFS(fsys fs.FS, dir string) error {
	route, err := newFSRoute(fsys, dir, r.metrics)
	if err != nil {
		return util.NewConfigErrorWithCause(dir, "invalid static root", err)
	}

	r.addStatic(route)
	return nil
}

func (r *Router) addStatic(route *staticRoute) {
	r.mu.Lock()
	r.routes.PushBack(route)
	r.mu.Unlock()

	r.metrics.recordRegistration(KindStatic)
	r.logger.Debug("registered static root",
		observability.String("root", route.String()),
	)
}

// Add registers the routes declared by resource.
func (r *Router) Add(resource Resource) error {
	return r.AddWithPrefix("", resource)
}

// AddWithPrefix registers the routes declared by resource, prefixing every
// pattern with prefix. Either all declarations are registered or none.
func (r *Router) AddWithPrefix(prefix string, resource Resource) error {
	if resource == nil {
		return util.NewConfigErrorWithCause(prefix, "nil resource", ErrInvalidRoute)
	}

	declarations := resource.Routes()
	entries := make([]*routeEntry, 0, len(declarations))

	for _, decl := range declarations {
		method := strings.ToUpper(decl.Method)
		if method != http.MethodGet && method != http.MethodPost {
			return util.NewConfigErrorWithCause(prefix+decl.Pattern,
				fmt.Sprintf("unsupported method %q", decl.Method), ErrInvalidRoute)
		}

		entry, err := newRouteEntry(method, prefix+decl.Pattern, decl.Route)
		if err != nil {
			return err
		}
		entries = append(entries, entry)
	}

	for _, entry := range entries {
		r.addRoute(entry)
	}

	return nil
}

// Get registers route for GET requests matching pattern.
func (r *Router) Get(pattern string, route AnyRoute) error {
	return r.add(http.MethodGet, pattern, route)
}

// Post registers route for POST requests matching pattern.
func (r *Router) Post(pattern string, route AnyRoute) error {
	return r.add(http.MethodPost, pattern, route)
}

func (r *Router) add(method, pattern string, route AnyRoute) error {
	entry, err := newRouteEntry(method, pattern, route)
	if err != nil {
		return err
	}

	r.addRoute(entry)
	return nil
}

// newRouteEntry compiles pattern and checks it binds exactly as many
// parameters as route accepts.
func newRouteEntry(method, pattern string, route AnyRoute) (*routeEntry, error) {
	if route == nil {
		return nil, util.NewConfigErrorWithCause(pattern, "nil handler", ErrInvalidRoute)
	}

	compiled := uri.Compile(pattern)
	if compiled.ParamsCount() != route.Arity() {
		return nil, util.NewConfigErrorWithCause(pattern,
			fmt.Sprintf("expected %d parameters in %s", route.Arity(), pattern), ErrArityMismatch)
	}

	return &routeEntry{
		method:  method,
		pattern: compiled,
		route:   route,
	}, nil
}

func (r *Router) addRoute(entry *routeEntry) {
	r.mu.Lock()
	r.routes.PushFront(entry)
	r.mu.Unlock()

	r.metrics.recordRegistration(KindRoute)
	r.logger.Debug("registered route",
		observability.String("method", entry.method),
		observability.String("pattern", entry.pattern.String()),
	)
}

// Filter appends f to the filters. Filters run before any route, in the
// order they were registered.
func (r *Router) Filter(f Filter) {
	if f == nil {
		return
	}

	r.mu.Lock()
	r.filters.PushBack(f)
	r.mu.Unlock()

	r.metrics.recordRegistration(KindFilter)
	r.logger.Debug("registered filter",
		observability.String("filter", describe(f)),
	)
}

// Reset removes every filter and route.
func (r *Router) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.filters.Init()
	r.routes.Init()
}

// Configure resets the router and applies configurations in order. It stops
// at the first failing configuration.
func (r *Router) Configure(configurations ...Configuration) error {
	r.Reset()

	for _, configure := range configurations {
		if err := configure(r); err != nil {
			return err
		}
	}

	return nil
}

// snapshot returns filters followed by routes, in evaluation order.
func (r *Router) snapshot() []Filter {
	r.mu.RLock()
	defer r.mu.RUnlock()

	chain := make([]Filter, 0, r.filters.Len()+r.routes.Len())
	for e := r.filters.Front(); e != nil; e = e.Next() {
		chain = append(chain, e.Value.(Filter))
	}
	for e := r.routes.Front(); e != nil; e = e.Next() {
		chain = append(chain, e.Value.(Filter))
	}

	return chain
}

// Dispatch offers the request for requestPath to every filter, then to every route.
//
// The first Success is returned immediately; its response has already been
// written. Otherwise the best outcome seen is returned, WrongURL when there
// is nothing registered. A non-nil error comes from a handler or from
// reading a static resource and ends dispatch.
func (r *Router) Dispatch(requestPath string, ex Exchange) (Match, error) {
	start := time.Now()

	_, span := r.tracer.Start(requestContext(ex), "router.Dispatch",
		trace.WithAttributes(
			attribute.String("http.request.method", ex.Method()),
			attribute.String("url.path", requestPath),
		),
	)
	defer span.End()

	best := WrongURL

	for _, f := range r.snapshot() {
		match, err := f.Apply(requestPath, ex)
		if err != nil {
			r.metrics.recordError()
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			r.logger.Error("dispatch failed",
				observability.String("method", ex.Method()),
				observability.String("path", requestPath),
				observability.String("handler", describe(f)),
				observability.Error(err),
			)
			return match, err
		}

		if match == Success {
			best = Success
			break
		}

		if match.IsBetterThan(best) {
			best = match
		}
	}

	span.SetAttributes(attribute.String("router.outcome", best.String()))
	r.metrics.recordDispatch(best, time.Since(start))

	return best, nil
}

// Describe lists filters, routes and static roots in evaluation order.
func (r *Router) Describe() []RouteInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]RouteInfo, 0, r.filters.Len()+r.routes.Len())
	for e := r.filters.Front(); e != nil; e = e.Next() {
		infos = append(infos, RouteInfo{Kind: KindFilter, Pattern: describe(e.Value)})
	}
	for e := r.routes.Front(); e != nil; e = e.Next() {
		switch v := e.Value.(type) {
		case *routeEntry:
			infos = append(infos, RouteInfo{Kind: KindRoute, Method: v.method, Pattern: v.pattern.String()})
		case *staticRoute:
			infos = append(infos, RouteInfo{Kind: KindStatic, Method: http.MethodGet, Pattern: v.String()})
		}
	}

	return infos
}

// Len returns the number of registered filters and routes.
func (r *Router) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.filters.Len() + r.routes.Len()
}

func describe(v any) string {
	if s, ok := v.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%T", v)
}
