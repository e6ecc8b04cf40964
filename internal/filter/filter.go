package filter

import (
	"net"
	"strings"

	"github.com/vyrodovalexey/avaroute/internal/observability"
	"github.com/vyrodovalexey/avaroute/internal/router"
)

// Header names used by the filters.
const (
	HeaderOrigin           = "Origin"
	HeaderVary             = "Vary"
	HeaderRetryAfter       = "Retry-After"
	HeaderWWWAuthenticate  = "WWW-Authenticate"
	HeaderRequestMethod    = "Access-Control-Request-Method"
	HeaderAllowOrigin      = "Access-Control-Allow-Origin"
	HeaderAllowMethods     = "Access-Control-Allow-Methods"
	HeaderAllowHeaders     = "Access-Control-Allow-Headers"
	HeaderExposeHeaders    = "Access-Control-Expose-Headers"
	HeaderAllowCredentials = "Access-Control-Allow-Credentials"
	HeaderMaxAge           = "Access-Control-Max-Age"
)

// Names reported in logs and metrics.
const (
	nameCORS      = "cors"
	nameBasicAuth = "basic_auth"
	nameRateLimit = "rate_limit"
	nameJWTAuth   = "jwt_auth"
	nameRules     = "rules"
)

// Option is a functional option shared by every filter.
type Option func(*base)

// base holds the collaborators common to all filters.
type base struct {
	logger  observability.Logger
	metrics *Metrics
}

// WithLogger sets the logger for the filter.
func WithLogger(logger observability.Logger) Option {
	return func(b *base) {
		b.logger = logger
	}
}

// WithMetrics sets the metrics for the filter.
func WithMetrics(metrics *Metrics) Option {
	return func(b *base) {
		b.metrics = metrics
	}
}

func newBase(opts []Option) base {
	b := base{logger: observability.NopLogger()}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

// errorBody is the JSON body written by rejecting filters.
type errorBody struct {
	Error string `json:"error"`
}

// reject writes status and message and reports the request as handled.
func (b *base) reject(name, reason string, ex router.Exchange, status int, message string) (router.Match, error) {
	b.metrics.recordRejection(name, reason)
	return router.Success, ex.Write(status, errorBody{Error: message})
}

// clientIP returns the remote address of the request without its port.
func clientIP(ex router.Exchange) string {
	req := ex.Request()
	if req == nil {
		return ""
	}
	return stripPort(req.RemoteAddr)
}

// requestHeader returns a request header, or "" without a request.
func requestHeader(ex router.Exchange, name string) string {
	req := ex.Request()
	if req == nil {
		return ""
	}
	return req.Header.Get(name)
}

// underPrefix reports whether uri is prefix or lies below it, comparing
// whole path segments. An empty prefix covers every uri.
func underPrefix(prefix, uri string) bool {
	if prefix == "" {
		return true
	}
	return uri == prefix || strings.HasPrefix(uri, prefix+"/")
}

// displayPrefix renders a trimmed prefix for route listings.
func displayPrefix(prefix string) string {
	if prefix == "" {
		return "/"
	}
	return prefix
}

// stripPort removes the port from an address if present.
func stripPort(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

// Compile-time interface checks.
var (
	_ router.Filter = (*CORS)(nil)
	_ router.Filter = (*BasicAuth)(nil)
	_ router.Filter = (*JWTAuth)(nil)
	_ router.Filter = (*RateLimit)(nil)
	_ router.Filter = (*Rules)(nil)
)
