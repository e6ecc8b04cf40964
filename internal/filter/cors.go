package filter

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/vyrodovalexey/avaroute/internal/observability"
	"github.com/vyrodovalexey/avaroute/internal/router"
)

// CORSConfig contains CORS configuration.
type CORSConfig struct {
	AllowOrigins     []string
	AllowMethods     []string
	AllowHeaders     []string
	ExposeHeaders    []string
	AllowCredentials bool
	MaxAge           int
}

// DefaultCORSConfig returns default CORS configuration.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodHead, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		MaxAge:       86400,
	}
}

// withDefaults fills empty lists from DefaultCORSConfig.
func (c CORSConfig) withDefaults() CORSConfig {
	defaults := DefaultCORSConfig()
	if len(c.AllowOrigins) == 0 {
		c.AllowOrigins = defaults.AllowOrigins
	}
	if len(c.AllowMethods) == 0 {
		c.AllowMethods = defaults.AllowMethods
	}
	if len(c.AllowHeaders) == 0 {
		c.AllowHeaders = defaults.AllowHeaders
	}
	return c
}

// CORS answers preflight requests. For other requests from an allowed
// origin it only adds the allow-origin headers to the pending response and
// falls through.
type CORS struct {
	base

	allowOrigins     map[string]bool
	wildcardPatterns []string // patterns like "*.example.com"
	allowAllOrigins  bool
	allowMethods     string
	allowHeaders     string
	exposeHeaders    string
	maxAge           string
	allowCredentials bool
}

// NewCORS creates a CORS filter. Empty lists take their defaults.
func NewCORS(cfg CORSConfig, opts ...Option) *CORS {
	cfg = cfg.withDefaults()

	c := &CORS{
		base:             newBase(opts),
		allowOrigins:     make(map[string]bool),
		allowMethods:     strings.Join(cfg.AllowMethods, ", "),
		allowHeaders:     strings.Join(cfg.AllowHeaders, ", "),
		exposeHeaders:    strings.Join(cfg.ExposeHeaders, ", "),
		allowCredentials: cfg.AllowCredentials,
	}
	if cfg.MaxAge > 0 {
		c.maxAge = strconv.Itoa(cfg.MaxAge)
	}

	for _, origin := range cfg.AllowOrigins {
		switch {
		case origin == "*":
			c.allowAllOrigins = true
		case strings.HasPrefix(origin, "*."):
			c.wildcardPatterns = append(c.wildcardPatterns, origin)
		default:
			c.allowOrigins[origin] = true
		}
	}

	return c
}

// Apply implements router.Filter.
func (c *CORS) Apply(uri string, ex router.Exchange) (router.Match, error) {
	origin := requestHeader(ex, HeaderOrigin)
	if origin == "" {
		return router.WrongURL, nil
	}

	allowed := c.isOriginAllowed(origin)
	if allowed {
		header := ex.Header()
		header.Set(HeaderAllowOrigin, origin)
		header.Add(HeaderVary, HeaderOrigin)
		if c.allowCredentials {
			header.Set(HeaderAllowCredentials, "true")
		}
		if c.exposeHeaders != "" {
			header.Set(HeaderExposeHeaders, c.exposeHeaders)
		}
	}

	if !strings.EqualFold(ex.Method(), http.MethodOptions) || requestHeader(ex, HeaderRequestMethod) == "" {
		return router.WrongURL, nil
	}

	if allowed {
		header := ex.Header()
		header.Set(HeaderAllowMethods, c.allowMethods)
		header.Set(HeaderAllowHeaders, c.allowHeaders)
		if c.maxAge != "" {
			header.Set(HeaderMaxAge, c.maxAge)
		}
	}

	c.logger.Debug("answered preflight request",
		observability.String("origin", origin),
		observability.String("path", uri),
	)

	return router.Success, ex.Write(http.StatusNoContent, nil)
}

// isOriginAllowed checks if the given origin is allowed.
func (c *CORS) isOriginAllowed(origin string) bool {
	if c.allowAllOrigins || c.allowOrigins[origin] {
		return true
	}

	for _, pattern := range c.wildcardPatterns {
		if matchWildcardOrigin(origin, pattern) {
			return true
		}
	}

	return false
}

// matchWildcardOrigin checks if an origin matches a "*.example.com" pattern.
func matchWildcardOrigin(origin, pattern string) bool {
	suffix := pattern[1:]

	host := origin
	if idx := strings.Index(host, "://"); idx != -1 {
		host = host[idx+3:]
	}
	if idx := strings.Index(host, ":"); idx != -1 {
		host = host[:idx]
	}

	return len(host) > len(suffix) && strings.HasSuffix(host, suffix)
}

// String describes the filter for route listings.
func (c *CORS) String() string {
	return nameCORS
}
