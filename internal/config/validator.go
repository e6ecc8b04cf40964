package config

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/vyrodovalexey/avaroute/internal/router"
	"github.com/vyrodovalexey/avaroute/internal/uri"
	"github.com/vyrodovalexey/avaroute/internal/util"
)

// placeholderPattern matches "{name}" placeholders in route bodies.
var placeholderPattern = regexp.MustCompile(`\{([A-Za-z0-9_]+)\}`)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Path    string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e))
	for i := range e {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, e[i].Error())
	}
	return sb.String()
}

// Is reports util.ErrConfigInvalid, so callers can classify validation
// failures like other configuration errors.
func (e ValidationErrors) Is(target error) bool {
	return target == util.ErrConfigInvalid
}

// HasErrors returns true if there are validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator validates configuration.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new configuration validator.
func NewValidator() *Validator {
	return &Validator{
		errors: make(ValidationErrors, 0),
	}
}

// ValidateConfig validates a configuration.
func ValidateConfig(cfg *Config) error {
	return NewValidator().Validate(cfg)
}

// Validate validates the configuration and returns every problem found.
func (v *Validator) Validate(cfg *Config) error {
	v.errors = make(ValidationErrors, 0)

	if cfg == nil {
		v.addError("", "configuration is nil")
		return v.errors
	}

	v.validateServer(&cfg.Server)
	v.validateLogging(&cfg.Logging)
	v.validateMetrics(&cfg.Metrics)
	v.validateTracing(&cfg.Tracing)
	v.validateHealth(&cfg.Health, &cfg.Metrics)
	v.validateStatic(cfg.Static)
	v.validateFilters(&cfg.Filters)
	v.validateRoutes(cfg.Routes)

	if v.errors.HasErrors() {
		return v.errors
	}
	return nil
}

func (v *Validator) validateServer(server *ServerConfig) {
	if err := util.ValidateNonNegativePort(server.Port); err != nil {
		v.addError("server.port", err.Error())
	}

	timeouts := map[string]Duration{
		"readTimeout":     server.ReadTimeout,
		"writeTimeout":    server.WriteTimeout,
		"idleTimeout":     server.IdleTimeout,
		"shutdownTimeout": server.ShutdownTimeout,
	}
	for name, d := range timeouts {
		if d < 0 {
			v.addError("server."+name, "must not be negative")
		}
	}
}

func (v *Validator) validateLogging(logging *LoggingConfig) {
	validLevels := map[string]bool{
		"": true, "debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[strings.ToLower(logging.Level)] {
		v.addError("logging.level", fmt.Sprintf("invalid log level: %s", logging.Level))
	}

	validFormats := map[string]bool{
		"": true, "json": true, "console": true,
	}
	if !validFormats[strings.ToLower(logging.Format)] {
		v.addError("logging.format", fmt.Sprintf("invalid log format: %s", logging.Format))
	}
}

func (v *Validator) validateMetrics(metrics *MetricsConfig) {
	if metrics.Enabled && !strings.HasPrefix(metrics.Path, "/") {
		v.addError("metrics.path", "must start with /")
	}
}

func (v *Validator) validateTracing(tracing *TracingConfig) {
	if err := util.ValidateRatio(tracing.SamplingRate); err != nil {
		v.addError("tracing.samplingRate", err.Error())
	}
}

func (v *Validator) validateHealth(health *HealthConfig, metrics *MetricsConfig) {
	if !health.Enabled {
		return
	}

	owned := make(map[string]string, 3)
	if metrics.Enabled {
		owned[metrics.Path] = "metrics.path"
	}

	probes := []struct {
		field string
		path  string
	}{
		{"health.livenessPath", health.LivenessPath},
		{"health.readinessPath", health.ReadinessPath},
	}
	for _, probe := range probes {
		if !strings.HasPrefix(probe.path, "/") {
			v.addError(probe.field, "must start with /")
			continue
		}
		if other, ok := owned[probe.path]; ok {
			v.addError(probe.field, fmt.Sprintf("conflicts with %s", other))
			continue
		}
		owned[probe.path] = probe.field
	}
}

func (v *Validator) validateStatic(static []StaticConfig) {
	for i := range static {
		if err := util.ValidateNonEmpty(static[i].Path, "path"); err != nil {
			v.addError(fmt.Sprintf("static[%d].path", i), err.Error())
		}
	}
}

func (v *Validator) validateFilters(filters *FiltersConfig) {
	if filters.CORS != nil {
		v.validateCORS(filters.CORS)
	}

	if filters.BasicAuth != nil {
		v.validateBasicAuth(filters.BasicAuth)
	}

	if filters.JWT != nil {
		v.validateJWT(filters.JWT)
	}

	if rl := filters.RateLimit; rl != nil {
		if rl.RequestsPerSecond <= 0 {
			v.addError("filters.rateLimit.requestsPerSecond", "must be positive")
		}
		if rl.Burst <= 0 {
			v.addError("filters.rateLimit.burst", "must be positive")
		}
		if rl.Redis != nil {
			v.validateRedis(rl.Redis)
		}
	}

	v.validateRules(filters.Rules)
}

func (v *Validator) validateRedis(redis *RedisConfig) {
	if redis.Address == "" {
		v.addError("filters.rateLimit.redis.address", "is required")
	}
	if redis.DB < 0 {
		v.addError("filters.rateLimit.redis.db", "must not be negative")
	}
	if redis.Window.Duration() < time.Millisecond {
		v.addError("filters.rateLimit.redis.window", "must be at least 1ms")
	}
	if redis.Timeout.Duration() <= 0 {
		v.addError("filters.rateLimit.redis.timeout", "must be positive")
	}
}

func (v *Validator) validateCORS(cors *CORSConfig) {
	if cors.MaxAge < 0 {
		v.addError("filters.cors.maxAge", "must not be negative")
	}
	for i, method := range cors.AllowMethods {
		if err := util.ValidateHTTPMethod(method); err != nil {
			v.addError(fmt.Sprintf("filters.cors.allowMethods[%d]", i), err.Error())
		}
	}
	for i, header := range cors.AllowHeaders {
		if err := util.ValidateHeaderName(header); err != nil {
			v.addError(fmt.Sprintf("filters.cors.allowHeaders[%d]", i), err.Error())
		}
	}
	for i, header := range cors.ExposeHeaders {
		if err := util.ValidateHeaderName(header); err != nil {
			v.addError(fmt.Sprintf("filters.cors.exposeHeaders[%d]", i), err.Error())
		}
	}
}

func (v *Validator) validateBasicAuth(auth *BasicAuthConfig) {
	if len(auth.Users) == 0 {
		v.addError("filters.basicAuth.users", "at least one user is required")
	}
	if auth.PathPrefix != "" && !strings.HasPrefix(auth.PathPrefix, "/") {
		v.addError("filters.basicAuth.pathPrefix", "must start with /")
	}

	names := make(map[string]bool, len(auth.Users))
	for i := range auth.Users {
		user := &auth.Users[i]
		path := fmt.Sprintf("filters.basicAuth.users[%d]", i)
		if user.Username == "" {
			v.addError(path+".username", "username is required")
		} else if names[user.Username] {
			v.addError(path+".username", fmt.Sprintf("duplicate username: %s", user.Username))
		}
		names[user.Username] = true
		if user.PasswordHash == "" {
			v.addError(path+".passwordHash", "passwordHash is required")
		}
	}
}

// minJWTSecretLength is the HS256 key size in bytes.
const minJWTSecretLength = 32

func (v *Validator) validateJWT(jwt *JWTConfig) {
	switch {
	case jwt.Secret == "" && jwt.JWKSFile == "":
		v.addError("filters.jwt", "secret or jwksFile is required")
	case jwt.Secret != "" && jwt.JWKSFile != "":
		v.addError("filters.jwt", "secret and jwksFile are mutually exclusive")
	case jwt.Secret != "" && len(jwt.Secret) < minJWTSecretLength:
		v.addError("filters.jwt.secret", fmt.Sprintf("must be at least %d bytes", minJWTSecretLength))
	}
	if jwt.PathPrefix != "" && !strings.HasPrefix(jwt.PathPrefix, "/") {
		v.addError("filters.jwt.pathPrefix", "must start with /")
	}
	if jwt.ClockSkew < 0 {
		v.addError("filters.jwt.clockSkew", "must not be negative")
	}
}

func (v *Validator) validateRules(rules []RuleConfig) {
	names := make(map[string]bool, len(rules))
	for i := range rules {
		rule := &rules[i]
		path := fmt.Sprintf("filters.rules[%d]", i)

		if rule.Name == "" {
			v.addError(path+".name", "name is required")
		} else if names[rule.Name] {
			v.addError(path+".name", fmt.Sprintf("duplicate rule name: %s", rule.Name))
		}
		names[rule.Name] = true

		if strings.TrimSpace(rule.Expression) == "" {
			v.addError(path+".expression", "expression is required")
		}
		if rule.Status != 0 {
			if err := util.ValidateHTTPStatusCode(rule.Status); err != nil {
				v.addError(path+".status", err.Error())
			}
		}
	}
}

func (v *Validator) validateRoutes(routes []RouteConfig) {
	seen := make(map[string]bool, len(routes))
	for i := range routes {
		route := &routes[i]
		path := fmt.Sprintf("routes[%d]", i)

		method := strings.ToUpper(route.Method)
		if method != http.MethodGet && method != http.MethodPost {
			v.addError(path+".method", fmt.Sprintf("unsupported method: %s", route.Method))
		}

		if !strings.HasPrefix(route.Path, "/") {
			v.addError(path+".path", "must start with /")
			continue
		}

		key := method + " " + route.Path
		if seen[key] {
			v.addError(path, fmt.Sprintf("duplicate route: %s", key))
		}
		seen[key] = true

		v.validateRouteParams(route, path)
	}
}

// validateRouteParams checks the arity and that body placeholders name
// pattern parameters.
func (v *Validator) validateRouteParams(route *RouteConfig, path string) {
	pattern := uri.Compile(route.Path)
	if pattern.ParamsCount() > router.MaxArity {
		v.addError(path+".path",
			fmt.Sprintf("at most %d parameters are supported, got %d", router.MaxArity, pattern.ParamsCount()))
		return
	}

	params := make(map[string]bool, pattern.ParamsCount())
	for _, name := range pattern.ParamNames() {
		if name == "" {
			v.addError(path+".path", "parameter name is required")
		} else if params[name] {
			v.addError(path+".path", fmt.Sprintf("duplicate parameter: %s", name))
		}
		params[name] = true
	}

	for _, m := range placeholderPattern.FindAllStringSubmatch(route.Body, -1) {
		if !params[m[1]] {
			v.addError(path+".body", fmt.Sprintf("unknown parameter: %s", m[1]))
		}
	}
}

// addError adds a validation error.
func (v *Validator) addError(path, message string) {
	v.errors = append(v.errors, ValidationError{Path: path, Message: message})
}
