package config

import "time"

// Default configuration values.
const (
	DefaultAddress         = "0.0.0.0"
	DefaultPort            = 8080
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMetricsPath     = "/metrics"
	DefaultLivenessPath    = "/livez"
	DefaultReadinessPath   = "/readyz"
	DefaultNamespace       = "avaroute"
	DefaultServiceName     = "avaroute"
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "json"
	DefaultRedisPrefix     = "avaroute:ratelimit:"
	DefaultRedisWindow     = time.Second
	DefaultRedisTimeout    = 100 * time.Millisecond
)

// Config is the root configuration document.
type Config struct {
	Server  ServerConfig   `yaml:"server"`
	Logging LoggingConfig  `yaml:"logging"`
	Metrics MetricsConfig  `yaml:"metrics"`
	Tracing TracingConfig  `yaml:"tracing"`
	Health  HealthConfig   `yaml:"health"`
	Static  []StaticConfig `yaml:"static,omitempty"`
	Filters FiltersConfig  `yaml:"filters,omitempty"`
	Routes  []RouteConfig  `yaml:"routes,omitempty"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Address         string   `yaml:"address,omitempty"`
	Port            int      `yaml:"port,omitempty"`
	ReadTimeout     Duration `yaml:"readTimeout,omitempty"`
	WriteTimeout    Duration `yaml:"writeTimeout,omitempty"`
	IdleTimeout     Duration `yaml:"idleTimeout,omitempty"`
	ShutdownTimeout Duration `yaml:"shutdownTimeout,omitempty"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Path      string `yaml:"path,omitempty"`
	Namespace string `yaml:"namespace,omitempty"`
}

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Endpoint     string  `yaml:"endpoint,omitempty"`
	ServiceName  string  `yaml:"serviceName,omitempty"`
	SamplingRate float64 `yaml:"samplingRate,omitempty"`
}

// HealthConfig configures the liveness and readiness probes.
type HealthConfig struct {
	Enabled       bool   `yaml:"enabled"`
	LivenessPath  string `yaml:"livenessPath,omitempty"`
	ReadinessPath string `yaml:"readinessPath,omitempty"`
}

// StaticConfig is a directory served as static content.
type StaticConfig struct {
	Path string `yaml:"path"`
}

// FiltersConfig configures the filters run ahead of every route, in the
// order CORS, basic auth, JWT, rate limit, rules.
type FiltersConfig struct {
	CORS      *CORSConfig      `yaml:"cors,omitempty"`
	BasicAuth *BasicAuthConfig `yaml:"basicAuth,omitempty"`
	JWT       *JWTConfig       `yaml:"jwt,omitempty"`
	RateLimit *RateLimitConfig `yaml:"rateLimit,omitempty"`
	Rules     []RuleConfig     `yaml:"rules,omitempty"`
}

// CORSConfig configures preflight handling.
type CORSConfig struct {
	AllowOrigins     []string `yaml:"allowOrigins,omitempty"`
	AllowMethods     []string `yaml:"allowMethods,omitempty"`
	AllowHeaders     []string `yaml:"allowHeaders,omitempty"`
	ExposeHeaders    []string `yaml:"exposeHeaders,omitempty"`
	AllowCredentials bool     `yaml:"allowCredentials,omitempty"`
	MaxAge           int      `yaml:"maxAge,omitempty"`
}

// BasicAuthConfig configures HTTP basic authentication.
type BasicAuthConfig struct {
	Realm      string       `yaml:"realm,omitempty"`
	PathPrefix string       `yaml:"pathPrefix,omitempty"`
	Users      []UserConfig `yaml:"users"`
}

// UserConfig is a basic auth user. PasswordHash is a bcrypt hash.
type UserConfig struct {
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"passwordHash"`
}

// JWTConfig configures bearer token authentication. Tokens are verified
// with either an HS256 secret or the keys of a JWKS file.
type JWTConfig struct {
	Realm      string   `yaml:"realm,omitempty"`
	PathPrefix string   `yaml:"pathPrefix,omitempty"`
	Issuer     string   `yaml:"issuer,omitempty"`
	Audience   string   `yaml:"audience,omitempty"`
	Secret     string   `yaml:"secret,omitempty"`
	JWKSFile   string   `yaml:"jwksFile,omitempty"`
	ClockSkew  Duration `yaml:"clockSkew,omitempty"`
}

// RateLimitConfig configures the token bucket. With Redis set, the budget
// is counted in Redis and shared between instances.
type RateLimitConfig struct {
	RequestsPerSecond float64      `yaml:"requestsPerSecond"`
	Burst             int          `yaml:"burst"`
	PerClient         bool         `yaml:"perClient,omitempty"`
	Redis             *RedisConfig `yaml:"redis,omitempty"`
}

// RedisConfig is the connection to the shared rate limit store.
type RedisConfig struct {
	Address  string   `yaml:"address"`
	Password string   `yaml:"password,omitempty"`
	DB       int      `yaml:"db,omitempty"`
	Prefix   string   `yaml:"prefix,omitempty"`
	Window   Duration `yaml:"window,omitempty"`
	Timeout  Duration `yaml:"timeout,omitempty"`
}

// RuleConfig is a CEL expression rejecting the requests it matches.
type RuleConfig struct {
	Name       string `yaml:"name"`
	Expression string `yaml:"expression"`
	Status     int    `yaml:"status,omitempty"`
	Message    string `yaml:"message,omitempty"`
}

// RouteConfig is an inline route answering with a text body. Path uses
// ":name" parameters; "{name}" in Body is replaced by the bound value.
type RouteConfig struct {
	Method string `yaml:"method"`
	Path   string `yaml:"path"`
	Body   string `yaml:"body"`
}

// DefaultConfig returns a configuration with every default applied.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills unset fields with their defaults.
func (c *Config) ApplyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = DefaultAddress
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = Duration(DefaultReadTimeout)
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = Duration(DefaultWriteTimeout)
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = Duration(DefaultIdleTimeout)
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = Duration(DefaultShutdownTimeout)
	}

	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}

	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = DefaultNamespace
	}

	if c.Health.LivenessPath == "" {
		c.Health.LivenessPath = DefaultLivenessPath
	}
	if c.Health.ReadinessPath == "" {
		c.Health.ReadinessPath = DefaultReadinessPath
	}

	if rl := c.Filters.RateLimit; rl != nil && rl.Redis != nil {
		if rl.Redis.Prefix == "" {
			rl.Redis.Prefix = DefaultRedisPrefix
		}
		if rl.Redis.Window == 0 {
			rl.Redis.Window = Duration(DefaultRedisWindow)
		}
		if rl.Redis.Timeout == 0 {
			rl.Redis.Timeout = Duration(DefaultRedisTimeout)
		}
	}

	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = DefaultServiceName
	}
	if c.Tracing.SamplingRate == 0 {
		c.Tracing.SamplingRate = 1.0
	}
}
