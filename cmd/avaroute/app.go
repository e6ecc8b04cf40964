package main

import (
	"fmt"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/vyrodovalexey/avaroute/internal/config"
	"github.com/vyrodovalexey/avaroute/internal/filter"
	"github.com/vyrodovalexey/avaroute/internal/health"
	"github.com/vyrodovalexey/avaroute/internal/observability"
	"github.com/vyrodovalexey/avaroute/internal/router"
	"github.com/vyrodovalexey/avaroute/internal/server"
	"github.com/vyrodovalexey/avaroute/internal/uri"
)

// application holds all application components.
type application struct {
	config  *config.Config
	logger  observability.Logger
	metrics *observability.Metrics
	tracer  *observability.Tracer
	server  *server.Server
	redis   *redis.Client
	deps    routerDeps

	// rateLimit belongs to the router currently served and is stopped
	// when that router is replaced.
	rateLimit *filter.RateLimit
	mu        sync.Mutex
}

// routerDeps are shared by every router built during the process lifetime.
type routerDeps struct {
	logger        observability.Logger
	routerMetrics *router.Metrics
	filterMetrics *filter.Metrics
	tracer        *observability.Tracer

	// rateLimitStore is set when the rate limit is counted in Redis.
	rateLimitStore *filter.RedisStore
}

// newApplication initializes all application components.
func newApplication(cfg *config.Config, logger observability.Logger) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
	}

	if cfg.Metrics.Enabled {
		app.metrics = observability.NewMetrics(cfg.Metrics.Namespace)
		app.metrics.SetBuildInfo(version, gitCommit, buildTime)
	}

	tracer, err := observability.NewTracer(observability.TracerConfig{
		ServiceName:  cfg.Tracing.ServiceName,
		OTLPEndpoint: cfg.Tracing.Endpoint,
		SamplingRate: cfg.Tracing.SamplingRate,
		Enabled:      cfg.Tracing.Enabled,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}
	app.tracer = tracer

	app.deps = routerDeps{
		logger: logger,
		tracer: tracer,
	}
	if app.metrics != nil {
		app.deps.routerMetrics = router.NewMetrics(app.metrics.Namespace(), app.metrics.Registry())
		app.deps.filterMetrics = filter.NewMetrics(app.metrics.Namespace(), app.metrics.Registry())
	}

	if redisCfg := redisSettings(cfg); redisCfg.Address != "" {
		app.redis = newRedisClient(redisCfg)
		app.deps.rateLimitStore = filter.NewRedisStore(app.redis, filter.RedisStoreConfig{
			Prefix:  redisCfg.Prefix,
			Window:  redisCfg.Window.Duration(),
			Timeout: redisCfg.Timeout.Duration(),
			Logger:  logger,
		})
	}

	r, rateLimit, err := buildRouter(cfg, app.deps)
	if err != nil {
		app.closeRedis()
		return nil, err
	}
	app.rateLimit = rateLimit

	opts := []server.Option{
		server.WithLogger(logger),
		server.WithTracer(tracer.Tracer()),
	}
	if app.metrics != nil {
		opts = append(opts, server.WithMetrics(app.metrics))
	}
	if cfg.Health.Enabled {
		opts = append(opts, server.WithHealth(app.newHealthHandler()))
	}

	srv, err := server.New(serverConfig(cfg), r, opts...)
	if err != nil {
		if rateLimit != nil {
			rateLimit.Stop()
		}
		app.closeRedis()
		return nil, fmt.Errorf("failed to create server: %w", err)
	}
	app.server = srv

	return app, nil
}

// newHealthHandler creates the probes. Readiness requires the router
// currently served to have registrations.
func (app *application) newHealthHandler() *health.Handler {
	opts := []health.Option{health.WithLogger(app.logger)}
	if app.metrics != nil {
		opts = append(opts, health.WithMetrics(health.NewMetrics(app.metrics.Namespace(), app.metrics.Registry())))
	}

	h := health.NewHandler(opts...)
	h.AddCheck(health.RouterCheck(func() *router.Router {
		return app.server.Router()
	}))
	if app.redis != nil {
		h.AddOptionalCheck(health.RedisCheck("redis", app.redis))
	}
	return h
}

// redisSettings returns the rate limit store settings, zero without one.
func redisSettings(cfg *config.Config) config.RedisConfig {
	if cfg.Filters.RateLimit == nil || cfg.Filters.RateLimit.Redis == nil {
		return config.RedisConfig{}
	}
	return *cfg.Filters.RateLimit.Redis
}

// newRedisClient connects to the rate limit store. Retries are left to the
// local fallback.
func newRedisClient(cfg config.RedisConfig) *redis.Client {
	timeout := cfg.Timeout.Duration()
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  timeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
		MaxRetries:   -1,
	})
}

// closeRedis closes the rate limit store connection, if any.
func (app *application) closeRedis() {
	if app.redis == nil {
		return
	}
	if err := app.redis.Close(); err != nil {
		app.logger.Error("failed to close redis client", observability.Error(err))
	}
}

// serverConfig maps the configuration onto the server settings.
func serverConfig(cfg *config.Config) server.Config {
	srvCfg := server.Config{
		Address:         cfg.Server.Address,
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout.Duration(),
		WriteTimeout:    cfg.Server.WriteTimeout.Duration(),
		IdleTimeout:     cfg.Server.IdleTimeout.Duration(),
		ShutdownTimeout: cfg.Server.ShutdownTimeout.Duration(),
	}
	if cfg.Metrics.Enabled {
		srvCfg.MetricsPath = cfg.Metrics.Path
	}
	if cfg.Health.Enabled {
		srvCfg.LivenessPath = cfg.Health.LivenessPath
		srvCfg.ReadinessPath = cfg.Health.ReadinessPath
	}
	return srvCfg
}

// buildRouter creates a router populated from cfg. The returned rate limit,
// if any, must be stopped once the router is no longer served.
func buildRouter(cfg *config.Config, deps routerDeps) (*router.Router, *filter.RateLimit, error) {
	opts := []router.Option{
		router.WithLogger(deps.logger),
		router.WithMetrics(deps.routerMetrics),
	}
	if deps.tracer != nil {
		opts = append(opts, router.WithTracer(deps.tracer.Tracer()))
	}
	r := router.New(opts...)

	var rateLimit *filter.RateLimit
	filterOpts := []filter.Option{
		filter.WithLogger(deps.logger),
		filter.WithMetrics(deps.filterMetrics),
	}

	err := r.Configure(
		filtersConfiguration(&cfg.Filters, filterOpts, deps.rateLimitStore, &rateLimit),
		routesConfiguration(cfg.Routes),
		staticConfiguration(cfg.Static),
	)
	if err != nil {
		if rateLimit != nil {
			rateLimit.Stop()
		}
		return nil, nil, fmt.Errorf("failed to build router: %w", err)
	}

	if rateLimit != nil {
		rateLimit.StartAutoCleanup()
	}

	return r, rateLimit, nil
}

// filtersConfiguration registers the filters in the order CORS, basic auth,
// JWT, rate limit, rules. The rate limit counts in store when one is configured.
func filtersConfiguration(
	cfg *config.FiltersConfig,
	opts []filter.Option,
	store *filter.RedisStore,
	rateLimit **filter.RateLimit,
) router.Configuration {
	return func(r *router.Router) error {
		if cfg.CORS != nil {
			r.Filter(filter.NewCORS(filter.CORSConfig{
				AllowOrigins:     cfg.CORS.AllowOrigins,
				AllowMethods:     cfg.CORS.AllowMethods,
				AllowHeaders:     cfg.CORS.AllowHeaders,
				ExposeHeaders:    cfg.CORS.ExposeHeaders,
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           cfg.CORS.MaxAge,
			}, opts...))
		}

		if cfg.BasicAuth != nil {
			users := make([]filter.Credentials, 0, len(cfg.BasicAuth.Users))
			for _, u := range cfg.BasicAuth.Users {
				users = append(users, filter.Credentials{Username: u.Username, PasswordHash: u.PasswordHash})
			}

			auth, err := filter.NewBasicAuth(cfg.BasicAuth.Realm, cfg.BasicAuth.PathPrefix, users, opts...)
			if err != nil {
				return fmt.Errorf("filters.basicAuth: %w", err)
			}
			r.Filter(auth)
		}

		if cfg.JWT != nil {
			auth, err := jwtAuth(cfg.JWT, opts)
			if err != nil {
				return fmt.Errorf("filters.jwt: %w", err)
			}
			r.Filter(auth)
		}

		if rl := cfg.RateLimit; rl != nil {
			if store != nil && rl.Redis != nil {
				*rateLimit = filter.NewRedisRateLimit(store, rl.RequestsPerSecond, rl.Burst, rl.PerClient, opts...)
			} else {
				*rateLimit = filter.NewRateLimit(rl.RequestsPerSecond, rl.Burst, rl.PerClient, opts...)
			}
			r.Filter(*rateLimit)
		}

		if len(cfg.Rules) > 0 {
			rules := make([]filter.Rule, 0, len(cfg.Rules))
			for _, rc := range cfg.Rules {
				rules = append(rules, filter.Rule{
					Name:       rc.Name,
					Expression: rc.Expression,
					Status:     rc.Status,
					Message:    rc.Message,
				})
			}

			compiled, err := filter.NewRules(rules, opts...)
			if err != nil {
				return fmt.Errorf("filters.rules: %w", err)
			}
			r.Filter(compiled)
		}

		return nil
	}
}

// jwtAuth creates the bearer token filter. The JWKS file is read on every
// build, so a reload picks up rotated keys.
func jwtAuth(cfg *config.JWTConfig, opts []filter.Option) (*filter.JWTAuth, error) {
	jwtCfg := filter.JWTConfig{
		Realm:      cfg.Realm,
		PathPrefix: cfg.PathPrefix,
		Issuer:     cfg.Issuer,
		Audience:   cfg.Audience,
		ClockSkew:  cfg.ClockSkew.Duration(),
	}

	if cfg.JWKSFile != "" {
		set, err := filter.LoadKeySet(cfg.JWKSFile)
		if err != nil {
			return nil, err
		}
		jwtCfg.KeySet = set
	} else {
		jwtCfg.Secret = []byte(cfg.Secret)
	}

	return filter.NewJWTAuth(jwtCfg, opts...)
}

// routesConfiguration registers the inline routes as a single resource, so
// that either all of them are registered or none.
func routesConfiguration(routes []config.RouteConfig) router.Configuration {
	return func(r *router.Router) error {
		declarations := make([]router.Declaration, 0, len(routes))
		for i, rc := range routes {
			route, err := inlineRoute(rc)
			if err != nil {
				return fmt.Errorf("routes[%d]: %w", i, err)
			}
			declarations = append(declarations, router.Declaration{
				Method:  strings.ToUpper(rc.Method),
				Pattern: rc.Path,
				Route:   route,
			})
		}

		return r.Add(router.ResourceFunc(func() []router.Declaration {
			return declarations
		}))
	}
}

// staticConfiguration registers the static roots in configuration order.
func staticConfiguration(static []config.StaticConfig) router.Configuration {
	return func(r *router.Router) error {
		for i, sc := range static {
			if err := r.StaticDir(sc.Path); err != nil {
				return fmt.Errorf("static[%d]: %w", i, err)
			}
		}
		return nil
	}
}

// inlineRoute builds a handler answering with body, where every "{name}"
// is replaced by the value bound to the ":name" parameter.
func inlineRoute(rc config.RouteConfig) (router.AnyRoute, error) {
	names := uri.Compile(rc.Path).ParamNames()

	render := func(values ...string) (any, error) {
		pairs := make([]string, 0, 2*len(names))
		for i, name := range names {
			pairs = append(pairs, "{"+name+"}", values[i])
		}
		return strings.NewReplacer(pairs...).Replace(rc.Body), nil
	}

	switch len(names) {
	case 0:
		return router.Route(func() (any, error) {
			return render()
		}), nil
	case 1:
		return router.OneParamRoute(func(p1 string) (any, error) {
			return render(p1)
		}), nil
	case 2:
		return router.TwoParamsRoute(func(p1, p2 string) (any, error) {
			return render(p1, p2)
		}), nil
	case 3:
		return router.ThreeParamsRoute(func(p1, p2, p3 string) (any, error) {
			return render(p1, p2, p3)
		}), nil
	case 4:
		return router.FourParamsRoute(func(p1, p2, p3, p4 string) (any, error) {
			return render(p1, p2, p3, p4)
		}), nil
	default:
		return nil, fmt.Errorf("%s binds %d parameters, at most %d are supported",
			rc.Path, len(names), router.MaxArity)
	}
}
