package router

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"sync"
	"testing"
	"testing/fstest"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/vyrodovalexey/avaroute/internal/observability"
	"github.com/vyrodovalexey/avaroute/internal/util"
)

func constant(body string) Route {
	return func() (any, error) { return body, nil }
}

// recordFilter appends name to calls and returns match.
func recordFilter(calls *[]string, name string, match Match) Filter {
	return FilterFunc(func(_ string, _ Exchange) (Match, error) {
		*calls = append(*calls, name)
		return match, nil
	})
}

func TestRouter_Dispatch_Empty(t *testing.T) {
	t.Parallel()

	r := New()
	ex := newExchange(http.MethodGet)

	match, err := r.Dispatch("/anything", ex)

	require.NoError(t, err)
	assert.Equal(t, WrongURL, match)
	assert.Zero(t, ex.writes)
}

func TestRouter_Get(t *testing.T) {
	t.Parallel()

	r := New()
	require.NoError(t, r.Get("/hello/:name", OneParamRoute(func(name string) (any, error) {
		return "hello " + name, nil
	})))

	ex := newExchange(http.MethodGet)
	match, err := r.Dispatch("/hello/bob", ex)

	require.NoError(t, err)
	assert.Equal(t, Success, match)
	assert.Equal(t, "hello bob", ex.body)
}

func TestRouter_Post(t *testing.T) {
	t.Parallel()

	r := New()
	require.NoError(t, r.Post("/items", constant("created")))

	ex := newExchange(http.MethodPost)
	match, err := r.Dispatch("/items", ex)
	require.NoError(t, err)
	assert.Equal(t, Success, match)
	assert.Equal(t, "created", ex.body)

	ex = newExchange(http.MethodGet)
	match, err = r.Dispatch("/items", ex)
	require.NoError(t, err)
	assert.Equal(t, WrongMethod, match)
	assert.Zero(t, ex.writes)
}

func TestRouter_FourParams(t *testing.T) {
	t.Parallel()

	r := New()
	require.NoError(t, r.Get("/:a/:b/:c/:d", FourParamsRoute(func(a, b, c, d string) (any, error) {
		return a + b + c + d, nil
	})))

	ex := newExchange(http.MethodGet)
	match, err := r.Dispatch("/1/2/3/4", ex)

	require.NoError(t, err)
	assert.Equal(t, Success, match)
	assert.Equal(t, "1234", ex.body)
}

func TestRouter_ArityMismatch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		pattern string
		route   AnyRoute
	}{
		{name: "too many parameters", pattern: "/hello/:name", route: constant("x")},
		{name: "too few parameters", pattern: "/hello", route: OneParamRoute(func(string) (any, error) { return nil, nil })},
		{name: "two for three", pattern: "/:a/:b", route: ThreeParamsRoute(func(_, _, _ string) (any, error) { return nil, nil })},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := New()
			err := r.Get(tt.pattern, tt.route)

			require.Error(t, err)
			assert.ErrorIs(t, err, ErrArityMismatch)
			assert.ErrorIs(t, err, util.ErrConfigInvalid)
			assert.Contains(t, err.Error(), tt.pattern)

			var cfgErr *util.ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.pattern, cfgErr.Field)
			assert.Zero(t, r.Len())
		})
	}
}

func TestRouter_NilHandler(t *testing.T) {
	t.Parallel()

	r := New()
	err := r.Get("/x", nil)

	assert.ErrorIs(t, err, ErrInvalidRoute)
	assert.Zero(t, r.Len())
}

func TestRouter_NewestRouteWins(t *testing.T) {
	t.Parallel()

	r := New()
	require.NoError(t, r.Get("/same", constant("first")))
	require.NoError(t, r.Get("/same", constant("second")))

	ex := newExchange(http.MethodGet)
	match, err := r.Dispatch("/same", ex)

	require.NoError(t, err)
	assert.Equal(t, Success, match)
	assert.Equal(t, "second", ex.body)
	assert.Equal(t, 1, ex.writes)
}

func TestRouter_WrongMethodIsRemembered(t *testing.T) {
	t.Parallel()

	r := New()
	require.NoError(t, r.Post("/form", constant("posted")))
	require.NoError(t, r.Get("/other", constant("other")))

	ex := newExchange(http.MethodGet)
	match, err := r.Dispatch("/form", ex)

	require.NoError(t, err)
	assert.Equal(t, WrongMethod, match)
	assert.Zero(t, ex.writes)
}

func TestRouter_CaseInsensitiveMethod(t *testing.T) {
	t.Parallel()

	r := New()
	require.NoError(t, r.Get("/ping", constant("pong")))

	match, err := r.Dispatch("/ping", newExchange("get"))

	require.NoError(t, err)
	assert.Equal(t, Success, match)
}

func TestRouter_FiltersRunFirstInOrder(t *testing.T) {
	t.Parallel()

	var calls []string

	r := New()
	require.NoError(t, r.Get("/x", Route(func() (any, error) {
		calls = append(calls, "route")
		return "x", nil
	})))
	r.Filter(recordFilter(&calls, "first", WrongURL))
	r.Filter(recordFilter(&calls, "second", WrongURL))

	match, err := r.Dispatch("/x", newExchange(http.MethodGet))

	require.NoError(t, err)
	assert.Equal(t, Success, match)
	assert.Equal(t, []string{"first", "second", "route"}, calls)
}

func TestRouter_FilterShortCircuits(t *testing.T) {
	t.Parallel()

	var calls []string

	r := New()
	r.Filter(recordFilter(&calls, "guard", Success))
	r.Filter(recordFilter(&calls, "after", WrongURL))
	require.NoError(t, r.Get("/x", Route(func() (any, error) {
		calls = append(calls, "route")
		return "x", nil
	})))

	match, err := r.Dispatch("/x", newExchange(http.MethodGet))

	require.NoError(t, err)
	assert.Equal(t, Success, match)
	assert.Equal(t, []string{"guard"}, calls)
}

func TestRouter_NilFilterIgnored(t *testing.T) {
	t.Parallel()

	r := New()
	r.Filter(nil)

	assert.Zero(t, r.Len())
}

func TestRouter_FilterError(t *testing.T) {
	t.Parallel()

	var calls []string
	boom := errors.New("boom")

	r := New()
	r.Filter(FilterFunc(func(_ string, _ Exchange) (Match, error) {
		return WrongURL, boom
	}))
	r.Filter(recordFilter(&calls, "after", WrongURL))

	match, err := r.Dispatch("/x", newExchange(http.MethodGet))

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, WrongURL, match)
	assert.Empty(t, calls)
}

func TestRouter_HandlerError(t *testing.T) {
	t.Parallel()

	boom := errors.New("handler failed")

	r := New()
	require.NoError(t, r.Get("/fail", Route(func() (any, error) { return nil, boom })))

	ex := newExchange(http.MethodGet)
	match, err := r.Dispatch("/fail", ex)

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, Success, match)
	assert.Zero(t, ex.writes)
}

func TestRouter_StaticBehindRoutes(t *testing.T) {
	t.Parallel()

	dir := newPublicRoot(t, map[string]string{"page.html": "static page"})

	r := New()
	require.NoError(t, r.StaticDir(dir))
	require.NoError(t, r.Get("/page", constant("dynamic page")))

	ex := newExchange(http.MethodGet)
	match, err := r.Dispatch("/page", ex)
	require.NoError(t, err)
	assert.Equal(t, Success, match)
	assert.Equal(t, "dynamic page", ex.body)

	ex = newExchange(http.MethodGet)
	match, err = r.Dispatch("/page.html", ex)
	require.NoError(t, err)
	assert.Equal(t, Success, match)
	_, content := ex.staticFile()
	assert.Equal(t, "static page", content)
}

func TestRouter_StaticRootsInRegistrationOrder(t *testing.T) {
	t.Parallel()

	first := newPublicRoot(t, map[string]string{"a.html": "first"})
	second := newPublicRoot(t, map[string]string{"a.html": "second"})

	r := New()
	require.NoError(t, r.StaticDir(first))
	require.NoError(t, r.StaticDir(second))

	ex := newExchange(http.MethodGet)
	match, err := r.Dispatch("/a", ex)

	require.NoError(t, err)
	assert.Equal(t, Success, match)
	_, content := ex.staticFile()
	assert.Equal(t, "first", content)
}

func TestRouter_StaticDir_Invalid(t *testing.T) {
	t.Parallel()

	r := New()
	err := r.StaticDir(filepath.Join(t.TempDir(), "missing"))

	assert.ErrorIs(t, err, ErrInvalidStaticRoot)
	assert.ErrorIs(t, err, util.ErrConfigInvalid)
	assert.Zero(t, r.Len())
}

func TestRouter_StaticFS(t *testing.T) {
	t.Parallel()

	r := New()
	require.NoError(t, r.StaticFS(fstest.MapFS{
		"web/index.html": {Data: []byte("bundled")},
	}, "web"))

	ex := newExchange(http.MethodGet)
	match, err := r.Dispatch("/", ex)

	require.NoError(t, err)
	assert.Equal(t, Success, match)
	_, content := ex.staticFile()
	assert.Equal(t, "bundled", content)

	match, err = r.Dispatch("/", newExchange(http.MethodPost))
	require.NoError(t, err)
	assert.Equal(t, WrongMethod, match)
}

func TestRouter_Reset(t *testing.T) {
	t.Parallel()

	r := New()
	r.Filter(recordFilter(new([]string), "f", Success))
	require.NoError(t, r.Get("/x", constant("x")))

	r.Reset()

	match, err := r.Dispatch("/x", newExchange(http.MethodGet))
	require.NoError(t, err)
	assert.Equal(t, WrongURL, match)
	assert.Zero(t, r.Len())
}

func TestRouter_Configure(t *testing.T) {
	t.Parallel()

	r := New()
	require.NoError(t, r.Get("/old", constant("old")))

	err := r.Configure(
		func(r *Router) error { return r.Get("/a", constant("a")) },
		func(r *Router) error { return r.Get("/b", constant("b")) },
	)
	require.NoError(t, err)

	match, err := r.Dispatch("/old", newExchange(http.MethodGet))
	require.NoError(t, err)
	assert.Equal(t, WrongURL, match)
	assert.Equal(t, 2, r.Len())
}

func TestRouter_Configure_StopsAtFirstError(t *testing.T) {
	t.Parallel()

	called := false
	r := New()

	err := r.Configure(
		func(r *Router) error { return r.Get("/a/:id", constant("a")) },
		func(_ *Router) error {
			called = true
			return nil
		},
	)

	assert.ErrorIs(t, err, ErrArityMismatch)
	assert.False(t, called)
}

type greeter struct{}

func (greeter) Routes() []Declaration {
	return []Declaration{
		GET("/hello/:name", OneParamRoute(func(name string) (any, error) { return "hello " + name, nil })),
		POST("/hello", constant("posted")),
	}
}

// spyGreeter wraps greeter and inherits its declarations.
type spyGreeter struct {
	greeter
	wrapped bool
}

func TestRouter_Add(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		resource Resource
	}{
		{name: "plain resource", resource: greeter{}},
		{name: "wrapped resource", resource: &spyGreeter{wrapped: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := New()
			require.NoError(t, r.Add(tt.resource))
			assert.Equal(t, 2, r.Len())

			ex := newExchange(http.MethodGet)
			match, err := r.Dispatch("/hello/ann", ex)
			require.NoError(t, err)
			assert.Equal(t, Success, match)
			assert.Equal(t, "hello ann", ex.body)

			ex = newExchange(http.MethodPost)
			match, err = r.Dispatch("/hello", ex)
			require.NoError(t, err)
			assert.Equal(t, Success, match)
			assert.Equal(t, "posted", ex.body)
		})
	}
}

func TestRouter_AddWithPrefix(t *testing.T) {
	t.Parallel()

	r := New()
	require.NoError(t, r.AddWithPrefix("/api", greeter{}))

	ex := newExchange(http.MethodGet)
	match, err := r.Dispatch("/api/hello/ann", ex)
	require.NoError(t, err)
	assert.Equal(t, Success, match)

	match, err = r.Dispatch("/hello/ann", newExchange(http.MethodGet))
	require.NoError(t, err)
	assert.Equal(t, WrongURL, match)
}

func TestRouter_Add_AllOrNothing(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		resource Resource
		wantErr  error
	}{
		{
			name: "arity mismatch",
			resource: ResourceFunc(func() []Declaration {
				return []Declaration{
					GET("/ok", constant("ok")),
					GET("/bad/:id", constant("bad")),
				}
			}),
			wantErr: ErrArityMismatch,
		},
		{
			name: "unsupported method",
			resource: ResourceFunc(func() []Declaration {
				return []Declaration{
					GET("/ok", constant("ok")),
					{Method: http.MethodDelete, Pattern: "/gone", Route: constant("gone")},
				}
			}),
			wantErr: ErrInvalidRoute,
		},
		{
			name:     "nil resource",
			resource: nil,
			wantErr:  ErrInvalidRoute,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := New()
			err := r.Add(tt.resource)

			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, util.ErrConfigInvalid)
			assert.Zero(t, r.Len())
		})
	}
}

func TestRouter_Add_LowercaseMethod(t *testing.T) {
	t.Parallel()

	r := New()
	require.NoError(t, r.Add(ResourceFunc(func() []Declaration {
		return []Declaration{{Method: "post", Pattern: "/p", Route: constant("p")}}
	})))

	match, err := r.Dispatch("/p", newExchange(http.MethodPost))
	require.NoError(t, err)
	assert.Equal(t, Success, match)
}

type namedFilter struct{}

func (namedFilter) Apply(_ string, _ Exchange) (Match, error) { return WrongURL, nil }
func (namedFilter) String() string                            { return "named" }

func TestRouter_Describe(t *testing.T) {
	t.Parallel()

	r := New()
	require.NoError(t, r.StaticFS(fstest.MapFS{}, "web"))
	require.NoError(t, r.Get("/a", constant("a")))
	require.NoError(t, r.Post("/b/:id", OneParamRoute(func(string) (any, error) { return nil, nil })))
	r.Filter(namedFilter{})
	r.Filter(FilterFunc(func(_ string, _ Exchange) (Match, error) { return WrongURL, nil }))

	infos := r.Describe()

	require.Len(t, infos, 5)
	assert.Equal(t, RouteInfo{Kind: KindFilter, Pattern: "named"}, infos[0])
	assert.Equal(t, RouteInfo{Kind: KindFilter, Pattern: "router.FilterFunc"}, infos[1])
	assert.Equal(t, RouteInfo{Kind: KindRoute, Method: http.MethodPost, Pattern: "/b/:id"}, infos[2])
	assert.Equal(t, RouteInfo{Kind: KindRoute, Method: http.MethodGet, Pattern: "/a"}, infos[3])
	assert.Equal(t, RouteInfo{Kind: KindStatic, Method: http.MethodGet, Pattern: "fs:web"}, infos[4])
}

func TestRouter_Metrics(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics("test", prometheus.NewRegistry())

	r := New(WithMetrics(metrics))
	r.Filter(recordFilter(new([]string), "f", WrongURL))
	require.NoError(t, r.Get("/ok", constant("ok")))
	require.NoError(t, r.Post("/form", constant("form")))
	require.NoError(t, r.Get("/fail", Route(func() (any, error) { return nil, errors.New("fail") })))

	_, _ = r.Dispatch("/ok", newExchange(http.MethodGet))
	_, _ = r.Dispatch("/form", newExchange(http.MethodGet))
	_, _ = r.Dispatch("/none", newExchange(http.MethodGet))
	_, _ = r.Dispatch("/fail", newExchange(http.MethodGet))

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.registrationsTotal.WithLabelValues(KindFilter)))
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.registrationsTotal.WithLabelValues(KindRoute)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.dispatchTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.dispatchTotal.WithLabelValues("wrong_method")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.dispatchTotal.WithLabelValues("wrong_url")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.dispatchErrors))
}

func TestRouter_SharedMetricsAcrossRouters(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics("test", prometheus.NewRegistry())

	assert.NotPanics(t, func() {
		_ = New(WithMetrics(metrics))
		_ = New(WithMetrics(metrics))
	})
}

func TestRouter_Tracing(t *testing.T) {
	t.Parallel()

	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	r := New(WithTracer(provider.Tracer("test")))
	require.NoError(t, r.Get("/ok", constant("ok")))
	require.NoError(t, r.Get("/fail", Route(func() (any, error) { return nil, errors.New("fail") })))

	_, _ = r.Dispatch("/ok", newExchange(http.MethodGet))
	_, _ = r.Dispatch("/fail", newExchange(http.MethodGet))

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)

	assert.Equal(t, "router.Dispatch", spans[0].Name)
	assert.Contains(t, spans[0].Attributes, attribute.String("router.outcome", "success"))
	assert.Contains(t, spans[0].Attributes, attribute.String("url.path", "/ok"))

	assert.Equal(t, codes.Error, spans[1].Status.Code)
	assert.Equal(t, "fail", spans[1].Status.Description)
}

func TestRouter_LogsErrors(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	r := New(WithLogger(observability.NewZapLogger(zap.New(core))))

	require.NoError(t, r.Get("/fail", Route(func() (any, error) { return nil, errors.New("fail") })))
	_, _ = r.Dispatch("/fail", newExchange(http.MethodGet))

	assert.Equal(t, 1, logs.FilterMessage("registered route").Len())

	failures := logs.FilterMessage("dispatch failed").AllUntimed()
	require.Len(t, failures, 1)
	assert.Equal(t, "/fail", failures[0].ContextMap()["path"])
	assert.Equal(t, "GET /fail", failures[0].ContextMap()["handler"])
}

func TestRouter_ConcurrentRegistrationAndDispatch(t *testing.T) {
	t.Parallel()

	r := New()
	require.NoError(t, r.Get("/stable", constant("stable")))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = r.Get("/dynamic", constant("dynamic"))
				r.Filter(FilterFunc(func(_ string, _ Exchange) (Match, error) { return WrongURL, nil }))
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				match, err := r.Dispatch("/stable", newExchange(http.MethodGet))
				assert.NoError(t, err)
				assert.Equal(t, Success, match)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1+8*50*2, r.Len())
}

func TestRequestContext_NilRequest(t *testing.T) {
	t.Parallel()

	ex := newExchange(http.MethodGet)
	ex.request = nil

	assert.NotNil(t, requestContext(ex))
}
