package filter

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/vyrodovalexey/avaroute/internal/observability"
	"github.com/vyrodovalexey/avaroute/internal/router"
	"github.com/vyrodovalexey/avaroute/internal/util"
)

// DefaultClockSkew is the leeway applied to exp, nbf and iat claims.
const DefaultClockSkew = 30 * time.Second

const bearerPrefix = "bearer "

// Sentinel errors for bearer token checks.
var (
	// ErrMissingToken is reported for requests without a bearer token.
	ErrMissingToken = errors.New("missing bearer token")
)

// JWTConfig configures JWTAuth. Exactly one of Secret and KeySet must be
// set.
type JWTConfig struct {
	Realm      string
	PathPrefix string
	Issuer     string
	Audience   string

	// Secret verifies HS256 signatures.
	Secret []byte

	// KeySet verifies signatures with the key named by the token's kid.
	KeySet jwk.Set

	ClockSkew time.Duration
}

// JWTAuth rejects requests under a path prefix without a valid bearer
// token. Requests with a valid token fall through.
type JWTAuth struct {
	base

	prefix    string
	realm     string
	parseOpts []jwt.ParseOption
}

// NewJWTAuth creates a bearer token filter.
func NewJWTAuth(cfg JWTConfig, opts ...Option) (*JWTAuth, error) {
	if cfg.Realm == "" {
		cfg.Realm = DefaultRealm
	}
	if cfg.ClockSkew == 0 {
		cfg.ClockSkew = DefaultClockSkew
	}

	parseOpts := []jwt.ParseOption{
		jwt.WithValidate(true),
		jwt.WithAcceptableSkew(cfg.ClockSkew),
	}

	switch {
	case len(cfg.Secret) > 0 && cfg.KeySet != nil:
		return nil, util.NewConfigError("jwt", "secret and key set are mutually exclusive")
	case len(cfg.Secret) > 0:
		parseOpts = append(parseOpts, jwt.WithKey(jwa.HS256, cfg.Secret))
	case cfg.KeySet != nil:
		if cfg.KeySet.Len() == 0 {
			return nil, util.NewConfigError("jwt.keySet", "key set is empty")
		}
		parseOpts = append(parseOpts, jwt.WithKeySet(cfg.KeySet))
	default:
		return nil, util.NewConfigError("jwt", "a secret or a key set is required")
	}

	if cfg.Issuer != "" {
		parseOpts = append(parseOpts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		parseOpts = append(parseOpts, jwt.WithAudience(cfg.Audience))
	}

	return &JWTAuth{
		base:      newBase(opts),
		prefix:    strings.TrimSuffix(cfg.PathPrefix, "/"),
		realm:     cfg.Realm,
		parseOpts: parseOpts,
	}, nil
}

// LoadKeySet reads a JWKS document from path.
func LoadKeySet(path string) (jwk.Set, error) {
	set, err := jwk.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading key set %s: %w", path, err)
	}
	return set, nil
}

// Apply implements router.Filter.
func (a *JWTAuth) Apply(uri string, ex router.Exchange) (router.Match, error) {
	if !underPrefix(a.prefix, uri) {
		return router.WrongURL, nil
	}

	token, err := a.verify(requestHeader(ex, "Authorization"))
	if err == nil {
		a.logger.Debug("authenticated bearer token",
			observability.String("path", uri),
			observability.String("subject", token.Subject()),
		)
		return router.WrongURL, nil
	}

	a.logger.Debug("rejected bearer token",
		observability.String("path", uri),
		observability.String("client_ip", clientIP(ex)),
		observability.Error(err),
	)

	challenge := fmt.Sprintf("Bearer realm=%q", a.realm)
	reason := "missing_token"
	if !errors.Is(err, ErrMissingToken) {
		challenge += `, error="invalid_token"`
		reason = "invalid_token"
	}

	ex.Header().Set(HeaderWWWAuthenticate, challenge)
	return a.reject(nameJWTAuth, reason, ex, http.StatusUnauthorized, "unauthorized")
}

// verify parses and validates the token carried by an Authorization header.
func (a *JWTAuth) verify(authorization string) (jwt.Token, error) {
	if len(authorization) <= len(bearerPrefix) ||
		!strings.EqualFold(authorization[:len(bearerPrefix)], bearerPrefix) {
		return nil, ErrMissingToken
	}

	raw := strings.TrimSpace(authorization[len(bearerPrefix):])
	if raw == "" {
		return nil, ErrMissingToken
	}

	return jwt.Parse([]byte(raw), a.parseOpts...)
}

// String describes the filter for route listings.
func (a *JWTAuth) String() string {
	return nameJWTAuth + " " + displayPrefix(a.prefix)
}
