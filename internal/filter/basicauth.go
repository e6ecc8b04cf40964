package filter

import (
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/vyrodovalexey/avaroute/internal/observability"
	"github.com/vyrodovalexey/avaroute/internal/router"
	"github.com/vyrodovalexey/avaroute/internal/util"
)

// DefaultRealm is used when no realm is configured.
const DefaultRealm = "avaroute"

// Credentials is a user allowed through BasicAuth.
type Credentials struct {
	Username string
	// PasswordHash is a bcrypt hash of the password.
	PasswordHash string
}

// BasicAuth challenges requests under a path prefix that carry no valid
// HTTP basic credentials. Authenticated requests fall through.
type BasicAuth struct {
	base

	realm     string
	challenge string
	prefix    string
	users     map[string][]byte
}

// NewBasicAuth creates a basic auth filter protecting every URI under
// pathPrefix. An empty prefix or "/" protects everything.
func NewBasicAuth(realm, pathPrefix string, users []Credentials, opts ...Option) (*BasicAuth, error) {
	if realm == "" {
		realm = DefaultRealm
	}

	a := &BasicAuth{
		base:      newBase(opts),
		realm:     realm,
		challenge: fmt.Sprintf("Basic realm=%q, charset=\"UTF-8\"", realm),
		prefix:    strings.TrimSuffix(pathPrefix, "/"),
		users:     make(map[string][]byte, len(users)),
	}

	for i, user := range users {
		field := fmt.Sprintf("users[%d]", i)
		if user.Username == "" {
			return nil, util.NewConfigError(field, "username is required")
		}
		if _, err := bcrypt.Cost([]byte(user.PasswordHash)); err != nil {
			return nil, util.NewConfigErrorWithCause(field, "invalid bcrypt password hash", err)
		}
		a.users[user.Username] = []byte(user.PasswordHash)
	}

	return a, nil
}

// Apply implements router.Filter.
func (a *BasicAuth) Apply(uri string, ex router.Exchange) (router.Match, error) {
	if !a.protects(uri) {
		return router.WrongURL, nil
	}

	req := ex.Request()
	if req != nil {
		if username, password, ok := req.BasicAuth(); ok && a.verify(username, password) {
			return router.WrongURL, nil
		}
	}

	a.logger.Debug("rejected unauthenticated request",
		observability.String("path", uri),
		observability.String("client_ip", clientIP(ex)),
	)

	ex.Header().Set(HeaderWWWAuthenticate, a.challenge)
	return a.reject(nameBasicAuth, "unauthorized", ex, http.StatusUnauthorized, "unauthorized")
}

// protects reports whether uri lies under the prefix.
func (a *BasicAuth) protects(uri string) bool {
	return underPrefix(a.prefix, uri)
}

func (a *BasicAuth) verify(username, password string) bool {
	hash, ok := a.users[username]
	if !ok {
		return false
	}
	return bcrypt.CompareHashAndPassword(hash, []byte(password)) == nil
}

// String describes the filter for route listings.
func (a *BasicAuth) String() string {
	return nameBasicAuth + " " + displayPrefix(a.prefix)
}
