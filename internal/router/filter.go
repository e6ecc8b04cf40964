package router

import (
	"context"
	"io"
	"net/http"
	"time"
)

// Exchange is the per-request context handed to filters and routes.
// The host HTTP server provides the implementation.
type Exchange interface {
	// Method returns the request method.
	Method() string

	// Request returns the underlying request.
	Request() *http.Request

	// Header returns the response headers to be sent with Write.
	Header() http.Header

	// Write sends status and body as the response. Body is nil, a string,
	// a []byte, an io.Reader, a *StaticFile or any value the host knows how
	// to render. Readers, including StaticFile.Content, are only valid
	// until Write returns.
	Write(status int, body any) error
}

// StaticFile is a resource resolved by a static root. The static route
// closes Content once Exchange.Write returns.
type StaticFile struct {
	Name    string
	ModTime time.Time
	Content io.ReadSeeker
}

// Filter is the single capability every dispatchable unit implements.
//
// Apply attempts to handle the request for uri. Side effects such as writing
// a response happen only when the returned outcome is Success. A non-nil
// error reports an I/O or handler failure and stops dispatch.
type Filter interface {
	Apply(uri string, ex Exchange) (Match, error)
}

// FilterFunc adapts a function to the Filter interface.
type FilterFunc func(uri string, ex Exchange) (Match, error)

// Apply calls f(uri, ex).
func (f FilterFunc) Apply(uri string, ex Exchange) (Match, error) {
	return f(uri, ex)
}

// requestContext returns the context of the exchange's request.
func requestContext(ex Exchange) context.Context {
	if req := ex.Request(); req != nil {
		return req.Context()
	}
	return context.Background()
}
