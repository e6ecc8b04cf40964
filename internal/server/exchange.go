package server

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vyrodovalexey/avaroute/internal/router"
)

// Content types used when the handler did not set one.
const (
	contentTypeHTML   = "text/html; charset=utf-8"
	contentTypeBinary = "application/octet-stream"
)

// ginExchange adapts a gin context to router.Exchange.
type ginExchange struct {
	c *gin.Context
}

var _ router.Exchange = (*ginExchange)(nil)

func newExchange(c *gin.Context) *ginExchange {
	return &ginExchange{c: c}
}

// Method implements router.Exchange.
func (e *ginExchange) Method() string {
	return e.c.Request.Method
}

// Request implements router.Exchange.
func (e *ginExchange) Request() *http.Request {
	return e.c.Request
}

// Header implements router.Exchange.
func (e *ginExchange) Header() http.Header {
	return e.c.Writer.Header()
}

// Write implements router.Exchange.
func (e *ginExchange) Write(status int, body any) error {
	errCount := len(e.c.Errors)

	switch v := body.(type) {
	case nil:
		e.c.Status(status)
		e.c.Writer.WriteHeaderNow()
	case string:
		e.c.Data(status, e.contentType(contentTypeHTML), []byte(v))
	case []byte:
		e.c.Data(status, e.contentType(contentTypeBinary), v)
	case *router.StaticFile:
		http.ServeContent(e.c.Writer, e.c.Request, v.Name, v.ModTime, v.Content)
	case io.Reader:
		e.c.DataFromReader(status, -1, e.contentType(contentTypeBinary), v, nil)
	default:
		e.c.JSON(status, v)
	}

	// gin records render failures on the context instead of returning them.
	if len(e.c.Errors) > errCount {
		return e.c.Errors.Last().Err
	}
	return nil
}

// contentType returns the content type already set on the response, or
// fallback.
func (e *ginExchange) contentType(fallback string) string {
	if ct := e.c.Writer.Header().Get("Content-Type"); ct != "" {
		return ct
	}
	return fallback
}
