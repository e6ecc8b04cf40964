package router

import (
	"io"
	"net/http"
	"net/http/httptest"
)

// recordingExchange captures what handlers write.
type recordingExchange struct {
	method   string
	request  *http.Request
	header   http.Header
	status   int
	body     any
	content  string
	readErr  error
	writes   int
	writeErr error
}

func newExchange(method string) *recordingExchange {
	return &recordingExchange{
		method:  method,
		request: httptest.NewRequest(method, "/", nil),
		header:  http.Header{},
	}
}

func (e *recordingExchange) Method() string         { return e.method }
func (e *recordingExchange) Request() *http.Request { return e.request }
func (e *recordingExchange) Header() http.Header    { return e.header }

func (e *recordingExchange) Write(status int, body any) error {
	e.writes++
	e.status = status
	e.body = body
	if file, ok := body.(*StaticFile); ok {
		var data []byte
		data, e.readErr = io.ReadAll(file.Content)
		e.content = string(data)
	}
	return e.writeErr
}

// staticFile returns the written static file and the content read while
// Write was running.
func (e *recordingExchange) staticFile() (*StaticFile, string) {
	file, ok := e.body.(*StaticFile)
	if !ok || e.readErr != nil {
		return file, ""
	}
	return file, e.content
}
