package filter

import (
	"net/http"
	"net/http/httptest"
)

type recordingExchange struct {
	request *http.Request
	header  http.Header
	status  int
	body    any
	writes  int
}

func newExchange(method, target string) *recordingExchange {
	req := httptest.NewRequest(method, target, nil)
	req.RemoteAddr = "192.0.2.10:1234"
	return &recordingExchange{request: req, header: http.Header{}}
}

func (e *recordingExchange) Method() string         { return e.request.Method }
func (e *recordingExchange) Request() *http.Request { return e.request }
func (e *recordingExchange) Header() http.Header    { return e.header }

func (e *recordingExchange) Write(status int, body any) error {
	e.writes++
	e.status = status
	e.body = body
	return nil
}
