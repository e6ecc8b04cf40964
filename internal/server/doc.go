// Package server hosts a router.Router behind a gin engine.
//
// Every request that does not hit an endpoint owned by the server itself
// (the metrics endpoint and the health probes) is handed to the current
// router. Dispatch outcomes are translated to HTTP: WrongURL becomes 404 and
// WrongMethod becomes 405. A handler error wrapping util.ErrNotFound,
// util.ErrMethodNotAllowed or util.ErrInvalidInput becomes 404, 405 or 400
// with the error text; any other dispatch error becomes 500. Nothing is
// written when the handler already produced a response.
//
// The router can be replaced at any time with SetRouter; requests already in
// flight finish on the router they started with.
package server
