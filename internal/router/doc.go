// Package router implements the Message Router component.
//
// The router maps a batch message's method tag to a typed decoder and
// produces a domain event. Unknown tags pass through as event.Unknown; a
// recognized method whose payload fails to parse yields event.RouteError.
// Routing never returns an error, so one bad message cannot terminate the
// batch processing loop.
package router
