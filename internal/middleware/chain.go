package middleware

import "net/http"

// Chain applies middleware in the order given: the first one listed is the
// outermost and sees the request first.
//
// Example:
//
//	handler := Chain(mux,
//	    Recovery,       // Executes first
//	    RequestID,      // Executes second
//	    RequestLogging, // Executes third
//	)
func Chain(h http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}
