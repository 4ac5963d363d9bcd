// Package httputil provides shared HTTP response/request helpers for the
// outreach API handlers.
//
// Handlers use these helpers instead of raw http.ResponseWriter calls so
// every endpoint shares one JSON error envelope.
package httputil
