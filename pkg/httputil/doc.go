// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Overview
//
// Every error body has the shape {"error": "...", "code": "..."}; the
// Code constants name the classes clients can branch on.
//
// # Request Parsing
//
//	var req billing.MeetingBillingRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // Error response already written
//	}
//
//	page, err := httputil.ParseQueryInt(r, "page", 1)
//	start, err := httputil.ParseQueryTime(r, "start_date", false)
//
// # Middleware
//
//	httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.LoggingMiddleware(logger),
//		httputil.RecoveryMiddleware(logger),
//		httputil.MaxBytesMiddleware(1<<20),
//	)
package httputil
