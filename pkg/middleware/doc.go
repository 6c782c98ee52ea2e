// Package middleware provides the identity and authorization middleware of
// the walletd HTTP API.
//
// # Overview
//
// Authentication happens upstream. The gateway forwards the caller's
// identity in the X-Actor-ID and X-Actor-Role headers; ActorMiddleware
// moves them into the request context, where handlers read the actor id
// for ledger attribution.
//
// RequireRole gates administrative routes:
//
//	admin := api.PathPrefix("/organizations").Subrouter()
//	admin.Use(middleware.RequireRole(middleware.RoleSuperAdmin))
package middleware
