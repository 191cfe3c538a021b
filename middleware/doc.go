// Package middleware adapts authcore.Engine to net/http.
//
// [ClientInfo] copies the caller's IP and User-Agent into the request context
// so login and reset flows can track attempts and stamp sessions. [Guard]
// validates the bearer token and stores the resolved user; [RequireVerified]
// additionally rejects accounts whose email is not verified.
//
// Authentication decisions are delegated to Engine.ValidateToken; this package
// only translates HTTP in and out.
package middleware
