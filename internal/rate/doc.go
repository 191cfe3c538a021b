// Package rate provides fixed-window request limiters for the HTTP email
// endpoints. Failed-attempt tracking for credentials lives in
// internal/limiters; this package only caps request volume per key.
//
// Windows use INCR plus an EXPIRE set on the first hit (Redis) or a go-cache
// entry with the window as TTL (local).
package rate
