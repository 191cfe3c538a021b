// Package internal holds the engine's private building blocks.
//
// # Sub-packages
//
//   - config: YAML and environment loading for authctl
//   - flows: flow orchestrators behind every Engine operation
//   - httpapi: chi JSON adapter served by authctl
//   - limiters: failed-attempt trackers (go-cache and Redis)
//   - logging: zap logger construction
//   - notify: async email dispatch and SMTP delivery
//   - rate: fixed-window request limiters for email endpoints
package internal
