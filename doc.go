// Package authcore is an authentication and session-management engine for
// services that sign users in with a password or through an OpenID-Connect
// provider.
//
// Every issued credential is two things at once: a signed access token and a
// revocable session row keyed by the token's digest. [Engine.ValidateToken]
// requires both to agree, so a session can be revoked before its token expires
// and a forged row is useless without a valid signature.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Builder], [Config] and
// value types ([AuthResult], [PublicUser], [SessionInfo]). Flow orchestration
// lives in internal/flows, attempt tracking in internal/limiters and email
// delivery in internal/notify. Persistence is pluggable through the store
// package contracts with memory, Redis (session package) and Postgres
// (store/postgres) implementations.
//
// # What this package must NOT do
//
//   - Return password hashes or internal flags from public results.
//   - Distinguish "unknown account" from "wrong password" in any error.
//   - Import any sub-package that re-imports authcore.
package authcore
