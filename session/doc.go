// Package session provides a Redis-backed implementation of
// store.SessionStore.
//
// # Layout
//
// Each session is a Redis hash under <prefix>:s:<id>. Secondary keys:
//
//	<prefix>:t:<token hash>  -> session id
//	<prefix>:u:<user id>     zset of session ids scored by creation time
//	<prefix>:exp             zset of session ids scored by expiry
//	<prefix>:inv             set of invalidated session ids
//
// Writes that span several keys run as Lua scripts. Scripts derive
// per-session keys from the prefix, so the store targets a single Redis node
// or a cluster where the prefix is a hash tag.
//
// # What this package must NOT do
//
//   - Store raw bearer tokens; callers pass store.HashToken digests.
//   - Interpret tokens or decide session policy beyond the eviction cap.
package session
