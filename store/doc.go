// Package store defines the persisted records of authcore and the storage
// contracts the engine depends on.
//
// Implementations live in subpackages: [memory] for tests and single-process
// deployments, postgres for durable storage. The Redis session store lives in
// the session package.
//
// Session rows never hold raw bearer tokens. They are keyed by [HashToken].
package store
