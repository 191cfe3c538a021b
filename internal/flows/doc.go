// Package flows contains the orchestration for every Engine operation.
//
// Each Run* function takes a typed dependency struct and touches nothing
// beyond it, so the flows can be tested with in-memory stores and a fake
// clock. Sentinel errors and metric ids come from the host package through
// the Errors and Metrics fields of each dependency struct.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import authcore (to avoid import cycles).
//   - Perform I/O directly; all I/O goes through the dependency interfaces.
package flows
