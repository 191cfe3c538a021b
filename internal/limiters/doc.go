// Package limiters throttles authentication attempts.
//
// [BruteForceTracker] keeps an in-memory sliding window of failed attempts
// per client IP and per account identifier and blocks a key for a fixed
// period once the window fills. [RedisBruteForceTracker] is the Redis-backed
// variant used when several processes must share lockout state.
//
// Limiters count and block. Callers decide what a block means.
package limiters
