// Package transient provides the short-lived key-value store used to
// coordinate callers of the Bunny.net API.
//
// Two markers live here:
//
//   - the shared "do not call before T" deadline written after a 429 response
//   - per-user collection creation locks with a short expiry
//
// # Backends
//
//   - MemoryStore: in-process map, the default and the test backend
//   - RedisStore: shared between processes and hosts via go-redis
//   - BadgerStore: embedded database, survives between CLI runs on one host
//
// All backends expire keys on their own, so callers never need to clean up a
// rate-limit marker. SetNX gives atomic add semantics for locks.
package transient
