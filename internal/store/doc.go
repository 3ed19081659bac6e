// Package store provides a SQLite-backed journal of remote API calls.
//
// Every query, create and update sent through a Recorder is appended to the
// journal with its SOQL text or write payload, the response and any error.
// A Replayer answers the same calls from a recorded session without network
// access, which is how the trace and replay commands inspect past runs.
//
// # Ordering
//
//   - Calls are stamped with seq, a logical clock per session
//   - All reads use ORDER BY seq ASC, id ASC COLLATE BINARY
//   - recorded_at is informational only
//
// # Serialization
//
// Write payloads are stored as canonical JSON (ir.MarshalCanonical) so that
// identical payloads compare byte-for-byte during replay. Query responses
// are stored in the remote wire shape, field order included.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
