// Package store provides the SQLite-backed action log.
//
// The log is append-only and organized in channels, one per request:
//   - Transactions: raw action bytes tagged with a logical timestamp
//   - Topics: index entries mapping a topic to the channels that carry it
//
// # Critical Patterns
//
// Idempotent Append
//   - PRIMARY KEY(channel_id, hash) on transactions
//   - Appending the same action twice returns the first confirmation
//
// Logical Time
//   - Timestamps come from a monotonic Clock resumed from MAX(timestamp)
//   - Wall-clock time is never stored or compared
//
// Deterministic Query Results
//   - Reads order by timestamp ASC, hash ASC COLLATE BINARY
//   - Channel and topic lists order by id COLLATE BINARY
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - A single open connection serializes writers
package store
