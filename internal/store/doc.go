// Package store provides the SQLite-backed action log.
//
// The store is a single append-only table:
//
//	actions(seq INTEGER PRIMARY KEY AUTOINCREMENT, id TEXT UNIQUE, ...)
//
// # Critical Patterns
//
// Envelope-Level Idempotency
//   - UNIQUE(id) constraint
//   - Appending an ID twice returns the first committed record
//
// Logical Order
//   - All ordering uses seq, NEVER committed_at
//   - Reads MUST include ORDER BY seq ASC
//   - committed_at is stored for audit and history display only
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//
// Several processes may share one database file. Subscriptions are woken
// immediately by appends from the same process and otherwise poll.
package store
