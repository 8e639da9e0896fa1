// Package engine replays the shared action log into a local snapshot.
//
// ARCHITECTURE:
//
// Single-Writer Replay Loop:
// Run subscribes to the log and applies records in a single goroutine, one
// at a time, in log order. This ensures:
// - Every client that has applied the same prefix holds identical state
// - The reducer never runs concurrently with itself
// - Simple reasoning about what a snapshot contains
//
// Dispatch Flow:
// 1. Dispatch encodes the action and generates its envelope ID
// 2. The ID is marked pending and the envelope is appended
// 3. The log assigns a seq and echoes the record to every subscriber
// 4. Run applies the echo and clears the pending mark
//
// Dispatch never mutates the snapshot. A client sees its own action only
// when the log delivers it, in the same position every other client does.
//
// CRITICAL PATTERNS:
//
// Logical Order
// The log seq is the only ordering. CommittedAt is the only time the
// reducer may read, and it comes from the log.
//
// Log and Continue
// A record that cannot be decoded or applied cleanly yields a Diagnostic
// and replay continues. Stopping would leave this client behind every
// other replica.
package engine
