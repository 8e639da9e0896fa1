// Package ir provides the canonical domain representation shared by every
// stockroom client: item keys, inventory and order state, and the closed set
// of actions that travel through the action log.
//
// This package contains types and pure helpers only. All other internal
// packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - NO float types anywhere - quantities are int
//   - Actions are a sealed interface; new kinds are added here and nowhere else
//   - Wire payloads are RFC 8785 canonical JSON with snake_case keys
//   - Ordering comes from the log's seq, never from CommittedAt
package ir
