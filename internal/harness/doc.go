// Package harness runs YAML scenarios against an in-process action log.
//
// A scenario is a list of steps dispatched by one or more actors, each
// with its own engine over a shared memlog, followed by assertions on the
// replayed state. After the last step the harness waits for every client
// to catch up, checks that all of them reached the same state hash, and
// replays the log from scratch to produce the state the assertions see.
//
// # Scenario Format
//
//	name: packaging
//	description: "Two packers share one order"
//	actor: alice
//	steps:
//	  - action: update_item
//	    payload:
//	      id: {code: X, subtype: A}
//	      item: {code: X, subtype: A, qty: 10}
//	  - action: package_item
//	    actor: bob
//	    payload: {order_id: O-1, key: {code: X, subtype: A}, qty: 2}
//	  - action: retype_item
//	    payload: {order_id: O-1, key: {code: X, subtype: A}, jan_code: X, subtype: A, qty: 1}
//	    expect_diagnostics: [RETYPE_SAME_KEY]
//	  - import:
//	      rows:
//	        - {line: 2, code: X, qty: 4}
//	      resolutions:
//	        - line: 2
//	          split: [{subtype: A, qty: 4}]
//	assertions:
//	  - type: item
//	    code: X
//	    subtype: A
//	    expect: {qty: 14, shipped: 2}
//
// Payloads use the same wire shape as the log. Codes that look like
// numbers must be quoted.
//
// # Assertion Types
//
//   - item: the item exists and the fields in expect match
//   - item_absent: no item is stored under code/subtype
//   - item_count: the inventory holds exactly count items
//   - order: the order exists and, when given, its lines match exactly
//   - names: the names registered for a classification match exactly
//   - diagnostic_count: the replay reported diagnostic exactly count times
//   - history_contains: some history entry for code/subtype contains text
//
// # Determinism
//
// Commit times come from testutil.DeterministicClock and envelope IDs
// from testutil.SequenceIDGenerator (prefixed by actor), so the same
// scenario always yields the same log, trace, and state.
package harness
