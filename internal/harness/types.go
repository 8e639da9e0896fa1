package harness

import (
	"github.com/roach88/stockroom/internal/ir"
)

// Result is the outcome of running a scenario.
type Result struct {
	Pass   bool         // true when Errors is empty
	Trace  []TraceEvent // every log record, in seq order
	Errors []error      // step expectation and assertion failures
	State  *ir.State    // state replayed from the full log
	Hash   string       // content hash of State
	Head   int64        // seq of the last record
}

// TraceEvent is one committed record and the diagnostics its replay produced.
type TraceEvent struct {
	Seq         int64    `json:"seq"`
	ID          string   `json:"id"`
	Actor       string   `json:"actor"`
	Kind        string   `json:"kind"`
	Diagnostics []string `json:"diagnostics,omitempty"`
}
