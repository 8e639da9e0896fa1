package importer

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/roach88/stockroom/internal/engine"
	"github.com/roach88/stockroom/internal/ir"
)

// Dispatcher appends an action to the shared log.
// Implemented by *engine.Engine.
type Dispatcher interface {
	Dispatch(ctx context.Context, a ir.Action) (engine.Receipt, error)
}

// mark is a sticky per-row state that survives re-analysis.
type mark struct {
	status     Status
	conflict   ConflictKind
	candidates []ir.Item
	resolution *Resolution
}

// Session holds one import: its rows, the user's resolutions, and which
// rows have been committed.
//
// Thread-safety: all methods are safe for concurrent use, so Recompute may
// be driven from an engine listener while the caller resolves rows.
type Session struct {
	mu        sync.Mutex
	rows      []Row
	marks     map[int]mark
	items     []AnalyzedItem
	chunkSize int
	maxBytes  int
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithChunkSize sets the maximum entries per bulk action.
func WithChunkSize(n int) SessionOption {
	return func(s *Session) { s.chunkSize = n }
}

// WithMaxBytes sets the encoded payload ceiling per bulk action.
func WithMaxBytes(n int) SessionOption {
	return func(s *Session) { s.maxBytes = n }
}

// NewSession starts an import over rows. Call Recompute before resolving.
func NewSession(rows []Row, opts ...SessionOption) *Session {
	s := &Session{
		rows:      slices.Clone(rows),
		marks:     make(map[int]mark),
		chunkSize: DefaultChunkSize,
		maxBytes:  DefaultMaxBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Recompute rebuilds every row's status against snap from scratch.
// RESOLVED and DONE rows keep their marks and are not re-analyzed.
func (s *Session) Recompute(snap *ir.State) []AnalyzedItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recomputeLocked(snap)
}

func (s *Session) recomputeLocked(snap *ir.State) []AnalyzedItem {
	items := make([]AnalyzedItem, len(s.rows))
	for i, row := range s.rows {
		if m, ok := s.marks[i]; ok {
			items[i] = AnalyzedItem{
				Index:      i,
				Row:        row,
				Status:     m.status,
				Conflict:   m.conflict,
				Candidates: m.candidates,
				Resolution: m.resolution,
			}
			continue
		}
		items[i] = analyzeRow(i, row, snap)
	}
	s.items = items
	return slices.Clone(items)
}

// Items returns the result of the last Recompute.
func (s *Session) Items() []AnalyzedItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.items)
}

// Item returns the last analyzed state of one row.
func (s *Session) Item(index int) (AnalyzedItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.items) {
		return AnalyzedItem{}, false
	}
	return s.items[index], true
}

// IndexOfLine returns the row index for a source line number.
func (s *Session) IndexOfLine(line int) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.rows {
		if r.Line == line {
			return i, true
		}
	}
	return -1, false
}

// Resolve marks a CONFLICT row RESOLVED with res. res is validated against
// the row again, so a split must still cover the row quantity exactly. The
// row keeps the candidates it was analyzed with until it is committed or
// reopened.
func (s *Session) Resolve(index int, res Resolution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.items) {
		return fmt.Errorf("resolve: row %d out of range", index)
	}
	item := s.items[index]
	if item.Status != StatusConflict {
		return fmt.Errorf("resolve line %d (%s): %w", item.Row.Line, item.Status, ErrNotConflict)
	}
	if res.Kind != item.Conflict {
		return &ValidationError{
			Code:    CodeWrongKind,
			Line:    item.Row.Line,
			Message: fmt.Sprintf("%s resolution for %s conflict", res.Kind, item.Conflict),
		}
	}

	resCopy, err := revalidate(item, res)
	if err != nil {
		return err
	}
	s.marks[index] = mark{
		status:     StatusResolved,
		conflict:   item.Conflict,
		candidates: item.Candidates,
		resolution: &resCopy,
	}

	item.Status = StatusResolved
	item.Resolution = &resCopy
	s.items[index] = item
	return nil
}

// Reopen drops a RESOLVED mark so the row is analyzed again.
func (s *Session) Reopen(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.marks[index]; ok && m.status == StatusResolved {
		delete(s.marks, index)
	}
}

// Summary counts rows by status as of the last Recompute.
func (s *Session) Summary() map[Status]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[Status]int)
	for _, it := range s.items {
		out[it.Status]++
	}
	return out
}

// CommitResult reports what Commit dispatched.
type CommitResult struct {
	Rows     int
	Chunks   int
	Receipts []engine.Receipt
}

// Commit re-analyzes against snap, then dispatches every NEW, MATCH, and
// RESOLVED row as chunked bulk_import_items actions. Rows become DONE
// chunk by chunk; the first failed dispatch stops the commit and the
// result reports what was already committed.
func (s *Session) Commit(ctx context.Context, d Dispatcher, snap *ir.State) (CommitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.recomputeLocked(snap)

	var planned []PlannedRow
	for _, it := range items {
		switch it.Status {
		case StatusNew, StatusMatch, StatusResolved:
		default:
			continue
		}
		p, err := Plan(it)
		if err != nil {
			return CommitResult{}, fmt.Errorf("commit: %w", err)
		}
		planned = append(planned, p)
	}

	chunks, err := Batch(planned, s.chunkSize, s.maxBytes)
	if err != nil {
		return CommitResult{}, fmt.Errorf("commit: %w", err)
	}

	var res CommitResult
	for i, ch := range chunks {
		if len(ch.Action.Entries) > 0 {
			r, err := d.Dispatch(ctx, ch.Action)
			if err != nil {
				return res, fmt.Errorf("commit chunk %d of %d: %w", i+1, len(chunks), err)
			}
			res.Receipts = append(res.Receipts, r)
			res.Chunks++
		}
		for _, idx := range ch.Rows {
			s.markDoneLocked(idx)
		}
		res.Rows += len(ch.Rows)
	}
	return res, nil
}

func (s *Session) markDoneLocked(index int) {
	item := s.items[index]
	s.marks[index] = mark{
		status:     StatusDone,
		conflict:   item.Conflict,
		candidates: item.Candidates,
		resolution: item.Resolution,
	}
	item.Status = StatusDone
	s.items[index] = item
}
