package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/stockroom/internal/transport"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	opts = append([]Option{WithPollInterval(10 * time.Millisecond)}, opts...)
	s, err := Open(path, opts...)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestEnvelope creates an envelope with minimal required fields.
func createTestEnvelope(id, kind, payload string) transport.Envelope {
	return transport.Envelope{
		ID:      id,
		Actor:   "tester",
		Kind:    kind,
		Payload: []byte(payload),
	}
}
