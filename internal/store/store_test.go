package store

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/roach88/stockroom/internal/transport"
	"github.com/roach88/stockroom/internal/transport/transporttest"
)

func TestLogSuite(t *testing.T) {
	transporttest.Run(t, func(t *testing.T) transport.Log {
		return createTestStore(t)
	})
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s.Close()

	var name string
	err = s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='actions'").Scan(&name)
	if err != nil {
		t.Errorf("actions table not found after idempotent opens: %v", err)
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing", "dir", "test.db"))
	if err == nil {
		t.Error("Open() should fail for a path in a missing directory")
	}
}

func TestOpen_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	s1, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if _, err := s1.Append(ctx, createTestEnvelope("a", "add_name", `{}`)); err != nil {
		t.Fatalf("Append() failed: %v", err)
	}
	s1.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s2.Close()

	rec, err := s2.Append(ctx, createTestEnvelope("b", "add_name", `{}`))
	if err != nil {
		t.Fatalf("Append() after reopen failed: %v", err)
	}
	if rec.Seq != 2 {
		t.Errorf("seq after reopen = %d, want 2", rec.Seq)
	}
}

func TestClose_MultipleCalls(t *testing.T) {
	s := createTestStore(t)

	if err := s.Close(); err != nil {
		t.Errorf("first Close() failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close() failed: %v", err)
	}
	if _, err := s.Head(context.Background()); err != transport.ErrClosed {
		t.Errorf("Head() after Close = %v, want ErrClosed", err)
	}
}

// Pragma tests

func TestPragma_JournalMode(t *testing.T) {
	s := createTestStore(t)
	if err := s.verifyPragma("journal_mode", "wal"); err != nil {
		t.Error(err)
	}
}

func TestPragma_Synchronous(t *testing.T) {
	s := createTestStore(t)
	// NORMAL = 1
	if err := s.verifyPragma("synchronous", "1"); err != nil {
		t.Error(err)
	}
}

func TestPragma_BusyTimeout(t *testing.T) {
	s := createTestStore(t)
	if err := s.verifyPragma("busy_timeout", "5000"); err != nil {
		t.Error(err)
	}
}

func TestPragma_UserVersion(t *testing.T) {
	s := createTestStore(t)
	if err := s.verifyPragma("user_version", "1"); err != nil {
		t.Error(err)
	}
}

// Append and read tests

func TestAppend_UsesClock(t *testing.T) {
	at := time.Date(2024, 6, 1, 12, 0, 0, 123456789, time.UTC)
	s := createTestStore(t, WithClock(func() time.Time { return at }))

	rec, err := s.Append(context.Background(), createTestEnvelope("a", "add_name", `{}`))
	if err != nil {
		t.Fatalf("Append() failed: %v", err)
	}
	if !rec.CommittedAt.Equal(at) {
		t.Errorf("CommittedAt = %v, want %v", rec.CommittedAt, at)
	}
}

func TestAppend_DuplicateKeepsOriginal(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	first, err := s.Append(ctx, createTestEnvelope("dup", "add_name", `{"name":"first"}`))
	if err != nil {
		t.Fatalf("Append() failed: %v", err)
	}
	second, err := s.Append(ctx, createTestEnvelope("dup", "remove_name", `{"name":"second"}`))
	if err != nil {
		t.Fatalf("duplicate Append() failed: %v", err)
	}

	if second.Seq != first.Seq || second.Kind != "add_name" || string(second.Payload) != `{"name":"first"}` {
		t.Errorf("duplicate append returned %+v, want original %+v", second, first)
	}
}

func TestReadRange_Ordered(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"z", "a", "m"} {
		if _, err := s.Append(ctx, createTestEnvelope(id, "add_name", `{}`)); err != nil {
			t.Fatalf("Append(%s) failed: %v", id, err)
		}
	}

	recs, err := s.ReadRange(ctx, 1, 10)
	if err != nil {
		t.Fatalf("ReadRange() failed: %v", err)
	}
	got := []string{recs[0].ID, recs[1].ID, recs[2].ID}
	want := []string{"z", "a", "m"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("record %d = %s, want %s (seq order, not id order)", i, got[i], want[i])
		}
	}

	limited, err := s.ReadRange(ctx, 2, 1)
	if err != nil {
		t.Fatalf("ReadRange() failed: %v", err)
	}
	if len(limited) != 1 || limited[0].Seq != 2 {
		t.Errorf("ReadRange(2, 1) = %+v, want seq 2 only", limited)
	}
}

func TestKindCounts(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for i, kind := range []string{"add_name", "package_item", "add_name"} {
		if _, err := s.Append(ctx, createTestEnvelope(string(rune('a'+i)), kind, `{}`)); err != nil {
			t.Fatalf("Append() failed: %v", err)
		}
	}

	counts, err := s.KindCounts(ctx)
	if err != nil {
		t.Fatalf("KindCounts() failed: %v", err)
	}
	if counts["add_name"] != 2 || counts["package_item"] != 1 {
		t.Errorf("KindCounts() = %v", counts)
	}
}

func TestSubscribe_SeesForeignProcessAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shared.db")
	reader, err := Open(path, WithPollInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("Open(reader) failed: %v", err)
	}
	defer reader.Close()
	writer, err := Open(path)
	if err != nil {
		t.Fatalf("Open(writer) failed: %v", err)
	}
	defer writer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	seen := make(chan int64, 1)
	go func() {
		defer wg.Done()
		_ = reader.Subscribe(ctx, 1, func(r transport.Record) error {
			seen <- r.Seq
			cancel()
			return nil
		})
	}()

	// The writer is a separate handle, so only polling can observe it.
	if _, err := writer.Append(context.Background(), createTestEnvelope("foreign", "add_name", `{}`)); err != nil {
		t.Fatalf("Append() failed: %v", err)
	}

	wg.Wait()
	select {
	case seq := <-seen:
		if seq != 1 {
			t.Errorf("seq = %d, want 1", seq)
		}
	default:
		t.Error("reader never observed the foreign append")
	}
}
