package persistence

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"terminal-core/pkg/db"
)

type memStore struct {
	mu      sync.Mutex
	batches [][]db.PayloadRecord
	fail    bool
}

func (m *memStore) InsertPayloads(_ context.Context, recs []db.PayloadRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("disk full")
	}
	m.batches = append(m.batches, recs)
	return nil
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, b := range m.batches {
		n += len(b)
	}
	return n
}

func TestFlushOnSize(t *testing.T) {
	store := &memStore{}
	bw := NewBatchWriter(store, 2, time.Hour)
	defer bw.Close()

	bw.Write(db.PayloadRecord{SessionID: "s-1"})
	if bw.Pending() != 1 || store.count() != 0 {
		t.Fatalf("pending=%d stored=%d", bw.Pending(), store.count())
	}
	bw.Write(db.PayloadRecord{SessionID: "s-1"})
	if bw.Pending() != 0 || store.count() != 2 {
		t.Fatalf("pending=%d stored=%d", bw.Pending(), store.count())
	}
	m := bw.GetMetrics()
	if m.TotalBatches != 1 || m.LastBatchSize != 2 {
		t.Fatalf("metrics %+v", m)
	}
}

func TestCloseFlushesRemainder(t *testing.T) {
	store := &memStore{}
	bw := NewBatchWriter(store, 10, time.Hour)
	bw.Write(db.PayloadRecord{SessionID: "s-1"})
	bw.Close()
	bw.Close()
	if store.count() != 1 {
		t.Fatalf("stored=%d", store.count())
	}
	if store.batches[0][0].CreatedAt.IsZero() {
		t.Fatal("created_at not stamped")
	}
}

func TestBackgroundFlush(t *testing.T) {
	store := &memStore{}
	bw := NewBatchWriter(store, 10, 10*time.Millisecond)
	defer bw.Close()
	bw.Write(db.PayloadRecord{SessionID: "s-1"})

	deadline := time.Now().Add(2 * time.Second)
	for store.count() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("background flush never ran")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestFailedBatchCounted(t *testing.T) {
	store := &memStore{fail: true}
	bw := NewBatchWriter(store, 10, time.Hour)
	defer bw.Close()
	bw.Write(db.PayloadRecord{SessionID: "s-1"})
	if err := bw.Flush(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if m := bw.GetMetrics(); m.TotalErrors != 1 || bw.Pending() != 0 {
		t.Fatalf("metrics %+v pending=%d", m, bw.Pending())
	}
}
