package compression

import (
	"testing"
	"time"

	"whiteboard-sync/ot"
)

func drawOp(id string) ot.Operation {
	return ot.Operation{ID: id, Kind: ot.DrawStroke("s_"+id, []ot.Point{{X: 1, Y: 1}}, "red", 2)}
}

func TestBatcherFlushesAtSizeLimit(t *testing.T) {
	b := NewBatcher(3, time.Hour)
	flushed := make(chan *Batch, 1)
	b.OnFlush(func(roomID string, batch *Batch) { flushed <- batch })

	b.Add("room1", drawOp("1"))
	b.Add("room1", drawOp("2"))
	select {
	case <-flushed:
		t.Fatalf("should not flush before reaching size limit")
	default:
	}

	b.Add("room1", drawOp("3"))
	select {
	case batch := <-flushed:
		if len(batch.Operations) != 3 {
			t.Fatalf("expected 3 operations in flushed batch, got %d", len(batch.Operations))
		}
	case <-time.After(time.Second):
		t.Fatalf("expected flush once size limit reached")
	}
}

func TestFlushIsManualBeforeLimitOrTimeout(t *testing.T) {
	b := NewBatcher(10, time.Hour)
	flushed := make(chan *Batch, 1)
	b.OnFlush(func(roomID string, batch *Batch) { flushed <- batch })

	b.Add("room1", drawOp("1"))
	b.Flush("room1")

	select {
	case batch := <-flushed:
		if len(batch.Operations) != 1 {
			t.Fatalf("expected 1 operation, got %d", len(batch.Operations))
		}
	case <-time.After(time.Second):
		t.Fatalf("expected manual flush to fire onFlush")
	}
}

func TestFlushOfEmptyBatchIsNoop(t *testing.T) {
	b := NewBatcher(10, time.Hour)
	called := false
	b.OnFlush(func(roomID string, batch *Batch) { called = true })

	b.Flush("never-added-to")
	if called {
		t.Fatalf("expected no flush callback for a room with no pending batch")
	}
}

func TestGzipRoundTrip(t *testing.T) {
	original := &Batch{RoomID: "room1", Operations: []ot.Operation{drawOp("1"), drawOp("2")}}

	compressed, result, err := Gzip(original)
	if err != nil {
		t.Fatalf("gzip: %v", err)
	}
	if result.CompressedSize == 0 || result.OriginalSize == 0 {
		t.Fatalf("expected non-zero sizes in result: %+v", result)
	}

	var restored Batch
	if err := Gunzip(compressed, &restored); err != nil {
		t.Fatalf("gunzip: %v", err)
	}
	if len(restored.Operations) != 2 || restored.Operations[0].ID != "1" {
		t.Fatalf("expected round-tripped operations to match, got %+v", restored.Operations)
	}
}

func TestManagerTracksLifetimeStats(t *testing.T) {
	m := NewManager(2, time.Hour)
	m.Submit("room1", drawOp("1"))
	m.Submit("room1", drawOp("2")) // triggers a flush at size 2

	stats := m.Stats()
	if stats["lifetime_flushes"].(int64) != 1 {
		t.Fatalf("expected exactly one lifetime flush, got %+v", stats)
	}
	if stats["lifetime_operations"].(int64) != 2 {
		t.Fatalf("expected 2 lifetime operations, got %+v", stats)
	}
}
