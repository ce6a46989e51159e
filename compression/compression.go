// Package compression batches operations per room and gzips each flushed
// batch to measure and log its compression ratio. The compressed bytes are
// not sent or stored anywhere; operations go out to clients uncompressed.
package compression

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"whiteboard-sync/ot"
)

// Batch is a pending group of operations for one room awaiting flush.
type Batch struct {
	RoomID     string        `json:"room_id"`
	Operations []ot.Operation `json:"operations"`
	StartedAt  time.Time     `json:"started_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// Result reports the size change a single compression pass achieved.
type Result struct {
	OriginalSize     int     `json:"original_size"`
	CompressedSize   int     `json:"compressed_size"`
	CompressionRatio float64 `json:"compression_ratio"`
	ElapsedNs        int64   `json:"compression_time_ns"`
}

// Batcher groups operations per room and flushes a batch once it reaches
// size or age limits.
type Batcher struct {
	size    int
	timeout time.Duration

	mu      sync.Mutex
	batches map[string]*Batch
	onFlush func(roomID string, batch *Batch)
}

// NewBatcher creates a batcher that flushes after `size` operations or
// `timeout` since the batch's first operation, whichever comes first.
func NewBatcher(size int, timeout time.Duration) *Batcher {
	b := &Batcher{size: size, timeout: timeout, batches: make(map[string]*Batch)}
	go b.ageLoop()
	return b
}

// OnFlush registers the callback invoked whenever a batch is flushed.
func (b *Batcher) OnFlush(fn func(roomID string, batch *Batch)) {
	b.onFlush = fn
}

// Add appends op to roomID's in-progress batch, flushing immediately if
// that fills it.
func (b *Batcher) Add(roomID string, op ot.Operation) {
	b.mu.Lock()
	defer b.mu.Unlock()

	batch, ok := b.batches[roomID]
	if !ok {
		batch = &Batch{RoomID: roomID, StartedAt: time.Now()}
		b.batches[roomID] = batch
	}
	batch.Operations = append(batch.Operations, op)
	batch.UpdatedAt = time.Now()

	if len(batch.Operations) >= b.size {
		b.flushUnlocked(roomID, batch)
	}
}

// Flush immediately flushes roomID's pending batch, if any.
func (b *Batcher) Flush(roomID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if batch, ok := b.batches[roomID]; ok {
		b.flushUnlocked(roomID, batch)
	}
}

func (b *Batcher) flushUnlocked(roomID string, batch *Batch) {
	if len(batch.Operations) == 0 {
		return
	}
	if b.onFlush != nil {
		b.onFlush(roomID, batch)
	}
	delete(b.batches, roomID)
}

func (b *Batcher) ageLoop() {
	ticker := time.NewTicker(b.timeout / 4)
	defer ticker.Stop()
	for range ticker.C {
		b.flushExpired()
	}
}

func (b *Batcher) flushExpired() {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := time.Now()
	for roomID, batch := range b.batches {
		if now.Sub(batch.StartedAt) > b.timeout {
			b.flushUnlocked(roomID, batch)
		}
	}
}

// Stats reports the batcher's current pending state.
func (b *Batcher) Stats() map[string]interface{} {
	b.mu.Lock()
	defer b.mu.Unlock()

	totalOps := 0
	rooms := make(map[string]interface{}, len(b.batches))
	for roomID, batch := range b.batches {
		totalOps += len(batch.Operations)
		rooms[roomID] = map[string]interface{}{
			"operations": len(batch.Operations),
			"age_ms":     time.Since(batch.StartedAt).Milliseconds(),
		}
	}
	return map[string]interface{}{
		"pending_batches":   len(b.batches),
		"pending_operations": totalOps,
		"batch_size_limit":  b.size,
		"batch_timeout_ms":  b.timeout.Milliseconds(),
		"rooms":             rooms,
	}
}

// Gzip compresses v (typically a *Batch) as JSON+gzip, returning the
// compressed bytes and the size statistics of the pass.
func Gzip(v interface{}) ([]byte, *Result, error) {
	start := time.Now()

	raw, err := json.Marshal(v)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal payload: %w", err)
	}

	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	if _, err := gw.Write(raw); err != nil {
		return nil, nil, fmt.Errorf("gzip write: %w", err)
	}
	if err := gw.Close(); err != nil {
		return nil, nil, fmt.Errorf("gzip close: %w", err)
	}

	compressed := buf.Bytes()
	return compressed, &Result{
		OriginalSize:     len(raw),
		CompressedSize:   len(compressed),
		CompressionRatio: float64(len(compressed)) / float64(len(raw)),
		ElapsedNs:        time.Since(start).Nanoseconds(),
	}, nil
}

// Gunzip reverses Gzip into target.
func Gunzip(compressed []byte, target interface{}) error {
	gr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return fmt.Errorf("gzip reader: %w", err)
	}
	defer gr.Close()

	raw, err := io.ReadAll(gr)
	if err != nil {
		return fmt.Errorf("gzip read: %w", err)
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	return nil
}

// Manager wires a Batcher's flush events to gzip compression and tracks
// running totals, for reporting from the compression stats endpoint.
type Manager struct {
	batcher *Batcher

	mu              sync.Mutex
	totalOperations int64
	totalFlushes    int64
}

// NewManager creates a Manager whose batcher flushes after size operations
// or timeout, whichever is first; every flush is gzip-compressed and logged.
func NewManager(size int, timeout time.Duration) *Manager {
	m := &Manager{batcher: NewBatcher(size, timeout)}
	m.batcher.OnFlush(m.handleFlush)
	return m
}

// Submit adds op to roomID's batch.
func (m *Manager) Submit(roomID string, op ot.Operation) {
	m.batcher.Add(roomID, op)
}

// Flush forces roomID's pending batch out immediately rather than waiting
// for the size or timeout trigger, e.g. when the room empties out.
func (m *Manager) Flush(roomID string) {
	m.batcher.Flush(roomID)
}

func (m *Manager) handleFlush(roomID string, batch *Batch) {
	_, result, err := Gzip(batch)
	if err != nil {
		log.Printf("❌ compression failed for room %s: %v", roomID, err)
		return
	}

	m.mu.Lock()
	m.totalOperations += int64(len(batch.Operations))
	m.totalFlushes++
	m.mu.Unlock()

	log.Printf("📦 flushed batch room=%s ops=%d ratio=%.2f", roomID, len(batch.Operations), result.CompressionRatio)
}

// Stats reports cumulative compression activity.
func (m *Manager) Stats() map[string]interface{} {
	m.mu.Lock()
	totalOps := m.totalOperations
	totalFlushes := m.totalFlushes
	m.mu.Unlock()

	stats := m.batcher.Stats()
	stats["lifetime_operations"] = totalOps
	stats["lifetime_flushes"] = totalFlushes
	return stats
}
