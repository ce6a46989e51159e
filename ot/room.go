package ot

import "sync"

// historyHighWater and historyTrimTo bound how much of a room's operation
// history is kept in memory. Once the history grows past the high-water
// mark the oldest entries are dropped; clients whose last acknowledged
// sequence falls inside the dropped range must be resynced with a fresh
// snapshot rather than replayed.
const (
	historyHighWater = 1000
	historyTrimTo    = 100
)

// RoomState is the server's authoritative view of one whiteboard room. All
// mutation goes through Ingest, which is the only place server_sequence is
// assigned.
type RoomState struct {
	mu     sync.Mutex
	mirror canvasMirror
}

// NewRoomState returns an empty room.
func NewRoomState() *RoomState {
	return &RoomState{mirror: newCanvasMirror()}
}

// Snapshot is an immutable point-in-time copy of a room, suitable for
// sending to a newly attached client or a client that fell too far behind
// the retained history.
type Snapshot struct {
	Strokes        map[string]Stroke
	History        []Operation
	ServerSequence uint64
}

// Ingest transforms incoming against every historical operation the
// submitting client had not yet observed, assigns it the next
// server_sequence, applies it, and appends it to history. The returned
// operation is what must be acknowledged to the sender and broadcast
// (already transformed) to every other attached client.
func (r *RoomState) Ingest(incoming Operation) Operation {
	r.mu.Lock()
	defer r.mu.Unlock()

	transformed := incoming
	for _, historical := range r.mirror.history {
		if historical.ServerSequence > incoming.ServerSequence {
			transformed = Transform(transformed, historical, Right)
		}
	}

	r.mirror.serverSequence++
	transformed.ServerSequence = r.mirror.serverSequence
	r.mirror.apply(transformed)
	if len(r.mirror.history) > historyHighWater {
		r.mirror.history = r.mirror.history[historyTrimTo:]
	}
	return transformed
}

// OldestRetainedSequence reports the server_sequence of the earliest
// operation still held in history, or 0 if history is empty. A client
// whose last acknowledged sequence is below this value has a gap that
// can no longer be closed by replay and must receive a full Snapshot.
func (r *RoomState) OldestRetainedSequence() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.mirror.history) == 0 {
		return 0
	}
	return r.mirror.history[0].ServerSequence
}

// Snapshot returns a deep copy of the room's current state.
func (r *RoomState) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mirror.snapshot()
}

// VisibleStrokes returns the strokes a newly attached client should paint,
// in history order, skipping deleted and neutralized ones.
func (r *RoomState) VisibleStrokes() []Stroke {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mirror.visibleStrokes()
}

// OperationsSince returns the history entries with server_sequence greater
// than since, in order, along with whether the range was fully retained
// (false means the caller's requested point has already been trimmed and
// a full Snapshot is required instead).
func (r *RoomState) OperationsSince(since uint64) ([]Operation, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.mirror.history) > 0 && since < r.mirror.history[0].ServerSequence {
		return nil, false
	}
	var missed []Operation
	for _, op := range r.mirror.history {
		if op.ServerSequence > since {
			missed = append(missed, op)
		}
	}
	return missed, true
}
