package ot

import "testing"

func submit(r *RoomState, clientID string, clientSeq, lastServerSeq uint64, kind OperationKind) Operation {
	incoming := Operation{
		ID:             NewOperationID(clientID, clientSeq),
		ClientID:       clientID,
		ClientSequence: clientSeq,
		ServerSequence: lastServerSeq,
		Kind:           kind,
	}
	return r.Ingest(incoming)
}

// S1: two clients draw concurrently, neither observed the other's stroke.
// Both strokes must survive.
func TestRoomConcurrentDrawsBothSurvive(t *testing.T) {
	room := NewRoomState()

	a := submit(room, "alice", 1, 0, DrawStroke("s_alice", []Point{{X: 1, Y: 1}}, "red", 2))
	b := submit(room, "bob", 1, 0, DrawStroke("s_bob", []Point{{X: 2, Y: 2}}, "blue", 2))

	if a.ServerSequence == 0 || b.ServerSequence == 0 || a.ServerSequence == b.ServerSequence {
		t.Fatalf("expected distinct assigned server sequences, got %d and %d", a.ServerSequence, b.ServerSequence)
	}

	snap := room.Snapshot()
	if len(snap.Strokes) != 2 {
		t.Fatalf("expected both strokes present, got %d", len(snap.Strokes))
	}
	if snap.Strokes["s_alice"].Deleted || snap.Strokes["s_bob"].Deleted {
		t.Fatalf("neither stroke should be deleted, got %+v", snap.Strokes)
	}
}

// S2: alice draws a stroke, bob concurrently deletes the same stroke id
// without having observed alice's draw yet. The draw lands first in
// history, so the delete, transformed against it on the Right side,
// becomes a no-op and the stroke survives.
func TestRoomDeleteVsDrawRaceSameStroke(t *testing.T) {
	room := NewRoomState()

	draw := submit(room, "alice", 1, 0, DrawStroke("s1", []Point{{X: 1, Y: 1}}, "red", 2))
	del := submit(room, "bob", 1, 0, DeleteStroke("s1"))

	if !del.Kind.IsNoop() {
		t.Fatalf("delete racing an already-committed draw of the same stroke must be neutralized, got %+v", del.Kind)
	}

	snap := room.Snapshot()
	if s, ok := snap.Strokes["s1"]; !ok || s.Deleted {
		t.Fatalf("expected s1 present and not deleted after the race resolves, got %+v", snap.Strokes["s1"])
	}
	_ = draw
}

// S3: a Clear submitted concurrently with a draw must subsume it: the
// draw, once transformed against the already-applied clear, becomes a
// no-op and the canvas stays empty.
func TestRoomClearSubsumesConcurrentDraw(t *testing.T) {
	room := NewRoomState()

	clear := submit(room, "alice", 1, 0, Clear())
	draw := submit(room, "bob", 1, 0, DrawStroke("s1", []Point{{X: 1, Y: 1}}, "red", 2))

	if clear.Kind.Kind != KindClear {
		t.Fatalf("clear must survive unchanged, got %+v", clear.Kind)
	}
	if !draw.Kind.IsNoop() {
		t.Fatalf("draw concurrent with an already-applied clear must be neutralized, got %+v", draw.Kind)
	}

	snap := room.Snapshot()
	if len(snap.Strokes) != 0 {
		t.Fatalf("no real stroke should have been created, got %+v", snap.Strokes)
	}
}

// S4: a client undoes its own stroke; the stroke becomes deleted.
func TestRoomUndoOwnStroke(t *testing.T) {
	room := NewRoomState()

	draw := submit(room, "alice", 1, 0, DrawStroke("s1", []Point{{X: 1, Y: 1}}, "red", 2))
	submit(room, "alice", 2, draw.ServerSequence, Undo(draw.ID))

	snap := room.Snapshot()
	if !snap.Strokes["s1"].Deleted {
		t.Fatalf("expected s1 deleted after undo, got %+v", snap.Strokes["s1"])
	}
}

// Redo reverses a prior undo of the same stroke.
func TestRoomRedoRestoresUndoneDraw(t *testing.T) {
	room := NewRoomState()

	draw := submit(room, "alice", 1, 0, DrawStroke("s1", []Point{{X: 1, Y: 1}}, "red", 2))
	undo := submit(room, "alice", 2, draw.ServerSequence, Undo(draw.ID))
	submit(room, "alice", 3, undo.ServerSequence, Redo(draw.ID))

	snap := room.Snapshot()
	if snap.Strokes["s1"].Deleted {
		t.Fatalf("expected s1 restored after redo, got %+v", snap.Strokes["s1"])
	}
}

// S6: two clients concurrently undo the same target; only one undo may
// take effect, the second must no-op, but the stroke must end up deleted
// exactly once (idempotent).
func TestRoomConcurrentUndoOfSameTarget(t *testing.T) {
	room := NewRoomState()

	draw := submit(room, "alice", 1, 0, DrawStroke("s1", []Point{{X: 1, Y: 1}}, "red", 2))

	u1 := submit(room, "bob", 1, draw.ServerSequence, Undo(draw.ID))
	u2 := submit(room, "carol", 1, draw.ServerSequence, Undo(draw.ID))

	if u1.Kind.Kind != KindUndo {
		t.Fatalf("first undo observed should apply, got %+v", u1.Kind)
	}
	if !u2.Kind.IsNoop() {
		t.Fatalf("second concurrent undo of the same target should no-op, got %+v", u2.Kind)
	}

	snap := room.Snapshot()
	if !snap.Strokes["s1"].Deleted {
		t.Fatalf("expected s1 deleted exactly once, got %+v", snap.Strokes["s1"])
	}
}

// No-resurrection: replaying a DrawStroke with an id that already exists
// must not reset Deleted back to false.
func TestRoomNoResurrectionOnDuplicateDraw(t *testing.T) {
	room := NewRoomState()

	draw := submit(room, "alice", 1, 0, DrawStroke("s1", []Point{{X: 1, Y: 1}}, "red", 2))
	submit(room, "alice", 2, draw.ServerSequence, DeleteStroke("s1"))

	// A duplicate DrawStroke for the same id arrives (e.g. retransmit).
	submit(room, "alice", 3, draw.ServerSequence, DrawStroke("s1", []Point{{X: 9, Y: 9}}, "green", 9))

	snap := room.Snapshot()
	s := snap.Strokes["s1"]
	if !s.Deleted {
		t.Fatalf("duplicate draw must not resurrect a deleted stroke, got %+v", s)
	}
	if s.Color != "red" {
		t.Fatalf("duplicate draw must not overwrite the original stroke content, got %+v", s)
	}
}

// Monotonicity: ServerSequence assigned by Ingest is strictly increasing
// across successive calls.
func TestRoomServerSequenceMonotonic(t *testing.T) {
	room := NewRoomState()

	var last uint64
	for i := uint64(1); i <= 5; i++ {
		got := submit(room, "alice", i, 0, DrawStroke("s"+string(rune('0'+i)), nil, "red", 1))
		if got.ServerSequence <= last {
			t.Fatalf("expected strictly increasing server sequence, got %d after %d", got.ServerSequence, last)
		}
		last = got.ServerSequence
	}
}

// History truncation: once more than historyHighWater operations have
// been ingested, the oldest historyTrimTo are dropped and
// OldestRetainedSequence reflects that.
func TestRoomHistoryTruncation(t *testing.T) {
	room := NewRoomState()

	for i := 0; i < historyHighWater+1; i++ {
		submit(room, "alice", uint64(i+1), 0, DrawStroke("s", nil, "red", 1))
	}

	oldest := room.OldestRetainedSequence()
	if oldest != historyTrimTo+1 {
		t.Fatalf("expected oldest retained sequence %d, got %d", historyTrimTo+1, oldest)
	}

	_, ok := room.OperationsSince(0)
	if ok {
		t.Fatalf("requesting operations from before the retained window must signal a required snapshot")
	}
}
