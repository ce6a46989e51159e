package ot

import (
	"sync"
	"testing"
)

func TestManagerGetOrCreateIsIdempotent(t *testing.T) {
	m := NewRoomManager()
	a := m.GetOrCreate("room1")
	b := m.GetOrCreate("room1")
	if a != b {
		t.Fatal("expected the same room instance on repeated GetOrCreate")
	}
}

func TestManagerSubmitCreatesRoomOnFirstUse(t *testing.T) {
	m := NewRoomManager()
	op := Operation{ID: "alice_1", ClientID: "alice", ClientSequence: 1, Kind: DrawStroke("s1", nil, "red", 1)}

	got := m.Submit("room1", op)
	if got.ServerSequence != 1 {
		t.Fatalf("expected first ingested op to get server sequence 1, got %d", got.ServerSequence)
	}

	snap, ok := m.Snapshot("room1")
	if !ok {
		t.Fatal("expected room1 to exist after Submit")
	}
	if len(snap.Strokes) != 1 {
		t.Fatalf("expected one stroke in room1, got %d", len(snap.Strokes))
	}
}

func TestManagerSnapshotUnknownRoom(t *testing.T) {
	m := NewRoomManager()
	_, ok := m.Snapshot("missing")
	if ok {
		t.Fatal("expected Snapshot of an unknown room to report false")
	}
}

func TestManagerRoomsAreIndependent(t *testing.T) {
	m := NewRoomManager()
	m.Submit("room1", Operation{ID: "a", ClientID: "alice", Kind: DrawStroke("s1", nil, "red", 1)})
	m.Submit("room2", Operation{ID: "b", ClientID: "bob", Kind: DrawStroke("s1", nil, "blue", 1)})

	snap1, _ := m.Snapshot("room1")
	snap2, _ := m.Snapshot("room2")
	if snap1.Strokes["s1"].Color != "red" || snap2.Strokes["s1"].Color != "blue" {
		t.Fatalf("expected rooms to have independent stroke ids, got %+v and %+v", snap1.Strokes, snap2.Strokes)
	}
}

func TestManagerRemove(t *testing.T) {
	m := NewRoomManager()
	m.GetOrCreate("room1")
	m.Remove("room1")
	if _, ok := m.Snapshot("room1"); ok {
		t.Fatal("expected room1 gone after Remove")
	}
}

// Cross-room submissions may run fully in parallel; this exercises the
// manager under concurrent access from many goroutines across many rooms.
func TestManagerConcurrentSubmitAcrossRooms(t *testing.T) {
	m := NewRoomManager()
	var wg sync.WaitGroup
	for room := 0; room < 4; room++ {
		roomID := string(rune('A' + room))
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func(roomID string, i int) {
				defer wg.Done()
				m.Submit(roomID, Operation{
					ID:       roomID + "_" + string(rune('a'+i%26)),
					ClientID: "c",
					Kind:     DrawStroke(roomID+string(rune('a'+i%26))+string(rune(i)), nil, "red", 1),
				})
			}(roomID, i)
		}
	}
	wg.Wait()

	for room := 0; room < 4; room++ {
		roomID := string(rune('A' + room))
		snap, ok := m.Snapshot(roomID)
		if !ok {
			t.Fatalf("expected room %s to exist", roomID)
		}
		if snap.ServerSequence != 50 {
			t.Fatalf("expected 50 ingested ops in room %s, got server sequence %d", roomID, snap.ServerSequence)
		}
	}
}
