package spatial

import (
	"testing"

	"whiteboard-sync/ot"
)

func stroke(id string, pts ...ot.Point) ot.Stroke {
	return ot.Stroke{ID: id, Points: pts, Color: "red", BrushSize: 2}
}

func TestInsertAndQueryViewport(t *testing.T) {
	idx := NewIndex()

	if err := idx.Insert("room1", stroke("s1", ot.Point{X: 0, Y: 0}, ot.Point{X: 10, Y: 10})); err != nil {
		t.Fatalf("insert s1: %v", err)
	}
	if err := idx.Insert("room1", stroke("s2", ot.Point{X: 100, Y: 100}, ot.Point{X: 110, Y: 110})); err != nil {
		t.Fatalf("insert s2: %v", err)
	}

	results, err := idx.QueryViewport("room1", BoundingBox{X1: -5, Y1: -5, X2: 20, Y2: 20})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(results) != 1 || results[0].Stroke.ID != "s1" {
		t.Fatalf("expected only s1 in viewport, got %+v", results)
	}
}

func TestQueryViewportFiltersOtherRooms(t *testing.T) {
	idx := NewIndex()
	idx.Insert("room1", stroke("s1", ot.Point{X: 0, Y: 0}))
	idx.Insert("room2", stroke("s2", ot.Point{X: 0, Y: 0}))

	results, err := idx.QueryViewport("room1", BoundingBox{X1: -10, Y1: -10, X2: 10, Y2: 10})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(results) != 1 || results[0].Stroke.ID != "s1" {
		t.Fatalf("expected query scoped to room1, got %+v", results)
	}
}

func TestQueryViewportSkipsDeletedStrokes(t *testing.T) {
	idx := NewIndex()
	s := stroke("s1", ot.Point{X: 0, Y: 0})
	s.Deleted = true
	idx.Insert("room1", s)

	results, err := idx.QueryViewport("room1", BoundingBox{X1: -10, Y1: -10, X2: 10, Y2: 10})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected deleted stroke excluded, got %+v", results)
	}
}

func TestRemoveDropsStrokeFromIndex(t *testing.T) {
	idx := NewIndex()
	idx.Insert("room1", stroke("s1", ot.Point{X: 0, Y: 0}))
	idx.Remove("room1", "s1")

	results, err := idx.QueryViewport("room1", BoundingBox{X1: -10, Y1: -10, X2: 10, Y2: 10})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected empty index after remove, got %+v", results)
	}
}

func TestInsertReplacesExistingStrokeByID(t *testing.T) {
	idx := NewIndex()
	idx.Insert("room1", stroke("s1", ot.Point{X: 0, Y: 0}))
	idx.Insert("room1", stroke("s1", ot.Point{X: 50, Y: 50}))

	stats := idx.Stats()
	if stats["total_items"].(int) != 1 {
		t.Fatalf("expected re-inserting the same stroke id to replace, not duplicate: %+v", stats)
	}
}

func TestClearRoomRemovesOnlyThatRoom(t *testing.T) {
	idx := NewIndex()
	idx.Insert("room1", stroke("s1", ot.Point{X: 0, Y: 0}))
	idx.Insert("room2", stroke("s2", ot.Point{X: 0, Y: 0}))

	idx.ClearRoom("room1")

	stats := idx.Stats()
	counts := stats["room_counts"].(map[string]int)
	if _, ok := counts["room1"]; ok {
		t.Fatalf("expected room1 cleared, got %+v", counts)
	}
	if counts["room2"] != 1 {
		t.Fatalf("expected room2 untouched, got %+v", counts)
	}
}

func TestInsertHandlesEmptyStrokeViaFallbackBounds(t *testing.T) {
	idx := NewIndex()
	s := stroke("s1")
	s.Points = nil
	if err := idx.Insert("room1", s); err != nil {
		t.Fatalf("expected BoundsOf's fallback unit box to be valid, got error: %v", err)
	}
}
