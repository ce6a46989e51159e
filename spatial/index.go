// Package spatial provides an in-memory R-tree index over stroke bounding
// boxes, used to answer viewport queries without scanning every stroke in
// a room.
package spatial

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/tidwall/rtree"

	"whiteboard-sync/ot"
)

// BoundingBox is an axis-aligned rectangle in canvas coordinates.
type BoundingBox struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// IndexedStroke pairs a stroke with the room it belongs to for indexing.
type IndexedStroke struct {
	RoomID string
	Stroke ot.Stroke
	BBox   BoundingBox
}

// Index manages spatial indexing of strokes across all rooms for efficient
// viewport queries. It is a read-mostly cache alongside ot.RoomManager, not
// a replacement for it: VisibleStrokes/Snapshot remain the source of truth.
type Index struct {
	tree *rtree.RTree
	mu   sync.RWMutex
}

// NewIndex creates an empty spatial index.
func NewIndex() *Index {
	return &Index{tree: &rtree.RTree{}}
}

// BoundsOf computes a padded bounding box around a stroke's points. An empty
// or single-point stroke still yields a valid (non-degenerate) box.
func BoundsOf(s ot.Stroke) BoundingBox {
	if len(s.Points) == 0 {
		return BoundingBox{X1: 0, Y1: 0, X2: 1, Y2: 1}
	}
	bbox := BoundingBox{X1: s.Points[0].X, Y1: s.Points[0].Y, X2: s.Points[0].X, Y2: s.Points[0].Y}
	for _, p := range s.Points[1:] {
		if p.X < bbox.X1 {
			bbox.X1 = p.X
		}
		if p.X > bbox.X2 {
			bbox.X2 = p.X
		}
		if p.Y < bbox.Y1 {
			bbox.Y1 = p.Y
		}
		if p.Y > bbox.Y2 {
			bbox.Y2 = p.Y
		}
	}
	padding := float64(s.BrushSize) + 4
	bbox.X1 -= padding
	bbox.Y1 -= padding
	bbox.X2 += padding
	bbox.Y2 += padding
	return bbox
}

// Insert adds or replaces a room's stroke in the index.
func (idx *Index) Insert(roomID string, s ot.Stroke) error {
	bbox := BoundsOf(s)
	if bbox.X1 >= bbox.X2 || bbox.Y1 >= bbox.Y2 {
		return fmt.Errorf("invalid bounding box for stroke %s: %+v", s.ID, bbox)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.removeUnsafe(roomID, s.ID)
	min := [2]float64{bbox.X1, bbox.Y1}
	max := [2]float64{bbox.X2, bbox.Y2}
	idx.tree.Insert(min, max, &IndexedStroke{RoomID: roomID, Stroke: s, BBox: bbox})
	return nil
}

// Remove deletes a stroke from the index.
func (idx *Index) Remove(roomID, strokeID string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.removeUnsafe(roomID, strokeID)
}

func (idx *Index) removeUnsafe(roomID, strokeID string) {
	var found *IndexedStroke
	var fMin, fMax [2]float64
	idx.tree.Scan(func(min, max [2]float64, item interface{}) bool {
		is := item.(*IndexedStroke)
		if is.RoomID == roomID && is.Stroke.ID == strokeID {
			found, fMin, fMax = is, min, max
			return false
		}
		return true
	})
	if found != nil {
		idx.tree.Delete(fMin, fMax, found)
	}
}

// QueryViewport returns every indexed, non-deleted stroke in roomID whose
// bounding box intersects viewport.
func (idx *Index) QueryViewport(roomID string, viewport BoundingBox) ([]IndexedStroke, error) {
	if viewport.X1 >= viewport.X2 || viewport.Y1 >= viewport.Y2 {
		return nil, fmt.Errorf("invalid viewport bounds: %+v", viewport)
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	min := [2]float64{viewport.X1, viewport.Y1}
	max := [2]float64{viewport.X2, viewport.Y2}
	var results []IndexedStroke
	idx.tree.Search(min, max, func(min, max [2]float64, item interface{}) bool {
		is := item.(*IndexedStroke)
		if is.RoomID == roomID && !is.Stroke.Deleted {
			results = append(results, *is)
		}
		return true
	})
	return results, nil
}

// ViewportResult carries a viewport query's results alongside timing metadata.
type ViewportResult struct {
	Strokes     []IndexedStroke `json:"strokes"`
	QueryTimeNs int64           `json:"query_time_ns"`
	ResultCount int             `json:"result_count"`
	Viewport    BoundingBox     `json:"viewport"`
}

// QueryViewportWithMetrics is QueryViewport with wall-clock timing attached,
// reported back to the caller via response headers.
func (idx *Index) QueryViewportWithMetrics(roomID string, viewport BoundingBox) (*ViewportResult, error) {
	start := time.Now()
	strokes, err := idx.QueryViewport(roomID, viewport)
	if err != nil {
		return nil, err
	}
	return &ViewportResult{
		Strokes:     strokes,
		QueryTimeNs: time.Since(start).Nanoseconds(),
		ResultCount: len(strokes),
		Viewport:    viewport,
	}, nil
}

// ClearRoom removes every stroke belonging to roomID from the index.
func (idx *Index) ClearRoom(roomID string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	type entry struct {
		item     *IndexedStroke
		min, max [2]float64
	}
	var toRemove []entry
	idx.tree.Scan(func(min, max [2]float64, item interface{}) bool {
		is := item.(*IndexedStroke)
		if is.RoomID == roomID {
			toRemove = append(toRemove, entry{is, min, max})
		}
		return true
	})
	for _, e := range toRemove {
		idx.tree.Delete(e.min, e.max, e.item)
	}
	log.Printf("🧹 cleared %d indexed strokes for room %s", len(toRemove), roomID)
}

// Stats summarizes the index's current contents, broken down per room.
func (idx *Index) Stats() map[string]interface{} {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	total := 0
	roomCounts := make(map[string]int)
	idx.tree.Scan(func(min, max [2]float64, item interface{}) bool {
		is := item.(*IndexedStroke)
		total++
		if !is.Stroke.Deleted {
			roomCounts[is.RoomID]++
		}
		return true
	})

	return map[string]interface{}{
		"total_items": total,
		"room_counts": roomCounts,
	}
}
