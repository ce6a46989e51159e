package ot

// canvasMirror is the state shared by both the server's authoritative
// RoomState and each client's local ClientSessionState: a stroke table and
// the history of operations that produced it. It is not safe for
// concurrent use; callers own their own locking.
type canvasMirror struct {
	strokes        map[string]*Stroke
	history        []Operation
	serverSequence uint64
}

func newCanvasMirror() canvasMirror {
	return canvasMirror{strokes: make(map[string]*Stroke)}
}

// apply mutates the mirror to reflect op's effect. op must already carry
// its final, transformed Kind.
func (m *canvasMirror) apply(op Operation) {
	switch op.Kind.Kind {
	case KindDrawStroke:
		if op.Kind.IsNoop() {
			// a neutralized operation is kept in history only; it creates no stroke.
			break
		}
		if _, exists := m.strokes[op.Kind.StrokeID]; !exists {
			m.strokes[op.Kind.StrokeID] = &Stroke{
				ID:        op.Kind.StrokeID,
				Points:    op.Kind.Points,
				Color:     op.Kind.Color,
				BrushSize: op.Kind.BrushSize,
				CreatedBy: op.ClientID,
				CreatedAt: op.Timestamp,
			}
		}
		// a repeated stroke id is otherwise ignored: first draw wins, no
		// resurrection of an already-deleted stroke.

	case KindDeleteStroke:
		if s, ok := m.strokes[op.Kind.StrokeID]; ok {
			s.Deleted = true
		}

	case KindClear:
		for _, s := range m.strokes {
			s.Deleted = true
		}

	case KindUndo:
		m.invertTarget(op.Kind.TargetOperationID, true)

	case KindRedo:
		m.invertTarget(op.Kind.TargetOperationID, false)
	}

	m.history = append(m.history, op)
}

// invertTarget looks up the operation named by targetID in history and
// reverses its effect on the affected stroke. isUndo distinguishes an Undo
// (reverse the target) from a Redo (reverse the reversal): a targeted draw
// is hidden by undo and restored by redo; a targeted delete is restored by
// undo and re-applied by redo. A missing target is a silent no-op.
func (m *canvasMirror) invertTarget(targetID string, isUndo bool) {
	target, ok := m.findHistoryOp(targetID)
	if !ok {
		return
	}
	switch target.Kind.Kind {
	case KindDrawStroke:
		if s, ok := m.strokes[target.Kind.StrokeID]; ok {
			s.Deleted = isUndo
		}
	case KindDeleteStroke:
		if s, ok := m.strokes[target.Kind.StrokeID]; ok {
			s.Deleted = !isUndo
		}
	}
}

func (m *canvasMirror) findHistoryOp(id string) (Operation, bool) {
	for _, h := range m.history {
		if h.ID == id {
			return h, true
		}
	}
	return Operation{}, false
}

// visibleStrokes renders strokes in history order, skipping deleted ones
// and the ones whose creating DrawStroke op was itself neutralized. This
// is the canonical rule for what a client should paint.
func (m *canvasMirror) visibleStrokes() []Stroke {
	var visible []Stroke
	seen := make(map[string]bool)
	for _, op := range m.history {
		if op.Kind.Kind != KindDrawStroke || op.Kind.IsNoop() || seen[op.Kind.StrokeID] {
			continue
		}
		seen[op.Kind.StrokeID] = true
		if s, ok := m.strokes[op.Kind.StrokeID]; ok && !s.Deleted {
			visible = append(visible, *s)
		}
	}
	return visible
}

func (m *canvasMirror) snapshot() Snapshot {
	strokes := make(map[string]Stroke, len(m.strokes))
	for id, s := range m.strokes {
		strokes[id] = *s
	}
	history := append([]Operation(nil), m.history...)
	return Snapshot{Strokes: strokes, History: history, ServerSequence: m.serverSequence}
}
