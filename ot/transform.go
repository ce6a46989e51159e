package ot

// Side is the priority parameter that breaks symmetric conflicts
// consistently on both ends of a sync. Left means op1 has priority;
// Right means op2 has priority.
type Side int

const (
	Left Side = iota
	Right
)

// Transform rewrites op1 so its effect is preserved when applied after a
// concurrent op2 that op1's author had not observed. It is pure and total:
// it depends only on its inputs and never fails. op1's identity and causal
// metadata (ID, ClientID, ClientSequence, Timestamp) are always preserved;
// only Kind may change.
//
// Grounded on the canonical conflict table for stroke-based drawing
// operations: two draws never collide, a delete and a draw on the same
// stroke resolve by priority side, a clear always subsumes concurrent
// work, and same-target undo/redo pairs cancel on the losing side.
func Transform(op1, op2 Operation, side Side) Operation {
	result := op1.clone()

	switch {
	case op1.Kind.Kind == KindDrawStroke && op2.Kind.Kind == KindDrawStroke:
		// distinct stroke ids by construction: never collide.
		return result

	case op1.Kind.Kind == KindDeleteStroke && op2.Kind.Kind == KindDrawStroke:
		if op1.Kind.StrokeID != op2.Kind.StrokeID {
			return result
		}
		if side == Left {
			return result // delete wins
		}
		// drawing wins: delete becomes a no-op.
		result.Kind = noop(op1.ID)
		return result

	case op1.Kind.Kind == KindDrawStroke && op2.Kind.Kind == KindDeleteStroke:
		if op1.Kind.StrokeID != op2.Kind.StrokeID {
			return result
		}
		if side == Left {
			return result // draw wins
		}
		// delete wins: draw is rewritten to a delete of the same stroke.
		result.Kind = DeleteStroke(op1.Kind.StrokeID)
		return result

	case op1.Kind.Kind == KindClear:
		return result // clear always takes precedence, regardless of side

	case op2.Kind.Kind == KindClear:
		// anything transformed against a concurrent clear is neutralized.
		result.Kind = noop(op1.ID)
		return result

	case op1.Kind.Kind == KindUndo && op2.Kind.Kind == KindUndo:
		if op1.Kind.TargetOperationID != op2.Kind.TargetOperationID {
			return result
		}
		if side == Left {
			return result
		}
		result.Kind = noop(op1.ID)
		return result

	case op1.Kind.Kind == KindRedo && op2.Kind.Kind == KindRedo:
		if op1.Kind.TargetOperationID != op2.Kind.TargetOperationID {
			return result
		}
		if side == Left {
			return result
		}
		result.Kind = noop(op1.ID)
		return result

	case op1.Kind.Kind == KindUndo && op2.Kind.Kind == KindRedo:
		if op1.Kind.TargetOperationID != op2.Kind.TargetOperationID {
			return result
		}
		if side == Left {
			return result // undo wins
		}
		result.Kind = noop(op1.ID) // redo already happened: undo cancels out
		return result

	case op1.Kind.Kind == KindRedo && op2.Kind.Kind == KindUndo:
		if op1.Kind.TargetOperationID != op2.Kind.TargetOperationID {
			return result
		}
		if side == Left {
			return result // redo wins
		}
		result.Kind = noop(op1.ID) // undo already happened: redo cancels out
		return result

	default:
		// Undo/Redo against DrawStroke/DeleteStroke, and any other
		// unlisted pair: no transformation needed.
		return result
	}
}
