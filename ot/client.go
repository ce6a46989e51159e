package ot

import (
	"fmt"
	"time"
)

// currentStroke buffers points for an in-progress draw before it is
// packaged into a single atomic DrawStroke operation. No operation is
// emitted until the stroke is finished: mid-stroke points never hit the
// wire individually.
type currentStroke struct {
	strokeID  string
	points    []Point
	color     string
	brushSize int
}

// ClientSessionState is one client's optimistic local view of a room: its
// own mirror of the canvas, a FIFO of operations it has sent but not yet
// had acknowledged, and the sequence counters needed to construct new
// operations and track how far into the server's history it has seen.
type ClientSessionState struct {
	mirror             canvasMirror
	pendingOperations  []Operation
	clientSequence     uint64
	lastServerSequence uint64
	clientID           string
	current            *currentStroke
}

// NewClientSessionState returns a fresh, empty session for clientID.
func NewClientSessionState(clientID string) *ClientSessionState {
	return &ClientSessionState{mirror: newCanvasMirror(), clientID: clientID}
}

// StartStroke begins buffering a new stroke locally. Any stroke already in
// progress is discarded.
func (c *ClientSessionState) StartStroke(color string, brushSize int) {
	c.current = &currentStroke{
		strokeID:  c.generateStrokeID(),
		color:     color,
		brushSize: brushSize,
	}
}

// AddPoint appends a sampled point to the in-progress stroke. It is a
// no-op if no stroke has been started.
func (c *ClientSessionState) AddPoint(p Point) {
	if c.current == nil {
		return
	}
	c.current.points = append(c.current.points, p)
}

// FinishStroke packages the buffered points into a single DrawStroke
// operation, applies it locally, queues it pending, and returns it ready
// to send. It returns false if no stroke was in progress.
func (c *ClientSessionState) FinishStroke() (Operation, bool) {
	if c.current == nil {
		return Operation{}, false
	}
	stroke := c.current
	c.current = nil

	op := c.createOperation(DrawStroke(stroke.strokeID, stroke.points, stroke.color, stroke.brushSize))
	c.applyLocal(op)
	return op, true
}

// CreateUndo builds, applies, and queues an Undo of targetOperationID.
func (c *ClientSessionState) CreateUndo(targetOperationID string) Operation {
	op := c.createOperation(Undo(targetOperationID))
	c.applyLocal(op)
	return op
}

// CreateRedo builds, applies, and queues a Redo of targetOperationID.
func (c *ClientSessionState) CreateRedo(targetOperationID string) Operation {
	op := c.createOperation(Redo(targetOperationID))
	c.applyLocal(op)
	return op
}

// CreateClear builds, applies, and queues a Clear.
func (c *ClientSessionState) CreateClear() Operation {
	op := c.createOperation(Clear())
	c.applyLocal(op)
	return op
}

// createOperation stamps out a new operation carrying this session's
// identity and causal position. ServerSequence is set to the last server
// sequence this client has observed, so the server knows what history the
// sender had already seen.
func (c *ClientSessionState) createOperation(kind OperationKind) Operation {
	c.clientSequence++
	return Operation{
		ID:             NewOperationID(c.clientID, c.clientSequence),
		ClientID:       c.clientID,
		ClientSequence: c.clientSequence,
		ServerSequence: c.lastServerSequence,
		Kind:           kind,
		Timestamp:      time.Now(),
	}
}

// applyLocal applies an operation this client authored to its own mirror
// immediately (optimistic local echo) and queues it as pending until the
// server acknowledges it.
func (c *ClientSessionState) applyLocal(op Operation) {
	c.mirror.apply(op)
	c.pendingOperations = append(c.pendingOperations, op)
}

// HandleServerAck removes the acknowledged operation from the pending
// queue and advances the client's known server sequence. An ack for an
// operation id not found pending is ignored.
func (c *ClientSessionState) HandleServerAck(operationID string, serverSequence uint64) {
	found := false
	kept := c.pendingOperations[:0]
	for _, pending := range c.pendingOperations {
		if pending.ID != operationID {
			kept = append(kept, pending)
		} else {
			found = true
		}
	}
	c.pendingOperations = kept
	if found {
		c.lastServerSequence = serverSequence
	}
}

// HandleRemoteOperation transforms an operation broadcast by the server
// against every operation this client still has pending (in submission
// order, Left side so the already-committed remote operation keeps
// priority over the local unacknowledged ones), applies the result to the
// local mirror, and advances the
// known server sequence. It returns the transformed operation so a caller
// can, for example, animate the remote change.
func (c *ClientSessionState) HandleRemoteOperation(op Operation) Operation {
	transformed := op
	for _, pending := range c.pendingOperations {
		transformed = Transform(transformed, pending, Left)
	}
	c.mirror.apply(transformed)
	if transformed.ServerSequence > c.lastServerSequence {
		c.lastServerSequence = transformed.ServerSequence
	}
	return transformed
}

// SyncWithServerState replaces the local mirror wholesale with a server
// snapshot, advances the known server sequence to match it, and drops any
// pending operation the snapshot shows the server has already folded in.
func (c *ClientSessionState) SyncWithServerState(snap Snapshot) {
	strokes := make(map[string]*Stroke, len(snap.Strokes))
	for id, s := range snap.Strokes {
		copied := s
		strokes[id] = &copied
	}
	c.mirror = canvasMirror{
		strokes:        strokes,
		history:        append([]Operation(nil), snap.History...),
		serverSequence: snap.ServerSequence,
	}
	c.lastServerSequence = snap.ServerSequence

	known := make(map[string]bool, len(snap.History))
	for _, op := range snap.History {
		known[op.ID] = true
	}
	kept := c.pendingOperations[:0]
	for _, pending := range c.pendingOperations {
		if !known[pending.ID] {
			kept = append(kept, pending)
		}
	}
	c.pendingOperations = kept
}

// GetVisibleStrokes returns the strokes this client should paint, in
// history order, skipping deleted and neutralized ones.
func (c *ClientSessionState) GetVisibleStrokes() []Stroke {
	return c.mirror.visibleStrokes()
}

// GetUndoableOperations returns this client's own DrawStroke operations
// that are still eligible to be undone: authored by this client, not a
// no-op, carrying actual points, and whose stroke still exists and isn't
// already deleted.
func (c *ClientSessionState) GetUndoableOperations() []Operation {
	var undoable []Operation
	for _, op := range c.mirror.history {
		if op.ClientID != c.clientID || op.Kind.Kind != KindDrawStroke || op.Kind.IsNoop() {
			continue
		}
		if len(op.Kind.Points) == 0 {
			continue
		}
		stroke, ok := c.mirror.strokes[op.Kind.StrokeID]
		if !ok || stroke.Deleted {
			continue
		}
		undoable = append(undoable, op)
	}
	return undoable
}

// CanUndo reports whether GetUndoableOperations would return anything.
func (c *ClientSessionState) CanUndo() bool {
	return len(c.GetUndoableOperations()) > 0
}

// GetPendingOperations returns the operations sent but not yet
// acknowledged by the server, oldest first.
func (c *ClientSessionState) GetPendingOperations() []Operation {
	return append([]Operation(nil), c.pendingOperations...)
}

// generateStrokeID derives a stroke id from this client's identity and
// its next client sequence number, so ids are unique per client without a
// round trip to the server.
func (c *ClientSessionState) generateStrokeID() string {
	return fmt.Sprintf("%s_%d", c.clientID, c.clientSequence+1)
}
