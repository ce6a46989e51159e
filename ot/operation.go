// Package ot implements the operational-transform synchronization engine
// shared by the server's room state and each client's local session state.
package ot

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Point is a single sampled position within a stroke.
type Point struct {
	X        float64  `json:"x"`
	Y        float64  `json:"y"`
	Pressure *float64 `json:"pressure,omitempty"`
}

// Stroke is an atomic brush stroke. Once created it is never removed from
// a RoomState's stroke map; deletion is represented by flipping Deleted.
type Stroke struct {
	ID        string    `json:"id"`
	Points    []Point   `json:"points"`
	Color     string    `json:"color"`
	BrushSize int       `json:"brush_size"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	Deleted   bool      `json:"deleted"`
}

// KindTag discriminates the closed set of operation variants.
type KindTag string

const (
	KindDrawStroke   KindTag = "draw_stroke"
	KindDeleteStroke KindTag = "delete_stroke"
	KindClear        KindTag = "clear"
	KindUndo         KindTag = "undo"
	KindRedo         KindTag = "redo"
)

// noopStrokePrefix marks a DrawStroke that has been neutralized by
// transformation. A no-op is encoded as a DrawStroke with this id prefix,
// an empty point list, the sentinel color, and zero brush size.
const noopStrokePrefix = "noop_"

const noopColor = "transparent"

// OperationKind is the tagged payload of an Operation. Exactly one of the
// Kind-specific fields is meaningful, selected by Kind.
type OperationKind struct {
	Kind TargetKind

	// DrawStroke
	StrokeID  string
	Points    []Point
	Color     string
	BrushSize int

	// DeleteStroke reuses StrokeID above.

	// Undo / Redo
	TargetOperationID string
}

// TargetKind is the operation discriminator.
type TargetKind = KindTag

// DrawStroke builds a DrawStroke operation kind.
func DrawStroke(strokeID string, points []Point, color string, brushSize int) OperationKind {
	return OperationKind{Kind: KindDrawStroke, StrokeID: strokeID, Points: points, Color: color, BrushSize: brushSize}
}

// DeleteStroke builds a DeleteStroke operation kind.
func DeleteStroke(strokeID string) OperationKind {
	return OperationKind{Kind: KindDeleteStroke, StrokeID: strokeID}
}

// Clear builds a Clear operation kind.
func Clear() OperationKind {
	return OperationKind{Kind: KindClear}
}

// Undo builds an Undo operation kind targeting a prior committed operation.
func Undo(targetOperationID string) OperationKind {
	return OperationKind{Kind: KindUndo, TargetOperationID: targetOperationID}
}

// Redo builds a Redo operation kind targeting the same committed operation
// an earlier Undo targeted, re-applying its effect.
func Redo(targetOperationID string) OperationKind {
	return OperationKind{Kind: KindRedo, TargetOperationID: targetOperationID}
}

// noop builds the sentinel no-op DrawStroke for the given operation id.
func noop(operationID string) OperationKind {
	return OperationKind{
		Kind:     KindDrawStroke,
		StrokeID: noopStrokePrefix + operationID,
		Points:   nil,
		Color:    noopColor,
	}
}

// IsNoop reports whether this kind is the reserved no-op sentinel.
func (k OperationKind) IsNoop() bool {
	return k.Kind == KindDrawStroke && strings.HasPrefix(k.StrokeID, noopStrokePrefix)
}

// wireOperationKind is the tagged-enum wire shape for OperationKind: one
// "type" discriminator plus only the fields that variant carries.
type wireOperationKind struct {
	Type              string  `json:"type"`
	StrokeID          string  `json:"stroke_id,omitempty"`
	Points            []Point `json:"points,omitempty"`
	Color             string  `json:"color,omitempty"`
	BrushSize         int     `json:"brush_size,omitempty"`
	TargetOperationID string  `json:"target_operation_id,omitempty"`
}

// MarshalJSON renders OperationKind as a tagged variant rather than a flat
// struct with unused fields, so the wire format matches a closed enum.
func (k OperationKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireOperationKind{
		Type:              string(k.Kind),
		StrokeID:          k.StrokeID,
		Points:            k.Points,
		Color:             k.Color,
		BrushSize:         k.BrushSize,
		TargetOperationID: k.TargetOperationID,
	})
}

// UnmarshalJSON parses the tagged variant produced by MarshalJSON.
func (k *OperationKind) UnmarshalJSON(data []byte) error {
	var wire wireOperationKind
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	k.Kind = KindTag(wire.Type)
	k.StrokeID = wire.StrokeID
	k.Points = wire.Points
	k.Color = wire.Color
	k.BrushSize = wire.BrushSize
	k.TargetOperationID = wire.TargetOperationID
	return nil
}

// Operation is a single intent packaged for transport. Identity and causal
// metadata (ID, ClientID, ClientSequence, Timestamp) are frozen at creation;
// only ServerSequence is ever rewritten, and only by the server.
type Operation struct {
	ID             string        `json:"id"`
	ClientID       string        `json:"client_id"`
	ClientSequence uint64        `json:"client_sequence"`
	ServerSequence uint64        `json:"server_sequence"`
	Kind           OperationKind `json:"kind"`
	Timestamp      time.Time     `json:"timestamp"`
}

// NewOperationID constructs the recommended stable operation identifier.
func NewOperationID(clientID string, clientSequence uint64) string {
	return fmt.Sprintf("%s_%d", clientID, clientSequence)
}

// clone returns a value copy of op with its own Points slice, so that
// transformation never mutates the caller's operation in place.
func (op Operation) clone() Operation {
	cloned := op
	if op.Kind.Points != nil {
		cloned.Kind.Points = append([]Point(nil), op.Kind.Points...)
	}
	return cloned
}
