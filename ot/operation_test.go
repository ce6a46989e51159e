package ot

import (
	"encoding/json"
	"testing"
	"time"
)

func TestOperationJSONRoundTrip(t *testing.T) {
	cases := []OperationKind{
		DrawStroke("s1", []Point{{X: 1, Y: 2}}, "red", 3),
		DeleteStroke("s1"),
		Clear(),
		Undo("op1"),
		Redo("op1"),
		noop("op1"),
	}

	for _, kind := range cases {
		original := Operation{
			ID:             "alice_1",
			ClientID:       "alice",
			ClientSequence: 1,
			ServerSequence: 2,
			Kind:           kind,
			Timestamp:      time.Unix(1700000000, 0).UTC(),
		}

		data, err := json.Marshal(original)
		if err != nil {
			t.Fatalf("marshal %s: %v", kind.Kind, err)
		}

		var decoded Operation
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("unmarshal %s: %v", kind.Kind, err)
		}

		if decoded.ID != original.ID || decoded.ClientID != original.ClientID ||
			decoded.Kind.Kind != original.Kind.Kind || decoded.Kind.StrokeID != original.Kind.StrokeID ||
			decoded.Kind.TargetOperationID != original.Kind.TargetOperationID {
			t.Fatalf("round trip mismatch for %s: got %+v, want %+v", kind.Kind, decoded, original)
		}
	}
}

func TestOperationJSONWireShapeIsTagged(t *testing.T) {
	op := Operation{ID: "a_1", ClientID: "a", Kind: Undo("target1")}
	data, err := json.Marshal(op)
	if err != nil {
		t.Fatal(err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	kind, ok := raw["kind"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected kind to be an object, got %T", raw["kind"])
	}
	if kind["type"] != "undo" || kind["target_operation_id"] != "target1" {
		t.Fatalf("expected tagged undo variant, got %+v", kind)
	}
	if _, present := kind["stroke_id"]; present {
		t.Fatalf("expected stroke_id omitted for a non-draw variant, got %+v", kind)
	}
}
