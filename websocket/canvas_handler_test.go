package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"whiteboard-sync/compression"
	"whiteboard-sync/ot"
	"whiteboard-sync/recovery"
	"whiteboard-sync/spatial"
)

func newTestHub(rooms *ot.RoomManager, idx *spatial.Index, cm *compression.Manager, rec *recovery.Recovery) *Hub {
	return &Hub{
		rooms:              make(map[string]map[*Client]bool),
		roomManager:        rooms,
		spatialIndex:       idx,
		compressionManager: cm,
		recovery:           rec,
	}
}

func newTestClient(roomID, userID string) *Client {
	return &Client{roomID: roomID, userID: userID, send: make(chan []byte, 8)}
}

func decode(t *testing.T, raw []byte, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(raw, v); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
}

func TestHandleSubmitOperationAcksAndBroadcasts(t *testing.T) {
	rooms := ot.NewRoomManager()
	idx := spatial.NewIndex()
	h := newTestHub(rooms, idx, nil, nil)

	sender := newTestClient("room1", "alice")
	peer := newTestClient("room1", "bob")
	h.rooms["room1"] = map[*Client]bool{sender: true, peer: true}

	op := ot.Operation{
		ID:             ot.NewOperationID("alice", 1),
		ClientID:       "alice",
		ClientSequence: 1,
		Kind:           ot.DrawStroke("s1", []ot.Point{{X: 1, Y: 1}}, "red", 2),
	}
	msg := submitOperationMessage{Type: "submit_operation", Data: op}
	raw, _ := json.Marshal(msg)

	h.handleSubmitOperation(sender, raw)

	var ack operationAckPayload
	decode(t, <-sender.send, &ack)
	if ack.OperationID != op.ID || ack.ServerSequence != 1 {
		t.Fatalf("unexpected ack: %+v", ack)
	}

	var remote remoteOperationPayload
	decode(t, <-peer.send, &remote)
	if remote.Operation.Kind.StrokeID != "s1" {
		t.Fatalf("expected peer to receive the transformed stroke, got %+v", remote)
	}

	select {
	case extra := <-sender.send:
		t.Fatalf("sender should not receive its own broadcast, got %s", extra)
	default:
	}

	results, err := idx.QueryViewport("room1", spatial.BoundingBox{X1: -10, Y1: -10, X2: 10, Y2: 10})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(results) != 1 || results[0].Stroke.ID != "s1" {
		t.Fatalf("expected the drawn stroke to be indexed, got %+v", results)
	}
}

func TestHandleSubmitOperationFeedsCompressionManager(t *testing.T) {
	rooms := ot.NewRoomManager()
	cm := compression.NewManager(1, time.Hour)
	h := newTestHub(rooms, spatial.NewIndex(), cm, nil)

	client := newTestClient("room1", "alice")
	h.rooms["room1"] = map[*Client]bool{client: true}

	op := ot.Operation{ID: "a_1", ClientID: "alice", ClientSequence: 1, Kind: ot.DrawStroke("s1", []ot.Point{{X: 0, Y: 0}}, "red", 2)}
	raw, _ := json.Marshal(submitOperationMessage{Type: "submit_operation", Data: op})

	h.handleSubmitOperation(client, raw)
	<-client.send // drain the ack

	stats := cm.Stats()
	if stats["lifetime_operations"].(int64) != 1 {
		t.Fatalf("expected compression manager to have observed the submitted operation, got %+v", stats)
	}
}

func TestHandleRequestStateWithoutPriorSequenceSendsFullSnapshot(t *testing.T) {
	rooms := ot.NewRoomManager()
	rooms.Submit("room1", ot.Operation{ID: "a_1", ClientID: "alice", ClientSequence: 1, Kind: ot.DrawStroke("s1", []ot.Point{{X: 0, Y: 0}}, "red", 2)})

	h := newTestHub(rooms, nil, nil, nil)
	client := newTestClient("room1", "alice")
	h.rooms["room1"] = map[*Client]bool{client: true}

	raw, _ := json.Marshal(requestStateMessage{Type: "request_state"})
	h.handleRequestState(client, raw)

	var sync stateSyncPayload
	decode(t, <-client.send, &sync)
	if sync.Type != "state_sync" {
		t.Fatalf("expected a state_sync payload, got %+v", sync)
	}
}

func TestHandleRequestStateWithPriorSequenceUsesRecovery(t *testing.T) {
	rooms := ot.NewRoomManager()
	a := rooms.Submit("room1", ot.Operation{ID: "a_1", ClientID: "alice", ClientSequence: 1, Kind: ot.DrawStroke("s1", []ot.Point{{X: 0, Y: 0}}, "red", 2)})
	rooms.Submit("room1", ot.Operation{ID: "a_2", ClientID: "alice", ClientSequence: 2, Kind: ot.DrawStroke("s2", []ot.Point{{X: 1, Y: 1}}, "red", 2)})

	rec := recovery.New(rooms, nil)
	h := newTestHub(rooms, nil, nil, rec)
	client := newTestClient("room1", "alice")
	h.rooms["room1"] = map[*Client]bool{client: true}

	raw, _ := json.Marshal(requestStateMessage{Type: "request_state", LastServerSequence: a.ServerSequence})
	h.handleRequestState(client, raw)

	var resp resyncPayload
	decode(t, <-client.send, &resp)
	if resp.Type != "resync" || !resp.RoomExists || resp.SnapshotRequired {
		t.Fatalf("unexpected resync response: %+v", resp)
	}
	if len(resp.MissedOperations) != 1 {
		t.Fatalf("expected exactly 1 missed operation, got %d", len(resp.MissedOperations))
	}
}

func TestHandlePingRepliesWithPong(t *testing.T) {
	h := newTestHub(nil, nil, nil, nil)
	client := newTestClient("room1", "alice")

	h.handlePing(client, nil)

	var pong pongPayload
	decode(t, <-client.send, &pong)
	if pong.Type != "pong" {
		t.Fatalf("expected a pong payload, got %+v", pong)
	}
}

func TestIndexStrokeRemovesOnDeleteAndClear(t *testing.T) {
	rooms := ot.NewRoomManager()
	idx := spatial.NewIndex()
	h := newTestHub(rooms, idx, nil, nil)

	draw := rooms.Submit("room1", ot.Operation{ID: "a_1", ClientID: "alice", ClientSequence: 1, Kind: ot.DrawStroke("s1", []ot.Point{{X: 0, Y: 0}}, "red", 2)})
	h.indexStroke("room1", draw)

	del := rooms.Submit("room1", ot.Operation{ID: "a_2", ClientID: "alice", ClientSequence: 2, Kind: ot.DeleteStroke("s1")})
	h.indexStroke("room1", del)

	results, err := idx.QueryViewport("room1", spatial.BoundingBox{X1: -10, Y1: -10, X2: 10, Y2: 10})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected deleted stroke removed from index, got %+v", results)
	}

	draw2 := rooms.Submit("room1", ot.Operation{ID: "a_3", ClientID: "alice", ClientSequence: 3, ServerSequence: del.ServerSequence, Kind: ot.DrawStroke("s2", []ot.Point{{X: 1, Y: 1}}, "red", 2)})
	h.indexStroke("room1", draw2)

	clr := rooms.Submit("room1", ot.Operation{ID: "a_4", ClientID: "alice", ClientSequence: 4, ServerSequence: draw2.ServerSequence, Kind: ot.Clear()})
	h.indexStroke("room1", clr)

	results, err = idx.QueryViewport("room1", spatial.BoundingBox{X1: -10, Y1: -10, X2: 10, Y2: 10})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected clear to remove every indexed stroke in the room, got %+v", results)
	}
}
