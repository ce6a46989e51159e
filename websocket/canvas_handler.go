package websocket

import (
	"encoding/json"
	"log"

	"whiteboard-sync/ot"
	"whiteboard-sync/recovery"
)

// handleSubmitOperation ingests a client's operation through the room's OT
// engine, acks it to the sender, and broadcasts the transformed result to
// everyone else in the room.
func (h *Hub) handleSubmitOperation(client *Client, message []byte) {
	var msg submitOperationMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		log.Printf("❌ Error unmarshaling submit_operation: %v", err)
		return
	}

	if h.roomManager == nil {
		h.sendToClient(client, errorPayload{Type: "error", Message: "room manager unavailable"})
		return
	}

	transformed := h.roomManager.Submit(client.roomID, msg.Data)

	h.sendToClient(client, operationAckPayload{
		Type:           "operation_ack",
		OperationID:    transformed.ID,
		ServerSequence: transformed.ServerSequence,
	})

	h.indexStroke(client.roomID, transformed)
	if h.canvasService != nil {
		h.canvasService.MarkPendingChanges(client.roomID)
	}
	if h.compressionManager != nil {
		h.compressionManager.Submit(client.roomID, transformed)
	}

	payload, err := json.Marshal(remoteOperationPayload{Type: "remote_operation", Operation: transformed})
	if err != nil {
		log.Printf("❌ Error marshaling remote_operation: %v", err)
		return
	}
	h.broadcastToRoomExcept(client.roomID, client.userID, &BroadcastMessage{RoomID: client.roomID, Payload: payload})
}

// indexStroke keeps the spatial index in step with a draw/delete operation's
// effect on its stroke, so viewport queries stay fresh without re-scanning
// the room's whole history.
func (h *Hub) indexStroke(roomID string, op ot.Operation) {
	if h.spatialIndex == nil || h.roomManager == nil {
		return
	}
	switch op.Kind.Kind {
	case ot.KindDrawStroke:
		if op.Kind.IsNoop() {
			return
		}
		room := h.roomManager.GetOrCreate(roomID)
		for _, s := range room.VisibleStrokes() {
			if s.ID == op.Kind.StrokeID {
				h.spatialIndex.Insert(roomID, s)
				return
			}
		}
	case ot.KindDeleteStroke:
		h.spatialIndex.Remove(roomID, op.Kind.StrokeID)
	case ot.KindClear:
		h.spatialIndex.ClearRoom(roomID)
	}
}

// handleRequestState answers an explicit resync request. When the client
// reports a last known server sequence, it is resolved through recovery as
// either a replay of missed operations or a full snapshot if history has
// been trimmed past that point; otherwise a full snapshot is always sent.
func (h *Hub) handleRequestState(client *Client, message []byte) {
	if h.roomManager == nil {
		return
	}

	var msg requestStateMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		log.Printf("❌ Error unmarshaling request_state: %v", err)
		return
	}

	if msg.LastServerSequence == 0 || h.recovery == nil {
		snap := h.roomManager.GetOrCreate(client.roomID).Snapshot()
		h.sendToClient(client, stateSyncPayload{Type: "state_sync", Snapshot: snap})
		return
	}

	resp, err := h.recovery.Resync(recovery.Request{
		RoomID:             client.roomID,
		UserID:             client.userID,
		LastServerSequence: msg.LastServerSequence,
		SessionID:          msg.SessionID,
	})
	if err != nil {
		log.Printf("❌ Error resolving resync for room %s: %v", client.roomID, err)
		h.sendToClient(client, errorPayload{Type: "error", Message: "resync failed"})
		return
	}

	h.sendToClient(client, resyncPayload{
		Type:             "resync",
		RoomExists:       resp.RoomExists,
		SnapshotRequired: resp.SnapshotRequired,
		MissedOperations: resp.MissedOperations,
		Snapshot:         resp.Snapshot,
		Message:          resp.Message,
	})

	if h.sessionManager != nil {
		if newSeq := latestSequence(resp); newSeq > msg.LastServerSequence {
			if err := h.sessionManager.UpdateLastServerSequence(client.userID, newSeq); err != nil {
				log.Printf("⚠️ failed to persist resync progress for %s: %v", client.userID, err)
			}
		}
	}
}

// latestSequence reports the highest server_sequence a resync response
// brought the client up to, whether via replay or a fresh snapshot.
func latestSequence(resp *recovery.Response) uint64 {
	if resp.Snapshot != nil {
		return resp.Snapshot.ServerSequence
	}
	highest := uint64(0)
	for _, op := range resp.MissedOperations {
		if op.ServerSequence > highest {
			highest = op.ServerSequence
		}
	}
	return highest
}

// handleSaveCanvas persists the room's current snapshot, renders its
// visible strokes as an SVG export, optionally uploads it to object
// storage, and notifies the room the save completed.
func (h *Hub) handleSaveCanvas(client *Client, message []byte) {
	if h.roomManager == nil || h.canvasService == nil {
		h.sendToClient(client, errorPayload{Type: "error", Message: "canvas persistence unavailable"})
		return
	}

	room := h.roomManager.GetOrCreate(client.roomID)
	snap := room.Snapshot()
	visible := room.VisibleStrokes()

	state, svg, err := h.canvasService.SaveSnapshot(client.roomID, snap, visible, client.userID)
	if err != nil {
		log.Printf("❌ Error saving canvas: %v", err)
		h.sendToClient(client, errorPayload{Type: "error", Message: "failed to save canvas"})
		return
	}

	url := ""
	if h.s3 != nil {
		key, err := h.s3.SaveCanvasSVG(client.roomID, []byte(svg))
		if err != nil {
			log.Printf("⚠️ failed to upload canvas export to object storage: %v", err)
		} else {
			url = key
		}
	}

	payload, err := json.Marshal(canvasSavedPayload{Type: "canvas_saved", URL: url})
	if err != nil {
		log.Printf("❌ Error marshaling canvas_saved: %v", err)
		return
	}

	log.Printf("✅ Canvas saved: room=%s, version=%d, by=%s", client.roomID, state.Version, client.userID)
	h.broadcast <- &BroadcastMessage{RoomID: client.roomID, Payload: payload}
}

// handlePing answers a client keepalive with a pong.
func (h *Hub) handlePing(client *Client, message []byte) {
	h.sendToClient(client, pongPayload{Type: "pong"})
}

func (h *Hub) sendToClient(client *Client, message interface{}) {
	messageJSON, err := json.Marshal(message)
	if err != nil {
		log.Printf("❌ Error marshaling message: %v", err)
		return
	}

	select {
	case client.send <- messageJSON:
	default:
		close(client.send)
		if clients, ok := h.rooms[client.roomID]; ok {
			delete(clients, client)
		}
	}
}

func (h *Hub) broadcastToRoomExcept(roomID, excludeUserID string, message *BroadcastMessage) {
	if clients, ok := h.rooms[roomID]; ok {
		for client := range clients {
			if client.userID != excludeUserID {
				select {
				case client.send <- message.Payload:
				default:
					close(client.send)
					delete(clients, client)
				}
			}
		}
	}
}
