package websocket

import (
	"database/sql"
	"log"

	"whiteboard-sync/ot"
)

// RoomService handles room-related logic
type RoomService struct {
	db *sql.DB
}

func NewRoomService(db *sql.DB) *RoomService {
	return &RoomService{db: db}
}

// CreateRoomIfNotExists ensures a room exists in the database
func (rs *RoomService) CreateRoomIfNotExists(roomID, adminUserID string) error {
	query := `
		INSERT INTO rooms (room_id, admin_user_id)
		VALUES ($1, $2)
		ON CONFLICT (room_id) DO NOTHING;
	`
	_, err := rs.db.Exec(query, roomID, adminUserID)
	if err != nil {
		log.Printf("Error ensuring room exists: %v", err)
	}
	return err
}

// IsFirstUser checks if this is the first user in the room
func (rs *RoomService) IsFirstUser(roomID string) bool {
	var count int
	err := rs.db.QueryRow("SELECT COUNT(*) FROM user_sessions WHERE room_id = $1", roomID).Scan(&count)
	if err != nil {
		log.Printf("Error checking if first user: %v", err)
		return true // Default to true on error
	}
	return count == 0
}

// Presence message types
type UserJoinMessage struct {
	Type        string `json:"type"`
	UserID      string `json:"user_id"`
	RoomID      string `json:"room_id"`
	DisplayName string `json:"display_name"`
}

type AdminTransferMessage struct {
	Type       string `json:"type"`
	RoomID     string `json:"room_id"`
	NewAdminID string `json:"new_admin_id"`
}

type UserLeaveMessage struct {
	Type   string `json:"type"`
	UserID string `json:"user_id"`
	RoomID string `json:"room_id"`
}

type BroadcastMessage struct {
	RoomID  string
	Payload []byte
}

// Canvas sync message envelopes. The client->server variants are
// SubmitOperation, RequestState, SaveCanvas, Ping; the server->client
// variants are OperationAck, RemoteOperation, StateSync, Resync,
// CanvasSaved, Error, Pong. Unknown message types are ignored rather than
// rejected.

type submitOperationMessage struct {
	Type string      `json:"type"`
	Data ot.Operation `json:"data"`
}

type requestStateMessage struct {
	Type               string `json:"type"`
	LastServerSequence uint64 `json:"last_server_sequence,omitempty"`
	SessionID          string `json:"session_id,omitempty"`
}

type resyncPayload struct {
	Type             string         `json:"type"`
	RoomExists       bool           `json:"room_exists"`
	SnapshotRequired bool           `json:"snapshot_required"`
	MissedOperations []ot.Operation `json:"missed_operations,omitempty"`
	Snapshot         *ot.Snapshot   `json:"snapshot,omitempty"`
	Message          string         `json:"message,omitempty"`
}

type saveCanvasMessage struct {
	Type string `json:"type"`
}

type operationAckPayload struct {
	Type           string `json:"type"`
	OperationID    string `json:"operation_id"`
	ServerSequence uint64 `json:"server_sequence"`
}

type remoteOperationPayload struct {
	Type      string      `json:"type"`
	Operation ot.Operation `json:"operation"`
}

type stateSyncPayload struct {
	Type     string     `json:"type"`
	Snapshot ot.Snapshot `json:"snapshot"`
}

type canvasSavedPayload struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type pongPayload struct {
	Type string `json:"type"`
}
