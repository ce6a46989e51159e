// Package recovery answers a reconnecting client's question "what did I
// miss": either the operations committed since its last known server
// sequence, or, if those have already been trimmed from history, a full
// snapshot to resynchronize from.
package recovery

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"whiteboard-sync/ot"
)

// Request is a client's resync request on reconnect.
type Request struct {
	RoomID               string `json:"room_id"`
	UserID               string `json:"user_id"`
	LastServerSequence   uint64 `json:"last_server_sequence"`
	SessionID            string `json:"session_id,omitempty"`
}

// Response answers a Request. For an existing room, SnapshotRequired selects
// whether Snapshot or MissedOperations (possibly empty) carries the answer;
// for an unknown room neither is populated.
type Response struct {
	RoomExists       bool           `json:"room_exists"`
	SnapshotRequired bool           `json:"snapshot_required"`
	MissedOperations []ot.Operation `json:"missed_operations,omitempty"`
	Snapshot         *ot.Snapshot   `json:"snapshot,omitempty"`
	Message          string         `json:"message,omitempty"`
}

// Recovery resolves client resync requests against the live room registry,
// and tracks user session bookkeeping in Postgres.
type Recovery struct {
	rooms *ot.RoomManager
	db    *sql.DB
}

// New returns a Recovery bound to rooms for OT state and db for session
// bookkeeping.
func New(rooms *ot.RoomManager, db *sql.DB) *Recovery {
	return &Recovery{rooms: rooms, db: db}
}

// Resync answers req: a replay of the missed operations when history still
// retains them, or a full snapshot when it has been trimmed past req's
// horizon. A room that was never created is reported, not treated as an
// error, since its absence is itself informative to the caller.
func (r *Recovery) Resync(req Request) (*Response, error) {
	missed, ok := r.rooms.OperationsSince(req.RoomID, req.LastServerSequence)
	if !ok {
		snap, exists := r.rooms.Snapshot(req.RoomID)
		if !exists {
			return &Response{RoomExists: false, Message: "room no longer exists"}, nil
		}
		return &Response{
			RoomExists:       true,
			SnapshotRequired: true,
			Snapshot:         &snap,
			Message:          "history trimmed past last known sequence; resynchronized with a full snapshot",
		}, nil
	}

	if req.SessionID != "" {
		if err := r.touchSession(req.RoomID, req.UserID, req.SessionID); err != nil {
			log.Printf("⚠️ failed to refresh session for %s: %v", req.UserID, err)
		}
	}

	message := fmt.Sprintf("recovered %d missed operations", len(missed))
	if len(missed) == 0 {
		message = "already up to date"
	}
	return &Response{
		RoomExists:       true,
		MissedOperations: missed,
		Message:          message,
	}, nil
}

// touchSession refreshes user_sessions.last_seen for userID, creating the
// row with sessionID as its connection identifier if this is the first
// resync seen for it. The schema matches the one models.SessionManager
// writes on join: user_id is the primary key, room_id is the caller-facing
// room string, not a foreign key into a separate rooms.id column.
func (r *Recovery) touchSession(roomID, userID, sessionID string) error {
	_, err := r.db.Exec(`
		INSERT INTO user_sessions (user_id, room_id, connection_id, last_seen)
		VALUES ($1, $2, $3, CURRENT_TIMESTAMP)
		ON CONFLICT (user_id) DO UPDATE SET
			last_seen = CURRENT_TIMESTAMP,
			connection_id = $3`,
		userID, roomID, sessionID,
	)
	return err
}

// CleanupExpiredSessions removes user sessions that have been idle past the
// cutoff. Room OT state has no such concept: it lives only as long as at
// least one client keeps the room registered with the transport layer.
func (r *Recovery) CleanupExpiredSessions(maxIdle time.Duration) error {
	result, err := r.db.Exec(`DELETE FROM user_sessions WHERE last_seen < NOW() - $1::interval`, maxIdle.String())
	if err != nil {
		return fmt.Errorf("cleanup user sessions: %w", err)
	}
	if n, _ := result.RowsAffected(); n > 0 {
		log.Printf("🧹 cleaned up %d expired user sessions", n)
	}
	return nil
}

// StartCleanupRoutine runs CleanupExpiredSessions on a fixed interval until
// the process exits.
func (r *Recovery) StartCleanupRoutine(interval, maxIdle time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for range ticker.C {
			if err := r.CleanupExpiredSessions(maxIdle); err != nil {
				log.Printf("❌ session cleanup failed: %v", err)
			}
		}
	}()
	log.Println("🕒 session cleanup routine started")
}
