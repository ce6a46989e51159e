package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"whiteboard-sync/ot"
)

// CanvasState is a persisted save point: the room's full operation history
// and derived stroke table at the moment it was saved.
type CanvasState struct {
	ID       string      `json:"id" db:"id"`
	RoomID   string      `json:"room_id" db:"room_id"`
	Snapshot ot.Snapshot `json:"snapshot"`
	SVGKey   string      `json:"svg_key,omitempty"`
	SavedAt  time.Time   `json:"saved_at" db:"saved_at"`
	Version  int         `json:"version" db:"version"`
	SavedBy  string      `json:"saved_by" db:"saved_by"`
}

// CanvasService persists room snapshots (Postgres) and caches the latest
// one per room (Redis), and renders the save-time SVG export.
type CanvasService struct {
	db    *sql.DB
	redis *redis.Client
}

func NewCanvasService(db *sql.DB, redis *redis.Client) *CanvasService {
	return &CanvasService{db: db, redis: redis}
}

// SaveSnapshot persists a room's current snapshot as a new version, caches
// it in Redis, and returns the rendered SVG alongside the saved record.
func (cs *CanvasService) SaveSnapshot(roomID string, snap ot.Snapshot, visibleStrokes []ot.Stroke, savedBy string) (*CanvasState, string, error) {
	version, err := cs.getNextVersion(roomID)
	if err != nil {
		return nil, "", fmt.Errorf("get next version: %w", err)
	}

	state := &CanvasState{
		ID:       fmt.Sprintf("canvas_%s_v%d", roomID, version),
		RoomID:   roomID,
		Snapshot: snap,
		SavedAt:  time.Now(),
		Version:  version,
		SavedBy:  savedBy,
	}

	snapshotJSON, err := json.Marshal(snap)
	if err != nil {
		return nil, "", fmt.Errorf("marshal snapshot: %w", err)
	}

	_, err = cs.db.Exec(`
		INSERT INTO canvas_states (id, room_id, canvas_data, saved_at, version, saved_by)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, state.ID, state.RoomID, snapshotJSON, state.SavedAt, state.Version, state.SavedBy)
	if err != nil {
		return nil, "", fmt.Errorf("save to database: %w", err)
	}

	cs.cacheLatestState(roomID, state)
	cs.clearPendingChanges(roomID)

	svg := ot.ExportSVG(visibleStrokes)
	log.Printf("💾 canvas saved: room=%s, version=%d, by=%s", roomID, version, savedBy)

	return state, svg, nil
}

// LoadLatest returns the most recently saved snapshot for roomID, or nil if
// the room has never been saved.
func (cs *CanvasService) LoadLatest(roomID string) (*CanvasState, error) {
	if cached, err := cs.getFromCache(roomID); err == nil && cached != nil {
		return cached, nil
	}

	var state CanvasState
	var snapshotJSON []byte
	err := cs.db.QueryRow(`
		SELECT id, room_id, canvas_data, saved_at, version, COALESCE(saved_by, '') as saved_by
		FROM canvas_states
		WHERE room_id = $1
		ORDER BY version DESC
		LIMIT 1
	`, roomID).Scan(&state.ID, &state.RoomID, &snapshotJSON, &state.SavedAt, &state.Version, &state.SavedBy)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if len(snapshotJSON) > 0 {
		if err := json.Unmarshal(snapshotJSON, &state.Snapshot); err != nil {
			return nil, fmt.Errorf("unmarshal snapshot: %w", err)
		}
	}

	cs.cacheLatestState(roomID, &state)
	return &state, nil
}

func (cs *CanvasService) getNextVersion(roomID string) (int, error) {
	var version int
	err := cs.db.QueryRow(`
		SELECT COALESCE(MAX(version), 0) + 1 FROM canvas_states WHERE room_id = $1
	`, roomID).Scan(&version)
	return version, err
}

func (cs *CanvasService) cacheLatestState(roomID string, state *CanvasState) {
	key := fmt.Sprintf("room:%s:latest_canvas", roomID)
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return
	}
	cs.redis.Set(context.Background(), key, stateJSON, time.Hour)
}

func (cs *CanvasService) getFromCache(roomID string) (*CanvasState, error) {
	key := fmt.Sprintf("room:%s:latest_canvas", roomID)
	result, err := cs.redis.Get(context.Background(), key).Result()
	if err != nil {
		return nil, err
	}
	var state CanvasState
	if err := json.Unmarshal([]byte(result), &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// MarkPendingChanges flags a room as having unsaved operations, for the
// auto-save sweep to pick up.
func (cs *CanvasService) MarkPendingChanges(roomID string) {
	key := fmt.Sprintf("room:%s:changes_pending", roomID)
	cs.redis.Set(context.Background(), key, "true", 35*time.Second)
}

func (cs *CanvasService) clearPendingChanges(roomID string) {
	key := fmt.Sprintf("room:%s:changes_pending", roomID)
	cs.redis.Del(context.Background(), key)
}

// HasPendingChanges reports whether MarkPendingChanges was called for
// roomID more recently than the last save.
func (cs *CanvasService) HasPendingChanges(roomID string) bool {
	key := fmt.Sprintf("room:%s:changes_pending", roomID)
	result, _ := cs.redis.Get(context.Background(), key).Result()
	return result == "true"
}

// StartAutoSave periodically saves every room with pending changes, using
// roomManager as the source of truth for its current state.
func (cs *CanvasService) StartAutoSave(rooms *ot.RoomManager, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		for range ticker.C {
			saved := 0
			for _, roomID := range rooms.RoomIDs() {
				if !cs.HasPendingChanges(roomID) {
					continue
				}
				snap, ok := rooms.Snapshot(roomID)
				if !ok {
					continue
				}
				room := rooms.GetOrCreate(roomID)
				if _, _, err := cs.SaveSnapshot(roomID, snap, room.VisibleStrokes(), "auto-save"); err != nil {
					log.Printf("❌ auto-save failed for room %s: %v", roomID, err)
					continue
				}
				saved++
			}
			if saved > 0 {
				log.Printf("🔄 auto-saved %d rooms", saved)
			}
		}
	}()
	log.Printf("📸 canvas auto-save started (%v interval)", interval)
}
