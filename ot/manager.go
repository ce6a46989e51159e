package ot

import "sync"

// RoomManager is the server-wide registry of rooms. It owns only the OT
// semantics of each room; which websocket connections are attached to
// which room is tracked separately by the transport layer, which is free
// to evict or fan out independently of this registry.
type RoomManager struct {
	mu    sync.RWMutex
	rooms map[string]*RoomState
}

// NewRoomManager returns an empty registry.
func NewRoomManager() *RoomManager {
	return &RoomManager{rooms: make(map[string]*RoomState)}
}

// GetOrCreate returns the room for roomID, creating it on first use.
func (m *RoomManager) GetOrCreate(roomID string) *RoomState {
	m.mu.RLock()
	room, ok := m.rooms[roomID]
	m.mu.RUnlock()
	if ok {
		return room
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if room, ok := m.rooms[roomID]; ok {
		return room
	}
	room = NewRoomState()
	m.rooms[roomID] = room
	return room
}

// Submit routes an incoming operation to its room's Ingest, creating the
// room if this is the first operation ever submitted to it.
func (m *RoomManager) Submit(roomID string, op Operation) Operation {
	return m.GetOrCreate(roomID).Ingest(op)
}

// Snapshot returns the current state of roomID, or false if the room has
// never been created.
func (m *RoomManager) Snapshot(roomID string) (Snapshot, bool) {
	m.mu.RLock()
	room, ok := m.rooms[roomID]
	m.mu.RUnlock()
	if !ok {
		return Snapshot{}, false
	}
	return room.Snapshot(), true
}

// OperationsSince returns the operations roomID has committed after since,
// or false if the room is unknown or the range has already been trimmed
// out of history (the caller should fall back to Snapshot).
func (m *RoomManager) OperationsSince(roomID string, since uint64) ([]Operation, bool) {
	m.mu.RLock()
	room, ok := m.rooms[roomID]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return room.OperationsSince(since)
}

// RoomIDs returns the ids of every room currently tracked.
func (m *RoomManager) RoomIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.rooms))
	for id := range m.rooms {
		ids = append(ids, id)
	}
	return ids
}

// Remove evicts a room from the registry entirely. Callers should only do
// this once they know no client remains attached to it.
func (m *RoomManager) Remove(roomID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rooms, roomID)
}
