package websocket

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/redis/go-redis/v9"

	"whiteboard-sync/compression"
	"whiteboard-sync/models"
	"whiteboard-sync/ot"
	"whiteboard-sync/recovery"
	"whiteboard-sync/services"
	"whiteboard-sync/spatial"
	"whiteboard-sync/storage"
)

type Hub struct {
	rooms              map[string]map[*Client]bool
	register           chan *Client
	unregister         chan *Client
	broadcast          chan *BroadcastMessage
	userService        *services.UserService
	sessionManager     *models.SessionManager
	adminService       *services.AdminService
	roomService        *RoomService
	canvasService      *services.CanvasService
	roomManager        *ot.RoomManager
	spatialIndex       *spatial.Index
	compressionManager *compression.Manager
	recovery           *recovery.Recovery
	s3                 *storage.S3Client
}

func NewHub(db *sql.DB, redis *redis.Client, us *services.UserService, sm *models.SessionManager, as *services.AdminService, cs *services.CanvasService, rooms *ot.RoomManager, idx *spatial.Index, cm *compression.Manager, rec *recovery.Recovery, s3 *storage.S3Client) *Hub {
	return &Hub{
		rooms:              make(map[string]map[*Client]bool),
		register:           make(chan *Client),
		unregister:         make(chan *Client),
		broadcast:          make(chan *BroadcastMessage),
		userService:        us,
		sessionManager:     sm,
		adminService:       as,
		roomService:        NewRoomService(db),
		canvasService:      cs,
		roomManager:        rooms,
		spatialIndex:       idx,
		compressionManager: cm,
		recovery:           rec,
		s3:                 s3,
	}
}

// getRoomMembers returns a formatted string of all members in a room
func (h *Hub) getRoomMembers(roomID string) string {
	if clients, ok := h.rooms[roomID]; ok {
		var members []string
		for client := range clients {
			members = append(members, fmt.Sprintf("%s", client.userID))
		}
		return strings.Join(members, ", ")
	}
	return "no members"
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			if _, ok := h.rooms[client.roomID]; !ok {
				h.rooms[client.roomID] = make(map[*Client]bool)
				log.Printf("📝 Created new room: %s", client.roomID)
			}
			h.rooms[client.roomID][client] = true

			log.Printf("👋 User %s joined room %s", client.userID, client.roomID)
			log.Printf("👥 Current room members [%s]: %s",
				client.roomID,
				h.getRoomMembers(client.roomID))

			h.sendStateSync(client)

		case client := <-h.unregister:
			if _, ok := h.rooms[client.roomID]; ok {
				if _, ok := h.rooms[client.roomID][client]; ok {
					delete(h.rooms[client.roomID], client)
					close(client.send)

					log.Printf("👋 User %s left room %s", client.userID, client.roomID)
					if len(h.rooms[client.roomID]) > 0 {
						log.Printf("👥 Remaining members in room [%s]: %s",
							client.roomID,
							h.getRoomMembers(client.roomID))
					}

					if len(h.rooms[client.roomID]) == 0 {
						delete(h.rooms, client.roomID)
						log.Printf("🗑️ Removed empty room: %s", client.roomID)
					}

					go h.handleUserLeave(client.conn, client.userID, client.roomID)
				}
			}

		case message := <-h.broadcast:
			if clients, ok := h.rooms[message.RoomID]; ok {
				var msgData map[string]interface{}
				if err := json.Unmarshal(message.Payload, &msgData); err == nil {
					msgType, _ := msgData["type"].(string)
					switch msgType {
					case "user_joined", "user_left", "admin_changed":
						log.Printf("👥 %s broadcast to room %s", msgType, message.RoomID)
					case "remote_operation":
						log.Printf("✏️  remote operation broadcast to room %s", message.RoomID)
					case "canvas_saved":
						log.Printf("💾 canvas_saved broadcast to room %s", message.RoomID)
					}
				}

				for client := range clients {
					select {
					case client.send <- message.Payload:
					default:
						close(client.send)
						delete(clients, client)
					}
				}
			} else {
				log.Printf("❌ Attempted to broadcast to non-existent room: %s", message.RoomID)
			}
		}
	}
}

// sendStateSync pushes the room's current snapshot to a newly registered
// client, so it has something to paint before any further operation arrives.
func (h *Hub) sendStateSync(client *Client) {
	if h.roomManager == nil {
		return
	}
	snap := h.roomManager.GetOrCreate(client.roomID).Snapshot()
	h.sendToClient(client, stateSyncPayload{Type: "state_sync", Snapshot: snap})
}
