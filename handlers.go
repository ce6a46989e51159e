package main

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"whiteboard-sync/spatial"
)

// handleViewportQuery handles viewport-based stroke queries for efficient rendering
func (s *Server) handleViewportQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	roomID := r.URL.Query().Get("room")
	if roomID == "" {
		http.Error(w, "Room ID required", http.StatusBadRequest)
		return
	}

	x1Str := r.URL.Query().Get("x1")
	y1Str := r.URL.Query().Get("y1")
	x2Str := r.URL.Query().Get("x2")
	y2Str := r.URL.Query().Get("y2")

	if x1Str == "" || y1Str == "" || x2Str == "" || y2Str == "" {
		http.Error(w, "Viewport bounds (x1,y1,x2,y2) required", http.StatusBadRequest)
		return
	}

	x1, err1 := strconv.ParseFloat(x1Str, 64)
	y1, err2 := strconv.ParseFloat(y1Str, 64)
	x2, err3 := strconv.ParseFloat(x2Str, 64)
	y2, err4 := strconv.ParseFloat(y2Str, 64)

	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		http.Error(w, "Invalid viewport bounds", http.StatusBadRequest)
		return
	}

	viewport := spatial.BoundingBox{X1: x1, Y1: y1, X2: x2, Y2: y2}

	result, err := s.spatialIndex.QueryViewportWithMetrics(roomID, viewport)
	if err != nil {
		log.Printf("Viewport query error: %v", err)
		http.Error(w, "Query failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Query-Time-Ns", strconv.FormatInt(result.QueryTimeNs, 10))
	w.Header().Set("X-Result-Count", strconv.Itoa(result.ResultCount))

	json.NewEncoder(w).Encode(map[string]interface{}{
		"strokes":      result.Strokes,
		"query_time":   result.QueryTimeNs,
		"result_count": result.ResultCount,
		"viewport":     result.Viewport,
	})
}

// handleSpatialStats returns spatial index statistics
func (s *Server) handleSpatialStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.spatialIndex.Stats())
}

// handleCompressionStats returns operation-batch compression statistics
func (s *Server) handleCompressionStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.compressionManager.Stats())
}

// handleHealthCheck reports liveness of the database, cache, and OT registry.
func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := s.db.Ping(); err != nil {
		http.Error(w, "Database unhealthy", http.StatusServiceUnavailable)
		return
	}

	if _, err := s.redis.Ping(r.Context()).Result(); err != nil {
		http.Error(w, "Redis unhealthy", http.StatusServiceUnavailable)
		return
	}

	roomIDs := s.roomManager.RoomIDs()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":        "healthy",
		"spatial_index": s.spatialIndex.Stats(),
		"active_rooms":  len(roomIDs),
	})
}
