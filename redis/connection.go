package redis

import (
	"fmt"
	"os"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// Connect builds the client shared by presence (models.SessionManager),
// invite codes, and the room snapshot cache (services.CanvasService). All
// of it lives in one logical DB; REDIS_DB only matters for separating a
// dev instance from a test instance on the same server.
func Connect() (*redis.Client, error) {
    // Try REDIS_ADDR first (for docker-compose compatibility)
    addr := os.Getenv("REDIS_ADDR")
    if addr == "" {
        // Fallback to individual host/port
        host := os.Getenv("REDIS_HOST")
        port := os.Getenv("REDIS_PORT")
        if host != "" && port != "" {
            addr = fmt.Sprintf("%s:%s", host, port)
        } else {
            addr = "localhost:6379" // Default
        }
    }

    password := os.Getenv("REDIS_PASSWORD")

    db := 0
    if raw := os.Getenv("REDIS_DB"); raw != "" {
        if parsed, err := strconv.Atoi(raw); err == nil {
            db = parsed
        }
    }

    client := redis.NewClient(&redis.Options{
        Addr:     addr,
        Password: password,
        DB:       db,
    })

    return client, nil
}