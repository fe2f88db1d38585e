package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger is satisfied by *sql.DB. A nil pinger means the server runs on memory stores.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Health reports liveness and, when a database is configured, its reachability
func Health(db Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db == nil {
			c.JSON(http.StatusOK, gin.H{"status": "ok", "storage": "memory"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "storage": "postgres"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "storage": "postgres"})
	}
}
