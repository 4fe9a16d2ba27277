package handler

import (
	"context"
	"net/http"
	"time"

	"stockledger/internal/infra"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// APIVersion is reported by the root endpoint.
const APIVersion = "1.0.0"

// Pinger is the slice of the store backend health needs.
type Pinger interface {
	Ping(ctx context.Context) error
}

// circuitReporter is implemented by backends guarded by a circuit breaker.
type circuitReporter interface {
	CircuitState() infra.CBState
}

// Root identifies the service.
func Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Warehouse Management API", "version": APIVersion})
}

// Health returns a JSON health check response.
// Checks store and Redis connectivity; never exposes credentials or internals.
// rdb may be nil when Redis is not configured.
func Health(store Pinger, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		storeStatus := "connected"
		if store.Ping(ctx) != nil {
			storeStatus = "error"
		}

		redisStatus := "disabled"
		if rdb != nil {
			redisStatus = "connected"
			if rdb.Ping(ctx).Err() != nil {
				redisStatus = "error"
			}
		}

		status := http.StatusOK
		if storeStatus != "connected" || redisStatus == "error" {
			status = http.StatusServiceUnavailable
		}

		body := gin.H{
			"ok":    status == http.StatusOK,
			"store": storeStatus,
			"redis": redisStatus,
		}
		if cr, ok := store.(circuitReporter); ok {
			body["circuit"] = cr.CircuitState().String()
		}
		c.JSON(status, body)
	}
}
