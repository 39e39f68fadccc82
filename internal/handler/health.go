package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"student-records/internal/store"
)

// Health reports database and, when configured, redis reachability.
func Health(db *gorm.DB, redis *store.Redis) gin.HandlerFunc {
	return func(c *gin.Context) {
		dbHealthy := false
		if sqlDB, err := db.DB(); err == nil {
			dbHealthy = sqlDB.PingContext(c.Request.Context()) == nil
		}
		body := gin.H{"status": "ok", "db": dbHealthy}
		healthy := dbHealthy
		if redis != nil {
			redisHealthy := redis.Healthy(c.Request.Context())
			body["redis"] = redisHealthy
			healthy = healthy && redisHealthy
		}
		status := http.StatusOK
		if !healthy {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
		c.JSON(status, body)
	}
}
