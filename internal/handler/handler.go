package handler

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"classtrack/internal/apperr"
	"classtrack/internal/attendance"
	"classtrack/internal/classes"
	"classtrack/internal/queue"
	"classtrack/internal/store"
	"classtrack/internal/users"
)

// Handler carries the services behind the HTTP surface.
type Handler struct {
	users      *users.Service
	classes    *classes.Service
	attendance *attendance.Service
	queue      queue.Queue
	db         *store.DB
	redis      *store.Redis
}

// New creates a handler.
func New(us *users.Service, cs *classes.Service, as *attendance.Service, q queue.Queue, db *store.DB, rds *store.Redis) *Handler {
	return &Handler{users: us, classes: cs, attendance: as, queue: q, db: db, redis: rds}
}

// fail renders a domain error as {"error": code, "message": ...} with the
// mapped status. Unclassified errors are logged and become 500s.
func fail(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		log.Printf("%s %s failed: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, gin.H{"error": apperr.CodeOf(err), "message": apperr.MessageOf(err)})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
}

// Healthz reports process, db and redis health.
func (h *Handler) Healthz(c *gin.Context) {
	redisHealthy := h.redis.Healthy(c.Request.Context())
	dbHealthy := h.db != nil && h.db.Client.PingContext(c.Request.Context()) == nil
	status := http.StatusOK
	if !redisHealthy || !dbHealthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
}
