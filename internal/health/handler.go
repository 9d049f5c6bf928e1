package health

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

type ComponentStatus struct {
	Status    Status `json:"status"`
	LatencyMs int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

type RuntimeStats struct {
	Goroutines    int    `json:"goroutines"`
	MemoryAllocMB uint64 `json:"memory_alloc_mb"`
	NumGC         uint32 `json:"num_gc"`
}

type Report struct {
	Status     Status                     `json:"status"`
	Components map[string]ComponentStatus `json:"components"`
	Runtime    RuntimeStats               `json:"runtime"`
}

type Handler struct {
	db    *gorm.DB
	redis *redis.Client
}

func NewHandler(db *gorm.DB, redisClient *redis.Client) *Handler {
	return &Handler{db: db, redis: redisClient}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.HandleHealth)
}

func (h *Handler) HandleHealth(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	report := Report{
		Status: StatusHealthy,
		Components: map[string]ComponentStatus{
			"database": h.checkDatabase(ctx),
			"redis":    h.checkRedis(ctx),
		},
		Runtime: collectRuntime(),
	}

	code := http.StatusOK
	for _, comp := range report.Components {
		if comp.Status == StatusUnhealthy {
			report.Status = StatusUnhealthy
			code = http.StatusServiceUnavailable
			break
		}
	}

	return c.JSON(code, report)
}

func (h *Handler) checkDatabase(ctx context.Context) ComponentStatus {
	start := time.Now()
	sqlDB, err := h.db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	return statusFrom(err, start)
}

func (h *Handler) checkRedis(ctx context.Context) ComponentStatus {
	start := time.Now()
	err := h.redis.Ping(ctx).Err()
	return statusFrom(err, start)
}

func statusFrom(err error, start time.Time) ComponentStatus {
	cs := ComponentStatus{
		Status:    StatusHealthy,
		LatencyMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		cs.Status = StatusUnhealthy
		cs.Error = err.Error()
	}
	return cs
}

func collectRuntime() RuntimeStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return RuntimeStats{
		Goroutines:    runtime.NumGoroutine(),
		MemoryAllocMB: m.Alloc / 1024 / 1024,
		NumGC:         m.NumGC,
	}
}
