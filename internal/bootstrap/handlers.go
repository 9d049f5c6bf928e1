package bootstrap

import (
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/sermoncast/sermoncast/internal/broadcast"
	"github.com/sermoncast/sermoncast/internal/health"
	"github.com/sermoncast/sermoncast/internal/observability"
	"github.com/sermoncast/sermoncast/internal/synthesis"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func ProvideBroadcastHandler(
	store *broadcast.Store,
	registry *broadcast.Registry,
	bridge *broadcast.Bridge,
	synth synthesis.Synthesizer,
	metrics *observability.Metrics,
	log *slog.Logger,
) *broadcast.Handler {
	return broadcast.NewHandler(store, registry, bridge, synth, metrics, log)
}

func ProvideHealthHandler(db *gorm.DB, redisClient *redis.Client) *health.Handler {
	return health.NewHandler(db, redisClient)
}

func RegisterRoutes(e *echo.Echo, broadcastHandler *broadcast.Handler, healthHandler *health.Handler) {
	broadcastHandler.RegisterRoutes(e)
	healthHandler.RegisterRoutes(e)
	e.GET("/metrics", echo.WrapHandler(observability.MetricsHandler()))
}

var HandlersModule = fx.Options(
	fx.Provide(
		ProvideBroadcastHandler,
		ProvideHealthHandler,
	),
	fx.Invoke(RegisterRoutes),
)
