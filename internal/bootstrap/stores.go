package bootstrap

import (
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/sermoncast/sermoncast/internal/broadcast"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func ProvideBroadcastStore(db *gorm.DB) *broadcast.Store {
	return broadcast.NewStore(db)
}

func ProvideRegistry(redisClient *redis.Client) *broadcast.Registry {
	return broadcast.NewRegistry(redisClient)
}

func ProvideBridge(redisClient *redis.Client, log *slog.Logger) *broadcast.Bridge {
	return broadcast.NewBridge(redisClient, log)
}

func RunMigrations(store *broadcast.Store) error {
	return store.Migrate()
}

var StoresModule = fx.Options(
	fx.Provide(
		ProvideBroadcastStore,
		ProvideRegistry,
		ProvideBridge,
	),
	fx.Invoke(RunMigrations),
)
