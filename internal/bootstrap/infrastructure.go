package bootstrap

import (
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/sermoncast/sermoncast/internal/observability"
	"github.com/sermoncast/sermoncast/internal/synthesis"
	"go.uber.org/fx"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func ProvideRedisClient(cfg *Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}

func ProvideDatabase(cfg *Config) (*gorm.DB, error) {
	return gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
}

func ProvideSynthesizer(cfg *Config) synthesis.Synthesizer {
	return synthesis.New(synthesis.Config{
		BaseURL: cfg.SynthesisURL,
		Token:   cfg.SynthesisToken,
	})
}

func ProvideMetrics(cfg *Config) *observability.Metrics {
	return observability.NewMetrics(cfg.MetricsNamespace)
}

func ProvideLogger(cfg *Config) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var InfrastructureModule = fx.Options(
	fx.Provide(
		ProvideRedisClient,
		ProvideDatabase,
		ProvideSynthesizer,
		ProvideMetrics,
		ProvideLogger,
	),
)
