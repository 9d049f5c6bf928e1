package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sermoncast/sermoncast/internal/shared"
)

// registrationTTL bounds how long an abandoned listener entry lingers when
// a client never calls stop_stream.
const registrationTTL = 2 * time.Hour

// Registry tracks which clients are attached to which broadcast, backed by
// redis so every relay instance sees the same picture.
type Registry struct {
	redis *redis.Client
}

func NewRegistry(redisClient *redis.Client) *Registry {
	return &Registry{redis: redisClient}
}

func registrationKey(broadcastID, clientID string) string {
	return fmt.Sprintf("listener:%s:%s", broadcastID, clientID)
}

func (r *Registry) Register(ctx context.Context, reg Registration) error {
	if reg.StartedAt.IsZero() {
		reg.StartedAt = time.Now()
	}
	data, err := json.Marshal(reg)
	if err != nil {
		return err
	}
	return r.redis.Set(ctx, registrationKey(reg.BroadcastID, reg.ClientID), data, registrationTTL).Err()
}

func (r *Registry) Deregister(ctx context.Context, broadcastID, clientID string) error {
	deleted, err := r.redis.Del(ctx, registrationKey(broadcastID, clientID)).Result()
	if err != nil {
		return err
	}
	if deleted == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Count returns how many clients are registered against a broadcast.
func (r *Registry) Count(ctx context.Context, broadcastID string) (int, error) {
	keys, err := r.redis.Keys(ctx, registrationKey(broadcastID, "*")).Result()
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

func (r *Registry) Get(ctx context.Context, broadcastID, clientID string) (*Registration, error) {
	data, err := r.redis.Get(ctx, registrationKey(broadcastID, clientID)).Bytes()
	if err == redis.Nil {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var reg Registration
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, err
	}
	return &reg, nil
}
