package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// Bridge fans translated fragments out from broadcasters to listener
// streams over redis pub/sub, keyed per (broadcast, language).
type Bridge struct {
	redis *redis.Client
	log   *slog.Logger
}

func NewBridge(redisClient *redis.Client, log *slog.Logger) *Bridge {
	if log == nil {
		log = slog.Default()
	}
	return &Bridge{
		redis: redisClient,
		log:   log.With("component", "bridge"),
	}
}

func translationChannel(broadcastID, language string) string {
	return fmt.Sprintf("broadcast:%s:translations:%s", broadcastID, language)
}

// Publish pushes one translated fragment to every listener subscribed for
// that broadcast and language.
func (b *Bridge) Publish(ctx context.Context, broadcastID, language, translation string) error {
	data, err := json.Marshal(Event{
		BroadcastID: broadcastID,
		Translation: translation,
	})
	if err != nil {
		return err
	}
	return b.redis.Publish(ctx, translationChannel(broadcastID, language), data).Err()
}

// Subscribe returns a channel of fragments for one (broadcast, language)
// pair and a cancel function that releases the subscription.
func (b *Bridge) Subscribe(ctx context.Context, broadcastID, language string) (<-chan Event, func()) {
	sub := b.redis.Subscribe(ctx, translationChannel(broadcastID, language))
	out := make(chan Event, 64)

	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				b.log.Warn("discarding malformed fragment", "error", err)
				continue
			}
			select {
			case out <- ev:
			default:
				b.log.Debug("slow listener, dropping fragment", "broadcast_id", broadcastID)
			}
		}
	}()

	return out, func() { _ = sub.Close() }
}
