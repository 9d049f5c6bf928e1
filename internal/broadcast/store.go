package broadcast

import (
	"context"
	"errors"
	"time"

	"github.com/sermoncast/sermoncast/internal/shared"
	"gorm.io/gorm"
)

type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Migrate() error {
	return s.db.AutoMigrate(&Church{}, &Broadcast{})
}

func (s *Store) CreateChurch(ctx context.Context, c *Church) error {
	if c.ID == "" {
		c.ID = shared.NewID("church_")
	}
	return s.db.WithContext(ctx).Create(c).Error
}

func (s *Store) GetChurch(ctx context.Context, id string) (*Church, error) {
	var c Church
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, shared.ErrNotFound
	}
	return &c, err
}

func (s *Store) StartBroadcast(ctx context.Context, b *Broadcast) error {
	if b.ID == "" {
		b.ID = shared.NewID("bcast_")
	}
	b.Status = shared.BroadcastLive
	b.StartedAt = time.Now()
	return s.db.WithContext(ctx).Create(b).Error
}

func (s *Store) GetBroadcast(ctx context.Context, id string) (*Broadcast, error) {
	var b Broadcast
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, shared.ErrNotFound
	}
	return &b, err
}

func (s *Store) EndBroadcast(ctx context.Context, id string) error {
	now := time.Now()
	result := s.db.WithContext(ctx).Model(&Broadcast{}).
		Where("id = ? AND status = ?", id, shared.BroadcastLive).
		Updates(map[string]any{"status": shared.BroadcastEnded, "ended_at": &now})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		if _, err := s.GetBroadcast(ctx, id); err != nil {
			return err
		}
		return shared.ErrBroadcastEnded
	}
	return nil
}

func (s *Store) LiveBroadcasts(ctx context.Context, churchID string) ([]*Broadcast, error) {
	var out []*Broadcast
	q := s.db.WithContext(ctx).Where("status = ?", shared.BroadcastLive)
	if churchID != "" {
		q = q.Where("church_id = ?", churchID)
	}
	err := q.Order("started_at DESC").Find(&out).Error
	return out, err
}
