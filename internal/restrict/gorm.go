package restrict

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Save(ctx context.Context, r Restriction) error {
	if err := s.db.WithContext(ctx).Create(&r).Error; err != nil {
		return fmt.Errorf("save restriction: %w", err)
	}
	return nil
}

func (s *GormStore) Active(ctx context.Context, channelID, userID string, now time.Time) (*Restriction, error) {
	var r Restriction
	err := s.db.WithContext(ctx).
		Where("channel_id = ? AND user_id = ?", channelID, userID).
		Where("(expires_at IS NULL OR expires_at > ?)", now).
		// "ban" sorts before "mute": a ban wins while both are in force.
		Order("kind ASC").
		Order("created_at DESC").
		First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load restriction: %w", err)
	}
	return &r, nil
}

func (s *GormStore) Purge(ctx context.Context, now time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at <= ?", now).
		Delete(&Restriction{})
	if res.Error != nil {
		return 0, fmt.Errorf("purge restrictions: %w", res.Error)
	}
	return res.RowsAffected, nil
}
