package services

import (
	"context"
	"time"

	"github.com/dima260208d-dot/kinetik-energy-project/models"

	"gorm.io/gorm"
)

const notificationsListLimit = 50

type NotificationService struct {
	DB *gorm.DB
}

func NewNotificationService(db *gorm.DB) *NotificationService {
	return &NotificationService{DB: db}
}

// List returns the latest notifications and the total unread count.
func (s *NotificationService) List(ctx context.Context, characterID string) ([]models.CharacterNotification, int64, error) {
	if err := requireCharacterID(characterID); err != nil {
		return nil, 0, err
	}
	db := s.DB.WithContext(ctx)
	var notes []models.CharacterNotification
	if err := db.Where("character_id = ?", characterID).
		Order("created_at DESC").
		Limit(notificationsListLimit).
		Find(&notes).Error; err != nil {
		return nil, 0, err
	}
	var unread int64
	if err := db.Model(&models.CharacterNotification{}).
		Where("character_id = ? AND is_read = ?", characterID, false).
		Count(&unread).Error; err != nil {
		return nil, 0, err
	}
	return notes, unread, nil
}

// MarkRead marks the given notifications read, or every unread one when ids is empty.
// Ids belonging to other characters are ignored.
func (s *NotificationService) MarkRead(ctx context.Context, characterID string, ids []string) (int64, error) {
	if err := requireCharacterID(characterID); err != nil {
		return 0, err
	}
	q := s.DB.WithContext(ctx).Model(&models.CharacterNotification{}).
		Where("character_id = ? AND is_read = ?", characterID, false)
	if len(ids) > 0 {
		valid := uniqueIDs(ids)
		if len(valid) == 0 {
			return 0, nil
		}
		q = q.Where("id IN ?", valid)
	}
	res := q.Update("is_read", true)
	return res.RowsAffected, res.Error
}

// since returns notifications created at or after from, oldest first.
func (s *NotificationService) since(ctx context.Context, characterID string, from time.Time) ([]models.CharacterNotification, error) {
	var notes []models.CharacterNotification
	err := s.DB.WithContext(ctx).
		Where("character_id = ? AND created_at >= ?", characterID, from).
		Order("created_at ASC, id ASC").
		Limit(streamScanLimit).
		Find(&notes).Error
	return notes, err
}
