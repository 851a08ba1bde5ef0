package models

import (
	"time"
)

type Trick struct {
	ID               string    `gorm:"primaryKey;type:uuid" json:"id"`
	Name             string    `gorm:"not null" json:"name"`
	SportType        string    `gorm:"type:varchar(32);index;not null" json:"sport_type"`
	Category         string    `gorm:"type:varchar(32)" json:"category"`
	Difficulty       int       `gorm:"default:1" json:"difficulty"`
	Description      string    `gorm:"type:text" json:"description"`
	ExperienceReward int64     `gorm:"not null;default:0" json:"experience_reward"`
	KineticsReward   int64     `gorm:"not null;default:0" json:"kinetics_reward"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// CharacterTrick records that a trainer confirmed a trick for a character; unique per pair.
type CharacterTrick struct {
	ID          string    `gorm:"primaryKey;type:uuid" json:"id"`
	CharacterID string    `gorm:"type:uuid;not null;uniqueIndex:idx_character_trick" json:"character_id"`
	TrickID     string    `gorm:"type:uuid;not null;uniqueIndex:idx_character_trick" json:"trick_id"`
	ConfirmedBy string    `json:"confirmed_by,omitempty"`
	ConfirmedAt time.Time `gorm:"not null;index" json:"confirmed_at"`
}
