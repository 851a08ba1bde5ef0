package models

import (
	"time"

	"github.com/lib/pq"
)

const (
	MaxLevel           = 100
	ExperiencePerLevel = 100
)

// Character is the per-user avatar in the Kinetic Universe. Kinetics never goes below zero;
// the check constraint backs up the conditional decrements in services.
type Character struct {
	ID          string         `gorm:"primaryKey;type:uuid" json:"id"`
	UserID      string         `gorm:"uniqueIndex;not null" json:"user_id"`
	Name        string         `gorm:"not null" json:"name"`
	Handle      string         `gorm:"index" json:"handle"`
	SportType   string         `gorm:"type:varchar(32);not null" json:"sport_type"`
	SportTypes  pq.StringArray `gorm:"type:text[]" json:"sport_types"`
	RidingStyle string         `gorm:"type:varchar(32);default:'freestyle'" json:"riding_style"`

	Level      int   `gorm:"not null;default:1" json:"level"`
	Experience int64 `gorm:"not null;default:0" json:"experience"`
	Kinetics   int64 `gorm:"not null;default:0;check:chk_characters_kinetics,kinetics >= 0" json:"kinetics"`

	// Stats
	Balance int `gorm:"default:1" json:"balance"`
	Speed   int `gorm:"default:1" json:"speed"`
	Courage int `gorm:"default:1" json:"courage"`

	// Appearance
	BodyType  int    `gorm:"default:1" json:"body_type"`
	Hairstyle int    `gorm:"default:1" json:"hairstyle"`
	HairColor string `gorm:"type:varchar(16);default:'#000000'" json:"hair_color"`
	AvatarURL string `gorm:"type:text" json:"avatar_url"`

	GamesPlayed int64 `gorm:"not null;default:0" json:"games_played"`
	GamesWon    int64 `gorm:"not null;default:0" json:"games_won"`

	Age         *int   `json:"age,omitempty"`
	TrainerName string `json:"trainer_name,omitempty"`

	Timestamps
}

// HasSport reports whether sport is already in the character's set.
func (c *Character) HasSport(sport string) bool {
	if c.SportType == sport {
		return true
	}
	for _, s := range c.SportTypes {
		if s == sport {
			return true
		}
	}
	return false
}

// GameResult is one finished mini-game; counted by the weekly tournament.
type GameResult struct {
	ID             string    `gorm:"primaryKey;type:uuid" json:"id"`
	CharacterID    string    `gorm:"type:uuid;index;not null" json:"character_id"`
	GameName       string    `gorm:"type:varchar(64);not null" json:"game_name"`
	Won            bool      `json:"won"`
	EarnedXP       int64     `gorm:"column:earned_xp" json:"earned_xp"`
	EarnedKinetics int64     `json:"earned_kinetics"`
	Score          int64     `json:"score"`
	CreatedAt      time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

// TrainingVisit is a confirmed attendance of a real training session.
type TrainingVisit struct {
	ID          string    `gorm:"primaryKey;type:uuid" json:"id"`
	CharacterID string    `gorm:"type:uuid;index;not null" json:"character_id"`
	VisitDate   time.Time `gorm:"type:date;index;not null" json:"visit_date"`
	ConfirmedBy string    `json:"confirmed_by,omitempty"`
	Notes       string    `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}
