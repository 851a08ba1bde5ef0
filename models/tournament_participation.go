package models

import (
	"time"
)

// TournamentEntry is a character's participation in one weekly tournament.
// Rank is 0 until the first recalculation.
type TournamentEntry struct {
	ID            string    `json:"id" gorm:"primaryKey;type:uuid"`
	TournamentID  string    `json:"tournament_id" gorm:"type:uuid;not null;uniqueIndex:idx_tournament_character"`
	CharacterID   string    `json:"character_id" gorm:"type:uuid;not null;uniqueIndex:idx_tournament_character;index"`
	GamesScore    int64     `json:"games_score" gorm:"not null;default:0"`
	TricksScore   int64     `json:"tricks_score" gorm:"not null;default:0"`
	TrainingScore int64     `json:"training_score" gorm:"not null;default:0"`
	Score         int64     `json:"score" gorm:"not null;default:0"`
	Rank          int       `json:"rank" gorm:"not null;default:0"`
	JoinedAt      time.Time `json:"joined_at" gorm:"not null"`
	UpdatedAt     time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TournamentEntryView joins the entry with the character's display fields.
type TournamentEntryView struct {
	TournamentEntry
	Name      string `json:"name"`
	Level     int    `json:"level"`
	SportType string `json:"sport_type"`
	AvatarURL string `json:"avatar_url"`
}
