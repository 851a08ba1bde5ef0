package models

import (
	"time"
)

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// All lists every table owned by this service, in migration order.
func All() []interface{} {
	return []interface{}{
		&Character{},
		&Trick{},
		&CharacterTrick{},
		&Achievement{},
		&CharacterAchievement{},
		&KineticsTransaction{},
		&CharacterNotification{},
		&Tournament{},
		&TournamentEntry{},
		&PurchasedItem{},
		&Accessory{},
		&CharacterAccessory{},
		&GameResult{},
		&TrainingVisit{},
		&User{},
		&StudentGroup{},
		&StudentGroupMember{},
		&LessonPlan{},
		&DiaryEntry{},
		&DiaryMedia{},
	}
}
