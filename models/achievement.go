package models

import (
	"time"
)

// RequirementType names the counter an achievement threshold is compared against.
type RequirementType string

const (
	RequirementCharacterCreated RequirementType = "character_created"
	RequirementTricksCount      RequirementType = "tricks_count"
	RequirementLevel            RequirementType = "level"
	RequirementKineticsEarned   RequirementType = "kinetics_earned"
	RequirementGamesPlayed      RequirementType = "games_played"
	RequirementGamesWon         RequirementType = "games_won"
	RequirementTrainingVisits   RequirementType = "training_visits"
)

// Achievement is static catalog data.
type Achievement struct {
	ID               string          `gorm:"primaryKey;type:uuid" json:"id"`
	Code             string          `gorm:"uniqueIndex;not null" json:"code"`
	Name             string          `gorm:"not null" json:"name"`
	Description      string          `json:"description"`
	Icon             string          `gorm:"type:varchar(16)" json:"icon"`
	RequirementType  RequirementType `gorm:"type:varchar(32);not null" json:"requirement_type"`
	RequirementValue int64           `gorm:"not null" json:"requirement_value"`
	RewardKinetics   int64           `gorm:"not null;default:0" json:"reward_kinetics"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// CharacterAchievement is an awarded instance; at most one per (character, achievement).
type CharacterAchievement struct {
	ID            string    `gorm:"primaryKey;type:uuid" json:"id"`
	CharacterID   string    `gorm:"type:uuid;not null;uniqueIndex:idx_character_achievement" json:"character_id"`
	AchievementID string    `gorm:"type:uuid;not null;uniqueIndex:idx_character_achievement" json:"achievement_id"`
	EarnedAt      time.Time `gorm:"autoCreateTime" json:"earned_at"`
}

// DefaultAchievements is seeded on startup when the catalog is missing a code.
var DefaultAchievements = []Achievement{
	{Code: "WELCOME", Name: "Welcome to the Universe", Description: "Create your character", Icon: "👋", RequirementType: RequirementCharacterCreated, RequirementValue: 1, RewardKinetics: 0},
	{Code: "FIRST_TRICK", Name: "First Trick", Description: "Master your first trick", Icon: "🛹", RequirementType: RequirementTricksCount, RequirementValue: 1, RewardKinetics: 10},
	{Code: "TRICKS_5", Name: "Trickster", Description: "Master 5 tricks", Icon: "🎯", RequirementType: RequirementTricksCount, RequirementValue: 5, RewardKinetics: 50},
	{Code: "TRICKS_20", Name: "Trick Master", Description: "Master 20 tricks", Icon: "🏆", RequirementType: RequirementTricksCount, RequirementValue: 20, RewardKinetics: 200},
	{Code: "LEVEL_10", Name: "Rising Star", Description: "Reach level 10", Icon: "⭐", RequirementType: RequirementLevel, RequirementValue: 10, RewardKinetics: 100},
	{Code: "LEVEL_50", Name: "Halfway There", Description: "Reach level 50", Icon: "🌟", RequirementType: RequirementLevel, RequirementValue: 50, RewardKinetics: 500},
	{Code: "KINETICS_1000", Name: "Power Plant", Description: "Earn 1000 kinetics in total", Icon: "⚡", RequirementType: RequirementKineticsEarned, RequirementValue: 1000, RewardKinetics: 100},
	{Code: "FIRST_GAME", Name: "Player One", Description: "Finish your first game", Icon: "🎮", RequirementType: RequirementGamesPlayed, RequirementValue: 1, RewardKinetics: 10},
	{Code: "WINS_10", Name: "Champion", Description: "Win 10 games", Icon: "🥇", RequirementType: RequirementGamesWon, RequirementValue: 10, RewardKinetics: 100},
	{Code: "TRAININGS_10", Name: "Regular", Description: "Attend 10 trainings", Icon: "💪", RequirementType: RequirementTrainingVisits, RequirementValue: 10, RewardKinetics: 150},
}
