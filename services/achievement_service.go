package services

import (
	"context"
	"fmt"
	"time"

	"github.com/dima260208d-dot/kinetik-energy-project/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AchievementService struct {
	DB  *gorm.DB
	Log *zap.Logger
}

func NewAchievementService(db *gorm.DB, log *zap.Logger) *AchievementService {
	return &AchievementService{DB: db, Log: log}
}

// achievementState holds the counters achievements are evaluated against.
type achievementState struct {
	CharacterCreated int64
	TricksCount      int64
	Level            int64
	KineticsEarned   int64
	GamesPlayed      int64
	GamesWon         int64
	TrainingVisits   int64
}

func (s achievementState) counter(t models.RequirementType) (int64, bool) {
	switch t {
	case models.RequirementCharacterCreated:
		return s.CharacterCreated, true
	case models.RequirementTricksCount:
		return s.TricksCount, true
	case models.RequirementLevel:
		return s.Level, true
	case models.RequirementKineticsEarned:
		return s.KineticsEarned, true
	case models.RequirementGamesPlayed:
		return s.GamesPlayed, true
	case models.RequirementGamesWon:
		return s.GamesWon, true
	case models.RequirementTrainingVisits:
		return s.TrainingVisits, true
	}
	return 0, false
}

// requirementMet is false for unknown requirement types.
func requirementMet(s achievementState, a models.Achievement) bool {
	v, ok := s.counter(a.RequirementType)
	return ok && v >= a.RequirementValue
}

func progressOf(s achievementState, a models.Achievement) int64 {
	v, _ := s.counter(a.RequirementType)
	if v > a.RequirementValue {
		return a.RequirementValue
	}
	return v
}

func loadAchievementState(tx *gorm.DB, characterID string) (achievementState, error) {
	ch, err := loadCharacter(tx, characterID)
	if err != nil {
		return achievementState{}, err
	}
	state := achievementState{
		CharacterCreated: 1,
		Level:            int64(ch.Level),
		GamesPlayed:      ch.GamesPlayed,
		GamesWon:         ch.GamesWon,
	}
	if err := tx.Model(&models.CharacterTrick{}).Where("character_id = ?", characterID).Count(&state.TricksCount).Error; err != nil {
		return state, err
	}
	if err := tx.Model(&models.TrainingVisit{}).Where("character_id = ?", characterID).Count(&state.TrainingVisits).Error; err != nil {
		return state, err
	}
	if err := tx.Model(&models.KineticsTransaction{}).
		Where("character_id = ? AND amount > 0", characterID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&state.KineticsEarned).Error; err != nil {
		return state, err
	}
	return state, nil
}

// check awards every achievement whose threshold is now met and that the
// character does not hold yet. Safe to call repeatedly.
func (s *AchievementService) check(tx *gorm.DB, characterID string) ([]models.Achievement, error) {
	state, err := loadAchievementState(tx, characterID)
	if err != nil {
		return nil, err
	}

	var pending []models.Achievement
	earned := tx.Model(&models.CharacterAchievement{}).Select("achievement_id").Where("character_id = ?", characterID)
	if err := tx.Where("id NOT IN (?)", earned).
		Order("requirement_type, requirement_value, code").
		Find(&pending).Error; err != nil {
		return nil, err
	}

	var awarded []models.Achievement
	for _, a := range pending {
		if !requirementMet(state, a) {
			continue
		}
		row := models.CharacterAchievement{
			ID:            uuid.NewString(),
			CharacterID:   characterID,
			AchievementID: a.ID,
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			continue
		}
		if a.RewardKinetics > 0 {
			if _, err := credit(tx, ledgerEntry{
				CharacterID: characterID,
				Amount:      a.RewardKinetics,
				Source:      SourceAchievement,
				Description: fmt.Sprintf("Achievement: %s", a.Name),
			}); err != nil {
				return nil, err
			}
		}
		msg := a.Description
		if a.RewardKinetics > 0 {
			msg = fmt.Sprintf("%s (+%d kinetics)", a.Description, a.RewardKinetics)
		}
		if err := notify(tx, characterID, NotifyAchievement, fmt.Sprintf("%s Achievement unlocked: %s", a.Icon, a.Name), msg,
			map[string]interface{}{"achievement_id": a.ID, "code": a.Code}); err != nil {
			return nil, err
		}
		tallyOf(tx).achievement()
		awarded = append(awarded, a)
	}
	if len(awarded) > 0 && s.Log != nil {
		s.Log.Info("achievements awarded", zap.String("character_id", characterID), zap.Int("count", len(awarded)))
	}
	return awarded, nil
}

// Check runs the achievement evaluation in its own transaction.
func (s *AchievementService) Check(ctx context.Context, characterID string) ([]models.Achievement, error) {
	var awarded []models.Achievement
	err := transact(ctx, s.DB, func(tx *gorm.DB) error {
		var err error
		awarded, err = s.check(tx, characterID)
		return err
	})
	return awarded, err
}

// AchievementProgress is one catalog row from a character's point of view.
type AchievementProgress struct {
	models.Achievement
	Earned   bool       `json:"is_earned"`
	EarnedAt *time.Time `json:"earned_at,omitempty"`
	Progress int64      `json:"progress"`
}

// List returns the full catalog with earned flags and progress toward each threshold.
func (s *AchievementService) List(ctx context.Context, characterID string) ([]AchievementProgress, error) {
	if err := requireCharacterID(characterID); err != nil {
		return nil, err
	}
	db := s.DB.WithContext(ctx)
	state, err := loadAchievementState(db, characterID)
	if err != nil {
		return nil, err
	}

	var catalog []models.Achievement
	if err := db.Order("requirement_type, requirement_value, code").Find(&catalog).Error; err != nil {
		return nil, err
	}
	var owned []models.CharacterAchievement
	if err := db.Where("character_id = ?", characterID).Find(&owned).Error; err != nil {
		return nil, err
	}
	earnedAt := make(map[string]time.Time, len(owned))
	for _, o := range owned {
		earnedAt[o.AchievementID] = o.EarnedAt
	}

	out := make([]AchievementProgress, 0, len(catalog))
	for _, a := range catalog {
		p := AchievementProgress{Achievement: a, Progress: progressOf(state, a)}
		if at, ok := earnedAt[a.ID]; ok {
			at := at
			p.Earned = true
			p.EarnedAt = &at
			p.Progress = a.RequirementValue
		}
		out = append(out, p)
	}
	return out, nil
}

// SeedDefaults inserts missing catalog rows by code.
func (s *AchievementService) SeedDefaults(ctx context.Context) error {
	rows := make([]models.Achievement, len(models.DefaultAchievements))
	for i, a := range models.DefaultAchievements {
		a.ID = uuid.NewString()
		rows[i] = a
	}
	return s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "code"}}, DoNothing: true}).
		Create(&rows).Error
}
