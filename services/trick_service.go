package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dima260208d-dot/kinetik-energy-project/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TrickService struct {
	DB           *gorm.DB
	Log          *zap.Logger
	Achievements *AchievementService
	Tournaments  *TournamentService
	Now          func() time.Time
}

func NewTrickService(db *gorm.DB, log *zap.Logger, achievements *AchievementService, tournaments *TournamentService) *TrickService {
	return &TrickService{DB: db, Log: log, Achievements: achievements, Tournaments: tournaments, Now: time.Now}
}

func (s *TrickService) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// List returns the trick catalog, optionally for one sport.
func (s *TrickService) List(ctx context.Context, sportType string) ([]models.Trick, error) {
	q := s.DB.WithContext(ctx).Model(&models.Trick{})
	if sportType != "" {
		q = q.Where("sport_type = ?", sportType).Order("difficulty, name")
	} else {
		q = q.Order("sport_type, difficulty, name")
	}
	var tricks []models.Trick
	return tricks, q.Find(&tricks).Error
}

// MasteredTrick is a confirmation joined with its catalog row.
type MasteredTrick struct {
	models.CharacterTrick
	Name             string `json:"name"`
	SportType        string `json:"sport_type"`
	Category         string `json:"category"`
	Difficulty       int    `json:"difficulty"`
	ExperienceReward int64  `json:"experience_reward"`
	KineticsReward   int64  `json:"kinetics_reward"`
	Description      string `json:"description"`
}

func (s *TrickService) Mastered(ctx context.Context, characterID string) ([]MasteredTrick, error) {
	if err := requireCharacterID(characterID); err != nil {
		return nil, err
	}
	var out []MasteredTrick
	err := s.DB.WithContext(ctx).Table("character_tricks AS ct").
		Select("ct.*, t.name, t.sport_type, t.category, t.difficulty, t.experience_reward, t.kinetics_reward, t.description").
		Joins("JOIN tricks t ON t.id = ct.trick_id").
		Where("ct.character_id = ?", characterID).
		Order("ct.confirmed_at DESC").
		Scan(&out).Error
	return out, err
}

type ConfirmTricksInput struct {
	CharacterID string   `json:"character_id"`
	TrickIDs    []string `json:"trick_ids"`
	ConfirmedBy string   `json:"confirmed_by"`
}

// ConfirmResult reports what a confirmation batch actually granted.
type ConfirmResult struct {
	Character       *models.Character    `json:"character"`
	NewlyConfirmed  int                  `json:"newly_confirmed"`
	TotalExperience int64                `json:"total_exp"`
	TotalKinetics   int64                `json:"total_kinetics"`
	NewAchievements []models.Achievement `json:"new_achievements"`
}

// Confirm marks tricks as mastered. Unknown ids are skipped and tricks the
// character already has grant nothing, so repeating a call is harmless.
func (s *TrickService) Confirm(ctx context.Context, in ConfirmTricksInput) (*ConfirmResult, error) {
	if in.CharacterID == "" {
		return nil, ValidationError("missing_character_id", "character_id is required")
	}
	ids := uniqueIDs(in.TrickIDs)
	if len(in.TrickIDs) == 0 {
		return nil, ValidationError("missing_trick_ids", "trick_ids must not be empty")
	}

	now := s.now()
	var (
		out     ConfirmResult
		touched *models.Tournament
	)
	err := transact(ctx, s.DB, func(tx *gorm.DB) error {
		if _, err := loadCharacter(tx, in.CharacterID); err != nil {
			return err
		}

		var tricks []models.Trick
		if err := tx.Where("id IN ?", ids).Find(&tricks).Error; err != nil {
			return err
		}
		for _, trick := range tricks {
			row := models.CharacterTrick{
				ID:          uuid.NewString(),
				CharacterID: in.CharacterID,
				TrickID:     trick.ID,
				ConfirmedBy: in.ConfirmedBy,
				ConfirmedAt: now,
			}
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				continue
			}
			out.NewlyConfirmed++
			out.TotalExperience += trick.ExperienceReward
			out.TotalKinetics += trick.KineticsReward
		}

		if out.NewlyConfirmed > 0 {
			if err := applyProgress(tx, in.CharacterID, progressUpdate{
				Experience: out.TotalExperience,
				Kinetics:   out.TotalKinetics,
			}); err != nil {
				return err
			}
			if out.TotalKinetics > 0 {
				if _, err := appendLedger(tx, ledgerEntry{
					CharacterID: in.CharacterID,
					Amount:      out.TotalKinetics,
					Source:      SourceTrick,
					Description: fmt.Sprintf("%d tricks confirmed", out.NewlyConfirmed),
					CreatedBy:   in.ConfirmedBy,
				}, models.TransactionEarn); err != nil {
					return err
				}
			}
			if err := notify(tx, in.CharacterID, NotifyTrick,
				fmt.Sprintf("%d tricks confirmed!", out.NewlyConfirmed),
				fmt.Sprintf("+%d XP, +%d kinetics", out.TotalExperience, out.TotalKinetics), nil); err != nil {
				return err
			}
		}

		var err error
		if s.Achievements != nil {
			if out.NewAchievements, err = s.Achievements.check(tx, in.CharacterID); err != nil {
				return err
			}
		}
		if out.NewlyConfirmed > 0 && s.Tournaments != nil {
			if touched, err = s.Tournaments.refreshForCharacter(tx, in.CharacterID, now); err != nil {
				return err
			}
		}
		out.Character, err = loadCharacter(tx, in.CharacterID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if touched != nil {
		s.Tournaments.invalidate(ctx, touched)
	}
	if out.NewAchievements == nil {
		out.NewAchievements = []models.Achievement{}
	}
	if s.Log != nil && out.NewlyConfirmed > 0 {
		s.Log.Info("tricks confirmed",
			zap.String("character_id", in.CharacterID),
			zap.Int("count", out.NewlyConfirmed),
			zap.String("confirmed_by", in.ConfirmedBy))
	}
	return &out, nil
}

// uniqueIDs drops duplicates and values that cannot be ids.
func uniqueIDs(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if !isUUID(v) || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
