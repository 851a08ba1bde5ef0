package services

import (
	"github.com/dima260208d-dot/kinetik-energy-project/models"

	"gorm.io/gorm"
)

// LevelForExperience maps total experience to a level: one level per
// ExperiencePerLevel points, starting at 1 and capped at MaxLevel.
func LevelForExperience(xp int64) int {
	if xp < 0 {
		xp = 0
	}
	level := xp/models.ExperiencePerLevel + 1
	if level > models.MaxLevel {
		return models.MaxLevel
	}
	return int(level)
}

// progressUpdate is applied with a single UPDATE so concurrent grants never lose increments.
type progressUpdate struct {
	Experience  int64
	Kinetics    int64
	GamesPlayed int64
	GamesWon    int64
}

func (u progressUpdate) columns() map[string]interface{} {
	cols := map[string]interface{}{}
	if u.Experience != 0 {
		cols["experience"] = gorm.Expr("experience + ?", u.Experience)
		cols["level"] = gorm.Expr("LEAST((experience + ?) / ? + 1, ?)", u.Experience, models.ExperiencePerLevel, models.MaxLevel)
	}
	if u.Kinetics != 0 {
		cols["kinetics"] = gorm.Expr("kinetics + ?", u.Kinetics)
	}
	if u.GamesPlayed != 0 {
		cols["games_played"] = gorm.Expr("games_played + ?", u.GamesPlayed)
	}
	if u.GamesWon != 0 {
		cols["games_won"] = gorm.Expr("games_won + ?", u.GamesWon)
	}
	return cols
}

// applyProgress adds experience (re-deriving level) and other non-negative increments.
// Kinetics added here must be matched by a ledger row from the caller.
func applyProgress(tx *gorm.DB, characterID string, u progressUpdate) error {
	if !isUUID(characterID) {
		return errCharacterNotFound(characterID)
	}
	cols := u.columns()
	if len(cols) == 0 {
		return nil
	}
	res := tx.Model(&models.Character{}).Where("id = ?", characterID).Updates(cols)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errCharacterNotFound(characterID)
	}
	return nil
}
