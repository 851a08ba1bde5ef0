package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dima260208d-dot/kinetik-energy-project/config"
	"github.com/dima260208d-dot/kinetik-energy-project/models"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/lib/pq"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	charactersListLimit   = 100
	transactionsListLimit = 100
	visitsListLimit       = 100
	profileHistoryLimit   = 10
)

type CharacterService struct {
	DB           *gorm.DB
	Log          *zap.Logger
	Economy      config.Economy
	Achievements *AchievementService
	Tournaments  *TournamentService
	// Now is overridable in tests.
	Now func() time.Time
}

func NewCharacterService(db *gorm.DB, log *zap.Logger, economy config.Economy, achievements *AchievementService, tournaments *TournamentService) *CharacterService {
	return &CharacterService{
		DB:           db,
		Log:          log,
		Economy:      economy,
		Achievements: achievements,
		Tournaments:  tournaments,
		Now:          time.Now,
	}
}

func (s *CharacterService) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// handleFor builds the public handle shown in profile URLs.
func handleFor(name, id string) string {
	base := slug.Make(name)
	if base == "" {
		base = "rider"
	}
	return fmt.Sprintf("%s-%s", base, strings.ReplaceAll(id, "-", "")[:6])
}

// sportDisplayName turns "bmx_park" into "Bmx Park".
func sportDisplayName(sport string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(sport, "_", " "))
}

// GetByUser returns the character owned by userID.
func (s *CharacterService) GetByUser(ctx context.Context, userID string) (*models.Character, error) {
	if userID == "" {
		return nil, ValidationError("missing_user_id", "user_id is required")
	}
	var ch models.Character
	err := s.DB.WithContext(ctx).Where("user_id = ?", userID).First(&ch).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NotFoundError("not_found", "no character for user %s", userID)
	}
	if err != nil {
		return nil, err
	}
	return &ch, nil
}

func (s *CharacterService) Get(ctx context.Context, id string) (*models.Character, error) {
	if err := requireCharacterID(id); err != nil {
		return nil, err
	}
	return loadCharacter(s.DB.WithContext(ctx), id)
}

// List returns the top characters by level and experience, optionally filtered by name.
func (s *CharacterService) List(ctx context.Context, query string) ([]models.Character, error) {
	q := s.DB.WithContext(ctx).Model(&models.Character{})
	if query = strings.TrimSpace(query); query != "" {
		like := "%" + strings.ToLower(query) + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(handle) LIKE ?", like, like)
	}
	var chars []models.Character
	if err := q.Order("level DESC, experience DESC, id ASC").Limit(charactersListLimit).Find(&chars).Error; err != nil {
		return nil, err
	}
	return chars, nil
}

type CreateCharacterInput struct {
	UserID      string `json:"user_id"`
	Name        string `json:"name"`
	SportType   string `json:"sport_type"`
	RidingStyle string `json:"riding_style"`
	BodyType    int    `json:"body_type"`
	Hairstyle   int    `json:"hairstyle"`
	HairColor   string `json:"hair_color"`
	AvatarURL   string `json:"avatar_url"`
	Age         *int   `json:"age"`
	TrainerName string `json:"trainer_name"`
}

func (in CreateCharacterInput) validate() error {
	switch {
	case strings.TrimSpace(in.UserID) == "":
		return ValidationError("missing_user_id", "user_id is required")
	case strings.TrimSpace(in.Name) == "":
		return ValidationError("missing_name", "name is required")
	case strings.TrimSpace(in.SportType) == "":
		return ValidationError("missing_sport_type", "sport_type is required")
	}
	if in.Age != nil {
		if err := validateAge(*in.Age); err != nil {
			return err
		}
	}
	return nil
}

func validateAge(age int) error {
	if age < 0 || age > 120 {
		return ValidationError("invalid_age", "age must be between 0 and 120")
	}
	return nil
}

// Create makes the user's single character, credits the starting kinetics
// through the ledger and runs the first achievement check. The achievements
// granted by that check are returned alongside the character.
func (s *CharacterService) Create(ctx context.Context, in CreateCharacterInput) (*models.Character, []models.Achievement, error) {
	if err := in.validate(); err != nil {
		return nil, nil, err
	}
	id := uuid.NewString()
	ch := models.Character{
		ID:          id,
		UserID:      strings.TrimSpace(in.UserID),
		Name:        strings.TrimSpace(in.Name),
		Handle:      handleFor(in.Name, id),
		SportType:   in.SportType,
		SportTypes:  pq.StringArray{in.SportType},
		RidingStyle: in.RidingStyle,
		Level:       1,
		BodyType:    in.BodyType,
		Hairstyle:   in.Hairstyle,
		HairColor:   in.HairColor,
		AvatarURL:   in.AvatarURL,
		Age:         in.Age,
		TrainerName: in.TrainerName,
	}
	if ch.RidingStyle == "" {
		ch.RidingStyle = "freestyle"
	}

	var (
		out     *models.Character
		awarded []models.Achievement
	)
	err := transact(ctx, s.DB, func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).Create(&ch)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ConflictError("character_exists", "user %s already has a character", ch.UserID)
		}

		welcome := fmt.Sprintf("Character %s created!", ch.Name)
		if s.Economy.StartingKinetics > 0 {
			if _, err := credit(tx, ledgerEntry{
				CharacterID: id,
				Amount:      s.Economy.StartingKinetics,
				Source:      SourceWelcome,
				Description: "Welcome bonus",
			}); err != nil {
				return err
			}
			welcome = fmt.Sprintf("Character %s created! You received %d kinetics.", ch.Name, s.Economy.StartingKinetics)
		}
		if err := notify(tx, id, NotifyWelcome, "Welcome!", welcome, nil); err != nil {
			return err
		}
		var err error
		if s.Achievements != nil {
			if awarded, err = s.Achievements.check(tx, id); err != nil {
				return err
			}
		}
		out, err = loadCharacter(tx, id)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	if s.Log != nil {
		s.Log.Info("character created", zap.String("character_id", out.ID), zap.String("user_id", out.UserID))
	}
	if awarded == nil {
		awarded = []models.Achievement{}
	}
	return out, awarded, nil
}

// UpdateCharacterInput carries the staff-editable profile fields. Nil means unchanged.
// Kinetics and level are not editable here; level follows experience.
type UpdateCharacterInput struct {
	Name        *string   `json:"name"`
	Experience  *int64    `json:"experience"`
	Balance     *int      `json:"balance"`
	Speed       *int      `json:"speed"`
	Courage     *int      `json:"courage"`
	AvatarURL   *string   `json:"avatar_url"`
	BodyType    *int      `json:"body_type"`
	Hairstyle   *int      `json:"hairstyle"`
	HairColor   *string   `json:"hair_color"`
	RidingStyle *string   `json:"riding_style"`
	Age         *int      `json:"age"`
	TrainerName *string   `json:"trainer_name"`
	SportTypes  *[]string `json:"sport_types"`
}

func (in UpdateCharacterInput) columns() (map[string]interface{}, error) {
	cols := map[string]interface{}{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, ValidationError("missing_name", "name cannot be empty")
		}
		cols["name"] = name
	}
	if in.Experience != nil {
		if *in.Experience < 0 {
			return nil, ValidationError("invalid_experience", "experience cannot be negative")
		}
		cols["experience"] = *in.Experience
		cols["level"] = LevelForExperience(*in.Experience)
	}
	if in.Age != nil {
		if err := validateAge(*in.Age); err != nil {
			return nil, err
		}
		cols["age"] = *in.Age
	}
	setInt := func(key string, v *int) {
		if v != nil {
			cols[key] = *v
		}
	}
	setString := func(key string, v *string) {
		if v != nil {
			cols[key] = *v
		}
	}
	setInt("balance", in.Balance)
	setInt("speed", in.Speed)
	setInt("courage", in.Courage)
	setInt("body_type", in.BodyType)
	setInt("hairstyle", in.Hairstyle)
	setString("avatar_url", in.AvatarURL)
	setString("hair_color", in.HairColor)
	setString("riding_style", in.RidingStyle)
	setString("trainer_name", in.TrainerName)
	if in.SportTypes != nil {
		cols["sport_types"] = pq.StringArray(*in.SportTypes)
	}
	if len(cols) == 0 {
		return nil, ValidationError("no_fields", "nothing to update")
	}
	return cols, nil
}

// Update applies staff edits to a character's profile.
func (s *CharacterService) Update(ctx context.Context, id string, in UpdateCharacterInput) (*models.Character, error) {
	if err := requireCharacterID(id); err != nil {
		return nil, err
	}
	cols, err := in.columns()
	if err != nil {
		return nil, err
	}
	if name, ok := cols["name"].(string); ok {
		cols["handle"] = handleFor(name, id)
	}

	var out *models.Character
	err = transact(ctx, s.DB, func(tx *gorm.DB) error {
		res := tx.Model(&models.Character{}).Where("id = ?", id).Updates(cols)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errCharacterNotFound(id)
		}
		if s.Achievements != nil {
			if _, err := s.Achievements.check(tx, id); err != nil {
				return err
			}
		}
		out, err = loadCharacter(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

type GrantKineticsInput struct {
	CharacterID string `json:"character_id"`
	Amount      int64  `json:"amount"`
	Source      string `json:"source"`
	Description string `json:"description"`
	CreatedBy   string `json:"created_by"`
}

// GrantKinetics credits (amount > 0) or debits (amount < 0) a character.
// Debits are conditional and fail with InsufficientFunds.
func (s *CharacterService) GrantKinetics(ctx context.Context, in GrantKineticsInput) (*models.Character, *models.KineticsTransaction, error) {
	if in.CharacterID == "" {
		return nil, nil, ValidationError("missing_character_id", "character_id is required")
	}
	if in.Amount == 0 {
		return nil, nil, ValidationError("invalid_amount", "amount must not be zero")
	}
	source := in.Source
	if source == "" {
		source = SourceAdmin
	}

	var (
		ch  *models.Character
		row *models.KineticsTransaction
	)
	err := transact(ctx, s.DB, func(tx *gorm.DB) error {
		entry := ledgerEntry{
			CharacterID: in.CharacterID,
			Source:      source,
			Description: in.Description,
			CreatedBy:   in.CreatedBy,
		}
		var err error
		if in.Amount > 0 {
			entry.Amount = in.Amount
			row, err = credit(tx, entry)
		} else {
			entry.Amount = -in.Amount
			row, err = debit(tx, entry)
		}
		if err != nil {
			return err
		}

		title := fmt.Sprintf("+%d kinetics!", in.Amount)
		msg := in.Description
		if msg == "" {
			msg = "Kinetics credited"
		}
		if in.Amount < 0 {
			title = fmt.Sprintf("%d kinetics", in.Amount)
			if in.Description == "" {
				msg = "Kinetics debited"
			}
		}
		if err := notify(tx, in.CharacterID, NotifyKinetics, title, msg, nil); err != nil {
			return err
		}
		if in.Amount > 0 && s.Achievements != nil {
			if _, err := s.Achievements.check(tx, in.CharacterID); err != nil {
				return err
			}
		}
		ch, err = loadCharacter(tx, in.CharacterID)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return ch, row, nil
}

type GameCompleteInput struct {
	CharacterID    string `json:"character_id"`
	GameName       string `json:"game_name"`
	Won            *bool  `json:"won"`
	Score          int64  `json:"score"`
	EarnedXP       int64  `json:"earned_xp"`
	EarnedKinetics int64  `json:"earned_kinetics"`
}

// GameOutcome is the result of recording a finished mini-game.
type GameOutcome struct {
	Character       *models.Character    `json:"character"`
	NewAchievements []models.Achievement `json:"new_achievements"`
}

// CompleteGame records a mini-game result, grants its experience and kinetics,
// runs the achievement check and refreshes the current tournament.
func (s *CharacterService) CompleteGame(ctx context.Context, in GameCompleteInput) (*GameOutcome, error) {
	if in.CharacterID == "" {
		return nil, ValidationError("missing_character_id", "character_id is required")
	}
	if in.EarnedXP < 0 || in.EarnedKinetics < 0 {
		return nil, ValidationError("invalid_reward", "earned_xp and earned_kinetics must be non-negative")
	}
	if in.GameName == "" {
		in.GameName = "game"
	}
	won := in.Won == nil || *in.Won

	var (
		out     GameOutcome
		touched *models.Tournament
	)
	err := transact(ctx, s.DB, func(tx *gorm.DB) error {
		u := progressUpdate{
			Experience:  in.EarnedXP,
			Kinetics:    in.EarnedKinetics,
			GamesPlayed: 1,
		}
		if won {
			u.GamesWon = 1
		}
		if err := applyProgress(tx, in.CharacterID, u); err != nil {
			return err
		}

		result := models.GameResult{
			ID:             uuid.NewString(),
			CharacterID:    in.CharacterID,
			GameName:       in.GameName,
			Won:            won,
			EarnedXP:       in.EarnedXP,
			EarnedKinetics: in.EarnedKinetics,
			Score:          in.Score,
		}
		if err := tx.Create(&result).Error; err != nil {
			return err
		}
		if in.EarnedKinetics > 0 {
			if _, err := appendLedger(tx, ledgerEntry{
				CharacterID: in.CharacterID,
				Amount:      in.EarnedKinetics,
				Source:      SourceGame,
				Description: fmt.Sprintf("Mini-game: %s", in.GameName),
			}, models.TransactionEarn); err != nil {
				return err
			}
		}

		var err error
		if s.Achievements != nil {
			if out.NewAchievements, err = s.Achievements.check(tx, in.CharacterID); err != nil {
				return err
			}
		}
		if s.Tournaments != nil {
			if touched, err = s.Tournaments.refreshForCharacter(tx, in.CharacterID, s.now()); err != nil {
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
	return &out, nil
}

type AddSportInput struct {
	CharacterID string `json:"character_id"`
	SportType   string `json:"sport_type"`
	Cost        *int64 `json:"cost"`
}

// AddSport pays to add a sport to the character's set.
func (s *CharacterService) AddSport(ctx context.Context, in AddSportInput) (*models.Character, error) {
	sport := strings.TrimSpace(in.SportType)
	if in.CharacterID == "" {
		return nil, ValidationError("missing_character_id", "character_id is required")
	}
	if sport == "" {
		return nil, ValidationError("missing_sport_type", "sport_type is required")
	}
	cost := s.Economy.AddSportCost
	if in.Cost != nil {
		cost = *in.Cost
	}
	if cost < 0 {
		return nil, ValidationError("invalid_cost", "cost cannot be negative")
	}

	var out *models.Character
	err := transact(ctx, s.DB, func(tx *gorm.DB) error {
		ch, err := lockCharacter(tx, in.CharacterID)
		if err != nil {
			return err
		}
		if ch.HasSport(sport) {
			return ConflictError("sport_already_added", "sport %s already added", sport)
		}
		if cost > 0 {
			if _, err := debit(tx, ledgerEntry{
				CharacterID: ch.ID,
				Amount:      cost,
				Source:      SourceSport,
				Description: fmt.Sprintf("New sport: %s", sportDisplayName(sport)),
			}); err != nil {
				return err
			}
		}

		sports := append(pq.StringArray{}, ch.SportTypes...)
		if len(sports) == 0 && ch.SportType != "" {
			sports = append(sports, ch.SportType)
		}
		sports = append(sports, sport)
		if err := tx.Model(&models.Character{}).Where("id = ?", ch.ID).Update("sport_types", sports).Error; err != nil {
			return err
		}
		if err := notify(tx, ch.ID, NotifyPurchase, fmt.Sprintf("New sport: %s!", sportDisplayName(sport)),
			"New tricks are now available to learn.", map[string]interface{}{"sport_type": sport}); err != nil {
			return err
		}
		out, err = loadCharacter(tx, ch.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SetTrainer records the trainer's display name on the character.
func (s *CharacterService) SetTrainer(ctx context.Context, id, trainerName string) (*models.Character, error) {
	return s.Update(ctx, id, UpdateCharacterInput{TrainerName: &trainerName})
}

func (s *CharacterService) SetAge(ctx context.Context, id string, age int) (*models.Character, error) {
	return s.Update(ctx, id, UpdateCharacterInput{Age: &age})
}

type TrainingVisitInput struct {
	CharacterID string `json:"character_id"`
	VisitDate   string `json:"visit_date"`
	ConfirmedBy string `json:"confirmed_by"`
	Notes       string `json:"notes"`
}

// AddTrainingVisit records attendance, which feeds tournament scores and the
// training_visits achievements.
func (s *CharacterService) AddTrainingVisit(ctx context.Context, in TrainingVisitInput) (*models.TrainingVisit, error) {
	if in.CharacterID == "" {
		return nil, ValidationError("missing_character_id", "character_id is required")
	}
	loc := time.UTC
	if s.Tournaments != nil {
		loc = s.Tournaments.loc()
	}
	y, m, d := s.now().In(loc).Date()
	visitDate := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	if in.VisitDate != "" {
		parsed, err := time.Parse("2006-01-02", in.VisitDate)
		if err != nil {
			return nil, ValidationError("invalid_visit_date", "visit_date must be YYYY-MM-DD")
		}
		visitDate = parsed
	}

	visit := models.TrainingVisit{
		ID:          uuid.NewString(),
		CharacterID: in.CharacterID,
		VisitDate:   visitDate,
		ConfirmedBy: in.ConfirmedBy,
		Notes:       in.Notes,
	}
	var touched *models.Tournament
	err := transact(ctx, s.DB, func(tx *gorm.DB) error {
		if _, err := loadCharacter(tx, in.CharacterID); err != nil {
			return err
		}
		if err := tx.Create(&visit).Error; err != nil {
			return err
		}
		if err := notify(tx, in.CharacterID, NotifyTraining, "Training confirmed!",
			fmt.Sprintf("Training on %s counted.", visitDate.Format("02.01.2006")), nil); err != nil {
			return err
		}
		var err error
		if s.Achievements != nil {
			if _, err = s.Achievements.check(tx, in.CharacterID); err != nil {
				return err
			}
		}
		if s.Tournaments != nil {
			asOf := time.Date(visitDate.Year(), visitDate.Month(), visitDate.Day(), 12, 0, 0, 0, loc)
			touched, err = s.Tournaments.refreshForCharacter(tx, in.CharacterID, asOf)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	if touched != nil {
		s.Tournaments.invalidate(ctx, touched)
	}
	return &visit, nil
}

func (s *CharacterService) ListTrainingVisits(ctx context.Context, characterID string) ([]models.TrainingVisit, error) {
	if err := requireCharacterID(characterID); err != nil {
		return nil, err
	}
	var visits []models.TrainingVisit
	err := s.DB.WithContext(ctx).
		Where("character_id = ?", characterID).
		Order("visit_date DESC").
		Limit(visitsListLimit).
		Find(&visits).Error
	return visits, err
}

func (s *CharacterService) ListTransactions(ctx context.Context, characterID string) ([]models.KineticsTransaction, error) {
	if err := requireCharacterID(characterID); err != nil {
		return nil, err
	}
	var rows []models.KineticsTransaction
	err := s.DB.WithContext(ctx).
		Where("character_id = ?", characterID).
		Order("created_at DESC").
		Limit(transactionsListLimit).
		Find(&rows).Error
	return rows, err
}

// ProfileStats are the public counters shown next to a character.
type ProfileStats struct {
	TricksLearned      int64              `json:"tricks_learned"`
	AchievementsEarned int64              `json:"achievements_earned"`
	TrainingVisits     int64              `json:"training_visits"`
	TournamentHistory  []TournamentResult `json:"tournament_history"`
}

// PublicProfile returns a character with its public stats.
func (s *CharacterService) PublicProfile(ctx context.Context, id string) (*models.Character, *ProfileStats, error) {
	ch, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	db := s.DB.WithContext(ctx)
	var stats ProfileStats
	if err := db.Model(&models.CharacterTrick{}).Where("character_id = ?", id).Count(&stats.TricksLearned).Error; err != nil {
		return nil, nil, err
	}
	if err := db.Model(&models.CharacterAchievement{}).Where("character_id = ?", id).Count(&stats.AchievementsEarned).Error; err != nil {
		return nil, nil, err
	}
	if err := db.Model(&models.TrainingVisit{}).Where("character_id = ?", id).Count(&stats.TrainingVisits).Error; err != nil {
		return nil, nil, err
	}
	if s.Tournaments != nil {
		if stats.TournamentHistory, err = s.Tournaments.recentResults(db, id, profileHistoryLimit); err != nil {
			return nil, nil, err
		}
	}
	if stats.TournamentHistory == nil {
		stats.TournamentHistory = []TournamentResult{}
	}
	return ch, &stats, nil
}
