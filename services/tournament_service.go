package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dima260208d-dot/kinetik-energy-project/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Points per counted activity inside the tournament week.
const (
	PointsPerGame     = 10
	PointsPerTrick    = 25
	PointsPerTraining = 30

	leaderboardLimit = 50
)

type TournamentService struct {
	DB       *gorm.DB
	Log      *zap.Logger
	Cache    LeaderboardCache
	EntryFee int64
	Location *time.Location
}

func NewTournamentService(db *gorm.DB, log *zap.Logger, cache LeaderboardCache, entryFee int64, loc *time.Location) *TournamentService {
	if loc == nil {
		loc = time.UTC
	}
	return &TournamentService{DB: db, Log: log, Cache: cache, EntryFee: entryFee, Location: loc}
}

func (s *TournamentService) loc() *time.Location {
	if s.Location == nil {
		return time.UTC
	}
	return s.Location
}

// WeekBounds returns the Monday and Sunday (as UTC-midnight dates) of the
// week that contains asOf in loc.
func WeekBounds(asOf time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	local := asOf.In(loc)
	offset := (int(local.Weekday()) + 6) % 7
	y, m, d := local.AddDate(0, 0, -offset).Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 6)
}

// activityWindow is [Monday 00:00, next Monday 00:00) in loc.
func activityWindow(t *models.Tournament, loc *time.Location) (time.Time, time.Time) {
	y, m, d := t.WeekStart.Date()
	from := time.Date(y, m, d, 0, 0, 0, 0, loc)
	return from, from.AddDate(0, 0, 7)
}

func scoreOf(games, tricks, trainings int64) (gamesScore, tricksScore, trainingScore, total int64) {
	gamesScore = games * PointsPerGame
	tricksScore = tricks * PointsPerTrick
	trainingScore = trainings * PointsPerTraining
	return gamesScore, tricksScore, trainingScore, gamesScore + tricksScore + trainingScore
}

// assignRanks orders entries by score desc, earlier join first on ties, then id,
// and numbers them 1..N.
func assignRanks(entries []models.TournamentEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.JoinedAt.Equal(b.JoinedAt) {
			return a.JoinedAt.Before(b.JoinedAt)
		}
		return a.ID < b.ID
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
}

func (s *TournamentService) getOrCreate(tx *gorm.DB, asOf time.Time) (*models.Tournament, bool, error) {
	start, end := WeekBounds(asOf, s.loc())
	fresh := models.Tournament{
		ID:        uuid.NewString(),
		WeekStart: start,
		WeekEnd:   end,
		MonthKey:  start.Format("2006-01"),
		EntryFee:  s.EntryFee,
		Status:    models.TournamentStatusActive,
	}
	res := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "week_start"}},
		DoNothing: true,
	}).Create(&fresh)
	if res.Error != nil {
		return nil, false, fmt.Errorf("failed to create tournament: %w", res.Error)
	}
	created := res.RowsAffected == 1
	if created {
		tallyOf(tx).tournament()
		if err := s.broadcastNewTournament(tx, &fresh); err != nil {
			return nil, false, err
		}
	}

	var t models.Tournament
	if err := tx.Where("week_start = ?", start).First(&t).Error; err != nil {
		return nil, false, fmt.Errorf("failed to load tournament for %s: %w", start.Format("2006-01-02"), err)
	}
	return &t, created, nil
}

func (s *TournamentService) broadcastNewTournament(tx *gorm.DB, t *models.Tournament) error {
	var ids []string
	if err := tx.Model(&models.Character{}).Pluck("id", &ids).Error; err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	title := "New tournament started!"
	msg := fmt.Sprintf("Weekly tournament %s - %s. Join for %d kinetics!",
		t.WeekStart.Format("02.01"), t.WeekEnd.Format("02.01"), t.EntryFee)
	notes := make([]*models.CharacterNotification, 0, len(ids))
	for _, id := range ids {
		n, err := buildNotification(id, NotifyTournament, title, msg, map[string]interface{}{"tournament_id": t.ID})
		if err != nil {
			return err
		}
		notes = append(notes, n)
	}
	return tx.CreateInBatches(notes, 500).Error
}

// GetOrCreate returns the tournament of the week containing asOf, creating it
// (and notifying every character) on first access. created is true only for
// the caller whose insert won.
func (s *TournamentService) GetOrCreate(ctx context.Context, asOf time.Time) (*models.Tournament, bool, error) {
	var (
		t       *models.Tournament
		created bool
	)
	err := transact(ctx, s.DB, func(tx *gorm.DB) error {
		var err error
		t, created, err = s.getOrCreate(tx, asOf)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	if created && s.Log != nil {
		s.Log.Info("weekly tournament created",
			zap.String("tournament_id", t.ID),
			zap.String("week_start", t.WeekStart.Format("2006-01-02")))
	}
	return t, created, nil
}

// Current returns this week's tournament with its entries ordered by score.
func (s *TournamentService) Current(ctx context.Context, asOf time.Time) (*models.Tournament, []models.TournamentEntryView, error) {
	t, _, err := s.GetOrCreate(ctx, asOf)
	if err != nil {
		return nil, nil, err
	}
	entries, err := s.entryViews(s.DB.WithContext(ctx), t.ID, 0)
	if err != nil {
		return nil, nil, err
	}
	t.ParticipantsCount = int64(len(entries))
	return t, entries, nil
}

func (s *TournamentService) entryViews(db *gorm.DB, tournamentID string, limit int) ([]models.TournamentEntryView, error) {
	q := db.Table("tournament_entries AS te").
		Select("te.*, c.name, c.level, c.sport_type, c.avatar_url").
		Joins("JOIN characters c ON c.id = te.character_id").
		Where("te.tournament_id = ?", tournamentID).
		Order("te.score DESC, te.joined_at ASC, te.id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []models.TournamentEntryView
	if err := q.Scan(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// JoinResult is returned by Join.
type JoinResult struct {
	Tournament *models.Tournament      `json:"tournament"`
	Entry      *models.TournamentEntry `json:"entry"`
	Character  *models.Character       `json:"character"`
}

// Join enters a character into the current week's tournament, paying the entry fee.
func (s *TournamentService) Join(ctx context.Context, characterID string, asOf time.Time) (*JoinResult, error) {
	if characterID == "" {
		return nil, ValidationError("missing_character_id", "character_id is required")
	}
	var out JoinResult
	err := transact(ctx, s.DB, func(tx *gorm.DB) error {
		t, _, err := s.getOrCreate(tx, asOf)
		if err != nil {
			return err
		}
		if _, err := loadCharacter(tx, characterID); err != nil {
			return err
		}

		var existing int64
		if err := tx.Model(&models.TournamentEntry{}).
			Where("tournament_id = ? AND character_id = ?", t.ID, characterID).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return ConflictError("already_joined", "character already joined this tournament")
		}

		if t.EntryFee > 0 {
			if _, err := debit(tx, ledgerEntry{
				CharacterID: characterID,
				Amount:      t.EntryFee,
				Source:      SourceTournament,
				Description: fmt.Sprintf("Tournament entry %s", t.WeekStart.Format("02.01")),
			}); err != nil {
				return err
			}
		}

		entry := models.TournamentEntry{
			ID:           uuid.NewString(),
			TournamentID: t.ID,
			CharacterID:  characterID,
			JoinedAt:     time.Now(),
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&entry)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ConflictError("already_joined", "character already joined this tournament")
		}

		if err := notify(tx, characterID, NotifyTournament, "You joined the tournament!",
			fmt.Sprintf("Tournament %s - %s. Play games, learn tricks and attend trainings to score points.",
				t.WeekStart.Format("02.01"), t.WeekEnd.Format("02.01")),
			map[string]interface{}{"tournament_id": t.ID}); err != nil {
			return err
		}

		entries, err := s.recalc(tx, t.ID)
		if err != nil {
			return err
		}
		for i := range entries {
			if entries[i].ID == entry.ID {
				entry = entries[i]
			}
		}

		ch, err := loadCharacter(tx, characterID)
		if err != nil {
			return err
		}
		out = JoinResult{Tournament: t, Entry: &entry, Character: ch}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, out.Tournament)
	return &out, nil
}

// recalc recomputes every entry's score from the activity tables and re-ranks.
// The tournament row is locked so concurrent recalcs serialize.
func (s *TournamentService) recalc(tx *gorm.DB, tournamentID string) ([]models.TournamentEntry, error) {
	var t models.Tournament
	err := tx.Clauses(clauseForUpdate).Where("id = ?", tournamentID).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NotFoundError("tournament_not_found", "tournament %s not found", tournamentID)
	}
	if err != nil {
		return nil, err
	}

	var entries []models.TournamentEntry
	if err := tx.Where("tournament_id = ?", tournamentID).Find(&entries).Error; err != nil {
		return nil, err
	}

	from, to := activityWindow(&t, s.loc())
	for i := range entries {
		e := &entries[i]
		var games, tricks, trainings int64
		if err := tx.Model(&models.GameResult{}).
			Where("character_id = ? AND created_at >= ? AND created_at < ?", e.CharacterID, from, to).
			Count(&games).Error; err != nil {
			return nil, err
		}
		if err := tx.Model(&models.CharacterTrick{}).
			Where("character_id = ? AND confirmed_at >= ? AND confirmed_at < ?", e.CharacterID, from, to).
			Count(&tricks).Error; err != nil {
			return nil, err
		}
		if err := tx.Model(&models.TrainingVisit{}).
			Where("character_id = ? AND visit_date >= ? AND visit_date <= ?", e.CharacterID, t.WeekStart, t.WeekEnd).
			Count(&trainings).Error; err != nil {
			return nil, err
		}
		e.GamesScore, e.TricksScore, e.TrainingScore, e.Score = scoreOf(games, tricks, trainings)
	}

	assignRanks(entries)

	for _, e := range entries {
		if err := tx.Model(&models.TournamentEntry{}).Where("id = ?", e.ID).Updates(map[string]interface{}{
			"games_score":    e.GamesScore,
			"tricks_score":   e.TricksScore,
			"training_score": e.TrainingScore,
			"score":          e.Score,
			"rank":           e.Rank,
		}).Error; err != nil {
			return nil, err
		}
	}
	return entries, nil
}

// RecalcScores recomputes and re-ranks one tournament.
func (s *TournamentService) RecalcScores(ctx context.Context, tournamentID string) ([]models.TournamentEntry, error) {
	var entries []models.TournamentEntry
	err := transact(ctx, s.DB, func(tx *gorm.DB) error {
		var err error
		entries, err = s.recalc(tx, tournamentID)
		return err
	})
	if err != nil {
		return nil, err
	}
	var t models.Tournament
	if err := s.DB.WithContext(ctx).Where("id = ?", tournamentID).First(&t).Error; err == nil {
		s.invalidate(ctx, &t)
	}
	return entries, nil
}

// refreshForCharacter recomputes the tournament of asOf's week when the
// character has an entry in it. It never creates a tournament.
func (s *TournamentService) refreshForCharacter(tx *gorm.DB, characterID string, asOf time.Time) (*models.Tournament, error) {
	start, _ := WeekBounds(asOf, s.loc())
	var t models.Tournament
	err := tx.Where("week_start = ?", start).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var n int64
	if err := tx.Model(&models.TournamentEntry{}).
		Where("tournament_id = ? AND character_id = ?", t.ID, characterID).
		Count(&n).Error; err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	if _, err := s.recalc(tx, t.ID); err != nil {
		return nil, err
	}
	return &t, nil
}

// SendWeeklyResults closes the previous week's tournament: recompute, notify
// each participant with rank and score, mark it finished. Returns the number
// of notifications sent. A finished tournament is not announced twice.
func (s *TournamentService) SendWeeklyResults(ctx context.Context, asOf time.Time) (int, error) {
	start, _ := WeekBounds(asOf, s.loc())
	prevStart := start.AddDate(0, 0, -7)

	var (
		t    models.Tournament
		sent int
	)
	err := transact(ctx, s.DB, func(tx *gorm.DB) error {
		err := tx.Clauses(clauseForUpdate).Where("week_start = ?", prevStart).First(&t).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return NotFoundError("no_previous_tournament", "no tournament for week %s", prevStart.Format("2006-01-02"))
		}
		if err != nil {
			return err
		}
		if t.Status == models.TournamentStatusFinished {
			return ConflictError("results_already_sent", "results for week %s were already sent", prevStart.Format("2006-01-02"))
		}

		entries, err := s.recalc(tx, t.ID)
		if err != nil {
			return err
		}
		week := fmt.Sprintf("%s - %s", t.WeekStart.Format("02.01"), t.WeekEnd.Format("02.01"))
		for _, e := range entries {
			data := map[string]interface{}{
				"type":               NotifyWeeklyResults,
				"tournament_id":      t.ID,
				"rank":               e.Rank,
				"score":              e.Score,
				"games_score":        e.GamesScore,
				"tricks_score":       e.TricksScore,
				"training_score":     e.TrainingScore,
				"total_participants": len(entries),
				"week":               week,
			}
			if err := notify(tx, e.CharacterID, NotifyWeeklyResults,
				fmt.Sprintf("Weekly results: place %d!", e.Rank),
				fmt.Sprintf("Tournament %s: %d points", week, e.Score),
				data); err != nil {
				return err
			}
		}
		sent = len(entries)
		return tx.Model(&models.Tournament{}).Where("id = ?", t.ID).Update("status", models.TournamentStatusFinished).Error
	})
	if err != nil {
		return 0, err
	}
	s.invalidate(ctx, &t)
	if s.Log != nil {
		s.Log.Info("weekly results sent", zap.String("tournament_id", t.ID), zap.Int("participants", sent))
	}
	return sent, nil
}

// LeaderboardRow is one line of the weekly or monthly board.
type LeaderboardRow struct {
	Rank          int    `json:"rank"`
	CharacterID   string `json:"character_id"`
	Name          string `json:"name"`
	AvatarURL     string `json:"avatar_url"`
	SportType     string `json:"sport_type"`
	Level         int    `json:"level"`
	Score         int64  `json:"score"`
	GamesScore    int64  `json:"games_score"`
	TricksScore   int64  `json:"tricks_score"`
	TrainingScore int64  `json:"training_score"`
}

const (
	PeriodWeekly  = "weekly"
	PeriodMonthly = "monthly"
)

// Leaderboard returns the top entries for the current week or the month of asOf.
func (s *TournamentService) Leaderboard(ctx context.Context, period string, asOf time.Time) ([]LeaderboardRow, error) {
	switch period {
	case "", PeriodWeekly:
		return s.weeklyLeaderboard(ctx, asOf)
	case PeriodMonthly:
		return s.monthlyLeaderboard(ctx, asOf.In(s.loc()).Format("2006-01"))
	}
	return nil, ValidationError("invalid_period", "period must be weekly or monthly")
}

func (s *TournamentService) weeklyLeaderboard(ctx context.Context, asOf time.Time) ([]LeaderboardRow, error) {
	start, _ := WeekBounds(asOf, s.loc())
	db := s.DB.WithContext(ctx)

	var t models.Tournament
	err := db.Where("week_start = ?", start).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return []LeaderboardRow{}, nil
	}
	if err != nil {
		return nil, err
	}

	key := weeklyLeaderboardKey(t.ID)
	var rows []LeaderboardRow
	if s.cacheGet(ctx, key, &rows) {
		return rows, nil
	}

	views, err := s.entryViews(db, t.ID, leaderboardLimit)
	if err != nil {
		return nil, err
	}
	rows = make([]LeaderboardRow, 0, len(views))
	for _, v := range views {
		rows = append(rows, LeaderboardRow{
			Rank:          v.Rank,
			CharacterID:   v.CharacterID,
			Name:          v.Name,
			AvatarURL:     v.AvatarURL,
			SportType:     v.SportType,
			Level:         v.Level,
			Score:         v.Score,
			GamesScore:    v.GamesScore,
			TricksScore:   v.TricksScore,
			TrainingScore: v.TrainingScore,
		})
	}
	s.cacheSet(ctx, key, rows)
	return rows, nil
}

func (s *TournamentService) monthlyLeaderboard(ctx context.Context, monthKey string) ([]LeaderboardRow, error) {
	key := monthlyLeaderboardKey(monthKey)
	var rows []LeaderboardRow
	if s.cacheGet(ctx, key, &rows) {
		return rows, nil
	}

	err := s.DB.WithContext(ctx).Table("tournament_entries AS te").
		Select("c.id AS character_id, c.name, c.avatar_url, c.sport_type, c.level, "+
			"SUM(te.score) AS score, SUM(te.games_score) AS games_score, "+
			"SUM(te.tricks_score) AS tricks_score, SUM(te.training_score) AS training_score").
		Joins("JOIN tournaments t ON t.id = te.tournament_id").
		Joins("JOIN characters c ON c.id = te.character_id").
		Where("t.month_key = ?", monthKey).
		Group("c.id, c.name, c.avatar_url, c.sport_type, c.level").
		Order("score DESC, c.id ASC").
		Limit(leaderboardLimit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i].Rank = i + 1
	}
	if rows == nil {
		rows = []LeaderboardRow{}
	}
	s.cacheSet(ctx, key, rows)
	return rows, nil
}

func (s *TournamentService) cacheGet(ctx context.Context, key string, dst interface{}) bool {
	if s.Cache == nil {
		return false
	}
	ok, err := s.Cache.Get(ctx, key, dst)
	if err != nil && s.Log != nil {
		s.Log.Warn("leaderboard cache read failed", zap.String("key", key), zap.Error(err))
	}
	return ok && err == nil
}

func (s *TournamentService) cacheSet(ctx context.Context, key string, value interface{}) {
	if s.Cache == nil {
		return
	}
	if err := s.Cache.Set(ctx, key, value); err != nil && s.Log != nil {
		s.Log.Warn("leaderboard cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// invalidate drops cached boards that include t. Call after commit.
func (s *TournamentService) invalidate(ctx context.Context, t *models.Tournament) {
	if s.Cache == nil || t == nil {
		return
	}
	if err := s.Cache.Delete(ctx, weeklyLeaderboardKey(t.ID), monthlyLeaderboardKey(t.MonthKey)); err != nil && s.Log != nil {
		s.Log.Warn("leaderboard cache invalidation failed", zap.String("tournament_id", t.ID), zap.Error(err))
	}
}

// TournamentResult is a past participation shown on public profiles.
type TournamentResult struct {
	TournamentID string    `json:"tournament_id"`
	WeekStart    time.Time `json:"week_start"`
	WeekEnd      time.Time `json:"week_end"`
	Score        int64     `json:"score"`
	Rank         int       `json:"rank"`
}

func (s *TournamentService) recentResults(db *gorm.DB, characterID string, limit int) ([]TournamentResult, error) {
	var out []TournamentResult
	err := db.Table("tournament_entries AS te").
		Select("t.id AS tournament_id, t.week_start, t.week_end, te.score, te.rank").
		Joins("JOIN tournaments t ON t.id = te.tournament_id").
		Where("te.character_id = ?", characterID).
		Order("t.week_start DESC").
		Limit(limit).
		Scan(&out).Error
	return out, err
}
