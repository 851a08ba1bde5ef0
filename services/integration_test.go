package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/dima260208d-dot/kinetik-energy-project/config"
	"github.com/dima260208d-dot/kinetik-energy-project/models"
	"github.com/dima260208d-dot/kinetik-energy-project/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceSuite struct {
	suite.Suite
	ctx context.Context
	db  *gorm.DB
	log *zap.Logger

	achievements  *AchievementService
	tournaments   *TournamentService
	characters    *CharacterService
	tricks        *TrickService
	shop          *ShopService
	notifications *NotificationService
	diary         *DiaryService
}

func TestServiceSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration tests in short mode")
	}
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupSuite() {
	s.ctx = context.Background()
	s.log = zap.NewNop()
	s.db = testutil.Postgres(s.T())
}

func (s *ServiceSuite) SetupTest() {
	for _, m := range models.All() {
		stmt := &gorm.Statement{DB: s.db}
		s.Require().NoError(stmt.Parse(m))
		s.Require().NoError(s.db.Exec(fmt.Sprintf("TRUNCATE TABLE %q CASCADE", stmt.Schema.Table)).Error)
	}

	s.achievements = NewAchievementService(s.db, s.log)
	s.Require().NoError(s.achievements.SeedDefaults(s.ctx))
	s.tournaments = NewTournamentService(s.db, s.log, nil, 100, time.UTC)
	s.characters = NewCharacterService(s.db, s.log, config.Economy{
		TournamentEntryFee: 100,
		StartingKinetics:   100,
		AddSportCost:       100,
	}, s.achievements, s.tournaments)
	s.tricks = NewTrickService(s.db, s.log, s.achievements, s.tournaments)
	s.shop = NewShopService(s.db, s.log)
	s.notifications = NewNotificationService(s.db)
	s.diary = NewDiaryService(s.db, s.log, nil, time.UTC)
}

func (s *ServiceSuite) newCharacter(name string) *models.Character {
	ch, _, err := s.characters.Create(s.ctx, CreateCharacterInput{
		UserID:    uuid.NewString(),
		Name:      name,
		SportType: "bmx",
	})
	s.Require().NoError(err)
	return ch
}

func (s *ServiceSuite) newTricks(n int, xp, kinetics int64) []string {
	ids := make([]string, n)
	for i := range ids {
		t := models.Trick{
			ID:               uuid.NewString(),
			Name:             fmt.Sprintf("trick-%d", i),
			SportType:        "bmx",
			ExperienceReward: xp,
			KineticsReward:   kinetics,
		}
		s.Require().NoError(s.db.Create(&t).Error)
		ids[i] = t.ID
	}
	return ids
}

func (s *ServiceSuite) balance(id string) int64 {
	var ch models.Character
	s.Require().NoError(s.db.First(&ch, "id = ?", id).Error)
	return ch.Kinetics
}

func (s *ServiceSuite) count(model interface{}, query string, args ...interface{}) int64 {
	var n int64
	s.Require().NoError(s.db.Model(model).Where(query, args...).Count(&n).Error)
	return n
}

func (s *ServiceSuite) requireKind(err error, kind ErrorKind, code string) {
	s.T().Helper()
	appErr, ok := AsAppError(err)
	s.Require().True(ok, "expected AppError, got %v", err)
	s.Equal(kind, appErr.Kind)
	s.Equal(code, appErr.Code)
}

// ---- characters ----

func (s *ServiceSuite) TestCreateCharacterCreditsThroughLedger() {
	ch := s.newCharacter("Alex")

	s.Equal(int64(100), ch.Kinetics)
	s.Equal(1, ch.Level)
	s.Equal(int64(1), s.count(&models.KineticsTransaction{}, "character_id = ? AND source = ?", ch.ID, SourceWelcome))
	s.Equal(int64(1), s.count(&models.CharacterNotification{}, "character_id = ? AND notification_type = ?", ch.ID, NotifyWelcome))

	var welcome models.Achievement
	s.Require().NoError(s.db.First(&welcome, "code = ?", "WELCOME").Error)
	s.Equal(int64(1), s.count(&models.CharacterAchievement{}, "character_id = ? AND achievement_id = ?", ch.ID, welcome.ID))

	_, _, err := s.characters.Create(s.ctx, CreateCharacterInput{UserID: ch.UserID, Name: "Again", SportType: "bmx"})
	s.requireKind(err, KindConflict, "character_exists")
}

func (s *ServiceSuite) TestCreateCharacterReturnsGrantedAchievements() {
	ch, awarded, err := s.characters.Create(s.ctx, CreateCharacterInput{
		UserID:    uuid.NewString(),
		Name:      "Newbie",
		SportType: "bmx",
	})
	s.Require().NoError(err)
	s.Equal([]string{"WELCOME"}, achievementCodes(awarded))
	s.Equal(int64(1), s.count(&models.CharacterNotification{}, "character_id = ? AND notification_type = ?", ch.ID, NotifyAchievement))
}

func (s *ServiceSuite) TestGameExperienceCrossesLevel() {
	ch := s.newCharacter("Gamer")
	xp := int64(95)
	_, err := s.characters.Update(s.ctx, ch.ID, UpdateCharacterInput{Experience: &xp})
	s.Require().NoError(err)

	out, err := s.characters.CompleteGame(s.ctx, GameCompleteInput{CharacterID: ch.ID, EarnedXP: 10})
	s.Require().NoError(err)
	s.Equal(int64(105), out.Character.Experience)
	s.Equal(2, out.Character.Level)
	s.Equal(1, out.Character.GamesPlayed)
	s.Equal(1, out.Character.GamesWon)
}

func (s *ServiceSuite) TestGrantKineticsDebitIsConditional() {
	ch := s.newCharacter("Spender")

	_, _, err := s.characters.GrantKinetics(s.ctx, GrantKineticsInput{CharacterID: ch.ID, Amount: -500})
	s.requireKind(err, KindInsufficientFunds, "not_enough_kinetics")
	s.Equal(int64(100), s.balance(ch.ID))

	updated, row, err := s.characters.GrantKinetics(s.ctx, GrantKineticsInput{CharacterID: ch.ID, Amount: -40})
	s.Require().NoError(err)
	s.Equal(int64(60), updated.Kinetics)
	s.Equal(int64(-40), row.Amount)
	s.Equal(models.TransactionSpend, row.TransactionType)
}

func (s *ServiceSuite) TestUnknownCharacterIsNotFound() {
	_, err := s.characters.Get(s.ctx, uuid.NewString())
	s.requireKind(err, KindNotFound, "character_not_found")

	_, err = s.characters.Get(s.ctx, "not-a-uuid")
	s.requireKind(err, KindNotFound, "character_not_found")
}

// ---- tricks and achievements ----

func (s *ServiceSuite) TestConfirmSameTrickTwiceRewardsOnce() {
	ch := s.newCharacter("Rider")
	ids := s.newTricks(1, 20, 15)

	first, err := s.tricks.Confirm(s.ctx, ConfirmTricksInput{CharacterID: ch.ID, TrickIDs: ids})
	s.Require().NoError(err)
	s.Equal(1, first.NewlyConfirmed)
	s.Equal(int64(20), first.TotalExperience)

	second, err := s.tricks.Confirm(s.ctx, ConfirmTricksInput{CharacterID: ch.ID, TrickIDs: ids})
	s.Require().NoError(err)
	s.Equal(0, second.NewlyConfirmed)
	s.Equal(int64(0), second.TotalKinetics)
	s.Equal(int64(20), second.Character.Experience)
	s.Equal(int64(1), s.count(&models.KineticsTransaction{}, "character_id = ? AND source = ?", ch.ID, SourceTrick))
}

func (s *ServiceSuite) TestConfirmSkipsUnknownTricks() {
	ch := s.newCharacter("Skipper")
	ids := s.newTricks(1, 10, 0)

	res, err := s.tricks.Confirm(s.ctx, ConfirmTricksInput{
		CharacterID: ch.ID,
		TrickIDs:    append(ids, uuid.NewString(), "garbage", ids[0]),
	})
	s.Require().NoError(err)
	s.Equal(1, res.NewlyConfirmed)
}

func (s *ServiceSuite) TestTricksCountAchievementAtFifthTrick() {
	ch := s.newCharacter("Learner")
	ids := s.newTricks(5, 1, 0)

	res, err := s.tricks.Confirm(s.ctx, ConfirmTricksInput{CharacterID: ch.ID, TrickIDs: ids[:4]})
	s.Require().NoError(err)
	s.NotContains(achievementCodes(res.NewAchievements), "TRICKS_5")
	s.Contains(achievementCodes(res.NewAchievements), "FIRST_TRICK")

	res, err = s.tricks.Confirm(s.ctx, ConfirmTricksInput{CharacterID: ch.ID, TrickIDs: ids[4:]})
	s.Require().NoError(err)
	s.Equal([]string{"TRICKS_5"}, achievementCodes(res.NewAchievements))

	again, err := s.achievements.Check(s.ctx, ch.ID)
	s.Require().NoError(err)
	s.Empty(again)
}

func achievementCodes(list []models.Achievement) []string {
	out := make([]string, 0, len(list))
	for _, a := range list {
		out = append(out, a.Code)
	}
	return out
}

func (s *ServiceSuite) TestAchievementListShowsProgress() {
	ch := s.newCharacter("Progress")
	ids := s.newTricks(3, 1, 0)
	_, err := s.tricks.Confirm(s.ctx, ConfirmTricksInput{CharacterID: ch.ID, TrickIDs: ids})
	s.Require().NoError(err)

	list, err := s.achievements.List(s.ctx, ch.ID)
	s.Require().NoError(err)
	for _, a := range list {
		switch a.Code {
		case "TRICKS_5":
			s.False(a.Earned)
			s.Equal(int64(3), a.Progress)
		case "FIRST_TRICK", "WELCOME":
			s.True(a.Earned)
			s.NotNil(a.EarnedAt)
		}
	}
}

// ---- tournaments ----

func (s *ServiceSuite) TestGetOrCreateIsIdempotent() {
	s.newCharacter("A")
	s.newCharacter("B")
	now := time.Now()

	first, created, err := s.tournaments.GetOrCreate(s.ctx, now)
	s.Require().NoError(err)
	s.True(created)
	s.Equal(models.TournamentStatusActive, first.Status)
	s.Equal(time.Monday, first.WeekStart.Weekday())
	s.Equal(time.Sunday, first.WeekEnd.Weekday())

	second, created, err := s.tournaments.GetOrCreate(s.ctx, now)
	s.Require().NoError(err)
	s.False(created)
	s.Equal(first.ID, second.ID)
	s.Equal(int64(1), s.count(&models.Tournament{}, "1 = 1"))
	s.Equal(int64(2), s.count(&models.CharacterNotification{}, "notification_type = ?", NotifyTournament))
}

func (s *ServiceSuite) TestJoinTwiceConflictsAndDebitsOnce() {
	ch := s.newCharacter("Joiner")
	now := time.Now()

	res, err := s.tournaments.Join(s.ctx, ch.ID, now)
	s.Require().NoError(err)
	s.Equal(int64(0), res.Character.Kinetics)
	s.Equal(1, res.Entry.Rank)

	_, err = s.tournaments.Join(s.ctx, ch.ID, now)
	s.requireKind(err, KindConflict, "already_joined")
	s.Equal(int64(0), s.balance(ch.ID))
	s.Equal(int64(1), s.count(&models.KineticsTransaction{}, "character_id = ? AND source = ?", ch.ID, SourceTournament))
	s.Equal(int64(1), s.count(&models.TournamentEntry{}, "character_id = ?", ch.ID))
}

func (s *ServiceSuite) TestJoinWithoutFundsChangesNothing() {
	ch := s.newCharacter("Broke")
	pricey := NewTournamentService(s.db, s.log, nil, 500, time.UTC)

	_, err := pricey.Join(s.ctx, ch.ID, time.Now())
	s.requireKind(err, KindInsufficientFunds, "not_enough_kinetics")
	s.Equal(int64(100), s.balance(ch.ID))
	s.Equal(int64(0), s.count(&models.TournamentEntry{}, "character_id = ?", ch.ID))
}

func (s *ServiceSuite) TestRecalcRanksWithJoinOrderTieBreak() {
	now := time.Now()
	a := s.newCharacter("First")
	b := s.newCharacter("Second")
	c := s.newCharacter("Third")
	var tournamentID string
	for _, ch := range []*models.Character{a, b, c} {
		res, err := s.tournaments.Join(s.ctx, ch.ID, now)
		s.Require().NoError(err)
		tournamentID = res.Tournament.ID
		time.Sleep(5 * time.Millisecond)
	}

	games := map[string]int{a.ID: 8, b.ID: 8, c.ID: 5}
	for id, n := range games {
		for i := 0; i < n; i++ {
			s.Require().NoError(s.db.Create(&models.GameResult{
				ID:          uuid.NewString(),
				CharacterID: id,
				GameName:    "race",
				Won:         true,
			}).Error)
		}
	}

	entries, err := s.tournaments.RecalcScores(s.ctx, tournamentID)
	s.Require().NoError(err)
	s.Require().Len(entries, 3)

	byChar := map[string]models.TournamentEntry{}
	for _, e := range entries {
		byChar[e.CharacterID] = e
	}
	s.Equal(int64(80), byChar[a.ID].Score)
	s.Equal(1, byChar[a.ID].Rank)
	s.Equal(int64(80), byChar[b.ID].Score)
	s.Equal(2, byChar[b.ID].Rank)
	s.Equal(int64(50), byChar[c.ID].Score)
	s.Equal(3, byChar[c.ID].Rank)
}

func (s *ServiceSuite) TestActivityRefreshesJoinedTournament() {
	ch := s.newCharacter("Active")
	res, err := s.tournaments.Join(s.ctx, ch.ID, time.Now())
	s.Require().NoError(err)

	_, err = s.characters.CompleteGame(s.ctx, GameCompleteInput{CharacterID: ch.ID, EarnedXP: 5})
	s.Require().NoError(err)
	_, err = s.characters.AddTrainingVisit(s.ctx, TrainingVisitInput{CharacterID: ch.ID})
	s.Require().NoError(err)

	var entry models.TournamentEntry
	s.Require().NoError(s.db.First(&entry, "id = ?", res.Entry.ID).Error)
	s.Equal(int64(PointsPerGame), entry.GamesScore)
	s.Equal(int64(PointsPerTraining), entry.TrainingScore)
	s.Equal(int64(PointsPerGame+PointsPerTraining), entry.Score)
}

func (s *ServiceSuite) TestSendWeeklyResults() {
	now := time.Now()
	ch := s.newCharacter("Finisher")
	res, err := s.tournaments.Join(s.ctx, ch.ID, now)
	s.Require().NoError(err)

	sent, err := s.tournaments.SendWeeklyResults(s.ctx, now.AddDate(0, 0, 7))
	s.Require().NoError(err)
	s.Equal(1, sent)
	s.Equal(int64(1), s.count(&models.CharacterNotification{}, "character_id = ? AND notification_type = ?", ch.ID, NotifyWeeklyResults))

	var t models.Tournament
	s.Require().NoError(s.db.First(&t, "id = ?", res.Tournament.ID).Error)
	s.Equal(models.TournamentStatusFinished, t.Status)

	_, err = s.tournaments.SendWeeklyResults(s.ctx, now.AddDate(0, 0, 7))
	s.requireKind(err, KindConflict, "results_already_sent")
	s.Equal(int64(1), s.count(&models.CharacterNotification{}, "character_id = ? AND notification_type = ?", ch.ID, NotifyWeeklyResults))

	_, err = s.tournaments.SendWeeklyResults(s.ctx, now.AddDate(0, 0, 21))
	s.requireKind(err, KindNotFound, "no_previous_tournament")
}

func (s *ServiceSuite) TestLeaderboard() {
	ch := s.newCharacter("Leader")
	joined, err := s.tournaments.Join(s.ctx, ch.ID, time.Now())
	s.Require().NoError(err)

	weekly, err := s.tournaments.Leaderboard(s.ctx, PeriodWeekly, time.Now())
	s.Require().NoError(err)
	s.Require().Len(weekly, 1)
	s.Equal(ch.ID, weekly[0].CharacterID)
	s.Equal(1, weekly[0].Rank)

	monthly, err := s.tournaments.Leaderboard(s.ctx, PeriodMonthly, joined.Tournament.WeekStart)
	s.Require().NoError(err)
	s.Require().Len(monthly, 1)
	s.Equal(ch.ID, monthly[0].CharacterID)

	_, err = s.tournaments.Leaderboard(s.ctx, "yearly", time.Now())
	s.requireKind(err, KindValidation, "invalid_period")
}

// ---- shop ----

func (s *ServiceSuite) TestPurchaseWithoutFundsLeavesStateUnchanged() {
	ch := s.newCharacter("Shopper")

	_, err := s.shop.Purchase(s.ctx, PurchaseInput{CharacterID: ch.ID, ItemType: models.ItemHairColor, ItemValue: "gold", Cost: 500})
	s.requireKind(err, KindInsufficientFunds, "not_enough_kinetics")
	s.Equal(int64(100), s.balance(ch.ID))
	s.Equal(int64(0), s.count(&models.PurchasedItem{}, "character_id = ?", ch.ID))
}

func (s *ServiceSuite) TestPurchaseTwiceIsRejected() {
	ch := s.newCharacter("Collector")
	in := PurchaseInput{CharacterID: ch.ID, ItemType: models.ItemHairColor, ItemValue: "red", Cost: 30}

	res, err := s.shop.Purchase(s.ctx, in)
	s.Require().NoError(err)
	s.Equal(int64(70), res.Character.Kinetics)
	s.Equal("red", res.Character.HairColor)

	_, err = s.shop.Purchase(s.ctx, in)
	s.requireKind(err, KindConflict, "already_purchased")
	s.Equal(int64(70), s.balance(ch.ID))
}

func (s *ServiceSuite) TestApplyOwnedCustomizationIsFree() {
	ch := s.newCharacter("Stylist")
	red := PurchaseInput{CharacterID: ch.ID, ItemType: models.ItemHairColor, ItemValue: "red", Cost: 30}
	blue := PurchaseInput{CharacterID: ch.ID, ItemType: models.ItemHairColor, ItemValue: "blue", Cost: 30}

	_, err := s.shop.ApplyCustomization(s.ctx, red)
	s.Require().NoError(err)
	_, err = s.shop.ApplyCustomization(s.ctx, blue)
	s.Require().NoError(err)
	s.Equal(int64(40), s.balance(ch.ID))

	res, err := s.shop.ApplyCustomization(s.ctx, red)
	s.Require().NoError(err)
	s.True(res.WasFree)
	s.Equal("red", res.Character.HairColor)
	s.Equal(int64(40), res.Character.Kinetics)
}

func (s *ServiceSuite) TestInvalidItemType() {
	ch := s.newCharacter("Invalid")
	_, err := s.shop.Purchase(s.ctx, PurchaseInput{CharacterID: ch.ID, ItemType: "wings", ItemValue: "x", Cost: 1})
	s.requireKind(err, KindValidation, "invalid_item_type")
}

func (s *ServiceSuite) TestBuyAccessory() {
	ch := s.newCharacter("Accessorized")
	acc := models.Accessory{ID: uuid.NewString(), Name: "Helmet", Price: 60, IsAvailable: true}
	s.Require().NoError(s.db.Create(&acc).Error)

	res, err := s.shop.BuyAccessory(s.ctx, BuyAccessoryInput{CharacterID: ch.ID, AccessoryID: acc.ID})
	s.Require().NoError(err)
	s.Equal(int64(40), res.Character.Kinetics)

	_, err = s.shop.BuyAccessory(s.ctx, BuyAccessoryInput{CharacterID: ch.ID, AccessoryID: acc.ID})
	s.requireKind(err, KindConflict, "already_owned")

	list, err := s.shop.ListAccessories(s.ctx, ch.ID)
	s.Require().NoError(err)
	s.Require().Len(list, 1)
	s.True(list[0].Owned)
}

// ---- notifications ----

func (s *ServiceSuite) TestMarkNotificationsRead() {
	ch := s.newCharacter("Reader")
	other := s.newCharacter("Other")

	list, unread, err := s.notifications.List(s.ctx, ch.ID)
	s.Require().NoError(err)
	s.Require().NotEmpty(list)
	s.Equal(int64(len(list)), unread)

	n, err := s.notifications.MarkRead(s.ctx, ch.ID, []string{list[0].ID})
	s.Require().NoError(err)
	s.Equal(int64(1), n)

	_, err = s.notifications.MarkRead(s.ctx, ch.ID, nil)
	s.Require().NoError(err)
	_, unread, err = s.notifications.List(s.ctx, ch.ID)
	s.Require().NoError(err)
	s.Equal(int64(0), unread)

	_, otherUnread, err := s.notifications.List(s.ctx, other.ID)
	s.Require().NoError(err)
	s.Positive(otherUnread)
}

// ---- diary ----

func (s *ServiceSuite) TestDiaryVisibilityByRole() {
	trainer := models.User{ID: uuid.NewString(), Name: "Coach", Role: models.RoleTrainer}
	alice := models.User{ID: uuid.NewString(), Name: "Alice", Role: models.RoleStudent}
	bob := models.User{ID: uuid.NewString(), Name: "Bob", Role: models.RoleStudent}
	for _, u := range []*models.User{&trainer, &alice, &bob} {
		s.Require().NoError(s.db.Create(u).Error)
	}

	coach := Viewer{UserID: trainer.ID, Role: models.RoleTrainer}
	entry, err := s.diary.CreateEntry(s.ctx, coach, CreateEntryInput{
		StudentID: alice.ID,
		Comment:   "Clean manual",
		Media:     []MediaInput{{Type: "image", URL: "https://cdn.example.com/a.jpg"}},
	})
	s.Require().NoError(err)
	s.Len(entry.Media, 1)

	_, err = s.diary.CreateEntry(s.ctx, Viewer{UserID: bob.ID, Role: models.RoleStudent}, CreateEntryInput{StudentID: alice.ID, Comment: "x"})
	s.requireKind(err, KindForbidden, "forbidden")

	mine, err := s.diary.ListEntries(s.ctx, Viewer{UserID: alice.ID, Role: models.RoleStudent}, "")
	s.Require().NoError(err)
	s.Require().Len(mine, 1)
	s.Len(mine[0].Media, 1)

	theirs, err := s.diary.ListEntries(s.ctx, Viewer{UserID: bob.ID, Role: models.RoleStudent}, alice.ID)
	s.Require().NoError(err)
	s.Empty(theirs)

	written, err := s.diary.ListEntries(s.ctx, coach, "")
	s.Require().NoError(err)
	s.Len(written, 1)

	all, err := s.diary.ListEntries(s.ctx, Viewer{UserID: uuid.NewString(), Role: models.RoleDirector}, alice.ID)
	s.Require().NoError(err)
	s.Len(all, 1)
}

func TestRedisLeaderboardCache(t *testing.T) {
	opts := testutil.Redis(t)
	ctx := context.Background()

	cache, err := NewRedisLeaderboardCache(ctx, opts, time.Minute, zap.NewNop())
	require.NoError(t, err)
	defer cache.Close()

	key := weeklyLeaderboardKey("t-1")
	var rows []LeaderboardRow
	hit, err := cache.Get(ctx, key, &rows)
	require.NoError(t, err)
	require.False(t, hit)

	require.NoError(t, cache.Set(ctx, key, []LeaderboardRow{{Rank: 1, CharacterID: "c-1", Score: 80}}))
	hit, err = cache.Get(ctx, key, &rows)
	require.NoError(t, err)
	require.True(t, hit)
	require.Len(t, rows, 1)
	require.Equal(t, int64(80), rows[0].Score)

	require.NoError(t, cache.Delete(ctx, key))
	hit, err = cache.Get(ctx, key, &rows)
	require.NoError(t, err)
	require.False(t, hit)
}
