package services

import (
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/dima260208d-dot/kinetik-energy-project/models"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"gorm.io/gorm"
)

const racers = 8

// race runs fn from racers goroutines at once and returns their errors.
func race(fn func(i int) error) []error {
	errs := make([]error, racers)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			errs[i] = fn(i)
		}(i)
	}
	close(start)
	wg.Wait()
	return errs
}

func (s *ServiceSuite) successes(errs []error, allowed ...ErrorKind) int {
	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		appErr, isApp := AsAppError(err)
		s.Require().True(isApp, "unexpected error: %v", err)
		s.Contains(allowed, appErr.Kind, err.Error())
	}
	return ok
}

func (s *ServiceSuite) TestParallelPurchasesSpendBalanceOnce() {
	ch := s.newCharacter("Spender")
	s.Require().Equal(int64(100), ch.Kinetics)

	errs := race(func(i int) error {
		_, err := s.shop.Purchase(s.ctx, PurchaseInput{
			CharacterID: ch.ID,
			ItemType:    models.ItemHairstyle,
			ItemValue:   strconv.Itoa(i + 1),
			Cost:        100,
		})
		return err
	})

	s.Equal(1, s.successes(errs, KindInsufficientFunds))
	s.Equal(int64(0), s.balance(ch.ID))
	s.Equal(int64(1), s.count(&models.KineticsTransaction{}, "character_id = ? AND source = ?", ch.ID, SourceShop))
	s.Equal(int64(1), s.count(&models.PurchasedItem{}, "character_id = ?", ch.ID))
}

func (s *ServiceSuite) TestParallelJoinsDebitFeeOnce() {
	ch := s.newCharacter("Racer")
	now := time.Now()

	errs := race(func(int) error {
		_, err := s.tournaments.Join(s.ctx, ch.ID, now)
		return err
	})

	s.Equal(1, s.successes(errs, KindConflict, KindInsufficientFunds))
	s.Equal(int64(0), s.balance(ch.ID))
	s.Equal(int64(1), s.count(&models.KineticsTransaction{}, "character_id = ? AND source = ?", ch.ID, SourceTournament))
	s.Equal(int64(1), s.count(&models.TournamentEntry{}, "character_id = ?", ch.ID))
	s.Equal(int64(1), s.count(&models.Tournament{}, "1 = 1"))
}

func (s *ServiceSuite) TestParallelGetOrCreateMakesOneTournament() {
	s.newCharacter("A")
	s.newCharacter("B")
	now := time.Now()

	var (
		mu      sync.Mutex
		created int
		ids     = map[string]bool{}
	)
	errs := race(func(int) error {
		t, fresh, err := s.tournaments.GetOrCreate(s.ctx, now)
		if err != nil {
			return err
		}
		mu.Lock()
		defer mu.Unlock()
		ids[t.ID] = true
		if fresh {
			created++
		}
		return nil
	})

	s.Equal(racers, s.successes(errs))
	s.Equal(1, created)
	s.Len(ids, 1)
	s.Equal(int64(1), s.count(&models.Tournament{}, "1 = 1"))
	s.Equal(int64(2), s.count(&models.CharacterNotification{}, "notification_type = ?", NotifyTournament))
}

func (s *ServiceSuite) TestRolledBackLedgerLeavesCountersAlone() {
	ch := s.newCharacter("Ghost")
	earned := kineticsFlow.WithLabelValues("earned", SourceAdmin)
	before := promtest.ToFloat64(earned)

	err := transact(s.ctx, s.db, func(tx *gorm.DB) error {
		if _, err := credit(tx, ledgerEntry{CharacterID: ch.ID, Amount: 50, Source: SourceAdmin}); err != nil {
			return err
		}
		return errors.New("abort")
	})
	s.Require().Error(err)
	s.Equal(before, promtest.ToFloat64(earned))
	s.Equal(int64(100), s.balance(ch.ID))

	err = transact(s.ctx, s.db, func(tx *gorm.DB) error {
		_, err := credit(tx, ledgerEntry{CharacterID: ch.ID, Amount: 50, Source: SourceAdmin})
		return err
	})
	s.Require().NoError(err)
	s.Equal(before+50, promtest.ToFloat64(earned))
	s.Equal(int64(150), s.balance(ch.ID))
}
