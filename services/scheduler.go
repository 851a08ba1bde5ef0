// services/scheduler.go
package services

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

const weeklyJobTimeout = 5 * time.Minute

// StartWeeklyScheduler registers the Monday jobs: open the new tournament at
// 00:05 and send last week's results at 00:10, both in the service time zone.
// The caller owns the returned scheduler and must Shutdown it.
func (s *TournamentService) StartWeeklyScheduler() (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler(gocron.WithLocation(s.loc()))
	if err != nil {
		return nil, err
	}

	_, err = sched.NewJob(
		gocron.WeeklyJob(1, gocron.NewWeekdays(time.Monday), gocron.NewAtTimes(gocron.NewAtTime(0, 5, 0))),
		gocron.NewTask(s.openWeek),
		gocron.WithName("tournament-open-week"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, err
	}

	_, err = sched.NewJob(
		gocron.WeeklyJob(1, gocron.NewWeekdays(time.Monday), gocron.NewAtTimes(gocron.NewAtTime(0, 10, 0))),
		gocron.NewTask(s.sendResults),
		gocron.WithName("tournament-weekly-results"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, err
	}

	sched.Start()
	return sched, nil
}

func (s *TournamentService) openWeek() {
	ctx, cancel := context.WithTimeout(context.Background(), weeklyJobTimeout)
	defer cancel()

	t, created, err := s.GetOrCreate(ctx, time.Now())
	if err != nil {
		s.Log.Error("[Scheduler] failed to open weekly tournament", zap.Error(err))
		return
	}
	s.Log.Info("[Scheduler] weekly tournament ready",
		zap.String("tournament_id", t.ID),
		zap.Bool("created", created))
}

func (s *TournamentService) sendResults() {
	ctx, cancel := context.WithTimeout(context.Background(), weeklyJobTimeout)
	defer cancel()

	sent, err := s.SendWeeklyResults(ctx, time.Now())
	if IsKind(err, KindNotFound) {
		s.Log.Info("[Scheduler] no tournament last week, nothing to send")
		return
	}
	if IsKind(err, KindConflict) {
		s.Log.Info("[Scheduler] weekly results already sent")
		return
	}
	if err != nil {
		s.Log.Error("[Scheduler] failed to send weekly results", zap.Error(err))
		return
	}
	s.Log.Info("[Scheduler] weekly results sent", zap.Int("sent", sent))
}
