package services

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gorm.io/gorm"
)

var (
	kineticsFlow = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kinetik_kinetics_total",
		Help: "Kinetics moved through the ledger, by direction and source.",
	}, []string{"direction", "source"})

	achievementsAwarded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kinetik_achievements_awarded_total",
		Help: "Achievements granted to characters.",
	})

	tournamentsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kinetik_tournaments_created_total",
		Help: "Weekly tournaments created by this instance.",
	})

	analyticsVisits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kinetik_analytics_visits_total",
		Help: "Tracked visits by device and browser.",
	}, []string{"device", "browser"})

	leaderboardCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kinetik_leaderboard_cache_lookups_total",
		Help: "Leaderboard cache lookups by result.",
	}, []string{"result"})
)

type flowKey struct {
	direction string
	source    string
}

// metricTally holds the counter deltas of one transaction until it commits.
// A nil tally records immediately.
type metricTally struct {
	flows        map[flowKey]int64
	achievements int
	tournaments  int
}

type tallyCtxKey struct{}

func (t *metricTally) flow(direction, source string, amount int64) {
	if t == nil {
		kineticsFlow.WithLabelValues(direction, source).Add(float64(amount))
		return
	}
	if t.flows == nil {
		t.flows = map[flowKey]int64{}
	}
	t.flows[flowKey{direction, source}] += amount
}

func (t *metricTally) achievement() {
	if t == nil {
		achievementsAwarded.Inc()
		return
	}
	t.achievements++
}

func (t *metricTally) tournament() {
	if t == nil {
		tournamentsCreated.Inc()
		return
	}
	t.tournaments++
}

func (t *metricTally) flush() {
	for k, v := range t.flows {
		kineticsFlow.WithLabelValues(k.direction, k.source).Add(float64(v))
	}
	achievementsAwarded.Add(float64(t.achievements))
	tournamentsCreated.Add(float64(t.tournaments))
}

// tallyOf returns the pending tally of the transaction tx runs in, if any.
func tallyOf(tx *gorm.DB) *metricTally {
	if tx == nil || tx.Statement == nil || tx.Statement.Context == nil {
		return nil
	}
	t, _ := tx.Statement.Context.Value(tallyCtxKey{}).(*metricTally)
	return t
}

// transact runs fn in one database transaction. Counters touched inside fn are
// published only after the commit succeeds.
func transact(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	t := &metricTally{}
	if err := db.WithContext(context.WithValue(ctx, tallyCtxKey{}, t)).Transaction(fn); err != nil {
		return err
	}
	t.flush()
	return nil
}
