// workers/ledger_reconcile_worker.go
package workers

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ledgerDrift = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "kinetik_ledger_drift_characters",
	Help: "Characters whose kinetics balance differs from the sum of their ledger.",
})

// LedgerDrift is one character whose balance disagrees with its ledger.
type LedgerDrift struct {
	CharacterID string `json:"character_id"`
	Kinetics    int64  `json:"kinetics"`
	LedgerSum   int64  `json:"ledger_sum"`
}

// LedgerReconcileWorker periodically checks that every balance equals the
// sum of its kinetics transactions. It only reports; it never rewrites balances.
type LedgerReconcileWorker struct {
	db       *gorm.DB
	interval time.Duration
	log      *zap.Logger
}

func NewLedgerReconcileWorker(db *gorm.DB, interval time.Duration, log *zap.Logger) *LedgerReconcileWorker {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &LedgerReconcileWorker{db: db, interval: interval, log: log}
}

// Start runs the worker until ctx is cancelled.
func (w *LedgerReconcileWorker) Start(ctx context.Context) {
	go w.run(ctx)
}

func (w *LedgerReconcileWorker) run(ctx context.Context) {
	w.log.Info("Starting ledger reconciliation", zap.Duration("interval", w.interval))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Ledger reconciliation stopped")
			return
		case <-ticker.C:
			if _, err := w.Reconcile(ctx); err != nil && ctx.Err() == nil {
				w.log.Error("Ledger reconciliation failed", zap.Error(err))
			}
		}
	}
}

// Reconcile runs one pass and returns the drifted characters.
func (w *LedgerReconcileWorker) Reconcile(ctx context.Context) ([]LedgerDrift, error) {
	var drifts []LedgerDrift
	err := w.db.WithContext(ctx).Raw(`
		SELECT c.id AS character_id, c.kinetics, COALESCE(SUM(t.amount), 0) AS ledger_sum
		FROM characters c
		LEFT JOIN kinetics_transactions t ON t.character_id = c.id
		GROUP BY c.id, c.kinetics
		HAVING c.kinetics <> COALESCE(SUM(t.amount), 0)
		ORDER BY c.id
	`).Scan(&drifts).Error
	if err != nil {
		return nil, err
	}

	ledgerDrift.Set(float64(len(drifts)))
	for _, d := range drifts {
		w.log.Warn("Ledger drift detected",
			zap.String("character_id", d.CharacterID),
			zap.Int64("kinetics", d.Kinetics),
			zap.Int64("ledger_sum", d.LedgerSum))
	}
	return drifts, nil
}
