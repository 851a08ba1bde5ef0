package workers

import (
	"context"
	"testing"
	"time"

	"github.com/dima260208d-dot/kinetik-energy-project/models"
	"github.com/dima260208d-dot/kinetik-energy-project/testutil"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestReconcileReportsDrift(t *testing.T) {
	db := testutil.Postgres(t)
	ctx := context.Background()
	w := NewLedgerReconcileWorker(db, time.Minute, zap.NewNop())

	ch := models.Character{
		ID:         uuid.NewString(),
		UserID:     uuid.NewString(),
		Name:       "Drifter",
		Handle:     "drifter",
		SportType:  "bmx",
		SportTypes: pq.StringArray{"bmx"},
		Level:      1,
		Kinetics:   50,
	}
	require.NoError(t, db.Create(&ch).Error)

	drifts, err := w.Reconcile(ctx)
	require.NoError(t, err)
	require.Len(t, drifts, 1)
	assert.Equal(t, ch.ID, drifts[0].CharacterID)
	assert.Equal(t, int64(50), drifts[0].Kinetics)
	assert.Equal(t, int64(0), drifts[0].LedgerSum)

	require.NoError(t, db.Create(&models.KineticsTransaction{
		ID:              uuid.NewString(),
		CharacterID:     ch.ID,
		Amount:          80,
		TransactionType: models.TransactionEarn,
		Source:          "admin",
	}).Error)
	require.NoError(t, db.Create(&models.KineticsTransaction{
		ID:              uuid.NewString(),
		CharacterID:     ch.ID,
		Amount:          -30,
		TransactionType: models.TransactionSpend,
		Source:          "shop",
	}).Error)

	drifts, err = w.Reconcile(ctx)
	require.NoError(t, err)
	assert.Empty(t, drifts)
}

func TestRunStopsOnCancel(t *testing.T) {
	w := NewLedgerReconcileWorker(nil, time.Hour, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}
