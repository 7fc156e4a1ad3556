package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaidashi/phone-order-api/internal/models"
	"github.com/vaidashi/phone-order-api/pkg/logger"
)

func TestCallLogRepository_LinkOrderInTx(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCallLogRepository(db, logger.NewNop())

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE call_logs SET").
		WithArgs(int64(11), models.CallOutcomeOrderCompleted, sqlmock.AnyArg(), "call-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "call_id", "order_id", "outcome", "exported_to_ledger"}).
			AddRow(3, "call-1", 11, "order_completed", false))

	tx, err := db.DB.Beginx()
	require.NoError(t, err)

	log, err := repo.LinkOrderInTx(context.Background(), tx, "call-1", 11)
	require.NoError(t, err)

	assert.Equal(t, int64(3), log.ID)
	assert.Equal(t, models.CallOutcomeOrderCompleted, log.Outcome)
	require.NotNil(t, log.OrderID)
	assert.Equal(t, int64(11), *log.OrderID)
	assert.False(t, log.ExportedToLedger)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCallLogRepository_LinkOrderInTx_NoCallLog(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCallLogRepository(db, logger.NewNop())

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE call_logs SET").WillReturnRows(sqlmock.NewRows([]string{"id"}))

	tx, err := db.DB.Beginx()
	require.NoError(t, err)

	_, err = repo.LinkOrderInTx(context.Background(), tx, "call-9", 4)
	assert.ErrorIs(t, err, ErrNotFound)
}
