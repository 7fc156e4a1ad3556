package service

import (
	"context"
	"database/sql"
	"net/http"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaidashi/phone-order-api/internal/models"
	"github.com/vaidashi/phone-order-api/internal/repository"
	apperrors "github.com/vaidashi/phone-order-api/pkg/errors"
	"github.com/vaidashi/phone-order-api/pkg/logger"
)

func newCallLogService(f *fixture) *CallLogService {
	log := logger.NewNop()
	return NewCallLogService(
		repository.NewCallLogRepository(f.db, log),
		repository.NewOrderRepository(f.db, log),
		repository.NewOutboxRepository(f.db, log),
		log,
	)
}

func TestCallLogService_RecordMessage(t *testing.T) {
	f := newFixture(t, 0)
	svc := newCallLogService(f)

	f.mock.ExpectBegin()
	f.mock.ExpectQuery("INSERT INTO call_logs").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(12, fixedNow))
	f.mock.ExpectQuery("INSERT INTO outbox_messages").
		WithArgs(models.AggregateCallLog, "call-3", models.EventCallLogExport, sqlmock.AnyArg(), sqlmock.AnyArg(), models.OutboxStatusPending).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	f.mock.ExpectCommit()

	entry := models.NewCallLog("call-3", "+15550001111", "en", models.CallOutcomeNoOrder)
	entry.CustomerMessage = models.StringPtr("please call back")

	saved, err := svc.RecordMessage(context.Background(), entry)
	require.NoError(t, err)

	assert.Equal(t, int64(12), saved.ID)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCallLogService_RecordMessage_OutboxFailureRollsBack(t *testing.T) {
	f := newFixture(t, 0)
	svc := newCallLogService(f)

	f.mock.ExpectBegin()
	f.mock.ExpectQuery("INSERT INTO call_logs").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(12, fixedNow))
	f.mock.ExpectQuery("INSERT INTO outbox_messages").WillReturnError(sql.ErrConnDone)
	f.mock.ExpectRollback()

	_, err := svc.RecordMessage(context.Background(), models.NewCallLog("call-3", "", "", models.CallOutcomeNoOrder))
	require.Error(t, err)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCallLogService_GetByCallID_NotFound(t *testing.T) {
	f := newFixture(t, 0)
	svc := newCallLogService(f)

	f.mock.ExpectQuery("FROM call_logs WHERE call_id").WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := svc.GetByCallID(context.Background(), "nope")
	assert.Equal(t, http.StatusNotFound, apperrors.StatusCode(err))
}
