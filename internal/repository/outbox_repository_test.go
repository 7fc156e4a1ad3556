package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaidashi/phone-order-api/internal/models"
	"github.com/vaidashi/phone-order-api/pkg/logger"
)

func TestOutboxRepository_CreateInTx(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOutboxRepository(db, logger.NewNop())
	ctx := context.Background()

	msg, err := models.NewKitchenSendEvent(12)
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO outbox_messages").
		WithArgs(models.AggregateOrder, "12", models.EventOrderKitchenSend, sqlmock.AnyArg(), sqlmock.AnyArg(), models.OutboxStatusPending).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(100))
	mock.ExpectCommit()

	tx, err := db.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, repo.CreateInTx(ctx, tx, msg))
	require.NoError(t, tx.Commit())

	assert.Equal(t, int64(100), msg.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxRepository_ClaimPending(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOutboxRepository(db, logger.NewNop())

	rows := sqlmock.NewRows([]string{"id", "event_type", "status", "processing_attempts"}).
		AddRow(1, models.EventOrderExport, "pending", 0).
		AddRow(2, models.EventOrderKitchenSend, "pending", 2)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE SKIP LOCKED").
		WithArgs(models.OutboxStatusPending, models.OutboxStatusProcessing, sqlmock.AnyArg(), 10).
		WillReturnRows(rows)
	mock.ExpectExec("UPDATE outbox_messages").
		WithArgs(models.OutboxStatusProcessing, sqlmock.AnyArg(), pq.Array([]int64{1, 2})).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	before := time.Now().UTC()
	messages, err := repo.ClaimPending(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, messages, 2)

	assert.Equal(t, models.OutboxStatusProcessing, messages[0].Status)
	assert.Equal(t, 1, messages[0].ProcessingAttempts)
	assert.Equal(t, 3, messages[1].ProcessingAttempts)
	require.NotNil(t, messages[0].NextAttemptAt)
	assert.WithinDuration(t, before.Add(DefaultClaimLease), *messages[0].NextAttemptAt, time.Minute)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxRepository_ClaimPending_ReclaimsExpiredLease(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOutboxRepository(db, logger.NewNop())
	repo.SetClaimLease(30 * time.Second)

	mock.ExpectBegin()
	mock.ExpectQuery("OR \\(status = \\$2 AND next_attempt_at <= \\$3\\)").
		WithArgs(models.OutboxStatusPending, models.OutboxStatusProcessing, sqlmock.AnyArg(), 5).
		WillReturnRows(sqlmock.NewRows([]string{"id", "event_type", "status", "processing_attempts"}).
			AddRow(7, models.EventOrderKitchenSend, "processing", 1))
	mock.ExpectExec("next_attempt_at = \\$2").
		WithArgs(models.OutboxStatusProcessing, sqlmock.AnyArg(), pq.Array([]int64{7})).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	before := time.Now().UTC()
	messages, err := repo.ClaimPending(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, messages, 1)

	assert.Equal(t, 2, messages[0].ProcessingAttempts)
	assert.WithinDuration(t, before.Add(30*time.Second), *messages[0].NextAttemptAt, 5*time.Second)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxRepository_ClaimPending_Empty(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOutboxRepository(db, logger.NewNop())

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE SKIP LOCKED").WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	messages, err := repo.ClaimPending(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, messages)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxRepository_ClaimPending_QueryError(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOutboxRepository(db, logger.NewNop())

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE SKIP LOCKED").WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err := repo.ClaimPending(context.Background(), 10)
	assert.ErrorIs(t, err, ErrDatabase)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxRepository_ScheduleRetry(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOutboxRepository(db, logger.NewNop())
	next := time.Now().Add(4 * time.Second)

	mock.ExpectExec("UPDATE outbox_messages").
		WithArgs(models.OutboxStatusPending, "ledger locked", next, int64(8)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.ScheduleRetry(context.Background(), 8, "ledger locked", next))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeadLetterRepository_MoveToDeadLetter(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDeadLetterRepository(db, logger.NewNop())

	msg := &models.OutboxMessage{
		ID:                 3,
		AggregateType:      models.AggregateOrder,
		AggregateID:        "12",
		EventType:          models.EventOrderExport,
		Payload:            []byte(`{}`),
		ProcessingAttempts: 3,
	}

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO dead_letter_messages").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(9))
	mock.ExpectExec("UPDATE outbox_messages").
		WithArgs(models.OutboxStatusFailed, "boom", int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	dl, err := repo.MoveToDeadLetter(context.Background(), msg, "boom", "max retries exceeded")
	require.NoError(t, err)

	assert.Equal(t, int64(9), dl.ID)
	assert.Equal(t, 3, dl.Attempts)
	assert.Equal(t, models.DeadLetterStatusPending, dl.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeadLetterRepository_MoveToDeadLetter_RollsBack(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDeadLetterRepository(db, logger.NewNop())

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO dead_letter_messages").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(9))
	mock.ExpectExec("UPDATE outbox_messages").WillReturnError(errors.New("deadlock"))
	mock.ExpectRollback()

	_, err := repo.MoveToDeadLetter(context.Background(), &models.OutboxMessage{ID: 3}, "boom", "max retries exceeded")
	assert.ErrorIs(t, err, ErrDatabase)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeadLetterRepository_MarkAsRetrying_NotPending(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDeadLetterRepository(db, logger.NewNop())

	mock.ExpectExec("UPDATE dead_letter_messages").WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.MarkAsRetrying(context.Background(), 4)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeadLetterRepository_ListByStatus(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDeadLetterRepository(db, logger.NewNop())

	mock.ExpectQuery("FROM dead_letter_messages").
		WithArgs("pending", 50, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status", "attempts"}).AddRow(1, "pending", 3))

	messages, err := repo.List(context.Background(), models.DeadLetterStatusPending, 50, 0)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, models.DeadLetterStatusPending, messages[0].Status)
}

func TestPaymentEventRepository_InsertInTx(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPaymentEventRepository(db, logger.NewNop())
	ctx := context.Background()
	orderID := int64(5)

	event := &models.PaymentEvent{
		EventID:     "evt_1",
		EventType:   models.PaymentEventCheckoutCompleted,
		OrderID:     &orderID,
		ProcessedAt: time.Now(),
	}

	mock.ExpectBegin()
	mock.ExpectExec("ON CONFLICT \\(event_id\\) DO NOTHING").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("ON CONFLICT \\(event_id\\) DO NOTHING").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	tx, err := db.BeginTx(ctx)
	require.NoError(t, err)

	first, err := repo.InsertInTx(ctx, tx, event)
	require.NoError(t, err)
	replay, err := repo.InsertInTx(ctx, tx, event)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	assert.True(t, first)
	assert.False(t, replay)
}

func TestCallLogRepository_UpsertInTx(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCallLogRepository(db, logger.NewNop())
	ctx := context.Background()
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("ON CONFLICT \\(call_id\\) DO UPDATE").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(77, created))
	mock.ExpectCommit()

	log := models.NewCallLog("call-2", "", "es", models.CallOutcomeNoOrder)
	log.CustomerMessage = models.StringPtr("call me back")

	tx, err := db.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, repo.UpsertInTx(ctx, tx, log))
	require.NoError(t, tx.Commit())

	assert.Equal(t, int64(77), log.ID)
	assert.Equal(t, created, log.CreatedAt)
	assert.Equal(t, "unknown", log.CallerPhone)
}

func TestCallLogRepository_GetByCallID_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCallLogRepository(db, logger.NewNop())

	mock.ExpectQuery("FROM call_logs WHERE call_id").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetByCallID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
