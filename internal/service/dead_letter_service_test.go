package service

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaidashi/phone-order-api/internal/repository"
	apperrors "github.com/vaidashi/phone-order-api/pkg/errors"
	"github.com/vaidashi/phone-order-api/pkg/logger"
)

type replayFunc func(ctx context.Context, id int64) error

func (f replayFunc) Replay(ctx context.Context, id int64) error {
	return f(ctx, id)
}

func deadLetterRows(id int64, status string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "event_type", "status"}).AddRow(id, "order.export", status)
}

func TestDeadLetterService_Retry(t *testing.T) {
	f := newFixture(t, 0)

	var replayed int64
	svc := NewDeadLetterService(repository.NewDeadLetterRepository(f.db, logger.NewNop()),
		replayFunc(func(ctx context.Context, id int64) error {
			replayed = id
			return nil
		}), logger.NewNop())

	f.mock.ExpectQuery("FROM dead_letter_messages WHERE id").WillReturnRows(deadLetterRows(6, "pending"))
	f.mock.ExpectQuery("FROM dead_letter_messages WHERE id").WillReturnRows(deadLetterRows(6, "resolved"))

	msg, err := svc.Retry(context.Background(), 6)
	require.NoError(t, err)

	assert.Equal(t, int64(6), replayed)
	assert.Equal(t, "resolved", string(msg.Status))
}

func TestDeadLetterService_Retry_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		status   string
		replay   error
		wantCode int
	}{
		{"already resolved", "resolved", nil, http.StatusConflict},
		{"handler still failing", "pending", errors.New("ledger locked"), http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 0)
			svc := NewDeadLetterService(repository.NewDeadLetterRepository(f.db, logger.NewNop()),
				replayFunc(func(ctx context.Context, id int64) error { return tt.replay }), logger.NewNop())

			f.mock.ExpectQuery("FROM dead_letter_messages WHERE id").WillReturnRows(deadLetterRows(6, tt.status))

			_, err := svc.Retry(context.Background(), 6)
			assert.Equal(t, tt.wantCode, apperrors.StatusCode(err))
		})
	}
}

func TestDeadLetterService_Discard_NotFound(t *testing.T) {
	f := newFixture(t, 0)
	svc := NewDeadLetterService(repository.NewDeadLetterRepository(f.db, logger.NewNop()), nil, logger.NewNop())

	f.mock.ExpectExec("UPDATE dead_letter_messages").
		WithArgs(sqlmock.AnyArg(), "No reason provided", sqlmock.AnyArg(), int64(9), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := svc.Discard(context.Background(), 9, "")
	assert.Equal(t, http.StatusNotFound, apperrors.StatusCode(err))
}
