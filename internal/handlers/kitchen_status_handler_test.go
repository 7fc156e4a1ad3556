package handlers

import (
	"context"
	"errors"
	"testing"

	"github.com/Shopify/sarama"
	"github.com/stretchr/testify/assert"

	"github.com/vaidashi/phone-order-api/internal/models"
	apperrors "github.com/vaidashi/phone-order-api/pkg/errors"
	"github.com/vaidashi/phone-order-api/pkg/logger"
)

type fakeUpdater struct {
	UpdateStatusFunc func(ctx context.Context, id int64, to models.OrderStatus) (*models.Order, error)
}

func (f *fakeUpdater) UpdateStatus(ctx context.Context, id int64, to models.OrderStatus) (*models.Order, error) {
	return f.UpdateStatusFunc(ctx, id, to)
}

func TestKitchenStatusHandler_HandleMessage(t *testing.T) {
	tests := []struct {
		name      string
		value     string
		updateErr error
		wantCall  bool
		wantErr   bool
	}{
		{"applies update", `{"order_id": 7, "status": "preparing"}`, nil, true, false},
		{"malformed json", `{"order_id":`, nil, false, false},
		{"non kitchen status", `{"order_id": 7, "status": "paid"}`, nil, false, false},
		{"missing order", `{"status": "ready"}`, nil, false, false},
		{"illegal transition dropped", `{"order_id": 7, "status": "delivered"}`, apperrors.NewConflictError("nope"), true, false},
		{"storage failure surfaces", `{"order_id": 7, "status": "ready"}`, errors.New("connection reset"), true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			h := NewKitchenStatusHandler(&fakeUpdater{
				UpdateStatusFunc: func(ctx context.Context, id int64, to models.OrderStatus) (*models.Order, error) {
					called = true
					assert.Equal(t, int64(7), id)
					if tt.updateErr != nil {
						return nil, tt.updateErr
					}
					return &models.Order{ID: id, Status: to}, nil
				},
			}, logger.NewNop())

			err := h.HandleMessage(context.Background(), &sarama.ConsumerMessage{Value: []byte(tt.value)})

			assert.Equal(t, tt.wantCall, called)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
