package service

import (
	"context"
	"database/sql/driver"
	"net/http"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaidashi/phone-order-api/internal/database"
	"github.com/vaidashi/phone-order-api/internal/models"
	"github.com/vaidashi/phone-order-api/internal/pricing"
	"github.com/vaidashi/phone-order-api/internal/providers/geo"
	"github.com/vaidashi/phone-order-api/internal/providers/notification"
	"github.com/vaidashi/phone-order-api/internal/providers/payment"
	"github.com/vaidashi/phone-order-api/internal/providers/sim"
	"github.com/vaidashi/phone-order-api/internal/repository"
	apperrors "github.com/vaidashi/phone-order-api/pkg/errors"
	"github.com/vaidashi/phone-order-api/pkg/logger"
)

var fixedNow = time.Date(2024, 6, 1, 18, 30, 0, 0, time.UTC)

type fixture struct {
	svc  *OrderService
	mock sqlmock.Sqlmock
	db   *database.Database
}

func newFixture(t *testing.T, paymentFailureRate float64) *fixture {
	t.Helper()

	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })

	log := logger.NewNop()
	db := database.Wrap(sqlx.NewDb(raw, "postgres"), log)

	svc := NewOrderService(OrderServiceConfig{
		Orders:        repository.NewOrderRepository(db, log),
		CallLogs:      repository.NewCallLogRepository(db, log),
		Outbox:        repository.NewOutboxRepository(db, log),
		PaymentEvents: repository.NewPaymentEventRepository(db, log),
		Payment:       payment.NewMock(sim.Config{FailureRate: paymentFailureRate}, "usd", log),
		Geo:           geo.NewMock(sim.Config{}, geo.NewZone([]string{"10001"}), log),
		Pricing:       pricing.NewCalculator(0.08875, 5.99),
	}, log)
	svc.now = func() time.Time { return fixedNow }

	return &fixture{svc: svc, mock: mock, db: db}
}

func pickupDraft(status models.OrderStatus) *models.Order {
	o := models.NewOrder(models.OrderTypePickup, "Ana", "+15551234567", models.OrderItems{
		{Name: "Pizza Margherita", Quantity: 2, UnitPrice: 1499},
	})
	o.CallID = models.StringPtr("call-1")
	o.PickupTime = models.StringPtr(models.DefaultPickupTime)
	o.Status = status
	return o
}

func activeOrderQuery() string {
	return "WHERE call_id = \\$1 AND status <> ALL"
}

func emptyOrderRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id"})
}

func expectOutboxInsert(mock sqlmock.Sqlmock, eventType string, id int64) {
	mock.ExpectQuery("INSERT INTO outbox_messages").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), eventType, sqlmock.AnyArg(), sqlmock.AnyArg(), models.OutboxStatusPending).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(id))
}

func TestOrderService_CreateForCall_NewOrder(t *testing.T) {
	tests := []struct {
		name    string
		status  models.OrderStatus
		kitchen bool
	}{
		{"awaiting payment", models.OrderStatusPaymentPending, false},
		{"already paid", models.OrderStatusPaid, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 0)

			f.mock.ExpectQuery(activeOrderQuery()).WithArgs("call-1", sqlmock.AnyArg()).WillReturnRows(emptyOrderRows())
			f.mock.ExpectBegin()
			f.mock.ExpectQuery("INSERT INTO orders").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))
			expectOutboxInsert(f.mock, models.EventOrderExport, 1)
			if tt.kitchen {
				expectOutboxInsert(f.mock, models.EventOrderKitchenSend, 2)
			}
			f.mock.ExpectQuery("UPDATE call_logs SET").WithArgs(int64(11), models.CallOutcomeOrderCompleted, sqlmock.AnyArg(), "call-1").
				WillReturnRows(sqlmock.NewRows([]string{"id"}))
			f.mock.ExpectCommit()

			order, err := f.svc.CreateForCall(context.Background(), pickupDraft(tt.status))
			require.NoError(t, err)

			assert.Equal(t, int64(11), order.ID)
			assert.Equal(t, models.Money(3264), order.TotalAmount)
			assert.NoError(t, f.mock.ExpectationsWereMet())
		})
	}
}

func TestOrderService_CreateForCall_ConcurrentInsertReusesWinner(t *testing.T) {
	f := newFixture(t, 0)

	f.mock.ExpectQuery(activeOrderQuery()).WillReturnRows(emptyOrderRows())
	f.mock.ExpectBegin()
	f.mock.ExpectQuery("INSERT INTO orders").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "orders_active_call_id_idx"})
	f.mock.ExpectRollback()

	f.mock.ExpectQuery(activeOrderQuery()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status"}).AddRow(5, "payment_pending"))
	f.mock.ExpectBegin()
	f.mock.ExpectQuery("FROM orders WHERE id = \\$1 FOR UPDATE").WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_type", "status", "payment_status"}).
			AddRow(5, "pickup", "payment_pending", "pending"))
	f.mock.ExpectExec("UPDATE orders SET").WillReturnResult(sqlmock.NewResult(0, 1))
	expectOutboxInsert(f.mock, models.EventOrderKitchenSend, 3)
	f.mock.ExpectCommit()

	order, err := f.svc.CreateForCall(context.Background(), pickupDraft(models.OrderStatusPaid))
	require.NoError(t, err)

	assert.Equal(t, int64(5), order.ID)
	assert.Equal(t, models.OrderStatusPaid, order.Status)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

type confirmationCounter struct {
	notification.Provider
	sent int
}

func (c *confirmationCounter) SendOrderConfirmation(ctx context.Context, conf notification.Confirmation) (*notification.Result, error) {
	c.sent++
	return &notification.Result{Success: true, Provider: "test"}, nil
}

// storedPickupRow is the row of pickupDraft once stored as order 5
func storedPickupRow(status models.OrderStatus) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "order_type", "customer_name", "customer_phone", "customer_language", "pickup_time", "items",
		"subtotal_cents", "tax_cents", "delivery_fee_cents", "tip_cents", "total_amount_cents",
		"status", "payment_status", "call_id",
	}).AddRow(
		5, "pickup", "Ana", "+15551234567", "en", models.DefaultPickupTime,
		[]byte(`[{"name":"Pizza Margherita","quantity":2,"unit_price":14.99,"total_price":29.98}]`),
		2998, 266, 0, 0, 3264,
		string(status), "pending", "call-1",
	)
}

func TestOrderService_PlaceForCall_RepeatedDraftWritesNothing(t *testing.T) {
	f := newFixture(t, 0)
	counter := &confirmationCounter{}
	f.svc.notifier = counter

	for i := 0; i < 3; i++ {
		f.mock.ExpectQuery(activeOrderQuery()).
			WillReturnRows(sqlmock.NewRows([]string{"id", "status"}).AddRow(5, "payment_pending"))
		f.mock.ExpectBegin()
		f.mock.ExpectQuery("FOR UPDATE").WithArgs(int64(5)).WillReturnRows(storedPickupRow(models.OrderStatusPaymentPending))
		f.mock.ExpectCommit()
	}

	for i := 0; i < 3; i++ {
		order, err := f.svc.PlaceForCall(context.Background(), pickupDraft(models.OrderStatusPaymentPending))
		require.NoError(t, err)
		assert.Equal(t, int64(5), order.ID)
		assert.Equal(t, models.OrderStatusPaymentPending, order.Status)
	}

	assert.Equal(t, 0, counter.sent)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestOrderService_PlaceForCall_TransitionConfirmsOnce(t *testing.T) {
	f := newFixture(t, 0)
	counter := &confirmationCounter{}
	f.svc.notifier = counter

	f.mock.ExpectQuery(activeOrderQuery()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status"}).AddRow(5, "payment_pending"))
	f.mock.ExpectBegin()
	f.mock.ExpectQuery("FOR UPDATE").WithArgs(int64(5)).WillReturnRows(storedPickupRow(models.OrderStatusPaymentPending))
	f.mock.ExpectExec("UPDATE orders SET").WillReturnResult(sqlmock.NewResult(0, 1))
	expectOutboxInsert(f.mock, models.EventOrderKitchenSend, 4)
	f.mock.ExpectCommit()

	f.mock.ExpectQuery(activeOrderQuery()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status"}).AddRow(5, "paid"))
	f.mock.ExpectBegin()
	f.mock.ExpectQuery("FOR UPDATE").WithArgs(int64(5)).WillReturnRows(storedPickupRow(models.OrderStatusPaid))
	f.mock.ExpectCommit()

	for i := 0; i < 2; i++ {
		order, err := f.svc.PlaceForCall(context.Background(), pickupDraft(models.OrderStatusPaid))
		require.NoError(t, err)
		assert.Equal(t, models.OrderStatusPaid, order.Status)
	}

	assert.Equal(t, 1, counter.sent)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestOrderService_CallEndedBeforeOrderLinksCallLog(t *testing.T) {
	f := newFixture(t, 0)

	f.mock.ExpectExec("UPDATE orders SET").WillReturnResult(sqlmock.NewResult(0, 0))
	f.mock.ExpectExec("UPDATE call_logs SET").WillReturnResult(sqlmock.NewResult(0, 0))
	f.mock.ExpectBegin()
	f.mock.ExpectQuery("INSERT INTO call_logs").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(3, fixedNow))
	expectOutboxInsert(f.mock, models.EventCallLogExport, 1)
	f.mock.ExpectCommit()

	require.NoError(t, f.svc.RecordCallEnd(context.Background(), models.CallReport{
		CallID:      "call-1",
		CallerPhone: "+15551234567",
		EndedReason: "assistant-ended-call",
		EndedAt:     fixedNow,
	}))

	f.mock.ExpectQuery(activeOrderQuery()).WillReturnRows(emptyOrderRows())
	f.mock.ExpectBegin()
	f.mock.ExpectQuery("INSERT INTO orders").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))
	expectOutboxInsert(f.mock, models.EventOrderExport, 2)
	f.mock.ExpectQuery("UPDATE call_logs SET").
		WithArgs(int64(11), models.CallOutcomeOrderCompleted, sqlmock.AnyArg(), "call-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "call_id", "order_id", "outcome"}).
			AddRow(3, "call-1", 11, "order_completed"))
	expectOutboxInsert(f.mock, models.EventCallLogExport, 3)
	f.mock.ExpectCommit()

	order, err := f.svc.CreateForCall(context.Background(), pickupDraft(models.OrderStatusPaymentPending))
	require.NoError(t, err)

	assert.Equal(t, int64(11), order.ID)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestOrderService_CreateForCall_SettledOrderIsReturnedUnchanged(t *testing.T) {
	f := newFixture(t, 0)

	f.mock.ExpectQuery(activeOrderQuery()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status"}).AddRow(8, "preparing"))
	f.mock.ExpectBegin()
	f.mock.ExpectQuery("FOR UPDATE").
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_type", "status", "payment_status"}).
			AddRow(8, "pickup", "preparing", "paid"))
	f.mock.ExpectCommit()

	order, err := f.svc.CreateForCall(context.Background(), pickupDraft(models.OrderStatusPaid))
	require.NoError(t, err)

	assert.Equal(t, models.OrderStatusPreparing, order.Status)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestOrderService_CreateForCall_InvalidDraft(t *testing.T) {
	f := newFixture(t, 0)

	draft := pickupDraft(models.OrderStatusPaid)
	draft.Items = nil

	_, err := f.svc.CreateForCall(context.Background(), draft)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestOrderService_CreateDirect(t *testing.T) {
	f := newFixture(t, 0)

	f.mock.ExpectBegin()
	f.mock.ExpectQuery("INSERT INTO orders").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(21))
	expectOutboxInsert(f.mock, models.EventOrderExport, 1)
	expectOutboxInsert(f.mock, models.EventOrderKitchenSend, 2)
	f.mock.ExpectCommit()

	draft := pickupDraft(models.OrderStatusPending)
	draft.CallID = nil

	order, err := f.svc.CreateDirect(context.Background(), draft)
	require.NoError(t, err)

	assert.Equal(t, models.OrderStatusPaid, order.Status)
	assert.Equal(t, models.PaymentStatusPaid, order.PaymentStatus)
	assert.Contains(t, models.StringValue(order.PaymentIntentID), "pi_mock_")
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestOrderService_CreateDirect_Declined(t *testing.T) {
	f := newFixture(t, 1)

	_, err := f.svc.CreateDirect(context.Background(), pickupDraft(models.OrderStatusPending))
	require.Error(t, err)

	assert.Equal(t, http.StatusPaymentRequired, apperrors.StatusCode(err))
	assert.NotEmpty(t, apperrors.Code(err))
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestOrderService_CreateDirect_OutsideDeliveryZone(t *testing.T) {
	f := newFixture(t, 0)

	draft := models.NewOrder(models.OrderTypeDelivery, "Ana", "+15551234567", models.OrderItems{
		{Name: "Pizza Margherita", Quantity: 1, UnitPrice: 1499},
	})
	draft.DeliveryAddress = models.StringPtr("1 Ocean Ave")
	draft.ZipCode = models.StringPtr("90210")

	_, err := f.svc.CreateDirect(context.Background(), draft)
	require.Error(t, err)

	assert.Equal(t, http.StatusBadRequest, apperrors.StatusCode(err))
	assert.Equal(t, "outside_delivery_zone", apperrors.Code(err))
}

func TestOrderService_UpdateStatus(t *testing.T) {
	tests := []struct {
		name     string
		current  string
		to       models.OrderStatus
		wantCode int
	}{
		{"legal", "paid", models.OrderStatusPreparing, 0},
		{"skips a step", "paid", models.OrderStatusReady, http.StatusConflict},
		{"pickup cannot go out for delivery", "ready", models.OrderStatusOutForDelivery, http.StatusConflict},
		{"terminal", "delivered", models.OrderStatusCancelled, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 0)

			f.mock.ExpectBegin()
			f.mock.ExpectQuery("FOR UPDATE").WithArgs(int64(4)).
				WillReturnRows(sqlmock.NewRows([]string{"id", "order_type", "status"}).AddRow(4, "pickup", tt.current))
			if tt.wantCode == 0 {
				f.mock.ExpectExec("UPDATE orders SET").WillReturnResult(sqlmock.NewResult(0, 1))
				f.mock.ExpectCommit()
			} else {
				f.mock.ExpectRollback()
			}

			order, err := f.svc.UpdateStatus(context.Background(), 4, tt.to)
			if tt.wantCode != 0 {
				require.Error(t, err)
				assert.Equal(t, tt.wantCode, apperrors.StatusCode(err))
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.to, order.Status)
			}
			assert.NoError(t, f.mock.ExpectationsWereMet())
		})
	}
}

func TestOrderService_UpdateStatus_NotFound(t *testing.T) {
	f := newFixture(t, 0)

	f.mock.ExpectBegin()
	f.mock.ExpectQuery("FOR UPDATE").WillReturnRows(emptyOrderRows())
	f.mock.ExpectRollback()

	_, err := f.svc.UpdateStatus(context.Background(), 404, models.OrderStatusPreparing)
	assert.Equal(t, http.StatusNotFound, apperrors.StatusCode(err))
}

func webhookEvent(eventType, orderID string) *payment.WebhookEvent {
	ev := &payment.WebhookEvent{ID: "evt_1", Type: eventType}
	ev.Data.Object.PaymentIntent = "pi_1"
	if orderID != "" {
		ev.Data.Object.Metadata = map[string]string{"order_id": orderID}
	}
	return ev
}

func TestOrderService_HandlePaymentEvent_CheckoutCompleted(t *testing.T) {
	f := newFixture(t, 0)

	f.mock.ExpectBegin()
	f.mock.ExpectExec("INSERT INTO payment_events").
		WithArgs("evt_1", models.PaymentEventCheckoutCompleted, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec("UPDATE orders").
		WithArgs(models.OrderStatusPaid, models.PaymentStatusPaid, "pi_1", fixedNow, int64(9), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	expectOutboxInsert(f.mock, models.EventOrderKitchenSend, 1)
	f.mock.ExpectCommit()

	err := f.svc.HandlePaymentEvent(context.Background(), webhookEvent(models.PaymentEventCheckoutCompleted, "9"))
	require.NoError(t, err)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestOrderService_HandlePaymentEvent_ReplayIsNoop(t *testing.T) {
	f := newFixture(t, 0)

	f.mock.ExpectBegin()
	f.mock.ExpectExec("INSERT INTO payment_events").WillReturnResult(sqlmock.NewResult(0, 0))
	f.mock.ExpectCommit()

	err := f.svc.HandlePaymentEvent(context.Background(), webhookEvent(models.PaymentEventCheckoutCompleted, "9"))
	require.NoError(t, err)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestOrderService_HandlePaymentEvent_AlreadyPaidQueuesNothing(t *testing.T) {
	f := newFixture(t, 0)

	f.mock.ExpectBegin()
	f.mock.ExpectExec("INSERT INTO payment_events").WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec("UPDATE orders").WillReturnResult(sqlmock.NewResult(0, 0))
	f.mock.ExpectCommit()

	err := f.svc.HandlePaymentEvent(context.Background(), webhookEvent(models.PaymentEventCheckoutCompleted, "9"))
	require.NoError(t, err)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestOrderService_HandlePaymentEvent_Expired(t *testing.T) {
	f := newFixture(t, 0)

	f.mock.ExpectBegin()
	f.mock.ExpectExec("INSERT INTO payment_events").WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec("UPDATE orders SET payment_status").
		WithArgs(models.PaymentStatusFailed, fixedNow, int64(9), models.PaymentStatusPaid).
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectCommit()

	err := f.svc.HandlePaymentEvent(context.Background(), webhookEvent(models.PaymentEventCheckoutExpired, "9"))
	require.NoError(t, err)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestOrderService_HandlePaymentEvent_Ignored(t *testing.T) {
	f := newFixture(t, 0)

	require.NoError(t, f.svc.HandlePaymentEvent(context.Background(), webhookEvent("customer.created", "9")))
	require.NoError(t, f.svc.HandlePaymentEvent(context.Background(), webhookEvent(models.PaymentEventCheckoutCompleted, "")))
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestOrderService_RecordCallEnd_OrderlessCallGetsCallLog(t *testing.T) {
	tests := []struct {
		name        string
		endedReason string
		outcome     models.CallOutcome
	}{
		{"caller hung up", "customer-ended-call", models.CallOutcomeCustomerHangup},
		{"assistant ended", "assistant-ended-call", models.CallOutcomeNoOrder},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 0)

			f.mock.ExpectExec("UPDATE orders SET").WillReturnResult(sqlmock.NewResult(0, 0))
			f.mock.ExpectExec("UPDATE call_logs SET").WillReturnResult(sqlmock.NewResult(0, 0))
			f.mock.ExpectBegin()

			args := make([]driver.Value, 17)
			for i := range args {
				args[i] = sqlmock.AnyArg()
			}
			args[10] = tt.outcome
			f.mock.ExpectQuery("INSERT INTO call_logs").WithArgs(args...).
				WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(3, fixedNow))
			expectOutboxInsert(f.mock, models.EventCallLogExport, 1)
			f.mock.ExpectCommit()

			transcript := "hello?"
			err := f.svc.RecordCallEnd(context.Background(), models.CallReport{
				CallID:      "call-7",
				CallerPhone: "+15550001111",
				Transcript:  &transcript,
				EndedReason: tt.endedReason,
				EndedAt:     fixedNow,
			})
			require.NoError(t, err)
			assert.NoError(t, f.mock.ExpectationsWereMet())
		})
	}
}

func TestOrderService_RecordCallEnd_PatchesOrder(t *testing.T) {
	f := newFixture(t, 0)

	f.mock.ExpectExec("UPDATE orders SET").WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec("UPDATE call_logs SET").WillReturnResult(sqlmock.NewResult(0, 0))

	err := f.svc.RecordCallEnd(context.Background(), models.CallReport{CallID: "call-1", EndedAt: fixedNow})
	require.NoError(t, err)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestOrderService_TransferCall(t *testing.T) {
	f := newFixture(t, 0)

	f.mock.ExpectQuery(activeOrderQuery()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_type", "status"}).AddRow(3, "pickup", "payment_pending"))
	f.mock.ExpectExec("UPDATE orders SET").WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, f.svc.TransferCall(context.Background(), "call-1", "caller asked"))
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestOrderService_TransferCall_WithoutOrder(t *testing.T) {
	f := newFixture(t, 0)

	f.mock.ExpectQuery(activeOrderQuery()).WillReturnRows(emptyOrderRows())
	f.mock.ExpectBegin()
	f.mock.ExpectQuery("INSERT INTO call_logs").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(4, fixedNow))
	expectOutboxInsert(f.mock, models.EventCallLogExport, 1)
	f.mock.ExpectCommit()

	require.NoError(t, f.svc.TransferCall(context.Background(), "call-2", "AI requested transfer"))
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestOrderService_GetByID_NotFound(t *testing.T) {
	f := newFixture(t, 0)

	f.mock.ExpectQuery("FROM orders WHERE id").WillReturnRows(emptyOrderRows())

	_, err := f.svc.GetByID(context.Background(), 1)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestOrderService_Stats(t *testing.T) {
	f := newFixture(t, 0)

	dayStart := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	f.mock.ExpectQuery("FILTER").WithArgs(dayStart).WillReturnRows(sqlmock.NewRows([]string{
		"total_orders", "pending_orders", "completed_orders", "failed_orders", "today_revenue_cents", "avg_order_value_cents",
	}).AddRow(4, 1, 2, 1, 5000, 2500))
	f.mock.ExpectQuery("ORDER BY created_at DESC LIMIT").WithArgs(10, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2).AddRow(1))

	dash, err := f.svc.Stats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 75.0, dash.SuccessRate)
	assert.Len(t, dash.RecentOrders, 2)
	assert.Equal(t, models.Money(5000), dash.TodayRevenue)
}
