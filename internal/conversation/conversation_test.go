package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaidashi/phone-order-api/internal/menu"
	"github.com/vaidashi/phone-order-api/internal/models"
	"github.com/vaidashi/phone-order-api/internal/pricing"
	"github.com/vaidashi/phone-order-api/internal/providers/geo"
	"github.com/vaidashi/phone-order-api/internal/providers/notification"
	"github.com/vaidashi/phone-order-api/internal/providers/sim"
	apperrors "github.com/vaidashi/phone-order-api/pkg/errors"
	"github.com/vaidashi/phone-order-api/pkg/logger"
)

type fakeOrders struct {
	CreateForCallFunc     func(ctx context.Context, draft *models.Order) (*models.Order, error)
	PlaceForCallFunc      func(ctx context.Context, draft *models.Order) (*models.Order, error)
	RecordPaymentLinkFunc func(ctx context.Context, orderID int64, url string) error
	TransferCallFunc      func(ctx context.Context, callID, reason string) error
	RecordCallEndFunc     func(ctx context.Context, report models.CallReport) error
	GetByIDFunc           func(ctx context.Context, id int64) (*models.Order, error)
}

func (f *fakeOrders) CreateForCall(ctx context.Context, draft *models.Order) (*models.Order, error) {
	return f.CreateForCallFunc(ctx, draft)
}

func (f *fakeOrders) PlaceForCall(ctx context.Context, draft *models.Order) (*models.Order, error) {
	return f.PlaceForCallFunc(ctx, draft)
}

func (f *fakeOrders) RecordPaymentLink(ctx context.Context, orderID int64, url string) error {
	return f.RecordPaymentLinkFunc(ctx, orderID, url)
}

func (f *fakeOrders) TransferCall(ctx context.Context, callID, reason string) error {
	return f.TransferCallFunc(ctx, callID, reason)
}

func (f *fakeOrders) RecordCallEnd(ctx context.Context, report models.CallReport) error {
	return f.RecordCallEndFunc(ctx, report)
}

func (f *fakeOrders) GetByID(ctx context.Context, id int64) (*models.Order, error) {
	return f.GetByIDFunc(ctx, id)
}

type fakeCallLogs struct {
	RecordMessageFunc func(ctx context.Context, log *models.CallLog) (*models.CallLog, error)
}

func (f *fakeCallLogs) RecordMessage(ctx context.Context, log *models.CallLog) (*models.CallLog, error) {
	return f.RecordMessageFunc(ctx, log)
}

type fakeNotifier struct {
	notification.Provider
	PaymentLinkFunc func(ctx context.Context, req notification.PaymentLinkRequest) (*notification.PaymentLinkResult, error)
}

func (f *fakeNotifier) SendPaymentLink(ctx context.Context, req notification.PaymentLinkRequest) (*notification.PaymentLinkResult, error) {
	return f.PaymentLinkFunc(ctx, req)
}

type fixture struct {
	orders   *fakeOrders
	callLogs *fakeCallLogs
	notifier *fakeNotifier
	settings Settings
	geoFail  float64
}

func newFixture() *fixture {
	return &fixture{
		orders:   &fakeOrders{},
		callLogs: &fakeCallLogs{},
		notifier: &fakeNotifier{},
		settings: Settings{Restaurant: "AI Pizza Palace", DeliveryMinutes: 40, HumanTransferNumber: "+15559990000"},
	}
}

func (f *fixture) machine() *Machine {
	return New(Deps{
		Geo:      geo.NewMock(sim.Config{FailureRate: f.geoFail}, geo.NewZone([]string{"10001", "10002"}), logger.NewNop()),
		Notifier: f.notifier,
		Orders:   f.orders,
		CallLogs: f.callLogs,
		Catalog:  menu.Default(),
		Pricing:  pricing.NewCalculator(0.08875, 5.99),
		Settings: f.settings,
	}, logger.NewNop())
}

var testCall = Call{ID: "call-1", CustomerNumber: "+15551234567"}

func handle(t *testing.T, m *Machine, name string, params Params) Result {
	t.Helper()
	res, err := m.Handle(context.Background(), testCall, name, params)
	require.NoError(t, err)
	assert.NotEmpty(t, res.Message)
	return res
}

func margheritaDraft() []interface{} {
	return []interface{}{
		map[string]interface{}{"name": "Pizza Margherita", "quantity": float64(2), "unit_price": 14.99},
	}
}

func TestHandle_UnknownFunction(t *testing.T) {
	res := handle(t, newFixture().machine(), "order_pizza_now", Params{})

	assert.False(t, res.Success)
	assert.Equal(t, "Unknown function: order_pizza_now", res.Message)
}

func TestWantsToOrder(t *testing.T) {
	tests := []struct {
		name   string
		params Params
		want   bool
	}{
		{"spoken yes", Params{"response": "Yeah, sure!"}, true},
		{"spanish", Params{"response": "Si"}, true},
		{"boolean", Params{"wants_to_order": true}, true},
		{"no", Params{"response": "no thanks"}, false},
		{"word inside another word", Params{"response": "yesterday"}, false},
	}

	m := newFixture().machine()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := handle(t, m, "check_wants_to_order", tt.params)
			assert.True(t, res.Success)
			assert.Equal(t, tt.want, res.Fields["wants_to_order"])

			if tt.want {
				assert.Equal(t, "Great! Is this order for pickup or delivery?", res.Message)
				assert.Equal(t, "select_order_type", res.NextAction)
			} else {
				assert.Equal(t, "No problem! Would you like to leave a message?", res.Message)
				assert.Equal(t, "record_message", res.NextAction)
			}
		})
	}
}

func TestSelectOrderType(t *testing.T) {
	tests := []struct {
		response string
		success  bool
		next     string
	}{
		{"Pick-up please", true, "get_pickup_time"},
		{"carry out", true, "get_pickup_time"},
		{"Delivery", true, "check_delivery_address"},
		{"can you deliver it", true, "check_delivery_address"},
		{"hmm", false, "select_order_type"},
	}

	m := newFixture().machine()

	for _, tt := range tests {
		t.Run(tt.response, func(t *testing.T) {
			res := handle(t, m, "select_order_type", Params{"response": tt.response})
			assert.Equal(t, tt.success, res.Success)
			assert.Equal(t, tt.next, res.NextAction)
		})
	}
}

func TestCheckAddress(t *testing.T) {
	m := newFixture().machine()

	t.Run("in zone", func(t *testing.T) {
		res := handle(t, m, "check_delivery_address", Params{"address": "123 main st", "zip_code": "10001"})
		assert.True(t, res.Success)
		assert.Equal(t, "Great! We can deliver to 123 Main St, New York, NY 10001. What would you like to order?", res.Message)
		assert.Equal(t, true, res.Fields["delivery_available"])
		assert.Equal(t, "40 minutes", res.Fields["estimated_delivery_time"])
		assert.Equal(t, "get_menu", res.NextAction)
	})

	t.Run("outside zone", func(t *testing.T) {
		res := handle(t, m, "validate_address", Params{"address": "1 Ocean Ave", "zipCode": "90210"})
		assert.False(t, res.Success)
		assert.Equal(t, "I'm sorry, we don't deliver to 90210. Would you like to do a pickup order instead?", res.Message)
		assert.Equal(t, true, res.Fields["suggest_pickup"])
		assert.Equal(t, "select_order_type", res.NextAction)
	})

	t.Run("not found", func(t *testing.T) {
		res := handle(t, m, "check_delivery_address", Params{"zip_code": "10001"})
		assert.False(t, res.Success)
		assert.Equal(t, "I couldn't find that address. Could you please repeat it?", res.Message)
		assert.Equal(t, "check_delivery_address", res.NextAction)
	})
}

func TestCheckAddress_ProviderDownRepromptsCaller(t *testing.T) {
	f := newFixture()
	f.geoFail = 1

	res := handle(t, f.machine(), "check_delivery_address", Params{"address": "123 main st", "zip_code": "10001"})
	assert.False(t, res.Success)
	assert.Equal(t, "check_delivery_address", res.NextAction)
}

func TestGetMenu(t *testing.T) {
	res := handle(t, newFixture().machine(), "get_menu", Params{"category": "drinks"})

	assert.Equal(t,
		"Here's our menu:\nDrinks: Coca-Cola for $2.99, Sprite for $2.99, Bottled Water for $1.99, Iced Tea for $2.49.\n\nWhat would you like to order?",
		res.Message)
	assert.Len(t, res.Fields["menu"], 4)

	all := handle(t, newFixture().machine(), "get_menu", Params{"category": "sushi"})
	assert.Len(t, all.Fields["menu"], len(menu.Default().Items()))
}

func TestAddItems(t *testing.T) {
	res := handle(t, newFixture().machine(), "add_items_to_order", Params{
		"items": []interface{}{
			map[string]interface{}{"name": "margherita", "quantity": float64(2)},
			map[string]interface{}{"name": "coke"},
			map[string]interface{}{"name": "sushi"},
		},
	})

	assert.True(t, res.Success)
	assert.Equal(t, "I've added 2x Pizza Margherita, 1x Coca-Cola to your order. Would you like anything else?", res.Message)
	assert.Equal(t, models.Money(3297), res.Fields["subtotal"])
	assert.Equal(t, []string{"sushi"}, res.Fields["not_found"])
	assert.Len(t, res.Fields["current_order"], 2)
}

func TestAddItems_AppendsToEchoedDraft(t *testing.T) {
	res := handle(t, newFixture().machine(), "add_items_to_order", Params{
		"current_order": margheritaDraft(),
		"items":         []interface{}{"garlic bread"},
	})

	assert.True(t, res.Success)
	assert.Equal(t, models.Money(2998+599), res.Fields["subtotal"])
}

func TestAddItems_NothingMatched(t *testing.T) {
	res := handle(t, newFixture().machine(), "add_items_to_order", Params{
		"items": []interface{}{map[string]interface{}{"name": "sushi", "quantity": float64(0)}},
	})

	assert.False(t, res.Success)
	assert.Equal(t, "I'm sorry, I couldn't find that item on our menu. Could you repeat that?", res.Message)
}

func TestRemoveItem(t *testing.T) {
	draft := append(margheritaDraft(), map[string]interface{}{"name": "Coca-Cola", "quantity": float64(1), "unit_price": 2.99})
	m := newFixture().machine()

	res := handle(t, m, "remove_item_from_order", Params{"current_order": draft, "item_name": "coca"})
	assert.True(t, res.Success)
	assert.Equal(t, "I've removed that item. Your subtotal is now $29.98. Anything else?", res.Message)
	assert.Len(t, res.Fields["current_order"], 1)

	res = handle(t, m, "remove_item_from_order", Params{"current_order": draft, "item_name": "tiramisu"})
	assert.False(t, res.Success)
	assert.Equal(t, "I couldn't find that item in your order.", res.Message)
}

func TestOrderSummary(t *testing.T) {
	m := newFixture().machine()

	pickup := handle(t, m, "get_order_summary", Params{"current_order": margheritaDraft(), "order_type": "pickup", "subtotal": 1})
	assert.Equal(t, "Your order: 2x Pizza Margherita. Subtotal: $29.98. Tax: $2.66. Total: $32.64. Is this correct?", pickup.Message)
	assert.Equal(t, "confirm_order", pickup.NextAction)
	assert.Equal(t, models.Money(3264), pickup.Fields["total"])

	delivery := handle(t, m, "get_order_summary", Params{"current_order": margheritaDraft(), "order_type": "delivery", "tip": 5})
	assert.Equal(t,
		"Your order: 2x Pizza Margherita. Subtotal: $29.98. Tax: $2.66. Delivery: $5.99. Tip: $5.00. Total: $43.63. Is this correct?",
		delivery.Message)

	empty := handle(t, m, "get_order_summary", Params{})
	assert.False(t, empty.Success)
	assert.Equal(t, msgEmptyOrder, empty.Message)
}

func TestConfirmOrder(t *testing.T) {
	m := newFixture().machine()

	cash := handle(t, m, "confirm_order", Params{"confirmed": "yes, that's right", "payment_method": "Cash"})
	assert.Equal(t, "Great! Your order will be ready for cash payment. Can I get your name for the order?", cash.Message)
	assert.Equal(t, "create_order", cash.NextAction)

	card := handle(t, m, "confirm_order", Params{"confirmed": true})
	assert.Equal(t, "Perfect! I'll send you a secure payment link via text message. Can I confirm your phone number?", card.Message)
	assert.Equal(t, "process_payment", card.NextAction)

	no := handle(t, m, "confirm_order", Params{"confirmed": "no, wait"})
	assert.False(t, no.Success)
	assert.Equal(t, "No problem. What would you like to change?", no.Message)
	assert.Equal(t, "get_menu", no.NextAction)
}

func savedOrder(id int64) func(ctx context.Context, draft *models.Order) (*models.Order, error) {
	return func(ctx context.Context, draft *models.Order) (*models.Order, error) {
		saved := *draft
		saved.ID = id
		return &saved, nil
	}
}

func TestSendPaymentLink(t *testing.T) {
	f := newFixture()

	var draft *models.Order
	f.orders.CreateForCallFunc = func(ctx context.Context, d *models.Order) (*models.Order, error) {
		draft = d
		return savedOrder(42)(ctx, d)
	}

	var recordedURL string
	f.orders.RecordPaymentLinkFunc = func(ctx context.Context, orderID int64, url string) error {
		assert.Equal(t, int64(42), orderID)
		recordedURL = url
		return nil
	}

	var req notification.PaymentLinkRequest
	f.notifier.PaymentLinkFunc = func(ctx context.Context, r notification.PaymentLinkRequest) (*notification.PaymentLinkResult, error) {
		req = r
		return &notification.PaymentLinkResult{Success: true, PaymentURL: "https://checkout.example/cs_1"}, nil
	}

	res := handle(t, f.machine(), "process_payment", Params{"current_order": margheritaDraft(), "order_type": "pickup"})

	assert.True(t, res.Success)
	assert.Equal(t, "I've sent a payment link to your phone. Once you complete the payment, your order will be confirmed and sent to the kitchen.", res.Message)
	assert.Equal(t, "https://checkout.example/cs_1", res.Fields["payment_url"])
	assert.Equal(t, int64(42), res.Fields["order_id"])

	require.NotNil(t, draft)
	assert.Equal(t, models.OrderStatusPaymentPending, draft.Status)
	assert.Equal(t, models.PaymentMethodCard, *draft.PaymentMethod)
	assert.Equal(t, "call-1", models.StringValue(draft.CallID))
	assert.Equal(t, "+15551234567", draft.CustomerPhone)

	assert.Equal(t, models.Money(3264), req.Amount)
	assert.Equal(t, "2x Pizza Margherita", req.Summary)
	assert.Equal(t, "https://checkout.example/cs_1", recordedURL)
}

func TestSendPaymentLink_DeliveryFailure(t *testing.T) {
	f := newFixture()
	f.orders.CreateForCallFunc = savedOrder(42)
	f.notifier.PaymentLinkFunc = func(ctx context.Context, r notification.PaymentLinkRequest) (*notification.PaymentLinkResult, error) {
		return &notification.PaymentLinkResult{ErrorCode: "delivery_failed"}, nil
	}

	res := handle(t, f.machine(), "create_payment_link", Params{"items": margheritaDraft()})

	assert.False(t, res.Success)
	assert.Equal(t, msgPaymentLinkFail, res.Message)
	assert.Equal(t, "delivery_failed", res.Fields["error_code"])
}

func TestSendPaymentLink_EmptyDraft(t *testing.T) {
	res := handle(t, newFixture().machine(), "process_payment", Params{})

	assert.False(t, res.Success)
	assert.Equal(t, msgEmptyOrder, res.Message)
}

func TestCreateOrder(t *testing.T) {
	tests := []struct {
		name          string
		params        Params
		status        models.OrderStatus
		paymentStatus models.PaymentStatus
		method        models.PaymentMethod
	}{
		{
			name:          "cash",
			params:        Params{"payment_method": "cash"},
			status:        models.OrderStatusPaid,
			paymentStatus: models.PaymentStatusPending,
			method:        models.PaymentMethodCash,
		},
		{
			name:          "already paid",
			params:        Params{"payment_intent_id": "pi_123"},
			status:        models.OrderStatusPaid,
			paymentStatus: models.PaymentStatusPaid,
			method:        models.PaymentMethodCard,
		},
		{
			name:          "card awaiting payment",
			params:        Params{},
			status:        models.OrderStatusPaymentPending,
			paymentStatus: models.PaymentStatusPending,
			method:        models.PaymentMethodCard,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()

			var draft *models.Order
			f.orders.PlaceForCallFunc = func(ctx context.Context, d *models.Order) (*models.Order, error) {
				draft = d
				return savedOrder(7)(ctx, d)
			}

			params := Params{"current_order": margheritaDraft(), "order_type": "pickup", "customer_name": "Ana"}
			for k, v := range tt.params {
				params[k] = v
			}

			res := handle(t, f.machine(), "place_order", params)

			assert.True(t, res.Success)
			assert.Equal(t, "Your order number is 7. Your total is $32.64. Estimated time: 20-30 minutes. Thank you for ordering from AI Pizza Palace!", res.Message)
			assert.Equal(t, "end_call", res.NextAction)

			require.NotNil(t, draft)
			assert.Equal(t, tt.status, draft.Status)
			assert.Equal(t, tt.paymentStatus, draft.PaymentStatus)
			assert.Equal(t, tt.method, *draft.PaymentMethod)
			assert.Equal(t, "Ana", draft.CustomerName)
			assert.Equal(t, "+15551234567", draft.CustomerPhone)
		})
	}
}

func TestCreateOrder_Delivery(t *testing.T) {
	f := newFixture()
	f.orders.PlaceForCallFunc = savedOrder(8)

	res := handle(t, f.machine(), "create_order", Params{
		"items":            margheritaDraft(),
		"delivery_address": "123 Main St",
		"zip_code":         "10001",
		"payment_method":   "cash",
		"customer_phone":   "+15550001111",
	})

	assert.True(t, res.Success)
	assert.Equal(t, "Your order number is 8. Your total is $38.63. Estimated time: 40 minutes. Thank you for ordering from AI Pizza Palace!", res.Message)
}

func TestCreateOrder_DeliveryWithoutZipIsRejected(t *testing.T) {
	res := handle(t, newFixture().machine(), "create_order", Params{
		"items":      margheritaDraft(),
		"order_type": "delivery",
		"address":    "123 Main St",
	})

	assert.False(t, res.Success)
	assert.Equal(t, msgOrderProblem, res.Message)
}

func TestCreateOrder_DeliveryOutsideZoneSuggestsPickup(t *testing.T) {
	for _, fn := range []string{"create_order", "process_payment"} {
		t.Run(fn, func(t *testing.T) {
			f := newFixture()
			f.orders.PlaceForCallFunc = func(ctx context.Context, d *models.Order) (*models.Order, error) {
				t.Fatal("order must not be stored")
				return nil, nil
			}
			f.orders.CreateForCallFunc = f.orders.PlaceForCallFunc

			res := handle(t, f.machine(), fn, Params{
				"items":            margheritaDraft(),
				"order_type":       "delivery",
				"delivery_address": "1 Ocean Ave",
				"zip_code":         "99999",
				"payment_method":   "cash",
			})

			assert.False(t, res.Success)
			assert.Equal(t, "I'm sorry, we don't deliver to 99999. Would you like to do a pickup order instead?", res.Message)
			assert.Equal(t, "select_order_type", res.NextAction)
			assert.Equal(t, true, res.Fields["suggest_pickup"])
			assert.Equal(t, "outside_delivery_zone", res.Fields["error_code"])
		})
	}
}

func TestCreateOrder_QuantityAboveCapIsRejected(t *testing.T) {
	f := newFixture()
	f.orders.PlaceForCallFunc = func(ctx context.Context, d *models.Order) (*models.Order, error) {
		t.Fatal("order must not be stored")
		return nil, nil
	}

	res := handle(t, f.machine(), "create_order", Params{
		"items":      []interface{}{map[string]interface{}{"name": "Pizza Margherita", "quantity": 1e16}},
		"order_type": "pickup",
	})

	assert.False(t, res.Success)
	assert.Equal(t, msgOrderProblem, res.Message)
}

func TestAddItems_QuantityAboveCap(t *testing.T) {
	res := handle(t, newFixture().machine(), "add_items_to_order", Params{
		"items": []interface{}{map[string]interface{}{"name": "Pizza Margherita", "quantity": float64(500)}},
	})

	assert.False(t, res.Success)
	assert.Equal(t, "I can add up to 99 of one item. How many Pizza Margherita would you like?", res.Message)
}

func TestQuantity(t *testing.T) {
	assert.Equal(t, 1, quantity(nil))
	assert.Equal(t, 1, quantity(float64(0)))
	assert.Equal(t, 3, quantity("3"))
	assert.Equal(t, models.MaxItemQuantity, quantity(float64(99)))
	assert.Equal(t, models.MaxItemQuantity+1, quantity(1e16))
}

func TestCreateOrder_SystemFailure(t *testing.T) {
	f := newFixture()
	f.orders.PlaceForCallFunc = func(ctx context.Context, d *models.Order) (*models.Order, error) {
		return nil, errors.New("connection reset")
	}

	_, err := f.machine().Handle(context.Background(), testCall, "create_order", Params{"items": margheritaDraft()})
	assert.Error(t, err)
}

func TestTransferToHuman(t *testing.T) {
	f := newFixture()

	var reason string
	f.orders.TransferCallFunc = func(ctx context.Context, callID, r string) error {
		assert.Equal(t, "call-1", callID)
		reason = r
		return nil
	}

	res := handle(t, f.machine(), "request_human_agent", Params{})
	assert.True(t, res.Success)
	assert.Equal(t, "I'll transfer you to one of our team members. Please hold.", res.Message)
	assert.Equal(t, true, res.Fields["transfer"])
	assert.Equal(t, "+15559990000", res.Fields["transfer_number"])
	assert.Equal(t, "Customer requested human agent", reason)

	f.settings.HumanTransferNumber = ""
	res = handle(t, f.machine(), "transfer_to_human", Params{})
	assert.False(t, res.Success)
	assert.Equal(t, "I apologize, but all our team members are currently busy. Can I take your number and have someone call you back?", res.Message)
}

func TestRecordMessage(t *testing.T) {
	f := newFixture()

	var got *models.CallLog
	f.callLogs.RecordMessageFunc = func(ctx context.Context, log *models.CallLog) (*models.CallLog, error) {
		got = log
		return log, nil
	}

	m := f.machine()
	m.now = func() time.Time { return time.Unix(1700000000, 0) }

	res, err := m.Handle(context.Background(), Call{}, "leave_message", Params{
		"customer_message":  "Please call me back",
		"caller_phone":      "+15550001111",
		"detected_language": "es",
	})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, "I've recorded your message. Someone from our team will get back to you. Thank you for calling!", res.Message)

	require.NotNil(t, got)
	assert.Equal(t, "manual_1700000000", got.CallID)
	assert.Equal(t, "+15550001111", got.CallerPhone)
	assert.Equal(t, "es", got.CallerLanguage)
	assert.Equal(t, models.CallOutcomeNoOrder, got.Outcome)
	assert.Equal(t, "Please call me back", models.StringValue(got.CustomerMessage))
}

func TestOrderStatus(t *testing.T) {
	f := newFixture()
	f.orders.GetByIDFunc = func(ctx context.Context, id int64) (*models.Order, error) {
		if id == 5 {
			return &models.Order{ID: 5, Status: models.OrderStatusOutForDelivery}, nil
		}
		return nil, apperrors.NewNotFoundError("order not found")
	}
	m := f.machine()

	res := handle(t, m, "get_order_status", Params{"order_id": float64(5)})
	assert.True(t, res.Success)
	assert.Equal(t, "Order #5 is currently out for delivery.", res.Message)

	res = handle(t, m, "get_order_status", Params{"order_id": "#99"})
	assert.False(t, res.Success)
	assert.Equal(t, "I couldn't find order #99. Could you double-check the number?", res.Message)

	res = handle(t, m, "get_order_status", Params{})
	assert.Equal(t, "What's your order number?", res.Message)
}

func TestResult_MarshalJSONIsFlat(t *testing.T) {
	res := succeed("hi", "get_menu").With("order_id", int64(3)).With("total", models.Money(1050))

	raw, err := json.Marshal(res)
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &got))

	assert.Equal(t, true, got["success"])
	assert.Equal(t, "hi", got["message"])
	assert.Equal(t, "get_menu", got["next_action"])
	assert.Equal(t, float64(3), got["order_id"])
	assert.Equal(t, 10.5, got["total"])
}

func TestGreeting(t *testing.T) {
	assert.Equal(t, "Thank you for calling AI Pizza Palace! Would you like to place an order?", Greeting("en", "AI Pizza Palace"))
	assert.Equal(t, "¡Gracias por llamar a AI Pizza Palace! ¿Le gustaría hacer un pedido?", Greeting("ES", "AI Pizza Palace"))
	assert.Equal(t, Greeting("en", "X"), Greeting("xx", "X"))
}
