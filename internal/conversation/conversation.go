// Package conversation runs the phone ordering dialogue.
//
// No session is held server side: the voice platform echoes the draft order back
// in every function call, and each call is reduced to a Result.
package conversation

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/vaidashi/phone-order-api/internal/menu"
	"github.com/vaidashi/phone-order-api/internal/models"
	"github.com/vaidashi/phone-order-api/internal/pricing"
	"github.com/vaidashi/phone-order-api/internal/providers/geo"
	"github.com/vaidashi/phone-order-api/internal/providers/notification"
	"github.com/vaidashi/phone-order-api/pkg/logger"
)

// Orders is the part of the order service the dialogue drives
type Orders interface {
	CreateForCall(ctx context.Context, draft *models.Order) (*models.Order, error)
	PlaceForCall(ctx context.Context, draft *models.Order) (*models.Order, error)
	RecordPaymentLink(ctx context.Context, orderID int64, url string) error
	TransferCall(ctx context.Context, callID, reason string) error
	RecordCallEnd(ctx context.Context, report models.CallReport) error
	GetByID(ctx context.Context, id int64) (*models.Order, error)
}

// CallLogs is the part of the call log service the dialogue drives
type CallLogs interface {
	RecordMessage(ctx context.Context, log *models.CallLog) (*models.CallLog, error)
}

// Settings are the restaurant facts quoted back to callers
type Settings struct {
	Restaurant          string
	DeliveryMinutes     int
	HumanTransferNumber string
}

// Deps are the collaborators of a Machine
type Deps struct {
	Geo      geo.Provider
	Notifier notification.Provider
	Orders   Orders
	CallLogs CallLogs
	Catalog  *menu.Catalog
	Pricing  *pricing.Calculator
	Settings Settings
}

// Call identifies the phone call a function call belongs to
type Call struct {
	ID             string
	CustomerNumber string
	CustomerName   string
	Language       string
}

// Result is the reply to one function call. It serializes flat:
// {"success", "message", ...fields, "next_action"}.
type Result struct {
	Success    bool
	Message    string
	NextAction string
	Fields     map[string]interface{}
}

func succeed(message, next string) Result {
	return Result{Success: true, Message: message, NextAction: next}
}

func reject(message, next string) Result {
	return Result{Success: false, Message: message, NextAction: next}
}

// With returns the result with an extra field
func (r Result) With(key string, value interface{}) Result {
	fields := make(map[string]interface{}, len(r.Fields)+1)
	for k, v := range r.Fields {
		fields[k] = v
	}
	fields[key] = value
	r.Fields = fields
	return r
}

func (r Result) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(r.Fields)+3)
	for k, v := range r.Fields {
		out[k] = v
	}

	out["success"] = r.Success
	out["message"] = r.Message
	if r.NextAction != "" {
		out["next_action"] = r.NextAction
	}
	return json.Marshal(out)
}

type handlerFunc func(m *Machine, ctx context.Context, call Call, p Params) (Result, error)

var routes = map[string]handlerFunc{
	"check_wants_to_order":   (*Machine).wantsToOrder,
	"select_order_type":      (*Machine).selectOrderType,
	"check_delivery_address": (*Machine).checkAddress,
	"validate_address":       (*Machine).checkAddress,
	"get_menu":               (*Machine).getMenu,
	"add_items_to_order":     (*Machine).addItems,
	"remove_item_from_order": (*Machine).removeItem,
	"get_order_summary":      (*Machine).orderSummary,
	"confirm_order":          (*Machine).confirmOrder,
	"process_payment":        (*Machine).sendPaymentLink,
	"create_payment_link":    (*Machine).sendPaymentLink,
	"create_order":           (*Machine).createOrder,
	"place_order":            (*Machine).createOrder,
	"transfer_to_human":      (*Machine).transferToHuman,
	"request_human_agent":    (*Machine).transferToHuman,
	"record_message":         (*Machine).recordMessage,
	"leave_message":          (*Machine).recordMessage,
	"get_order_status":       (*Machine).orderStatus,
}

// Machine dispatches voice function calls
type Machine struct {
	geo      geo.Provider
	notifier notification.Provider
	orders   Orders
	callLogs CallLogs
	catalog  *menu.Catalog
	pricing  *pricing.Calculator
	settings Settings
	now      func() time.Time
	logger   logger.Logger
}

// New creates a Machine
func New(deps Deps, logger logger.Logger) *Machine {
	catalog := deps.Catalog
	if catalog == nil {
		catalog = menu.Default()
	}

	return &Machine{
		geo:      deps.Geo,
		notifier: deps.Notifier,
		orders:   deps.Orders,
		callLogs: deps.CallLogs,
		catalog:  catalog,
		pricing:  deps.Pricing,
		settings: deps.Settings,
		now:      time.Now,
		logger:   logger,
	}
}

// Handle runs one function call. User input problems come back as unsuccessful
// results; the error is reserved for system failures.
func (m *Machine) Handle(ctx context.Context, call Call, name string, params Params) (Result, error) {
	if lang := params.String("detected_language"); lang != "" {
		call.Language = lang
	}
	if call.Language == "" {
		call.Language = "en"
	}

	handler, found := routes[name]
	if !found {
		m.logger.Warn("Unknown voice function", "function", name, "callID", call.ID)
		return reject("Unknown function: "+name, ""), nil
	}

	m.logger.Debug("Handling voice function", "function", name, "callID", call.ID, "language", call.Language)

	return handler(m, ctx, call, params)
}

var greetings = map[string]string{
	"en": "Thank you for calling {restaurant}! Would you like to place an order?",
	"es": "¡Gracias por llamar a {restaurant}! ¿Le gustaría hacer un pedido?",
	"fr": "Merci d'avoir appelé {restaurant}! Souhaitez-vous passer une commande?",
	"zh": "感谢致电{restaurant}！您想下订单吗？",
	"ar": "شكراً لاتصالك بـ {restaurant}! هل ترغب في تقديم طلب؟",
	"pt": "Obrigado por ligar para {restaurant}! Gostaria de fazer um pedido?",
	"de": "Danke für Ihren Anruf bei {restaurant}! Möchten Sie eine Bestellung aufgeben?",
	"it": "Grazie per aver chiamato {restaurant}! Vuole fare un ordine?",
	"ja": "{restaurant}にお電話いただきありがとうございます！ご注文されますか？",
	"ko": "{restaurant}에 전화해 주셔서 감사합니다! 주문하시겠습니까?",
}

// Greeting returns the opening line in the caller's language, English when unsupported
func Greeting(lang, restaurant string) string {
	template, found := greetings[strings.ToLower(strings.TrimSpace(lang))]
	if !found {
		template = greetings["en"]
	}
	return strings.ReplaceAll(template, "{restaurant}", restaurant)
}
