package conversation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/vaidashi/phone-order-api/internal/menu"
	"github.com/vaidashi/phone-order-api/internal/models"
	"github.com/vaidashi/phone-order-api/internal/pricing"
	"github.com/vaidashi/phone-order-api/internal/providers/geo"
	"github.com/vaidashi/phone-order-api/internal/providers/notification"
	apperrors "github.com/vaidashi/phone-order-api/pkg/errors"
)

const (
	msgEmptyOrder      = "I don't have any items in your order. What would you like to order?"
	msgOrderProblem    = "I'm sorry, there was a problem placing your order."
	msgPaymentLinkFail = "I'm having trouble sending the payment link. Would you like to pay with cash instead?"
	defaultVoiceName   = "Voice Customer"
	defaultTransfer    = "Customer requested human agent"
)

var (
	yesWords     = []string{"yes", "yeah", "sure", "ok", "okay", "please", "si", "oui", "ja"}
	confirmWords = []string{"yes", "yeah", "correct", "right", "ok", "okay", "confirm", "si", "oui"}
	pickupWords  = []string{"pickup", "pick up", "carryout", "carry out"}
	deliverWords = []string{"delivery", "deliver", "delivered"}
)

// words lowercases s and splits it on anything that is not a letter or digit
func words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// mentions reports whether any phrase appears in s as whole words
func mentions(s string, phrases []string) bool {
	text := " " + strings.Join(words(s), " ") + " "

	for _, phrase := range phrases {
		if strings.Contains(text, " "+phrase+" ") {
			return true
		}
	}
	return false
}

// affirmative reads a yes/no answer given either as a JSON boolean or as speech
func affirmative(p Params, key string, vocabulary []string) bool {
	if b, ok := p.Bool(key); ok {
		return b
	}
	return mentions(p.String(key, "response"), vocabulary)
}

func (m *Machine) wantsToOrder(ctx context.Context, call Call, p Params) (Result, error) {
	if affirmative(p, "wants_to_order", yesWords) {
		return succeed("Great! Is this order for pickup or delivery?", "select_order_type").
			With("wants_to_order", true), nil
	}

	return succeed("No problem! Would you like to leave a message?", "record_message").
		With("wants_to_order", false), nil
}

func (m *Machine) selectOrderType(ctx context.Context, call Call, p Params) (Result, error) {
	answer := p.String("order_type", "response")

	switch {
	case mentions(answer, pickupWords):
		return succeed("Perfect! What time would you like to pick up your order?", "get_pickup_time").
			With("order_type", models.OrderTypePickup), nil
	case mentions(answer, deliverWords):
		return succeed("Sure! What's your delivery address?", "check_delivery_address").
			With("order_type", models.OrderTypeDelivery), nil
	}

	return reject("I'm sorry, I didn't catch that. Would you like pickup or delivery?", "select_order_type"), nil
}

func (m *Machine) checkAddress(ctx context.Context, call Call, p Params) (Result, error) {
	query := geo.AddressQuery{
		Address: p.String("address", "delivery_address"),
		City:    p.StringOr("New York", "city"),
		ZipCode: p.String("zip_code", "zipCode"),
		State:   p.StringOr("NY", "state"),
	}

	res, err := m.geo.ValidateAddress(ctx, query)
	if err != nil {
		m.logger.Warn("Address validation unavailable", "error", err, "callID", call.ID)
		res = nil
	}

	if res == nil || !res.IsValid {
		return reject("I couldn't find that address. Could you please repeat it?", "check_delivery_address").
			With("delivery_available", false), nil
	}

	if !res.IsInZone {
		zip := query.ZipCode
		if zip == "" {
			zip = res.ZipCode
		}
		return outOfZone(zip, res.ErrorCode), nil
	}

	return succeed(fmt.Sprintf("Great! We can deliver to %s. What would you like to order?", res.FormattedAddress), "get_menu").
		With("formatted_address", res.FormattedAddress).
		With("zip_code", res.ZipCode).
		With("delivery_available", true).
		With("estimated_delivery_time", fmt.Sprintf("%d minutes", m.settings.DeliveryMinutes)), nil
}

func (m *Machine) getMenu(ctx context.Context, call Call, p Params) (Result, error) {
	items := m.catalog.Filter(p.String("category"))
	text := menu.FormatText(items)

	return succeed("Here's our menu:"+text+"\n\nWhat would you like to order?", "add_items_to_order").
		With("menu", items).
		With("menu_text", text), nil
}

// lineItem is the shape of a draft line echoed back by the voice platform
type lineItem struct {
	Name      string       `json:"name"`
	Quantity  int          `json:"quantity"`
	UnitPrice models.Money `json:"unit_price"`
	Total     models.Money `json:"total"`
}

func lineItems(items models.OrderItems) []lineItem {
	out := make([]lineItem, len(items))
	for i, item := range items {
		out[i] = lineItem{
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Total:     pricing.LineTotal(item.Quantity, item.UnitPrice),
		}
	}
	return out
}

// draftItems reads the echoed draft. Names the catalog knows are re-priced from it.
func (m *Machine) draftItems(p Params, keys ...string) models.OrderItems {
	var items models.OrderItems

	for _, raw := range p.List(keys...) {
		name := toString(raw["name"])
		if name == "" {
			continue
		}

		item := models.OrderItem{
			Name:                name,
			Quantity:            quantity(raw["quantity"]),
			SpecialInstructions: toString(raw["special_instructions"]),
		}

		if entry, found := m.catalog.Find(name); found {
			item.Name = entry.Name
			item.UnitPrice = entry.Price
		} else if price, ok := toFloat(raw["unit_price"]); ok {
			item.UnitPrice = models.NewMoney(price)
		} else if price, ok := toFloat(raw["price"]); ok {
			item.UnitPrice = models.NewMoney(price)
		}

		items = append(items, item)
	}
	return pricing.Normalize(items)
}

func (m *Machine) addItems(ctx context.Context, call Call, p Params) (Result, error) {
	current := m.draftItems(p, "current_order")

	var added models.OrderItems
	var notFound []string

	for _, raw := range p.List("items") {
		name := toString(raw["name"])

		entry, found := m.catalog.Find(name)
		if !found {
			notFound = append(notFound, name)
			continue
		}

		qty := quantity(raw["quantity"])
		if qty > models.MaxItemQuantity {
			return reject(fmt.Sprintf("I can add up to %d of one item. How many %s would you like?", models.MaxItemQuantity, entry.Name), "add_items_to_order").
				With("current_order", lineItems(current)).
				With("subtotal", pricing.Subtotal(current)), nil
		}
		added = append(added, models.OrderItem{
			Name:                entry.Name,
			Quantity:            qty,
			UnitPrice:           entry.Price,
			TotalPrice:          pricing.LineTotal(qty, entry.Price),
			SpecialInstructions: toString(raw["special_instructions"]),
		})
	}

	if len(added) == 0 {
		return reject("I'm sorry, I couldn't find that item on our menu. Could you repeat that?", "add_items_to_order").
			With("not_found", notFound).
			With("current_order", lineItems(current)).
			With("subtotal", pricing.Subtotal(current)), nil
	}

	current = append(current, added...)

	res := succeed(fmt.Sprintf("I've added %s to your order. Would you like anything else?", added.Summary()), "add_items_to_order").
		With("added_items", lineItems(added)).
		With("current_order", lineItems(current)).
		With("subtotal", pricing.Subtotal(current))

	if len(notFound) > 0 {
		res = res.With("not_found", notFound)
	}
	return res, nil
}

func (m *Machine) matchesLine(query, lineName string) bool {
	lower := strings.ToLower(strings.TrimSpace(query))
	if lower == "" {
		return false
	}
	if strings.Contains(strings.ToLower(lineName), lower) {
		return true
	}
	entry, found := m.catalog.Find(query)
	return found && entry.Name == lineName
}

func (m *Machine) removeItem(ctx context.Context, call Call, p Params) (Result, error) {
	current := m.draftItems(p, "current_order")
	query := p.String("item_name", "name")

	for i, item := range current {
		if !m.matchesLine(query, item.Name) {
			continue
		}

		remaining := append(models.OrderItems{}, current[:i]...)
		remaining = append(remaining, current[i+1:]...)
		subtotal := pricing.Subtotal(remaining)

		return succeed(fmt.Sprintf("I've removed that item. Your subtotal is now %s. Anything else?", subtotal), "add_items_to_order").
			With("removed_item", item.Name).
			With("current_order", lineItems(remaining)).
			With("subtotal", subtotal), nil
	}

	return reject("I couldn't find that item in your order.", "add_items_to_order").
		With("current_order", lineItems(current)), nil
}

// orderType reads the requested fulfillment, falling back to delivery when an address was given
func orderType(p Params) models.OrderType {
	if t, ok := models.ParseOrderType(p.String("order_type")); ok {
		return t
	}
	if p.String("delivery_address", "address") != "" {
		return models.OrderTypeDelivery
	}
	return models.OrderTypePickup
}

func (m *Machine) orderSummary(ctx context.Context, call Call, p Params) (Result, error) {
	items := m.draftItems(p, "current_order", "items")
	if len(items) == 0 {
		return reject(msgEmptyOrder, "get_menu"), nil
	}

	kind, known := models.ParseOrderType(p.String("order_type"))
	if !known {
		kind = models.OrderTypeDelivery
	}
	totals := m.pricing.Calculate(items, kind, p.Money("tip"))

	var b strings.Builder
	fmt.Fprintf(&b, "Your order: %s. Subtotal: %s. Tax: %s", items.Summary(), totals.Subtotal, totals.Tax)
	if totals.DeliveryFee > 0 {
		fmt.Fprintf(&b, ". Delivery: %s", totals.DeliveryFee)
	}
	if totals.Tip > 0 {
		fmt.Fprintf(&b, ". Tip: %s", totals.Tip)
	}
	fmt.Fprintf(&b, ". Total: %s.", totals.Total)
	summary := b.String()

	return succeed(summary+" Is this correct?", "confirm_order").
		With("items", lineItems(items)).
		With("order_type", kind).
		With("subtotal", totals.Subtotal).
		With("tax", totals.Tax).
		With("delivery_fee", totals.DeliveryFee).
		With("tip", totals.Tip).
		With("total", totals.Total).
		With("summary_text", summary), nil
}

func (m *Machine) confirmOrder(ctx context.Context, call Call, p Params) (Result, error) {
	if !affirmative(p, "confirmed", confirmWords) {
		return reject("No problem. What would you like to change?", "get_menu").
			With("confirmed", false), nil
	}

	if strings.EqualFold(p.String("payment_method"), string(models.PaymentMethodCash)) {
		return succeed("Great! Your order will be ready for cash payment. Can I get your name for the order?", "create_order").
			With("confirmed", true).
			With("payment_method", models.PaymentMethodCash), nil
	}

	return succeed("Perfect! I'll send you a secure payment link via text message. Can I confirm your phone number?", "process_payment").
		With("confirmed", true).
		With("payment_method", models.PaymentMethodCard), nil
}

func outOfZone(zip, code string) Result {
	return reject(fmt.Sprintf("I'm sorry, we don't deliver to %s. Would you like to do a pickup order instead?", zip), "select_order_type").
		With("delivery_available", false).
		With("suggest_pickup", true).
		With("error_code", code)
}

// buildDraft turns the echoed draft into an unsaved order with server-side totals.
// A non-nil Result is the reply to give instead.
func (m *Machine) buildDraft(call Call, p Params) (*models.Order, *Result) {
	items := m.draftItems(p, "items", "current_order")
	if len(items) == 0 {
		res := reject(msgEmptyOrder, "get_menu")
		return nil, &res
	}

	phone := p.StringOr(call.CustomerNumber, "customer_phone", "caller_phone")
	name := p.StringOr(call.CustomerName, "customer_name")
	if name == "" {
		name = defaultVoiceName
	}

	kind := orderType(p)
	draft := models.NewOrder(kind, name, phone, items)
	draft.CustomerEmail = models.StringPtr(p.String("customer_email"))
	draft.CustomerLanguage = call.Language
	draft.SpecialInstructions = models.StringPtr(p.String("special_instructions"))
	draft.Tip = p.Money("tip")
	draft.CallID = models.StringPtr(call.ID)
	draft.CallTranscription = models.StringPtr(p.String("transcription"))
	draft.CallRecordingURL = models.StringPtr(p.String("recording_url"))

	if kind == models.OrderTypeDelivery {
		draft.DeliveryAddress = models.StringPtr(p.String("delivery_address", "address"))
		draft.City = models.StringPtr(p.StringOr("New York", "city"))
		draft.State = models.StringPtr(p.StringOr("NY", "state"))
		draft.ZipCode = models.StringPtr(p.String("zip_code", "zipCode"))
		draft.DeliveryInstructions = models.StringPtr(p.String("delivery_instructions"))

		if zip := models.StringValue(draft.ZipCode); zip != "" && !m.geo.IsInDeliveryZone(zip) {
			m.logger.Warn("Rejected delivery draft outside the zone", "zipCode", zip, "callID", call.ID)
			res := outOfZone(zip, "outside_delivery_zone")
			return nil, &res
		}
	} else {
		draft.PickupTime = models.StringPtr(p.StringOr(models.DefaultPickupTime, "pickup_time"))
	}

	m.pricing.Apply(draft)

	if err := draft.Validate(); err != nil {
		m.logger.Warn("Rejected voice order draft", "error", err, "callID", call.ID)
		res := reject(msgOrderProblem, "get_order_summary").With("error", err.Error())
		return nil, &res
	}
	return draft, nil
}

func (m *Machine) sendPaymentLink(ctx context.Context, call Call, p Params) (Result, error) {
	draft, reply := m.buildDraft(call, p)
	if reply != nil {
		return *reply, nil
	}

	card := models.PaymentMethodCard
	draft.PaymentMethod = &card
	draft.Status = models.OrderStatusPaymentPending

	order, err := m.orders.CreateForCall(ctx, draft)
	if err != nil {
		if errors.Is(err, apperrors.ErrInvalidInput) {
			return reject(msgOrderProblem, "get_order_summary"), nil
		}
		return Result{}, err
	}

	if order.PaymentStatus == models.PaymentStatusPaid || order.Status.IsTerminal() {
		m.logger.Warn("Payment link requested for settled order", "orderID", order.ID, "status", order.Status)
		return reject(msgPaymentLinkFail, "create_order").With("order_id", order.ID), nil
	}

	link, err := m.notifier.SendPaymentLink(ctx, notification.PaymentLinkRequest{
		OrderID: order.ID,
		Phone:   order.CustomerPhone,
		Email:   models.StringValue(order.CustomerEmail),
		Amount:  order.TotalAmount,
		Summary: order.Items.Summary(),
	})
	if err != nil {
		m.logger.Error("Failed to send payment link", "error", err, "orderID", order.ID)
		return reject(msgPaymentLinkFail, "create_order").
			With("order_id", order.ID).
			With("error_code", apperrors.Code(err)), nil
	}
	if !link.Success {
		m.logger.Warn("Payment link not delivered", "orderID", order.ID, "errorCode", link.ErrorCode)
		return reject(msgPaymentLinkFail, "create_order").
			With("order_id", order.ID).
			With("error_code", link.ErrorCode), nil
	}

	if err := m.orders.RecordPaymentLink(ctx, order.ID, link.PaymentURL); err != nil {
		m.logger.Error("Failed to record payment link", "error", err, "orderID", order.ID)
	}

	return succeed("I've sent a payment link to your phone. Once you complete the payment, your order will be confirmed and sent to the kitchen.", "end_call").
		With("payment_url", link.PaymentURL).
		With("payment_link_sent", true).
		With("order_id", order.ID).
		With("total_amount", order.TotalAmount), nil
}

func (m *Machine) createOrder(ctx context.Context, call Call, p Params) (Result, error) {
	draft, reply := m.buildDraft(call, p)
	if reply != nil {
		return *reply, nil
	}

	paymentID := p.String("payment_id", "payment_intent_id")

	switch {
	case paymentID != "":
		card := models.PaymentMethodCard
		draft.PaymentMethod = &card
		draft.PaymentIntentID = &paymentID
		draft.PaymentStatus = models.PaymentStatusPaid
		draft.Status = models.OrderStatusPaid
	case strings.EqualFold(p.String("payment_method"), string(models.PaymentMethodCash)):
		cash := models.PaymentMethodCash
		draft.PaymentMethod = &cash
		draft.Status = models.OrderStatusPaid
	default:
		card := models.PaymentMethodCard
		draft.PaymentMethod = &card
		draft.Status = models.OrderStatusPaymentPending
	}

	order, err := m.orders.PlaceForCall(ctx, draft)
	if err != nil {
		if errors.Is(err, apperrors.ErrInvalidInput) {
			return reject(msgOrderProblem, "get_order_summary"), nil
		}
		return Result{}, err
	}

	estimate := order.EstimatedTime(m.settings.DeliveryMinutes)

	return succeed(fmt.Sprintf("Your order number is %d. Your total is %s. Estimated time: %s. Thank you for ordering from %s!",
		order.ID, order.TotalAmount, estimate, m.settings.Restaurant), "end_call").
		With("order_id", order.ID).
		With("total_amount", order.TotalAmount).
		With("estimated_time", estimate).
		With("status", order.Status), nil
}

func (m *Machine) transferToHuman(ctx context.Context, call Call, p Params) (Result, error) {
	number := m.settings.HumanTransferNumber
	if number == "" {
		return reject("I apologize, but all our team members are currently busy. Can I take your number and have someone call you back?", "record_message").
			With("transfer", false), nil
	}

	reason := p.StringOr(defaultTransfer, "reason")

	if call.ID != "" {
		if err := m.orders.TransferCall(ctx, call.ID, reason); err != nil {
			m.logger.Error("Failed to mark call transferred", "error", err, "callID", call.ID)
		}
	}

	return succeed("I'll transfer you to one of our team members. Please hold.", "transfer_call").
		With("transfer", true).
		With("transfer_number", number).
		With("reason", reason), nil
}

func (m *Machine) recordMessage(ctx context.Context, call Call, p Params) (Result, error) {
	callID := call.ID
	if callID == "" {
		callID = fmt.Sprintf("manual_%d", m.now().Unix())
	}

	log := models.NewCallLog(callID, p.StringOr(call.CustomerNumber, "caller_phone", "customer_phone"), call.Language, models.CallOutcomeNoOrder)
	log.CustomerMessage = models.StringPtr(p.String("message", "customer_message"))
	log.Transcription = models.StringPtr(p.String("transcription"))
	log.RecordingURL = models.StringPtr(p.String("recording_url"))

	saved, err := m.callLogs.RecordMessage(ctx, log)
	if err != nil {
		return Result{}, err
	}

	return succeed("I've recorded your message. Someone from our team will get back to you. Thank you for calling!", "end_call").
		With("call_id", saved.CallID), nil
}

func (m *Machine) orderStatus(ctx context.Context, call Call, p Params) (Result, error) {
	raw := strings.TrimPrefix(p.String("order_id", "order_number"), "#")
	if raw == "" {
		return reject("What's your order number?", "get_order_status"), nil
	}

	notFound := reject(fmt.Sprintf("I couldn't find order #%s. Could you double-check the number?", raw), "get_order_status")

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return notFound, nil
	}

	order, err := m.orders.GetByID(ctx, id)
	if errors.Is(err, apperrors.ErrNotFound) {
		return notFound, nil
	}
	if err != nil {
		return Result{}, err
	}

	return succeed(fmt.Sprintf("Order #%d is currently %s.", order.ID, order.Status.Human()), "").
		With("order_id", order.ID).
		With("status", order.Status), nil
}
