package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/vaidashi/phone-order-api/internal/models"
	"github.com/vaidashi/phone-order-api/internal/pricing"
	"github.com/vaidashi/phone-order-api/internal/providers/geo"
	"github.com/vaidashi/phone-order-api/internal/providers/notification"
	"github.com/vaidashi/phone-order-api/internal/providers/payment"
	"github.com/vaidashi/phone-order-api/internal/repository"
	apperrors "github.com/vaidashi/phone-order-api/pkg/errors"
	"github.com/vaidashi/phone-order-api/pkg/logger"
)

// OrderServiceConfig holds the collaborators of an OrderService
type OrderServiceConfig struct {
	Orders        *repository.OrderRepository
	CallLogs      *repository.CallLogRepository
	Outbox        *repository.OutboxRepository
	PaymentEvents *repository.PaymentEventRepository
	Payment       payment.Provider
	Geo           geo.Provider
	Notifier      notification.Provider
	Pricing       *pricing.Calculator
	Currency      string
}

// OrderService owns order persistence and the side-effect jobs queued with it
type OrderService struct {
	orderRepo        *repository.OrderRepository
	callLogRepo      *repository.CallLogRepository
	outboxRepo       *repository.OutboxRepository
	paymentEventRepo *repository.PaymentEventRepository
	payments         payment.Provider
	geo              geo.Provider
	notifier         notification.Provider
	pricing          *pricing.Calculator
	currency         string
	now              func() time.Time
	logger           logger.Logger
}

// NewOrderService creates a new OrderService
func NewOrderService(cfg OrderServiceConfig, logger logger.Logger) *OrderService {
	currency := cfg.Currency
	if currency == "" {
		currency = "usd"
	}

	return &OrderService{
		orderRepo:        cfg.Orders,
		callLogRepo:      cfg.CallLogs,
		outboxRepo:       cfg.Outbox,
		paymentEventRepo: cfg.PaymentEvents,
		payments:         cfg.Payment,
		geo:              cfg.Geo,
		notifier:         cfg.Notifier,
		pricing:          cfg.Pricing,
		currency:         currency,
		now:              models.GetCurrentTime,
		logger:           logger,
	}
}

// CreateForCall stores the draft as the active order of its call. When the call already has an
// active order, that order is reused and moved forward if the draft asks for a legal transition.
func (s *OrderService) CreateForCall(ctx context.Context, draft *models.Order) (*models.Order, error) {
	order, _, err := s.upsertForCall(ctx, draft)
	return order, err
}

// PlaceForCall is CreateForCall followed by a best-effort confirmation to the caller. The
// confirmation goes out when the order is created or changes status, never on a replay.
func (s *OrderService) PlaceForCall(ctx context.Context, draft *models.Order) (*models.Order, error) {
	order, placed, err := s.upsertForCall(ctx, draft)
	if err != nil {
		return nil, err
	}

	if placed {
		s.sendConfirmation(ctx, order)
	}
	return order, nil
}

func (s *OrderService) upsertForCall(ctx context.Context, draft *models.Order) (*models.Order, bool, error) {
	if err := s.prepare(draft); err != nil {
		return nil, false, err
	}

	callID := models.StringValue(draft.CallID)
	if callID == "" {
		if err := s.insert(ctx, draft); err != nil {
			return nil, false, err
		}
		return draft, true, nil
	}

	existing, err := s.orderRepo.GetActiveByCallID(ctx, callID)
	switch {
	case err == nil:
		return s.reconcile(ctx, existing.ID, draft)
	case !errors.Is(err, repository.ErrNotFound):
		return nil, false, err
	}

	err = s.insert(ctx, draft)
	if errors.Is(err, repository.ErrDuplicate) {
		s.logger.Info("Concurrent order for call, reusing winner", "callID", callID)

		winner, getErr := s.orderRepo.GetActiveByCallID(ctx, callID)
		if getErr != nil {
			return nil, false, getErr
		}
		return s.reconcile(ctx, winner.ID, draft)
	}
	if err != nil {
		return nil, false, err
	}

	s.logger.Info("Order created for call", "orderID", draft.ID, "callID", callID, "status", draft.Status)
	return draft, true, nil
}

// prepare recomputes totals and checks the fulfillment rules
func (s *OrderService) prepare(draft *models.Order) error {
	s.pricing.Apply(draft)

	if err := draft.Validate(); err != nil {
		return apperrors.NewInvalidInputError(err.Error())
	}
	return nil
}

// insert stores a new order with its export job, plus the kitchen job when it is already paid
func (s *OrderService) insert(ctx context.Context, order *models.Order) (err error) {
	tx, err := s.orderRepo.BeginTx(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				s.logger.Error("Failed to rollback transaction", "error", rollbackErr)
			}
		}
	}()

	if err = s.orderRepo.CreateInTx(ctx, tx, order); err != nil {
		return err
	}

	exportMsg, err := models.NewOrderExportEvent(order.ID)
	if err != nil {
		return fmt.Errorf("failed to create outbox message: %w", err)
	}

	if err = s.outboxRepo.CreateInTx(ctx, tx, exportMsg); err != nil {
		return err
	}

	if order.Status == models.OrderStatusPaid {
		if err = s.queueKitchen(ctx, tx, order.ID); err != nil {
			return err
		}
	}

	if callID := models.StringValue(order.CallID); callID != "" {
		if err = s.linkCallLog(ctx, tx, callID, order.ID); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		s.logger.Error("Failed to commit transaction", "error", err)
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// linkCallLog attaches the order to a call log written before it, e.g. when the end-of-call
// report arrived first, and queues the corrected ledger row.
func (s *OrderService) linkCallLog(ctx context.Context, tx *sqlx.Tx, callID string, orderID int64) error {
	log, err := s.callLogRepo.LinkOrderInTx(ctx, tx, callID, orderID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	msg, err := models.NewCallLogExportEvent(log)
	if err != nil {
		return fmt.Errorf("failed to create outbox message: %w", err)
	}

	s.logger.Info("Call log linked to order", "callID", callID, "orderID", orderID)
	return s.outboxRepo.CreateInTx(ctx, tx, msg)
}

func (s *OrderService) queueKitchen(ctx context.Context, tx *sqlx.Tx, orderID int64) error {
	msg, err := models.NewKitchenSendEvent(orderID)
	if err != nil {
		return fmt.Errorf("failed to create outbox message: %w", err)
	}
	return s.outboxRepo.CreateInTx(ctx, tx, msg)
}

func awaitingPayment(o *models.Order) bool {
	switch o.Status {
	case models.OrderStatusPending, models.OrderStatusConfirmed, models.OrderStatusPaymentPending:
		return o.PaymentStatus != models.PaymentStatusPaid
	}
	return false
}

// reconcile merges a repeated draft into the active order of its call. It reports whether the
// draft moved the order to a new status; a replay of the same draft writes nothing.
func (s *OrderService) reconcile(ctx context.Context, orderID int64, draft *models.Order) (order *models.Order, transitioned bool, err error) {
	tx, err := s.orderRepo.BeginTx(ctx)
	if err != nil {
		return nil, false, err
	}

	defer func() {
		if err != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				s.logger.Error("Failed to rollback transaction", "error", rollbackErr)
			}
		}
	}()

	order, err = s.orderRepo.GetByIDForUpdate(ctx, tx, orderID)
	if err != nil {
		return nil, false, err
	}

	now := s.now()
	refreshed := false

	if awaitingPayment(order) {
		refreshed = refreshDraft(order, draft)

		if order.Status != draft.Status && models.CanTransition(order.OrderType, order.Status, draft.Status) {
			if err = order.ApplyStatus(draft.Status, now); err != nil {
				return nil, false, err
			}
			order.PaymentStatus = draft.PaymentStatus
			order.PaymentMethod = draft.PaymentMethod
			if draft.PaymentIntentID != nil {
				order.PaymentIntentID = draft.PaymentIntentID
			}
			transitioned = true
		}
	}

	if !refreshed && !transitioned {
		if err = tx.Commit(); err != nil {
			return nil, false, fmt.Errorf("failed to commit transaction: %w", err)
		}
		s.logger.Debug("Repeated draft left order unchanged", "orderID", order.ID, "status", order.Status)
		return order, false, nil
	}

	order.UpdatedAt = now
	if err = s.orderRepo.UpdateInTx(ctx, tx, order); err != nil {
		return nil, false, err
	}

	if transitioned && order.Status == models.OrderStatusPaid {
		if err = s.queueKitchen(ctx, tx, order.ID); err != nil {
			return nil, false, err
		}
	}

	if err = tx.Commit(); err != nil {
		s.logger.Error("Failed to commit transaction", "error", err)
		return nil, false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Info("Order for call updated", "orderID", order.ID, "status", order.Status, "transitioned", transitioned)
	return order, transitioned, nil
}

// refreshDraft copies what the caller may still change before paying and reports whether
// anything differed. order_type is fixed once stored.
func refreshDraft(order, draft *models.Order) bool {
	changed := false

	assign(&order.CustomerName, draft.CustomerName, &changed)
	assign(&order.CustomerPhone, draft.CustomerPhone, &changed)
	if draft.CustomerEmail != nil {
		assignText(&order.CustomerEmail, draft.CustomerEmail, &changed)
	}
	assign(&order.CustomerLanguage, draft.CustomerLanguage, &changed)

	if draft.OrderType != order.OrderType {
		return changed
	}

	assignText(&order.DeliveryAddress, draft.DeliveryAddress, &changed)
	assignText(&order.City, draft.City, &changed)
	assignText(&order.State, draft.State, &changed)
	assignText(&order.ZipCode, draft.ZipCode, &changed)
	assignText(&order.DeliveryInstructions, draft.DeliveryInstructions, &changed)
	assignText(&order.PickupTime, draft.PickupTime, &changed)
	assignText(&order.SpecialInstructions, draft.SpecialInstructions, &changed)

	if !sameItems(order.Items, draft.Items) {
		order.Items = draft.Items
		changed = true
	}

	assign(&order.Subtotal, draft.Subtotal, &changed)
	assign(&order.Tax, draft.Tax, &changed)
	assign(&order.DeliveryFee, draft.DeliveryFee, &changed)
	assign(&order.Tip, draft.Tip, &changed)
	assign(&order.TotalAmount, draft.TotalAmount, &changed)
	return changed
}

func assign[T comparable](dst *T, v T, changed *bool) {
	if *dst != v {
		*dst = v
		*changed = true
	}
}

func assignText(dst **string, v *string, changed *bool) {
	if models.StringValue(*dst) != models.StringValue(v) {
		*dst = v
		*changed = true
	}
}

func sameItems(a, b models.OrderItems) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// CreateDirect places an order through the API. Delivery addresses are geocoded and the card is
// charged before anything is stored, so the order is persisted already paid.
func (s *OrderService) CreateDirect(ctx context.Context, draft *models.Order) (*models.Order, error) {
	if draft.OrderType == models.OrderTypeDelivery {
		if err := s.checkDeliveryAddress(ctx, draft); err != nil {
			return nil, err
		}
	}

	if err := s.prepare(draft); err != nil {
		return nil, err
	}

	charge, err := s.payments.ProcessPayment(ctx, payment.ChargeRequest{
		Amount:        draft.TotalAmount,
		Currency:      s.currency,
		CustomerEmail: models.StringValue(draft.CustomerEmail),
		CustomerName:  draft.CustomerName,
		Description:   draft.Items.Summary(),
		Metadata:      map[string]string{"customer_phone": draft.CustomerPhone},
	})
	if err != nil {
		s.logger.Error("Payment provider failed", "error", err, "provider", s.payments.Name())
		return nil, err
	}

	if !charge.Success {
		s.logger.Warn("Payment declined", "code", charge.ErrorCode, "amount", draft.TotalAmount)
		return nil, apperrors.NewPaymentDeclinedError(charge.ErrorMessage, charge.ErrorCode)
	}

	method := models.PaymentMethodCard
	draft.PaymentMethod = &method
	draft.PaymentIntentID = models.StringPtr(charge.PaymentIntentID)
	draft.PaymentStatus = models.PaymentStatusPaid
	draft.Status = models.OrderStatusPaid
	draft.HandledByAI = false

	if err := s.insert(ctx, draft); err != nil {
		s.logger.Error("Charged order could not be stored", "error", err, "paymentIntentID", charge.PaymentIntentID)
		s.refund(ctx, charge.PaymentIntentID)
		return nil, err
	}

	s.logger.Info("Order created", "orderID", draft.ID, "total", draft.TotalAmount)
	s.sendConfirmation(ctx, draft)
	return draft, nil
}

func (s *OrderService) refund(ctx context.Context, paymentIntentID string) {
	result, err := s.payments.Refund(ctx, paymentIntentID, nil, "requested_by_customer")
	switch {
	case err != nil:
		s.logger.Error("Refund failed", "error", err, "paymentIntentID", paymentIntentID)
	case !result.Success:
		s.logger.Error("Refund rejected", "paymentIntentID", paymentIntentID, "message", result.ErrorMessage)
	default:
		s.logger.Info("Charge refunded", "paymentIntentID", paymentIntentID, "refundID", result.RefundID)
	}
}

func (s *OrderService) checkDeliveryAddress(ctx context.Context, draft *models.Order) error {
	result, err := s.geo.ValidateAddress(ctx, geo.AddressQuery{
		Address: models.StringValue(draft.DeliveryAddress),
		City:    models.StringValue(draft.City),
		State:   models.StringValue(draft.State),
		ZipCode: models.StringValue(draft.ZipCode),
	})
	if err != nil {
		s.logger.Error("Address validation failed", "error", err, "provider", s.geo.Name())
		return apperrors.NewServiceUnavailableError("Address validation is temporarily unavailable")
	}

	if !result.Deliverable() {
		message := result.ErrorMessage
		if message == "" {
			message = "Address is outside the delivery area"
		}
		return apperrors.NewInvalidInputError(message).WithCode(result.ErrorCode)
	}

	if result.FormattedAddress != "" {
		draft.DeliveryAddress = models.StringPtr(result.FormattedAddress)
	}
	if result.ZipCode != "" {
		draft.ZipCode = models.StringPtr(result.ZipCode)
	}
	return nil
}

func (s *OrderService) sendConfirmation(ctx context.Context, order *models.Order) {
	if s.notifier == nil {
		return
	}

	conf := notification.Confirmation{
		OrderID:    order.ID,
		Name:       order.CustomerName,
		Phone:      order.CustomerPhone,
		Email:      models.StringValue(order.CustomerEmail),
		Type:       order.OrderType,
		Address:    models.StringValue(order.DeliveryAddress),
		PickupTime: models.StringValue(order.PickupTime),
		Total:      order.TotalAmount,
	}

	result, err := s.notifier.SendOrderConfirmation(ctx, conf)
	switch {
	case err != nil:
		s.logger.Error("Failed to send order confirmation", "error", err, "orderID", order.ID)
	case !result.Success:
		s.logger.Warn("Order confirmation not delivered", "orderID", order.ID, "code", result.ErrorCode)
	default:
		s.logger.Debug("Order confirmation sent", "orderID", order.ID, "provider", result.Provider)
	}
}

// RecordPaymentLink remembers the checkout page sent to the caller
func (s *OrderService) RecordPaymentLink(ctx context.Context, orderID int64, url string) error {
	order, err := s.GetByID(ctx, orderID)
	if err != nil {
		return err
	}

	order.PaymentLinkURL = models.StringPtr(url)
	order.PaymentLinkSent = true
	order.UpdatedAt = s.now()

	return s.orderRepo.Update(ctx, order)
}

// TransferCall hands the call to staff. The active order, if any, moves to transferred_to_human;
// an order-less call gets a call log with that outcome.
func (s *OrderService) TransferCall(ctx context.Context, callID, reason string) error {
	order, err := s.orderRepo.GetActiveByCallID(ctx, callID)
	if errors.Is(err, repository.ErrNotFound) {
		log := models.NewCallLog(callID, "", "", models.CallOutcomeTransferredToHuman)
		log.TransferredToHuman = true
		log.TransferReason = models.StringPtr(reason)
		return s.saveCallLog(ctx, log)
	}
	if err != nil {
		return err
	}

	if order.Status == models.OrderStatusTransferredToHuman {
		return nil
	}

	if err := order.ApplyStatus(models.OrderStatusTransferredToHuman, s.now()); err != nil {
		return apperrors.NewConflictError(err.Error())
	}
	order.TransferReason = models.StringPtr(reason)

	if err := s.orderRepo.Update(ctx, order); err != nil {
		return err
	}

	s.logger.Info("Call transferred to human", "orderID", order.ID, "callID", callID, "reason", reason)
	return nil
}

// RecordCallEnd attaches the end-of-call report to whatever the call produced
func (s *OrderService) RecordCallEnd(ctx context.Context, report models.CallReport) error {
	details := repository.CallDetails{
		Transcript:      report.Transcript,
		RecordingURL:    report.RecordingURL,
		DurationSeconds: report.DurationSeconds,
	}
	if !report.EndedAt.IsZero() {
		endedAt := report.EndedAt
		details.EndedAt = &endedAt
	}

	orderMatched, err := s.orderRepo.PatchCallDetails(ctx, report.CallID, details)
	if err != nil {
		return err
	}

	logMatched, err := s.callLogRepo.PatchCallDetails(ctx, report.CallID, details)
	if err != nil {
		return err
	}

	if orderMatched || logMatched {
		s.logger.Debug("Call details recorded", "callID", report.CallID, "order", orderMatched, "callLog", logMatched)
		return nil
	}

	outcome := models.CallOutcomeNoOrder
	if report.CustomerEnded() {
		outcome = models.CallOutcomeCustomerHangup
	}

	log := models.NewCallLog(report.CallID, report.CallerPhone, report.Language, outcome)
	log.Transcription = report.Transcript
	log.RecordingURL = report.RecordingURL
	log.DurationSeconds = report.DurationSeconds
	log.CallEndedAt = details.EndedAt

	return s.saveCallLog(ctx, log)
}

// saveCallLog upserts a call log together with its ledger export job
func (s *OrderService) saveCallLog(ctx context.Context, log *models.CallLog) (err error) {
	tx, err := s.orderRepo.BeginTx(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				s.logger.Error("Failed to rollback transaction", "error", rollbackErr)
			}
		}
	}()

	if err = s.callLogRepo.UpsertInTx(ctx, tx, log); err != nil {
		return err
	}

	msg, err := models.NewCallLogExportEvent(log)
	if err != nil {
		return fmt.Errorf("failed to create outbox message: %w", err)
	}

	if err = s.outboxRepo.CreateInTx(ctx, tx, msg); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		s.logger.Error("Failed to commit transaction", "error", err)
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Info("Call log saved", "callID", log.CallID, "outcome", log.Outcome)
	return nil
}

// GetByID retrieves an order
func (s *OrderService) GetByID(ctx context.Context, id int64) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("Order %d not found", id))
	}
	return order, err
}

// List returns one page of orders and the total matching the filter
func (s *OrderService) List(ctx context.Context, filter repository.OrderFilter) ([]*models.Order, int, error) {
	orders, err := s.orderRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.orderRepo.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// UpdateStatus moves an order along its lifecycle. Illegal transitions are conflicts.
func (s *OrderService) UpdateStatus(ctx context.Context, id int64, to models.OrderStatus) (order *models.Order, err error) {
	tx, err := s.orderRepo.BeginTx(ctx)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				s.logger.Error("Failed to rollback transaction", "error", rollbackErr)
			}
		}
	}()

	order, err = s.orderRepo.GetByIDForUpdate(ctx, tx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("Order %d not found", id))
	}
	if err != nil {
		return nil, err
	}

	from := order.Status
	if err = order.ApplyStatus(to, s.now()); err != nil {
		return nil, apperrors.NewConflictError(fmt.Sprintf("Cannot change order status from %s to %s", from, to))
	}

	if to == models.OrderStatusPaid {
		order.PaymentStatus = models.PaymentStatusPaid
	}

	if err = s.orderRepo.UpdateInTx(ctx, tx, order); err != nil {
		return nil, err
	}

	if to == models.OrderStatusPaid {
		if err = s.queueKitchen(ctx, tx, order.ID); err != nil {
			return nil, err
		}
	}

	if err = tx.Commit(); err != nil {
		s.logger.Error("Failed to commit transaction", "error", err)
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Info("Order status updated", "orderID", id, "from", from, "to", to)
	return order, nil
}

// HandlePaymentEvent applies a verified payment webhook event exactly once
func (s *OrderService) HandlePaymentEvent(ctx context.Context, event *payment.WebhookEvent) (err error) {
	var paid bool

	switch event.Type {
	case models.PaymentEventCheckoutCompleted, models.PaymentEventIntentSucceeded:
		paid = true
	case models.PaymentEventCheckoutExpired, models.PaymentEventIntentFailed:
	default:
		s.logger.Debug("Ignoring payment event", "type", event.Type, "eventID", event.ID)
		return nil
	}

	orderID, ok := event.OrderID()
	if !ok {
		s.logger.Warn("Payment event without order reference", "type", event.Type, "eventID", event.ID)
		return nil
	}

	tx, err := s.orderRepo.BeginTx(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				s.logger.Error("Failed to rollback transaction", "error", rollbackErr)
			}
		}
	}()

	now := s.now()
	inserted, err := s.paymentEventRepo.InsertInTx(ctx, tx, &models.PaymentEvent{
		EventID:     event.ID,
		EventType:   event.Type,
		OrderID:     &orderID,
		ProcessedAt: now,
	})
	if err != nil {
		return err
	}

	updated := false
	if inserted {
		if paid {
			updated, err = s.orderRepo.MarkPaidInTx(ctx, tx, orderID, event.PaymentIntentID(), now)
			if err != nil {
				return err
			}
			if updated {
				if err = s.queueKitchen(ctx, tx, orderID); err != nil {
					return err
				}
			}
		} else {
			updated, err = s.orderRepo.MarkPaymentFailedInTx(ctx, tx, orderID, now)
			if err != nil {
				return err
			}
		}
	}

	if err = tx.Commit(); err != nil {
		s.logger.Error("Failed to commit transaction", "error", err)
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Info("Payment event processed",
		"eventID", event.ID,
		"type", event.Type,
		"orderID", orderID,
		"replay", !inserted,
		"updated", updated,
	)
	return nil
}

// Dashboard is the stats endpoint payload
type Dashboard struct {
	*models.OrderStats
	SuccessRate  float64         `json:"success_rate"`
	RecentOrders []*models.Order `json:"recent_orders"`
}

// Stats summarizes orders; revenue counts from the start of the current UTC day
func (s *OrderService) Stats(ctx context.Context) (*Dashboard, error) {
	now := s.now().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	stats, err := s.orderRepo.Stats(ctx, dayStart)
	if err != nil {
		return nil, err
	}

	recent, err := s.orderRepo.List(ctx, repository.OrderFilter{Limit: 10})
	if err != nil {
		return nil, err
	}

	return &Dashboard{
		OrderStats:   stats,
		SuccessRate:  stats.SuccessRate(),
		RecentOrders: recent,
	}, nil
}
