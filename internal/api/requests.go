package api

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator"

	"github.com/vaidashi/phone-order-api/internal/models"
)

var (
	validate   = newValidator()
	zipPattern = regexp.MustCompile(`^\d{5}(-\d{4})?$`)
	nonDigits  = regexp.MustCompile(`\D`)
)

func newValidator() *validator.Validate {
	v := validator.New()

	// report json names instead of Go field names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("zipcode", func(fl validator.FieldLevel) bool {
		return zipPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return len(nonDigits.ReplaceAllString(fl.Field().String(), "")) >= 10
	})

	v.RegisterStructValidation(fulfillmentValidation, CreateOrderRequest{})
	return v
}

// fulfillmentValidation requires an address and zip code for delivery orders
func fulfillmentValidation(sl validator.StructLevel) {
	req := sl.Current().Interface().(CreateOrderRequest)

	if req.OrderType == string(models.OrderTypeDelivery) {
		if req.DeliveryAddress == "" {
			sl.ReportError(req.DeliveryAddress, "delivery_address", "DeliveryAddress", "required_for_delivery", "")
		}
		if req.ZipCode == "" {
			sl.ReportError(req.ZipCode, "zip_code", "ZipCode", "required_for_delivery", "")
		}
	}
}

// validationMessage turns validator errors into "field: rule" pairs
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}
		parts = append(parts, fmt.Sprintf("%s: %s", field, fe.Tag()))
	}
	return "Invalid fields: " + strings.Join(parts, ", ")
}

// OrderItemRequest is one line of a direct order
type OrderItemRequest struct {
	Name            string  `json:"name" validate:"required,min=1,max=100"`
	Quantity        int     `json:"quantity" validate:"required,min=1,max=99"`
	UnitPrice       float64 `json:"unit_price" validate:"required,gt=0"`
	SpecialRequests string  `json:"special_requests" validate:"max=200"`
}

// CreateOrderRequest is the body of POST /api/v1/orders
type CreateOrderRequest struct {
	OrderType string `json:"order_type" validate:"omitempty,oneof=pickup delivery"`

	CustomerName     string `json:"customer_name" validate:"required,min=2,max=100"`
	CustomerPhone    string `json:"customer_phone" validate:"required,min=10,max=20,phone"`
	CustomerEmail    string `json:"customer_email" validate:"omitempty,email"`
	CustomerLanguage string `json:"customer_language" validate:"omitempty,max=10"`

	DeliveryAddress      string `json:"delivery_address" validate:"max=255"`
	City                 string `json:"city" validate:"max=50"`
	State                string `json:"state" validate:"max=50"`
	ZipCode              string `json:"zip_code" validate:"omitempty,zipcode"`
	DeliveryInstructions string `json:"delivery_instructions" validate:"max=500"`
	PickupTime           string `json:"pickup_time" validate:"max=50"`

	Items               []OrderItemRequest `json:"items" validate:"required,min=1,dive"`
	SpecialInstructions string             `json:"special_instructions" validate:"max=500"`
	Tip                 float64            `json:"tip" validate:"gte=0"`

	CallID            string `json:"call_id" validate:"max=100"`
	CallTranscription string `json:"call_transcription"`
	CallRecordingURL  string `json:"call_recording_url" validate:"omitempty,url"`
}

// Validate applies defaults, then checks the field rules
func (r *CreateOrderRequest) Validate() error {
	if r.OrderType == "" {
		r.OrderType = string(models.OrderTypeDelivery)
	}
	r.OrderType = strings.ToLower(r.OrderType)

	if err := validate.Struct(r); err != nil {
		return errors.New(validationMessage(err))
	}
	return nil
}

// Draft converts the request into an unsaved order. Totals are computed by the service.
func (r *CreateOrderRequest) Draft() *models.Order {
	items := make(models.OrderItems, len(r.Items))
	for i, it := range r.Items {
		items[i] = models.OrderItem{
			Name:                it.Name,
			Quantity:            it.Quantity,
			UnitPrice:           models.NewMoney(it.UnitPrice),
			SpecialInstructions: it.SpecialRequests,
		}
	}

	o := models.NewOrder(models.OrderType(r.OrderType), r.CustomerName, r.CustomerPhone, items)
	if r.CustomerLanguage != "" {
		o.CustomerLanguage = r.CustomerLanguage
	}
	o.CustomerEmail = models.StringPtr(r.CustomerEmail)
	o.SpecialInstructions = models.StringPtr(r.SpecialInstructions)
	o.Tip = models.NewMoney(r.Tip)

	o.CallID = models.StringPtr(r.CallID)
	o.CallTranscription = models.StringPtr(r.CallTranscription)
	o.CallRecordingURL = models.StringPtr(r.CallRecordingURL)

	if o.OrderType == models.OrderTypeDelivery {
		o.DeliveryAddress = models.StringPtr(r.DeliveryAddress)
		o.City = models.StringPtr(r.City)
		o.State = models.StringPtr(r.State)
		o.ZipCode = models.StringPtr(r.ZipCode)
		o.DeliveryInstructions = models.StringPtr(r.DeliveryInstructions)
	} else {
		pickup := r.PickupTime
		if pickup == "" {
			pickup = models.DefaultPickupTime
		}
		o.PickupTime = models.StringPtr(pickup)
	}
	return o
}

// UpdateStatusRequest is the body of PATCH /api/v1/orders/{id}/status
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// DiscardRequest is the body of POST /api/v1/dlq/{id}/discard
type DiscardRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}
