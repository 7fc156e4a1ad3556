package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"time"

	"github.com/vaidashi/phone-order-api/internal/models"
)

// Voice platform event types
const (
	EventFunctionCall     = "function-call"
	EventToolCalls        = "tool-calls"
	EventEndOfCallReport  = "end-of-call-report"
	EventStatusUpdate     = "status-update"
	EventTransferRequest  = "transfer-request"
	EventAssistantRequest = "assistant-request"
)

// ErrorMessage is spoken when a function call fails for reasons the caller cannot fix
const ErrorMessage = "Sorry, there was an error processing your request."

// ErrInvalidPayload is returned for bodies that are not a voice platform event
var ErrInvalidPayload = errors.New("invalid payload format")

// Event is one webhook delivery from the voice platform
type Event struct {
	Type             string        `json:"type"`
	FunctionCall     *FunctionCall `json:"functionCall,omitempty"`
	ToolCalls        []ToolCall    `json:"toolCalls,omitempty"`
	Call             *CallInfo     `json:"call,omitempty"`
	Transcript       string        `json:"transcript,omitempty"`
	RecordingURL     string        `json:"recordingUrl,omitempty"`
	DurationSeconds  *float64      `json:"durationSeconds,omitempty"`
	EndedReason      string        `json:"endedReason,omitempty"`
	Status           string        `json:"status,omitempty"`
	DetectedLanguage string        `json:"detected_language,omitempty"`
}

// FunctionCall names a dialogue function and its arguments
type FunctionCall struct {
	Name       string `json:"name"`
	Parameters Params `json:"parameters"`
}

// ToolCall is the newer function call shape; arguments may be a JSON string or object
type ToolCall struct {
	ID       string `json:"id"`
	Function struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	} `json:"function"`
}

// CallInfo identifies the phone call
type CallInfo struct {
	ID          string    `json:"id"`
	Customer    *Customer `json:"customer,omitempty"`
	EndedReason string    `json:"endedReason,omitempty"`
}

// Customer is the caller as known to the telephony provider
type Customer struct {
	Number string `json:"number,omitempty"`
	Name   string `json:"name,omitempty"`
}

// ParseEvent decodes {"message": {...}} envelopes as well as bare events
func ParseEvent(body []byte) (*Event, error) {
	var envelope struct {
		Message *Event `json:"message"`
	}

	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, ErrInvalidPayload
	}

	ev := envelope.Message
	if ev == nil || ev.Type == "" {
		ev = &Event{}
		if err := json.Unmarshal(body, ev); err != nil {
			return nil, ErrInvalidPayload
		}
	}

	if ev.Type == "" {
		return nil, ErrInvalidPayload
	}

	if ev.FunctionCall == nil && len(ev.ToolCalls) > 0 {
		fc, err := ev.ToolCalls[0].asFunctionCall()
		if err != nil {
			return nil, ErrInvalidPayload
		}
		ev.FunctionCall = fc
	}
	return ev, nil
}

func (t ToolCall) asFunctionCall() (*FunctionCall, error) {
	params := Params{}
	args := t.Function.Arguments

	if len(args) > 0 && args[0] == '"' {
		var encoded string
		if err := json.Unmarshal(args, &encoded); err != nil {
			return nil, err
		}
		args = json.RawMessage(encoded)
	}

	if len(args) > 0 && string(args) != "null" {
		if err := json.Unmarshal(args, &params); err != nil {
			return nil, err
		}
	}
	return &FunctionCall{Name: t.Function.Name, Parameters: params}, nil
}

// call returns the conversation view of the event's call
func (e *Event) call() Call {
	c := Call{Language: e.DetectedLanguage}
	if e.Call == nil {
		return c
	}

	c.ID = e.Call.ID
	if e.Call.Customer != nil {
		c.CustomerNumber = e.Call.Customer.Number
		c.CustomerName = e.Call.Customer.Name
	}
	return c
}

func (e *Event) report(endedAt time.Time) models.CallReport {
	c := e.call()

	r := models.CallReport{
		CallID:       c.ID,
		CallerPhone:  c.CustomerNumber,
		Language:     c.Language,
		Transcript:   models.StringPtr(e.Transcript),
		RecordingURL: models.StringPtr(e.RecordingURL),
		EndedReason:  e.EndedReason,
		EndedAt:      endedAt,
	}
	if r.EndedReason == "" && e.Call != nil {
		r.EndedReason = e.Call.EndedReason
	}
	if e.DurationSeconds != nil {
		d := int(math.Round(*e.DurationSeconds))
		r.DurationSeconds = &d
	}
	return r
}

// Reply is the body returned to the voice platform
type Reply map[string]interface{}

func acknowledged() Reply {
	return Reply{"status": "acknowledged"}
}

// HandleEvent routes one webhook delivery. It never fails: system errors become a spoken apology.
func (m *Machine) HandleEvent(ctx context.Context, ev *Event) Reply {
	call := ev.call()

	switch ev.Type {
	case EventFunctionCall, EventToolCalls:
		if ev.FunctionCall == nil {
			return Reply{"result": reject(ErrorMessage, "")}
		}

		res, err := m.Handle(ctx, call, ev.FunctionCall.Name, ev.FunctionCall.Parameters)
		if err != nil {
			m.logger.Error("Voice function failed", "error", err, "function", ev.FunctionCall.Name, "callID", call.ID)
			return Reply{"result": reject(ErrorMessage, "")}
		}
		return Reply{"result": res}

	case EventEndOfCallReport:
		if call.ID == "" {
			return acknowledged()
		}
		if err := m.orders.RecordCallEnd(ctx, ev.report(m.now().UTC())); err != nil {
			m.logger.Error("Failed to record end of call", "error", err, "callID", call.ID)
		}
		return acknowledged()

	case EventStatusUpdate:
		m.logger.Info("Call status update", "callID", call.ID, "status", ev.Status)
		return acknowledged()

	case EventTransferRequest:
		if call.ID != "" {
			if err := m.orders.TransferCall(ctx, call.ID, "AI requested transfer"); err != nil {
				m.logger.Error("Failed to mark call transferred", "error", err, "callID", call.ID)
			}
		}
		return Reply{"transfer": true, "transfer_number": m.settings.HumanTransferNumber}

	case EventAssistantRequest:
		return Reply{"firstMessage": Greeting(call.Language, m.settings.Restaurant)}
	}

	m.logger.Debug("Unhandled voice event", "type", ev.Type, "callID", call.ID)
	return acknowledged()
}
