package models

import (
	"strings"
	"time"
)

// CallOutcome records how an inbound call ended
type CallOutcome string

const (
	CallOutcomeOrderCompleted     CallOutcome = "order_completed"
	CallOutcomeOrderCancelled     CallOutcome = "order_cancelled"
	CallOutcomeTransferredToHuman CallOutcome = "transferred_to_human"
	CallOutcomeCustomerHangup     CallOutcome = "customer_hangup"
	CallOutcomeAIFailed           CallOutcome = "ai_failed"
	CallOutcomeNoOrder            CallOutcome = "no_order"
)

// CallLog records an inbound call. Unique on CallID. OrderID is set once the call produces an order.
type CallLog struct {
	ID                 int64       `db:"id" json:"id"`
	CallID             string      `db:"call_id" json:"call_id"`
	CallerPhone        string      `db:"caller_phone" json:"caller_phone"`
	CallerLanguage     string      `db:"caller_language" json:"caller_language"`
	CallStartedAt      time.Time   `db:"call_started_at" json:"call_started_at"`
	CallEndedAt        *time.Time  `db:"call_ended_at" json:"call_ended_at,omitempty"`
	DurationSeconds    *int        `db:"duration_seconds" json:"duration_seconds,omitempty"`
	RecordingURL       *string     `db:"recording_url" json:"recording_url,omitempty"`
	Transcription      *string     `db:"transcription" json:"transcription,omitempty"`
	WantedToOrder      bool        `db:"wanted_to_order" json:"wanted_to_order"`
	OrderID            *int64      `db:"order_id" json:"order_id,omitempty"`
	Outcome            CallOutcome `db:"outcome" json:"outcome"`
	HandledByAI        bool        `db:"handled_by_ai" json:"handled_by_ai"`
	TransferredToHuman bool        `db:"transferred_to_human" json:"transferred_to_human"`
	TransferReason     *string     `db:"transfer_reason" json:"transfer_reason,omitempty"`
	CustomerMessage    *string     `db:"customer_message" json:"customer_message,omitempty"`
	ExportedToLedger   bool        `db:"exported_to_ledger" json:"exported_to_ledger"`
	CreatedAt          time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time   `db:"updated_at" json:"updated_at"`
}

// NewCallLog creates a call log for a call that has not produced an order
func NewCallLog(callID, callerPhone, language string, outcome CallOutcome) *CallLog {
	now := GetCurrentTime()

	if language == "" {
		language = "en"
	}
	if callerPhone == "" {
		callerPhone = "unknown"
	}

	return &CallLog{
		CallID:         callID,
		CallerPhone:    callerPhone,
		CallerLanguage: language,
		CallStartedAt:  now,
		Outcome:        outcome,
		HandledByAI:    true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// CallReport is the end-of-call data reported by the voice platform
type CallReport struct {
	CallID          string
	CallerPhone     string
	Language        string
	Transcript      *string
	RecordingURL    *string
	DurationSeconds *int
	EndedReason     string
	EndedAt         time.Time
}

// CustomerEnded reports whether the caller hung up
func (r CallReport) CustomerEnded() bool {
	return strings.Contains(strings.ToLower(r.EndedReason), "customer")
}
