// internal/events/types.go
package events

import (
	"time"
)

// EventType represents the type of event.
type EventType string

const (
	// Payment lifecycle
	PaymentConfirmed EventType = "payment.confirmed"
	PaymentTimedOut  EventType = "payment.timed_out"
	FraudDetected    EventType = "payment.fraud_detected"

	// Campaign lifecycle
	CampaignCreated   EventType = "campaign.created"
	CampaignCompleted EventType = "campaign.completed"

	// Publishing
	JobPublished EventType = "job.published"
	JobFailed    EventType = "job.failed"
)

// Event is the base interface for all events.
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common fields for all events.
type BaseEvent struct {
	EventType EventType
	EventTime time.Time
}

// Type returns the event type.
func (e BaseEvent) Type() EventType {
	return e.EventType
}

// Timestamp returns when the event occurred.
func (e BaseEvent) Timestamp() time.Time {
	return e.EventTime
}

// PaymentConfirmedEvent is emitted when a ledger transaction settles a
// payment request.
type PaymentConfirmedEvent struct {
	BaseEvent
	PaymentID string
	UserID    int64
	Amount    float64
	TxHash    string
}

// PaymentTimedOutEvent is emitted when a payment request expires with no
// matching transaction.
type PaymentTimedOutEvent struct {
	BaseEvent
	PaymentID string
	UserID    int64
}

// FraudDetectedEvent is emitted when a transaction matches memo and
// amount but fails the wallet ownership gate.
type FraudDetectedEvent struct {
	BaseEvent
	PaymentID      string
	TxHash         string
	ExpectedWallet string
	ObservedWallet string
	RiskLevel      string
}

// CampaignCreatedEvent is emitted once per confirmed payment.
type CampaignCreatedEvent struct {
	BaseEvent
	CampaignID int64
	PaymentID  string
	UserID     int64
	TotalJobs  int
}

// CampaignCompletedEvent is emitted when every job reached a terminal
// status. SuccessRate is published/total in percent.
type CampaignCompletedEvent struct {
	BaseEvent
	CampaignID  int64
	UserID      int64
	Published   int
	Failed      int
	SuccessRate float64
}

// JobPublishedEvent is emitted after a successful channel delivery.
type JobPublishedEvent struct {
	BaseEvent
	JobID      int64
	CampaignID int64
	ChannelID  int64
	MessageID  int64
	Integrity  string
}

// JobFailedEvent is emitted when a channel delivery fails terminally.
type JobFailedEvent struct {
	BaseEvent
	JobID      int64
	CampaignID int64
	ChannelID  int64
	Error      string
}
