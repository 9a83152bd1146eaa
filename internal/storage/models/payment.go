// internal/storage/models/payment.go
package models

import "time"

const (
	PaymentStatusPending      = "pending"
	PaymentStatusConfirmed    = "confirmed"
	PaymentStatusExpired      = "expired"
	PaymentStatusFraudBlocked = "fraud_blocked"
)

// PaymentRequest is an expected inbound transfer. Owned by the payment
// monitor until it reaches a terminal status.
type PaymentRequest struct {
	PaymentID   string    `gorm:"primarykey;type:varchar(36)"`
	UserID      int64     `gorm:"index;not null"`
	Memo        string    `gorm:"uniqueIndex;not null;type:varchar(12)"`
	Amount      float64   `gorm:"type:decimal(20,9);not null"`
	Currency    string    `gorm:"not null;type:varchar(10)"`
	PayerWallet string    `gorm:"not null;type:varchar(44)"`
	Status      string    `gorm:"index;not null;type:varchar(20)"`
	TxHash      string    `gorm:"type:varchar(88)"`
	CreatedAt   time.Time `gorm:"default:CURRENT_TIMESTAMP"`
	ExpiresAt   time.Time `gorm:"index;not null"`
}

// Terminal reports whether the request can no longer change status.
func (p *PaymentRequest) Terminal() bool {
	return p.Status != PaymentStatusPending
}

const (
	RiskLevelHigh   = "high"
	RiskLevelMedium = "medium"
)

// FraudEvent is an append-only audit record of a blocked settlement
// attempt. Rows are never updated or deleted.
type FraudEvent struct {
	BaseModel
	TxHash         string `gorm:"not null;type:varchar(88)"`
	ExpectedMemo   string `gorm:"not null;type:varchar(12)"`
	ExpectedWallet string `gorm:"not null;type:varchar(44)"`
	ObservedWallet string `gorm:"type:varchar(44)"`
	RiskLevel      string `gorm:"not null;type:varchar(10)"`
}
