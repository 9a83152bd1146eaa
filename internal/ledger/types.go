// internal/ledger/types.go
package ledger

import (
	"context"
	"time"
)

// Transaction is a candidate inbound transfer observed on the ledger.
// Produced by the scanner, consumed once by the payment matcher.
type Transaction struct {
	Hash      string
	Amount    float64 // SOL
	Sender    string
	Memo      string
	BlockTime time.Time
}

// Scanner pulls recent inbound transfers for the receiving address.
type Scanner interface {
	RecentIncoming(ctx context.Context, limit int) ([]Transaction, error)
}
