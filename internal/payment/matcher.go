// internal/payment/matcher.go
package payment

import (
	"math"
	"time"

	"github.com/adwave/ads-bot/internal/ledger"
	"github.com/adwave/ads-bot/internal/storage/models"
	"github.com/adwave/ads-bot/internal/wallet"
	"go.uber.org/zap"
)

// MatchOutcome is the verdict of testing one ledger transaction against
// one expected payment.
type MatchOutcome int

const (
	// MatchNone: the transaction is unrelated to this request.
	MatchNone MatchOutcome = iota
	// MatchConfirmed: every gate passed; the transaction settles the request.
	MatchConfirmed
	// MatchAmountMismatch: right memo, wrong amount. Suspicious but not
	// terminal; scanning continues.
	MatchAmountMismatch
	// MatchWalletMismatch: right memo and amount from the wrong wallet.
	// Hard security failure; must never confirm.
	MatchWalletMismatch
	// MatchStale: the transaction is older than the lookback window.
	MatchStale
)

// amountEpsilon absorbs float64 representation error in the amount
// comparison so a transfer exactly at the tolerance boundary still
// confirms. Amounts arrive as lamport-derived floats; 1e-9 SOL is one
// lamport, well below any tolerance the config accepts.
const amountEpsilon = 1e-9

// Matcher decides whether a candidate transaction legitimately settles
// an expected (memo, amount, payer wallet) tuple. Every gate is hard:
// a failed gate can never be overridden by a later one.
type Matcher struct {
	amountTolerance float64
	lookback        time.Duration
	logger          *zap.Logger
}

func NewMatcher(amountTolerance float64, lookback time.Duration, logger *zap.Logger) *Matcher {
	return &Matcher{
		amountTolerance: amountTolerance,
		lookback:        lookback,
		logger:          logger.Named("matcher"),
	}
}

// Match runs the staged gates: memo, amount, wallet, recency.
func (m *Matcher) Match(req *models.PaymentRequest, tx ledger.Transaction, now time.Time) MatchOutcome {
	if !MemosEqual(tx.Memo, req.Memo) {
		return MatchNone
	}

	if math.Abs(tx.Amount-req.Amount) > m.amountTolerance+amountEpsilon {
		m.logger.Warn("Suspicious transaction: memo matches but amount does not",
			zap.String("payment_id", req.PaymentID),
			zap.String("tx_hash", tx.Hash),
			zap.Float64("expected", req.Amount),
			zap.Float64("received", tx.Amount))
		return MatchAmountMismatch
	}

	if !wallet.Equal(tx.Sender, req.PayerWallet) {
		m.logger.Error("Wallet ownership gate failed",
			zap.String("payment_id", req.PaymentID),
			zap.String("tx_hash", tx.Hash),
			zap.String("expected_wallet", req.PayerWallet),
			zap.String("observed_wallet", tx.Sender))
		return MatchWalletMismatch
	}

	if now.Sub(tx.BlockTime) > m.lookback {
		return MatchStale
	}

	return MatchConfirmed
}
