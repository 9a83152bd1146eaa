// internal/payment/service.go
package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/adwave/ads-bot/internal/storage"
	"github.com/adwave/ads-bot/internal/storage/models"
	"github.com/adwave/ads-bot/internal/wallet"
	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"
)

const (
	// DefaultTTL is how long a payment request stays open.
	DefaultTTL = 20 * time.Minute

	memoRetryAttempts = 5
	qrImageSize       = 256
)

var (
	ErrInvalidAmount  = errors.New("payment amount must be positive")
	ErrMemoExhausted  = errors.New("could not generate a unique memo")
	ErrInvalidPayerWallet = fmt.Errorf("payer wallet: %w", wallet.ErrInvalidAddress)
)

// Service creates payment requests and renders deposit instructions.
type Service struct {
	store            storage.Storage
	receivingAddress string
	currency         string
	logger           *zap.Logger
}

func NewService(store storage.Storage, receivingAddress string, logger *zap.Logger) *Service {
	return &Service{
		store:            store,
		receivingAddress: receivingAddress,
		currency:         "SOL",
		logger:           logger.Named("payment_service"),
	}
}

// CreatePaymentRequest registers an expected inbound transfer. The memo
// is retried on collision so two requests can never share one: the
// pending check catches open requests cheaply, and the save itself can
// still hit the unique index when the memo belongs to a settled or
// expired request, so a duplicate save re-enters the loop too.
func (s *Service) CreatePaymentRequest(ctx context.Context, userID int64, amount float64, payerWallet string, ttl time.Duration) (*models.PaymentRequest, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	normalizedWallet, err := wallet.Normalize(payerWallet)
	if err != nil {
		return nil, ErrInvalidPayerWallet
	}

	if ttl <= 0 {
		ttl = DefaultTTL
	}

	for attempt := 0; attempt < memoRetryAttempts; attempt++ {
		memo, err := GenerateMemo()
		if err != nil {
			return nil, err
		}

		exists, err := s.store.PendingMemoExists(ctx, memo)
		if err != nil {
			return nil, fmt.Errorf("check memo collision: %w", err)
		}
		if exists {
			s.logger.Debug("Memo collision, retrying", zap.String("memo", memo))
			continue
		}

		now := time.Now().UTC()
		req := &models.PaymentRequest{
			PaymentID:   uuid.New().String(),
			UserID:      userID,
			Memo:        memo,
			Amount:      amount,
			Currency:    s.currency,
			PayerWallet: normalizedWallet,
			Status:      models.PaymentStatusPending,
			CreatedAt:   now,
			ExpiresAt:   now.Add(ttl),
		}

		err = s.store.SavePaymentRequest(ctx, req)
		if errors.Is(err, storage.ErrDuplicate) {
			s.logger.Debug("Memo taken by a finished request, retrying",
				zap.String("memo", memo))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("save payment request: %w", err)
		}

		s.logger.Info("Payment request created",
			zap.String("payment_id", req.PaymentID),
			zap.Int64("user_id", userID),
			zap.String("memo", memo),
			zap.Float64("amount", amount),
			zap.Time("expires_at", req.ExpiresAt))

		return req, nil
	}

	return nil, ErrMemoExhausted
}

// Instructions is everything the user needs to settle a request.
type Instructions struct {
	Address string
	Memo    string
	Amount  float64
	QRPNG   []byte
}

// DepositInstructions renders the receiving address, the exact amount
// and the memo, plus a scannable QR payload of the same.
func (s *Service) DepositInstructions(req *models.PaymentRequest) (*Instructions, error) {
	payload := fmt.Sprintf("solana:%s?amount=%.9f&memo=%s", s.receivingAddress, req.Amount, req.Memo)

	png, err := qrcode.Encode(payload, qrcode.Medium, qrImageSize)
	if err != nil {
		return nil, fmt.Errorf("encode payment QR: %w", err)
	}

	return &Instructions{
		Address: s.receivingAddress,
		Memo:    req.Memo,
		Amount:  req.Amount,
		QRPNG:   png,
	}, nil
}
