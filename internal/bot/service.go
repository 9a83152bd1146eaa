// internal/bot/service.go
package bot

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/adwave/ads-bot/internal/campaign"
	"github.com/adwave/ads-bot/internal/content"
	"github.com/adwave/ads-bot/internal/ledger"
	"github.com/adwave/ads-bot/internal/locale"
	"github.com/adwave/ads-bot/internal/payment"
	"github.com/adwave/ads-bot/internal/storage"
	"github.com/adwave/ads-bot/internal/storage/models"
	"github.com/adwave/ads-bot/internal/telegram"
)

// Order is everything a user submits before paying: the literal ad
// content and the run parameters.
type Order struct {
	UserID       int64
	Amount       float64
	PayerWallet  string
	Text         string
	MediaRef     string
	ContentType  string
	Channels     []int64
	DurationDays int
	PostsPerDay  int
}

// OrderService drives one order through the pipeline: persist the
// draft, open a payment request, hand the user deposit instructions and
// watch the ledger until the request settles or expires. Settlement
// creates the campaign.
type OrderService struct {
	store      storage.Storage
	payments   *payment.Service
	monitor    *payment.Monitor
	campaigns  *campaign.Service
	messenger  telegram.Messenger
	localizer  locale.Localizer
	languages  *locale.LanguageResolver
	paymentTTL time.Duration
	logger     *zap.Logger
}

type OrderServiceConfig struct {
	Store      storage.Storage
	Payments   *payment.Service
	Monitor    *payment.Monitor
	Campaigns  *campaign.Service
	Messenger  telegram.Messenger
	Localizer  locale.Localizer
	Languages  *locale.LanguageResolver
	PaymentTTL time.Duration
	Logger     *zap.Logger
}

func NewOrderService(cfg *OrderServiceConfig) *OrderService {
	return &OrderService{
		store:      cfg.Store,
		payments:   cfg.Payments,
		monitor:    cfg.Monitor,
		campaigns:  cfg.Campaigns,
		messenger:  cfg.Messenger,
		localizer:  cfg.Localizer,
		languages:  cfg.Languages,
		paymentTTL: cfg.PaymentTTL,
		logger:     cfg.Logger.Named("orders"),
	}
}

// PlaceOrder validates the order, persists the content draft, opens a
// payment request and starts ledger monitoring. The returned request
// carries the memo the user must attach to their transfer.
func (s *OrderService) PlaceOrder(ctx context.Context, order Order) (*models.PaymentRequest, error) {
	post := content.Post{
		Text:        order.Text,
		MediaRef:    order.MediaRef,
		ContentType: content.Type(order.ContentType),
	}
	if err := content.Validate(post); err != nil {
		return nil, fmt.Errorf("order content: %w", err)
	}
	if order.DurationDays <= 0 || order.PostsPerDay <= 0 || len(order.Channels) == 0 {
		return nil, fmt.Errorf("order schedule parameters are incomplete")
	}

	req, err := s.payments.CreatePaymentRequest(ctx, order.UserID, order.Amount, order.PayerWallet, s.paymentTTL)
	if err != nil {
		return nil, err
	}

	draft := &models.ContentDraft{
		PaymentID:    req.PaymentID,
		UserID:       order.UserID,
		Text:         order.Text,
		MediaRef:     order.MediaRef,
		ContentType:  order.ContentType,
		Channels:     order.Channels,
		DurationDays: order.DurationDays,
		PostsPerDay:  order.PostsPerDay,
	}
	if err := s.store.SaveContentDraft(ctx, draft); err != nil {
		return nil, fmt.Errorf("save content draft: %w", err)
	}

	if err := s.sendInstructions(ctx, req); err != nil {
		// The request stands; the memo is also returned to the caller.
		s.logger.Warn("Failed to deliver deposit instructions",
			zap.String("payment_id", req.PaymentID),
			zap.Error(err))
	}

	if err := s.monitor.Start(ctx, req, s.onPaymentConfirmed, s.onPaymentFailed); err != nil {
		return nil, fmt.Errorf("start payment monitoring: %w", err)
	}

	s.logger.Info("Order placed",
		zap.Int64("user_id", order.UserID),
		zap.String("payment_id", req.PaymentID),
		zap.String("memo", req.Memo),
		zap.Float64("amount", order.Amount))

	return req, nil
}

func (s *OrderService) sendInstructions(ctx context.Context, req *models.PaymentRequest) error {
	instructions, err := s.payments.DepositInstructions(req)
	if err != nil {
		return err
	}

	lang := s.languages.Resolve(ctx, req.UserID)
	caption := s.localizer.Get(lang, "payment_instructions", map[string]string{
		"amount":  fmt.Sprintf("%.4f", instructions.Amount),
		"address": instructions.Address,
		"memo":    instructions.Memo,
		"ttl":     strconv.Itoa(int(s.paymentTTL.Minutes())),
	})

	_, err = s.messenger.SendPhotoUpload(ctx, req.UserID, instructions.QRPNG, caption)
	return err
}

func (s *OrderService) onPaymentConfirmed(ctx context.Context, req *models.PaymentRequest, tx *ledger.Transaction) {
	logger := s.logger.With(
		zap.String("payment_id", req.PaymentID),
		zap.String("tx_hash", tx.Hash))

	camp, err := s.campaigns.Create(ctx, req)
	if err != nil {
		logger.Error("Payment confirmed but campaign creation failed", zap.Error(err))
		return
	}

	lang := s.languages.Resolve(ctx, req.UserID)
	text := s.localizer.Get(lang, "payment_confirmed", map[string]string{
		"campaign_id": strconv.FormatInt(camp.CampaignID, 10),
		"total_jobs":  strconv.Itoa(camp.TotalPosts()),
	})
	if _, err := s.messenger.SendText(ctx, req.UserID, text); err != nil {
		logger.Warn("Failed to deliver confirmation message", zap.Error(err))
	}
}

func (s *OrderService) onPaymentFailed(ctx context.Context, req *models.PaymentRequest, reason string) {
	s.logger.Info("Payment request closed without settlement",
		zap.String("payment_id", req.PaymentID),
		zap.String("reason", reason))

	if reason != payment.FailureTimeout {
		// Fraud blocks are routed to the operator, not the payer.
		return
	}

	lang := s.languages.Resolve(ctx, req.UserID)
	text := s.localizer.Get(lang, "payment_timed_out", map[string]string{
		"memo": req.Memo,
	})
	if _, err := s.messenger.SendText(ctx, req.UserID, text); err != nil {
		s.logger.Warn("Failed to deliver timeout message",
			zap.String("payment_id", req.PaymentID),
			zap.Error(err))
	}
}
