// internal/notify/notify.go
package notify

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/adwave/ads-bot/internal/campaign"
	"github.com/adwave/ads-bot/internal/locale"
	"github.com/adwave/ads-bot/internal/storage/models"
	"github.com/adwave/ads-bot/internal/telegram"
)

// Notifier delivers out-of-band messages: fraud alerts to the operator
// chat and completion summaries to campaign owners. Delivery failures
// are logged and swallowed; notifications never fail the pipeline that
// triggered them.
type Notifier struct {
	messenger      telegram.Messenger
	localizer      locale.Localizer
	languages      *locale.LanguageResolver
	operatorChatID int64
	logger         *zap.Logger
}

func New(messenger telegram.Messenger, localizer locale.Localizer, languages *locale.LanguageResolver, operatorChatID int64, logger *zap.Logger) *Notifier {
	return &Notifier{
		messenger:      messenger,
		localizer:      localizer,
		languages:      languages,
		operatorChatID: operatorChatID,
		logger:         logger.Named("notify"),
	}
}

// FraudAlert pushes a high-risk settlement block to the operator chat.
// Operator alerts are not localized.
func (n *Notifier) FraudAlert(ctx context.Context, req *models.PaymentRequest, ev *models.FraudEvent) {
	if n.operatorChatID == 0 {
		return
	}

	text := fmt.Sprintf(
		"Fraud block: payment %s\nmemo %s, amount %.4f %s\nexpected wallet %s\nobserved wallet %s\ntx %s",
		req.PaymentID, req.Memo, req.Amount, req.Currency,
		ev.ExpectedWallet, ev.ObservedWallet, ev.TxHash)

	if _, err := n.messenger.SendText(ctx, n.operatorChatID, text); err != nil {
		n.logger.Error("Failed to deliver fraud alert",
			zap.String("payment_id", req.PaymentID),
			zap.Error(err))
	}
}

// PostPublished confirms one channel delivery to the campaign owner.
func (n *Notifier) PostPublished(ctx context.Context, userID, campaignID, channelID int64) {
	lang := n.languages.Resolve(ctx, userID)

	text := n.localizer.Get(lang, "post_published", map[string]string{
		"campaign_id": strconv.FormatInt(campaignID, 10),
		"channel_id":  strconv.FormatInt(channelID, 10),
	})

	if _, err := n.messenger.SendText(ctx, userID, text); err != nil {
		n.logger.Warn("Failed to deliver publish confirmation",
			zap.Int64("user_id", userID),
			zap.Int64("campaign_id", campaignID),
			zap.Error(err))
	}
}

// CampaignFinished tells the owner their run reached a terminal status,
// in the owner's language.
func (n *Notifier) CampaignFinished(ctx context.Context, userID int64, report *campaign.Report) {
	lang := n.languages.Resolve(ctx, userID)

	key := "campaign_completed"
	if report.Status == models.CampaignStatusFailed {
		key = "campaign_failed"
	}

	text := n.localizer.Get(lang, key, map[string]string{
		"campaign_id":  strconv.FormatInt(report.CampaignID, 10),
		"published":    strconv.Itoa(report.Published),
		"failed":       strconv.Itoa(report.Failed),
		"total":        strconv.Itoa(report.Total),
		"success_rate": fmt.Sprintf("%.1f", report.SuccessRate),
	})

	if _, err := n.messenger.SendText(ctx, userID, text); err != nil {
		n.logger.Error("Failed to deliver campaign summary",
			zap.Int64("user_id", userID),
			zap.Int64("campaign_id", report.CampaignID),
			zap.Error(err))
	}
}
