// internal/campaign/service.go
package campaign

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/adwave/ads-bot/internal/content"
	"github.com/adwave/ads-bot/internal/events"
	"github.com/adwave/ads-bot/internal/metrics"
	"github.com/adwave/ads-bot/internal/storage"
	"github.com/adwave/ads-bot/internal/storage/models"
)

var (
	// ErrPaymentNotConfirmed rejects campaign creation from any payment
	// that has not settled.
	ErrPaymentNotConfirmed = errors.New("payment is not confirmed")

	// ErrContentMissing means a payment confirmed but no draft is on
	// file. This is a hard failure; a campaign is never created with
	// placeholder content.
	ErrContentMissing = errors.New("no content draft on file for payment")
)

// EventBus is the slice of the bus the service publishes to.
type EventBus interface {
	Publish(event events.Event) error
}

// Service owns the campaign lifecycle: creation from confirmed payments,
// completion detection and failed-job recovery.
type Service struct {
	store   storage.Storage
	bus     EventBus
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

func NewService(store storage.Storage, bus EventBus, m *metrics.Metrics, logger *zap.Logger) *Service {
	return &Service{
		store:   store,
		bus:     bus,
		metrics: m,
		logger:  logger.Named("campaign"),
		now:     time.Now,
	}
}

// Create builds a campaign from a confirmed payment: locates the content
// draft, fingerprints it, derives the publish schedule and persists all
// three in one transaction. Calling it twice for the same payment returns
// the existing campaign without side effects.
func (s *Service) Create(ctx context.Context, payment *models.PaymentRequest) (*models.Campaign, error) {
	if payment == nil {
		return nil, errors.New("nil payment request")
	}
	if payment.Status != models.PaymentStatusConfirmed {
		return nil, fmt.Errorf("%w: payment %s is %s", ErrPaymentNotConfirmed, payment.PaymentID, payment.Status)
	}

	if existing, err := s.store.GetCampaignByPayment(ctx, payment.PaymentID); err == nil {
		s.logger.Info("Campaign already exists for payment",
			zap.String("payment_id", payment.PaymentID),
			zap.Int64("campaign_id", existing.CampaignID))
		return existing, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("lookup campaign by payment: %w", err)
	}

	draft, err := s.store.GetContentDraft(ctx, payment.PaymentID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.logger.Error("Payment confirmed but no content draft found",
				zap.String("payment_id", payment.PaymentID),
				zap.Int64("user_id", payment.UserID))
			return nil, fmt.Errorf("%w: %s", ErrContentMissing, payment.PaymentID)
		}
		return nil, fmt.Errorf("load content draft: %w", err)
	}

	post := content.Post{
		Text:        draft.Text,
		MediaRef:    draft.MediaRef,
		ContentType: content.Type(draft.ContentType),
	}
	if err := content.Validate(post); err != nil {
		return nil, fmt.Errorf("draft for payment %s: %w", payment.PaymentID, err)
	}
	hash := content.Fingerprint(post)

	now := s.now().UTC()
	camp := &models.Campaign{
		UserID:       payment.UserID,
		PaymentID:    payment.PaymentID,
		ContentRef:   hash,
		Channels:     draft.Channels,
		DurationDays: draft.DurationDays,
		PostsPerDay:  draft.PostsPerDay,
		Status:       models.CampaignStatusActive,
		CreatedAt:    now,
	}

	jobs := BuildJobs(draft.Channels, draft.DurationDays, draft.PostsPerDay, now)
	if len(jobs) == 0 {
		return nil, fmt.Errorf("draft for payment %s produces an empty schedule", payment.PaymentID)
	}

	fp := &models.ContentFingerprint{
		ContentHash: hash,
		Text:        draft.Text,
		MediaRef:    draft.MediaRef,
		ContentType: draft.ContentType,
		CreatedAt:   now,
	}

	if err := s.store.CreateCampaign(ctx, camp, jobs, fp); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			// Lost a race with a concurrent confirmation of the same payment.
			return s.store.GetCampaignByPayment(ctx, payment.PaymentID)
		}
		return nil, fmt.Errorf("create campaign: %w", err)
	}

	s.metrics.CampaignsCreated.Inc()
	s.publish(events.CampaignCreatedEvent{
		BaseEvent:  events.BaseEvent{EventType: events.CampaignCreated, EventTime: now},
		CampaignID: camp.CampaignID,
		PaymentID:  payment.PaymentID,
		UserID:     payment.UserID,
		TotalJobs:  len(jobs),
	})

	s.logger.Info("Campaign created",
		zap.Int64("campaign_id", camp.CampaignID),
		zap.String("payment_id", payment.PaymentID),
		zap.Int("total_jobs", len(jobs)),
		zap.Int64s("channels", draft.Channels))

	return camp, nil
}

// Report summarizes a finished campaign for the owner notification.
type Report struct {
	CampaignID  int64
	Published   int
	Failed      int
	Total       int
	SuccessRate float64
	Status      string
}

// CheckCompletion inspects one campaign's job counts and, when no
// scheduled jobs remain, transitions it to its terminal status. Returns
// a report only on the transition; repeated calls on a finished campaign
// return (nil, nil).
func (s *Service) CheckCompletion(ctx context.Context, campaignID int64) (*Report, error) {
	camp, err := s.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("load campaign %d: %w", campaignID, err)
	}
	if camp.Status != models.CampaignStatusActive {
		return nil, nil
	}

	counts, err := s.store.CountJobsByStatus(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("count jobs for campaign %d: %w", campaignID, err)
	}
	if counts[models.JobStatusScheduled] > 0 {
		return nil, nil
	}

	published := counts[models.JobStatusPublished]
	failed := counts[models.JobStatusFailed]
	total := published + failed
	if total == 0 {
		return nil, nil
	}

	status := models.CampaignStatusCompleted
	if published == 0 {
		status = models.CampaignStatusFailed
	}
	successRate := float64(published) / float64(total) * 100

	if err := s.store.UpdateCampaignStatus(ctx, campaignID, status); err != nil {
		return nil, fmt.Errorf("finish campaign %d: %w", campaignID, err)
	}

	s.publish(events.CampaignCompletedEvent{
		BaseEvent:   events.BaseEvent{EventType: events.CampaignCompleted, EventTime: s.now().UTC()},
		CampaignID:  campaignID,
		UserID:      camp.UserID,
		Published:   published,
		Failed:      failed,
		SuccessRate: successRate,
	})

	s.logger.Info("Campaign finished",
		zap.Int64("campaign_id", campaignID),
		zap.String("status", status),
		zap.Int("published", published),
		zap.Int("failed", failed),
		zap.Float64("success_rate", successRate))

	return &Report{
		CampaignID:  campaignID,
		Published:   published,
		Failed:      failed,
		Total:       total,
		SuccessRate: successRate,
		Status:      status,
	}, nil
}

// ResetFailedJobs flips every failed job of a campaign back to scheduled
// so the publisher retries them. Operator-triggered; there is no
// automatic retry of failed deliveries.
func (s *Service) ResetFailedJobs(ctx context.Context, campaignID int64) (int64, error) {
	camp, err := s.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return 0, fmt.Errorf("load campaign %d: %w", campaignID, err)
	}

	n, err := s.store.ResetFailedJobs(ctx, campaignID)
	if err != nil {
		return 0, fmt.Errorf("reset failed jobs for campaign %d: %w", campaignID, err)
	}

	if n > 0 && camp.Status != models.CampaignStatusActive {
		if err := s.store.UpdateCampaignStatus(ctx, campaignID, models.CampaignStatusActive); err != nil {
			return n, fmt.Errorf("reactivate campaign %d: %w", campaignID, err)
		}
	}

	s.logger.Info("Failed jobs reset",
		zap.Int64("campaign_id", campaignID),
		zap.Int64("jobs", n))
	return n, nil
}

func (s *Service) publish(event events.Event) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(event); err != nil {
		s.logger.Warn("Failed to publish event",
			zap.String("event_type", string(event.Type())),
			zap.Error(err))
	}
}
