// internal/storage/storage.go
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/adwave/ads-bot/internal/storage/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrDuplicate is returned when a unique constraint rejects a write.
var ErrDuplicate = errors.New("duplicate record")

// Storage is the single source of truth for payments, campaigns and jobs.
// Implementations must keep every operation short-lived; callers never
// hold a transaction across an I/O suspension point.
type Storage interface {
	// Payment requests
	SavePaymentRequest(ctx context.Context, req *models.PaymentRequest) error
	GetPaymentRequest(ctx context.Context, paymentID string) (*models.PaymentRequest, error)
	UpdatePaymentStatus(ctx context.Context, paymentID, status, txHash string) error
	PendingMemoExists(ctx context.Context, memo string) (bool, error)

	// Fraud audit trail (append-only)
	SaveFraudEvent(ctx context.Context, ev *models.FraudEvent) error

	// Content drafts
	SaveContentDraft(ctx context.Context, draft *models.ContentDraft) error
	GetContentDraft(ctx context.Context, paymentID string) (*models.ContentDraft, error)

	// Campaigns. CreateCampaign persists the campaign, its jobs and its
	// fingerprint in one transaction.
	CreateCampaign(ctx context.Context, c *models.Campaign, jobs []*models.PublishJob, fp *models.ContentFingerprint) error
	GetCampaign(ctx context.Context, campaignID int64) (*models.Campaign, error)
	GetCampaignByPayment(ctx context.Context, paymentID string) (*models.Campaign, error)
	UpdateCampaignStatus(ctx context.Context, campaignID int64, status string) error

	// Publish jobs
	DueJobs(ctx context.Context, now time.Time, limit int) ([]*models.PublishJob, error)
	MarkJobPublished(ctx context.Context, jobID, messageID int64, integrity string, at time.Time) error
	MarkJobFailed(ctx context.Context, jobID int64, errMsg string) error
	CountJobsByStatus(ctx context.Context, campaignID int64) (map[string]int, error)
	ResetFailedJobs(ctx context.Context, campaignID int64) (int64, error)

	// Content integrity
	GetFingerprint(ctx context.Context, campaignID int64) (*models.ContentFingerprint, error)
	GetOrCreatePostIdentity(ctx context.Context, identity *models.PostIdentity) (*models.PostIdentity, error)

	RunMigrations() error
}
