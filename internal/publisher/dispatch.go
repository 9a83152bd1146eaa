// internal/publisher/dispatch.go
package publisher

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/adwave/ads-bot/internal/content"
	"github.com/adwave/ads-bot/internal/storage"
	"github.com/adwave/ads-bot/internal/storage/models"
	"github.com/adwave/ads-bot/internal/telegram"
)

// Dispatcher resolves a campaign's canonical post and delivers it to one
// channel. Every channel of a campaign receives the same post identity;
// the identity row is created on first delivery and reused afterwards.
type Dispatcher struct {
	store     storage.Storage
	messenger telegram.Messenger
	logger    *zap.Logger
}

func NewDispatcher(store storage.Storage, messenger telegram.Messenger, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		store:     store,
		messenger: messenger,
		logger:    logger.Named("dispatcher"),
	}
}

// Delivery is the outcome of one successful channel send.
type Delivery struct {
	MessageID int64
	Integrity string
}

// Deliver sends the campaign's post to the job's channel. The sent
// content is verified against the campaign fingerprint; a mismatch is
// recorded on the job but does not block delivery.
func (d *Dispatcher) Deliver(ctx context.Context, camp *models.Campaign, job *models.PublishJob) (*Delivery, error) {
	identity, err := d.resolveIdentity(ctx, camp.CampaignID)
	if err != nil {
		return nil, err
	}

	post := content.Post{
		Text:        identity.Text,
		MediaRef:    identity.MediaRef,
		ContentType: content.Type(identity.ContentType),
	}

	integrity := models.IntegrityMatch
	if !content.Verify(post, camp.ContentRef) {
		integrity = models.IntegrityMismatch
		d.logger.Warn("Post content does not match campaign fingerprint",
			zap.Int64("campaign_id", camp.CampaignID),
			zap.Int64("job_id", job.JobID),
			zap.String("expected_hash", camp.ContentRef))
	}

	messageID, err := d.send(ctx, job.ChannelID, post)
	if err != nil {
		return nil, err
	}

	return &Delivery{MessageID: messageID, Integrity: integrity}, nil
}

// resolveIdentity returns the campaign's single canonical post, creating
// it from the stored fingerprint on the first delivery. The unique
// constraint on campaign_id guarantees concurrent workers converge on
// one row.
func (d *Dispatcher) resolveIdentity(ctx context.Context, campaignID int64) (*models.PostIdentity, error) {
	fp, err := d.store.GetFingerprint(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("load fingerprint for campaign %d: %w", campaignID, err)
	}

	identity, err := d.store.GetOrCreatePostIdentity(ctx, &models.PostIdentity{
		CampaignID:  campaignID,
		Text:        fp.Text,
		MediaRef:    fp.MediaRef,
		ContentType: fp.ContentType,
	})
	if err != nil {
		return nil, fmt.Errorf("resolve post identity for campaign %d: %w", campaignID, err)
	}
	return identity, nil
}

func (d *Dispatcher) send(ctx context.Context, channelID int64, post content.Post) (int64, error) {
	switch post.ContentType {
	case content.TypeText:
		return d.messenger.SendText(ctx, channelID, post.Text)
	case content.TypePhoto:
		return d.messenger.SendPhoto(ctx, channelID, post.MediaRef, "")
	case content.TypeTextPhoto:
		return d.messenger.SendPhoto(ctx, channelID, post.MediaRef, post.Text)
	case content.TypeVideo:
		return d.messenger.SendVideo(ctx, channelID, post.MediaRef, "")
	case content.TypeTextVideo:
		return d.messenger.SendVideo(ctx, channelID, post.MediaRef, post.Text)
	}
	return 0, fmt.Errorf("%w: %q", content.ErrUnsupportedType, post.ContentType)
}
