// internal/publisher/worker.go
package publisher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/adwave/ads-bot/internal/campaign"
	"github.com/adwave/ads-bot/internal/events"
	"github.com/adwave/ads-bot/internal/metrics"
	"github.com/adwave/ads-bot/internal/storage"
	"github.com/adwave/ads-bot/internal/storage/models"
)

const (
	defaultInterval    = 60 * time.Second
	defaultBatchSize   = 10
	defaultConcurrency = 4
)

// EventBus is the slice of the bus the worker publishes to.
type EventBus interface {
	Publish(event events.Event) error
}

// OwnerNotifier confirms deliveries to the campaign owner.
type OwnerNotifier interface {
	PostPublished(ctx context.Context, userID, campaignID, channelID int64)
	CampaignFinished(ctx context.Context, userID int64, report *campaign.Report)
}

// Worker drains due publish jobs on a fixed interval. One failing job
// never blocks the rest of the batch; each delivery ends in exactly one
// of published or failed.
type Worker struct {
	store      storage.Storage
	dispatcher *Dispatcher
	campaigns  *campaign.Service
	notifier   OwnerNotifier
	bus        EventBus
	metrics    *metrics.Metrics
	logger     *zap.Logger

	interval    time.Duration
	batchSize   int
	concurrency int
	now         func() time.Time
}

// WorkerConfig wires the worker's collaborators.
type WorkerConfig struct {
	Store      storage.Storage
	Dispatcher *Dispatcher
	Campaigns  *campaign.Service
	Notifier   OwnerNotifier
	Bus        EventBus
	Metrics    *metrics.Metrics
	Logger     *zap.Logger
	Interval   time.Duration
	BatchSize  int
}

func NewWorker(cfg *WorkerConfig) *Worker {
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	return &Worker{
		store:       cfg.Store,
		dispatcher:  cfg.Dispatcher,
		campaigns:   cfg.Campaigns,
		notifier:    cfg.Notifier,
		bus:         cfg.Bus,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger.Named("publish_worker"),
		interval:    interval,
		batchSize:   batchSize,
		concurrency: defaultConcurrency,
		now:         time.Now,
	}
}

// Run processes batches until the context is cancelled. The batch in
// flight when cancellation arrives is finished before Run returns.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("Publish worker started",
		zap.Duration("interval", w.interval),
		zap.Int("batch_size", w.batchSize))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.processBatch(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Publish worker stopped")
			return ctx.Err()
		case <-ticker.C:
			w.processBatch(ctx)
		}
	}
}

// ProcessOnce runs a single batch immediately. Used by operator commands
// and tests.
func (w *Worker) ProcessOnce(ctx context.Context) {
	w.processBatch(ctx)
}

func (w *Worker) processBatch(ctx context.Context) {
	jobs, err := w.store.DueJobs(ctx, w.now().UTC(), w.batchSize)
	if err != nil {
		w.logger.Error("Failed to load due jobs", zap.Error(err))
		return
	}
	if len(jobs) == 0 {
		return
	}

	w.logger.Debug("Processing publish batch", zap.Int("jobs", len(jobs)))

	var mu sync.Mutex
	affected := make(map[int64]struct{})

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)
	for _, job := range jobs {
		job := job
		g.Go(func() error {
			w.publishJob(gctx, job)
			mu.Lock()
			affected[job.CampaignID] = struct{}{}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	for campaignID := range affected {
		w.checkCompletion(ctx, campaignID)
	}
}

// publishJob drives one job to a terminal status. Errors are contained
// here; they mark the job failed and never propagate to the batch.
func (w *Worker) publishJob(ctx context.Context, job *models.PublishJob) {
	logger := w.logger.With(
		zap.Int64("job_id", job.JobID),
		zap.Int64("campaign_id", job.CampaignID),
		zap.Int64("channel_id", job.ChannelID))

	camp, err := w.store.GetCampaign(ctx, job.CampaignID)
	if err != nil {
		w.failJob(ctx, job, fmt.Errorf("load campaign: %w", err), logger)
		return
	}

	started := w.now()
	delivery, err := w.dispatcher.Deliver(ctx, camp, job)
	if err != nil {
		w.failJob(ctx, job, err, logger)
		return
	}
	elapsed := w.now().Sub(started)

	publishedAt := w.now().UTC()
	if err := w.store.MarkJobPublished(ctx, job.JobID, delivery.MessageID, delivery.Integrity, publishedAt); err != nil {
		logger.Error("Delivered but failed to persist job status", zap.Error(err))
		return
	}

	w.metrics.JobsPublished.Inc()
	w.metrics.PublishDuration.Observe(elapsed.Seconds())
	if delivery.Integrity == models.IntegrityMismatch {
		w.metrics.IntegrityMismatch.Inc()
	}

	w.publish(events.JobPublishedEvent{
		BaseEvent:  events.BaseEvent{EventType: events.JobPublished, EventTime: publishedAt},
		JobID:      job.JobID,
		CampaignID: job.CampaignID,
		ChannelID:  job.ChannelID,
		MessageID:  delivery.MessageID,
		Integrity:  delivery.Integrity,
	})

	if w.notifier != nil {
		w.notifier.PostPublished(ctx, camp.UserID, camp.CampaignID, job.ChannelID)
	}

	logger.Info("Job published",
		zap.Int64("message_id", delivery.MessageID),
		zap.String("integrity", delivery.Integrity),
		zap.Duration("took", elapsed))
}

func (w *Worker) failJob(ctx context.Context, job *models.PublishJob, cause error, logger *zap.Logger) {
	logger.Warn("Job failed", zap.Error(cause))

	if err := w.store.MarkJobFailed(ctx, job.JobID, cause.Error()); err != nil {
		logger.Error("Failed to persist job failure", zap.Error(err))
		return
	}

	w.metrics.JobsFailed.Inc()
	w.publish(events.JobFailedEvent{
		BaseEvent:  events.BaseEvent{EventType: events.JobFailed, EventTime: w.now().UTC()},
		JobID:      job.JobID,
		CampaignID: job.CampaignID,
		ChannelID:  job.ChannelID,
		Error:      cause.Error(),
	})
}

func (w *Worker) checkCompletion(ctx context.Context, campaignID int64) {
	report, err := w.campaigns.CheckCompletion(ctx, campaignID)
	if err != nil {
		w.logger.Warn("Completion check failed",
			zap.Int64("campaign_id", campaignID),
			zap.Error(err))
		return
	}
	if report == nil {
		return
	}

	if w.notifier != nil {
		camp, err := w.store.GetCampaign(ctx, campaignID)
		if err != nil {
			w.logger.Warn("Campaign finished but owner lookup failed",
				zap.Int64("campaign_id", campaignID),
				zap.Error(err))
			return
		}
		w.notifier.CampaignFinished(ctx, camp.UserID, report)
	}
}

func (w *Worker) publish(event events.Event) {
	if w.bus == nil {
		return
	}
	if err := w.bus.Publish(event); err != nil {
		w.logger.Warn("Failed to publish event",
			zap.String("event_type", string(event.Type())),
			zap.Error(err))
	}
}
