// internal/storage/postgres/postgres.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/adwave/ads-bot/internal/storage"
	"github.com/adwave/ads-bot/internal/storage/models"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// gormLogger bridges GORM logging onto zap.
type gormLogger struct {
	zapLogger *zap.Logger
	logLevel  logger.LogLevel
}

func newGormLogger(zapLogger *zap.Logger) logger.Interface {
	return &gormLogger{
		zapLogger: zapLogger,
		logLevel:  logger.Warn,
	}
}

func (l *gormLogger) LogMode(level logger.LogLevel) logger.Interface {
	newLogger := *l
	newLogger.logLevel = level
	return &newLogger
}

func (l *gormLogger) Info(_ context.Context, msg string, data ...interface{}) {
	if l.logLevel >= logger.Info {
		l.zapLogger.Sugar().Infof(msg, data...)
	}
}

func (l *gormLogger) Warn(_ context.Context, msg string, data ...interface{}) {
	if l.logLevel >= logger.Warn {
		l.zapLogger.Sugar().Warnf(msg, data...)
	}
}

func (l *gormLogger) Error(_ context.Context, msg string, data ...interface{}) {
	if l.logLevel >= logger.Error {
		l.zapLogger.Sugar().Errorf(msg, data...)
	}
}

func (l *gormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.logLevel <= logger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()

	fields := []zap.Field{
		zap.Duration("elapsed", elapsed),
		zap.String("sql", sql),
		zap.Int64("rows", rows),
	}

	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		l.zapLogger.Error("trace", append(fields, zap.Error(err))...)
		return
	}

	if l.logLevel >= logger.Info {
		l.zapLogger.Info("trace", fields...)
	}
}

// postgresStorage implements the storage.Storage interface.
type postgresStorage struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewStorage(dsn string, zapLogger *zap.Logger) (storage.Storage, error) {
	gormLogger := newGormLogger(zapLogger.Named("gorm"))

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		DisableForeignKeyConstraintWhenMigrating: true,
		SkipDefaultTransaction:                   true,
		// Unique violations must surface as gorm.ErrDuplicatedKey so
		// translateErr can map them to storage.ErrDuplicate.
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return &postgresStorage{
		db:     db,
		logger: zapLogger,
	}, nil
}

func (p *postgresStorage) RunMigrations() error {
	var lockObtained bool
	err := p.db.Raw("SELECT pg_try_advisory_lock(214)").Scan(&lockObtained).Error
	if err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	if !lockObtained {
		return fmt.Errorf("another migration is in progress")
	}
	defer p.db.Exec("SELECT pg_advisory_unlock(214)")

	err = p.db.AutoMigrate(
		&models.PaymentRequest{},
		&models.FraudEvent{},
		&models.ContentDraft{},
		&models.Campaign{},
		&models.PublishJob{},
		&models.ContentFingerprint{},
		&models.PostIdentity{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

func translateErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return storage.ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return storage.ErrDuplicate
	}
	return err
}

func (p *postgresStorage) SavePaymentRequest(ctx context.Context, req *models.PaymentRequest) error {
	return translateErr(p.db.WithContext(ctx).Create(req).Error)
}

func (p *postgresStorage) GetPaymentRequest(ctx context.Context, paymentID string) (*models.PaymentRequest, error) {
	var req models.PaymentRequest
	err := p.db.WithContext(ctx).Where("payment_id = ?", paymentID).First(&req).Error
	if err != nil {
		return nil, translateErr(err)
	}
	return &req, nil
}

func (p *postgresStorage) UpdatePaymentStatus(ctx context.Context, paymentID, status, txHash string) error {
	updates := map[string]interface{}{"status": status}
	if txHash != "" {
		updates["tx_hash"] = txHash
	}
	return p.db.WithContext(ctx).Model(&models.PaymentRequest{}).
		Where("payment_id = ?", paymentID).
		Updates(updates).Error
}

func (p *postgresStorage) PendingMemoExists(ctx context.Context, memo string) (bool, error) {
	var count int64
	err := p.db.WithContext(ctx).Model(&models.PaymentRequest{}).
		Where("memo = ? AND status = ?", memo, models.PaymentStatusPending).
		Count(&count).Error
	return count > 0, err
}

func (p *postgresStorage) SaveFraudEvent(ctx context.Context, ev *models.FraudEvent) error {
	return p.db.WithContext(ctx).Create(ev).Error
}

func (p *postgresStorage) SaveContentDraft(ctx context.Context, draft *models.ContentDraft) error {
	return translateErr(p.db.WithContext(ctx).Create(draft).Error)
}

func (p *postgresStorage) GetContentDraft(ctx context.Context, paymentID string) (*models.ContentDraft, error) {
	var draft models.ContentDraft
	err := p.db.WithContext(ctx).Where("payment_id = ?", paymentID).First(&draft).Error
	if err != nil {
		return nil, translateErr(err)
	}
	return &draft, nil
}

// CreateCampaign persists the campaign, its publish jobs and its content
// fingerprint atomically. The unique index on payment_id backs the
// read-before-write idempotency performed by the campaign service.
func (p *postgresStorage) CreateCampaign(ctx context.Context, c *models.Campaign, jobs []*models.PublishJob, fp *models.ContentFingerprint) error {
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(c).Error; err != nil {
			return err
		}
		for _, job := range jobs {
			job.CampaignID = c.CampaignID
		}
		if len(jobs) > 0 {
			if err := tx.CreateInBatches(jobs, 100).Error; err != nil {
				return err
			}
		}
		fp.CampaignID = c.CampaignID
		return tx.Create(fp).Error
	})
	return translateErr(err)
}

func (p *postgresStorage) GetCampaign(ctx context.Context, campaignID int64) (*models.Campaign, error) {
	var c models.Campaign
	err := p.db.WithContext(ctx).Where("campaign_id = ?", campaignID).First(&c).Error
	if err != nil {
		return nil, translateErr(err)
	}
	return &c, nil
}

func (p *postgresStorage) GetCampaignByPayment(ctx context.Context, paymentID string) (*models.Campaign, error) {
	var c models.Campaign
	err := p.db.WithContext(ctx).Where("payment_id = ?", paymentID).First(&c).Error
	if err != nil {
		return nil, translateErr(err)
	}
	return &c, nil
}

func (p *postgresStorage) UpdateCampaignStatus(ctx context.Context, campaignID int64, status string) error {
	return p.db.WithContext(ctx).Model(&models.Campaign{}).
		Where("campaign_id = ?", campaignID).
		Update("status", status).Error
}

func (p *postgresStorage) DueJobs(ctx context.Context, now time.Time, limit int) ([]*models.PublishJob, error) {
	var jobs []*models.PublishJob
	err := p.db.WithContext(ctx).
		Where("status = ? AND scheduled_time <= ?", models.JobStatusScheduled, now).
		Order("scheduled_time asc").
		Limit(limit).
		Find(&jobs).Error
	return jobs, err
}

func (p *postgresStorage) MarkJobPublished(ctx context.Context, jobID, messageID int64, integrity string, at time.Time) error {
	return p.db.WithContext(ctx).Model(&models.PublishJob{}).
		Where("job_id = ?", jobID).
		Updates(map[string]interface{}{
			"status":       models.JobStatusPublished,
			"message_id":   messageID,
			"integrity":    integrity,
			"published_at": at,
			"error":        "",
		}).Error
}

func (p *postgresStorage) MarkJobFailed(ctx context.Context, jobID int64, errMsg string) error {
	return p.db.WithContext(ctx).Model(&models.PublishJob{}).
		Where("job_id = ?", jobID).
		Updates(map[string]interface{}{
			"status": models.JobStatusFailed,
			"error":  errMsg,
		}).Error
}

func (p *postgresStorage) CountJobsByStatus(ctx context.Context, campaignID int64) (map[string]int, error) {
	type statusCount struct {
		Status string
		Count  int
	}
	var rows []statusCount
	err := p.db.WithContext(ctx).Model(&models.PublishJob{}).
		Select("status, count(*) as count").
		Where("campaign_id = ?", campaignID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

func (p *postgresStorage) ResetFailedJobs(ctx context.Context, campaignID int64) (int64, error) {
	res := p.db.WithContext(ctx).Model(&models.PublishJob{}).
		Where("campaign_id = ? AND status = ?", campaignID, models.JobStatusFailed).
		Updates(map[string]interface{}{
			"status": models.JobStatusScheduled,
			"error":  "",
		})
	return res.RowsAffected, res.Error
}

func (p *postgresStorage) GetFingerprint(ctx context.Context, campaignID int64) (*models.ContentFingerprint, error) {
	var fp models.ContentFingerprint
	err := p.db.WithContext(ctx).Where("campaign_id = ?", campaignID).First(&fp).Error
	if err != nil {
		return nil, translateErr(err)
	}
	return &fp, nil
}

// GetOrCreatePostIdentity returns the campaign's canonical post, creating
// it on first use. The unique index on campaign_id guarantees a second
// concurrent creation collapses onto the existing row.
func (p *postgresStorage) GetOrCreatePostIdentity(ctx context.Context, identity *models.PostIdentity) (*models.PostIdentity, error) {
	var existing models.PostIdentity
	err := p.db.WithContext(ctx).Where("campaign_id = ?", identity.CampaignID).First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	err = p.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "campaign_id"}},
			DoNothing: true,
		}).
		Create(identity).Error
	if err != nil {
		return nil, err
	}

	err = p.db.WithContext(ctx).Where("campaign_id = ?", identity.CampaignID).First(&existing).Error
	if err != nil {
		return nil, translateErr(err)
	}
	return &existing, nil
}
