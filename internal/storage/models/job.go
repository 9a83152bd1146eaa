// internal/storage/models/job.go
package models

import "time"

const (
	JobStatusScheduled = "scheduled"
	JobStatusPublished = "published"
	JobStatusFailed    = "failed"
)

const (
	IntegrityMatch    = "match"
	IntegrityMismatch = "mismatch"
)

// PublishJob is one scheduled delivery: this campaign's content to this
// channel at this time. One row per (campaign, day, slot, channel).
type PublishJob struct {
	JobID         int64     `gorm:"primarykey;autoIncrement"`
	CampaignID    int64     `gorm:"index;not null"`
	ChannelID     int64     `gorm:"not null"`
	ScheduledTime time.Time `gorm:"index;not null"`
	Status        string    `gorm:"index;not null;type:varchar(20)"`
	MessageID     int64
	Error         string    `gorm:"type:text"`
	Integrity     string    `gorm:"type:varchar(10)"`
	PublishedAt   *time.Time
	CreatedAt     time.Time `gorm:"default:CURRENT_TIMESTAMP"`
}

// Terminal reports whether the job reached a final status.
func (j *PublishJob) Terminal() bool {
	return j.Status == JobStatusPublished || j.Status == JobStatusFailed
}
