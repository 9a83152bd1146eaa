// internal/storage/models/content.go
package models

import "time"

// ContentFingerprint pins a campaign to the exact content the user
// submitted. The hash is deterministic over (text, media_ref, type), so
// later publish attempts can be verified bit-for-bit.
type ContentFingerprint struct {
	ContentHash string    `gorm:"primarykey;type:varchar(64)"`
	CampaignID  int64     `gorm:"uniqueIndex;not null"`
	Text        string    `gorm:"type:text"`
	MediaRef    string    `gorm:"type:varchar(128)"`
	ContentType string    `gorm:"not null;type:varchar(20)"`
	CreatedAt   time.Time `gorm:"default:CURRENT_TIMESTAMP"`
}

// PostIdentity is the single canonical post replicated to every channel
// of one campaign. The unique index on campaign_id enforces exactly one.
type PostIdentity struct {
	ID          int64     `gorm:"primarykey;autoIncrement"`
	CampaignID  int64     `gorm:"uniqueIndex;not null"`
	Text        string    `gorm:"type:text"`
	MediaRef    string    `gorm:"type:varchar(128)"`
	ContentType string    `gorm:"not null;type:varchar(20)"`
	CreatedAt   time.Time `gorm:"default:CURRENT_TIMESTAMP"`
}

// ContentDraft holds the literal content and order parameters a user
// submitted while ordering, keyed by payment so campaign creation can
// locate everything after confirmation.
type ContentDraft struct {
	BaseModel
	PaymentID    string  `gorm:"uniqueIndex;not null;type:varchar(36)"`
	UserID       int64   `gorm:"index;not null"`
	Text         string  `gorm:"type:text"`
	MediaRef     string  `gorm:"type:varchar(128)"`
	ContentType  string  `gorm:"not null;type:varchar(20)"`
	Channels     []int64 `gorm:"serializer:json;type:text;not null"`
	DurationDays int     `gorm:"not null"`
	PostsPerDay  int     `gorm:"not null"`
}
