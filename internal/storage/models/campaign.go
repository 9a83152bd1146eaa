// internal/storage/models/campaign.go
package models

import "time"

const (
	CampaignStatusActive    = "active"
	CampaignStatusCompleted = "completed"
	CampaignStatusFailed    = "failed"
)

// Campaign is a paid advertising run. Created exactly once per confirmed
// payment; campaign ids come from the database sequence.
type Campaign struct {
	CampaignID   int64     `gorm:"primarykey;autoIncrement"`
	UserID       int64     `gorm:"index;not null"`
	PaymentID    string    `gorm:"uniqueIndex;not null;type:varchar(36)"`
	ContentRef   string    `gorm:"not null;type:varchar(64)"`
	Channels     []int64   `gorm:"serializer:json;type:text;not null"`
	DurationDays int       `gorm:"not null"`
	PostsPerDay  int       `gorm:"not null"`
	Status       string    `gorm:"index;not null;type:varchar(20)"`
	CreatedAt    time.Time `gorm:"default:CURRENT_TIMESTAMP"`
}

// TotalPosts is the number of publish jobs the campaign owns.
func (c *Campaign) TotalPosts() int {
	return c.DurationDays * c.PostsPerDay * len(c.Channels)
}
