// internal/campaign/schedule.go
package campaign

import (
	"time"

	"github.com/adwave/ads-bot/internal/storage/models"
)

// BuildJobs derives the full publish schedule: one job per (day, slot,
// channel), with slot times spread evenly across each day starting at
// start. Job count is always durationDays × postsPerDay × len(channels).
func BuildJobs(channels []int64, durationDays, postsPerDay int, start time.Time) []*models.PublishJob {
	if durationDays <= 0 || postsPerDay <= 0 || len(channels) == 0 {
		return nil
	}

	slotSpacing := 24 * time.Hour / time.Duration(postsPerDay)

	jobs := make([]*models.PublishJob, 0, durationDays*postsPerDay*len(channels))
	for day := 0; day < durationDays; day++ {
		dayStart := start.Add(time.Duration(day) * 24 * time.Hour)
		for slot := 0; slot < postsPerDay; slot++ {
			slotTime := dayStart.Add(time.Duration(slot) * slotSpacing)
			for _, channelID := range channels {
				jobs = append(jobs, &models.PublishJob{
					ChannelID:     channelID,
					ScheduledTime: slotTime,
					Status:        models.JobStatusScheduled,
				})
			}
		}
	}
	return jobs
}
