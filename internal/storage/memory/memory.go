// internal/storage/memory/memory.go
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/adwave/ads-bot/internal/storage"
	"github.com/adwave/ads-bot/internal/storage/models"
)

// Store is an in-memory Storage implementation used in tests. It honors
// the same uniqueness rules the Postgres schema enforces.
type Store struct {
	mu           sync.Mutex
	payments     map[string]*models.PaymentRequest
	frauds       []*models.FraudEvent
	drafts       map[string]*models.ContentDraft
	campaigns    map[int64]*models.Campaign
	jobs         map[int64]*models.PublishJob
	fingerprints map[int64]*models.ContentFingerprint
	identities   map[int64]*models.PostIdentity
	nextCampaign int64
	nextJob      int64
	nextIdentity int64
}

func NewStore() *Store {
	return &Store{
		payments:     make(map[string]*models.PaymentRequest),
		drafts:       make(map[string]*models.ContentDraft),
		campaigns:    make(map[int64]*models.Campaign),
		jobs:         make(map[int64]*models.PublishJob),
		fingerprints: make(map[int64]*models.ContentFingerprint),
		identities:   make(map[int64]*models.PostIdentity),
	}
}

func (s *Store) RunMigrations() error { return nil }

func (s *Store) SavePaymentRequest(_ context.Context, req *models.PaymentRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.payments[req.PaymentID]; ok {
		return storage.ErrDuplicate
	}
	for _, other := range s.payments {
		if strings.EqualFold(other.Memo, req.Memo) {
			return storage.ErrDuplicate
		}
	}
	cp := *req
	s.payments[req.PaymentID] = &cp
	return nil
}

func (s *Store) GetPaymentRequest(_ context.Context, paymentID string) (*models.PaymentRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.payments[paymentID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *req
	return &cp, nil
}

func (s *Store) UpdatePaymentStatus(_ context.Context, paymentID, status, txHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.payments[paymentID]
	if !ok {
		return storage.ErrNotFound
	}
	req.Status = status
	if txHash != "" {
		req.TxHash = txHash
	}
	return nil
}

func (s *Store) PendingMemoExists(_ context.Context, memo string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, req := range s.payments {
		if req.Status == models.PaymentStatusPending && strings.EqualFold(req.Memo, memo) {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) SaveFraudEvent(_ context.Context, ev *models.FraudEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *ev
	cp.ID = uint(len(s.frauds) + 1)
	cp.CreatedAt = time.Now().UTC()
	s.frauds = append(s.frauds, &cp)
	return nil
}

// FraudEvents returns a copy of the audit trail for assertions.
func (s *Store) FraudEvents() []*models.FraudEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*models.FraudEvent, len(s.frauds))
	copy(out, s.frauds)
	return out
}

func (s *Store) SaveContentDraft(_ context.Context, draft *models.ContentDraft) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.drafts[draft.PaymentID]; ok {
		return storage.ErrDuplicate
	}
	cp := *draft
	s.drafts[draft.PaymentID] = &cp
	return nil
}

func (s *Store) GetContentDraft(_ context.Context, paymentID string) (*models.ContentDraft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	draft, ok := s.drafts[paymentID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *draft
	return &cp, nil
}

func (s *Store) CreateCampaign(_ context.Context, c *models.Campaign, jobs []*models.PublishJob, fp *models.ContentFingerprint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.campaigns {
		if existing.PaymentID == c.PaymentID {
			return storage.ErrDuplicate
		}
	}
	if _, ok := s.fingerprints[fp.CampaignID]; ok && fp.CampaignID != 0 {
		return storage.ErrDuplicate
	}

	s.nextCampaign++
	c.CampaignID = s.nextCampaign
	cp := *c
	s.campaigns[c.CampaignID] = &cp

	for _, job := range jobs {
		s.nextJob++
		job.JobID = s.nextJob
		job.CampaignID = c.CampaignID
		jcp := *job
		s.jobs[job.JobID] = &jcp
	}

	fp.CampaignID = c.CampaignID
	fcp := *fp
	s.fingerprints[c.CampaignID] = &fcp
	return nil
}

func (s *Store) GetCampaign(_ context.Context, campaignID int64) (*models.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.campaigns[campaignID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *Store) GetCampaignByPayment(_ context.Context, paymentID string) (*models.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.campaigns {
		if c.PaymentID == paymentID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *Store) UpdateCampaignStatus(_ context.Context, campaignID int64, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.campaigns[campaignID]
	if !ok {
		return storage.ErrNotFound
	}
	c.Status = status
	return nil
}

func (s *Store) DueJobs(_ context.Context, now time.Time, limit int) ([]*models.PublishJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []*models.PublishJob
	for _, job := range s.jobs {
		if job.Status == models.JobStatusScheduled && !job.ScheduledTime.After(now) {
			cp := *job
			due = append(due, &cp)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		return due[i].ScheduledTime.Before(due[j].ScheduledTime)
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (s *Store) MarkJobPublished(_ context.Context, jobID, messageID int64, integrity string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return storage.ErrNotFound
	}
	job.Status = models.JobStatusPublished
	job.MessageID = messageID
	job.Integrity = integrity
	job.PublishedAt = &at
	job.Error = ""
	return nil
}

func (s *Store) MarkJobFailed(_ context.Context, jobID int64, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return storage.ErrNotFound
	}
	job.Status = models.JobStatusFailed
	job.Error = errMsg
	return nil
}

func (s *Store) CountJobsByStatus(_ context.Context, campaignID int64) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[string]int)
	for _, job := range s.jobs {
		if job.CampaignID == campaignID {
			counts[job.Status]++
		}
	}
	return counts, nil
}

func (s *Store) ResetFailedJobs(_ context.Context, campaignID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var reset int64
	for _, job := range s.jobs {
		if job.CampaignID == campaignID && job.Status == models.JobStatusFailed {
			job.Status = models.JobStatusScheduled
			job.Error = ""
			reset++
		}
	}
	return reset, nil
}

func (s *Store) GetFingerprint(_ context.Context, campaignID int64) (*models.ContentFingerprint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fp, ok := s.fingerprints[campaignID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *fp
	return &cp, nil
}

func (s *Store) GetOrCreatePostIdentity(_ context.Context, identity *models.PostIdentity) (*models.PostIdentity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.identities[identity.CampaignID]; ok {
		cp := *existing
		return &cp, nil
	}

	s.nextIdentity++
	identity.ID = s.nextIdentity
	identity.CreatedAt = time.Now().UTC()
	cp := *identity
	s.identities[identity.CampaignID] = &cp

	out := cp
	return &out, nil
}

// JobsForCampaign returns copies of a campaign's jobs for assertions.
func (s *Store) JobsForCampaign(campaignID int64) []*models.PublishJob {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.PublishJob
	for _, job := range s.jobs {
		if job.CampaignID == campaignID {
			cp := *job
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JobID < out[j].JobID })
	return out
}

var _ storage.Storage = (*Store)(nil)
