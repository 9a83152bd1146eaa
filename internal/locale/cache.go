// internal/locale/cache.go
package locale

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	defaultMaxEntries = 10000
	defaultEntryTTL   = 30 * time.Minute
	fallbackLanguage  = "en"
)

type cachedLanguage struct {
	code     string
	cachedAt time.Time
}

// LanguageResolver caches user language preferences in front of the
// profile collaborator. The cache is bounded and invalidatable; it is an
// explicit dependency, not a package-level table.
type LanguageResolver struct {
	profiles   UserProfiles
	logger     *zap.Logger
	maxEntries int
	entryTTL   time.Duration

	mu    sync.Mutex
	cache map[int64]cachedLanguage
}

func NewLanguageResolver(profiles UserProfiles, logger *zap.Logger) *LanguageResolver {
	return &LanguageResolver{
		profiles:   profiles,
		logger:     logger.Named("language_resolver"),
		maxEntries: defaultMaxEntries,
		entryTTL:   defaultEntryTTL,
		cache:      make(map[int64]cachedLanguage),
	}
}

// Resolve returns the user's language code, falling back to "en" when
// the profile collaborator fails.
func (r *LanguageResolver) Resolve(ctx context.Context, userID int64) string {
	now := time.Now()

	r.mu.Lock()
	entry, ok := r.cache[userID]
	r.mu.Unlock()

	if ok && now.Sub(entry.cachedAt) < r.entryTTL {
		return entry.code
	}

	code, err := r.profiles.GetUserLanguage(ctx, userID)
	if err != nil || code == "" {
		r.logger.Debug("Language lookup failed, using fallback",
			zap.Int64("user_id", userID),
			zap.Error(err))
		if ok {
			// Stale entry beats the fallback.
			return entry.code
		}
		return fallbackLanguage
	}

	r.mu.Lock()
	if len(r.cache) >= r.maxEntries {
		r.evictOldestLocked()
	}
	r.cache[userID] = cachedLanguage{code: code, cachedAt: now}
	r.mu.Unlock()

	return code
}

// Invalidate drops one user's cached preference, e.g. after they change
// it in the bot settings.
func (r *LanguageResolver) Invalidate(userID int64) {
	r.mu.Lock()
	delete(r.cache, userID)
	r.mu.Unlock()
}

func (r *LanguageResolver) evictOldestLocked() {
	var oldestID int64
	var oldestAt time.Time
	first := true
	for id, entry := range r.cache {
		if first || entry.cachedAt.Before(oldestAt) {
			oldestID = id
			oldestAt = entry.cachedAt
			first = false
		}
	}
	if !first {
		delete(r.cache, oldestID)
	}
}
