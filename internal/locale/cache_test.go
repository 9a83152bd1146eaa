// internal/locale/cache_test.go
package locale

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

type fakeProfiles struct {
	mu    sync.Mutex
	langs map[int64]string
	err   error
	calls int
}

func (f *fakeProfiles) GetUserLanguage(_ context.Context, userID int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.langs[userID], nil
}

func TestResolveCachesLookups(t *testing.T) {
	profiles := &fakeProfiles{langs: map[int64]string{7: "ru"}}
	resolver := NewLanguageResolver(profiles, zaptest.NewLogger(t))

	assert.Equal(t, "ru", resolver.Resolve(context.Background(), 7))
	assert.Equal(t, "ru", resolver.Resolve(context.Background(), 7))

	profiles.mu.Lock()
	assert.Equal(t, 1, profiles.calls)
	profiles.mu.Unlock()
}

func TestResolveFallsBack(t *testing.T) {
	profiles := &fakeProfiles{err: errors.New("profile service down")}
	resolver := NewLanguageResolver(profiles, zaptest.NewLogger(t))

	assert.Equal(t, "en", resolver.Resolve(context.Background(), 7))

	// Unknown language (empty) also falls back.
	profiles.mu.Lock()
	profiles.err = nil
	profiles.langs = map[int64]string{}
	profiles.mu.Unlock()
	assert.Equal(t, "en", resolver.Resolve(context.Background(), 8))
}

func TestResolvePrefersStaleEntryOverFallback(t *testing.T) {
	profiles := &fakeProfiles{langs: map[int64]string{7: "ru"}}
	resolver := NewLanguageResolver(profiles, zaptest.NewLogger(t))
	resolver.entryTTL = 0 // every entry is immediately stale

	assert.Equal(t, "ru", resolver.Resolve(context.Background(), 7))

	profiles.mu.Lock()
	profiles.err = errors.New("profile service down")
	profiles.mu.Unlock()

	assert.Equal(t, "ru", resolver.Resolve(context.Background(), 7))
}

func TestInvalidate(t *testing.T) {
	profiles := &fakeProfiles{langs: map[int64]string{7: "ru"}}
	resolver := NewLanguageResolver(profiles, zaptest.NewLogger(t))

	assert.Equal(t, "ru", resolver.Resolve(context.Background(), 7))

	profiles.mu.Lock()
	profiles.langs[7] = "de"
	profiles.mu.Unlock()

	// Still cached.
	assert.Equal(t, "ru", resolver.Resolve(context.Background(), 7))

	resolver.Invalidate(7)
	assert.Equal(t, "de", resolver.Resolve(context.Background(), 7))
}

func TestCacheIsBounded(t *testing.T) {
	profiles := &fakeProfiles{langs: map[int64]string{}}
	profiles.langs[0] = "ru"
	resolver := NewLanguageResolver(profiles, zaptest.NewLogger(t))
	resolver.maxEntries = 3

	for id := int64(0); id < 10; id++ {
		profiles.mu.Lock()
		profiles.langs[id] = "ru"
		profiles.mu.Unlock()
		resolver.Resolve(context.Background(), id)
	}

	resolver.mu.Lock()
	assert.LessOrEqual(t, len(resolver.cache), 3)
	resolver.mu.Unlock()
}

func TestCatalog(t *testing.T) {
	catalog := NewCatalog()

	msg := catalog.Get("en", "campaign_completed", map[string]string{
		"campaign_id":  "17",
		"published":    "40",
		"total":        "42",
		"success_rate": "95.2",
	})
	assert.Contains(t, msg, "#17")
	assert.Contains(t, msg, "40/42")
	assert.Contains(t, msg, "95.2%")

	// Unknown language falls back to English.
	fallback := catalog.Get("fr", "payment_timed_out", map[string]string{"memo": "AB1234"})
	assert.Contains(t, fallback, "AB1234")
	assert.Contains(t, fallback, "expired")

	// Unknown key degrades to the key itself.
	assert.Equal(t, "no_such_key", catalog.Get("en", "no_such_key", nil))
}
