// internal/locale/locale.go
package locale

import "context"

// Localizer resolves a message key into translated text. The core never
// embeds language strings itself; it only chooses a language code.
type Localizer interface {
	Get(languageCode, key string, vars map[string]string) string
}

// UserProfiles exposes the profile collaborator's language lookup.
type UserProfiles interface {
	GetUserLanguage(ctx context.Context, userID int64) (string, error)
}
