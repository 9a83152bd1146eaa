// internal/content/content.go
package content

import (
	"errors"
	"fmt"
	"strings"
)

// Type identifies which send primitive a post requires.
type Type string

const (
	TypeText      Type = "text"
	TypePhoto     Type = "photo"
	TypeVideo     Type = "video"
	TypeTextPhoto Type = "text_photo"
	TypeTextVideo Type = "text_video"
)

var (
	ErrEmptyContent    = errors.New("content has no text and no media")
	ErrInvalidMediaRef = errors.New("invalid media reference")
	ErrUnsupportedType = errors.New("unsupported content type")
)

// Post is the literal user-submitted content of one campaign.
type Post struct {
	Text        string
	MediaRef    string
	ContentType Type
}

// ParseType validates a stored content type string.
func ParseType(s string) (Type, error) {
	switch Type(s) {
	case TypeText, TypePhoto, TypeVideo, TypeTextPhoto, TypeTextVideo:
		return Type(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedType, s)
}

// HasMedia reports whether the type carries a media reference.
func (t Type) HasMedia() bool {
	return t != TypeText
}

// HasText reports whether the type carries message text.
func (t Type) HasText() bool {
	return t == TypeText || t == TypeTextPhoto || t == TypeTextVideo
}

// Validate rejects empty or malformed posts before anything durable is
// created from them.
func Validate(p Post) error {
	if strings.TrimSpace(p.Text) == "" && p.MediaRef == "" {
		return ErrEmptyContent
	}

	typ, err := ParseType(string(p.ContentType))
	if err != nil {
		return err
	}

	if typ.HasMedia() {
		if err := validateMediaRef(p.MediaRef); err != nil {
			return err
		}
	} else if p.MediaRef != "" {
		return fmt.Errorf("%w: text post carries a media reference", ErrUnsupportedType)
	}

	if typ.HasText() && strings.TrimSpace(p.Text) == "" {
		return ErrEmptyContent
	}

	return nil
}

// validateMediaRef checks the reference against the platform file-id
// shape: base64url-ish charset, bounded length.
func validateMediaRef(ref string) error {
	if len(ref) < 20 || len(ref) > 128 {
		return ErrInvalidMediaRef
	}
	for _, r := range ref {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_':
		default:
			return ErrInvalidMediaRef
		}
	}
	return nil
}
