// internal/telegram/types.go
package telegram

import "context"

// Messenger is the narrow messaging contract the pipeline consumes:
// three send primitives, one edit, and error signaling via the returned
// error. Nothing else about the platform leaks into the core.
type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string) (int64, error)
	SendPhoto(ctx context.Context, chatID int64, fileID, caption string) (int64, error)
	SendVideo(ctx context.Context, chatID int64, fileID, caption string) (int64, error)
	SendPhotoUpload(ctx context.Context, chatID int64, png []byte, caption string) (int64, error)
	EditMessageText(ctx context.Context, chatID, messageID int64, text string) error
}

type apiResponse struct {
	OK          bool       `json:"ok"`
	Description string     `json:"description"`
	Result      *apiResult `json:"result"`
}

type apiResult struct {
	MessageID int64 `json:"message_id"`
}

type sendMessageRequest struct {
	ChatID    int64  `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode,omitempty"`
}

type sendMediaRequest struct {
	ChatID  int64  `json:"chat_id"`
	Photo   string `json:"photo,omitempty"`
	Video   string `json:"video,omitempty"`
	Caption string `json:"caption,omitempty"`
}

type editMessageRequest struct {
	ChatID    int64  `json:"chat_id"`
	MessageID int64  `json:"message_id"`
	Text      string `json:"text"`
}
