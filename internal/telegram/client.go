// internal/telegram/client.go
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const defaultAPIBase = "https://api.telegram.org"

// Client is a Bot API client covering exactly the Messenger surface.
type Client struct {
	httpClient *http.Client
	apiBase    string
	token      string
	logger     *zap.Logger
}

func NewClient(token string, logger *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		apiBase:    defaultAPIBase,
		token:      token,
		logger:     logger.Named("telegram"),
	}
}

// NewClientWithBase is used in tests to point the client at a stub server.
func NewClientWithBase(token, apiBase string, logger *zap.Logger) *Client {
	c := NewClient(token, logger)
	c.apiBase = apiBase
	return c
}

func (c *Client) SendText(ctx context.Context, chatID int64, text string) (int64, error) {
	return c.call(ctx, "sendMessage", sendMessageRequest{ChatID: chatID, Text: text})
}

func (c *Client) SendPhoto(ctx context.Context, chatID int64, fileID, caption string) (int64, error) {
	return c.call(ctx, "sendPhoto", sendMediaRequest{ChatID: chatID, Photo: fileID, Caption: caption})
}

func (c *Client) SendVideo(ctx context.Context, chatID int64, fileID, caption string) (int64, error) {
	return c.call(ctx, "sendVideo", sendMediaRequest{ChatID: chatID, Video: fileID, Caption: caption})
}

func (c *Client) EditMessageText(ctx context.Context, chatID, messageID int64, text string) error {
	_, err := c.call(ctx, "editMessageText", editMessageRequest{ChatID: chatID, MessageID: messageID, Text: text})
	return err
}

// SendPhotoUpload pushes raw PNG bytes (payment QR codes) as a photo.
func (c *Client) SendPhotoUpload(ctx context.Context, chatID int64, png []byte, caption string) (int64, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	if err := writer.WriteField("chat_id", fmt.Sprintf("%d", chatID)); err != nil {
		return 0, fmt.Errorf("write chat_id field: %w", err)
	}
	if caption != "" {
		if err := writer.WriteField("caption", caption); err != nil {
			return 0, fmt.Errorf("write caption field: %w", err)
		}
	}

	part, err := writer.CreateFormFile("photo", "qr.png")
	if err != nil {
		return 0, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(png); err != nil {
		return 0, fmt.Errorf("write photo bytes: %w", err)
	}
	if err := writer.Close(); err != nil {
		return 0, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL("sendPhoto"), &body)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	return c.do(req)
}

func (c *Client) methodURL(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", c.apiBase, c.token, method)
}

func (c *Client) call(ctx context.Context, method string, payload interface{}) (int64, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("marshal %s payload: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL(method), bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req)
}

func (c *Client) do(req *http.Request) (int64, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("telegram request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, fmt.Errorf("read telegram response: %w", err)
	}

	var parsed apiResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return 0, fmt.Errorf("decode telegram response (status %d): %w", resp.StatusCode, err)
	}

	if !parsed.OK {
		c.logger.Warn("Telegram API error",
			zap.Int("status", resp.StatusCode),
			zap.String("description", parsed.Description))
		return 0, fmt.Errorf("telegram API: %s", parsed.Description)
	}

	if parsed.Result == nil {
		return 0, nil
	}
	return parsed.Result.MessageID, nil
}

var _ Messenger = (*Client)(nil)
