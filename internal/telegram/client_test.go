// internal/telegram/client_test.go
package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newStubServer(t *testing.T, handler func(method string, body map[string]interface{}) (int, string)) (*httptest.Server, *Client) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		if r.Header.Get("Content-Type") == "application/json" {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		}

		status, resp := handler(r.URL.Path, body)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(resp))
	}))
	t.Cleanup(srv.Close)

	client := NewClientWithBase("test-token", srv.URL, zaptest.NewLogger(t))
	return srv, client
}

func TestSendText(t *testing.T) {
	_, client := newStubServer(t, func(path string, body map[string]interface{}) (int, string) {
		assert.Equal(t, "/bottest-token/sendMessage", path)
		assert.Equal(t, float64(-100), body["chat_id"])
		assert.Equal(t, "hello", body["text"])
		return http.StatusOK, `{"ok":true,"result":{"message_id":77}}`
	})

	messageID, err := client.SendText(context.Background(), -100, "hello")
	require.NoError(t, err)
	assert.Equal(t, int64(77), messageID)
}

func TestSendPhotoAndVideo(t *testing.T) {
	var gotPath string
	_, client := newStubServer(t, func(path string, body map[string]interface{}) (int, string) {
		gotPath = path
		return http.StatusOK, `{"ok":true,"result":{"message_id":5}}`
	})

	_, err := client.SendPhoto(context.Background(), -100, "file-id", "caption")
	require.NoError(t, err)
	assert.Equal(t, "/bottest-token/sendPhoto", gotPath)

	_, err = client.SendVideo(context.Background(), -100, "file-id", "caption")
	require.NoError(t, err)
	assert.Equal(t, "/bottest-token/sendVideo", gotPath)
}

func TestAPIErrorSurfaces(t *testing.T) {
	_, client := newStubServer(t, func(string, map[string]interface{}) (int, string) {
		return http.StatusForbidden, `{"ok":false,"description":"Forbidden: bot was kicked from the channel chat"}`
	})

	_, err := client.SendText(context.Background(), -100, "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bot was kicked")
}

func TestSendPhotoUpload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "42", r.FormValue("chat_id"))
		assert.Equal(t, "scan me", r.FormValue("caption"))

		file, header, err := r.FormFile("photo")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "qr.png", header.Filename)

		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":9}}`))
	}))
	t.Cleanup(srv.Close)

	client := NewClientWithBase("test-token", srv.URL, zaptest.NewLogger(t))
	messageID, err := client.SendPhotoUpload(context.Background(), 42, []byte{0x89, 'P', 'N', 'G'}, "scan me")
	require.NoError(t, err)
	assert.Equal(t, int64(9), messageID)
}

func TestEditMessageText(t *testing.T) {
	_, client := newStubServer(t, func(path string, body map[string]interface{}) (int, string) {
		assert.Equal(t, "/bottest-token/editMessageText", path)
		assert.Equal(t, float64(12), body["message_id"])
		return http.StatusOK, `{"ok":true,"result":{"message_id":12}}`
	})

	err := client.EditMessageText(context.Background(), -100, 12, "updated")
	require.NoError(t, err)
}
