package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendPhoto(t *testing.T) {
	var gotPath string
	var gotChatID, gotCaption, gotParseMode string
	var gotPhoto []byte

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotChatID = r.FormValue("chat_id")
		gotCaption = r.FormValue("caption")
		gotParseMode = r.FormValue("parse_mode")

		file, _, err := r.FormFile("photo")
		require.NoError(t, err)
		defer file.Close()
		buf := make([]byte, 16)
		n, _ := file.Read(buf)
		gotPhoto = buf[:n]

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok": true, "result": {"message_id": 42}}`))
	}))
	defer server.Close()

	client := &Client{
		httpClient: http.DefaultClient,
		baseURL:    server.URL,
		token:      "123:abc",
	}

	err := client.SendPhoto(context.Background(), "-100987", "hello\\.", []byte{0x89, 'P', 'N', 'G'})
	require.NoError(t, err)

	assert.Equal(t, "/bot123:abc/sendPhoto", gotPath)
	assert.Equal(t, "-100987", gotChatID)
	assert.Equal(t, "hello\\.", gotCaption)
	assert.Equal(t, "MarkdownV2", gotParseMode)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, gotPhoto)
}

func TestSendPhotoAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"ok": false, "error_code": 400, "description": "Bad Request: can't parse entities"}`))
	}))
	defer server.Close()

	client := &Client{
		httpClient: http.DefaultClient,
		baseURL:    server.URL,
		token:      "123:abc",
	}

	err := client.SendPhoto(context.Background(), "-100987", "broken_caption", []byte("img"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "can't parse entities")
}
