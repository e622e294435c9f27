package whatsapp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPhoneID = "106540352242922"

type capturedRequest struct {
	Method string
	Path   string
	Auth   string
	Body   map[string]any
}

func newTestClient(t *testing.T, status int, response string) (*APIClient, *capturedRequest) {
	t.Helper()
	captured := &capturedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.Method = r.Method
		captured.Path = r.URL.Path
		captured.Auth = r.Header.Get("Authorization")
		if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
			body, _ := io.ReadAll(r.Body)
			if len(body) > 0 {
				_ = json.Unmarshal(body, &captured.Body)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(srv.Close)

	client := NewClient(Config{
		AccessToken:   "secret",
		PhoneNumberID: testPhoneID,
		BaseURL:       srv.URL + "/",
		APIVersion:    "v20.0",
	})
	return client, captured
}

func TestSendTextBuildsPayload(t *testing.T) {
	client, captured := newTestClient(t, http.StatusOK, `{"messages":[{"id":"wamid.out"}]}`)

	id, err := client.SendText(context.Background(), SendTextMessageRequest{
		To:               "16505551234",
		Body:             "hello",
		ReplyToMessageID: "wamid.in",
	})
	require.NoError(t, err)
	assert.Equal(t, "wamid.out", id)

	assert.Equal(t, http.MethodPost, captured.Method)
	assert.Equal(t, "/v20.0/"+testPhoneID+"/messages", captured.Path)
	assert.Equal(t, "Bearer secret", captured.Auth)
	assert.Equal(t, "whatsapp", captured.Body["messaging_product"])
	assert.Equal(t, "individual", captured.Body["recipient_type"])
	assert.Equal(t, "text", captured.Body["type"])
	assert.Equal(t, map[string]any{"message_id": "wamid.in"}, captured.Body["context"])
	assert.Equal(t, map[string]any{"body": "hello", "preview_url": false}, captured.Body["text"])
}

func TestSendMediaPayload(t *testing.T) {
	client, captured := newTestClient(t, http.StatusOK, `{"messages":[{"id":"wamid.doc"}]}`)

	_, err := client.SendMedia(context.Background(), SendMediaRequest{
		To:       "16505551234",
		Type:     MediaDocument,
		Link:     "https://example.com/report.pdf",
		Caption:  "daily report",
		Filename: "report.pdf",
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"link":     "https://example.com/report.pdf",
		"caption":  "daily report",
		"filename": "report.pdf",
	}, captured.Body["document"])
	assert.NotContains(t, captured.Body, "context")

	_, err = client.SendMedia(context.Background(), SendMediaRequest{To: "1", Type: MediaImage})
	assert.Error(t, err)
}

func TestSendButtonsValidatesCount(t *testing.T) {
	client, captured := newTestClient(t, http.StatusOK, `{"messages":[{"id":"wamid.btn"}]}`)

	_, err := client.SendButtons(context.Background(), SendButtonsRequest{To: "1", Body: "pick"})
	assert.Error(t, err)

	_, err = client.SendButtons(context.Background(), SendButtonsRequest{
		To:      "1",
		Body:    "pick",
		Buttons: []Button{{ID: "yes", Title: "Yes"}, {ID: "no", Title: "No"}},
	})
	require.NoError(t, err)
	interactive := captured.Body["interactive"].(map[string]any)
	assert.Equal(t, "button", interactive["type"])
	assert.Len(t, interactive["action"].(map[string]any)["buttons"], 2)
}

func TestReactionAndMarkAsRead(t *testing.T) {
	client, captured := newTestClient(t, http.StatusOK, `{"messages":[{"id":"wamid.r"}]}`)

	_, err := client.RemoveReaction(context.Background(), "16505551234", "wamid.in")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"message_id": "wamid.in", "emoji": ""}, captured.Body["reaction"])

	client, captured = newTestClient(t, http.StatusOK, `{"success":true}`)
	ok, err := client.MarkAsRead(context.Background(), "wamid.in")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "read", captured.Body["status"])
	assert.Equal(t, "wamid.in", captured.Body["message_id"])
}

func TestRemoteAPIError(t *testing.T) {
	client, _ := newTestClient(t, http.StatusBadRequest, `{"error":{
		"message": "(#131030) Recipient phone number not in allowed list",
		"type": "OAuthException",
		"code": 131030,
		"error_subcode": 2494010,
		"fbtrace_id": "AbCdEf"
	}}`)

	_, err := client.SendText(context.Background(), SendTextMessageRequest{To: "1", Body: "x"})
	require.Error(t, err)

	var remote *RemoteAPIError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, http.StatusBadRequest, remote.StatusCode)
	assert.Equal(t, 131030, remote.Code)
	assert.Equal(t, 2494010, remote.Subcode)
	assert.Equal(t, "OAuthException", remote.Type)
	assert.Equal(t, "AbCdEf", remote.FBTraceID)
	assert.Contains(t, remote.Error(), "131030")
}

func TestSendTextEmptyResponse(t *testing.T) {
	client, _ := newTestClient(t, http.StatusOK, `{"messages":[]}`)

	_, err := client.SendText(context.Background(), SendTextMessageRequest{To: "1", Body: "x"})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestMediaEndpoints(t *testing.T) {
	client, captured := newTestClient(t, http.StatusOK, `{"id":"1003383421387256","url":"https://lookaside.example/x","mime_type":"image/jpeg","file_size":24050}`)

	media, err := client.GetMediaURL(context.Background(), "1003383421387256")
	require.NoError(t, err)
	assert.Equal(t, http.MethodGet, captured.Method)
	assert.Equal(t, "/v20.0/1003383421387256", captured.Path)
	assert.Equal(t, "https://lookaside.example/x", media.URL)
	assert.Equal(t, int64(24050), media.FileSize)

	client, captured = newTestClient(t, http.StatusOK, `{"id":"4490709327384033"}`)
	id, err := client.UploadMedia(context.Background(), "a.png", "image/png", strings.NewReader("png-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "4490709327384033", id)
	assert.Equal(t, "/v20.0/"+testPhoneID+"/media", captured.Path)
}

func TestDownloadMediaSendsToken(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte("binary"))
	}))
	defer srv.Close()

	client := NewClient(Config{AccessToken: "secret", PhoneNumberID: testPhoneID, BaseURL: "http://unused.invalid", APIVersion: "v20.0"})
	data, err := client.DownloadMedia(context.Background(), srv.URL+"/media/1")
	require.NoError(t, err)
	assert.Equal(t, []byte("binary"), data)
	assert.Equal(t, "Bearer secret", auth)
}

func TestNewClientDefaults(t *testing.T) {
	client := NewClient(Config{AccessToken: "secret", PhoneNumberID: testPhoneID})

	assert.Equal(t, DefaultBaseURL+"/"+DefaultAPIVersion, client.httpClient.BaseURL)
	assert.Equal(t, defaultTimeout, client.httpClient.GetClient().Timeout)
	assert.Equal(t, testPhoneID, client.PhoneNumberID())
}
