package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	messagingProduct = "whatsapp"

	DefaultBaseURL    = "https://graph.facebook.com"
	DefaultAPIVersion = "v20.0"
	defaultTimeout    = 15 * time.Second
)

// ErrEmptyResponse is returned when Meta accepts a request but returns no identifier.
var ErrEmptyResponse = errors.New("whatsapp api returned an empty response")

// Client exposes WhatsApp Cloud API operations used by the application.
type Client interface {
	SendText(ctx context.Context, req SendTextMessageRequest) (string, error)
	SendMedia(ctx context.Context, req SendMediaRequest) (string, error)
	SendButtons(ctx context.Context, req SendButtonsRequest) (string, error)
	SendReaction(ctx context.Context, req SendReactionRequest) (string, error)
	RemoveReaction(ctx context.Context, to, messageID string) (string, error)
	MarkAsRead(ctx context.Context, messageID string) (bool, error)
	GetMediaURL(ctx context.Context, mediaID string) (*MediaURL, error)
	DownloadMedia(ctx context.Context, url string) ([]byte, error)
	UploadMedia(ctx context.Context, filename, mimeType string, r io.Reader) (string, error)
}

// APIClient is a resty-backed implementation of Client.
type APIClient struct {
	httpClient    *resty.Client
	phoneNumberID string
}

var _ Client = (*APIClient)(nil)

// Config holds what the client needs to reach the Graph API. Empty BaseURL, APIVersion
// and Timeout fall back to the package defaults.
type Config struct {
	AccessToken   string
	PhoneNumberID string
	BaseURL       string
	APIVersion    string
	Timeout       time.Duration
}

// NewClient builds a WhatsApp API client using the provided configuration values.
func NewClient(cfg Config) *APIClient {
	base := strings.TrimSuffix(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	version := cfg.APIVersion
	if version == "" {
		version = DefaultAPIVersion
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	restyClient := resty.New()
	restyClient.
		SetBaseURL(fmt.Sprintf("%s/%s", base, version)).
		SetHeader("Authorization", fmt.Sprintf("Bearer %s", cfg.AccessToken)).
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout)

	return &APIClient{
		httpClient:    restyClient,
		phoneNumberID: cfg.PhoneNumberID,
	}
}

// PhoneNumberID returns the business phone number the client sends from.
func (c *APIClient) PhoneNumberID() string {
	return c.phoneNumberID
}

// SendTextMessageRequest represents a text message payload.
type SendTextMessageRequest struct {
	To         string
	Body       string
	PreviewURL bool
	// ReplyToMessageID quotes an earlier message when set.
	ReplyToMessageID string
}

// MediaType is the kind of media being sent.
type MediaType string

const (
	MediaImage    MediaType = "image"
	MediaVideo    MediaType = "video"
	MediaAudio    MediaType = "audio"
	MediaDocument MediaType = "document"
	MediaSticker  MediaType = "sticker"
)

// SendMediaRequest sends media either by uploaded ID or by public link.
type SendMediaRequest struct {
	To               string
	Type             MediaType
	ID               string
	Link             string
	Caption          string
	Filename         string
	ReplyToMessageID string
}

// Button is an interactive reply button.
type Button struct {
	ID    string
	Title string
}

// SendButtonsRequest sends an interactive message with up to three reply buttons.
type SendButtonsRequest struct {
	To               string
	Body             string
	Footer           string
	Buttons          []Button
	ReplyToMessageID string
}

// SendReactionRequest reacts to a message. An empty Emoji removes the reaction.
type SendReactionRequest struct {
	To        string
	MessageID string
	Emoji     string
}

// MediaURL is the short-lived download location of an uploaded media object.
type MediaURL struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
	SHA256   string `json:"sha256"`
	FileSize int64  `json:"file_size"`
}

// sendMessageResponse mirrors the successful response from Meta.
type sendMessageResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

type successResponse struct {
	Success bool `json:"success"`
}

type idResponse struct {
	ID string `json:"id"`
}

// apiError represents a WhatsApp Cloud API error payload.
type apiError struct {
	Error struct {
		Message      string `json:"message"`
		Type         string `json:"type"`
		Code         int    `json:"code"`
		ErrorData    any    `json:"error_data"`
		ErrorSubcode int    `json:"error_subcode"`
		FBTraceID    string `json:"fbtrace_id"`
	} `json:"error"`
}

// RemoteAPIError is returned when the Graph API answers with a non-2xx status.
type RemoteAPIError struct {
	StatusCode int
	Code       int
	Subcode    int
	Type       string
	Message    string
	FBTraceID  string
}

func (e *RemoteAPIError) Error() string {
	return fmt.Sprintf("whatsapp api error: status=%d, code=%d, message=%s", e.StatusCode, e.Code, e.Message)
}

func (c *APIClient) SendText(ctx context.Context, req SendTextMessageRequest) (string, error) {
	payload := c.messagePayload(req.To, "text", req.ReplyToMessageID)
	payload["text"] = map[string]any{
		"body":        req.Body,
		"preview_url": req.PreviewURL,
	}
	return c.sendMessage(ctx, "send text message", payload)
}

func (c *APIClient) SendMedia(ctx context.Context, req SendMediaRequest) (string, error) {
	if (req.ID == "") == (req.Link == "") {
		return "", errors.New("send media: exactly one of ID or Link must be set")
	}

	media := map[string]any{}
	if req.ID != "" {
		media["id"] = req.ID
	} else {
		media["link"] = req.Link
	}
	// Captions are rejected on audio and stickers, filenames on anything but documents.
	if req.Caption != "" && req.Type != MediaAudio && req.Type != MediaSticker {
		media["caption"] = req.Caption
	}
	if req.Filename != "" && req.Type == MediaDocument {
		media["filename"] = req.Filename
	}

	payload := c.messagePayload(req.To, string(req.Type), req.ReplyToMessageID)
	payload[string(req.Type)] = media
	return c.sendMessage(ctx, "send media message", payload)
}

func (c *APIClient) SendButtons(ctx context.Context, req SendButtonsRequest) (string, error) {
	if len(req.Buttons) == 0 || len(req.Buttons) > 3 {
		return "", fmt.Errorf("send buttons: expected 1 to 3 buttons, got %d", len(req.Buttons))
	}

	buttons := make([]map[string]any, 0, len(req.Buttons))
	for _, b := range req.Buttons {
		buttons = append(buttons, map[string]any{
			"type":  "reply",
			"reply": map[string]string{"id": b.ID, "title": b.Title},
		})
	}
	interactive := map[string]any{
		"type":   "button",
		"body":   map[string]string{"text": req.Body},
		"action": map[string]any{"buttons": buttons},
	}
	if req.Footer != "" {
		interactive["footer"] = map[string]string{"text": req.Footer}
	}

	payload := c.messagePayload(req.To, "interactive", req.ReplyToMessageID)
	payload["interactive"] = interactive
	return c.sendMessage(ctx, "send buttons message", payload)
}

func (c *APIClient) SendReaction(ctx context.Context, req SendReactionRequest) (string, error) {
	payload := c.messagePayload(req.To, "reaction", "")
	payload["reaction"] = map[string]string{
		"message_id": req.MessageID,
		"emoji":      req.Emoji,
	}
	return c.sendMessage(ctx, "send reaction", payload)
}

func (c *APIClient) RemoveReaction(ctx context.Context, to, messageID string) (string, error) {
	return c.SendReaction(ctx, SendReactionRequest{To: to, MessageID: messageID})
}

func (c *APIClient) MarkAsRead(ctx context.Context, messageID string) (bool, error) {
	payload := map[string]any{
		"messaging_product": messagingProduct,
		"status":            "read",
		"message_id":        messageID,
	}

	result := new(successResponse)
	apiErr := new(apiError)

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(payload).
		SetResult(result).
		SetError(apiErr).
		Post(fmt.Sprintf("%s/messages", c.phoneNumberID))
	if err != nil {
		return false, fmt.Errorf("mark message as read: %w", err)
	}
	if err := checkResponse(resp, apiErr); err != nil {
		return false, err
	}
	return result.Success, nil
}

func (c *APIClient) GetMediaURL(ctx context.Context, mediaID string) (*MediaURL, error) {
	result := new(MediaURL)
	apiErr := new(apiError)

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetResult(result).
		SetError(apiErr).
		Get(mediaID)
	if err != nil {
		return nil, fmt.Errorf("get media url: %w", err)
	}
	if err := checkResponse(resp, apiErr); err != nil {
		return nil, err
	}
	return result, nil
}

// DownloadMedia fetches the bytes behind a URL returned by GetMediaURL. The request
// carries the access token, which Meta requires.
func (c *APIClient) DownloadMedia(ctx context.Context, url string) ([]byte, error) {
	apiErr := new(apiError)

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetError(apiErr).
		Get(url)
	if err != nil {
		return nil, fmt.Errorf("download media: %w", err)
	}
	if err := checkResponse(resp, apiErr); err != nil {
		return nil, err
	}
	return resp.Body(), nil
}

// UploadMedia uploads a file and returns its media ID.
func (c *APIClient) UploadMedia(ctx context.Context, filename, mimeType string, r io.Reader) (string, error) {
	result := new(idResponse)
	apiErr := new(apiError)

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetFileReader("file", filename, r).
		SetFormData(map[string]string{
			"messaging_product": messagingProduct,
			"type":              mimeType,
		}).
		SetResult(result).
		SetError(apiErr).
		Post(fmt.Sprintf("%s/media", c.phoneNumberID))
	if err != nil {
		return "", fmt.Errorf("upload media: %w", err)
	}
	if err := checkResponse(resp, apiErr); err != nil {
		return "", err
	}
	if result.ID == "" {
		return "", ErrEmptyResponse
	}
	return result.ID, nil
}

func (c *APIClient) messagePayload(to, msgType, replyTo string) map[string]any {
	payload := map[string]any{
		"messaging_product": messagingProduct,
		"recipient_type":    "individual",
		"to":                to,
		"type":              msgType,
	}
	if replyTo != "" {
		payload["context"] = map[string]string{"message_id": replyTo}
	}
	return payload
}

func (c *APIClient) sendMessage(ctx context.Context, op string, payload map[string]any) (string, error) {
	result := new(sendMessageResponse)
	apiErr := new(apiError)

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(payload).
		SetResult(result).
		SetError(apiErr).
		Post(fmt.Sprintf("%s/messages", c.phoneNumberID))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if err := checkResponse(resp, apiErr); err != nil {
		return "", err
	}
	if len(result.Messages) == 0 || result.Messages[0].ID == "" {
		return "", fmt.Errorf("%s: %w", op, ErrEmptyResponse)
	}
	return result.Messages[0].ID, nil
}

func checkResponse(resp *resty.Response, apiErr *apiError) error {
	if resp.StatusCode() < http.StatusBadRequest {
		return nil
	}
	remote := &RemoteAPIError{
		StatusCode: resp.StatusCode(),
		Code:       resp.StatusCode(),
	}
	if apiErr != nil {
		remote.Message = apiErr.Error.Message
		remote.Type = apiErr.Error.Type
		remote.Subcode = apiErr.Error.ErrorSubcode
		remote.FBTraceID = apiErr.Error.FBTraceID
		if apiErr.Error.Code != 0 {
			remote.Code = apiErr.Error.Code
		}
	}
	if remote.Message == "" {
		remote.Message = http.StatusText(resp.StatusCode())
	}
	return remote
}
