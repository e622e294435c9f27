package flows

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// plainCodec passes JSON through untouched so assertions can read the responses.
type plainCodec struct{}

func (plainCodec) Decrypt(_ context.Context, req EncryptedRequest) ([]byte, Session, error) {
	if req.EncryptedAESKey == "rotated" {
		return nil, Session{}, errors.New("oaep decryption error")
	}
	return []byte(req.EncryptedFlowData), Session{AESKey: []byte(req.EncryptedAESKey)}, nil
}

func (plainCodec) Encrypt(_ context.Context, plaintext []byte, session Session) (string, error) {
	if string(session.AESKey) != "key" {
		return "", errors.New("unexpected session")
	}
	return string(plaintext), nil
}

func newEndpoint(t *testing.T, cb Callback) *Endpoint {
	t.Helper()
	e, err := NewEndpoint(EndpointConfig{
		Decryptor:         plainCodec{},
		Encryptor:         plainCodec{},
		Callback:          cb,
		HandleHealthCheck: true,
		AcknowledgeErrors: true,
	})
	require.NoError(t, err)
	return e
}

func request(body string) EncryptedRequest {
	return EncryptedRequest{EncryptedFlowData: body, EncryptedAESKey: "key", InitialVector: "iv"}
}

func decode(t *testing.T, body string) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(body), &out))
	return out
}

func TestNewEndpointRequiresCapabilities(t *testing.T) {
	_, err := NewEndpoint(EndpointConfig{Encryptor: plainCodec{}, Callback: func(context.Context, *Request) (*Response, error) { return nil, nil }})
	assert.Error(t, err)
	_, err = NewEndpoint(EndpointConfig{Decryptor: plainCodec{}, Encryptor: plainCodec{}})
	assert.Error(t, err)
}

func TestHandleNavigatesToScreen(t *testing.T) {
	var got *Request
	e := newEndpoint(t, func(_ context.Context, req *Request) (*Response, error) {
		got = req
		return &Response{Version: req.Version, Screen: "DETAILS", Data: map[string]any{"size": "M"}}, nil
	})

	res := e.Handle(context.Background(), request(`{"version":"3.0","action":"data_exchange","flow_token":"tok","screen":"START","data":{"q":1}}`))

	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "tok", got.FlowToken)
	assert.Equal(t, ActionDataExchange, got.Action)
	assert.Equal(t, map[string]any{
		"version": "3.0",
		"screen":  "DETAILS",
		"data":    map[string]any{"size": "M"},
	}, decode(t, res.Body))
}

func TestHandleClosesFlow(t *testing.T) {
	e := newEndpoint(t, func(_ context.Context, req *Request) (*Response, error) {
		return &Response{Version: req.Version, FlowToken: req.FlowToken, CloseFlow: true, Data: map[string]any{"ok": true}}, nil
	})

	res := e.Handle(context.Background(), request(`{"version":"3.0","action":"data_exchange","flow_token":"tok","screen":"LAST"}`))

	require.Equal(t, http.StatusOK, res.StatusCode)
	body := decode(t, res.Body)
	assert.Equal(t, "SUCCESS", body["screen"])
	params := body["data"].(map[string]any)["extension_message_response"].(map[string]any)["params"]
	assert.Equal(t, map[string]any{"flow_token": "tok", "ok": true}, params)
}

func TestHandleHealthCheck(t *testing.T) {
	called := false
	e := newEndpoint(t, func(context.Context, *Request) (*Response, error) {
		called = true
		return nil, nil
	})

	res := e.Handle(context.Background(), request(`{"version":"3.0","action":"ping"}`))

	assert.False(t, called)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, map[string]any{"version": "3.0", "data": map[string]any{"status": "active"}}, decode(t, res.Body))
}

func TestHandleErrorStatuses(t *testing.T) {
	tests := []struct {
		name     string
		payload  EncryptedRequest
		cb       Callback
		status   int
		errorMsg string
	}{
		{
			name:    "decryption failure",
			payload: EncryptedRequest{EncryptedFlowData: `{}`, EncryptedAESKey: "rotated"},
			status:  StatusCannotDecrypt,
		},
		{
			name:    "invalid plaintext",
			payload: request(`not json`),
			status:  http.StatusInternalServerError,
		},
		{
			name:     "token no longer valid",
			payload:  request(`{"version":"3.0","action":"INIT","flow_token":"old"}`),
			cb:       func(context.Context, *Request) (*Response, error) { return nil, TokenInvalid("The order has already been placed") },
			status:   StatusTokenInvalid,
			errorMsg: "The order has already been placed",
		},
		{
			name:    "signature failure",
			payload: request(`{"version":"3.0","action":"INIT"}`),
			cb:      func(context.Context, *Request) (*Response, error) { return nil, SignatureAuthFailed() },
			status:  StatusSignatureAuthError,
		},
		{
			name:    "callback error",
			payload: request(`{"version":"3.0","action":"INIT"}`),
			cb:      func(context.Context, *Request) (*Response, error) { return nil, errors.New("db down") },
			status:  http.StatusInternalServerError,
		},
		{
			name:    "callback panic",
			payload: request(`{"version":"3.0","action":"INIT"}`),
			cb:      func(context.Context, *Request) (*Response, error) { panic("boom") },
			status:  http.StatusInternalServerError,
		},
		{
			name:    "invalid response",
			payload: request(`{"version":"3.0","action":"INIT"}`),
			cb:      func(context.Context, *Request) (*Response, error) { return &Response{Version: "3.0"}, nil },
			status:  http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb := tt.cb
			if cb == nil {
				cb = func(context.Context, *Request) (*Response, error) { return nil, nil }
			}
			res := newEndpoint(t, cb).Handle(context.Background(), tt.payload)

			assert.Equal(t, tt.status, res.StatusCode)
			if tt.errorMsg != "" {
				assert.Equal(t, map[string]any{"error_msg": tt.errorMsg}, decode(t, res.Body))
			}
		})
	}
}

func TestHandleAcknowledgesClientErrors(t *testing.T) {
	called := false
	e := newEndpoint(t, func(context.Context, *Request) (*Response, error) {
		called = true
		return nil, nil
	})

	res := e.Handle(context.Background(), request(`{"version":"3.0","action":"data_exchange","flow_token":"t","data":{"error_key":"e","error_message":"m"}}`))

	assert.True(t, called)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, true, decode(t, res.Body)["data"].(map[string]any)["acknowledged"])
}

func TestTokenInvalidMatchesSentinel(t *testing.T) {
	assert.ErrorIs(t, TokenInvalid("gone"), ErrFlowTokenInvalid)
	assert.NotErrorIs(t, SignatureAuthFailed(), ErrFlowTokenInvalid)
}
