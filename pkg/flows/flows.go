// Package flows implements the data exchange endpoint of WhatsApp Flows.
//
// Payload encryption is supplied by the caller through Decryptor and Encryptor; this
// package only models requests and responses and maps callback outcomes onto the status
// codes WhatsApp expects.
package flows

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Status codes understood by the WhatsApp client.
const (
	StatusCannotDecrypt      = 421
	StatusTokenInvalid       = 427
	StatusSignatureAuthError = 432
)

// ErrFlowTokenInvalid is matched by TokenInvalid errors.
var ErrFlowTokenInvalid = errors.New("flow token is no longer valid")

// ResponseError makes the endpoint answer with a specific status code.
type ResponseError struct {
	StatusCode int
	// Message is shown to the user when the flow token is invalid.
	Message string
}

func (e *ResponseError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("flow response error %d", e.StatusCode)
	}
	return fmt.Sprintf("flow response error %d: %s", e.StatusCode, e.Message)
}

func (e *ResponseError) Is(target error) bool {
	return target == ErrFlowTokenInvalid && e.StatusCode == StatusTokenInvalid
}

// TokenInvalid closes the flow and disables its button, showing message to the user.
func TokenInvalid(message string) *ResponseError {
	return &ResponseError{StatusCode: StatusTokenInvalid, Message: message}
}

// SignatureAuthFailed makes the client show a generic error.
func SignatureAuthFailed() *ResponseError {
	return &ResponseError{StatusCode: StatusSignatureAuthError}
}

// Action is what triggered a data exchange request.
type Action string

const (
	ActionPing         Action = "ping"
	ActionInit         Action = "INIT"
	ActionBack         Action = "BACK"
	ActionDataExchange Action = "data_exchange"
	ActionNavigate     Action = "navigate"
)

// EncryptedRequest is the body WhatsApp posts to the endpoint.
type EncryptedRequest struct {
	EncryptedFlowData string `json:"encrypted_flow_data" binding:"required"`
	EncryptedAESKey   string `json:"encrypted_aes_key" binding:"required"`
	InitialVector     string `json:"initial_vector" binding:"required"`
}

// Session holds what the decryptor recovered and the encryptor needs to answer.
type Session struct {
	AESKey []byte
	IV     []byte
}

// Decryptor recovers the plaintext JSON request.
type Decryptor interface {
	Decrypt(ctx context.Context, req EncryptedRequest) ([]byte, Session, error)
}

// Encryptor encrypts the plaintext JSON response, returning the body to send.
type Encryptor interface {
	Encrypt(ctx context.Context, plaintext []byte, session Session) (string, error)
}

// Request is a decrypted data exchange request. FlowToken and Screen are empty for
// health checks.
type Request struct {
	Version   string         `json:"version"`
	Action    Action         `json:"action"`
	FlowToken string         `json:"flow_token,omitempty"`
	Screen    string         `json:"screen,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// HasError reports whether the request notifies about a client side error.
func (r *Request) HasError() bool {
	if r.Data == nil {
		return false
	}
	_, hasMessage := r.Data["error_message"]
	_, hasKey := r.Data["error_key"]
	return hasMessage || hasKey
}

// IsHealthCheck reports whether the request is a ping.
func (r *Request) IsHealthCheck() bool {
	return r.Action == ActionPing
}

// Response tells WhatsApp which screen to show next, or closes the flow.
type Response struct {
	Version string
	Screen  string
	Data    map[string]any
	// ErrorMessage shows a snackbar on Screen. Not allowed when closing.
	ErrorMessage string
	// FlowToken is required when CloseFlow is set.
	FlowToken string
	CloseFlow bool
}

// Validate checks the screen and token combination.
func (r *Response) Validate() error {
	if !r.CloseFlow {
		if r.Screen == "" {
			return errors.New("screen is required unless the flow is closed")
		}
		return nil
	}
	switch {
	case r.FlowToken == "":
		return errors.New("flow token is required to close the flow")
	case r.Screen != "":
		return errors.New("screen must be empty when closing the flow")
	case r.ErrorMessage != "":
		return errors.New("error message is not supported when closing the flow")
	}
	return nil
}

// Payload returns the JSON document sent back to WhatsApp.
func (r *Response) Payload() (map[string]any, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	data := make(map[string]any, len(r.Data)+1)
	for k, v := range r.Data {
		data[k] = v
	}

	if !r.CloseFlow {
		if r.ErrorMessage != "" {
			data["error_message"] = r.ErrorMessage
		}
		return map[string]any{"version": r.Version, "screen": r.Screen, "data": data}, nil
	}

	data["flow_token"] = r.FlowToken
	return map[string]any{
		"version": r.Version,
		"screen":  "SUCCESS",
		"data": map[string]any{
			"extension_message_response": map[string]any{"params": data},
		},
	}, nil
}

// Result is what the HTTP adapter writes back.
type Result struct {
	StatusCode int
	Body       string
}

func plain(status int) Result {
	return Result{StatusCode: status, Body: http.StatusText(status)}
}
