package flows

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// Callback answers one data exchange request.
type Callback func(ctx context.Context, req *Request) (*Response, error)

// EndpointConfig configures an Endpoint.
type EndpointConfig struct {
	Decryptor Decryptor
	Encryptor Encryptor
	Callback  Callback
	Logger    *zap.Logger
	// HandleHealthCheck answers pings without calling Callback.
	HandleHealthCheck bool
	// AcknowledgeErrors answers client error notifications with an acknowledgement
	// after Callback ran, ignoring its response.
	AcknowledgeErrors bool
}

// Endpoint processes encrypted data exchange requests.
type Endpoint struct {
	cfg    EndpointConfig
	logger *zap.Logger
}

func NewEndpoint(cfg EndpointConfig) (*Endpoint, error) {
	switch {
	case cfg.Decryptor == nil:
		return nil, errors.New("flows: decryptor is required")
	case cfg.Encryptor == nil:
		return nil, errors.New("flows: encryptor is required")
	case cfg.Callback == nil:
		return nil, errors.New("flows: callback is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Endpoint{cfg: cfg, logger: logger}, nil
}

// Handle decrypts the request, runs the callback and returns the encrypted answer.
func (e *Endpoint) Handle(ctx context.Context, payload EncryptedRequest) Result {
	plaintext, session, err := e.cfg.Decryptor.Decrypt(ctx, payload)
	if err != nil {
		e.logger.Error("flow request decryption failed", zap.Error(err))
		return Result{StatusCode: StatusCannotDecrypt, Body: "Decryption failed"}
	}

	req := new(Request)
	if err := json.Unmarshal(plaintext, req); err != nil || req.Version == "" || req.Action == "" {
		if err == nil {
			err = errors.New("missing version or action")
		}
		e.logger.Error("invalid flow request", zap.Error(err))
		return plain(http.StatusInternalServerError)
	}

	if e.cfg.HandleHealthCheck && req.IsHealthCheck() {
		return e.encrypt(ctx, session, http.StatusOK, map[string]any{
			"version": req.Version,
			"data":    map[string]any{"status": "active"},
		})
	}

	resp, err := e.call(ctx, req)
	if err != nil {
		var respErr *ResponseError
		if errors.As(err, &respErr) {
			if respErr.StatusCode == StatusTokenInvalid {
				return e.encrypt(ctx, session, StatusTokenInvalid, map[string]any{"error_msg": respErr.Message})
			}
			return plain(respErr.StatusCode)
		}
		e.logger.Error("flow callback failed",
			zap.String("action", string(req.Action)),
			zap.String("screen", req.Screen),
			zap.Error(err),
		)
		return plain(http.StatusInternalServerError)
	}

	if e.cfg.AcknowledgeErrors && req.HasError() {
		return e.encrypt(ctx, session, http.StatusOK, map[string]any{
			"version": req.Version,
			"data":    map[string]any{"acknowledged": true},
		})
	}

	if resp == nil {
		e.logger.Error("flow callback returned no response", zap.String("action", string(req.Action)))
		return plain(http.StatusInternalServerError)
	}
	body, err := resp.Payload()
	if err != nil {
		e.logger.Error("invalid flow response", zap.Error(err))
		return plain(http.StatusInternalServerError)
	}
	return e.encrypt(ctx, session, http.StatusOK, body)
}

func (e *Endpoint) call(ctx context.Context, req *Request) (resp *Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("flow callback panic: %v", r)
		}
	}()
	return e.cfg.Callback(ctx, req)
}

func (e *Endpoint) encrypt(ctx context.Context, session Session, status int, body any) Result {
	plaintext, err := json.Marshal(body)
	if err != nil {
		e.logger.Error("marshal flow response", zap.Error(err))
		return plain(http.StatusInternalServerError)
	}
	encrypted, err := e.cfg.Encryptor.Encrypt(ctx, plaintext, session)
	if err != nil {
		e.logger.Error("flow response encryption failed", zap.Error(err))
		return plain(http.StatusInternalServerError)
	}
	return Result{StatusCode: status, Body: encrypted}
}
