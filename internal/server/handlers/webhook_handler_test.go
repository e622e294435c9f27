package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/wacloud/internal/domain/models"
	"github.com/mamadbah2/wacloud/pkg/dispatcher"
	"github.com/mamadbah2/wacloud/pkg/flows"
)

type fakeService struct {
	signatureErr error
	sendErr      error
	bodies       []string
	signatures   []string
	sent         []models.OutboundMessageRequest
}

func (f *fakeService) VerifyWebhookToken(mode, token, challenge string) (string, error) {
	if mode != "subscribe" || token != "verify" {
		return "", errors.New("invalid verify token")
	}
	return challenge, nil
}

func (f *fakeService) VerifySignature(body []byte, signature string) error {
	f.signatures = append(f.signatures, signature)
	return f.signatureErr
}

func (f *fakeService) HandleWebhook(_ context.Context, raw []byte) dispatcher.DispatchResult {
	f.bodies = append(f.bodies, string(raw))
	return dispatcher.DispatchResult{Failed: 1}
}

func (f *fakeService) SendOutbound(_ context.Context, req models.OutboundMessageRequest) error {
	f.sent = append(f.sent, req)
	return f.sendErr
}

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(engine *gin.Engine, method, target, body string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func webhookEngine(svc *fakeService) *gin.Engine {
	h := NewWebhookHandler(svc, nil)
	r := gin.New()
	r.GET("/webhook", h.Verify)
	r.POST("/webhook", h.Receive)
	r.POST("/send-message", h.SendMessage)
	return r
}

func TestVerify(t *testing.T) {
	r := webhookEngine(&fakeService{})

	w := serve(r, http.MethodGet, "/webhook?hub.mode=subscribe&hub.verify_token=verify&hub.challenge=1158201444", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1158201444", w.Body.String())

	w = serve(r, http.MethodGet, "/webhook?hub.mode=subscribe&hub.verify_token=nope&hub.challenge=1", "", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestReceiveAcknowledgesEvenOnHandlerFailure(t *testing.T) {
	svc := &fakeService{}
	r := webhookEngine(svc)

	w := serve(r, http.MethodPost, "/webhook", `{"entry":[]}`, http.Header{SignatureHeader: {"sha256=abc"}})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{`{"entry":[]}`}, svc.bodies)
	assert.Equal(t, []string{"sha256=abc"}, svc.signatures)
}

func TestReceiveRejects(t *testing.T) {
	svc := &fakeService{signatureErr: errors.New("invalid webhook signature")}
	r := webhookEngine(svc)

	w := serve(r, http.MethodPost, "/webhook", `{"entry":[]}`, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = serve(r, http.MethodPost, "/webhook", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Empty(t, svc.bodies)
}

func TestSendMessage(t *testing.T) {
	svc := &fakeService{}
	r := webhookEngine(svc)

	w := serve(r, http.MethodPost, "/send-message", `{"to":"16505551234","message":"hi"}`, nil)
	assert.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, svc.sent, 1)
	assert.Equal(t, "16505551234", svc.sent[0].To)

	w = serve(r, http.MethodPost, "/send-message", `{"to":"1"}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	svc.sendErr = errors.New("meta down")
	w = serve(r, http.MethodPost, "/send-message", `{"to":"1","message":"x"}`, nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

type plainCodec struct{}

func (plainCodec) Decrypt(_ context.Context, req flows.EncryptedRequest) ([]byte, flows.Session, error) {
	if req.EncryptedAESKey == "bad" {
		return nil, flows.Session{}, errors.New("cannot decrypt")
	}
	return []byte(req.EncryptedFlowData), flows.Session{}, nil
}

func (plainCodec) Encrypt(_ context.Context, plaintext []byte, _ flows.Session) (string, error) {
	return string(plaintext), nil
}

func TestFlowExchange(t *testing.T) {
	endpoint, err := flows.NewEndpoint(flows.EndpointConfig{
		Decryptor:         plainCodec{},
		Encryptor:         plainCodec{},
		HandleHealthCheck: true,
		Callback: func(_ context.Context, req *flows.Request) (*flows.Response, error) {
			return &flows.Response{Version: req.Version, Screen: "NEXT"}, nil
		},
	})
	require.NoError(t, err)
	r := gin.New()
	r.POST("/flow", NewFlowHandler(endpoint, nil).Exchange)

	body := `{"encrypted_flow_data":"{\"version\":\"3.0\",\"action\":\"INIT\"}","encrypted_aes_key":"k","initial_vector":"iv"}`
	w := serve(r, http.MethodPost, "/flow", body, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"version":"3.0","screen":"NEXT","data":{}}`, w.Body.String())

	w = serve(r, http.MethodPost, "/flow", `{"encrypted_flow_data":"x","encrypted_aes_key":"bad","initial_vector":"iv"}`, nil)
	assert.Equal(t, flows.StatusCannotDecrypt, w.Code)

	w = serve(r, http.MethodPost, "/flow", `{"encrypted_flow_data":"x"}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
