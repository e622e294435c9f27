package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/wacloud/internal/domain/models"
	service "github.com/mamadbah2/wacloud/internal/service/whatsapp"
)

// SignatureHeader carries the HMAC of webhook deliveries.
const SignatureHeader = "X-Hub-Signature-256"

const maxWebhookBody = 3 << 20

// WebhookHandler handles inbound and outbound WhatsApp HTTP events.
type WebhookHandler struct {
	svc    service.MessagingService
	logger *zap.Logger
}

// NewWebhookHandler constructs the HTTP handler adapter.
func NewWebhookHandler(svc service.MessagingService, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{svc: svc, logger: logger}
}

// Verify responds to Meta's webhook verification challenge.
func (h *WebhookHandler) Verify(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	resp, err := h.svc.VerifyWebhookToken(mode, token, challenge)
	if err != nil {
		h.logger.Warn("webhook verification failed", zap.Error(err))
		c.String(http.StatusForbidden, "verification failed")
		return
	}

	c.String(http.StatusOK, resp)
}

// Receive ingests webhook POST callbacks from Meta. Deliveries with a valid signature
// are always acknowledged; processing failures are reported by the dispatcher, since a
// non 2xx answer only makes Meta redeliver the same payload.
func (h *WebhookHandler) Receive(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil || len(body) == 0 {
		h.logger.Warn("unreadable webhook payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	if err := h.svc.VerifySignature(body, c.GetHeader(SignatureHeader)); err != nil {
		h.logger.Warn("webhook signature rejected", zap.Error(err))
		c.JSON(http.StatusForbidden, gin.H{"error": "invalid signature"})
		return
	}

	res := h.svc.HandleWebhook(c.Request.Context(), body)
	h.logger.Debug("webhook processed",
		zap.String("kind", string(res.Kind())),
		zap.Int("invoked", res.Invoked),
		zap.Int("failed", res.Failed),
		zap.Bool("skipped", res.Skipped))

	c.Status(http.StatusOK)
}

// SendMessage allows sending outbound automation or manual responses.
func (h *WebhookHandler) SendMessage(c *gin.Context) {
	var req models.OutboundMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid outbound payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.svc.SendOutbound(c.Request.Context(), req); err != nil {
		h.logger.Error("failed sending outbound", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "unable to send message"})
		return
	}

	c.Status(http.StatusAccepted)
}
