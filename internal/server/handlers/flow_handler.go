package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/wacloud/pkg/flows"
)

// FlowHandler serves the WhatsApp Flows data exchange endpoint.
type FlowHandler struct {
	endpoint *flows.Endpoint
	logger   *zap.Logger
}

func NewFlowHandler(endpoint *flows.Endpoint, logger *zap.Logger) *FlowHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FlowHandler{endpoint: endpoint, logger: logger}
}

// Exchange decrypts the request, runs the flow callback and writes the encrypted answer
// as plain text, as WhatsApp expects.
func (h *FlowHandler) Exchange(c *gin.Context) {
	var req flows.EncryptedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid flow payload", zap.Error(err))
		c.String(http.StatusBadRequest, "invalid payload")
		return
	}

	res := h.endpoint.Handle(c.Request.Context(), req)
	c.String(res.StatusCode, res.Body)
}
