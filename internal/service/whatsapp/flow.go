package whatsapp

import (
	"context"

	"go.uber.org/zap"

	"github.com/mamadbah2/wacloud/pkg/flows"
)

// FlowStartScreen is the first screen of the bot's flow.
const FlowStartScreen = "START"

// FlowExchange answers data exchange requests of the bot's flow: opening or going back
// shows the start screen, submitting closes the flow with the submitted data.
func (s *MetaWhatsAppService) FlowExchange(_ context.Context, req *flows.Request) (*flows.Response, error) {
	s.logger.Debug("flow request",
		zap.String("action", string(req.Action)),
		zap.String("screen", req.Screen))

	if req.HasError() {
		s.logger.Warn("flow client error", zap.Any("data", req.Data))
		return nil, nil
	}

	switch req.Action {
	case flows.ActionInit, flows.ActionBack:
		return &flows.Response{
			Version: req.Version,
			Screen:  FlowStartScreen,
			Data:    map[string]any{"greeting": "Tell us about you"},
		}, nil
	case flows.ActionDataExchange, flows.ActionNavigate:
		if req.FlowToken == "" {
			return nil, flows.TokenInvalid("This form has expired. Please ask for a new one.")
		}
		return &flows.Response{
			Version:   req.Version,
			FlowToken: req.FlowToken,
			CloseFlow: true,
			Data:      req.Data,
		}, nil
	}
	return nil, flows.SignatureAuthFailed()
}
