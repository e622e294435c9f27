package whatsapp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/wacloud/internal/config"
	"github.com/mamadbah2/wacloud/pkg/flows"
)

func TestFlowExchange(t *testing.T) {
	svc := NewMetaWhatsAppService(config.WhatsAppConfig{}, nil, nil, nil)
	ctx := context.Background()

	resp, err := svc.FlowExchange(ctx, &flows.Request{Version: "3.0", Action: flows.ActionInit, FlowToken: "t"})
	require.NoError(t, err)
	assert.Equal(t, FlowStartScreen, resp.Screen)
	assert.NoError(t, resp.Validate())

	resp, err = svc.FlowExchange(ctx, &flows.Request{Version: "3.0", Action: flows.ActionDataExchange, FlowToken: "t", Data: map[string]any{"name": "Ada"}})
	require.NoError(t, err)
	assert.True(t, resp.CloseFlow)
	assert.Equal(t, "t", resp.FlowToken)
	assert.NoError(t, resp.Validate())

	_, err = svc.FlowExchange(ctx, &flows.Request{Version: "3.0", Action: flows.ActionDataExchange})
	assert.ErrorIs(t, err, flows.ErrFlowTokenInvalid)

	resp, err = svc.FlowExchange(ctx, &flows.Request{Version: "3.0", Action: flows.ActionDataExchange, FlowToken: "t", Data: map[string]any{"error_message": "x"}})
	assert.NoError(t, err)
	assert.Nil(t, resp)
}
