package update

// CallbackButton is sent when a user taps a reply button, either on an interactive
// message or on a template quick reply.
type CallbackButton struct {
	userBase

	Type  MessageType
	Data  string
	Title string
}

func (c *CallbackButton) Kind() Kind { return KindCallbackButton }

// CallbackSelection is sent when a user picks a row of a list message.
type CallbackSelection struct {
	userBase

	Data        string
	Title       string
	Description string
}

func (c *CallbackSelection) Kind() Kind { return KindCallbackSelection }

// FlowCompletion is sent when a user completes a WhatsApp Flow.
type FlowCompletion struct {
	userBase

	Body string
	// Token is the flow token; some clients omit it.
	Token    string
	Response map[string]any
}

func (f *FlowCompletion) Kind() Kind { return KindFlowCompletion }

// ChatOpened is sent the first time a user opens a chat with the business.
type ChatOpened struct {
	userBase
}

func (c *ChatOpened) Kind() Kind { return KindChatOpened }
