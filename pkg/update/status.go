package update

// MessageStatus reports the delivery state of a message the business sent. From is the
// recipient of that message.
type MessageStatus struct {
	base

	From         User
	Metadata     Metadata
	Status       StatusType
	Conversation *Conversation
	PricingModel string
	// Error is set when Status is StatusFailed.
	Error *StatusError
}

func (s *MessageStatus) Kind() Kind              { return KindMessageStatus }
func (s *MessageStatus) Sender() User            { return s.From }
func (s *MessageStatus) PhoneMetadata() Metadata { return s.Metadata }

// TemplateStatus reports a review event on a message template.
type TemplateStatus struct {
	base

	TemplateID   string
	TemplateName string
	Language     string
	Event        TemplateEvent
	Reason       RejectionReason
}

func (t *TemplateStatus) Kind() Kind { return KindTemplateStatus }
