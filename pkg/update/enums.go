package update

import "go.uber.org/zap"

// MessageType is the wire type of an inbound message.
type MessageType string

const (
	MessageTypeText           MessageType = "text"
	MessageTypeImage          MessageType = "image"
	MessageTypeVideo          MessageType = "video"
	MessageTypeAudio          MessageType = "audio"
	MessageTypeDocument       MessageType = "document"
	MessageTypeSticker        MessageType = "sticker"
	MessageTypeReaction       MessageType = "reaction"
	MessageTypeLocation       MessageType = "location"
	MessageTypeContacts       MessageType = "contacts"
	MessageTypeOrder          MessageType = "order"
	MessageTypeSystem         MessageType = "system"
	MessageTypeInteractive    MessageType = "interactive"
	MessageTypeButton         MessageType = "button"
	MessageTypeRequestWelcome MessageType = "request_welcome"
	MessageTypeUnsupported    MessageType = "unsupported"
)

var messageTypes = map[string]MessageType{}

func init() {
	for _, t := range []MessageType{
		MessageTypeText, MessageTypeImage, MessageTypeVideo, MessageTypeAudio,
		MessageTypeDocument, MessageTypeSticker, MessageTypeReaction, MessageTypeLocation,
		MessageTypeContacts, MessageTypeOrder, MessageTypeSystem, MessageTypeInteractive,
		MessageTypeButton, MessageTypeRequestWelcome, MessageTypeUnsupported,
	} {
		messageTypes[string(t)] = t
	}
}

// IsMedia reports whether messages of this type carry a downloadable media object.
func (t MessageType) IsMedia() bool {
	switch t {
	case MessageTypeImage, MessageTypeVideo, MessageTypeAudio, MessageTypeDocument, MessageTypeSticker:
		return true
	}
	return false
}

// StatusType is the delivery state reported by a status notification.
type StatusType string

const (
	StatusSent      StatusType = "sent"
	StatusDelivered StatusType = "delivered"
	StatusRead      StatusType = "read"
	StatusFailed    StatusType = "failed"
	StatusUnknown   StatusType = "unknown"
)

// ConversationCategory is the pricing category of a conversation.
type ConversationCategory string

const (
	CategoryAuthentication     ConversationCategory = "authentication"
	CategoryMarketing          ConversationCategory = "marketing"
	CategoryUtility            ConversationCategory = "utility"
	CategoryService            ConversationCategory = "service"
	CategoryReferralConversion ConversationCategory = "referral_conversion"
	CategoryUnknown            ConversationCategory = "unknown"
)

// TemplateEvent is the review outcome of a message template.
type TemplateEvent string

const (
	TemplateEventApproved        TemplateEvent = "APPROVED"
	TemplateEventDisabled        TemplateEvent = "DISABLED"
	TemplateEventInAppeal        TemplateEvent = "IN_APPEAL"
	TemplateEventPending         TemplateEvent = "PENDING"
	TemplateEventReinstated      TemplateEvent = "REINSTATED"
	TemplateEventRejected        TemplateEvent = "REJECTED"
	TemplateEventPendingDeletion TemplateEvent = "PENDING_DELETION"
	TemplateEventFlagged         TemplateEvent = "FLAGGED"
	TemplateEventPaused          TemplateEvent = "PAUSED"
	TemplateEventLimitExceeded   TemplateEvent = "LIMIT_EXCEEDED"
	TemplateEventUnknown         TemplateEvent = "UNKNOWN"
)

// RejectionReason explains why a template was rejected.
type RejectionReason string

const (
	RejectionReasonAbusiveContent     RejectionReason = "ABUSIVE_CONTENT"
	RejectionReasonIncorrectCategory  RejectionReason = "INCORRECT_CATEGORY"
	RejectionReasonInvalidFormat      RejectionReason = "INVALID_FORMAT"
	RejectionReasonNone               RejectionReason = "NONE"
	RejectionReasonScam               RejectionReason = "SCAM"
	RejectionReasonPromotional        RejectionReason = "PROMOTIONAL"
	RejectionReasonTagContentMismatch RejectionReason = "TAG_CONTENT_MISMATCH"
	RejectionReasonUnknown            RejectionReason = "UNKNOWN"
)

// enumParser maps wire strings onto enum members. Unknown strings are logged at warn
// level and mapped to the sentinel member.
type enumParser struct {
	logger *zap.Logger
}

func (p enumParser) messageType(value string) MessageType {
	if t, ok := messageTypes[value]; ok {
		return t
	}
	p.logger.Warn("unknown message type, mapping to unsupported", zap.String("value", value))
	return MessageTypeUnsupported
}

func (p enumParser) status(value string) StatusType {
	switch s := StatusType(value); s {
	case StatusSent, StatusDelivered, StatusRead, StatusFailed:
		return s
	}
	p.logger.Warn("unknown message status", zap.String("value", value))
	return StatusUnknown
}

func (p enumParser) category(value string) ConversationCategory {
	switch c := ConversationCategory(value); c {
	case CategoryAuthentication, CategoryMarketing, CategoryUtility, CategoryService, CategoryReferralConversion:
		return c
	}
	p.logger.Warn("unknown conversation category", zap.String("value", value))
	return CategoryUnknown
}

func (p enumParser) templateEvent(value string) TemplateEvent {
	switch e := TemplateEvent(value); e {
	case TemplateEventApproved, TemplateEventDisabled, TemplateEventInAppeal, TemplateEventPending,
		TemplateEventReinstated, TemplateEventRejected, TemplateEventPendingDeletion,
		TemplateEventFlagged, TemplateEventPaused, TemplateEventLimitExceeded:
		return e
	}
	p.logger.Warn("unknown template event", zap.String("value", value))
	return TemplateEventUnknown
}

func (p enumParser) rejectionReason(value string) RejectionReason {
	if value == "" {
		return RejectionReasonNone
	}
	switch r := RejectionReason(value); r {
	case RejectionReasonAbusiveContent, RejectionReasonIncorrectCategory, RejectionReasonInvalidFormat,
		RejectionReasonNone, RejectionReasonScam, RejectionReasonPromotional,
		RejectionReasonTagContentMismatch:
		return r
	}
	p.logger.Warn("unknown template rejection reason", zap.String("value", value))
	return RejectionReasonUnknown
}
