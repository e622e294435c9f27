package update

// Message is an inbound user message. Exactly one payload field is populated, chosen by
// Type; unsupported messages carry none and keep the wire type in RawType.
type Message struct {
	userBase

	Type    MessageType
	RawType string

	Text     string
	Image    *Media
	Video    *Media
	Audio    *Media
	Document *Media
	Sticker  *Media
	Reaction *Reaction
	Location *Location
	Contacts []Contact
	Order    *Order
	System   *System

	Forwarded          bool
	ForwardedManyTimes bool

	// Errors reported by WhatsApp for unsupported messages.
	Errors []StatusError
}

func (m *Message) Kind() Kind { return KindMessage }

// Media returns the media object of a media message, or nil.
func (m *Message) Media() *Media {
	switch m.Type {
	case MessageTypeImage:
		return m.Image
	case MessageTypeVideo:
		return m.Video
	case MessageTypeAudio:
		return m.Audio
	case MessageTypeDocument:
		return m.Document
	case MessageTypeSticker:
		return m.Sticker
	}
	return nil
}

// HasMedia reports whether the message carries a media object.
func (m *Message) HasMedia() bool {
	return m.Media() != nil
}

// Caption returns the caption of an image, video or document message.
func (m *Message) Caption() string {
	if media := m.Media(); media != nil {
		return media.Caption
	}
	return ""
}
