package update

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	// FieldMessages is the webhook field carrying messages and statuses.
	FieldMessages = "messages"
	// FieldTemplateStatus is the webhook field carrying template review events.
	FieldTemplateStatus = "message_template_status_update"
)

var (
	// ErrMalformedUpdate is matched by every *MalformedUpdateError.
	ErrMalformedUpdate = errors.New("malformed update")
	// ErrUnsupportedField is matched by every *UnsupportedFieldError.
	ErrUnsupportedField = errors.New("unsupported webhook field")
)

// MalformedUpdateError reports a payload missing a structural field.
type MalformedUpdateError struct {
	Path string
	Err  error
}

func (e *MalformedUpdateError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed update at %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("malformed update: missing %s", e.Path)
}

func (e *MalformedUpdateError) Is(target error) bool { return target == ErrMalformedUpdate }

func (e *MalformedUpdateError) Unwrap() error { return e.Err }

func malformed(path string, err error) error {
	return &MalformedUpdateError{Path: path, Err: err}
}

// Parser turns webhook payloads into update variants.
type Parser struct {
	logger  *zap.Logger
	enums   enumParser
	actions Actions
}

// NewParser returns a parser logging unknown enum values to logger.
func NewParser(logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{logger: logger, enums: enumParser{logger: logger}}
}

// WithActions returns a copy of the parser that attaches actions to every update it
// builds, enabling Reply, React and MarkAsRead.
func (p *Parser) WithActions(actions Actions) *Parser {
	cp := *p
	cp.actions = actions
	return &cp
}

// Parse builds the update described by one webhook delivery. The result is one of
// *Message, *MessageStatus, *TemplateStatus, *CallbackButton, *CallbackSelection,
// *FlowCompletion or *ChatOpened.
func (p *Parser) Parse(raw []byte) (Update, error) {
	var payload webhookPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, malformed("payload", err)
	}
	if len(payload.Entry) == 0 {
		return nil, malformed("entry[0]", nil)
	}
	entry := payload.Entry[0]
	if len(entry.Changes) == 0 {
		return nil, malformed("entry[0].changes[0]", nil)
	}
	change := entry.Changes[0]
	if change.Value == nil {
		return nil, malformed("entry[0].changes[0].value", nil)
	}

	b := base{raw: append(json.RawMessage(nil), raw...), actions: p.actions}

	if change.Field == FieldTemplateStatus {
		return p.templateStatus(b, entry, *change.Value)
	}

	var value webhookValue
	if err := json.Unmarshal(*change.Value, &value); err != nil {
		return nil, malformed("entry[0].changes[0].value", err)
	}
	switch {
	case len(value.Messages) > 0:
		return p.message(b, &value)
	case len(value.Statuses) > 0:
		return p.status(b, &value)
	}
	return nil, unsupported(b, entry, change)
}

func unsupported(b base, entry webhookEntry, change webhookChange) error {
	b.id = entry.ID
	if entry.Time.set {
		b.timestamp = entry.Time.time()
	}
	return &UnsupportedFieldError{
		Field:   change.Field,
		Payload: &RawPayload{base: b, Field: change.Field, Value: *change.Value},
	}
}

func (p *Parser) message(b base, value *webhookValue) (Update, error) {
	msg := &value.Messages[0]
	if msg.ID == "" {
		return nil, malformed("messages[0].id", nil)
	}
	if msg.From == "" {
		return nil, malformed("messages[0].from", nil)
	}
	if !msg.Timestamp.set {
		return nil, malformed("messages[0].timestamp", nil)
	}
	b.id = msg.ID
	b.timestamp = msg.Timestamp.time()

	ub := userBase{
		base:     b,
		From:     sender(value.Contacts, msg.From),
		Metadata: metadata(value.Metadata),
		ReplyTo:  replyTo(msg.Context),
	}

	switch msg.Type {
	case string(MessageTypeInteractive):
		return p.interactive(ub, msg)
	case string(MessageTypeButton):
		if msg.Button == nil {
			return nil, malformed("messages[0].button", nil)
		}
		return &CallbackButton{
			userBase: ub,
			Type:     MessageTypeButton,
			Data:     msg.Button.Payload,
			Title:    msg.Button.Text,
		}, nil
	case string(MessageTypeRequestWelcome):
		return &ChatOpened{userBase: ub}, nil
	}
	return p.plainMessage(ub, msg)
}

func (p *Parser) interactive(ub userBase, msg *inboundMessage) (Update, error) {
	in := msg.Interactive
	if in == nil {
		return nil, malformed("messages[0].interactive", nil)
	}
	switch in.Type {
	case "button_reply":
		if in.ButtonReply == nil {
			return nil, malformed("messages[0].interactive.button_reply", nil)
		}
		return &CallbackButton{
			userBase: ub,
			Type:     MessageTypeInteractive,
			Data:     in.ButtonReply.ID,
			Title:    in.ButtonReply.Title,
		}, nil
	case "list_reply":
		if in.ListReply == nil {
			return nil, malformed("messages[0].interactive.list_reply", nil)
		}
		return &CallbackSelection{
			userBase:    ub,
			Data:        in.ListReply.ID,
			Title:       in.ListReply.Title,
			Description: in.ListReply.Description,
		}, nil
	case "nfm_reply":
		return p.flowCompletion(ub, in.NfmReply)
	case "":
		p.logger.Warn("interactive message without type, handling as message", zap.String("message_id", ub.id))
	default:
		p.logger.Warn("unknown interactive type, handling as message",
			zap.String("message_id", ub.id),
			zap.String("interactive_type", in.Type),
		)
	}
	return p.plainMessage(ub, msg)
}

func (p *Parser) flowCompletion(ub userBase, reply *wireFlowReply) (Update, error) {
	if reply == nil {
		return nil, malformed("messages[0].interactive.nfm_reply", nil)
	}
	response := map[string]any{}
	if reply.ResponseJSON != "" {
		if err := json.Unmarshal([]byte(reply.ResponseJSON), &response); err != nil {
			return nil, malformed("messages[0].interactive.nfm_reply.response_json", err)
		}
	}
	token, _ := response["flow_token"].(string)
	if token == "" {
		p.logger.Warn("flow completion without flow token", zap.String("message_id", ub.id))
	}
	return &FlowCompletion{
		userBase: ub,
		Body:     reply.Body,
		Token:    token,
		Response: response,
	}, nil
}

func (p *Parser) plainMessage(ub userBase, msg *inboundMessage) (Update, error) {
	m := &Message{
		userBase: ub,
		Type:     p.enums.messageType(msg.Type),
		RawType:  msg.Type,
		Errors:   statusErrors(msg.Errors),
	}
	if msg.Context != nil {
		m.Forwarded = msg.Context.Forwarded || msg.Context.FrequentlyForwarded
		m.ForwardedManyTimes = msg.Context.FrequentlyForwarded
	}

	var err error
	switch m.Type {
	case MessageTypeText:
		if msg.Text == nil {
			return nil, malformed("messages[0].text", nil)
		}
		m.Text = msg.Text.Body
	case MessageTypeImage:
		m.Image, err = media("image", msg.Image)
	case MessageTypeVideo:
		m.Video, err = media("video", msg.Video)
	case MessageTypeAudio:
		m.Audio, err = media("audio", msg.Audio)
	case MessageTypeDocument:
		m.Document, err = media("document", msg.Document)
	case MessageTypeSticker:
		m.Sticker, err = media("sticker", msg.Sticker)
	case MessageTypeReaction:
		if msg.Reaction == nil {
			return nil, malformed("messages[0].reaction", nil)
		}
		m.Reaction = &Reaction{MessageID: msg.Reaction.MessageID, Emoji: msg.Reaction.Emoji}
	case MessageTypeLocation:
		m.Location, err = location(msg.Location)
	case MessageTypeContacts:
		if len(msg.Contacts) == 0 {
			return nil, malformed("messages[0].contacts", nil)
		}
		m.Contacts = contacts(msg.Contacts)
	case MessageTypeOrder:
		m.Order, err = order(msg.Order)
	case MessageTypeSystem:
		if msg.System == nil {
			return nil, malformed("messages[0].system", nil)
		}
		m.System = &System{
			Type:     msg.System.Type,
			Body:     msg.System.Body,
			Identity: msg.System.Identity,
			WaID:     msg.System.WaID,
			NewWaID:  msg.System.NewWaID,
		}
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (p *Parser) status(b base, value *webhookValue) (Update, error) {
	st := &value.Statuses[0]
	if st.ID == "" {
		return nil, malformed("statuses[0].id", nil)
	}
	if !st.Timestamp.set {
		return nil, malformed("statuses[0].timestamp", nil)
	}
	b.id = st.ID
	b.timestamp = st.Timestamp.time()

	s := &MessageStatus{
		base:     b,
		From:     sender(value.Contacts, st.RecipientID),
		Metadata: metadata(value.Metadata),
		Status:   p.enums.status(st.Status),
	}
	if st.Conversation != nil {
		conv := &Conversation{
			ID:       st.Conversation.ID,
			Category: p.enums.category(st.Conversation.Origin.Type),
		}
		if st.Conversation.ExpirationTimestamp.set {
			exp := st.Conversation.ExpirationTimestamp.time()
			conv.Expiration = &exp
		}
		s.Conversation = conv
	}
	if st.Pricing != nil {
		s.PricingModel = st.Pricing.PricingModel
	}

	// Errors may be reported on the status itself or on the enclosing value.
	errs := st.Errors
	if len(errs) == 0 {
		errs = value.Errors
	}
	if len(errs) > 0 {
		s.Error = &statusErrors(errs[:1])[0]
	}
	return s, nil
}

func (p *Parser) templateStatus(b base, entry webhookEntry, rawValue json.RawMessage) (Update, error) {
	var value templateStatusValue
	if err := json.Unmarshal(rawValue, &value); err != nil {
		return nil, malformed("entry[0].changes[0].value", err)
	}
	if value.TemplateID == "" {
		return nil, malformed("value.message_template_id", nil)
	}
	if !entry.Time.set {
		return nil, malformed("entry[0].time", nil)
	}
	b.id = value.TemplateID.String()
	b.timestamp = entry.Time.time()

	return &TemplateStatus{
		base:         b,
		TemplateID:   value.TemplateID.String(),
		TemplateName: value.Name,
		Language:     value.Language,
		Event:        p.enums.templateEvent(value.Event),
		Reason:       p.enums.rejectionReason(value.Reason),
	}, nil
}

func (e epoch) time() time.Time {
	return time.Unix(e.seconds, 0).UTC()
}

func sender(contacts []wireContact, waID string) User {
	u := User{WaID: waID}
	for _, c := range contacts {
		if c.WaID == waID || len(contacts) == 1 {
			u.Name = c.Profile.Name
			break
		}
	}
	return u
}

func metadata(m *wireMetadata) Metadata {
	if m == nil {
		return Metadata{}
	}
	return Metadata{DisplayPhoneNumber: m.DisplayPhoneNumber, PhoneNumberID: m.PhoneNumberID}
}

func replyTo(ctx *wireContext) *ReplyToMessage {
	if ctx == nil || ctx.ID == "" {
		return nil
	}
	r := &ReplyToMessage{MessageID: ctx.ID, FromUserID: ctx.From}
	if ctx.ReferredProduct != nil {
		r.ReferredProduct = &ReferredProduct{
			CatalogID: ctx.ReferredProduct.CatalogID,
			SKU:       ctx.ReferredProduct.ProductRetailerID,
		}
	}
	return r
}

func media(kind string, w *wireMedia) (*Media, error) {
	if w == nil {
		return nil, malformed("messages[0]."+kind, nil)
	}
	m := &Media{
		ID:       w.ID,
		MimeType: w.MimeType,
		SHA256:   w.Sha256,
		Caption:  w.Caption,
		Filename: w.Filename,
		Voice:    w.Voice,
		Animated: w.Animated,
	}
	if w.FileSize != "" {
		size, err := w.FileSize.Int64()
		if err != nil {
			return nil, malformed("messages[0]."+kind+".file_size", err)
		}
		m.FileSize = size
	}
	return m, nil
}

func location(w *wireLocation) (*Location, error) {
	if w == nil || w.Latitude == nil || w.Longitude == nil {
		return nil, malformed("messages[0].location", nil)
	}
	return &Location{
		Latitude:  *w.Latitude,
		Longitude: *w.Longitude,
		Name:      w.Name,
		Address:   w.Address,
		URL:       w.URL,
	}, nil
}

func contacts(cards []wireCard) []Contact {
	out := make([]Contact, 0, len(cards))
	for _, card := range cards {
		c := Contact{
			FormattedName: card.Name.FormattedName,
			FirstName:     card.Name.FirstName,
			LastName:      card.Name.LastName,
			Birthday:      card.Birthday,
			Organization:  card.Org.Company,
		}
		for _, ph := range card.Phones {
			c.Phones = append(c.Phones, ContactPhone{Phone: ph.Phone, Type: ph.Type, WaID: ph.WaID})
		}
		for _, e := range card.Emails {
			c.Emails = append(c.Emails, e.Email)
		}
		for _, u := range card.URLs {
			c.URLs = append(c.URLs, u.URL)
		}
		out = append(out, c)
	}
	return out
}

func order(w *wireOrder) (*Order, error) {
	if w == nil {
		return nil, malformed("messages[0].order", nil)
	}
	o := &Order{CatalogID: w.CatalogID, Text: w.Text}
	for i, item := range w.ProductItems {
		qty, err := item.Quantity.Int64()
		if err != nil {
			return nil, malformed(fmt.Sprintf("messages[0].order.product_items[%d].quantity", i), err)
		}
		price, err := item.ItemPrice.Float64()
		if err != nil {
			return nil, malformed(fmt.Sprintf("messages[0].order.product_items[%d].item_price", i), err)
		}
		o.Products = append(o.Products, Product{
			SKU:      item.ProductRetailerID,
			Quantity: int(qty),
			Price:    price,
			Currency: item.Currency,
		})
	}
	return o, nil
}

func statusErrors(errs []wireError) []StatusError {
	if len(errs) == 0 {
		return nil
	}
	out := make([]StatusError, 0, len(errs))
	for _, e := range errs {
		out = append(out, StatusError{
			Code:    e.Code,
			Title:   e.Title,
			Message: e.Message,
			Details: e.ErrorData.Details,
		})
	}
	return out
}
