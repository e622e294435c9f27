// Package update models inbound WhatsApp Cloud API webhook notifications as a closed
// set of typed variants.
//
// Every variant is built exactly once per webhook delivery by Parser.Parse and is never
// modified afterwards. Handlers receive pointers to the same value, so they must treat
// it as read-only.
package update

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	client "github.com/mamadbah2/wacloud/pkg/clients/whatsapp"
)

// Kind discriminates update variants.
type Kind string

const (
	KindMessage           Kind = "message"
	KindMessageStatus     Kind = "message_status"
	KindTemplateStatus    Kind = "template_status"
	KindCallbackButton    Kind = "callback_button"
	KindCallbackSelection Kind = "callback_selection"
	KindFlowCompletion    Kind = "flow_completion"
	KindChatOpened        Kind = "chat_opened"
)

// Kinds lists every concrete variant kind in a stable order.
var Kinds = []Kind{
	KindMessage,
	KindMessageStatus,
	KindTemplateStatus,
	KindCallbackButton,
	KindCallbackSelection,
	KindFlowCompletion,
	KindChatOpened,
}

// ErrNoActions is returned by convenience actions when the update was parsed without an
// outbound client attached.
var ErrNoActions = errors.New("update has no outbound actions attached")

// Update is implemented by every variant in this package.
type Update interface {
	ID() string
	Timestamp() time.Time
	Raw() json.RawMessage
	Kind() Kind

	sealed()
}

// UserUpdate is an update originated by (or addressed to) a WhatsApp user.
type UserUpdate interface {
	Update
	Sender() User
	PhoneMetadata() Metadata
}

// Actions is the outbound facade updates use for their convenience methods.
// *client.APIClient implements it.
type Actions interface {
	SendText(ctx context.Context, req client.SendTextMessageRequest) (string, error)
	SendMedia(ctx context.Context, req client.SendMediaRequest) (string, error)
	SendReaction(ctx context.Context, req client.SendReactionRequest) (string, error)
	MarkAsRead(ctx context.Context, messageID string) (bool, error)
}

type base struct {
	id        string
	timestamp time.Time
	raw       json.RawMessage
	actions   Actions
}

func (b *base) ID() string           { return b.id }
func (b *base) Timestamp() time.Time { return b.timestamp }
func (b *base) Raw() json.RawMessage { return b.raw }
func (b *base) sealed()              {}

func (b *base) outbound() (Actions, error) {
	if b.actions == nil {
		return nil, ErrNoActions
	}
	return b.actions, nil
}

// userBase carries the fields shared by user-originated variants and implements the
// reply helpers on top of them.
type userBase struct {
	base
	From     User
	Metadata Metadata
	ReplyTo  *ReplyToMessage
}

func (u *userBase) Sender() User            { return u.From }
func (u *userBase) PhoneMetadata() Metadata { return u.Metadata }

// InReplyTo returns the message this update replies to, or nil.
func (u *userBase) InReplyTo() *ReplyToMessage { return u.ReplyTo }

// Reply sends a text message back to the sender. When quote is true the reply references
// this update's message.
func (u *userBase) Reply(ctx context.Context, text string, quote bool) (string, error) {
	actions, err := u.outbound()
	if err != nil {
		return "", err
	}
	req := client.SendTextMessageRequest{To: u.From.WaID, Body: text}
	if quote {
		req.ReplyToMessageID = u.id
	}
	return actions.SendText(ctx, req)
}

// ReplyMedia sends a media message back to the sender. The recipient is always the sender
// of this update regardless of req.To.
func (u *userBase) ReplyMedia(ctx context.Context, req client.SendMediaRequest) (string, error) {
	actions, err := u.outbound()
	if err != nil {
		return "", err
	}
	req.To = u.From.WaID
	return actions.SendMedia(ctx, req)
}

// React reacts to this update's message with the given emoji.
func (u *userBase) React(ctx context.Context, emoji string) (string, error) {
	actions, err := u.outbound()
	if err != nil {
		return "", err
	}
	return actions.SendReaction(ctx, client.SendReactionRequest{
		To:        u.From.WaID,
		MessageID: u.id,
		Emoji:     emoji,
	})
}

// Unreact removes a previously sent reaction.
func (u *userBase) Unreact(ctx context.Context) (string, error) {
	return u.React(ctx, "")
}

// MarkAsRead marks this update's message as read.
func (u *userBase) MarkAsRead(ctx context.Context) (bool, error) {
	actions, err := u.outbound()
	if err != nil {
		return false, err
	}
	return actions.MarkAsRead(ctx, u.id)
}
