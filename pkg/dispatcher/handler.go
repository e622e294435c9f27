package dispatcher

import (
	"context"
	"errors"

	"github.com/mamadbah2/wacloud/pkg/filters"
	"github.com/mamadbah2/wacloud/pkg/update"
)

// KindRaw is the reserved kind of handlers invoked for every well-formed delivery.
const KindRaw update.Kind = "raw"

// ErrStopHandling, returned (or wrapped) by a callback, ends the chain for the current
// update. It is not reported as a failure.
var ErrStopHandling = errors.New("stop handling")

// HandlerFunc is the untyped callback signature stored in the registry.
type HandlerFunc func(ctx context.Context, u update.Update) error

// Handler binds a callback to one update kind behind an optional filter.
type Handler struct {
	Kind     update.Kind
	Filter   filters.Filter
	Callback HandlerFunc
	// Name identifies the handler in logs. Optional.
	Name string
}

func (h Handler) matches(u update.Update) bool {
	return h.Filter == nil || h.Filter(u)
}

func typed[T update.Update](kind update.Kind, fn func(context.Context, T) error, fs []filters.Filter) Handler {
	h := Handler{
		Kind: kind,
		Callback: func(ctx context.Context, u update.Update) error {
			v, ok := u.(T)
			if !ok {
				return nil
			}
			return fn(ctx, v)
		},
	}
	if len(fs) > 0 {
		h.Filter = filters.All(fs...)
	}
	return h
}

// OnMessage handles messages matching every filter.
func OnMessage(fn func(context.Context, *update.Message) error, fs ...filters.Filter) Handler {
	return typed(update.KindMessage, fn, fs)
}

func OnMessageStatus(fn func(context.Context, *update.MessageStatus) error, fs ...filters.Filter) Handler {
	return typed(update.KindMessageStatus, fn, fs)
}

func OnTemplateStatus(fn func(context.Context, *update.TemplateStatus) error, fs ...filters.Filter) Handler {
	return typed(update.KindTemplateStatus, fn, fs)
}

func OnCallbackButton(fn func(context.Context, *update.CallbackButton) error, fs ...filters.Filter) Handler {
	return typed(update.KindCallbackButton, fn, fs)
}

func OnCallbackSelection(fn func(context.Context, *update.CallbackSelection) error, fs ...filters.Filter) Handler {
	return typed(update.KindCallbackSelection, fn, fs)
}

func OnFlowCompletion(fn func(context.Context, *update.FlowCompletion) error, fs ...filters.Filter) Handler {
	return typed(update.KindFlowCompletion, fn, fs)
}

func OnChatOpened(fn func(context.Context, *update.ChatOpened) error, fs ...filters.Filter) Handler {
	return typed(update.KindChatOpened, fn, fs)
}

// OnRaw handles every well-formed delivery regardless of its kind, including
// *update.RawPayload for fields no variant models. Raw handlers run after the typed chain,
// in their own chain.
func OnRaw(fn HandlerFunc, fs ...filters.Filter) Handler {
	h := Handler{Kind: KindRaw, Callback: fn}
	if len(fs) > 0 {
		h.Filter = filters.All(fs...)
	}
	return h
}

// Named returns a copy of h with its log name set.
func (h Handler) Named(name string) Handler {
	h.Name = name
	return h
}
