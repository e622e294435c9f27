// Package dispatcher routes parsed webhook updates to registered handlers.
//
// A dispatch parses one payload, runs the handlers registered for the update's kind in
// registration order, then runs the raw handlers. Raw handlers also see updates skipped by
// the phone number filter and, as *update.RawPayload, webhook fields no variant models. A callback returning ErrStopHandling
// ends its chain. Any other error, or a panic, is reported and the next handler still
// runs. Nothing escapes Dispatch.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/mamadbah2/wacloud/pkg/update"
)

const tracerName = "github.com/mamadbah2/wacloud/pkg/dispatcher"

// Stage says where a reported failure happened.
type Stage string

const (
	StageParse      Stage = "parse"
	StageHandler    Stage = "handler"
	StageRawHandler Stage = "raw_handler"
)

// ErrorReporter receives failures contained at the dispatch boundary.
type ErrorReporter interface {
	Report(ctx context.Context, stage Stage, err error)
}

// ZapReporter logs failures at error level.
type ZapReporter struct {
	Logger *zap.Logger
}

func (r ZapReporter) Report(_ context.Context, stage Stage, err error) {
	r.Logger.Error("dispatch failure", zap.String("stage", string(stage)), zap.Error(err))
}

// HandlerError wraps a callback failure with the handler that produced it.
type HandlerError struct {
	Kind    update.Kind
	Handler string
	Err     error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler %s for %s: %v", e.Handler, e.Kind, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }

// PanicError is the failure recorded when a filter or callback panics.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// DispatchResult summarizes one dispatch.
type DispatchResult struct {
	Update update.Update
	// Err is the parse error, if any. Handler failures are counted in Failed.
	Err     error
	Skipped bool
	Matched int
	Invoked int
	Failed  int
	Stopped bool
}

// Kind returns the kind of the dispatched update, or "" when parsing failed.
func (r DispatchResult) Kind() update.Kind {
	if r.Update == nil {
		return ""
	}
	return r.Update.Kind()
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithErrorReporter replaces the default zap reporter.
func WithErrorReporter(reporter ErrorReporter) Option {
	return func(d *Dispatcher) {
		if reporter != nil {
			d.reporter = reporter
		}
	}
}

// WithPhoneNumberID keeps typed handlers away from user updates received by any other
// business number. Raw handlers still run.
func WithPhoneNumberID(id string) Option {
	return func(d *Dispatcher) { d.phoneNumberID = id }
}

// WithTracerProvider sets the provider spans are created from. The global provider is
// used otherwise.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(d *Dispatcher) { d.tracer = tp.Tracer(tracerName) }
}

// Dispatcher parses webhook payloads and runs the matching handlers.
type Dispatcher struct {
	parser        *update.Parser
	registry      *Registry
	logger        *zap.Logger
	reporter      ErrorReporter
	phoneNumberID string
	tracer        trace.Tracer
}

func New(parser *update.Parser, registry *Registry, logger *zap.Logger, opts ...Option) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if parser == nil {
		parser = update.NewParser(logger)
	}
	if registry == nil {
		registry = NewRegistry()
	}
	d := &Dispatcher{
		parser:   parser,
		registry: registry,
		logger:   logger,
		reporter: ZapReporter{Logger: logger},
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Registry returns the registry handlers are read from.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Dispatch processes one webhook payload. It never fails and never panics.
func (d *Dispatcher) Dispatch(ctx context.Context, raw []byte) {
	_ = d.Process(ctx, raw)
}

// Process is Dispatch returning what happened.
func (d *Dispatcher) Process(ctx context.Context, raw []byte) DispatchResult {
	ctx, span := d.tracer.Start(ctx, "whatsapp.dispatch")
	defer span.End()

	u, err := d.parser.Parse(raw)
	if err != nil {
		res := DispatchResult{Err: err}
		var fieldErr *update.UnsupportedFieldError
		if errors.As(err, &fieldErr) {
			d.logger.Debug("webhook field without a typed update, running raw handlers only", zap.Error(err))
			span.SetAttributes(
				attribute.Bool("whatsapp.unsupported", true),
				attribute.String("whatsapp.update.field", fieldErr.Field),
			)
			if fieldErr.Payload != nil {
				res.Update = fieldErr.Payload
				d.runChain(ctx, fieldErr.Payload, d.registry.Handlers(KindRaw), StageRawHandler, &res)
			}
			return res
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "malformed update")
		d.reporter.Report(ctx, StageParse, err)
		return res
	}

	res := d.handle(ctx, u)
	span.SetAttributes(
		attribute.String("whatsapp.update.kind", string(u.Kind())),
		attribute.String("whatsapp.update.id", u.ID()),
		attribute.Bool("whatsapp.dispatch.skipped", res.Skipped),
		attribute.Int("whatsapp.dispatch.matched", res.Matched),
		attribute.Int("whatsapp.dispatch.invoked", res.Invoked),
		attribute.Int("whatsapp.dispatch.failed", res.Failed),
		attribute.Bool("whatsapp.dispatch.stopped", res.Stopped),
	)
	if res.Failed > 0 {
		span.SetStatus(codes.Error, "handler failure")
	}
	return res
}

// Handle runs the handlers for an already parsed update.
func (d *Dispatcher) Handle(ctx context.Context, u update.Update) DispatchResult {
	return d.handle(ctx, u)
}

func (d *Dispatcher) handle(ctx context.Context, u update.Update) DispatchResult {
	res := DispatchResult{Update: u}

	if d.phoneNumberID != "" {
		if uu, ok := u.(update.UserUpdate); ok && uu.PhoneMetadata().PhoneNumberID != d.phoneNumberID {
			d.logger.Debug("skipping update for another phone number",
				zap.String("update_id", u.ID()),
				zap.String("phone_number_id", uu.PhoneMetadata().PhoneNumberID),
			)
			res.Skipped = true
		}
	}

	if !res.Skipped {
		res.Stopped = d.runChain(ctx, u, d.registry.Handlers(u.Kind()), StageHandler, &res)
	}
	d.runChain(ctx, u, d.registry.Handlers(KindRaw), StageRawHandler, &res)
	return res
}

// runChain invokes the matching handlers in order and reports whether a callback
// stopped the chain.
func (d *Dispatcher) runChain(ctx context.Context, u update.Update, handlers []Handler, stage Stage, res *DispatchResult) bool {
	for i, h := range handlers {
		matched, err := d.invoke(ctx, h, u)
		if matched {
			res.Matched++
		}
		if err == nil {
			if matched {
				res.Invoked++
			}
			continue
		}
		if errors.Is(err, ErrStopHandling) {
			res.Invoked++
			d.logger.Debug("handler stopped propagation",
				zap.String("update_id", u.ID()),
				zap.String("handler", handlerName(h, i)),
			)
			return true
		}
		if matched {
			res.Invoked++
		}
		res.Failed++
		d.reporter.Report(ctx, stage, &HandlerError{Kind: u.Kind(), Handler: handlerName(h, i), Err: err})
	}
	return false
}

func (d *Dispatcher) invoke(ctx context.Context, h Handler, u update.Update) (matched bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()

	if !h.matches(u) {
		return false, nil
	}
	matched = true
	return matched, h.Callback(ctx, u)
}

func handlerName(h Handler, index int) string {
	if h.Name != "" {
		return h.Name
	}
	return "#" + strconv.Itoa(index)
}
