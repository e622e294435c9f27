package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/mamadbah2/wacloud/pkg/filters"
	"github.com/mamadbah2/wacloud/pkg/update"
)

const phoneID = "106540352242922"

func textPayload(text string) []byte {
	return []byte(fmt.Sprintf(`{
		"object": "whatsapp_business_account",
		"entry": [{"id": "1", "changes": [{"field": "messages", "value": {
			"messaging_product": "whatsapp",
			"metadata": {"display_phone_number": "15550783881", "phone_number_id": %q},
			"contacts": [{"profile": {"name": "Sheena"}, "wa_id": "16505551234"}],
			"messages": [{"from": "16505551234", "id": "wamid.in", "timestamp": "1749416383", "type": "text", "text": {"body": %q}}]
		}}]}]
	}`, phoneID, text))
}

func failedStatusPayload() []byte {
	return []byte(fmt.Sprintf(`{
		"object": "whatsapp_business_account",
		"entry": [{"id": "1", "changes": [{"field": "messages", "value": {
			"messaging_product": "whatsapp",
			"metadata": {"display_phone_number": "15550783881", "phone_number_id": %q},
			"statuses": [{
				"id": "wamid.out", "status": "failed", "timestamp": "1750263773", "recipient_id": "16505551234",
				"errors": [{"code": 131026, "title": "Message undeliverable"}]
			}]
		}}]}]
	}`, phoneID))
}

type recordingReporter struct {
	mu     sync.Mutex
	stages []Stage
	errs   []error
}

func (r *recordingReporter) Report(_ context.Context, stage Stage, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages = append(r.stages, stage)
	r.errs = append(r.errs, err)
}

func record(calls *[]string, name string, err error) HandlerFunc {
	return func(context.Context, update.Update) error {
		*calls = append(*calls, name)
		return err
	}
}

func newDispatcher(reg *Registry, opts ...Option) *Dispatcher {
	return New(update.NewParser(nil), reg, zap.NewNop(), opts...)
}

func TestHandlersRunInRegistrationOrder(t *testing.T) {
	var calls []string
	reg := NewRegistry()
	reg.Register(update.KindMessage, nil, record(&calls, "h1", nil))
	reg.Register(update.KindMessageStatus, nil, record(&calls, "status", nil))
	reg.Register(update.KindMessage, filters.Text, record(&calls, "h2", nil))
	reg.Register(update.KindMessage, filters.Image, record(&calls, "image", nil))
	reg.Register(update.KindMessage, nil, record(&calls, "h3", nil))

	res := newDispatcher(reg).Process(context.Background(), textPayload("hi"))

	require.NoError(t, res.Err)
	assert.Equal(t, []string{"h1", "h2", "h3"}, calls)
	assert.Equal(t, update.KindMessage, res.Kind())
	assert.Equal(t, 3, res.Matched)
	assert.Equal(t, 3, res.Invoked)
	assert.False(t, res.Stopped)
}

func TestStopHandlingSuppressesLaterHandlers(t *testing.T) {
	var calls []string
	reg := NewRegistry()
	reg.Register(update.KindMessage, nil, record(&calls, "before", nil))
	reg.Register(update.KindMessage, nil, record(&calls, "stopper", fmt.Errorf("done: %w", ErrStopHandling)))
	reg.Register(update.KindMessage, nil, record(&calls, "after", nil))
	reg.Register(KindRaw, nil, record(&calls, "raw", nil))

	reporter := &recordingReporter{}
	res := newDispatcher(reg, WithErrorReporter(reporter)).Process(context.Background(), textPayload("hi"))

	assert.Equal(t, []string{"before", "stopper", "raw"}, calls)
	assert.True(t, res.Stopped)
	assert.Zero(t, res.Failed)
	assert.Empty(t, reporter.errs)
}

func TestFailuresAreIsolated(t *testing.T) {
	var calls []string
	reg := NewRegistry()
	reg.Register(update.KindMessage, nil, record(&calls, "h1", errors.New("boom")))
	reg.Register(update.KindMessage, nil, func(context.Context, update.Update) error {
		calls = append(calls, "panics")
		panic("nil map")
	})
	reg.Register(update.KindMessage, nil, record(&calls, "h3", nil))
	reg.AddHandlers(Handler{
		Kind:     update.KindMessage,
		Filter:   func(update.Update) bool { panic("bad filter") },
		Callback: record(&calls, "never", nil),
		Name:     "bad-filter",
	})
	reg.Register(update.KindMessage, nil, record(&calls, "h5", nil))

	reporter := &recordingReporter{}
	res := newDispatcher(reg, WithErrorReporter(reporter)).Process(context.Background(), textPayload("hi"))

	assert.Equal(t, []string{"h1", "panics", "h3", "h5"}, calls)
	assert.Equal(t, 3, res.Failed)
	require.Len(t, reporter.errs, 3)
	assert.Equal(t, []Stage{StageHandler, StageHandler, StageHandler}, reporter.stages)

	var handlerErr *HandlerError
	require.ErrorAs(t, reporter.errs[0], &handlerErr)
	assert.Equal(t, "#0", handlerErr.Handler)
	assert.EqualError(t, handlerErr.Err, "boom")

	var panicErr *PanicError
	require.ErrorAs(t, reporter.errs[1], &panicErr)
	assert.Equal(t, "nil map", panicErr.Value)
	assert.NotEmpty(t, panicErr.Stack)

	require.ErrorAs(t, reporter.errs[2], &handlerErr)
	assert.Equal(t, "bad-filter", handlerErr.Handler)
}

func TestFailedStatusScenario(t *testing.T) {
	var got []*update.MessageStatus
	var sentCalls int
	reg := NewRegistry()
	reg.AddHandlers(
		OnMessageStatus(func(_ context.Context, s *update.MessageStatus) error {
			got = append(got, s)
			return nil
		}, filters.StatusFailed),
		OnMessageStatus(func(context.Context, *update.MessageStatus) error {
			sentCalls++
			return nil
		}, filters.StatusSent),
	)

	res := newDispatcher(reg).Process(context.Background(), failedStatusPayload())

	require.NoError(t, res.Err)
	require.Len(t, got, 1)
	assert.Equal(t, update.StatusFailed, got[0].Status)
	require.NotNil(t, got[0].Error)
	assert.Equal(t, 131026, got[0].Error.Code)
	assert.Zero(t, sentCalls)
	assert.Equal(t, 1, res.Invoked)
}

func TestMalformedPayloadIsReported(t *testing.T) {
	var calls []string
	reg := NewRegistry()
	reg.Register(update.KindMessage, nil, record(&calls, "h", nil))
	reg.Register(KindRaw, nil, record(&calls, "raw", nil))

	reporter := &recordingReporter{}
	d := newDispatcher(reg, WithErrorReporter(reporter))

	assert.NotPanics(t, func() { d.Dispatch(context.Background(), []byte(`{"entry": []}`)) })
	assert.Empty(t, calls)
	require.Len(t, reporter.errs, 1)
	assert.Equal(t, StageParse, reporter.stages[0])
	assert.ErrorIs(t, reporter.errs[0], update.ErrMalformedUpdate)
}

func TestUnsupportedFieldReachesRawHandlersOnly(t *testing.T) {
	var calls []string
	var payloads []*update.RawPayload
	reg := NewRegistry()
	reg.Register(update.KindMessage, nil, record(&calls, "typed", nil))
	reg.AddHandlers(OnRaw(func(_ context.Context, u update.Update) error {
		calls = append(calls, "raw")
		if p, ok := u.(*update.RawPayload); ok {
			payloads = append(payloads, p)
		}
		return nil
	}))
	reporter := &recordingReporter{}
	d := newDispatcher(reg, WithErrorReporter(reporter))

	res := d.Process(context.Background(), []byte(`{"entry": [{"id": "1", "time": 1750263773, "changes": [{"field": "account_update", "value": {"event": "VERIFIED_ACCOUNT"}}]}]}`))

	assert.ErrorIs(t, res.Err, update.ErrUnsupportedField)
	assert.Empty(t, reporter.errs)
	assert.Equal(t, []string{"raw"}, calls)
	require.Len(t, payloads, 1)
	assert.Equal(t, "account_update", payloads[0].Field)
	assert.Equal(t, update.KindRawPayload, res.Kind())
	assert.Equal(t, 1, res.Invoked)
}

func TestRawHandlersRunForEveryKind(t *testing.T) {
	var kinds []update.Kind
	reg := NewRegistry()
	reg.AddHandlers(OnRaw(func(_ context.Context, u update.Update) error {
		kinds = append(kinds, u.Kind())
		return nil
	}))
	d := newDispatcher(reg)

	d.Dispatch(context.Background(), textPayload("hi"))
	d.Dispatch(context.Background(), failedStatusPayload())

	assert.Equal(t, []update.Kind{update.KindMessage, update.KindMessageStatus}, kinds)
}

func TestPhoneNumberFilter(t *testing.T) {
	var calls []string
	reg := NewRegistry()
	reg.Register(update.KindMessage, nil, record(&calls, "h", nil))
	reg.Register(KindRaw, nil, record(&calls, "raw", nil))

	res := newDispatcher(reg, WithPhoneNumberID("someone-else")).Process(context.Background(), textPayload("hi"))
	assert.True(t, res.Skipped)
	assert.Equal(t, []string{"raw"}, calls)

	calls = nil
	res = newDispatcher(reg, WithPhoneNumberID(phoneID)).Process(context.Background(), textPayload("hi"))
	assert.False(t, res.Skipped)
	assert.Equal(t, []string{"h", "raw"}, calls)
}

func TestTypedHandlersWithCommandFilter(t *testing.T) {
	var texts []string
	reg := NewRegistry()
	reg.AddHandlers(OnMessage(func(_ context.Context, m *update.Message) error {
		texts = append(texts, m.Text)
		return nil
	}, filters.Command([]string{"start"})))
	d := newDispatcher(reg)

	for _, text := range []string{"/start now", "!start now", "start now", "/stop"} {
		d.Dispatch(context.Background(), textPayload(text))
	}

	assert.Equal(t, []string{"/start now", "!start now"}, texts)
}

func TestDefaultReporterLogs(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	reg := NewRegistry()
	reg.Register(update.KindMessage, nil, func(context.Context, update.Update) error { return errors.New("boom") })

	New(nil, reg, zap.New(core)).Dispatch(context.Background(), textPayload("hi"))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "dispatch failure", entry.Message)
	assert.Equal(t, "handler", entry.ContextMap()["stage"])
}

func TestDispatchSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	reg := NewRegistry()
	reg.Register(update.KindMessage, nil, func(context.Context, update.Update) error { return nil })

	newDispatcher(reg, WithTracerProvider(tp)).Dispatch(context.Background(), textPayload("hi"))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "whatsapp.dispatch", spans[0].Name())
	assert.Contains(t, spans[0].Attributes(), attribute.String("whatsapp.update.kind", "message"))
	assert.Contains(t, spans[0].Attributes(), attribute.Int("whatsapp.dispatch.invoked", 1))
}

func TestRegistryConcurrentAccess(t *testing.T) {
	reg := NewRegistry()
	d := newDispatcher(reg)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			reg.Register(update.KindMessage, nil, func(context.Context, update.Update) error { return nil })
		}()
		go func() {
			defer wg.Done()
			d.Dispatch(context.Background(), textPayload("hi"))
		}()
	}
	wg.Wait()

	assert.Equal(t, 8, reg.Len())
}
