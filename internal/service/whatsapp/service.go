package whatsapp

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/wacloud/internal/config"
	"github.com/mamadbah2/wacloud/internal/domain/models"
	"github.com/mamadbah2/wacloud/pkg/clients/anthropic"
	client "github.com/mamadbah2/wacloud/pkg/clients/whatsapp"
	"github.com/mamadbah2/wacloud/pkg/dispatcher"
	"github.com/mamadbah2/wacloud/pkg/filters"
	"github.com/mamadbah2/wacloud/pkg/update"
)

const signaturePrefix = "sha256="

const assistantPrompt = `You are a friendly WhatsApp assistant. Answer in the language of the user, in at most three short sentences. Plain text only.`

// ErrInvalidSignature is returned when a webhook body does not match its signature.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// MessagingService describes the operations the HTTP layer can perform.
type MessagingService interface {
	VerifyWebhookToken(mode, verifyToken, challenge string) (string, error)
	VerifySignature(body []byte, signature string) error
	HandleWebhook(ctx context.Context, raw []byte) dispatcher.DispatchResult
	SendOutbound(ctx context.Context, req models.OutboundMessageRequest) error
}

// AuditStore keeps a copy of every received update.
type AuditStore interface {
	SaveUpdate(ctx context.Context, record models.UpdateRecord) error
}

// FailureRecorder keeps failed deliveries.
type FailureRecorder interface {
	RecordFailedDelivery(ctx context.Context, f models.FailedDelivery) error
}

// Bot lists the optional collaborators of the bot handlers. Nil members disable the
// handlers depending on them.
type Bot struct {
	AdminNumber string
	// Commands run after the read receipt and before every other handler.
	Commands []dispatcher.Handler
	// CommandPrefixes mark texts the assistant leaves to Commands. Empty means
	// filters.DefaultCommandPrefixes.
	CommandPrefixes string
	Assistant       anthropic.Client
	Audit     AuditStore
	Failures  FailureRecorder
	// Extra handlers are appended last.
	Extra []dispatcher.Handler
}

// MetaWhatsAppService is the production implementation backed by WhatsApp Cloud API.
type MetaWhatsAppService struct {
	cfg        config.WhatsAppConfig
	client     client.Client
	dispatcher *dispatcher.Dispatcher
	sessions   *SessionManager
	logger     *zap.Logger
	now        func() time.Time
}

// NewMetaWhatsAppService wires a new service instance.
func NewMetaWhatsAppService(cfg config.WhatsAppConfig, client client.Client, d *dispatcher.Dispatcher, logger *zap.Logger) *MetaWhatsAppService {
	svc := &MetaWhatsAppService{
		cfg:        cfg,
		client:     client,
		dispatcher: d,
		sessions:   NewSessionManager(0),
		logger:     logger,
		now:        time.Now,
	}
	if svc.logger == nil {
		svc.logger = zap.NewNop()
	}
	return svc
}

// VerifyWebhookToken validates the callback verification token.
func (s *MetaWhatsAppService) VerifyWebhookToken(mode, verifyToken, challenge string) (string, error) {
	if mode == "" || verifyToken == "" {
		return "", errors.New("missing mode or verify token")
	}

	if !strings.EqualFold(mode, "subscribe") {
		return "", fmt.Errorf("unsupported hub.mode %s", mode)
	}

	if !hmac.Equal([]byte(verifyToken), []byte(s.cfg.VerifyToken)) {
		return "", errors.New("invalid verify token")
	}

	return challenge, nil
}

// VerifySignature checks the X-Hub-Signature-256 header against the app secret. It
// accepts everything when no secret is configured.
func (s *MetaWhatsAppService) VerifySignature(body []byte, signature string) error {
	if s.cfg.AppSecret == "" {
		return nil
	}
	if !strings.HasPrefix(signature, signaturePrefix) {
		return fmt.Errorf("%w: missing %s prefix", ErrInvalidSignature, signaturePrefix)
	}
	got, err := hex.DecodeString(strings.TrimPrefix(signature, signaturePrefix))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if !hmac.Equal(got, Sign(body, s.cfg.AppSecret)) {
		return ErrInvalidSignature
	}
	return nil
}

// Sign returns the HMAC-SHA256 of body keyed by secret.
func Sign(body []byte, secret string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return mac.Sum(nil)
}

// HandleWebhook dispatches one webhook delivery. Failures are reported by the dispatcher.
func (s *MetaWhatsAppService) HandleWebhook(ctx context.Context, raw []byte) dispatcher.DispatchResult {
	return s.dispatcher.Process(ctx, raw)
}

// SendOutbound lets internal operators push quick notifications via HTTP.
func (s *MetaWhatsAppService) SendOutbound(ctx context.Context, req models.OutboundMessageRequest) error {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := s.client.SendText(ctxWithTimeout, client.SendTextMessageRequest{
		To:         req.To,
		Body:       req.Message,
		PreviewURL: req.PreviewURL,
	})
	return err
}

// Handlers returns the bot handlers in the order they must be registered.
func (s *MetaWhatsAppService) Handlers(bot Bot) []dispatcher.Handler {
	hs := []dispatcher.Handler{
		dispatcher.OnMessage(s.markAsRead).Named("bot.read_receipt"),
	}
	hs = append(hs, bot.Commands...)
	hs = append(hs, dispatcher.OnChatOpened(s.welcome).Named("bot.welcome"))

	if bot.Assistant != nil {
		prefixes := bot.CommandPrefixes
		if prefixes == "" {
			prefixes = filters.DefaultCommandPrefixes
		}
		hs = append(hs, dispatcher.OnMessage(s.converse(bot.Assistant),
			filters.Text, filters.Not(filters.CommandPrefix(prefixes)),
		).Named("bot.assistant"))
	}
	if bot.Failures != nil {
		hs = append(hs, dispatcher.OnMessageStatus(s.recordFailure(bot.Failures), filters.StatusFailed).Named("bot.failures"))
	}
	if bot.AdminNumber != "" {
		hs = append(hs, dispatcher.OnTemplateStatus(s.alertTemplate(bot.AdminNumber), filters.TemplateEvents(
			update.TemplateEventRejected,
			update.TemplateEventDisabled,
			update.TemplateEventFlagged,
			update.TemplateEventPaused,
		)).Named("bot.template_alert"))
	}
	hs = append(hs, dispatcher.OnFlowCompletion(s.flowCompleted).Named("bot.flow_completion"))
	if bot.Audit != nil {
		hs = append(hs, dispatcher.OnRaw(s.audit(bot.Audit)).Named("bot.audit"))
	}
	return append(hs, bot.Extra...)
}

func (s *MetaWhatsAppService) markAsRead(ctx context.Context, m *update.Message) error {
	if _, err := m.MarkAsRead(ctx); err != nil {
		return fmt.Errorf("mark %s as read: %w", m.ID(), err)
	}
	return nil
}

func (s *MetaWhatsAppService) welcome(ctx context.Context, c *update.ChatOpened) error {
	s.logger.Info("chat opened", zap.String("from", c.Sender().WaID))
	_, err := c.Reply(ctx, "Welcome! Send /help to see what I can do.", false)
	return err
}

func (s *MetaWhatsAppService) converse(assistant anthropic.Client) func(context.Context, *update.Message) error {
	return func(ctx context.Context, m *update.Message) error {
		user := m.Sender().WaID
		history := s.sessions.AppendSession(user, anthropic.Message{Role: anthropic.RoleUser, Content: m.Text})

		reply, err := assistant.Complete(ctx, assistantPrompt, history)
		if err != nil {
			s.sessions.ClearSession(user)
			_, _ = m.Reply(ctx, "Sorry, I could not answer right now. Please try again later.", true)
			return fmt.Errorf("assistant completion: %w", err)
		}
		s.sessions.AppendSession(user, anthropic.Message{Role: anthropic.RoleAssistant, Content: reply})

		_, err = m.Reply(ctx, reply, true)
		return err
	}
}

func (s *MetaWhatsAppService) recordFailure(rec FailureRecorder) func(context.Context, *update.MessageStatus) error {
	return func(ctx context.Context, st *update.MessageStatus) error {
		f := models.FailedDelivery{
			MessageID: st.ID(),
			Recipient: st.Sender().WaID,
			At:        st.Timestamp(),
		}
		if st.Error != nil {
			f.Code = st.Error.Code
			f.Title = st.Error.Title
			f.Details = st.Error.Details
		}
		s.logger.Warn("message delivery failed",
			zap.String("message_id", f.MessageID),
			zap.String("recipient", f.Recipient),
			zap.Int("code", f.Code))
		return rec.RecordFailedDelivery(ctx, f)
	}
}

func (s *MetaWhatsAppService) alertTemplate(admin string) func(context.Context, *update.TemplateStatus) error {
	return func(ctx context.Context, t *update.TemplateStatus) error {
		body := fmt.Sprintf("Template %s (%s) is now %s", t.TemplateName, t.Language, t.Event)
		if t.Reason != "" && t.Reason != update.RejectionReasonNone {
			body += fmt.Sprintf(": %s", t.Reason)
		}
		return s.SendOutbound(ctx, models.OutboundMessageRequest{To: admin, Message: body})
	}
}

func (s *MetaWhatsAppService) flowCompleted(_ context.Context, f *update.FlowCompletion) error {
	s.logger.Info("flow completed",
		zap.String("from", f.Sender().WaID),
		zap.String("flow_token", f.Token),
		zap.Any("response", f.Response))
	return nil
}

func (s *MetaWhatsAppService) audit(store AuditStore) dispatcher.HandlerFunc {
	return func(ctx context.Context, u update.Update) error {
		rec := models.UpdateRecord{
			UpdateID:   u.ID(),
			Kind:       string(u.Kind()),
			Timestamp:  u.Timestamp(),
			Raw:        string(u.Raw()),
			ReceivedAt: s.now().UTC(),
		}
		if uu, ok := u.(update.UserUpdate); ok {
			rec.Sender = uu.Sender().WaID
		}
		return store.SaveUpdate(ctx, rec)
	}
}
