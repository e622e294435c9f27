package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/mamadbah2/wacloud/internal/domain/models"
	"github.com/mamadbah2/wacloud/internal/service/reporting"
	client "github.com/mamadbah2/wacloud/pkg/clients/whatsapp"
	"github.com/mamadbah2/wacloud/pkg/dispatcher"
	"github.com/mamadbah2/wacloud/pkg/filters"
	"github.com/mamadbah2/wacloud/pkg/update"
)

// ButtonPrefix marks callback data produced by the help buttons.
const ButtonPrefix = "cmd:"

// ErrUnsupportedCommand indicates the requested command does not exist.
var ErrUnsupportedCommand = errors.New("unsupported command")

// Messenger is the outbound subset the commands need.
type Messenger interface {
	SendText(ctx context.Context, req client.SendTextMessageRequest) (string, error)
	SendButtons(ctx context.Context, req client.SendButtonsRequest) (string, error)
}

// StatsProvider exposes the running counters for /stats.
type StatsProvider interface {
	Snapshot() models.DailyReport
}

// Service executes bot commands.
type Service struct {
	messenger Messenger
	stats     StatsProvider
	prefixes  string
	logger    *zap.Logger
}

// NewService constructs the command service. stats may be nil.
func NewService(messenger Messenger, stats StatsProvider, prefixes string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if prefixes == "" {
		prefixes = filters.DefaultCommandPrefixes
	}
	return &Service{
		messenger: messenger,
		stats:     stats,
		prefixes:  prefixes,
		logger:    logger,
	}
}

// Prefixes returns the runes that mark a command.
func (s *Service) Prefixes() string {
	return s.prefixes
}

// marker is the prefix shown in replies.
func (s *Service) marker() string {
	r, _ := utf8.DecodeRuneInString(s.prefixes)
	return string(r)
}

// Handlers returns the command handlers in registration order. Known commands stop the
// chain so the later catch-all handlers never see them.
func (s *Service) Handlers() []dispatcher.Handler {
	names := make([]string, 0, len(models.Commands))
	for _, c := range models.Commands {
		names = append(names, string(c))
	}
	return []dispatcher.Handler{
		dispatcher.OnMessage(s.onCommand,
			filters.Command(names, filters.WithPrefixes(s.prefixes), filters.IgnoreCase()),
		).Named("commands.known"),
		dispatcher.OnMessage(s.onCommand, filters.CommandPrefix(s.prefixes)).Named("commands.unknown"),
		dispatcher.OnCallbackButton(s.onButton,
			filters.CallbackDataStartsWith([]string{ButtonPrefix}),
		).Named("commands.button"),
	}
}

func (s *Service) onCommand(ctx context.Context, m *update.Message) error {
	cmd := models.ParseCommand(m.Text, s.prefixes)
	if err := s.run(ctx, cmd, m.Sender(), m.ID()); err != nil {
		return err
	}
	return dispatcher.ErrStopHandling
}

func (s *Service) onButton(ctx context.Context, b *update.CallbackButton) error {
	name := strings.TrimPrefix(b.Data, ButtonPrefix)
	cmd := models.ParseCommand(s.marker()+name, s.prefixes)
	return s.run(ctx, cmd, b.Sender(), "")
}

func (s *Service) run(ctx context.Context, cmd models.Command, sender update.User, replyTo string) error {
	s.logger.Debug("dispatching command",
		zap.String("command", string(cmd.Type)),
		zap.String("sender", sender.WaID),
		zap.Strings("args", cmd.Args))

	reply, err := s.HandleCommand(ctx, cmd, sender)
	if err != nil && !errors.Is(err, ErrUnsupportedCommand) {
		return err
	}

	if cmd.Type == models.CommandHelp {
		_, err = s.messenger.SendButtons(ctx, client.SendButtonsRequest{
			To:      sender.WaID,
			Body:    reply.Text(),
			Buttons: helpButtons(),
		})
	} else {
		_, err = s.messenger.SendText(ctx, client.SendTextMessageRequest{
			To:               sender.WaID,
			Body:             reply.Text(),
			ReplyToMessageID: replyTo,
		})
	}
	if err != nil {
		return fmt.Errorf("send %s reply: %w", cmd.Type, err)
	}
	return nil
}

// HandleCommand builds the reply for cmd. Unknown commands get a help hint together with
// ErrUnsupportedCommand.
func (s *Service) HandleCommand(_ context.Context, cmd models.Command, sender update.User) (models.AutomationReply, error) {
	prefix := s.marker()

	switch cmd.Type {
	case models.CommandStart:
		name := sender.Name
		if name == "" {
			name = "there"
		}
		return models.AutomationReply{
			Title:   "Welcome",
			Message: fmt.Sprintf("Hi %s! Send %shelp to see what I can do.", name, prefix),
		}, nil
	case models.CommandHelp:
		var b strings.Builder
		for _, c := range models.Commands {
			fmt.Fprintf(&b, "%s%s - %s\n", prefix, c, descriptions[c])
		}
		return models.AutomationReply{Title: "Commands", Message: strings.TrimSuffix(b.String(), "\n")}, nil
	case models.CommandPing:
		return models.AutomationReply{Message: "pong"}, nil
	case models.CommandEcho:
		if len(cmd.Args) == 0 {
			return models.AutomationReply{Message: "Nothing to echo."}, nil
		}
		return models.AutomationReply{Message: cmd.ArgString()}, nil
	case models.CommandStats:
		if s.stats == nil {
			return models.AutomationReply{Message: "Statistics are not available."}, nil
		}
		return models.AutomationReply{Title: "Stats", Message: reporting.FormatReport(s.stats.Snapshot())}, nil
	}

	return models.AutomationReply{
		Title:   "Command Help",
		Message: fmt.Sprintf("Unknown command. Send %shelp for the list.", prefix),
	}, fmt.Errorf("%w: %q", ErrUnsupportedCommand, cmd.Raw)
}

var descriptions = map[models.CommandType]string{
	models.CommandStart: "say hello",
	models.CommandHelp:  "list the commands",
	models.CommandPing:  "check the bot is alive",
	models.CommandEcho:  "repeat your text",
	models.CommandStats: "show today's activity",
}

func helpButtons() []client.Button {
	return []client.Button{
		{ID: ButtonPrefix + string(models.CommandPing), Title: "Ping"},
		{ID: ButtonPrefix + string(models.CommandStats), Title: "Stats"},
	}
}
