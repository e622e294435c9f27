package models

import (
	"strings"

	"github.com/mamadbah2/wacloud/pkg/filters"
)

// CommandType enumerates the bot commands.
type CommandType string

const (
	CommandStart   CommandType = "start"
	CommandHelp    CommandType = "help"
	CommandPing    CommandType = "ping"
	CommandEcho    CommandType = "echo"
	CommandStats   CommandType = "stats"
	CommandUnknown CommandType = "unknown"
)

// Commands lists the supported commands in help order.
var Commands = []CommandType{CommandStart, CommandHelp, CommandPing, CommandEcho, CommandStats}

// Command represents a parsed instruction extracted from a WhatsApp text.
type Command struct {
	Type CommandType
	Raw  string
	Args []string
}

// ArgString joins the arguments back with single spaces.
func (c Command) ArgString() string {
	return strings.Join(c.Args, " ")
}

// ParseCommand derives a Command from a text starting with one of prefixes. Anything
// else is CommandUnknown without arguments.
func ParseCommand(message, prefixes string) Command {
	cmd := Command{Type: CommandUnknown, Raw: message}

	name, args := filters.CommandArgs(strings.TrimSpace(message), prefixes)
	if name == "" {
		return cmd
	}
	if len(args) > 0 {
		cmd.Args = args
	}

	for _, known := range Commands {
		if strings.EqualFold(name, string(known)) {
			cmd.Type = known
			break
		}
	}
	return cmd
}
