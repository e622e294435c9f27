package filters

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/mamadbah2/wacloud/pkg/update"
)

// DefaultCommandPrefixes are used by Command unless WithPrefixes is given.
const DefaultCommandPrefixes = "/!"

const commandMarkers = "/!#"

func textOf(u update.Update) (string, bool) {
	m, ok := u.(*update.Message)
	if !ok || m.Type != update.MessageTypeText {
		return "", false
	}
	return m.Text, true
}

func textFilter(match func(string) bool) Filter {
	return func(u update.Update) bool {
		text, ok := textOf(u)
		return ok && match(text)
	}
}

// Text matches every text message.
func Text(u update.Update) bool {
	_, ok := textOf(u)
	return ok
}

// TextMatches matches text messages equal to one of values.
func TextMatches(values []string, opts ...Option) Filter {
	return textFilter(stringMatcher(values, opts, equals))
}

// TextContains matches text messages containing one of values.
func TextContains(values []string, opts ...Option) Filter {
	return textFilter(stringMatcher(values, opts, strings.Contains))
}

// TextStartsWith matches text messages starting with one of values.
func TextStartsWith(values []string, opts ...Option) Filter {
	return textFilter(stringMatcher(values, opts, strings.HasPrefix))
}

// TextEndsWith matches text messages ending with one of values.
func TextEndsWith(values []string, opts ...Option) Filter {
	return textFilter(stringMatcher(values, opts, strings.HasSuffix))
}

// TextRegex matches text messages matched by one of the patterns.
func TextRegex(patterns ...*regexp.Regexp) Filter {
	return textFilter(regexMatcher(patterns))
}

// TextLength matches text messages whose length in runes is within [min, max].
func TextLength(min, max int) Filter {
	return textFilter(func(text string) bool {
		n := utf8.RuneCountInString(text)
		return n >= min && n <= max
	})
}

// IsCommand matches text messages starting with '/', '!' or '#'.
func IsCommand(u update.Update) bool {
	return CommandPrefix(commandMarkers)(u)
}

// CommandPrefix matches text messages whose first rune is one of prefixes. An empty
// prefix set never matches.
func CommandPrefix(prefixes string) Filter {
	return textFilter(func(text string) bool {
		return hasCommandPrefix(text, prefixes)
	})
}

func hasCommandPrefix(text, prefixes string) bool {
	if prefixes == "" || text == "" {
		return false
	}
	r, _ := utf8.DecodeRuneInString(text)
	return strings.ContainsRune(prefixes, r)
}

// Command matches text commands: the first rune must be one of the prefixes and the
// remainder must start with one of cmds. "/start now" is the start command; "start now"
// and "/stop" are not. An empty prefix set never matches.
func Command(cmds []string, opts ...Option) Filter {
	o := buildOptions(opts)
	prefixes := DefaultCommandPrefixes
	if o.prefixSet {
		prefixes = o.prefixes
	}
	folded := o.foldAll(cmds)

	return textFilter(func(text string) bool {
		if !hasCommandPrefix(text, prefixes) {
			return false
		}
		_, size := utf8.DecodeRuneInString(text)
		rest := o.fold(text[size:])
		for _, c := range folded {
			if strings.HasPrefix(rest, c) {
				return true
			}
		}
		return false
	})
}

// CommandArgs splits a command text into its name (without prefix) and arguments. Text
// whose first rune is not one of prefixes is not a command and yields no name.
func CommandArgs(text, prefixes string) (string, []string) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !hasCommandPrefix(fields[0], prefixes) {
		return "", nil
	}
	_, size := utf8.DecodeRuneInString(fields[0])
	return fields[0][size:], fields[1:]
}

func regexMatcher(patterns []*regexp.Regexp) func(string) bool {
	return func(s string) bool {
		for _, re := range patterns {
			if re.MatchString(s) {
				return true
			}
		}
		return false
	}
}
