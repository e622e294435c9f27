package filters

import (
	"regexp"
	"strings"

	"github.com/mamadbah2/wacloud/pkg/update"
)

func callbackData(u update.Update) (string, bool) {
	switch c := u.(type) {
	case *update.CallbackButton:
		return c.Data, true
	case *update.CallbackSelection:
		return c.Data, true
	}
	return "", false
}

func callbackFilter(match func(string) bool) Filter {
	return func(u update.Update) bool {
		data, ok := callbackData(u)
		return ok && match(data)
	}
}

// Callback matches button and selection callbacks.
func Callback(u update.Update) bool {
	_, ok := callbackData(u)
	return ok
}

// CallbackDataMatches matches callbacks whose data equals one of values.
func CallbackDataMatches(values []string, opts ...Option) Filter {
	return callbackFilter(stringMatcher(values, opts, equals))
}

func CallbackDataStartsWith(values []string, opts ...Option) Filter {
	return callbackFilter(stringMatcher(values, opts, strings.HasPrefix))
}

func CallbackDataEndsWith(values []string, opts ...Option) Filter {
	return callbackFilter(stringMatcher(values, opts, strings.HasSuffix))
}

func CallbackDataContains(values []string, opts ...Option) Filter {
	return callbackFilter(stringMatcher(values, opts, strings.Contains))
}

// CallbackDataRegex matches callbacks whose data is matched by one of the patterns.
func CallbackDataRegex(patterns ...*regexp.Regexp) Filter {
	return callbackFilter(regexMatcher(patterns))
}
