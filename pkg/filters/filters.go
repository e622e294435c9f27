// Package filters provides composable predicates over parsed updates.
//
// A Filter never mutates the update it inspects. Filters scoped to one variant or
// message type re-check it themselves, so they are safe to combine in handler groups
// that see heterogeneous updates.
package filters

import (
	"strings"
	"unicode"

	"github.com/mamadbah2/wacloud/pkg/update"
)

// Filter reports whether a handler should receive u.
type Filter func(u update.Update) bool

// All is true when every filter is true. It stops at the first false; All() is true.
func All(filters ...Filter) Filter {
	return func(u update.Update) bool {
		for _, f := range filters {
			if !f(u) {
				return false
			}
		}
		return true
	}
}

// Any is true when at least one filter is true. It stops at the first true; Any() is
// false.
func Any(filters ...Filter) Filter {
	return func(u update.Update) bool {
		for _, f := range filters {
			if f(u) {
				return true
			}
		}
		return false
	}
}

// Not negates f.
func Not(f Filter) Filter {
	return func(u update.Update) bool {
		return !f(u)
	}
}

// OfKind matches updates of the given kinds.
func OfKind(kinds ...update.Kind) Filter {
	return func(u update.Update) bool {
		for _, k := range kinds {
			if u.Kind() == k {
				return true
			}
		}
		return false
	}
}

// FromUsers matches user updates sent by (or, for statuses, addressed to) one of the
// numbers. Non-digit characters are ignored, so "+1 (650) 555-1234" works.
func FromUsers(numbers ...string) Filter {
	wanted := make(map[string]struct{}, len(numbers))
	for _, n := range numbers {
		wanted[digits(n)] = struct{}{}
	}
	return func(u update.Update) bool {
		uu, ok := u.(update.UserUpdate)
		if !ok {
			return false
		}
		_, found := wanted[uu.Sender().WaID]
		return found
	}
}

// FromCountries matches user updates whose number starts with one of the calling codes.
func FromCountries(codes ...string) Filter {
	prefixes := make([]string, 0, len(codes))
	for _, c := range codes {
		if d := digits(c); d != "" {
			prefixes = append(prefixes, d)
		}
	}
	return func(u update.Update) bool {
		uu, ok := u.(update.UserUpdate)
		if !ok {
			return false
		}
		for _, p := range prefixes {
			if strings.HasPrefix(uu.Sender().WaID, p) {
				return true
			}
		}
		return false
	}
}

// SentTo matches user updates received by the given business number. Empty arguments
// are not compared; with both empty nothing matches.
func SentTo(displayPhoneNumber, phoneNumberID string) Filter {
	return func(u update.Update) bool {
		if displayPhoneNumber == "" && phoneNumberID == "" {
			return false
		}
		uu, ok := u.(update.UserUpdate)
		if !ok {
			return false
		}
		md := uu.PhoneMetadata()
		if displayPhoneNumber != "" && digits(md.DisplayPhoneNumber) != digits(displayPhoneNumber) {
			return false
		}
		if phoneNumberID != "" && md.PhoneNumberID != phoneNumberID {
			return false
		}
		return true
	}
}

// Forwarded matches messages that were forwarded at least once.
func Forwarded(u update.Update) bool {
	m, ok := u.(*update.Message)
	return ok && m.Forwarded
}

// ForwardedManyTimes matches messages WhatsApp flags as frequently forwarded.
func ForwardedManyTimes(u update.Update) bool {
	m, ok := u.(*update.Message)
	return ok && m.ForwardedManyTimes
}

type replier interface {
	InReplyTo() *update.ReplyToMessage
}

// IsReply matches updates sent as a reply to another message.
func IsReply(u update.Update) bool {
	r, ok := u.(replier)
	return ok && r.InReplyTo() != nil
}

// HasReferredProduct matches updates asking about a catalog product.
func HasReferredProduct(u update.Update) bool {
	r, ok := u.(replier)
	if !ok {
		return false
	}
	ref := r.InReplyTo()
	return ref != nil && ref.ReferredProduct != nil
}

// Option tunes string matching filters.
type Option func(*options)

type options struct {
	ignoreCase bool
	prefixes   string
	prefixSet  bool
}

// IgnoreCase makes matching case-insensitive.
func IgnoreCase() Option {
	return func(o *options) { o.ignoreCase = true }
}

// WithPrefixes sets the command prefixes of Command. Each rune is one prefix.
func WithPrefixes(prefixes string) Option {
	return func(o *options) {
		o.prefixes = prefixes
		o.prefixSet = true
	}
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) fold(s string) string {
	if o.ignoreCase {
		return strings.ToLower(s)
	}
	return s
}

func (o options) foldAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = o.fold(v)
	}
	return out
}

// stringMatcher builds a predicate over one string that is true when cmp holds for any
// of the values.
func stringMatcher(values []string, opts []Option, cmp func(s, value string) bool) func(string) bool {
	o := buildOptions(opts)
	folded := o.foldAll(values)
	return func(s string) bool {
		s = o.fold(s)
		for _, v := range folded {
			if cmp(s, v) {
				return true
			}
		}
		return false
	}
}

func equals(s, v string) bool { return s == v }

func digits(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}
