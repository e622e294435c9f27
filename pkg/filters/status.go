package filters

import (
	"github.com/mamadbah2/wacloud/pkg/update"
)

// StatusIs matches message statuses in one of the states.
func StatusIs(statuses ...update.StatusType) Filter {
	return func(u update.Update) bool {
		s, ok := u.(*update.MessageStatus)
		if !ok {
			return false
		}
		for _, st := range statuses {
			if s.Status == st {
				return true
			}
		}
		return false
	}
}

var (
	StatusSent      = StatusIs(update.StatusSent)
	StatusDelivered = StatusIs(update.StatusDelivered)
	StatusRead      = StatusIs(update.StatusRead)
	StatusFailed    = StatusIs(update.StatusFailed)
)

// FailedWithCodes matches failed statuses whose error code is one of codes.
func FailedWithCodes(codes ...int) Filter {
	return func(u update.Update) bool {
		s, ok := u.(*update.MessageStatus)
		if !ok || s.Status != update.StatusFailed || s.Error == nil {
			return false
		}
		for _, c := range codes {
			if s.Error.Code == c {
				return true
			}
		}
		return false
	}
}

// TemplateName matches status updates of the named template.
func TemplateName(name string) Filter {
	return func(u update.Update) bool {
		t, ok := u.(*update.TemplateStatus)
		return ok && t.TemplateName == name
	}
}

func TemplateEvents(events ...update.TemplateEvent) Filter {
	return func(u update.Update) bool {
		t, ok := u.(*update.TemplateStatus)
		if !ok {
			return false
		}
		for _, e := range events {
			if t.Event == e {
				return true
			}
		}
		return false
	}
}

func TemplateRejectionReasons(reasons ...update.RejectionReason) Filter {
	return func(u update.Update) bool {
		t, ok := u.(*update.TemplateStatus)
		if !ok {
			return false
		}
		for _, r := range reasons {
			if t.Reason == r {
				return true
			}
		}
		return false
	}
}
