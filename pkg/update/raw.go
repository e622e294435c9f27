package update

import (
	"encoding/json"
	"fmt"
)

// KindRawPayload is the kind of RawPayload. No typed handler is registered for it; it only
// reaches raw handlers.
const KindRawPayload Kind = "raw_payload"

// RawPayload is a well-formed delivery for a webhook field no other variant models, such
// as account_update. Its id is the entry id and its timestamp is the entry time, zero when
// absent.
type RawPayload struct {
	base
	Field string
	Value json.RawMessage
}

func (r *RawPayload) Kind() Kind { return KindRawPayload }

// UnsupportedFieldError is returned by Parse for well-formed payloads no variant models.
// Payload still carries the delivery for raw handlers.
type UnsupportedFieldError struct {
	Field   string
	Payload *RawPayload
}

func (e *UnsupportedFieldError) Error() string {
	return fmt.Sprintf("%v: %q", ErrUnsupportedField, e.Field)
}

func (e *UnsupportedFieldError) Is(target error) bool { return target == ErrUnsupportedField }
