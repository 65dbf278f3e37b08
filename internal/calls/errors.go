package calls

import "fmt"

// InputError is a missing or malformed required field. Field is safe to show callers.
type InputError struct {
	Field string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("missing required field: %s", e.Field)
}

// UpstreamError wraps a failed CRM or telephony call. Err is for logs only.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }
