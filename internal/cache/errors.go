package cache

// ValidationError reports a request the cache refuses to serve.
// Msg is safe to return to HTTP clients verbatim.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

var (
	errMissingKey     = &ValidationError{Msg: "Missing id or style parameter"}
	errKeyTooLong     = &ValidationError{Msg: "Parameter too long"}
	errMissingEntry   = &ValidationError{Msg: "Missing id, style, or summary"}
	errSummaryTooLong = &ValidationError{Msg: "Summary too long (max 5000 chars)"}
)

func validateKey(id, style string) error {
	if id == "" || style == "" {
		return errMissingKey
	}
	if textLen(id) > MaxKeyLength || textLen(style) > MaxKeyLength {
		return errKeyTooLong
	}
	return nil
}

func validateEntry(id, style, summary string) error {
	if id == "" || style == "" || summary == "" {
		return errMissingEntry
	}
	if textLen(id) > MaxKeyLength || textLen(style) > MaxKeyLength {
		return errKeyTooLong
	}
	if textLen(summary) > MaxSummaryLength {
		return errSummaryTooLong
	}
	return nil
}
