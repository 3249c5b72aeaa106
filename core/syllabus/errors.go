package syllabus

import (
	"encoding/json"
	"net/http"
)

// Kind is the terminal failure kind of a pipeline run.
type Kind string

const (
	KindInvalidInput        Kind = "invalid-input"
	KindRateLimited         Kind = "rate-limited"
	KindProviderUnavailable Kind = "provider-unavailable"
	KindParseFailed         Kind = "parse-failed"
	KindNoAssignments       Kind = "no-assignments"
	KindInternal            Kind = "internal-error"
)

// Status is the HTTP status code the kind is reported with.
func (k Kind) Status() int {
	switch k {
	case KindInvalidInput, KindNoAssignments:
		return http.StatusBadRequest
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindProviderUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error is a pipeline failure. Its fields are the diagnostic payload returned to the caller.
type Error struct {
	Kind        Kind
	Message     string
	Details     string          // provider-side detail (rate-limited, provider-unavailable)
	RawResponse string          // model text (parse-failed)
	ParsedData  json.RawMessage // parsed model output (no-assignments)
	FileSize    int64           // oversized uploads
	MaxSize     int64
	Err         error
}

func (e *Error) Error() string {
	msg := string(e.Kind) + ": " + e.Message
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Body is the JSON error body.
func (e *Error) Body() map[string]interface{} {
	body := map[string]interface{}{
		"success": false,
		"kind":    e.Kind,
		"error":   e.Message,
	}
	switch e.Kind {
	case KindRateLimited, KindProviderUnavailable:
		body["details"] = e.Details
	case KindParseFailed:
		body["raw_response"] = e.RawResponse
	case KindNoAssignments:
		if len(e.ParsedData) > 0 {
			body["parsed_data"] = e.ParsedData
		} else {
			body["parsed_data"] = nil
		}
	}
	if e.MaxSize > 0 {
		body["file_size"] = e.FileSize
		body["max_size"] = e.MaxSize
	}
	return body
}

func invalidInput(msg string) *Error {
	return &Error{Kind: KindInvalidInput, Message: msg}
}

func internalError(err error) *Error {
	return &Error{Kind: KindInternal, Message: "Failed to process the file", Err: err}
}
