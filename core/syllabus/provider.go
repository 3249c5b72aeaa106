package syllabus

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"unicode"

	"github.com/pkg/errors"
)

type (
	// CompletionRequest is one call to the completion provider.
	CompletionRequest struct {
		Mode      Mode
		Prompt    string
		MediaType string
		FileName  string
		Data      []byte // inline payload (ModeVision, or ModePDF without a FileStore)
		Base64    string // ModeVision
		FileRef   string // provider-side file (ModePDF with a FileStore)
	}

	// Completer is a generative completion provider.
	Completer interface {
		Name() string
		Complete(ctx context.Context, req CompletionRequest) (string, error)
	}

	// FileStore is implemented by providers that read PDFs from a provider-side upload.
	// Every uploaded file must be deleted once the completion is over.
	FileStore interface {
		UploadFile(ctx context.Context, name, mediaType string, data []byte) (ref string, err error)
		DeleteFile(ctx context.Context, ref string) error
	}

	// ProviderError is a failed provider call.
	ProviderError struct {
		Provider   string
		StatusCode int    // HTTP status (or its equivalent), 0 if unknown
		Code       string // provider error code, e.g. "rate_limit_exceeded"
		Message    string
		Err        error
	}
)

func (e *ProviderError) Error() string {
	var b strings.Builder
	b.WriteString(e.Provider)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " %d", e.StatusCode)
	}
	if e.Code != "" {
		fmt.Fprintf(&b, " (%s)", e.Code)
	}
	if e.Message != "" {
		b.WriteString(": " + e.Message)
	} else if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *ProviderError) Unwrap() error { return e.Err }

// errClass is the retry classification of a provider failure.
type errClass int

const (
	classOther errClass = iota
	classRateLimited
	classOverloaded
	classServer
)

func (c errClass) String() string {
	switch c {
	case classRateLimited:
		return "rate-limited"
	case classOverloaded:
		return "overloaded"
	case classServer:
		return "server-error"
	default:
		return "other"
	}
}

var (
	quotaCodes    = []string{"rate_limit_exceeded", "quota_exceeded", "insufficient_quota", "resource_exhausted"}
	quotaHints    = []string{"rate_limit", "rate limit", "quota", "resource_exhausted", "resource exhausted"}
	overloadCodes = []string{"server_error", "unavailable", "overloaded"}
	overloadHints = []string{"service unavailable", "bad gateway", "server_error", "overloaded"}

	// status tokens only count for errors that carry no status of their own
	quotaStatusTokens    = []string{"429"}
	overloadStatusTokens = []string{"503", "502"}
)

// classify decides how a provider failure is handled:
// quota/rate-limit is never retried; overload is retried; anything else fails at once.
func classify(err error) errClass {
	var status int
	var code string
	var pe *ProviderError
	if errors.As(err, &pe) {
		status, code = pe.StatusCode, strings.ToLower(pe.Code)
	}
	msg := strings.ToLower(err.Error())
	var tokens []string
	if status == 0 {
		tokens = strings.FieldsFunc(msg, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
	}

	switch {
	case status == http.StatusTooManyRequests || contains(quotaCodes, code) ||
		containsAny(msg, quotaHints) || containsToken(tokens, quotaStatusTokens):
		return classRateLimited
	case status == http.StatusServiceUnavailable || status == http.StatusBadGateway ||
		contains(overloadCodes, code) || containsAny(msg, overloadHints) || containsToken(tokens, overloadStatusTokens):
		return classOverloaded
	case status >= http.StatusInternalServerError:
		return classServer
	}
	return classOther
}

func contains(list []string, s string) bool {
	if s == "" {
		return false
	}
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func containsToken(tokens, want []string) bool {
	for _, t := range tokens {
		if contains(want, t) {
			return true
		}
	}
	return false
}

// providerDetail is the raw provider detail surfaced to the caller.
func providerDetail(err error) string {
	var pe *ProviderError
	if errors.As(err, &pe) && pe.Message != "" {
		return pe.Message
	}
	return err.Error()
}
