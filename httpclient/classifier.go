package httpclient

import (
	"net/http"
)

// Attempt is the outcome of one network try of a call.
// It carries either a StatusCode or an Err, never both.
type Attempt struct {
	// Ordinal is 1-based.
	Ordinal    int
	StatusCode int
	Headers    http.Header
	Body       []byte
	// Payload is the decoded JSON body in JSON mode.
	Payload any
	Err     error
}

// Verdict is the classifier decision for an Attempt.
type Verdict int

const (
	// VerdictSuccess ends the call with the attempt's response
	VerdictSuccess Verdict = iota + 1
	// VerdictTerminal ends the call with an error built from the response body
	VerdictTerminal
	// VerdictRetryable schedules another attempt unless the ceiling was reached
	VerdictRetryable
)

func (v Verdict) String() string {
	switch v {
	case VerdictSuccess:
		return "success"
	case VerdictTerminal:
		return "terminal"
	case VerdictRetryable:
		return "retryable"
	default:
		return "unknown"
	}
}

// StatusSet is a set of HTTP status codes.
type StatusSet map[int]struct{}

// NewStatusSet builds a set from codes.
func NewStatusSet(codes ...int) StatusSet {
	s := make(StatusSet, len(codes))
	for _, c := range codes {
		s[c] = struct{}{}
	}
	return s
}

// Has reports whether code is in the set.
func (s StatusSet) Has(code int) bool {
	_, ok := s[code]
	return ok
}

// Classify decides what the scheduler does with a. The retryable set is consulted
// before the 3xx/4xx rule, so a listed 4xx (or 3xx) status is retried.
func Classify(a Attempt, retryable StatusSet) Verdict {
	if a.Err != nil {
		return VerdictRetryable
	}
	switch {
	case a.StatusCode < 300:
		return VerdictSuccess
	case retryable.Has(a.StatusCode):
		return VerdictRetryable
	case a.StatusCode < 500:
		return VerdictTerminal
	default:
		return VerdictRetryable
	}
}
