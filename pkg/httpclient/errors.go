package httpclient

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnexpectedStatus marks a response outside the 2xx range.
	ErrUnexpectedStatus = errors.New("unexpected status")
	// ErrBodyTooLarge marks a response cut off at Request.MaxBodyBytes.
	ErrBodyTooLarge = errors.New("response body exceeds limit")
)

// Error is returned when a call fails for good: a non-transient failure,
// or a transient one that failed again on its single retry.
type Error struct {
	Method     string
	URL        string
	StatusCode int
	Attempts   int
	Body       string
	Err        error

	timeout bool
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s %s", e.Method, e.URL)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" status %d", e.StatusCode)
	}
	if e.Attempts > 1 {
		msg += fmt.Sprintf(" after %d attempts", e.Attempts)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Timeout reports whether the failure was a timeout.
func (e *Error) Timeout() bool { return e.timeout }

// Transient reports whether the failure qualifies for the single retry:
// a timeout or an upstream 5xx.
func (e *Error) Transient() bool {
	return e.timeout || e.StatusCode >= 500
}

// Snippet trims body to a short excerpt for errors and logs.
func Snippet(body []byte) string {
	const maxLen = 512
	s := strings.TrimSpace(string(body))
	if s == "" {
		return "<empty>"
	}
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	return s
}

// StatusOf returns the upstream status carried by err, or 0.
func StatusOf(err error) int {
	var he *Error
	if errors.As(err, &he) {
		return he.StatusCode
	}
	return 0
}
