package llm

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a completion failure so callers can choose a reply.
type ErrorKind string

// Completion failure kinds.
const (
	ErrKindConfig    ErrorKind = "config"
	ErrKindTransport ErrorKind = "transport"
	ErrKindStatus    ErrorKind = "status"
	ErrKindDecode    ErrorKind = "decode"
	ErrKindEmpty     ErrorKind = "empty"
)

// CompletionError represents any failure calling the generative service.
type CompletionError struct {
	Kind       ErrorKind
	Provider   Provider
	StatusCode int // set for ErrKindStatus
	Message    string
	Cause      error
}

func (e *CompletionError) Error() string {
	msg := fmt.Sprintf("%s completion error (%s)", e.Provider, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": HTTP %d", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += fmt.Sprintf(": %v", e.Cause)
	}
	return msg
}

func (e *CompletionError) Unwrap() error {
	return e.Cause
}

// Replies shown in place of a completion that failed.
const (
	FallbackReplyText = "Sorry, I encountered an error while processing your request."
	EmptyReplyText    = "No response from the assistant."
)

// FallbackReply picks the reply text for a failed completion.
func FallbackReply(err error) string {
	var cerr *CompletionError
	if errors.As(err, &cerr) && cerr.Kind == ErrKindEmpty {
		return EmptyReplyText
	}
	return FallbackReplyText
}
