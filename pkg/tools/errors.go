package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/newtron-network/omnigate/pkg/policy"
	"github.com/newtron-network/omnigate/pkg/session"
	"github.com/newtron-network/omnigate/pkg/transport"
	"github.com/newtron-network/omnigate/pkg/util"
)

// Kind is the error code returned to callers
type Kind string

const (
	KindInvalidRequest  Kind = "invalid_request"
	KindPolicyViolation Kind = "policy_violation"
	KindSSH             Kind = "ssh_error"
	KindUnknownTool     Kind = "unknown_tool"
	KindInternal        Kind = "internal_error"
)

// Error is the structured failure carried in a Response
type Error struct {
	Kind    Kind           `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func newError(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// classify maps an error from the pipeline to exactly one Kind
func classify(err error) *Error {
	var te *Error
	if errors.As(err, &te) {
		return te
	}

	e := &Error{Message: err.Error()}
	var denied *policy.DeniedError
	var terr *transport.Error
	var exhausted *session.ExhaustedError

	switch {
	case errors.Is(err, util.ErrValidationFailed):
		e.Kind = KindInvalidRequest
		var ve *util.ValidationError
		if errors.As(err, &ve) {
			e.Details = map[string]any{"errors": ve.Errors}
		}
	case errors.As(err, &denied):
		e.Kind = KindPolicyViolation
		e.Details = map[string]any{"command": denied.Command, "reason": denied.Reason}
	case errors.Is(err, session.ErrNoCredentials):
		e.Kind = KindInternal
	case errors.As(err, &terr):
		e.Kind = KindSSH
		e.Details = map[string]any{"reason": string(terr.Kind), "target": terr.Target.Addr()}
		if errors.As(err, &exhausted) {
			e.Details["attempts"] = exhausted.Attempts
			e.Details["credential_source"] = exhausted.Source
		}
	case errors.Is(err, context.DeadlineExceeded):
		e.Kind = KindSSH
		e.Details = map[string]any{"reason": string(transport.KindTimeout)}
	case errors.Is(err, context.Canceled):
		e.Kind = KindInternal
		e.Message = "request cancelled: " + err.Error()
	default:
		e.Kind = KindInternal
	}
	return e
}
