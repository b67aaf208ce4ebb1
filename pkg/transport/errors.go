package transport

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/newtron-network/omnigate/pkg/hostkeys"
)

// Kind classifies a transport failure
type Kind string

const (
	KindConnect Kind = "connect"
	KindAuth    Kind = "auth"
	KindHostKey Kind = "hostkey"
	KindTimeout Kind = "timeout"
	KindSession Kind = "session"
)

// Error is returned for every failure to reach a target or run a command
type Error struct {
	Kind   Kind
	Target Target
	Err    error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindConnect:
		return fmt.Sprintf("ssh %s: connect failed: %v", e.Target, e.Err)
	case KindAuth:
		return fmt.Sprintf("ssh %s: authentication failed: %v", e.Target, e.Err)
	case KindHostKey:
		return fmt.Sprintf("ssh %s: host key verification failed: %v", e.Target, e.Err)
	case KindTimeout:
		return fmt.Sprintf("ssh %s: %v", e.Target, e.Err)
	default:
		return fmt.Sprintf("ssh %s: session failed: %v", e.Target, e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is a transport error of kind k
func IsKind(err error, k Kind) bool {
	var te *Error
	return errors.As(err, &te) && te.Kind == k
}

// classifyHandshake maps an ssh.NewClientConn failure to a Kind
func classifyHandshake(target Target, err error) *Error {
	var ke *hostkeys.KeyError
	switch {
	case errors.As(err, &ke):
		return &Error{Kind: KindHostKey, Target: target, Err: ke}
	case strings.Contains(err.Error(), "known_hosts"):
		return &Error{Kind: KindHostKey, Target: target, Err: err}
	case strings.Contains(err.Error(), "unable to authenticate"):
		return &Error{Kind: KindAuth, Target: target, Err: err}
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &Error{Kind: KindConnect, Target: target, Err: fmt.Errorf("handshake timed out: %w", err)}
	}
	return &Error{Kind: KindConnect, Target: target, Err: err}
}
