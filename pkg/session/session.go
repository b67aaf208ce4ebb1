// Package session runs a command against a target, trying each resolved
// credential candidate once, in order, until one succeeds.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/newtron-network/omnigate/pkg/credentials"
	"github.com/newtron-network/omnigate/pkg/transport"
	"github.com/newtron-network/omnigate/pkg/util"
)

// ErrNoCredentials means no candidate exists for the target
var ErrNoCredentials = errors.New("no credentials configured for target")

// ExhaustedError is returned when every candidate failed. It wraps the last
// candidate's error.
type ExhaustedError struct {
	Attempts int
	Source   string
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("all %d credential candidates failed, last %s: %v", e.Attempts, e.Source, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// Resolver yields the ordered candidates for a host
type Resolver interface {
	Resolve(host string) []credentials.Candidate
}

// Executor runs one command with one credential
type Executor interface {
	Execute(ctx context.Context, target transport.Target, cred credentials.Candidate, command string, timeout time.Duration) (*transport.Result, error)
}

// Orchestrator walks the candidate list. It holds no per-call state and is
// safe for concurrent use.
type Orchestrator struct {
	resolver Resolver
	exec     Executor
}

// New creates an orchestrator
func New(resolver Resolver, exec Executor) *Orchestrator {
	return &Orchestrator{resolver: resolver, exec: exec}
}

// Run executes command on target, one attempt per candidate. The result
// records which candidate succeeded.
func (o *Orchestrator) Run(ctx context.Context, target transport.Target, command string, timeout time.Duration) (*transport.Result, error) {
	candidates := o.resolver.Resolve(target.Host)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%s: %w", target.Host, ErrNoCredentials)
	}

	var lastErr error
	var lastSource string
	for i, cand := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		log := util.WithTarget(target.Addr()).WithFields(map[string]interface{}{
			"source":  cand.Source,
			"user":    cand.Username,
			"attempt": i + 1,
		})
		log.Debug("Trying credential")

		res, err := o.exec.Execute(ctx, target, cand, command, timeout)
		if err == nil {
			res.CredentialSource = cand.Source
			return res, nil
		}
		log.WithError(err).Debug("Credential attempt failed")
		lastErr, lastSource = err, cand.Source
	}

	return nil, &ExhaustedError{Attempts: len(candidates), Source: lastSource, Err: lastErr}
}
