// Package tools turns named operations into policy-checked CLI commands,
// runs them over SSH and returns parsed records.
//
// Every invocation follows the same pipeline: look up the operation, decode
// and validate its arguments, build the command plan, check every command
// against the policy, execute, sanitize, parse. Failures at any stage are
// reported as a structured Error with exactly one Kind.
package tools

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/newtron-network/omnigate/pkg/config"
	"github.com/newtron-network/omnigate/pkg/policy"
	"github.com/newtron-network/omnigate/pkg/transport"
	"github.com/newtron-network/omnigate/pkg/util"
)

// Response status values
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// RequestContext is opaque caller context carried into logs and the audit
// trail. It has no authorization weight.
type RequestContext struct {
	Subject       string `json:"subject,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
	Client        string `json:"client,omitempty"`
}

// Request is one operation invocation
type Request struct {
	Operation string         `json:"operation"`
	Args      map[string]any `json:"args"`
	Context   RequestContext `json:"context"`
}

// Meta describes how a response was produced
type Meta struct {
	Operation        string   `json:"operation"`
	DurationMS       int64    `json:"duration_ms"`
	CorrelationID    string   `json:"correlation_id"`
	Target           string   `json:"target,omitempty"`
	Commands         []string `json:"commands,omitempty"`
	CredentialSource string   `json:"credential_source,omitempty"`
	Truncated        bool     `json:"truncated"`
	Redacted         bool     `json:"redacted"`
}

// Response is the result of Invoke. Exactly one of Data and Error is set.
type Response struct {
	Status   string   `json:"status"`
	Data     any      `json:"data,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
	Error    *Error   `json:"error,omitempty"`
	Meta     Meta     `json:"meta"`
}

func (r *Response) fail(e *Error) {
	r.Status = StatusError
	r.Data = nil
	r.Error = e
}

// Runner executes one command against a target. *session.Orchestrator
// satisfies it.
type Runner interface {
	Run(ctx context.Context, target transport.Target, command string, timeout time.Duration) (*transport.Result, error)
}

// Observer is called once per invocation after the response is final
type Observer func(req Request, resp *Response)

// SleepFunc waits d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithObserver registers a completion callback
func WithObserver(fn Observer) Option {
	return func(o *Orchestrator) { o.observers = append(o.observers, fn) }
}

// WithSleep replaces the saga delay
func WithSleep(fn SleepFunc) Option {
	return func(o *Orchestrator) { o.sleep = fn }
}

// WithClock replaces the time source used for backup file names
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.env.Now = now }
}

// WithRegistry replaces the default operation catalog
func WithRegistry(r *Registry) Option {
	return func(o *Orchestrator) { o.registry = r }
}

// Orchestrator executes operations. It holds no per-call state and is safe
// for concurrent use.
type Orchestrator struct {
	registry       *Registry
	policy         *policy.Policy
	runner         Runner
	env            Env
	defaultPort    int
	commandTimeout time.Duration
	maxOutput      int
	sleep          SleepFunc
	observers      []Observer
}

// New builds an orchestrator. Configured pre-commands are checked against
// the policy here, since the transport sends them on every session.
func New(cfg *config.Config, pol *policy.Policy, runner Runner, opts ...Option) (*Orchestrator, error) {
	for _, cmd := range cfg.SSH.PreCommands {
		if err := pol.Validate(cmd); err != nil {
			return nil, fmt.Errorf("ssh.pre_commands: %w", err)
		}
	}
	o := &Orchestrator{
		registry:       DefaultRegistry(),
		policy:         pol,
		runner:         runner,
		env:            Env{Templates: cfg.Templates, Thresholds: cfg.Thresholds, Now: time.Now},
		defaultPort:    cfg.SSH.Port,
		commandTimeout: cfg.SSH.CommandTimeout(),
		maxOutput:      cfg.SSH.MaxOutputBytes,
		sleep:          sleepContext,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Registry returns the operation catalog
func (o *Orchestrator) Registry() *Registry {
	return o.registry
}

// Invoke runs one operation. It never returns nil and never panics.
func (o *Orchestrator) Invoke(ctx context.Context, req Request) (resp *Response) {
	start := time.Now()
	corrID := req.Context.CorrelationID
	if corrID == "" {
		corrID = uuid.NewString()
	}
	resp = &Response{Meta: Meta{Operation: req.Operation, CorrelationID: corrID}}
	log := util.WithRequest(req.Operation, req.Context.Subject, corrID)

	defer func() {
		if r := recover(); r != nil {
			log.Errorf("Operation panicked: %v", r)
			resp.fail(newError(KindInternal, "internal error while handling %s", req.Operation))
		}
		resp.Meta.DurationMS = time.Since(start).Milliseconds()
		entry := log.WithField("duration_ms", resp.Meta.DurationMS)
		if resp.Error != nil {
			entry.WithField("code", resp.Error.Kind).Warnf("Operation failed: %s", resp.Error.Message)
		} else {
			entry.Info("Operation completed")
		}
		for _, fn := range o.observers {
			fn(req, resp)
		}
	}()

	op, ok := o.registry.Lookup(req.Operation)
	if !ok {
		resp.fail(newError(KindUnknownTool, "unknown operation %q", req.Operation))
		return resp
	}

	a := op.newArgs()
	r := newArgReader(req.Args)
	a.decode(r)
	r.unknown()
	a.validate(r.v)
	if err := r.v.Build(); err != nil {
		resp.fail(classify(err))
		return resp
	}

	target := a.target()
	if target.Port == 0 {
		target.Port = o.defaultPort
	}
	resp.Meta.Target = target.Addr()
	log = log.WithField("target", resp.Meta.Target)

	plan := op.plan(a, &o.env)
	resp.Meta.Commands = plan.Commands()
	for _, s := range plan.Steps {
		if err := o.policy.Validate(s.Command); err != nil {
			resp.fail(classify(err))
			return resp
		}
	}

	log.Debugf("Executing %d command(s)", len(plan.Steps))
	out, err := o.execute(ctx, target, plan)
	if err != nil {
		resp.fail(classify(err))
		return resp
	}

	for _, s := range plan.Steps {
		res, ok := out.Result(s.Key)
		if !ok {
			continue
		}
		if res.CredentialSource != "" {
			resp.Meta.CredentialSource = res.CredentialSource
		}
		if res.Truncated {
			resp.Meta.Truncated = true
			resp.Warnings = append(resp.Warnings, fmt.Sprintf("output of %q truncated at %d bytes", s.Command, o.maxOutput))
		}
		if res.Redacted {
			resp.Meta.Redacted = true
			resp.Warnings = append(resp.Warnings, fmt.Sprintf("output of %q was redacted", s.Command))
		}
	}

	resp.Data = op.parse(a, out, &o.env)
	resp.Status = StatusOK
	return resp
}

// execute runs the plan and returns the sanitized outputs
func (o *Orchestrator) execute(ctx context.Context, target transport.Target, plan Plan) (*Outputs, error) {
	if plan.Parallel {
		return o.executeParallel(ctx, target, plan)
	}

	out := newOutputs()
	var completed []string
	for _, s := range plan.Steps {
		err := ctx.Err()
		if err == nil && s.Pause > 0 {
			err = o.sleep(ctx, s.Pause)
		}
		var res *transport.Result
		if err == nil {
			res, err = o.runStep(ctx, target, s)
		}
		if err != nil {
			if s.Optional {
				out.fail(s, err)
				continue
			}
			if plan.Write && len(completed) > 0 {
				return nil, partialError(plan, completed, s, err)
			}
			return nil, err
		}
		out.results[s.Key] = res
		completed = append(completed, s.Command)
	}
	return out, nil
}

// executeParallel runs every step on its own session. A failed required
// step cancels the rest.
func (o *Orchestrator) executeParallel(ctx context.Context, target transport.Target, plan Plan) (*Outputs, error) {
	out := newOutputs()
	failures := make([]error, len(plan.Steps))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for i, s := range plan.Steps {
		g.Go(func() error {
			res, err := o.runStep(gctx, target, s)
			if err != nil {
				if s.Optional {
					failures[i] = err
					return nil
				}
				return err
			}
			mu.Lock()
			out.results[s.Key] = res
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for i, s := range plan.Steps {
		if failures[i] != nil {
			out.fail(s, failures[i])
		}
	}
	return out, nil
}

// runStep executes one command and sanitizes what came back
func (o *Orchestrator) runStep(ctx context.Context, target transport.Target, s Step) (*transport.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	timeout := s.Timeout
	if timeout == 0 {
		timeout = o.commandTimeout
	}
	res, err := o.runner.Run(ctx, target, s.Command, timeout)
	if err != nil {
		return nil, err
	}
	var outRedacted, errRedacted bool
	res.Stdout, outRedacted = o.policy.Sanitize(res.Stdout)
	res.Stderr, errRedacted = o.policy.Sanitize(res.Stderr)
	res.Redacted = res.Redacted || outRedacted || errRedacted
	return res, nil
}

// partialError reports a write plan that stopped after changing the device
func partialError(plan Plan, completed []string, failed Step, err error) *Error {
	e := classify(err)
	details := map[string]any{
		"partial":         true,
		"completed_steps": completed,
		"failed_step":     failed.Command,
	}
	for k, v := range e.Details {
		details[k] = v
	}
	msg := fmt.Sprintf("%q failed after %s succeeded", failed.Command, quoteAll(completed))
	if plan.PartialState != "" {
		msg += "; " + plan.PartialState
	}
	return &Error{Kind: e.Kind, Message: msg + ": " + e.Message, Details: details}
}

func quoteAll(cmds []string) string {
	q := make([]string, len(cmds))
	for i, c := range cmds {
		q[i] = fmt.Sprintf("%q", c)
	}
	return strings.Join(q, ", ")
}

// sleepContext waits d, returning early with ctx's error
func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
