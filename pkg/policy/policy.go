// Package policy decides which commands may be sent to a switch and scrubs
// the text that comes back.
package policy

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/newtron-network/omnigate/pkg/config"
	"github.com/newtron-network/omnigate/pkg/util"
)

// ErrDenied is wrapped by every policy rejection
var ErrDenied = errors.New("command denied by policy")

// ansiPattern matches CSI escape sequences (colours, cursor movement).
var ansiPattern = regexp.MustCompile(`\x1B\[[0-?]*[ -/]*[@-~]`)

// pythonGroupRef matches \1 style group references in replacements.
var pythonGroupRef = regexp.MustCompile(`\\(\d+)`)

// DeniedError explains why a command was rejected
type DeniedError struct {
	Command string
	Reason  string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("command denied by policy: %s", e.Reason)
}

func (e *DeniedError) Unwrap() error {
	return ErrDenied
}

// Redaction replaces every match of Pattern with Replacement
type Redaction struct {
	Pattern     *regexp.Regexp
	Replacement string
}

// Policy is a compiled, immutable command policy. It is safe for concurrent use.
type Policy struct {
	allow         []*regexp.Regexp
	deny          []*regexp.Regexp
	maxLength     int
	denyMultiline bool
	stripANSI     bool
	redactions    []Redaction
}

// New compiles a policy from configuration
func New(cfg config.PolicyConfig) (*Policy, error) {
	p := &Policy{
		maxLength:     cfg.MaxCommandLength,
		denyMultiline: cfg.DenyMultiline == nil || *cfg.DenyMultiline,
		stripANSI:     cfg.StripANSI == nil || *cfg.StripANSI,
	}

	var err error
	if p.allow, err = compileAll("policy.allow", cfg.Allow); err != nil {
		return nil, err
	}
	if p.deny, err = compileAll("policy.deny", cfg.Deny); err != nil {
		return nil, err
	}
	for i, r := range cfg.Redactions {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, util.NewConfigError(fmt.Sprintf("policy.redactions[%d]", i), err.Error())
		}
		p.redactions = append(p.redactions, Redaction{
			Pattern:     re,
			Replacement: pythonGroupRef.ReplaceAllString(r.Replacement, `$${$1}`),
		})
	}
	return p, nil
}

func compileAll(field string, patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for i, pat := range patterns {
		re, err := regexp.Compile(pat)
		if err != nil {
			return nil, util.NewConfigError(fmt.Sprintf("%s[%d]", field, i), err.Error())
		}
		out = append(out, re)
	}
	return out, nil
}

// Validate returns nil if command may be executed, or a *DeniedError.
func (p *Policy) Validate(command string) error {
	trimmed := strings.Trim(command, " \t")
	if trimmed == "" {
		return p.denied(command, "empty command")
	}
	if p.denyMultiline && strings.ContainsAny(command, "\r\n") {
		return p.denied(command, "multiline commands are not allowed")
	}
	for _, r := range command {
		if r == '\t' || (!p.denyMultiline && (r == '\n' || r == '\r')) {
			continue
		}
		if r < 0x20 || r == 0x7f {
			return p.denied(command, fmt.Sprintf("control character %#x not allowed", r))
		}
	}
	if p.maxLength > 0 && len(command) > p.maxLength {
		return p.denied(command, fmt.Sprintf("command length %d exceeds limit %d", len(command), p.maxLength))
	}
	for _, re := range p.deny {
		if re.MatchString(trimmed) {
			return p.denied(command, fmt.Sprintf("matches deny pattern %q", re.String()))
		}
	}
	for _, re := range p.allow {
		if re.MatchString(trimmed) {
			return nil
		}
	}
	return p.denied(command, "does not match any allow pattern")
}

func (p *Policy) denied(command, reason string) error {
	return &DeniedError{Command: command, Reason: reason}
}

// Sanitize strips terminal escape sequences and applies every redaction rule
// in order. The boolean reports whether any redaction changed the text.
func (p *Policy) Sanitize(output string) (string, bool) {
	if p.stripANSI {
		output = StripANSI(output)
	}
	redacted := false
	for _, r := range p.redactions {
		next := r.Pattern.ReplaceAllString(output, r.Replacement)
		if next != output {
			redacted = true
			output = next
		}
	}
	return output, redacted
}

// StripANSI removes CSI escape sequences. Removal is repeated until none
// remain, since deleting one sequence can splice the halves of another.
func StripANSI(s string) string {
	for ansiPattern.MatchString(s) {
		s = ansiPattern.ReplaceAllString(s, "")
	}
	return s
}
