package tools

import (
	"fmt"
	"strings"
	"time"

	"github.com/newtron-network/omnigate/pkg/transport"
)

// Step is one CLI command in a plan
type Step struct {
	Key     string
	Command string
	// Timeout overrides ssh.command_timeout_s when non-zero.
	Timeout time.Duration
	// Optional steps may fail without failing the call; the failure is
	// reported as an issue on the parsed record.
	Optional bool
	// Pause is waited out before the step runs.
	Pause time.Duration
}

// Plan is the ordered command list for one invocation
type Plan struct {
	Steps []Step
	// Parallel steps run concurrently, each on its own session.
	Parallel bool
	// Write marks a plan that changes device state. A failure after an
	// earlier step succeeded is reported as partial completion.
	Write bool
	// PartialState describes the device state left by a partial failure.
	PartialState string
}

// Commands lists the command strings of the plan in order
func (p Plan) Commands() []string {
	out := make([]string, len(p.Steps))
	for i, s := range p.Steps {
		out[i] = s.Command
	}
	return out
}

// add appends a required step
func (p *Plan) add(key, command string) *Plan {
	p.Steps = append(p.Steps, Step{Key: key, Command: command})
	return p
}

// optional appends a step whose failure is tolerated
func (p *Plan) optional(key, command string) *Plan {
	p.Steps = append(p.Steps, Step{Key: key, Command: command, Optional: true})
	return p
}

// Outputs holds the sanitized results of an executed plan, keyed by step
type Outputs struct {
	results map[string]*transport.Result
	failed  []string
}

func newOutputs() *Outputs {
	return &Outputs{results: map[string]*transport.Result{}}
}

// Stdout returns a step's sanitized output, or "" if it failed or never ran
func (o *Outputs) Stdout(key string) string {
	if r, ok := o.results[key]; ok {
		return r.Stdout
	}
	return ""
}

// Result returns a step's result
func (o *Outputs) Result(key string) (*transport.Result, bool) {
	r, ok := o.results[key]
	return r, ok
}

// Issues describes every optional step that failed
func (o *Outputs) Issues() []string {
	return o.failed
}

func (o *Outputs) fail(s Step, err error) {
	o.failed = append(o.failed, fmt.Sprintf("%s unavailable: %s", s.Command, err))
}

// expand substitutes {name} placeholders in a command template
func expand(template string, values map[string]string) string {
	pairs := make([]string, 0, 2*len(values))
	for k, v := range values {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}
