package tools

import (
	"fmt"
	"sort"
	"time"

	"github.com/newtron-network/omnigate/pkg/config"
)

// ParamType is the declared type of an operation argument
type ParamType string

const (
	ParamString  ParamType = "string"
	ParamInteger ParamType = "integer"
	ParamBoolean ParamType = "boolean"
)

// Param describes one argument an operation accepts
type Param struct {
	Name        string    `json:"name"`
	Type        ParamType `json:"type"`
	Description string    `json:"description"`
	Required    bool      `json:"required,omitempty"`
}

// Env is the read-only configuration plans and parsers draw on
type Env struct {
	Templates  config.TemplatesConfig
	Thresholds config.ThresholdsConfig
	Now        func() time.Time
}

// Operation binds a name to its argument shape, command builder and parser
type Operation struct {
	Name        string
	Description string
	Params      []Param
	// Write operations change device state.
	Write bool

	newArgs func() args
	plan    func(a args, env *Env) Plan
	parse   func(a args, out *Outputs, env *Env) any
}

// Registry maps operation names to operations. It is built once and
// read-only afterwards.
type Registry struct {
	ops map[string]*Operation
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{ops: make(map[string]*Operation)}
}

// Register adds an operation. Registering a name twice is an error.
func (r *Registry) Register(op *Operation) error {
	if op.Name == "" || op.newArgs == nil || op.plan == nil || op.parse == nil {
		return fmt.Errorf("operation %q is incomplete", op.Name)
	}
	if _, ok := r.ops[op.Name]; ok {
		return fmt.Errorf("operation %q already registered", op.Name)
	}
	r.ops[op.Name] = op
	return nil
}

// Lookup finds an operation by name
func (r *Registry) Lookup(name string) (*Operation, bool) {
	op, ok := r.ops[name]
	return op, ok
}

// Operations returns every registered operation sorted by name
func (r *Registry) Operations() []*Operation {
	out := make([]*Operation, 0, len(r.ops))
	for _, op := range r.ops {
		out = append(out, op)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// DefaultRegistry returns a registry holding the full OmniSwitch catalog
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, op := range catalog() {
		if err := r.Register(op); err != nil {
			panic(err)
		}
	}
	return r
}

var (
	hostParam = Param{Name: "host", Type: ParamString, Required: true,
		Description: "Switch management address (IPv4 or hostname)"}
	portParam = Param{Name: "port", Type: ParamInteger,
		Description: "SSH port (default from ssh.port)"}
)

// params prefixes the target parameters every operation takes
func params(extra ...Param) []Param {
	return append([]Param{hostParam, portParam}, extra...)
}
