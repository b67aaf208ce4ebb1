// Package health provides the status scale used to roll up chassis and
// resource readings into one overall verdict.
package health

import "fmt"

// Status is a component health verdict. Statuses are ordered
// OK < WARNING < CRITICAL < DOWN.
type Status string

const (
	StatusOK       Status = "OK"
	StatusWarning  Status = "WARNING"
	StatusCritical Status = "CRITICAL"
	StatusDown     Status = "DOWN"
)

func (s Status) rank() int {
	switch s {
	case StatusOK:
		return 0
	case StatusWarning:
		return 1
	case StatusCritical:
		return 2
	case StatusDown:
		return 3
	}
	return 1
}

// Worse reports whether s is more severe than other
func (s Status) Worse(other Status) bool {
	return s.rank() > other.rank()
}

// Worst returns the most severe status, OK for none
func Worst(statuses ...Status) Status {
	worst := StatusOK
	for _, s := range statuses {
		if s.Worse(worst) {
			worst = s
		}
	}
	return worst
}

// Threshold classifies value: at or over critical is CRITICAL, at or over
// warning is WARNING.
func Threshold(value, warning, critical float64) Status {
	switch {
	case value >= critical:
		return StatusCritical
	case value >= warning:
		return StatusWarning
	default:
		return StatusOK
	}
}

// Result is the verdict for one component
type Result struct {
	Check   string `json:"check"`
	Status  Status `json:"status"`
	Message string `json:"message"`
}

// Report collects component results; Overall is the worst of them.
type Report struct {
	Overall Status   `json:"overall"`
	Results []Result `json:"results"`
}

// NewReport returns an empty report with an OK verdict
func NewReport() *Report {
	return &Report{Overall: StatusOK, Results: []Result{}}
}

// Add records a result and updates Overall (worst wins)
func (r *Report) Add(check string, status Status, format string, args ...interface{}) {
	r.Results = append(r.Results, Result{
		Check:   check,
		Status:  status,
		Message: fmt.Sprintf(format, args...),
	})
	r.Overall = Worst(r.Overall, status)
}

// Issues returns the messages of every non-OK result
func (r *Report) Issues() []string {
	var out []string
	for _, res := range r.Results {
		if res.Status != StatusOK {
			out = append(out, res.Message)
		}
	}
	return out
}
