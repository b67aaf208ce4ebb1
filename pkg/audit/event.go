// Package audit records every tool invocation as a JSON line.
//
// The log is append-only and written for operators; the gateway itself
// never reads it back to make decisions.
package audit

import (
	"time"

	"github.com/google/uuid"
)

// Event is one completed invocation
type Event struct {
	ID               string    `json:"id"`
	Timestamp        time.Time `json:"timestamp"`
	Subject          string    `json:"subject,omitempty"`
	Client           string    `json:"client,omitempty"`
	CorrelationID    string    `json:"correlation_id,omitempty"`
	Operation        string    `json:"operation"`
	Target           string    `json:"target,omitempty"`
	Commands         []string  `json:"commands,omitempty"`
	CredentialSource string    `json:"credential_source,omitempty"`
	Write            bool      `json:"write,omitempty"`
	Success          bool      `json:"success"`
	Code             string    `json:"code,omitempty"`
	Error            string    `json:"error,omitempty"`
	Partial          bool      `json:"partial,omitempty"`
	Truncated        bool      `json:"truncated,omitempty"`
	Redacted         bool      `json:"redacted,omitempty"`
	DurationMS       int64     `json:"duration_ms"`
}

// Filter defines criteria for querying audit events
type Filter struct {
	Target      string
	Subject     string
	Operation   string
	Code        string
	StartTime   time.Time
	EndTime     time.Time
	SuccessOnly bool
	FailureOnly bool
	WriteOnly   bool
	Limit       int
	Offset      int
}

// NewEvent creates an event stamped with a fresh id and the current time
func NewEvent(subject, target, operation string) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Subject:   subject,
		Target:    target,
		Operation: operation,
	}
}

// WithCorrelation sets the caller's correlation id and client name
func (e *Event) WithCorrelation(id, client string) *Event {
	e.CorrelationID = id
	e.Client = client
	return e
}

// WithCommands records the commands sent to the switch
func (e *Event) WithCommands(commands []string) *Event {
	e.Commands = commands
	return e
}

// WithWrite marks a state-changing operation
func (e *Event) WithWrite(write bool) *Event {
	e.Write = write
	return e
}

// WithSuccess marks the event as successful
func (e *Event) WithSuccess() *Event {
	e.Success = true
	e.Code = ""
	e.Error = ""
	return e
}

// WithError marks the event as failed with an error code and message
func (e *Event) WithError(code, message string) *Event {
	e.Success = false
	e.Code = code
	e.Error = message
	return e
}

// WithDuration sets the invocation duration
func (e *Event) WithDuration(d time.Duration) *Event {
	e.DurationMS = d.Milliseconds()
	return e
}

func (e *Event) matches(f Filter) bool {
	switch {
	case f.Target != "" && e.Target != f.Target:
		return false
	case f.Subject != "" && e.Subject != f.Subject:
		return false
	case f.Operation != "" && e.Operation != f.Operation:
		return false
	case f.Code != "" && e.Code != f.Code:
		return false
	case !f.StartTime.IsZero() && e.Timestamp.Before(f.StartTime):
		return false
	case !f.EndTime.IsZero() && e.Timestamp.After(f.EndTime):
		return false
	case f.SuccessOnly && !e.Success:
		return false
	case f.FailureOnly && e.Success:
		return false
	case f.WriteOnly && !e.Write:
		return false
	}
	return true
}
