package audit

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/newtron-network/omnigate/pkg/tools"
)

func newTestLogger(t *testing.T, rotation RotationConfig) (*FileLogger, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit", "audit.log")
	logger, err := NewFileLogger(path, rotation)
	if err != nil {
		t.Fatalf("NewFileLogger: %v", err)
	}
	t.Cleanup(func() { logger.Close() })
	return logger, path
}

func TestEvent_New(t *testing.T) {
	event := NewEvent("noc", "10.1.0.1:22", "aos.diag.poe")

	if event.Subject != "noc" || event.Target != "10.1.0.1:22" || event.Operation != "aos.diag.poe" {
		t.Errorf("event = %+v", event)
	}
	if _, err := uuid.Parse(event.ID); err != nil {
		t.Errorf("ID %q is not a uuid", event.ID)
	}
	if event.Timestamp.IsZero() || event.Timestamp.Location() != time.UTC {
		t.Errorf("Timestamp = %v, want UTC now", event.Timestamp)
	}
}

func TestEvent_Chaining(t *testing.T) {
	event := NewEvent("noc", "10.1.0.1:22", "aos.poe.restart").
		WithCorrelation("req-1", "cli").
		WithCommands([]string{"lanpower port 1/1/1 admin-state disable"}).
		WithWrite(true).
		WithError("ssh_error", "connect failed").
		WithDuration(1500 * time.Millisecond)

	if event.CorrelationID != "req-1" || event.Client != "cli" || !event.Write {
		t.Errorf("event = %+v", event)
	}
	if event.Success || event.Code != "ssh_error" || event.Error != "connect failed" {
		t.Errorf("error fields = %v/%q/%q", event.Success, event.Code, event.Error)
	}
	if event.DurationMS != 1500 {
		t.Errorf("DurationMS = %d", event.DurationMS)
	}

	event.WithSuccess()
	if !event.Success || event.Code != "" || event.Error != "" {
		t.Error("WithSuccess must clear the error")
	}
}

func TestFileLogger_RoundTrip(t *testing.T) {
	logger, _ := newTestLogger(t, RotationConfig{})

	event := NewEvent("noc", "10.1.0.1:22", "aos.vlan.audit").WithSuccess()
	if err := logger.Log(event); err != nil {
		t.Fatalf("Log: %v", err)
	}

	events, err := logger.Query(Filter{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].ID != event.ID || events[0].Operation != "aos.vlan.audit" || !events[0].Success {
		t.Errorf("event = %+v", events[0])
	}
}

func TestFileLogger_QueryFilters(t *testing.T) {
	logger, _ := newTestLogger(t, RotationConfig{})

	logger.Log(NewEvent("alice", "10.1.0.1:22", "aos.vlan.audit").WithSuccess())
	logger.Log(NewEvent("bob", "10.1.0.2:22", "aos.vlan.audit").WithError("ssh_error", "timeout"))
	logger.Log(NewEvent("alice", "10.1.0.2:22", "aos.poe.restart").WithWrite(true).WithSuccess())
	logger.Log(NewEvent("alice", "10.1.0.1:22", "aos.diag.poe").WithError("policy_violation", "denied"))

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"all", Filter{}, 4},
		{"subject", Filter{Subject: "alice"}, 3},
		{"target", Filter{Target: "10.1.0.2:22"}, 2},
		{"operation", Filter{Operation: "aos.vlan.audit"}, 2},
		{"code", Filter{Code: "ssh_error"}, 1},
		{"success only", Filter{SuccessOnly: true}, 2},
		{"failure only", Filter{FailureOnly: true}, 2},
		{"write only", Filter{WriteOnly: true}, 1},
		{"limit", Filter{Limit: 3}, 3},
		{"offset", Filter{Offset: 3}, 1},
		{"offset beyond", Filter{Offset: 10}, 0},
		{"future", Filter{StartTime: time.Now().Add(time.Hour)}, 0},
		{"past", Filter{EndTime: time.Now().Add(-time.Hour)}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events, err := logger.Query(tt.filter)
			if err != nil {
				t.Fatalf("Query: %v", err)
			}
			if len(events) != tt.want {
				t.Errorf("got %d events, want %d", len(events), tt.want)
			}
		})
	}
}

func TestFileLogger_SkipsMalformedLines(t *testing.T) {
	logger, path := newTestLogger(t, RotationConfig{})
	logger.Log(NewEvent("noc", "sw1:22", "aos.ntp.status").WithSuccess())

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		t.Fatal(err)
	}
	f.WriteString("{not json\n")
	f.Close()
	logger.Log(NewEvent("noc", "sw1:22", "aos.lacp.info").WithSuccess())

	events, err := logger.Query(Filter{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(events) != 2 {
		t.Errorf("got %d events, want 2", len(events))
	}
}

func TestFileLogger_Rotation(t *testing.T) {
	logger, path := newTestLogger(t, RotationConfig{MaxSize: 200, MaxBackups: 2})

	for i := 0; i < 6; i++ {
		if err := logger.Log(NewEvent("noc", "10.1.0.1:22", "aos.device.facts").WithSuccess()); err != nil {
			t.Fatalf("Log %d: %v", i, err)
		}
	}

	backups, _ := filepath.Glob(path + ".*")
	if len(backups) != 2 {
		t.Errorf("kept %d backups, want 2: %v", len(backups), backups)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() == 0 {
		t.Error("live file is empty after rotation")
	}

	// one event per file: two backups and the live file
	events, err := logger.Query(Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 3 {
		t.Errorf("Query across files returned %d events, want 3", len(events))
	}
}

func TestFileLogger_LogAfterClose(t *testing.T) {
	logger, _ := newTestLogger(t, RotationConfig{})
	if err := logger.Close(); err != nil {
		t.Fatal(err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("second Close = %v", err)
	}
	if err := logger.Log(NewEvent("noc", "sw1:22", "aos.ntp.status")); err == nil {
		t.Error("Log after Close should fail")
	}
}

func TestNewFileLogger_Errors(t *testing.T) {
	if _, err := NewFileLogger("/dev/null/impossible/audit.log", RotationConfig{}); err == nil {
		t.Error("expected an error for an uncreatable directory")
	}
	dir := t.TempDir()
	if _, err := NewFileLogger(dir, RotationConfig{}); err == nil {
		t.Error("expected an error when the path is a directory")
	}
}

func TestDefaultLogger(t *testing.T) {
	SetDefaultLogger(nil)
	if err := Log(NewEvent("noc", "sw1:22", "aos.ntp.status")); err != nil {
		t.Errorf("Log without a logger = %v", err)
	}
	events, err := Query(Filter{})
	if err != nil || len(events) != 0 {
		t.Errorf("Query without a logger = %v, %v", events, err)
	}

	logger, _ := newTestLogger(t, RotationConfig{})
	SetDefaultLogger(logger)
	t.Cleanup(func() { SetDefaultLogger(nil) })

	Log(NewEvent("noc", "sw1:22", "aos.ntp.status").WithSuccess())
	events, err = Query(Filter{})
	if err != nil || len(events) != 1 {
		t.Errorf("Query = %d events, %v", len(events), err)
	}
}

func TestFromResponse(t *testing.T) {
	req := tools.Request{
		Operation: "aos.poe.restart",
		Context:   tools.RequestContext{Subject: "noc", Client: "mcp"},
	}
	resp := &tools.Response{
		Status: tools.StatusError,
		Error: &tools.Error{
			Kind:    tools.KindSSH,
			Message: "enable failed; port 1/1/1 was left disabled",
			Details: map[string]any{"partial": true},
		},
		Meta: tools.Meta{
			Operation:     "aos.poe.restart",
			DurationMS:    5020,
			CorrelationID: "req-9",
			Target:        "10.1.0.1:22",
			Commands:      []string{"lanpower port 1/1/1 admin-state disable", "lanpower port 1/1/1 admin-state enable"},
		},
	}

	e := FromResponse(req, resp, true)
	if e.Success || e.Code != "ssh_error" || !e.Partial || !e.Write {
		t.Errorf("event = %+v", e)
	}
	if e.CorrelationID != "req-9" || e.Client != "mcp" || e.Target != "10.1.0.1:22" || e.DurationMS != 5020 {
		t.Errorf("event = %+v", e)
	}
	if !strings.Contains(e.Error, "left disabled") || len(e.Commands) != 2 {
		t.Errorf("event = %+v", e)
	}
}

func TestObserverWritesEvents(t *testing.T) {
	logger, _ := newTestLogger(t, RotationConfig{})
	SetDefaultLogger(logger)
	t.Cleanup(func() { SetDefaultLogger(nil) })

	observe := Observer(tools.DefaultRegistry())
	observe(tools.Request{Operation: "aos.poe.restart"}, &tools.Response{Status: tools.StatusOK, Meta: tools.Meta{Target: "sw1:22"}})
	observe(tools.Request{Operation: "aos.diag.poe"}, &tools.Response{Status: tools.StatusOK, Meta: tools.Meta{Target: "sw1:22"}})

	writes, err := logger.Query(Filter{WriteOnly: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(writes) != 1 || writes[0].Operation != "aos.poe.restart" {
		t.Errorf("write events = %+v", writes)
	}
}
