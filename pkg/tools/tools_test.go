package tools

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/newtron-network/omnigate/pkg/config"
	"github.com/newtron-network/omnigate/pkg/parse"
	"github.com/newtron-network/omnigate/pkg/policy"
	"github.com/newtron-network/omnigate/pkg/session"
	"github.com/newtron-network/omnigate/pkg/transport"
)

// fakeRunner answers commands from a table and records what it was asked
type fakeRunner struct {
	mu       sync.Mutex
	outputs  map[string]string
	errs     map[string]error
	calls    []string
	timeouts map[string]time.Duration
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{outputs: map[string]string{}, errs: map[string]error{}, timeouts: map[string]time.Duration{}}
}

func (f *fakeRunner) Run(ctx context.Context, target transport.Target, command string, timeout time.Duration) (*transport.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, command)
	f.timeouts[command] = timeout
	if err, ok := f.errs[command]; ok {
		return nil, err
	}
	return &transport.Result{Command: command, Stdout: f.outputs[command], CredentialSource: "global"}, nil
}

func (f *fakeRunner) called() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func newTestOrchestrator(t *testing.T, runner Runner, opts ...Option) *Orchestrator {
	t.Helper()
	cfg := config.Default()
	pol, err := policy.New(cfg.Policy)
	if err != nil {
		t.Fatalf("policy.New: %v", err)
	}
	o, err := New(cfg, pol, runner, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return o
}

func invoke(o *Orchestrator, op string, args map[string]any) *Response {
	return o.Invoke(context.Background(), Request{Operation: op, Args: args})
}

func TestInvokeUnknownTool(t *testing.T) {
	runner := newFakeRunner()
	o := newTestOrchestrator(t, runner)

	resp := invoke(o, "aos.reload", map[string]any{"host": "10.1.0.1"})
	if resp.Status != StatusError || resp.Error.Kind != KindUnknownTool {
		t.Fatalf("resp = %+v, want unknown_tool", resp)
	}
	if len(runner.called()) != 0 {
		t.Error("runner must not be called")
	}
}

func TestInvokeInvalidArguments(t *testing.T) {
	tests := []struct {
		name string
		op   string
		args map[string]any
		want string
	}{
		{"missing host", "aos.device.facts", map[string]any{}, "host is required"},
		{"bad host", "aos.device.facts", map[string]any{"host": "sw_01;reload"}, "not a valid IPv4 address or hostname"},
		{"port out of range", "aos.device.facts", map[string]any{"host": "10.1.0.1", "port": 70000}, "out of range 1-65535"},
		{"bad port id", "aos.port.info", map[string]any{"host": "10.1.0.1", "port_id": "1/1/1;reload"}, "port_id"},
		{"missing port id", "aos.poe.restart", map[string]any{"host": "10.1.0.1"}, "port_id is required"},
		{"wait too long", "aos.poe.restart", map[string]any{"host": "10.1.0.1", "port_id": "1/1/1", "wait_seconds": 61}, "wait_seconds 61 out of range 0-60"},
		{"vlan out of range", "aos.vlan.audit", map[string]any{"host": "10.1.0.1", "vlan_id": 4095}, "vlan_id 4095"},
		{"bad mac", "aos.mac.lookup", map[string]any{"host": "10.1.0.1", "mac_address": "zz:zz"}, "not a valid MAC address"},
		{"mac and ip", "aos.mac.lookup", map[string]any{"host": "10.1.0.1", "mac_address": "00:11:22:33:44:55", "ip_address": "10.1.0.9"}, "mutually exclusive"},
		{"count not a number", "aos.diag.ping", map[string]any{"host": "10.1.0.1", "destination": "8.8.8.8", "count": "many"}, "count: expected an integer"},
		{"fractional count", "aos.diag.ping", map[string]any{"host": "10.1.0.1", "destination": "8.8.8.8", "count": 2.5}, "count: expected an integer"},
		{"unknown argument", "aos.device.facts", map[string]any{"host": "10.1.0.1", "verbose": true}, `unknown argument "verbose"`},
		{"timeout too long", "aos.cli.readonly", map[string]any{"host": "10.1.0.1", "command": "show vlan", "timeout_s": 301}, "timeout_s"},
		{"bad protocol", "aos.routing.audit", map[string]any{"host": "10.1.0.1", "protocol": "isis"}, "protocol"},
		{"bad boolean", "aos.health.monitor", map[string]any{"host": "10.1.0.1", "detailed": "sometimes"}, "detailed: expected a boolean"},
		{"boolean for integer", "aos.poe.restart", map[string]any{"host": "10.1.0.1", "port_id": "1/1/3", "wait_seconds": true}, "wait_seconds: expected an integer"},
		{"number for boolean", "aos.health.monitor", map[string]any{"host": "10.1.0.1", "detailed": float64(1)}, "detailed: expected a boolean"},
		{"number for string", "aos.port.info", map[string]any{"host": "10.1.0.1", "port_id": float64(3)}, "port_id: expected a string"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := newFakeRunner()
			o := newTestOrchestrator(t, runner)

			resp := invoke(o, tt.op, tt.args)
			if resp.Status != StatusError || resp.Error.Kind != KindInvalidRequest {
				t.Fatalf("resp = %+v, want invalid_request", resp)
			}
			if !strings.Contains(resp.Error.Message, tt.want) {
				t.Errorf("message %q does not mention %q", resp.Error.Message, tt.want)
			}
			if len(runner.called()) != 0 {
				t.Errorf("runner called with %v", runner.called())
			}
		})
	}
}

func TestInvokePolicyViolation(t *testing.T) {
	for _, cmd := range []string{"configure terminal", "show vlan\nreload", "reload all"} {
		t.Run(cmd, func(t *testing.T) {
			runner := newFakeRunner()
			o := newTestOrchestrator(t, runner)

			resp := invoke(o, "aos.cli.readonly", map[string]any{"host": "10.1.0.1", "command": cmd})
			if resp.Status != StatusError || resp.Error.Kind != KindPolicyViolation {
				t.Fatalf("resp = %+v, want policy_violation", resp)
			}
			if resp.Error.Details["command"] != cmd {
				t.Errorf("details = %v", resp.Error.Details)
			}
			if len(runner.called()) != 0 {
				t.Error("denied command reached the runner")
			}
		})
	}
}

func TestNewRejectsDeniedPreCommands(t *testing.T) {
	cfg := config.Default()
	cfg.SSH.PreCommands = []string{"reload"}
	pol, err := policy.New(cfg.Policy)
	if err != nil {
		t.Fatal(err)
	}
	_, err = New(cfg, pol, newFakeRunner())
	if !errors.Is(err, policy.ErrDenied) {
		t.Fatalf("New error = %v, want policy denial", err)
	}
}

func TestInvokeTransportErrors(t *testing.T) {
	target := transport.Target{Host: "10.1.0.1", Port: 22}
	authErr := &transport.Error{Kind: transport.KindAuth, Target: target, Err: errors.New("unable to authenticate")}

	tests := []struct {
		name       string
		err        error
		wantKind   Kind
		wantReason string
		wantSource string
	}{
		{"timeout", &transport.Error{Kind: transport.KindTimeout, Target: target, Err: errors.New("command timed out after 30s")}, KindSSH, "timeout", ""},
		{"connect", &transport.Error{Kind: transport.KindConnect, Target: target, Err: errors.New("connection refused")}, KindSSH, "connect", ""},
		{"exhausted", &session.ExhaustedError{Attempts: 2, Source: "zone:9", Err: authErr}, KindSSH, "auth", "zone:9"},
		{"no credentials", fmt.Errorf("10.1.0.1: %w", session.ErrNoCredentials), KindInternal, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := newFakeRunner()
			runner.errs["show interfaces status"] = tt.err
			o := newTestOrchestrator(t, runner)

			resp := invoke(o, "aos.interfaces.discover", map[string]any{"host": "10.1.0.1"})
			if resp.Status != StatusError || resp.Error.Kind != tt.wantKind {
				t.Fatalf("resp = %+v, want %s", resp.Error, tt.wantKind)
			}
			if tt.wantReason != "" && resp.Error.Details["reason"] != tt.wantReason {
				t.Errorf("reason = %v, want %s", resp.Error.Details["reason"], tt.wantReason)
			}
			if tt.wantSource != "" {
				if resp.Error.Details["credential_source"] != tt.wantSource {
					t.Errorf("credential_source = %v", resp.Error.Details["credential_source"])
				}
				if !strings.Contains(resp.Error.Message, tt.wantSource) {
					t.Errorf("message %q does not name the last credential source", resp.Error.Message)
				}
			}
		})
	}
}

const lanpowerFixture = `
Port   Maximum(mW) Actual Used(mW)    Status    Priority   On/Off   Class   Type
-----+-----------+---------------+-----------+--------+--------+-------+----------
1/1/1      30000        15420         Powered     Low        ON       4       802.3at
1/1/2      30000            0       Searching     Low        ON       *
`

func TestInvokeDiagPoE(t *testing.T) {
	runner := newFakeRunner()
	runner.outputs["show lanpower slot 2/1"] = lanpowerFixture
	o := newTestOrchestrator(t, runner)

	resp := o.Invoke(context.Background(), Request{
		Operation: "aos.diag.poe",
		Args:      map[string]any{"host": "10.1.0.1", "slot": "2"},
		Context:   RequestContext{Subject: "noc", CorrelationID: "req-42"},
	})
	if resp.Status != StatusOK {
		t.Fatalf("resp = %+v", resp.Error)
	}
	poe, ok := resp.Data.(*parse.PoE)
	if !ok {
		t.Fatalf("Data is %T, want *parse.PoE", resp.Data)
	}
	if len(poe.Ports) != 2 || poe.Summary.ActualUsedMW != 15420 {
		t.Errorf("PoE = %+v", poe)
	}

	want := Meta{
		Operation:        "aos.diag.poe",
		CorrelationID:    "req-42",
		Target:           "10.1.0.1:22",
		Commands:         []string{"show lanpower slot 2/1"},
		CredentialSource: "global",
	}
	got := resp.Meta
	got.DurationMS = 0
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Meta = %+v, want %+v", got, want)
	}
}

func TestInvokeGeneratesCorrelationID(t *testing.T) {
	o := newTestOrchestrator(t, newFakeRunner())
	resp := invoke(o, "aos.spantree.audit", map[string]any{"host": "sw-core-01"})
	if _, err := uuid.Parse(resp.Meta.CorrelationID); err != nil {
		t.Errorf("CorrelationID %q is not a uuid: %v", resp.Meta.CorrelationID, err)
	}
}

func TestInvokeOptionalStepFailure(t *testing.T) {
	runner := newFakeRunner()
	runner.outputs["show system"] = "System:\n  Name:  sw-core-01,\n"
	runner.errs["show hardware-info"] = &transport.Error{Kind: transport.KindSession, Err: errors.New("exit status 1")}
	o := newTestOrchestrator(t, runner)

	resp := invoke(o, "aos.device.facts", map[string]any{"host": "10.1.0.1"})
	if resp.Status != StatusOK {
		t.Fatalf("resp = %+v", resp.Error)
	}
	facts := resp.Data.(*parse.Facts)
	found := false
	for _, issue := range facts.Issues {
		if strings.HasPrefix(issue, "show hardware-info unavailable:") {
			found = true
		}
	}
	if !found {
		t.Errorf("Issues = %q, want the failed optional command", facts.Issues)
	}
}

func TestInvokeSanitizesOutput(t *testing.T) {
	runner := newFakeRunner()
	runner.outputs["show configuration snapshot"] = "\x1b[1muser admin password s3cret\x1b[0m\n"
	o := newTestOrchestrator(t, runner)

	resp := invoke(o, "aos.cli.readonly", map[string]any{"host": "10.1.0.1", "command": "show configuration snapshot"})
	if resp.Status != StatusOK {
		t.Fatalf("resp = %+v", resp.Error)
	}
	raw := resp.Data.(*parse.Raw)
	if raw.Stdout != "user admin password ***\n" {
		t.Errorf("Stdout = %q", raw.Stdout)
	}
	if !resp.Meta.Redacted || len(resp.Warnings) != 1 || !strings.Contains(resp.Warnings[0], "redacted") {
		t.Errorf("Redacted = %v, Warnings = %q", resp.Meta.Redacted, resp.Warnings)
	}
}

type truncatingRunner struct{}

func (truncatingRunner) Run(_ context.Context, _ transport.Target, command string, _ time.Duration) (*transport.Result, error) {
	return &transport.Result{Command: command, Stdout: "partial", Truncated: true}, nil
}

func TestInvokeTruncationWarning(t *testing.T) {
	o := newTestOrchestrator(t, truncatingRunner{})
	resp := invoke(o, "aos.config.backup", map[string]any{"host": "10.1.0.1"})
	if resp.Status != StatusOK || !resp.Meta.Truncated {
		t.Fatalf("resp = %+v", resp)
	}
	if len(resp.Warnings) != 1 || !strings.Contains(resp.Warnings[0], "truncated at 200000 bytes") {
		t.Errorf("Warnings = %q", resp.Warnings)
	}
}

func TestInvokeStepTimeouts(t *testing.T) {
	runner := newFakeRunner()
	o := newTestOrchestrator(t, runner)

	invoke(o, "aos.config.backup", map[string]any{"host": "10.1.0.1"})
	invoke(o, "aos.cli.readonly", map[string]any{"host": "10.1.0.1", "command": "show log events", "timeout_s": 120})
	invoke(o, "aos.interfaces.discover", map[string]any{"host": "10.1.0.1"})

	want := map[string]time.Duration{
		"write terminal":         60 * time.Second,
		"show log events":        120 * time.Second,
		"show interfaces status": 30 * time.Second,
	}
	if !reflect.DeepEqual(runner.timeouts, want) {
		t.Errorf("timeouts = %v, want %v", runner.timeouts, want)
	}
}

func TestInvokePingCommand(t *testing.T) {
	runner := newFakeRunner()
	o := newTestOrchestrator(t, runner)

	resp := invoke(o, "aos.diag.ping", map[string]any{"host": "10.1.0.1", "destination": "10.1.0.254", "count": float64(3)})
	if resp.Status != StatusOK {
		t.Fatalf("resp = %+v", resp.Error)
	}
	if got := runner.called(); !reflect.DeepEqual(got, []string{"ping 10.1.0.254 count 3"}) {
		t.Errorf("commands = %q", got)
	}
}

func TestInvokeRoutingInVRF(t *testing.T) {
	runner := newFakeRunner()
	o := newTestOrchestrator(t, runner)

	resp := invoke(o, "aos.routing.audit", map[string]any{"host": "10.1.0.1", "vrf": "blue"})
	if resp.Status != StatusOK {
		t.Fatalf("resp = %+v", resp.Error)
	}
	want := []string{"show vrf", "vrf blue show ip routes", "vrf blue show ip ospf interface", "vrf blue show ip ospf neighbor"}
	if got := runner.called(); !reflect.DeepEqual(got, want) {
		t.Errorf("commands = %q, want %q", got, want)
	}
}

func TestInvokeMACLookup(t *testing.T) {
	runner := newFakeRunner()
	runner.outputs["show mac-learning mac 70:4c:a5:50:45:ce"] =
		"VLAN       10     70:4c:a5:50:45:ce     dynamic          bridging          1/1/1\n"
	o := newTestOrchestrator(t, runner)

	resp := invoke(o, "aos.mac.lookup", map[string]any{"host": "10.1.0.1", "mac_address": "70-4C-A5-50-45-CE"})
	if resp.Status != StatusOK {
		t.Fatalf("resp = %+v", resp.Error)
	}
	l := resp.Data.(*MACLookup)
	if l.Query != "70:4c:a5:50:45:ce" || l.Total != 1 || l.Entries[0].Port != "1/1/1" {
		t.Errorf("lookup = %+v", l)
	}
	if len(l.Issues) != 0 {
		t.Errorf("Issues = %q", l.Issues)
	}
}

func TestInvokeLLDPPortFilter(t *testing.T) {
	runner := newFakeRunner()
	runner.outputs["show lldp remote-system port 1/1/26"] = `
Remote LLDP nearest-bridge Agents on Local Port 1/1/25:
    Chassis 00:11:22:33:44:55, Port 1/1/1:
      System Name                 = other,
Remote LLDP nearest-bridge Agents on Local Port 1/1/26:
    Chassis 00:11:22:33:44:66, Port 1/1/2:
      System Name                 = ap-02,
`
	o := newTestOrchestrator(t, runner)

	resp := invoke(o, "aos.lldp.neighbors", map[string]any{"host": "10.1.0.1", "port_id": "1/1/26"})
	n := resp.Data.(*parse.LLDPNeighbors)
	if n.Total != 1 || n.Neighbors[0].SystemName != "ap-02" {
		t.Errorf("neighbors = %+v", n)
	}
}

func TestInvokeConfigBackup(t *testing.T) {
	runner := newFakeRunner()
	runner.outputs["write terminal"] = "system name sw-core-01\n"
	at := time.Date(2026, 10, 17, 8, 0, 0, 0, time.UTC)
	o := newTestOrchestrator(t, runner, WithClock(func() time.Time { return at }))

	resp := invoke(o, "aos.config.backup", map[string]any{"host": "sw-core-01"})
	b := resp.Data.(*parse.Backup)
	if b.SuggestedFilename != "sw-core-01_20261017T080000Z.cfg" {
		t.Errorf("SuggestedFilename = %q", b.SuggestedFilename)
	}
}

func TestInvokeObserver(t *testing.T) {
	var seen []string
	o := newTestOrchestrator(t, newFakeRunner(), WithObserver(func(req Request, resp *Response) {
		seen = append(seen, req.Operation+"="+resp.Status)
	}))

	invoke(o, "aos.ntp.status", map[string]any{"host": "10.1.0.1"})
	invoke(o, "aos.nope", nil)

	want := []string{"aos.ntp.status=ok", "aos.nope=error"}
	if !reflect.DeepEqual(seen, want) {
		t.Errorf("observed %v, want %v", seen, want)
	}
}

func TestInvokeRecoversParserPanic(t *testing.T) {
	reg := NewRegistry()
	err := reg.Register(&Operation{
		Name:    "test.panic",
		newArgs: func() args { return &targetArgs{} },
		plan: func(args, *Env) Plan {
			var p Plan
			p.add("x", "show system")
			return p
		},
		parse: func(args, *Outputs, *Env) any { panic("index out of range") },
	})
	if err != nil {
		t.Fatal(err)
	}
	o := newTestOrchestrator(t, newFakeRunner(), WithRegistry(reg))

	resp := invoke(o, "test.panic", map[string]any{"host": "10.1.0.1"})
	if resp.Status != StatusError || resp.Error.Kind != KindInternal || resp.Data != nil {
		t.Fatalf("resp = %+v, want internal_error", resp)
	}
}

func TestInvokeCancelledBeforeExecution(t *testing.T) {
	runner := newFakeRunner()
	o := newTestOrchestrator(t, runner)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	resp := o.Invoke(ctx, Request{Operation: "aos.device.facts", Args: map[string]any{"host": "10.1.0.1"}})
	if resp.Status != StatusError || resp.Error.Kind != KindInternal {
		t.Fatalf("resp = %+v", resp.Error)
	}
	if len(runner.called()) != 0 {
		t.Errorf("runner called after cancellation: %v", runner.called())
	}
}

func TestInvokeConcurrent(t *testing.T) {
	runner := newFakeRunner()
	runner.outputs["show lanpower slot 1/1"] = lanpowerFixture
	o := newTestOrchestrator(t, runner)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp := invoke(o, "aos.diag.poe", map[string]any{"host": fmt.Sprintf("10.1.0.%d", i+1)})
			if resp.Status != StatusOK {
				t.Errorf("call %d: %+v", i, resp.Error)
			}
		}()
	}
	wg.Wait()
	if n := len(runner.called()); n != 16 {
		t.Errorf("runner called %d times, want 16", n)
	}
}
