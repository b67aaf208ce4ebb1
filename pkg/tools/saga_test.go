package tools

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/newtron-network/omnigate/pkg/parse"
	"github.com/newtron-network/omnigate/pkg/transport"
)

const (
	disableCmd = "lanpower port 1/1/12 admin-state disable"
	enableCmd  = "lanpower port 1/1/12 admin-state enable"
)

// recordingSleep captures saga delays without waiting
type recordingSleep struct {
	waits []time.Duration
	err   error
}

func (r *recordingSleep) sleep(_ context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return r.err
}

func TestPoERestart(t *testing.T) {
	runner := newFakeRunner()
	sleeper := &recordingSleep{}
	o := newTestOrchestrator(t, runner, WithSleep(sleeper.sleep))

	resp := invoke(o, "aos.poe.restart", map[string]any{"host": "10.1.0.1", "port_id": "1/1/12", "wait_seconds": 7})
	if resp.Status != StatusOK {
		t.Fatalf("resp = %+v", resp.Error)
	}
	if got := runner.called(); !reflect.DeepEqual(got, []string{disableCmd, enableCmd}) {
		t.Errorf("commands = %q", got)
	}
	if !reflect.DeepEqual(sleeper.waits, []time.Duration{7 * time.Second}) {
		t.Errorf("waits = %v, want [7s]", sleeper.waits)
	}
	r := resp.Data.(*PoERestart)
	if r.Port != "1/1/12" || r.WaitSeconds != 7 || len(r.Steps) != 2 || len(r.Issues) != 0 {
		t.Errorf("restart = %+v", r)
	}
}

func TestPoERestartDefaultWait(t *testing.T) {
	sleeper := &recordingSleep{}
	o := newTestOrchestrator(t, newFakeRunner(), WithSleep(sleeper.sleep))

	invoke(o, "aos.poe.restart", map[string]any{"host": "10.1.0.1", "port_id": "1/1/12"})
	if !reflect.DeepEqual(sleeper.waits, []time.Duration{5 * time.Second}) {
		t.Errorf("waits = %v, want [5s]", sleeper.waits)
	}
}

func TestPoERestartEnableFails(t *testing.T) {
	runner := newFakeRunner()
	runner.errs[enableCmd] = &transport.Error{Kind: transport.KindConnect, Err: errors.New("connection reset")}
	o := newTestOrchestrator(t, runner, WithSleep((&recordingSleep{}).sleep))

	resp := invoke(o, "aos.poe.restart", map[string]any{"host": "10.1.0.1", "port_id": "1/1/12"})
	if resp.Status != StatusError || resp.Error.Kind != KindSSH {
		t.Fatalf("resp = %+v, want ssh_error", resp.Error)
	}
	d := resp.Error.Details
	if d["partial"] != true || d["failed_step"] != enableCmd {
		t.Errorf("details = %v", d)
	}
	if !reflect.DeepEqual(d["completed_steps"], []string{disableCmd}) {
		t.Errorf("completed_steps = %v", d["completed_steps"])
	}
	if !strings.Contains(resp.Error.Message, "port 1/1/12 was left disabled") {
		t.Errorf("message %q does not report the disabled port", resp.Error.Message)
	}
}

func TestPoERestartDisableFails(t *testing.T) {
	runner := newFakeRunner()
	runner.errs[disableCmd] = &transport.Error{Kind: transport.KindAuth, Err: errors.New("denied")}
	sleeper := &recordingSleep{}
	o := newTestOrchestrator(t, runner, WithSleep(sleeper.sleep))

	resp := invoke(o, "aos.poe.restart", map[string]any{"host": "10.1.0.1", "port_id": "1/1/12"})
	if resp.Status != StatusError || resp.Error.Kind != KindSSH {
		t.Fatalf("resp = %+v", resp.Error)
	}
	if _, partial := resp.Error.Details["partial"]; partial {
		t.Errorf("nothing changed on the device, details = %v", resp.Error.Details)
	}
	if len(sleeper.waits) != 0 || len(runner.called()) != 1 {
		t.Errorf("waits = %v, calls = %v", sleeper.waits, runner.called())
	}
}

func TestPoERestartCancelledDuringWait(t *testing.T) {
	runner := newFakeRunner()
	sleeper := &recordingSleep{err: context.Canceled}
	o := newTestOrchestrator(t, runner, WithSleep(sleeper.sleep))

	resp := invoke(o, "aos.poe.restart", map[string]any{"host": "10.1.0.1", "port_id": "1/1/12"})
	if resp.Status != StatusError || resp.Error.Details["partial"] != true {
		t.Fatalf("resp = %+v, want partial failure", resp.Error)
	}
	if got := runner.called(); !reflect.DeepEqual(got, []string{disableCmd}) {
		t.Errorf("commands = %q, enable must not run", got)
	}
}

func TestSleepContext(t *testing.T) {
	if err := sleepContext(context.Background(), time.Millisecond); err != nil {
		t.Errorf("sleepContext = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	if err := sleepContext(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("sleepContext = %v, want context.Canceled", err)
	}
	if time.Since(start) > time.Second {
		t.Error("sleepContext ignored cancellation")
	}
}

func TestPortDiscoverRunsAllViews(t *testing.T) {
	runner := newFakeRunner()
	runner.outputs["show interfaces port 1/1/1"] = " Operational Status     : up,\n"
	runner.outputs["show mac-learning port 1/1/1"] =
		"VLAN       10     70:4c:a5:50:45:ce     dynamic          bridging          1/1/1\n"
	runner.errs["show lldp remote-system port 1/1/1"] = &transport.Error{Kind: transport.KindTimeout, Err: errors.New("timed out")}
	o := newTestOrchestrator(t, runner)

	resp := invoke(o, "aos.port.discover", map[string]any{"host": "10.1.0.1", "port_id": "1/1/1"})
	if resp.Status != StatusOK {
		t.Fatalf("resp = %+v", resp.Error)
	}
	if n := len(runner.called()); n != 5 {
		t.Errorf("ran %d commands, want 5", n)
	}
	found := false
	for _, issue := range resp.Data.(*parse.PortDiscovery).Issues {
		if strings.HasPrefix(issue, "show lldp remote-system port 1/1/1 unavailable") {
			found = true
		}
	}
	if !found {
		t.Error("failed LLDP view not reported as an issue")
	}
}

func TestPortDiscoverRequiredViewFails(t *testing.T) {
	runner := newFakeRunner()
	runner.errs["show interfaces port 1/1/1"] = &transport.Error{Kind: transport.KindConnect, Err: errors.New("no route to host")}
	o := newTestOrchestrator(t, runner)

	resp := invoke(o, "aos.port.discover", map[string]any{"host": "10.1.0.1", "port_id": "1/1/1"})
	if resp.Status != StatusError || resp.Error.Kind != KindSSH {
		t.Fatalf("resp = %+v, want ssh_error", resp.Error)
	}
}
