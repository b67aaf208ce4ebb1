package mcpserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"

	"github.com/newtron-network/omnigate/pkg/tools"
)

// fakeInvoker records the last request and answers with a canned response
type fakeInvoker struct {
	last tools.Request
	resp *tools.Response
}

func (f *fakeInvoker) Invoke(_ context.Context, req tools.Request) *tools.Response {
	f.last = req
	return f.resp
}

func okResponse() *tools.Response {
	return &tools.Response{
		Status: tools.StatusOK,
		Data:   map[string]any{"ports": 24},
		Meta:   tools.Meta{Operation: "aos.diag.poe", Target: "10.1.0.1:22"},
	}
}

func errorResponse(kind tools.Kind) *tools.Response {
	return &tools.Response{
		Status: tools.StatusError,
		Error:  &tools.Error{Kind: kind, Message: "boom"},
	}
}

func TestToolsRegistered(t *testing.T) {
	registry := tools.DefaultRegistry()
	s := NewServer(&fakeInvoker{resp: okResponse()}, registry, "")

	names := s.ToolNames()
	sort.Strings(names)
	ops := registry.Operations()
	if len(names) != len(ops) {
		t.Fatalf("registered %d tools, want %d", len(names), len(ops))
	}
	for i, op := range ops {
		if names[i] != op.Name {
			t.Errorf("tool %d = %s, want %s", i, names[i], op.Name)
		}
	}
}

func TestHandleRequestAuth(t *testing.T) {
	s := NewServer(&fakeInvoker{resp: okResponse()}, tools.DefaultRegistry(), "s3cret")

	tests := []struct {
		name   string
		header string
		body   string
	}{
		{"missing header", "", "Missing Authorization header"},
		{"wrong scheme", "Basic czNjcmV0", "Invalid Authorization format"},
		{"wrong token", "Bearer nope", "Invalid token"},
		{"token prefix only", "Bearer s3cre", "Invalid token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(`{}`))
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			s.GetHTTPHandler()(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rec.Code)
			}
			if !strings.Contains(rec.Body.String(), tt.body) {
				t.Errorf("body = %q, want %q", rec.Body.String(), tt.body)
			}
		})
	}
}

func TestInvokePassesCaller(t *testing.T) {
	inv := &fakeInvoker{resp: okResponse()}
	s := NewServer(inv, tools.DefaultRegistry(), "")

	ctx := context.WithValue(context.Background(), callerKey{}, caller{subject: "192.0.2.7:5123", correlationID: "req-7"})
	resp, err := s.invoke(ctx, "aos.diag.poe", map[string]any{"host": "10.1.0.1", "slot": "2"})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if resp == nil {
		t.Fatal("nil response")
	}

	got := inv.last
	if got.Operation != "aos.diag.poe" || got.Args["slot"] != "2" {
		t.Errorf("request = %+v", got)
	}
	if got.Context.Subject != "192.0.2.7:5123" || got.Context.CorrelationID != "req-7" || got.Context.Client != ClientName {
		t.Errorf("context = %+v", got.Context)
	}
}

func TestInvokeWithoutCaller(t *testing.T) {
	inv := &fakeInvoker{resp: okResponse()}
	s := NewServer(inv, tools.DefaultRegistry(), "")

	if _, err := s.invoke(context.Background(), "aos.ntp.status", map[string]any{"host": "sw1"}); err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if inv.last.Context.Subject != "" || inv.last.Context.Client != ClientName {
		t.Errorf("context = %+v", inv.last.Context)
	}
}

func TestInvokeErrors(t *testing.T) {
	kinds := []tools.Kind{
		tools.KindInvalidRequest,
		tools.KindUnknownTool,
		tools.KindPolicyViolation,
		tools.KindSSH,
		tools.KindInternal,
	}
	for _, kind := range kinds {
		t.Run(string(kind), func(t *testing.T) {
			s := NewServer(&fakeInvoker{resp: errorResponse(kind)}, tools.DefaultRegistry(), "")
			resp, err := s.invoke(context.Background(), "aos.diag.poe", nil)
			if err == nil || resp != nil {
				t.Fatalf("invoke = %v, %v; want an error", resp, err)
			}
		})
	}
}

func TestCallToolForwardsTypedArguments(t *testing.T) {
	tests := []struct {
		name string
		op   string
		args map[string]any
		key  string
		want any
	}{
		{"number", "aos.poe.restart", map[string]any{"host": "10.1.0.1", "port_id": "1/1/3", "wait_seconds": float64(30)}, "wait_seconds", float64(30)},
		{"number as string", "aos.poe.restart", map[string]any{"host": "10.1.0.1", "port_id": "1/1/3", "wait_seconds": "30"}, "wait_seconds", "30"},
		{"boolean", "aos.health.monitor", map[string]any{"host": "10.1.0.1", "detailed": true}, "detailed", true},
		{"integer filter", "aos.vlan.audit", map[string]any{"host": "10.1.0.1", "vlan_id": float64(10)}, "vlan_id", float64(10)},
		{"mismatched type", "aos.poe.restart", map[string]any{"host": "10.1.0.1", "port_id": "1/1/3", "wait_seconds": true}, "wait_seconds", true},
		{"undeclared key", "aos.device.facts", map[string]any{"host": "10.1.0.1", "verbose": true}, "verbose", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := &fakeInvoker{resp: okResponse()}
			s := NewServer(inv, tools.DefaultRegistry(), "")

			if _, err := s.mcpServer.CallTool(context.Background(), tt.op, tt.args); err != nil {
				t.Fatalf("CallTool: %v", err)
			}
			if got, ok := inv.last.Args[tt.key]; !ok || got != tt.want {
				t.Errorf("args[%s] = %#v (present %v), want %#v", tt.key, got, ok, tt.want)
			}
			if len(inv.last.Args) != len(tt.args) {
				t.Errorf("args = %v, want %v", inv.last.Args, tt.args)
			}
		})
	}
}

func TestToolSchemaTypes(t *testing.T) {
	s := NewServer(&fakeInvoker{resp: okResponse()}, tools.DefaultRegistry(), "")

	want := map[string]map[string]string{
		"aos.poe.restart":    {"host": "string", "port_id": "string", "wait_seconds": "number"},
		"aos.health.monitor": {"detailed": "boolean"},
	}
	for _, tool := range s.mcpServer.ListTools() {
		params, ok := want[tool.Name]
		if !ok {
			continue
		}
		schema, ok := tool.InputSchema.(map[string]interface{})
		if !ok {
			t.Fatalf("%s: schema is %T", tool.Name, tool.InputSchema)
		}
		props := schema["properties"].(map[string]interface{})
		for name, typ := range params {
			prop, ok := props[name].(map[string]interface{})
			if !ok {
				t.Errorf("%s: no property %s", tool.Name, name)
				continue
			}
			if prop["type"] != typ {
				t.Errorf("%s.%s type = %v, want %s", tool.Name, name, prop["type"], typ)
			}
		}
		delete(want, tool.Name)
	}
	if len(want) != 0 {
		t.Errorf("tools not listed: %v", want)
	}
}
