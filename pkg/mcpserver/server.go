// Package mcpserver exposes the tool registry as MCP tools over HTTP.
package mcpserver

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/paularlott/mcp"

	"github.com/newtron-network/omnigate/pkg/tools"
	"github.com/newtron-network/omnigate/pkg/util"
	"github.com/newtron-network/omnigate/pkg/version"
)

// ClientName identifies MCP callers in responses and audit events
const ClientName = "mcp"

// CorrelationHeader lets a caller supply its own correlation id
const CorrelationHeader = "X-Correlation-ID"

type callerKey struct{}

// caller is what HandleRequest learns about the HTTP client
type caller struct {
	subject       string
	correlationID string
}

// Invoker runs one tool request. *tools.Orchestrator satisfies it.
type Invoker interface {
	Invoke(ctx context.Context, req tools.Request) *tools.Response
}

// Server wraps the MCP server around the tool orchestrator
type Server struct {
	mcpServer   *mcp.Server
	invoker     Invoker
	bearerToken string
}

// NewServer registers every operation in registry as an MCP tool. An empty
// bearerToken disables authentication.
func NewServer(invoker Invoker, registry *tools.Registry, bearerToken string) *Server {
	s := &Server{
		mcpServer:   mcp.NewServer("omnigate", version.Version),
		invoker:     invoker,
		bearerToken: bearerToken,
	}
	s.registerTools(registry)
	return s
}

func (s *Server) registerTools(registry *tools.Registry) {
	for _, op := range registry.Operations() {
		params := make([]mcp.Parameter, 0, len(op.Params))
		for _, p := range op.Params {
			params = append(params, toolParam(p))
		}
		s.mcpServer.RegisterTool(
			mcp.NewTool(op.Name, op.Description, params...),
			s.handler(op),
		)
	}
}

// toolParam maps a registry parameter onto the matching JSON schema type
func toolParam(p tools.Param) mcp.Parameter {
	var opts []mcp.Option
	if p.Required {
		opts = append(opts, mcp.Required())
	}
	switch p.Type {
	case tools.ParamInteger:
		return mcp.Number(p.Name, p.Description, opts...)
	case tools.ParamBoolean:
		return mcp.Boolean(p.Name, p.Description, opts...)
	default:
		return mcp.String(p.Name, p.Description, opts...)
	}
}

// handler forwards the arguments untouched. Type checking happens in the
// orchestrator so a mismatch comes back as invalid_request rather than
// being dropped.
func (s *Server) handler(op *tools.Operation) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
		args := make(map[string]any, len(req.Args()))
		for k, v := range req.Args() {
			args[k] = v
		}
		return s.invoke(ctx, op.Name, args)
	}
}

// invoke runs the operation and renders the response envelope as JSON.
// Caller mistakes map to invalid-params errors; everything else is internal.
func (s *Server) invoke(ctx context.Context, operation string, args map[string]any) (*mcp.ToolResponse, error) {
	c, _ := ctx.Value(callerKey{}).(caller)
	resp := s.invoker.Invoke(ctx, tools.Request{
		Operation: operation,
		Args:      args,
		Context: tools.RequestContext{
			Subject:       c.subject,
			CorrelationID: c.correlationID,
			Client:        ClientName,
		},
	})

	body, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return nil, mcp.NewToolErrorInternal("encoding response: " + err.Error())
	}
	if resp.Status == tools.StatusOK {
		return mcp.NewToolResponseText(string(body)), nil
	}
	switch resp.Error.Kind {
	case tools.KindInvalidRequest, tools.KindUnknownTool:
		return nil, mcp.NewToolErrorInvalidParams(string(body))
	default:
		return nil, mcp.NewToolErrorInternal(string(body))
	}
}

// HandleRequest handles MCP HTTP requests with optional bearer token authentication
func (s *Server) HandleRequest(w http.ResponseWriter, r *http.Request) {
	util.WithFields(map[string]interface{}{
		"method":      r.Method,
		"path":        r.URL.Path,
		"remote_addr": r.RemoteAddr,
	}).Debug("MCP request received")

	if s.bearerToken != "" {
		auth := r.Header.Get("Authorization")
		if auth == "" {
			util.WithField("remote_addr", r.RemoteAddr).Warn("MCP request missing Authorization header")
			http.Error(w, "Unauthorized: Missing Authorization header", http.StatusUnauthorized)
			return
		}
		if !strings.HasPrefix(auth, "Bearer ") {
			util.WithField("remote_addr", r.RemoteAddr).Warn("MCP request invalid Authorization format")
			http.Error(w, "Unauthorized: Invalid Authorization format", http.StatusUnauthorized)
			return
		}
		token := strings.TrimPrefix(auth, "Bearer ")
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.bearerToken)) != 1 {
			util.WithField("remote_addr", r.RemoteAddr).Warn("MCP request invalid token")
			http.Error(w, "Unauthorized: Invalid token", http.StatusUnauthorized)
			return
		}
	}

	ctx := context.WithValue(r.Context(), callerKey{}, caller{
		subject:       r.RemoteAddr,
		correlationID: r.Header.Get(CorrelationHeader),
	})
	s.mcpServer.HandleRequest(w, r.WithContext(ctx))
}

// GetHTTPHandler returns the HTTP handler for the MCP server
func (s *Server) GetHTTPHandler() http.HandlerFunc {
	return s.HandleRequest
}

// ToolNames lists the registered MCP tools
func (s *Server) ToolNames() []string {
	list := s.mcpServer.ListTools()
	names := make([]string, 0, len(list))
	for _, tool := range list {
		names = append(names, tool.Name)
	}
	return names
}

// LogStartup logs MCP server startup information
func (s *Server) LogStartup() {
	util.WithField("version", version.Version).Info("MCP server initialized")
	if s.bearerToken != "" {
		util.Info("MCP authentication enabled")
	} else {
		util.Warn("MCP authentication disabled")
	}
	list := s.mcpServer.ListTools()
	util.WithField("count", len(list)).Info("MCP tools registered")
	for _, tool := range list {
		util.WithField("name", tool.Name).Debug("MCP tool registered")
	}
}
