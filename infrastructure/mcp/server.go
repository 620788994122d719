package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	mcpgo "github.com/felixgeelhaar/mcp-go"

	"github.com/felixgeelhaar/toolhost/domain/tool"
	"github.com/felixgeelhaar/toolhost/infrastructure/logging"
)

// Invoker runs one tool call on behalf of an MCP client.
type Invoker func(ctx context.Context, name string, args tool.Arguments) (any, error)

// ServerConfig configures a tool host MCP server.
type ServerConfig struct {
	// Name is the server name.
	Name string

	// Version is the server version.
	Version string

	// Description is an optional server description.
	Description string

	// Instructions provides usage instructions for clients.
	Instructions string

	// Invoke dispatches calls. Required.
	Invoke Invoker
}

// Server exposes registered tools over MCP. Every call goes through the
// invoker by name, so a tool unloaded after Sync answers with NotFound.
type Server struct {
	srv    *mcpgo.Server
	invoke Invoker

	mu         sync.Mutex
	versions   map[string]uint64
	middleware []mcpgo.Middleware
}

// NewServer creates an MCP server. Tools are added by Sync.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Invoke == nil {
		return nil, fmt.Errorf("mcp server requires an invoker")
	}
	info := mcpgo.ServerInfo{
		Name:        cfg.Name,
		Version:     cfg.Version,
		Description: cfg.Description,
		Capabilities: mcpgo.Capabilities{
			Tools: true,
		},
	}

	var opts []mcpgo.Option
	if cfg.Instructions != "" {
		opts = append(opts, mcpgo.WithInstructions(cfg.Instructions))
	}

	return &Server{
		srv:      mcpgo.NewServer(info, opts...),
		invoke:   cfg.Invoke,
		versions: make(map[string]uint64),
	}, nil
}

// Sync registers descriptors that are new or carry a newer version than
// the one last registered, and returns how many were (re-)registered.
func (s *Server) Sync(descriptors []tool.Descriptor) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, d := range descriptors {
		if v, ok := s.versions[d.Name]; ok && v >= d.Version {
			continue
		}
		s.versions[d.Name] = d.Version
		s.register(d)
		n++
	}
	if n > 0 {
		logging.Debug().
			Add(logging.Component("mcp")).
			Add(logging.Count("tools", n)).
			Msg("mcp tools registered")
	}
	return n
}

// Registered returns the names registered so far.
func (s *Server) Registered() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.versions))
	for name := range s.versions {
		names = append(names, name)
	}
	return names
}

func (s *Server) register(d tool.Descriptor) {
	name := d.Name
	s.srv.Tool(name).
		Description(describe(d)).
		Handler(func(ctx context.Context, input json.RawMessage) (string, error) {
			return s.call(ctx, name, input)
		})
}

func (s *Server) call(ctx context.Context, name string, input json.RawMessage) (string, error) {
	args, err := tool.DecodeArguments(input)
	if err != nil {
		return "", err
	}
	value, err := s.invoke(ctx, name, args)
	if err != nil {
		return "", err
	}
	out, err := tool.EncodeValue(value)
	if err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}
	return string(out), nil
}

// describe appends the parameter list to the description, since clients
// see no other schema for the tool.
func describe(d tool.Descriptor) string {
	if len(d.Parameters) == 0 {
		return d.Description
	}
	parts := make([]string, 0, len(d.Parameters))
	for _, p := range d.Parameters {
		part := p.Name + " (" + string(p.Type)
		if p.Required {
			part += ", required"
		}
		parts = append(parts, part+")")
	}
	desc := strings.TrimSpace(d.Description)
	if desc != "" {
		desc += " "
	}
	return desc + "Parameters: " + strings.Join(parts, "; ") + "."
}

// Server returns the underlying mcp-go server.
func (s *Server) Server() *mcpgo.Server {
	return s.srv
}

// Use appends request middleware. It wraps every request of the next
// ServeStdio or ServeHTTP call, in the order given.
func (s *Server) Use(middleware ...mcpgo.Middleware) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.middleware = append(s.middleware, middleware...)
}

// serveOptions prepends the middleware chain to opts.
func (s *Server) serveOptions(opts []mcpgo.ServeOption) []mcpgo.ServeOption {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.middleware) == 0 {
		return opts
	}
	chain := append([]mcpgo.Middleware(nil), s.middleware...)
	return append([]mcpgo.ServeOption{mcpgo.WithMiddleware(chain...)}, opts...)
}

// ServeStdio runs the server over stdin/stdout.
func (s *Server) ServeStdio(ctx context.Context, opts ...mcpgo.ServeOption) error {
	return mcpgo.ServeStdio(ctx, s.srv, s.serveOptions(opts)...)
}

// ServeHTTP runs the server over HTTP with SSE.
func (s *Server) ServeHTTP(ctx context.Context, addr string, opts ...mcpgo.HTTPOption) error {
	return mcpgo.ServeHTTPWithMiddleware(ctx, s.srv, addr, opts, s.serveOptions(nil)...)
}
