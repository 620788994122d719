package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/felixgeelhaar/toolhost/application"
	"github.com/felixgeelhaar/toolhost/domain/tool"
	"github.com/felixgeelhaar/toolhost/infrastructure/logging"
	"github.com/felixgeelhaar/toolhost/infrastructure/source"
)

// maxRequestLine bounds one request line.
const maxRequestLine = 4 << 20

// serveOptions holds options for the serve command.
type serveOptions struct {
	concurrency int
}

// serveRequest is one line of input.
type serveRequest struct {
	ID        json.RawMessage `json:"id,omitempty"`
	Tool      string          `json:"tool"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	Caller    string          `json:"caller,omitempty"`
	// Timeout is a Go duration string such as "5s".
	Timeout string `json:"timeout,omitempty"`
}

// serveError is the wire form of a dispatch failure.
type serveError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// serveResponse is one line of output.
type serveResponse struct {
	ID           json.RawMessage `json:"id,omitempty"`
	OK           bool            `json:"ok"`
	Tool         string          `json:"tool,omitempty"`
	Version      uint64          `json:"version,omitempty"`
	InvocationID string          `json:"invocation_id,omitempty"`
	DurationMS   int64           `json:"duration_ms"`
	Value        json.RawMessage `json:"value,omitempty"`
	Error        *serveError     `json:"error,omitempty"`
}

// newServeCmd creates the serve command.
func (a *App) newServeCmd() *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve tool calls as newline-delimited JSON over stdin/stdout",
		Long: `Start the host with its tools directory watcher and answer one JSON
request per input line with one JSON response per output line. Requests
run concurrently; responses carry the request id.

Request:  {"id": 1, "tool": "add_numbers", "arguments": {"a": 5, "b": 7}, "caller": "agent", "timeout": "5s"}
Response: {"id": 1, "ok": true, "tool": "add_numbers", "version": 1, "invocation_id": "...", "duration_ms": 0, "value": 12}

Failures set "ok": false and an error with a kind: not_found,
invalid_arguments, load_error, vetoed, handler_error, timeout, canceled
or capacity.

Examples:
  # Serve tools from ./tools
  toolhost serve --tools-dir ./tools

  # One-shot call through a pipe
  echo '{"tool": "add_numbers", "arguments": {"a": 1, "b": 2}}' | toolhost serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd, opts)
		},
	}

	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 16, "Maximum requests in flight")

	return cmd
}

func (a *App) serve(cmd *cobra.Command, opts *serveOptions) error {
	ctx := cmd.Context()
	h, err := a.openHost(ctx, true)
	if err != nil {
		return err
	}
	defer func() { _ = h.Close(context.WithoutCancel(ctx)) }()

	a.reportLoadErrors(h)
	h.OnReload(func(r source.Report) {
		logging.Info().
			Add(logging.Count("loaded", len(r.Loaded))).
			Add(logging.Count("removed", len(r.Removed))).
			Add(logging.Count("failing", len(r.Errors))).
			Msg("tools reloaded")
	})

	var mu sync.Mutex
	enc := json.NewEncoder(a.stdout)
	write := func(resp serveResponse) {
		mu.Lock()
		defer mu.Unlock()
		if err := enc.Encode(resp); err != nil {
			logging.Error().Add(logging.Component("serve")).Add(logging.ErrorField(err)).Msg("failed to write response")
		}
	}

	g := new(errgroup.Group)
	if opts.concurrency > 0 {
		g.SetLimit(opts.concurrency)
	}

	scanner := bufio.NewScanner(a.stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), maxRequestLine)
	for scanner.Scan() {
		line := append([]byte(nil), scanner.Bytes()...)
		if len(line) == 0 {
			continue
		}
		g.Go(func() error {
			write(a.handleLine(ctx, h, line))
			return nil
		})
	}
	_ = g.Wait()
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read requests: %w", err)
	}
	return nil
}

func (a *App) handleLine(ctx context.Context, h *application.Host, line []byte) serveResponse {
	var req serveRequest
	if err := json.Unmarshal(line, &req); err != nil {
		return failure(nil, fmt.Errorf("malformed request: %w", err), "bad_request")
	}
	resp := serveResponse{ID: req.ID, Tool: req.Tool}

	args, err := tool.DecodeArguments(req.Arguments)
	if err != nil {
		return failure(req.ID, err, "")
	}
	var timeout time.Duration
	if req.Timeout != "" {
		if timeout, err = time.ParseDuration(req.Timeout); err != nil {
			return failure(req.ID, fmt.Errorf("invalid timeout: %w", err), "bad_request")
		}
	}

	res, err := h.Dispatch(ctx, application.Request{
		Tool:      req.Tool,
		Arguments: args,
		Caller:    req.Caller,
		Timeout:   timeout,
	})
	resp.Version = res.Version
	resp.InvocationID = res.InvocationID
	resp.DurationMS = res.Duration.Milliseconds()
	if err != nil {
		resp.Error = &serveError{Kind: tool.Kind(err), Message: err.Error()}
		return resp
	}

	value, err := tool.EncodeValue(res.Value)
	if err != nil {
		resp.Error = &serveError{Kind: "internal", Message: fmt.Sprintf("encode result: %v", err)}
		return resp
	}
	resp.OK = true
	resp.Value = value
	return resp
}

func failure(id json.RawMessage, err error, kind string) serveResponse {
	if kind == "" {
		kind = tool.Kind(err)
	}
	return serveResponse{ID: id, Error: &serveError{Kind: kind, Message: err.Error()}}
}
