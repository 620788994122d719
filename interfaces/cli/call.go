package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/toolhost/application"
	"github.com/felixgeelhaar/toolhost/domain/tool"
)

// callOptions holds options for the call command.
type callOptions struct {
	args       string
	timeout    time.Duration
	caller     string
	jsonOutput bool
}

// newCallCmd creates the call command.
func (a *App) newCallCmd() *cobra.Command {
	opts := &callOptions{}

	cmd := &cobra.Command{
		Use:   "call <tool>",
		Short: "Invoke one tool",
		Long: `Load the configured tools, invoke one through the hook pipeline and print
its result as JSON.

Examples:
  # Add two numbers with the math pack
  toolhost call add_numbers --args '{"a": 5, "b": 7}'

  # Call a tool from a tools directory with a deadline
  toolhost call --tools-dir ./tools ping --args '{"host": "10.0.0.1"}' --timeout 5s

  # Print the full result envelope
  toolhost call analyze_text --args '{"text": "hello world"}' --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.call(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.args, "args", "", "Arguments as a JSON object")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "Invocation deadline (overrides tool and config)")
	cmd.Flags().StringVar(&opts.caller, "caller", "cli", "Caller identity reported to hooks")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Print the result envelope instead of the value")

	return cmd
}

func (a *App) call(cmd *cobra.Command, name string, opts *callOptions) error {
	args, err := tool.DecodeArguments([]byte(opts.args))
	if err != nil {
		return err
	}

	h, err := a.openHost(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer func() { _ = h.Close(cmd.Context()) }()

	res, err := h.Dispatch(cmd.Context(), application.Request{
		Tool:      name,
		Arguments: args,
		Caller:    opts.caller,
		Timeout:   opts.timeout,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", tool.Kind(err), err)
	}

	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	if opts.jsonOutput {
		return enc.Encode(res)
	}
	value, err := tool.EncodeValue(res.Value)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return enc.Encode(value)
}
