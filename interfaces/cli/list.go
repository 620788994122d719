package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// listOptions holds options for the list command.
type listOptions struct {
	jsonOutput bool
	verbose    bool
}

// newListCmd creates the list command.
func (a *App) newListCmd() *cobra.Command {
	opts := &listOptions{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered tools",
		Long: `Run one pass over the tools directory and list every registered tool
with its version and origin. Sources that fail to load are reported on
stderr.

Examples:
  # List tools from the default configuration
  toolhost list

  # List tools from a specific directory as JSON definitions
  toolhost list --tools-dir ./tools --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.list(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Print model-facing definitions as JSON")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Show descriptions")

	return cmd
}

func (a *App) list(cmd *cobra.Command, opts *listOptions) error {
	h, err := a.openHost(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer func() { _ = h.Close(cmd.Context()) }()

	a.reportLoadErrors(h)
	defs := h.Definitions()

	if opts.jsonOutput {
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(defs)
	}

	if len(defs) == 0 {
		_, _ = fmt.Fprintln(a.stdout, "No tools registered.")
		return nil
	}

	w := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tVERSION\tORIGIN")
	for _, d := range defs {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%s\n", d.Name, d.Version, d.Origin)
		if opts.verbose && d.Description != "" {
			_, _ = fmt.Fprintf(w, "  %s\t\t\n", d.Description)
		}
	}
	return w.Flush()
}
