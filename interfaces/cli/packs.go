package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// packsOptions holds options for the packs command.
type packsOptions struct {
	verbose bool
}

// newPacksCmd creates the packs command.
func (a *App) newPacksCmd() *cobra.Command {
	opts := &packsOptions{}

	cmd := &cobra.Command{
		Use:   "packs",
		Short: "List installed tool packs",
		Long: `List the built-in tool packs the configuration installs and the tools
each one registered.

Examples:
  # List tool packs from a configuration
  toolhost packs -c toolhost.yaml

  # Verbose output with tool descriptions
  toolhost packs -c toolhost.yaml -v`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.listPacks(cmd, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Show detailed information")

	return cmd
}

func (a *App) listPacks(cmd *cobra.Command, opts *packsOptions) error {
	h, err := a.openHost(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer func() { _ = h.Close(cmd.Context()) }()

	packs := h.Packs()
	if len(packs) == 0 {
		_, _ = fmt.Fprintln(a.stdout, "No tool packs configured.")
		return nil
	}

	_, _ = fmt.Fprintf(a.stdout, "Tool Packs (%d):\n", len(packs))
	for _, p := range packs {
		_, _ = fmt.Fprintf(a.stdout, "\n  %s", p.Name)
		if p.Version != "" {
			_, _ = fmt.Fprintf(a.stdout, " (v%s)", p.Version)
		}
		_, _ = fmt.Fprintln(a.stdout)
		if opts.verbose && p.Description != "" {
			_, _ = fmt.Fprintf(a.stdout, "    %s\n", p.Description)
		}

		for _, name := range p.ToolNames() {
			if !h.Registry().Has(name) {
				continue
			}
			_, _ = fmt.Fprintf(a.stdout, "    - %s\n", name)
			if opts.verbose {
				if d, ok := p.GetTool(name); ok && d.Description != "" {
					_, _ = fmt.Fprintf(a.stdout, "        %s\n", d.Description)
				}
			}
		}
	}
	return nil
}
