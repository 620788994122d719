package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	infraconfig "github.com/felixgeelhaar/toolhost/infrastructure/config"
)

// schemaOptions holds options for the schema command.
type schemaOptions struct {
	manifest   bool
	outputPath string
}

// newSchemaCmd creates the schema command.
func (a *App) newSchemaCmd() *cobra.Command {
	opts := &schemaOptions{}

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the configuration or tool manifest JSON schema",
		Long: `Print the JSON Schema for host configuration files, or with --manifest
for tool source manifests.

The schema follows JSON Schema draft 2020-12 and can be used for IDE
validation and CI checks.

Examples:
  # Configuration schema to stdout
  toolhost schema

  # Manifest schema to a file
  toolhost schema --manifest -o tool.schema.json

  # Use with VS Code
  # Add to .vscode/settings.json:
  # "yaml.schemas": {
  #   "./tool.schema.json": ["tools/*.yaml"]
  # }`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.exportSchema(opts)
		},
	}

	cmd.Flags().BoolVar(&opts.manifest, "manifest", false, "Print the tool manifest schema")
	cmd.Flags().StringVarP(&opts.outputPath, "output", "o", "", "Output file path (default: stdout)")

	return cmd
}

func (a *App) exportSchema(opts *schemaOptions) error {
	generate := infraconfig.SchemaJSON
	if opts.manifest {
		generate = infraconfig.ManifestSchemaJSON
	}
	schemaJSON, err := generate()
	if err != nil {
		return fmt.Errorf("failed to generate schema: %w", err)
	}

	if opts.outputPath == "" {
		_, _ = fmt.Fprintln(a.stdout, schemaJSON)
		return nil
	}

	if err := os.WriteFile(opts.outputPath, []byte(schemaJSON), 0o600); err != nil {
		return fmt.Errorf("failed to write schema file: %w", err)
	}
	_, _ = fmt.Fprintf(a.stdout, "Schema exported to %s\n", opts.outputPath)
	return nil
}
