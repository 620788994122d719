package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	infraconfig "github.com/felixgeelhaar/toolhost/infrastructure/config"
	"github.com/felixgeelhaar/toolhost/infrastructure/handler"
	"github.com/felixgeelhaar/toolhost/infrastructure/source"
)

// errValidation is returned when any validated file failed.
var errValidation = errors.New("validation failed")

// newValidateCmd creates the validate command.
func (a *App) newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [manifest...]",
		Short: "Validate tool manifests or a configuration file",
		Long: `Compile tool source manifests exactly as the loader would, building their
handlers, and print a LoadError for each one that fails. Without manifest
arguments the --config file is validated instead.

This command checks:
  - File format (YAML, JSON or TOML)
  - Required fields and handler settings
  - Parameter types, defaults and annotations
  - Handler construction (exec command, HTTP URL, WASM module)

Examples:
  # Validate tool manifests
  toolhost validate tools/ping.yaml tools/add.json

  # Validate a configuration file
  toolhost validate -c toolhost.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return a.validateConfig()
			}
			return a.validateManifests(cmd, args)
		},
	}

	return cmd
}

func (a *App) validateManifests(cmd *cobra.Command, paths []string) error {
	factory := handler.NewFactory()
	defer func() { _ = factory.Close(cmd.Context()) }()
	compiler := source.NewCompiler(factory)

	failed := 0
	for _, path := range paths {
		d, err := compiler.CompileFile(cmd.Context(), path)
		if err != nil {
			failed++
			_, _ = fmt.Fprintf(a.stdout, "✗ %v\n", err)
			continue
		}
		_, _ = fmt.Fprintf(a.stdout, "✓ %s: %s (%d parameters)\n", path, d.Name, len(d.Parameters))
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d manifests", errValidation, failed, len(paths))
	}
	return nil
}

func (a *App) validateConfig() error {
	if a.global.configPath == "" {
		return fmt.Errorf("pass manifest files or a configuration file (-c flag)")
	}
	cfg, baseDir, err := a.loadConfig()
	if err != nil {
		return fmt.Errorf("%w: %v", errValidation, err)
	}
	result, err := infraconfig.NewBuilder(cfg, infraconfig.WithBaseDir(baseDir)).Build()
	if err != nil {
		return fmt.Errorf("%w: %v", errValidation, err)
	}

	_, _ = fmt.Fprintf(a.stdout, "✓ Configuration is valid\n")
	_, _ = fmt.Fprintf(a.stdout, "  Name: %s\n", cfg.Name)
	_, _ = fmt.Fprintf(a.stdout, "  Version: %s\n", cfg.Version)
	if cfg.Description != "" {
		_, _ = fmt.Fprintf(a.stdout, "  Description: %s\n", cfg.Description)
	}

	_, _ = fmt.Fprintf(a.stdout, "\nConfiguration summary:\n")
	if result.Tools.Dir != "" {
		_, _ = fmt.Fprintf(a.stdout, "  Tools directory: %s (watch: %t)\n", result.Tools.Dir, result.Tools.Watch)
	}
	_, _ = fmt.Fprintf(a.stdout, "  Default timeout: %s\n", result.Dispatch.DefaultTimeout)
	if len(result.ToolPacks) > 0 {
		_, _ = fmt.Fprintf(a.stdout, "  Tool packs: %d\n", len(result.ToolPacks))
		for _, p := range result.ToolPacks {
			_, _ = fmt.Fprintf(a.stdout, "    - %s\n", p.Name)
		}
	}
	if len(result.InlineTools) > 0 {
		_, _ = fmt.Fprintf(a.stdout, "  Inline tools: %d\n", len(result.InlineTools))
		for _, m := range result.InlineTools {
			_, _ = fmt.Fprintf(a.stdout, "    - %s\n", m.Name)
		}
	}
	if result.Hooks.RateLimit.Enabled {
		_, _ = fmt.Fprintf(a.stdout, "  Rate limiting: enabled (rate=%d, burst=%d)\n",
			result.Hooks.RateLimit.Rate, result.Hooks.RateLimit.Burst)
	}
	if result.Hooks.Audit.Enabled {
		_, _ = fmt.Fprintf(a.stdout, "  Audit sink: %s\n", result.Hooks.Audit.Sink)
	}
	return nil
}
