package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/felixgeelhaar/toolhost/domain/tool"
)

// ParamEnvPrefix prefixes the environment variable carrying each argument.
const ParamEnvPrefix = "TOOL_PARAM_"

const waitDelay = 500 * time.Millisecond

// ExecConfig configures an exec handler.
type ExecConfig struct {
	// Command is the program to run. A relative path containing a separator
	// resolves against BaseDir.
	Command string
	// Args are passed verbatim.
	Args []string
	// Env is added to the process environment.
	Env map[string]string
	// Dir is the working directory (default BaseDir).
	Dir string
	// BaseDir is the directory of the manifest.
	BaseDir string
	// MaxOutput caps stdout in bytes (0 = unlimited).
	MaxOutput int64
}

// Exec runs a local command per invocation. Arguments are written to stdin
// as a JSON object and exported as TOOL_PARAM_<NAME> variables; stdout is
// the result, decoded as JSON when it parses.
type Exec struct {
	config ExecConfig
}

// NewExec creates an exec handler.
func NewExec(cfg ExecConfig) (*Exec, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("%w: exec handler requires a command", ErrInvalidSpec)
	}
	cfg.Command = resolveCommand(cfg.Command, cfg.BaseDir)
	if cfg.Dir == "" {
		cfg.Dir = cfg.BaseDir
	} else {
		cfg.Dir = resolvePath(cfg.Dir, cfg.BaseDir)
	}
	return &Exec{config: cfg}, nil
}

// Call runs the command once.
func (e *Exec) Call(ctx context.Context, args tool.Arguments) (any, error) {
	input, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("encode arguments: %w", err)
	}

	cmd := exec.CommandContext(ctx, e.config.Command, e.config.Args...) // #nosec G204 -- command comes from a trusted manifest
	cmd.Dir = e.config.Dir
	cmd.Stdin = bytes.NewReader(input)
	// Grandchildren holding stdout open must not outlive cancellation.
	cmd.WaitDelay = waitDelay

	env, err := paramEnv(args)
	if err != nil {
		return nil, err
	}
	cmd.Env = os.Environ()
	for k, v := range e.config.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	cmd.Env = append(cmd.Env, env...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("%w: exit %d: %s", ErrExitStatus, exitErr.ExitCode(), strings.TrimSpace(stderr.String()))
		}
		return nil, fmt.Errorf("run %s: %w", e.config.Command, err)
	}

	if e.config.MaxOutput > 0 && int64(stdout.Len()) > e.config.MaxOutput {
		return nil, fmt.Errorf("%w: %d bytes", ErrOutputTooLarge, stdout.Len())
	}
	return decodeOutput(stdout.Bytes()), nil
}

// paramEnv renders each argument as TOOL_PARAM_<NAME>.
func paramEnv(args tool.Arguments) ([]string, error) {
	values, err := argStrings(args)
	if err != nil {
		return nil, err
	}
	env := make([]string, 0, len(values))
	for key, value := range values {
		env = append(env, ParamEnvPrefix+strings.ToUpper(key)+"="+value)
	}
	sort.Strings(env)
	return env, nil
}

// argStrings renders argument values as text: strings raw, nil empty,
// everything else as JSON.
func argStrings(args tool.Arguments) (map[string]string, error) {
	out := make(map[string]string, len(args))
	for key, arg := range args {
		switch v := arg.(type) {
		case string:
			out[key] = v
		case nil:
			out[key] = ""
		default:
			data, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("encode argument %q: %w", key, err)
			}
			out[key] = string(data)
		}
	}
	return out, nil
}

// decodeOutput returns JSON output decoded, anything else as a trimmed string.
// Empty output yields nil.
func decodeOutput(out []byte) any {
	trimmed := bytes.TrimSpace(out)
	if len(trimmed) == 0 {
		return nil
	}
	if json.Valid(trimmed) {
		var v any
		if err := json.Unmarshal(trimmed, &v); err == nil {
			return v
		}
	}
	return string(trimmed)
}

// resolveCommand makes a relative command path absolute, since exec
// evaluates relative paths against the working directory.
func resolveCommand(command, baseDir string) string {
	if filepath.IsAbs(command) || !strings.ContainsRune(command, '/') {
		return command
	}
	resolved := resolvePath(command, baseDir)
	if abs, err := filepath.Abs(resolved); err == nil {
		return abs
	}
	return resolved
}

func resolvePath(path, baseDir string) string {
	if path == "" || baseDir == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}
