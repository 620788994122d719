// Package source turns tool manifest files into registered descriptors and
// keeps the registry in step with the tools directory.
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/go-playground/validator/v10"

	domainconfig "github.com/felixgeelhaar/toolhost/domain/config"
	"github.com/felixgeelhaar/toolhost/domain/tool"
	infraconfig "github.com/felixgeelhaar/toolhost/infrastructure/config"
	"github.com/felixgeelhaar/toolhost/infrastructure/handler"
)

// ConfigOriginPrefix marks descriptors compiled from inline configuration.
const ConfigOriginPrefix = "config:"

// Builder builds handlers for manifests. *handler.Factory satisfies it.
type Builder interface {
	Build(ctx context.Context, m domainconfig.ToolManifest, baseDir string) (handler.Built, error)
}

// Compiler turns manifests into descriptors.
type Compiler struct {
	builder  Builder
	validate *validator.Validate
}

// NewCompiler creates a compiler that builds handlers with b.
func NewCompiler(b Builder) *Compiler {
	return &Compiler{
		builder:  b,
		validate: validator.New(),
	}
}

// IsManifest reports whether path has a manifest extension.
func IsManifest(path string) bool {
	_, err := infraconfig.FormatFromPath(path)
	return err == nil
}

// CompileFile reads and compiles the manifest at path. Failures are
// returned as *tool.LoadError.
func (c *Compiler) CompileFile(ctx context.Context, path string) (tool.Descriptor, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from the configured tools directory
	if err != nil {
		return tool.Descriptor{}, &tool.LoadError{Origin: path, Cause: err}
	}
	return c.CompileBytes(ctx, path, data)
}

// CompileBytes compiles manifest content read from path.
func (c *Compiler) CompileBytes(ctx context.Context, path string, data []byte) (tool.Descriptor, error) {
	format, err := infraconfig.FormatFromPath(path)
	if err != nil {
		return tool.Descriptor{}, &tool.LoadError{Origin: path, Cause: err}
	}

	var m domainconfig.ToolManifest
	if err := infraconfig.Decode(data, format, &m); err != nil {
		return tool.Descriptor{}, &tool.LoadError{Origin: path, Cause: err}
	}
	return c.Compile(ctx, m, path, filepath.Dir(path), data)
}

// Compile builds a descriptor from a decoded manifest. content is the raw
// manifest used for the fingerprint; baseDir anchors relative handler paths.
func (c *Compiler) Compile(ctx context.Context, m domainconfig.ToolManifest, origin, baseDir string, content []byte) (tool.Descriptor, error) {
	fail := func(err error) (tool.Descriptor, error) {
		return tool.Descriptor{}, &tool.LoadError{Origin: origin, Name: m.Name, Cause: err}
	}

	if err := c.validate.Struct(m); err != nil {
		return fail(manifestError(err))
	}

	params, err := toParameters(m.Parameters)
	if err != nil {
		return fail(err)
	}
	annotations, err := toAnnotations(m.Annotations)
	if err != nil {
		return fail(err)
	}

	built, err := c.builder.Build(ctx, m, baseDir)
	if err != nil {
		return fail(err)
	}

	d, err := tool.NewBuilder(m.Name).
		WithDescription(m.Description).
		WithParameters(params...).
		WithAnnotations(annotations).
		WithOrigin(origin).
		WithFingerprint(Fingerprint(content, built.Artifact)).
		WithHandler(built.Handler).
		Build()
	if err != nil {
		return fail(err)
	}
	return d, nil
}

// CompileInline compiles a manifest declared in configuration.
func (c *Compiler) CompileInline(ctx context.Context, m domainconfig.ToolManifest, baseDir string) (tool.Descriptor, error) {
	content, err := json.Marshal(m)
	if err != nil {
		return tool.Descriptor{}, &tool.LoadError{Origin: ConfigOriginPrefix + m.Name, Name: m.Name, Cause: err}
	}
	return c.Compile(ctx, m, ConfigOriginPrefix+m.Name, baseDir, content)
}

// Fingerprint hashes the given byte slices in order.
func Fingerprint(parts ...[]byte) string {
	digest := xxhash.New()
	for _, p := range parts {
		_, _ = digest.Write(p)
	}
	return fmt.Sprintf("%016x", digest.Sum64())
}

func toParameters(in []domainconfig.ParameterConfig) ([]tool.Parameter, error) {
	params := make([]tool.Parameter, 0, len(in))
	for _, p := range in {
		typ, err := tool.ParseParamType(p.Type)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", p.Name, err)
		}
		params = append(params, tool.Parameter{
			Name:        p.Name,
			Type:        typ,
			Required:    p.Required,
			Default:     p.Default,
			Description: p.Description,
		})
	}
	return params, nil
}

func toAnnotations(in domainconfig.ToolAnnotationsConfig) (tool.Annotations, error) {
	risk, err := tool.ParseRiskLevel(in.RiskLevel)
	if err != nil {
		return tool.Annotations{}, err
	}
	a := tool.Annotations{
		ReadOnly:         in.ReadOnly,
		Destructive:      in.Destructive,
		Idempotent:       in.Idempotent,
		RiskLevel:        risk,
		RequiresApproval: in.RequiresApproval,
		Timeout:          in.Timeout.Duration(),
		Tags:             in.Tags,
	}
	if a.Destructive && in.RiskLevel == "" {
		a.RiskLevel = tool.RiskHigh
	}
	return a, nil
}

// manifestError flattens validator output into one readable error.
func manifestError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, len(verrs))
	for i, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "ToolManifest.")
		if fe.Param() != "" {
			msgs[i] = fmt.Sprintf("%s failed %s=%s", field, fe.Tag(), fe.Param())
		} else {
			msgs[i] = fmt.Sprintf("%s failed %s", field, fe.Tag())
		}
	}
	return fmt.Errorf("invalid manifest: %s", strings.Join(msgs, "; "))
}
