package tool

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// BuiltinOriginPrefix marks descriptors registered from code rather than a source file.
const BuiltinOriginPrefix = "builtin:"

var namePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_.-]{0,127}$`)

// ValidName reports whether name can be registered as a tool name.
func ValidName(name string) bool {
	return namePattern.MatchString(name)
}

// Handler executes a tool with validated arguments.
type Handler func(ctx context.Context, args Arguments) (any, error)

// Descriptor is the registry's record of one callable tool. Once registered
// it is treated as an immutable value; hot reload replaces it wholesale.
type Descriptor struct {
	Name        string
	Description string
	Parameters  Schema
	Handler     Handler
	Annotations Annotations

	// Origin is the source path, or "builtin:<pack>" for code-registered tools.
	Origin string

	// Fingerprint is the content hash of the source the descriptor came from.
	Fingerprint string

	// Version is assigned by the registry on register and is strictly
	// increasing per name.
	Version uint64
}

// Validate checks the descriptor can be registered.
func (d Descriptor) Validate() error {
	var errs []error
	if d.Name == "" {
		errs = append(errs, errors.New("name is empty"))
	} else if !namePattern.MatchString(d.Name) {
		errs = append(errs, fmt.Errorf("name %q is not a valid identifier", d.Name))
	}
	if d.Handler == nil {
		errs = append(errs, errors.New("handler is missing"))
	}
	if err := d.Parameters.Validate(); err != nil {
		errs = append(errs, err)
	}
	if d.Annotations.Timeout < 0 {
		errs = append(errs, errors.New("timeout must be non-negative"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %s: %w", ErrInvalidDescriptor, d.Name, errors.Join(errs...))
	}
	return nil
}

// Clone returns a copy that shares no slices with d.
func (d Descriptor) Clone() Descriptor {
	d.Parameters = d.Parameters.clone()
	d.Annotations = d.Annotations.clone()
	return d
}

// IsBuiltin reports whether the descriptor was registered from code.
func (d Descriptor) IsBuiltin() bool {
	return strings.HasPrefix(d.Origin, BuiltinOriginPrefix)
}

// Builder provides a fluent API for constructing descriptors.
type Builder struct {
	def Descriptor
}

// NewBuilder creates a new tool builder with the given name.
func NewBuilder(name string) *Builder {
	return &Builder{
		def: Descriptor{
			Name:        name,
			Annotations: DefaultAnnotations(),
		},
	}
}

// WithDescription sets the tool description.
func (b *Builder) WithDescription(desc string) *Builder {
	b.def.Description = desc
	return b
}

// WithParameters appends parameters in order.
func (b *Builder) WithParameters(params ...Parameter) *Builder {
	b.def.Parameters = append(b.def.Parameters, params...)
	return b
}

// Required appends a required parameter.
func (b *Builder) Required(name string, typ ParamType, desc string) *Builder {
	return b.WithParameters(Parameter{Name: name, Type: typ, Required: true, Description: desc})
}

// Optional appends an optional parameter with a default (nil for none).
func (b *Builder) Optional(name string, typ ParamType, def any, desc string) *Builder {
	return b.WithParameters(Parameter{Name: name, Type: typ, Default: def, Description: desc})
}

// WithAnnotations sets the tool annotations.
func (b *Builder) WithAnnotations(annotations Annotations) *Builder {
	b.def.Annotations = annotations
	return b
}

// ReadOnly marks the tool as read-only.
func (b *Builder) ReadOnly() *Builder {
	b.def.Annotations.ReadOnly = true
	b.def.Annotations.RiskLevel = RiskNone
	return b
}

// Destructive marks the tool as destructive.
func (b *Builder) Destructive() *Builder {
	b.def.Annotations.Destructive = true
	b.def.Annotations.RequiresApproval = true
	if b.def.Annotations.RiskLevel < RiskHigh {
		b.def.Annotations.RiskLevel = RiskHigh
	}
	return b
}

// Idempotent marks the tool as idempotent.
func (b *Builder) Idempotent() *Builder {
	b.def.Annotations.Idempotent = true
	return b
}

// WithRiskLevel sets the risk level.
func (b *Builder) WithRiskLevel(level RiskLevel) *Builder {
	b.def.Annotations.RiskLevel = level
	return b
}

// WithTimeout bounds each invocation of the tool.
func (b *Builder) WithTimeout(d time.Duration) *Builder {
	b.def.Annotations.Timeout = d
	return b
}

// WithTags adds tags to the tool.
func (b *Builder) WithTags(tags ...string) *Builder {
	b.def.Annotations.Tags = append(b.def.Annotations.Tags, tags...)
	return b
}

// WithOrigin records where the tool came from.
func (b *Builder) WithOrigin(origin string) *Builder {
	b.def.Origin = origin
	return b
}

// WithFingerprint records the source content hash.
func (b *Builder) WithFingerprint(fp string) *Builder {
	b.def.Fingerprint = fp
	return b
}

// WithHandler sets the tool handler function.
func (b *Builder) WithHandler(handler Handler) *Builder {
	b.def.Handler = handler
	return b
}

// Build validates and returns the descriptor.
func (b *Builder) Build() (Descriptor, error) {
	if err := b.def.Validate(); err != nil {
		return Descriptor{}, err
	}
	return b.def.Clone(), nil
}

// MustBuild constructs the descriptor or panics on error.
func (b *Builder) MustBuild() Descriptor {
	d, err := b.Build()
	if err != nil {
		panic(err)
	}
	return d
}
