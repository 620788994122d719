package observability

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys for tool invocations.
const (
	AttrTool         = attribute.Key("toolhost.tool")
	AttrVersion      = attribute.Key("toolhost.tool.version")
	AttrInvocationID = attribute.Key("toolhost.invocation.id")
	AttrCaller       = attribute.Key("toolhost.caller")
	AttrOutcome      = attribute.Key("toolhost.outcome")
)

// InvocationAttributes returns the attributes set on a dispatch span.
func InvocationAttributes(tool, invocationID, caller string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		AttrTool.String(tool),
		AttrInvocationID.String(invocationID),
	}
	if caller != "" {
		attrs = append(attrs, AttrCaller.String(caller))
	}
	return attrs
}

// Finish records the outcome on span and ends it.
func Finish(span trace.Span, outcome string, err error) {
	span.SetAttributes(AttrOutcome.String(outcome))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
