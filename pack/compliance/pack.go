// Package compliance provides interface description compliance tools for
// network devices.
package compliance

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/felixgeelhaar/toolhost/domain/pack"
	"github.com/felixgeelhaar/toolhost/domain/tool"
)

// Name is the pack name.
const Name = "compliance"

// DescriptionPattern is the <LOCATION>_<PEER>_<CIRCUIT-ID> convention,
// e.g. NYC_AWS_DIRECT_CKT123.
var DescriptionPattern = regexp.MustCompile(`^[A-Z]{2,5}_[A-Z0-9]+(?:_[A-Z0-9]+)*_CKT[0-9]+$`)

// Template is suggested when a description cannot be normalized.
const Template = "<LOCATION>_<PEER>_<CIRCUIT-ID>"

// Issues.
const (
	IssueMissing = "missing description"
	IssueFormat  = "description does not match " + Template
)

var reportHeader = []string{"interface", "status", "description", "compliant", "issue", "suggested", "fix"}

type tools struct {
	reportDir string
}

// New creates the compliance pack. Reports are written below the
// "report_dir" config value (default: the working directory).
func New(env pack.Env) (*pack.Pack, error) {
	t := &tools{reportDir: env.String("report_dir", ".")}
	return pack.NewBuilder(Name).
		WithDescription("Interface description compliance checks and reports").
		WithVersion("1.0.0").
		AddTools(
			t.checkTool(),
			t.reportTool(),
		).
		Build(), nil
}

// Interface is one device interface as reported by the device.
type Interface struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

// Finding is the compliance verdict for one interface.
type Finding struct {
	Interface
	Compliant bool     `json:"compliant"`
	Issue     string   `json:"issue,omitempty"`
	Suggested string   `json:"suggested,omitempty"`
	Fix       []string `json:"fix,omitempty"`
}

// Summary is the output of interface_compliance.
type Summary struct {
	Total        int       `json:"total"`
	Compliant    int       `json:"compliant"`
	NonCompliant int       `json:"non_compliant"`
	Findings     []Finding `json:"findings"`
}

// Check evaluates one interface. Interfaces that are up must carry a
// description; any description present must follow the convention.
func Check(iface Interface) Finding {
	f := Finding{Interface: iface, Compliant: true}
	desc := strings.TrimSpace(iface.Description)

	switch {
	case desc == "" && isUp(iface.Status):
		f.Compliant = false
		f.Issue = IssueMissing
	case desc != "" && !DescriptionPattern.MatchString(desc):
		f.Compliant = false
		f.Issue = IssueFormat
	}
	if f.Compliant {
		return f
	}

	f.Suggested = Suggest(desc)
	f.Fix = []string{
		"interface " + iface.Name,
		"description " + f.Suggested,
		"exit",
	}
	return f
}

// Suggest normalizes a description toward the convention: upper case with
// separators folded to underscores. The template is returned when the
// result still does not conform.
func Suggest(desc string) string {
	var b strings.Builder
	underscore := false
	for _, r := range strings.ToUpper(strings.TrimSpace(desc)) {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
			underscore = false
		case !underscore && b.Len() > 0:
			b.WriteByte('_')
			underscore = true
		}
	}
	s := strings.TrimSuffix(b.String(), "_")
	if DescriptionPattern.MatchString(s) {
		return s
	}
	return Template
}

// Audit checks a set of interfaces.
func Audit(ifaces []Interface) Summary {
	s := Summary{Total: len(ifaces), Findings: make([]Finding, 0, len(ifaces))}
	for _, iface := range ifaces {
		f := Check(iface)
		if f.Compliant {
			s.Compliant++
		} else {
			s.NonCompliant++
		}
		s.Findings = append(s.Findings, f)
	}
	return s
}

func isUp(status string) bool {
	return strings.EqualFold(strings.TrimSpace(status), "up")
}

func (t *tools) checkTool() tool.Descriptor {
	return tool.NewBuilder("interface_compliance").
		WithDescription("Check interface descriptions against " + Template + " and generate fix commands").
		Required("interfaces", tool.TypeArray, "Interfaces as objects with name, description and status").
		ReadOnly().
		Idempotent().
		WithTags("network", "compliance").
		WithHandler(func(_ context.Context, args tool.Arguments) (any, error) {
			ifaces, err := decodeInterfaces(args.Slice("interfaces"))
			if err != nil {
				return nil, err
			}
			return Audit(ifaces), nil
		}).
		MustBuild()
}

// ReportResult is the output of compliance_report.
type ReportResult struct {
	Path string `json:"path"`
	Rows int    `json:"rows"`
}

func (t *tools) reportTool() tool.Descriptor {
	return tool.NewBuilder("compliance_report").
		WithDescription("Check interfaces and write the findings as a CSV report").
		Required("rows", tool.TypeArray, "Interfaces as objects with name, description and status").
		Required("path", tool.TypeString, "Report file, relative to the report directory").
		WithRiskLevel(tool.RiskLow).
		WithTags("network", "compliance").
		WithHandler(func(_ context.Context, args tool.Arguments) (any, error) {
			ifaces, err := decodeInterfaces(args.Slice("rows"))
			if err != nil {
				return nil, err
			}
			path, err := t.reportPath(args.String("path"))
			if err != nil {
				return nil, err
			}
			summary := Audit(ifaces)
			if err := WriteReport(path, summary.Findings); err != nil {
				return nil, err
			}
			return ReportResult{Path: path, Rows: len(summary.Findings)}, nil
		}).
		MustBuild()
}

func (t *tools) reportPath(rel string) (string, error) {
	if rel == "" || !filepath.IsLocal(rel) {
		return "", fmt.Errorf("report path %q must be relative and stay inside the report directory", rel)
	}
	return filepath.Join(t.reportDir, rel), nil
}

// WriteReport writes findings as CSV to path.
func WriteReport(path string, findings []Finding) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600) // #nosec G304 -- path is confined to the report directory
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	w := csv.NewWriter(f)
	if err := w.Write(reportHeader); err != nil {
		return err
	}
	for _, fd := range findings {
		record := []string{
			fd.Name,
			fd.Status,
			fd.Description,
			strconv.FormatBool(fd.Compliant),
			fd.Issue,
			fd.Suggested,
			strings.Join(fd.Fix, "; "),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func decodeInterfaces(rows []any) ([]Interface, error) {
	ifaces := make([]Interface, 0, len(rows))
	var errs []error
	for i, row := range rows {
		m, ok := row.(map[string]any)
		if !ok {
			errs = append(errs, fmt.Errorf("row %d: expected an object, got %T", i, row))
			continue
		}
		args := tool.Arguments(m)
		iface := Interface{
			Name:        args.String("name"),
			Description: args.String("description"),
			Status:      args.String("status"),
		}
		if iface.Name == "" {
			errs = append(errs, fmt.Errorf("row %d: name is required", i))
			continue
		}
		ifaces = append(ifaces, iface)
	}
	return ifaces, errors.Join(errs...)
}
