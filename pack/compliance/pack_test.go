package compliance

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/felixgeelhaar/toolhost/domain/pack"
	"github.com/felixgeelhaar/toolhost/domain/tool"
)

func TestDescriptionPattern(t *testing.T) {
	t.Parallel()

	tests := []struct {
		desc string
		want bool
	}{
		{"NYC_AWS_DIRECT_CKT123", true},
		{"LAX_AZURE_EXPRESS_CKT456", true},
		{"CHI_GOOGLE_CLOUD_CKT789", true},
		{"SFO_MGMT_LOOP_CKT001", true},
		{"DAL_MONITOR_LOOP_CKT002", true},
		{"To Core Switch", false},
		{"AWS Direct Connect", false},
		{"NYC-AWS", false},
		{"NYC_AWS", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := DescriptionPattern.MatchString(tt.desc); got != tt.want {
			t.Errorf("match(%q) = %v, want %v", tt.desc, got, tt.want)
		}
	}
}

func TestCheck(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		iface     Interface
		compliant bool
		issue     string
		suggested string
	}{
		{
			name:      "compliant",
			iface:     Interface{Name: "Gi0/0/0/0", Description: "NYC_AWS_DIRECT_CKT123", Status: "up"},
			compliant: true,
		},
		{
			name:      "free text",
			iface:     Interface{Name: "Gi0/0/0/3", Description: "To Core Switch", Status: "up"},
			issue:     IssueFormat,
			suggested: Template,
		},
		{
			name:      "dashes",
			iface:     Interface{Name: "Gi0/0/0/5", Description: "NYC-AWS", Status: "down"},
			issue:     IssueFormat,
			suggested: Template,
		},
		{
			name:      "fixable case and separators",
			iface:     Interface{Name: "Gi0/0/0/7", Description: "nyc-aws direct ckt123", Status: "up"},
			issue:     IssueFormat,
			suggested: "NYC_AWS_DIRECT_CKT123",
		},
		{
			name:      "missing on up interface",
			iface:     Interface{Name: "Loopback0", Status: "Up"},
			issue:     IssueMissing,
			suggested: Template,
		},
		{
			name:      "missing on down interface",
			iface:     Interface{Name: "Gi0/0/0/6", Status: "down"},
			compliant: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := Check(tt.iface)
			if f.Compliant != tt.compliant {
				t.Fatalf("Compliant = %v, want %v", f.Compliant, tt.compliant)
			}
			if f.Issue != tt.issue {
				t.Errorf("Issue = %q, want %q", f.Issue, tt.issue)
			}
			if f.Suggested != tt.suggested {
				t.Errorf("Suggested = %q, want %q", f.Suggested, tt.suggested)
			}
			if tt.compliant {
				if len(f.Fix) != 0 {
					t.Errorf("Fix = %v, want none", f.Fix)
				}
				return
			}
			want := []string{"interface " + tt.iface.Name, "description " + tt.suggested, "exit"}
			if len(f.Fix) != len(want) {
				t.Fatalf("Fix = %v, want %v", f.Fix, want)
			}
			for i := range want {
				if f.Fix[i] != want[i] {
					t.Errorf("Fix[%d] = %q, want %q", i, f.Fix[i], want[i])
				}
			}
		})
	}
}

func rows() []any {
	return []any{
		map[string]any{"name": "Gi0/0/0/0", "description": "NYC_AWS_DIRECT_CKT123", "status": "up"},
		map[string]any{"name": "Gi0/0/0/3", "description": "To Core Switch", "status": "up"},
		map[string]any{"name": "Loopback0", "description": "", "status": "up"},
	}
}

func call(t *testing.T, env pack.Env, name string, args tool.Arguments) (any, error) {
	t.Helper()

	p, err := New(env)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	d, ok := p.GetTool(name)
	if !ok {
		t.Fatalf("tool %s not found", name)
	}
	coerced, err := d.Parameters.Coerce(d.Name, args)
	if err != nil {
		return nil, err
	}
	return d.Handler(context.Background(), coerced)
}

func TestInterfaceComplianceTool(t *testing.T) {
	t.Parallel()

	got, err := call(t, pack.Env{}, "interface_compliance", tool.Arguments{"interfaces": rows()})
	if err != nil {
		t.Fatalf("interface_compliance error = %v", err)
	}
	s := got.(Summary)
	if s.Total != 3 || s.Compliant != 1 || s.NonCompliant != 2 {
		t.Errorf("summary = %d/%d/%d", s.Total, s.Compliant, s.NonCompliant)
	}

	_, err = call(t, pack.Env{}, "interface_compliance", tool.Arguments{"interfaces": []any{"Gi0"}})
	if err == nil {
		t.Error("non-object row should fail")
	}
	_, err = call(t, pack.Env{}, "interface_compliance", tool.Arguments{"interfaces": []any{map[string]any{"status": "up"}}})
	if err == nil {
		t.Error("row without name should fail")
	}
}

func TestComplianceReportTool(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	env := pack.Env{Config: map[string]any{"report_dir": dir}}

	got, err := call(t, env, "compliance_report", tool.Arguments{"rows": rows(), "path": "reports/branch.csv"})
	if err != nil {
		t.Fatalf("compliance_report error = %v", err)
	}
	res := got.(ReportResult)
	if res.Rows != 3 || res.Path != filepath.Join(dir, "reports", "branch.csv") {
		t.Errorf("result = %+v", res)
	}

	f, err := os.Open(res.Path)
	if err != nil {
		t.Fatalf("open report: %v", err)
	}
	defer func() { _ = f.Close() }()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("records = %d, want 4", len(records))
	}
	if records[0][0] != "interface" || records[2][0] != "Gi0/0/0/3" || records[2][3] != "false" {
		t.Errorf("records = %v", records)
	}
	if records[3][4] != IssueMissing {
		t.Errorf("Loopback0 issue = %q", records[3][4])
	}

	for _, bad := range []string{"../escape.csv", "/tmp/abs.csv", ""} {
		if _, err := call(t, env, "compliance_report", tool.Arguments{"rows": rows(), "path": bad}); err == nil {
			t.Errorf("path %q should be rejected", bad)
		}
	}
}
