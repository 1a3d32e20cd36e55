package reports

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/rmax-ai/netlord/pkg/rules"
)

// ViolationsReport exports the violations of an archived validation report as
// CSV, one row per violation, in the report's own deterministic order.
type ViolationsReport struct {
	store ReportStore
}

// NewViolationsReport creates a new ViolationsReport generator.
func NewViolationsReport(s ReportStore) *ViolationsReport {
	return &ViolationsReport{store: s}
}

// Generate renders the newest archived report (optionally filtered by rule
// set) as CSV.
func (r *ViolationsReport) Generate(ctx context.Context, params ReportParams) (io.Reader, error) {
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)

	headers := []string{"version", "rule_set", "code", "severity", "message", "nodes", "edges"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write headers: %w", err)
	}

	rec, err := r.store.GetLatestReport(ctx, params.RuleSet)
	if err != nil {
		return nil, fmt.Errorf("failed to load report: %w", err)
	}

	var report rules.Report
	if err := json.Unmarshal(rec.Payload, &report); err != nil {
		return nil, fmt.Errorf("failed to decode report %d: %w", rec.ID, err)
	}

	var floor rules.Severity
	hasFloor := false
	if params.MinSeverity != "" {
		if err := floor.UnmarshalJSON([]byte(`"` + params.MinSeverity + `"`)); err != nil {
			return nil, err
		}
		hasFloor = true
	}

	for _, v := range report.Violations {
		if hasFloor && v.Severity < floor {
			continue
		}
		row := []string{
			fmt.Sprintf("%d", report.Version),
			report.RuleSet,
			v.Code,
			v.Severity.String(),
			v.Message,
			strings.Join(v.Nodes, " "),
			strings.Join(v.Edges, " "),
		}
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush writer: %w", err)
	}

	return buf, nil
}
