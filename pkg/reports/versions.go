package reports

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"time"
)

// VersionsReport exports the archived version history as CSV, newest first.
type VersionsReport struct {
	store ReportStore
}

// NewVersionsReport creates a new VersionsReport generator.
func NewVersionsReport(s ReportStore) *VersionsReport {
	return &VersionsReport{store: s}
}

// Generate renders version metadata rows for up to params.Limit versions.
func (r *VersionsReport) Generate(ctx context.Context, params ReportParams) (io.Reader, error) {
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)

	headers := []string{"version", "ts_committed", "namespace", "node_count", "edge_count"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write headers: %w", err)
	}

	recs, err := r.store.ListVersions(ctx, params.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}

	for _, rec := range recs {
		row := []string{
			fmt.Sprintf("%d", rec.Version),
			rec.TsCommitted.Format(time.RFC3339),
			rec.Namespace,
			fmt.Sprintf("%d", rec.NodeCount),
			fmt.Sprintf("%d", rec.EdgeCount),
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
