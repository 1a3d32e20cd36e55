// Package reports renders archived validation results into exportable
// documents (CSV for spreadsheets, JSON passthrough).
package reports

import (
	"context"
	"io"

	"github.com/rmax-ai/netlord/pkg/store"
)

type ReportType string

const (
	ReportTypeViolations ReportType = "violations"
	ReportTypeVersions   ReportType = "versions"
)

type ReportFormat string

const (
	ReportFormatCSV  ReportFormat = "csv"
	ReportFormatJSON ReportFormat = "json"
)

// ReportParams narrows what a generator exports. Zero values mean "latest" /
// "no filter".
type ReportParams struct {
	Version     int64  // 0 selects the newest archived report
	RuleSet     string // empty matches any rule set
	MinSeverity string // empty includes every severity
	Limit       int    // versions listing only
}

// ReportStore is the slice of the archive generators read from.
type ReportStore interface {
	GetLatestReport(ctx context.Context, ruleSet string) (*store.ReportRecord, error)
	ListVersions(ctx context.Context, limit int) ([]*store.VersionRecord, error)
}

type Generator interface {
	Generate(ctx context.Context, params ReportParams) (io.Reader, error)
}
