// File: internal/reporting/reporter.go
// Description: Report sinks. A scan produces three artifacts in the output
// directory: the full machine-readable report, a condensed summary for
// dashboards, and a human-readable markdown digest.

package reporting

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/formscout/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	reportFile  = "report.json"
	summaryFile = "last_scan_summary.json"
	digestFile  = "report.md"
)

// Summary is the condensed scan outcome kept alongside the full report.
type Summary struct {
	ScanID      string                          `json:"scan_id"`
	TargetURL   string                          `json:"target_url"`
	Pages       int                             `json:"pages"`
	FieldsFound int                             `json:"fields_found"`
	TotalCases  int                             `json:"total_cases"`
	ByStatus    map[schemas.ResultStatus]int    `json:"by_status"`
	StartedAt   time.Time                       `json:"started_at"`
	FinishedAt  time.Time                       `json:"finished_at"`
}

// Writer persists reports to a directory.
type Writer struct {
	dir    string
	logger *zap.Logger
}

func NewWriter(dir string, logger *zap.Logger) *Writer {
	return &Writer{dir: dir, logger: logger.Named("reporting")}
}

// Write persists all three artifacts. The first failure aborts; partially
// written artifacts from earlier in the sequence are left in place.
func (w *Writer) Write(report schemas.Report) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	if err := w.writeJSON(reportFile, report); err != nil {
		return err
	}
	if err := w.writeJSON(summaryFile, Summarize(report)); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(w.dir, digestFile), []byte(Digest(report)), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", digestFile, err)
	}

	w.logger.Info("Reports written",
		zap.String("dir", w.dir),
		zap.String("scan_id", report.ScanID))
	return nil
}

func (w *Writer) writeJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", name, err)
	}
	if err := os.WriteFile(filepath.Join(w.dir, name), data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

// Summarize condenses a report into headline numbers.
func Summarize(report schemas.Report) Summary {
	s := Summary{
		ScanID:      report.ScanID,
		TargetURL:   report.TargetURL,
		Pages:       len(report.Pages),
		FieldsFound: report.FieldsFound,
		ByStatus:    make(map[schemas.ResultStatus]int),
		StartedAt:   report.StartedAt,
		FinishedAt:  report.FinishedAt,
	}
	for _, pe := range report.Execution {
		for _, res := range pe.Results {
			s.TotalCases++
			s.ByStatus[res.Status]++
		}
	}
	return s
}

// Digest renders the markdown report.
func Digest(report schemas.Report) string {
	sum := Summarize(report)

	var b strings.Builder
	fmt.Fprintf(&b, "# Form QA Report\n\n")
	fmt.Fprintf(&b, "- **Target:** %s\n", report.TargetURL)
	fmt.Fprintf(&b, "- **Scan ID:** %s\n", report.ScanID)
	fmt.Fprintf(&b, "- **Started:** %s\n", report.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "- **Finished:** %s\n\n", report.FinishedAt.Format(time.RFC3339))

	fmt.Fprintf(&b, "## Stats\n\n")
	fmt.Fprintf(&b, "Pages scanned: %d | Fields found: %d | Cases executed: %d\n\n",
		sum.Pages, sum.FieldsFound, sum.TotalCases)

	if len(sum.ByStatus) > 0 {
		fmt.Fprintf(&b, "| Status | Count |\n|---|---|\n")
		statuses := make([]string, 0, len(sum.ByStatus))
		for st := range sum.ByStatus {
			statuses = append(statuses, string(st))
		}
		sort.Strings(statuses)
		for _, st := range statuses {
			fmt.Fprintf(&b, "| %s | %d |\n", st, sum.ByStatus[schemas.ResultStatus(st)])
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "## Findings\n\n")
	findings := 0
	for _, pe := range report.Execution {
		for _, res := range pe.Results {
			if res.Status == schemas.StatusApplied {
				continue
			}
			findings++
			fmt.Fprintf(&b, "- `%s` on %s: **%s**", res.Selector, pe.PageURL, res.Status)
			if res.Payload != "" {
				fmt.Fprintf(&b, " (payload `%s`)", res.Payload)
			}
			if len(res.Messages) > 0 {
				fmt.Fprintf(&b, ": %s", strings.Join(res.Messages, "; "))
			}
			b.WriteString("\n")
		}
	}
	if findings == 0 {
		b.WriteString("No deviations detected.\n")
	}
	return b.String()
}
