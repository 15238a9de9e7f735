package reporting

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/crytic/abirunner/execution"
	"github.com/crytic/abirunner/schema"
	"github.com/crytic/abirunner/utils"
	"github.com/pkg/errors"
)

// DefaultTextReportFile is the file text reports are appended to by default.
const DefaultTextReportFile = "ocs01_report.txt"

// balanceDisplayDecimals is the number of decimal places balances are rendered with.
const balanceDisplayDecimals = 6

// TextSink appends reports to a text file, one line per method.
type TextSink struct {
	// Path is the file reports are appended to.
	Path string
	// OmitHeader disables the run header preceding the method lines.
	OmitHeader bool
}

// NewTextSink creates a TextSink appending to path.
func NewTextSink(path string) *TextSink {
	return &TextSink{Path: path}
}

// Prepare verifies the sink's file can be appended to.
func (s *TextSink) Prepare() error {
	return utils.CheckWritable(s.Path)
}

// Write appends the report to the sink's file.
func (s *TextSink) Write(report *execution.Report) error {
	file, err := utils.OpenAppend(s.Path)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := WriteText(file, report, !s.OmitHeader); err != nil {
		return err
	}
	reportingLogger.Debug("Appended text report to ", s.Path)
	return nil
}

// WriteText renders the report as text. Each method is rendered on its own line as "label: result" for reads,
// "label: TX Hash id" for writes and "label: Error - detail" for failures.
func WriteText(w io.Writer, report *execution.Report, header bool) error {
	var buf bytes.Buffer
	if header {
		fmt.Fprintf(&buf, "# run %s started %s\n", report.RunID, report.StartedAt.UTC().Format(time.RFC3339))
		if report.Contract != "" {
			fmt.Fprintf(&buf, "# contract %s\n", report.Contract)
		}
		fmt.Fprintf(&buf, "# wallet %s balance %s\n", report.WalletAddress, report.StartingBalance.StringFixed(balanceDisplayDecimals))
	}

	for _, outcome := range report.Outcomes {
		buf.WriteString(FormatOutcome(outcome))
		buf.WriteByte('\n')
	}

	if header {
		fmt.Fprintf(&buf, "# %d succeeded, %d failed\n", report.Succeeded(), report.Failed())
	}

	_, err := w.Write(buf.Bytes())
	return errors.WithStack(err)
}

// FormatOutcome renders a single outcome as a report line.
func FormatOutcome(outcome execution.OutcomeRecord) string {
	switch {
	case !outcome.Succeeded():
		return fmt.Sprintf("%s: Error - %s", outcome.Label, outcome.Error)
	case outcome.Mutability == schema.MutabilityWrite:
		return fmt.Sprintf("%s: TX Hash %s", outcome.Label, outcome.Payload)
	default:
		return fmt.Sprintf("%s: %s", outcome.Label, outcome.Payload)
	}
}
