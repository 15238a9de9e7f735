package reporting

import (
	"encoding/json"

	"github.com/crytic/abirunner/execution"
	"github.com/crytic/abirunner/utils"
	"github.com/pkg/errors"
)

// JSONSink writes each report to a file as indented JSON, replacing the previous report.
type JSONSink struct {
	// Path is the file the report is written to.
	Path string
}

// Prepare verifies the sink's file can be written to.
func (s *JSONSink) Prepare() error {
	return utils.CheckWritable(s.Path)
}

// Write serializes the report to the sink's file.
func (s *JSONSink) Write(report *execution.Report) error {
	data, err := json.MarshalIndent(report, "", "\t")
	if err != nil {
		return errors.WithStack(err)
	}
	if err := utils.WriteFile(s.Path, data); err != nil {
		return err
	}
	reportingLogger.Debug("Wrote JSON report to ", s.Path)
	return nil
}
