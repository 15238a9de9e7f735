package reporting

import (
	"github.com/crytic/abirunner/execution"
	"github.com/crytic/abirunner/utils"
	"github.com/fxamacker/cbor"
	"github.com/pkg/errors"
)

// cborEncOptions produces canonical CBOR with RFC 3339 timestamps, so that times keep sub-second precision.
func cborEncOptions() cbor.EncOptions {
	opts := cbor.CanonicalEncOptions()
	opts.TimeRFC3339 = true
	return opts
}

// MarshalCBOR encodes a report as canonical CBOR.
func MarshalCBOR(report *execution.Report) ([]byte, error) {
	data, err := cbor.Marshal(report, cborEncOptions())
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return data, nil
}

// UnmarshalCBOR decodes a report encoded by MarshalCBOR.
func UnmarshalCBOR(data []byte) (*execution.Report, error) {
	var report execution.Report
	if err := cbor.Unmarshal(data, &report); err != nil {
		return nil, errors.WithStack(err)
	}
	return &report, nil
}

// CBORSink writes each report to a file as canonical CBOR, replacing the previous report.
type CBORSink struct {
	// Path is the file the report is written to.
	Path string
}

// Prepare verifies the sink's file can be written to.
func (s *CBORSink) Prepare() error {
	return utils.CheckWritable(s.Path)
}

// Write serializes the report to the sink's file.
func (s *CBORSink) Write(report *execution.Report) error {
	data, err := MarshalCBOR(report)
	if err != nil {
		return err
	}
	if err := utils.WriteFile(s.Path, data); err != nil {
		return err
	}
	reportingLogger.Debug("Wrote CBOR report to ", s.Path)
	return nil
}
