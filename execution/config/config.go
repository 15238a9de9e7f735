package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/exp/slices"
)

// DefaultProjectConfigFilename describes the default config filename for a given project folder.
const DefaultProjectConfigFilename = "abirunner.json"

const (
	// BackendOctra selects the Octra REST chain client.
	BackendOctra = "octra"
	// BackendEVM selects the EVM JSON-RPC chain client.
	BackendEVM = "evm"
)

// SupportedBackends lists every chain backend a run can use.
var SupportedBackends = []string{BackendOctra, BackendEVM}

// ProjectConfig describes the configuration of a run.
type ProjectConfig struct {
	// Execution describes how methods are synthesized and invoked.
	Execution ExecutionConfig `json:"execution"`

	// Chain describes how the chain client talks to the node.
	Chain ChainConfig `json:"chain"`

	// Report describes where run reports are written.
	Report ReportConfig `json:"report"`

	// Logging describes the configuration used for logging to file and console.
	Logging LoggingConfig `json:"logging"`
}

// ExecutionConfig describes the configuration of the execution pipeline.
type ExecutionConfig struct {
	// SchemaPath is the path of the contract interface schema (JSON or YAML).
	SchemaPath string `json:"schemaPath"`

	// WalletPath is the path of the wallet file.
	WalletPath string `json:"walletPath"`

	// Backend selects the chain client: "octra" or "evm".
	Backend string `json:"backend"`

	// WriteAttempts is the number of times a write method is attempted before it is recorded as failed.
	WriteAttempts int `json:"writeAttempts"`

	// RetryDelay is the delay between write attempts, in milliseconds.
	RetryDelay int `json:"retryDelay"`

	// CallInterval is the minimum delay between two method invocations, in milliseconds. Zero disables pacing.
	CallInterval int `json:"callInterval"`

	// IntegerMin is the inclusive lower bound of synthesized integers.
	IntegerMin uint64 `json:"integerMin"`

	// IntegerMax is the inclusive upper bound of synthesized integers for parameters that declare no max.
	IntegerMax uint64 `json:"integerMax"`

	// StringPlaceholder is the value used for string parameters without an example.
	StringPlaceholder string `json:"stringPlaceholder"`

	// BoolPlaceholder is the value used for boolean parameters without an example.
	BoolPlaceholder bool `json:"boolPlaceholder"`

	// Seed seeds the random provider. If nil, a random seed is used.
	Seed *uint64 `json:"seed"`

	// StrictSchema rejects unrecognized parameter types when the schema is loaded instead of failing only the
	// methods declaring them.
	StrictSchema bool `json:"strictSchema"`

	// FailOnError makes a run exit with a distinct code if any method failed.
	FailOnError bool `json:"failOnError"`
}

// ChainConfig describes the configuration of the chain clients.
type ChainConfig struct {
	// HTTPTimeout is the timeout of a single node request, in seconds.
	HTTPTimeout int `json:"httpTimeout"`

	// ConfirmationTimeout is how long to wait for a submitted transaction to be confirmed, in seconds. Zero does not
	// wait for confirmation.
	ConfirmationTimeout int `json:"confirmationTimeout"`

	// PollInterval is the interval between confirmation checks, in milliseconds.
	PollInterval int `json:"pollInterval"`

	// GasLimitFallback is the gas limit used by the EVM backend when estimation fails.
	GasLimitFallback uint64 `json:"gasLimitFallback"`
}

// ReportConfig describes where reports are written. Empty paths disable the matching output.
type ReportConfig struct {
	// TextPath is the file text reports are appended to.
	TextPath string `json:"textPath"`

	// JSONPath is the file the JSON report is written to.
	JSONPath string `json:"jsonPath"`

	// CBORPath is the file the CBOR report is written to.
	CBORPath string `json:"cborPath"`

	// HistoryPath is the database every report is recorded in.
	HistoryPath string `json:"historyPath"`
}

// LoggingConfig describes the configuration options used for logging
type LoggingConfig struct {
	// Level describes whether logs of certain severity levels (eg info, warning, etc.) will be emitted or discarded.
	// Increasing level values represent more severe logs
	Level zerolog.Level `json:"level"`

	// EnableConsoleLogging describes whether console logging is enabled
	EnableConsoleLogging bool `json:"enableConsoleLogging"`

	// NoColor disables colored console output
	NoColor bool `json:"noColor"`

	// LogDirectory describes the directory where structured log _files_ will be outputted. If the string is empty, then
	// no log files are kept
	LogDirectory string `json:"logDirectory"`
}

// RetryDelayDuration returns RetryDelay as a time.Duration.
func (e *ExecutionConfig) RetryDelayDuration() time.Duration {
	return time.Duration(e.RetryDelay) * time.Millisecond
}

// CallIntervalDuration returns CallInterval as a time.Duration.
func (e *ExecutionConfig) CallIntervalDuration() time.Duration {
	return time.Duration(e.CallInterval) * time.Millisecond
}

// HTTPTimeoutDuration returns HTTPTimeout as a time.Duration.
func (c *ChainConfig) HTTPTimeoutDuration() time.Duration {
	return time.Duration(c.HTTPTimeout) * time.Second
}

// ConfirmationTimeoutDuration returns ConfirmationTimeout as a time.Duration.
func (c *ChainConfig) ConfirmationTimeoutDuration() time.Duration {
	return time.Duration(c.ConfirmationTimeout) * time.Second
}

// PollIntervalDuration returns PollInterval as a time.Duration.
func (c *ChainConfig) PollIntervalDuration() time.Duration {
	return time.Duration(c.PollInterval) * time.Millisecond
}

// ReadProjectConfigFromFile reads a JSON-serialized ProjectConfig from a provided file path. Fields missing from the
// file keep their default values.
// Returns the ProjectConfig if it succeeds, or an error if one occurs.
func ReadProjectConfigFromFile(path string) (*ProjectConfig, error) {
	// Read our project configuration file data
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	// Parse the project configuration on top of the defaults
	projectConfig := GetDefaultProjectConfig()
	err = json.Unmarshal(b, projectConfig)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return projectConfig, nil
}

// WriteToFile writes the ProjectConfig to a provided file path in a JSON-serialized format.
// Returns an error if one occurs.
func (p *ProjectConfig) WriteToFile(path string) error {
	// Serialize the configuration
	b, err := json.MarshalIndent(p, "", "\t")
	if err != nil {
		return errors.WithStack(err)
	}

	// Save it to the provided output path and return the result
	err = os.WriteFile(path, b, 0644)
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

// Validate validates that the ProjectConfig meets certain requirements.
// Returns an error if one occurs.
func (p *ProjectConfig) Validate() error {
	// Verify the schema and wallet sources are set
	if p.Execution.SchemaPath == "" {
		return errors.Errorf("schema path must be set")
	}
	if p.Execution.WalletPath == "" {
		return errors.Errorf("wallet path must be set")
	}

	// Verify the backend is supported
	if !slices.Contains(SupportedBackends, p.Execution.Backend) {
		return errors.Errorf("unsupported backend %q, expected one of %v", p.Execution.Backend, SupportedBackends)
	}

	// Verify write attempts is a positive number
	if p.Execution.WriteAttempts <= 0 {
		return errors.Errorf("write attempts must be a positive number")
	}

	// Verify delays are not negative
	if p.Execution.RetryDelay < 0 || p.Execution.CallInterval < 0 {
		return errors.Errorf("retry delay and call interval cannot be negative")
	}

	// Verify the integer bounds are ordered
	if p.Execution.IntegerMax < p.Execution.IntegerMin {
		return errors.Errorf("integer max cannot be less than integer min")
	}

	// Verify chain timeouts
	if p.Chain.HTTPTimeout <= 0 {
		return errors.Errorf("http timeout must be a positive number")
	}
	if p.Chain.ConfirmationTimeout < 0 {
		return errors.Errorf("confirmation timeout cannot be negative")
	}
	if p.Chain.ConfirmationTimeout > 0 && p.Chain.PollInterval <= 0 {
		return errors.Errorf("poll interval must be a positive number when waiting for confirmations")
	}
	return nil
}
