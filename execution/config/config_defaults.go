package config

import (
	"github.com/rs/zerolog"
)

// GetDefaultProjectConfig obtains a default configuration for a project targeting an Octra node. Write methods get
// three attempts two seconds apart and methods are paced two seconds apart.
func GetDefaultProjectConfig() *ProjectConfig {
	return &ProjectConfig{
		Execution: ExecutionConfig{
			SchemaPath:        "exec_interface.json",
			WalletPath:        "wallet.json",
			Backend:           BackendOctra,
			WriteAttempts:     3,
			RetryDelay:        2000,
			CallInterval:      2000,
			IntegerMin:        1,
			IntegerMax:        100,
			StringPlaceholder: "hello",
			BoolPlaceholder:   true,
			Seed:              nil,
			StrictSchema:      false,
			FailOnError:       false,
		},
		Chain: ChainConfig{
			HTTPTimeout:         100,
			ConfirmationTimeout: 0,
			PollInterval:        2000,
			GasLimitFallback:    1_000_000,
		},
		Report: ReportConfig{
			TextPath:    "ocs01_report.txt",
			JSONPath:    "",
			CBORPath:    "",
			HistoryPath: ".abirunner/history.db",
		},
		Logging: LoggingConfig{
			Level:                zerolog.InfoLevel,
			EnableConsoleLogging: true,
			NoColor:              false,
			LogDirectory:         "",
		},
	}
}
