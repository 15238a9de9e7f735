package logging

// These constants are used to identify the various services that may do some logging
const (
	// SCHEMA_SERVICE is the constant used to identify the schema package
	SCHEMA_SERVICE = "schema"
	// EXECUTION_SERVICE is the constant used to identify the execution package
	EXECUTION_SERVICE = "execution"
	// CHAIN_SERVICE is the constant used to identify the chain client packages
	CHAIN_SERVICE = "chain"
	// WALLET_SERVICE is the constant used to identify the wallet package
	WALLET_SERVICE = "wallet"
	// REPORTING_SERVICE is the constant used to identify the reporting package
	REPORTING_SERVICE = "reporting"
	// CLI_SERVICE is the constant used to identify the cmd package
	CLI_SERVICE = "cli"
)
