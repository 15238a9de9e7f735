package cmd

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/crytic/abirunner/cmd/exitcodes"
	"github.com/crytic/abirunner/execution"
	"github.com/crytic/abirunner/execution/config"
	"github.com/crytic/abirunner/reporting"
	"github.com/crytic/abirunner/schema"
	"github.com/crytic/abirunner/utils"
	"github.com/crytic/abirunner/utils/testutils"
	"github.com/crytic/abirunner/wallet"
	"github.com/crytic/medusa-geth/crypto"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeOctraNode serves the subset of the Octra REST API a run uses.
type fakeOctraNode struct {
	lock        sync.Mutex
	submissions int
}

func (n *fakeOctraNode) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/balance/", func(w http.ResponseWriter, r *http.Request) {
		n.lock.Lock()
		defer n.lock.Unlock()
		_, _ = w.Write([]byte(`{"balance_raw": "2500000", "nonce": ` + strconv.Itoa(n.submissions) + `}`))
	})
	mux.HandleFunc("/contract/call-view", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string   `json:"method"`
			Params []string `json:"params"`
			Caller string   `json:"caller"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		switch req.Method {
		case "greetCaller":
			_ = json.NewEncoder(w).Encode(map[string]any{"status": "success", "result": "Hello, " + req.Caller})
		case "dotProduct":
			_ = json.NewEncoder(w).Encode(map[string]any{"status": "success", "result": strings.Join(req.Params, "*")})
		default:
			_ = json.NewEncoder(w).Encode(map[string]any{"status": "error", "error": "method reverted"})
		}
	})
	mux.HandleFunc("/call-contract", func(w http.ResponseWriter, r *http.Request) {
		n.lock.Lock()
		defer n.lock.Unlock()
		n.submissions++
		_, _ = w.Write([]byte(`{"tx_hash": "0xfeed"}`))
	})
	return mux
}

// runFixture is a project directory holding an interface description, a wallet and a configuration pointing at a
// fake node.
type runFixture struct {
	dir           string
	node          *fakeOctraNode
	projectConfig *config.ProjectConfig
	wallet        *wallet.Wallet
}

func newRunFixture(t *testing.T) *runFixture {
	t.Helper()
	node := &fakeOctraNode{}
	server := httptest.NewServer(node.handler())
	t.Cleanup(server.Close)

	dir := testutils.CopyToTestDirectory(t, filepath.Join("testdata", "exec_interface.json"))

	generated, err := generateOctraWallet(server.URL)
	require.NoError(t, err)
	require.NoError(t, generated.WriteToFile(filepath.Join(dir, wallet.DefaultWalletFile)))

	seed := uint64(7)
	projectConfig := config.GetDefaultProjectConfig()
	projectConfig.Execution.Seed = &seed
	projectConfig.Execution.RetryDelay = 0
	projectConfig.Execution.CallInterval = 0
	projectConfig.Report.TextPath = "report.txt"
	projectConfig.Report.JSONPath = "report.json"
	projectConfig.Report.CBORPath = "report.cbor"
	projectConfig.Report.HistoryPath = "history/runs.db"
	projectConfig.Logging.EnableConsoleLogging = false

	return &runFixture{dir: dir, node: node, projectConfig: projectConfig, wallet: generated}
}

// writeConfig writes the fixture's configuration to the default config file and returns its path.
func (f *runFixture) writeConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(f.dir, config.DefaultProjectConfigFilename)
	require.NoError(t, f.projectConfig.WriteToFile(path))
	return path
}

// newTestRunCommand creates a run command with its flags parsed from args.
func newTestRunCommand(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "run"}
	require.NoError(t, addRunFlags(cmd))
	require.NoError(t, cmd.ParseFlags(args))
	cmd.SetContext(context.Background())
	return cmd
}

// TestUpdateProjectConfigWithRunFlags verifies flags override only the values they name.
func TestUpdateProjectConfigWithRunFlags(t *testing.T) {
	cmd := newTestRunCommand(t,
		"--schema", "other.yaml",
		"--wallet", "keys.json",
		"--backend", "evm",
		"--seed", "42",
		"--write-attempts", "5",
		"--call-interval", "0",
		"--report", "out.txt",
		"--json-report", "out.json",
		"--cbor-report", "out.cbor",
		"--history", "runs.db",
		"--strict",
		"--fail-on-error",
		"--no-color",
	)
	projectConfig := config.GetDefaultProjectConfig()
	require.NoError(t, updateProjectConfigWithRunFlags(cmd, projectConfig))

	assert.Equal(t, "other.yaml", projectConfig.Execution.SchemaPath)
	assert.Equal(t, "keys.json", projectConfig.Execution.WalletPath)
	assert.Equal(t, config.BackendEVM, projectConfig.Execution.Backend)
	require.NotNil(t, projectConfig.Execution.Seed)
	assert.EqualValues(t, 42, *projectConfig.Execution.Seed)
	assert.Equal(t, 5, projectConfig.Execution.WriteAttempts)
	assert.Equal(t, 0, projectConfig.Execution.CallInterval)
	assert.Equal(t, "out.txt", projectConfig.Report.TextPath)
	assert.Equal(t, "out.json", projectConfig.Report.JSONPath)
	assert.Equal(t, "out.cbor", projectConfig.Report.CBORPath)
	assert.Equal(t, "runs.db", projectConfig.Report.HistoryPath)
	assert.True(t, projectConfig.Execution.StrictSchema)
	assert.True(t, projectConfig.Execution.FailOnError)
	assert.True(t, projectConfig.Logging.NoColor)
}

// TestUpdateProjectConfigWithoutRunFlags verifies unset flags leave the configuration untouched.
func TestUpdateProjectConfigWithoutRunFlags(t *testing.T) {
	cmd := newTestRunCommand(t)
	projectConfig := config.GetDefaultProjectConfig()
	require.NoError(t, updateProjectConfigWithRunFlags(cmd, projectConfig))
	assert.Equal(t, config.GetDefaultProjectConfig(), projectConfig)
}

// TestLoadProjectConfig verifies the three ways a configuration is resolved.
func TestLoadProjectConfig(t *testing.T) {
	fixture := newRunFixture(t)
	fixture.projectConfig.Execution.WriteAttempts = 9
	configPath := fixture.writeConfig(t)

	// An explicit config file is read
	projectConfig, baseDirectory, err := loadProjectConfig(newTestRunCommand(t, "--config", configPath))
	require.NoError(t, err)
	assert.Equal(t, 9, projectConfig.Execution.WriteAttempts)
	assert.Equal(t, fixture.dir, baseDirectory)

	// An explicit config file that does not exist is an error
	_, _, err = loadProjectConfig(newTestRunCommand(t, "--config", filepath.Join(fixture.dir, "missing.json")))
	assert.Error(t, err)

	// The default config file in the working directory is read
	testutils.ExecuteInDirectory(t, fixture.dir, func() {
		projectConfig, _, err := loadProjectConfig(newTestRunCommand(t))
		require.NoError(t, err)
		assert.Equal(t, 9, projectConfig.Execution.WriteAttempts)
	})

	// Without a config file the defaults are used
	testutils.ExecuteInDirectory(t, t.TempDir(), func() {
		projectConfig, _, err := loadProjectConfig(newTestRunCommand(t))
		require.NoError(t, err)
		assert.Equal(t, config.GetDefaultProjectConfig(), projectConfig)
	})
}

// TestExecuteRun verifies a run against an Octra node records every method and writes every report output.
func TestExecuteRun(t *testing.T) {
	fixture := newRunFixture(t)

	report, err := executeRun(context.Background(), fixture.projectConfig, fixture.dir)
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 4)

	assert.Equal(t, "octTestContract", report.Contract)
	assert.Equal(t, fixture.wallet.Address, report.WalletAddress)
	assert.Equal(t, "2.5", report.StartingBalance.String())
	assert.Equal(t, 3, report.Succeeded())
	assert.Equal(t, 1, report.Failed())

	assert.Equal(t, "Hello, "+fixture.wallet.Address, report.Outcomes[0].Payload)
	assert.True(t, strings.HasPrefix(report.Outcomes[1].Payload, "5*"))
	assert.Equal(t, "0xfeed", report.Outcomes[2].Payload)
	assert.Equal(t, execution.OutcomeStatusFailed, report.Outcomes[3].Status)
	assert.Contains(t, report.Outcomes[3].Error, "method reverted")
	assert.Equal(t, 1, fixture.node.submissions)

	// Text report
	text, err := os.ReadFile(filepath.Join(fixture.dir, "report.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(text), "Greet Caller: Hello, "+fixture.wallet.Address+"\n")
	assert.Contains(t, string(text), "Claim Token: TX Hash 0xfeed\n")
	assert.Contains(t, string(text), "Broken: Error - ")

	// JSON report
	data, err := os.ReadFile(filepath.Join(fixture.dir, "report.json"))
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, report.RunID.String(), decoded["runId"])

	// CBOR report
	data, err = os.ReadFile(filepath.Join(fixture.dir, "report.cbor"))
	require.NoError(t, err)
	cborReport, err := reporting.UnmarshalCBOR(data)
	require.NoError(t, err)
	assert.Equal(t, report.RunID, cborReport.RunID)

	// History
	store, err := reporting.OpenHistoryStore(filepath.Join(fixture.dir, "history", "runs.db"))
	require.NoError(t, err)
	defer store.Close()
	stored, err := store.Get(report.RunID)
	require.NoError(t, err)
	assert.Len(t, stored.Outcomes, 4)
}

// TestExecuteRunErrors verifies missing inputs and unsupported backends stop a run before any method is invoked.
func TestExecuteRunErrors(t *testing.T) {
	fixture := newRunFixture(t)
	fixture.projectConfig.Execution.SchemaPath = "missing.json"
	_, err := executeRun(context.Background(), fixture.projectConfig, fixture.dir)
	assert.Error(t, err)

	fixture = newRunFixture(t)
	fixture.projectConfig.Execution.WalletPath = "missing.json"
	_, err = executeRun(context.Background(), fixture.projectConfig, fixture.dir)
	assert.Error(t, err)

	fixture = newRunFixture(t)
	fixture.projectConfig.Execution.Backend = "solana"
	_, err = executeRun(context.Background(), fixture.projectConfig, fixture.dir)
	assert.ErrorContains(t, err, "unsupported backend")
	assert.Equal(t, 0, fixture.node.submissions)

	// A malformed interface description is a schema error and nothing is reported
	fixture = newRunFixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(fixture.dir, "exec_interface.json"), []byte(`{"methods": [`), 0644))
	report, err := executeRun(context.Background(), fixture.projectConfig, fixture.dir)
	var schemaErr *schema.SchemaError
	assert.ErrorAs(t, err, &schemaErr)
	assert.Nil(t, report)
	assert.Equal(t, 0, fixture.node.submissions)
	exists, err := utils.FileExists(filepath.Join(fixture.dir, "report.txt"))
	require.NoError(t, err)
	assert.False(t, exists)
}

// TestExecuteRunUnwritableReport verifies an unusable report destination stops the run before any transaction is
// submitted.
func TestExecuteRunUnwritableReport(t *testing.T) {
	fixture := newRunFixture(t)
	// The parent of the text report is a regular file
	fixture.projectConfig.Report.TextPath = filepath.Join("exec_interface.json", "report.txt")

	report, err := executeRun(context.Background(), fixture.projectConfig, fixture.dir)
	assert.Error(t, err)
	assert.Nil(t, report)
	assert.Equal(t, 0, fixture.node.submissions)

	exists, err := utils.FileExists(filepath.Join(fixture.dir, "report.json"))
	require.NoError(t, err)
	assert.False(t, exists)
}

// TestNewChainClientEVMUsesDerivedAddress verifies an EVM run acts for the address derived from the wallet key when
// the configured address does not match it.
func TestNewChainClientEVMUsesDerivedAddress(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if req.Method != "eth_chainId" {
			_ = json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": req.ID, "error": map[string]any{"code": -32601, "message": "method not found"}})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": "0x539"})
	}))
	defer server.Close()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	derived := crypto.PubkeyToAddress(key.PublicKey).Hex()

	projectConfig := config.GetDefaultProjectConfig()
	projectConfig.Execution.Backend = config.BackendEVM
	runWallet := &wallet.Wallet{
		PrivateKey: hex.EncodeToString(crypto.FromECDSA(key)),
		Address:    "0x0000000000000000000000000000000000000001",
		RPC:        server.URL,
	}

	client, account, err := newChainClient(context.Background(), projectConfig, runWallet)
	require.NoError(t, err)
	assert.NotNil(t, client)
	assert.Equal(t, derived, account)

	runWallet.Address = strings.ToLower(derived)
	_, account, err = newChainClient(context.Background(), projectConfig, runWallet)
	require.NoError(t, err)
	assert.Equal(t, derived, account)
}

// TestCmdRunRunExitCodes verifies method failures only change the exit code when the run fails on errors.
func TestCmdRunRunExitCodes(t *testing.T) {
	fixture := newRunFixture(t)
	configPath := fixture.writeConfig(t)

	err := cmdRunRun(newTestRunCommand(t, "--config", configPath), nil)
	assert.NoError(t, err)

	err = cmdRunRun(newTestRunCommand(t, "--config", configPath, "--fail-on-error"), nil)
	_, exitCode := exitcodes.GetInnerErrorAndExitCode(err)
	assert.Equal(t, exitcodes.ExitCodeMethodFailed, exitCode)

	err = cmdRunRun(newTestRunCommand(t, "--config", configPath, "--schema", "missing.json"), nil)
	_, exitCode = exitcodes.GetInnerErrorAndExitCode(err)
	assert.Equal(t, exitcodes.ExitCodeHandledError, exitCode)

	// Both completed runs were appended to the same text report
	text, err := os.ReadFile(filepath.Join(fixture.dir, "report.txt"))
	require.NoError(t, err)
	assert.Equal(t, 2, bytes.Count(text, []byte("# run ")))
}

// TestOpenSinks verifies a sink is created for every configured output only.
func TestOpenSinks(t *testing.T) {
	sinks, closeSinks, err := openSinks(config.ReportConfig{}, t.TempDir())
	require.NoError(t, err)
	closeSinks()
	assert.Empty(t, sinks)

	sinks, closeSinks, err = openSinks(config.ReportConfig{TextPath: "a.txt", JSONPath: "a.json", CBORPath: "a.cbor", HistoryPath: "h.db"}, t.TempDir())
	require.NoError(t, err)
	defer closeSinks()
	assert.Len(t, sinks, 4)
}

// TestResolvePath verifies relative paths are resolved against the base directory.
func TestResolvePath(t *testing.T) {
	assert.Equal(t, "", resolvePath("/base", ""))
	assert.Equal(t, filepath.Join("/base", "a.json"), resolvePath("/base", "a.json"))
	abs := filepath.Join(t.TempDir(), "b.json")
	assert.Equal(t, abs, resolvePath("/base", abs))
}
