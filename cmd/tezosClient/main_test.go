package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/Layr-Labs/tezos-client-go/pkg/clients/tezosNode"
	"github.com/Layr-Labs/tezos-client-go/pkg/crypto"
	"github.com/Layr-Labs/tezos-client-go/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

type cliHarness struct {
	node    *testutil.FakeNode
	dataDir string
}

func newCLIHarness(t *testing.T) *cliHarness {
	t.Helper()
	node := testutil.NewFakeNode(t)
	pk, err := crypto.ParsePublicKey(testutil.SourcePublicKey)
	require.NoError(t, err)
	node.Reveal(pk)
	source := testutil.MustAddress(t, testutil.SourceAddress)
	node.SetCounter(source, 10)
	node.SetBalance(source, 100_000_000)
	return &cliHarness{node: node, dataDir: t.TempDir()}
}

// run executes the client against the fake node and a badger store that
// outlives the invocation.
func (h *cliHarness) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	app := newApp()
	var stdout, stderr bytes.Buffer
	app.Writer = &stdout
	app.ErrWriter = &stderr
	app.ExitErrHandler = func(*cli.Context, error) {}

	base := []string{
		"tezos-client",
		"--node-url", h.node.URL(),
		"--persistence", "badger",
		"--data-path", h.dataDir,
		"--keystore-password", "correct horse",
		"--light-kdf",
		"--poll-interval", "1ms",
		"--requests-per-second", "0",
	}
	err := app.Run(append(base, args...))
	t.Logf("stderr: %s", stderr.String())
	return strings.TrimSpace(stdout.String()), err
}

func Test_CLITransferFlow(t *testing.T) {
	h := newCLIHarness(t)

	out, err := h.run(t, "keys", "import", "--secret", testutil.SourceSecretKey, "--label", "walkthrough")
	require.NoError(t, err)
	assert.Equal(t, testutil.SourceAddress, out)

	out, err = h.run(t, "keys", "list")
	require.NoError(t, err)
	assert.Contains(t, out, testutil.SourceAddress)
	assert.Contains(t, out, "walkthrough")

	h.node.ScriptStatuses(tezosNode.StatusApplied, tezosNode.StatusFinished)
	out, err = h.run(t, "transfer",
		"--from", testutil.SourceAddress,
		"--to", testutil.DestinationAddress,
		"--amount", "1.5",
	)
	require.NoError(t, err)
	require.Len(t, h.node.Injected, 1)
	assert.Equal(t, h.node.Injected[0], out)
	assert.Equal(t, uint64(11), h.node.Counter(testutil.MustAddress(t, testutil.SourceAddress)))

	out, err = h.run(t, "balance", "--address", testutil.DestinationAddress)
	require.NoError(t, err)
	assert.Equal(t, "1.5", out)

	out, err = h.run(t, "submissions")
	require.NoError(t, err)
	assert.Contains(t, out, "confirmed")
	assert.Contains(t, out, h.node.Injected[0])
}

func Test_CLITimeoutThenStatus(t *testing.T) {
	h := newCLIHarness(t)
	_, err := h.run(t, "keys", "import", "--secret", testutil.SourceSecretKey)
	require.NoError(t, err)

	h.node.ScriptStatuses(tezosNode.StatusApplied)
	out, err := h.run(t, "--max-poll-attempts", "2", "transfer",
		"--from", testutil.SourceAddress,
		"--to", testutil.DestinationAddress,
		"--amount", "0.1",
	)
	require.Error(t, err)
	var exitErr cli.ExitCoder
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, exitTimedOut, exitErr.ExitCode())
	assert.Contains(t, err.Error(), "status --id")
	hash := out

	h.node.ScriptStatuses(tezosNode.StatusFinished)
	out, err = h.run(t, "status", "--hash", hash)
	require.NoError(t, err)
	assert.Equal(t, hash, out)

	const prefix = "not confirmed yet, run: status --id "
	require.True(t, strings.HasPrefix(exitErr.Error(), prefix), exitErr.Error())
	id := strings.TrimPrefix(exitErr.Error(), prefix)
	out, err = h.run(t, "status", "--id", id)
	require.NoError(t, err)
	assert.Equal(t, hash, out)

	_, err = h.run(t, "status")
	assert.Error(t, err)
}

func Test_CLIReadOnlyCommandsNeedNoPassword(t *testing.T) {
	node := testutil.NewFakeNode(t)
	app := newApp()
	var stdout bytes.Buffer
	app.Writer = &stdout
	app.ErrWriter = &bytes.Buffer{}

	err := app.Run([]string{"tezos-client", "--node-url", node.URL(), "--chain", "mainnet", "node-info"})
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "NetXdQprcVkpaWU")
	assert.Contains(t, stdout.String(), node.Head().String())
	assert.Contains(t, stdout.String(), "100 mutez + 1000 nanotez/byte + 100 nanotez/gas")
}

func Test_CLIRejectsBadConfiguration(t *testing.T) {
	h := newCLIHarness(t)

	_, err := h.run(t, "--chain", "moonnet", "node-info")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chain")

	_, err = h.run(t, "--signer", "kms", "transfer", "--to", testutil.DestinationAddress, "--amount", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kmsKeyId")
}

func Test_CLIChainMismatch(t *testing.T) {
	h := newCLIHarness(t)
	_, err := h.run(t, "keys", "import", "--secret", testutil.SourceSecretKey)
	require.NoError(t, err)

	_, err = h.run(t, "--chain", "ghostnet", "transfer",
		"--from", testutil.SourceAddress,
		"--to", testutil.DestinationAddress,
		"--amount", "1",
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NetXnHfVqm9iesp")
	assert.Empty(t, h.node.Injected)
}

func Test_CLIKeysGenerateAndDelete(t *testing.T) {
	h := newCLIHarness(t)

	addr, err := h.run(t, "keys", "generate", "--curve", "secp256k1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(addr, "tz2"), addr)

	_, err = h.run(t, "keys", "delete", "--address", addr)
	require.NoError(t, err)

	out, err := h.run(t, "keys", "list")
	require.NoError(t, err)
	assert.NotContains(t, out, addr)

	_, err = h.run(t, "keys", "generate", "--curve", "bls")
	assert.Error(t, err)

	_, err = h.run(t, "keys", "generate", "--backend", "hsm")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown key backend")
}
