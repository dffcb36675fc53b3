package tezosNode_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Layr-Labs/tezos-client-go/pkg/clients/tezosNode"
	"github.com/Layr-Labs/tezos-client-go/pkg/crypto"
	"github.com/Layr-Labs/tezos-client-go/pkg/operation"
	"github.com/Layr-Labs/tezos-client-go/pkg/operationSigner"
	"github.com/Layr-Labs/tezos-client-go/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newClient(t *testing.T, url string) *tezosNode.Client {
	t.Helper()
	client, err := tezosNode.NewClient(&tezosNode.ClientConfig{
		BaseURL:           url,
		Timeout:           5 * time.Second,
		RequestsPerSecond: -1,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	return client
}

func Test_NewClientValidation(t *testing.T) {
	_, err := tezosNode.NewClient(nil, nil)
	assert.Error(t, err)
	_, err = tezosNode.NewClient(&tezosNode.ClientConfig{}, nil)
	assert.Error(t, err)
	_, err = tezosNode.NewClient(&tezosNode.ClientConfig{BaseURL: "not a url"}, nil)
	assert.Error(t, err)
	c, err := tezosNode.NewClient(&tezosNode.ClientConfig{BaseURL: "http://localhost:8732/"}, nil)
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func Test_ClientNodeState(t *testing.T) {
	node := testutil.NewFakeNode(t)
	client := newClient(t, node.URL())
	ctx := context.Background()

	kp := testutil.CreateTestKeyPair(t, crypto.CurveEd25519)
	node.SetCounter(kp.Address, 41)
	node.SetBalance(kp.Address, 5_000_000)

	version, err := client.GetVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 20, version.Version.Major)
	assert.Equal(t, "TEZOS_MAINNET", version.NetworkVersion.ChainName)

	constants, err := client.GetConstants(ctx)
	require.NoError(t, err)
	assert.Equal(t, tezosNode.Uint(1040000), constants.HardGasLimitPerOperation)

	protocols, err := client.GetProtocols(ctx)
	require.NoError(t, err)
	assert.Equal(t, node.Protocol(), protocols.NextProtocol)

	head, err := client.GetHeadHash(ctx)
	require.NoError(t, err)
	assert.Equal(t, node.Head(), head)

	chainID, err := client.GetChainID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "NetXdQprcVkpaWU", chainID.String())

	counter, err := client.GetCounter(ctx, kp.Address)
	require.NoError(t, err)
	assert.Equal(t, uint64(41), counter)

	balance, err := client.GetBalance(ctx, kp.Address)
	require.NoError(t, err)
	assert.Equal(t, uint64(5_000_000), balance)

	key, err := client.GetManagerKey(ctx, kp.Address)
	require.NoError(t, err)
	assert.Nil(t, key)

	node.Reveal(kp.Public)
	key, err = client.GetManagerKey(ctx, kp.Address)
	require.NoError(t, err)
	require.NotNil(t, key)
	assert.True(t, kp.Public.Equal(*key))
}

func transferGroup(t *testing.T, node *testutil.FakeNode, kp *crypto.KeyPair, counter uint64) *operation.OperationGroup {
	t.Helper()
	tx, err := operation.NewTransactionBuilder().
		Source(kp.Address).
		DestinationString(testutil.DestinationAddress).
		AmountMutez(1_500_000).
		Fee(1500).
		Counter(counter).
		GasLimit(1527).
		StorageLimit(257).
		Build()
	require.NoError(t, err)
	group, err := operation.NewOperationGroup(node.Head(), tx)
	require.NoError(t, err)
	return group
}

func sign(t *testing.T, kp *crypto.KeyPair, forged []byte) crypto.Signature {
	t.Helper()
	digest := operationSigner.OperationDigest(forged)
	sig, err := kp.Private.Sign(digest[:])
	require.NoError(t, err)
	return sig
}

func Test_ClientForgePreapplyInject(t *testing.T) {
	node := testutil.NewFakeNode(t)
	client := newClient(t, node.URL())
	ctx := context.Background()

	kp := testutil.CreateTestKeyPair(t, crypto.CurveEd25519)
	node.Reveal(kp.Public)
	node.SetCounter(kp.Address, 41)
	group := transferGroup(t, node, kp, 42)

	forged, err := client.ForgeOperations(ctx, group)
	require.NoError(t, err)
	local, err := operation.Forge(group)
	require.NoError(t, err)
	assert.Equal(t, local, forged)

	sig := sign(t, kp, forged)
	results, err := client.PreapplyOperations(ctx, node.Protocol(), group, sig)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Applied())

	signed, err := operationSigner.NewSignedOperationResult(forged, sig)
	require.NoError(t, err)
	hash, err := client.InjectOperation(ctx, signed.OperationWithSignature())
	require.NoError(t, err)
	assert.Equal(t, signed.OperationHash(), hash)
	assert.Equal(t, uint64(42), node.Counter(kp.Address))

	status, err := client.GetPendingOperationStatus(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, tezosNode.StatusFinished, status)
}

func Test_ClientPreapplyStaleCounter(t *testing.T) {
	node := testutil.NewFakeNode(t)
	client := newClient(t, node.URL())
	ctx := context.Background()

	kp := testutil.CreateTestKeyPair(t, crypto.CurveSecp256k1)
	node.Reveal(kp.Public)
	node.SetCounter(kp.Address, 42)
	group := transferGroup(t, node, kp, 42)

	forged, err := client.ForgeOperations(ctx, group)
	require.NoError(t, err)
	_, err = client.PreapplyOperations(ctx, node.Protocol(), group, sign(t, kp, forged))
	require.Error(t, err)

	var transportErr *tezosNode.TransportError
	require.True(t, errors.As(err, &transportErr))
	assert.Equal(t, tezosNode.EndpointPreapply, transportErr.Endpoint)
	assert.Equal(t, http.StatusInternalServerError, transportErr.StatusCode)
	require.Len(t, transportErr.NodeErrors(), 1)
	assert.Equal(t, testutil.NodeErrorCounterInThePast, transportErr.NodeErrors()[0].ID)
}

func Test_ClientPendingStatuses(t *testing.T) {
	node := testutil.NewFakeNode(t)
	client := newClient(t, node.URL())
	ctx := context.Background()

	kp := testutil.CreateTestKeyPair(t, crypto.CurveP256)
	node.Reveal(kp.Public)
	group := transferGroup(t, node, kp, 1)
	forged, err := operation.Forge(group)
	require.NoError(t, err)
	signed, err := operationSigner.NewSignedOperationResult(forged, sign(t, kp, forged))
	require.NoError(t, err)
	hash, err := client.InjectOperation(ctx, signed.OperationWithSignature())
	require.NoError(t, err)

	node.ScriptStatuses(tezosNode.StatusApplied, tezosNode.StatusRefused)
	status, err := client.GetPendingOperationStatus(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, tezosNode.StatusApplied, status)
	status, err = client.GetPendingOperationStatus(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, tezosNode.StatusRefused, status)
}

func Test_ClientTransportErrors(t *testing.T) {
	node := testutil.NewFakeNode(t)
	client := newClient(t, node.URL())
	ctx := context.Background()

	node.FailNext(tezosNode.EndpointHeadHash, http.StatusServiceUnavailable, "node is bootstrapping")
	_, err := client.GetHeadHash(ctx)
	var transportErr *tezosNode.TransportError
	require.True(t, errors.As(err, &transportErr))
	assert.Equal(t, tezosNode.EndpointHeadHash, transportErr.Endpoint)
	assert.Equal(t, http.MethodGet, transportErr.Method)
	assert.Equal(t, http.StatusServiceUnavailable, transportErr.StatusCode)
	assert.Equal(t, "node is bootstrapping", transportErr.Body)
	assert.Equal(t, 1, node.Calls(tezosNode.EndpointHeadHash))

	// the failure is consumed
	_, err = client.GetHeadHash(ctx)
	require.NoError(t, err)

	dead := httptest.NewServer(http.NotFoundHandler())
	dead.Close()
	_, err = newClient(t, dead.URL).GetChainID(ctx)
	require.True(t, errors.As(err, &transportErr))
	assert.False(t, transportErr.Responded())
	assert.Equal(t, tezosNode.EndpointChainID, transportErr.Endpoint)
}

func Test_ClientInvalidResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`"not a block hash"`))
	}))
	t.Cleanup(srv.Close)

	_, err := newClient(t, srv.URL).GetHeadHash(context.Background())
	var transportErr *tezosNode.TransportError
	require.True(t, errors.As(err, &transportErr))
	assert.True(t, transportErr.Responded())
	assert.Error(t, transportErr.Unwrap())
}

func Test_ClientHonoursContext(t *testing.T) {
	node := testutil.NewFakeNode(t)
	client := newClient(t, node.URL())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.GetHeadHash(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}
