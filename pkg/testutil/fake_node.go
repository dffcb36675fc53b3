package testutil

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/Layr-Labs/tezos-client-go/pkg/clients/tezosNode"
	"github.com/Layr-Labs/tezos-client-go/pkg/crypto"
	"github.com/Layr-Labs/tezos-client-go/pkg/operation"
	"github.com/Layr-Labs/tezos-client-go/pkg/operationSigner"
)

const (
	NodeErrorCounterInThePast = "proto.contract.counter_in_the_past"
	NodeErrorCounterInFuture  = "proto.contract.counter_in_the_future"
	NodeErrorInvalidSignature = "proto.operation.invalid_signature"
	NodeErrorUnrevealedKey    = "proto.contract.unrevealed_key"
)

type scriptedFailure struct {
	status int
	body   string
}

// FakeNode serves the node RPC subset used by the client. It forges
// locally, checks signatures and counters at preapply and returns a
// scripted sequence of mempool statuses for injected operations.
type FakeNode struct {
	mu sync.Mutex

	Server *httptest.Server

	chainID   crypto.ChainID
	protocol  crypto.ProtocolHash
	head      crypto.BlockHash
	constants tezosNode.Constants

	counters    map[crypto.Address]uint64
	managerKeys map[crypto.Address]crypto.PublicKey
	balances    map[crypto.Address]uint64

	// forged hex -> preapplied group
	preapplied map[string]*operation.OperationGroup

	statusScript []tezosNode.PendingStatus
	failures     map[string][]scriptedFailure
	tamperForge  bool
	rejectWith   string

	calls    map[string]int
	Injected []string
}

// NewFakeNode starts a fake node that is closed with the test.
func NewFakeNode(t *testing.T) *FakeNode {
	t.Helper()
	chainID, err := crypto.ParseChainID("NetXdQprcVkpaWU")
	if err != nil {
		t.Fatalf("Failed to parse chain id: %v", err)
	}
	n := &FakeNode{
		chainID:  chainID,
		protocol: CreateTestProtocolHash(1),
		head:     CreateTestBlockHash(1),
		constants: tezosNode.Constants{
			HardGasLimitPerOperation:     1040000,
			HardGasLimitPerBlock:         2600000,
			HardStorageLimitPerOperation: 60000,
			CostPerByte:                  250,
			OriginationSize:              257,
		},
		counters:    make(map[crypto.Address]uint64),
		managerKeys: make(map[crypto.Address]crypto.PublicKey),
		balances:    make(map[crypto.Address]uint64),
		preapplied:  make(map[string]*operation.OperationGroup),
		failures:    make(map[string][]scriptedFailure),
		calls:       make(map[string]int),
	}

	mux := http.NewServeMux()
	n.route(mux, "POST", tezosNode.EndpointVersion, n.handleVersion)
	n.route(mux, "GET", tezosNode.EndpointConstants, n.handleConstants)
	n.route(mux, "GET", tezosNode.EndpointProtocols, n.handleProtocols)
	n.route(mux, "GET", tezosNode.EndpointHeadHash, n.handleHeadHash)
	n.route(mux, "GET", tezosNode.EndpointChainID, n.handleChainID)
	n.route(mux, "GET", tezosNode.EndpointCounter, n.handleCounter)
	n.route(mux, "GET", tezosNode.EndpointManagerKey, n.handleManagerKey)
	n.route(mux, "GET", tezosNode.EndpointBalance, n.handleBalance)
	n.route(mux, "POST", tezosNode.EndpointForge, n.handleForge)
	n.route(mux, "POST", tezosNode.EndpointPreapply, n.handlePreapply)
	n.route(mux, "POST", tezosNode.EndpointInject, n.handleInject)
	n.route(mux, "GET", tezosNode.EndpointPendingOperations, n.handlePending)

	n.Server = httptest.NewServer(mux)
	t.Cleanup(n.Server.Close)
	return n
}

func (n *FakeNode) URL() string { return n.Server.URL }

func (n *FakeNode) route(mux *http.ServeMux, method, endpoint string, h func(w http.ResponseWriter, r *http.Request)) {
	mux.HandleFunc(method+" "+endpoint, func(w http.ResponseWriter, r *http.Request) {
		n.mu.Lock()
		defer n.mu.Unlock()
		n.calls[endpoint]++
		if queued := n.failures[endpoint]; len(queued) > 0 {
			f := queued[0]
			n.failures[endpoint] = queued[1:]
			http.Error(w, f.body, f.status)
			return
		}
		h(w, r)
	})
}

// Calls returns how many requests hit endpoint (a tezosNode.Endpoint* template).
func (n *FakeNode) Calls(endpoint string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls[endpoint]
}

// FailNext makes the next request to endpoint answer with status and body.
func (n *FakeNode) FailNext(endpoint string, status int, body string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failures[endpoint] = append(n.failures[endpoint], scriptedFailure{status: status, body: body})
}

func (n *FakeNode) SetChainID(id crypto.ChainID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.chainID = id
}

func (n *FakeNode) SetHead(hash crypto.BlockHash) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.head = hash
}

func (n *FakeNode) Head() crypto.BlockHash {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.head
}

func (n *FakeNode) Protocol() crypto.ProtocolHash {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.protocol
}

func (n *FakeNode) SetConstants(c tezosNode.Constants) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.constants = c
}

func (n *FakeNode) SetCounter(addr crypto.Address, counter uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.counters[addr] = counter
}

func (n *FakeNode) Counter(addr crypto.Address) uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.counters[addr]
}

func (n *FakeNode) SetBalance(addr crypto.Address, mutez uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.balances[addr] = mutez
}

// Reveal records pk as the manager key of its address.
func (n *FakeNode) Reveal(pk crypto.PublicKey) {
	addr, err := pk.Hash()
	if err != nil {
		panic(err)
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.managerKeys[addr] = pk
}

func (n *FakeNode) IsRevealed(addr crypto.Address) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, ok := n.managerKeys[addr]
	return ok
}

// ScriptStatuses sets the statuses returned by successive mempool polls.
// The last entry repeats once the script is exhausted; an empty script
// reports every injected operation as finished.
func (n *FakeNode) ScriptStatuses(statuses ...tezosNode.PendingStatus) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.statusScript = append([]tezosNode.PendingStatus(nil), statuses...)
}

// TamperForge flips a byte in every forge response.
func (n *FakeNode) TamperForge(on bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.tamperForge = on
}

// RejectPreapply makes preapply answer 200 with a failed result carrying id.
// An empty id restores normal validation.
func (n *FakeNode) RejectPreapply(id string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.rejectWith = id
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeNodeErrors(w http.ResponseWriter, status int, ids ...string) {
	errs := make([]tezosNode.NodeError, 0, len(ids))
	for _, id := range ids {
		errs = append(errs, tezosNode.NodeError{Kind: "temporary", ID: id})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errs)
}

func pathAddress(w http.ResponseWriter, r *http.Request) (crypto.Address, bool) {
	addr, err := crypto.ParseAddress(r.PathValue("address"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return crypto.Address{}, false
	}
	return addr, true
}

func (n *FakeNode) handleVersion(w http.ResponseWriter, _ *http.Request) {
	var v tezosNode.VersionInfo
	v.Version.Major = 20
	v.Version.Minor = 1
	v.NetworkVersion.ChainName = "TEZOS_MAINNET"
	v.NetworkVersion.DistributedDbVersion = 2
	v.NetworkVersion.P2pVersion = 1
	v.CommitInfo.CommitHash = "fake"
	writeJSON(w, v)
}

func (n *FakeNode) handleConstants(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, n.constants)
}

func (n *FakeNode) handleProtocols(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, tezosNode.ProtocolInfo{Protocol: n.protocol, NextProtocol: n.protocol})
}

func (n *FakeNode) handleHeadHash(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, n.head)
}

func (n *FakeNode) handleChainID(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, n.chainID)
}

func (n *FakeNode) handleCounter(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r)
	if !ok {
		return
	}
	writeJSON(w, tezosNode.Uint(n.counters[addr]))
}

func (n *FakeNode) handleManagerKey(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r)
	if !ok {
		return
	}
	pk, revealed := n.managerKeys[addr]
	if !revealed {
		writeJSON(w, nil)
		return
	}
	writeJSON(w, pk)
}

func (n *FakeNode) handleBalance(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r)
	if !ok {
		return
	}
	writeJSON(w, tezosNode.Uint(n.balances[addr]))
}

func (n *FakeNode) handleForge(w http.ResponseWriter, r *http.Request) {
	var group operation.OperationGroup
	if err := json.NewDecoder(r.Body).Decode(&group); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if group.Branch.String() != r.PathValue("branch") {
		http.Error(w, "branch mismatch", http.StatusBadRequest)
		return
	}
	forged, err := operation.Forge(&group)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if n.tamperForge {
		forged[len(forged)-1] ^= 0xff
	}
	writeJSON(w, hex.EncodeToString(forged))
}

// checkGroup returns the node error ids preapply would report for group.
func (n *FakeNode) checkGroup(group *operation.OperationGroup, sig crypto.Signature, forged []byte) []string {
	source := group.Source()
	pk, revealed := n.managerKeys[source]
	expected := n.counters[source] + 1
	for _, op := range group.Contents {
		if reveal, ok := op.(*operation.Reveal); ok && !revealed {
			pk, revealed = reveal.PublicKey, true
		}
		switch c := op.GetCounter(); {
		case c < expected:
			return []string{NodeErrorCounterInThePast}
		case c > expected:
			return []string{NodeErrorCounterInFuture}
		}
		expected++
	}
	if !revealed {
		return []string{NodeErrorUnrevealedKey}
	}
	digest := operationSigner.OperationDigest(forged)
	if !pk.Verify(digest[:], sig) {
		return []string{NodeErrorInvalidSignature}
	}
	return nil
}

func (n *FakeNode) handlePreapply(w http.ResponseWriter, r *http.Request) {
	var reqs []tezosNode.PreapplyRequest
	if err := json.NewDecoder(r.Body).Decode(&reqs); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	results := make([]tezosNode.PreapplyResult, 0, len(reqs))
	for _, req := range reqs {
		group := &operation.OperationGroup{Branch: req.Branch, Contents: req.Contents}
		if err := group.Validate(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		forged, err := operation.Forge(group)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if ids := n.checkGroup(group, req.Signature, forged); len(ids) > 0 {
			writeNodeErrors(w, http.StatusInternalServerError, ids...)
			return
		}

		status := "applied"
		var errs []tezosNode.NodeError
		if n.rejectWith != "" {
			status = "failed"
			errs = []tezosNode.NodeError{{Kind: "temporary", ID: n.rejectWith}}
		}
		result := tezosNode.PreapplyResult{Signature: req.Signature.String()}
		for _, op := range group.Contents {
			c := tezosNode.PreapplyContent{Kind: op.KindString()}
			c.Metadata.OperationResult.Status = status
			c.Metadata.OperationResult.Errors = errs
			milligas := tezosNode.Uint(op.GetGasLimit() * 1000 / 2)
			c.Metadata.OperationResult.ConsumedMilligas = &milligas
			result.Contents = append(result.Contents, c)
		}
		results = append(results, result)
		if status == "applied" {
			n.preapplied[hex.EncodeToString(forged)] = group
		}
	}
	writeJSON(w, results)
}

func (n *FakeNode) handleInject(w http.ResponseWriter, r *http.Request) {
	var signedHex string
	if err := json.NewDecoder(r.Body).Decode(&signedHex); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	signed, err := hex.DecodeString(signedHex)
	if err != nil || len(signed) <= crypto.SignatureLength+operation.BranchLength {
		http.Error(w, "invalid signed operation", http.StatusBadRequest)
		return
	}
	forgedHex := hex.EncodeToString(signed[:len(signed)-crypto.SignatureLength])
	if group, ok := n.preapplied[forgedHex]; ok {
		n.apply(group)
		delete(n.preapplied, forgedHex)
	}

	hash := crypto.OperationHashOf(signed)
	n.Injected = append(n.Injected, hash.String())
	writeJSON(w, hash)
}

func (n *FakeNode) apply(group *operation.OperationGroup) {
	source := group.Source()
	for _, op := range group.Contents {
		n.counters[source] = op.GetCounter()
		spent := op.GetFee()
		switch o := op.(type) {
		case *operation.Reveal:
			n.managerKeys[source] = o.PublicKey
		case *operation.Transaction:
			spent += o.Amount
			n.balances[o.Destination] += o.Amount
		}
		if n.balances[source] >= spent {
			n.balances[source] -= spent
		} else {
			n.balances[source] = 0
		}
	}
}

func (n *FakeNode) nextStatus() tezosNode.PendingStatus {
	if len(n.statusScript) == 0 {
		return tezosNode.StatusFinished
	}
	s := n.statusScript[0]
	if len(n.statusScript) > 1 {
		n.statusScript = n.statusScript[1:]
	}
	return s
}

type mempoolEntry struct {
	Hash string `json:"hash"`
}

func (n *FakeNode) handlePending(w http.ResponseWriter, _ *http.Request) {
	lists := map[string][]mempoolEntry{
		"validated":      {},
		"refused":        {},
		"outdated":       {},
		"branch_refused": {},
		"branch_delayed": {},
		"unprocessed":    {},
	}
	status := n.nextStatus()
	for _, hash := range n.Injected {
		switch status {
		case tezosNode.StatusApplied:
			lists["validated"] = append(lists["validated"], mempoolEntry{Hash: hash})
		case tezosNode.StatusRefused:
			lists["refused"] = append(lists["refused"], mempoolEntry{Hash: hash})
		case tezosNode.StatusFinished:
		default:
			panic(fmt.Sprintf("unscriptable status %s", status))
		}
	}
	writeJSON(w, lists)
}
