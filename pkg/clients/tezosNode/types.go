package tezosNode

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/Layr-Labs/tezos-client-go/pkg/crypto"
	"github.com/Layr-Labs/tezos-client-go/pkg/fees"
	"github.com/Layr-Labs/tezos-client-go/pkg/operation"
)

// Uint accepts both JSON numbers and decimal strings; the node encodes
// 64 bit integers as strings.
type Uint uint64

func (u *Uint) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		data = []byte(s)
	}
	v, err := strconv.ParseUint(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid unsigned integer %s: %w", string(data), err)
	}
	*u = Uint(v)
	return nil
}

func (u Uint) MarshalJSON() ([]byte, error) {
	return json.Marshal(strconv.FormatUint(uint64(u), 10))
}

type VersionInfo struct {
	Version struct {
		Major          int    `json:"major"`
		Minor          int    `json:"minor"`
		AdditionalInfo string `json:"additional_info,omitempty"`
	} `json:"version"`
	NetworkVersion struct {
		ChainName            string `json:"chain_name"`
		DistributedDbVersion int    `json:"distributed_db_version"`
		P2pVersion           int    `json:"p2p_version"`
	} `json:"network_version"`
	CommitInfo struct {
		CommitHash string `json:"commit_hash"`
		CommitDate string `json:"commit_date"`
	} `json:"commit_info"`
}

// Constants is the part of the protocol constants used for limits and fees.
// The minimal fee fields are optional; nil means the node did not publish
// them and defaults apply.
type Constants struct {
	HardGasLimitPerOperation     Uint  `json:"hard_gas_limit_per_operation"`
	HardGasLimitPerBlock         Uint  `json:"hard_gas_limit_per_block"`
	HardStorageLimitPerOperation Uint  `json:"hard_storage_limit_per_operation"`
	CostPerByte                  Uint  `json:"cost_per_byte"`
	OriginationSize              Uint  `json:"origination_size"`
	MinimalFees                  *Uint `json:"minimal_fees,omitempty"`
	MinimalNanotezPerByte        *Uint `json:"minimal_nanotez_per_byte,omitempty"`
	MinimalNanotezPerGasUnit     *Uint `json:"minimal_nanotez_per_gas_unit,omitempty"`
}

// FeeParameters returns the fee multipliers, defaulting the absent ones.
func (c *Constants) FeeParameters() fees.FeeParameters {
	p := fees.DefaultFeeParameters()
	if c.MinimalFees != nil {
		p.MinimalFees = uint64(*c.MinimalFees)
	}
	if c.MinimalNanotezPerByte != nil {
		p.MinimalNanotezPerByte = uint64(*c.MinimalNanotezPerByte)
	}
	if c.MinimalNanotezPerGasUnit != nil {
		p.MinimalNanotezPerGasUnit = uint64(*c.MinimalNanotezPerGasUnit)
	}
	return p
}

type ProtocolInfo struct {
	Protocol     crypto.ProtocolHash `json:"protocol"`
	NextProtocol crypto.ProtocolHash `json:"next_protocol"`
}

type PendingStatus int

const (
	StatusUnknown PendingStatus = iota
	// StatusApplied: still in the mempool, not yet final.
	StatusApplied
	StatusRefused
	// StatusFinished: no longer pending.
	StatusFinished
)

func (s PendingStatus) String() string {
	switch s {
	case StatusApplied:
		return "applied"
	case StatusRefused:
		return "refused"
	case StatusFinished:
		return "finished"
	}
	return "unknown"
}

// NodeError is one entry of the error list the node returns.
type NodeError struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
	Msg  string `json:"msg,omitempty"`
}

func (e NodeError) String() string {
	if e.Msg != "" {
		return e.ID + ": " + e.Msg
	}
	return e.ID
}

type OperationResult struct {
	Status           string      `json:"status"`
	Errors           []NodeError `json:"errors,omitempty"`
	ConsumedMilligas *Uint       `json:"consumed_milligas,omitempty"`
}

type PreapplyContent struct {
	Kind     string `json:"kind"`
	Metadata struct {
		OperationResult OperationResult `json:"operation_result"`
	} `json:"metadata"`
}

// PreapplyResult is one applied group returned by the preapply RPC.
type PreapplyResult struct {
	Contents  []PreapplyContent `json:"contents"`
	Signature string            `json:"signature,omitempty"`
}

// Applied reports whether every content applied.
func (r PreapplyResult) Applied() bool {
	if len(r.Contents) == 0 {
		return false
	}
	for _, c := range r.Contents {
		if c.Metadata.OperationResult.Status != "applied" {
			return false
		}
	}
	return true
}

// Errors collects the node errors of every content.
func (r PreapplyResult) Errors() []NodeError {
	var out []NodeError
	for _, c := range r.Contents {
		out = append(out, c.Metadata.OperationResult.Errors...)
	}
	return out
}

// PreapplyRequest is one element of the preapply body.
type PreapplyRequest struct {
	Protocol  crypto.ProtocolHash `json:"protocol"`
	Branch    crypto.BlockHash    `json:"branch"`
	Contents  operation.Contents  `json:"contents"`
	Signature crypto.Signature    `json:"signature"`
}

// pendingOperations lists mempool hashes per classification. Entries are
// objects carrying "hash" or [hash, operation] pairs depending on the RPC
// version.
type pendingOperations struct {
	Applied       []json.RawMessage `json:"applied"`
	Validated     []json.RawMessage `json:"validated"`
	BranchDelayed []json.RawMessage `json:"branch_delayed"`
	Unprocessed   []json.RawMessage `json:"unprocessed"`
	Refused       []json.RawMessage `json:"refused"`
	BranchRefused []json.RawMessage `json:"branch_refused"`
	Outdated      []json.RawMessage `json:"outdated"`
}

func entryHash(raw json.RawMessage) string {
	var obj struct {
		Hash string `json:"hash"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Hash != "" {
		return obj.Hash
	}
	var pair []json.RawMessage
	if err := json.Unmarshal(raw, &pair); err == nil && len(pair) > 0 {
		var h string
		if err := json.Unmarshal(pair[0], &h); err == nil {
			return h
		}
	}
	return ""
}

func containsHash(entries []json.RawMessage, hash string) bool {
	for _, e := range entries {
		if entryHash(e) == hash {
			return true
		}
	}
	return false
}

func (p *pendingOperations) status(hash string) PendingStatus {
	for _, list := range [][]json.RawMessage{p.Refused, p.BranchRefused, p.Outdated} {
		if containsHash(list, hash) {
			return StatusRefused
		}
	}
	for _, list := range [][]json.RawMessage{p.Applied, p.Validated, p.BranchDelayed, p.Unprocessed} {
		if containsHash(list, hash) {
			return StatusApplied
		}
	}
	return StatusFinished
}
