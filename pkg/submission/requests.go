package submission

import (
	"context"
	"fmt"

	"github.com/Layr-Labs/tezos-client-go/pkg/crypto"
	"github.com/Layr-Labs/tezos-client-go/pkg/fees"
	"github.com/Layr-Labs/tezos-client-go/pkg/operation"
	"github.com/Layr-Labs/tezos-client-go/pkg/operationSigner"
)

const (
	DefaultTransactionGasLimit uint64 = 50000
	DefaultDelegationGasLimit  uint64 = 1000
	DefaultRevealGasLimit      uint64 = 1000
)

// TransferRequest is a transfer as entered by a user. Amount and Fee are
// tez decimals ("1.5"). An empty Fee is estimated from the node's fee
// parameters; zero limits take the defaults.
type TransferRequest struct {
	Source       string
	Destination  string
	Amount       string
	Fee          string
	GasLimit     uint64
	StorageLimit uint64
}

// DelegationRequest sets Source's delegate. An empty Delegate withdraws it.
type DelegationRequest struct {
	Source   string
	Delegate string
	Fee      string
	GasLimit uint64
}

// RevealRequest publishes the source's public key. The key is taken from
// the signer when PublicKey is empty.
type RevealRequest struct {
	Source    string
	PublicKey string
	Fee       string
}

// BuildFunc builds the transfer, preceded by a reveal when the source has
// not published its key yet.
func (r *TransferRequest) BuildFunc(keys operationSigner.IOperationSigner) BuildFunc {
	return func(ctx context.Context, state *NodeState) ([]operation.NewOperation, error) {
		ops, counter, err := revealIfNeeded(ctx, keys, r.Source, state)
		if err != nil {
			return nil, err
		}
		gas := r.GasLimit
		if gas == 0 {
			gas = DefaultTransactionGasLimit
		}
		storage := r.StorageLimit
		if storage == 0 {
			storage = uint64(state.Constants.HardStorageLimitPerOperation)
		}
		b := operation.NewTransactionBuilder().
			SourceString(r.Source).
			DestinationString(r.Destination).
			AmountString(r.Amount).
			Counter(counter).
			GasLimit(gas).
			StorageLimit(storage)
		setFee(b.Fee, b.FeeString, r.Fee)
		tx, err := b.Build()
		if err != nil {
			return nil, err
		}
		ops = append(ops, tx)
		estimateOmittedFees(state, ops, r.Fee == "")
		return ops, nil
	}
}

func (r *DelegationRequest) BuildFunc(keys operationSigner.IOperationSigner) BuildFunc {
	return func(ctx context.Context, state *NodeState) ([]operation.NewOperation, error) {
		ops, counter, err := revealIfNeeded(ctx, keys, r.Source, state)
		if err != nil {
			return nil, err
		}
		gas := r.GasLimit
		if gas == 0 {
			gas = DefaultDelegationGasLimit
		}
		b := operation.NewDelegationBuilder().
			SourceString(r.Source).
			Counter(counter).
			GasLimit(gas).
			StorageLimit(0)
		if r.Delegate != "" {
			b.DelegateString(r.Delegate)
		}
		setFee(b.Fee, b.FeeString, r.Fee)
		d, err := b.Build()
		if err != nil {
			return nil, err
		}
		ops = append(ops, d)
		estimateOmittedFees(state, ops, r.Fee == "")
		return ops, nil
	}
}

// BuildFunc fails when the source is already revealed.
func (r *RevealRequest) BuildFunc(keys operationSigner.IOperationSigner) BuildFunc {
	return func(ctx context.Context, state *NodeState) ([]operation.NewOperation, error) {
		if state.Revealed() {
			return nil, fmt.Errorf("%s is already revealed", r.Source)
		}
		b := operation.NewRevealBuilder().
			SourceString(r.Source).
			Counter(state.NextCounter()).
			GasLimit(DefaultRevealGasLimit).
			StorageLimit(0)
		if r.PublicKey != "" {
			b.KeyString(r.PublicKey)
		} else {
			source, err := crypto.ParseAddress(r.Source)
			if err != nil {
				return nil, err
			}
			pk, err := keys.PublicKey(ctx, source)
			if err != nil {
				return nil, err
			}
			b.Key(pk)
		}
		setFee(b.Fee, b.FeeString, r.Fee)
		reveal, err := b.Build()
		if err != nil {
			return nil, err
		}
		ops := []operation.NewOperation{reveal}
		estimateOmittedFees(state, ops, r.Fee == "")
		return ops, nil
	}
}

// Transfer parses req and submits it.
func (p *Pipeline) Transfer(ctx context.Context, req *TransferRequest) (*Result, error) {
	source, err := crypto.ParseAddress(req.Source)
	if err != nil {
		return nil, err
	}
	return p.Submit(ctx, source, req.BuildFunc(p.signer))
}

func (p *Pipeline) Delegate(ctx context.Context, req *DelegationRequest) (*Result, error) {
	source, err := crypto.ParseAddress(req.Source)
	if err != nil {
		return nil, err
	}
	return p.Submit(ctx, source, req.BuildFunc(p.signer))
}

func (p *Pipeline) Reveal(ctx context.Context, req *RevealRequest) (*Result, error) {
	source, err := crypto.ParseAddress(req.Source)
	if err != nil {
		return nil, err
	}
	return p.Submit(ctx, source, req.BuildFunc(p.signer))
}

// revealIfNeeded returns a reveal for an unrevealed source, with the
// counter the next operation must carry.
func revealIfNeeded(
	ctx context.Context,
	keys operationSigner.IOperationSigner,
	sourceStr string,
	state *NodeState,
) ([]operation.NewOperation, uint64, error) {
	counter := state.NextCounter()
	if state.Revealed() {
		return nil, counter, nil
	}
	source, err := crypto.ParseAddress(sourceStr)
	if err != nil {
		return nil, 0, err
	}
	pk, err := keys.PublicKey(ctx, source)
	if err != nil {
		return nil, 0, fmt.Errorf("public key for reveal: %w", err)
	}
	reveal, err := operation.NewRevealBuilder().
		Source(source).
		Key(pk).
		Fee(0).
		Counter(counter).
		GasLimit(DefaultRevealGasLimit).
		StorageLimit(0).
		Build()
	if err != nil {
		return nil, 0, err
	}
	return []operation.NewOperation{reveal}, counter + 1, nil
}

// setFee applies a tez string, or zero when it is empty.
func setFee[B any](mutez func(uint64) B, tez func(string) B, fee string) {
	if fee == "" {
		mutez(0)
		return
	}
	tez(fee)
}

// estimateOmittedFees raises fees to the node's floor. Prepended reveals
// always carry an estimated fee; the last operation only when its fee was
// omitted.
func estimateOmittedFees(state *NodeState, ops []operation.NewOperation, lastOmitted bool) {
	params := state.Constants.FeeParameters()
	for i, op := range ops {
		if i == len(ops)-1 && !lastOmitted {
			continue
		}
		extra := 0
		if i == 0 {
			extra = operation.GroupOverhead
		}
		fees.RaiseToFloor(params, op, extra)
	}
}
