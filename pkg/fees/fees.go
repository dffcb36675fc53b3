// Package fees computes the minimal fee a baker accepts for a manager
// operation and raises operation fees up to that floor.
package fees

import (
	"github.com/Layr-Labs/tezos-client-go/pkg/operation"
)

const (
	DefaultMinimalFees              uint64 = 100
	DefaultMinimalNanotezPerByte    uint64 = 1000
	DefaultMinimalNanotezPerGasUnit uint64 = 100

	// bound on the fee/size fixed point loop
	maxFeeIterations = 8
)

// FeeParameters are the minimal fee multipliers. MinimalFees is in mutez,
// the per-unit values in nanotez.
type FeeParameters struct {
	MinimalFees              uint64
	MinimalNanotezPerByte    uint64
	MinimalNanotezPerGasUnit uint64
}

func DefaultFeeParameters() FeeParameters {
	return FeeParameters{
		MinimalFees:              DefaultMinimalFees,
		MinimalNanotezPerByte:    DefaultMinimalNanotezPerByte,
		MinimalNanotezPerGasUnit: DefaultMinimalNanotezPerGasUnit,
	}
}

// WithDefaults fills unset (zero) multipliers from the defaults.
func (p FeeParameters) WithDefaults() FeeParameters {
	d := DefaultFeeParameters()
	if p.MinimalFees == 0 {
		p.MinimalFees = d.MinimalFees
	}
	if p.MinimalNanotezPerByte == 0 {
		p.MinimalNanotezPerByte = d.MinimalNanotezPerByte
	}
	if p.MinimalNanotezPerGasUnit == 0 {
		p.MinimalNanotezPerGasUnit = d.MinimalNanotezPerGasUnit
	}
	return p
}

func ceilDiv(n, d uint64) uint64 {
	if n == 0 {
		return 0
	}
	return (n-1)/d + 1
}

// EstimateFee returns the fee floor in mutez:
// minimal_fees + ceil(bytes * per_byte) + ceil(gas * per_gas).
func EstimateFee(p FeeParameters, bytes int, gas uint64) uint64 {
	if bytes < 0 {
		bytes = 0
	}
	return p.MinimalFees +
		ceilDiv(uint64(bytes)*p.MinimalNanotezPerByte, 1000) +
		ceilDiv(gas*p.MinimalNanotezPerGasUnit, 1000)
}

// EstimateOperationFee uses the operation's forged size and gas limit. extra
// is added to the byte count (the group overhead for the first operation).
func EstimateOperationFee(p FeeParameters, op operation.NewOperation, extra int) uint64 {
	return EstimateFee(p, op.EstimateBytes()+extra, op.GetGasLimit())
}

// Adjustment records a fee raised to the floor.
type Adjustment struct {
	Index int
	Kind  string
	From  uint64
	To    uint64
}

// ApplyMinimalFees raises every content's fee to at least its floor. The
// group's branch and signature bytes are charged to the first operation.
// Raising a fee can widen its encoding, which raises the floor again, so
// each content is iterated until stable. Fees are never lowered.
func ApplyMinimalFees(p FeeParameters, group *operation.OperationGroup) []Adjustment {
	var adjustments []Adjustment
	for i, op := range group.Contents {
		extra := 0
		if i == 0 {
			extra = operation.GroupOverhead
		}
		original := op.GetFee()
		if RaiseToFloor(p, op, extra) {
			adjustments = append(adjustments, Adjustment{Index: i, Kind: op.KindString(), From: original, To: op.GetFee()})
		}
	}
	return adjustments
}

// RaiseToFloor raises op's fee to its floor and reports whether it changed.
func RaiseToFloor(p FeeParameters, op operation.NewOperation, extra int) bool {
	original := op.GetFee()
	for n := 0; n < maxFeeIterations; n++ {
		floor := EstimateOperationFee(p, op, extra)
		if op.GetFee() >= floor {
			break
		}
		op.SetFee(floor)
	}
	return op.GetFee() != original
}

// MeetsMinimalFees reports whether every content is at or above its floor.
func MeetsMinimalFees(p FeeParameters, group *operation.OperationGroup) bool {
	for i, op := range group.Contents {
		extra := 0
		if i == 0 {
			extra = operation.GroupOverhead
		}
		if op.GetFee() < EstimateOperationFee(p, op, extra) {
			return false
		}
	}
	return true
}
