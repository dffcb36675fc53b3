package operation

import (
	"errors"
	"fmt"

	"github.com/Layr-Labs/tezos-client-go/pkg/crypto"
)

var (
	ErrEmptyGroup    = errors.New("operation group must contain at least one operation")
	ErrMixedSources  = errors.New("all operations in a group must share one source")
	ErrInvalidBranch = errors.New("operation group branch must be set")
)

// OperationGroup is an ordered batch of operations anchored to one branch.
// Contents are forged and signed together in this order.
type OperationGroup struct {
	Branch   crypto.BlockHash
	Contents []NewOperation
}

func NewOperationGroup(branch crypto.BlockHash, ops ...NewOperation) (*OperationGroup, error) {
	g := &OperationGroup{Branch: branch, Contents: ops}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *OperationGroup) Validate() error {
	if len(g.Contents) == 0 {
		return ErrEmptyGroup
	}
	if g.Branch.IsZero() {
		return ErrInvalidBranch
	}
	for i, op := range g.Contents {
		if op == nil {
			return fmt.Errorf("operation %d is nil", i)
		}
	}
	source := g.Contents[0].GetSource()
	for i, op := range g.Contents {
		if op.GetSource() != source {
			return fmt.Errorf("%w: operation %d has source %s, expected %s",
				ErrMixedSources, i, op.GetSource(), source)
		}
	}
	return nil
}

// Source returns the shared source of the group's operations.
func (g *OperationGroup) Source() crypto.Address {
	if len(g.Contents) == 0 {
		return crypto.Address{}
	}
	return g.Contents[0].GetSource()
}

// EstimateBytes is the size of the signed group: overhead plus contents.
func (g *OperationGroup) EstimateBytes() int {
	n := GroupOverhead
	for _, op := range g.Contents {
		n += op.EstimateBytes()
	}
	return n
}

// TotalFee sums the fees of every content.
func (g *OperationGroup) TotalFee() uint64 {
	var total uint64
	for _, op := range g.Contents {
		total += op.GetFee()
	}
	return total
}

// Kinds lists the wire kind of every content in order.
func (g *OperationGroup) Kinds() []string {
	kinds := make([]string, len(g.Contents))
	for i, op := range g.Contents {
		kinds[i] = op.KindString()
	}
	return kinds
}

// Clone deep-copies the group.
func (g *OperationGroup) Clone() *OperationGroup {
	c := &OperationGroup{Branch: g.Branch, Contents: make([]NewOperation, len(g.Contents))}
	for i, op := range g.Contents {
		c.Contents[i] = Clone(op)
	}
	return c
}
