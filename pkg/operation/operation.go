// Package operation models the manager operations a client can submit
// (reveal, transaction, delegation), their grouping under a branch, and
// their binary (forged) and JSON encodings.
package operation

import (
	"fmt"

	"github.com/Layr-Labs/tezos-client-go/pkg/crypto"
)

type Kind int

const (
	KindReveal Kind = iota + 1
	KindTransaction
	KindDelegation
)

func (k Kind) String() string {
	switch k {
	case KindReveal:
		return "reveal"
	case KindTransaction:
		return "transaction"
	case KindDelegation:
		return "delegation"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Tag is the forged content discriminant.
func (k Kind) Tag() byte {
	switch k {
	case KindReveal:
		return 0x6b
	case KindTransaction:
		return 0x6c
	case KindDelegation:
		return 0x6e
	}
	return 0
}

func ParseKind(s string) (Kind, error) {
	switch s {
	case "reveal":
		return KindReveal, nil
	case "transaction":
		return KindTransaction, nil
	case "delegation":
		return KindDelegation, nil
	}
	return 0, fmt.Errorf("unsupported operation kind %q", s)
}

// ManagerFields are shared by every manager operation. Amounts are in mutez.
type ManagerFields struct {
	Source       crypto.Address
	Fee          uint64
	Counter      uint64
	GasLimit     uint64
	StorageLimit uint64
}

func (m *ManagerFields) GetSource() crypto.Address { return m.Source }
func (m *ManagerFields) GetFee() uint64            { return m.Fee }
func (m *ManagerFields) SetFee(fee uint64)         { m.Fee = fee }
func (m *ManagerFields) GetCounter() uint64        { return m.Counter }
func (m *ManagerFields) GetGasLimit() uint64       { return m.GasLimit }
func (m *ManagerFields) GetStorageLimit() uint64   { return m.StorageLimit }

// sourceAndLimitsLength is tag + source + the four zarith fields.
func (m *ManagerFields) sourceAndLimitsLength() int {
	return 1 + implicitLength +
		ZarithLength(m.Fee) + ZarithLength(m.Counter) +
		ZarithLength(m.GasLimit) + ZarithLength(m.StorageLimit)
}

// NewOperation is implemented only by *Reveal, *Transaction and *Delegation.
type NewOperation interface {
	Kind() Kind
	KindString() string
	// EstimateBytes is the exact forged size of this content.
	EstimateBytes() int

	GetSource() crypto.Address
	GetFee() uint64
	SetFee(fee uint64)
	GetCounter() uint64
	GetGasLimit() uint64
	GetStorageLimit() uint64

	sealed()
}

// Reveal publishes the public key of an implicit account.
type Reveal struct {
	ManagerFields
	PublicKey crypto.PublicKey
}

// Transaction moves Amount mutez from the source to Destination.
type Transaction struct {
	ManagerFields
	Amount      uint64
	Destination crypto.Address
}

// Delegation sets the source's delegate. A nil Delegate withdraws it.
type Delegation struct {
	ManagerFields
	Delegate *crypto.Address
}

var (
	_ NewOperation = (*Reveal)(nil)
	_ NewOperation = (*Transaction)(nil)
	_ NewOperation = (*Delegation)(nil)
)

func (*Reveal) Kind() Kind      { return KindReveal }
func (*Transaction) Kind() Kind { return KindTransaction }
func (*Delegation) Kind() Kind  { return KindDelegation }

func (o *Reveal) KindString() string      { return o.Kind().String() }
func (o *Transaction) KindString() string { return o.Kind().String() }
func (o *Delegation) KindString() string  { return o.Kind().String() }

func (*Reveal) sealed()      {}
func (*Transaction) sealed() {}
func (*Delegation) sealed()  {}

func (o *Reveal) EstimateBytes() int {
	return o.sourceAndLimitsLength() + 1 + len(o.PublicKey.Key)
}

func (o *Transaction) EstimateBytes() int {
	// destination contract id + "no parameters" flag
	return o.sourceAndLimitsLength() + ZarithLength(o.Amount) + contractIDLength + 1
}

func (o *Delegation) EstimateBytes() int {
	n := o.sourceAndLimitsLength() + 1
	if o.Delegate != nil {
		n += implicitLength
	}
	return n
}

// Clone returns a deep copy so callers can adjust fees without aliasing.
func Clone(op NewOperation) NewOperation {
	switch o := op.(type) {
	case *Reveal:
		c := *o
		c.PublicKey.Key = append([]byte(nil), o.PublicKey.Key...)
		return &c
	case *Transaction:
		c := *o
		return &c
	case *Delegation:
		c := *o
		if o.Delegate != nil {
			d := *o.Delegate
			c.Delegate = &d
		}
		return &c
	}
	panic(fmt.Sprintf("unhandled operation type %T", op))
}
