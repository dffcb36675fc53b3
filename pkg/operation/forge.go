package operation

import (
	"fmt"

	"github.com/Layr-Labs/tezos-client-go/pkg/crypto"
)

const (
	// curve tag + key hash
	implicitLength = 1 + crypto.AddressHashLength
	// implicit/originated flag + 21 bytes
	contractIDLength = 1 + implicitLength

	BranchLength = crypto.HashLength
	// GroupOverhead is the branch and signature bytes that every signed
	// group carries on top of its contents.
	GroupOverhead = BranchLength + crypto.SignatureLength
)

// Forge produces the unsigned binary encoding of a group: branch followed
// by each content in order.
func Forge(group *OperationGroup) ([]byte, error) {
	if group == nil || len(group.Contents) == 0 {
		return nil, ErrEmptyGroup
	}
	size := BranchLength
	for _, op := range group.Contents {
		size += op.EstimateBytes()
	}
	out := make([]byte, 0, size)
	out = append(out, group.Branch[:]...)
	for i, op := range group.Contents {
		var err error
		out, err = appendContent(out, op)
		if err != nil {
			return nil, fmt.Errorf("failed to forge content %d (%s): %w", i, op.KindString(), err)
		}
	}
	return out, nil
}

// ForgeContent encodes a single content without the branch.
func ForgeContent(op NewOperation) ([]byte, error) {
	return appendContent(make([]byte, 0, op.EstimateBytes()), op)
}

func appendContent(dst []byte, op NewOperation) ([]byte, error) {
	dst = append(dst, op.Kind().Tag())
	dst, err := appendManagerFields(dst, op)
	if err != nil {
		return nil, err
	}

	switch o := op.(type) {
	case *Reveal:
		return appendPublicKey(dst, o.PublicKey)
	case *Transaction:
		dst = AppendZarith(dst, o.Amount)
		dst, err = appendContractID(dst, o.Destination)
		if err != nil {
			return nil, fmt.Errorf("destination: %w", err)
		}
		// no parameters
		return append(dst, 0x00), nil
	case *Delegation:
		if o.Delegate == nil {
			return append(dst, 0x00), nil
		}
		dst = append(dst, 0xff)
		dst, err = appendImplicit(dst, *o.Delegate)
		if err != nil {
			return nil, fmt.Errorf("delegate: %w", err)
		}
		return dst, nil
	}
	return nil, fmt.Errorf("unhandled operation type %T", op)
}

func appendManagerFields(dst []byte, op NewOperation) ([]byte, error) {
	dst, err := appendImplicit(dst, op.GetSource())
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	dst = AppendZarith(dst, op.GetFee())
	dst = AppendZarith(dst, op.GetCounter())
	dst = AppendZarith(dst, op.GetGasLimit())
	dst = AppendZarith(dst, op.GetStorageLimit())
	return dst, nil
}

func appendImplicit(dst []byte, addr crypto.Address) ([]byte, error) {
	curve, ok := addr.Curve()
	if !ok {
		return nil, fmt.Errorf("%s is not an implicit account", addr.Kind)
	}
	tag, err := curve.Tag()
	if err != nil {
		return nil, err
	}
	dst = append(dst, tag)
	return append(dst, addr.Hash[:]...), nil
}

func appendContractID(dst []byte, addr crypto.Address) ([]byte, error) {
	if addr.Kind == crypto.AddressOriginated {
		dst = append(dst, 0x01)
		dst = append(dst, addr.Hash[:]...)
		// padding
		return append(dst, 0x00), nil
	}
	dst = append(dst, 0x00)
	return appendImplicit(dst, addr)
}

func appendPublicKey(dst []byte, pk crypto.PublicKey) ([]byte, error) {
	tag, err := pk.Curve.Tag()
	if err != nil {
		return nil, fmt.Errorf("public key: %w", err)
	}
	dst = append(dst, tag)
	return append(dst, pk.Key...), nil
}
