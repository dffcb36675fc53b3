package operation

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/Layr-Labs/tezos-client-go/pkg/crypto"
)

// wireContent is the node's JSON form of a manager operation. Integers are
// decimal strings.
type wireContent struct {
	Kind         string            `json:"kind"`
	Source       crypto.Address    `json:"source"`
	Fee          string            `json:"fee"`
	Counter      string            `json:"counter"`
	GasLimit     string            `json:"gas_limit"`
	StorageLimit string            `json:"storage_limit"`
	PublicKey    *crypto.PublicKey `json:"public_key,omitempty"`
	Amount       *string           `json:"amount,omitempty"`
	Destination  *crypto.Address   `json:"destination,omitempty"`
	Delegate     *crypto.Address   `json:"delegate,omitempty"`
}

func newWireContent(kind Kind, m *ManagerFields) wireContent {
	return wireContent{
		Kind:         kind.String(),
		Source:       m.Source,
		Fee:          strconv.FormatUint(m.Fee, 10),
		Counter:      strconv.FormatUint(m.Counter, 10),
		GasLimit:     strconv.FormatUint(m.GasLimit, 10),
		StorageLimit: strconv.FormatUint(m.StorageLimit, 10),
	}
}

func (o *Reveal) MarshalJSON() ([]byte, error) {
	w := newWireContent(KindReveal, &o.ManagerFields)
	pk := o.PublicKey
	w.PublicKey = &pk
	return json.Marshal(w)
}

func (o *Transaction) MarshalJSON() ([]byte, error) {
	w := newWireContent(KindTransaction, &o.ManagerFields)
	amount := strconv.FormatUint(o.Amount, 10)
	dest := o.Destination
	w.Amount = &amount
	w.Destination = &dest
	return json.Marshal(w)
}

func (o *Delegation) MarshalJSON() ([]byte, error) {
	w := newWireContent(KindDelegation, &o.ManagerFields)
	w.Delegate = o.Delegate
	return json.Marshal(w)
}

func parseUintField(name, value string) (uint64, error) {
	v, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, value, err)
	}
	return v, nil
}

func (w *wireContent) managerFields() (ManagerFields, error) {
	m := ManagerFields{Source: w.Source}
	var err error
	if m.Fee, err = parseUintField("fee", w.Fee); err != nil {
		return m, err
	}
	if m.Counter, err = parseUintField("counter", w.Counter); err != nil {
		return m, err
	}
	if m.GasLimit, err = parseUintField("gas_limit", w.GasLimit); err != nil {
		return m, err
	}
	if m.StorageLimit, err = parseUintField("storage_limit", w.StorageLimit); err != nil {
		return m, err
	}
	return m, nil
}

// UnmarshalContent decodes one content of the node's JSON form.
func UnmarshalContent(data []byte) (NewOperation, error) {
	var w wireContent
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	kind, err := ParseKind(w.Kind)
	if err != nil {
		return nil, err
	}
	m, err := w.managerFields()
	if err != nil {
		return nil, err
	}

	switch kind {
	case KindReveal:
		if w.PublicKey == nil {
			return nil, fmt.Errorf("reveal without public_key")
		}
		return &Reveal{ManagerFields: m, PublicKey: *w.PublicKey}, nil
	case KindTransaction:
		if w.Amount == nil || w.Destination == nil {
			return nil, fmt.Errorf("transaction requires amount and destination")
		}
		amount, err := parseUintField("amount", *w.Amount)
		if err != nil {
			return nil, err
		}
		return &Transaction{ManagerFields: m, Amount: amount, Destination: *w.Destination}, nil
	case KindDelegation:
		return &Delegation{ManagerFields: m, Delegate: w.Delegate}, nil
	}
	return nil, fmt.Errorf("unhandled kind %s", kind)
}

// Contents is a JSON-decodable list of operations.
type Contents []NewOperation

func (c *Contents) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Contents, 0, len(raw))
	for i, r := range raw {
		op, err := UnmarshalContent(r)
		if err != nil {
			return fmt.Errorf("content %d: %w", i, err)
		}
		out = append(out, op)
	}
	*c = out
	return nil
}

type wireGroup struct {
	Branch   crypto.BlockHash `json:"branch"`
	Contents Contents         `json:"contents"`
}

// MarshalJSON emits the {branch, contents} body accepted by the forge RPC.
func (g *OperationGroup) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireGroup{Branch: g.Branch, Contents: g.Contents})
}

func (g *OperationGroup) UnmarshalJSON(data []byte) error {
	var w wireGroup
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	g.Branch = w.Branch
	g.Contents = w.Contents
	return nil
}
