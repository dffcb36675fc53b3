package operation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/Layr-Labs/tezos-client-go/pkg/crypto"
	"github.com/go-playground/validator/v10"
)

type BuilderErrorKind int

const (
	MissingField BuilderErrorKind = iota + 1
	InvalidField
)

var (
	ErrMissingField = errors.New("missing required field")
	ErrInvalidField = errors.New("invalid field")
)

// BuilderError names the field that prevented an operation from being built.
type BuilderError struct {
	Kind  BuilderErrorKind
	Field string
	Err   error
}

func (e *BuilderError) Error() string {
	switch e.Kind {
	case MissingField:
		return fmt.Sprintf("missing required field %q", e.Field)
	case InvalidField:
		if e.Err != nil {
			return fmt.Sprintf("invalid field %q: %v", e.Field, e.Err)
		}
		return fmt.Sprintf("invalid field %q", e.Field)
	}
	return fmt.Sprintf("builder error on %q", e.Field)
}

func (e *BuilderError) Unwrap() error { return e.Err }

func (e *BuilderError) Is(target error) bool {
	switch target {
	case ErrMissingField:
		return e.Kind == MissingField
	case ErrInvalidField:
		return e.Kind == InvalidField
	}
	return false
}

func missing(field string) error { return &BuilderError{Kind: MissingField, Field: field} }

func invalid(field string, err error) error {
	return &BuilderError{Kind: InvalidField, Field: field, Err: err}
}

var validate = newBuilderValidator()

func newBuilderValidator() *validator.Validate {
	v := validator.New()
	// report fields by their wire names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// checkRequired runs the struct validator and maps the first failure onto a
// BuilderError.
func checkRequired(input interface{}) error {
	err := validate.Struct(input)
	if err == nil {
		return nil
	}
	var invalidErr *validator.InvalidValidationError
	if errors.As(err, &invalidErr) {
		return fmt.Errorf("builder validation misuse: %w", err)
	}
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return err
	}
	first := errs[0]
	if first.Tag() == "required" {
		return missing(first.Field())
	}
	return invalid(first.Field(), fmt.Errorf("failed %q check", first.Tag()))
}

// managerInput collects the shared fields. Pointers distinguish "not set"
// from zero.
type managerInput struct {
	Source       *crypto.Address `json:"source" validate:"required"`
	Fee          *uint64         `json:"fee" validate:"required"`
	Counter      *uint64         `json:"counter" validate:"required"`
	GasLimit     *uint64         `json:"gas_limit" validate:"required"`
	StorageLimit *uint64         `json:"storage_limit" validate:"required"`

	// first parse error from a string setter
	err error
}

func (m *managerInput) setErr(err error) {
	if m.err == nil {
		m.err = err
	}
}

func (m *managerInput) source(addr crypto.Address) {
	m.Source = &addr
}

func (m *managerInput) sourceString(s string) {
	addr, err := crypto.ParseAddress(s)
	if err != nil {
		m.setErr(invalid("source", err))
		return
	}
	m.Source = &addr
}

func (m *managerInput) feeString(s string) {
	fee, err := ParseTez(s)
	if err != nil {
		m.setErr(invalid("fee", err))
		return
	}
	m.Fee = &fee
}

func ptr(v uint64) *uint64 { return &v }

func (m *managerInput) build(input interface{}) (ManagerFields, error) {
	if m.err != nil {
		return ManagerFields{}, m.err
	}
	if err := checkRequired(input); err != nil {
		return ManagerFields{}, err
	}
	if !m.Source.IsImplicit() {
		return ManagerFields{}, invalid("source", fmt.Errorf("%s is not an implicit account", m.Source))
	}
	return ManagerFields{
		Source:       *m.Source,
		Fee:          *m.Fee,
		Counter:      *m.Counter,
		GasLimit:     *m.GasLimit,
		StorageLimit: *m.StorageLimit,
	}, nil
}

// TransactionBuilder assembles a Transaction.
type TransactionBuilder struct {
	managerInput
	Amount      *uint64         `json:"amount" validate:"required"`
	Destination *crypto.Address `json:"destination" validate:"required"`
}

func NewTransactionBuilder() *TransactionBuilder { return &TransactionBuilder{} }

func (b *TransactionBuilder) Source(a crypto.Address) *TransactionBuilder          { b.source(a); return b }
func (b *TransactionBuilder) SourceString(s string) *TransactionBuilder            { b.sourceString(s); return b }
func (b *TransactionBuilder) Fee(mutez uint64) *TransactionBuilder                 { b.managerInput.Fee = ptr(mutez); return b }
func (b *TransactionBuilder) FeeString(tez string) *TransactionBuilder             { b.feeString(tez); return b }
func (b *TransactionBuilder) Counter(c uint64) *TransactionBuilder                 { b.managerInput.Counter = ptr(c); return b }
func (b *TransactionBuilder) GasLimit(g uint64) *TransactionBuilder                { b.managerInput.GasLimit = ptr(g); return b }
func (b *TransactionBuilder) StorageLimit(s uint64) *TransactionBuilder            { b.managerInput.StorageLimit = ptr(s); return b }
func (b *TransactionBuilder) AmountMutez(mutez uint64) *TransactionBuilder         { b.Amount = ptr(mutez); return b }
func (b *TransactionBuilder) DestinationAddr(a crypto.Address) *TransactionBuilder { b.Destination = &a; return b }

func (b *TransactionBuilder) AmountString(tez string) *TransactionBuilder {
	v, err := ParseTez(tez)
	if err != nil {
		b.setErr(invalid("amount", err))
		return b
	}
	b.Amount = &v
	return b
}

func (b *TransactionBuilder) DestinationString(s string) *TransactionBuilder {
	addr, err := crypto.ParseAddress(s)
	if err != nil {
		b.setErr(invalid("destination", err))
		return b
	}
	b.Destination = &addr
	return b
}

func (b *TransactionBuilder) Build() (*Transaction, error) {
	m, err := b.build(b)
	if err != nil {
		return nil, err
	}
	return &Transaction{ManagerFields: m, Amount: *b.Amount, Destination: *b.Destination}, nil
}

// DelegationBuilder assembles a Delegation. Leaving the delegate unset
// produces a withdrawal.
type DelegationBuilder struct {
	managerInput
	delegate *crypto.Address
}

func NewDelegationBuilder() *DelegationBuilder { return &DelegationBuilder{} }

func (b *DelegationBuilder) Source(a crypto.Address) *DelegationBuilder { b.source(a); return b }
func (b *DelegationBuilder) SourceString(s string) *DelegationBuilder   { b.sourceString(s); return b }
func (b *DelegationBuilder) Fee(mutez uint64) *DelegationBuilder        { b.managerInput.Fee = ptr(mutez); return b }
func (b *DelegationBuilder) FeeString(tez string) *DelegationBuilder    { b.feeString(tez); return b }
func (b *DelegationBuilder) Counter(c uint64) *DelegationBuilder        { b.managerInput.Counter = ptr(c); return b }
func (b *DelegationBuilder) GasLimit(g uint64) *DelegationBuilder       { b.managerInput.GasLimit = ptr(g); return b }
func (b *DelegationBuilder) StorageLimit(s uint64) *DelegationBuilder   { b.managerInput.StorageLimit = ptr(s); return b }
func (b *DelegationBuilder) Delegate(a crypto.Address) *DelegationBuilder {
	b.delegate = &a
	return b
}

func (b *DelegationBuilder) DelegateString(s string) *DelegationBuilder {
	addr, err := crypto.ParseAddress(s)
	if err != nil {
		b.setErr(invalid("delegate", err))
		return b
	}
	b.delegate = &addr
	return b
}

func (b *DelegationBuilder) Build() (*Delegation, error) {
	m, err := b.build(b)
	if err != nil {
		return nil, err
	}
	d := &Delegation{ManagerFields: m}
	if b.delegate != nil {
		if !b.delegate.IsImplicit() {
			return nil, invalid("delegate", fmt.Errorf("%s is not an implicit account", b.delegate))
		}
		addr := *b.delegate
		d.Delegate = &addr
	}
	return d, nil
}

// RevealBuilder assembles a Reveal. The public key must hash to the source.
type RevealBuilder struct {
	managerInput
	PublicKey *crypto.PublicKey `json:"public_key" validate:"required"`
}

func NewRevealBuilder() *RevealBuilder { return &RevealBuilder{} }

func (b *RevealBuilder) Source(a crypto.Address) *RevealBuilder { b.source(a); return b }
func (b *RevealBuilder) SourceString(s string) *RevealBuilder   { b.sourceString(s); return b }
func (b *RevealBuilder) Fee(mutez uint64) *RevealBuilder        { b.managerInput.Fee = ptr(mutez); return b }
func (b *RevealBuilder) FeeString(tez string) *RevealBuilder    { b.feeString(tez); return b }
func (b *RevealBuilder) Counter(c uint64) *RevealBuilder        { b.managerInput.Counter = ptr(c); return b }
func (b *RevealBuilder) GasLimit(g uint64) *RevealBuilder       { b.managerInput.GasLimit = ptr(g); return b }
func (b *RevealBuilder) StorageLimit(s uint64) *RevealBuilder   { b.managerInput.StorageLimit = ptr(s); return b }
func (b *RevealBuilder) Key(pk crypto.PublicKey) *RevealBuilder { b.PublicKey = &pk; return b }

func (b *RevealBuilder) KeyString(s string) *RevealBuilder {
	pk, err := crypto.ParsePublicKey(s)
	if err != nil {
		b.setErr(invalid("public_key", err))
		return b
	}
	b.PublicKey = &pk
	return b
}

func (b *RevealBuilder) Build() (*Reveal, error) {
	m, err := b.build(b)
	if err != nil {
		return nil, err
	}
	hash, err := b.PublicKey.Hash()
	if err != nil {
		return nil, invalid("public_key", err)
	}
	if hash != m.Source {
		return nil, invalid("public_key", fmt.Errorf("key hashes to %s, not source %s", hash, m.Source))
	}
	return &Reveal{ManagerFields: m, PublicKey: *b.PublicKey}, nil
}
