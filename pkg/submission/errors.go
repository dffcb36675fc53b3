package submission

import (
	"errors"
	"fmt"

	"github.com/Layr-Labs/tezos-client-go/pkg/crypto"
)

type ErrorKind int

const (
	// KindNodeState: fetching protocol, head, counter, manager key or
	// constants failed, or the node serves an unexpected chain.
	KindNodeState ErrorKind = iota + 1
	// KindBuild: the caller's BuildFunc failed or produced an invalid group.
	KindBuild
	KindForge
	// KindForgeMismatch: the node forged different bytes than the local forger.
	KindForgeMismatch
	KindSign
	KindPreapplyRejected
	KindInject
	KindPoll
	KindRefused
	KindTimedOut
)

func (k ErrorKind) String() string {
	switch k {
	case KindNodeState:
		return "node state"
	case KindBuild:
		return "build"
	case KindForge:
		return "forge"
	case KindForgeMismatch:
		return "forge mismatch"
	case KindSign:
		return "sign"
	case KindPreapplyRejected:
		return "preapply rejected"
	case KindInject:
		return "inject"
	case KindPoll:
		return "poll"
	case KindRefused:
		return "refused"
	case KindTimedOut:
		return "timed out"
	}
	return "submission"
}

var (
	ErrRefused          = errors.New("operation refused")
	ErrPreapplyRejected = errors.New("preapply rejected")
	ErrTimedOut         = errors.New("confirmation timed out")
)

// SubmissionError reports where a submission stopped. OperationHash is set
// once injection returned one.
type SubmissionError struct {
	Kind          ErrorKind
	State         State
	OperationHash crypto.OperationHash
	Err           error
}

func (e *SubmissionError) Error() string {
	msg := fmt.Sprintf("submission %s at %s", e.Kind, e.State)
	if !e.OperationHash.IsZero() {
		msg += fmt.Sprintf(" (operation %s)", e.OperationHash)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SubmissionError) Unwrap() error { return e.Err }

func (e *SubmissionError) Is(target error) bool {
	switch target {
	case ErrRefused:
		return e.Kind == KindRefused
	case ErrPreapplyRejected:
		return e.Kind == KindPreapplyRejected
	case ErrTimedOut:
		return e.Kind == KindTimedOut
	}
	return false
}

// Fatal is false only for a confirmation timeout: the operation was
// injected and may still be included.
func (e *SubmissionError) Fatal() bool {
	return e.Kind != KindTimedOut
}

// IsTimedOut reports whether err is a non-fatal confirmation timeout.
func IsTimedOut(err error) bool {
	var subErr *SubmissionError
	return errors.As(err, &subErr) && subErr.Kind == KindTimedOut
}
