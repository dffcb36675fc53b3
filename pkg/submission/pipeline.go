package submission

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Layr-Labs/tezos-client-go/pkg/clients/tezosNode"
	"github.com/Layr-Labs/tezos-client-go/pkg/crypto"
	"github.com/Layr-Labs/tezos-client-go/pkg/fees"
	"github.com/Layr-Labs/tezos-client-go/pkg/metrics"
	"github.com/Layr-Labs/tezos-client-go/pkg/operation"
	"github.com/Layr-Labs/tezos-client-go/pkg/operationSigner"
	"github.com/Layr-Labs/tezos-client-go/pkg/persistence"
	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultPollInterval    = 2 * time.Second
	DefaultMaxPollAttempts = 10
)

type Config struct {
	// PollInterval is waited before every status request.
	PollInterval    time.Duration
	MaxPollAttempts int
	Clock           clock.Clock

	// VerifyForge compares the node's forged bytes with the local forger
	// before signing.
	VerifyForge bool
	// EnforceMinimalFees raises fees below the node's floor before forging.
	EnforceMinimalFees bool
	// ExpectedChainID, when set, rejects nodes serving another chain.
	ExpectedChainID *crypto.ChainID

	Metrics *metrics.SubmissionMetrics
	// Store, when set, receives a record at every state change.
	Store persistence.IClientPersistence
}

func DefaultConfig() *Config {
	return &Config{
		PollInterval:       DefaultPollInterval,
		MaxPollAttempts:    DefaultMaxPollAttempts,
		Clock:              clock.New(),
		EnforceMinimalFees: true,
	}
}

// NodeState is the snapshot a submission is built against. It is fetched
// fresh for every submission.
type NodeState struct {
	ChainID crypto.ChainID
	// Protocol is the protocol operations are preapplied under.
	Protocol crypto.ProtocolHash
	Branch   crypto.BlockHash
	// Counter is the source's on-chain counter.
	Counter uint64
	// ManagerKey is nil while the source is unrevealed.
	ManagerKey *crypto.PublicKey
	Constants  *tezosNode.Constants
}

// NextCounter is the counter the first operation of the group must carry.
func (s *NodeState) NextCounter() uint64 { return s.Counter + 1 }

func (s *NodeState) Revealed() bool { return s.ManagerKey != nil }

// BuildFunc turns node state into the operations to submit. Operations
// must carry their counters.
type BuildFunc func(ctx context.Context, state *NodeState) ([]operation.NewOperation, error)

// Result is returned by every submission, successful or not.
type Result struct {
	ID    string
	State State
	// FailedAt is the last state reached when State is StateFailed.
	FailedAt       State
	OperationHash  crypto.OperationHash
	Signature      crypto.Signature
	Branch         crypto.BlockHash
	Polls          int
	LastStatus     tezosNode.PendingStatus
	Operations     []operation.NewOperation
	FeeAdjustments []fees.Adjustment

	source    crypto.Address
	createdAt time.Time
	err       error
	// stored is the record a resumed result was loaded from
	stored *persistence.SubmissionRecord
}

// Pipeline runs forge → sign → preapply → inject → confirm for one
// submission at a time per call. Callers serialize submissions per source;
// concurrent ones race on the counter.
type Pipeline struct {
	node   tezosNode.INodeClient
	signer operationSigner.IOperationSigner
	config *Config
	clock  clock.Clock
	logger *zap.Logger
}

func NewPipeline(
	node tezosNode.INodeClient,
	signer operationSigner.IOperationSigner,
	cfg *Config,
	logger *zap.Logger,
) (*Pipeline, error) {
	if node == nil {
		return nil, fmt.Errorf("node client is required")
	}
	if signer == nil {
		return nil, fmt.Errorf("signer is required")
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive, got %s", cfg.PollInterval)
	}
	if cfg.MaxPollAttempts < 1 {
		return nil, fmt.Errorf("max poll attempts must be at least 1, got %d", cfg.MaxPollAttempts)
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		node:   node,
		signer: signer,
		config: cfg,
		clock:  clk,
		logger: logger,
	}, nil
}

func (p *Pipeline) newResult(source crypto.Address) *Result {
	return &Result{
		ID:        uuid.NewString(),
		State:     StateBuilding,
		source:    source,
		createdAt: p.clock.Now(),
	}
}

// transition moves res to state and records it.
func (p *Pipeline) transition(res *Result, state State, since time.Time) time.Time {
	now := p.clock.Now()
	p.config.Metrics.StageCompleted(state.String(), now.Sub(since))
	res.State = state
	p.logger.Sugar().Infow("Submission state changed",
		"id", res.ID,
		"state", state.String(),
		"source", res.source.String(),
		"branch", res.Branch.String(),
		"operationHash", hashString(res.OperationHash),
	)
	p.persist(res)
	return now
}

// fail ends res in StateFailed, or Refused/TimedOut for those kinds, and
// returns the matching error.
func (p *Pipeline) fail(res *Result, kind ErrorKind, err error) error {
	subErr := &SubmissionError{Kind: kind, State: res.State, OperationHash: res.OperationHash, Err: err}
	switch kind {
	case KindRefused:
		res.State = StateRefused
	case KindTimedOut:
		res.State = StateTimedOut
	default:
		res.FailedAt = res.State
		res.State = StateFailed
	}
	res.err = subErr

	if subErr.Fatal() {
		p.logger.Sugar().Errorw("Submission failed",
			"id", res.ID,
			"kind", kind.String(),
			"state", subErr.State.String(),
			"operationHash", hashString(res.OperationHash),
			"error", err,
		)
	} else {
		p.logger.Sugar().Warnw("Submission not confirmed in time",
			"id", res.ID,
			"operationHash", hashString(res.OperationHash),
			"polls", res.Polls,
		)
	}
	p.persist(res)
	return subErr
}

func (p *Pipeline) finish(res *Result) {
	p.config.Metrics.Finished(res.State.String(), res.Polls)
}

// Submit runs one submission from source. The Result is always returned;
// the error is a *SubmissionError when the submission did not reach
// Confirmed.
func (p *Pipeline) Submit(ctx context.Context, source crypto.Address, build BuildFunc) (*Result, error) {
	res := p.newResult(source)
	p.config.Metrics.Started()
	defer p.finish(res)
	p.persist(res)

	if build == nil {
		return res, p.fail(res, KindBuild, errors.New("build function is required"))
	}
	stageStart := p.clock.Now()

	state, err := p.fetchNodeState(ctx, source)
	if err != nil {
		return res, p.fail(res, KindNodeState, err)
	}
	res.Branch = state.Branch

	ops, err := build(ctx, state)
	if err != nil {
		return res, p.fail(res, KindBuild, err)
	}
	group, err := operation.NewOperationGroup(state.Branch, ops...)
	if err != nil {
		return res, p.fail(res, KindBuild, err)
	}
	if group.Source() != source {
		return res, p.fail(res, KindBuild, fmt.Errorf("operations are from %s, not %s", group.Source(), source))
	}
	res.Operations = group.Contents

	if p.config.EnforceMinimalFees {
		res.FeeAdjustments = fees.ApplyMinimalFees(state.Constants.FeeParameters(), group)
		for _, adj := range res.FeeAdjustments {
			p.logger.Sugar().Warnw("Raised fee to node minimum",
				"id", res.ID,
				"index", adj.Index,
				"kind", adj.Kind,
				"from", adj.From,
				"to", adj.To,
			)
		}
		p.config.Metrics.FeesAdjusted(len(res.FeeAdjustments))
	}

	forged, err := p.node.ForgeOperations(ctx, group)
	if err != nil {
		return res, p.fail(res, KindForge, err)
	}
	if p.config.VerifyForge {
		local, err := operation.Forge(group)
		if err != nil {
			return res, p.fail(res, KindForge, fmt.Errorf("local forge: %w", err))
		}
		if !bytes.Equal(local, forged) {
			return res, p.fail(res, KindForgeMismatch,
				fmt.Errorf("node forged %d bytes that differ from the %d local bytes", len(forged), len(local)))
		}
	}
	stageStart = p.transition(res, StateForged, stageStart)

	signed, err := p.signer.SignOperation(ctx, forged, group)
	if err != nil {
		return res, p.fail(res, KindSign, err)
	}
	res.Signature = signed.Signature()
	stageStart = p.transition(res, StateSigned, stageStart)

	if err := p.preapply(ctx, state.Protocol, group, res.Signature); err != nil {
		return res, p.fail(res, KindPreapplyRejected, err)
	}
	stageStart = p.transition(res, StatePreapplied, stageStart)

	hash, err := p.node.InjectOperation(ctx, signed.OperationWithSignature())
	if err != nil {
		return res, p.fail(res, KindInject, err)
	}
	if hash != signed.OperationHash() {
		p.logger.Sugar().Warnw("Node returned a different operation hash",
			"id", res.ID,
			"node", hash.String(),
			"computed", signed.OperationHash().String(),
		)
	}
	res.OperationHash = hash
	p.transition(res, StateInjected, stageStart)

	return res, p.confirm(ctx, res)
}

// AwaitConfirmation polls for an operation injected earlier, for example
// after a submission timed out.
func (p *Pipeline) AwaitConfirmation(ctx context.Context, hash crypto.OperationHash) (*Result, error) {
	if hash.IsZero() {
		return nil, fmt.Errorf("operation hash is required")
	}
	res := &Result{
		ID:            uuid.NewString(),
		State:         StateInjected,
		OperationHash: hash,
		createdAt:     p.clock.Now(),
	}
	p.config.Metrics.Started()
	defer p.finish(res)
	return res, p.confirm(ctx, res)
}

// Resume continues polling for a stored submission that was injected but
// not confirmed. Terminal records are returned unchanged.
func (p *Pipeline) Resume(ctx context.Context, id string) (*Result, error) {
	if p.config.Store == nil {
		return nil, fmt.Errorf("no submission store configured")
	}
	record, err := p.config.Store.LoadSubmission(id)
	if err != nil {
		return nil, fmt.Errorf("failed to load submission %s: %w", id, err)
	}
	if record == nil {
		return nil, fmt.Errorf("submission %s not found", id)
	}
	res, err := resultFromRecord(record)
	if err != nil {
		return nil, err
	}
	if res.State.Terminal() {
		return res, nil
	}
	if res.OperationHash.IsZero() {
		return res, fmt.Errorf("submission %s was never injected", id)
	}

	res.State = StateInjected
	p.config.Metrics.Started()
	defer p.finish(res)
	return res, p.confirm(ctx, res)
}

func (p *Pipeline) fetchNodeState(ctx context.Context, source crypto.Address) (*NodeState, error) {
	chainID, err := p.node.GetChainID(ctx)
	if err != nil {
		return nil, err
	}
	if want := p.config.ExpectedChainID; want != nil && *want != chainID {
		return nil, fmt.Errorf("node serves chain %s, expected %s", chainID, *want)
	}
	protocols, err := p.node.GetProtocols(ctx)
	if err != nil {
		return nil, err
	}
	branch, err := p.node.GetHeadHash(ctx)
	if err != nil {
		return nil, err
	}
	counter, err := p.node.GetCounter(ctx, source)
	if err != nil {
		return nil, err
	}
	managerKey, err := p.node.GetManagerKey(ctx, source)
	if err != nil {
		return nil, err
	}
	constants, err := p.node.GetConstants(ctx)
	if err != nil {
		return nil, err
	}

	p.logger.Sugar().Debugw("Fetched node state",
		"chainId", chainID.String(),
		"protocol", protocols.NextProtocol.String(),
		"branch", branch.String(),
		"counter", counter,
		"revealed", managerKey != nil,
	)
	return &NodeState{
		ChainID:    chainID,
		Protocol:   protocols.NextProtocol,
		Branch:     branch,
		Counter:    counter,
		ManagerKey: managerKey,
		Constants:  constants,
	}, nil
}

func (p *Pipeline) preapply(
	ctx context.Context,
	protocol crypto.ProtocolHash,
	group *operation.OperationGroup,
	sig crypto.Signature,
) error {
	results, err := p.node.PreapplyOperations(ctx, protocol, group, sig)
	if err != nil {
		var transportErr *tezosNode.TransportError
		if errors.As(err, &transportErr) {
			if ids := nodeErrorIDs(transportErr.NodeErrors()); ids != "" {
				return fmt.Errorf("%s: %w", ids, err)
			}
		}
		return err
	}
	if len(results) != 1 {
		return fmt.Errorf("expected 1 preapply result, got %d", len(results))
	}
	if !results[0].Applied() {
		ids := nodeErrorIDs(results[0].Errors())
		if ids == "" {
			ids = "operation not applied"
		}
		return errors.New(ids)
	}
	return nil
}

// confirm waits PollInterval before each status request, up to
// MaxPollAttempts times. Applied keeps polling; Finished confirms; Refused
// ends the submission. A failed status request uses up an attempt.
func (p *Pipeline) confirm(ctx context.Context, res *Result) error {
	stageStart := p.transition(res, StatePending, p.clock.Now())

	var lastErr error
	for attempt := 1; attempt <= p.config.MaxPollAttempts; attempt++ {
		if err := p.sleep(ctx); err != nil {
			return p.fail(res, KindPoll, err)
		}
		res.Polls++

		status, err := p.node.GetPendingOperationStatus(ctx, res.OperationHash)
		if err != nil {
			if ctx.Err() != nil {
				return p.fail(res, KindPoll, ctx.Err())
			}
			lastErr = err
			p.logger.Sugar().Warnw("Status request failed",
				"id", res.ID,
				"attempt", attempt,
				"error", err,
			)
			continue
		}
		res.LastStatus = status
		p.logger.Sugar().Debugw("Polled operation status",
			"id", res.ID,
			"operationHash", res.OperationHash.String(),
			"attempt", attempt,
			"status", status.String(),
		)

		switch status {
		case tezosNode.StatusRefused:
			return p.fail(res, KindRefused, fmt.Errorf("%w after %d polls", ErrRefused, attempt))
		case tezosNode.StatusFinished:
			p.transition(res, StateConfirmed, stageStart)
			return nil
		}
	}

	err := fmt.Errorf("%w after %d polls", ErrTimedOut, p.config.MaxPollAttempts)
	if lastErr != nil {
		err = fmt.Errorf("%w, last status request failed: %v", err, lastErr)
	}
	return p.fail(res, KindTimedOut, err)
}

func (p *Pipeline) sleep(ctx context.Context) error {
	timer := p.clock.Timer(p.config.PollInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func nodeErrorIDs(errs []tezosNode.NodeError) string {
	ids := make([]string, 0, len(errs))
	for _, e := range errs {
		ids = append(ids, e.String())
	}
	return strings.Join(ids, ", ")
}

func hashString(h crypto.OperationHash) string {
	if h.IsZero() {
		return ""
	}
	return h.String()
}
