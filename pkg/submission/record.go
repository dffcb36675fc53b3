package submission

import (
	"fmt"
	"time"

	"github.com/Layr-Labs/tezos-client-go/pkg/crypto"
	"github.com/Layr-Labs/tezos-client-go/pkg/persistence"
)

// Record converts res into its stored form.
func (res *Result) Record() *persistence.SubmissionRecord {
	record := &persistence.SubmissionRecord{
		ID:        res.ID,
		State:     res.State.String(),
		Kinds:     []string{},
		Polls:     res.Polls,
		CreatedAt: res.createdAt.Unix(),
	}
	if res.source.IsValid() {
		record.Source = res.source.String()
	}
	if !res.Branch.IsZero() {
		record.Branch = res.Branch.String()
	}
	if !res.OperationHash.IsZero() {
		record.OperationHash = res.OperationHash.String()
	}
	if res.State == StateFailed {
		record.FailedAt = res.FailedAt.String()
	}
	if res.err != nil {
		record.Error = res.err.Error()
	}
	if len(res.Operations) == 0 && res.stored != nil {
		record.Kinds = append(record.Kinds, res.stored.Kinds...)
		record.Counter = res.stored.Counter
		record.TotalFee = res.stored.TotalFee
	}
	for i, op := range res.Operations {
		if i == 0 {
			record.Counter = op.GetCounter()
		}
		record.Kinds = append(record.Kinds, op.KindString())
		record.TotalFee += op.GetFee()
	}
	return record
}

// Err is the error the submission ended with, if any.
func (res *Result) Err() error { return res.err }

func (res *Result) Source() crypto.Address { return res.source }

func resultFromRecord(record *persistence.SubmissionRecord) (*Result, error) {
	state, ok := ParseState(record.State)
	if !ok {
		return nil, fmt.Errorf("submission %s has unknown state %q", record.ID, record.State)
	}
	res := &Result{
		ID:        record.ID,
		State:     state,
		Polls:     record.Polls,
		createdAt: time.Unix(record.CreatedAt, 0),
		stored:    persistence.CopySubmissionRecord(record),
	}
	if record.FailedAt != "" {
		res.FailedAt, _ = ParseState(record.FailedAt)
	}
	var err error
	if record.Source != "" {
		if res.source, err = crypto.ParseAddress(record.Source); err != nil {
			return nil, fmt.Errorf("submission %s: %w", record.ID, err)
		}
	}
	if record.Branch != "" {
		if res.Branch, err = crypto.ParseBlockHash(record.Branch); err != nil {
			return nil, fmt.Errorf("submission %s: %w", record.ID, err)
		}
	}
	if record.OperationHash != "" {
		if res.OperationHash, err = crypto.ParseOperationHash(record.OperationHash); err != nil {
			return nil, fmt.Errorf("submission %s: %w", record.ID, err)
		}
	}
	return res, nil
}

// persist saves res when a store is configured. Storage failures are logged
// and never fail the submission.
func (p *Pipeline) persist(res *Result) {
	if p.config.Store == nil {
		return
	}
	record := res.Record()
	record.UpdatedAt = p.clock.Now().Unix()
	if err := p.config.Store.SaveSubmission(record); err != nil {
		p.logger.Sugar().Warnw("Failed to save submission record", "id", res.ID, "error", err)
	}
}
