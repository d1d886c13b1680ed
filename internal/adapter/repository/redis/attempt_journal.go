package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/splitledger/internal/domain"
	"github.com/iho/splitledger/internal/usecase"
)

// attemptRecord is the stored form of a domain.SettlementAttempt.
type attemptRecord struct {
	UpdatedAt        time.Time        `json:"updated_at"`
	GroupID          string           `json:"group_id"`
	AttemptID        string           `json:"attempt_id,omitempty"`
	FromMemberID     string           `json:"from_member_id"`
	ToMemberID       string           `json:"to_member_id"`
	Amount           decimal.Decimal  `json:"amount"`
	Step             string           `json:"step"`
	TxHash           string           `json:"tx_hash,omitempty"`
	Error            string           `json:"error,omitempty"`
	SourceChains     []domain.ChainID `json:"source_chains,omitempty"`
	DestinationChain domain.ChainID   `json:"destination_chain,omitempty"`
	Unresolved       bool             `json:"unresolved,omitempty"`
}

// AttemptJournal keeps the latest step event per group pair in Redis. A
// transfer hash survives here even when recording the settlement failed.
// Attempts that failed after their transfer was sent are unresolved: they are
// kept without expiry and are not replaced by other attempts until Clear.
type AttemptJournal struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger zerolog.Logger
}

// NewAttemptJournal creates a new AttemptJournal.
func NewAttemptJournal(client *redis.Client, ttl time.Duration, logger zerolog.Logger) *AttemptJournal {
	return &AttemptJournal{
		client: client,
		prefix: "settlement-attempt:",
		ttl:    ttl,
		logger: logger,
	}
}

func (j *AttemptJournal) key(groupID, a, b string) string {
	return j.prefix + groupID + ":" + domain.PairKey(a, b)
}

// Record stores event as the latest state of its pair.
func (j *AttemptJournal) Record(ctx context.Context, event usecase.StepEvent) error {
	rec := attemptRecord{
		UpdatedAt:        event.At.UTC(),
		GroupID:          event.GroupID,
		AttemptID:        event.AttemptID,
		FromMemberID:     event.Debt.FromMemberID,
		ToMemberID:       event.Debt.ToMemberID,
		Amount:           event.Debt.Amount,
		Step:             event.Step.String(),
		TxHash:           event.TxHash,
		SourceChains:     event.SourceChains,
		DestinationChain: event.DestinationChain,
	}
	if event.Err != nil {
		rec.Error = event.Err.Error()
		rec.Unresolved = domain.IsUnresolvedFailure(event.Err)
	}

	key := j.key(event.GroupID, event.Debt.FromMemberID, event.Debt.ToMemberID)

	prev, err := j.get(ctx, key)
	if err != nil && !errors.Is(err, domain.ErrAttemptNotFound) {
		return err
	}
	if prev != nil {
		if prev.Unresolved && prev.AttemptID != rec.AttemptID {
			return fmt.Errorf("%w: attempt %s", domain.ErrUnreconciledAttempt, prev.AttemptID)
		}
		// A failure after the transfer must not hide the hash already journaled.
		if rec.TxHash == "" && prev.AttemptID == rec.AttemptID {
			rec.TxHash = prev.TxHash
		}
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal attempt: %w", err)
	}

	ttl := j.ttl
	if rec.Unresolved {
		ttl = 0
	}
	return j.client.Set(ctx, key, data, ttl).Err()
}

// Clear forgets the attempt of a pair once it has been reconciled.
func (j *AttemptJournal) Clear(ctx context.Context, groupID, a, b string) error {
	n, err := j.client.Del(ctx, j.key(groupID, a, b)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrAttemptNotFound
	}
	return nil
}

// Observer adapts the journal to a settlement StepObserver. Write failures
// are logged and never interrupt the settlement.
func (j *AttemptJournal) Observer() usecase.StepObserver {
	return func(ctx context.Context, event usecase.StepEvent) {
		if err := j.Record(context.WithoutCancel(ctx), event); err != nil {
			j.logger.Warn().
				Err(err).
				Str("group_id", event.GroupID).
				Str("step", event.Step.String()).
				Msg("failed to journal settlement step")
		}
	}
}

// Latest returns the most recent attempt for the unordered pair a, b.
func (j *AttemptJournal) Latest(ctx context.Context, groupID, a, b string) (*domain.SettlementAttempt, error) {
	rec, err := j.get(ctx, j.key(groupID, a, b))
	if err != nil {
		return nil, err
	}

	step, ok := domain.ParseSettlementStep(rec.Step)
	if !ok {
		return nil, fmt.Errorf("unknown settlement step %q", rec.Step)
	}

	return &domain.SettlementAttempt{
		UpdatedAt: rec.UpdatedAt,
		GroupID:   rec.GroupID,
		AttemptID: rec.AttemptID,
		TxHash:    rec.TxHash,
		Error:     rec.Error,
		Debt: domain.NetDebt{
			FromMemberID: rec.FromMemberID,
			ToMemberID:   rec.ToMemberID,
			Amount:       rec.Amount,
		},
		SourceChains:     rec.SourceChains,
		Step:             step,
		DestinationChain: rec.DestinationChain,
		Unresolved:       rec.Unresolved,
	}, nil
}

func (j *AttemptJournal) get(ctx context.Context, key string) (*attemptRecord, error) {
	data, err := j.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrAttemptNotFound
		}
		return nil, err
	}

	var rec attemptRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal attempt: %w", err)
	}

	return &rec, nil
}
