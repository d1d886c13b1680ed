package usecase

import (
	"context"
	"time"

	"github.com/iho/splitledger/internal/domain"
)

// LedgerStore is the single source of truth for a group's members, expenses
// and settlements.
type LedgerStore interface {
	ListMembers(ctx context.Context, groupID string) ([]domain.Member, error)
	ListExpenses(ctx context.Context, groupID string) ([]domain.ExpenseWithSplits, error)
	ListSettlements(ctx context.Context, groupID string) ([]domain.Settlement, error)
	ResolveWalletAddress(ctx context.Context, memberID string) (string, error)
	// RecordSettlement must be a single atomic write. Writing the same
	// settlement ID twice must not create a second row.
	RecordSettlement(ctx context.Context, settlement *domain.Settlement) error
}

// ChainBalanceProvider returns the per-chain balance of an asset for a wallet.
type ChainBalanceProvider interface {
	GetBalances(ctx context.Context, wallet, asset string) ([]domain.ChainBalance, error)
}

// TransferExecutor performs an aggregated cross-chain transfer. It owns its
// own timeout and retry policy and must return a definite result.
type TransferExecutor interface {
	Transfer(ctx context.Context, instruction domain.TransferInstruction) (*domain.TransferResult, error)
}

// PairLocker grants exclusive access to one member pair.
type PairLocker interface {
	// TryLock does not wait. acquired is false when another holder owns key.
	TryLock(ctx context.Context, key string) (release func(), acquired bool, err error)
}

// SettlementMetrics receives settlement observations.
type SettlementMetrics interface {
	ObserveSettlement(status domain.OutcomeStatus, duration time.Duration)
	ObserveStep(step domain.SettlementStep)
}

// ExpenseRepository defines data access for expenses.
type ExpenseRepository interface {
	Create(ctx context.Context, tx Transaction, expense *domain.ExpenseWithSplits) error
}

// OutboxRepository defines data access for outbox events.
type OutboxRepository interface {
	Create(ctx context.Context, tx Transaction, event *domain.OutboxEvent) error
	GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkPublished(ctx context.Context, id string, publishedAt time.Time) error
	DeletePublished(ctx context.Context, before time.Time) error
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager handles transaction lifecycle.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// IdempotencyStore handles idempotency key storage.
type IdempotencyStore interface {
	// CheckAndSet atomically checks if key exists, sets if not.
	// Returns (exists, existingValue, error).
	CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	// Update updates an existing key with the final response.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
	// Release drops a claimed key so the request can be retried.
	Release(ctx context.Context, key string) error
}
