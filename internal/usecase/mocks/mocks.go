package mocks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/iho/splitledger/internal/domain"
	"github.com/iho/splitledger/internal/usecase"
)

// FakeLedgerStore is an in-memory LedgerStore. Any Func field overrides the
// default behaviour of its method.
type FakeLedgerStore struct {
	mu          sync.RWMutex
	members     map[string][]domain.Member
	expenses    map[string][]domain.ExpenseWithSplits
	settlements map[string][]domain.Settlement
	wallets     map[string]string

	ListMembersFunc          func(ctx context.Context, groupID string) ([]domain.Member, error)
	ListExpensesFunc         func(ctx context.Context, groupID string) ([]domain.ExpenseWithSplits, error)
	ListSettlementsFunc      func(ctx context.Context, groupID string) ([]domain.Settlement, error)
	ResolveWalletAddressFunc func(ctx context.Context, memberID string) (string, error)
	RecordSettlementFunc     func(ctx context.Context, settlement *domain.Settlement) error

	RecordCalls int
}

func NewFakeLedgerStore() *FakeLedgerStore {
	return &FakeLedgerStore{
		members:     make(map[string][]domain.Member),
		expenses:    make(map[string][]domain.ExpenseWithSplits),
		settlements: make(map[string][]domain.Settlement),
		wallets:     make(map[string]string),
	}
}

// AddMember adds a member to a group with its wallet address.
func (m *FakeLedgerStore) AddMember(groupID, memberID, wallet string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.members[groupID] = append(m.members[groupID], domain.Member{ID: memberID, GroupID: groupID, DisplayName: memberID})
	if wallet != "" {
		m.wallets[memberID] = wallet
	}
}

// AddExpense stores an expense with its splits.
func (m *FakeLedgerStore) AddExpense(e domain.ExpenseWithSplits) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expenses[e.Expense.GroupID] = append(m.expenses[e.Expense.GroupID], e)
}

func (m *FakeLedgerStore) ListMembers(ctx context.Context, groupID string) ([]domain.Member, error) {
	if m.ListMembersFunc != nil {
		return m.ListMembersFunc(ctx, groupID)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.Member(nil), m.members[groupID]...), nil
}

func (m *FakeLedgerStore) ListExpenses(ctx context.Context, groupID string) ([]domain.ExpenseWithSplits, error) {
	if m.ListExpensesFunc != nil {
		return m.ListExpensesFunc(ctx, groupID)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.ExpenseWithSplits(nil), m.expenses[groupID]...), nil
}

func (m *FakeLedgerStore) ListSettlements(ctx context.Context, groupID string) ([]domain.Settlement, error) {
	if m.ListSettlementsFunc != nil {
		return m.ListSettlementsFunc(ctx, groupID)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.Settlement(nil), m.settlements[groupID]...), nil
}

func (m *FakeLedgerStore) ResolveWalletAddress(ctx context.Context, memberID string) (string, error) {
	if m.ResolveWalletAddressFunc != nil {
		return m.ResolveWalletAddressFunc(ctx, memberID)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if addr, ok := m.wallets[memberID]; ok {
		return addr, nil
	}
	return "", domain.ErrRecipientWalletNotFound
}

func (m *FakeLedgerStore) RecordSettlement(ctx context.Context, settlement *domain.Settlement) error {
	m.mu.Lock()
	m.RecordCalls++
	m.mu.Unlock()

	if m.RecordSettlementFunc != nil {
		return m.RecordSettlementFunc(ctx, settlement)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.settlements[settlement.GroupID] {
		if s.ID == settlement.ID {
			return nil
		}
	}
	m.settlements[settlement.GroupID] = append(m.settlements[settlement.GroupID], *settlement)
	return nil
}

// FakeExpenseRepository keeps created expenses in memory.
type FakeExpenseRepository struct {
	mu      sync.Mutex
	Created []*domain.ExpenseWithSplits

	CreateFunc func(ctx context.Context, tx usecase.Transaction, expense *domain.ExpenseWithSplits) error
}

func NewFakeExpenseRepository() *FakeExpenseRepository {
	return &FakeExpenseRepository{}
}

func (m *FakeExpenseRepository) Create(ctx context.Context, tx usecase.Transaction, expense *domain.ExpenseWithSplits) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tx, expense)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Created = append(m.Created, expense)
	return nil
}

// FakeOutboxRepository keeps outbox events in memory.
type FakeOutboxRepository struct {
	mu     sync.Mutex
	events []*domain.OutboxEvent

	CreateFunc func(ctx context.Context, tx usecase.Transaction, event *domain.OutboxEvent) error
}

func NewFakeOutboxRepository() *FakeOutboxRepository {
	return &FakeOutboxRepository{}
}

func (m *FakeOutboxRepository) Create(ctx context.Context, tx usecase.Transaction, event *domain.OutboxEvent) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tx, event)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *FakeOutboxRepository) GetUnpublished(_ context.Context, limit int) ([]*domain.OutboxEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.OutboxEvent
	for _, e := range m.events {
		if !e.Published && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *FakeOutboxRepository) MarkPublished(_ context.Context, id string, publishedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.events {
		if e.ID == id {
			e.Published = true
			e.PublishedAt = &publishedAt
		}
	}
	return nil
}

func (m *FakeOutboxRepository) DeletePublished(_ context.Context, before time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.events[:0]
	for _, e := range m.events {
		if e.Published && e.PublishedAt != nil && e.PublishedAt.Before(before) {
			continue
		}
		kept = append(kept, e)
	}
	m.events = kept
	return nil
}

// Events returns every stored event.
func (m *FakeOutboxRepository) Events() []*domain.OutboxEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.OutboxEvent(nil), m.events...)
}

// FakeTransactionManager is a function-field TransactionManager.
type FakeTransactionManager struct {
	BeginFunc func(ctx context.Context) (usecase.Transaction, error)
}

func NewFakeTransactionManager() *FakeTransactionManager {
	return &FakeTransactionManager{}
}

func (m *FakeTransactionManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	if m.BeginFunc != nil {
		return m.BeginFunc(ctx)
	}
	return &FakeTransaction{}, nil
}

// FakeTransaction is a function-field Transaction.
type FakeTransaction struct {
	CommitFunc   func(ctx context.Context) error
	RollbackFunc func(ctx context.Context) error
	Committed    bool
}

func (m *FakeTransaction) Commit(ctx context.Context) error {
	if m.CommitFunc != nil {
		return m.CommitFunc(ctx)
	}
	m.Committed = true
	return nil
}

func (m *FakeTransaction) Rollback(ctx context.Context) error {
	if m.RollbackFunc != nil {
		return m.RollbackFunc(ctx)
	}
	return nil
}

// FakeIDGenerator returns fake-id-1, fake-id-2, ...
type FakeIDGenerator struct {
	GenerateFunc func() string
	counter      int
	mu           sync.Mutex
}

func NewFakeIDGenerator() *FakeIDGenerator {
	return &FakeIDGenerator{}
}

func (m *FakeIDGenerator) Generate() string {
	if m.GenerateFunc != nil {
		return m.GenerateFunc()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counter++
	return fmt.Sprintf("fake-id-%d", m.counter)
}

// FakeIdempotencyStore is an in-memory IdempotencyStore.
type FakeIdempotencyStore struct {
	mu   sync.RWMutex
	data map[string][]byte

	CheckAndSetFunc func(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	UpdateFunc      func(ctx context.Context, key string, response []byte, ttl time.Duration) error
}

func NewFakeIdempotencyStore() *FakeIdempotencyStore {
	return &FakeIdempotencyStore{
		data: make(map[string][]byte),
	}
}

func (m *FakeIdempotencyStore) CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error) {
	if m.CheckAndSetFunc != nil {
		return m.CheckAndSetFunc(ctx, key, response, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.data[key]; ok {
		return true, existing, nil
	}
	if response != nil {
		m.data[key] = response
	} else {
		m.data[key] = []byte("processing")
	}
	return false, nil, nil
}

func (m *FakeIdempotencyStore) Update(ctx context.Context, key string, response []byte, ttl time.Duration) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, key, response, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = response
	return nil
}

func (m *FakeIdempotencyStore) Release(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}
