package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/splitledger/internal/domain"
	"github.com/iho/splitledger/internal/usecase"
)

// LedgerStore implements usecase.LedgerStore.
type LedgerStore struct {
	pool    queryPool
	retrier *Retrier
	idGen   usecase.IDGenerator
}

// NewLedgerStore creates a new LedgerStore.
func NewLedgerStore(pool *pgxpool.Pool, retrier *Retrier, idGen usecase.IDGenerator) *LedgerStore {
	return newLedgerStoreWithPool(pool, retrier, idGen)
}

func newLedgerStoreWithPool(pool queryPool, retrier *Retrier, idGen usecase.IDGenerator) *LedgerStore {
	return &LedgerStore{pool: pool, retrier: retrier, idGen: idGen}
}

// ListMembers returns the members of a group ordered by id.
func (s *LedgerStore) ListMembers(ctx context.Context, groupID string) ([]domain.Member, error) {
	rows, err := s.pool.Query(ctx, listMembersSQL, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []domain.Member
	for rows.Next() {
		var m domain.Member
		if err := rows.Scan(&m.ID, &m.GroupID, &m.DisplayName); err != nil {
			return nil, err
		}
		members = append(members, m)
	}

	return members, rows.Err()
}

// ListExpenses returns every expense of a group with its splits.
func (s *LedgerStore) ListExpenses(ctx context.Context, groupID string) ([]domain.ExpenseWithSplits, error) {
	rows, err := s.pool.Query(ctx, listExpensesSQL, groupID)
	if err != nil {
		return nil, err
	}

	var records []domain.ExpenseWithSplits
	index := make(map[string]int)
	for rows.Next() {
		var (
			e      domain.Expense
			amount pgtype.Numeric
		)
		if err := rows.Scan(&e.ID, &e.GroupID, &e.Description, &amount, &e.Currency, &e.PaidBy, &e.CreatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		e.Amount = numericToDecimal(amount)
		index[e.ID] = len(records)
		records = append(records, domain.ExpenseWithSplits{Expense: e})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	splitRows, err := s.pool.Query(ctx, listSplitsSQL, groupID)
	if err != nil {
		return nil, err
	}
	defer splitRows.Close()

	for splitRows.Next() {
		var (
			sp    domain.ExpenseSplit
			share pgtype.Numeric
		)
		if err := splitRows.Scan(&sp.ExpenseID, &sp.MemberID, &share); err != nil {
			return nil, err
		}
		sp.ShareAmount = numericToDecimal(share)

		i, ok := index[sp.ExpenseID]
		if !ok {
			// The expense was inserted between the two reads.
			continue
		}
		records[i].Splits = append(records[i].Splits, sp)
	}

	return records, splitRows.Err()
}

// ListSettlements returns every settlement of a group, oldest first.
func (s *LedgerStore) ListSettlements(ctx context.Context, groupID string) ([]domain.Settlement, error) {
	rows, err := s.pool.Query(ctx, listSettlementsSQL, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var settlements []domain.Settlement
	for rows.Next() {
		var (
			st     domain.Settlement
			amount pgtype.Numeric
			status string
		)
		if err := rows.Scan(&st.ID, &st.GroupID, &st.FromMemberID, &st.ToMemberID, &amount, &status,
			&st.ChainRef, &st.TransactionHash, &st.CreatedAt); err != nil {
			return nil, err
		}
		st.Amount = numericToDecimal(amount)
		st.Status = domain.SettlementStatus(status)
		settlements = append(settlements, st)
	}

	return settlements, rows.Err()
}

// ResolveWalletAddress returns the member's wallet address.
func (s *LedgerStore) ResolveWalletAddress(ctx context.Context, memberID string) (string, error) {
	var wallet pgtype.Text
	if err := s.pool.QueryRow(ctx, walletAddressSQL, memberID).Scan(&wallet); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domain.ErrMemberNotFound
		}
		return "", err
	}

	if !wallet.Valid || wallet.String == "" {
		return "", domain.ErrRecipientWalletNotFound
	}

	return wallet.String, nil
}

// RecordSettlement writes the settlement and its settlement.completed event in
// one transaction. Retries on serialization failures reuse the settlement id,
// so a write that committed before the error cannot be duplicated; it comes
// back as ErrDuplicateSettlement instead.
func (s *LedgerStore) RecordSettlement(ctx context.Context, settlement *domain.Settlement) error {
	if err := settlement.Validate(); err != nil {
		return err
	}
	if settlement.CreatedAt.IsZero() {
		settlement.CreatedAt = time.Now().UTC()
	}

	ctx, cancel := context.WithTimeout(ctx, usecase.DefaultTransactionTimeout)
	defer cancel()

	err := s.retrier.Retry(ctx, func() error {
		return s.recordSettlementOnce(ctx, settlement)
	})
	if err != nil && !errors.Is(err, domain.ErrDuplicateSettlement) {
		return fmt.Errorf("record settlement %s: %w", settlement.ID, err)
	}

	return err
}

func (s *LedgerStore) recordSettlementOnce(ctx context.Context, settlement *domain.Settlement) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, insertSettlementSQL,
		settlement.ID,
		settlement.GroupID,
		settlement.FromMemberID,
		settlement.ToMemberID,
		decimalToNumeric(settlement.Amount),
		string(settlement.Status),
		settlement.ChainRef,
		settlement.TransactionHash,
		timeToPgTimestamptz(settlement.CreatedAt),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDuplicateSettlement
	}

	if settlement.Status == domain.SettlementStatusCompleted {
		event := domain.NewSettlementCompletedEvent(s.idGen.Generate(), settlement)
		if err := insertOutboxEvent(ctx, tx, event); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}
