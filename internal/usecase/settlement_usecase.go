package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/splitledger/internal/domain"
)

// SettlementUseCase discharges a single net debt: it checks the payer's
// cross-chain balance, picks the funding chains, runs the transfer and records
// the settlement exactly once.
type SettlementUseCase struct {
	store     LedgerStore
	balances  ChainBalanceProvider
	transfers TransferExecutor
	locker    PairLocker
	idGen     IDGenerator
	metrics   SettlementMetrics
	logger    zerolog.Logger
	asset     string
	now       func() time.Time
}

// NewSettlementUseCase creates a new SettlementUseCase. metrics may be nil.
func NewSettlementUseCase(
	store LedgerStore,
	balances ChainBalanceProvider,
	transfers TransferExecutor,
	locker PairLocker,
	idGen IDGenerator,
	metrics SettlementMetrics,
	logger zerolog.Logger,
) *SettlementUseCase {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &SettlementUseCase{
		store:     store,
		balances:  balances,
		transfers: transfers,
		locker:    locker,
		idGen:     idGen,
		metrics:   metrics,
		logger:    logger,
		asset:     DefaultSettlementAsset,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithDefaultAsset sets the asset used when SettleDebtInput.Asset is empty.
func (uc *SettlementUseCase) WithDefaultAsset(asset string) *SettlementUseCase {
	if asset != "" {
		uc.asset = asset
	}
	return uc
}

// StepEvent is emitted on every state transition of a settlement attempt.
type StepEvent struct {
	At               time.Time
	Err              error
	GroupID          string
	AttemptID        string
	TxHash           string
	Debt             domain.NetDebt
	SourceChains     []domain.ChainID
	Step             domain.SettlementStep
	DestinationChain domain.ChainID
}

// StepObserver lets the caller observe or persist progress.
type StepObserver func(ctx context.Context, event StepEvent)

// SettleDebtInput represents input for settling one net debt.
type SettleDebtInput struct {
	Observer StepObserver
	GroupID  string
	Asset    string
	Debt     domain.NetDebt
}

// SettleDebt runs one settlement attempt.
//
// Preconditions (invalid debt, busy pair, a debt that no longer matches the
// ledger, unknown wallets, unreadable chain balances) fail with a nil outcome.
// Once balances are known the attempt always returns an outcome; for anything
// but a completed settlement it also returns a *domain.SettlementError
// wrapping ErrInsufficientFunds, ErrTransferFailed, ErrApprovalRequired,
// ErrTransferOutcomeUnknown or ErrRecordingFailed.
//
// Nothing is retried here: a failed transfer writes no row, and a failed
// record after a successful transfer is reported as RecordingFailed with the
// transaction hash so it can be reconciled by hand. A transfer that was sent
// without a definite answer is reported as TransferUnknown with the attempt
// id, which doubles as the transfer's idempotency key.
func (uc *SettlementUseCase) SettleDebt(ctx context.Context, input SettleDebtInput) (*domain.SettlementOutcome, error) {
	if input.GroupID == "" {
		return nil, domain.ErrGroupNotFound
	}
	if err := input.Debt.Validate(); err != nil {
		return nil, err
	}

	asset := input.Asset
	if asset == "" {
		asset = uc.asset
	}
	if err := domain.ValidateAsset(asset); err != nil {
		return nil, err
	}

	release, acquired, err := uc.locker.TryLock(ctx, settlementLockKey(input.GroupID, input.Debt))
	if err != nil {
		return nil, fmt.Errorf("acquire settlement lock: %w", err)
	}
	if !acquired {
		return nil, domain.ErrSettlementInProgress
	}
	defer release()

	// Another attempt may have settled the pair between the caller's read and
	// the lock, so the debt is derived again from a fresh read.
	if err := uc.checkDebtCurrent(ctx, input.GroupID, input.Debt); err != nil {
		return nil, err
	}

	a := &attempt{
		uc:      uc,
		input:   input,
		asset:   asset,
		started: uc.now(),
		log: uc.logger.With().
			Str("group_id", input.GroupID).
			Str("from", input.Debt.FromMemberID).
			Str("to", input.Debt.ToMemberID).
			Str("amount", input.Debt.Amount.String()).
			Str("asset", asset).
			Logger(),
	}

	return a.run(ctx)
}

func (uc *SettlementUseCase) checkDebtCurrent(ctx context.Context, groupID string, debt domain.NetDebt) error {
	ledger, err := readGroupLedger(ctx, uc.store, groupID)
	if err != nil {
		return err
	}

	current, ok := ledger.Debt(debt.FromMemberID, debt.ToMemberID)
	if !ok {
		return fmt.Errorf("%w: %s no longer owes %s", domain.ErrDebtChanged, debt.FromMemberID, debt.ToMemberID)
	}
	if current.Amount.Sub(debt.Amount).Abs().GreaterThan(domain.Epsilon) {
		return fmt.Errorf("%w: current amount is %s", domain.ErrDebtChanged, current.Amount.StringFixed(2))
	}
	return nil
}

// attempt carries the state of one SettleDebt call.
type attempt struct {
	started time.Time
	uc      *SettlementUseCase
	input   SettleDebtInput
	asset   string
	log     zerolog.Logger
	sources []domain.ChainID
	dest    domain.ChainID
	// id is assigned right before the transfer is submitted.
	id     string
	txHash string
	step   domain.SettlementStep
}

func (a *attempt) run(ctx context.Context) (*domain.SettlementOutcome, error) {
	debt := a.input.Debt

	payer, err := a.resolveWallet(ctx, debt.FromMemberID)
	if err != nil {
		return nil, err
	}
	recipient, err := a.resolveWallet(ctx, debt.ToMemberID)
	if err != nil {
		return nil, err
	}

	balances, err := a.uc.balances.GetBalances(ctx, payer, a.asset)
	if err != nil {
		a.log.Warn().Err(err).Msg("chain balance query failed")
		return nil, a.fail(ctx, domain.ErrChainBalanceUnavailable, err.Error())
	}

	perChain := mergeBalances(balances)
	available := decimal.Zero
	for _, b := range perChain {
		available = available.Add(b.Amount)
	}
	a.advance(ctx, domain.StepBalanceChecked, nil)

	if available.LessThan(debt.Amount) {
		reason := fmt.Sprintf("available %s, required %s", available.String(), debt.Amount.String())
		outcome := a.outcome(domain.OutcomeInsufficientFunds)
		outcome.Available = available
		outcome.Reason = reason
		return outcome, a.fail(ctx, domain.ErrInsufficientFunds, reason)
	}

	// available >= debt.Amount > Epsilon, so at least one chain is funded.
	a.sources, a.dest = selectChains(perChain)
	a.advance(ctx, domain.StepChainsSelected, nil)

	// Past this point funds may move. The caller going away must not stop the
	// attempt from reaching a definite result and being recorded.
	ctx = context.WithoutCancel(ctx)
	a.id = a.uc.idGen.Generate()
	a.log = a.log.With().Str("attempt_id", a.id).Logger()
	a.advance(ctx, domain.StepTransferInFlight, nil)

	result, err := a.uc.transfers.Transfer(ctx, domain.TransferInstruction{
		IdempotencyKey:   a.id,
		Asset:            a.asset,
		Amount:           debt.Amount,
		DestinationChain: a.dest,
		RecipientAddress: recipient,
		SourceChains:     a.sources,
	})
	if errors.Is(err, domain.ErrTransferOutcomeUnknown) {
		outcome := a.outcome(domain.OutcomeTransferUnknown)
		outcome.Available = available
		outcome.Reason = err.Error()
		a.log.Error().Err(err).Msg("transfer outcome unknown, reconcile before settling this pair again")
		return outcome, a.fail(ctx, domain.ErrTransferOutcomeUnknown, err.Error())
	}
	if reason, failed := transferFailure(result, err); failed {
		kind := domain.ClassifyTransferFailure(reason)
		a.step = domain.StepChainsSelected
		outcome := a.outcome(domain.OutcomeTransferFailed)
		outcome.Available = available
		outcome.Reason = reason
		outcome.ApprovalRequired = kind == domain.TransferFailureApproval

		cause := domain.ErrTransferFailed
		if outcome.ApprovalRequired {
			cause = domain.ErrApprovalRequired
		}
		a.log.Warn().Str("failure_kind", string(kind)).Str("reason", reason).Msg("cross-chain transfer failed")
		return outcome, a.fail(ctx, cause, reason)
	}
	a.txHash = result.TransactionHash

	settlement := &domain.Settlement{
		ID:              a.id,
		GroupID:         a.input.GroupID,
		FromMemberID:    debt.FromMemberID,
		ToMemberID:      debt.ToMemberID,
		Amount:          debt.Amount,
		Status:          domain.SettlementStatusCompleted,
		ChainRef:        a.dest.String(),
		TransactionHash: a.txHash,
		CreatedAt:       a.uc.now(),
	}

	if err := a.uc.store.RecordSettlement(ctx, settlement); err != nil && !errors.Is(err, domain.ErrDuplicateSettlement) {
		outcome := a.outcome(domain.OutcomeRecordingFailed)
		outcome.Available = available
		outcome.Settlement = settlement
		outcome.Reason = err.Error()
		a.log.Error().Err(err).
			Str("settlement_id", settlement.ID).
			Str("tx_hash", a.txHash).
			Msg("funds moved but settlement was not recorded")
		return outcome, a.fail(ctx, domain.ErrRecordingFailed, err.Error())
	}

	a.advance(ctx, domain.StepRecorded, nil)
	outcome := a.outcome(domain.OutcomeCompleted)
	outcome.Available = available
	outcome.Settlement = settlement
	a.uc.metrics.ObserveSettlement(domain.OutcomeCompleted, a.uc.now().Sub(a.started))
	a.log.Info().
		Str("settlement_id", settlement.ID).
		Str("tx_hash", a.txHash).
		Str("chain", domain.ChainName(a.dest)).
		Msg("settlement recorded")

	return outcome, nil
}

func (a *attempt) resolveWallet(ctx context.Context, memberID string) (string, error) {
	addr, err := a.uc.store.ResolveWalletAddress(ctx, memberID)
	if err != nil {
		if errors.Is(err, domain.ErrRecipientWalletNotFound) || errors.Is(err, domain.ErrMemberNotFound) {
			return "", fmt.Errorf("%w: member %s", domain.ErrRecipientWalletNotFound, memberID)
		}
		return "", unavailable("resolve wallet", err)
	}
	if err := domain.ValidateWalletAddress(addr); err != nil {
		return "", fmt.Errorf("%w: member %s: %w", domain.ErrRecipientWalletNotFound, memberID, err)
	}
	return addr, nil
}

func (a *attempt) advance(ctx context.Context, step domain.SettlementStep, err error) {
	if step != domain.StepFailed {
		a.step = step
	}
	a.uc.metrics.ObserveStep(step)
	a.log.Info().Str("step", step.String()).Msg("settlement step")

	if a.input.Observer != nil {
		a.input.Observer(ctx, StepEvent{
			At:               a.uc.now(),
			Err:              err,
			GroupID:          a.input.GroupID,
			AttemptID:        a.id,
			TxHash:           a.txHash,
			Debt:             a.input.Debt,
			SourceChains:     a.sources,
			Step:             step,
			DestinationChain: a.dest,
		})
	}
}

// fail emits the Failed transition and builds the error returned to the caller.
func (a *attempt) fail(ctx context.Context, cause error, reason string) error {
	serr := &domain.SettlementError{
		GroupID:   a.input.GroupID,
		Debt:      a.input.Debt,
		Step:      a.step,
		AttemptID: a.id,
		TxHash:    a.txHash,
		Reason:    reason,
		Err:       cause,
	}
	a.advance(ctx, domain.StepFailed, serr)

	if status, ok := outcomeFor(cause); ok {
		a.uc.metrics.ObserveSettlement(status, a.uc.now().Sub(a.started))
	}
	return serr
}

func (a *attempt) outcome(status domain.OutcomeStatus) *domain.SettlementOutcome {
	return &domain.SettlementOutcome{
		Status:           status,
		Step:             a.step,
		GroupID:          a.input.GroupID,
		AttemptID:        a.id,
		Debt:             a.input.Debt,
		TxHash:           a.txHash,
		DestinationChain: a.dest,
		SourceChains:     a.sources,
	}
}

func outcomeFor(cause error) (domain.OutcomeStatus, bool) {
	switch {
	case errors.Is(cause, domain.ErrInsufficientFunds):
		return domain.OutcomeInsufficientFunds, true
	case errors.Is(cause, domain.ErrTransferFailed), errors.Is(cause, domain.ErrApprovalRequired):
		return domain.OutcomeTransferFailed, true
	case errors.Is(cause, domain.ErrTransferOutcomeUnknown):
		return domain.OutcomeTransferUnknown, true
	case errors.Is(cause, domain.ErrRecordingFailed):
		return domain.OutcomeRecordingFailed, true
	}
	return "", false
}

func transferFailure(result *domain.TransferResult, err error) (string, bool) {
	switch {
	case err != nil:
		return err.Error(), true
	case result == nil:
		return "transfer executor returned no result", true
	case !result.Success:
		if result.Error == "" {
			return "transfer was not successful", true
		}
		return result.Error, true
	}
	return "", false
}

// mergeBalances sums duplicate chain entries and drops non-positive ones.
func mergeBalances(balances []domain.ChainBalance) []domain.ChainBalance {
	sums := make(map[domain.ChainID]decimal.Decimal, len(balances))
	for _, b := range balances {
		sums[b.ChainID] = sums[b.ChainID].Add(b.Amount)
	}

	out := make([]domain.ChainBalance, 0, len(sums))
	for id, amount := range sums {
		if amount.IsPositive() {
			out = append(out, domain.ChainBalance{ChainID: id, Amount: amount})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChainID < out[j].ChainID })
	return out
}

// selectChains uses every funded chain as a source. The destination is the
// chain with the largest balance; ties go to the lowest chain id.
func selectChains(balances []domain.ChainBalance) ([]domain.ChainID, domain.ChainID) {
	if len(balances) == 0 {
		return nil, 0
	}

	sources := make([]domain.ChainID, 0, len(balances))
	best := balances[0]
	for _, b := range balances {
		sources = append(sources, b.ChainID)
		if b.Amount.GreaterThan(best.Amount) {
			best = b
		}
	}
	return sources, best.ChainID
}

func settlementLockKey(groupID string, debt domain.NetDebt) string {
	return groupID + ":" + debt.PairKey()
}

type nopMetrics struct{}

func (nopMetrics) ObserveSettlement(domain.OutcomeStatus, time.Duration) {}
func (nopMetrics) ObserveStep(domain.SettlementStep) {}
