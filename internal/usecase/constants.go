package usecase

import "time"

const (
	// DefaultTransactionTimeout bounds a single ledger write, including the
	// settlement row recorded after a transfer has already landed.
	DefaultTransactionTimeout = 10 * time.Second

	// DefaultSettlementAsset is the stablecoin used for expenses and
	// settlements that do not name one.
	DefaultSettlementAsset = "USDC"

	// IdempotencyKeyTTL is how long a replayable response is kept.
	IdempotencyKeyTTL = 24 * time.Hour
)
