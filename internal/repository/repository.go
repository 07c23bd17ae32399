package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"stakemarket/internal/models"
)

// Repository is the storage boundary for the settlement engine and the
// HTTP handlers. Methods with a Tx suffix run against the transaction
// handle passed in and must only be called from inside InTx; the engine
// re-validates every precondition through them so that the whole
// load-compute-apply sequence commits or fails as one unit.
type Repository interface {
	InTx(ctx context.Context, fn func(tx *gorm.DB) error) error

	// Markets.
	CreateMarketTx(ctx context.Context, tx *gorm.DB, market *models.Market, options []models.MarketOption) error
	GetMarketByID(ctx context.Context, id string) (*models.Market, error)
	// GetMarketForUpdateTx loads the market row with a write lock, giving the
	// caller mutual exclusion against concurrent resolve/cancel/commit calls.
	GetMarketForUpdateTx(ctx context.Context, tx *gorm.DB, id string) (*models.Market, error)
	ListMarkets(ctx context.Context, params ListMarketsParams) ([]models.Market, error)
	CountMarkets(ctx context.Context, params ListMarketsParams) (int64, error)
	UpdateMarketTx(ctx context.Context, tx *gorm.DB, id string, updates map[string]any) error
	ListMarketsPastEnd(ctx context.Context, now time.Time, limit int) ([]models.Market, error)

	// Options.
	ListOptionsByMarketID(ctx context.Context, marketID string) ([]models.MarketOption, error)
	AddOptionStakeTx(ctx context.Context, tx *gorm.DB, optionID string, tokens int64, newParticipant bool) error

	// Commitments.
	InsertCommitmentTx(ctx context.Context, tx *gorm.DB, item *models.Commitment) error
	ListActiveCommitmentsTx(ctx context.Context, tx *gorm.DB, marketID string) ([]models.Commitment, error)
	ListCommitments(ctx context.Context, params ListCommitmentsParams) ([]models.Commitment, error)
	CountUserCommitmentsOnOption(ctx context.Context, tx *gorm.DB, marketID, optionID, userID string) (int64, error)
	SetCommitmentOutcomeTx(ctx context.Context, tx *gorm.DB, id string, status string, payoutAmount int64, resolvedAt time.Time) error

	// Resolutions and payouts.
	InsertResolutionTx(ctx context.Context, tx *gorm.DB, item *models.Resolution) error
	GetResolutionByMarketID(ctx context.Context, marketID string) (*models.Resolution, error)
	InsertPayoutsTx(ctx context.Context, tx *gorm.DB, items []models.Payout) error
	InsertCreatorPayoutTx(ctx context.Context, tx *gorm.DB, item *models.CreatorPayout) error

	// Balances and the audit ledger.
	GetBalance(ctx context.Context, userID string) (*models.UserBalance, error)
	EnsureBalanceTx(ctx context.Context, tx *gorm.DB, userID string, initial int64) (*models.UserBalance, error)
	// AdjustBalanceTx applies signed deltas with non-negativity guards in the
	// UPDATE itself; it returns the number of rows that passed the guard
	// (0 means the mutation would have driven a field negative).
	AdjustBalanceTx(ctx context.Context, tx *gorm.DB, userID string, availableDelta, committedDelta int64) (int64, error)
	InsertBalanceTransactionsTx(ctx context.Context, tx *gorm.DB, items []models.BalanceTransaction) error
	ListBalanceTransactions(ctx context.Context, params ListBalanceTransactionsParams) ([]models.BalanceTransaction, error)
}

type ListMarketsParams struct {
	Limit     int
	Offset    int
	Status    *string
	CreatorID *string
	OrderBy   string
	Asc       *bool
}

type ListCommitmentsParams struct {
	Limit    int
	Offset   int
	MarketID *string
	UserID   *string
	Status   *string
	OrderBy  string
	Asc      *bool
}

type ListBalanceTransactionsParams struct {
	Limit   int
	Offset  int
	UserID  *string
	Type    *string
	Since   *time.Time
	OrderBy string
	Asc     *bool
}
