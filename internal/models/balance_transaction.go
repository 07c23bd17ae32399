package models

import "time"

// Balance transaction types, one per cause of a balance mutation.
const (
	TxTypeStake      = "stake"
	TxTypePayout     = "payout"
	TxTypeRefund     = "refund"
	TxTypeCreatorFee = "creator_fee"
)

// BalanceTransaction is the audit entry written alongside every balance
// mutation. Amount is signed from the user's point of view: negative for
// stakes, positive for payouts, refunds and creator fees.
type BalanceTransaction struct {
	ID     string `gorm:"primaryKey;type:text"`
	UserID string `gorm:"type:text;not null;index"`
	Type   string `gorm:"type:varchar(20);not null;index"`

	Amount int64 `gorm:"not null"`

	MarketID     *string `gorm:"type:text;index"`
	ResolutionID *string `gorm:"type:text"`
	CommitmentID *string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index"`
}

func (BalanceTransaction) TableName() string {
	return "balance_transactions"
}
