package models

import "time"

// Commitment terminal states. A commitment is created active and moves to
// exactly one terminal state when its market resolves or is cancelled.
const (
	CommitmentStatusActive    = "active"
	CommitmentStatusWon       = "won"
	CommitmentStatusLost      = "lost"
	CommitmentStatusRefunded  = "refunded"
	CommitmentStatusCancelled = "cancelled"
)

type Commitment struct {
	ID       string `gorm:"primaryKey;type:text"`
	UserID   string `gorm:"type:text;not null;index"`
	MarketID string `gorm:"type:text;not null;index:idx_commitments_market_status"`
	OptionID string `gorm:"type:text;not null;index"`

	Tokens int64  `gorm:"not null"`
	Status string `gorm:"type:varchar(20);not null;default:'active';index:idx_commitments_market_status"`

	// PayoutAmount is the credited payout for won commitments and the
	// refunded stake for refunded ones; zero for lost/cancelled.
	PayoutAmount int64 `gorm:"not null;default:0"`

	PlacedAt   time.Time  `gorm:"type:timestamptz;not null"`
	ResolvedAt *time.Time `gorm:"type:timestamptz"`
}

func (Commitment) TableName() string {
	return "commitments"
}
