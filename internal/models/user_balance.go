package models

import "time"

// UserBalance is the per-user token aggregate. Available tokens can be
// staked; committed tokens are held in escrow by active commitments.
// Mutated only inside repository transactions; neither field goes negative.
type UserBalance struct {
	UserID    string `gorm:"primaryKey;type:text"`
	Available int64  `gorm:"not null;default:0"`
	Committed int64  `gorm:"not null;default:0"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (UserBalance) TableName() string {
	return "user_balances"
}
