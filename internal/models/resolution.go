package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const (
	ResolutionStatusPending   = "pending"
	ResolutionStatusCompleted = "completed"
	ResolutionStatusFailed    = "failed"
)

// Evidence item types accepted at the resolution boundary. Anything else is
// rejected, not silently stored.
const (
	EvidenceTypeURL         = "url"
	EvidenceTypeScreenshot  = "screenshot"
	EvidenceTypeDescription = "description"
)

// EvidenceItem is one entry of the ordered evidence list submitted with a
// resolution. Serialized to the resolutions.evidence jsonb column.
type EvidenceItem struct {
	Type        string `json:"type"`
	Content     string `json:"content"`
	Description string `json:"description,omitempty"`
}

type Resolution struct {
	ID              string `gorm:"primaryKey;type:text"`
	MarketID        string `gorm:"type:text;not null;uniqueIndex"`
	WinningOptionID string `gorm:"type:text;not null"`
	AdminID         string `gorm:"type:text;not null"`

	Evidence datatypes.JSON `gorm:"type:jsonb;not null"`

	TotalPool     int64 `gorm:"not null"`
	HouseFee      int64 `gorm:"not null"`
	CreatorFee    int64 `gorm:"not null"`
	TotalPayout   int64 `gorm:"not null"`
	WinnerCount   int   `gorm:"not null"`
	// Rounding remainder retained by the platform, bounded by winner_count-1.
	ResidualTokens int64 `gorm:"not null;default:0"`

	Status     string    `gorm:"type:varchar(20);not null;default:'pending';index"`
	ResolvedAt time.Time `gorm:"type:timestamptz;not null"`
	CreatedAt  time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (Resolution) TableName() string {
	return "resolutions"
}

type Payout struct {
	ID           uint64 `gorm:"primaryKey;autoIncrement"`
	ResolutionID string `gorm:"type:text;not null;index"`
	UserID       string `gorm:"type:text;not null;index"`
	OptionID     string `gorm:"type:text;not null"`

	TokensStaked int64 `gorm:"not null"`
	PayoutAmount int64 `gorm:"not null"`
	Profit       int64 `gorm:"not null"`

	Status    string    `gorm:"type:varchar(20);not null;default:'completed'"`
	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (Payout) TableName() string {
	return "payouts"
}

type CreatorPayout struct {
	ID           uint64 `gorm:"primaryKey;autoIncrement"`
	ResolutionID string `gorm:"type:text;not null;uniqueIndex"`
	CreatorID    string `gorm:"type:text;not null;index"`

	FeeAmount   int64           `gorm:"not null"`
	FeeFraction decimal.Decimal `gorm:"type:numeric(6,4);not null"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (CreatorPayout) TableName() string {
	return "creator_payouts"
}
