package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Market lifecycle states. resolved and cancelled are terminal.
const (
	MarketStatusActive            = "active"
	MarketStatusPendingResolution = "pending_resolution"
	MarketStatusResolving         = "resolving"
	MarketStatusResolved          = "resolved"
	MarketStatusCancelled         = "cancelled"
)

type Market struct {
	ID          string  `gorm:"primaryKey;type:text"`
	Title       string  `gorm:"type:text;not null"`
	Description *string `gorm:"type:text"`
	CreatorID   string  `gorm:"type:text;not null;index"`

	// Fraction of the total pool credited to the creator on resolution,
	// bounded to [0.01, 0.05] at creation time.
	CreatorFeeFraction decimal.Decimal `gorm:"type:numeric(6,4);not null"`

	Status string    `gorm:"type:varchar(30);not null;default:'active';index"`
	EndsAt time.Time `gorm:"type:timestamptz;not null;index"`

	// Set exactly once, when the market reaches a terminal state.
	ResolutionID *string    `gorm:"type:text"`
	CancelReason *string    `gorm:"type:text"`
	CancelledBy  *string    `gorm:"type:text"`
	CancelledAt  *time.Time `gorm:"type:timestamptz"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Market) TableName() string {
	return "markets"
}

// Terminal reports whether the market can no longer be resolved or cancelled.
func (m *Market) Terminal() bool {
	return m.Status == MarketStatusResolved || m.Status == MarketStatusCancelled
}

type MarketOption struct {
	ID       string `gorm:"primaryKey;type:text"`
	MarketID string `gorm:"type:text;not null;index"`
	Label    string `gorm:"type:text;not null"`
	Position int    `gorm:"not null"`

	// Invariant: total_tokens equals the sum of tokens over this option's
	// non-cancelled commitments.
	TotalTokens      int64 `gorm:"not null;default:0"`
	ParticipantCount int   `gorm:"not null;default:0"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (MarketOption) TableName() string {
	return "market_options"
}
