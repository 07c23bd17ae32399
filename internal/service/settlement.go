package service

import (
	"github.com/shopspring/decimal"

	"stakemarket/internal/models"
)

// FeeSchedule holds the fractions applied to the total pool on resolution.
// The house fraction is the platform-wide constant; the creator fraction is
// the per-market value bounded at market creation.
type FeeSchedule struct {
	HouseFraction   decimal.Decimal
	CreatorFraction decimal.Decimal
}

type WinnerShare struct {
	Commitment models.Commitment
	Payout     int64
	Profit     int64
}

// SettlementResult is the full outcome of the payout computation for one
// market. Conservation: HouseFee + CreatorFee + TotalPayout + Residual ==
// TotalPool, with Residual < max(len(Winners), 1).
type SettlementResult struct {
	TotalPool      int64
	HouseFee       int64
	CreatorFee     int64
	Distributable  int64
	WinnerStakeSum int64
	Winners        []WinnerShare
	Losers         []models.Commitment
	TotalPayout    int64
	Residual       int64
}

// ComputeSettlement partitions the active commitments into winners and
// losers, deducts the house and creator fees from the pool, and splits the
// remainder among winners proportional to stake.
//
// Fees round half away from zero; individual payouts floor. The flooring
// remainder is retained (recorded in Residual), never credited to a user,
// so rounding can lose at most winnerCount-1 tokens and can never mint.
// With no winners the whole distributable pool is retained.
func ComputeSettlement(commitments []models.Commitment, winningOptionID string, fees FeeSchedule) SettlementResult {
	var res SettlementResult

	for _, c := range commitments {
		res.TotalPool += c.Tokens
		if c.OptionID == winningOptionID {
			res.WinnerStakeSum += c.Tokens
			res.Winners = append(res.Winners, WinnerShare{Commitment: c})
		} else {
			res.Losers = append(res.Losers, c)
		}
	}

	if res.TotalPool == 0 {
		return res
	}

	pool := decimal.NewFromInt(res.TotalPool)
	res.HouseFee = pool.Mul(fees.HouseFraction).Round(0).IntPart()
	res.CreatorFee = pool.Mul(fees.CreatorFraction).Round(0).IntPart()
	res.Distributable = res.TotalPool - res.HouseFee - res.CreatorFee

	if res.WinnerStakeSum == 0 {
		// No commitment backed the winning option; the distributable pool
		// is retained by the platform.
		res.Residual = res.Distributable
		return res
	}

	winnerSum := decimal.NewFromInt(res.WinnerStakeSum)
	distributable := decimal.NewFromInt(res.Distributable)
	for i := range res.Winners {
		stake := res.Winners[i].Commitment.Tokens
		// Exact integer quotient: floor(distributable * stake / winnerSum).
		num := distributable.Mul(decimal.NewFromInt(stake))
		q, _ := num.QuoRem(winnerSum, 0)
		payout := q.IntPart()
		res.Winners[i].Payout = payout
		res.Winners[i].Profit = payout - stake
		res.TotalPayout += payout
	}
	res.Residual = res.Distributable - res.TotalPayout

	return res
}

// ValidateEvidence checks the ordered evidence list submitted with a
// resolution: it must be non-empty, every item must carry a recognized type
// and non-empty content. Unrecognized types are rejected, not stored.
func ValidateEvidence(items []models.EvidenceItem) error {
	if len(items) == 0 {
		return validationErr("evidence is required")
	}
	for i, item := range items {
		switch item.Type {
		case models.EvidenceTypeURL, models.EvidenceTypeScreenshot, models.EvidenceTypeDescription:
		default:
			return validationErr("evidence[%d]: unrecognized type %q", i, item.Type)
		}
		if item.Content == "" {
			return validationErr("evidence[%d]: content is required", i)
		}
	}
	return nil
}
