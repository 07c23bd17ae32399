package service

import (
	"testing"

	"github.com/shopspring/decimal"

	"stakemarket/internal/models"
)

func feeSchedule(house, creator float64) FeeSchedule {
	return FeeSchedule{
		HouseFraction:   decimal.NewFromFloat(house),
		CreatorFraction: decimal.NewFromFloat(creator),
	}
}

func TestComputeSettlement_SingleWinner(t *testing.T) {
	commitments := []models.Commitment{
		{ID: "c1", UserID: "alice", OptionID: "opt-a", Tokens: 600},
		{ID: "c2", UserID: "bob", OptionID: "opt-b", Tokens: 400},
	}
	res := ComputeSettlement(commitments, "opt-a", feeSchedule(0.02, 0.02))

	if res.TotalPool != 1000 {
		t.Fatalf("total pool=%d want 1000", res.TotalPool)
	}
	if res.HouseFee != 20 || res.CreatorFee != 20 {
		t.Fatalf("fees=%d/%d want 20/20", res.HouseFee, res.CreatorFee)
	}
	if len(res.Winners) != 1 || len(res.Losers) != 1 {
		t.Fatalf("winners=%d losers=%d", len(res.Winners), len(res.Losers))
	}
	if res.Winners[0].Payout != 960 {
		t.Fatalf("payout=%d want 960", res.Winners[0].Payout)
	}
	if res.Winners[0].Profit != 360 {
		t.Fatalf("profit=%d want 360", res.Winners[0].Profit)
	}
	if res.Residual != 0 {
		t.Fatalf("residual=%d want 0", res.Residual)
	}
}

func TestComputeSettlement_Conservation(t *testing.T) {
	commitments := []models.Commitment{
		{ID: "c1", UserID: "u1", OptionID: "win", Tokens: 333},
		{ID: "c2", UserID: "u2", OptionID: "win", Tokens: 334},
		{ID: "c3", UserID: "u3", OptionID: "win", Tokens: 1},
		{ID: "c4", UserID: "u4", OptionID: "lose", Tokens: 729},
	}
	res := ComputeSettlement(commitments, "win", feeSchedule(0.02, 0.03))

	total := res.HouseFee + res.CreatorFee + res.TotalPayout + res.Residual
	if total != res.TotalPool {
		t.Fatalf("conservation broken: fees+payout+residual=%d pool=%d", total, res.TotalPool)
	}
	if res.Residual < 0 || res.Residual >= int64(len(res.Winners)) {
		t.Fatalf("residual=%d out of [0, %d)", res.Residual, len(res.Winners))
	}
	for _, w := range res.Winners {
		if w.Payout < 0 {
			t.Fatalf("negative payout %d for %s", w.Payout, w.Commitment.UserID)
		}
	}
}

func TestComputeSettlement_NoWinners(t *testing.T) {
	commitments := []models.Commitment{
		{ID: "c1", UserID: "u1", OptionID: "lose", Tokens: 500},
		{ID: "c2", UserID: "u2", OptionID: "lose", Tokens: 500},
	}
	res := ComputeSettlement(commitments, "win", feeSchedule(0.02, 0.02))

	if len(res.Winners) != 0 {
		t.Fatalf("winners=%d want 0", len(res.Winners))
	}
	if res.TotalPayout != 0 {
		t.Fatalf("total payout=%d want 0", res.TotalPayout)
	}
	// The whole distributable pool stays with the platform.
	if res.Residual != res.Distributable {
		t.Fatalf("residual=%d want %d", res.Residual, res.Distributable)
	}
	total := res.HouseFee + res.CreatorFee + res.Residual
	if total != res.TotalPool {
		t.Fatalf("conservation broken: %d != %d", total, res.TotalPool)
	}
}

func TestComputeSettlement_EmptyPool(t *testing.T) {
	res := ComputeSettlement(nil, "win", feeSchedule(0.02, 0.02))
	if res.TotalPool != 0 || res.HouseFee != 0 || res.CreatorFee != 0 || res.TotalPayout != 0 {
		t.Fatalf("zero pool produced nonzero amounts: %+v", res)
	}
}

func TestComputeSettlement_ProportionalSplit(t *testing.T) {
	commitments := []models.Commitment{
		{ID: "c1", UserID: "u1", OptionID: "win", Tokens: 100},
		{ID: "c2", UserID: "u2", OptionID: "win", Tokens: 300},
		{ID: "c3", UserID: "u3", OptionID: "lose", Tokens: 600},
	}
	res := ComputeSettlement(commitments, "win", feeSchedule(0, 0))

	// With zero fees the pool splits 1:3 exactly.
	if res.Winners[0].Payout != 250 || res.Winners[1].Payout != 750 {
		t.Fatalf("payouts=%d/%d want 250/750", res.Winners[0].Payout, res.Winners[1].Payout)
	}
	if res.Residual != 0 {
		t.Fatalf("residual=%d want 0", res.Residual)
	}
}

func TestValidateEvidence(t *testing.T) {
	if err := ValidateEvidence(nil); err == nil {
		t.Fatalf("expected error for empty evidence")
	}
	if err := ValidateEvidence([]models.EvidenceItem{{Type: "rumor", Content: "x"}}); err == nil {
		t.Fatalf("expected error for unrecognized type")
	}
	if err := ValidateEvidence([]models.EvidenceItem{{Type: models.EvidenceTypeURL, Content: ""}}); err == nil {
		t.Fatalf("expected error for empty content")
	}
	items := []models.EvidenceItem{
		{Type: models.EvidenceTypeURL, Content: "https://example.com/result"},
		{Type: models.EvidenceTypeDescription, Content: "official announcement"},
	}
	if err := ValidateEvidence(items); err != nil {
		t.Fatalf("err=%v", err)
	}
}
