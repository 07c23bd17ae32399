package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"stakemarket/internal/models"
)

func seedOpenMarket(repo *stubRepo) {
	repo.markets["m1"] = &models.Market{
		ID:                 "m1",
		Title:              "who wins",
		CreatorID:          "carol",
		CreatorFeeFraction: decimal.NewFromFloat(0.02),
		Status:             models.MarketStatusActive,
		EndsAt:             time.Now().UTC().Add(time.Hour),
	}
	repo.options["m1"] = []models.MarketOption{
		{ID: "opt-a", MarketID: "m1", Label: "A", Position: 0},
		{ID: "opt-b", MarketID: "m1", Label: "B", Position: 1},
	}
}

func TestPlace_HappyPath(t *testing.T) {
	repo := newStubRepo()
	seedOpenMarket(repo)
	svc := &CommitmentService{Repo: repo, InitialBalance: 1000}

	commitment, err := svc.Place(context.Background(), PlaceParams{
		MarketID: "m1",
		OptionID: "opt-a",
		UserID:   "alice",
		Tokens:   250,
	})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if commitment.Status != models.CommitmentStatusActive || commitment.Tokens != 250 {
		t.Fatalf("commitment=%+v", commitment)
	}

	// First touch grants the starter balance, then the stake moves to escrow.
	alice := repo.balances["alice"]
	if alice.Available != 750 || alice.Committed != 250 {
		t.Fatalf("alice balance=%d/%d want 750/250", alice.Available, alice.Committed)
	}

	opt := repo.options["m1"][0]
	if opt.TotalTokens != 250 || opt.ParticipantCount != 1 {
		t.Fatalf("option totals=%d/%d want 250/1", opt.TotalTokens, opt.ParticipantCount)
	}

	if len(repo.ledger) != 1 || repo.ledger[0].Type != models.TxTypeStake || repo.ledger[0].Amount != -250 {
		t.Fatalf("ledger=%+v", repo.ledger)
	}
}

func TestPlace_SecondStakeSameOption(t *testing.T) {
	repo := newStubRepo()
	seedOpenMarket(repo)
	svc := &CommitmentService{Repo: repo, InitialBalance: 1000}

	for i := 0; i < 2; i++ {
		if _, err := svc.Place(context.Background(), PlaceParams{
			MarketID: "m1", OptionID: "opt-a", UserID: "alice", Tokens: 100,
		}); err != nil {
			t.Fatalf("place %d err=%v", i, err)
		}
	}

	// Same user staking twice counts once in participant_count.
	opt := repo.options["m1"][0]
	if opt.TotalTokens != 200 || opt.ParticipantCount != 1 {
		t.Fatalf("option totals=%d/%d want 200/1", opt.TotalTokens, opt.ParticipantCount)
	}
}

func TestPlace_InsufficientBalance(t *testing.T) {
	repo := newStubRepo()
	seedOpenMarket(repo)
	svc := &CommitmentService{Repo: repo, InitialBalance: 100}

	_, err := svc.Place(context.Background(), PlaceParams{
		MarketID: "m1", OptionID: "opt-a", UserID: "alice", Tokens: 500,
	})
	if !IsValidation(err) {
		t.Fatalf("err=%v want validation", err)
	}
	// The failed stake must leave the balance untouched.
	alice := repo.balances["alice"]
	if alice != nil && (alice.Available != 100 || alice.Committed != 0) {
		t.Fatalf("alice balance=%+v", alice)
	}
	if len(repo.commitmentOrder) != 0 {
		t.Fatalf("commitment persisted despite failure")
	}
}

func TestPlace_EndedMarket(t *testing.T) {
	repo := newStubRepo()
	seedOpenMarket(repo)
	repo.markets["m1"].EndsAt = time.Now().UTC().Add(-time.Minute)
	svc := &CommitmentService{Repo: repo, InitialBalance: 1000}

	_, err := svc.Place(context.Background(), PlaceParams{
		MarketID: "m1", OptionID: "opt-a", UserID: "alice", Tokens: 100,
	})
	if !IsInvalidState(err) {
		t.Fatalf("err=%v want invalid state", err)
	}
}

func TestPlace_InactiveMarket(t *testing.T) {
	repo := newStubRepo()
	seedOpenMarket(repo)
	repo.markets["m1"].Status = models.MarketStatusCancelled
	svc := &CommitmentService{Repo: repo, InitialBalance: 1000}

	_, err := svc.Place(context.Background(), PlaceParams{
		MarketID: "m1", OptionID: "opt-a", UserID: "alice", Tokens: 100,
	})
	if !IsInvalidState(err) {
		t.Fatalf("err=%v want invalid state", err)
	}
}

func TestPlace_UnknownOption(t *testing.T) {
	repo := newStubRepo()
	seedOpenMarket(repo)
	svc := &CommitmentService{Repo: repo, InitialBalance: 1000}

	_, err := svc.Place(context.Background(), PlaceParams{
		MarketID: "m1", OptionID: "opt-z", UserID: "alice", Tokens: 100,
	})
	if !IsInvalidState(err) {
		t.Fatalf("err=%v want invalid state", err)
	}
}

func TestPlace_NonPositiveTokens(t *testing.T) {
	repo := newStubRepo()
	seedOpenMarket(repo)
	svc := &CommitmentService{Repo: repo, InitialBalance: 1000}

	for _, tokens := range []int64{0, -5} {
		_, err := svc.Place(context.Background(), PlaceParams{
			MarketID: "m1", OptionID: "opt-a", UserID: "alice", Tokens: tokens,
		})
		if !IsValidation(err) {
			t.Fatalf("tokens=%d err=%v want validation", tokens, err)
		}
	}
}
