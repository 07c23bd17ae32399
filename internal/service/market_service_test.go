package service

import (
	"context"
	"testing"
	"time"

	"stakemarket/internal/config"
	"stakemarket/internal/models"
)

func newMarketService(repo *stubRepo) *MarketService {
	return &MarketService{
		Repo: repo,
		Fees: testFees(),
		Market: config.MarketConfig{
			MinOptions: 2,
			MaxOptions: 20,
		},
	}
}

func TestCreateMarket_HappyPath(t *testing.T) {
	repo := newStubRepo()
	svc := newMarketService(repo)

	market, options, err := svc.Create(context.Background(), CreateMarketParams{
		Title:     "who wins the final",
		CreatorID: "carol",
		Options:   []string{"Team A", "Team B", "Draw"},
		EndsAt:    time.Now().UTC().Add(48 * time.Hour),
	})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if market.Status != models.MarketStatusActive {
		t.Fatalf("status=%q want active", market.Status)
	}
	if len(options) != 3 {
		t.Fatalf("options=%d want 3", len(options))
	}
	for i, opt := range options {
		if opt.Position != i || opt.MarketID != market.ID {
			t.Fatalf("option[%d]=%+v", i, opt)
		}
	}
	// Creator fraction falls back to the configured default.
	if market.CreatorFeeFraction.InexactFloat64() != testFees().CreatorDefault {
		t.Fatalf("fraction=%s want default %v", market.CreatorFeeFraction, testFees().CreatorDefault)
	}
	if repo.markets[market.ID] == nil {
		t.Fatalf("market not persisted")
	}
}

func TestCreateMarket_Validation(t *testing.T) {
	repo := newStubRepo()
	svc := newMarketService(repo)
	future := time.Now().UTC().Add(time.Hour)

	cases := []struct {
		name   string
		params CreateMarketParams
	}{
		{"empty title", CreateMarketParams{CreatorID: "c", Options: []string{"a", "b"}, EndsAt: future}},
		{"one option", CreateMarketParams{Title: "t", CreatorID: "c", Options: []string{"a"}, EndsAt: future}},
		{"duplicate options", CreateMarketParams{Title: "t", CreatorID: "c", Options: []string{"a", "A"}, EndsAt: future}},
		{"past end", CreateMarketParams{Title: "t", CreatorID: "c", Options: []string{"a", "b"}, EndsAt: time.Now().UTC().Add(-time.Hour)}},
		{"fee out of range", CreateMarketParams{Title: "t", CreatorID: "c", Options: []string{"a", "b"}, EndsAt: future, CreatorFeeFraction: 0.5}},
	}
	for _, tc := range cases {
		if _, _, err := svc.Create(context.Background(), tc.params); !IsValidation(err) {
			t.Fatalf("%s: err=%v want validation", tc.name, err)
		}
	}
	if len(repo.markets) != 0 {
		t.Fatalf("invalid create persisted a market")
	}
}

func TestSweepEnded(t *testing.T) {
	repo := newStubRepo()
	svc := newMarketService(repo)
	now := time.Now().UTC()

	repo.markets["ended"] = &models.Market{
		ID: "ended", Status: models.MarketStatusActive, EndsAt: now.Add(-time.Minute),
	}
	repo.markets["open"] = &models.Market{
		ID: "open", Status: models.MarketStatusActive, EndsAt: now.Add(time.Hour),
	}
	repo.markets["done"] = &models.Market{
		ID: "done", Status: models.MarketStatusResolved, EndsAt: now.Add(-time.Hour),
	}

	moved, err := svc.SweepEnded(context.Background())
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if moved != 1 {
		t.Fatalf("moved=%d want 1", moved)
	}
	if repo.markets["ended"].Status != models.MarketStatusPendingResolution {
		t.Fatalf("ended market status=%q", repo.markets["ended"].Status)
	}
	if repo.markets["open"].Status != models.MarketStatusActive {
		t.Fatalf("open market moved early")
	}
	if repo.markets["done"].Status != models.MarketStatusResolved {
		t.Fatalf("terminal market touched")
	}
}
