package service

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"stakemarket/internal/models"
	"stakemarket/internal/repository"
)

var errInjected = errors.New("injected failure")

// stubRepo is a test-only in-memory implementation of repository.Repository.
// InTx snapshots the whole state and restores it when the callback fails, so
// tests can assert that a failed settlement leaves nothing behind. Setting
// failOn to a method name makes that method return errInjected.
type stubRepo struct {
	markets         map[string]*models.Market
	options         map[string][]models.MarketOption
	commitments     map[string]*models.Commitment
	commitmentOrder []string
	resolutions     map[string]*models.Resolution
	payouts         []models.Payout
	creatorPayouts  []models.CreatorPayout
	balances        map[string]*models.UserBalance
	ledger          []models.BalanceTransaction

	failOn string
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		markets:     map[string]*models.Market{},
		options:     map[string][]models.MarketOption{},
		commitments: map[string]*models.Commitment{},
		resolutions: map[string]*models.Resolution{},
		balances:    map[string]*models.UserBalance{},
	}
}

func (s *stubRepo) snapshot() *stubRepo {
	cp := newStubRepo()
	for id, m := range s.markets {
		v := *m
		cp.markets[id] = &v
	}
	for id, opts := range s.options {
		cp.options[id] = append([]models.MarketOption(nil), opts...)
	}
	for id, c := range s.commitments {
		v := *c
		cp.commitments[id] = &v
	}
	cp.commitmentOrder = append([]string(nil), s.commitmentOrder...)
	for id, r := range s.resolutions {
		v := *r
		cp.resolutions[id] = &v
	}
	cp.payouts = append([]models.Payout(nil), s.payouts...)
	cp.creatorPayouts = append([]models.CreatorPayout(nil), s.creatorPayouts...)
	for id, b := range s.balances {
		v := *b
		cp.balances[id] = &v
	}
	cp.ledger = append([]models.BalanceTransaction(nil), s.ledger...)
	return cp
}

func (s *stubRepo) restore(cp *stubRepo) {
	s.markets = cp.markets
	s.options = cp.options
	s.commitments = cp.commitments
	s.commitmentOrder = cp.commitmentOrder
	s.resolutions = cp.resolutions
	s.payouts = cp.payouts
	s.creatorPayouts = cp.creatorPayouts
	s.balances = cp.balances
	s.ledger = cp.ledger
}

func (s *stubRepo) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	cp := s.snapshot()
	if err := fn(nil); err != nil {
		s.restore(cp)
		return err
	}
	return nil
}

func (s *stubRepo) CreateMarketTx(ctx context.Context, tx *gorm.DB, market *models.Market, options []models.MarketOption) error {
	if s.failOn == "CreateMarketTx" {
		return errInjected
	}
	m := *market
	s.markets[market.ID] = &m
	s.options[market.ID] = append([]models.MarketOption(nil), options...)
	return nil
}

func (s *stubRepo) GetMarketByID(ctx context.Context, id string) (*models.Market, error) {
	m, ok := s.markets[id]
	if !ok {
		return nil, nil
	}
	v := *m
	return &v, nil
}

func (s *stubRepo) GetMarketForUpdateTx(ctx context.Context, tx *gorm.DB, id string) (*models.Market, error) {
	if s.failOn == "GetMarketForUpdateTx" {
		return nil, errInjected
	}
	return s.GetMarketByID(ctx, id)
}

func (s *stubRepo) ListMarkets(ctx context.Context, params repository.ListMarketsParams) ([]models.Market, error) {
	var out []models.Market
	for _, m := range s.markets {
		if params.Status != nil && m.Status != *params.Status {
			continue
		}
		if params.CreatorID != nil && m.CreatorID != *params.CreatorID {
			continue
		}
		out = append(out, *m)
	}
	return out, nil
}

func (s *stubRepo) CountMarkets(ctx context.Context, params repository.ListMarketsParams) (int64, error) {
	items, _ := s.ListMarkets(ctx, params)
	return int64(len(items)), nil
}

func (s *stubRepo) UpdateMarketTx(ctx context.Context, tx *gorm.DB, id string, updates map[string]any) error {
	if s.failOn == "UpdateMarketTx" {
		return errInjected
	}
	m, ok := s.markets[id]
	if !ok {
		return errors.New("market not found")
	}
	for k, v := range updates {
		switch k {
		case "status":
			m.Status = v.(string)
		case "resolution_id":
			id := v.(string)
			m.ResolutionID = &id
		case "cancel_reason":
			r := v.(string)
			m.CancelReason = &r
		case "cancelled_by":
			b := v.(string)
			m.CancelledBy = &b
		case "cancelled_at":
			at := v.(time.Time)
			m.CancelledAt = &at
		}
	}
	return nil
}

func (s *stubRepo) ListMarketsPastEnd(ctx context.Context, now time.Time, limit int) ([]models.Market, error) {
	var out []models.Market
	for _, m := range s.markets {
		if m.Status == models.MarketStatusActive && !m.EndsAt.After(now) {
			out = append(out, *m)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *stubRepo) ListOptionsByMarketID(ctx context.Context, marketID string) ([]models.MarketOption, error) {
	return append([]models.MarketOption(nil), s.options[marketID]...), nil
}

func (s *stubRepo) AddOptionStakeTx(ctx context.Context, tx *gorm.DB, optionID string, tokens int64, newParticipant bool) error {
	if s.failOn == "AddOptionStakeTx" {
		return errInjected
	}
	for marketID, opts := range s.options {
		for i := range opts {
			if opts[i].ID == optionID {
				opts[i].TotalTokens += tokens
				if newParticipant {
					opts[i].ParticipantCount++
				}
				s.options[marketID] = opts
				return nil
			}
		}
	}
	return errors.New("option not found")
}

func (s *stubRepo) InsertCommitmentTx(ctx context.Context, tx *gorm.DB, item *models.Commitment) error {
	if s.failOn == "InsertCommitmentTx" {
		return errInjected
	}
	c := *item
	s.commitments[item.ID] = &c
	s.commitmentOrder = append(s.commitmentOrder, item.ID)
	return nil
}

func (s *stubRepo) ListActiveCommitmentsTx(ctx context.Context, tx *gorm.DB, marketID string) ([]models.Commitment, error) {
	if s.failOn == "ListActiveCommitmentsTx" {
		return nil, errInjected
	}
	var out []models.Commitment
	for _, id := range s.commitmentOrder {
		c := s.commitments[id]
		if c.MarketID == marketID && c.Status == models.CommitmentStatusActive {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (s *stubRepo) ListCommitments(ctx context.Context, params repository.ListCommitmentsParams) ([]models.Commitment, error) {
	var out []models.Commitment
	for _, id := range s.commitmentOrder {
		c := s.commitments[id]
		if params.MarketID != nil && c.MarketID != *params.MarketID {
			continue
		}
		if params.UserID != nil && c.UserID != *params.UserID {
			continue
		}
		if params.Status != nil && c.Status != *params.Status {
			continue
		}
		out = append(out, *c)
	}
	return out, nil
}

func (s *stubRepo) CountUserCommitmentsOnOption(ctx context.Context, tx *gorm.DB, marketID, optionID, userID string) (int64, error) {
	var n int64
	for _, c := range s.commitments {
		if c.MarketID == marketID && c.OptionID == optionID && c.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (s *stubRepo) SetCommitmentOutcomeTx(ctx context.Context, tx *gorm.DB, id string, status string, payoutAmount int64, resolvedAt time.Time) error {
	if s.failOn == "SetCommitmentOutcomeTx" {
		return errInjected
	}
	c, ok := s.commitments[id]
	if !ok {
		return errors.New("commitment not found")
	}
	c.Status = status
	c.PayoutAmount = payoutAmount
	at := resolvedAt
	c.ResolvedAt = &at
	return nil
}

func (s *stubRepo) InsertResolutionTx(ctx context.Context, tx *gorm.DB, item *models.Resolution) error {
	if s.failOn == "InsertResolutionTx" {
		return errInjected
	}
	if _, exists := s.resolutions[item.MarketID]; exists {
		return errors.New("duplicate resolution for market")
	}
	r := *item
	s.resolutions[item.MarketID] = &r
	return nil
}

func (s *stubRepo) GetResolutionByMarketID(ctx context.Context, marketID string) (*models.Resolution, error) {
	r, ok := s.resolutions[marketID]
	if !ok {
		return nil, nil
	}
	v := *r
	return &v, nil
}

func (s *stubRepo) InsertPayoutsTx(ctx context.Context, tx *gorm.DB, items []models.Payout) error {
	if s.failOn == "InsertPayoutsTx" {
		return errInjected
	}
	s.payouts = append(s.payouts, items...)
	return nil
}

func (s *stubRepo) InsertCreatorPayoutTx(ctx context.Context, tx *gorm.DB, item *models.CreatorPayout) error {
	if s.failOn == "InsertCreatorPayoutTx" {
		return errInjected
	}
	s.creatorPayouts = append(s.creatorPayouts, *item)
	return nil
}

func (s *stubRepo) GetBalance(ctx context.Context, userID string) (*models.UserBalance, error) {
	b, ok := s.balances[userID]
	if !ok {
		return nil, nil
	}
	v := *b
	return &v, nil
}

func (s *stubRepo) EnsureBalanceTx(ctx context.Context, tx *gorm.DB, userID string, initial int64) (*models.UserBalance, error) {
	if s.failOn == "EnsureBalanceTx" {
		return nil, errInjected
	}
	b, ok := s.balances[userID]
	if !ok {
		b = &models.UserBalance{UserID: userID, Available: initial}
		s.balances[userID] = b
	}
	v := *b
	return &v, nil
}

func (s *stubRepo) AdjustBalanceTx(ctx context.Context, tx *gorm.DB, userID string, availableDelta, committedDelta int64) (int64, error) {
	if s.failOn == "AdjustBalanceTx" {
		return 0, errInjected
	}
	b, ok := s.balances[userID]
	if !ok {
		return 0, nil
	}
	if b.Available+availableDelta < 0 || b.Committed+committedDelta < 0 {
		return 0, nil
	}
	b.Available += availableDelta
	b.Committed += committedDelta
	return 1, nil
}

func (s *stubRepo) InsertBalanceTransactionsTx(ctx context.Context, tx *gorm.DB, items []models.BalanceTransaction) error {
	if s.failOn == "InsertBalanceTransactionsTx" {
		return errInjected
	}
	s.ledger = append(s.ledger, items...)
	return nil
}

func (s *stubRepo) ListBalanceTransactions(ctx context.Context, params repository.ListBalanceTransactionsParams) ([]models.BalanceTransaction, error) {
	var out []models.BalanceTransaction
	for _, entry := range s.ledger {
		if params.UserID != nil && entry.UserID != *params.UserID {
			continue
		}
		if params.Type != nil && entry.Type != *params.Type {
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}

// Compile-time interface check.
var _ repository.Repository = (*stubRepo)(nil)
