package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"stakemarket/internal/models"
	"stakemarket/internal/repository"
)

// CommitmentService places stakes. A stake atomically moves tokens from the
// user's available balance into escrow, appends the commitment, and bumps
// the option totals, using the same balance discipline as settlement.
type CommitmentService struct {
	Repo   repository.Repository
	Logger *zap.Logger
	Events EventPublisher
	Cache  SnapshotCache

	// InitialBalance is the starter grant credited the first time a user
	// touches the ledger.
	InitialBalance int64
}

type PlaceParams struct {
	MarketID string
	OptionID string
	UserID   string
	Tokens   int64
}

func (s *CommitmentService) Place(ctx context.Context, params PlaceParams) (*models.Commitment, error) {
	if params.MarketID == "" {
		return nil, validationErr("market id is required")
	}
	if params.OptionID == "" {
		return nil, validationErr("option id is required")
	}
	if params.UserID == "" {
		return nil, validationErr("user id is required")
	}
	if params.Tokens <= 0 {
		return nil, validationErr("tokens must be positive")
	}

	options, err := s.Repo.ListOptionsByMarketID(ctx, params.MarketID)
	if err != nil {
		return nil, storageErr(err, "load market options")
	}
	optionKnown := false
	for _, opt := range options {
		if opt.ID == params.OptionID {
			optionKnown = true
			break
		}
	}

	var commitment *models.Commitment
	txErr := s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		market, err := s.Repo.GetMarketForUpdateTx(ctx, tx, params.MarketID)
		if err != nil {
			return storageErr(err, "load market")
		}
		if market == nil {
			return notFoundErr("market %s not found", params.MarketID)
		}
		now := time.Now().UTC()
		if market.Status != models.MarketStatusActive {
			return invalidStateErr("market %s is not open for staking", params.MarketID)
		}
		if !now.Before(market.EndsAt) {
			return invalidStateErr("market %s has ended", params.MarketID)
		}
		if !optionKnown {
			return invalidStateErr("option %s does not belong to market %s", params.OptionID, params.MarketID)
		}

		if _, err := s.Repo.EnsureBalanceTx(ctx, tx, params.UserID, s.InitialBalance); err != nil {
			return storageErr(err, "ensure balance")
		}
		n, err := s.Repo.AdjustBalanceTx(ctx, tx, params.UserID, -params.Tokens, params.Tokens)
		if err != nil {
			return storageErr(err, "move stake into escrow")
		}
		if n == 0 {
			return validationErr("insufficient available balance")
		}

		prior, err := s.Repo.CountUserCommitmentsOnOption(ctx, tx, params.MarketID, params.OptionID, params.UserID)
		if err != nil {
			return storageErr(err, "count prior commitments")
		}

		commitment = &models.Commitment{
			ID:       uuid.NewString(),
			UserID:   params.UserID,
			MarketID: params.MarketID,
			OptionID: params.OptionID,
			Tokens:   params.Tokens,
			Status:   models.CommitmentStatusActive,
			PlacedAt: now,
		}
		if err := s.Repo.InsertCommitmentTx(ctx, tx, commitment); err != nil {
			return storageErr(err, "insert commitment")
		}
		if err := s.Repo.AddOptionStakeTx(ctx, tx, params.OptionID, params.Tokens, prior == 0); err != nil {
			return storageErr(err, "update option totals")
		}

		cid := commitment.ID
		return asServiceErr(s.Repo.InsertBalanceTransactionsTx(ctx, tx, []models.BalanceTransaction{{
			ID:           uuid.NewString(),
			UserID:       params.UserID,
			Type:         models.TxTypeStake,
			Amount:       -params.Tokens,
			MarketID:     &params.MarketID,
			CommitmentID: &cid,
		}}))
	})
	if txErr != nil {
		return nil, asServiceErr(txErr)
	}

	if s.Cache != nil {
		s.Cache.Invalidate(ctx, params.MarketID)
	}
	if s.Events != nil {
		s.Events.Publish("commitment_placed", map[string]any{
			"market_id": params.MarketID,
			"option_id": params.OptionID,
			"tokens":    params.Tokens,
		})
	}
	if s.Logger != nil {
		s.Logger.Debug("commitment placed",
			zap.String("market_id", params.MarketID),
			zap.String("option_id", params.OptionID),
			zap.Int64("tokens", params.Tokens),
		)
	}
	return commitment, nil
}
