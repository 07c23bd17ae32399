package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"stakemarket/internal/config"
	"stakemarket/internal/models"
	"stakemarket/internal/repository"
)

// ResolutionService settles markets: it computes payouts for a chosen
// winning option and applies them, or refunds stakes on cancellation. Every
// apply runs as one storage transaction with the market row locked and its
// status re-checked inside that transaction, so concurrent settlement calls
// cannot both observe the market as open.
type ResolutionService struct {
	Repo            repository.Repository
	Logger          *zap.Logger
	Fees            config.FeesConfig
	Locker          Locker
	LockTTL         time.Duration
	Events          EventPublisher
	Cache           SnapshotCache
	MinCancelReason int
}

type ResolveParams struct {
	MarketID        string
	WinningOptionID string
	Evidence        []models.EvidenceItem
	AdminID         string
	// CreatorFeeFraction overrides the market's stored fraction when set;
	// it must stay within the configured bounds.
	CreatorFeeFraction *float64
}

type CancelParams struct {
	MarketID     string
	Reason       string
	RefundTokens bool
	AdminID      string
}

type CancelSummary struct {
	TotalTokensRefunded int64
	UsersRefunded       int
	CommitmentsAffected int
}

// Resolve applies the settlement for marketID with the given winning option.
// It returns the created resolution record, or an error with no state
// change at all.
func (s *ResolutionService) Resolve(ctx context.Context, params ResolveParams) (*models.Resolution, error) {
	if params.MarketID == "" {
		return nil, validationErr("market id is required")
	}
	if params.WinningOptionID == "" {
		return nil, validationErr("winning option id is required")
	}
	if params.AdminID == "" {
		return nil, validationErr("admin id is required")
	}
	if err := ValidateEvidence(params.Evidence); err != nil {
		return nil, err
	}
	if params.CreatorFeeFraction != nil {
		f := *params.CreatorFeeFraction
		if f < s.Fees.CreatorMinFraction || f > s.Fees.CreatorMaxFraction {
			return nil, validationErr("creator fee fraction %v out of range [%v, %v]",
				f, s.Fees.CreatorMinFraction, s.Fees.CreatorMaxFraction)
		}
	}

	if unlock, err := s.acquireLock(ctx, params.MarketID); err != nil {
		return nil, err
	} else if unlock != nil {
		defer unlock()
	}

	options, err := s.Repo.ListOptionsByMarketID(ctx, params.MarketID)
	if err != nil {
		return nil, storageErr(err, "load market options")
	}
	optionKnown := false
	for _, opt := range options {
		if opt.ID == params.WinningOptionID {
			optionKnown = true
			break
		}
	}

	evidenceJSON, err := json.Marshal(params.Evidence)
	if err != nil {
		return nil, validationErr("evidence not serializable")
	}

	var resolution *models.Resolution
	txErr := s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		market, err := s.Repo.GetMarketForUpdateTx(ctx, tx, params.MarketID)
		if err != nil {
			return storageErr(err, "load market")
		}
		if market == nil {
			return notFoundErr("market %s not found", params.MarketID)
		}
		if market.Status == models.MarketStatusResolved {
			return invalidStateErr("market %s already resolved", params.MarketID)
		}
		if market.Status == models.MarketStatusCancelled {
			return invalidStateErr("market %s is cancelled", params.MarketID)
		}
		if !optionKnown {
			return invalidStateErr("option %s does not belong to market %s",
				params.WinningOptionID, params.MarketID)
		}

		creatorFraction := market.CreatorFeeFraction
		if params.CreatorFeeFraction != nil {
			creatorFraction = decimal.NewFromFloat(*params.CreatorFeeFraction)
		}
		fees := FeeSchedule{
			HouseFraction:   decimal.NewFromFloat(s.Fees.HouseFraction),
			CreatorFraction: creatorFraction,
		}

		commitments, err := s.Repo.ListActiveCommitmentsTx(ctx, tx, params.MarketID)
		if err != nil {
			return storageErr(err, "load commitments")
		}

		result := ComputeSettlement(commitments, params.WinningOptionID, fees)
		now := time.Now().UTC()

		resolution = &models.Resolution{
			ID:              uuid.NewString(),
			MarketID:        market.ID,
			WinningOptionID: params.WinningOptionID,
			AdminID:         params.AdminID,
			Evidence:        datatypes.JSON(evidenceJSON),
			TotalPool:       result.TotalPool,
			HouseFee:        result.HouseFee,
			CreatorFee:      result.CreatorFee,
			TotalPayout:     result.TotalPayout,
			WinnerCount:     len(result.Winners),
			ResidualTokens:  result.Residual,
			Status:          models.ResolutionStatusCompleted,
			ResolvedAt:      now,
		}
		if err := s.Repo.InsertResolutionTx(ctx, tx, resolution); err != nil {
			return storageErr(err, "insert resolution")
		}

		payouts := make([]models.Payout, 0, len(result.Winners))
		ledger := make([]models.BalanceTransaction, 0, len(result.Winners)+1)
		for _, w := range result.Winners {
			c := w.Commitment
			if err := s.Repo.SetCommitmentOutcomeTx(ctx, tx, c.ID, models.CommitmentStatusWon, w.Payout, now); err != nil {
				return storageErr(err, "mark commitment won")
			}
			// Release the escrowed stake and credit the payout in one move.
			n, err := s.Repo.AdjustBalanceTx(ctx, tx, c.UserID, w.Payout, -c.Tokens)
			if err != nil {
				return storageErr(err, "credit winner balance")
			}
			if n == 0 {
				return storageErr(nil, "winner balance out of sync for user "+c.UserID)
			}
			payouts = append(payouts, models.Payout{
				ResolutionID: resolution.ID,
				UserID:       c.UserID,
				OptionID:     c.OptionID,
				TokensStaked: c.Tokens,
				PayoutAmount: w.Payout,
				Profit:       w.Profit,
				Status:       "completed",
			})
			cid := c.ID
			ledger = append(ledger, models.BalanceTransaction{
				ID:           uuid.NewString(),
				UserID:       c.UserID,
				Type:         models.TxTypePayout,
				Amount:       w.Payout,
				MarketID:     &market.ID,
				ResolutionID: &resolution.ID,
				CommitmentID: &cid,
			})
		}
		for _, c := range result.Losers {
			if err := s.Repo.SetCommitmentOutcomeTx(ctx, tx, c.ID, models.CommitmentStatusLost, 0, now); err != nil {
				return storageErr(err, "mark commitment lost")
			}
			n, err := s.Repo.AdjustBalanceTx(ctx, tx, c.UserID, 0, -c.Tokens)
			if err != nil {
				return storageErr(err, "release loser escrow")
			}
			if n == 0 {
				return storageErr(nil, "loser balance out of sync for user "+c.UserID)
			}
		}
		if err := s.Repo.InsertPayoutsTx(ctx, tx, payouts); err != nil {
			return storageErr(err, "insert payouts")
		}

		if result.CreatorFee > 0 {
			if _, err := s.Repo.EnsureBalanceTx(ctx, tx, market.CreatorID, 0); err != nil {
				return storageErr(err, "ensure creator balance")
			}
			n, err := s.Repo.AdjustBalanceTx(ctx, tx, market.CreatorID, result.CreatorFee, 0)
			if err != nil {
				return storageErr(err, "credit creator fee")
			}
			if n == 0 {
				return storageErr(nil, "creator balance out of sync for user "+market.CreatorID)
			}
			if err := s.Repo.InsertCreatorPayoutTx(ctx, tx, &models.CreatorPayout{
				ResolutionID: resolution.ID,
				CreatorID:    market.CreatorID,
				FeeAmount:    result.CreatorFee,
				FeeFraction:  creatorFraction,
			}); err != nil {
				return storageErr(err, "insert creator payout")
			}
			ledger = append(ledger, models.BalanceTransaction{
				ID:           uuid.NewString(),
				UserID:       market.CreatorID,
				Type:         models.TxTypeCreatorFee,
				Amount:       result.CreatorFee,
				MarketID:     &market.ID,
				ResolutionID: &resolution.ID,
			})
		}
		if err := s.Repo.InsertBalanceTransactionsTx(ctx, tx, ledger); err != nil {
			return storageErr(err, "insert balance transactions")
		}

		// The house fee and the rounding residual stay with the platform;
		// neither is credited to any user balance.
		return s.updateMarket(ctx, tx, market.ID, map[string]any{
			"status":        models.MarketStatusResolved,
			"resolution_id": resolution.ID,
		})
	})
	if txErr != nil {
		return nil, asServiceErr(txErr)
	}

	s.invalidate(ctx, params.MarketID)
	s.publish("market_resolved", map[string]any{
		"market_id":      params.MarketID,
		"resolution_id":  resolution.ID,
		"winning_option": params.WinningOptionID,
		"total_payout":   resolution.TotalPayout,
		"winner_count":   resolution.WinnerCount,
	})
	if s.Logger != nil {
		s.Logger.Info("market resolved",
			zap.String("market_id", params.MarketID),
			zap.String("resolution_id", resolution.ID),
			zap.Int64("total_pool", resolution.TotalPool),
			zap.Int64("house_fee", resolution.HouseFee),
			zap.Int64("creator_fee", resolution.CreatorFee),
			zap.Int64("total_payout", resolution.TotalPayout),
			zap.Int("winners", resolution.WinnerCount),
			zap.Int64("residual", resolution.ResidualTokens),
		)
	}
	return resolution, nil
}

// Cancel voids a market, optionally refunding every active stake in full.
// Refunds carry no fee: the sum refunded equals the total pool exactly.
func (s *ResolutionService) Cancel(ctx context.Context, params CancelParams) (*CancelSummary, error) {
	if params.MarketID == "" {
		return nil, validationErr("market id is required")
	}
	if params.AdminID == "" {
		return nil, validationErr("admin id is required")
	}
	minReason := s.MinCancelReason
	if minReason <= 0 {
		minReason = 10
	}
	if len(params.Reason) < minReason {
		return nil, validationErr("cancellation reason must be at least %d characters", minReason)
	}

	if unlock, err := s.acquireLock(ctx, params.MarketID); err != nil {
		return nil, err
	} else if unlock != nil {
		defer unlock()
	}

	summary := &CancelSummary{}
	txErr := s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		market, err := s.Repo.GetMarketForUpdateTx(ctx, tx, params.MarketID)
		if err != nil {
			return storageErr(err, "load market")
		}
		if market == nil {
			return notFoundErr("market %s not found", params.MarketID)
		}
		if market.Terminal() {
			return invalidStateErr("market %s is already %s", params.MarketID, market.Status)
		}

		commitments, err := s.Repo.ListActiveCommitmentsTx(ctx, tx, params.MarketID)
		if err != nil {
			return storageErr(err, "load commitments")
		}

		now := time.Now().UTC()
		refundByUser := map[string]int64{}
		userOrder := make([]string, 0, len(commitments))
		for _, c := range commitments {
			summary.CommitmentsAffected++
			if params.RefundTokens {
				if err := s.Repo.SetCommitmentOutcomeTx(ctx, tx, c.ID, models.CommitmentStatusRefunded, c.Tokens, now); err != nil {
					return storageErr(err, "mark commitment refunded")
				}
				n, err := s.Repo.AdjustBalanceTx(ctx, tx, c.UserID, c.Tokens, -c.Tokens)
				if err != nil {
					return storageErr(err, "refund balance")
				}
				if n == 0 {
					return storageErr(nil, "balance out of sync for user "+c.UserID)
				}
				if _, seen := refundByUser[c.UserID]; !seen {
					userOrder = append(userOrder, c.UserID)
				}
				refundByUser[c.UserID] += c.Tokens
				summary.TotalTokensRefunded += c.Tokens
			} else {
				if err := s.Repo.SetCommitmentOutcomeTx(ctx, tx, c.ID, models.CommitmentStatusCancelled, 0, now); err != nil {
					return storageErr(err, "mark commitment cancelled")
				}
			}
		}

		if params.RefundTokens {
			// One audit entry per user aggregating their whole refund.
			ledger := make([]models.BalanceTransaction, 0, len(refundByUser))
			for _, userID := range userOrder {
				ledger = append(ledger, models.BalanceTransaction{
					ID:       uuid.NewString(),
					UserID:   userID,
					Type:     models.TxTypeRefund,
					Amount:   refundByUser[userID],
					MarketID: &market.ID,
				})
			}
			if err := s.Repo.InsertBalanceTransactionsTx(ctx, tx, ledger); err != nil {
				return storageErr(err, "insert refund transactions")
			}
			summary.UsersRefunded = len(refundByUser)
		}

		return s.updateMarket(ctx, tx, market.ID, map[string]any{
			"status":        models.MarketStatusCancelled,
			"cancel_reason": params.Reason,
			"cancelled_by":  params.AdminID,
			"cancelled_at":  now,
		})
	})
	if txErr != nil {
		return nil, asServiceErr(txErr)
	}

	s.invalidate(ctx, params.MarketID)
	s.publish("market_cancelled", map[string]any{
		"market_id":       params.MarketID,
		"refunded":        params.RefundTokens,
		"tokens_refunded": summary.TotalTokensRefunded,
	})
	if s.Logger != nil {
		s.Logger.Info("market cancelled",
			zap.String("market_id", params.MarketID),
			zap.Bool("refunded", params.RefundTokens),
			zap.Int64("tokens_refunded", summary.TotalTokensRefunded),
			zap.Int("commitments", summary.CommitmentsAffected),
		)
	}
	return summary, nil
}

func (s *ResolutionService) updateMarket(ctx context.Context, tx *gorm.DB, id string, updates map[string]any) error {
	if err := s.Repo.UpdateMarketTx(ctx, tx, id, updates); err != nil {
		return storageErr(err, "update market status")
	}
	return nil
}

func (s *ResolutionService) acquireLock(ctx context.Context, marketID string) (func(), error) {
	if s.Locker == nil {
		return nil, nil
	}
	ttl := s.LockTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	unlock, err := s.Locker.Acquire(ctx, "settle:"+marketID, ttl)
	if err != nil {
		return nil, storageErr(err, "settlement already in progress")
	}
	return unlock, nil
}

func (s *ResolutionService) invalidate(ctx context.Context, marketID string) {
	if s.Cache != nil {
		s.Cache.Invalidate(ctx, marketID)
	}
}

func (s *ResolutionService) publish(event string, payload any) {
	if s.Events != nil {
		s.Events.Publish(event, payload)
	}
}

// asServiceErr keeps already-classified errors as-is and wraps raw storage
// errors (e.g. a failed transaction commit) as retryable failures.
func asServiceErr(err error) error {
	if err == nil {
		return nil
	}
	if kindOf(err) != "" {
		return err
	}
	return storageErr(err, "storage operation failed")
}
