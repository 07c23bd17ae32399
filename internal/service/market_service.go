package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"stakemarket/internal/config"
	"stakemarket/internal/models"
	"stakemarket/internal/repository"
)

// MarketService creates markets and runs the lifecycle sweep that parks
// ended markets in pending_resolution until an admin settles them.
type MarketService struct {
	Repo   repository.Repository
	Logger *zap.Logger
	Fees   config.FeesConfig
	Market config.MarketConfig
	Events EventPublisher
	Cache  SnapshotCache
}

type CreateMarketParams struct {
	Title       string
	Description string
	CreatorID   string
	Options     []string
	EndsAt      time.Time
	// CreatorFeeFraction defaults to the configured value when zero.
	CreatorFeeFraction float64
}

func (s *MarketService) Create(ctx context.Context, params CreateMarketParams) (*models.Market, []models.MarketOption, error) {
	title := strings.TrimSpace(params.Title)
	if title == "" {
		return nil, nil, validationErr("title is required")
	}
	if params.CreatorID == "" {
		return nil, nil, validationErr("creator id is required")
	}
	minOptions := s.Market.MinOptions
	if minOptions < 2 {
		minOptions = 2
	}
	maxOptions := s.Market.MaxOptions
	if maxOptions <= 0 {
		maxOptions = 20
	}
	labels := make([]string, 0, len(params.Options))
	seen := map[string]struct{}{}
	for _, raw := range params.Options {
		label := strings.TrimSpace(raw)
		if label == "" {
			continue
		}
		key := strings.ToLower(label)
		if _, dup := seen[key]; dup {
			return nil, nil, validationErr("duplicate option %q", label)
		}
		seen[key] = struct{}{}
		labels = append(labels, label)
	}
	if len(labels) < minOptions || len(labels) > maxOptions {
		return nil, nil, validationErr("option count must be between %d and %d", minOptions, maxOptions)
	}
	now := time.Now().UTC()
	if !params.EndsAt.After(now) {
		return nil, nil, validationErr("ends_at must be in the future")
	}
	fraction := params.CreatorFeeFraction
	if fraction == 0 {
		fraction = s.Fees.CreatorDefault
	}
	if fraction < s.Fees.CreatorMinFraction || fraction > s.Fees.CreatorMaxFraction {
		return nil, nil, validationErr("creator fee fraction %v out of range [%v, %v]",
			fraction, s.Fees.CreatorMinFraction, s.Fees.CreatorMaxFraction)
	}

	market := &models.Market{
		ID:                 uuid.NewString(),
		Title:              title,
		CreatorID:          params.CreatorID,
		CreatorFeeFraction: decimal.NewFromFloat(fraction),
		Status:             models.MarketStatusActive,
		EndsAt:             params.EndsAt.UTC(),
	}
	if desc := strings.TrimSpace(params.Description); desc != "" {
		market.Description = &desc
	}
	options := make([]models.MarketOption, 0, len(labels))
	for i, label := range labels {
		options = append(options, models.MarketOption{
			ID:       uuid.NewString(),
			MarketID: market.ID,
			Label:    label,
			Position: i,
		})
	}

	txErr := s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		return s.Repo.CreateMarketTx(ctx, tx, market, options)
	})
	if txErr != nil {
		return nil, nil, asServiceErr(txErr)
	}

	if s.Logger != nil {
		s.Logger.Info("market created",
			zap.String("market_id", market.ID),
			zap.String("creator_id", market.CreatorID),
			zap.Int("options", len(options)),
			zap.Time("ends_at", market.EndsAt),
		)
	}
	return market, options, nil
}

// SweepEnded moves markets past their end time from active to
// pending_resolution. Run from cron; each market transitions in its own
// transaction so one sticky row cannot stall the rest.
func (s *MarketService) SweepEnded(ctx context.Context) (int, error) {
	now := time.Now().UTC()
	due, err := s.Repo.ListMarketsPastEnd(ctx, now, 200)
	if err != nil {
		return 0, storageErr(err, "list ended markets")
	}

	moved := 0
	for _, m := range due {
		marketID := m.ID
		txErr := s.Repo.InTx(ctx, func(tx *gorm.DB) error {
			market, err := s.Repo.GetMarketForUpdateTx(ctx, tx, marketID)
			if err != nil {
				return storageErr(err, "load market")
			}
			if market == nil || market.Status != models.MarketStatusActive {
				return nil
			}
			if market.EndsAt.After(now) {
				return nil
			}
			return asServiceErr(s.Repo.UpdateMarketTx(ctx, tx, marketID, map[string]any{
				"status": models.MarketStatusPendingResolution,
			}))
		})
		if txErr != nil {
			if s.Logger != nil {
				s.Logger.Warn("lifecycle sweep failed for market",
					zap.String("market_id", marketID), zap.Error(txErr))
			}
			continue
		}
		moved++
		if s.Cache != nil {
			s.Cache.Invalidate(ctx, marketID)
		}
		if s.Events != nil {
			s.Events.Publish("market_pending", map[string]any{"market_id": marketID})
		}
	}
	return moved, nil
}

// List is a thin read passthrough used by the HTTP layer.
func (s *MarketService) List(ctx context.Context, params repository.ListMarketsParams) ([]models.Market, int64, error) {
	items, err := s.Repo.ListMarkets(ctx, params)
	if err != nil {
		return nil, 0, storageErr(err, "list markets")
	}
	total, err := s.Repo.CountMarkets(ctx, params)
	if err != nil {
		return nil, 0, storageErr(err, "count markets")
	}
	return items, total, nil
}
