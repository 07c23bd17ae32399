package gormrepository

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"stakemarket/internal/models"
	"stakemarket/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(fn)
}

// --- Markets ----------------------------------------------------------------

func (s *Store) CreateMarketTx(ctx context.Context, tx *gorm.DB, market *models.Market, options []models.MarketOption) error {
	if tx == nil || market == nil {
		return nil
	}
	if err := tx.WithContext(ctx).Create(market).Error; err != nil {
		return err
	}
	if len(options) == 0 {
		return nil
	}
	return tx.WithContext(ctx).Create(&options).Error
}

func (s *Store) GetMarketByID(ctx context.Context, id string) (*models.Market, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, nil
	}
	var item models.Market
	err := s.db.WithContext(ctx).Model(&models.Market{}).Where("id = ?", id).First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) GetMarketForUpdateTx(ctx context.Context, tx *gorm.DB, id string) (*models.Market, error) {
	if tx == nil {
		return nil, nil
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, nil
	}
	var item models.Market
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListMarkets(ctx context.Context, params repository.ListMarketsParams) ([]models.Market, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := applyMarketFilters(s.db.WithContext(ctx).Model(&models.Market{}), params)
	query = applyOrder(query, params.OrderBy, params.Asc, "created_at")
	limit := normalizeLimit(params.Limit, 100)
	offset := normalizeOffset(params.Offset)
	var items []models.Market
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountMarkets(ctx context.Context, params repository.ListMarketsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	query := applyMarketFilters(s.db.WithContext(ctx).Model(&models.Market{}), params)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func applyMarketFilters(query *gorm.DB, params repository.ListMarketsParams) *gorm.DB {
	if params.Status != nil && strings.TrimSpace(*params.Status) != "" {
		query = query.Where("status = ?", strings.TrimSpace(*params.Status))
	}
	if params.CreatorID != nil && strings.TrimSpace(*params.CreatorID) != "" {
		query = query.Where("creator_id = ?", strings.TrimSpace(*params.CreatorID))
	}
	return query
}

func (s *Store) UpdateMarketTx(ctx context.Context, tx *gorm.DB, id string, updates map[string]any) error {
	if tx == nil || len(updates) == 0 {
		return nil
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil
	}
	return tx.WithContext(ctx).
		Model(&models.Market{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (s *Store) ListMarketsPastEnd(ctx context.Context, now time.Time, limit int) ([]models.Market, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}
	limit = normalizeLimit(limit, 200)
	var items []models.Market
	err := s.db.WithContext(ctx).
		Model(&models.Market{}).
		Where("status = ?", models.MarketStatusActive).
		Where("ends_at <= ?", now).
		Order("ends_at asc").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// --- Options ----------------------------------------------------------------

func (s *Store) ListOptionsByMarketID(ctx context.Context, marketID string) ([]models.MarketOption, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	marketID = strings.TrimSpace(marketID)
	if marketID == "" {
		return nil, nil
	}
	var items []models.MarketOption
	err := s.db.WithContext(ctx).
		Model(&models.MarketOption{}).
		Where("market_id = ?", marketID).
		Order("position asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) AddOptionStakeTx(ctx context.Context, tx *gorm.DB, optionID string, tokens int64, newParticipant bool) error {
	if tx == nil {
		return nil
	}
	optionID = strings.TrimSpace(optionID)
	if optionID == "" || tokens <= 0 {
		return nil
	}
	updates := map[string]any{
		"total_tokens": gorm.Expr("total_tokens + ?", tokens),
		"updated_at":   time.Now().UTC(),
	}
	if newParticipant {
		updates["participant_count"] = gorm.Expr("participant_count + 1")
	}
	return tx.WithContext(ctx).
		Model(&models.MarketOption{}).
		Where("id = ?", optionID).
		Updates(updates).Error
}

// --- Commitments ------------------------------------------------------------

func (s *Store) InsertCommitmentTx(ctx context.Context, tx *gorm.DB, item *models.Commitment) error {
	if tx == nil || item == nil {
		return nil
	}
	return tx.WithContext(ctx).Create(item).Error
}

func (s *Store) ListActiveCommitmentsTx(ctx context.Context, tx *gorm.DB, marketID string) ([]models.Commitment, error) {
	if tx == nil {
		return nil, nil
	}
	marketID = strings.TrimSpace(marketID)
	if marketID == "" {
		return nil, nil
	}
	var items []models.Commitment
	err := tx.WithContext(ctx).
		Model(&models.Commitment{}).
		Where("market_id = ?", marketID).
		Where("status = ?", models.CommitmentStatusActive).
		Order("placed_at asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListCommitments(ctx context.Context, params repository.ListCommitmentsParams) ([]models.Commitment, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.Commitment{})
	if params.MarketID != nil && strings.TrimSpace(*params.MarketID) != "" {
		query = query.Where("market_id = ?", strings.TrimSpace(*params.MarketID))
	}
	if params.UserID != nil && strings.TrimSpace(*params.UserID) != "" {
		query = query.Where("user_id = ?", strings.TrimSpace(*params.UserID))
	}
	if params.Status != nil && strings.TrimSpace(*params.Status) != "" {
		query = query.Where("status = ?", strings.TrimSpace(*params.Status))
	}
	query = applyOrder(query, params.OrderBy, params.Asc, "placed_at")
	limit := normalizeLimit(params.Limit, 200)
	offset := normalizeOffset(params.Offset)
	var items []models.Commitment
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountUserCommitmentsOnOption(ctx context.Context, tx *gorm.DB, marketID, optionID, userID string) (int64, error) {
	db := tx
	if db == nil {
		if s == nil || s.db == nil {
			return 0, nil
		}
		db = s.db
	}
	var count int64
	err := db.WithContext(ctx).
		Model(&models.Commitment{}).
		Where("market_id = ?", strings.TrimSpace(marketID)).
		Where("option_id = ?", strings.TrimSpace(optionID)).
		Where("user_id = ?", strings.TrimSpace(userID)).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Store) SetCommitmentOutcomeTx(ctx context.Context, tx *gorm.DB, id string, status string, payoutAmount int64, resolvedAt time.Time) error {
	if tx == nil {
		return nil
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil
	}
	return tx.WithContext(ctx).
		Model(&models.Commitment{}).
		Where("id = ?", id).
		Where("status = ?", models.CommitmentStatusActive).
		Updates(map[string]any{
			"status":        status,
			"payout_amount": payoutAmount,
			"resolved_at":   resolvedAt,
		}).Error
}

// --- Resolutions and payouts ------------------------------------------------

func (s *Store) InsertResolutionTx(ctx context.Context, tx *gorm.DB, item *models.Resolution) error {
	if tx == nil || item == nil {
		return nil
	}
	return tx.WithContext(ctx).Create(item).Error
}

func (s *Store) GetResolutionByMarketID(ctx context.Context, marketID string) (*models.Resolution, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	marketID = strings.TrimSpace(marketID)
	if marketID == "" {
		return nil, nil
	}
	var item models.Resolution
	err := s.db.WithContext(ctx).Model(&models.Resolution{}).Where("market_id = ?", marketID).First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) InsertPayoutsTx(ctx context.Context, tx *gorm.DB, items []models.Payout) error {
	if tx == nil || len(items) == 0 {
		return nil
	}
	return tx.WithContext(ctx).CreateInBatches(items, 200).Error
}

func (s *Store) InsertCreatorPayoutTx(ctx context.Context, tx *gorm.DB, item *models.CreatorPayout) error {
	if tx == nil || item == nil {
		return nil
	}
	return tx.WithContext(ctx).Create(item).Error
}

// --- Balances ---------------------------------------------------------------

func (s *Store) GetBalance(ctx context.Context, userID string) (*models.UserBalance, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, nil
	}
	var item models.UserBalance
	err := s.db.WithContext(ctx).Model(&models.UserBalance{}).Where("user_id = ?", userID).First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) EnsureBalanceTx(ctx context.Context, tx *gorm.DB, userID string, initial int64) (*models.UserBalance, error) {
	if tx == nil {
		return nil, nil
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, nil
	}
	item := models.UserBalance{UserID: userID, Available: initial}
	if err := tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&item).Error; err != nil {
		return nil, err
	}
	var out models.UserBalance
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(&out).Error
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) AdjustBalanceTx(ctx context.Context, tx *gorm.DB, userID string, availableDelta, committedDelta int64) (int64, error) {
	if tx == nil {
		return 0, nil
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0, nil
	}
	// The non-negativity guard lives in the WHERE clause so a violating
	// update matches zero rows instead of committing a negative balance.
	res := tx.WithContext(ctx).
		Model(&models.UserBalance{}).
		Where("user_id = ?", userID).
		Where("available + ? >= 0", availableDelta).
		Where("committed + ? >= 0", committedDelta).
		Updates(map[string]any{
			"available":  gorm.Expr("available + ?", availableDelta),
			"committed":  gorm.Expr("committed + ?", committedDelta),
			"updated_at": time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}

func (s *Store) InsertBalanceTransactionsTx(ctx context.Context, tx *gorm.DB, items []models.BalanceTransaction) error {
	if tx == nil || len(items) == 0 {
		return nil
	}
	return tx.WithContext(ctx).CreateInBatches(items, 200).Error
}

func (s *Store) ListBalanceTransactions(ctx context.Context, params repository.ListBalanceTransactionsParams) ([]models.BalanceTransaction, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.BalanceTransaction{})
	if params.UserID != nil && strings.TrimSpace(*params.UserID) != "" {
		query = query.Where("user_id = ?", strings.TrimSpace(*params.UserID))
	}
	if params.Type != nil && strings.TrimSpace(*params.Type) != "" {
		query = query.Where("type = ?", strings.TrimSpace(*params.Type))
	}
	if params.Since != nil && !params.Since.IsZero() {
		query = query.Where("created_at >= ?", *params.Since)
	}
	query = applyOrder(query, params.OrderBy, params.Asc, "created_at")
	limit := normalizeLimit(params.Limit, 200)
	offset := normalizeOffset(params.Offset)
	var items []models.BalanceTransaction
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// --- helpers ----------------------------------------------------------------

func applyOrder(query *gorm.DB, orderBy string, asc *bool, fallback string) *gorm.DB {
	column := strings.TrimSpace(orderBy)
	if column == "" {
		column = fallback
	}
	direction := "desc"
	if asc != nil && *asc {
		direction = "asc"
	}
	return query.Order(column + " " + direction)
}

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > 500 {
		return 500
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}
