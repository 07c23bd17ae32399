package db

import (
	"stakemarket/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	return db.Gorm.AutoMigrate(
		&models.Market{},
		&models.MarketOption{},
		&models.Commitment{},
		&models.Resolution{},
		&models.Payout{},
		&models.CreatorPayout{},
		&models.UserBalance{},
		&models.BalanceTransaction{},
	)
}
