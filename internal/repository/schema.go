package repository

import "gorm.io/gorm"

// AutoMigrate creates the schema from the entities. Production uses the goose
// migrations; this is for tests and local sqlite runs.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&UserEntity{},
		&MerchantEntity{},
		&WalletEntity{},
		&WalletHistoryEntity{},
		&VoucherEntity{},
		&RedemptionEntity{},
		&SiteSettingEntity{},
	)
}
