package db

import (
	"sitesmith/internal/logging"
	"sitesmith/pkg/models"

	"gorm.io/gorm"
)

// SeedDev ensures a local demo account exists so the API is usable
// without a signup flow. Only called outside production.
func SeedDev(db *gorm.DB) error {
	var user models.User
	err := db.Where("email = ?", "demo@localhost").First(&user).Error
	if err == nil {
		return nil
	}
	if err != gorm.ErrRecordNotFound {
		return err
	}

	user = models.User{
		Email: "demo@localhost",
		Name:  "Demo User",
		Tier:  models.TierFree,
	}
	if err := db.Create(&user).Error; err != nil {
		return err
	}
	logging.S().Infow("seeded demo user", "id", user.ID, "email", user.Email)
	return nil
}
