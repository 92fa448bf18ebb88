package bootstrap

import (
	"context"
	"errors"
	"log"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"numera.app/backend/internal/model"
)

// SeedSystemCompany provisions the platform-owned company admin
// notifications are scoped to. Idempotent.
func SeedSystemCompany(db *gorm.DB) error {
	var company model.Company
	err := db.Where("is_system = ?", true).First(&company).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	company = model.Company{Name: "Numera Platform", IsSystem: true}
	if err := db.Create(&company).Error; err != nil {
		return err
	}
	log.Printf("seeded system company %s", company.ID)
	return nil
}

// SeedAdminUser creates the development admin account. Only called when
// APP_ENV is development.
func SeedAdminUser(ctx context.Context, db *gorm.DB) error {
	var existing model.User
	err := db.WithContext(ctx).Where("email = ?", "admin@numera.local").First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("admin123"), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	admin := model.User{
		Email:        "admin@numera.local",
		PasswordHash: string(hash),
		FirstName:    "Platform",
		LastName:     "Admin",
		Role:         model.RoleAdmin,
		IsActive:     true,
	}
	if err := db.WithContext(ctx).Create(&admin).Error; err != nil {
		return err
	}
	log.Printf("seeded development admin %s", admin.ID)
	return nil
}
