package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"numera.app/backend/internal/model"
)

// ErrSystemCompanyMissing is returned when the platform company has not been
// provisioned. Callers treat it as "abandon the dispatch", never as a guess.
var ErrSystemCompanyMissing = errors.New("system company not provisioned")

type CompanyRepository interface {
	Create(ctx context.Context, company *model.Company) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Company, error)
	// GetSystemCompanyID resolves the single platform-owned company.
	GetSystemCompanyID(ctx context.Context) (uuid.UUID, error)
}

type companyRepository struct {
	db *gorm.DB
}

func NewCompanyRepository(db *gorm.DB) CompanyRepository {
	return &companyRepository{db: db}
}

func (r *companyRepository) Create(ctx context.Context, company *model.Company) error {
	return r.db.WithContext(ctx).Create(company).Error
}

func (r *companyRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Company, error) {
	var company model.Company
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&company).Error; err != nil {
		return nil, err
	}
	return &company, nil
}

func (r *companyRepository) GetSystemCompanyID(ctx context.Context) (uuid.UUID, error) {
	var company model.Company
	err := r.db.WithContext(ctx).
		Where("is_system = ?", true).
		First(&company).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return uuid.Nil, ErrSystemCompanyMissing
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("lookup system company: %w", err)
	}
	return company.ID, nil
}
