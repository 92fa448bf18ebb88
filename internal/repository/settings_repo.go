package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"numera.app/backend/internal/model"
)

type SettingsRepository interface {
	// Find returns the row for the triple, or gorm.ErrRecordNotFound.
	Find(ctx context.Context, userID, companyID uuid.UUID, moduleSlug string) (*model.NotificationSettings, error)
	// FindForUsers loads all rows for a set of users in one query, keyed by
	// (userID, moduleSlug). Used by the dispatcher's batch gating.
	FindForUsers(ctx context.Context, userIDs []uuid.UUID, companyID uuid.UUID) ([]*model.NotificationSettings, error)
	FindAllForUser(ctx context.Context, userID, companyID uuid.UUID) ([]*model.NotificationSettings, error)
	// GetOrCreate lazily inserts the permissive default row. The insert
	// no-ops on conflict so two concurrent first reads cannot surface a
	// unique-constraint error; the row is re-read afterwards either way.
	GetOrCreate(ctx context.Context, userID, companyID uuid.UUID, moduleSlug string) (*model.NotificationSettings, error)
	Update(ctx context.Context, settings *model.NotificationSettings) error
}

type settingsRepository struct {
	db *gorm.DB
}

func NewSettingsRepository(db *gorm.DB) SettingsRepository {
	return &settingsRepository{db: db}
}

func (r *settingsRepository) Find(ctx context.Context, userID, companyID uuid.UUID, moduleSlug string) (*model.NotificationSettings, error) {
	var settings model.NotificationSettings
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND company_id = ? AND module_slug = ?", userID, companyID, moduleSlug).
		First(&settings).Error
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

func (r *settingsRepository) FindForUsers(ctx context.Context, userIDs []uuid.UUID, companyID uuid.UUID) ([]*model.NotificationSettings, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}

	var rows []*model.NotificationSettings
	err := r.db.WithContext(ctx).
		Where("user_id IN ? AND company_id = ?", userIDs, companyID).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *settingsRepository) FindAllForUser(ctx context.Context, userID, companyID uuid.UUID) ([]*model.NotificationSettings, error) {
	var rows []*model.NotificationSettings
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND company_id = ?", userID, companyID).
		Order("module_slug asc").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *settingsRepository) GetOrCreate(ctx context.Context, userID, companyID uuid.UUID, moduleSlug string) (*model.NotificationSettings, error) {
	defaults := model.DefaultNotificationSettings(userID, companyID, moduleSlug)

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "company_id"}, {Name: "module_slug"}},
			DoNothing: true,
		}).
		Create(defaults).Error
	if err != nil {
		return nil, err
	}

	// Re-read so concurrent creators all observe the same winning row.
	return r.Find(ctx, userID, companyID, moduleSlug)
}

func (r *settingsRepository) Update(ctx context.Context, settings *model.NotificationSettings) error {
	return r.db.WithContext(ctx).Save(settings).Error
}
