package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"numera.app/backend/internal/model"
	"numera.app/backend/internal/repository"
)

const settingsCacheTTL = 5 * time.Minute

// Channels is the gating verdict for one (recipient, module, type).
type Channels struct {
	InApp bool
	Email bool
}

// SettingsUpdate is a partial update of one settings row. Nil fields are
// left untouched.
type SettingsUpdate struct {
	InAppEnabled           *bool
	EmailEnabled           *bool
	ReceiveOnCreate        *bool
	ReceiveOnUpdate        *bool
	ReceiveOnDelete        *bool
	ReceiveOnTaskCompleted *bool
	ReceiveOnTaskOverdue   *bool
	TypePreferences        map[model.NotificationType]model.ChannelPreference
}

type SettingsService interface {
	// ChannelsFor evaluates both channel predicates for one recipient.
	// A missing settings row allows everything.
	ChannelsFor(ctx context.Context, userID, companyID uuid.UUID, moduleSlug string, t model.NotificationType) (Channels, error)
	// ChannelsForRecipients evaluates many recipients off a single settings
	// query so dispatch fan-out stays O(1) on the read side.
	ChannelsForRecipients(ctx context.Context, userIDs []uuid.UUID, companyID uuid.UUID, moduleSlug string, t model.NotificationType) (map[uuid.UUID]Channels, error)
	ShouldSendInApp(ctx context.Context, userID, companyID uuid.UUID, moduleSlug string, t model.NotificationType) (bool, error)
	ShouldSendEmail(ctx context.Context, userID, companyID uuid.UUID, moduleSlug string, t model.NotificationType) (bool, error)

	// ListForUser returns one row per module, lazily creating defaults.
	ListForUser(ctx context.Context, userID, companyID uuid.UUID) ([]*model.NotificationSettings, error)
	UpdateModule(ctx context.Context, userID, companyID uuid.UUID, moduleSlug string, upd SettingsUpdate) (*model.NotificationSettings, error)
	UpdateAllModules(ctx context.Context, userID, companyID uuid.UUID, upd SettingsUpdate) ([]*model.NotificationSettings, error)
}

type settingsService struct {
	repo        repository.SettingsRepository
	redisClient *redis.Client
}

func NewSettingsService(repo repository.SettingsRepository, redisClient *redis.Client) SettingsService {
	return &settingsService{repo: repo, redisClient: redisClient}
}

func (s *settingsService) ChannelsFor(ctx context.Context, userID, companyID uuid.UUID, moduleSlug string, t model.NotificationType) (Channels, error) {
	row, err := s.loadRow(ctx, userID, companyID, moduleSlug)
	if err != nil {
		return Channels{}, err
	}
	return evaluateChannels(row, t), nil
}

func (s *settingsService) ChannelsForRecipients(ctx context.Context, userIDs []uuid.UUID, companyID uuid.UUID, moduleSlug string, t model.NotificationType) (map[uuid.UUID]Channels, error) {
	result := make(map[uuid.UUID]Channels, len(userIDs))
	if len(userIDs) == 0 {
		return result, nil
	}

	rows, err := s.repo.FindForUsers(ctx, userIDs, companyID)
	if err != nil {
		return nil, fmt.Errorf("batch settings lookup: %w", err)
	}

	byUser := make(map[uuid.UUID]*model.NotificationSettings, len(rows))
	for _, row := range rows {
		if row.ModuleSlug == moduleSlug {
			byUser[row.UserID] = row
		}
	}

	for _, id := range userIDs {
		result[id] = evaluateChannels(byUser[id], t)
	}
	return result, nil
}

func (s *settingsService) ShouldSendInApp(ctx context.Context, userID, companyID uuid.UUID, moduleSlug string, t model.NotificationType) (bool, error) {
	ch, err := s.ChannelsFor(ctx, userID, companyID, moduleSlug, t)
	return ch.InApp, err
}

func (s *settingsService) ShouldSendEmail(ctx context.Context, userID, companyID uuid.UUID, moduleSlug string, t model.NotificationType) (bool, error) {
	ch, err := s.ChannelsFor(ctx, userID, companyID, moduleSlug, t)
	return ch.Email, err
}

func (s *settingsService) ListForUser(ctx context.Context, userID, companyID uuid.UUID) ([]*model.NotificationSettings, error) {
	rows := make([]*model.NotificationSettings, 0, len(model.AllModuleSlugs()))
	for _, slug := range model.AllModuleSlugs() {
		row, err := s.repo.GetOrCreate(ctx, userID, companyID, slug)
		if err != nil {
			return nil, fmt.Errorf("ensure settings for module %s: %w", slug, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (s *settingsService) UpdateModule(ctx context.Context, userID, companyID uuid.UUID, moduleSlug string, upd SettingsUpdate) (*model.NotificationSettings, error) {
	row, err := s.repo.GetOrCreate(ctx, userID, companyID, moduleSlug)
	if err != nil {
		return nil, err
	}

	applyUpdate(row, upd)
	if err := s.repo.Update(ctx, row); err != nil {
		return nil, err
	}
	s.invalidateCache(ctx, userID, companyID, moduleSlug)
	return row, nil
}

func (s *settingsService) UpdateAllModules(ctx context.Context, userID, companyID uuid.UUID, upd SettingsUpdate) ([]*model.NotificationSettings, error) {
	rows := make([]*model.NotificationSettings, 0, len(model.AllModuleSlugs()))
	for _, slug := range model.AllModuleSlugs() {
		row, err := s.UpdateModule(ctx, userID, companyID, slug, upd)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// loadRow fetches one settings row through the Redis read-through cache.
// A nil row (no error) means the triple has no settings yet.
func (s *settingsService) loadRow(ctx context.Context, userID, companyID uuid.UUID, moduleSlug string) (*model.NotificationSettings, error) {
	key := settingsCacheKey(userID, companyID, moduleSlug)

	if s.redisClient != nil {
		cached, err := s.redisClient.Get(ctx, key).Result()
		if err == nil {
			var row model.NotificationSettings
			if json.Unmarshal([]byte(cached), &row) == nil {
				return &row, nil
			}
		}
	}

	row, err := s.repo.Find(ctx, userID, companyID, moduleSlug)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if s.redisClient != nil {
		if payload, err := json.Marshal(row); err == nil {
			s.redisClient.Set(ctx, key, payload, settingsCacheTTL)
		}
	}
	return row, nil
}

func (s *settingsService) invalidateCache(ctx context.Context, userID, companyID uuid.UUID, moduleSlug string) {
	if s.redisClient == nil {
		return
	}
	s.redisClient.Del(ctx, settingsCacheKey(userID, companyID, moduleSlug))
}

func settingsCacheKey(userID, companyID uuid.UUID, moduleSlug string) string {
	return fmt.Sprintf("notification_settings:%s:%s:%s", userID, companyID, moduleSlug)
}

// evaluateChannels applies the gating order: permissive default for a missing
// row, then the coarse channel flag, then an explicit per-type override, then
// the event-category flags.
func evaluateChannels(row *model.NotificationSettings, t model.NotificationType) Channels {
	return Channels{
		InApp: channelAllowed(row, t, true),
		Email: channelAllowed(row, t, false),
	}
}

func channelAllowed(row *model.NotificationSettings, t model.NotificationType, inApp bool) bool {
	if row == nil {
		return true
	}

	if inApp {
		if !row.InAppEnabled {
			return false
		}
	} else if !row.EmailEnabled {
		return false
	}

	if pref, ok := row.TypePreferences[t]; ok {
		override := pref.Email
		if inApp {
			override = pref.InApp
		}
		if override != nil && !*override {
			return false
		}
	}

	switch model.CategoryForType(t) {
	case model.CategoryTaskCompleted:
		return row.ReceiveOnTaskCompleted
	case model.CategoryTaskOverdue:
		return row.ReceiveOnTaskOverdue
	case model.CategoryCreate:
		return row.ReceiveOnCreate
	case model.CategoryUpdate:
		return row.ReceiveOnUpdate
	case model.CategoryDelete:
		return row.ReceiveOnDelete
	default:
		return true
	}
}

func applyUpdate(row *model.NotificationSettings, upd SettingsUpdate) {
	if upd.InAppEnabled != nil {
		row.InAppEnabled = *upd.InAppEnabled
	}
	if upd.EmailEnabled != nil {
		row.EmailEnabled = *upd.EmailEnabled
	}
	if upd.ReceiveOnCreate != nil {
		row.ReceiveOnCreate = *upd.ReceiveOnCreate
	}
	if upd.ReceiveOnUpdate != nil {
		row.ReceiveOnUpdate = *upd.ReceiveOnUpdate
	}
	if upd.ReceiveOnDelete != nil {
		row.ReceiveOnDelete = *upd.ReceiveOnDelete
	}
	if upd.ReceiveOnTaskCompleted != nil {
		row.ReceiveOnTaskCompleted = *upd.ReceiveOnTaskCompleted
	}
	if upd.ReceiveOnTaskOverdue != nil {
		row.ReceiveOnTaskOverdue = *upd.ReceiveOnTaskOverdue
	}
	if upd.TypePreferences != nil {
		row.TypePreferences = upd.TypePreferences
	}
}
