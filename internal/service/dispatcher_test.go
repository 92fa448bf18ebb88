package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	"numera.app/backend/internal/events"
	"numera.app/backend/internal/model"
	"numera.app/backend/internal/repository"
)

type fakeUserRepo struct {
	users []*model.User
}

func (f *fakeUserRepo) Create(context.Context, *model.User) error { return errors.New("not implemented") }

func (f *fakeUserRepo) FindByID(context.Context, uuid.UUID) (*model.User, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeUserRepo) FindByEmail(context.Context, string) (*model.User, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeUserRepo) Find(_ context.Context, filter repository.UserFilter) ([]*model.User, error) {
	var out []*model.User
	for _, u := range f.users {
		if filter.CompanyID != nil && (u.CompanyID == nil || *u.CompanyID != *filter.CompanyID) {
			continue
		}
		if filter.IsActive != nil && u.IsActive != *filter.IsActive {
			continue
		}
		out = append(out, u)
	}
	return out, nil
}

func (f *fakeUserRepo) FindActiveIDs(_ context.Context, companyID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error) {
	member := make(map[uuid.UUID]bool)
	for _, u := range f.users {
		if u.CompanyID != nil && *u.CompanyID == companyID && u.IsActive {
			member[u.ID] = true
		}
	}
	var out []uuid.UUID
	for _, id := range ids {
		if member[id] {
			out = append(out, id)
		}
	}
	return out, nil
}

type fakeNotificationRepo struct {
	mu      sync.Mutex
	created []*model.Notification
	failFor map[uuid.UUID]error
}

func (f *fakeNotificationRepo) Create(_ context.Context, n *model.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failFor[n.RecipientID]; ok {
		return err
	}
	n.ID = uuid.New()
	f.created = append(f.created, n)
	return nil
}

func (f *fakeNotificationRepo) FindByID(context.Context, uuid.UUID) (*model.Notification, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeNotificationRepo) FindByRecipient(context.Context, uuid.UUID, repository.NotificationQuery) ([]*model.Notification, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeNotificationRepo) MarkAsRead(context.Context, uuid.UUID) error    { return nil }
func (f *fakeNotificationRepo) MarkAllAsRead(context.Context, uuid.UUID) error { return nil }
func (f *fakeNotificationRepo) Archive(context.Context, uuid.UUID) error       { return nil }
func (f *fakeNotificationRepo) MarkEmailSent(context.Context, uuid.UUID) error { return nil }

func (f *fakeNotificationRepo) CountUnread(context.Context, uuid.UUID) (int64, error) {
	return 0, nil
}

func (f *fakeNotificationRepo) recipients() []uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]uuid.UUID, 0, len(f.created))
	for _, n := range f.created {
		out = append(out, n.RecipientID)
	}
	return out
}

type dispatchFixture struct {
	dispatcher    Dispatcher
	notifications *fakeNotificationRepo
	settings      *fakeSettingsRepo
	users         *fakeUserRepo
	bus           *events.Bus

	mu            sync.Mutex
	createdEvents []events.NotificationCreated
	emailEvents   []events.EmailSendRequest
}

func newDispatchFixture(users ...*model.User) *dispatchFixture {
	f := &dispatchFixture{
		notifications: &fakeNotificationRepo{failFor: make(map[uuid.UUID]error)},
		settings:      newFakeSettingsRepo(),
		users:         &fakeUserRepo{users: users},
		bus:           events.NewBus(),
	}

	f.bus.Subscribe(events.TopicNotificationCreated, func(_ context.Context, _ string, payload any) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.createdEvents = append(f.createdEvents, payload.(events.NotificationCreated))
	})
	f.bus.Subscribe(events.TopicNotificationEmailSend, func(_ context.Context, _ string, payload any) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.emailEvents = append(f.emailEvents, payload.(events.EmailSendRequest))
	})

	settingsSvc := NewSettingsService(f.settings, nil)
	validator := NewRecipientValidator(f.users)
	f.dispatcher = NewDispatcher(f.notifications, f.users, settingsSvc, validator, f.bus)
	return f
}

func TestDispatchFiltersCrossTenantRecipients(t *testing.T) {
	t.Parallel()

	companyID := uuid.New()
	insider := companyUser(companyID, true)
	inactive := companyUser(companyID, false)
	outsider := companyUser(uuid.New(), true)
	f := newDispatchFixture(insider, inactive, outsider)

	f.dispatcher.Dispatch(context.Background(), DispatchNotificationPayload{
		Type:         model.TypeTaskCreated,
		RecipientIDs: []uuid.UUID{insider.ID, inactive.ID, outsider.ID},
		CompanyID:    companyID,
		Title:        "New task",
	})

	got := f.notifications.recipients()
	if len(got) != 1 || got[0] != insider.ID {
		t.Fatalf("expected a notification only for the active company member, got %v", got)
	}
}

func TestDispatchEmptyRecipientsDoesNothing(t *testing.T) {
	t.Parallel()

	f := newDispatchFixture()

	f.dispatcher.Dispatch(context.Background(), DispatchNotificationPayload{
		Type:      model.TypeTaskCreated,
		CompanyID: uuid.New(),
		Title:     "New task",
	})

	if len(f.notifications.created) != 0 {
		t.Fatal("no notifications expected")
	}
	if len(f.createdEvents) != 0 || len(f.emailEvents) != 0 {
		t.Fatal("no events expected")
	}
	if f.settings.queries != 0 {
		t.Fatal("empty dispatch must not touch the settings store")
	}
}

func TestDispatchSurvivesPerRecipientFailure(t *testing.T) {
	t.Parallel()

	companyID := uuid.New()
	a, b, c := companyUser(companyID, true), companyUser(companyID, true), companyUser(companyID, true)
	f := newDispatchFixture(a, b, c)
	f.notifications.failFor[b.ID] = errors.New("constraint violation")

	f.dispatcher.Dispatch(context.Background(), DispatchNotificationPayload{
		Type:         model.TypeTaskCreated,
		RecipientIDs: []uuid.UUID{a.ID, b.ID, c.ID},
		CompanyID:    companyID,
		Title:        "New task",
	})

	got := f.notifications.recipients()
	if len(got) != 2 {
		t.Fatalf("the other recipients must still be processed, got %v", got)
	}
	if len(f.createdEvents) != 2 {
		t.Fatalf("expected 2 created events, got %d", len(f.createdEvents))
	}
}

func TestDispatchBatchMetadataPersisted(t *testing.T) {
	t.Parallel()

	companyID := uuid.New()
	u := companyUser(companyID, true)
	f := newDispatchFixture(u)

	f.dispatcher.Dispatch(context.Background(), DispatchNotificationPayload{
		Type:         model.TypeTaskUpdated,
		RecipientIDs: []uuid.UUID{u.ID},
		CompanyID:    companyID,
		Title:        "12 tasks updated",
		IsBatch:      true,
		ItemCount:    5,
	})

	if len(f.notifications.created) != 1 {
		t.Fatalf("expected one notification, got %d", len(f.notifications.created))
	}
	n := f.notifications.created[0]
	if !n.IsBatch || n.ItemCount != 5 {
		t.Fatalf("batch metadata lost: isBatch=%v itemCount=%d", n.IsBatch, n.ItemCount)
	}
}

func TestDispatchEmailReferencesInAppNotification(t *testing.T) {
	t.Parallel()

	companyID := uuid.New()
	u := companyUser(companyID, true)
	f := newDispatchFixture(u)

	f.dispatcher.Dispatch(context.Background(), DispatchNotificationPayload{
		Type:         model.TypeClientCreated,
		RecipientIDs: []uuid.UUID{u.ID},
		CompanyID:    companyID,
		Title:        "New client",
	})

	if len(f.emailEvents) != 1 {
		t.Fatalf("expected one email event, got %d", len(f.emailEvents))
	}
	email := f.emailEvents[0]
	if email.NotificationID == nil {
		t.Fatal("email event should reference the stored in-app notification")
	}
	if *email.NotificationID != f.notifications.created[0].ID {
		t.Fatal("email event references the wrong notification")
	}
}

func TestDispatchEmailOnlyWhenInAppDisabled(t *testing.T) {
	t.Parallel()

	companyID := uuid.New()
	u := companyUser(companyID, true)
	f := newDispatchFixture(u)

	row := model.DefaultNotificationSettings(u.ID, companyID, model.ModuleClients)
	row.InAppEnabled = false
	f.settings.put(row)

	f.dispatcher.Dispatch(context.Background(), DispatchNotificationPayload{
		Type:         model.TypeClientCreated,
		RecipientIDs: []uuid.UUID{u.ID},
		CompanyID:    companyID,
		Title:        "New client",
	})

	if len(f.notifications.created) != 0 {
		t.Fatal("in-app disabled must not create a notification row")
	}
	if len(f.emailEvents) != 1 {
		t.Fatalf("expected the email event alone, got %d", len(f.emailEvents))
	}
	if f.emailEvents[0].NotificationID != nil {
		t.Fatal("email event must carry no notification ID when none was stored")
	}
}

func TestDispatchBothChannelsDisabled(t *testing.T) {
	t.Parallel()

	companyID := uuid.New()
	u := companyUser(companyID, true)
	f := newDispatchFixture(u)

	row := model.DefaultNotificationSettings(u.ID, companyID, model.ModuleClients)
	row.InAppEnabled = false
	row.EmailEnabled = false
	f.settings.put(row)

	f.dispatcher.Dispatch(context.Background(), DispatchNotificationPayload{
		Type:         model.TypeClientCreated,
		RecipientIDs: []uuid.UUID{u.ID},
		CompanyID:    companyID,
		Title:        "New client",
	})

	if len(f.notifications.created) != 0 || len(f.emailEvents) != 0 {
		t.Fatal("muted recipient must receive nothing")
	}
}

func TestDispatchFallsBackWhenBatchSettingsLookupFails(t *testing.T) {
	t.Parallel()

	companyID := uuid.New()
	u := companyUser(companyID, true)
	f := newDispatchFixture(u)
	f.settings.batchErr = errors.New("connection reset")

	f.dispatcher.Dispatch(context.Background(), DispatchNotificationPayload{
		Type:         model.TypeTaskCreated,
		RecipientIDs: []uuid.UUID{u.ID},
		CompanyID:    companyID,
		Title:        "New task",
	})

	if len(f.notifications.created) != 1 {
		t.Fatal("per-recipient fallback should still deliver")
	}
}

func TestDispatchToCompanyUsersExcludesActor(t *testing.T) {
	t.Parallel()

	companyID := uuid.New()
	actor := companyUser(companyID, true)
	other := companyUser(companyID, true)
	f := newDispatchFixture(actor, other)

	f.dispatcher.DispatchToCompanyUsers(context.Background(), companyID, DispatchNotificationPayload{
		Type:  model.TypeCompanyUpdated,
		Title: "Company profile updated",
	}, &actor.ID)

	got := f.notifications.recipients()
	if len(got) != 1 || got[0] != other.ID {
		t.Fatalf("actor must be excluded from the fan-out, got %v", got)
	}
}

func companyUser(companyID uuid.UUID, active bool) *model.User {
	return &model.User{ID: uuid.New(), CompanyID: &companyID, IsActive: active, Role: model.RoleEmployee}
}
