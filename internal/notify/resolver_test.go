package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"numera.app/backend/internal/model"
	"numera.app/backend/internal/repository"
)

type fakeUserRepo struct {
	users   []*model.User
	findErr error
}

func (f *fakeUserRepo) Create(context.Context, *model.User) error { return errors.New("not implemented") }

func (f *fakeUserRepo) FindByID(context.Context, uuid.UUID) (*model.User, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeUserRepo) FindByEmail(context.Context, string) (*model.User, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeUserRepo) Find(_ context.Context, filter repository.UserFilter) ([]*model.User, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
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
	if f.findErr != nil {
		return nil, f.findErr
	}
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

func companyUser(companyID uuid.UUID, active bool) *model.User {
	return &model.User{ID: uuid.New(), CompanyID: &companyID, IsActive: active, Role: model.RoleEmployee}
}

func TestResolveActorStrategy(t *testing.T) {
	t.Parallel()

	resolver := NewResolver(&fakeUserRepo{})
	actor := ActorContext{ID: uuid.New(), CompanyID: uuid.New()}

	got, err := resolver.Resolve(context.Background(), RecipientSpec{Strategy: StrategyActor}, nil, actor)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0] != actor.ID {
		t.Fatalf("expected only the actor, got %v", got)
	}
}

func TestResolveAssigneeStrategy(t *testing.T) {
	t.Parallel()

	resolver := NewResolver(&fakeUserRepo{})
	actor := ActorContext{ID: uuid.New(), CompanyID: uuid.New()}
	assignee := uuid.New()

	tests := []struct {
		name   string
		result any
		want   int
	}{
		{"map with assigneeId", map[string]any{"assigneeId": assignee.String()}, 1},
		{"map with snake_case key", map[string]any{"assignee_id": assignee}, 1},
		{"no assignee yields none", map[string]any{"title": "x"}, 0},
		{"nil result yields none", nil, 0},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := resolver.Resolve(context.Background(), RecipientSpec{Strategy: StrategyAssignee}, tt.result, actor)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != tt.want {
				t.Fatalf("expected %d recipients, got %v", tt.want, got)
			}
			if tt.want == 1 && got[0] != assignee {
				t.Fatalf("expected assignee %s, got %s", assignee, got[0])
			}
		})
	}
}

func TestResolveCompanyUsersStrategies(t *testing.T) {
	t.Parallel()

	companyID := uuid.New()
	actorUser := companyUser(companyID, true)
	other := companyUser(companyID, true)
	inactive := companyUser(companyID, false)
	elsewhere := companyUser(uuid.New(), true)

	repo := &fakeUserRepo{users: []*model.User{actorUser, other, inactive, elsewhere}}
	resolver := NewResolver(repo)
	actor := ActorContext{ID: actorUser.ID, CompanyID: companyID}

	all, err := resolver.Resolve(context.Background(), RecipientSpec{Strategy: StrategyCompanyUsers}, nil, actor)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected the two active company users, got %v", all)
	}

	exceptActor, err := resolver.Resolve(context.Background(), RecipientSpec{Strategy: StrategyCompanyUsersExceptActor}, nil, actor)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(exceptActor) != 1 || exceptActor[0] != other.ID {
		t.Fatalf("expected only the other user, got %v", exceptActor)
	}
}

func TestResolveCustomFunction(t *testing.T) {
	t.Parallel()

	resolver := NewResolver(&fakeUserRepo{})
	want := []uuid.UUID{uuid.New(), uuid.New()}
	spec := RecipientSpec{
		// Custom wins even when a strategy is also set.
		Strategy: StrategyCompanyUsers,
		Custom: func(result any, actor ActorContext) []uuid.UUID {
			return want
		},
	}

	got, err := resolver.Resolve(context.Background(), spec, nil, ActorContext{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("expected custom result %v, got %v", want, got)
	}
}

func TestResolveUnknownStrategy(t *testing.T) {
	t.Parallel()

	resolver := NewResolver(&fakeUserRepo{})
	if _, err := resolver.Resolve(context.Background(), RecipientSpec{Strategy: "everyone"}, nil, ActorContext{}); err == nil {
		t.Fatal("expected an error for an unknown strategy")
	}
}
