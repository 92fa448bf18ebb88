package notify

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"numera.app/backend/internal/repository"
)

// Resolver turns a recipient spec plus a business result into candidate
// user IDs. Candidates are not yet validated against the company; that is
// the dispatcher's job.
type Resolver struct {
	users repository.UserRepository
}

func NewResolver(users repository.UserRepository) *Resolver {
	return &Resolver{users: users}
}

func (r *Resolver) Resolve(ctx context.Context, spec RecipientSpec, result any, actor ActorContext) ([]uuid.UUID, error) {
	if spec.Custom != nil {
		return spec.Custom(result, actor), nil
	}

	switch spec.Strategy {
	case StrategyActor, "":
		return []uuid.UUID{actor.ID}, nil
	case StrategyAssignee:
		if id, ok := assigneeOf(result); ok {
			return []uuid.UUID{id}, nil
		}
		return nil, nil
	case StrategyCompanyUsers:
		return r.companyUserIDs(ctx, actor.CompanyID, nil)
	case StrategyCompanyUsersExceptActor:
		return r.companyUserIDs(ctx, actor.CompanyID, &actor.ID)
	default:
		return nil, fmt.Errorf("unknown recipient strategy %q", spec.Strategy)
	}
}

func (r *Resolver) companyUserIDs(ctx context.Context, companyID uuid.UUID, exclude *uuid.UUID) ([]uuid.UUID, error) {
	active := true
	users, err := r.users.Find(ctx, repository.UserFilter{CompanyID: &companyID, IsActive: &active})
	if err != nil {
		return nil, fmt.Errorf("resolve company users: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(users))
	for _, u := range users {
		if exclude != nil && u.ID == *exclude {
			continue
		}
		ids = append(ids, u.ID)
	}
	return ids, nil
}

// assigneeOf reads an assignee ID off the result object, if it carries one.
func assigneeOf(result any) (uuid.UUID, bool) {
	raw := lookupField(result, "assigneeId")
	if raw == nil {
		return uuid.Nil, false
	}

	switch v := raw.(type) {
	case uuid.UUID:
		if v == uuid.Nil {
			return uuid.Nil, false
		}
		return v, true
	case *uuid.UUID:
		if v == nil || *v == uuid.Nil {
			return uuid.Nil, false
		}
		return *v, true
	case string:
		id, err := uuid.Parse(v)
		if err != nil {
			return uuid.Nil, false
		}
		return id, true
	default:
		return uuid.Nil, false
	}
}
