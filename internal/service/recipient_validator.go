package service

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"numera.app/backend/internal/repository"
)

// RecipientValidator is the tenant-isolation gate. Every dispatch goes
// through Validate before anything is persisted or emitted.
type RecipientValidator interface {
	Validate(ctx context.Context, candidateIDs []uuid.UUID, companyID uuid.UUID) ([]uuid.UUID, error)
}

type recipientValidator struct {
	users repository.UserRepository
}

func NewRecipientValidator(users repository.UserRepository) RecipientValidator {
	return &recipientValidator{users: users}
}

// Validate intersects the candidate list with the active members of
// companyID. Candidates outside the company are dropped, not errors: stale
// IDs from resolvers are expected.
func (v *recipientValidator) Validate(ctx context.Context, candidateIDs []uuid.UUID, companyID uuid.UUID) ([]uuid.UUID, error) {
	if len(candidateIDs) == 0 {
		return nil, nil
	}

	members, err := v.users.FindActiveIDs(ctx, companyID, candidateIDs)
	if err != nil {
		return nil, fmt.Errorf("validate recipients for company %s: %w", companyID, err)
	}

	valid := make(map[uuid.UUID]bool, len(members))
	for _, id := range members {
		valid[id] = true
	}

	result := make([]uuid.UUID, 0, len(candidateIDs))
	var dropped []uuid.UUID
	seen := make(map[uuid.UUID]bool, len(candidateIDs))
	for _, id := range candidateIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		if valid[id] {
			result = append(result, id)
		} else {
			dropped = append(dropped, id)
		}
	}

	if len(dropped) > 0 {
		log.Printf("[WARN] dropped %d recipient(s) outside company %s: %v", len(dropped), companyID, dropped)
	}
	return result, nil
}
