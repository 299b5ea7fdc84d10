package service

import (
	"context"
	"fmt"

	"studymate-be/internal/entity"
	"studymate-be/internal/repository/contract"
	"studymate-be/internal/repository/specification"
	"studymate-be/pkg/apperr"

	"github.com/google/uuid"
)

// findOwned loads a study session that belongs to userId. Sessions of other users are
// reported as NotFound.
func findOwned(ctx context.Context, repo contract.StudySessionRepository, userId string, id uuid.UUID) (*entity.StudySession, error) {
	session, err := repo.FindOne(ctx, specification.ByID{ID: id})
	if err != nil {
		return nil, err
	}
	if session == nil || session.UserId != userId {
		return nil, fmt.Errorf("%w: study session %s", apperr.ErrNotFound, id)
	}
	return session, nil
}

// parseSessionID validates a study session id taken from a request body or path.
func parseSessionID(field, session string) (uuid.UUID, error) {
	if err := apperr.RequireID(field, session); err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(session)
	if err != nil {
		return uuid.Nil, apperr.Invalid("%s must be a uuid", field)
	}
	return id, nil
}
