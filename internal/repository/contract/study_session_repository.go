package contract

import (
	"context"

	"studymate-be/internal/entity"
	"studymate-be/internal/repository/specification"

	"github.com/google/uuid"
)

type StudySessionRepository interface {
	Create(ctx context.Context, session *entity.StudySession) error
	Update(ctx context.Context, session *entity.StudySession) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status string, chunks int) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.StudySession, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.StudySession, error)

	// Source registry used by ingestion and the source-document retrieval tier.
	Put(ctx context.Context, session, source string) error
	Get(ctx context.Context, session string) (string, bool, error)
	Remove(ctx context.Context, session string) error
}
