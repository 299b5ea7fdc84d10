package implementation

import (
	"context"
	"errors"
	"fmt"

	"studymate-be/internal/entity"
	"studymate-be/internal/mapper"
	"studymate-be/internal/model"
	"studymate-be/internal/repository/contract"
	"studymate-be/internal/repository/specification"
	"studymate-be/pkg/apperr"
	"studymate-be/pkg/vectorstore"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type StudySessionRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.StudySessionMapper
}

func NewStudySessionRepository(db *gorm.DB) contract.StudySessionRepository {
	return &StudySessionRepositoryImpl{
		db:     db,
		mapper: mapper.NewStudySessionMapper(),
	}
}

func (r *StudySessionRepositoryImpl) Create(ctx context.Context, session *entity.StudySession) error {
	m := r.mapper.ToModel(session)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*session = *r.mapper.ToEntity(m)
	return nil
}

func (r *StudySessionRepositoryImpl) Update(ctx context.Context, session *entity.StudySession) error {
	m := r.mapper.ToModel(session)
	if err := r.db.WithContext(ctx).Save(m).Error; err != nil {
		return err
	}
	*session = *r.mapper.ToEntity(m)
	return nil
}

// UpdateStatus sets the ingestion status. A negative chunks keeps the stored count.
func (r *StudySessionRepositoryImpl) UpdateStatus(ctx context.Context, id uuid.UUID, status string, chunks int) error {
	updates := map[string]interface{}{"status": status}
	if chunks >= 0 {
		updates["chunks"] = chunks
	}
	return r.db.WithContext(ctx).
		Model(&model.StudySession{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *StudySessionRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&model.StudySession{}, "id = ?", id).Error
}

func (r *StudySessionRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.StudySession, error) {
	var m model.StudySession
	query := specification.ApplyAll(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *StudySessionRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.StudySession, error) {
	var models []*model.StudySession
	query := specification.ApplyAll(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	entities := make([]*entity.StudySession, len(models))
	for i, m := range models {
		entities[i] = r.mapper.ToEntity(m)
	}
	return entities, nil
}

// Put records the source of a session, creating the row when ingestion runs ahead of it.
func (r *StudySessionRepositoryImpl) Put(ctx context.Context, session, source string) error {
	id, err := uuid.Parse(session)
	if err != nil {
		return apperr.Invalid("session %q is not a uuid", session)
	}
	res := r.db.WithContext(ctx).Model(&model.StudySession{}).Where("id = ?", id).Update("source", source)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: study session %s", apperr.ErrNotFound, session)
	}
	return nil
}

func (r *StudySessionRepositoryImpl) Get(ctx context.Context, session string) (string, bool, error) {
	id, err := uuid.Parse(session)
	if err != nil {
		return "", false, nil
	}
	var m model.StudySession
	err = r.db.WithContext(ctx).Select("source").Where("id = ?", id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return m.Source, m.Source != "", nil
}

func (r *StudySessionRepositoryImpl) Remove(ctx context.Context, session string) error {
	id, err := uuid.Parse(session)
	if err != nil {
		return nil
	}
	return r.Delete(ctx, id)
}

// SourceRegistry adapts the study session table to the vector store's registry contract.
type SourceRegistry struct {
	repo contract.StudySessionRepository
}

func NewSourceRegistry(repo contract.StudySessionRepository) vectorstore.SourceRegistry {
	return &SourceRegistry{repo: repo}
}

func (s *SourceRegistry) Put(ctx context.Context, session, source string) error {
	return s.repo.Put(ctx, session, source)
}

func (s *SourceRegistry) Get(ctx context.Context, session string) (string, bool, error) {
	return s.repo.Get(ctx, session)
}

func (s *SourceRegistry) Delete(ctx context.Context, session string) error {
	return s.repo.Remove(ctx, session)
}
