package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"studymate-be/internal/entity"
	"studymate-be/internal/repository/contract"
	"studymate-be/internal/repository/specification"
	"studymate-be/pkg/apperr"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// StudySessionRepository keeps study sessions in process memory, for running without Postgres.
// Only the ByID, ByUserID and ExpiredBefore specifications are understood; others are ignored.
type StudySessionRepository struct {
	cache *cache.Cache
}

func NewStudySessionRepository() contract.StudySessionRepository {
	return &StudySessionRepository{cache: cache.New(cache.NoExpiration, 10*time.Minute)}
}

func (r *StudySessionRepository) Create(_ context.Context, session *entity.StudySession) error {
	if session.Id == uuid.Nil {
		session.Id = uuid.New()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}
	cp := *session
	return r.cache.Add(session.Id.String(), &cp, cache.NoExpiration)
}

func (r *StudySessionRepository) Update(_ context.Context, session *entity.StudySession) error {
	now := time.Now()
	session.UpdatedAt = &now
	cp := *session
	r.cache.Set(session.Id.String(), &cp, cache.NoExpiration)
	return nil
}

func (r *StudySessionRepository) UpdateStatus(_ context.Context, id uuid.UUID, status string, chunks int) error {
	x, ok := r.cache.Get(id.String())
	if !ok {
		return nil
	}
	cp := *x.(*entity.StudySession)
	cp.Status = status
	if chunks >= 0 {
		cp.Chunks = chunks
	}
	r.cache.Set(id.String(), &cp, cache.NoExpiration)
	return nil
}

func (r *StudySessionRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.cache.Delete(id.String())
	return nil
}

func (r *StudySessionRepository) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.StudySession, error) {
	all, err := r.FindAll(ctx, specs...)
	if err != nil || len(all) == 0 {
		return nil, err
	}
	return all[0], nil
}

func (r *StudySessionRepository) FindAll(_ context.Context, specs ...specification.Specification) ([]*entity.StudySession, error) {
	var out []*entity.StudySession
	for _, item := range r.cache.Items() {
		s := item.Object.(*entity.StudySession)
		if matches(s, specs) {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func matches(s *entity.StudySession, specs []specification.Specification) bool {
	for _, spec := range specs {
		switch v := spec.(type) {
		case specification.ByID:
			if s.Id != v.ID {
				return false
			}
		case specification.ByUserID:
			if s.UserId != v.UserID {
				return false
			}
		case specification.ExpiredBefore:
			if !s.ExpiresAt.Before(v.Time) {
				return false
			}
		}
	}
	return true
}

func (r *StudySessionRepository) Put(_ context.Context, session, source string) error {
	id, err := uuid.Parse(session)
	if err != nil {
		return apperr.Invalid("session %q is not a uuid", session)
	}
	x, ok := r.cache.Get(id.String())
	if !ok {
		return fmt.Errorf("%w: study session %s", apperr.ErrNotFound, session)
	}
	cp := *x.(*entity.StudySession)
	cp.Source = source
	r.cache.Set(id.String(), &cp, cache.NoExpiration)
	return nil
}

func (r *StudySessionRepository) Get(_ context.Context, session string) (string, bool, error) {
	x, ok := r.cache.Get(session)
	if !ok {
		return "", false, nil
	}
	src := x.(*entity.StudySession).Source
	return src, src != "", nil
}

func (r *StudySessionRepository) Remove(_ context.Context, session string) error {
	r.cache.Delete(session)
	return nil
}
