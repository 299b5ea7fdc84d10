package mapper

import (
	"time"

	"studymate-be/internal/entity"
	"studymate-be/internal/model"
)

type StudySessionMapper struct{}

func NewStudySessionMapper() *StudySessionMapper {
	return &StudySessionMapper{}
}

func (m *StudySessionMapper) ToEntity(s *model.StudySession) *entity.StudySession {
	if s == nil {
		return nil
	}
	var updatedAt *time.Time
	if !s.UpdatedAt.IsZero() {
		t := s.UpdatedAt
		updatedAt = &t
	}
	return &entity.StudySession{
		Id:        s.Id,
		UserId:    s.UserId,
		Name:      s.Name,
		Source:    s.Source,
		Status:    s.Status,
		Summary:   s.Summary,
		Chunks:    s.Chunks,
		ExpiresAt: s.ExpiresAt,
		CreatedAt: s.CreatedAt,
		UpdatedAt: updatedAt,
	}
}

func (m *StudySessionMapper) ToModel(s *entity.StudySession) *model.StudySession {
	if s == nil {
		return nil
	}
	var updatedAt time.Time
	if s.UpdatedAt != nil {
		updatedAt = *s.UpdatedAt
	}
	return &model.StudySession{
		Id:        s.Id,
		UserId:    s.UserId,
		Name:      s.Name,
		Source:    s.Source,
		Status:    s.Status,
		Summary:   s.Summary,
		Chunks:    s.Chunks,
		ExpiresAt: s.ExpiresAt,
		CreatedAt: s.CreatedAt,
		UpdatedAt: updatedAt,
	}
}
