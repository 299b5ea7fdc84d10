package service

import (
	"context"

	"studymate-be/internal/dto"
	"studymate-be/internal/entity"
	"studymate-be/internal/repository/contract"
	"studymate-be/pkg/studytools"

	"github.com/google/uuid"
)

type StudyTools interface {
	Summarize(ctx context.Context, session string) (string, error)
	MultipleChoice(ctx context.Context, session string) ([]studytools.Question, error)
	StudyCards(ctx context.Context, session string) ([]studytools.Card, error)
}

type IStudyToolsService interface {
	Summarize(ctx context.Context, userId string, id uuid.UUID) (*dto.SummaryResponse, error)
	GenerateQuestions(ctx context.Context, userId string, id uuid.UUID) ([]dto.QuestionDTO, error)
	GenerateCards(ctx context.Context, userId string, id uuid.UUID) ([]dto.CardDTO, error)
}

type studyToolsService struct {
	repo  contract.StudySessionRepository
	tools StudyTools
}

func NewStudyToolsService(repo contract.StudySessionRepository, tools StudyTools) IStudyToolsService {
	return &studyToolsService{repo: repo, tools: tools}
}

// Summarize generates the session summary and keeps it on the session row.
func (s *studyToolsService) Summarize(ctx context.Context, userId string, id uuid.UUID) (*dto.SummaryResponse, error) {
	session, err := s.owned(ctx, userId, id)
	if err != nil {
		return nil, err
	}
	summary, err := s.tools.Summarize(ctx, id.String())
	if err != nil {
		return nil, err
	}
	session.Summary = &summary
	if err := s.repo.Update(ctx, session); err != nil {
		return nil, err
	}
	return &dto.SummaryResponse{SessionId: id, Summary: summary}, nil
}

func (s *studyToolsService) GenerateQuestions(ctx context.Context, userId string, id uuid.UUID) ([]dto.QuestionDTO, error) {
	if _, err := s.owned(ctx, userId, id); err != nil {
		return nil, err
	}
	questions, err := s.tools.MultipleChoice(ctx, id.String())
	if err != nil {
		return nil, err
	}
	res := make([]dto.QuestionDTO, len(questions))
	for i, q := range questions {
		answers := make([]dto.AnswerDTO, len(q.Answers))
		for j, a := range q.Answers {
			answers[j] = dto.AnswerDTO{Text: a.Text, IsCorrect: a.IsCorrect}
		}
		res[i] = dto.QuestionDTO{QuestionText: q.QuestionText, Answers: answers}
	}
	return res, nil
}

func (s *studyToolsService) GenerateCards(ctx context.Context, userId string, id uuid.UUID) ([]dto.CardDTO, error) {
	if _, err := s.owned(ctx, userId, id); err != nil {
		return nil, err
	}
	cards, err := s.tools.StudyCards(ctx, id.String())
	if err != nil {
		return nil, err
	}
	res := make([]dto.CardDTO, len(cards))
	for i, c := range cards {
		res[i] = dto.CardDTO{Question: c.Question, Answer: c.Answer}
	}
	return res, nil
}

func (s *studyToolsService) owned(ctx context.Context, userId string, id uuid.UUID) (*entity.StudySession, error) {
	return findOwned(ctx, s.repo, userId, id)
}
