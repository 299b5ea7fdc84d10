package service

import (
	"context"

	"studymate-be/internal/dto"
	"studymate-be/internal/repository/contract"
	"studymate-be/pkg/chat"
	"studymate-be/pkg/rag/memory"
)

type ChatEngine interface {
	Turn(ctx context.Context, user, session, query string) (chat.Reply, error)
}

type IChatService interface {
	SendChat(ctx context.Context, userId string, req *dto.SendChatRequest) (*dto.SendChatResponse, error)
	GetChatHistory(ctx context.Context, userId, session string) ([]*dto.ChatTurnResponse, error)
	ClearChatHistory(ctx context.Context, userId, session string) error
}

type chatService struct {
	repo    contract.StudySessionRepository
	engine  ChatEngine
	history memory.Store
}

func NewChatService(repo contract.StudySessionRepository, engine ChatEngine, history memory.Store) IChatService {
	return &chatService{repo: repo, engine: engine, history: history}
}

func (s *chatService) SendChat(ctx context.Context, userId string, req *dto.SendChatRequest) (*dto.SendChatResponse, error) {
	if err := s.authorize(ctx, userId, req.DocumentSessionId); err != nil {
		return nil, err
	}
	reply, err := s.engine.Turn(ctx, userId, req.DocumentSessionId, req.Query)
	if err != nil {
		return nil, err
	}
	return &dto.SendChatResponse{
		Message:     reply.Answer,
		ContextTier: reply.ContextTier.String(),
	}, nil
}

func (s *chatService) GetChatHistory(ctx context.Context, userId, session string) ([]*dto.ChatTurnResponse, error) {
	if err := s.authorize(ctx, userId, session); err != nil {
		return nil, err
	}
	turns, err := s.history.Load(ctx, userId, session)
	if err != nil {
		return nil, err
	}
	res := make([]*dto.ChatTurnResponse, len(turns))
	for i, t := range turns {
		res[i] = &dto.ChatTurnResponse{Role: string(t.Role), Content: t.Content, CreatedAt: t.TS}
	}
	return res, nil
}

func (s *chatService) ClearChatHistory(ctx context.Context, userId, session string) error {
	if err := s.authorize(ctx, userId, session); err != nil {
		return err
	}
	return s.history.Clear(ctx, userId, session)
}

// authorize checks that session names a study session owned by userId.
func (s *chatService) authorize(ctx context.Context, userId, session string) error {
	id, err := parseSessionID("document_session_id", session)
	if err != nil {
		return err
	}
	_, err = findOwned(ctx, s.repo, userId, id)
	return err
}
