package service

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"studymate-be/internal/dto"
	"studymate-be/internal/entity"
	"studymate-be/internal/model"
	"studymate-be/internal/pkg/logger"
	"studymate-be/internal/repository/contract"
	"studymate-be/internal/repository/specification"
	"studymate-be/pkg/apperr"
	"studymate-be/pkg/loader"
	"studymate-be/pkg/vectorstore"

	"github.com/google/uuid"
)

const (
	studySessionModule = "STUDY_SESSION"

	// StudySessionLifetime is how long an uploaded document stays before expiry purges it.
	StudySessionLifetime = 14 * 24 * time.Hour
)

// VectorStore is the slice of the vector store the HTTP layer drives.
type VectorStore interface {
	HasEmbeddings(ctx context.Context, session string) (bool, error)
	DeleteSession(ctx context.Context, session string) (vectorstore.DeleteReport, error)
	Reconcile(ctx context.Context, session string) (vectorstore.ConsistencyReport, error)
}

type IStudySessionService interface {
	Create(ctx context.Context, userId string, req *dto.CreateStudySessionRequest) (*dto.StudySessionResponse, error)
	GetAll(ctx context.Context, userId string) ([]*dto.StudySessionResponse, error)
	Show(ctx context.Context, userId string, id uuid.UUID) (*dto.StudySessionResponse, error)
	Status(ctx context.Context, userId string, id uuid.UUID) (*dto.EmbeddingStatusResponse, error)
	Delete(ctx context.Context, userId string, id uuid.UUID) (*dto.DeleteStudySessionResponse, error)
	Reconcile(ctx context.Context, userId string, id uuid.UUID) (*dto.ConsistencyReportResponse, error)
	Purge(ctx context.Context, session string) (vectorstore.DeleteReport, error)
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
}

type studySessionService struct {
	repo             contract.StudySessionRepository
	store            VectorStore
	publisherService IPublisherService
	logger           logger.ILogger
}

func NewStudySessionService(
	repo contract.StudySessionRepository,
	store VectorStore,
	publisherService IPublisherService,
	log logger.ILogger,
) IStudySessionService {
	return &studySessionService{
		repo:             repo,
		store:            store,
		publisherService: publisherService,
		logger:           log,
	}
}

func (s *studySessionService) Create(ctx context.Context, userId string, req *dto.CreateStudySessionRequest) (*dto.StudySessionResponse, error) {
	source := strings.TrimSpace(req.Source)
	if !loader.IsRemote(source) {
		if ext := strings.ToLower(filepath.Ext(source)); !loader.Supported(ext) {
			return nil, fmt.Errorf("%w: %q", apperr.ErrUnsupportedFormat, ext)
		}
	}

	now := time.Now()
	session := entity.StudySession{
		Id:        uuid.New(),
		UserId:    userId,
		Name:      req.Name,
		Source:    source,
		Status:    model.StudySessionPending,
		ExpiresAt: now.Add(StudySessionLifetime),
		CreatedAt: now,
	}
	if err := s.repo.Create(ctx, &session); err != nil {
		return nil, err
	}

	msgJson, err := json.Marshal(dto.PublishIngestStudySessionMessage{
		SessionId: session.Id,
		UserId:    userId,
		Source:    source,
	})
	if err != nil {
		return nil, err
	}
	if err := s.publisherService.Publish(ctx, msgJson); err != nil {
		return nil, err
	}

	s.logger.Info(studySessionModule, "Study session queued for ingestion", map[string]interface{}{
		"session_id": session.Id,
		"user_id":    userId,
	})
	return toStudySessionResponse(&session), nil
}

func (s *studySessionService) GetAll(ctx context.Context, userId string) ([]*dto.StudySessionResponse, error) {
	sessions, err := s.repo.FindAll(ctx,
		specification.ByUserID{UserID: userId},
		specification.OrderBy{Field: "created_at", Desc: true},
	)
	if err != nil {
		return nil, err
	}
	res := make([]*dto.StudySessionResponse, 0, len(sessions))
	for _, session := range sessions {
		res = append(res, toStudySessionResponse(session))
	}
	return res, nil
}

func (s *studySessionService) Show(ctx context.Context, userId string, id uuid.UUID) (*dto.StudySessionResponse, error) {
	session, err := s.owned(ctx, userId, id)
	if err != nil {
		return nil, err
	}
	return toStudySessionResponse(session), nil
}

func (s *studySessionService) Status(ctx context.Context, userId string, id uuid.UUID) (*dto.EmbeddingStatusResponse, error) {
	if _, err := s.owned(ctx, userId, id); err != nil {
		return nil, err
	}
	has, err := s.store.HasEmbeddings(ctx, id.String())
	if err != nil {
		return nil, err
	}
	return &dto.EmbeddingStatusResponse{SessionId: id, HasEmbeddings: has}, nil
}

func (s *studySessionService) Delete(ctx context.Context, userId string, id uuid.UUID) (*dto.DeleteStudySessionResponse, error) {
	if _, err := s.owned(ctx, userId, id); err != nil {
		return nil, err
	}
	report, err := s.Purge(ctx, id.String())
	if err != nil {
		return nil, err
	}
	return toDeleteResponse(id, report), nil
}

func (s *studySessionService) Reconcile(ctx context.Context, userId string, id uuid.UUID) (*dto.ConsistencyReportResponse, error) {
	if _, err := s.owned(ctx, userId, id); err != nil {
		return nil, err
	}
	report, err := s.store.Reconcile(ctx, id.String())
	if err != nil {
		return nil, err
	}
	res := &dto.ConsistencyReportResponse{
		SessionId:     id,
		Chunks:        report.Chunks,
		MissingLocal:  report.MissingLocal,
		MissingCache:  report.MissingCache,
		MissingRemote: report.MissingRemote,
		Repaired:      report.Repaired,
		Consistent:    report.Consistent(),
	}
	if report.RepairErr != nil {
		res.RepairError = report.RepairErr.Error()
	}
	return res, nil
}

// Purge removes every tier of a session and its row. It is also the cascade-delete entry point,
// so it does not check ownership.
func (s *studySessionService) Purge(ctx context.Context, session string) (vectorstore.DeleteReport, error) {
	report, err := s.store.DeleteSession(ctx, session)
	if err != nil {
		return report, err
	}
	if id, perr := uuid.Parse(session); perr == nil {
		if derr := s.repo.Delete(ctx, id); derr != nil && report.Source == nil {
			report.Source = derr
		}
	}
	if !report.Complete() {
		s.logger.Warn(studySessionModule, "Study session only partially deleted", map[string]interface{}{
			"session_id": session,
			"cache":      report.Cache.Err,
			"local":      report.Local.Err,
			"remote":     report.Remote.Err,
			"source":     report.Source,
		})
	}
	return report, nil
}

// PurgeExpired deletes every session whose expiry has passed and returns how many were purged.
func (s *studySessionService) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	expired, err := s.repo.FindAll(ctx, specification.ExpiredBefore{Time: now})
	if err != nil {
		return 0, err
	}
	purged := 0
	for _, session := range expired {
		if ctx.Err() != nil {
			return purged, ctx.Err()
		}
		if _, err := s.Purge(ctx, session.Id.String()); err != nil {
			s.logger.Error(studySessionModule, "Failed to purge expired session", map[string]interface{}{
				"session_id": session.Id,
				"error":      err,
			})
			continue
		}
		purged++
	}
	return purged, nil
}

func (s *studySessionService) owned(ctx context.Context, userId string, id uuid.UUID) (*entity.StudySession, error) {
	return findOwned(ctx, s.repo, userId, id)
}

func toStudySessionResponse(s *entity.StudySession) *dto.StudySessionResponse {
	return &dto.StudySessionResponse{
		Id:        s.Id,
		Name:      s.Name,
		Source:    s.Source,
		Status:    s.Status,
		Chunks:    s.Chunks,
		Summary:   s.Summary,
		ExpiresAt: s.ExpiresAt,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

func tierDTO(t vectorstore.TierResult) dto.TierResultDTO {
	res := dto.TierResultDTO{Removed: t.Removed}
	if t.Err != nil {
		res.Error = t.Err.Error()
	}
	return res
}

func toDeleteResponse(id uuid.UUID, r vectorstore.DeleteReport) *dto.DeleteStudySessionResponse {
	res := &dto.DeleteStudySessionResponse{
		SessionId: id,
		Complete:  r.Complete(),
		Cache:     tierDTO(r.Cache),
		Local:     tierDTO(r.Local),
		Remote:    tierDTO(r.Remote),
	}
	if r.Source != nil {
		res.Source = r.Source.Error()
	}
	return res
}
