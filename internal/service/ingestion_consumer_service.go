package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"studymate-be/internal/dto"
	"studymate-be/internal/model"
	"studymate-be/internal/pkg/logger"
	"studymate-be/internal/repository/contract"
	"studymate-be/internal/repository/specification"
	"studymate-be/pkg/apperr"
	"studymate-be/pkg/vectorstore"

	"github.com/ThreeDotsLabs/watermill/message"
)

const (
	ingestionModule = "INGESTION_CONSUMER"

	// maxIngestAttempts bounds redelivery of jobs that failed on a provider.
	maxIngestAttempts = 3
)

// StatusNotifier pushes ingestion status to a connected user. Implemented by the websocket hub.
type StatusNotifier interface {
	Send(userID string, payload interface{})
}

type Ingester interface {
	StoreEmbeddings(ctx context.Context, source, session string) (vectorstore.IngestResult, error)
}

type IConsumerService interface {
	Consume(ctx context.Context) error
}

type ingestionConsumerService struct {
	subscriber message.Subscriber
	topicName  string
	ingester   Ingester
	repo       contract.StudySessionRepository
	notifier   StatusNotifier
	logger     logger.ILogger

	mu       sync.Mutex
	attempts map[string]int
}

func NewIngestionConsumerService(
	subscriber message.Subscriber,
	topicName string,
	ingester Ingester,
	repo contract.StudySessionRepository,
	notifier StatusNotifier,
	log logger.ILogger,
) IConsumerService {
	return &ingestionConsumerService{
		subscriber: subscriber,
		topicName:  topicName,
		ingester:   ingester,
		repo:       repo,
		notifier:   notifier,
		logger:     log,
		attempts:   make(map[string]int),
	}
}

func (cs *ingestionConsumerService) Consume(ctx context.Context) error {
	messages, err := cs.subscriber.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *ingestionConsumerService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.PublishIngestStudySessionMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		cs.logger.Error(ingestionModule, "Failed to unmarshal ingestion job", map[string]interface{}{"error": err})
		msg.Ack()
		return
	}
	session := payload.SessionId.String()

	row, err := cs.repo.FindOne(ctx, specification.ByID{ID: payload.SessionId})
	if err != nil {
		cs.logger.Warn(ingestionModule, "Failed to load session, redelivering", map[string]interface{}{
			"session_id": session,
			"error":      err,
		})
		msg.Nack()
		return
	}
	if row == nil {
		cs.logger.Info(ingestionModule, "Session deleted before ingestion, dropping job", map[string]interface{}{
			"session_id": session,
		})
		cs.forget(msg.UUID)
		msg.Ack()
		return
	}

	res, err := cs.ingester.StoreEmbeddings(ctx, payload.Source, session)
	if err != nil {
		if retryable(err) && cs.retry(msg.UUID) {
			cs.logger.Warn(ingestionModule, "Ingestion failed, redelivering", map[string]interface{}{
				"session_id": session,
				"error":      err,
			})
			msg.Nack()
			return
		}
		cs.forget(msg.UUID)
		cs.logger.Error(ingestionModule, "Ingestion failed", map[string]interface{}{
			"session_id": session,
			"error":      err,
		})
		cs.finish(ctx, payload, model.StudySessionFailed, 0, err)
		msg.Ack()
		return
	}
	cs.forget(msg.UUID)

	status := model.StudySessionReady
	if res.RemoteErr != nil {
		status = model.StudySessionDegraded
	}
	chunks := res.Chunks
	if res.AlreadyPresent {
		chunks = -1
	}
	cs.finish(ctx, payload, status, chunks, nil)
	msg.Ack()
}

// finish records the outcome on the session row and notifies the owner. A negative chunk count
// keeps the stored one.
func (cs *ingestionConsumerService) finish(ctx context.Context, p dto.PublishIngestStudySessionMessage, status string, chunks int, cause error) {
	if err := cs.repo.UpdateStatus(ctx, p.SessionId, status, chunks); err != nil {
		cs.logger.Error(ingestionModule, "Failed to update session status", map[string]interface{}{
			"session_id": p.SessionId,
			"error":      err,
		})
	}
	if cs.notifier == nil || p.UserId == "" {
		return
	}
	data := map[string]interface{}{
		"session_id": p.SessionId,
		"status":     status,
	}
	if cause != nil {
		data["error"] = cause.Error()
	}
	cs.notifier.Send(p.UserId, map[string]interface{}{"type": "ingestion_status", "data": data})
}

func retryable(err error) bool {
	return errors.Is(err, apperr.ErrProvider) &&
		!errors.Is(err, apperr.ErrInvalidInput) &&
		!errors.Is(err, apperr.ErrUnsupportedFormat)
}

func (cs *ingestionConsumerService) retry(id string) bool {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.attempts[id]++
	return cs.attempts[id] < maxIngestAttempts
}

func (cs *ingestionConsumerService) forget(id string) {
	cs.mu.Lock()
	delete(cs.attempts, id)
	cs.mu.Unlock()
}
