package service

import (
	"context"
	"fmt"

	"studymate-be/internal/pkg/logger"
	"studymate-be/pkg/events"
	pktNats "studymate-be/pkg/nats"
	"studymate-be/pkg/vectorstore"
)

const cascadeModule = "CASCADE_DELETE"

type EventSubscriber interface {
	Subscribe(ctx context.Context, eventType, durableName string, handler pktNats.EventHandler) error
}

type Purger interface {
	Purge(ctx context.Context, session string) (vectorstore.DeleteReport, error)
}

// CascadeDeleteService removes a study session's embeddings when another service reports the
// session deleted.
type CascadeDeleteService struct {
	subscriber EventSubscriber
	purger     Purger
	logger     logger.ILogger
}

func NewCascadeDeleteService(sub EventSubscriber, purger Purger, log logger.ILogger) *CascadeDeleteService {
	return &CascadeDeleteService{subscriber: sub, purger: purger, logger: log}
}

func (s *CascadeDeleteService) Start(ctx context.Context) error {
	if err := s.subscriber.Subscribe(ctx, events.TypeSessionDeleted, "study-session-cascade", s.HandleEvent); err != nil {
		return err
	}
	s.logger.Info(cascadeModule, "Listening for deleted study sessions", map[string]interface{}{
		"subject": pktNats.Subject(events.TypeSessionDeleted),
	})
	return nil
}

// HandleEvent purges the session named by the event. An error makes the broker redeliver.
func (s *CascadeDeleteService) HandleEvent(ctx context.Context, event events.Event) error {
	session, ok := events.SessionID(event)
	if !ok {
		s.logger.Warn(cascadeModule, "Deleted event without session_id, ignoring", map[string]interface{}{"type": event.EventType()})
		return nil
	}
	report, err := s.purger.Purge(ctx, session)
	if err != nil {
		return err
	}
	if !report.Complete() {
		return fmt.Errorf("partial delete of session %s", session)
	}
	s.logger.Info(cascadeModule, "Study session purged", map[string]interface{}{"session_id": session})
	return nil
}
