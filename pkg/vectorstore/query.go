package vectorstore

import (
	"context"
	"fmt"

	"studymate-be/pkg/apperr"
	"studymate-be/pkg/remotestore"
)

// HasEmbeddings checks the session map first and only probes the remote store, with a single
// fetch of chunk 0, when the session is unknown locally.
func (s *Store) HasEmbeddings(ctx context.Context, session string) (bool, error) {
	if err := apperr.RequireID("session", session); err != nil {
		return false, err
	}

	s.mu.RLock()
	local := s.ids.Has(session)
	s.mu.RUnlock()
	if local {
		return true, nil
	}

	rctx, cancel := s.remoteCtx(ctx)
	defer cancel()
	key := remotestore.Key(session, 0)
	found, err := s.remote.Fetch(rctx, []string{key})
	if err != nil {
		return false, fmt.Errorf("%w: probe remote store: %w", apperr.ErrTierUnavailable, err)
	}
	_, ok := found[key]
	return ok, nil
}

// LoadEmbeddings returns the session's vectors in chunk order. On a local miss the vectors are
// pulled from the remote store and registered locally, so later searches stay on this node.
func (s *Store) LoadEmbeddings(ctx context.Context, session string) ([][]float32, error) {
	if err := apperr.RequireID("session", session); err != nil {
		return nil, err
	}

	if vectors, ok, err := s.loadLocal(session); ok || err != nil {
		return vectors, err
	}

	unlock := s.sessions.Lock(session)
	defer unlock()

	// Another caller may have pulled the session in while we waited.
	if vectors, ok, err := s.loadLocal(session); ok || err != nil {
		return vectors, err
	}

	rctx, cancel := s.remoteCtx(ctx)
	found, err := s.remote.Fetch(rctx, remotestore.KeyRange(session, 0, s.cfg.ProbeRange))
	cancel()
	if err != nil {
		return nil, fmt.Errorf("fetch remote vectors: %w", err)
	}

	// Chunk keys are dense from 0; stop at the first gap.
	var vectors [][]float32
	for i := 0; i < s.cfg.ProbeRange; i++ {
		v, ok := found[remotestore.Key(session, i)]
		if !ok {
			break
		}
		vectors = append(vectors, v)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("%w: session %s has no embeddings", apperr.ErrNotFound, session)
	}

	if _, err := s.commitLocal(session, vectors); err != nil {
		s.logger.Warn(module, "Loaded remote vectors but could not register them locally", map[string]interface{}{
			"session_id": session,
			"error":      err.Error(),
		})
		return vectors, nil
	}
	s.logger.Info(module, "Pulled session vectors from remote store", map[string]interface{}{
		"session_id": session,
		"vectors":    len(vectors),
	})
	return vectors, nil
}

func (s *Store) loadLocal(session string) ([][]float32, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.ids.Get(session)
	if ids == nil {
		return nil, false, nil
	}
	vectors := make([][]float32, len(ids))
	for i, id := range ids {
		v, err := s.index.Reconstruct(id)
		if err != nil {
			return nil, true, err
		}
		vectors[i] = v
	}
	return vectors, true, nil
}
