package vectorstore

import (
	"context"
	"errors"
	"fmt"

	"studymate-be/pkg/apperr"
	"studymate-be/pkg/remotestore"
	"studymate-be/pkg/textcache"
)

// ConsistencyReport compares what each tier holds for one session. Missing* list chunk
// indexes. Repaired lists the remote keys that were re-upserted from local vectors and
// cached text.
type ConsistencyReport struct {
	Session       string
	Chunks        int
	MissingLocal  []int
	MissingCache  []int
	MissingRemote []int
	Repaired      []int
	RepairErr     error
}

// Consistent reports whether every tier held every chunk before repair.
func (r ConsistencyReport) Consistent() bool {
	return len(r.MissingLocal) == 0 && len(r.MissingCache) == 0 && len(r.MissingRemote) == 0
}

// Reconcile inspects a locally registered session and re-upserts chunks the remote store is
// missing. Chunks without cached text cannot be repaired here; re-ingestion covers those.
func (s *Store) Reconcile(ctx context.Context, session string) (ConsistencyReport, error) {
	report := ConsistencyReport{Session: session}
	if err := apperr.RequireID("session", session); err != nil {
		return report, err
	}

	unlock := s.sessions.Lock(session)
	defer unlock()

	s.mu.RLock()
	ids := s.ids.Get(session)
	vectors := make([][]float32, len(ids))
	for i, id := range ids {
		v, err := s.index.Reconstruct(id)
		if err != nil {
			if !errors.Is(err, apperr.ErrNotFound) {
				s.mu.RUnlock()
				return report, err
			}
			report.MissingLocal = append(report.MissingLocal, i)
			continue
		}
		vectors[i] = v
	}
	s.mu.RUnlock()

	if ids == nil {
		return report, fmt.Errorf("%w: session %s is not registered locally", apperr.ErrNotFound, session)
	}
	report.Chunks = len(ids)

	texts := make([]string, len(ids))
	for i := range ids {
		text, ok, err := s.cache.Get(ctx, textcache.DocKey(session, i))
		if err != nil {
			return report, fmt.Errorf("read cached text: %w", err)
		}
		if !ok {
			report.MissingCache = append(report.MissingCache, i)
			continue
		}
		texts[i] = text
	}

	rctx, cancel := s.remoteCtx(ctx)
	found, err := s.remote.Fetch(rctx, remotestore.KeyRange(session, 0, len(ids)))
	cancel()
	if err != nil {
		return report, fmt.Errorf("fetch remote vectors: %w", err)
	}

	var repair []remotestore.Record
	for i := range ids {
		if _, ok := found[remotestore.Key(session, i)]; ok {
			continue
		}
		report.MissingRemote = append(report.MissingRemote, i)
		if vectors[i] == nil || texts[i] == "" {
			continue
		}
		repair = append(repair, remotestore.Record{
			ID:         remotestore.Key(session, i),
			Session:    session,
			ChunkIndex: i,
			Vector:     vectors[i],
			Text:       truncate(texts[i], s.cfg.RemoteTextMax),
		})
	}

	if len(repair) > 0 {
		n, err := s.upsertRemote(ctx, repair)
		for _, r := range repair[:n] {
			report.Repaired = append(report.Repaired, r.ChunkIndex)
		}
		report.RepairErr = err
	}

	s.logger.Info(module, "Session reconciled", map[string]interface{}{
		"session_id":     session,
		"chunks":         report.Chunks,
		"missing_local":  len(report.MissingLocal),
		"missing_cache":  len(report.MissingCache),
		"missing_remote": len(report.MissingRemote),
		"repaired":       len(report.Repaired),
	})
	return report, nil
}
