package vectorstore

import (
	"context"
	"fmt"

	"studymate-be/pkg/apperr"
	"studymate-be/pkg/events"
	"studymate-be/pkg/remotestore"
	"studymate-be/pkg/textcache"
)

// IngestResult describes what StoreEmbeddings did. When RemoteErr is set the local tier is
// committed but the remote store holds only RemoteUpserted chunks; Reconcile repairs that.
type IngestResult struct {
	Session        string
	AlreadyPresent bool
	Chunks         int
	LocalIDs       []int64
	CacheErr       error
	RemoteUpserted int
	RemoteErr      error
}

// StoreEmbeddings ingests source into session. A session that already has registered
// embeddings is left untouched and reported with AlreadyPresent.
func (s *Store) StoreEmbeddings(ctx context.Context, source, session string) (IngestResult, error) {
	res := IngestResult{Session: session}
	if err := apperr.RequireID("session", session); err != nil {
		return res, err
	}
	if err := apperr.RequireID("source", source); err != nil {
		return res, err
	}

	unlock := s.sessions.Lock(session)
	defer unlock()

	s.mu.RLock()
	registered := s.ids.Has(session)
	s.mu.RUnlock()
	if registered {
		s.logger.Info(module, "Session already has embeddings, skipping ingestion", map[string]interface{}{
			"session_id": session,
		})
		res.AlreadyPresent = true
		return res, nil
	}

	chunks, err := s.loader.Load(ctx, source)
	if err != nil {
		return res, err
	}
	if len(chunks) == 0 {
		return res, apperr.Invalid("source %s has no extractable text", source)
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	res.Chunks = len(chunks)

	ectx, cancel := context.WithTimeout(ctx, s.embedTimeout())
	vectors, err := s.embedder.EmbedDocuments(ectx, texts)
	cancel()
	if err != nil {
		return res, apperr.Provider("embed documents", err)
	}

	entries := make(map[string]string, len(texts))
	for i, t := range texts {
		entries[textcache.DocKey(session, i)] = t
	}
	if err := s.cache.SetMany(ctx, entries, s.cfg.CacheTTL); err != nil {
		res.CacheErr = err
		s.logger.Warn(module, "Failed to cache chunk text, retrieval will fall back to remote", map[string]interface{}{
			"session_id": session,
			"error":      err.Error(),
		})
	}

	ids, err := s.commitLocal(session, vectors)
	if err != nil {
		return res, err
	}
	res.LocalIDs = ids

	if err := s.sources.Put(ctx, session, source); err != nil {
		s.logger.Warn(module, "Failed to record session source", map[string]interface{}{
			"session_id": session,
			"error":      err.Error(),
		})
	}

	records := make([]remotestore.Record, len(vectors))
	for i := range vectors {
		records[i] = remotestore.Record{
			ID:         remotestore.Key(session, i),
			Session:    session,
			ChunkIndex: i,
			Vector:     vectors[i],
			Text:       truncate(texts[i], s.cfg.RemoteTextMax),
		}
	}
	res.RemoteUpserted, res.RemoteErr = s.upsertRemote(ctx, records)
	if res.RemoteErr != nil {
		s.logger.Error(module, "Remote upsert failed, local tier kept", map[string]interface{}{
			"session_id": session,
			"upserted":   res.RemoteUpserted,
			"total":      len(records),
			"error":      res.RemoteErr.Error(),
		})
		s.publish(ctx, events.NewSessionEvent(events.TypeRemoteUpsertFailed, session, map[string]interface{}{
			"upserted": res.RemoteUpserted,
			"total":    len(records),
			"error":    res.RemoteErr.Error(),
		}))
	}

	s.logger.Info(module, "Session ingested", map[string]interface{}{
		"session_id": session,
		"chunks":     res.Chunks,
		"remote":     res.RemoteUpserted,
	})
	s.publish(ctx, events.NewSessionEvent(events.TypeSessionIngested, session, map[string]interface{}{
		"chunks":          res.Chunks,
		"remote_upserted": res.RemoteUpserted,
	}))
	return res, nil
}

// commitLocal adds vectors to the index and registers them under one exclusive lock. A failed
// registration removes the vectors again so the map and index never disagree.
func (s *Store) commitLocal(session string, vectors [][]float32) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ids.Has(session) {
		return nil, fmt.Errorf("session %s registered concurrently", session)
	}
	ids, err := s.index.Add(vectors)
	if err != nil {
		return nil, fmt.Errorf("add vectors: %w", err)
	}
	if err := s.ids.Register(session, ids); err != nil {
		if _, rerr := s.index.Remove(ids); rerr != nil {
			s.logger.Error(module, "Rollback of local vectors failed", map[string]interface{}{
				"session_id": session,
				"error":      rerr.Error(),
			})
		}
		return nil, fmt.Errorf("register session: %w", err)
	}
	return ids, nil
}

// upsertRemote writes records in batches and stops at the first failed batch.
func (s *Store) upsertRemote(ctx context.Context, records []remotestore.Record) (int, error) {
	done := 0
	for start := 0; start < len(records); start += s.cfg.UpsertBatchSize {
		end := min(start+s.cfg.UpsertBatchSize, len(records))
		rctx, cancel := s.remoteCtx(ctx)
		err := s.remote.Upsert(rctx, records[start:end])
		cancel()
		if err != nil {
			return done, fmt.Errorf("upsert batch %d-%d: %w", start, end, err)
		}
		done = end
	}
	return done, nil
}

func truncate(text string, max int) string {
	if max <= 0 {
		return text
	}
	r := []rune(text)
	if len(r) <= max {
		return text
	}
	return string(r[:max])
}
