package vectorstore

import (
	"context"
	"fmt"

	"studymate-be/pkg/apperr"
	"studymate-be/pkg/events"
	"studymate-be/pkg/remotestore"
	"studymate-be/pkg/textcache"
)

// TierResult is the outcome of deleting one tier.
type TierResult struct {
	Removed int
	Err     error
}

// DeleteReport lists the per-tier outcome of DeleteSession. Every tier is attempted even when
// an earlier one failed.
type DeleteReport struct {
	Session string
	Cache   TierResult
	Local   TierResult
	Remote  TierResult
	Source  error
}

// Complete reports whether every tier was removed without error.
func (r DeleteReport) Complete() bool {
	return r.Cache.Err == nil && r.Local.Err == nil && r.Remote.Err == nil && r.Source == nil
}

// DeleteSession removes the session from the cache, the local tier, the remote store and the
// source registry. The returned error is only set for invalid input; per-tier failures are in
// the report.
func (s *Store) DeleteSession(ctx context.Context, session string) (DeleteReport, error) {
	report := DeleteReport{Session: session}
	if err := apperr.RequireID("session", session); err != nil {
		return report, err
	}

	unlock := s.sessions.Lock(session)
	defer unlock()

	report.Cache = s.deleteCached(ctx, session)

	var remoteCount int
	report.Local, remoteCount = s.deleteLocal(session)

	// An unregistered session may still have remote vectors from another node.
	if remoteCount <= 0 {
		remoteCount = s.cfg.ProbeRange
	}
	rctx, cancel := s.remoteCtx(ctx)
	keys := remotestore.KeyRange(session, 0, remoteCount)
	if err := s.remote.Delete(rctx, keys); err != nil {
		report.Remote.Err = fmt.Errorf("delete remote vectors: %w", err)
	} else {
		report.Remote.Removed = len(keys)
	}
	cancel()

	report.Source = s.sources.Delete(ctx, session)

	details := map[string]interface{}{
		"session_id":     session,
		"cache_removed":  report.Cache.Removed,
		"local_removed":  report.Local.Removed,
		"remote_deleted": report.Remote.Removed,
		"complete":       report.Complete(),
	}
	for name, err := range map[string]error{
		"cache_error":  report.Cache.Err,
		"local_error":  report.Local.Err,
		"remote_error": report.Remote.Err,
		"source_error": report.Source,
	} {
		if err != nil {
			details[name] = err.Error()
		}
	}
	if report.Complete() {
		s.logger.Info(module, "Session deleted", details)
	} else {
		s.logger.Warn(module, "Session partially deleted", details)
	}
	s.publish(ctx, events.NewSessionEvent(events.TypeSessionPurged, session, details))

	return report, nil
}

func (s *Store) deleteCached(ctx context.Context, session string) TierResult {
	keys, err := s.cache.Keys(ctx, textcache.SessionPattern(session))
	if err != nil {
		return TierResult{Err: fmt.Errorf("list cached keys: %w", err)}
	}
	if len(keys) == 0 {
		return TierResult{}
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		return TierResult{Err: fmt.Errorf("delete cached keys: %w", err)}
	}
	return TierResult{Removed: len(keys)}
}

// deleteLocal removes the vectors first and the map entry second, so a crash in between
// leaves an entry that the startup repair prunes.
func (s *Store) deleteLocal(session string) (TierResult, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.ids.Entry(session)
	if !ok {
		return TierResult{}, 0
	}
	removed, err := s.index.Remove(entry.LocalIDs)
	if err != nil {
		return TierResult{Err: fmt.Errorf("remove local vectors: %w", err)}, entry.RemoteKeyCount
	}
	if _, err := s.ids.Unregister(session); err != nil {
		return TierResult{Removed: removed, Err: fmt.Errorf("unregister session: %w", err)}, entry.RemoteKeyCount
	}
	return TierResult{Removed: removed}, entry.RemoteKeyCount
}
