package library

import (
	"github.com/franz/media-dock/internal/storage"

	"github.com/franz/media-dock/internal/log"
)

// RestoreResult is the playback position recovered from persistent state.
type RestoreResult struct {
	Track   *Track
	Queue   []*Track
	Skipped int
}

// Restore resolves the persisted playback state against the catalogue and
// the attached storages. Best-effort: missing state, an unknown track, or a
// storage that is not attached anymore all end the restore quietly with a
// nil result. Queue entries that no longer resolve are skipped and counted.
func Restore(st *Store, reg *storage.Registry) (*RestoreResult, error) {
	logger := log.WithComponent("library")

	snap, err := st.LoadPlaybackState()
	if err != nil {
		return nil, err
	}
	if snap == nil || snap.TrackRef == "" {
		logger.Debug().Msg("no playback state to restore")
		return nil, nil
	}

	t, err := st.TrackByRef(snap.TrackRef)
	if err != nil {
		return nil, err
	}
	if t == nil {
		logger.Info().Str("ref", snap.TrackRef).Msg("persisted track not in catalogue, nothing to restore")
		return nil, nil
	}
	if _, err := reg.LocationForID(t.StorageID); err != nil {
		logger.Info().Str("storage", t.StorageID).Msg("persisted track's storage not attached, nothing to restore")
		return nil, nil
	}

	res := &RestoreResult{Track: t}
	for _, ref := range snap.QueueRefs {
		qt, err := st.TrackByRef(ref)
		if err != nil {
			return nil, err
		}
		if qt == nil || qt.StorageID != t.StorageID {
			res.Skipped++
			continue
		}
		res.Queue = append(res.Queue, qt)
	}

	logger.Info().
		Str("track", t.Title).
		Int("queue", len(res.Queue)).
		Int("skipped", res.Skipped).
		Msg("playback state restored")
	return res, nil
}
