package library

import (
	"github.com/franz/media-dock/internal/log"
	"github.com/franz/media-dock/internal/storage"
)

// CleanResult summarises one persistent-state cleanup.
type CleanResult struct {
	TracksDeleted   int64
	StoragesDropped int
	StateCleared    bool
}

// Clean drops catalogue state belonging to storages that are not attached:
// tracks, cached extractions, search documents and the storage record
// itself. Playback state is cleared when its track no longer resolves
// afterwards. The search index is optional.
func Clean(st *Store, reg *storage.Registry, search *SearchIndex) (*CleanResult, error) {
	logger := log.WithComponent("library")

	attached := map[string]bool{}
	for _, id := range reg.StorageIDs() {
		attached[id] = true
	}

	res := &CleanResult{}
	ids, err := st.StorageIDsWithTracks()
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if attached[id] {
			continue
		}
		n, err := st.DeleteTracksForStorage(id)
		if err != nil {
			return nil, err
		}
		if err := st.DeleteStorage(id); err != nil {
			return nil, err
		}
		if search != nil {
			if _, err := search.DeleteStorage(id); err != nil {
				logger.Warn().Err(err).Str("storage", id).Msg("failed to prune search index")
			}
		}
		res.TracksDeleted += n
		res.StoragesDropped++
		logger.Info().Str("storage", id).Int64("tracks", n).Msg("stale storage cleaned")
	}

	snap, err := st.LoadPlaybackState()
	if err != nil {
		return nil, err
	}
	if snap != nil && snap.TrackRef != "" {
		t, err := st.TrackByRef(snap.TrackRef)
		if err != nil {
			return nil, err
		}
		if t == nil {
			if err := st.ClearPlaybackState(); err != nil {
				return nil, err
			}
			res.StateCleared = true
			logger.Info().Msg("dangling playback state cleared")
		}
	}

	return res, nil
}
