package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"clantracker/internal/derive"
	"clantracker/internal/storage"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleClanLatest(w http.ResponseWriter, r *http.Request) {
	tag := r.URL.Query().Get("clanTag")
	if tag == "" {
		tag = s.opts.ClanTag
	}

	snapshot, err := s.snapshots.LatestSnapshot(r.Context(), tag)
	if errors.Is(err, storage.ErrNoSnapshots) {
		writeJSON(w, http.StatusOK, map[string]any{"found": false})
		return
	}
	if err != nil {
		s.serverError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"found": true, "data": snapshot})
}

func (s *Server) handleClanHistory(w http.ResponseWriter, r *http.Request) {
	tag := r.URL.Query().Get("clanTag")
	if tag == "" {
		tag = s.opts.ClanTag
	}

	limit := queryInt(r, "limit", s.opts.HistoryCap)
	if limit <= 0 || limit > s.opts.HistoryCap {
		limit = s.opts.HistoryCap
	}

	snapshots, err := s.snapshots.ListSnapshots(r.Context(), tag)
	if err != nil {
		s.serverError(w, err)
		return
	}

	// Keep the most recent rows but preserve ascending order for charting.
	if len(snapshots) > limit {
		snapshots = snapshots[len(snapshots)-limit:]
	}

	writeJSON(w, http.StatusOK, map[string]any{"data": snapshots})
}

func (s *Server) handlePlayers(w http.ResponseWriter, r *http.Request) {
	players, err := s.players.ListPlayers(r.Context())
	if err != nil {
		s.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": players})
}

func (s *Server) handlePlayerStats(w http.ResponseWriter, r *http.Request) {
	tag, err := pathTag(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid player tag"})
		return
	}

	days := queryInt(r, "days", 30)
	since := time.Now().UTC().AddDate(0, 0, -days)

	stats, err := s.players.ListPlayerWarStatsSince(r.Context(), tag, since)
	if err != nil {
		s.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": stats})
}

func (s *Server) handlePlayerActivity(w http.ResponseWriter, r *http.Request) {
	tag, err := pathTag(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid player tag"})
		return
	}

	days := queryInt(r, "days", 30)
	window := queryInt(r, "window", s.opts.TrendWindow)
	since := time.Now().UTC().AddDate(0, 0, -days)

	stats, err := s.players.ListPlayerWarStatsSince(r.Context(), tag, since)
	if err != nil {
		s.serverError(w, err)
		return
	}

	deltas := derive.Deltas(derive.GroupDaily(stats))
	trend := derive.MovingAverage(deltas, window)

	writeJSON(w, http.StatusOK, map[string]any{
		"deltas": deltas,
		"trend":  trend,
	})
}

func (s *Server) serverError(w http.ResponseWriter, err error) {
	s.log.Error().Err(err).Msg("request failed")
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

// pathTag decodes the player tag path segment; tags arrive percent-encoded
// ("#ABC" as %23ABC).
func pathTag(r *http.Request) (string, error) {
	raw := chi.URLParam(r, "tag")
	tag, err := url.PathUnescape(raw)
	if err != nil || tag == "" {
		return "", errors.New("invalid tag")
	}
	return tag, nil
}
