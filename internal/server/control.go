package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/Sternrassler/asset-cache/pkg/media"
	"github.com/Sternrassler/asset-cache/pkg/worker"
)

const maxMessageBytes = 4 << 10

// handleMessage accepts a page to worker control message. Success is 202
// without a body.
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxMessageBytes))
	if err != nil {
		http.Error(w, "message too large", http.StatusRequestEntityTooLarge)
		return
	}

	cmd, err := worker.ParseCommand(data)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Rejected control message")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.registration.Handle(r.Context(), cmd); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, worker.ErrUnknownCommand) {
			status = http.StatusBadRequest
		}
		s.logger.Error().Err(err).Str("command", cmd.Type()).Msg("Control command failed")
		http.Error(w, "command failed", status)
		return
	}

	s.logger.Info().Str("command", cmd.Type()).Msg("Control command handled")
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.registration.Status())
}

type mediaSourceResponse struct {
	Source           string         `json:"source"`
	Poster           string         `json:"poster"`
	Variants         media.Variants `json:"variants"`
	Constrained      bool           `json:"constrained"`
	Quality          string         `json:"quality"`
	BitrateMbps      float64        `json:"bitrate_mbps"`
	EstimatedSizeMB  float64        `json:"estimated_size_mb"`
	AggressiveMemory bool           `json:"aggressive_memory"`
}

// handleMediaSource answers which variant and poster a caller should use
// for ?path=, with an optional ?duration= in seconds for the estimate.
func (s *Server) handleMediaSource(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Accept-CH", media.AcceptCH)
	w.Header().Set("Vary", media.AcceptCH+", "+media.HeaderUserAgent)

	path := r.URL.Query().Get("path")
	if path == "" {
		http.Error(w, "missing path", http.StatusBadRequest)
		return
	}

	var duration time.Duration
	if d := r.URL.Query().Get("duration"); d != "" {
		secs, err := strconv.ParseFloat(d, 64)
		if err != nil || secs < 0 {
			http.Error(w, "invalid duration", http.StatusBadRequest)
			return
		}
		duration = time.Duration(secs * float64(time.Second))
	}

	profile := media.ProfileFromRequest(r)
	estimate := s.selector.Estimate(profile, duration)

	writeJSON(w, http.StatusOK, mediaSourceResponse{
		Source:           s.selector.Source(path, profile),
		Poster:           s.selector.Poster(path),
		Variants:         s.selector.Variants(path),
		Constrained:      s.selector.Constrained(profile),
		Quality:          estimate.Quality,
		BitrateMbps:      estimate.BitrateMbps,
		EstimatedSizeMB:  estimate.EstimatedSizeMB,
		AggressiveMemory: s.selector.AggressiveMemoryMode(profile),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
