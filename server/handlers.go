package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"AutoMixFM/cache"
	"AutoMixFM/config"
	"AutoMixFM/core/library"
	"AutoMixFM/core/mix"
	"AutoMixFM/core/playlist"
	"AutoMixFM/logger"
	"AutoMixFM/model"
	"AutoMixFM/repository"
	"AutoMixFM/storage"
)

// APIHandler handles all API requests.
type APIHandler struct {
	lib       *library.Library
	sequencer *playlist.Sequencer
	runner    *mix.Runner
	playlists *cache.PlaylistCache
	mixes     repository.MixRepository
	cfg       *config.Config
}

// NewAPIHandler creates a new API handler. playlists and mixes may be
// nil when Redis or the database are unavailable.
func NewAPIHandler(
	lib *library.Library,
	sequencer *playlist.Sequencer,
	runner *mix.Runner,
	playlists *cache.PlaylistCache,
	mixes repository.MixRepository,
	cfg *config.Config,
) *APIHandler {
	return &APIHandler{
		lib:       lib,
		sequencer: sequencer,
		runner:    runner,
		playlists: playlists,
		mixes:     mixes,
		cfg:       cfg,
	}
}

var nonAlphaNumeric = regexp.MustCompile(`[^a-zA-Z0-9_\-\.]`)
var multipleSpaces = regexp.MustCompile(`\s+`)

// sanitizeFilename reduces an uploaded filename to a safe basename.
func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = multipleSpaces.ReplaceAllString(strings.TrimSpace(base), "_")
	base = nonAlphaNumeric.ReplaceAllString(base, "")
	if base == "" || base == "." {
		base = "untitled"
	}
	if len(base) > 150 {
		base = base[len(base)-150:]
	}
	return base
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// UploadHandler accepts one audio file as multipart form field
// "audio_file", stores it in the upload directory and runs analysis.
func (h *APIHandler) UploadHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(200 << 20); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Failed to parse multipart form: %v", err))
		return
	}

	file, header, err := r.FormFile("audio_file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Missing 'audio_file' in form")
		return
	}
	defer file.Close()

	filename := sanitizeFilename(header.Filename)
	destPath := filepath.Join(h.cfg.UploadDir, filename)

	dest, err := os.Create(destPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to save file: %v", err))
		return
	}
	if _, err := io.Copy(dest, file); err != nil {
		dest.Close()
		os.Remove(destPath)
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to save file: %v", err))
		return
	}
	dest.Close()

	track, err := h.lib.Ingest(r.Context(), destPath)
	if err != nil {
		os.Remove(destPath)
		writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("Failed to analyze file: %v", err))
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "File uploaded and analyzed successfully",
		"file_id": track.ID,
		"track":   track,
	})
}

// GetFilesHandler lists every analyzed track in the pool.
func (h *APIHandler) GetFilesHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"files": h.lib.Tracks(),
	})
}

// generatePlaylistRequest is the body of POST /api/generate-playlist.
// Empty TrackIDs means "use the whole pool".
type generatePlaylistRequest struct {
	TrackIDs      []string `json:"track_ids"`
	TargetMinutes int      `json:"target_minutes"`
}

// GeneratePlaylistHandler sequences the selected tracks into a playable
// order and caches the result.
func (h *APIHandler) GeneratePlaylistHandler(w http.ResponseWriter, r *http.Request) {
	var req generatePlaylistRequest
	if r.Body != nil {
		// An empty body is fine; it means defaults.
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
			return
		}
	}

	pool := h.lib.Tracks()
	if len(req.TrackIDs) > 0 {
		selected, err := h.lib.Select(req.TrackIDs)
		if err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		pool = selected
	}

	target := h.targetDuration(req.TargetMinutes)
	sequence := h.sequencer.Sequence(pool, target)
	if len(sequence) == 0 {
		writeError(w, http.StatusUnprocessableEntity,
			"No playable tracks available. Upload tracks with detectable BPM and key first.")
		return
	}

	ids := make([]string, len(sequence))
	for i, t := range sequence {
		ids[i] = t.ID
	}
	if h.playlists != nil {
		if err := h.playlists.SavePlaylist(r.Context(), ids); err != nil {
			logger.Warn("failed to cache playlist", logger.ErrorField(err))
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"playlist":       sequence,
		"target_minutes": int(target.Minutes()),
	})
}

// generateMixRequest is the body of POST /api/generate-mix. Empty
// TrackIDs falls back to the cached playlist, then to sequencing the
// whole pool.
type generateMixRequest struct {
	TrackIDs      []string `json:"track_ids"`
	TargetMinutes int      `json:"target_minutes"`
}

// GenerateMixHandler starts a background mix job. A second request
// while one is processing is rejected with 409.
func (h *APIHandler) GenerateMixHandler(w http.ResponseWriter, r *http.Request) {
	var req generateMixRequest
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
			return
		}
	}

	target := h.targetDuration(req.TargetMinutes)

	sequence, err := h.resolvePlaylist(r, req.TrackIDs, target)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if len(sequence) == 0 {
		writeError(w, http.StatusUnprocessableEntity,
			"No playable tracks available. Upload tracks with detectable BPM and key first.")
		return
	}

	if err := h.runner.Start(sequence, target); err != nil {
		if errors.Is(err, mix.ErrMixInProgress) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, h.runner.State())
}

// resolvePlaylist turns the request into an ordered track list:
// explicit ids win, then the cached playlist, then a fresh sequence
// over the whole pool.
func (h *APIHandler) resolvePlaylist(r *http.Request, ids []string, target time.Duration) ([]*model.Track, error) {
	if len(ids) > 0 {
		return h.lib.Select(ids)
	}

	if h.playlists != nil {
		cached, err := h.playlists.LoadPlaylist(r.Context())
		if err != nil {
			logger.Warn("failed to load cached playlist", logger.ErrorField(err))
		} else if len(cached) > 0 {
			sequence, err := h.lib.Select(cached)
			if err == nil {
				return sequence, nil
			}
			// Pool changed since caching; fall through to resequencing.
			logger.Debug("cached playlist no longer resolvable", logger.ErrorField(err))
		}
	}

	return h.sequencer.Sequence(h.lib.Tracks(), target), nil
}

// MixStatusHandler reports the current mix job state.
func (h *APIHandler) MixStatusHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.runner.State())
}

// MixHistoryHandler lists recent mix jobs, newest first.
func (h *APIHandler) MixHistoryHandler(w http.ResponseWriter, r *http.Request) {
	if h.mixes == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"mixes": []*model.MixRecord{}})
		return
	}
	records, err := h.mixes.ListRecent(r.Context(), 50)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load mix history: %v", err))
		return
	}
	if records == nil {
		records = []*model.MixRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"mixes": records})
}

// DownloadMixHandler streams a finished mix from storage.
func (h *APIHandler) DownloadMixHandler(w http.ResponseWriter, r *http.Request) {
	filename := mux.Vars(r)["filename"]
	if filename == "" || filename != filepath.Base(filename) {
		writeError(w, http.StatusBadRequest, "Invalid filename")
		return
	}

	info, err := storage.StatMixFile(r.Context(), filename)
	if err != nil {
		// Storage may have missed the upload; the render is still on disk.
		localPath := filepath.Join(h.cfg.MixOutputDir, filename)
		if _, statErr := os.Stat(localPath); statErr == nil {
			w.Header().Set("Content-Type", "audio/mpeg")
			w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
			http.ServeFile(w, r, localPath)
			return
		}
		writeError(w, http.StatusNotFound, "Mix file not found")
		return
	}

	object, err := storage.OpenMixFile(r.Context(), filename)
	if err != nil {
		writeError(w, http.StatusNotFound, "Mix file not found")
		return
	}
	defer object.Close()

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Content-Length", fmt.Sprintf("%d", info.Size))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if _, err := io.Copy(w, object); err != nil {
		logger.Error("error streaming mix file", logger.ErrorField(err))
	}
}

// ClearFilesHandler empties the track pool, the cached playlist and the
// upload directory. Rejected while a mix is processing.
func (h *APIHandler) ClearFilesHandler(w http.ResponseWriter, r *http.Request) {
	if h.runner.Busy() {
		writeError(w, http.StatusConflict, "Cannot clear files while a mix is being generated")
		return
	}

	if err := h.lib.Clear(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if h.playlists != nil {
		if err := h.playlists.ClearPlaylist(r.Context()); err != nil {
			logger.Warn("failed to clear cached playlist", logger.ErrorField(err))
		}
	}

	removed := 0
	entries, err := os.ReadDir(h.cfg.UploadDir)
	if err == nil {
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			if err := os.Remove(filepath.Join(h.cfg.UploadDir, entry.Name())); err == nil {
				removed++
			}
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":       "All files cleared",
		"files_removed": removed,
	})
}

func (h *APIHandler) targetDuration(minutes int) time.Duration {
	if minutes <= 0 {
		minutes = h.cfg.TargetMixMinutes
	}
	return time.Duration(minutes) * time.Minute
}
