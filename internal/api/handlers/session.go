package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/caption-sync/backend/internal/caption"
	"github.com/caption-sync/backend/internal/db"
	"github.com/caption-sync/backend/internal/job"
	"github.com/caption-sync/backend/internal/session"
	"github.com/caption-sync/backend/internal/storage"
	"github.com/caption-sync/backend/internal/transcript"
)

// TranscribeService is the remote speech-recognition call.
type TranscribeService interface {
	Transcribe(ctx context.Context, filePath string) (*caption.TranscribeResult, error)
}

// RenderService is the remote rendering backend: burn-in, transcript
// documents, and retrieval of rendered outputs.
type RenderService interface {
	BurnIn(ctx context.Context, filename string, segments transcript.Transcript) (string, error)
	RenderDocument(ctx context.Context, filename string, segments transcript.Transcript) ([]byte, error)
}

// SessionHandler exposes caption sessions over HTTP. It is a thin
// adapter: all selection/cache/track semantics live in the session
// package.
type SessionHandler struct {
	sessions    *session.Manager
	transcriber TranscribeService
	renderer    RenderService
	queue       *job.JobQueue
	database    *db.Database
	uploadPath  string
	maxUpload   int64
}

func NewSessionHandler(sessions *session.Manager, transcriber TranscribeService, renderer RenderService,
	queue *job.JobQueue, database *db.Database, uploadPath string, maxUpload int64) *SessionHandler {
	return &SessionHandler{
		sessions:    sessions,
		transcriber: transcriber,
		renderer:    renderer,
		queue:       queue,
		database:    database,
		uploadPath:  uploadPath,
		maxUpload:   maxUpload,
	}
}

type sessionState struct {
	ID               string                `json:"id"`
	Filename         string                `json:"filename"`
	VideoURL         string                `json:"video_url"`
	ActiveLanguage   string                `json:"active_language"`
	OriginalLanguage string                `json:"original_language"`
	Languages        []string              `json:"languages"`
	SegmentCount     int                   `json:"segment_count"`
	Segments         transcript.Transcript `json:"segments"`
	TrackURL         string                `json:"track_url,omitempty"`
}

func (h *SessionHandler) state(s *session.Session) sessionState {
	st := sessionState{
		ID:               s.ID,
		Filename:         s.RemoteName(),
		VideoURL:         "/api/video/" + s.VideoName(),
		ActiveLanguage:   s.ActiveLanguage(),
		OriginalLanguage: s.OriginalLanguage(),
		Languages:        s.Languages(),
		Segments:         s.Transcript(),
	}
	st.SegmentCount = len(st.Segments)
	if handle := s.TrackHandle(); handle != "" {
		st.TrackURL = fmt.Sprintf("/api/session/%s/track/%s", s.ID, handle)
	}
	return st
}

// Transcribe accepts a video upload, runs it through the transcription
// service, and creates a session around the result. The file extension
// is vetted before anything touches the network.
func (h *SessionHandler) Transcribe(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "video file required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if !storage.IsVideoFile(header.Filename) {
		jsonError(w, "unsupported file type, expected a video (mp4, mkv, mov, avi, webm)", http.StatusBadRequest)
		return
	}

	stored, err := storage.SaveUpload(h.uploadPath, header.Filename, file)
	if err != nil {
		jsonError(w, "failed to store upload", http.StatusInternalServerError)
		return
	}
	fullPath := filepath.Join(h.uploadPath, stored)

	result, err := h.transcriber.Transcribe(r.Context(), fullPath)
	if errors.Is(err, caption.ErrNoSpeech) {
		os.Remove(fullPath)
		jsonError(w, "no speech detected in the video, try a different file", http.StatusUnprocessableEntity)
		return
	}
	if err != nil {
		os.Remove(fullPath)
		jsonError(w, "transcription failed: "+err.Error(), http.StatusBadGateway)
		return
	}

	sess := h.sessions.Create(result.Filename, stored, session.DefaultOriginalLanguage, result.Segments)

	if err := h.database.RecordTranscription(sess.ID, result.Filename, stored,
		sess.OriginalLanguage(), len(result.Segments)); err != nil {
		log.Printf("[api] failed to record transcription %s: %v", sess.ID, err)
	}

	jsonResponse(w, h.state(sess), http.StatusOK)
}

// GetSession returns the current session state.
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	jsonResponse(w, h.state(sess), http.StatusOK)
}

type switchRequest struct {
	Language string `json:"language"`
}

type switchResponse struct {
	sessionState
	Previous  string `json:"previous"`
	FromCache bool   `json:"from_cache"`
}

// SwitchLanguage activates a cached translation synchronously, or
// fetches an uncached one. A fetch failure leaves the prior selection
// active and reports it so the client can roll back.
func (h *SessionHandler) SwitchLanguage(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var req switchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Language == "" {
		jsonError(w, "language required", http.StatusBadRequest)
		return
	}

	out, err := sess.SwitchTo(r.Context(), req.Language)
	if errors.Is(err, session.ErrSwitchInFlight) {
		jsonError(w, "another language switch is in progress", http.StatusConflict)
		return
	}
	if err != nil {
		jsonResponse(w, map[string]string{
			"error":    fmt.Sprintf("could not translate to %s", req.Language),
			"active":   out.Active,
			"previous": out.Previous,
		}, http.StatusBadGateway)
		return
	}

	jsonResponse(w, switchResponse{
		sessionState: h.state(sess),
		Previous:     out.Previous,
		FromCache:    out.FromCache,
	}, http.StatusOK)
}

type editRequest struct {
	Text string `json:"text"`
}

// EditSegment replaces the text of one line in the active transcript.
func (h *SessionHandler) EditSegment(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		jsonError(w, "invalid segment index", http.StatusBadRequest)
		return
	}

	var req editRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := sess.EditSegment(index, req.Text); err != nil {
		if errors.Is(err, transcript.ErrSegmentOutOfRange) {
			jsonError(w, "segment index out of range", http.StatusBadRequest)
			return
		}
		jsonError(w, err.Error(), http.StatusConflict)
		return
	}

	jsonResponse(w, h.state(sess), http.StatusOK)
}

// Active reports the segment under the given playback position. Polled
// every display frame, so responses stay minimal and unlogged.
func (h *SessionHandler) Active(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	position, err := strconv.ParseFloat(r.URL.Query().Get("position"), 64)
	if err != nil {
		jsonError(w, "position required", http.StatusBadRequest)
		return
	}

	update, changed := sess.Tick(position)
	resp := map[string]interface{}{"changed": changed}
	if changed {
		resp["cleared"] = update.Cleared
		if !update.Cleared {
			resp["index"] = update.Index
			resp["segment"] = update.Segment
		}
	}
	jsonResponse(w, resp, http.StatusOK)
}

// Track serves the live subtitle document. A handle invalidated by a
// later language switch or edit answers 410 so stale players re-fetch.
func (h *SessionHandler) Track(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	doc, ok := sess.ResolveTrack(chi.URLParam(r, "handle"))
	if !ok {
		jsonError(w, "track handle no longer valid", http.StatusGone)
		return
	}

	w.Header().Set("Content-Type", "text/vtt; charset=utf-8")
	w.Write(doc)
}

// BurnIn snapshots the active transcript and queues a render job.
func (h *SessionHandler) BurnIn(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	segments := sess.Transcript()
	if len(segments) == 0 {
		jsonError(w, "nothing to burn in", http.StatusBadRequest)
		return
	}

	segmentsJSON, err := json.Marshal(segments)
	if err != nil {
		jsonError(w, "failed to snapshot transcript", http.StatusInternalServerError)
		return
	}

	j, err := h.queue.Enqueue(job.JobBurnIn, sess.ID, job.BurnInParams{
		RemoteName: sess.RemoteName(),
		Language:   sess.ActiveLanguage(),
		Segments:   segmentsJSON,
	})
	if err != nil {
		jsonError(w, "failed to queue burn-in: "+err.Error(), http.StatusInternalServerError)
		return
	}

	jsonResponse(w, j, http.StatusAccepted)
}

// DownloadTranscript fetches a downloadable document for the active
// transcript from the render service and streams it back.
func (h *SessionHandler) DownloadTranscript(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	segments := sess.Transcript()
	if len(segments) == 0 {
		jsonError(w, "no transcript available", http.StatusBadRequest)
		return
	}

	blob, err := h.renderer.RenderDocument(r.Context(), sess.RemoteName(), segments)
	if err != nil {
		jsonError(w, "failed to render transcript document: "+err.Error(), http.StatusBadGateway)
		return
	}

	base := sess.VideoName()
	base = base[:len(base)-len(filepath.Ext(base))]
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", base+"_transcript.docx"))
	w.Write(blob)
}

// DeleteSession resets a session and removes it.
func (h *SessionHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.sessions.Remove(id) {
		jsonError(w, "session not found", http.StatusNotFound)
		return
	}
	jsonResponse(w, map[string]string{"status": "ok"}, http.StatusOK)
}

// ListTranscriptions returns the transcription audit log.
func (h *SessionHandler) ListTranscriptions(w http.ResponseWriter, r *http.Request) {
	records, err := h.database.ListTranscriptions()
	if err != nil {
		jsonError(w, "failed to list transcriptions", http.StatusInternalServerError)
		return
	}
	jsonResponse(w, records, http.StatusOK)
}

func (h *SessionHandler) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, ok := h.sessions.Get(chi.URLParam(r, "id"))
	if !ok {
		jsonError(w, "session not found", http.StatusNotFound)
		return nil, false
	}
	return sess, true
}
