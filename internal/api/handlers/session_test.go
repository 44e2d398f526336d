package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caption-sync/backend/internal/session"
	"github.com/caption-sync/backend/internal/transcript"
)

type stubTranslator struct {
	results map[string]transcript.Transcript
	err     error
}

func (t *stubTranslator) Translate(_ context.Context, _, language string) (transcript.Transcript, error) {
	if t.err != nil {
		return nil, t.err
	}
	return t.results[language], nil
}

type stubRenderer struct {
	doc []byte
	err error
}

func (r *stubRenderer) BurnIn(context.Context, string, transcript.Transcript) (string, error) {
	return "out.mp4", nil
}

func (r *stubRenderer) RenderDocument(context.Context, string, transcript.Transcript) ([]byte, error) {
	return r.doc, r.err
}

func testSegments() []transcript.Segment {
	return []transcript.Segment{
		{Start: 0, End: 2, Text: "Hello"},
		{Start: 2, End: 5, Text: "world"},
	}
}

// newTestServer mounts the session routes the way the router does, minus
// auth, so URL params resolve through chi.
func newTestServer(t *testing.T, translator session.Translator, renderer RenderService) (*chi.Mux, *session.Manager) {
	t.Helper()
	sessions := session.NewManager(translator)
	h := NewSessionHandler(sessions, nil, renderer, nil, nil, t.TempDir(), 1<<20)

	r := chi.NewRouter()
	r.Route("/api/session/{id}", func(r chi.Router) {
		r.Get("/", h.GetSession)
		r.Delete("/", h.DeleteSession)
		r.Get("/active", h.Active)
		r.Get("/track/{handle}", h.Track)
		r.Post("/language", h.SwitchLanguage)
		r.Put("/segment/{index}", h.EditSegment)
		r.Post("/transcript/download", h.DownloadTranscript)
	})
	return r, sessions
}

func decodeState(t *testing.T, rec *httptest.ResponseRecorder) sessionState {
	t.Helper()
	var st sessionState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	return st
}

func TestGetSessionState(t *testing.T) {
	r, sessions := newTestServer(t, &stubTranslator{}, &stubRenderer{})
	sess := sessions.Create("remote.mp4", "abcd1234_local.mp4", "en", testSegments())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/api/session/"+sess.ID+"/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	st := decodeState(t, rec)
	assert.Equal(t, sess.ID, st.ID)
	assert.Equal(t, "en", st.ActiveLanguage)
	assert.Equal(t, []string{"en"}, st.Languages)
	assert.Equal(t, 2, st.SegmentCount)
	assert.Equal(t, "/api/video/abcd1234_local.mp4", st.VideoURL)
	assert.Contains(t, st.TrackURL, "/api/session/"+sess.ID+"/track/")
}

func TestGetSessionNotFound(t *testing.T) {
	r, _ := newTestServer(t, &stubTranslator{}, &stubRenderer{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/api/session/nope/", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSwitchLanguageFetchAndCache(t *testing.T) {
	translated := transcript.Transcript{{Start: 0, End: 2, Text: "Hola"}, {Start: 2, End: 5, Text: "mundo"}}
	r, sessions := newTestServer(t, &stubTranslator{
		results: map[string]transcript.Transcript{"es": translated},
	}, &stubRenderer{})
	sess := sessions.Create("remote.mp4", "local.mp4", "en", testSegments())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("POST", "/api/session/"+sess.ID+"/language",
		strings.NewReader(`{"language":"es"}`)))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp switchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "es", resp.ActiveLanguage)
	assert.Equal(t, "en", resp.Previous)
	assert.False(t, resp.FromCache)
	assert.Equal(t, []string{"en", "es"}, resp.Languages)

	// Second switch back and forth hits the cache.
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("POST", "/api/session/"+sess.ID+"/language",
		strings.NewReader(`{"language":"en"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.FromCache)
}

func TestSwitchLanguageFailureReportsRollback(t *testing.T) {
	r, sessions := newTestServer(t, &stubTranslator{err: errors.New("service down")}, &stubRenderer{})
	sess := sessions.Create("remote.mp4", "local.mp4", "en", testSegments())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("POST", "/api/session/"+sess.ID+"/language",
		strings.NewReader(`{"language":"fr"}`)))

	require.Equal(t, http.StatusBadGateway, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "en", resp["active"])
	assert.Equal(t, "en", resp["previous"])
	assert.Equal(t, "en", sess.ActiveLanguage())
}

func TestSwitchLanguageMissingBody(t *testing.T) {
	r, sessions := newTestServer(t, &stubTranslator{}, &stubRenderer{})
	sess := sessions.Create("remote.mp4", "local.mp4", "en", testSegments())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("POST", "/api/session/"+sess.ID+"/language",
		strings.NewReader(`{}`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEditSegment(t *testing.T) {
	r, sessions := newTestServer(t, &stubTranslator{}, &stubRenderer{})
	sess := sessions.Create("remote.mp4", "local.mp4", "en", testSegments())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("PUT", "/api/session/"+sess.ID+"/segment/1",
		strings.NewReader(`{"text":"there"}`)))

	require.Equal(t, http.StatusOK, rec.Code)
	st := decodeState(t, rec)
	assert.Equal(t, "there", st.Segments[1].Text)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("PUT", "/api/session/"+sess.ID+"/segment/5",
		strings.NewReader(`{"text":"x"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestActiveReportsChangesOnce(t *testing.T) {
	r, sessions := newTestServer(t, &stubTranslator{}, &stubRenderer{})
	sess := sessions.Create("remote.mp4", "local.mp4", "en", testSegments())

	get := func(position string) map[string]interface{} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest("GET", "/api/session/"+sess.ID+"/active?position="+position, nil))
		require.Equal(t, http.StatusOK, rec.Code)
		var resp map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		return resp
	}

	resp := get("1.0")
	assert.Equal(t, true, resp["changed"])
	assert.Equal(t, false, resp["cleared"])
	assert.Equal(t, float64(0), resp["index"])

	// Same line again: no change reported.
	resp = get("1.5")
	assert.Equal(t, false, resp["changed"])

	// Past the last segment: one cleared notification.
	resp = get("10")
	assert.Equal(t, true, resp["changed"])
	assert.Equal(t, true, resp["cleared"])
}

func TestActiveRequiresPosition(t *testing.T) {
	r, sessions := newTestServer(t, &stubTranslator{}, &stubRenderer{})
	sess := sessions.Create("remote.mp4", "local.mp4", "en", testSegments())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/api/session/"+sess.ID+"/active", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTrackServesVTTAndExpires(t *testing.T) {
	translated := transcript.Transcript{{Start: 0, End: 1.5, Text: "Hola"}}
	r, sessions := newTestServer(t, &stubTranslator{
		results: map[string]transcript.Transcript{"es": translated},
	}, &stubRenderer{})
	sess := sessions.Create("remote.mp4", "local.mp4", "en", testSegments())

	handle := sess.TrackHandle()
	require.NotEmpty(t, handle)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/api/session/"+sess.ID+"/track/"+handle, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/vtt; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "WEBVTT\n\n"))
	assert.Contains(t, rec.Body.String(), "Hello")

	// A language switch installs a new document and invalidates the handle.
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("POST", "/api/session/"+sess.ID+"/language",
		strings.NewReader(`{"language":"es"}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/api/session/"+sess.ID+"/track/"+handle, nil))
	assert.Equal(t, http.StatusGone, rec.Code)
}

func TestDownloadTranscript(t *testing.T) {
	r, sessions := newTestServer(t, &stubTranslator{}, &stubRenderer{doc: []byte("DOCX-BYTES")})
	sess := sessions.Create("remote.mp4", "local_video.mp4", "en", testSegments())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("POST", "/api/session/"+sess.ID+"/transcript/download", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "DOCX-BYTES", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "local_video_transcript.docx")
}

func TestDeleteSession(t *testing.T) {
	r, sessions := newTestServer(t, &stubTranslator{}, &stubRenderer{})
	sess := sessions.Create("remote.mp4", "local.mp4", "en", testSegments())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("DELETE", "/api/session/"+sess.ID+"/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, sessions.Len())

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("DELETE", "/api/session/"+sess.ID+"/", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
