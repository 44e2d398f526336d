package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/caption-sync/backend/internal/subtitle"
	"github.com/caption-sync/backend/internal/transcript"
)

// DefaultOriginalLanguage tags the untranslated transcript when the
// transcription service does not report a detected language.
const DefaultOriginalLanguage = "en"

var (
	// ErrSwitchInFlight rejects a switch while a translation fetch is
	// outstanding. Switches are serialized, never queued or raced.
	ErrSwitchInFlight = errors.New("a language switch is already in progress")

	// ErrNoTranscript is returned by operations that need an active
	// transcript after the session has been reset.
	ErrNoTranscript = errors.New("no active transcript")
)

// Translator fetches a translated transcript for a stored upload.
// *caption.Translator satisfies this.
type Translator interface {
	Translate(ctx context.Context, filename, language string) (transcript.Transcript, error)
}

// Session owns all mutable state for one uploaded video: the source
// filenames, the per-language transcript cache, the active selection,
// the subtitle track, and the playback sync loop. Nothing here is
// process-global, so independent sessions cannot interfere.
type Session struct {
	ID string

	mu           sync.Mutex
	remoteName   string // service-side handle from transcription
	videoName    string // locally stored upload, for playback serving
	originalLang string
	activeLang   string
	cache        map[string]transcript.Transcript
	inFlight     bool

	store   *transcript.Store
	tracker *transcript.Tracker
	track   *subtitle.TrackStore

	translator Translator
	stopSync   context.CancelFunc
	createdAt  time.Time
}

// New builds a session around an initial transcription. The segments are
// normalized and cached under the original language, which becomes the
// active selection.
func New(id, remoteName, videoName, originalLang string, segments []transcript.Segment, translator Translator) *Session {
	if originalLang == "" {
		originalLang = DefaultOriginalLanguage
	}
	norm := transcript.Normalize(segments)

	s := &Session{
		ID:           id,
		remoteName:   remoteName,
		videoName:    videoName,
		originalLang: originalLang,
		activeLang:   originalLang,
		cache:        map[string]transcript.Transcript{originalLang: norm.Clone()},
		store:        transcript.NewStore(),
		tracker:      transcript.NewTracker(),
		track:        subtitle.NewTrackStore(),
		translator:   translator,
		createdAt:    time.Now(),
	}
	s.store.Replace(norm)
	s.track.Install(norm)
	return s
}

// Outcome reports the result of a switch. Previous always carries the
// language that was active before the attempt, so a caller can roll an
// optimistic selection back deterministically on failure.
type Outcome struct {
	Previous  string `json:"previous"`
	Active    string `json:"active"`
	Segments  int    `json:"segments"`
	FromCache bool   `json:"from_cache"`
	Fetched   bool   `json:"fetched"`
}

// SwitchTo activates the transcript for language. A cached language
// activates synchronously with no remote call. An uncached one issues
// exactly one translation fetch; while that fetch is outstanding every
// further switch, cached or not, fails with ErrSwitchInFlight. On fetch
// failure the previously active language, its transcript, and the cache
// are left untouched and no entry is written, so a later retry
// re-fetches.
func (s *Session) SwitchTo(ctx context.Context, language string) (Outcome, error) {
	s.mu.Lock()

	prev := s.activeLang

	// An outstanding fetch blocks every switch request, cached targets
	// included, so the resolving fetch never clobbers a selection made
	// in between.
	if s.inFlight {
		s.mu.Unlock()
		return Outcome{Previous: prev, Active: prev}, ErrSwitchInFlight
	}

	if language == prev {
		out := Outcome{Previous: prev, Active: prev, Segments: s.store.Len()}
		s.mu.Unlock()
		return out, nil
	}

	if cached, ok := s.cache[language]; ok {
		s.activateLocked(language, cached)
		out := Outcome{Previous: prev, Active: language, Segments: len(cached), FromCache: true}
		s.mu.Unlock()
		log.Printf("[session] %s: switched to %s from cache (%d segments)", s.ID, language, len(cached))
		return out, nil
	}

	s.inFlight = true
	remoteName := s.remoteName
	s.mu.Unlock()

	segments, err := s.translator.Translate(ctx, remoteName, language)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight = false

	if err != nil {
		log.Printf("[session] %s: translate to %s failed: %v", s.ID, language, err)
		return Outcome{Previous: prev, Active: s.activeLang},
			fmt.Errorf("translate to %s: %w", language, err)
	}

	// A reset emptied the session while the fetch was out; drop the late
	// result instead of resurrecting state.
	if s.activeLang == "" {
		return Outcome{Previous: prev}, ErrNoTranscript
	}

	s.cache[language] = segments.Clone()
	s.activateLocked(language, segments)
	log.Printf("[session] %s: switched to %s after fetch (%d segments)", s.ID, language, len(segments))
	return Outcome{Previous: prev, Active: language, Segments: len(segments), Fetched: true}, nil
}

// activateLocked installs a transcript as the active selection and
// rebuilds the subtitle track. Caller holds s.mu.
func (s *Session) activateLocked(language string, t transcript.Transcript) {
	s.activeLang = language
	s.store.Replace(t)
	s.tracker.Reset()
	s.track.Install(t)
}

// EditSegment replaces the text of one line in the active transcript,
// mirrors the edit into the active language's cache entry only, and
// rebuilds the subtitle track.
func (s *Session) EditSegment(index int, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.activeLang == "" {
		return ErrNoTranscript
	}
	if err := s.store.EditText(index, text); err != nil {
		return err
	}

	edited := s.store.Segments()
	s.cache[s.activeLang] = edited
	s.tracker.Reset()
	s.track.Install(edited)
	return nil
}

// Tick reads the active line at the given playback position and reports
// a change notification when the line (or its absence) is new.
func (s *Session) Tick(position float64) (transcript.Update, bool) {
	idx, seg, ok := s.store.Locate(position)

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tracker.Observe(idx, seg, ok)
}

// StartSync launches the cooperative polling loop: every interval it
// reads the playback clock, ticks the tracker, and pushes changes to
// notify. A second call replaces the running loop.
func (s *Session) StartSync(clock func() float64, interval time.Duration, notify func(transcript.Update)) {
	s.mu.Lock()
	if s.stopSync != nil {
		s.stopSync()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.stopSync = cancel
	s.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if u, changed := s.Tick(clock()); changed && notify != nil {
					notify(u)
				}
			}
		}
	}()
}

// StopSync cancels the polling loop if one is running.
func (s *Session) StopSync() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopSync != nil {
		s.stopSync()
		s.stopSync = nil
	}
}

// Reset discards the whole cache and active selection, releases the
// subtitle track handle, and stops the sync loop.
func (s *Session) Reset() {
	s.StopSync()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string]transcript.Transcript)
	s.activeLang = ""
	s.store.Clear()
	s.tracker.Reset()
	s.track.Release()
}

// Transcript returns a copy of the active transcript.
func (s *Session) Transcript() transcript.Transcript {
	return s.store.Segments()
}

// ActiveLanguage returns the language tag driving playback display, or
// "" after a reset.
func (s *Session) ActiveLanguage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeLang
}

// OriginalLanguage returns the reserved tag of the untranslated transcript.
func (s *Session) OriginalLanguage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.originalLang
}

// Languages lists the cached language tags, sorted.
func (s *Session) Languages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	langs := make([]string, 0, len(s.cache))
	for l := range s.cache {
		langs = append(langs, l)
	}
	sort.Strings(langs)
	return langs
}

// Cached reports whether a language is present in the cache without
// touching the active selection.
func (s *Session) Cached(language string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.cache[language]
	return ok
}

// CachedTranscript returns a copy of one cached language's transcript.
func (s *Session) CachedTranscript(language string) (transcript.Transcript, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.cache[language]
	if !ok {
		return nil, false
	}
	return t.Clone(), true
}

// RemoteName returns the transcription service's handle for the upload.
func (s *Session) RemoteName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remoteName
}

// VideoName returns the locally stored upload name used for playback.
func (s *Session) VideoName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.videoName
}

// TrackHandle returns the current subtitle track handle, "" if none.
func (s *Session) TrackHandle() string {
	return s.track.Handle()
}

// ResolveTrack returns the live VTT document for handle, or ok=false if
// the handle has been invalidated.
func (s *Session) ResolveTrack(handle string) ([]byte, bool) {
	return s.track.Resolve(handle)
}
