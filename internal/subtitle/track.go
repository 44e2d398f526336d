package subtitle

import (
	"sync"

	"github.com/google/uuid"

	"github.com/caption-sync/backend/internal/transcript"
)

// TrackStore owns the live serialized subtitle document for one session.
// At most one handle is valid at a time: installing a new document
// invalidates the previous handle, so a playback widget holding a stale
// track URL gets a miss instead of stale cues.
type TrackStore struct {
	mu     sync.Mutex
	handle string
	doc    []byte
}

func NewTrackStore() *TrackStore {
	return &TrackStore{}
}

// Install builds the document for the given segments and replaces the
// current one, returning the new handle. An empty segment list releases
// the track and returns "".
func (ts *TrackStore) Install(segments []transcript.Segment) string {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if len(segments) == 0 {
		ts.handle = ""
		ts.doc = nil
		return ""
	}

	ts.handle = uuid.New().String()
	ts.doc = []byte(BuildVTT(segments))
	return ts.handle
}

// Resolve returns the document for the given handle, or ok=false if the
// handle has been invalidated by a later Install or Release.
func (ts *TrackStore) Resolve(handle string) ([]byte, bool) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if handle == "" || handle != ts.handle {
		return nil, false
	}
	return ts.doc, true
}

// Handle returns the current handle, or "" when no track is installed.
func (ts *TrackStore) Handle() string {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.handle
}

// Release drops the current document and invalidates its handle.
func (ts *TrackStore) Release() {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.handle = ""
	ts.doc = nil
}
