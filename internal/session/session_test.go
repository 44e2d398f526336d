package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caption-sync/backend/internal/transcript"
)

type fakeTranslator struct {
	mu      sync.Mutex
	calls   int
	results map[string]transcript.Transcript
	err     error
	release chan struct{} // when set, Translate blocks until closed
}

func (f *fakeTranslator) Translate(ctx context.Context, filename, language string) (transcript.Transcript, error) {
	f.mu.Lock()
	f.calls++
	release := f.release
	f.mu.Unlock()

	if release != nil {
		<-release
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.results[language].Clone(), nil
}

func (f *fakeTranslator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func english() transcript.Transcript {
	return transcript.Transcript{
		{Start: 0, End: 2, Text: "Hello"},
		{Start: 2, End: 5, Text: "World"},
	}
}

func newTestSession(ft *fakeTranslator) *Session {
	return New("test-session", "stored.mp4", "local.mp4", "en", english(), ft)
}

func TestSwitchToSameLanguageIsNoop(t *testing.T) {
	ft := &fakeTranslator{}
	s := newTestSession(ft)

	out, err := s.SwitchTo(context.Background(), "en")
	require.NoError(t, err)
	assert.Equal(t, "en", out.Active)
	assert.Equal(t, 0, ft.callCount())
}

func TestSwitchToCachedLanguageIsSynchronous(t *testing.T) {
	ft := &fakeTranslator{results: map[string]transcript.Transcript{
		"ta": {{Start: 0, End: 2, Text: "வணக்கம்"}},
	}}
	s := newTestSession(ft)

	_, err := s.SwitchTo(context.Background(), "ta")
	require.NoError(t, err)
	require.Equal(t, 1, ft.callCount())

	_, err = s.SwitchTo(context.Background(), "en")
	require.NoError(t, err)

	out, err := s.SwitchTo(context.Background(), "ta")
	require.NoError(t, err)
	assert.True(t, out.FromCache)
	assert.Equal(t, 1, out.Segments)
	assert.Equal(t, 1, ft.callCount(), "cache hit must issue no remote call")
	assert.Equal(t, "வணக்கம்", s.Transcript()[0].Text)
}

func TestSwitchToUncachedFetchesOnce(t *testing.T) {
	ft := &fakeTranslator{results: map[string]transcript.Transcript{
		"fr": {{Start: 0, End: 2, Text: "Bonjour"}, {Start: 2, End: 5, Text: "Monde"}},
	}}
	s := newTestSession(ft)

	out, err := s.SwitchTo(context.Background(), "fr")
	require.NoError(t, err)
	assert.True(t, out.Fetched)
	assert.Equal(t, "en", out.Previous)
	assert.Equal(t, "fr", out.Active)
	assert.Equal(t, 1, ft.callCount())
	assert.Equal(t, "fr", s.ActiveLanguage())
	assert.Equal(t, "Bonjour", s.Transcript()[0].Text)
}

func TestSwitchFailureRollsBack(t *testing.T) {
	ft := &fakeTranslator{err: errors.New("backend down")}
	s := newTestSession(ft)
	before := s.Transcript()

	out, err := s.SwitchTo(context.Background(), "fr")
	require.Error(t, err)
	assert.Equal(t, "en", out.Previous)
	assert.Equal(t, "en", out.Active)
	assert.Equal(t, "en", s.ActiveLanguage())
	assert.Equal(t, before, s.Transcript(), "active transcript must be untouched")
	assert.False(t, s.Cached("fr"), "failed fetch must not write a cache entry")

	// a later explicit retry re-issues the fetch
	ft.err = nil
	ft.results = map[string]transcript.Transcript{"fr": {{Start: 0, End: 2, Text: "Bonjour"}}}
	_, err = s.SwitchTo(context.Background(), "fr")
	require.NoError(t, err)
	assert.Equal(t, 2, ft.callCount())
}

func TestSwitchInFlightGate(t *testing.T) {
	release := make(chan struct{})
	ft := &fakeTranslator{
		results: map[string]transcript.Transcript{
			"ta": {{Start: 0, End: 1, Text: "வணக்கம்"}},
			"fr": {{Start: 0, End: 1, Text: "Bonjour"}},
		},
	}
	s := newTestSession(ft)

	// cache "ta", then return to "en" so a cached target exists
	_, err := s.SwitchTo(context.Background(), "ta")
	require.NoError(t, err)
	_, err = s.SwitchTo(context.Background(), "en")
	require.NoError(t, err)

	ft.mu.Lock()
	ft.release = release
	ft.mu.Unlock()

	firstDone := make(chan error, 1)
	go func() {
		_, err := s.SwitchTo(context.Background(), "fr")
		firstDone <- err
	}()

	// wait until the fetch is actually outstanding
	require.Eventually(t, func() bool { return ft.callCount() == 2 }, time.Second, time.Millisecond)

	_, err = s.SwitchTo(context.Background(), "de")
	assert.ErrorIs(t, err, ErrSwitchInFlight)

	_, err = s.SwitchTo(context.Background(), "ta")
	assert.ErrorIs(t, err, ErrSwitchInFlight, "cached switch must be gated too")
	assert.Equal(t, "en", s.ActiveLanguage(), "gated switch must not activate")

	_, err = s.SwitchTo(context.Background(), "en")
	assert.ErrorIs(t, err, ErrSwitchInFlight, "same-language request must be gated too")

	assert.Equal(t, 2, ft.callCount(), "gated switches must not reach the network")

	close(release)
	require.NoError(t, <-firstDone)
	assert.Equal(t, "fr", s.ActiveLanguage(), "resolved fetch wins, nothing switched in between")
}

func TestResetDuringFetchDropsLateResult(t *testing.T) {
	release := make(chan struct{})
	ft := &fakeTranslator{
		release: release,
		results: map[string]transcript.Transcript{"fr": {{Start: 0, End: 1, Text: "Bonjour"}}},
	}
	s := newTestSession(ft)

	done := make(chan error, 1)
	go func() {
		_, err := s.SwitchTo(context.Background(), "fr")
		done <- err
	}()
	require.Eventually(t, func() bool { return ft.callCount() == 1 }, time.Second, time.Millisecond)

	s.Reset()
	close(release)

	assert.ErrorIs(t, <-done, ErrNoTranscript)
	assert.Empty(t, s.ActiveLanguage(), "late fetch must not re-activate a reset session")
	assert.Empty(t, s.Languages())
	assert.False(t, s.Cached("fr"), "late fetch must not write a cache entry")
	assert.Empty(t, s.Transcript())
	assert.Empty(t, s.TrackHandle())
}

func TestEditAppliesOnlyToActiveLanguage(t *testing.T) {
	ft := &fakeTranslator{results: map[string]transcript.Transcript{
		"ta": {{Start: 0, End: 2, Text: "வணக்கம்"}, {Start: 2, End: 5, Text: "உலகம்"}},
	}}
	s := newTestSession(ft)

	_, err := s.SwitchTo(context.Background(), "ta")
	require.NoError(t, err)

	require.NoError(t, s.EditSegment(0, "edited tamil"))

	en, ok := s.CachedTranscript("en")
	require.True(t, ok)
	assert.Equal(t, "Hello", en[0].Text, "original-language cache must be unchanged")

	ta, ok := s.CachedTranscript("ta")
	require.True(t, ok)
	assert.Equal(t, "edited tamil", ta[0].Text)
}

func TestEditSurvivesSwitchRoundTrip(t *testing.T) {
	ft := &fakeTranslator{results: map[string]transcript.Transcript{
		"ta": {{Start: 0, End: 2, Text: "வணக்கம்"}},
	}}
	s := newTestSession(ft)

	require.NoError(t, s.EditSegment(0, "Hello, edited"))

	_, err := s.SwitchTo(context.Background(), "ta")
	require.NoError(t, err)
	_, err = s.SwitchTo(context.Background(), "en")
	require.NoError(t, err)

	assert.Equal(t, "Hello, edited", s.Transcript()[0].Text)
}

func TestEditOutOfRange(t *testing.T) {
	s := newTestSession(&fakeTranslator{})
	before := s.Transcript()
	assert.ErrorIs(t, s.EditSegment(5, "x"), transcript.ErrSegmentOutOfRange)
	assert.Equal(t, before, s.Transcript())
}

func TestTrackLifecycleOnSwitchAndEdit(t *testing.T) {
	ft := &fakeTranslator{results: map[string]transcript.Transcript{
		"fr": {{Start: 0, End: 1, Text: "Bonjour"}},
	}}
	s := newTestSession(ft)

	first := s.TrackHandle()
	require.NotEmpty(t, first)

	_, err := s.SwitchTo(context.Background(), "fr")
	require.NoError(t, err)

	second := s.TrackHandle()
	assert.NotEqual(t, first, second)
	_, ok := s.ResolveTrack(first)
	assert.False(t, ok, "prior track handle must be invalidated")

	doc, ok := s.ResolveTrack(second)
	require.True(t, ok)
	assert.Contains(t, string(doc), "Bonjour")

	require.NoError(t, s.EditSegment(0, "Salut"))
	third := s.TrackHandle()
	assert.NotEqual(t, second, third)
	doc, ok = s.ResolveTrack(third)
	require.True(t, ok)
	assert.Contains(t, string(doc), "Salut")
}

func TestReset(t *testing.T) {
	s := newTestSession(&fakeTranslator{})
	handle := s.TrackHandle()

	s.Reset()

	assert.Empty(t, s.Languages())
	assert.Empty(t, s.ActiveLanguage())
	assert.Empty(t, s.Transcript())
	assert.Empty(t, s.TrackHandle())
	_, ok := s.ResolveTrack(handle)
	assert.False(t, ok)

	assert.ErrorIs(t, s.EditSegment(0, "x"), ErrNoTranscript)
}

func TestTickNotifications(t *testing.T) {
	s := newTestSession(&fakeTranslator{})

	u, changed := s.Tick(0.5)
	require.True(t, changed)
	assert.Equal(t, "Hello", u.Segment.Text)

	_, changed = s.Tick(1.0)
	assert.False(t, changed)

	u, changed = s.Tick(6)
	require.True(t, changed)
	assert.True(t, u.Cleared)

	_, changed = s.Tick(7)
	assert.False(t, changed)
}

func TestStartSyncPollsClock(t *testing.T) {
	s := newTestSession(&fakeTranslator{})

	var mu sync.Mutex
	pos := 0.5
	updates := make(chan transcript.Update, 16)

	s.StartSync(func() float64 {
		mu.Lock()
		defer mu.Unlock()
		return pos
	}, time.Millisecond, func(u transcript.Update) {
		updates <- u
	})
	defer s.StopSync()

	select {
	case u := <-updates:
		assert.Equal(t, "Hello", u.Segment.Text)
	case <-time.After(time.Second):
		t.Fatal("no sync notification")
	}

	mu.Lock()
	pos = 3.0
	mu.Unlock()

	select {
	case u := <-updates:
		assert.Equal(t, "World", u.Segment.Text)
	case <-time.After(time.Second):
		t.Fatal("no notification after seeking")
	}
}

func TestNewNormalizesSegments(t *testing.T) {
	s := New("id", "stored.mp4", "local.mp4", "", []transcript.Segment{
		{Start: 2, End: 5, Text: "World"},
		{Start: 0, End: 2, Text: "Hello"},
	}, &fakeTranslator{})

	assert.Equal(t, DefaultOriginalLanguage, s.ActiveLanguage())
	assert.Equal(t, "Hello", s.Transcript()[0].Text)
}

func TestManager(t *testing.T) {
	m := NewManager(&fakeTranslator{})
	s := m.Create("stored.mp4", "local.mp4", "en", english())
	require.NotEmpty(t, s.ID)

	got, ok := m.Get(s.ID)
	require.True(t, ok)
	assert.Same(t, s, got)
	assert.Equal(t, 1, m.Len())

	handle := s.TrackHandle()
	assert.True(t, m.Remove(s.ID))
	_, ok = m.Get(s.ID)
	assert.False(t, ok)
	_, ok = s.ResolveTrack(handle)
	assert.False(t, ok, "removal must release the track")

	assert.False(t, m.Remove("missing"))
}
