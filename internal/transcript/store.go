package transcript

import (
	"errors"
	"sync"
)

// ErrSegmentOutOfRange is returned when an edit targets an index outside
// the active transcript.
var ErrSegmentOutOfRange = errors.New("segment index out of range")

// Store holds the active transcript. Reads return copies so the playback
// polling loop and serializers never observe a partially applied edit.
type Store struct {
	mu       sync.RWMutex
	segments Transcript
}

func NewStore() *Store {
	return &Store{}
}

// Replace swaps the active transcript wholesale.
func (s *Store) Replace(t Transcript) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.segments = t.Clone()
}

// EditText replaces only the text of the segment at index, leaving its
// timing untouched.
func (s *Store) EditText(index int, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.segments) {
		return ErrSegmentOutOfRange
	}
	s.segments[index].Text = text
	return nil
}

// Segments returns an independent copy of the active transcript.
func (s *Store) Segments() Transcript {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.segments.Clone()
}

// Locate runs the interval search against the live slice without copying,
// so the per-frame polling path stays allocation-free.
func (s *Store) Locate(position float64) (int, Segment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := Locate(s.segments, position)
	if !ok {
		return 0, Segment{}, false
	}
	return idx, s.segments[idx], true
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.segments)
}

// Clear drops the active transcript.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.segments = nil
}
