package transcript

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStoreReplaceCopies(t *testing.T) {
	s := NewStore()
	src := Transcript{{Start: 0, End: 1, Text: "a"}}
	s.Replace(src)

	src[0].Text = "mutated"
	got := s.Segments()
	assert.Equal(t, "a", got[0].Text, "store must own its copy")

	got[0].Text = "mutated again"
	assert.Equal(t, "a", s.Segments()[0].Text, "reads must return copies")
}

func TestStoreEditText(t *testing.T) {
	s := NewStore()
	s.Replace(Transcript{
		{Start: 0, End: 2, Text: "Hello"},
		{Start: 2, End: 5, Text: "World"},
	})

	err := s.EditText(1, "Monde")
	assert.NoError(t, err)

	got := s.Segments()
	assert.Equal(t, "Monde", got[1].Text)
	assert.Equal(t, 2.0, got[1].Start, "timing must not change")
	assert.Equal(t, 5.0, got[1].End)
	assert.Equal(t, "Hello", got[0].Text)
}

func TestStoreEditTextOutOfRange(t *testing.T) {
	s := NewStore()
	s.Replace(Transcript{{Start: 0, End: 1, Text: "a"}})

	before := s.Segments()
	assert.ErrorIs(t, s.EditText(1, "x"), ErrSegmentOutOfRange)
	assert.ErrorIs(t, s.EditText(-1, "x"), ErrSegmentOutOfRange)
	assert.Equal(t, before, s.Segments(), "failed edit must leave the transcript unchanged")
}

func TestStoreLocate(t *testing.T) {
	s := NewStore()
	s.Replace(Transcript{{Start: 0, End: 2, Text: "Hello"}})

	idx, seg, ok := s.Locate(1)
	assert.True(t, ok)
	assert.Equal(t, 0, idx)
	assert.Equal(t, "Hello", seg.Text)

	_, _, ok = s.Locate(3)
	assert.False(t, ok)

	s.Clear()
	assert.Equal(t, 0, s.Len())
	_, _, ok = s.Locate(1)
	assert.False(t, ok)
}

func TestNormalizeSorts(t *testing.T) {
	got := Normalize([]Segment{
		{Start: 4, End: 5, Text: "c"},
		{Start: 0, End: 1, Text: "a"},
		{Start: 2, End: 3, Text: "b"},
	})
	assert.Equal(t, Transcript{
		{Start: 0, End: 1, Text: "a"},
		{Start: 2, End: 3, Text: "b"},
		{Start: 4, End: 5, Text: "c"},
	}, got)
}
