package transcript

import "sort"

// Segment is a single time-coded transcript line.
type Segment struct {
	Start float64 `json:"start"` // seconds
	End   float64 `json:"end"`   // seconds
	Text  string  `json:"text"`
}

// Transcript is the ordered sequence of segments for one language,
// sorted by start time ascending. Lookup assumes segments do not overlap.
type Transcript []Segment

// Clone returns an independent copy. Edits to the copy never reach the
// original, which is what keeps per-language cache entries isolated.
func (t Transcript) Clone() Transcript {
	if t == nil {
		return nil
	}
	c := make(Transcript, len(t))
	copy(c, t)
	return c
}

// Normalize copies the segments and sorts them by start time. Caption
// services are supposed to return sorted segments, but nothing enforces
// that on the wire, so every ingestion path goes through here.
func Normalize(segments []Segment) Transcript {
	t := Transcript(segments).Clone()
	sort.SliceStable(t, func(i, j int) bool {
		return t[i].Start < t[j].Start
	})
	return t
}
