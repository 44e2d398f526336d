package transcript

// Locate finds the segment whose [start, end] interval contains position,
// inclusive on both ends. Returns the segment index, or ok=false when the
// position falls in a gap between lines. Runs a binary search over the
// sorted sequence; when a position sits exactly on a shared boundary the
// interval probed first by the search wins.
func Locate(segments []Segment, position float64) (int, bool) {
	lo, hi := 0, len(segments)-1
	for lo <= hi {
		mid := (lo + hi) / 2
		seg := segments[mid]
		switch {
		case position < seg.Start:
			hi = mid - 1
		case position > seg.End:
			lo = mid + 1
		default:
			return mid, true
		}
	}
	return 0, false
}

const (
	// nothing reported since the last reset
	trackerUnset = -1
	// a "cleared" notification has already been emitted for the current gap
	trackerCleared = -2
)

// Update is a change notification from a Tracker: either a newly entered
// segment, or Cleared when playback left all segments.
type Update struct {
	Index   int
	Segment Segment
	Cleared bool
}

// Tracker suppresses redundant notifications while playback stays inside
// one segment. Repeated observations of the same segment produce nothing;
// landing in a gap produces exactly one Cleared update.
type Tracker struct {
	last int
}

func NewTracker() *Tracker {
	return &Tracker{last: trackerUnset}
}

// Observe records the result of a Locate call and reports whether the
// caller should be notified.
func (tr *Tracker) Observe(index int, seg Segment, found bool) (Update, bool) {
	if !found {
		if tr.last == trackerCleared {
			return Update{}, false
		}
		tr.last = trackerCleared
		return Update{Index: -1, Cleared: true}, true
	}
	if index == tr.last {
		return Update{}, false
	}
	tr.last = index
	return Update{Index: index, Segment: seg}, true
}

// Reset forgets the last reported segment. Called after transcript
// replacement or edits so the next tick re-reports the active line.
func (tr *Tracker) Reset() {
	tr.last = trackerUnset
}
