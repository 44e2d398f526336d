package subtitle

import (
	"fmt"
	"strings"

	"github.com/caption-sync/backend/internal/transcript"
)

// BuildVTT serializes segments into a WebVTT document: header, then per
// segment a 1-based cue index, the time range, the line text, and a blank
// separator. Identical input produces byte-identical output.
func BuildVTT(segments []transcript.Segment) string {
	var sb strings.Builder
	sb.WriteString("WEBVTT\n\n")

	for i, seg := range segments {
		sb.WriteString(fmt.Sprintf("%d\n", i+1))
		sb.WriteString(fmt.Sprintf("%s --> %s\n", FormatTimestamp(seg.Start), FormatTimestamp(seg.End)))
		sb.WriteString(seg.Text)
		sb.WriteString("\n\n")
	}

	return sb.String()
}

// FormatTimestamp renders seconds as HH:MM:SS.mmm with zero padding, so
// serialized times sort lexicographically in start-time order.
func FormatTimestamp(seconds float64) string {
	totalMs := int(seconds * 1000)
	h := totalMs / 3600000
	totalMs %= 3600000
	m := totalMs / 60000
	totalMs %= 60000
	s := totalMs / 1000
	ms := totalMs % 1000
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
}
