package wire

import (
	"strings"

	"github.com/faanross/meshc2/internal/spec"
)

// Body extracts a Reply's content lines, stripping the recognized header
// lines (the CHUNK: marker, and the Output: marker present only on the
// first chunk) and a trailing Done sentinel line. For a frame without the
// sentinel the result is exactly the slice of the original blob this frame
// carried; for the final chunk it is that slice minus its trailing "\nDone".
func Body(r Reply) string {
	lines := r.Lines
	i := 0
	if i < len(lines) && strings.HasPrefix(lines[i], spec.MarkerChunk) {
		i++
	}
	if i < len(lines) && lines[i] == spec.MarkerOutput {
		i++
	}

	body := lines[i:]
	if n := len(body); n > 0 && strings.TrimRight(body[n-1], " \t") == spec.MarkerDone {
		body = body[:n-1]
	}
	return strings.Join(body, "\n")
}
