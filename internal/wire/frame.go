// Package wire implements the text-line framing shared by the agent and
// controller engines: building ack/chunk/no-more/overflow frames and
// classifying inbound text into the frame kinds spec.md §4.1 describes.
// Classification is purely lexical — there is no JSON, no binary header.
package wire

import (
	"strconv"
	"strings"

	"github.com/faanross/meshc2/internal/spec"
)

// Kind is the lexical classification of an inbound frame.
type Kind int

const (
	KindEmpty Kind = iota
	KindPaging
	KindEcho
	KindReply
	KindCommand
)

func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindPaging:
		return "paging"
	case KindEcho:
		return "echo"
	case KindReply:
		return "reply"
	case KindCommand:
		return "command"
	default:
		return "unknown"
	}
}

// PagingRequest is a parsed `more <id> <i>` (or `more <id>`) request.
type PagingRequest struct {
	ID    string
	Index int
}

// Reply is a parsed `MSG-ID:` frame: an ack, a chunk, a no-more, or an
// overflow notice all share this shape, distinguished by the flags below.
type Reply struct {
	ID string

	HasChunk   bool
	ChunkIndex int
	ChunkTotal int

	IsAck         bool
	IsOutputStart bool
	IsDone        bool
	IsOverflow    bool

	// Lines holds every line after the MSG-ID: line verbatim, so callers
	// can recover the body (chunk payload, ack command text, ...).
	Lines []string
}

// Frame is the result of classifying one inbound text payload.
type Frame struct {
	Kind    Kind
	Raw     string
	Paging  PagingRequest
	Reply   Reply
	Command string
}

// Parse classifies a raw inbound text frame per spec.md §4.1. Order of the
// checks matters: a "more " prefix is checked before "MSG-ID:", and our own
// emitted prefixes ("Output:", "Cmd received:") are recognized and ignored
// before falling through to "anything else is a command".
//
// Only control frames (paging, commands) are whitespace-trimmed — a
// reply frame's body is a verbatim slice of the original output blob,
// and trimming it would silently corrupt a chunk that happens to end in
// whitespace.
func Parse(raw string) Frame {
	if strings.TrimSpace(raw) == "" {
		return Frame{Kind: KindEmpty, Raw: raw}
	}

	if strings.HasPrefix(raw, spec.MarkerMore) {
		return Frame{Kind: KindPaging, Raw: raw, Paging: parsePaging(strings.TrimSpace(raw))}
	}

	if strings.HasPrefix(raw, spec.MarkerMsgID) {
		return Frame{Kind: KindReply, Raw: raw, Reply: parseReply(raw)}
	}

	if strings.HasPrefix(raw, spec.MarkerOutput) || strings.HasPrefix(raw, spec.MarkerCmdReceived) {
		return Frame{Kind: KindEcho, Raw: raw}
	}

	return Frame{Kind: KindCommand, Raw: raw, Command: strings.TrimSpace(raw)}
}

func parsePaging(trimmed string) PagingRequest {
	// "more <id>" or "more <id> <i>"; malformed or missing index defaults
	// to 0, per spec.md §3.
	fields := strings.Fields(trimmed)
	req := PagingRequest{Index: 0}
	if len(fields) >= 2 {
		req.ID = fields[1]
	}
	if len(fields) >= 3 {
		if idx, err := strconv.Atoi(fields[2]); err == nil {
			req.Index = idx
		}
	}
	return req
}

func parseReply(raw string) Reply {
	lines := strings.Split(raw, "\n")

	r := Reply{
		ID:    strings.TrimPrefix(lines[0], spec.MarkerMsgID),
		Lines: lines[1:],
	}

	if len(lines) == 1 {
		return r
	}

	for _, line := range r.Lines {
		switch {
		case strings.HasPrefix(line, spec.MarkerChunk):
			idx, total, ok := parseChunkMarker(line)
			if ok {
				r.HasChunk = true
				r.ChunkIndex = idx
				r.ChunkTotal = total
			}
		case line == spec.MarkerOutput:
			// exact "Output:" line marks the first chunk.
			r.IsOutputStart = true
		case strings.HasPrefix(line, spec.MarkerCmdReceived):
			r.IsAck = true
		case line == spec.MarkerOverflow:
			r.IsOverflow = true
		}
	}

	if last := strings.TrimRight(r.Lines[len(r.Lines)-1], " \t"); last == spec.MarkerDone {
		r.IsDone = true
	}

	return r
}

// parseChunkMarker parses a "CHUNK:i/n" line. A malformed marker is
// reported as not-ok so the caller can keep the frame as plain output
// without an index, per spec.md §4.1 rule 3.
func parseChunkMarker(line string) (index, total int, ok bool) {
	rest := strings.TrimPrefix(line, spec.MarkerChunk)
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	i, err1 := strconv.Atoi(parts[0])
	n, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return i, n, true
}
