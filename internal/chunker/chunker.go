// Package chunker splits a formatted command-output blob into an ordered
// list of wire-ready chunk frames, each no larger than MAX_PAYLOAD bytes.
//
// The sizing problem is circular: a chunk's header embeds the total chunk
// count n, but n itself depends on how much room the header leaves for
// body bytes. We solve it by fixed-point iteration — guess n, lay the
// blob out at that n, and if the result needed more chunks than guessed,
// retry at the larger n. Header length is non-decreasing in n (more
// chunks just means more digits), so each pass needs at least as many
// chunks as the last, and the loop converges in a handful of passes.
package chunker

import (
	"github.com/faanross/meshc2/internal/wire"
)

// Chunker lays out formatted output blobs into size-bounded wire frames
// for a fixed MAX_PAYLOAD.
type Chunker struct {
	maxPayload int
	stats      Stats
}

// Stats tracks lightweight chunking activity, mirroring the kind of
// counters an operator would want to see in a status line.
type Stats struct {
	BlobsChunked int
	TotalChunks  int
	TotalBytes   int
}

// New creates a Chunker bounded to maxPayload bytes per frame.
func New(maxPayload int) *Chunker {
	return &Chunker{maxPayload: maxPayload}
}

// Chunk splits blob into ordered, wire-ready chunk frames for command id.
// overflow=true means MAX_PAYLOAD was too small to fit even one header;
// frames then holds the single Overflow notice, and the caller must not
// store it for paging.
//
// For a non-empty blob, Chunk always returns at least one frame, and the
// concatenation of bodies (headers stripped) in index order always
// reconstructs blob exactly — callers rely on both properties.
func (c *Chunker) Chunk(id, blob string) (frames []string, overflow bool) {
	if blob == "" {
		return nil, false
	}

	n := 1
	for {
		frames, ok := c.layout(id, blob, n)
		if !ok {
			c.stats.BlobsChunked++
			return []string{wire.EncodeOverflow(id)}, true
		}
		if len(frames) == n {
			c.stats.BlobsChunked++
			c.stats.TotalChunks += len(frames)
			c.stats.TotalBytes += len(blob)
			return frames, false
		}
		n = len(frames)
	}
}

// layout performs a single pass: lay blob out assuming a declared total of
// n chunks, returning ok=false if even chunk 0's header doesn't fit.
func (c *Chunker) layout(id, blob string, n int) (frames []string, ok bool) {
	remaining := blob
	for i := 0; len(remaining) > 0; i++ {
		header := chunkHeader(id, i, n)
		available := c.maxPayload - len(header)
		if available <= 0 {
			return nil, false
		}

		take := available
		if take > len(remaining) {
			take = len(remaining)
		}

		frames = append(frames, header+remaining[:take])
		remaining = remaining[take:]
	}
	return frames, true
}

func chunkHeader(id string, index, total int) string {
	if index == 0 {
		return wire.FirstChunkHeader(id, total)
	}
	return wire.ChunkHeader(id, index, total)
}

// GetStats returns a snapshot of chunking activity.
func (c *Chunker) GetStats() Stats {
	return c.stats
}
