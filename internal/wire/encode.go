package wire

import (
	"fmt"

	"github.com/faanross/meshc2/internal/spec"
)

// EncodeAck builds the agent's first reply to a command frame. No
// trailing newline, per spec.md §4.1.
func EncodeAck(id, host, command string) string {
	return spec.MarkerMsgID + id + "\n" + spec.MarkerHost + host + "\n" + spec.MarkerCmdReceived + " " + command
}

// FirstChunkHeader is the header template for chunk index 0: it carries
// a CHUNK:0/n line followed by the "Output:" marker. chunker uses it to
// size the first chunk's available body room.
func FirstChunkHeader(id string, total int) string {
	return fmt.Sprintf("%s%s\n%s0/%d\n%s\n", spec.MarkerMsgID, id, spec.MarkerChunk, total, spec.MarkerOutput)
}

// ChunkHeader is the header template for chunk index i>0.
func ChunkHeader(id string, index, total int) string {
	return fmt.Sprintf("%s%s\n%s%d/%d\n", spec.MarkerMsgID, id, spec.MarkerChunk, index, total)
}

// EncodeOverflow builds the frame sent when MAX_PAYLOAD is too small to
// fit even one header.
func EncodeOverflow(id string) string {
	return spec.MarkerMsgID + id + "\n" + spec.MarkerOverflow
}

// EncodeNoMore builds the frame sent when paging is requested past the
// end of a command's stored chunks (or for an unknown id).
func EncodeNoMore(id string) string {
	return spec.MarkerMsgID + id + "\n" + spec.MarkerDone
}

// EncodeNoOutput builds the single-frame reply for a command that
// produced an empty formatted blob (the chunker's zero-chunk edge case).
func EncodeNoOutput(id, timingLine string) string {
	return spec.MarkerMsgID + id + "\n" + spec.MarkerOutput + "\n" + spec.MarkerNoOutput + "\n" + timingLine
}

// EncodePaging builds a controller-side paging request for chunk index i
// of command id.
func EncodePaging(id string, index int) string {
	return fmt.Sprintf("%s%s %d", spec.MarkerMore, id, index)
}
