package controllerengine

import (
	"math"
	"strings"
	"time"

	"github.com/faanross/meshc2/internal/spec"
	"github.com/faanross/meshc2/internal/wire"
)

// state is the controller's per-command bookkeeping, per spec.md §4.7.
// It is a plain value updated by pure transitions (applyFrame, retry) so
// the state machine can be exercised without a real transport or clock.
type state struct {
	lastCmdID   string
	activeCmdID string

	raw       []string
	outputs   []string
	outputSet map[string]bool

	outputSeen   bool
	ackSeen      bool
	doneSeen     bool
	awaitChunk   bool
	nextIndex    int
	moreAttempts int
	lastMoreAt   float64
	retryDelay   float64
}

func newState(moreDelay time.Duration) *state {
	d := moreDelay.Seconds()
	if d < 1.0 {
		d = 1.0
	}
	return &state{
		outputSet:  make(map[string]bool),
		retryDelay: d,
	}
}

// applyFrame folds one inbound text frame into s, mirroring the "on
// frame" branch of the controller state machine. Frames beginning with
// "more " are our own paging requests echoed back by the radio and carry
// no state.
func (s *state) applyFrame(raw string) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || strings.HasPrefix(trimmed, spec.MarkerMore) {
		return
	}
	s.raw = append(s.raw, raw)

	frame := wire.Parse(raw)
	if frame.Kind != wire.KindReply {
		return
	}
	r := frame.Reply

	if r.IsAck && s.activeCmdID == "" {
		s.ackSeen = true
		s.activeCmdID = r.ID
		s.lastCmdID = r.ID
	}

	// Once a command id is latched, frames tagged with a different id
	// are recorded above (raw) but otherwise ignored for state updates.
	if s.activeCmdID != "" && r.ID != "" && r.ID != s.activeCmdID {
		return
	}

	if r.HasChunk {
		s.outputSeen = true
		s.awaitChunk = false
		if r.ChunkIndex == s.nextIndex {
			s.nextIndex++
		}
		s.appendOutput(wire.Body(r))
	} else if !r.IsAck {
		if body := wire.Body(r); body != "" {
			s.outputSeen = true
			s.awaitChunk = false
			s.appendOutput(body)
		}
	}

	if r.IsDone {
		s.doneSeen = true
	}
}

func (s *state) appendOutput(body string) {
	if body == "" || s.outputSet[body] {
		return
	}
	s.outputSet[body] = true
	s.outputs = append(s.outputs, body)
}

// shouldRetry reports whether the controller should re-page the next
// expected chunk index, per the timeout branch of §4.7.
func (s *state) shouldRetry(now float64) bool {
	return s.lastCmdID != "" &&
		!s.doneSeen &&
		s.moreAttempts < spec.MaxMoreAttempts &&
		now-s.lastMoreAt >= s.retryDelay &&
		(s.outputSeen || s.ackSeen) &&
		!s.awaitChunk
}

// beginRetry records a paging attempt and advances the exponential
// backoff, returning the paging frame to send.
func (s *state) beginRetry(now float64) string {
	s.awaitChunk = true
	s.moreAttempts++
	s.lastMoreAt = now
	s.retryDelay = math.Min(s.retryDelay*spec.RetryBackoffFactor, spec.MaxRetryDelay.Seconds())
	return wire.EncodePaging(s.lastCmdID, s.nextIndex)
}

// output joins the de-duplicated fragments in arrival order; because
// each fragment is an exact slice of the original blob, plain
// concatenation reconstructs it.
func (s *state) output() string {
	return strings.Join(s.outputs, "")
}
