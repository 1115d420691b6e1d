// Package agentengine is the agent side of the bridge: it classifies
// inbound frames, serializes command execution behind a single mutex,
// and serves chunked output back to the controller on request.
package agentengine

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/xid"
	"github.com/sirupsen/logrus"

	"github.com/faanross/meshc2/internal/chunker"
	"github.com/faanross/meshc2/internal/clock"
	"github.com/faanross/meshc2/internal/metrics"
	"github.com/faanross/meshc2/internal/session"
	"github.com/faanross/meshc2/internal/shellexec"
	"github.com/faanross/meshc2/internal/spec"
	"github.com/faanross/meshc2/internal/store"
	"github.com/faanross/meshc2/internal/transport"
	"github.com/faanross/meshc2/internal/wire"
)

// Config holds the agent's deployment parameters (§6).
type Config struct {
	Host         string
	ChannelIndex int
	Timeout      time.Duration
	MaxPayload   int
}

// Engine wires the command lock, session table, output store, chunker,
// and transport together per the state machine in §4.6.
type Engine struct {
	cfg Config

	tr       transport.Transport
	store    *store.Store
	sessions *session.Table
	chunk    *chunker.Chunker
	clk      clock.Clock
	metrics  *metrics.Agent
	log      *logrus.Entry

	cmdMu sync.Mutex
}

// New builds an Engine. m and log may be nil; a nil log falls back to
// logrus's standard logger.
func New(cfg Config, tr transport.Transport, st *store.Store, sessions *session.Table, clk clock.Clock, m *metrics.Agent, log *logrus.Logger) *Engine {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Engine{
		cfg:      cfg,
		tr:       tr,
		store:    st,
		sessions: sessions,
		chunk:    chunker.New(cfg.MaxPayload),
		clk:      clk,
		metrics:  m,
		log:      log.WithField("component", "agent"),
	}
}

// Run processes inbound frames until ctx is canceled or the transport's
// channel closes.
func (e *Engine) Run(ctx context.Context) error {
	inbound := e.tr.Subscribe()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case in, ok := <-inbound:
			if !ok {
				return nil
			}
			e.dispatch(ctx, in)
		}
	}
}

// dispatch classifies one inbound frame and either handles it inline
// (paging is cheap and must stay ordered) or spawns a worker to execute
// a command frame without blocking the read loop.
func (e *Engine) dispatch(ctx context.Context, in transport.Inbound) {
	frame := wire.Parse(in.Text)
	switch frame.Kind {
	case wire.KindPaging:
		e.handlePaging(in.FromID, frame.Paging)
	case wire.KindCommand:
		go e.handleCommand(ctx, in.FromID, frame.Command, e.clk.Now())
	default:
		// empty, echo, or reply frames need no agent-side action.
	}
}

func (e *Engine) handlePaging(dest string, p wire.PagingRequest) {
	if e.metrics != nil {
		e.metrics.PagingRequests.Inc()
	}

	chunkBody, total, ok := e.store.Get(p.ID, p.Index)
	if ok {
		e.send(chunkBody, dest)
		if e.metrics != nil {
			e.metrics.ChunksServed.Inc()
		}
		if p.Index >= total-1 {
			e.store.Finalize(p.ID)
		}
		return
	}

	e.send(wire.EncodeNoMore(p.ID), dest)
	if total == 0 || p.Index >= maxInt(total-1, 0) {
		e.store.Finalize(p.ID)
	}
}

// handleCommand runs one command frame to completion: session handling
// or shell execution, formatting, chunking, and the ack/store dance for
// multi-chunk replies. receivedAt is the clock reading at frame arrival,
// used for the total-elapsed timing figure.
func (e *Engine) handleCommand(ctx context.Context, sender, command string, receivedAt float64) {
	e.cmdMu.Lock()
	defer e.cmdMu.Unlock()

	id := strconv.FormatInt(time.Now().UnixMilli(), 10)
	trace := xid.New().String()
	log := e.log.WithFields(logrus.Fields{"cmd_id": id, "trace": trace, "sender": sender})
	log.Info("command received")

	execStart := e.clk.Now()
	result, local := e.runCommand(ctx, sender, command)
	execDone := e.clk.Now()

	if !local && e.metrics != nil {
		e.metrics.CommandsExecuted.Inc()
		if strings.Contains(result.Stderr, "timed out after") {
			e.metrics.CommandTimeouts.Inc()
		}
	}

	blob := shellexec.FormatBlob(result.Stdout, result.Stderr, execDone-receivedAt, execDone-execStart)
	log.WithField("exit", result.ExitCode).Info("command complete")

	frames, overflow := e.chunk.Chunk(id, blob)
	switch {
	case len(frames) == 0:
		// Defensive: the chunker never returns zero frames for a
		// non-empty blob, and FormatBlob never returns "".
		e.send(wire.EncodeNoOutput(id, "Timing: total=0.000s exec=0.000s"), sender)

	case overflow:
		if e.metrics != nil {
			e.metrics.Overflows.Inc()
		}
		e.send(frames[0], sender)

	case len(frames) == 1:
		e.send(frames[0], sender)
		if e.metrics != nil {
			e.metrics.ChunksServed.Inc()
		}

	default:
		e.send(wire.EncodeAck(id, e.cfg.Host, command), sender)
		e.clk.Sleep(spec.AckGrace, ctx.Done())
		e.store.Put(id, frames)
	}
}

// runCommand dispatches to the session table for session/cd subcommands
// (when a sender id is available), otherwise to the shell executor.
func (e *Engine) runCommand(ctx context.Context, sender, command string) (shellexec.Result, bool) {
	if sender != "" {
		if res, handled := e.sessions.HandleCommand(sender, command); handled {
			return shellexec.Result{Stdout: res.Stdout, Stderr: res.Stderr, ExitCode: res.Exit}, true
		}
	}

	cwd := ""
	if sender != "" {
		cwd = e.sessions.Get(sender)
	}
	return shellexec.Run(ctx, command, cwd, e.cfg.Timeout), false
}

func (e *Engine) send(text, dest string) {
	if err := e.tr.Send(text, dest); err != nil {
		e.log.WithError(err).Warn("send failed")
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
