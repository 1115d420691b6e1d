// Package controllerengine is the controller side of the bridge: it
// sends a command once, then pulls and reassembles the agent's chunked
// reply by index, retrying lost chunks with exponential backoff.
package controllerengine

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/faanross/meshc2/internal/clock"
	"github.com/faanross/meshc2/internal/spec"
	"github.com/faanross/meshc2/internal/transport"
)

// Config holds one run's parameters (§4.7, §6).
type Config struct {
	Channel   int
	Timeout   time.Duration
	MoreDelay time.Duration
}

// Result is the outcome of one command round-trip.
type Result struct {
	Command  string
	Output   string
	Raw      []string
	Received bool
	Duration time.Duration
}

// Engine drives the controller state machine against a Transport.
type Engine struct {
	tr  transport.Transport
	clk clock.Clock
	log *logrus.Entry
}

// New builds an Engine. log may be nil.
func New(tr transport.Transport, clk clock.Clock, log *logrus.Logger) *Engine {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Engine{tr: tr, clk: clk, log: log.WithField("component", "controller")}
}

// Run sends command once and pulls/reassembles the reply until Done is
// seen or cfg.Timeout elapses.
func (e *Engine) Run(ctx context.Context, cfg Config, command string) (Result, error) {
	start := e.clk.Now()
	if err := e.tr.Send(command, ""); err != nil {
		return Result{}, err
	}

	s := newState(cfg.MoreDelay)
	deadline := start + cfg.Timeout.Seconds()
	inbound := e.tr.Subscribe()

	for e.clk.Now() < deadline && !s.doneSeen {
		remaining := deadline - e.clk.Now()
		wait := remaining
		if wait > spec.PollInterval.Seconds() {
			wait = spec.PollInterval.Seconds()
		}
		if wait < 0 {
			wait = 0
		}

		timer := time.NewTimer(time.Duration(wait * float64(time.Second)))
		select {
		case <-ctx.Done():
			timer.Stop()
			return Result{}, ctx.Err()

		case in, ok := <-inbound:
			timer.Stop()
			if !ok {
				s.doneSeen = true
			} else {
				s.applyFrame(in.Text)
			}

		case <-timer.C:
			now := e.clk.Now()
			if s.shouldRetry(now) {
				paging := s.beginRetry(now)
				e.log.WithField("frame", paging).Debug("requesting chunk")
				if err := e.tr.Send(paging, ""); err != nil {
					e.log.WithError(err).Warn("paging send failed")
				}
			}
		}
	}

	duration := time.Duration((e.clk.Now() - start) * float64(time.Second))
	return Result{
		Command:  command,
		Output:   s.output(),
		Raw:      s.raw,
		Received: s.outputSeen,
		Duration: duration,
	}, nil
}
