package controllerengine

import (
	"context"
	"testing"
	"time"

	"github.com/faanross/meshc2/internal/clock"
	"github.com/faanross/meshc2/internal/transport"
	"github.com/faanross/meshc2/internal/wire"
)

type fakeTransport struct {
	sent chan string
	in   chan transport.Inbound
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{sent: make(chan string, 64), in: make(chan transport.Inbound, 64)}
}

func (f *fakeTransport) Send(text, destination string) error {
	f.sent <- text
	return nil
}
func (f *fakeTransport) Subscribe() <-chan transport.Inbound { return f.in }
func (f *fakeTransport) Close() error                        { close(f.in); return nil }

func TestEngine_Run_SingleChunkReply(t *testing.T) {
	tr := newFakeTransport()
	e := New(tr, clock.NewReal(), nil)

	done := make(chan Result, 1)
	go func() {
		r, err := e.Run(context.Background(), Config{Timeout: time.Second, MoreDelay: 50 * time.Millisecond}, "whoami")
		if err != nil {
			t.Errorf("Run returned error: %v", err)
		}
		done <- r
	}()

	cmdSent := <-tr.sent
	if cmdSent != "whoami" {
		t.Fatalf("expected the command to be sent verbatim, got %q", cmdSent)
	}

	tr.in <- transport.Inbound{Text: wire.EncodeAck("7", "box1", "whoami")}
	tr.in <- transport.Inbound{Text: wire.FirstChunkHeader("7", 1) + "alice\nDone"}

	select {
	case r := <-done:
		if !r.Received || r.Output != "alice" {
			t.Fatalf("got %+v", r)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not complete")
	}
}

func TestEngine_Run_RetriesLostChunk(t *testing.T) {
	tr := newFakeTransport()
	e := New(tr, clock.NewReal(), nil)

	done := make(chan Result, 1)
	go func() {
		// moreDelay below 1s is clamped to a 1s floor by newState, so the
		// retry below fires after ~1 real second.
		r, _ := e.Run(context.Background(), Config{Timeout: 5 * time.Second, MoreDelay: 30 * time.Millisecond}, "longcmd")
		done <- r
	}()

	<-tr.sent // the initial command

	tr.in <- transport.Inbound{Text: wire.EncodeAck("9", "box1", "longcmd")}
	tr.in <- transport.Inbound{Text: wire.FirstChunkHeader("9", 2) + "aaa"}
	// chunk 1 is "lost" in transit: the controller must re-page for it.

	var paging string
	select {
	case paging = <-tr.sent:
	case <-time.After(4 * time.Second):
		t.Fatal("expected a paging retry to be sent")
	}
	if paging != "more 9 1" {
		t.Fatalf("expected a retry for chunk 1, got %q", paging)
	}

	tr.in <- transport.Inbound{Text: wire.ChunkHeader("9", 1, 2) + "bbb\nDone"}

	select {
	case r := <-done:
		if r.Output != "aaabbb" {
			t.Fatalf("got output %q", r.Output)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not complete")
	}
}

func TestEngine_Run_TimesOutWithoutAnyReply(t *testing.T) {
	tr := newFakeTransport()
	e := New(tr, clock.NewReal(), nil)

	r, err := e.Run(context.Background(), Config{Timeout: 80 * time.Millisecond, MoreDelay: time.Second}, "noreply")
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if r.Received {
		t.Fatalf("expected Received=false when nothing ever arrives, got %+v", r)
	}
}

func TestEngine_Run_ContextCancellation(t *testing.T) {
	tr := newFakeTransport()
	e := New(tr, clock.NewReal(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := e.Run(ctx, Config{Timeout: 10 * time.Second, MoreDelay: time.Second}, "neverarrives")
		done <- err
	}()

	<-tr.sent
	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Fatalf("expected a context-cancellation error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not observe cancellation")
	}
}
