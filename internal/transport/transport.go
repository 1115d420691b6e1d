// Package transport defines the adapter contract the engines depend on
// to exchange text frames with the radio, plus a concrete implementation
// usable over any net.Conn that delimits whole frames with a 0x1e
// record-separator byte.
package transport

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Inbound is one frame received off the radio.
type Inbound struct {
	Text   string
	FromID string
}

// Transport is the contract the agent and controller engines consume.
// Implementations are responsible for scoping Send to destination (when
// non-empty) and for dropping frames that didn't arrive on the
// text-message port before they ever reach Subscribe's channel.
type Transport interface {
	// Send delivers a UTF-8 frame, optionally scoped to destination.
	Send(text, destination string) error
	// Subscribe returns a channel of inbound frames. Subsequent calls
	// return the same channel; there is one subscriber per Transport.
	Subscribe() <-chan Inbound
	Close() error
}

// Conn is a record-separated Transport over any net.Conn, used when
// bridging to a relay: each delimited frame in, one Inbound out; each
// Send writes one delimited frame.
type Conn struct {
	conn net.Conn
	log  *logrus.Entry

	writeMu sync.Mutex
	inbound chan Inbound

	closeOnce sync.Once
	closed    chan struct{}
}

// NewConn wraps conn as a Transport and starts its read loop. Destination
// scoping is done per frame by Send.
func NewConn(conn net.Conn, log *logrus.Logger) *Conn {
	if log == nil {
		log = logrus.StandardLogger()
	}
	c := &Conn{
		conn:    conn,
		log:     log.WithField("component", "transport"),
		inbound: make(chan Inbound, 32),
		closed:  make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// Dial connects to addr (host:port) and wraps the resulting connection.
func Dial(ctx context.Context, addr string, log *logrus.Logger) (*Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", addr, err)
	}
	return NewConn(conn, log), nil
}

// recordSep delimits whole frames on the wire. A frame's own body is
// always made of \n-separated lines, so splitting on \n would shred a
// single chunk frame into several; the record separator control byte
// never appears in generated text, so it safely delimits frame
// boundaries without colliding with frame content.
const recordSep = '\x1e'

func splitFrames(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := indexByte(data, recordSep); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

func indexByte(data []byte, b byte) int {
	for i, c := range data {
		if c == b {
			return i
		}
	}
	return -1
}

func (c *Conn) readLoop() {
	defer close(c.inbound)
	scanner := bufio.NewScanner(c.conn)
	scanner.Buffer(make([]byte, 4096), 1<<20)
	scanner.Split(splitFrames)
	for scanner.Scan() {
		frame := Inbound{Text: scanner.Text()}
		if frame.Text == "" {
			continue
		}
		if dest, rest, ok := splitDestPrefix(frame.Text); ok {
			frame.FromID = dest
			frame.Text = rest
		}
		select {
		case c.inbound <- frame:
		case <-c.closed:
			return
		}
	}
	if err := scanner.Err(); err != nil {
		c.log.WithError(err).Warn("transport read loop ended")
	}
}

// splitDestPrefix recognizes the "<fromId>|" framing this adapter writes
// on Send so a bidirectional relay can round-trip sender identity;
// devices that don't add this prefix simply never match here and every
// frame arrives with FromID empty.
func splitDestPrefix(frame string) (from, rest string, ok bool) {
	for i := 0; i < len(frame); i++ {
		switch frame[i] {
		case '|':
			return frame[:i], frame[i+1:], true
		case '\n':
			return "", frame, false
		}
	}
	return "", frame, false
}

// Send writes text as a single delimited frame, prefixed with
// "destination|" when a destination is given.
func (c *Conn) Send(text, destination string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	frame := text
	if destination != "" {
		frame = destination + "|" + text
	}

	if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
		return fmt.Errorf("transport: set write deadline: %w", err)
	}
	if _, err := fmt.Fprintf(c.conn, "%s%c", frame, recordSep); err != nil {
		return fmt.Errorf("transport: send: %w", err)
	}
	return nil
}

func (c *Conn) Subscribe() <-chan Inbound {
	return c.inbound
}

func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.conn.Close()
	})
	return err
}
