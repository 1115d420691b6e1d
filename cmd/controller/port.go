package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"
)

// candidatePorts are tried in order when no --port is given and neither
// env var is set. A real deployment almost always knows its bridge
// address; this exists for the zero-config demo path.
var candidatePorts = []string{"localhost:4403", "127.0.0.1:4403"}

// resolvePort mirrors the discover-with-backoff loop the controller used
// to find a serial device: poll candidates, back off ×1.5 up to 10s,
// until portWait elapses.
func resolvePort(ctx context.Context, explicit string, portWait time.Duration) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if envPort := envOr("MESH_PORT", envOr("MESHTASTIC_PORT", "")); envPort != "" {
		return envPort, nil
	}

	deadline := time.Now().Add(portWait)
	delay := time.Second
	for {
		if addr, ok := firstReachable(ctx, candidatePorts); ok {
			return addr, nil
		}
		if time.Now().After(deadline) {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
		delay = minDuration(10*time.Second, time.Duration(float64(delay)*1.5))
	}

	return "", fmt.Errorf("no bridge endpoint reachable; provide --port or set MESH_PORT (tried %v)", candidatePorts)
}

func firstReachable(ctx context.Context, addrs []string) (string, bool) {
	var d net.Dialer
	for _, addr := range addrs {
		dialCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
		conn, err := d.DialContext(dialCtx, "tcp", addr)
		cancel()
		if err == nil {
			conn.Close()
			return addr, true
		}
	}
	return "", false
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
