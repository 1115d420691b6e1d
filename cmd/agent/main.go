package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/faanross/meshc2/internal/agentengine"
	"github.com/faanross/meshc2/internal/clock"
	"github.com/faanross/meshc2/internal/metrics"
	"github.com/faanross/meshc2/internal/session"
	"github.com/faanross/meshc2/internal/spec"
	"github.com/faanross/meshc2/internal/store"
	"github.com/faanross/meshc2/internal/transport"
)

func main() {
	port := flag.String("port", envOr("MESHC2_PORT", "localhost:4403"), "radio transport endpoint (host:port)")
	channelIndex := flag.Int("channel-index", envOrInt("MESHC2_CHANNEL", spec.DefaultChannelIndex), "transport channel tag")
	timeout := flag.Duration("timeout", envOrDuration("MESHC2_TIMEOUT", spec.DefaultCommandTimeout), "per-command execution ceiling")
	maxPayload := flag.Int("max-payload", envOrInt("MESHC2_MAX_PAYLOAD", spec.DefaultMaxPayload), "wire-frame size bound in bytes")
	metricsAddr := flag.String("metrics-addr", envOr("MESHC2_METRICS_ADDR", ""), "if set, serve Prometheus metrics on this address")
	flag.Parse()

	log := logrus.StandardLogger()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	host, err := os.Hostname()
	if err != nil {
		host = "agent"
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	tr, err := transport.Dial(ctx, *port, log)
	if err != nil {
		log.WithError(err).Fatal("failed to reach transport endpoint")
	}
	defer tr.Close()

	st := store.New()
	sessions := session.New()

	var agentMetrics *metrics.Agent
	if *metricsAddr != "" {
		agentMetrics = metrics.NewAgent(prometheus.DefaultRegisterer, st.Len)
		go func() {
			log.WithField("addr", *metricsAddr).Info("serving metrics")
			if err := metrics.Serve(*metricsAddr); err != nil {
				log.WithError(err).Warn("metrics server stopped")
			}
		}()
	}

	cfg := agentengine.Config{
		Host:         host,
		ChannelIndex: *channelIndex,
		Timeout:      *timeout,
		MaxPayload:   *maxPayload,
	}
	engine := agentengine.New(cfg, tr, st, sessions, clock.NewReal(), agentMetrics, log)

	log.WithFields(logrus.Fields{
		"port":          *port,
		"channel_index": *channelIndex,
		"timeout":       *timeout,
		"max_payload":   *maxPayload,
	}).Info("agent starting")

	if err := engine.Run(ctx); err != nil && err != context.Canceled {
		log.WithError(err).Fatal("agent stopped")
	}
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

func envOrDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return def
}
