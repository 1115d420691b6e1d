package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/term"

	"github.com/faanross/meshc2/internal/clock"
	"github.com/faanross/meshc2/internal/controllerengine"
	"github.com/faanross/meshc2/internal/spec"
	"github.com/faanross/meshc2/internal/transport"
)

func main() {
	port := flag.String("port", "", "radio transport endpoint (host:port); auto-discovered if omitted")
	channel := flag.Int("channel", envOrInt("MESHC2_CHANNEL", spec.DefaultChannelIndex), "transport channel tag")
	timeout := flag.Duration("timeout", 180*time.Second, "overall deadline for the round-trip")
	moreDelay := flag.Duration("more-delay", spec.DefaultMoreDelay, "initial paging-retry interval")
	portWait := flag.Duration("port-wait", spec.DefaultPortWait, "time to wait for endpoint discovery if --port is omitted")
	command := flag.String("command", "", "command to run on the agent")
	flag.Parse()

	if *command == "" {
		fmt.Fprintln(os.Stderr, "controller: -command is required")
		os.Exit(2)
	}

	log := logrus.StandardLogger()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	addr, err := resolvePort(ctx, *port, *portWait)
	if err != nil {
		log.WithError(err).Fatal("could not resolve transport endpoint")
	}
	fmt.Printf("[controller] connecting to %s...\n", addr)

	tr, err := transport.Dial(ctx, addr, log)
	if err != nil {
		log.WithError(err).Fatal("failed to connect")
	}
	defer tr.Close()

	engine := controllerengine.New(tr, clock.NewReal(), log)
	result, err := engine.Run(ctx, controllerengine.Config{
		Channel:   *channel,
		Timeout:   *timeout,
		MoreDelay: *moreDelay,
	}, *command)
	if err != nil {
		log.WithError(err).Fatal("run failed")
	}

	printResult(result)

	if !result.Received {
		fmt.Printf("[controller] max wait %s reached; no Output received\n", *timeout)
		os.Exit(1)
	}
	os.Exit(0)
}

// printResult prints the reassembled output framed by a rule sized to
// the terminal width, falling back to a fixed width when stdout isn't a
// terminal (piped output, CI).
func printResult(result controllerengine.Result) {
	width := 60
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		width = w
	}
	rule := strings.Repeat("-", width)

	fmt.Println(rule)
	if result.Output == "" {
		fmt.Println("[controller] completed without Output")
	} else {
		fmt.Println(result.Output)
	}
	fmt.Println(rule)
	fmt.Printf("[controller] duration=%s frames=%d\n", result.Duration.Round(time.Millisecond), len(result.Raw))
}
