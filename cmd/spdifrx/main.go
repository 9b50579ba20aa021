package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gen2brain/spdif"
)

func main() {
	var (
		boardPath string
		rate      int
		width     int
		retries   int
		verbose   bool
	)

	flag.StringVar(&boardPath, "board", "board.yaml", "The board description (YAML).")
	flag.IntVar(&rate, "rate", 48000, "The expected sample rate in Hz.")
	flag.IntVar(&width, "width", 24, "The sample width in bits (16 or 24).")
	flag.IntVar(&retries, "retries", 1, "Number of detection attempts before giving up.")
	flag.BoolVar(&verbose, "verbose", false, "Log device events.")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintln(os.Stderr, "Starts an S/PDIF receiver and reports the incoming stream's channel status.")
		fmt.Fprintln(os.Stderr, "\nOptions:")
		flag.PrintDefaults()
	}

	flag.Parse()

	board, err := spdif.LoadBoardConfig(boardPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading board: %v\n", err)
		os.Exit(1)
	}

	if board.Device.Mode != spdif.ModeReceive {
		fmt.Fprintf(os.Stderr, "Error: board describes a %s device, need receive\n", board.Device.Mode)
		os.Exit(1)
	}

	uio, err := spdif.OpenUIO(board.UIO, board.Clocks())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening UIO device: %v\n", err)
		os.Exit(1)
	}
	defer uio.Close()

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	dev := spdif.New(uio, spdif.WithLogger(logger))
	if err := dev.Open(spdif.ModeReceive, board.Device); err != nil {
		fmt.Fprintf(os.Stderr, "Error opening S/PDIF device: %v\n", err)
		os.Exit(1)
	}
	defer dev.Close()

	if err := dev.Configure(uint32(rate), uint32(width)); err != nil {
		fmt.Fprintf(os.Stderr, "Error configuring S/PDIF device: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Receiver:      %s (%s)\n", board.UIO, dev.DAIName())
	fmt.Printf("Configuration: %d Hz, %d bits, %s\n", dev.Rate(), dev.Width(), dev.Divider())

	// Set up a signal handler to gracefully stop on Ctrl+C.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	locked := false
	for attempt := 1; attempt <= max(retries, 1); attempt++ {
		err = dev.Trigger(ctx, spdif.TriggerStart)
		if err == nil {
			locked = true
			break
		}

		if !errors.Is(err, spdif.ErrNoSignalDetected) {
			break
		}

		fmt.Printf("Attempt %d: no signal within %s\n", attempt, spdif.DetectTimeout)

		// A stop rearms the detector for the next attempt.
		if err = dev.Trigger(ctx, spdif.TriggerStop); err != nil {
			break
		}
	}

	if !locked {
		if err != nil && !errors.Is(err, spdif.ErrNoSignalDetected) {
			fmt.Fprintf(os.Stderr, "Error starting receiver: %v\n", err)
		} else {
			fmt.Fprintln(os.Stderr, "Error: no streaming audio detected")
		}
		os.Exit(1)
	}

	cs, err := dev.ChannelStatus()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading channel status: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Locked:        %s\n", cs)
	if f := cs.Format(); f.SampleRate != 0 && f.SampleRate != rate {
		fmt.Printf("Warning:       stream is %d Hz, receiver configured for %d Hz\n", f.SampleRate, rate)
	}

	user, err := dev.UserData()
	if err == nil {
		fmt.Printf("User data:     % 08x\n", user)
	}

	if err := dev.Trigger(context.Background(), spdif.TriggerStop); err != nil {
		fmt.Fprintf(os.Stderr, "Error stopping receiver: %v\n", err)
		os.Exit(1)
	}

	accepted, ignored := dev.DetectorStats()
	fmt.Printf("Interrupts:    %d accepted, %d ignored\n", accepted, ignored)
}
