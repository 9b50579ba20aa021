package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gen2brain/spdif"
)

func main() {
	var (
		boardPath string
		rate      int
		width     int
		duration  int
		verbose   bool
	)

	flag.StringVar(&boardPath, "board", "board.yaml", "The board description (YAML)")
	flag.IntVar(&rate, "rate", 0, "The sample rate in Hz (0 = use the audio file's rate)")
	flag.IntVar(&width, "width", 0, "The sample width in bits, 16 or 24 (0 = use the audio file's bit depth)")
	flag.IntVar(&duration, "duration", 0, "Seconds to keep the transmitter running (0 = the audio file's duration, or until Ctrl+C if unknown)")
	flag.BoolVar(&verbose, "verbose", false, "Log device events")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <wav-or-mp3-file>\n", os.Args[0])
		fmt.Fprintln(os.Stderr, "\nArms an S/PDIF transmitter for the format of an audio file.")
		fmt.Fprintln(os.Stderr, "\nOptions:")
		for _, name := range []string{"board", "rate", "width", "duration", "verbose"} {
			f := flag.Lookup(name)
			if f != nil {
				fmt.Fprintf(os.Stderr, "  --%s\n    \t%v (default %q)\n", f.Name, f.Usage, f.DefValue)
			}
		}
	}

	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}

	audioPath := flag.Arg(0)
	audioFile, err := os.Open(audioPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening audio file: %v\n", err)
		os.Exit(1)
	}
	defer audioFile.Close()

	var info *streamInfo
	switch strings.ToLower(filepath.Ext(audioPath)) {
	case ".mp3":
		info, err = mp3Info(audioFile)
	default:
		info, err = wavInfo(audioFile)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading audio file: %v\n", err)
		os.Exit(1)
	}

	// Determine rate, width and duration from flags or the audio file.
	if rate > 0 {
		info.Format.SampleRate = rate
	}
	if width > 0 {
		info.BitDepth = width
	}
	if duration > 0 {
		info.Duration = time.Duration(duration) * time.Second
	}

	board, err := spdif.LoadBoardConfig(boardPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading board: %v\n", err)
		os.Exit(1)
	}

	if board.Device.Mode != spdif.ModeTransmit {
		fmt.Fprintf(os.Stderr, "Error: board describes a %s device, need transmit\n", board.Device.Mode)
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
	if err := dev.Open(spdif.ModeTransmit, board.Device); err != nil {
		fmt.Fprintf(os.Stderr, "Error opening S/PDIF device: %v\n", err)
		os.Exit(1)
	}
	defer dev.Close()

	if err := dev.ConfigureFormat(info.Format, uint32(info.BitDepth)); err != nil {
		fmt.Fprintf(os.Stderr, "Error configuring S/PDIF device: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Transmitter:   %s (%s)\n", board.UIO, dev.DAIName())
	fmt.Printf("Configuration: %d channels, %d Hz, %d bits\n", info.Format.NumChannels, dev.Rate(), dev.Width())
	fmt.Printf("Divider:       %s\n", dev.Divider())

	// Set up a signal handler to gracefully stop on Ctrl+C.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := dev.Trigger(ctx, spdif.TriggerStart); err != nil {
		fmt.Fprintf(os.Stderr, "Error starting transmitter: %v\n", err)
		os.Exit(1)
	}

	if info.Duration > 0 {
		fmt.Printf("Transmitter running for %s... Press Ctrl+C to stop early.\n", info.Duration.Round(time.Millisecond))
	} else {
		fmt.Println("Transmitter running, duration unknown... Press Ctrl+C to stop.")
	}

	if hold(ctx, info.Duration) {
		fmt.Println("\nInterrupted by user.")
	}

	if err := dev.Trigger(context.Background(), spdif.TriggerStop); err != nil {
		fmt.Fprintf(os.Stderr, "Error stopping transmitter: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Transmitter stopped.")
}

// hold blocks for d, or until ctx is done when d is not positive. It reports whether ctx ended the wait.
func hold(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		<-ctx.Done()

		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return true
	case <-timer.C:
		return false
	}
}
