package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/gen2brain/spdif"
)

func main() {
	var (
		boardPath string
		audClk    uint64
	)

	flag.StringVar(&boardPath, "board", "", "The board description (YAML). Overrides -aud-clk.")
	flag.Uint64Var(&audClk, "aud-clk", 24576000, "The audio reference clock rate in Hz.")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintln(os.Stderr, "Displays the clock divider chosen for each supported sample rate.")
		fmt.Fprintln(os.Stderr, "\nOptions:")
		flag.PrintDefaults()
	}

	flag.Parse()

	if boardPath != "" {
		board, err := spdif.LoadBoardConfig(boardPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading board: %v\n", err)
			os.Exit(1)
		}

		clk, err := board.Clocks().Clock(board.Device.Clocks.Audio)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		audClk = clk.Rate()

		fmt.Printf("Board:       %s (%s, %s)\n", boardPath, board.Device.Mode, board.UIO)
	}

	fmt.Printf("Audio clock: %d Hz\n", audClk)
	fmt.Printf("Frame:       %d channels x %d bits\n\n", spdif.MaxChannels, spdif.AESSampleWidth)

	var b strings.Builder
	fmt.Fprintf(&b, "%-10s %-16s %s\n", "Rate", "Divider", "Actual")
	for _, rate := range spdif.SupportedRates {
		code, err := spdif.ResolveDivider(audClk, uint64(rate), spdif.MaxChannels, spdif.AESSampleWidth)
		switch {
		case errors.Is(err, spdif.ErrUnsupportedRate):
			fmt.Fprintf(&b, "%-10d %-16s %s\n", rate, "-", "unsupported")
		case err != nil:
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		default:
			actual := float64(audClk) / float64(code.Ratio()*spdif.MaxChannels*spdif.AESSampleWidth)
			fmt.Fprintf(&b, "%-10d %-16s %.1f Hz\n", rate, code, actual)
		}
	}

	fmt.Print(b.String())
}
