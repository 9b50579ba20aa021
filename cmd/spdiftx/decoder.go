package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
)

// streamInfo describes the stream an audio file would feed to the transmitter.
type streamInfo struct {
	Format   *audio.Format
	BitDepth int
	Duration time.Duration
}

// wavInfo reads the format of a WAV file.
func wavInfo(r io.ReadSeeker) (*streamInfo, error) {
	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		return nil, errors.New("invalid WAV file")
	}

	// Format 3 is IEEE Float, which the transceiver cannot carry as linear PCM.
	if decoder.WavAudioFormat == 3 {
		return nil, errors.New("floating-point WAV files are not supported")
	}

	duration, err := decoder.Duration()
	if err != nil {
		return nil, fmt.Errorf("failed to get duration: %w", err)
	}

	return &streamInfo{
		Format:   decoder.Format(),
		BitDepth: int(decoder.BitDepth),
		Duration: duration,
	}, nil
}

// mp3Info reads the format of an MP3 file. The decoder always produces 16-bit stereo.
func mp3Info(r io.Reader) (*streamInfo, error) {
	decoder, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("invalid MP3 file: %w", err)
	}

	const bytesPerFrame = 4 // 2 channels * 16 bits

	var duration time.Duration
	if length := decoder.Length(); length > 0 {
		frames := length / bytesPerFrame
		duration = time.Duration(float64(frames) / float64(decoder.SampleRate()) * float64(time.Second))
	}

	return &streamInfo{
		Format: &audio.Format{
			NumChannels: 2,
			SampleRate:  decoder.SampleRate(),
		},
		BitDepth: 16,
		Duration: duration,
	}, nil
}
