package spdif

import (
	"fmt"

	"github.com/go-audio/audio"
)

// ChannelStatus is the 192-bit IEC 60958 channel status block latched by the receiver.
// Bit n of the block is bit n%32 of word n/32.
type ChannelStatus [ChannelStatusWords]uint32

// Byte returns channel status byte n (0-23).
func (cs ChannelStatus) Byte(n int) byte {
	if n < 0 || n >= ChannelStatusWords*4 {
		return 0
	}

	return byte(cs[n/4] >> (8 * (n % 4)))
}

// Professional reports whether the block uses the professional (AES3) layout.
func (cs ChannelStatus) Professional() bool {
	return cs.Byte(0)&0x01 != 0
}

// NonAudio reports whether the stream carries non-PCM data such as compressed audio.
func (cs ChannelStatus) NonAudio() bool {
	return cs.Byte(0)&0x02 != 0
}

// consumerRates maps the consumer sample frequency code (byte 3, bits 0-3) to Hz.
var consumerRates = map[byte]uint32{
	0x0: 44100,
	0x2: 48000,
	0x3: 32000,
	0x8: 88200,
	0xA: 96000,
	0xC: 176400,
	0xE: 192000,
}

// professionalRates maps the professional sample frequency code (byte 0, bits 6-7) to Hz.
var professionalRates = map[byte]uint32{
	0x1: 44100,
	0x2: 48000,
	0x3: 32000,
}

// SampleRate decodes the signalled sample rate. The second result is false when the rate is not indicated.
func (cs ChannelStatus) SampleRate() (uint32, bool) {
	if cs.Professional() {
		rate, ok := professionalRates[cs.Byte(0)>>6]

		return rate, ok
	}

	rate, ok := consumerRates[cs.Byte(3)&0x0F]

	return rate, ok
}

// Format returns the stream format signalled by the block, with a zero sample rate when it is not indicated.
func (cs ChannelStatus) Format() *audio.Format {
	rate, _ := cs.SampleRate()

	return &audio.Format{
		NumChannels: MaxChannels,
		SampleRate:  int(rate),
	}
}

// String returns a human-readable summary of the block.
func (cs ChannelStatus) String() string {
	layout := "consumer"
	if cs.Professional() {
		layout = "professional"
	}

	content := "linear PCM"
	if cs.NonAudio() {
		content = "non-audio"
	}

	rate := "not indicated"
	if r, ok := cs.SampleRate(); ok {
		rate = fmt.Sprintf("%d Hz", r)
	}

	return fmt.Sprintf("%s, %s, %s", layout, content, rate)
}
