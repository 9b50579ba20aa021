package spdif

import (
	"fmt"
	"math/bits"
)

// DividerCode is the value written to the control register clock-config field.
type DividerCode uint32

const (
	ClkDivBy4 DividerCode = iota
	ClkDivBy8
	ClkDivBy16
	ClkDivBy24
	ClkDivBy32
	ClkDivBy48
	ClkDivBy64
)

// dividerRatios maps a division ratio to its hardware code.
var dividerRatios = map[uint64]DividerCode{
	4:  ClkDivBy4,
	8:  ClkDivBy8,
	16: ClkDivBy16,
	24: ClkDivBy24,
	32: ClkDivBy32,
	48: ClkDivBy48,
	64: ClkDivBy64,
}

// Ratio returns the division ratio selected by the code, or 0 for an invalid code.
func (c DividerCode) Ratio() uint64 {
	for ratio, code := range dividerRatios {
		if code == c {
			return ratio
		}
	}

	return 0
}

// String returns a name such as "CLK_DIV_BY_8".
func (c DividerCode) String() string {
	ratio := c.Ratio()
	if ratio == 0 {
		return fmt.Sprintf("CLK_DIV_INVALID(%d)", uint32(c))
	}

	return fmt.Sprintf("CLK_DIV_BY_%d", ratio)
}

// ResolveDivider computes the divider code that derives the bit clock for sampleRate from refRate.
// The ratio refRate / (channels * width * sampleRate) is rounded to the nearest integer, halves rounding up.
// Ratios outside the hardware table, and a zero divisor, return ErrUnsupportedRate.
func ResolveDivider(refRate, sampleRate uint64, channels, width uint32) (DividerCode, error) {
	hi, div := bits.Mul64(uint64(channels)*uint64(width), sampleRate)
	if hi != 0 || div == 0 {
		return 0, fmt.Errorf("%w: bad divisor (rate=%d channels=%d width=%d)", ErrUnsupportedRate, sampleRate, channels, width)
	}

	ratio, rem := refRate/div, refRate%div
	if rem >= div-rem {
		ratio++
	}

	code, ok := dividerRatios[ratio]
	if !ok {
		return 0, fmt.Errorf("%w: %d Hz from %d Hz reference needs ratio %d", ErrUnsupportedRate, sampleRate, refRate, ratio)
	}

	return code, nil
}
