package spdif

import (
	"fmt"
	"sync/atomic"
	"unsafe"
)

// declaredRegisters lists every offset the core may touch.
var declaredRegisters = map[Register]bool{
	XSPDIF_GLOBAL_IRQ_REG: true,
	XSPDIF_IRQ_STS_REG:    true,
	XSPDIF_IRQ_ENABLE_REG: true,
	XSPDIF_SOFT_RESET_REG: true,
	XSPDIF_CONTROL_REG:    true,
}

func init() {
	for i := Register(0); i < ChannelStatusWords; i++ {
		declaredRegisters[XSPDIF_CHAN_0_STS_REG+4*i] = true
		declaredRegisters[XSPDIF_CH_A_USER_DATA_REG_0+4*i] = true
	}
}

// RegisterBlock is a typed accessor over the device register window.
// It does no locking: the owning Controller serializes caller-side access,
// and the interrupt handler only touches the status and enable registers.
type RegisterBlock struct {
	mem []byte
}

// NewRegisterBlock wraps a mapped register window.
func NewRegisterBlock(mem []byte) (*RegisterBlock, error) {
	if len(mem) < RegisterWindowSize {
		return nil, fmt.Errorf("register window is %d bytes, need %d: %w", len(mem), RegisterWindowSize, ErrInvalidConfig)
	}

	if uintptr(unsafe.Pointer(&mem[0]))%4 != 0 {
		return nil, fmt.Errorf("register window is not 32-bit aligned: %w", ErrInvalidConfig)
	}

	return &RegisterBlock{mem: mem}, nil
}

func (r *RegisterBlock) addr(off Register) *uint32 {
	if !declaredRegisters[off] {
		panic(fmt.Sprintf("spdif: access to undeclared register 0x%02x", uint32(off)))
	}

	return (*uint32)(unsafe.Pointer(&r.mem[off]))
}

// Read32 reads the 32-bit register at off.
func (r *RegisterBlock) Read32(off Register) uint32 {
	return atomic.LoadUint32(r.addr(off))
}

// Write32 writes v to the 32-bit register at off.
func (r *RegisterBlock) Write32(off Register, v uint32) {
	atomic.StoreUint32(r.addr(off), v)
}

// SetBits sets mask in the register at off (read-modify-write).
func (r *RegisterBlock) SetBits(off Register, mask uint32) {
	r.Write32(off, r.Read32(off)|mask)
}

// ClearBits clears mask in the register at off (read-modify-write).
func (r *RegisterBlock) ClearBits(off Register, mask uint32) {
	r.Write32(off, r.Read32(off)&^mask)
}

// UpdateField replaces the bits selected by mask with value shifted into place.
func (r *RegisterBlock) UpdateField(off Register, mask uint32, shift uint, value uint32) {
	val := r.Read32(off)
	val &^= mask
	val |= (value << shift) & mask
	r.Write32(off, val)
}
