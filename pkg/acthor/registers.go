package acthor

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

var (
	ErrZeroFactor       = errors.New("scale factor must not be 0")
	ErrLengthMismatch   = errors.New("value count does not match register span")
	ErrUnknownRegister  = errors.New("unknown register name")
	ErrReadOnlyRegister = errors.New("register is read-only")
)

// Access describes whether a register accepts writes.
type Access int

const (
	ReadOnly Access = iota
	ReadWrite
)

// Encoding selects the decode/encode routine for a register span.
type Encoding int

const (
	// EncRaw is a plain 16-bit integer, optionally scaled.
	EncRaw Encoding = iota
	// EncText packs two ASCII characters per register, high byte first.
	EncText
	// EncPacked concatenates the span big-endian into one wide integer.
	EncPacked
)

// Register describes one logical quantity on the device. It is immutable
// after construction: address, width and factor never change.
type Register struct {
	Addr     uint16
	Width    uint16
	Factor   float64 // 0 means unscaled
	Access   Access
	Encoding Encoding
}

// NewRegister builds an unscaled descriptor.
func NewRegister(addr, width uint16, access Access, enc Encoding) (Register, error) {
	if width == 0 {
		return Register{}, fmt.Errorf("register %d: width must be at least 1", addr)
	}
	return Register{Addr: addr, Width: width, Access: access, Encoding: enc}, nil
}

// NewScaledRegister builds a descriptor whose stored value is the logical
// value multiplied by factor. A zero factor is a configuration error.
func NewScaledRegister(addr, width uint16, factor float64, access Access, enc Encoding) (Register, error) {
	if factor == 0 || math.IsNaN(factor) || math.IsInf(factor, 0) {
		return Register{}, fmt.Errorf("register %d: %w", addr, ErrZeroFactor)
	}
	r, err := NewRegister(addr, width, access, enc)
	if err != nil {
		return Register{}, err
	}
	r.Factor = factor
	return r, nil
}

// Shorthand constructors for the static register table.
func ro(addr uint16) Register { return Register{Addr: addr, Width: 1, Access: ReadOnly} }
func rw(addr uint16) Register { return Register{Addr: addr, Width: 1, Access: ReadWrite} }

func roScaled(addr uint16, f float64) Register {
	r, err := NewScaledRegister(addr, 1, f, ReadOnly, EncRaw)
	if err != nil {
		panic(err)
	}
	return r
}

func rwScaled(addr uint16, f float64) Register {
	r, err := NewScaledRegister(addr, 1, f, ReadWrite, EncRaw)
	if err != nil {
		panic(err)
	}
	return r
}

// DecodeSingle converts a raw register value to its logical value.
func (r Register) DecodeSingle(raw uint16) float64 {
	if r.Factor != 0 {
		return float64(raw) / r.Factor
	}
	return float64(raw)
}

// EncodeSingle converts a logical value to the raw register value. Scaled
// values round after multiplying; unscaled values truncate.
func (r Register) EncodeSingle(value float64) uint16 {
	if r.Factor != 0 {
		return uint16(math.Round(value * r.Factor))
	}
	return uint16(value)
}

// DecodeMulti decodes a register span element-wise.
func (r Register) DecodeMulti(raw []uint16) []float64 {
	out := make([]float64, len(raw))
	for i, v := range raw {
		out[i] = r.DecodeSingle(v)
	}
	return out
}

// EncodeMulti encodes one value per register of the span. The length must
// match the descriptor width exactly.
func (r Register) EncodeMulti(values []float64) ([]uint16, error) {
	if len(values) != int(r.Width) {
		return nil, fmt.Errorf("register %d: got %d values for %d registers: %w",
			r.Addr, len(values), r.Width, ErrLengthMismatch)
	}
	out := make([]uint16, len(values))
	for i, v := range values {
		out[i] = r.EncodeSingle(v)
	}
	return out, nil
}

// DecodeText renders a register span as text, two characters per register
// with the high byte first.
func DecodeText(raw []uint16) string {
	buf := make([]byte, 0, 2*len(raw))
	for _, v := range raw {
		buf = append(buf, byte(v>>8), byte(v))
	}
	return string(buf)
}

// DecodePackedInt concatenates a register span big-endian into one wide
// unsigned integer. Used for power_big, which covers installations above
// the 65535 W range of a single register.
func DecodePackedInt(raw []uint16) uint64 {
	var v uint64
	for _, r := range raw {
		v = v<<16 | uint64(r)
	}
	return v
}

// EncodePackedInt splits a wide unsigned integer into width registers,
// big-endian. The inverse of DecodePackedInt.
func EncodePackedInt(value uint64, width uint16) []uint16 {
	buf := make([]byte, 2*width)
	for i := int(width)*2 - 1; i >= 0; i-- {
		buf[i] = byte(value)
		value >>= 8
	}
	out := make([]uint16, width)
	for i := range out {
		out[i] = binary.BigEndian.Uint16(buf[2*i:])
	}
	return out
}
