package core

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
)

// Int is a mathematical integer large enough for every value of a 64-bit
// signed or unsigned integer type. The zero value is 0. Neg is never set for
// zero so that == is structural equality.
type Int struct {
	Neg bool
	Abs uint64
}

// IntFromInt64 converts a signed machine integer.
func IntFromInt64(v int64) Int {
	if v < 0 {
		if v == math.MinInt64 {
			return Int{Neg: true, Abs: 1 << 63}
		}
		return Int{Neg: true, Abs: uint64(-v)}
	}
	return Int{Abs: uint64(v)}
}

// IntFromUint64 converts an unsigned machine integer.
func IntFromUint64(v uint64) Int {
	return Int{Abs: v}
}

// IntFromBig converts a big integer; ok is false when it does not fit.
func IntFromBig(b *big.Int) (Int, bool) {
	abs := new(big.Int).Abs(b)
	if !abs.IsUint64() {
		return Int{}, false
	}
	i := Int{Neg: b.Sign() < 0, Abs: abs.Uint64()}
	return i, true
}

// Big returns the value as a big integer.
func (i Int) Big() *big.Int {
	b := new(big.Int).SetUint64(i.Abs)
	if i.Neg {
		b.Neg(b)
	}
	return b
}

// IsZero reports whether i == 0.
func (i Int) IsZero() bool {
	return i.Abs == 0
}

// Cmp compares i and j and returns -1, 0 or +1.
func (i Int) Cmp(j Int) int {
	switch {
	case i.Neg && !j.Neg:
		return -1
	case !i.Neg && j.Neg:
		return 1
	}
	c := 0
	switch {
	case i.Abs < j.Abs:
		c = -1
	case i.Abs > j.Abs:
		c = 1
	}
	if i.Neg {
		return -c
	}
	return c
}

// Int64 returns the value as int64 if it fits.
func (i Int) Int64() (int64, bool) {
	if !i.Neg {
		if i.Abs > math.MaxInt64 {
			return 0, false
		}
		return int64(i.Abs), true
	}
	if i.Abs > 1<<63 {
		return 0, false
	}
	return -int64(i.Abs - 1) - 1, true
}

// Uint64 returns the value as uint64 if it is non-negative.
func (i Int) Uint64() (uint64, bool) {
	if i.Neg {
		return 0, false
	}
	return i.Abs, true
}

func (i Int) String() string {
	if i.Neg {
		return "-" + strconv.FormatUint(i.Abs, 10)
	}
	return strconv.FormatUint(i.Abs, 10)
}

// ParseInt parses a decimal integer with an optional leading minus sign.
func ParseInt(s string) (Int, error) {
	neg := strings.HasPrefix(s, "-")
	abs, err := strconv.ParseUint(strings.TrimPrefix(s, "-"), 10, 64)
	if err != nil {
		return Int{}, fmt.Errorf("invalid integer %q: %w", s, err)
	}
	if abs == 0 {
		neg = false
	}
	return Int{Neg: neg, Abs: abs}, nil
}

// IntType is a fixed-width integer type of the core IR.
type IntType struct {
	Signed bool
	Size   int // bytes: 1, 2, 4 or 8
}

// Common integer types.
var (
	U8    = IntType{Size: 1}
	U16   = IntType{Size: 2}
	U32   = IntType{Size: 4}
	U64   = IntType{Size: 8}
	I8    = IntType{Signed: true, Size: 1}
	I16   = IntType{Signed: true, Size: 2}
	I32   = IntType{Signed: true, Size: 4}
	I64   = IntType{Signed: true, Size: 8}
	Usize = U64
	Isize = I64
)

// Bits returns the width in bits.
func (t IntType) Bits() uint {
	return uint(t.Size) * 8
}

// Valid reports whether the width is supported.
func (t IntType) Valid() bool {
	switch t.Size {
	case 1, 2, 4, 8:
		return true
	}
	return false
}

// Min returns the smallest value of the type.
func (t IntType) Min() Int {
	if !t.Signed {
		return Int{}
	}
	return Int{Neg: true, Abs: uint64(1) << (t.Bits() - 1)}
}

// Max returns the largest value of the type.
func (t IntType) Max() Int {
	if t.Signed {
		return Int{Abs: (uint64(1) << (t.Bits() - 1)) - 1}
	}
	if t.Bits() >= 64 {
		return Int{Abs: math.MaxUint64}
	}
	return Int{Abs: (uint64(1) << t.Bits()) - 1}
}

// Contains reports whether v is a value of the type.
func (t IntType) Contains(v Int) bool {
	return t.Min().Cmp(v) <= 0 && v.Cmp(t.Max()) <= 0
}

// Wrap reduces an arbitrary big integer modulo 2^bits into the type.
func (t IntType) Wrap(b *big.Int) Int {
	mod := new(big.Int).Lsh(big.NewInt(1), t.Bits())
	r := new(big.Int).Mod(b, mod)
	if t.Signed {
		half := new(big.Int).Rsh(mod, 1)
		if r.Cmp(half) >= 0 {
			r.Sub(r, mod)
		}
	}
	out, _ := IntFromBig(r)
	return out
}

// ToBits returns the two's complement bit pattern of v.
func (t IntType) ToBits(v Int) uint64 {
	bits := v.Abs
	if v.Neg {
		bits = -bits
	}
	if t.Bits() >= 64 {
		return bits
	}
	return bits & ((uint64(1) << t.Bits()) - 1)
}

// FromBits interprets a bit pattern as a value of the type.
func (t IntType) FromBits(raw uint64) Int {
	if t.Bits() < 64 {
		raw &= (uint64(1) << t.Bits()) - 1
	}
	if !t.Signed {
		return Int{Abs: raw}
	}
	sign := uint64(1) << (t.Bits() - 1)
	if raw&sign == 0 {
		return Int{Abs: raw}
	}
	// negative: magnitude is 2^bits - raw
	mag := -raw
	if t.Bits() < 64 {
		mag &= (uint64(1) << t.Bits()) - 1
	}
	return Int{Neg: true, Abs: mag}
}

func (t IntType) String() string {
	if t.Signed {
		return fmt.Sprintf("i%d", t.Bits())
	}
	return fmt.Sprintf("u%d", t.Bits())
}
