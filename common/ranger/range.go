package ranger

import (
	"encoding/binary"
	"math/bits"
	"net/netip"

	E "github.com/sagernet/sing/common/exceptions"
)

// Decompose splits the inclusive address interval [start, end] into the
// minimal ordered list of CIDR blocks whose union is exactly the interval.
// The produced blocks never overlap. Both bounds must belong to the same
// address family and satisfy start <= end, otherwise an error is returned
// and no blocks are produced. 4-in-6 mapped addresses are unmapped first.
func Decompose(start netip.Addr, end netip.Addr) ([]netip.Prefix, error) {
	if !start.IsValid() || !end.IsValid() {
		return nil, E.New("invalid range bound")
	}
	start, end = start.Unmap(), end.Unmap()
	if start.Is4() != end.Is4() {
		return nil, E.New("mixed address families: ", start, " and ", end)
	}
	if start.Compare(end) > 0 {
		return nil, E.New("range start ", start, " is greater than range end ", end)
	}
	if start.Is4() {
		return decompose4(start, end), nil
	}
	return decompose6(start, end), nil
}

// decompose4 runs the greedy alignment walk on 32-bit values widened to
// uint64, so the span and the advance past the top of the address space
// never overflow.
func decompose4(start netip.Addr, end netip.Addr) []netip.Prefix {
	startBytes, endBytes := start.As4(), end.As4()
	cur := uint64(binary.BigEndian.Uint32(startBytes[:]))
	last := uint64(binary.BigEndian.Uint32(endBytes[:]))
	var prefixes []netip.Prefix
	for cur <= last {
		size := bits.TrailingZeros64(cur)
		if size > 32 {
			size = 32
		}
		if spanSize := bits.Len64(last-cur+1) - 1; spanSize < size {
			size = spanSize
		}
		var addr [4]byte
		binary.BigEndian.PutUint32(addr[:], uint32(cur))
		prefixes = append(prefixes, netip.PrefixFrom(netip.AddrFrom4(addr), 32-size))
		cur += uint64(1) << size
	}
	return prefixes
}

func decompose6(start netip.Addr, end netip.Addr) []netip.Prefix {
	cur := uint128From16(start.As16())
	last := uint128From16(end.As16())
	var prefixes []netip.Prefix
	for {
		size := cur.trailingZeros()
		// The remaining span is last-cur+1; the +1 only overflows when the
		// range covers the entire address space, in which case alignment is
		// the sole bound.
		if diff := last.sub(cur); !diff.isMax() {
			if spanSize := diff.addOne().bitLen() - 1; spanSize < size {
				size = spanSize
			}
		}
		prefixes = append(prefixes, netip.PrefixFrom(netip.AddrFrom16(cur.to16()), 128-size))
		next, overflow := cur.addBit(size)
		if overflow || next.compare(last) > 0 {
			return prefixes
		}
		cur = next
	}
}

// uint128 is a big-endian 128-bit unsigned integer, used to walk IPv6
// address space without math/big.
type uint128 struct {
	hi uint64
	lo uint64
}

func uint128From16(addr [16]byte) uint128 {
	return uint128{
		hi: binary.BigEndian.Uint64(addr[:8]),
		lo: binary.BigEndian.Uint64(addr[8:]),
	}
}

func (u uint128) to16() [16]byte {
	var addr [16]byte
	binary.BigEndian.PutUint64(addr[:8], u.hi)
	binary.BigEndian.PutUint64(addr[8:], u.lo)
	return addr
}

func (u uint128) compare(other uint128) int {
	switch {
	case u.hi < other.hi:
		return -1
	case u.hi > other.hi:
		return 1
	case u.lo < other.lo:
		return -1
	case u.lo > other.lo:
		return 1
	default:
		return 0
	}
}

func (u uint128) isMax() bool {
	return u.hi == ^uint64(0) && u.lo == ^uint64(0)
}

func (u uint128) sub(other uint128) uint128 {
	lo, borrow := bits.Sub64(u.lo, other.lo, 0)
	hi, _ := bits.Sub64(u.hi, other.hi, borrow)
	return uint128{hi: hi, lo: lo}
}

func (u uint128) addOne() uint128 {
	lo, carry := bits.Add64(u.lo, 1, 0)
	hi, _ := bits.Add64(u.hi, 0, carry)
	return uint128{hi: hi, lo: lo}
}

// addBit adds 1<<n and reports whether the sum wrapped past 2^128-1.
func (u uint128) addBit(n int) (uint128, bool) {
	if n >= 128 {
		return uint128{}, true
	}
	var lo, hi, carry uint64
	if n < 64 {
		lo, carry = bits.Add64(u.lo, uint64(1)<<n, 0)
		hi, carry = bits.Add64(u.hi, 0, carry)
	} else {
		lo = u.lo
		hi, carry = bits.Add64(u.hi, uint64(1)<<(n-64), 0)
	}
	return uint128{hi: hi, lo: lo}, carry != 0
}

// trailingZeros is capped at 128 for the all-zero value.
func (u uint128) trailingZeros() int {
	if u.lo != 0 {
		return bits.TrailingZeros64(u.lo)
	}
	if u.hi != 0 {
		return 64 + bits.TrailingZeros64(u.hi)
	}
	return 128
}

func (u uint128) bitLen() int {
	if u.hi != 0 {
		return 64 + bits.Len64(u.hi)
	}
	return bits.Len64(u.lo)
}
