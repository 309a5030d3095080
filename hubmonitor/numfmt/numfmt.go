// Package numfmt formats sensor values as fixed two-decimal text without
// touching the heap. It follows the strconv Append convention so callers can
// reuse one preallocated buffer for every value drawn in a frame.
package numfmt

import "strconv"

// MaxLen is the widest result for any float32 that fits in an int32,
// sign and two decimals included.
const MaxLen = 1 + 10 + 1 + 2

// AppendFixed2 appends v to dst with exactly two decimal places and returns
// the extended buffer.
//
// The integer part is truncated toward zero and the two decimals are the
// truncated hundredths of the remainder, so 1.999 becomes "1.99", not "2.00".
// A '-' is written only when v < 0, and the integer part is always present:
// -0.5 becomes "-0.50".
//
// Values outside the int32 range are not supported.
func AppendFixed2(dst []byte, v float32) []byte {
	ip := int32(v)
	frac := v - float32(ip)
	if frac < 0 {
		frac = -frac
	}
	hundredths := int32(frac * 100)
	if hundredths > 99 {
		// frac*100 can round up to 100 for remainders just below 1.
		hundredths = 99
	}

	if v < 0 {
		dst = append(dst, '-')
	}
	mag := int64(ip)
	if mag < 0 {
		mag = -mag
	}
	dst = strconv.AppendUint(dst, uint64(mag), 10)
	return append(dst, '.', byte('0'+hundredths/10), byte('0'+hundredths%10))
}

// Fixed2 formats v into buf and returns the filled prefix. The result is only
// valid until buf is written again.
func Fixed2(buf *[MaxLen]byte, v float32) []byte {
	return AppendFixed2(buf[:0], v)
}
