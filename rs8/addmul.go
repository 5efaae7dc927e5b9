package rs8

import (
	"github.com/templexxx/cpufeat"
	"github.com/templexxx/xor"
)

// simdAddMulThreshold is the minimum packet length below which the
// scalar loop's lower fixed overhead beats dispatching into the gather
// + xor.Bytes path.
const simdAddMulThreshold = 64

var hasSIMD = cpufeat.X86.HasSSE2

// addMul computes dst[i] ^= gfMul[c][src[i]] for i in
// 0..min(len(dst), len(src))-1.
// c == 0 is a fast-path no-op. The SIMD path gathers the multiplied
// row into a scratch buffer and XORs it into dst with
// templexxx/xor's accelerated routine; it is always bit-identical to
// the scalar path below.
func (t *gfTables) addMul(dst, src []byte, c byte, scratch []byte) {
	if c == 0 {
		return
	}
	n := len(dst)
	if n > len(src) {
		n = len(src)
	}

	if hasSIMD && n >= simdAddMulThreshold && len(scratch) >= n {
		row := &t.mul[c]
		gathered := scratch[:n]
		for i := 0; i < n; i++ {
			gathered[i] = row[src[i]]
		}
		xor.Bytes(dst[:n], dst[:n], gathered)
		return
	}

	row := &t.mul[c]
	for i := 0; i < n; i++ {
		dst[i] ^= row[src[i]]
	}
}
