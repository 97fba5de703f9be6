package molecule

import (
	"math/bits"
	"sort"
)

// ─────────────────────────────────────────────────────────────────────────────
// SparseFingerprint
// ─────────────────────────────────────────────────────────────────────────────

// SparseFingerprint is an unfolded, presence-only circular fingerprint: the
// set of environment identifiers found in a molecule. Identifiers are kept
// sorted so set operations run as linear merges.
type SparseFingerprint struct {
	ids []uint32
}

// NewSparseFingerprint builds a fingerprint from identifiers in any order.
// Duplicates are removed.
func NewSparseFingerprint(ids []uint32) *SparseFingerprint {
	sorted := make([]uint32, len(ids))
	copy(sorted, ids)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	out := sorted[:0]
	for i, id := range sorted {
		if i == 0 || id != sorted[i-1] {
			out = append(out, id)
		}
	}
	return &SparseFingerprint{ids: out}
}

// Len returns the number of distinct identifiers.
func (f *SparseFingerprint) Len() int {
	if f == nil {
		return 0
	}
	return len(f.ids)
}

// IDs returns a copy of the sorted identifiers.
func (f *SparseFingerprint) IDs() []uint32 {
	if f == nil {
		return nil
	}
	out := make([]uint32, len(f.ids))
	copy(out, f.ids)
	return out
}

// Contains reports whether id is present.
func (f *SparseFingerprint) Contains(id uint32) bool {
	if f == nil {
		return false
	}
	i := sort.Search(len(f.ids), func(i int) bool { return f.ids[i] >= id })
	return i < len(f.ids) && f.ids[i] == id
}

// IntersectionCount returns the number of identifiers present in both.
func (f *SparseFingerprint) IntersectionCount(other *SparseFingerprint) int {
	if f == nil || other == nil {
		return 0
	}
	a, b := f.ids, other.ids
	i, j, n := 0, 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			n++
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	return n
}

// Fold maps the identifiers onto a bit vector of nBits bits. nBits <= 0
// yields an empty vector.
func (f *SparseFingerprint) Fold(nBits int) *BitVector {
	bv := NewBitVector(nBits)
	if f == nil || bv.n == 0 {
		return bv
	}
	for _, id := range f.ids {
		bv.Set(int(id % uint32(nBits)))
	}
	return bv
}

// ─────────────────────────────────────────────────────────────────────────────
// BitVector
// ─────────────────────────────────────────────────────────────────────────────

// BitVector is a fixed-length bit set.
type BitVector struct {
	n     int
	words []uint64
}

// NewBitVector returns an all-zero vector of n bits.
func NewBitVector(n int) *BitVector {
	if n < 0 {
		n = 0
	}
	return &BitVector{n: n, words: make([]uint64, (n+63)/64)}
}

// Len returns the vector length in bits.
func (v *BitVector) Len() int { return v.n }

// Set turns bit i on. Out-of-range indices are ignored.
func (v *BitVector) Set(i int) {
	if i < 0 || i >= v.n {
		return
	}
	v.words[i/64] |= 1 << uint(i%64)
}

// Get reports whether bit i is on.
func (v *BitVector) Get(i int) bool {
	if i < 0 || i >= v.n {
		return false
	}
	return v.words[i/64]&(1<<uint(i%64)) != 0
}

// Count returns the number of on bits.
func (v *BitVector) Count() int {
	c := 0
	for _, w := range v.words {
		c += bits.OnesCount64(w)
	}
	return c
}

// OnBits returns the indices of the on bits in ascending order.
func (v *BitVector) OnBits() []int {
	out := make([]int, 0, v.Count())
	for wi, w := range v.words {
		for w != 0 {
			tz := bits.TrailingZeros64(w)
			out = append(out, wi*64+tz)
			w &= w - 1
		}
	}
	return out
}

// Float32s expands the vector into a dense 0/1 feature slice.
func (v *BitVector) Float32s() []float32 {
	out := make([]float32, v.n)
	for _, i := range v.OnBits() {
		out[i] = 1
	}
	return out
}
