package molecule

import "math/bits"

// Tversky returns the Tversky similarity of two sparse fingerprints:
//
//	c / (c + alpha*(|a|-c) + beta*(|b|-c))
//
// where c is the size of the intersection. The result lies in [0, 1] for
// non-negative weights. Two empty fingerprints have similarity 0.
func Tversky(a, b *SparseFingerprint, alpha, beta float64) float64 {
	c := float64(a.IntersectionCount(b))
	denom := c + alpha*(float64(a.Len())-c) + beta*(float64(b.Len())-c)
	if denom <= 0 {
		return 0
	}
	return c / denom
}

// Tanimoto is Tversky with alpha = beta = 1.
func Tanimoto(a, b *SparseFingerprint) float64 {
	return Tversky(a, b, 1, 1)
}

// BitTanimoto returns the Tanimoto similarity of two equal-length bit vectors.
// Vectors of different lengths, or two empty vectors, have similarity 0.
func BitTanimoto(a, b *BitVector) float64 {
	if a.n != b.n {
		return 0
	}
	inter, union := 0, 0
	for i := range a.words {
		inter += bits.OnesCount64(a.words[i] & b.words[i])
		union += bits.OnesCount64(a.words[i] | b.words[i])
	}
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
