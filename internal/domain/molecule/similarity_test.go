package molecule

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTversky(t *testing.T) {
	a := NewSparseFingerprint([]uint32{1, 2, 3, 4})
	b := NewSparseFingerprint([]uint32{1, 2})

	assert.InDelta(t, 0.5, Tversky(a, b, 1, 1), 1e-12)
	assert.InDelta(t, 0.5, Tversky(a, b, 1, 0), 1e-12)
	assert.InDelta(t, 1.0, Tversky(a, b, 0, 1), 1e-12)
	assert.InDelta(t, 2.0/3.0, Tversky(a, b, 0.5, 0.5), 1e-12)
}

func TestTversky_EmptyFingerprints(t *testing.T) {
	empty := NewSparseFingerprint(nil)
	assert.Equal(t, 0.0, Tanimoto(empty, empty))
	assert.Equal(t, 0.0, Tanimoto(empty, NewSparseFingerprint([]uint32{5})))
}

func TestTanimoto_Identity(t *testing.T) {
	ref := MorganFingerprint(mustParse(t, celecoxib), 2, InvariantsFeature)
	assert.Equal(t, 1.0, Tanimoto(ref, ref))
}

func TestTanimoto_Bounds(t *testing.T) {
	ref := MorganFingerprint(mustParse(t, celecoxib), 2, InvariantsFeature)
	for _, smi := range []string{"CCO", "c1ccccc1", "CS(=O)(=O)N", "Cc1ccc(cc1)c2cc[nH]n2"} {
		fp := MorganFingerprint(mustParse(t, smi), 2, InvariantsFeature)
		sim := Tanimoto(ref, fp)
		assert.GreaterOrEqual(t, sim, 0.0, smi)
		assert.Less(t, sim, 1.0, smi)
	}
}

func TestBitTanimoto(t *testing.T) {
	a := NewBitVector(16)
	b := NewBitVector(16)
	for i := 0; i < 8; i++ {
		a.Set(i)
		b.Set(i)
	}
	for i := 8; i < 16; i++ {
		b.Set(i)
	}
	assert.InDelta(t, 0.5, BitTanimoto(a, b), 1e-12)
	assert.Equal(t, 0.0, BitTanimoto(a, NewBitVector(8)))
	assert.Equal(t, 0.0, BitTanimoto(NewBitVector(8), NewBitVector(8)))
}
