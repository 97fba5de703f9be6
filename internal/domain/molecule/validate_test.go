package molecule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartition(t *testing.T) {
	b := Partition(NewToolkit(), []string{"C", "not_a_smiles", "S"})

	require.Equal(t, 2, b.Len())
	assert.Equal(t, 3, b.Size())
	assert.Equal(t, []int{0, 2}, b.Positions)
	assert.Equal(t, []bool{true, false, true}, b.Valid)
	assert.False(t, b.Molecules[0].HasElement(AtomicNumberSulphur))
	assert.True(t, b.Molecules[1].HasElement(AtomicNumberSulphur))
}

func TestPartition_Empty(t *testing.T) {
	b := Partition(NewToolkit(), nil)
	assert.Equal(t, 0, b.Len())
	assert.Equal(t, 0, b.Size())
}

func TestPartition_AllInvalid(t *testing.T) {
	b := Partition(NewToolkit(), []string{"xyz", "C(", "c1cc"})
	assert.Equal(t, 0, b.Len())
	assert.Equal(t, []bool{false, false, false}, b.Valid)
}
