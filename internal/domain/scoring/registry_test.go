package scoring

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/molscore/internal/testutil"
	"github.com/turtacn/molscore/pkg/errors"
)

func TestRegistry_Names(t *testing.T) {
	r := NewDefaultRegistry(Dependencies{})
	assert.Equal(t, []string{NameNoSulphur, NameTanimoto, NameActivityModel}, r.Names())
	assert.True(t, r.Has(NameTanimoto))
	assert.False(t, r.Has("qed"))
}

func TestRegistry_GetBuiltins(t *testing.T) {
	r := NewDefaultRegistry(Dependencies{})

	s, err := r.Get(context.Background(), NameNoSulphur, nil)
	require.NoError(t, err)
	assert.Equal(t, NameNoSulphur, s.Name())

	s, err = r.Get(context.Background(), NameTanimoto, Options{OptionK: 0.5})
	require.NoError(t, err)
	assert.Equal(t, NameTanimoto, s.Name())
}

func TestRegistry_UnknownNameLogsValidNames(t *testing.T) {
	logger := testutil.NewMockLogger()
	r := NewDefaultRegistry(Dependencies{Logger: logger})

	s, err := r.Get(context.Background(), "qed", nil)
	assert.Nil(t, s)
	require.Error(t, err)
	assert.True(t, errors.IsUnknownScorer(err))
	assert.Contains(t, err.Error(), "no_sulphur, tanimoto, activity_model")

	errs := logger.MessagesAt("error")
	require.Len(t, errs, 1)
	valid, ok := errs[0].Field("valid")
	require.True(t, ok)
	assert.Equal(t, []string{NameNoSulphur, NameTanimoto, NameActivityModel}, valid)
}

func TestRegistry_NamesAreCaseSensitive(t *testing.T) {
	r := NewDefaultRegistry(Dependencies{})
	_, err := r.Get(context.Background(), "No_Sulphur", nil)
	assert.True(t, errors.IsUnknownScorer(err))
}

func TestRegistry_RegisterVariant(t *testing.T) {
	r := NewDefaultRegistry(Dependencies{})
	strict := func(ctx context.Context, opts Options, deps Dependencies) (Scorer, error) {
		return NewTanimoto(ctx, Options{OptionK: 1.0}, deps)
	}
	require.NoError(t, r.Register("tanimoto_strict", strict))
	assert.Equal(t, "tanimoto_strict", r.Names()[3])

	s, err := r.Get(context.Background(), "tanimoto_strict", nil)
	require.NoError(t, err)
	scores, err := s.Score(context.Background(), []string{ReferenceSMILES})
	require.NoError(t, err)
	assert.Equal(t, []float32{1}, scores)

	err = r.Register(NameTanimoto, strict)
	assert.True(t, errors.IsCode(err, errors.ErrCodeScorerConfigInvalid))
	assert.Error(t, r.Register("", strict))
	assert.Error(t, r.Register("x", nil))
	assert.Panics(t, func() { r.MustRegister(NameTanimoto, strict) })
}

func TestGetScoringFunction(t *testing.T) {
	s, err := GetScoringFunction(context.Background(), NameNoSulphur, nil)
	require.NoError(t, err)
	scores, err := s.Score(context.Background(), []string{"C", "not_a_smiles", "S"})
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0, -1}, scores)

	_, err = GetScoringFunction(context.Background(), "unknown", nil)
	assert.True(t, errors.IsUnknownScorer(err))
	assert.Same(t, DefaultRegistry(), DefaultRegistry())
}
