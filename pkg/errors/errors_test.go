package errors_test

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/turtacn/molscore/pkg/errors"
)

func TestNew_FieldsAreSetCorrectly(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		code    errors.ErrorCode
		message string
	}{
		{"internal", errors.ErrCodeInternal, "unexpected failure"},
		{"invalid param", errors.ErrCodeInvalidParam, "k must be in (0, 1]"},
		{"scorer not found", errors.ErrCodeScorerNotFound, "unknown scorer"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			ae := errors.New(tc.code, tc.message)
			require.NotNil(t, ae)
			assert.Equal(t, tc.code, ae.Code)
			assert.Equal(t, tc.message, ae.Message)
			assert.Empty(t, ae.Detail)
			assert.Nil(t, ae.Cause)
		})
	}
}

func TestAppError_ErrorFormat(t *testing.T) {
	t.Parallel()

	ae := errors.New(errors.ErrCodeInvalidParam, "bad option").
		WithDetail("k=0").
		WithCause(fmt.Errorf("out of range"))
	assert.Equal(t, "[COMMON_002] bad option: k=0: out of range", ae.Error())
}

func TestWrap_NilReturnsNil(t *testing.T) {
	t.Parallel()
	assert.Nil(t, errors.Wrap(nil, errors.ErrCodeInternal, "x"))
}

func TestWrap_PreservesCodeWhenUnknown(t *testing.T) {
	t.Parallel()

	inner := errors.New(errors.ErrCodeModelDecodeFailed, "bad artifact")
	outer := errors.Wrap(inner, errors.CodeUnknown, "loading classifier")
	assert.Equal(t, errors.ErrCodeModelDecodeFailed, outer.Code)
	assert.True(t, stderrors.Is(outer, inner))
}

func TestIsCode_WalksChain(t *testing.T) {
	t.Parallel()

	root := errors.ResourceUnavailable(fmt.Errorf("no such file"), "data/clf.json")
	wrapped := fmt.Errorf("constructing activity_model: %w", root)

	assert.True(t, errors.IsResourceUnavailable(wrapped))
	assert.False(t, errors.IsUnknownScorer(wrapped))
	assert.Equal(t, errors.ErrCodeResourceUnavailable, errors.GetCode(wrapped))
}

func TestGetCode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, errors.CodeOK, errors.GetCode(nil))
	assert.Equal(t, errors.CodeUnknown, errors.GetCode(fmt.Errorf("plain")))
}

func TestUnknownScorer_ListsValidNames(t *testing.T) {
	t.Parallel()

	ae := errors.UnknownScorer("qed", []string{"no_sulphur", "tanimoto", "activity_model"})
	assert.Equal(t, errors.ErrCodeScorerNotFound, ae.Code)
	assert.Contains(t, ae.Message, `"qed"`)
	assert.Equal(t, "scoring function must be one of [no_sulphur, tanimoto, activity_model]", ae.Detail)
}

func TestWithDetail_DoesNotMutateReceiver(t *testing.T) {
	t.Parallel()

	base := errors.NotFound("scorer")
	derived := base.WithDetail("tanimoto")
	assert.Empty(t, base.Detail)
	assert.Equal(t, "tanimoto", derived.Detail)

	var nilErr *errors.AppError
	assert.Nil(t, nilErr.WithDetail("x"))
}

func TestHTTPStatusForCode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, http.StatusNotFound, errors.HTTPStatusForCode(errors.ErrCodeScorerNotFound))
	assert.Equal(t, http.StatusServiceUnavailable, errors.HTTPStatusForCode(errors.ErrCodeResourceUnavailable))
	assert.Equal(t, http.StatusInternalServerError, errors.HTTPStatusForCode("NOPE_999"))
	assert.True(t, errors.IsClientError(errors.ErrCodeInvalidParam))
	assert.False(t, errors.IsClientError(errors.ErrCodeInternal))
}

func TestModuleForCode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "SCORE", errors.ModuleForCode(errors.ErrCodeScorerNotFound))
	assert.Equal(t, "UNKNOWN", errors.ModuleForCode("NOUNDERSCORE"))
}
