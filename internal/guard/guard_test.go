package guard

import (
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunPassesThroughErrors(t *testing.T) {
	assert.NoError(t, Run(func() error { return nil }))

	want := errors.New("boom")
	err := Run(func() error { return want })
	assert.True(t, errors.Is(err, want))

	_, isPanic := AsPanic(err)
	assert.False(t, isPanic)
}

func TestRunRecoversPanic(t *testing.T) {
	err := Run(func() error {
		panic("kaboom")
	})
	require.Error(t, err)

	pe, ok := AsPanic(err)
	require.True(t, ok)
	assert.Equal(t, "kaboom", pe.Message())
	assert.NotEmpty(t, pe.Stack)
	assert.True(t, strings.Contains(pe.Location, "guard_test.go"), "location %q", pe.Location)
	assert.Contains(t, pe.Error(), "kaboom")
}

func TestRunRecoversRuntimeError(t *testing.T) {
	err := Run(func() error {
		var m map[string]int
		m["x"] = 1
		return nil
	})
	pe, ok := AsPanic(err)
	require.True(t, ok)
	assert.Contains(t, pe.Location, "guard_test.go")
}

func TestDo(t *testing.T) {
	v, err := Do(func() (int, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	_, err = Do(func() (int, error) { panic(errors.New("inner")) })
	pe, ok := AsPanic(err)
	require.True(t, ok)
	assert.Equal(t, "inner", pe.Message())
}

func TestAsPanicThroughWrap(t *testing.T) {
	err := Run(func() error { panic(1) })
	wrapped := errors.Wrap(err, "scoring chunk")
	_, ok := AsPanic(wrapped)
	assert.True(t, ok)
}
