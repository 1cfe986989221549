package twocall

import (
	"testing"

	"github.com/banshee-data/xrstate/internal/xrerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnumerate_TwoCallIdiom(t *testing.T) {
	t.Parallel()

	items := []float64{60, 72, 80, 90, 120}

	t.Run("capacity zero reports count without writing", func(t *testing.T) {
		t.Parallel()
		buf := []float64{-1, -1, -1}
		n, err := Enumerate(0, buf, items)
		require.NoError(t, err)
		assert.Equal(t, 5, n)
		assert.Equal(t, []float64{-1, -1, -1}, buf)
	})

	t.Run("short capacity is SizeInsufficient with true count", func(t *testing.T) {
		t.Parallel()
		buf := make([]float64, 3)
		n, err := Enumerate(3, buf, items)
		require.Error(t, err)
		assert.Equal(t, xrerr.SizeInsufficient, xrerr.KindOf(err))
		assert.Equal(t, 5, n)
		assert.Equal(t, []float64{0, 0, 0}, buf)

		var xe *xrerr.Error
		require.ErrorAs(t, err, &xe)
		assert.Equal(t, 5, xe.Required)
	})

	t.Run("sufficient capacity writes exactly count", func(t *testing.T) {
		t.Parallel()
		buf := make([]float64, 6)
		buf[5] = -7
		n, err := Enumerate(6, buf, items)
		require.NoError(t, err)
		assert.Equal(t, 5, n)
		assert.Equal(t, items, buf[:5])
		assert.Equal(t, -7.0, buf[5], "element past count must be untouched")
	})
}

func TestEnumerate_BufferShorterThanCapacity(t *testing.T) {
	t.Parallel()

	_, err := Enumerate(4, make([]int, 2), []int{1})
	assert.Equal(t, xrerr.ArgumentInvalid, xrerr.KindOf(err))
}

func TestEnumerateFunc_FillOnlyOnWrite(t *testing.T) {
	t.Parallel()

	calls := 0
	fill := func(i int) int { calls++; return i * i }

	n, err := EnumerateFunc(0, nil, 4, fill)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Zero(t, calls)

	_, err = EnumerateFunc(2, make([]int, 2), 4, fill)
	require.Error(t, err)
	assert.Zero(t, calls)

	buf := make([]int, 4)
	_, err = EnumerateFunc(4, buf, 4, fill)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 4, 9}, buf)
	assert.Equal(t, 4, calls)
}

func TestSlice(t *testing.T) {
	t.Parallel()

	items := []string{"a", "b", "c"}
	got, err := Slice(func(capacity int, buf []string) (int, error) {
		return Enumerate(capacity, buf, items)
	})
	require.NoError(t, err)
	assert.Equal(t, items, got)

	empty, err := Slice(func(capacity int, buf []string) (int, error) {
		return Enumerate(capacity, buf, nil)
	})
	require.NoError(t, err)
	assert.Empty(t, empty)
}
