package bytesource

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func chunkPuller(chunks [][]byte) PullFunc {
	i := 0
	return func() ([]byte, error) {
		if i >= len(chunks) {
			return nil, io.EOF
		}
		c := chunks[i]
		i++
		return c, nil
	}
}

func TestSliceSource(t *testing.T) {
	src := FromSlice([]byte{1, 2, 3, 4, 5})

	p, err := src.Upto(2)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2}, p)
	require.EqualValues(t, 0, src.Pos())

	b, err := src.Exactly(3)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, b)
	require.EqualValues(t, 3, src.Pos())

	p, err = src.Upto(10)
	require.NoError(t, err)
	require.Equal(t, []byte{4, 5}, p)

	require.NoError(t, src.Skip(1))

	_, err = src.Exactly(2)
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)

	require.NoError(t, src.Skip(1))
	_, err = src.Upto(1)
	require.ErrorIs(t, err, io.EOF)
	require.EqualValues(t, 5, src.Pos())
}

func TestChunkSource(t *testing.T) {
	t.Run("SingleBufferBorrow", func(t *testing.T) {
		src := FromChunks(chunkPuller([][]byte{{1, 2, 3}, {4, 5}}))
		b, err := src.Exactly(2)
		require.NoError(t, err)
		require.Equal(t, []byte{1, 2}, b)
		require.EqualValues(t, 2, src.Pos())
	})

	t.Run("CrossBoundaryCopy", func(t *testing.T) {
		src := FromChunks(chunkPuller([][]byte{{1, 2}, {3}, {4, 5}}))
		b, err := src.Exactly(4)
		require.NoError(t, err)
		require.Equal(t, []byte{1, 2, 3, 4}, b)

		b, err = src.Exactly(1)
		require.NoError(t, err)
		require.Equal(t, []byte{5}, b)

		_, err = src.Upto(1)
		require.ErrorIs(t, err, io.EOF)
	})

	t.Run("UptoDoesNotConsume", func(t *testing.T) {
		src := FromChunks(chunkPuller([][]byte{{1}, {2}, {3}}))
		p, err := src.Upto(3)
		require.NoError(t, err)
		require.Equal(t, []byte{1, 2, 3}, p)
		require.EqualValues(t, 0, src.Pos())

		b, err := src.Exactly(3)
		require.NoError(t, err)
		require.Equal(t, []byte{1, 2, 3}, b)
	})

	t.Run("ZeroLengthChunks", func(t *testing.T) {
		src := FromChunks(chunkPuller([][]byte{{}, {1, 2}, {}, {}, {3}}))
		b, err := src.Exactly(3)
		require.NoError(t, err)
		require.Equal(t, []byte{1, 2, 3}, b)
	})

	t.Run("Skip", func(t *testing.T) {
		src := FromChunks(chunkPuller([][]byte{{1, 2}, {3, 4}, {5}}))
		require.NoError(t, src.Skip(3))
		require.EqualValues(t, 3, src.Pos())
		b, err := src.Exactly(2)
		require.NoError(t, err)
		require.Equal(t, []byte{4, 5}, b)

		require.ErrorIs(t, src.Skip(1), io.ErrUnexpectedEOF)
	})

	t.Run("ExactlyZero", func(t *testing.T) {
		src := FromChunks(chunkPuller([][]byte{{1}}))
		require.NoError(t, src.Skip(1))
		b, err := src.Exactly(0)
		require.NoError(t, err)
		require.Empty(t, b)
	})

	t.Run("ShortExactly", func(t *testing.T) {
		src := FromChunks(chunkPuller([][]byte{{1, 2}}))
		_, err := src.Exactly(3)
		require.ErrorIs(t, err, io.ErrUnexpectedEOF)
	})
}

func TestFromReader(t *testing.T) {
	src := FromReader(bytes.NewReader([]byte{1, 2, 3, 4}))
	b, err := src.Exactly(4)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3, 4}, b)
	_, err = src.Upto(1)
	require.ErrorIs(t, err, io.EOF)
}

func TestLimit(t *testing.T) {
	inner := FromSlice([]byte{1, 2, 3, 4, 5})
	src := Limit(inner, 3)

	b, err := src.Exactly(2)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2}, b)

	// beyond the bound
	_, err = src.Exactly(2)
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)

	require.NoError(t, src.Skip(1))
	_, err = src.Upto(1)
	require.ErrorIs(t, err, io.EOF)

	// position is still absolute over the underlying source
	require.EqualValues(t, 3, src.Pos())
}
