package car_test

import (
	"bytes"
	"encoding/hex"
	"io"
	"testing"

	blocks "github.com/ipfs/go-block-format"
	cid "github.com/ipfs/go-cid"
	"github.com/ipfs/go-merkledag"
	"github.com/stretchr/testify/require"

	car "github.com/ipld/go-carstream"
)

// fixture is a clean single-block, single-root CAR
const fixtureHex = "3aa265726f6f747381d82a58250001711220151fe9e73c6267a7060c6f6c4cca943c236f4b196723489608edb42a8b8fa80b6776657273696f6e012c01711220151fe9e73c6267a7060c6f6c4cca943c236f4b196723489608edb42a8b8fa80ba165646f646779f5"

const fixtureBlockCid = "bafyreiavd7u6opdcm6tqmddpnrgmvfb4enxuwglhenejmchnwqvixd5ibm"

func fixtureBytes(t *testing.T) []byte {
	t.Helper()
	data, err := hex.DecodeString(fixtureHex)
	require.NoError(t, err)
	return data
}

// testBlocks returns the three-block corpus used throughout: raw-codec
// sha2-256 blocks with payloads [0 1 2], [] and [3 4 5].
func testBlocks(t *testing.T) []blocks.Block {
	t.Helper()
	return []blocks.Block{
		merkledag.NewRawNode([]byte{0, 1, 2}),
		merkledag.NewRawNode([]byte{}),
		merkledag.NewRawNode([]byte{3, 4, 5}),
	}
}

// buildV1 encodes roots and blks as a CARv1 byte slice.
func buildV1(t *testing.T, roots []cid.Cid, blks []blocks.Block) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := car.NewWriterTo(roots, &buf)
	for _, blk := range blks {
		require.NoError(t, w.Put(blk))
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

// buildV2 wraps a CARv1 byte slice in a CARv2 container, inserting
// padding zero bytes between the fixed header and the payload.
func buildV2(t *testing.T, v1 []byte, padding int) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.Write(car.Pragma)
	h := car.V2Header{
		DataOffset: uint64(car.PragmaSize + car.V2HeaderSize + padding),
		DataSize:   uint64(len(v1)),
	}
	_, err := h.WriteTo(&buf)
	require.NoError(t, err)
	buf.Write(make([]byte, padding))
	buf.Write(v1)
	return buf.Bytes()
}

// chunked delivers data in chunks of the given size, optionally
// injecting a zero-length chunk before each real one.
func chunked(data []byte, size int, injectEmpty bool) car.ChunkSource {
	off := 0
	pending := injectEmpty
	return func() ([]byte, error) {
		if pending {
			pending = false
			return nil, nil
		}
		if off >= len(data) {
			return nil, io.EOF
		}
		end := off + size
		if end > len(data) {
			end = len(data)
		}
		c := data[off:end]
		off = end
		pending = injectEmpty
		return c, nil
	}
}

func TestHeaderRoundtrip(t *testing.T) {
	blks := testBlocks(t)
	h := &car.CarHeader{Roots: []cid.Cid{blks[0].Cid(), blks[2].Cid()}, Version: 1}

	var buf bytes.Buffer
	require.NoError(t, car.WriteHeader(h, &buf))

	size, err := car.HeaderSize(h)
	require.NoError(t, err)
	require.EqualValues(t, buf.Len(), size)

	got, err := car.ReadHeader(bytes.NewReader(buf.Bytes()), car.DefaultMaxAllowedHeaderSize)
	require.NoError(t, err)
	require.EqualValues(t, 1, got.Version)
	require.True(t, h.Matches(*got))
}

func TestReadVersion(t *testing.T) {
	t.Run("V1", func(t *testing.T) {
		version, err := car.ReadVersion(bytes.NewReader(fixtureBytes(t)))
		require.NoError(t, err)
		require.EqualValues(t, 1, version)
	})

	t.Run("V2Pragma", func(t *testing.T) {
		version, err := car.ReadVersion(bytes.NewReader(car.Pragma))
		require.NoError(t, err)
		require.EqualValues(t, 2, version)
	})
}

func TestHeaderErrors(t *testing.T) {
	t.Run("ZeroLength", func(t *testing.T) {
		_, err := car.ReadHeader(bytes.NewReader([]byte{0x00}), car.DefaultMaxAllowedHeaderSize)
		require.ErrorIs(t, err, car.ErrHeaderZeroLength)
	})

	t.Run("TooLarge", func(t *testing.T) {
		_, err := car.ReadHeader(bytes.NewReader(fixtureBytes(t)), 10)
		require.ErrorIs(t, err, car.ErrHeaderTooLarge)
	})

	t.Run("Empty", func(t *testing.T) {
		_, err := car.ReadHeader(bytes.NewReader(nil), car.DefaultMaxAllowedHeaderSize)
		require.ErrorIs(t, err, io.EOF)
	})

	t.Run("NotCbor", func(t *testing.T) {
		_, err := car.ReadHeader(bytes.NewReader([]byte{0x03, 0xff, 0xff, 0xff}), car.DefaultMaxAllowedHeaderSize)
		require.ErrorIs(t, err, car.ErrMalformedHeader)
	})

	t.Run("UnsupportedVersion", func(t *testing.T) {
		h := &car.CarHeader{Roots: []cid.Cid{}, Version: 3}
		var buf bytes.Buffer
		require.NoError(t, car.WriteHeader(h, &buf))
		_, err := car.NewReaderFromBytes(buf.Bytes())
		require.ErrorIs(t, err, car.ErrUnsupportedVersion)
	})
}

func TestEOFHandling(t *testing.T) {
	fixture := fixtureBytes(t)

	load := func(t *testing.T, byts []byte) *car.BlockIterator {
		it, err := car.NewBlockIterator(byts)
		require.NoError(t, err)

		blk, err := it.Next()
		require.NoError(t, err)
		require.Equal(t, fixtureBlockCid, blk.Cid().String())
		return it
	}

	t.Run("CleanEOF", func(t *testing.T) {
		it := load(t, fixture)
		blk, err := it.Next()
		require.ErrorIs(t, err, io.EOF)
		require.Nil(t, blk)
	})

	t.Run("BadVarint", func(t *testing.T) {
		it := load(t, append(fixture, 160))
		blk, err := it.Next()
		require.ErrorIs(t, err, io.ErrUnexpectedEOF)
		require.Nil(t, blk)
	})

	t.Run("TruncatedSection", func(t *testing.T) {
		it := load(t, append(fixture, 0x10, 0x01, 0x55))
		blk, err := it.Next()
		require.ErrorIs(t, err, io.ErrUnexpectedEOF)
		require.Nil(t, blk)
	})
}

func TestMatches(t *testing.T) {
	blks := testBlocks(t)
	a, b := blks[0].Cid(), blks[2].Cid()

	oneRoot := car.CarHeader{Roots: []cid.Cid{a}, Version: 1}
	require.True(t, oneRoot.Matches(car.CarHeader{Roots: []cid.Cid{a}, Version: 1}))
	require.False(t, oneRoot.Matches(car.CarHeader{Roots: []cid.Cid{a}, Version: 2}))
	require.False(t, oneRoot.Matches(car.CarHeader{Roots: []cid.Cid{b}, Version: 1}))
	require.False(t, oneRoot.Matches(car.CarHeader{Roots: []cid.Cid{a, b}, Version: 1}))

	twoRoots := car.CarHeader{Roots: []cid.Cid{a, b}, Version: 1}
	require.True(t, twoRoots.Matches(car.CarHeader{Roots: []cid.Cid{b, a}, Version: 1}))
}
