package car

import (
	"io"

	"github.com/ipld/go-carstream/internal/bytesource"
)

// ChunkSource supplies consecutive chunks of a CAR stream, returning
// io.EOF once the stream is exhausted. Zero-length chunks are permitted
// and are simply re-polled. Chunks handed to the decoder must not be
// mutated afterwards; decoded blocks may alias them.
type ChunkSource func() ([]byte, error)

// sourceFromBytes wraps an in-memory archive. Decoded blocks alias data
// for their whole lifetime.
func sourceFromBytes(data []byte) bytesource.Source {
	return bytesource.FromSlice(data)
}

func sourceFromChunks(next ChunkSource) (bytesource.Source, error) {
	if next == nil {
		return nil, ErrInvalidArgument
	}
	return bytesource.FromChunks(bytesource.PullFunc(next)), nil
}

func sourceFromStream(r io.Reader) (bytesource.Source, error) {
	if r == nil {
		return nil, ErrInvalidArgument
	}
	return bytesource.FromReader(r), nil
}
