package car

import (
	"io"
	"iter"

	cid "github.com/ipfs/go-cid"

	"github.com/ipld/go-carstream/internal/bytesource"
)

// BlockMetadata locates a block's section within a CAR stream.
//
// Offset is the position where the section begins, that is, the start of
// the length prefix (varint) prior to the CID and the block data;
// Length is the full framed length including that prefix, so the slice
// [Offset, Offset+Length) re-parses as a complete section. BlockOffset
// and BlockLength delimit the payload bytes within it.
//
// For a CARv2 container all offsets are measured from the beginning of
// the container stream, not the embedded CARv1 payload, so they can be
// used to seek or mmap the source directly.
type BlockMetadata struct {
	cid.Cid
	Offset      uint64
	Length      uint64
	BlockOffset uint64
	BlockLength uint64
}

// Indexer is a single-pass streaming decoder yielding the framing
// offsets of each section without materialising payload bytes. It is
// the passive counterpart of BlockIterator, intended for building
// external indexes over a CAR kept elsewhere.
type Indexer struct {
	// Version is the detected version of the CAR payload.
	Version uint64
	// Roots are the root CIDs of the CAR payload. May be empty.
	Roots []cid.Cid

	d     *decoder
	state iterState
	err   error
}

// NewIndexer begins indexing an in-memory archive.
func NewIndexer(data []byte, opts ...Option) (*Indexer, error) {
	return newIndexer(sourceFromBytes(data), ApplyOptions(opts...))
}

// NewIndexerFromChunks begins indexing a pulled chunk stream.
func NewIndexerFromChunks(next ChunkSource, opts ...Option) (*Indexer, error) {
	src, err := sourceFromChunks(next)
	if err != nil {
		return nil, err
	}
	return newIndexer(src, ApplyOptions(opts...))
}

// NewIndexerFromStream begins indexing r.
func NewIndexerFromStream(r io.Reader, opts ...Option) (*Indexer, error) {
	src, err := sourceFromStream(r)
	if err != nil {
		return nil, err
	}
	return newIndexer(src, ApplyOptions(opts...))
}

func newIndexer(src bytesource.Source, opts Options) (*Indexer, error) {
	d, err := newDecoder(src, opts)
	if err != nil {
		return nil, err
	}
	return &Indexer{Version: d.version, Roots: d.roots, d: d}, nil
}

// Next returns metadata for the next section, or io.EOF at the clean
// end of the stream.
func (in *Indexer) Next() (*BlockMetadata, error) {
	switch in.state {
	case stateDone:
		return nil, io.EOF
	case stateErrored:
		return nil, in.err
	}
	in.state = stateConsuming
	meta, err := in.d.nextSkip()
	if err == io.EOF {
		in.state = stateDone
		return nil, io.EOF
	}
	if err != nil {
		in.state = stateErrored
		in.err = err
		return nil, err
	}
	return meta, nil
}

// Records returns the lazy sequence of section metadata. Requesting it
// more than once, or after Next has been called, yields
// ErrAlreadyIterated without consuming any bytes.
func (in *Indexer) Records() iter.Seq2[*BlockMetadata, error] {
	if in.state != stateFresh {
		return func(yield func(*BlockMetadata, error) bool) {
			yield(nil, ErrAlreadyIterated)
		}
	}
	in.state = stateConsuming
	return func(yield func(*BlockMetadata, error) bool) {
		for {
			meta, err := in.Next()
			if err == io.EOF {
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(meta, nil) {
				return
			}
		}
	}
}
