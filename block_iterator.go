package car

import (
	"io"
	"iter"

	blocks "github.com/ipfs/go-block-format"
	cid "github.com/ipfs/go-cid"

	"github.com/ipld/go-carstream/internal/bytesource"
)

// iterState tracks the lifecycle of a single-shot streaming surface.
type iterState uint8

const (
	stateFresh iterState = iota
	stateConsuming
	stateDone
	stateErrored
)

// BlockIterator is a single-pass streaming decoder yielding whole
// blocks in on-wire order. It is single-shot: the Blocks sequence may be
// requested once, and once the source errors every subsequent step
// surfaces the same error.
type BlockIterator struct {
	// Version is the detected version of the CAR payload.
	Version uint64
	// Roots are the root CIDs of the CAR payload. May be empty.
	Roots []cid.Cid

	d     *decoder
	state iterState
	err   error
}

// NewBlockIterator begins iteration over an in-memory archive. The
// header is consumed immediately; Version and Roots are populated on
// return.
func NewBlockIterator(data []byte, opts ...Option) (*BlockIterator, error) {
	return newBlockIterator(sourceFromBytes(data), ApplyOptions(opts...))
}

// NewBlockIteratorFromChunks begins iteration over a pulled chunk
// stream.
func NewBlockIteratorFromChunks(next ChunkSource, opts ...Option) (*BlockIterator, error) {
	src, err := sourceFromChunks(next)
	if err != nil {
		return nil, err
	}
	return newBlockIterator(src, ApplyOptions(opts...))
}

// NewBlockIteratorFromStream begins iteration over r.
func NewBlockIteratorFromStream(r io.Reader, opts ...Option) (*BlockIterator, error) {
	src, err := sourceFromStream(r)
	if err != nil {
		return nil, err
	}
	return newBlockIterator(src, ApplyOptions(opts...))
}

func newBlockIterator(src bytesource.Source, opts Options) (*BlockIterator, error) {
	d, err := newDecoder(src, opts)
	if err != nil {
		return nil, err
	}
	return &BlockIterator{Version: d.version, Roots: d.roots, d: d}, nil
}

// Next returns the next block, or io.EOF at the clean end of the
// stream. After any other error, every subsequent call returns that
// same error.
func (it *BlockIterator) Next() (blocks.Block, error) {
	switch it.state {
	case stateDone:
		return nil, io.EOF
	case stateErrored:
		return nil, it.err
	}
	it.state = stateConsuming
	blk, err := it.d.next()
	if err == io.EOF {
		it.state = stateDone
		return nil, io.EOF
	}
	if err != nil {
		it.state = stateErrored
		it.err = err
		return nil, err
	}
	return blk, nil
}

// Blocks returns the lazy sequence of blocks. Requesting it more than
// once, or after Next has been called, yields ErrAlreadyIterated
// without consuming any bytes.
func (it *BlockIterator) Blocks() iter.Seq2[blocks.Block, error] {
	if it.state != stateFresh {
		return func(yield func(blocks.Block, error) bool) {
			yield(nil, ErrAlreadyIterated)
		}
	}
	it.state = stateConsuming
	return func(yield func(blocks.Block, error) bool) {
		for {
			blk, err := it.Next()
			if err == io.EOF {
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(blk, nil) {
				return
			}
		}
	}
}

// CidIterator is a single-pass streaming decoder yielding only the CID
// of each section, seeking over payload bytes without materialising
// them. Like BlockIterator it is single-shot.
type CidIterator struct {
	// Version is the detected version of the CAR payload.
	Version uint64
	// Roots are the root CIDs of the CAR payload. May be empty.
	Roots []cid.Cid

	d     *decoder
	state iterState
	err   error
}

// NewCidIterator begins CID-only iteration over an in-memory archive.
func NewCidIterator(data []byte, opts ...Option) (*CidIterator, error) {
	return newCidIterator(sourceFromBytes(data), ApplyOptions(opts...))
}

// NewCidIteratorFromChunks begins CID-only iteration over a pulled
// chunk stream.
func NewCidIteratorFromChunks(next ChunkSource, opts ...Option) (*CidIterator, error) {
	src, err := sourceFromChunks(next)
	if err != nil {
		return nil, err
	}
	return newCidIterator(src, ApplyOptions(opts...))
}

// NewCidIteratorFromStream begins CID-only iteration over r.
func NewCidIteratorFromStream(r io.Reader, opts ...Option) (*CidIterator, error) {
	src, err := sourceFromStream(r)
	if err != nil {
		return nil, err
	}
	return newCidIterator(src, ApplyOptions(opts...))
}

func newCidIterator(src bytesource.Source, opts Options) (*CidIterator, error) {
	d, err := newDecoder(src, opts)
	if err != nil {
		return nil, err
	}
	return &CidIterator{Version: d.version, Roots: d.roots, d: d}, nil
}

// Next returns the CID of the next section, skipping its payload, or
// io.EOF at the clean end of the stream.
func (it *CidIterator) Next() (cid.Cid, error) {
	switch it.state {
	case stateDone:
		return cid.Undef, io.EOF
	case stateErrored:
		return cid.Undef, it.err
	}
	it.state = stateConsuming
	meta, err := it.d.nextSkip()
	if err == io.EOF {
		it.state = stateDone
		return cid.Undef, io.EOF
	}
	if err != nil {
		it.state = stateErrored
		it.err = err
		return cid.Undef, err
	}
	return meta.Cid, nil
}

// Cids returns the lazy sequence of CIDs. Requesting it more than once,
// or after Next has been called, yields ErrAlreadyIterated without
// consuming any bytes.
func (it *CidIterator) Cids() iter.Seq2[cid.Cid, error] {
	if it.state != stateFresh {
		return func(yield func(cid.Cid, error) bool) {
			yield(cid.Undef, ErrAlreadyIterated)
		}
	}
	it.state = stateConsuming
	return func(yield func(cid.Cid, error) bool) {
		for {
			c, err := it.Next()
			if err == io.EOF {
				return
			}
			if err != nil {
				yield(cid.Undef, err)
				return
			}
			if !yield(c, nil) {
				return
			}
		}
	}
}
