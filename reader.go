package car

import (
	"io"
	"iter"

	blocks "github.com/ipfs/go-block-format"
	cid "github.com/ipfs/go-cid"
	format "github.com/ipfs/go-ipld-format"

	"github.com/ipld/go-carstream/internal/bytesource"
)

// Reader is the whole-archive, random-access form of a CAR. Construction
// consumes the source to completion; afterwards every operation is
// synchronous and the Reader is safe for concurrent use.
//
// Duplicate CIDs in the archive are collapsed: the first payload wins
// and later sections under the same CID are ignored, so Blocks and Cids
// emit each CID at most once, in first-occurrence order.
type Reader struct {
	version uint64
	roots   []cid.Cid
	order   []cid.Cid
	blocks  map[string]blocks.Block
}

// NewReaderFromBytes builds a Reader over an in-memory archive. Returned
// blocks alias data, which must therefore outlive them.
func NewReaderFromBytes(data []byte, opts ...Option) (*Reader, error) {
	return newReader(sourceFromBytes(data), ApplyOptions(opts...))
}

// NewReaderFromChunks builds a Reader by draining next.
func NewReaderFromChunks(next ChunkSource, opts ...Option) (*Reader, error) {
	src, err := sourceFromChunks(next)
	if err != nil {
		return nil, err
	}
	return newReader(src, ApplyOptions(opts...))
}

// NewReaderFromStream builds a Reader by draining r.
func NewReaderFromStream(r io.Reader, opts ...Option) (*Reader, error) {
	src, err := sourceFromStream(r)
	if err != nil {
		return nil, err
	}
	return newReader(src, ApplyOptions(opts...))
}

func newReader(src bytesource.Source, opts Options) (*Reader, error) {
	d, err := newDecoder(src, opts)
	if err != nil {
		return nil, err
	}
	r := &Reader{
		version: d.version,
		roots:   d.roots,
		blocks:  make(map[string]blocks.Block),
	}
	for {
		blk, err := d.next()
		if err == io.EOF {
			return r, nil
		}
		if err != nil {
			return nil, err
		}
		k := blk.Cid().KeyString()
		if _, dup := r.blocks[k]; dup {
			continue
		}
		r.blocks[k] = blk
		r.order = append(r.order, blk.Cid())
	}
}

// Version reports the version of the source archive: 1, or 2 when the
// payload was read out of a CARv2 container.
func (r *Reader) Version() uint64 {
	return r.version
}

// Roots returns the root CIDs listed in the archive header.
func (r *Reader) Roots() []cid.Cid {
	return r.roots
}

// Has reports whether the archive holds a block under c.
func (r *Reader) Has(c cid.Cid) bool {
	_, ok := r.blocks[c.KeyString()]
	return ok
}

// Get returns the block stored under c, or a format.ErrNotFound.
func (r *Reader) Get(c cid.Cid) (blocks.Block, error) {
	blk, ok := r.blocks[c.KeyString()]
	if !ok {
		return nil, format.ErrNotFound{Cid: c}
	}
	return blk, nil
}

// Blocks iterates the archive's blocks in first-occurrence order. The
// sequence may be ranged over any number of times.
func (r *Reader) Blocks() iter.Seq[blocks.Block] {
	return func(yield func(blocks.Block) bool) {
		for _, c := range r.order {
			if !yield(r.blocks[c.KeyString()]) {
				return
			}
		}
	}
}

// Cids iterates the archive's CIDs in first-occurrence order.
func (r *Reader) Cids() iter.Seq[cid.Cid] {
	return func(yield func(cid.Cid) bool) {
		for _, c := range r.order {
			if !yield(c) {
				return
			}
		}
	}
}
