package car

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	blocks "github.com/ipfs/go-block-format"
	cid "github.com/ipfs/go-cid"
	cbor "github.com/ipfs/go-ipld-cbor"
	format "github.com/ipfs/go-ipld-format"

	"github.com/ipld/go-carstream/util"
)

// Writer encodes a CARv1 stream section by section. Sections are
// emitted strictly in Put order; when the writer is backed by a pipe,
// Put blocks until the consumer has accepted the bytes, which is the
// backpressure mechanism.
type Writer struct {
	mu            sync.Mutex
	w             io.Writer
	pw            *io.PipeWriter
	header        *CarHeader
	opts          Options
	headerWritten bool
	closed        bool
}

// NewWriter returns a Writer paired with the reader its output arrives
// on. The header is emitted ahead of the first section; an archive
// closed without any Put holds the header alone. Roots may be empty.
//
// The returned reader must be drained (typically from another
// goroutine) or Put will block forever.
func NewWriter(roots []cid.Cid, opts ...Option) (*Writer, io.Reader) {
	pr, pw := io.Pipe()
	w := newWriter(roots, pw, ApplyOptions(opts...))
	w.pw = pw
	return w, pr
}

// NewWriterTo returns a Writer emitting directly to w, for callers that
// already have a sink and need no backpressure decoupling.
func NewWriterTo(roots []cid.Cid, w io.Writer, opts ...Option) *Writer {
	return newWriter(roots, w, ApplyOptions(opts...))
}

func newWriter(roots []cid.Cid, w io.Writer, opts Options) *Writer {
	if roots == nil {
		roots = []cid.Cid{}
	}
	return &Writer{
		w:      w,
		header: &CarHeader{Roots: roots, Version: 1},
		opts:   opts,
	}
}

// Put appends one block as a section. It returns ErrWriterClosed after
// Close, and ErrSectionTooLarge when the framed CID and payload exceed
// the configured section ceiling.
func (w *Writer) Put(blk blocks.Block) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWriterClosed
	}
	cb := blk.Cid().Bytes()
	data := blk.RawData()
	if uint64(len(cb))+uint64(len(data)) > w.opts.MaxAllowedSectionSize {
		return ErrSectionTooLarge
	}
	if err := w.writeHeader(); err != nil {
		return err
	}
	return util.LdWrite(w.w, cb, data)
}

// Close flushes the header if nothing was written yet and signals
// end-of-stream to a piped consumer. Subsequent Put calls fail.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	err := w.writeHeader()
	w.closed = true
	if w.pw != nil {
		if cerr := w.pw.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func (w *Writer) writeHeader() error {
	if w.headerWritten {
		return nil
	}
	if err := WriteHeader(w.header, w.w); err != nil {
		return err
	}
	w.headerWritten = true
	return nil
}

// WalkFunc is the walk function used by WriteCarWithWalker to determine
// which links to follow out of a node.
type WalkFunc func(format.Node) ([]*format.Link, error)

// WriteCar writes the DAGs rooted at roots out of ds into w as a CARv1,
// following every link of every node.
func WriteCar(ctx context.Context, ds format.NodeGetter, roots []cid.Cid, w io.Writer, opts ...Option) error {
	return WriteCarWithWalker(ctx, ds, roots, w, DefaultWalkFunc, opts...)
}

// DefaultWalkFunc returns all of a node's links.
func DefaultWalkFunc(nd format.Node) ([]*format.Link, error) {
	return nd.Links(), nil
}

// WriteCarWithWalker writes the DAGs rooted at roots out of ds into w as
// a CARv1, following the links selected by walk. Each reachable block is
// written exactly once, in depth-first preorder from the first root.
func WriteCarWithWalker(ctx context.Context, ds format.NodeGetter, roots []cid.Cid, w io.Writer, walk WalkFunc, opts ...Option) error {
	h := &CarHeader{Roots: roots, Version: 1}
	if err := WriteHeader(h, w); err != nil {
		return fmt.Errorf("failed to write car header: %w", err)
	}

	seen := cid.NewSet()
	var write func(c cid.Cid) error
	write = func(c cid.Cid) error {
		if !seen.Visit(c) {
			return nil
		}
		nd, err := ds.Get(ctx, c)
		if err != nil {
			return err
		}
		if err := util.LdWrite(w, c.Bytes(), nd.RawData()); err != nil {
			return err
		}
		links, err := walk(nd)
		if err != nil {
			return err
		}
		for _, l := range links {
			if err := write(l.Cid); err != nil {
				return err
			}
		}
		return nil
	}
	for _, r := range roots {
		if err := write(r); err != nil {
			return err
		}
	}
	return nil
}

// Store is the write surface LoadCar drains a CAR into.
type Store interface {
	Put(context.Context, blocks.Block) error
}

type batchStore interface {
	PutMany(context.Context, []blocks.Block) error
}

// LoadCar drains the CAR stream in r into s, returning the decoded
// header. Stores exposing a PutMany batch method receive blocks in
// batches of up to a thousand.
func LoadCar(ctx context.Context, s Store, r io.Reader, opts ...Option) (*CarHeader, error) {
	it, err := NewBlockIteratorFromStream(r, opts...)
	if err != nil {
		return nil, err
	}
	header := &CarHeader{Roots: it.Roots, Version: it.Version}

	if bs, ok := s.(batchStore); ok {
		return header, loadCarFast(ctx, bs, it)
	}
	return header, loadCarSlow(ctx, s, it)
}

func loadCarFast(ctx context.Context, s batchStore, it *BlockIterator) error {
	var buf []blocks.Block
	for {
		blk, err := it.Next()
		if err != nil {
			if err == io.EOF {
				if len(buf) > 0 {
					return s.PutMany(ctx, buf)
				}
				return nil
			}
			return err
		}

		buf = append(buf, blk)

		if len(buf) >= 1000 {
			if err := s.PutMany(ctx, buf); err != nil {
				return err
			}
			buf = buf[:0]
		}
	}
}

func loadCarSlow(ctx context.Context, s Store, it *BlockIterator) error {
	for {
		blk, err := it.Next()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		if err := s.Put(ctx, blk); err != nil {
			return err
		}
	}
}

// ReplaceRootsInBytes rewrites the header of the CARv1 archive in data
// so that it lists roots, in place. The new header must encode to
// exactly the byte length of the old one; root CIDs of identical
// length always satisfy this.
func ReplaceRootsInBytes(data []byte, roots []cid.Cid, opts ...Option) error {
	o := ApplyOptions(opts...)
	src := sourceFromBytes(data)
	header, err := readHeader(src, o.MaxAllowedHeaderSize)
	if err != nil {
		return err
	}
	if header.Version != 1 {
		return fmt.Errorf("%w: can only replace roots in a carv1 header, got version %d", ErrUnsupportedVersion, header.Version)
	}
	oldSize := uint64(src.Pos())

	replacement := &CarHeader{Roots: roots, Version: 1}
	hb, err := cbor.DumpObject(replacement)
	if err != nil {
		return err
	}
	if newSize := util.LdSize(hb); newSize != oldSize {
		return fmt.Errorf("replacement header size (%d) does not match existing header size (%d)", newSize, oldSize)
	}

	var buf bytes.Buffer
	if err := util.LdWrite(&buf, hb); err != nil {
		return err
	}
	copy(data, buf.Bytes())
	return nil
}
