package car

import (
	"fmt"
	"io"

	blocks "github.com/ipfs/go-block-format"
	cid "github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
	"github.com/multiformats/go-varint"

	"github.com/ipld/go-carstream/internal/bytesource"
)

// maxAllowedCidSize bounds the digest length claimed by a CID inside a
// section, independently of the section ceiling.
const maxAllowedCidSize = 2 << 10 // 2 KiB

var cidv0Pref = []byte{0x12, 0x20}

// decoder is the single forward-only framer shared by every read
// surface. It owns the byte source positioned at the first section, with
// the header already consumed and, for a CARv2 container, the source
// bounded to the embedded CARv1 payload.
type decoder struct {
	src     bytesource.Source
	opts    Options
	version uint64
	roots   []cid.Cid
}

// newDecoder reads the header from src, detects CARv1 vs CARv2, and for
// a CARv2 skips to and bounds the embedded CARv1 payload. The returned
// decoder is positioned at the first section.
func newDecoder(src bytesource.Source, opts Options) (*decoder, error) {
	header, err := readHeader(src, opts.MaxAllowedHeaderSize)
	if err != nil {
		return nil, err
	}

	d := &decoder{src: src, opts: opts, version: header.Version}
	switch header.Version {
	case 1:
		d.roots = header.Roots
	case 2:
		// The header just read was the pragma. Read the fixed-size
		// CARv2 header, skip forward to the CARv1 payload, and bound
		// the source to its size so framing halts at the payload end.
		hb, err := src.Exactly(V2HeaderSize)
		if err != nil {
			return nil, err
		}
		v2h := unmarshalV2Header(hb)
		skip := int64(v2h.DataOffset) - src.Pos()
		if skip < 0 {
			return nil, fmt.Errorf("%w: data offset %d overlaps carv2 header", ErrMalformedHeader, v2h.DataOffset)
		}
		if err := src.Skip(int(skip)); err != nil {
			return nil, err
		}
		bounded := bytesource.Limit(src, v2h.DataSize)
		inner, err := readHeader(bounded, opts.MaxAllowedHeaderSize)
		if err != nil {
			return nil, err
		}
		if inner.Version != 1 {
			return nil, fmt.Errorf("%w: expected carv1 payload at data offset, got version %d", ErrUnsupportedVersion, inner.Version)
		}
		d.roots = inner.Roots
		d.src = bounded
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, header.Version)
	}
	return d, nil
}

// sectionHead consumes a section's length prefix and CID, returning the
// CID, the payload length and the offset at which the section began.
// io.EOF signals a clean end of the stream.
func (d *decoder) sectionHead() (c cid.Cid, payloadLen uint64, sectionOffset int64, err error) {
	sectionOffset = d.src.Pos()
	if _, err = d.src.Upto(1); err != nil {
		return cid.Undef, 0, sectionOffset, err // io.EOF: clean end between sections
	}

	l, err := varint.ReadUvarint(bytesource.NewByteReader(d.src))
	if err != nil {
		if err == varint.ErrUnderflow {
			err = io.ErrUnexpectedEOF
		}
		return cid.Undef, 0, sectionOffset, err
	}
	if l == 0 {
		if d.opts.ZeroLengthSectionAsEOF {
			return cid.Undef, 0, sectionOffset, io.EOF
		}
		return cid.Undef, 0, sectionOffset, ErrSectionZeroLength
	}
	if l > d.opts.MaxAllowedSectionSize { // Don't OOM
		return cid.Undef, 0, sectionOffset, ErrSectionTooLarge
	}

	cidStart := d.src.Pos()
	c, err = readCid(d.src)
	if err != nil {
		return cid.Undef, 0, sectionOffset, err
	}
	cidLen := uint64(d.src.Pos() - cidStart)
	if cidLen > l {
		return cid.Undef, 0, sectionOffset, ErrInvalidSection
	}
	return c, l - cidLen, sectionOffset, nil
}

// next reads one full section, returning its block.
func (d *decoder) next() (blocks.Block, error) {
	c, payloadLen, _, err := d.sectionHead()
	if err != nil {
		return nil, err
	}
	data, err := d.src.Exactly(int(payloadLen))
	if err != nil {
		return nil, err
	}
	if d.opts.ValidateBlockHash {
		hashed, err := c.Prefix().Sum(data)
		if err != nil {
			return nil, err
		}
		if !hashed.Equals(c) {
			return nil, fmt.Errorf("mismatch in content integrity, expected: %s, got: %s", c, hashed)
		}
	}
	return blocks.NewBlockWithCid(data, c)
}

// nextSkip reads one section's framing and skips its payload, returning
// metadata only.
func (d *decoder) nextSkip() (*BlockMetadata, error) {
	c, payloadLen, sectionOffset, err := d.sectionHead()
	if err != nil {
		return nil, err
	}
	blockOffset := d.src.Pos()
	if err := d.src.Skip(int(payloadLen)); err != nil {
		return nil, err
	}
	return &BlockMetadata{
		Cid:         c,
		Offset:      uint64(sectionOffset),
		Length:      uint64(d.src.Pos() - sectionOffset),
		BlockOffset: uint64(blockOffset),
		BlockLength: payloadLen,
	}, nil
}

// readCid parses a CID from the current cursor of src. The sha2-256
// multihash prefix 0x12 0x20 identifies the 34-byte CIDv0 form;
// everything else is parsed as a CIDv1.
func readCid(src bytesource.Source) (cid.Cid, error) {
	probe, err := src.Upto(2)
	if err != nil {
		if err == io.EOF {
			return cid.Undef, io.ErrUnexpectedEOF
		}
		return cid.Undef, err
	}
	if len(probe) < 2 {
		return cid.Undef, io.ErrUnexpectedEOF
	}
	if probe[0] == cidv0Pref[0] && probe[1] == cidv0Pref[1] {
		b, err := src.Exactly(34)
		if err != nil {
			return cid.Undef, err
		}
		return cid.Cast(b)
	}

	// assume cidv1
	br := bytesource.NewByteReader(src)
	vers, err := varint.ReadUvarint(br)
	if err != nil {
		return cid.Undef, cidReadError(err)
	}
	if vers != 1 {
		return cid.Undef, fmt.Errorf("unsupported cid version %d", vers)
	}
	codec, err := varint.ReadUvarint(br)
	if err != nil {
		return cid.Undef, cidReadError(err)
	}
	hashCode, err := varint.ReadUvarint(br)
	if err != nil {
		return cid.Undef, cidReadError(err)
	}
	digestLen, err := varint.ReadUvarint(br)
	if err != nil {
		return cid.Undef, cidReadError(err)
	}
	if digestLen > maxAllowedCidSize {
		return cid.Undef, fmt.Errorf("cid digest length %d beyond allowable maximum", digestLen)
	}
	digest, err := src.Exactly(int(digestLen))
	if err != nil {
		return cid.Undef, err
	}
	mhash, err := mh.Encode(digest, hashCode)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(codec, mhash), nil
}

// cidReadError normalizes mid-CID end-of-input to io.ErrUnexpectedEOF;
// a CID is never the last thing in a well-formed stream.
func cidReadError(err error) error {
	if err == varint.ErrUnderflow || err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
