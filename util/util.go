package util

import (
	"bytes"
	"errors"
	"io"

	cid "github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
	"github.com/multiformats/go-varint"
)

// DefaultMaxAllowedSectionSize dictates the maximum number of bytes that
// a CARv1 header or section is allowed to occupy without causing a decode
// to error. This prevents a corrupt or hostile length prefix from
// triggering an arbitrarily large allocation.
const DefaultMaxAllowedSectionSize uint64 = 32 << 20 // 32MiB

var (
	ErrSectionTooLarge   = errors.New("invalid section data, length of read beyond allowable maximum")
	ErrHeaderTooLarge    = errors.New("invalid header data, length of read beyond allowable maximum")
	ErrZeroLengthSection = errors.New("invalid car section (zero length)")
)

var cidv0Pref = []byte{0x12, 0x20}

type BytesReader interface {
	io.Reader
	io.ByteReader
}

// ReadCid parses a CID from the front of buf, returning it along with the
// number of bytes it occupies. A leading sha2-256 multihash prefix is
// taken as a CIDv0; anything else is parsed as a CIDv1.
func ReadCid(buf []byte) (cid.Cid, int, error) {
	if len(buf) >= 2 && bytes.Equal(buf[:2], cidv0Pref) {
		i := 34
		if len(buf) < i {
			i = len(buf)
		}
		c, err := cid.Cast(buf[:i])
		return c, i, err
	}

	br := bytes.NewReader(buf)

	// assume cidv1
	vers, err := varint.ReadUvarint(br)
	if err != nil {
		return cid.Cid{}, 0, err
	}

	if vers != 1 {
		return cid.Cid{}, 0, errors.New("unsupported cid version")
	}

	codec, err := varint.ReadUvarint(br)
	if err != nil {
		return cid.Cid{}, 0, err
	}

	mhr := mh.NewReader(br)
	h, err := mhr.ReadMultihash()
	if err != nil {
		return cid.Cid{}, 0, err
	}

	return cid.NewCidV1(codec, h), len(buf) - br.Len(), nil
}

// ReadNode reads one section from r, returning its CID and payload.
func ReadNode(r BytesReader, zeroLenAsEOF bool, maxReadBytes uint64) (cid.Cid, []byte, error) {
	data, err := LdRead(r, zeroLenAsEOF, maxReadBytes)
	if err != nil {
		return cid.Cid{}, nil, err
	}

	n, c, err := cid.CidFromBytes(data)
	if err != nil {
		return cid.Cid{}, nil, err
	}

	return c, data[n:], nil
}

// LdWrite writes the concatenation of d to w prefixed with its total
// length as a varint.
func LdWrite(w io.Writer, d ...[]byte) error {
	var sum uint64
	for _, s := range d {
		sum += uint64(len(s))
	}

	buf := make([]byte, 8)
	n := varint.PutUvarint(buf, sum)
	_, err := w.Write(buf[:n])
	if err != nil {
		return err
	}

	for _, s := range d {
		_, err = w.Write(s)
		if err != nil {
			return err
		}
	}

	return nil
}

// LdSize reports the framed size of the concatenation of d, including the
// length prefix itself.
func LdSize(d ...[]byte) uint64 {
	var sum uint64
	for _, s := range d {
		sum += uint64(len(s))
	}
	s := varint.UvarintSize(sum)
	return sum + uint64(s)
}

// LdReadSize reads a section length prefix from r. A zero length is an
// error unless zeroLenAsEOF is set, in which case it reads as a clean
// io.EOF.
func LdReadSize(r io.ByteReader, zeroLenAsEOF bool, maxReadBytes uint64) (uint64, error) {
	l, err := varint.ReadUvarint(r)
	if err != nil {
		if err == varint.ErrUnderflow {
			return 0, io.ErrUnexpectedEOF // don't silently pretend this is a clean EOF
		}
		return 0, err
	}
	if l == 0 {
		if zeroLenAsEOF {
			return 0, io.EOF
		}
		return 0, ErrZeroLengthSection
	}

	if l > maxReadBytes { // Don't OOM
		return 0, ErrSectionTooLarge
	}
	return l, nil
}

// LdRead reads one length-prefixed section body from r.
func LdRead(r BytesReader, zeroLenAsEOF bool, maxReadBytes uint64) ([]byte, error) {
	l, err := LdReadSize(r, zeroLenAsEOF, maxReadBytes)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, l)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}

	return buf, nil
}
