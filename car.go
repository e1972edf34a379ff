// Package car reads and writes Content-Addressable aRchive (CAR)
// streams: a varint-framed sequence of content-addressed blocks preceded
// by a small CBOR header naming the archive's roots. The package decodes
// CARv1 payloads and CARv2 containers (by locating the CARv1 payload
// embedded in them), and encodes CARv1.
package car

import (
	"fmt"
	"io"

	cid "github.com/ipfs/go-cid"
	cbor "github.com/ipfs/go-ipld-cbor"
	"github.com/multiformats/go-varint"

	"github.com/ipld/go-carstream/internal/bytesource"
	"github.com/ipld/go-carstream/util"
)

func init() {
	cbor.RegisterCborType(CarHeader{})
}

// CarHeader is the decoded leading header of a CAR stream. ReadHeader
// decodes only the first header, so for a CARv2 source it yields the
// pragma: Version 2 and no Roots. The read surfaces and LoadCar report
// Version 2 together with the Roots of the embedded CARv1 payload.
type CarHeader struct {
	Roots   []cid.Cid
	Version uint64
}

// ReadHeader reads a length-prefixed CBOR header from r. maxReadBytes
// bounds the header length prefix; pass DefaultMaxAllowedHeaderSize
// unless a tighter bound is wanted.
func ReadHeader(r io.Reader, maxReadBytes uint64) (*CarHeader, error) {
	return readHeader(bytesource.FromReader(r), maxReadBytes)
}

func readHeader(src bytesource.Source, maxReadBytes uint64) (*CarHeader, error) {
	l, err := varint.ReadUvarint(bytesource.NewByteReader(src))
	if err != nil {
		if err == varint.ErrUnderflow {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	if l == 0 {
		return nil, ErrHeaderZeroLength
	}
	if l > maxReadBytes {
		return nil, ErrHeaderTooLarge
	}

	hb, err := src.Exactly(int(l))
	if err != nil {
		return nil, err
	}

	var ch CarHeader
	if err := cbor.DecodeInto(hb, &ch); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedHeader, err)
	}

	return &ch, nil
}

// WriteHeader serializes h as a length-prefixed CBOR map and writes it
// to w.
func WriteHeader(h *CarHeader, w io.Writer) error {
	hb, err := cbor.DumpObject(h)
	if err != nil {
		return err
	}

	return util.LdWrite(w, hb)
}

// HeaderSize reports the framed byte length h occupies once encoded,
// including its length prefix.
func HeaderSize(h *CarHeader) (uint64, error) {
	hb, err := cbor.DumpObject(h)
	if err != nil {
		return 0, err
	}

	return util.LdSize(hb), nil
}

// ReadVersion reads the version from the header of a CAR stream. Both
// CARv1 and CARv2 payloads are accepted, since the CARv2 pragma reads as
// a valid one-entry header.
func ReadVersion(r io.Reader, opts ...Option) (uint64, error) {
	o := ApplyOptions(opts...)
	header, err := ReadHeader(r, o.MaxAllowedHeaderSize)
	if err != nil {
		return 0, err
	}
	return header.Version, nil
}

// Matches checks whether two headers match.
// Two headers are considered matching if:
//  1. They have the same version number, and
//  2. They contain the same root CIDs in any order.
//
// Note, this function explicitly ignores the order of roots.
// If order of roots matter use reflect.DeepEqual instead.
func (h CarHeader) Matches(other CarHeader) bool {
	if h.Version != other.Version {
		return false
	}
	thisLen := len(h.Roots)
	if thisLen != len(other.Roots) {
		return false
	}
	// Headers with a single root are popular.
	// Implement a fast execution path for popular cases.
	if thisLen == 1 {
		return h.Roots[0].Equals(other.Roots[0])
	}

	// Check other contains all roots.
	for _, r := range h.Roots {
		if !other.containsRoot(r) {
			return false
		}
	}
	return true
}

func (h *CarHeader) containsRoot(root cid.Cid) bool {
	for _, r := range h.Roots {
		if r.Equals(root) {
			return true
		}
	}
	return false
}
