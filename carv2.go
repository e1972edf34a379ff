package car

import (
	"encoding/binary"
	"io"
)

const (
	// PragmaSize is the size of the CARv2 pragma in bytes.
	PragmaSize = 11
	// V2HeaderSize is the fixed size of the CARv2 header in bytes,
	// directly following the pragma.
	V2HeaderSize = 40
	// CharacteristicsSize is the fixed size of the Characteristics
	// bitfield within the CARv2 header in bytes.
	CharacteristicsSize = 16
)

// Pragma is the fixed prefix of a CARv2, signalling the version number
// to CARv1 decoders for graceful fail over. It decodes as the CBOR map
// {"version": 2}.
var Pragma = []byte{
	0x0a,                                     // unit(10)
	0xa1,                                     // map(1)
	0x67,                                     // string(7)
	0x76, 0x65, 0x72, 0x73, 0x69, 0x6f, 0x6e, // "version"
	0x02, // uint(2)
}

type (
	// V2Header is the fixed-size CARv2 header following the pragma. It
	// locates the CARv1 payload and index within the container.
	V2Header struct {
		// 128-bit characteristics of this CARv2 file, such as order and
		// deduplication. Reserved for future use; carried but never
		// interpreted.
		Characteristics Characteristics
		// The offset from the beginning of the file at which the dump
		// of CARv1 starts.
		DataOffset uint64
		// The size of the CARv1 payload encapsulated in this CARv2 in
		// bytes.
		DataSize uint64
		// The offset from the beginning of the file at which the CARv2
		// index begins. Zero signals no index.
		IndexOffset uint64
	}
	// Characteristics is a bitfield placeholder capturing the
	// characteristics of a CARv2, such as order and determinism.
	Characteristics struct {
		Hi uint64
		Lo uint64
	}
)

// WriteTo writes this characteristics to the given w.
func (c Characteristics) WriteTo(w io.Writer) (n int64, err error) {
	buf := make([]byte, CharacteristicsSize)
	binary.LittleEndian.PutUint64(buf[:8], c.Hi)
	binary.LittleEndian.PutUint64(buf[8:], c.Lo)
	written, err := w.Write(buf)
	return int64(written), err
}

// ReadFrom populates fields of this characteristics from the given r.
func (c *Characteristics) ReadFrom(r io.Reader) (int64, error) {
	buf := make([]byte, CharacteristicsSize)
	read, err := io.ReadFull(r, buf)
	n := int64(read)
	if err != nil {
		return n, err
	}
	c.Hi = binary.LittleEndian.Uint64(buf[:8])
	c.Lo = binary.LittleEndian.Uint64(buf[8:])
	return n, nil
}

// WriteTo serializes this header as bytes and writes them using the
// given w.
func (h V2Header) WriteTo(w io.Writer) (n int64, err error) {
	wn, err := h.Characteristics.WriteTo(w)
	n += wn
	if err != nil {
		return
	}
	buf := make([]byte, 24)
	binary.LittleEndian.PutUint64(buf[:8], h.DataOffset)
	binary.LittleEndian.PutUint64(buf[8:16], h.DataSize)
	binary.LittleEndian.PutUint64(buf[16:], h.IndexOffset)
	written, err := w.Write(buf)
	n += int64(written)
	return n, err
}

// ReadFrom populates fields of this header from the given r.
func (h *V2Header) ReadFrom(r io.Reader) (int64, error) {
	n, err := h.Characteristics.ReadFrom(r)
	if err != nil {
		return n, err
	}
	buf := make([]byte, 24)
	read, err := io.ReadFull(r, buf)
	n += int64(read)
	if err != nil {
		return n, err
	}
	h.DataOffset = binary.LittleEndian.Uint64(buf[:8])
	h.DataSize = binary.LittleEndian.Uint64(buf[8:16])
	h.IndexOffset = binary.LittleEndian.Uint64(buf[16:])
	return n, nil
}

// unmarshalV2Header decodes the fixed-size header from buf, which must
// hold V2HeaderSize bytes.
func unmarshalV2Header(buf []byte) V2Header {
	var h V2Header
	h.Characteristics.Hi = binary.LittleEndian.Uint64(buf[:8])
	h.Characteristics.Lo = binary.LittleEndian.Uint64(buf[8:16])
	h.DataOffset = binary.LittleEndian.Uint64(buf[16:24])
	h.DataSize = binary.LittleEndian.Uint64(buf[24:32])
	h.IndexOffset = binary.LittleEndian.Uint64(buf[32:40])
	return h
}
