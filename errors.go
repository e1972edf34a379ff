package car

import (
	"errors"

	"github.com/ipld/go-carstream/util"
)

var (
	// ErrHeaderZeroLength is returned when the header length prefix is
	// zero, e.g. when the stream begins with a NUL byte.
	ErrHeaderZeroLength = errors.New("invalid car header (zero length)")

	// ErrSectionZeroLength is returned when a section length prefix is
	// zero, which covers trailing NUL padding unless
	// ZeroLengthSectionAsEOF is enabled.
	ErrSectionZeroLength = util.ErrZeroLengthSection

	// ErrInvalidSection is returned when a section's CID extends past
	// the length declared by its prefix.
	ErrInvalidSection = errors.New("invalid car section")

	// ErrHeaderTooLarge and ErrSectionTooLarge guard against hostile
	// length prefixes; see MaxAllowedHeaderSize and
	// MaxAllowedSectionSize.
	ErrHeaderTooLarge  = util.ErrHeaderTooLarge
	ErrSectionTooLarge = util.ErrSectionTooLarge

	// ErrUnsupportedVersion is returned when a header carries a version
	// other than 1 or 2.
	ErrUnsupportedVersion = errors.New("unsupported car version")

	// ErrMalformedHeader is returned when the header bytes do not
	// decode as a CAR header CBOR map.
	ErrMalformedHeader = errors.New("invalid car header")

	// ErrAlreadyIterated is returned when the lazy sequence of a
	// single-shot iterator is requested a second time.
	ErrAlreadyIterated = errors.New("cannot read more than once")

	// ErrWriterClosed is returned by Writer.Put after Close.
	ErrWriterClosed = errors.New("cannot put blocks on a closed writer")

	// ErrInvalidArgument is returned by constructors handed a nil
	// source.
	ErrInvalidArgument = errors.New("invalid argument")
)
