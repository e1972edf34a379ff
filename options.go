package car

import "github.com/ipld/go-carstream/util"

// DefaultMaxAllowedHeaderSize specifies the default maximum size that a
// decode will allow a header to be without erroring. This is to prevent
// OOM errors where a header prefix includes a too-large size specifier.
// Currently set to 32 MiB.
const DefaultMaxAllowedHeaderSize uint64 = 32 << 20

// DefaultMaxAllowedSectionSize specifies the default maximum size that a
// decode will allow a section to be without erroring. Typically IPLD
// blocks should be under 2 MiB (ideally under 1 MiB), so unless atypical
// data is expected, this should not be a large value.
const DefaultMaxAllowedSectionSize uint64 = util.DefaultMaxAllowedSectionSize

// Option describes an option which affects behavior when interacting
// with CAR streams.
type Option func(*Options)

// Options holds the configured options after applying a number of Option
// funcs.
//
// This type should not be used directly by end users; it's only exposed
// as a side effect of Option.
type Options struct {
	MaxAllowedHeaderSize   uint64
	MaxAllowedSectionSize  uint64
	ZeroLengthSectionAsEOF bool
	ValidateBlockHash      bool
}

// ApplyOptions applies given opts and returns the resulting Options.
// This function should not be used directly by end users; it's only
// exposed as a side effect of Option.
func ApplyOptions(opt ...Option) Options {
	opts := Options{
		MaxAllowedHeaderSize:  DefaultMaxAllowedHeaderSize,
		MaxAllowedSectionSize: DefaultMaxAllowedSectionSize,
	}
	for _, o := range opt {
		o(&opts)
	}
	return opts
}

// MaxAllowedHeaderSize overrides the default maximum header size.
func MaxAllowedHeaderSize(max uint64) Option {
	return func(o *Options) {
		o.MaxAllowedHeaderSize = max
	}
}

// MaxAllowedSectionSize overrides the default maximum section size.
func MaxAllowedSectionSize(max uint64) Option {
	return func(o *Options) {
		o.MaxAllowedSectionSize = max
	}
}

// ZeroLengthSectionAsEOF sets whether to allow the decoder to treat a
// zero-length section as the end of the input CAR stream. For example,
// this can be useful to allow "null padding" after a CARv1 without
// knowing where the padding begins.
func ZeroLengthSectionAsEOF(enable bool) Option {
	return func(o *Options) {
		o.ZeroLengthSectionAsEOF = enable
	}
}

// ValidateBlockHash sets whether decoded blocks are checked against
// their CID by rehashing the payload. The codec itself never binds a CID
// to its payload; this opt-in check is the only place it does.
func ValidateBlockHash(enable bool) Option {
	return func(o *Options) {
		o.ValidateBlockHash = enable
	}
}
