package fetch

import (
	"bytes"
	"compress/bzip2"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// Encoding is the container format detected from a payload's leading bytes.
type Encoding string

const (
	EncodingIdentity Encoding = "identity"
	EncodingGzip     Encoding = "gzip"
	EncodingZlib     Encoding = "zlib"
	EncodingZstd     Encoding = "zstd"
	EncodingXZ       Encoding = "xz"
	EncodingBzip2    Encoding = "bzip2"
)

// sniffLen is the number of leading bytes Sniff needs.
const sniffLen = 6

var (
	magicGzip  = []byte{0x1f, 0x8b}
	magicZstd  = []byte{0x28, 0xb5, 0x2f, 0xfd}
	magicXZ    = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
	magicBzip2 = []byte("BZh")
)

// Sniff detects compression from magic bytes. Response headers and file
// extensions are not consulted.
func Sniff(header []byte) Encoding {
	switch {
	case bytes.HasPrefix(header, magicGzip):
		return EncodingGzip
	case bytes.HasPrefix(header, magicZstd):
		return EncodingZstd
	case bytes.HasPrefix(header, magicXZ):
		return EncodingXZ
	case bytes.HasPrefix(header, magicBzip2):
		return EncodingBzip2
	case isZlibHeader(header):
		return EncodingZlib
	default:
		return EncodingIdentity
	}
}

// isZlibHeader checks the RFC 1950 CMF/FLG pair: deflate with a 32K window
// and a header checksum divisible by 31.
func isZlibHeader(h []byte) bool {
	if len(h) < 2 || h[0] != 0x78 {
		return false
	}
	return (uint16(h[0])<<8|uint16(h[1]))%31 == 0
}

// newDecompressor wraps r for enc. The identity encoding is not handled here.
func newDecompressor(enc Encoding, r io.Reader) (io.ReadCloser, error) {
	switch enc {
	case EncodingGzip:
		gr, err := gzip.NewReader(r)
		if err != nil {
			return nil, err
		}
		return gr, nil
	case EncodingZlib:
		return zlib.NewReader(r)
	case EncodingZstd:
		d, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, err
		}
		return d.IOReadCloser(), nil
	case EncodingXZ:
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, err
		}
		return io.NopCloser(xr), nil
	case EncodingBzip2:
		return io.NopCloser(bzip2.NewReader(r)), nil
	default:
		return nil, fmt.Errorf("no decompressor for %s", enc)
	}
}
