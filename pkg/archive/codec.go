package archive

import (
	"compress/gzip"
	"fmt"
	"io"

	"github.com/klauspost/compress/s2"
)

//Codec is the compression applied to archived segments
type Codec uint8

//Available codecs and their textual names
const (
	CodecIdentity Codec = iota
	CodecUnknown
	CodecS2
	CodecGzip

	CodecIdentityName = "identity"
	CodecS2Name       = "s2"
	CodecGzipName     = "gzip"
	CodecUnknownName  = "unknown"
)

//CodecFromName constructs a Codec from a textual name
func CodecFromName(name string) Codec {
	switch name {
	case "", CodecIdentityName, "none":
		return CodecIdentity
	case CodecS2Name:
		return CodecS2
	case CodecGzipName:
		return CodecGzip
	}
	return CodecUnknown
}

//String returns the textual name of a Codec
func (c Codec) String() string {
	switch c {
	case CodecIdentity:
		return CodecIdentityName
	case CodecS2:
		return CodecS2Name
	case CodecGzip:
		return CodecGzipName
	}
	return CodecUnknownName
}

//NewReader wraps rdr with this codec's decompression
func (c Codec) NewReader(rdr io.Reader) (io.Reader, error) {
	switch c {
	case CodecIdentity:
		return rdr, nil
	case CodecGzip:
		return gzip.NewReader(rdr)
	case CodecS2:
		return s2.NewReader(rdr), nil
	}
	return nil, fmt.Errorf("Cannot create decompressor for %s codec", c)
}

//NewWriter wraps wtr with this codec's compression; closing the result
// finishes the compressed stream but does not close wtr
func (c Codec) NewWriter(wtr io.Writer) (io.WriteCloser, error) {
	switch c {
	case CodecIdentity:
		return nopWriteCloser{wtr}, nil
	case CodecGzip:
		return gzip.NewWriter(wtr), nil
	case CodecS2:
		return s2.NewWriter(wtr), nil
	}
	return nil, fmt.Errorf("Cannot create compressor for %s codec", c)
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
