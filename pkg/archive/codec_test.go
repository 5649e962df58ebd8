package archive

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodecNames(t *testing.T) {
	for _, codec := range []Codec{CodecIdentity, CodecS2, CodecGzip} {
		assert.Equal(t, codec, CodecFromName(codec.String()))
	}
	assert.Equal(t, CodecIdentity, CodecFromName(""))
	assert.Equal(t, CodecUnknown, CodecFromName("lz4"))
	assert.Equal(t, CodecUnknownName, CodecUnknown.String())

	_, err := CodecUnknown.NewReader(new(bytes.Buffer))
	assert.Error(t, err)
	_, err = CodecUnknown.NewWriter(new(bytes.Buffer))
	assert.Error(t, err)
}

func TestCodecStream(t *testing.T) {
	data := bytes.Repeat([]byte{0xFF, 0xFF, 0xFF, 0x00}, 1024)
	for _, codec := range []Codec{CodecIdentity, CodecS2, CodecGzip} {
		var buf bytes.Buffer
		wtr, err := codec.NewWriter(&buf)
		require.NoError(t, err)
		_, err = wtr.Write(data)
		require.NoError(t, err)
		require.NoError(t, wtr.Close())
		if codec != CodecIdentity {
			assert.Less(t, buf.Len(), len(data), "%s should shrink a repetitive image", codec)
		}

		rdr, err := codec.NewReader(&buf)
		require.NoError(t, err)
		actual, err := io.ReadAll(rdr)
		require.NoError(t, err)
		assert.Equal(t, data, actual)
	}
}
