package archive

import (
	"bytes"
	"fmt"
	"io"
	"strconv"

	"github.com/graymeta/stow"
)

const (
	metaCodecHeader = "x-flashdrv-codec"
	metaSizeHeader  = "x-flashdrv-size"
)

//putSegment compresses data with codec and stores it as a new item named name.
// The codec and uncompressed size are recorded in the item's metadata unless
// the store does not support metadata, in which case codec must be identity.
func putSegment(container stow.Container, name string, codec Codec, data []byte, withMetadata bool) (stow.Item, error) {
	if !withMetadata {
		if codec != CodecIdentity {
			return nil, fmt.Errorf("Store does not support metadata, %s codec cannot be recorded", codec)
		}
		return container.Put(name, bytes.NewReader(data), int64(len(data)), nil)
	}

	payload := data
	if codec != CodecIdentity {
		var compressed bytes.Buffer
		wtr, err := codec.NewWriter(&compressed)
		if err != nil {
			return nil, err
		}
		if _, err = wtr.Write(data); err != nil {
			wtr.Close()
			return nil, fmt.Errorf("Could not %s compress segment %q: %w", codec, name, err)
		}
		if err = wtr.Close(); err != nil {
			return nil, fmt.Errorf("Could not finish %s compression of segment %q: %w", codec, name, err)
		}
		payload = compressed.Bytes()
	}

	metadata := map[string]interface{}{
		metaCodecHeader: codec.String(),
		metaSizeHeader:  strconv.FormatInt(int64(len(data)), 36),
	}
	return container.Put(name, bytes.NewReader(payload), int64(len(payload)), metadata)
}

//openSegment opens item for reading, undoing any compression recorded in its metadata
func openSegment(item stow.Item, withMetadata bool) (io.ReadCloser, int64, error) {
	if !withMetadata {
		size, err := item.Size()
		if err != nil {
			return nil, 0, fmt.Errorf("Could not determine size of %s: %w", describeItem(item), err)
		}
		rdr, err := item.Open()
		return rdr, size, err
	}

	md, err := item.Metadata()
	if err != nil {
		return nil, 0, fmt.Errorf("Could not read metadata of %s: %w", describeItem(item), err)
	}

	codec, size := CodecIdentity, int64(-1)
	if val, exists := md[metaCodecHeader]; exists {
		name, isString := val.(string)
		if !isString {
			return nil, 0, fmt.Errorf("Codec metadata of %s was a %T not a string", describeItem(item), val)
		}
		if codec = CodecFromName(name); codec == CodecUnknown {
			return nil, 0, fmt.Errorf("Metadata of %s specified unsupported codec %q", describeItem(item), name)
		}
	}
	if val, exists := md[metaSizeHeader]; exists {
		sizeStr, isString := val.(string)
		if !isString {
			return nil, 0, fmt.Errorf("Size metadata of %s was a %T not a string", describeItem(item), val)
		}
		if size, err = strconv.ParseInt(sizeStr, 36, 64); err != nil {
			return nil, 0, fmt.Errorf("Size metadata %q of %s was not a base36 integer: %w", sizeStr, describeItem(item), err)
		}
	}
	if size < 0 {
		if size, err = item.Size(); err != nil {
			return nil, 0, fmt.Errorf("Could not determine size of %s: %w", describeItem(item), err)
		}
	}

	itemRdr, err := item.Open()
	if err != nil || codec == CodecIdentity {
		return itemRdr, size, err
	}
	decompRdr, err := codec.NewReader(itemRdr)
	if err != nil {
		itemRdr.Close()
		return nil, 0, fmt.Errorf("Could not create %s decompressor for %s: %w", codec, describeItem(item), err)
	}
	return readCloser{Reader: decompRdr, Closer: itemRdr}, size, nil
}

//readCloser reads through a decompressor but closes the underlying item stream
type readCloser struct {
	io.Reader
	io.Closer
}
