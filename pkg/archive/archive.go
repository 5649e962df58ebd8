//Package archive saves flash contents read through the driver into an object
// store and programs them back, so a device can be backed up before an erase
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/tarndt/flashdrv/pkg/flashdrv"
	"github.com/tarndt/flashdrv/pkg/image"
	"github.com/tarndt/flashdrv/pkg/util/consterr"

	"github.com/dustin/go-humanize"
	"github.com/graymeta/stow"
	"github.com/sirupsen/logrus"
	"github.com/tarndt/sema"
)

const (
	//DefSegmentBytes is the default number of device bytes per remote object
	DefSegmentBytes = 64 * 1024
	itemPrefix      = "flashdrv-img_"
	listPageSize    = 64

	//ErrNotFound is returned when an archive has no manifest in the container
	ErrNotFound = consterr.ConstErr("Archive does not exist")
)

//Manifest describes a saved archive; it is stored next to its segments
type Manifest struct {
	Name         string    `json:"name"`
	Base         uint64    `json:"base"`
	Count        int64     `json:"count"`
	SegmentBytes int64     `json:"segmentBytes"`
	Codec        string    `json:"codec"`
	Segments     []string  `json:"segments"` //item IDs in address order
	Created      time.Time `json:"created"`
}

//String generates human-readable prose describing a Manifest
func (m *Manifest) String() string {
	return fmt.Sprintf("archive %q of %s from address 0x%X in %d %s segments (saved %s)",
		m.Name, humanize.IBytes(uint64(m.Count)), m.Base, len(m.Segments), m.Codec, humanize.Time(m.Created))
}

//Archive stores flash images in a stow.Container
type Archive struct {
	container    stow.Container
	segmentBytes int64
	concurUpload uint
	codec        Codec
	noMetadata   bool
	logger       logrus.FieldLogger
}

//New is the constructor for Archives kept in the provided container
func New(container stow.Container, options ...Option) (*Archive, error) {
	if container == nil {
		return nil, fmt.Errorf("Provided container was nil")
	}

	discard := logrus.New()
	discard.SetOutput(io.Discard)
	a := &Archive{
		container:    container,
		segmentBytes: DefSegmentBytes,
		concurUpload: 1,
		logger:       discard,
	}
	for _, opt := range options {
		opt.apply(a)
	}

	switch {
	case a.segmentBytes < 1:
		return nil, fmt.Errorf("Segment size must be positive, %d was provided", a.segmentBytes)
	case a.codec == CodecUnknown:
		return nil, fmt.Errorf("Unknown codec was provided")
	case a.noMetadata && a.codec != CodecIdentity:
		return nil, fmt.Errorf("Backing store does not support metadata, but %s compression is enabled", a.codec)
	}
	if a.concurUpload < 1 {
		a.concurUpload = 1
	}
	return a, nil
}

func manifestName(name string) string {
	return itemPrefix + name + "_manifest.json"
}

func segmentName(name string, idx int64) string {
	return fmt.Sprintf("%s%s_seg_%d", itemPrefix, name, idx)
}

//Save reads count bytes starting at pos through drv and stores them as the
// archive name. Reads are sequential; finished segments are uploaded while the
// next one is read. The manifest is written last, so a failed Save leaves no
// archive behind (though uploaded segments may remain).
func (a *Archive) Save(ctx context.Context, name string, drv *flashdrv.DeviceDriver, pos uint64, count int64) (*Manifest, error) {
	switch {
	case name == "":
		return nil, fmt.Errorf("No archive name was provided")
	case count < 1:
		return nil, fmt.Errorf("Archive must hold at least one byte, %d were requested", count)
	}

	segCount := (count + a.segmentBytes - 1) / a.segmentBytes
	manifest := &Manifest{
		Name:         name,
		Base:         pos,
		Count:        count,
		SegmentBytes: a.segmentBytes,
		Codec:        a.codec.String(),
		Segments:     make([]string, segCount),
	}
	log := a.logger.WithField("archive", name)

	errCh := make(chan error, 1)
	report := func(err error) {
		select {
		case errCh <- err:
		default:
		}
	}
	uploadSema := sema.NewChanSemaCount(a.concurUpload)
	var pending sync.WaitGroup

	for idx := int64(0); idx < segCount && len(errCh) == 0; idx++ {
		offset := idx * a.segmentBytes
		segLen := a.segmentBytes
		if remaining := count - offset; remaining < segLen {
			segLen = remaining
		}

		start := time.Now()
		buf := bytes.NewBuffer(make([]byte, 0, int(segLen)))
		if _, err := image.Dump(ctx, drv, pos+uint64(offset), segLen, buf, nil); err != nil {
			report(fmt.Errorf("Could not read segment %d of archive %q: %w", idx, name, err))
			break
		}
		log.WithField("segment", idx).Debugf("Read %s in %s", humanize.IBytes(uint64(segLen)), time.Since(start).Round(time.Millisecond))

		uploadSema.P()
		pending.Add(1)
		go func(idx int64, data []byte) {
			defer func() {
				uploadSema.V()
				pending.Done()
			}()

			item, err := putSegment(a.container, segmentName(name, idx), a.codec, data, !a.noMetadata)
			if err != nil {
				report(fmt.Errorf("Could not upload segment %d of archive %q to %s: %w", idx, name, describeContainer(a.container), err))
				return
			}
			manifest.Segments[idx] = item.ID()
			log.WithField("segment", idx).Debugf("Uploaded %s", describeItem(item))
		}(idx, buf.Bytes())
	}
	pending.Wait()
	close(errCh)

	if err := <-errCh; err != nil {
		return nil, err
	}

	manifest.Created = time.Now().UTC()
	raw, err := json.Marshal(manifest)
	if err != nil {
		return nil, fmt.Errorf("Could not encode manifest of archive %q: %w", name, err)
	}
	if _, err = a.container.Put(manifestName(name), bytes.NewReader(raw), int64(len(raw)), nil); err != nil {
		return nil, fmt.Errorf("Could not upload manifest of archive %q: %w", name, err)
	}
	log.Infof("Saved %s", manifest)
	return manifest, nil
}

//Manifest loads the manifest of the archive name
func (a *Archive) Manifest(name string) (*Manifest, error) {
	item, err := a.findItem(manifestName(name))
	if err != nil {
		return nil, err
	}

	rdr, err := item.Open()
	if err != nil {
		return nil, fmt.Errorf("Could not open %s: %w", describeItem(item), err)
	}
	defer rdr.Close()

	manifest := new(Manifest)
	if err = json.NewDecoder(rdr).Decode(manifest); err != nil {
		return nil, fmt.Errorf("Could not decode manifest %s: %w", describeItem(item), err)
	}
	if manifest.Count < 1 || manifest.SegmentBytes < 1 || int64(len(manifest.Segments)) != (manifest.Count+manifest.SegmentBytes-1)/manifest.SegmentBytes {
		return nil, fmt.Errorf("Manifest %s is inconsistent: %d segments of %d bytes cannot hold %d bytes",
			describeItem(item), len(manifest.Segments), manifest.SegmentBytes, manifest.Count)
	}
	return manifest, nil
}

func (a *Archive) findItem(itemName string) (stow.Item, error) {
	cursor := stow.CursorStart
	for {
		items, next, err := a.container.Items(itemName, cursor, listPageSize)
		if err != nil {
			return nil, fmt.Errorf("Could not enumerate items in %s: %w", describeContainer(a.container), err)
		}
		for _, item := range items {
			if item.Name() == itemName {
				return item, nil
			}
		}
		if stow.IsCursorEnd(next) {
			return nil, fmt.Errorf("No %q in %s: %w", itemName, describeContainer(a.container), ErrNotFound)
		}
		cursor = next
	}
}

//Restore programs the archive name into the device starting at pos through drv.
// The target range must be erased; erased bytes of the image are skipped.
func (a *Archive) Restore(ctx context.Context, name string, drv *flashdrv.DeviceDriver, pos uint64) (*Manifest, error) {
	manifest, err := a.Manifest(name)
	if err != nil {
		return nil, err
	}
	log := a.logger.WithField("archive", name)

	for idx, id := range manifest.Segments {
		offset := int64(idx) * manifest.SegmentBytes
		segLen := manifest.SegmentBytes
		if remaining := manifest.Count - offset; remaining < segLen {
			segLen = remaining
		}

		if err = a.restoreSegment(ctx, drv, pos+uint64(offset), id, segLen); err != nil {
			return nil, fmt.Errorf("Could not restore segment %d of archive %q: %w", idx, name, err)
		}
		log.WithField("segment", idx).Debugf("Programmed %s at 0x%X", humanize.IBytes(uint64(segLen)), pos+uint64(offset))
	}

	log.Infof("Restored %s to address 0x%X", manifest, pos)
	return manifest, nil
}

func (a *Archive) restoreSegment(ctx context.Context, drv *flashdrv.DeviceDriver, pos uint64, id string, segLen int64) error {
	item, err := a.container.Item(id)
	if err != nil {
		return fmt.Errorf("Could not find item %q in %s: %w", id, describeContainer(a.container), err)
	}

	rdr, size, err := openSegment(item, !a.noMetadata)
	if err != nil {
		return err
	}
	defer rdr.Close()
	if size != segLen {
		return fmt.Errorf("%s holds %d bytes, %d were expected", describeItem(item), size, segLen)
	}

	done, err := image.Program(ctx, drv, pos, rdr, nil)
	if err != nil {
		return err
	}
	if done != segLen {
		return fmt.Errorf("%s yielded %d bytes, %d were expected", describeItem(item), done, segLen)
	}
	return nil
}

//Remove deletes the archive name, manifest first
func (a *Archive) Remove(name string) error {
	manifest, err := a.Manifest(name)
	if err != nil {
		return err
	}
	item, err := a.findItem(manifestName(name))
	if err != nil {
		return err
	}
	if err = a.container.RemoveItem(item.ID()); err != nil {
		return fmt.Errorf("Could not remove %s: %w", describeItem(item), err)
	}
	for _, id := range manifest.Segments {
		if err = a.container.RemoveItem(id); err != nil {
			return fmt.Errorf("Could not remove segment %q of archive %q: %w", id, name, err)
		}
	}
	return nil
}
