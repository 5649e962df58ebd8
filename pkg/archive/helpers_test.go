package archive

import (
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/graymeta/stow"
	"github.com/graymeta/stow/s3"
	"github.com/johannesboyne/gofakes3"
	"github.com/johannesboyne/gofakes3/backend/s3mem"

	"github.com/tarndt/flashdrv/pkg/flashdrv"
	"github.com/tarndt/flashdrv/pkg/hardware/flaky"
	"github.com/tarndt/flashdrv/pkg/hardware/ramflash"
)

func s3Container(t *testing.T) stow.Container {
	srv := httptest.NewServer(gofakes3.New(s3mem.New()).Server())
	t.Cleanup(srv.Close)

	cfg := stow.ConfigMap{
		s3.ConfigEndpoint:    srv.URL,
		s3.ConfigAccessKeyID: "fake",
		s3.ConfigSecretKey:   "fake",
	}
	if err := ValidateConfig(KindS3, cfg); err != nil {
		t.Fatalf("Could not validate store config: %s", err)
	}
	store, err := NewStore(KindS3, cfg)
	if err != nil {
		t.Fatalf("Could not create s3 object store: %s", err)
	}

	container, err := OpenContainer(store, strconv.FormatInt(time.Now().UnixNano(), 36))
	if err != nil {
		t.Fatalf("Could not create container: %s", err)
	}
	return container
}

func createArchive(t *testing.T, container stow.Container, options ...Option) *Archive {
	a, err := New(container, options...)
	if err != nil {
		t.Fatalf("Could not create archive: %s", err)
	}
	return a
}

//newDevice returns an erased device with data programmed at pos
func newDevice(t *testing.T, size int64, pos uint64, data []byte, options ...flaky.Option) (*flaky.Device, *flashdrv.DeviceDriver) {
	dev := flaky.New(ramflash.NewRAMFlash(size), options...)
	for i, val := range data {
		if err := dev.Write(pos+uint64(i), val); err != nil {
			t.Fatalf("Could not program test device: %s", err)
		}
	}
	return dev, flashdrv.NewDeviceDriver(dev)
}

func readRange(t *testing.T, dev *flaky.Device, pos uint64, count int) []byte {
	out := make([]byte, count)
	for i := range out {
		val, err := dev.Read(pos + uint64(i))
		if err != nil {
			t.Fatalf("Could not read test device: %s", err)
		}
		out[i] = val
	}
	return out
}
