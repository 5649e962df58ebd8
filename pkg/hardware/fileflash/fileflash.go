package fileflash

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/tarndt/flashdrv/pkg/flashdrv"
	"github.com/tarndt/flashdrv/pkg/hardware"
	"github.com/tarndt/flashdrv/pkg/util"

	"golang.org/x/sys/unix"
	"launchpad.net/gommap"
)

//FileFlash is a flash device backed by a memory mapped image file (ex. a full
// flash dump). The image is locked for exclusive use while open.
type FileFlash struct {
	file     *os.File
	filename string
	cells    gommap.MMap
	size     int64

	atomicOnline uint64
	closeOnce    sync.Once
	closeErr     error
}

var (
	_ hardware.Device       = (*FileFlash)(nil)
	_ hardware.BlankChecker = (*FileFlash)(nil)
)

//NewFileFlash opens the image at filename, creating it erased with ifCreateSize
// bytes if it is absent or empty
func NewFileFlash(filename string, ifCreateSize int64) (*FileFlash, error) {
	file, err := os.OpenFile(filename, os.O_RDWR|os.O_CREATE, 0666)
	if err != nil {
		return nil, fmt.Errorf("Could not open image file %q: %w", filename, err)
	}

	if err = unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		file.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, fmt.Errorf("Could not lock image file %q: %w", filename, hardware.ErrLocked)
		}
		return nil, fmt.Errorf("Could not lock image file %q: %w", filename, err)
	}

	ff, err := mapImage(file, filename, ifCreateSize)
	if err != nil {
		unix.Flock(int(file.Fd()), unix.LOCK_UN)
		file.Close()
		return nil, err
	}
	return ff, nil
}

func mapImage(file *os.File, filename string, ifCreateSize int64) (*FileFlash, error) {
	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("Could not stat image file %q: %w", filename, err)
	}

	size := info.Size()
	if size < 1 { //Create erased image
		if ifCreateSize < 1 {
			return nil, fmt.Errorf("Image file %q is empty and no size to create it with was provided", filename)
		}
		strm := bufio.NewWriter(file)
		for i := int64(0); i < ifCreateSize; i++ {
			if err = strm.WriteByte(flashdrv.ByteErased); err != nil {
				return nil, fmt.Errorf("Could not erase-fill image file %q, write failed: %w", filename, err)
			}
		}
		if err = strm.Flush(); err != nil {
			return nil, fmt.Errorf("Could not erase-fill image file %q, flush failed: %w", filename, err)
		}
		if err = file.Sync(); err != nil {
			return nil, fmt.Errorf("Could not erase-fill image file %q, sync failed: %w", filename, err)
		}
		size = ifCreateSize
	}

	mmap, err := gommap.Map(file.Fd(), gommap.PROT_READ|gommap.PROT_WRITE, gommap.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("Could not mmap image file %q (fd %d): %w", filename, file.Fd(), err)
	}

	return &FileFlash{
		file:         file,
		filename:     filename,
		cells:        mmap,
		size:         size,
		atomicOnline: 1,
	}, nil
}

//Size of this device in bytes
func (ff *FileFlash) Size() int64 {
	return ff.size
}

//Name describes the backing image
func (ff *FileFlash) Name() string {
	return fmt.Sprintf("flash image file %q", ff.filename)
}

//Read fulfills flashdrv.FlashMemoryDevice
func (ff *FileFlash) Read(addr uint64) (byte, error) {
	if atomic.LoadUint64(&ff.atomicOnline) != 1 {
		return 0, hardware.ErrClosed
	}
	if err := hardware.CheckAddr(ff.size, addr); err != nil {
		return 0, err
	}
	return ff.cells[addr], nil
}

//Write fulfills flashdrv.FlashMemoryDevice
func (ff *FileFlash) Write(addr uint64, val byte) error {
	if atomic.LoadUint64(&ff.atomicOnline) != 1 {
		return hardware.ErrClosed
	}
	if err := hardware.CheckAddr(ff.size, addr); err != nil {
		return err
	}

	ff.cells[addr] = hardware.Program(ff.cells[addr], val)
	return ff.cells.Sync(gommap.MS_ASYNC)
}

//Erase fulfills part of hardware.Device
func (ff *FileFlash) Erase(pos, count int64) error {
	if atomic.LoadUint64(&ff.atomicOnline) != 1 {
		return hardware.ErrClosed
	}
	if err := hardware.CheckRange(ff.size, pos, count); err != nil {
		return err
	}

	util.EraseFill(ff.cells[pos : pos+count])
	return ff.cells.Sync(gommap.MS_ASYNC)
}

//IsBlank fulfills hardware.BlankChecker
func (ff *FileFlash) IsBlank(pos, count int64) (bool, error) {
	if atomic.LoadUint64(&ff.atomicOnline) != 1 {
		return false, hardware.ErrClosed
	}
	if err := hardware.CheckRange(ff.size, pos, count); err != nil {
		return false, err
	}
	return util.IsErased(ff.cells[pos : pos+count]), nil
}

//Flush fulfills part of hardware.Device
func (ff *FileFlash) Flush() error {
	if atomic.LoadUint64(&ff.atomicOnline) != 1 {
		return hardware.ErrClosed
	}
	if err := ff.cells.Sync(gommap.MS_SYNC); err != nil {
		return fmt.Errorf("Could not sync %s: %w", ff.Name(), err)
	}
	return nil
}

//Close fulfills io.Closer and in turn part of hardware.Device; the image is
// synced, unmapped and unlocked
func (ff *FileFlash) Close() error {
	ff.closeOnce.Do(func() {
		atomic.StoreUint64(&ff.atomicOnline, 0)

		errs := []error{
			ff.cells.Sync(gommap.MS_SYNC),
			ff.cells.UnsafeUnmap(),
			unix.Flock(int(ff.file.Fd()), unix.LOCK_UN),
			ff.file.Close(),
		}
		for _, err := range errs {
			if err != nil {
				ff.closeErr = fmt.Errorf("Could not cleanly close %s: %w", ff.Name(), err)
				break
			}
		}
	})
	return ff.closeErr
}
