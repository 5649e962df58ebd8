package pebbleflash

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/tarndt/flashdrv/pkg/flashdrv"
	"github.com/tarndt/flashdrv/pkg/hardware"

	"github.com/cockroachdb/pebble"
)

//Keys are a one byte namespace followed by a big-endian address so that
// address order is key order and erasing a range is a single DeleteRange
const (
	cellPrefix = 'c'
	metaPrefix = 'm'
	cellKeyLen = 9
)

var sizeKey = []byte{metaPrefix, 's', 'i', 'z', 'e'}

//PebbleFlash is a persistent flash device stored sparsely in PebbleDB: only
// programmed cells have keys, an absent key reads as erased
type PebbleFlash struct {
	dbPath    string
	db        *pebble.DB
	size      int64
	writeOpts *pebble.WriteOptions

	atomicOnline uint64
	closeOnce    sync.Once
	closeErr     error
}

var (
	_ hardware.Device       = (*PebbleFlash)(nil)
	_ hardware.BlankChecker = (*PebbleFlash)(nil)
)

//NewPebbleFlash opens (or creates) a device of size bytes at dbPath. An existing
// database created with a different size is rejected.
func NewPebbleFlash(dbPath string, size int64, cacheBytes int) (*PebbleFlash, error) {
	if size < 1 {
		return nil, fmt.Errorf("Device size must be positive, %d was provided", size)
	}

	opts := &pebble.Options{}
	if cacheBytes > 0 {
		opts.Cache = pebble.NewCache(int64(cacheBytes))
	}
	db, err := pebble.Open(dbPath, opts)
	if err != nil {
		return nil, fmt.Errorf("Could not open database %q: %w", dbPath, err)
	}

	pf := &PebbleFlash{
		dbPath:       dbPath,
		db:           db,
		size:         size,
		writeOpts:    pebble.NoSync,
		atomicOnline: 1,
	}
	if err = pf.checkSize(); err != nil {
		db.Close()
		return nil, err
	}
	return pf, nil
}

func (pf *PebbleFlash) checkSize() error {
	rawVal, closer, err := pf.db.Get(sizeKey)
	switch {
	case errors.Is(err, pebble.ErrNotFound):
		rawVal = make([]byte, 8)
		binary.BigEndian.PutUint64(rawVal, uint64(pf.size))
		if err = pf.db.Set(sizeKey, rawVal, pebble.Sync); err != nil {
			return fmt.Errorf("Could not record device size in %q: %w", pf.dbPath, err)
		}
		return nil

	case err != nil:
		return fmt.Errorf("Could not read device size from %q: %w", pf.dbPath, err)
	}
	defer closer.Close()

	if len(rawVal) != 8 {
		return fmt.Errorf("Recorded device size in %q is corrupt (%d bytes)", pf.dbPath, len(rawVal))
	}
	if recorded := int64(binary.BigEndian.Uint64(rawVal)); recorded != pf.size {
		return fmt.Errorf("Database %q holds a device of %d bytes, but %d bytes were requested", pf.dbPath, recorded, pf.size)
	}
	return nil
}

func cellKey(addr uint64) []byte {
	key := make([]byte, cellKeyLen)
	key[0] = cellPrefix
	binary.BigEndian.PutUint64(key[1:], addr)
	return key
}

//Size of this device in bytes
func (pf *PebbleFlash) Size() int64 {
	return pf.size
}

//Read fulfills flashdrv.FlashMemoryDevice
func (pf *PebbleFlash) Read(addr uint64) (byte, error) {
	if atomic.LoadUint64(&pf.atomicOnline) != 1 {
		return 0, hardware.ErrClosed
	}
	if err := hardware.CheckAddr(pf.size, addr); err != nil {
		return 0, err
	}
	return pf.get(addr)
}

func (pf *PebbleFlash) get(addr uint64) (byte, error) {
	rawVal, closer, err := pf.db.Get(cellKey(addr))
	switch {
	case errors.Is(err, pebble.ErrNotFound):
		return flashdrv.ByteErased, nil
	case err != nil:
		return 0, fmt.Errorf("Database get of address 0x%X failed: %w", addr, err)
	}
	defer closer.Close()

	if len(rawVal) != 1 {
		return 0, fmt.Errorf("Database value of address 0x%X is corrupt (%d bytes)", addr, len(rawVal))
	}
	return rawVal[0], nil
}

//Write fulfills flashdrv.FlashMemoryDevice
func (pf *PebbleFlash) Write(addr uint64, val byte) error {
	if atomic.LoadUint64(&pf.atomicOnline) != 1 {
		return hardware.ErrClosed
	}
	if err := hardware.CheckAddr(pf.size, addr); err != nil {
		return err
	}

	old, err := pf.get(addr)
	if err != nil {
		return err
	}
	if cell := hardware.Program(old, val); cell != flashdrv.ByteErased {
		if err = pf.db.Set(cellKey(addr), []byte{cell}, pf.writeOpts); err != nil {
			return fmt.Errorf("Database put of address 0x%X failed: %w", addr, err)
		}
	}
	return nil
}

//Erase fulfills part of hardware.Device
func (pf *PebbleFlash) Erase(pos, count int64) error {
	if atomic.LoadUint64(&pf.atomicOnline) != 1 {
		return hardware.ErrClosed
	}
	if err := hardware.CheckRange(pf.size, pos, count); err != nil {
		return err
	}
	if count == 0 {
		return nil
	}

	if err := pf.db.DeleteRange(cellKey(uint64(pos)), cellKey(uint64(pos+count)), pf.writeOpts); err != nil {
		return fmt.Errorf("Database delete of range [0x%X, 0x%X) failed: %w", pos, pos+count, err)
	}
	return nil
}

//IsBlank fulfills hardware.BlankChecker; a range is blank when it holds no keys
func (pf *PebbleFlash) IsBlank(pos, count int64) (bool, error) {
	if atomic.LoadUint64(&pf.atomicOnline) != 1 {
		return false, hardware.ErrClosed
	}
	if err := hardware.CheckRange(pf.size, pos, count); err != nil {
		return false, err
	}
	if count == 0 {
		return true, nil
	}

	iter := pf.db.NewIter(&pebble.IterOptions{
		LowerBound: cellKey(uint64(pos)),
		UpperBound: cellKey(uint64(pos + count)),
	})
	blank := !iter.First()
	if err := iter.Close(); err != nil {
		return false, fmt.Errorf("Database iteration of range [0x%X, 0x%X) failed: %w", pos, pos+count, err)
	}
	return blank, nil
}

//Programmed returns the number of cells that are not erased
func (pf *PebbleFlash) Programmed() (count int64, err error) {
	if atomic.LoadUint64(&pf.atomicOnline) != 1 {
		return 0, hardware.ErrClosed
	}

	iter := pf.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte{cellPrefix},
		UpperBound: []byte{cellPrefix + 1},
	})
	for iter.First(); iter.Valid(); iter.Next() {
		count++
	}
	if err = iter.Close(); err != nil {
		return 0, fmt.Errorf("Database iteration failed: %w", err)
	}
	return count, nil
}

//Flush fulfills part of hardware.Device
func (pf *PebbleFlash) Flush() error {
	if atomic.LoadUint64(&pf.atomicOnline) != 1 {
		return hardware.ErrClosed
	}
	return pf.db.Flush()
}

//Close fulfills io.Closer and in turn part of hardware.Device
func (pf *PebbleFlash) Close() error {
	pf.closeOnce.Do(func() {
		atomic.StoreUint64(&pf.atomicOnline, 0)
		if err := pf.db.Close(); err != nil {
			pf.closeErr = fmt.Errorf("Could not close database %q: %w", pf.dbPath, err)
		}
	})
	return pf.closeErr
}
