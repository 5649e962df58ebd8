package ramflash

import (
	"sync"
	"sync/atomic"

	"github.com/tarndt/flashdrv/pkg/hardware"
	"github.com/tarndt/flashdrv/pkg/util"
)

//RAMFlash is a simple memory (heap) backed flash device. It starts fully erased
// and, like NOR flash, programming can only clear bits.
type RAMFlash struct {
	mu    sync.Mutex
	cells []byte
	size  int64

	atomicOnline uint64
}

var (
	_ hardware.Device       = (*RAMFlash)(nil)
	_ hardware.BlankChecker = (*RAMFlash)(nil)
)

//NewRAMFlash constructs a memory backed, erased flash device of the provided size
func NewRAMFlash(size int64) *RAMFlash {
	cells := make([]byte, int(size))
	util.EraseFill(cells)
	return &RAMFlash{
		cells:        cells,
		size:         size,
		atomicOnline: 1,
	}
}

//Size of this device in bytes
func (rf *RAMFlash) Size() int64 {
	return rf.size
}

//Read fulfills flashdrv.FlashMemoryDevice
func (rf *RAMFlash) Read(addr uint64) (byte, error) {
	if atomic.LoadUint64(&rf.atomicOnline) != 1 {
		return 0, hardware.ErrClosed
	}
	if err := hardware.CheckAddr(rf.size, addr); err != nil {
		return 0, err
	}

	rf.mu.Lock()
	defer rf.mu.Unlock()
	return rf.cells[addr], nil
}

//Write fulfills flashdrv.FlashMemoryDevice
func (rf *RAMFlash) Write(addr uint64, val byte) error {
	if atomic.LoadUint64(&rf.atomicOnline) != 1 {
		return hardware.ErrClosed
	}
	if err := hardware.CheckAddr(rf.size, addr); err != nil {
		return err
	}

	rf.mu.Lock()
	defer rf.mu.Unlock()
	rf.cells[addr] = hardware.Program(rf.cells[addr], val)
	return nil
}

//Erase fulfills part of hardware.Device
func (rf *RAMFlash) Erase(pos, count int64) error {
	if atomic.LoadUint64(&rf.atomicOnline) != 1 {
		return hardware.ErrClosed
	}
	if err := hardware.CheckRange(rf.size, pos, count); err != nil {
		return err
	}

	rf.mu.Lock()
	defer rf.mu.Unlock()
	util.EraseFill(rf.cells[pos : pos+count])
	return nil
}

//IsBlank fulfills hardware.BlankChecker
func (rf *RAMFlash) IsBlank(pos, count int64) (bool, error) {
	if atomic.LoadUint64(&rf.atomicOnline) != 1 {
		return false, hardware.ErrClosed
	}
	if err := hardware.CheckRange(rf.size, pos, count); err != nil {
		return false, err
	}

	rf.mu.Lock()
	defer rf.mu.Unlock()
	return util.IsErased(rf.cells[pos : pos+count]), nil
}

//Flush fulfills part of hardware.Device
func (rf *RAMFlash) Flush() error {
	if atomic.LoadUint64(&rf.atomicOnline) != 1 {
		return hardware.ErrClosed
	}
	return nil
}

//Close fulfills io.Closer and in turn part of hardware.Device
func (rf *RAMFlash) Close() error {
	atomic.StoreUint64(&rf.atomicOnline, 0)
	return nil
}
