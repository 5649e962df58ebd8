//Package flaky wraps a hardware binding and injects the misbehavior real flash
// exhibits: cells that read back differently over time, slow reads and bus faults
package flaky

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/tarndt/flashdrv/pkg/hardware"
)

//Device is a hardware.Device that injects faults into the reads and writes of
// the device it wraps. Erase, Flush, Size and Close are passed through.
type Device struct {
	hardware.Device

	unstable    map[uint64]struct{}
	flipEvery   uint64
	readLatency time.Duration
	readFaults  map[uint64]error
	writeFaults map[uint64]error

	mu           sync.Mutex
	addrReads    map[uint64]uint64
	atomicReads  uint64
	atomicWrites uint64
}

var _ hardware.Device = (*Device)(nil)

//Stats counts the operations that reached a flaky Device
type Stats struct {
	Reads, Writes uint64
}

//New wraps dev with the fault injection described by options
func New(dev hardware.Device, options ...Option) *Device {
	fd := &Device{
		Device:      dev,
		unstable:    make(map[uint64]struct{}),
		readFaults:  make(map[uint64]error),
		writeFaults: make(map[uint64]error),
		addrReads:   make(map[uint64]uint64),
	}
	for _, opt := range options {
		opt.apply(fd)
	}
	return fd
}

//Read fulfills flashdrv.FlashMemoryDevice
func (fd *Device) Read(addr uint64) (byte, error) {
	count := atomic.AddUint64(&fd.atomicReads, 1)
	if fd.readLatency > 0 {
		time.Sleep(fd.readLatency)
	}
	if err, faulty := fd.readFaults[addr]; faulty {
		return 0, err
	}

	val, err := fd.Device.Read(addr)
	if err != nil {
		return val, err
	}

	if _, unstable := fd.unstable[addr]; unstable {
		fd.mu.Lock()
		nth := fd.addrReads[addr]
		fd.addrReads[addr] = nth + 1
		fd.mu.Unlock()
		if nth%2 == 1 {
			val ^= 0x01
		}
	}
	if fd.flipEvery > 0 && count%fd.flipEvery == 0 {
		val ^= 0x80
	}
	return val, nil
}

//Write fulfills flashdrv.FlashMemoryDevice
func (fd *Device) Write(addr uint64, val byte) error {
	atomic.AddUint64(&fd.atomicWrites, 1)
	if err, faulty := fd.writeFaults[addr]; faulty {
		return err
	}
	return fd.Device.Write(addr, val)
}

//Stats returns the number of reads and writes issued so far
func (fd *Device) Stats() Stats {
	return Stats{
		Reads:  atomic.LoadUint64(&fd.atomicReads),
		Writes: atomic.LoadUint64(&fd.atomicWrites),
	}
}
