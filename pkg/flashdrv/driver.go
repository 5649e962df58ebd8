package flashdrv

import (
	"time"
)

const (
	//HardwareAccessTry is the total number of hardware reads backing one reliable read
	HardwareAccessTry = 5
	//ByteErased is the value of a cell that has not been programmed since its last erase
	ByteErased byte = 0xFF
	//ReadInterval is the minimum spacing between consecutive confirmation reads
	ReadInterval = 200 * time.Millisecond
)

//FlashMemoryDevice is the hardware collaborator: a byte addressable store whose
// reads may be unstable. Errors it returns are passed through the driver untouched.
type FlashMemoryDevice interface {
	Read(addr uint64) (byte, error)
	Write(addr uint64, val byte) error
}

//DeviceDriver mediates access to a FlashMemoryDevice. It holds no state besides
// the hardware handle and does no locking; callers sharing one driver between
// goroutines must serialize their calls.
type DeviceDriver struct {
	hw FlashMemoryDevice
}

//NewDeviceDriver constructs a driver over the provided hardware, which it does not own
func NewDeviceDriver(hw FlashMemoryDevice) *DeviceDriver {
	return &DeviceDriver{hw: hw}
}

//Read returns the value at addr once HardwareAccessTry reads spaced at least
// ReadInterval apart have all agreed. A disagreeing read aborts with a
// *ReadFailError (errors.Is ErrUnstable) without issuing further reads.
func (drv *DeviceDriver) Read(addr uint64) (byte, error) {
	candidate, err := drv.hw.Read(addr)
	if err != nil {
		return 0, err
	}
	checkpoint := time.Now()

	for attempt := 1; attempt < HardwareAccessTry; attempt++ {
		waitAtLeast(checkpoint, ReadInterval)

		observed, err := drv.hw.Read(addr)
		if err != nil {
			return 0, err
		}
		checkpoint = time.Now()

		if observed != candidate {
			return 0, &ReadFailError{
				Kind:     Unstable,
				Address:  addr,
				Expected: candidate,
				Observed: observed,
				Attempt:  attempt,
			}
		}
	}

	return candidate, nil
}

//Write programs val at addr if, and only if, a single read shows the cell is
// erased. Otherwise a *WriteFailError (errors.Is ErrNotErased) is returned and
// the hardware is left untouched.
func (drv *DeviceDriver) Write(addr uint64, val byte) error {
	current, err := drv.hw.Read(addr)
	if err != nil {
		return err
	}
	if current != ByteErased {
		return &WriteFailError{Kind: NotErased, Address: addr, Current: current}
	}

	return drv.hw.Write(addr, val)
}
