//Package hardware holds the contract shared by the concrete flash bindings
// (simulated and persistent) that the driver is run against.
package hardware

import (
	"fmt"

	"github.com/tarndt/flashdrv/pkg/flashdrv"
	"github.com/tarndt/flashdrv/pkg/util/consterr"
)

//Errors returned by hardware bindings
const (
	ErrOutOfRange = consterr.ConstErr("Address is outside of the flash device")
	ErrClosed     = consterr.ConstErr("Flash device is shutdown")
	ErrLocked     = consterr.ConstErr("Flash image is in use by another process")
)

//Device is a flash binding: the driver's collaborator plus the management
// operations an operator needs (sector erase, flushing and release)
type Device interface {
	flashdrv.FlashMemoryDevice

	//Size of the device in bytes; valid addresses are [0, Size)
	Size() int64
	//Erase resets count bytes starting at pos to flashdrv.ByteErased
	Erase(pos, count int64) error
	Flush() error
	Close() error
}

//BlankChecker is implemented by bindings that can tell whether a range is
// fully erased without issuing per-cell reads
type BlankChecker interface {
	IsBlank(pos, count int64) (bool, error)
}

//Program returns the value a cell holds after val is programmed over old.
// Programming can only clear bits; only an erase sets them again.
func Program(old, val byte) byte {
	return old & val
}

//CheckRange verifies [pos, pos+count) lies inside a device of size bytes
func CheckRange(size, pos, count int64) error {
	if pos < 0 || count < 0 || pos+count > size || pos+count < pos {
		return fmt.Errorf("Range [0x%X, 0x%X) exceeds device size 0x%X: %w", pos, pos+count, size, ErrOutOfRange)
	}
	return nil
}

//CheckAddr verifies addr is inside a device of size bytes
func CheckAddr(size int64, addr uint64) error {
	if addr >= uint64(size) {
		return fmt.Errorf("Address 0x%X exceeds device size 0x%X: %w", addr, size, ErrOutOfRange)
	}
	return nil
}
