package flashdrv

import (
	"fmt"

	"github.com/tarndt/flashdrv/pkg/util/consterr"
)

//Sentinels for errors.Is; the driver's concrete errors unwrap to these
const (
	ErrUnstable  = consterr.ConstErr("Flash cell returned an unstable value")
	ErrNotErased = consterr.ConstErr("Flash cell is not erased")
)

//ReadFailKind enumerates the reasons a reliable read can fail
type ReadFailKind uint8

//Unstable: confirmation reads of the same address disagreed
const Unstable ReadFailKind = iota + 1

func (k ReadFailKind) String() string {
	switch k {
	case Unstable:
		return "unstable"
	default:
		return "unknown"
	}
}

//WriteFailKind enumerates the reasons a guarded write can fail
type WriteFailKind uint8

//NotErased: the target cell was programmed since its last erase
const NotErased WriteFailKind = iota + 1

func (k WriteFailKind) String() string {
	switch k {
	case NotErased:
		return "not-erased"
	default:
		return "unknown"
	}
}

//ReadFailError reports an unreliable cell detected by DeviceDriver.Read
type ReadFailError struct {
	Kind     ReadFailKind
	Address  uint64
	Expected byte //value returned by the initial read
	Observed byte //first disagreeing value
	Attempt  int  //0-indexed hardware read that disagreed
}

func (e *ReadFailError) Error() string {
	return fmt.Sprintf("%s at address 0x%X: read %d returned 0x%02X, initial read returned 0x%02X",
		ErrUnstable, e.Address, e.Attempt, e.Observed, e.Expected)
}

//Unwrap allows errors.Is(err, ErrUnstable)
func (e *ReadFailError) Unwrap() error {
	switch e.Kind {
	case Unstable:
		return ErrUnstable
	}
	return nil
}

//WriteFailError reports a write refused by DeviceDriver.Write
type WriteFailError struct {
	Kind    WriteFailKind
	Address uint64
	Current byte
}

func (e *WriteFailError) Error() string {
	return fmt.Sprintf("%s at address 0x%X: holds 0x%02X, erase is required before writing", ErrNotErased, e.Address, e.Current)
}

//Unwrap allows errors.Is(err, ErrNotErased)
func (e *WriteFailError) Unwrap() error {
	switch e.Kind {
	case NotErased:
		return ErrNotErased
	}
	return nil
}
