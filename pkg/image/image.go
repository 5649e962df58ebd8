//Package image moves whole address ranges between a flash device and byte
// streams, one reliability-checked driver operation per byte
package image

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/tarndt/flashdrv/pkg/flashdrv"
)

//ProgressFunc is called after every byte transferred with the running count
type ProgressFunc func(done int64)

//MismatchError is returned by Verify when device content differs from the reference
type MismatchError struct {
	Addr      uint64
	Want, Got byte
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("Flash content differs at address 0x%X: holds 0x%02X, expected 0x%02X", e.Addr, e.Got, e.Want)
}

//Dump reads count bytes starting at pos through drv and writes them to wtr.
// The context is checked between bytes; a read already issued is never
// interrupted. It returns the number of bytes written to wtr.
func Dump(ctx context.Context, drv *flashdrv.DeviceDriver, pos uint64, count int64, wtr io.Writer, progress ProgressFunc) (done int64, err error) {
	bufWtr := bufio.NewWriter(wtr)
	defer func() {
		if flushErr := bufWtr.Flush(); flushErr != nil && err == nil {
			err = fmt.Errorf("Could not flush dump output: %w", flushErr)
		}
	}()

	for ; done < count; done++ {
		if err = ctx.Err(); err != nil {
			return done, err
		}

		addr := pos + uint64(done)
		val, err := drv.Read(addr)
		if err != nil {
			return done, fmt.Errorf("Could not read address 0x%X: %w", addr, err)
		}
		if err = bufWtr.WriteByte(val); err != nil {
			return done, fmt.Errorf("Could not write dump output: %w", err)
		}
		if progress != nil {
			progress(done + 1)
		}
	}
	return done, nil
}

//Program writes the bytes of rdr to the device starting at pos through drv
// until rdr is exhausted. Bytes equal to flashdrv.ByteErased are skipped as
// the target range must already be erased. It returns the number of bytes
// consumed from rdr before any error.
func Program(ctx context.Context, drv *flashdrv.DeviceDriver, pos uint64, rdr io.Reader, progress ProgressFunc) (done int64, err error) {
	bufRdr := bufio.NewReader(rdr)

	for ; ; done++ {
		if err = ctx.Err(); err != nil {
			return done, err
		}

		val, err := bufRdr.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return done, nil
			}
			return done, fmt.Errorf("Could not read image input: %w", err)
		}

		if val != flashdrv.ByteErased {
			addr := pos + uint64(done)
			if err = drv.Write(addr, val); err != nil {
				return done, fmt.Errorf("Could not program address 0x%X: %w", addr, err)
			}
		}
		if progress != nil {
			progress(done + 1)
		}
	}
}

//Verify compares the device starting at pos with the bytes of rdr, returning a
// *MismatchError for the first difference
func Verify(ctx context.Context, drv *flashdrv.DeviceDriver, pos uint64, rdr io.Reader, progress ProgressFunc) (done int64, err error) {
	bufRdr := bufio.NewReader(rdr)

	for ; ; done++ {
		if err = ctx.Err(); err != nil {
			return done, err
		}

		want, err := bufRdr.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return done, nil
			}
			return done, fmt.Errorf("Could not read reference input: %w", err)
		}

		addr := pos + uint64(done)
		got, err := drv.Read(addr)
		if err != nil {
			return done, fmt.Errorf("Could not read address 0x%X: %w", addr, err)
		}
		if got != want {
			return done, &MismatchError{Addr: addr, Want: want, Got: got}
		}
		if progress != nil {
			progress(done + 1)
		}
	}
}
