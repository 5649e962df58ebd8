//Package hwtest holds the sanity suites every hardware binding is run through
package hwtest

import (
	"errors"
	"fmt"
	"path"
	"strings"
	"testing"

	"github.com/tarndt/flashdrv/pkg/flashdrv"
	"github.com/tarndt/flashdrv/pkg/hardware"
)

//TestBackend runs the full suite of binding level tests on the provided device
// and closes it
func TestBackend(t *testing.T, dev hardware.Device, expectedSize int64) {
	t.Run("backend-"+pkgName(dev), func(t *testing.T) {
		t.Parallel()

		TestDevSize(t, dev, expectedSize)
		TestErased(t, dev)
		TestBlank(t, dev, true)
		TestProgram(t, dev)
		TestBlank(t, dev, false)
		TestErase(t, dev)
		TestBlank(t, dev, true)
		TestBounds(t, dev)
		TestClose(t, dev)
	})
}

//TestDriver runs a flashdrv.DeviceDriver against the provided device, which must
// be erased and hold at least two bytes. Each reliable read costs at least
// (HardwareAccessTry-1)*ReadInterval.
func TestDriver(t *testing.T, dev hardware.Device) {
	t.Run("driver-"+pkgName(dev), func(t *testing.T) {
		t.Parallel()

		drv := flashdrv.NewDeviceDriver(dev)
		const addr, val = 1, 0x5A

		if err := drv.Write(addr, val); err != nil {
			t.Fatalf("Write to erased cell failed: %s", err)
		}
		if err := drv.Write(addr, val); !errors.Is(err, flashdrv.ErrNotErased) {
			t.Fatalf("Second write to cell returned %v rather than %q", err, flashdrv.ErrNotErased)
		}
		if actual, err := drv.Read(addr); err != nil {
			t.Fatalf("Reliable read failed: %s", err)
		} else if actual != val {
			t.Fatalf("Reliable read returned 0x%02X, expecting 0x%02X", actual, val)
		}

		//binding errors reach the caller unchanged
		if _, err := drv.Read(uint64(dev.Size())); !errors.Is(err, hardware.ErrOutOfRange) {
			t.Fatalf("Out of range read returned %v rather than %q", err, hardware.ErrOutOfRange)
		}
		if err := drv.Write(uint64(dev.Size()), val); !errors.Is(err, hardware.ErrOutOfRange) {
			t.Fatalf("Out of range write returned %v rather than %q", err, hardware.ErrOutOfRange)
		}

		if err := dev.Erase(addr, 1); err != nil {
			t.Fatalf("Could not erase cell: %s", err)
		}
		if err := drv.Write(addr, val^0xFF); err != nil {
			t.Fatalf("Write after erase failed: %s", err)
		}

		TestClose(t, dev)
	})
}

//TestDevSize verifies the provided device reports the correct size
func TestDevSize(t *testing.T, dev hardware.Device, expectedSize int64) {
	t.Run("dev-size", func(t *testing.T) {
		if actual := dev.Size(); actual != expectedSize {
			t.Fatalf("Expected device size to be %d but it was %d", expectedSize, actual)
		}
	})
}

//TestErased verifies every cell of the provided device reads as erased
func TestErased(t *testing.T, dev hardware.Device) {
	t.Run("read-erased", func(t *testing.T) {
		for addr := uint64(0); addr < uint64(dev.Size()); addr++ {
			actual, err := dev.Read(addr)
			if err != nil {
				t.Fatalf("Failed to read byte %d of %d: %s", addr+1, dev.Size(), err)
			}
			if actual != flashdrv.ByteErased {
				t.Fatalf("Non-erased value 0x%02X found at 0x%X", actual, addr)
			}
		}
	})
}

//TestProgram writes a pattern to the provided device and reads it back, then
// confirms reprogramming a cell can only clear bits
func TestProgram(t *testing.T, dev hardware.Device) {
	count := uint64(dev.Size())

	t.Run("program-pattern", func(t *testing.T) {
		for addr := uint64(0); addr < count; addr++ {
			if err := dev.Write(addr, PatternVal(addr)); err != nil {
				t.Fatalf("Failed to write byte %d of %d: %s", addr+1, count, err)
			}
		}
		if err := dev.Flush(); err != nil {
			t.Fatalf("Failed to flush device: %s", err)
		}
		for addr := uint64(0); addr < count; addr++ {
			actual, err := dev.Read(addr)
			if err != nil {
				t.Fatalf("Failed to read byte %d of %d just written: %s", addr+1, count, err)
			}
			if expected := PatternVal(addr); actual != expected {
				t.Fatalf("Wrong value 0x%02X found at 0x%X, expecting 0x%02X", actual, addr, expected)
			}
		}
	})

	t.Run("reprogram-clears-bits", func(t *testing.T) {
		const addr = 0
		old, err := dev.Read(addr)
		if err != nil {
			t.Fatalf("Failed to read: %s", err)
		}
		const val = 0xF0
		if err = dev.Write(addr, val); err != nil {
			t.Fatalf("Failed to reprogram: %s", err)
		}
		if actual, err := dev.Read(addr); err != nil {
			t.Fatalf("Failed to read reprogrammed cell: %s", err)
		} else if expected := hardware.Program(old, val); actual != expected {
			t.Fatalf("Reprogrammed cell holds 0x%02X, expecting 0x%02X", actual, expected)
		}
	})
}

//TestErase erases the provided device in two passes and verifies it reads as erased
func TestErase(t *testing.T, dev hardware.Device) {
	t.Run("erase", func(t *testing.T) {
		half := dev.Size() / 2
		if err := dev.Erase(0, half); err != nil {
			t.Fatalf("Failed to erase first half: %s", err)
		}
		if half > 0 {
			if actual, err := dev.Read(uint64(half - 1)); err != nil || actual != flashdrv.ByteErased {
				t.Fatalf("Erased cell read back as 0x%02X (err: %v)", actual, err)
			}
		}
		if err := dev.Erase(half, dev.Size()-half); err != nil {
			t.Fatalf("Failed to erase second half: %s", err)
		}
		TestErased(t, dev)

		if err := dev.Erase(dev.Size()-1, 2); !errors.Is(err, hardware.ErrOutOfRange) {
			t.Fatalf("Erase beyond the device returned %v rather than %q", err, hardware.ErrOutOfRange)
		}
	})
}

//TestBlank checks the blank report of the whole device, and of its first and
// last cells, against the expected state. Devices that are not a
// hardware.BlankChecker are skipped.
func TestBlank(t *testing.T, dev hardware.Device, expected bool) {
	checker, isChecker := dev.(hardware.BlankChecker)
	if !isChecker {
		return
	}

	t.Run(fmt.Sprintf("blank-%t", expected), func(t *testing.T) {
		size := dev.Size()
		for _, rng := range [][2]int64{{0, size}, {0, 1}, {size - 1, 1}} {
			actual, err := checker.IsBlank(rng[0], rng[1])
			if err != nil {
				t.Fatalf("Blank check of [0x%X, 0x%X) failed: %s", rng[0], rng[0]+rng[1], err)
			}
			if actual != expected {
				t.Fatalf("Blank check of [0x%X, 0x%X) returned %t, expecting %t", rng[0], rng[0]+rng[1], actual, expected)
			}
		}

		if blank, err := checker.IsBlank(size, 0); err != nil || !blank {
			t.Fatalf("Empty range at the end of the device should be blank, got %t (err: %v)", blank, err)
		}
		if _, err := checker.IsBlank(size-1, 2); !errors.Is(err, hardware.ErrOutOfRange) {
			t.Fatalf("Blank check beyond the device returned %v rather than %q", err, hardware.ErrOutOfRange)
		}
	})
}

//TestBounds confirms access just past the end of the device fails
func TestBounds(t *testing.T, dev hardware.Device) {
	t.Run("bounds", func(t *testing.T) {
		end := uint64(dev.Size())
		if _, err := dev.Read(end); !errors.Is(err, hardware.ErrOutOfRange) {
			t.Fatalf("Read at 0x%X returned %v rather than %q", end, err, hardware.ErrOutOfRange)
		}
		if err := dev.Write(end, 0); !errors.Is(err, hardware.ErrOutOfRange) {
			t.Fatalf("Write at 0x%X returned %v rather than %q", end, err, hardware.ErrOutOfRange)
		}
	})
}

//TestClose confirms the device closes without error and subsequent operations fail
func TestClose(t *testing.T, dev hardware.Device) {
	t.Run("close", func(t *testing.T) {
		if err := dev.Close(); err != nil {
			t.Fatalf("Failed to close device: %s", err)
		}

		if _, err := dev.Read(0); err == nil {
			t.Fatal("Expected error during read on closed device")
		}
		if err := dev.Write(0, 0); err == nil {
			t.Fatal("Expected error during write on closed device")
		}
		if err := dev.Erase(0, 1); err == nil {
			t.Fatal("Expected error during erase on closed device")
		}
		if err := dev.Flush(); err == nil {
			t.Fatal("Expected error during flush on closed device")
		}
	})
}

//PatternVal is the value TestProgram writes at addr; it is never erased
func PatternVal(addr uint64) byte {
	return byte(addr % 251)
}

func pkgName(x interface{}) string {
	varType := strings.TrimPrefix(fmt.Sprintf("%T", x), "*")
	return strings.TrimSuffix(varType, path.Ext(varType))
}
