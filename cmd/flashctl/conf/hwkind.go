package conf

import (
	"fmt"
	"strings"
)

//These are enums that map to each of the available hardware bindings
const (
	HWUnknown HardwareKind = iota
	HWMem
	HWFile
	HWPebble
)

//HardwareKind represents the available hardware bindings
type HardwareKind uint8

//NewHardwareKind constructs a HardwareKind from a human textual short name (from config)
func NewHardwareKind(desc string) HardwareKind {
	switch strings.ToLower(desc) {
	case "mem", "memory", "ram":
		return HWMem
	case "file", "image":
		return HWFile
	case "pebble", "db":
		return HWPebble
	default:
		return HWUnknown
	}
}

//String is a human readable description of the binding for display
func (hk HardwareKind) String() string {
	switch hk {
	case HWMem:
		return "ramflash"
	case HWFile:
		return "fileflash"
	case HWPebble:
		return "pebbleflash"
	default:
		return "unknown"
	}
}

//Set parses a binding name, see: pflag.Value interface
func (hk *HardwareKind) Set(str string) error {
	if *hk = NewHardwareKind(str); *hk == HWUnknown {
		return fmt.Errorf("Unknown hardware type %q, use 'mem', 'file' or 'pebble'", str)
	}
	return nil
}

//Type names the flag value kind in help output, see: pflag.Value interface
func (*HardwareKind) Type() string { return "hardware" }

//Persistent returns true if the binding keeps its content between runs
func (hk HardwareKind) Persistent() bool {
	return hk == HWFile || hk == HWPebble
}
