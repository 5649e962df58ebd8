package conf

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

//Capacity is a count/size in bytes, its primary purpose is to allow flags
// to be human IEC values like "10 MiB"
type Capacity int64

//String returns capacity in human readable IEC units, see: pflag.Value interface
func (c *Capacity) String() string {
	return humanize.IBytes(uint64(*c))
}

//Set parses a human readable capacity, see: pflag.Value interface
func (c *Capacity) Set(str string) error {
	val, err := humanize.ParseBytes(str)
	if err != nil {
		return fmt.Errorf("Parsing %q failed: %w", str, err)
	}

	*c = Capacity(val)
	return nil
}

//Type names the flag value kind in help output, see: pflag.Value interface
func (*Capacity) Type() string { return "capacity" }
