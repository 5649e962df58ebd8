package flaky

import (
	"time"
)

//Option configures the faults a flaky Device injects
type Option interface {
	apply(*Device)
}

//OptUnstableAddrs makes every other read of the listed addresses return the
// stored value with its lowest bit flipped
type OptUnstableAddrs []uint64

func (addrs OptUnstableAddrs) apply(dev *Device) {
	for _, addr := range addrs {
		dev.unstable[addr] = struct{}{}
	}
}

//OptFlipEvery makes every nth read (of any address) return the stored value
// with its highest bit flipped; 0 disables
type OptFlipEvery uint64

func (n OptFlipEvery) apply(dev *Device) {
	dev.flipEvery = uint64(n)
}

//OptReadLatency delays every read
type OptReadLatency time.Duration

func (latency OptReadLatency) apply(dev *Device) {
	dev.readLatency = time.Duration(latency)
}

//OptReadFault makes reads of Addr fail with Err
type OptReadFault struct {
	Addr uint64
	Err  error
}

func (fault OptReadFault) apply(dev *Device) {
	dev.readFaults[fault.Addr] = fault.Err
}

//OptWriteFault makes writes of Addr fail with Err
type OptWriteFault struct {
	Addr uint64
	Err  error
}

func (fault OptWriteFault) apply(dev *Device) {
	dev.writeFaults[fault.Addr] = fault.Err
}
