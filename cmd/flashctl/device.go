package main

import (
	"fmt"

	"github.com/tarndt/flashdrv/cmd/flashctl/conf"
	"github.com/tarndt/flashdrv/pkg/hardware"
	"github.com/tarndt/flashdrv/pkg/hardware/fileflash"
	"github.com/tarndt/flashdrv/pkg/hardware/flaky"
	"github.com/tarndt/flashdrv/pkg/hardware/pebbleflash"
	"github.com/tarndt/flashdrv/pkg/hardware/ramflash"

	log "github.com/sirupsen/logrus"
)

func openDevice(cfg *conf.Config) (dev hardware.Device, err error) {
	size := int64(cfg.Size)

	switch cfg.Hardware {
	case conf.HWMem:
		dev = ramflash.NewRAMFlash(size)

	case conf.HWFile:
		if dev, err = fileflash.NewFileFlash(cfg.ImagePath, size); err != nil {
			return nil, fmt.Errorf("Could not open file backed flash: %w", err)
		}

	case conf.HWPebble:
		if dev, err = pebbleflash.NewPebbleFlash(cfg.ImagePath, size, int(cfg.PebbleCache)); err != nil {
			return nil, fmt.Errorf("Could not open pebbleDB backed flash: %w", err)
		}

	default:
		return nil, fmt.Errorf("Bug: Could not open device: unknown hardware binding enum: %d", cfg.Hardware)
	}

	if cfg.SimConfig.Enabled() {
		log.Warnf("Fault simulation is enabled, %s", &cfg.SimConfig)
		dev = flaky.New(dev,
			flaky.OptUnstableAddrs(cfg.SimConfig.UnstableAddrs),
			flaky.OptFlipEvery(cfg.SimConfig.FlipEvery),
			flaky.OptReadLatency(cfg.SimConfig.ReadLatency),
		)
	}
	return dev, nil
}
