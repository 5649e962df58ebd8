package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/tarndt/flashdrv/cmd/flashctl/conf"
	"github.com/tarndt/flashdrv/pkg/flashdrv"
	"github.com/tarndt/flashdrv/pkg/hardware"
	"github.com/tarndt/flashdrv/pkg/hardware/pebbleflash"
	"github.com/tarndt/flashdrv/pkg/image"

	"github.com/dustin/go-humanize"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const progressEvery = 64

//minReadTime is the least time reliably reading count bytes can take
func minReadTime(count int64) time.Duration {
	return time.Duration(count) * (flashdrv.HardwareAccessTry - 1) * flashdrv.ReadInterval
}

func progressLogger(verb string, total int64) image.ProgressFunc {
	start := time.Now()
	return func(done int64) {
		if done%progressEvery == 0 || done == total {
			log.WithField("elapsed", time.Since(start).Round(time.Second)).
				Infof("%s %s of %s", verb, humanize.IBytes(uint64(done)), humanize.IBytes(uint64(total)))
		}
	}
}

func newInfoCmd(sess *session) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Describe the configured device.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return sess.withDevice(func(dev hardware.Device, _ *flashdrv.DeviceDriver) error {
				sess.printf("binding: %s\nsize: %s (%d bytes)\n", sess.cfg.Hardware, humanize.IBytes(uint64(dev.Size())), dev.Size())
				if pf, isPebble := dev.(*pebbleflash.PebbleFlash); isPebble {
					programmed, err := pf.Programmed()
					if err != nil {
						return err
					}
					sess.printf("programmed cells: %d\n", programmed)
				}
				if checker, isChecker := dev.(hardware.BlankChecker); isChecker {
					blank, err := checker.IsBlank(0, dev.Size())
					if err != nil {
						return err
					}
					sess.printf("blank: %t\n", blank)
				}
				sess.printf("full reliable read: at least %s\n", minReadTime(dev.Size()))
				return nil
			})
		},
	}
}

func newReadCmd(sess *session) *cobra.Command {
	return &cobra.Command{
		Use:   "read <addr>",
		Short: "Reliably read one byte.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := conf.ParseAddr(args[0])
			if err != nil {
				return err
			}
			return sess.withDevice(func(_ hardware.Device, drv *flashdrv.DeviceDriver) error {
				val, err := drv.Read(addr)
				if err != nil {
					return err
				}
				sess.printf("0x%02X\n", val)
				return nil
			})
		},
	}
}

func newWriteCmd(sess *session) *cobra.Command {
	return &cobra.Command{
		Use:   "write <addr> <value>",
		Short: "Program one byte of an erased cell.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := conf.ParseAddr(args[0])
			if err != nil {
				return err
			}
			val, err := conf.ParseByte(args[1])
			if err != nil {
				return err
			}
			return sess.withDevice(func(_ hardware.Device, drv *flashdrv.DeviceDriver) error {
				if err := drv.Write(addr, val); err != nil {
					return err
				}
				log.Debugf("Programmed 0x%02X at address 0x%X", val, addr)
				return nil
			})
		},
	}
}

func newEraseCmd(sess *session) *cobra.Command {
	return &cobra.Command{
		Use:   "erase [<pos> <count>]",
		Short: "Erase a range of cells, or the whole device.",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 && len(args) != 2 {
				return fmt.Errorf("erase takes no arguments or both a position and a count, %d were provided", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			var pos, count int64
			wholeDevice := len(args) == 0
			if !wholeDevice {
				addr, err := conf.ParseAddr(args[0])
				if err != nil {
					return err
				}
				if count, err = conf.ParseCount(args[1]); err != nil {
					return err
				}
				pos = int64(addr)
			}
			return sess.withDevice(func(dev hardware.Device, _ *flashdrv.DeviceDriver) error {
				if wholeDevice {
					count = dev.Size()
				}
				if err := dev.Erase(pos, count); err != nil {
					return err
				}
				log.Infof("Erased %s at address 0x%X", humanize.IBytes(uint64(count)), pos)
				return nil
			})
		},
	}
}

func newDumpCmd(sess *session) *cobra.Command {
	return &cobra.Command{
		Use:   "dump <pos> <count> <file|->",
		Short: "Reliably read a range of cells into a file.",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			pos, err := conf.ParseAddr(args[0])
			if err != nil {
				return err
			}
			count, err := conf.ParseCount(args[1])
			if err != nil {
				return err
			}

			if count < 1 {
				return fmt.Errorf("Dump must cover at least one byte, %d were requested", count)
			}

			return sess.withDevice(func(_ hardware.Device, drv *flashdrv.DeviceDriver) (err error) {
				var wtr io.Writer = sess.out
				if args[2] != "-" {
					file, createErr := os.Create(args[2])
					if createErr != nil {
						return fmt.Errorf("Could not create dump file: %w", createErr)
					}
					defer func() {
						if closeErr := file.Close(); closeErr != nil && err == nil {
							err = fmt.Errorf("Could not close dump file: %w", closeErr)
						}
					}()
					wtr = file
				}

				log.Infof("Dumping %s from address 0x%X, this takes at least %s", humanize.IBytes(uint64(count)), pos, minReadTime(count))
				_, err = image.Dump(cmd.Context(), drv, pos, count, wtr, progressLogger("Dumped", count))
				return err
			})
		},
	}
}

func newProgramCmd(sess *session) *cobra.Command {
	return &cobra.Command{
		Use:   "program <pos> <file>",
		Short: "Program the content of a file into erased cells.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pos, err := conf.ParseAddr(args[0])
			if err != nil {
				return err
			}
			file, err := os.Open(args[1])
			if err != nil {
				return fmt.Errorf("Could not open image to program: %w", err)
			}
			defer file.Close()
			info, err := file.Stat()
			if err != nil {
				return fmt.Errorf("Could not stat image to program: %w", err)
			}

			return sess.withDevice(func(_ hardware.Device, drv *flashdrv.DeviceDriver) error {
				done, err := image.Program(cmd.Context(), drv, pos, file, progressLogger("Programmed", info.Size()))
				if err != nil {
					return err
				}
				log.Infof("Programmed %s at address 0x%X", humanize.IBytes(uint64(done)), pos)
				return nil
			})
		},
	}
}

func newVerifyCmd(sess *session) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <pos> <file>",
		Short: "Reliably compare a range of cells with the content of a file.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pos, err := conf.ParseAddr(args[0])
			if err != nil {
				return err
			}
			file, err := os.Open(args[1])
			if err != nil {
				return fmt.Errorf("Could not open reference image: %w", err)
			}
			defer file.Close()
			info, err := file.Stat()
			if err != nil {
				return fmt.Errorf("Could not stat reference image: %w", err)
			}

			return sess.withDevice(func(_ hardware.Device, drv *flashdrv.DeviceDriver) error {
				done, err := image.Verify(cmd.Context(), drv, pos, file, progressLogger("Verified", info.Size()))
				if err != nil {
					return err
				}
				sess.printf("%s at address 0x%X match %q\n", humanize.IBytes(uint64(done)), pos, args[1])
				return nil
			})
		},
	}
}
