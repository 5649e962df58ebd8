package main

import (
	"fmt"
	"io"

	"github.com/tarndt/flashdrv/cmd/flashctl/conf"
	"github.com/tarndt/flashdrv/pkg/flashdrv"
	"github.com/tarndt/flashdrv/pkg/hardware"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

//session is the state shared by the commands of one invocation
type session struct {
	cfg *conf.Config
	out io.Writer
}

func newRootCmd(out io.Writer) *cobra.Command {
	sess := &session{out: out}

	rootCmd := &cobra.Command{
		Use:   "flashctl",
		Short: "Reliable access to unstable flash memory.",
		Long: "Reads, programs, dumps and archives flash memory through a driver that\n" +
			fmt.Sprintf("confirms every read %d times, %s apart, and refuses to program cells that are not erased.",
				flashdrv.HardwareAccessTry, flashdrv.ReadInterval),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if sess.cfg.Verbose {
				log.SetLevel(log.DebugLevel)
			}
			if err := sess.cfg.Validate(); err != nil {
				return err
			}
			log.Debugf("Using config: %s", sess.cfg)
			return nil
		},
	}
	rootCmd.SetOut(out)
	sess.cfg = conf.BindFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(
		newInfoCmd(sess),
		newReadCmd(sess),
		newWriteCmd(sess),
		newEraseCmd(sess),
		newDumpCmd(sess),
		newProgramCmd(sess),
		newVerifyCmd(sess),
		newArchiveCmd(sess),
	)
	return rootCmd
}

//withDevice opens the configured hardware, runs fn against it through a driver
// and closes it
func (sess *session) withDevice(fn func(dev hardware.Device, drv *flashdrv.DeviceDriver) error) (err error) {
	dev, err := openDevice(sess.cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := dev.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	return fn(dev, flashdrv.NewDeviceDriver(dev))
}

func (sess *session) printf(format string, args ...interface{}) {
	fmt.Fprintf(sess.out, format, args...)
}
