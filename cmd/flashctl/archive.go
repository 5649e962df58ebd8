package main

import (
	"github.com/tarndt/flashdrv/cmd/flashctl/conf"
	"github.com/tarndt/flashdrv/pkg/archive"
	"github.com/tarndt/flashdrv/pkg/flashdrv"
	"github.com/tarndt/flashdrv/pkg/hardware"

	"github.com/dustin/go-humanize"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

//openArchive validates the object store parameters and connects to the container
func (sess *session) openArchive() (*archive.Archive, error) {
	if err := sess.cfg.ValidateStore(); err != nil {
		return nil, err
	}
	sc := &sess.cfg.StoreConfig
	log.Debugf("Using %s", sc)

	store, err := archive.NewStore(sc.Kind, sc.Config)
	if err != nil {
		return nil, err
	}
	container, err := archive.OpenContainer(store, sc.Container)
	if err != nil {
		return nil, err
	}

	return archive.New(container,
		archive.OptSegmentBytes(sc.ObjectBytes),
		archive.OptConcurUpload(sc.ConcurUpload),
		archive.OptCompress(sc.Codec),
		archive.OptNoMetadataSupport(!archive.SupportsMetaData(sc.Kind)),
		archive.OptLogger{FieldLogger: log.StandardLogger()},
	)
}

func newArchiveCmd(sess *session) *cobra.Command {
	archiveCmd := &cobra.Command{
		Use:   "archive",
		Short: "Save flash content to, and restore it from, an object store.",
	}

	archiveCmd.AddCommand(
		&cobra.Command{
			Use:   "save <name> <pos> <count>",
			Short: "Reliably read a range of cells into a named archive.",
			Args:  cobra.ExactArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				pos, err := conf.ParseAddr(args[1])
				if err != nil {
					return err
				}
				count, err := conf.ParseCount(args[2])
				if err != nil {
					return err
				}
				arch, err := sess.openArchive()
				if err != nil {
					return err
				}

				return sess.withDevice(func(_ hardware.Device, drv *flashdrv.DeviceDriver) error {
					log.Infof("Archiving %s from address 0x%X, this takes at least %s", humanize.IBytes(uint64(count)), pos, minReadTime(count))
					manifest, err := arch.Save(cmd.Context(), args[0], drv, pos, count)
					if err != nil {
						return err
					}
					sess.printf("%s\n", manifest)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "restore <name> <pos>",
			Short: "Program a named archive into erased cells.",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				pos, err := conf.ParseAddr(args[1])
				if err != nil {
					return err
				}
				arch, err := sess.openArchive()
				if err != nil {
					return err
				}

				return sess.withDevice(func(_ hardware.Device, drv *flashdrv.DeviceDriver) error {
					manifest, err := arch.Restore(cmd.Context(), args[0], drv, pos)
					if err != nil {
						return err
					}
					sess.printf("%s\n", manifest)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "show <name>",
			Short: "Describe a named archive.",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				arch, err := sess.openArchive()
				if err != nil {
					return err
				}
				manifest, err := arch.Manifest(args[0])
				if err != nil {
					return err
				}
				sess.printf("%s\n", manifest)
				return nil
			},
		},
		&cobra.Command{
			Use:   "rm <name>",
			Short: "Remove a named archive.",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				arch, err := sess.openArchive()
				if err != nil {
					return err
				}
				return arch.Remove(args[0])
			},
		},
	)
	return archiveCmd
}
