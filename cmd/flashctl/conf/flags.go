package conf

import (
	"encoding/json"
	"fmt"
	"runtime"
	"strings"

	"github.com/tarndt/flashdrv/pkg/archive"

	"github.com/graymeta/stow"
	"github.com/graymeta/stow/s3"
	"github.com/spf13/pflag"
)

const (
	defImageName       = "flash.img"
	defDeviceSize      = 1024 * 1024
	defPebbleCacheSize = 8 * 1024 * 1024
	defContainer       = "flashdrv-archives"
)

//BindFlags registers every configuration flag on flags and returns the Config
// they populate; Validate must be called once flags are parsed
func BindFlags(flags *pflag.FlagSet) *Config {
	cfg := &Config{
		Hardware:    HWFile,
		Size:        defDeviceSize,
		PebbleCache: defPebbleCacheSize,
		StoreConfig: StoreConfig{
			ObjectBytes: archive.DefSegmentBytes,
		},
	}

	//General options
	flags.VarP(&cfg.Hardware, "hardware", "t", "Hardware binding to access: 'mem', 'file' or 'pebble'")
	flags.StringVarP(&cfg.ImagePath, "image", "i", defImageName, "Flash image file ('file') or database directory ('pebble') backing the device")
	flags.VarP(&cfg.Size, "size", "s", "Capacity of a newly created device (ex. 64 KiB, 1 MiB)")
	flags.Var(&cfg.PebbleCache, "pebble-cache", "Amount of memory PebbleDB may use for its block cache (ex. 8 MiB)")
	flags.BoolVarP(&cfg.Verbose, "verbose", "v", false, "Enable debug logging")

	//Fault simulation
	flags.StringVar(&cfg.unstableAddrs, "sim-unstable", "", "Comma separated addresses whose cells read back differently every other read")
	flags.Uint64Var(&cfg.FlipEvery, "sim-flip-every", 0, "Flip the high bit of every nth hardware read (0 disables)")
	flags.DurationVar(&cfg.ReadLatency, "sim-latency", 0, "Delay added to every hardware read")

	//Archives
	flags.StringVar(&cfg.StoreConfig.Kind, "store-kind", s3.Kind, "Type of remote objectstore: "+strings.Join(archive.Kinds, ", "))
	flags.StringVar(&cfg.storeCfgJSON, "store-cfg", defStoreParams(), "JSON configuration (default assumes local minio [kind \"s3\"] with default settings)")
	flags.StringVar(&cfg.StoreConfig.Container, "container", defContainer, "Remote container archives are kept in")
	flags.StringVar(&cfg.codecName, "compress", archive.CodecS2Name,
		fmt.Sprintf("Compression algorithm to use for archive segments: %q, %q or %q for no compression",
			archive.CodecS2Name, archive.CodecGzipName, archive.CodecIdentityName),
	)
	flags.Var(&cfg.StoreConfig.ObjectBytes, "objsize", "Device bytes per remote object (ex. 64 KiB)")
	flags.UintVar(&cfg.StoreConfig.ConcurUpload, "concur", 0, "Maximum number of concurrent segment uploads (0 implies use heuristic)")

	return cfg
}

//Validate checks and resolves the general (device) parameters
func (cfg *Config) Validate() error {
	switch {
	case cfg.Hardware == HWUnknown:
		return fmt.Errorf("No hardware binding was provided (use --hardware=X)")
	case cfg.Hardware.Persistent() && cfg.ImagePath == "":
		return fmt.Errorf("Binding %s requires a backing path (use --image=X)", cfg.Hardware)
	case cfg.Size < 1:
		return fmt.Errorf("Device size must be positive (use --size=X)")
	}

	addrs, err := ParseAddrList(cfg.unstableAddrs)
	if err != nil {
		return fmt.Errorf("Bad --sim-unstable value: %w", err)
	}
	cfg.SimConfig.UnstableAddrs = addrs

	if cfg.ReadLatency < 0 {
		return fmt.Errorf("Simulated read latency cannot be negative, %s was provided", cfg.ReadLatency)
	}
	return nil
}

//ValidateStore checks and resolves the object store parameters, only commands
// that touch archives require them
func (cfg *Config) ValidateStore() error {
	sc := &cfg.StoreConfig
	if sc.Kind = strings.ToLower(sc.Kind); !knownKind(sc.Kind) {
		if sc.Kind == "" {
			return fmt.Errorf("An objectstore kind must be provided (--store-kind=X)")
		}
		return fmt.Errorf("Unknown objectstore kind was provided: %q", sc.Kind)
	}

	if cfg.storeCfgJSON == "" {
		return fmt.Errorf("No JSON configuration was provided for remote objectstore (use --store-cfg=JSON)")
	}
	sc.Config = make(stow.ConfigMap)
	if err := json.Unmarshal([]byte(cfg.storeCfgJSON), &sc.Config); err != nil {
		return fmt.Errorf("Provided JSON configuration for remote objectstore could not be parsed: %w", err)
	}
	if err := archive.ValidateConfig(sc.Kind, sc.Config); err != nil {
		return fmt.Errorf("Provided configuration for remote objectstore was not valid: %w", err)
	}

	if sc.Container == "" {
		return fmt.Errorf("No remote container was provided (use --container=X)")
	}
	if sc.ObjectBytes < 1 {
		return fmt.Errorf("Remote object size must be positive (use --objsize=X)")
	}

	if sc.Codec = archive.CodecFromName(cfg.codecName); sc.Codec == archive.CodecUnknown {
		return fmt.Errorf("Unknown compression mode %q was provided", cfg.codecName)
	}
	if sc.Codec != archive.CodecIdentity && !archive.SupportsMetaData(sc.Kind) {
		return fmt.Errorf("Objectstore kind %q does not support metadata, which %s compression requires (use --compress=%s)",
			sc.Kind, sc.Codec, archive.CodecIdentity)
	}

	if sc.ConcurUpload == 0 {
		sc.ConcurUpload = recConcurUpload(int64(sc.ObjectBytes))
	}
	return nil
}

func knownKind(kind string) bool {
	for _, known := range archive.Kinds {
		if kind == known {
			return true
		}
	}
	return false
}

func defStoreParams() string {
	cfg := stow.ConfigMap{
		s3.ConfigEndpoint:    "http://127.0.0.1:9000",
		s3.ConfigAccessKeyID: "minioadmin",
		s3.ConfigSecretKey:   "minioadmin",
	}

	JSON, err := json.Marshal(cfg)
	if err != nil {
		panic(fmt.Sprintf("Could not marshal default object store JSON config: %s", err))
	}
	return string(JSON)
}

func recConcurUpload(objsize int64) uint {
	const budgetBytes = 256 * 1024 * 1024 //256 MiB
	rec := runtime.NumCPU()

	if int64(rec)*objsize > budgetBytes {
		rec = int(budgetBytes / objsize)
	}
	if rec < 1 {
		rec = 1
	}
	return uint(rec)
}
