package conf

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/tarndt/flashdrv/pkg/archive"

	"github.com/dustin/go-humanize"
	"github.com/graymeta/stow"
)

//Config is a representation of command line config parameters
type Config struct {
	Hardware    HardwareKind
	ImagePath   string
	Size        Capacity
	PebbleCache Capacity
	Verbose     bool
	SimConfig
	StoreConfig

	//raw flag values resolved by Validate
	unstableAddrs string
	storeCfgJSON  string
	codecName     string
}

//String generates human-readable prose describing a configuration
func (cfg *Config) String() string {
	location := ""
	if cfg.Hardware.Persistent() {
		location = fmt.Sprintf(" at %q", cfg.ImagePath)
	}

	var simDesc string
	if cfg.SimConfig.Enabled() {
		simDesc = " " + cfg.SimConfig.String()
	}

	return fmt.Sprintf("Accessing %s flash device using binding %s%s%s.",
		humanize.IBytes(uint64(cfg.Size)), cfg.Hardware, location, simDesc,
	)
}

//SimConfig is the fault simulation configuration parameters
type SimConfig struct {
	UnstableAddrs []uint64
	FlipEvery     uint64
	ReadLatency   time.Duration
}

//Enabled returns true if any fault is to be simulated
func (sc *SimConfig) Enabled() bool {
	return len(sc.UnstableAddrs) > 0 || sc.FlipEvery > 0 || sc.ReadLatency > 0
}

//String generates human-readable prose describing a SimConfig
func (sc *SimConfig) String() string {
	var parts []string
	if len(sc.UnstableAddrs) > 0 {
		parts = append(parts, fmt.Sprintf("%d unstable cells", len(sc.UnstableAddrs)))
	}
	if sc.FlipEvery > 0 {
		parts = append(parts, fmt.Sprintf("a bit flip on every %s read", humanize.Ordinal(int(sc.FlipEvery))))
	}
	if sc.ReadLatency > 0 {
		parts = append(parts, fmt.Sprintf("%s of read latency", sc.ReadLatency))
	}
	return "simulating " + strings.Join(parts, " and ")
}

//StoreConfig is the object store (archive) specific configuration parameters
type StoreConfig struct {
	Kind         string
	Config       stow.ConfigMap
	Container    string
	Codec        archive.Codec
	ObjectBytes  Capacity
	ConcurUpload uint
}

//String generates human-readable prose describing a StoreConfig
func (c *StoreConfig) String() string {
	return fmt.Sprintf("a %s remote object store (%s), container %q, with %s objects, %s compression and %d upload workers",
		c.Kind, stowCfgStr(c.Config), c.Container, humanize.IBytes(uint64(c.ObjectBytes)), c.Codec, c.ConcurUpload,
	)
}

func stowCfgStr(cm stow.ConfigMap) string {
	keys := make([]string, 0, len(cm))
	for k := range cm {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var str bytes.Buffer
	for _, k := range keys {
		str.WriteString(k)
		str.WriteByte('=')

		if mayBeSecret(k) {
			str.WriteString("<REDACTED>")
		} else {
			str.WriteByte('"')
			str.WriteString(cm[k])
			str.WriteByte('"')
		}
		str.WriteString(", ")
	}
	if str.Len() > 2 {
		str.Truncate(str.Len() - 2)
	}
	return str.String()
}

func mayBeSecret(s string) bool {
	s = strings.ToLower(s)
	for _, cannidate := range []string{"secret", "cred", "pass", "token"} {
		if strings.Contains(s, cannidate) {
			return true
		}
	}
	return false
}
