package conf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarndt/flashdrv/pkg/archive"

	"github.com/spf13/pflag"
)

func TestCapacity(t *testing.T) {
	var c Capacity
	require.NoError(t, c.Set("64 KiB"))
	assert.EqualValues(t, 64*1024, c)
	assert.Equal(t, "64 KiB", c.String())
	assert.Equal(t, "capacity", c.Type())

	require.NoError(t, c.Set("100"))
	assert.EqualValues(t, 100, c)

	assert.Error(t, c.Set("lots"))
}

func TestHardwareKind(t *testing.T) {
	testCases := []struct {
		in       string
		expected HardwareKind
	}{
		{"mem", HWMem},
		{"RAM", HWMem},
		{"file", HWFile},
		{"pebble", HWPebble},
		{"tape", HWUnknown},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.expected, NewHardwareKind(tc.in), tc.in)
	}

	var hk HardwareKind
	assert.Error(t, hk.Set("tape"))
	require.NoError(t, hk.Set("pebble"))
	assert.Equal(t, HWPebble, hk)
	assert.Equal(t, "pebbleflash", hk.String())
	assert.True(t, hk.Persistent())
	assert.False(t, HWMem.Persistent())
}

func TestParse(t *testing.T) {
	addr, err := ParseAddr("0x1F")
	require.NoError(t, err)
	assert.EqualValues(t, 0x1F, addr)

	addr, err = ParseAddr(" 31 ")
	require.NoError(t, err)
	assert.EqualValues(t, 31, addr)

	_, err = ParseAddr("-1")
	assert.Error(t, err)

	val, err := ParseByte("0xFF")
	require.NoError(t, err)
	assert.EqualValues(t, 0xFF, val)

	_, err = ParseByte("256")
	assert.Error(t, err)

	count, err := ParseCount("0x10")
	require.NoError(t, err)
	assert.EqualValues(t, 16, count)

	count, err = ParseCount("2 KiB")
	require.NoError(t, err)
	assert.EqualValues(t, 2048, count)

	count, err = ParseCount("0")
	require.NoError(t, err)
	assert.EqualValues(t, 0, count)

	_, err = ParseCount("-5")
	assert.Error(t, err)
	_, err = ParseCount("-0x10")
	assert.Error(t, err)

	addrs, err := ParseAddrList("1, 0x2,3")
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2, 3}, addrs)

	addrs, err = ParseAddrList("")
	require.NoError(t, err)
	assert.Empty(t, addrs)

	_, err = ParseAddrList("1,x")
	assert.Error(t, err)
}

func parseConfig(t *testing.T, args ...string) *Config {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	cfg := BindFlags(flags)
	require.NoError(t, flags.Parse(args))
	return cfg
}

func TestValidate(t *testing.T) {
	cfg := parseConfig(t)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, HWFile, cfg.Hardware)
	assert.False(t, cfg.SimConfig.Enabled())
	assert.Contains(t, cfg.String(), defImageName)

	cfg = parseConfig(t, "--hardware=mem", "--size=4KiB", "--sim-unstable=0x10,0x20", "--sim-flip-every=3")
	require.NoError(t, cfg.Validate())
	assert.EqualValues(t, 4096, cfg.Size)
	assert.Equal(t, []uint64{0x10, 0x20}, cfg.SimConfig.UnstableAddrs)
	assert.True(t, cfg.SimConfig.Enabled())
	assert.Contains(t, cfg.String(), "2 unstable cells")
	assert.Contains(t, cfg.String(), "3rd read")

	assert.Error(t, parseConfig(t, "--image=").Validate())
	assert.Error(t, parseConfig(t, "--size=0").Validate())
	assert.Error(t, parseConfig(t, "--sim-unstable=nope").Validate())
	assert.Error(t, parseConfig(t, "--sim-latency=-1s").Validate())

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(flags)
	assert.Error(t, flags.Parse([]string{"--hardware=tape"}))
}

func TestValidateStore(t *testing.T) {
	cfg := parseConfig(t)
	require.NoError(t, cfg.ValidateStore())
	assert.Equal(t, archive.CodecS2, cfg.StoreConfig.Codec)
	assert.GreaterOrEqual(t, cfg.StoreConfig.ConcurUpload, uint(1))
	assert.Contains(t, cfg.StoreConfig.String(), "<REDACTED>")

	cfg = parseConfig(t, "--store-kind=local", `--store-cfg={"path":"/tmp"}`, "--compress=identity", "--concur=3")
	require.NoError(t, cfg.ValidateStore())
	assert.Equal(t, archive.CodecIdentity, cfg.StoreConfig.Codec)
	assert.EqualValues(t, 3, cfg.StoreConfig.ConcurUpload)

	//local stores keep no metadata, so segments cannot be compressed
	assert.Error(t, parseConfig(t, "--store-kind=local", `--store-cfg={"path":"/tmp"}`).ValidateStore())
	assert.Error(t, parseConfig(t, "--store-kind=tape").ValidateStore())
	assert.Error(t, parseConfig(t, "--store-cfg=").ValidateStore())
	assert.Error(t, parseConfig(t, "--store-cfg={").ValidateStore())
	assert.Error(t, parseConfig(t, "--compress=zip").ValidateStore())
	assert.Error(t, parseConfig(t, "--container=").ValidateStore())
	assert.Error(t, parseConfig(t, "--objsize=0").ValidateStore())
}

func TestRecConcurUpload(t *testing.T) {
	assert.GreaterOrEqual(t, recConcurUpload(1024), uint(1))
	assert.EqualValues(t, 1, recConcurUpload(1024*1024*1024))
}
