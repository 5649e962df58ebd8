package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarndt/flashdrv/pkg/archive"
	"github.com/tarndt/flashdrv/pkg/flashdrv"
	"github.com/tarndt/flashdrv/pkg/hardware"
	"github.com/tarndt/flashdrv/pkg/hardware/fileflash"
	"github.com/tarndt/flashdrv/pkg/image"

	"github.com/graymeta/stow"
	"github.com/graymeta/stow/s3"
	"github.com/johannesboyne/gofakes3"
	"github.com/johannesboyne/gofakes3/backend/s3mem"
)

func execute(args ...string) (string, error) {
	var out bytes.Buffer
	rootCmd := newRootCmd(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func imageArgs(t *testing.T, name string) []string {
	return []string{"--hardware=file", "--size=16", "--image=" + filepath.Join(t.TempDir(), name)}
}

func run(t *testing.T, base []string, args ...string) (string, error) {
	return execute(append(append([]string{}, base...), args...)...)
}

func TestWriteRead(t *testing.T) {
	t.Parallel()
	img := imageArgs(t, "rw.img")

	_, err := run(t, img, "write", "0x3", "0x5A")
	require.NoError(t, err)

	_, err = run(t, img, "write", "3", "0")
	assert.ErrorIs(t, err, flashdrv.ErrNotErased)

	out, err := run(t, img, "read", "3")
	require.NoError(t, err)
	assert.Equal(t, "0x5A\n", out)

	_, err = run(t, img, "erase", "3", "1")
	require.NoError(t, err)
	_, err = run(t, img, "write", "3", "0")
	require.NoError(t, err)
}

func TestProgramVerify(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	imgPath := filepath.Join(dir, "prog.img")
	img := []string{"--hardware=file", "--size=16", "--image=" + imgPath}

	data := []byte{0x01, 0xFF, 0x03}
	dataPath := filepath.Join(dir, "data.bin")
	require.NoError(t, os.WriteFile(dataPath, data, 0666))

	_, err := run(t, img, "program", "4", dataPath)
	require.NoError(t, err)

	raw, err := os.ReadFile(imgPath)
	require.NoError(t, err)
	require.Len(t, raw, 16)
	assert.Equal(t, data, raw[4:7])
	assert.Equal(t, bytes.Repeat([]byte{0xFF}, 4), raw[:4])

	out, err := run(t, img, "verify", "4", dataPath)
	require.NoError(t, err)
	assert.Contains(t, out, "match")

	_, err = run(t, img, "verify", "3", dataPath)
	var mismatch *image.MismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.EqualValues(t, 3, mismatch.Addr)

	_, err = run(t, img, "program", "4", dataPath)
	assert.ErrorIs(t, err, flashdrv.ErrNotErased)
}

func TestDump(t *testing.T) {
	t.Parallel()
	img := imageArgs(t, "dump.img")

	_, err := run(t, img, "write", "1", "0x42")
	require.NoError(t, err)

	out, err := run(t, img, "dump", "0", "2", "-")
	require.NoError(t, err)
	assert.Equal(t, string([]byte{0xFF, 0x42}), out)
}

func TestEraseCount(t *testing.T) {
	t.Parallel()
	imgPath := filepath.Join(t.TempDir(), "erase.img")
	img := []string{"--hardware=file", "--size=16", "--image=" + imgPath}

	for _, addr := range []string{"0", "1", "2"} {
		_, err := run(t, img, "write", addr, "0")
		require.NoError(t, err)
	}

	_, err := run(t, img, "erase", "--", "0", "-5")
	assert.Error(t, err)
	raw, err := os.ReadFile(imgPath)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0}, raw[:3], "a rejected count must not erase anything")

	_, err = run(t, img, "erase", "1", "1")
	require.NoError(t, err)
	raw, err = os.ReadFile(imgPath)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0xFF, 0}, raw[:3])

	_, err = run(t, img, "erase")
	require.NoError(t, err)
	raw, err = os.ReadFile(imgPath)
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte{0xFF}, 16), raw)
}

func TestDumpArgs(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	imgPath := filepath.Join(dir, "locked.img")
	img := []string{"--hardware=file", "--size=16", "--image=" + imgPath}
	outPath := filepath.Join(dir, "out.bin")

	_, err := run(t, img, "dump", "--", "0", "-5", outPath)
	assert.Error(t, err)
	_, err = run(t, img, "dump", "0", "0", outPath)
	assert.Error(t, err)
	assert.NoFileExists(t, outPath)

	dev, err := fileflash.NewFileFlash(imgPath, 16)
	require.NoError(t, err)
	defer dev.Close()

	_, err = run(t, img, "dump", "0", "1", outPath)
	assert.ErrorIs(t, err, hardware.ErrLocked)
	assert.NoFileExists(t, outPath, "no dump file is left behind when the device cannot be opened")
}

func TestSimulatedFaults(t *testing.T) {
	t.Parallel()

	_, err := execute("--hardware=mem", "--size=16", "--sim-unstable=0x2", "read", "2")
	var readFail *flashdrv.ReadFailError
	require.ErrorAs(t, err, &readFail)
	assert.ErrorIs(t, err, flashdrv.ErrUnstable)
	assert.EqualValues(t, 2, readFail.Address)
	assert.Equal(t, 1, readFail.Attempt)

	out, err := execute("--hardware=mem", "--size=16", "--sim-unstable=0x2", "read", "3")
	require.NoError(t, err)
	assert.Equal(t, "0xFF\n", out)
}

func TestBadArgs(t *testing.T) {
	t.Parallel()
	img := imageArgs(t, "bad.img")

	_, err := run(t, img, "read", "nope")
	assert.Error(t, err)
	_, err = run(t, img, "write", "1", "0x100")
	assert.Error(t, err)
	_, err = run(t, img, "erase", "1")
	assert.Error(t, err)
	_, err = run(t, img, "read", "16")
	assert.Error(t, err)
	_, err = execute("--hardware=tape", "info")
	assert.Error(t, err)
}

func TestInfo(t *testing.T) {
	t.Parallel()

	out, err := execute("--hardware=pebble", "--size=16", "--image="+filepath.Join(t.TempDir(), "db"), "info")
	require.NoError(t, err)
	assert.Contains(t, out, "pebbleflash")
	assert.Contains(t, out, "programmed cells: 0")
	assert.Contains(t, out, "16 bytes")
	assert.Contains(t, out, "blank: true")

	img := imageArgs(t, "info.img")
	_, err = run(t, img, "write", "9", "0x7E")
	require.NoError(t, err)
	out, err = run(t, img, "info")
	require.NoError(t, err)
	assert.Contains(t, out, "fileflash")
	assert.Contains(t, out, "blank: false")
}

func TestArchive(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(gofakes3.New(s3mem.New()).Server())
	t.Cleanup(srv.Close)
	storeCfg, err := json.Marshal(stow.ConfigMap{
		s3.ConfigEndpoint:    srv.URL,
		s3.ConfigAccessKeyID: "fake",
		s3.ConfigSecretKey:   "fake",
	})
	require.NoError(t, err)
	store := []string{
		"--store-kind=" + archive.KindS3,
		"--store-cfg=" + string(storeCfg),
		"--container=" + strconv.FormatInt(time.Now().UnixNano(), 36),
		"--objsize=1",
	}

	src := append(imageArgs(t, "src.img"), store...)
	_, err = run(t, src, "write", "5", "0x21")
	require.NoError(t, err)
	out, err := run(t, src, "archive", "save", "boot", "4", "2")
	require.NoError(t, err)
	assert.Contains(t, out, `"boot"`)

	out, err = run(t, src, "archive", "show", "boot")
	require.NoError(t, err)
	assert.Contains(t, out, "2 s2 segments")

	dir := t.TempDir()
	dstPath := filepath.Join(dir, "dst.img")
	dst := append([]string{"--hardware=file", "--size=16", "--image=" + dstPath}, store...)
	_, err = run(t, dst, "archive", "restore", "boot", "8")
	require.NoError(t, err)

	raw, err := os.ReadFile(dstPath)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0x21}, raw[8:10])

	_, err = run(t, dst, "archive", "rm", "boot")
	require.NoError(t, err)
	_, err = run(t, dst, "archive", "show", "boot")
	assert.ErrorIs(t, err, archive.ErrNotFound)
}
