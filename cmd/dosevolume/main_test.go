package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dosevolume/pkg/config"
)

const squareGeoJSON = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "properties": {"label": "PTV", "uid": "1.2.3"},
      "geometry": {"type": "Polygon", "coordinates": [[[0.5,0.5,0],[4.5,0.5,0],[4.5,4.5,0],[0.5,4.5,0],[0.5,0.5,0]]]}
    },
    {
      "type": "Feature",
      "properties": {},
      "geometry": {"type": "Polygon", "coordinates": [[[0.5,0.5,1],[4.5,0.5,1],[4.5,4.5,1],[0.5,4.5,1],[0.5,0.5,1]]]}
    }
  ]
}`

const constantDoseJob = `
grid:
  origin: [0, 0, 0]
  spacing: [1, 1, 1]
  dimensions: [6, 6, 2]
dose:
  constant: 2
  uid: dose-1
structures:
  - file: ptv.geojson
`

func writeJob(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ptv.geojson"), []byte(squareGeoJSON), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "job.yaml"), []byte(constantDoseJob), 0644))
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestStatsCommand(t *testing.T) {
	dir := writeJob(t)
	out, err := run(t, "stats", "--complex",
		"--job", filepath.Join(dir, "job.yaml"),
		"--config", filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)

	assert.Contains(t, out, "PTV")
	assert.Contains(t, out, "mean: 2.0000 Gy")
	assert.Contains(t, out, "std deviation: 0.0000 Gy")
	assert.Contains(t, out, "MOHx")
}

func TestDVHCommand(t *testing.T) {
	dir := writeJob(t)
	plotFile := filepath.Join(dir, "dvh.png")
	out, err := run(t, "dvh", "--cumulative", "--plot", plotFile,
		"--job", filepath.Join(dir, "job.yaml"),
		"--config", filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)

	assert.Contains(t, out, "bins: 201")
	assert.Contains(t, out, "DVH plot saved to")
	assert.FileExists(t, plotFile)
}

func TestMaskCommand(t *testing.T) {
	dir := writeJob(t)
	imageDir := filepath.Join(dir, "slices")

	cfg := config.DefaultConfig()
	cfg.Output.MaskImageDir = imageDir
	cfgPath := filepath.Join(dir, "dosevolume.yaml")
	require.NoError(t, config.SaveConfig(cfg, cfgPath))

	out, err := run(t, "mask", "--list", "--cores", "2",
		"--job", filepath.Join(dir, "job.yaml"),
		"--config", cfgPath)
	require.NoError(t, err)

	assert.Contains(t, out, "PTV (Mask_")
	assert.Contains(t, out, "slice images written")
	assert.FileExists(t, filepath.Join(imageDir, "PTV", "slice_z_000.jpg"))
}

func TestInitConfigCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "generated.yaml")
	out, err := run(t, "init-config", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "contour", cfg.Processing.MaskEngine)
}

func TestMissingJob(t *testing.T) {
	dir := t.TempDir()
	_, err := run(t, "stats",
		"--job", filepath.Join(dir, "nope.yaml"),
		"--config", filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
