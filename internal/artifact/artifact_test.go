package artifact

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pcdshub/undcal-go/calib"
	"github.com/pcdshub/undcal-go/device"
)

func sampleDataset() *calib.PotDataset {
	return &calib.PotDataset{
		Cell: 44,
		Role: device.Downstream,
		Gaps: []calib.Point{{Key: 10, Value: 0.80123456789}, {Key: 22, Value: 4.2987654321}},
		Blocks: []calib.Point{
			{Key: 7.4, Value: 4.1}, {Key: 6.0, Value: 3.3}, {Key: 0.0, Value: 0.7},
		},
		CenterLineShift: 0.1234567890123,
		Slope:           0.49999999999999994, // deliberately not a round float
		Offset:          0.1234567890123,
	}
}

func TestPotDatasetRoundTrip(t *testing.T) {
	w := &Writer{BaseDir: t.TempDir()}
	ds := sampleDataset()
	ts := time.Date(2026, 3, 1, 10, 15, 0, 0, time.UTC)

	path, err := w.WritePotDataset(ds, ts)
	require.NoError(t, err)
	assert.Equal(t, "cell_44_DS_20260301_101500.json", filepath.Base(path))

	got, err := LoadPotDataset(path)
	require.NoError(t, err)
	// Stored constants come back bit for bit; nothing is recomputed.
	assert.Equal(t, ds, got)
}

func TestScanTable(t *testing.T) {
	w := &Writer{BaseDir: t.TempDir()}
	ds := &calib.ScanDataset{
		Cell: 44,
		Rows: []calib.ScanRow{
			{USPos: 0.25, DSPos: 0, USShift: 0.0213, DSShift: -0.0108},
			{USPos: 1, DSPos: -0.8, USShift: 0.0555, DSShift: 0.0222},
		},
	}
	ts := time.Date(2026, 3, 1, 10, 15, 0, 0, time.UTC)

	path, err := w.WriteScanTable(ds, ts)
	require.NoError(t, err)
	assert.Equal(t, "cell_44_20260301_101500.txt", filepath.Base(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(raw), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Cell\tUS Y\tDS Y\tUS Shift\tDS Shift", lines[0])
	assert.Equal(t, "SXU44\t0.25\t0\t0.0213\t-0.0108", lines[1])
	assert.Equal(t, "SXU44\t1\t-0.8\t0.0555\t0.0222", lines[2])
}

func TestPotPlotWritesImage(t *testing.T) {
	w := &Writer{BaseDir: t.TempDir()}
	ts := time.Date(2026, 3, 1, 10, 15, 0, 0, time.UTC)

	path, err := w.WritePotPlot(sampleDataset(), ts)
	require.NoError(t, err)
	assert.Equal(t, "cell_44_DS_20260301_101500.png", filepath.Base(path))

	st, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, st.Size())
}
