package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/pcdshub/undcal-go/calib"
)

// WritePotPlot renders block thickness against measured voltage with the
// derived constants annotated, and returns the image path.
func (w *Writer) WritePotPlot(ds *calib.PotDataset, ts time.Time) (string, error) {
	dir := filepath.Join(w.BaseDir, "sxu_pots")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, potName(ds.Cell, ds.Role, ts, "png"))

	p := plot.New()
	p.Title.Text = fmt.Sprintf("SXU Cell %d %s Potentiometer Calibration", ds.Cell, ds.Role)
	p.X.Label.Text = "Block [mm]"
	p.Y.Label.Text = "Linear potentiometer [V]"

	blocks := make([]calib.Point, len(ds.Blocks))
	copy(blocks, ds.Blocks)
	sort.Slice(blocks, func(i, j int) bool { return blocks[i].Key < blocks[j].Key })

	pts := make(plotter.XYs, len(blocks))
	for i, b := range blocks {
		pts[i].X = b.Key
		pts[i].Y = b.Value
	}
	if err := plotutil.AddLinePoints(p, "measured", pts); err != nil {
		return "", err
	}

	p.Legend.Add(fmt.Sprintf("slope  %.4f", ds.Slope))
	p.Legend.Add(fmt.Sprintf("offset %.4f", ds.Offset))
	for _, g := range ds.Gaps {
		p.Legend.Add(fmt.Sprintf("%gmm ref %.4f", g.Key, g.Value))
	}
	p.Legend.Top = true
	p.Legend.Left = true

	if err := p.Save(9*vg.Inch, 6*vg.Inch, path); err != nil {
		return "", err
	}
	return path, nil
}
