package report

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/rehab-data/motion.report/internal/rom"
)

// WriteScoreTrendPNG saves the patient's calibration score history as a PNG
// line chart. The x axis is the session index; absolute dates go in the
// legendless HTML report instead.
func WriteScoreTrendPNG(path, patientID string, scores []rom.SessionScore) error {
	if len(scores) == 0 {
		return fmt.Errorf("report: no sessions recorded for patient %s", patientID)
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("ROM Score History - %s", patientID)
	p.X.Label.Text = "Session"
	p.Y.Label.Text = "Score"

	overallPts := make(plotter.XYs, 0, len(scores))
	asymmetryPts := make(plotter.XYs, 0, len(scores))
	for i, s := range scores {
		overallPts = append(overallPts, plotter.XY{X: float64(i + 1), Y: s.OverallScore})
		asymmetryPts = append(asymmetryPts, plotter.XY{X: float64(i + 1), Y: s.AsymmetryScore})
	}

	overallLine, err := plotter.NewLine(overallPts)
	if err != nil {
		return fmt.Errorf("report: overall series: %w", err)
	}
	overallLine.Width = vg.Points(1)

	asymmetryLine, err := plotter.NewLine(asymmetryPts)
	if err != nil {
		return fmt.Errorf("report: asymmetry series: %w", err)
	}
	asymmetryLine.Width = vg.Points(1)
	asymmetryLine.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}

	p.Add(overallLine, asymmetryLine)
	p.Legend.Add("overall", overallLine)
	p.Legend.Add("asymmetry (deg)", asymmetryLine)

	if err := p.Save(10*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("report: save plot: %w", err)
	}
	return nil
}
