// Package report renders patient progress as charts: an HTML page for the
// control API and a PNG trend for the CLI.
package report

import (
	"fmt"
	"io"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/rehab-data/motion.report/internal/rom"
)

// RenderProgressHTML writes a self-contained HTML page with the session's
// repetition tally and the patient's calibration score history.
func RenderProgressHTML(w io.Writer, patientID string, tally map[string]int, scores []rom.SessionScore) error {
	page := components.NewPage()
	page.PageTitle = fmt.Sprintf("Progress - %s", patientID)
	page.AddCharts(tallyBar(patientID, tally), scoreTrend(patientID, scores))
	return page.Render(w)
}

// tallyBar charts repetitions achieved per exercise this session.
func tallyBar(patientID string, tally map[string]int) *charts.Bar {
	exercises := make([]string, 0, len(tally))
	for id := range tally {
		exercises = append(exercises, id)
	}
	sort.Strings(exercises)

	data := make([]opts.BarData, 0, len(exercises))
	for _, id := range exercises {
		data = append(data, opts.BarData{Value: tally[id]})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Repetitions per Exercise",
			Subtitle: fmt.Sprintf("patient=%s exercises=%d", patientID, len(exercises)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{AxisLabel: &opts.AxisLabel{Rotate: 45, Show: opts.Bool(true)}}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Reps"}),
	)
	bar.SetXAxis(exercises)
	bar.AddSeries("reps", data)
	return bar
}

// scoreTrend charts the overall ROM and asymmetry scores over the patient's
// calibration sessions.
func scoreTrend(patientID string, scores []rom.SessionScore) *charts.Line {
	dates := make([]string, 0, len(scores))
	overall := make([]opts.LineData, 0, len(scores))
	asymmetry := make([]opts.LineData, 0, len(scores))
	for _, s := range scores {
		dates = append(dates, s.Taken.Format("2006-01-02 15:04"))
		overall = append(overall, opts.LineData{Value: s.OverallScore})
		asymmetry = append(asymmetry, opts.LineData{Value: s.AsymmetryScore})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "ROM Score History",
			Subtitle: fmt.Sprintf("patient=%s sessions=%d", patientID, len(scores)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Score"}),
	)
	line.SetXAxis(dates)
	line.AddSeries("overall", overall)
	line.AddSeries("asymmetry (deg)", asymmetry)
	return line
}
