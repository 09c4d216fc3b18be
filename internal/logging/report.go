package logging

import (
	"math"

	"github.com/budi-audio/worker-dsp/internal/analyze"
	"github.com/budi-audio/worker-dsp/internal/master"
)

// MasterReportTable renders a before/after/target comparison of the
// metrics a mastering job cares about, reusing the same aligned-column
// table this package already builds for multi-pass filter comparisons —
// here the three columns are the pre-master analysis, the post-master
// result and the requested loudness target rather than three filter
// passes.
func MasterReportTable(before analyze.Result, after master.Result, target master.LoudnessTarget) *MetricTable {
	t := NewMetricTable()
	t.Headers = []string{"Source", "Master", "Target"}

	t.AddRow("Integrated Loudness",
		[]string{
			formatMetricLUFS(before.IntegratedLUFS, 1),
			formatMetricLUFS(after.FinalLUFS, 1),
			formatMetricLUFS(target.LUFSValue(), 1),
		}, "LUFS", "")

	qcInterp := "within tolerance"
	if math.Abs(after.FinalLUFS-target.LUFSValue()) > master.QCLoudnessToleranceLU {
		qcInterp = "outside tolerance"
	}
	t.Rows[len(t.Rows)-1].Interpretation = qcInterp

	peakInterp := "passes QC"
	if !after.PassesQC {
		peakInterp = "fails QC (exceeds ceiling)"
	}
	t.AddRow("True Peak",
		[]string{
			formatMetricDB(before.TruePeak, 2),
			formatMetricDB(after.FinalTruePeak, 2),
			formatMetricDB(master.QCTruePeakMax, 2),
		}, "dBTP", peakInterp)

	return t
}
