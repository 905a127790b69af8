package activities

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/draftsmith-ai/draftsmith/internal/metrics"
)

func histogramCount(t *testing.T, m prometheus.Metric) uint64 {
	t.Helper()
	var pb dto.Metric
	require.NoError(t, m.Write(&pb))
	return pb.GetHistogram().GetSampleCount()
}

func TestRecordRunResultObservesRunMetrics(t *testing.T) {
	a := New(Deps{Logger: zap.NewNop()})
	env := newActivityEnv(t)
	env.RegisterActivity(a.RecordRunResult)

	completedBefore := testutil.ToFloat64(metrics.RunsCompleted.WithLabelValues("completed"))
	durationBefore := histogramCount(t, metrics.RunDuration)
	redraftsBefore := histogramCount(t, metrics.ApprovalRedrafts)

	_, err := env.ExecuteActivity(a.RecordRunResult, RecordRunResultInput{
		RunID:           "report-1",
		Status:          "completed",
		Redrafts:        2,
		DurationSeconds: 42.5,
	})
	require.NoError(t, err)

	assert.Equal(t, completedBefore+1,
		testutil.ToFloat64(metrics.RunsCompleted.WithLabelValues("completed")))
	assert.Equal(t, durationBefore+1, histogramCount(t, metrics.RunDuration))
	assert.Equal(t, redraftsBefore+1, histogramCount(t, metrics.ApprovalRedrafts))
}

func TestEmitRunUpdateObservesPhaseDuration(t *testing.T) {
	a := New(Deps{Logger: zap.NewNop()})
	env := newActivityEnv(t)
	env.RegisterActivity(a.EmitRunUpdate)

	child := metrics.PhaseDuration.WithLabelValues(PhaseResearch).(prometheus.Metric)
	before := histogramCount(t, child)

	_, err := env.ExecuteActivity(a.EmitRunUpdate, EmitRunUpdateInput{
		RunID:          "report-metrics-1",
		EventType:      RunEventPhaseStarted,
		Phase:          PhaseWriting,
		CompletedPhase: PhaseResearch,
		PhaseSeconds:   3.2,
	})
	require.NoError(t, err)
	assert.Equal(t, before+1, histogramCount(t, child))
}
