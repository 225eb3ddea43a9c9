// internal/common/metrics/metrics_test.go
package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"registry-workers/internal/dedup"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
)

func counterValue(c prometheus.Counter) float64 {
	var m dto.Metric
	_ = c.Write(&m)
	return m.GetCounter().GetValue()
}

func gaugeValue(g prometheus.Gauge) float64 {
	var m dto.Metric
	_ = g.Write(&m)
	return m.GetGauge().GetValue()
}

func TestScanRecorder_ObserveScan(t *testing.T) {
	recorder := NewScanRecorder()
	ctx := context.Background()

	before := counterValue(DedupScans.WithLabelValues("METRICS_TEST", "REJECT"))
	matchesBefore := counterValue(DedupMatchesFound.WithLabelValues("METRICS_TEST"))

	err := recorder.ObserveScan(ctx, dedup.ScanEvent{
		EntityType:     "METRICS_TEST",
		Algorithm:      dedup.AlgorithmFuzzy,
		Recommendation: dedup.RecommendReject,
		TotalMatches:   2,
		CorpusSize:     40,
		Duration:       3 * time.Millisecond,
	})
	assert.NoError(t, err)

	assert.Equal(t, before+1, counterValue(DedupScans.WithLabelValues("METRICS_TEST", "REJECT")))
	assert.Equal(t, matchesBefore+2, counterValue(DedupMatchesFound.WithLabelValues("METRICS_TEST")))
	assert.Equal(t, float64(40), gaugeValue(DedupCorpusRecords.WithLabelValues("METRICS_TEST")))
}

func TestScanRecorder_FailedScanCountsOnlyRecommendation(t *testing.T) {
	recorder := NewScanRecorder()

	err := recorder.ObserveScan(context.Background(), dedup.ScanEvent{
		EntityType:     "METRICS_FAIL",
		Recommendation: dedup.RecommendError,
		TotalMatches:   0,
		CorpusSize:     99,
		Err:            errors.New("scan failed"),
	})
	assert.NoError(t, err)

	assert.Equal(t, float64(1), counterValue(DedupScans.WithLabelValues("METRICS_FAIL", "ERROR")))
	assert.Equal(t, float64(0), gaugeValue(DedupCorpusRecords.WithLabelValues("METRICS_FAIL")))
}
