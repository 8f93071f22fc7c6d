package backup

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func durationSample(t *testing.T, operation string) (count uint64, sum float64) {
	t.Helper()
	var out dto.Metric
	metric, ok := operationDuration.WithLabelValues(operation).(prometheus.Metric)
	require.True(t, ok)
	require.NoError(t, metric.Write(&out))
	return out.GetHistogram().GetSampleCount(), out.GetHistogram().GetSampleSum()
}

func TestDeleteAndCleanupRecordRealDurations(t *testing.T) {
	m, _ := newTestManager(t, nil)
	meta, err := m.Create(context.Background(), CreateOptions{})
	require.NoError(t, err)

	deleteCount, deleteSum := durationSample(t, "delete")
	require.NoError(t, m.Delete(meta.ID))
	count, sum := durationSample(t, "delete")
	assert.Equal(t, deleteCount+1, count)
	assert.Greater(t, sum, deleteSum)

	_, err = m.Create(context.Background(), CreateOptions{Label: "old"})
	require.NoError(t, err)
	m.now = func() time.Time { return time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC) }

	cleanupCount, cleanupSum := durationSample(t, "cleanup")
	removed, err := m.Cleanup(RetentionPolicy{MaxAge: time.Hour})
	require.NoError(t, err)
	assert.Len(t, removed, 1)
	count, sum = durationSample(t, "cleanup")
	assert.Equal(t, cleanupCount+1, count)
	assert.Greater(t, sum, cleanupSum)
}
