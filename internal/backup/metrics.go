package backup

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipe_company_backup_operations_total",
		Help: "Backup operations by type and result",
	}, []string{"operation", "result"})

	operationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pipe_company_backup_duration_seconds",
		Help:    "Time spent in backup operations",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 300},
	}, []string{"operation"})

	lastBackupSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pipe_company_backup_last_size_bytes",
		Help: "Size of the most recent backup artifact in bytes",
	})
)

func observe(operation string, seconds float64, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	operationsTotal.WithLabelValues(operation, result).Inc()
	operationDuration.WithLabelValues(operation).Observe(seconds)
}
