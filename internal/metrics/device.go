// Package metrics provides Prometheus metrics for the controller link.
package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ResultOK labels successful operations.
const ResultOK = "ok"

var (
	deviceConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "tc420",
		Subsystem: "device",
		Name:      "connected",
		Help:      "Whether the controller is attached (1) or not (0)",
	})

	reportsWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tc420",
		Subsystem: "hid",
		Name:      "reports_written_total",
		Help:      "HID reports accepted by the controller",
	}, []string{"opcode"})

	bytesWritten = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tc420",
		Subsystem: "hid",
		Name:      "bytes_written_total",
		Help:      "Bytes written to the controller, report ids included",
	})

	operations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tc420",
		Subsystem: "sequencer",
		Name:      "operations_total",
		Help:      "Completed device operations by result",
	}, []string{"operation", "result"})

	operationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "tc420",
		Subsystem: "sequencer",
		Name:      "operation_duration_seconds",
		Help:      "Wall time of device operations, settle delays included",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"operation"})

	lastSuccess = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "tc420",
		Subsystem: "sequencer",
		Name:      "last_success_timestamp_seconds",
		Help:      "Unix time of the last successful operation",
	}, []string{"operation"})
)

// SetDeviceConnected records controller presence.
func SetDeviceConnected(connected bool) {
	if connected {
		deviceConnected.Set(1)
	} else {
		deviceConnected.Set(0)
	}
}

// AddReportWritten counts one accepted report.
func AddReportWritten(opcode string, bytes int) {
	reportsWritten.WithLabelValues(opcode).Inc()
	bytesWritten.Add(float64(bytes))
}

// ObserveOperation records a finished operation. errorKind is empty on success.
func ObserveOperation(operation, errorKind string, duration time.Duration, at time.Time) {
	result := ResultOK
	if errorKind != "" {
		result = strings.ToLower(errorKind)
	}
	operations.WithLabelValues(operation, result).Inc()
	operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if result == ResultOK {
		lastSuccess.WithLabelValues(operation).Set(float64(at.Unix()))
	}
}
