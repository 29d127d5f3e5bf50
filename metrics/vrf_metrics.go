package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	vrfMetricsRegisterOnce sync.Once
	vrfMetricsInstance     *VrfMetrics
)

// VrfMetrics covers the ledger runtime, the randomness requests submitted
// through the daemon and the fulfillment loop.
type VrfMetrics struct {
	transactions           *prometheus.CounterVec
	randomnessRequests     *prometheus.CounterVec
	fulfilledRequests      prometheus.Counter
	failedFulfillments     *prometheus.CounterVec
	abandonedRequests      prometheus.Counter
	pendingRequests        prometheus.Gauge
	lastFulfillmentTime    prometheus.Gauge
	fulfillmentLatencySecs prometheus.Histogram
}

// NewVrfMetrics returns the process-wide metrics, registering them with the
// default registry on first use.
func NewVrfMetrics() *VrfMetrics {
	vrfMetricsRegisterOnce.Do(func() {
		vrfMetricsInstance = &VrfMetrics{
			transactions: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "vrfcd_transactions_total",
					Help: "Total number of ledger transactions executed, by result",
				},
				[]string{"result"},
			),
			randomnessRequests: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "vrfcd_randomness_requests_total",
					Help: "Total number of randomness requests submitted, by result",
				},
				[]string{"result"},
			),
			fulfilledRequests: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "vrfcd_fulfilled_requests_total",
					Help: "Total number of randomness requests delivered to their callback",
				},
			),
			failedFulfillments: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "vrfcd_failed_fulfillments_total",
					Help: "Total number of failed fulfillment attempts, by queue",
				},
				[]string{"queue"},
			),
			abandonedRequests: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "vrfcd_abandoned_requests_total",
					Help: "Total number of requests the fulfiller gave up on",
				},
			),
			pendingRequests: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "vrfcd_pending_requests",
					Help: "Number of requests waiting in the oracle queue",
				},
			),
			lastFulfillmentTime: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "vrfcd_last_fulfillment_timestamp_seconds",
					Help: "Unix time of the last successful fulfillment",
				},
			),
			fulfillmentLatencySecs: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "vrfcd_fulfillment_duration_seconds",
					Help:    "Time taken to submit one fulfillment transaction",
					Buckets: prometheus.DefBuckets,
				},
			),
		}

		prometheus.MustRegister(
			vrfMetricsInstance.transactions,
			vrfMetricsInstance.randomnessRequests,
			vrfMetricsInstance.fulfilledRequests,
			vrfMetricsInstance.failedFulfillments,
			vrfMetricsInstance.abandonedRequests,
			vrfMetricsInstance.pendingRequests,
			vrfMetricsInstance.lastFulfillmentTime,
			vrfMetricsInstance.fulfillmentLatencySecs,
		)
	})

	return vrfMetricsInstance
}

func resultLabel(err error) string {
	if err != nil {
		return "failure"
	}

	return "success"
}

// RecordTransaction counts one executed ledger transaction.
func (vm *VrfMetrics) RecordTransaction(err error) {
	vm.transactions.WithLabelValues(resultLabel(err)).Inc()
}

// RecordRandomnessRequest counts one submitted randomness request.
func (vm *VrfMetrics) RecordRandomnessRequest(err error) {
	vm.randomnessRequests.WithLabelValues(resultLabel(err)).Inc()
}

func (vm *VrfMetrics) RecordFulfillment(duration time.Duration) {
	vm.fulfilledRequests.Inc()
	vm.lastFulfillmentTime.SetToCurrentTime()
	vm.fulfillmentLatencySecs.Observe(duration.Seconds())
}

func (vm *VrfMetrics) RecordFailedFulfillment(queue string) {
	vm.failedFulfillments.WithLabelValues(queue).Inc()
}

func (vm *VrfMetrics) RecordAbandonedRequest() {
	vm.abandonedRequests.Inc()
}

func (vm *VrfMetrics) RecordPendingRequests(n int) {
	vm.pendingRequests.Set(float64(n))
}
