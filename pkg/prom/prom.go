package prom

import (
	"errors"
	"fmt"
	"sync"
	"time"

	xhttp "github.com/nimasrn/voucher-wallet/pkg/http"
	"github.com/nimasrn/voucher-wallet/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

const (
	SystemVoucher = "voucher"
	SystemWallet  = "wallet"
	SystemEvents  = "events"
)

const (
	MetricPurchases        = "purchases_total"
	MetricRedemptions      = "redemptions_total"
	MetricRefunds          = "refunds_total"
	MetricCancellations    = "cancellations_total"
	MetricExpired          = "expired_total"
	MetricWorkflowDuration = "workflow_duration_seconds"
	MetricWalletMovements  = "movements_total"
	MetricEventsPublished  = "published_total"
	MetricEventsDelivered  = "delivered_total"
)

const (
	TypeCounter      = "counter"
	TypeCounterVec   = "counterVec"
	TypeHistogramVec = "histogramVec"
)

var lockCreateMetricLock = &sync.Mutex{}
var namespace = "none"

var MetricSystemEnabled = false

var MetricCollectionCounters = make(map[string]prometheus.Counter)
var MetricCollectionCounterVec = make(map[string]*prometheus.CounterVec)
var MetricCollectionHistogramVec = make(map[string]*prometheus.HistogramVec)

var defaultLabels prometheus.Labels

// workflow latencies are dominated by row locks, so the buckets start low.
var workflowBuckets = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5}

// Create registers every metric the binaries report. Inc/Add calls made
// before it are dropped.
func Create(host string, env string, nameSpace string) error {
	defaultLabels = prometheus.Labels{"env": env, "instance": host}
	namespace = nameSpace
	MetricSystemEnabled = true

	var err error
	hasError := func(e error) {
		if err == nil && e != nil {
			err = e
		}
	}

	hasError(createCounterVec(SystemVoucher, MetricPurchases, []string{"result"}))
	hasError(createCounterVec(SystemVoucher, MetricRedemptions, []string{"result"}))
	hasError(createCounterVec(SystemVoucher, MetricRefunds, []string{"result"}))
	hasError(createCounterVec(SystemVoucher, MetricCancellations, []string{"result"}))
	hasError(createCounter(SystemVoucher, MetricExpired))
	hasError(createHistogramVec(SystemVoucher, MetricWorkflowDuration, []string{"operation"}))
	hasError(createCounterVec(SystemWallet, MetricWalletMovements, []string{"type"}))
	hasError(createCounterVec(SystemEvents, MetricEventsPublished, []string{"type", "result"}))
	hasError(createCounterVec(SystemEvents, MetricEventsDelivered, []string{"type", "result"}))

	return err
}

func CreateMetric(metricType, metricSubsystem, metricName string, labelsValues ...string) error {
	switch metricType {
	case TypeCounter:
		return createCounter(metricSubsystem, metricName)
	case TypeCounterVec:
		return createCounterVec(metricSubsystem, metricName, labelsValues)
	case TypeHistogramVec:
		return createHistogramVec(metricSubsystem, metricName, labelsValues)
	}
	return fmt.Errorf("metric type %s is not defined", metricType)
}

// ListenAndServer blocks serving the default registry on addr.
func ListenAndServer(addr string, url string) {
	s := xhttp.NewServer(xhttp.ServerOption{Name: "metrics"})
	s.GET(url, fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler()))
	logger.Info("[metrics-server] listening...", "addr", addr, "url", url)
	if err := s.ListenAndServe(addr); err != nil {
		logger.Panic("[metrics-server] http listen error", "error", err)
	}
}

func counterOpts(subsystem, name string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		Help:        subsystem + " " + name,
		ConstLabels: defaultLabels,
	}
}

func createCounter(subsystem, name string) error {
	lockCreateMetricLock.Lock()
	defer lockCreateMetricLock.Unlock()
	c, err := register(prometheus.NewCounter(counterOpts(subsystem, name)))
	MetricCollectionCounters[subsystem+name] = c
	return err
}

func createCounterVec(subsystem, name string, labels []string) error {
	lockCreateMetricLock.Lock()
	defer lockCreateMetricLock.Unlock()
	c, err := register(prometheus.NewCounterVec(counterOpts(subsystem, name), labels))
	MetricCollectionCounterVec[subsystem+name] = c
	return err
}

func createHistogramVec(subsystem, name string, labels []string) error {
	lockCreateMetricLock.Lock()
	defer lockCreateMetricLock.Unlock()
	h, err := register(prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		Help:        subsystem + " " + name,
		ConstLabels: defaultLabels,
		Buckets:     workflowBuckets,
	}, labels))
	MetricCollectionHistogramVec[subsystem+name] = h
	return err
}

// register hands back the collector already in the registry when Create runs
// twice in one process.
func register[T prometheus.Collector](c T) (T, error) {
	err := prometheus.Register(c)
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(T); ok {
			return existing, nil
		}
	}
	return c, err
}

func IncCounter(subsystem, name string) {
	AddCounter(subsystem, name, 1)
}

func AddCounter(subsystem, name string, number float64) {
	if !MetricSystemEnabled {
		return
	}
	if v, ok := MetricCollectionCounters[subsystem+name]; ok {
		v.Add(number)
		return
	}
	logger.Warn("[metrics-server] counter not found", "subsystem", subsystem, "name", name)
}

func AddCounterVec(subsystem, name string, num float64, labelValues ...string) {
	if !MetricSystemEnabled {
		return
	}
	if v, ok := MetricCollectionCounterVec[subsystem+name]; ok {
		v.WithLabelValues(labelValues...).Add(num)
		return
	}
	logger.Warn("[metrics-server] counter vec not found", "subsystem", subsystem, "name", name)
}

func IncCounterVec(subsystem, name string, labelValues ...string) {
	AddCounterVec(subsystem, name, 1, labelValues...)
}

func AddHistogramVec(subsystem, name string, number float64, labelValues ...string) {
	if !MetricSystemEnabled {
		return
	}
	if v, ok := MetricCollectionHistogramVec[subsystem+name]; ok {
		v.WithLabelValues(labelValues...).Observe(number)
		return
	}
	logger.Warn("[metrics-server] histogram vec not found", "subsystem", subsystem, "name", name)
}

// ObserveWorkflow records the outcome and latency of one voucher workflow.
func ObserveWorkflow(operation, result string, started time.Time) {
	switch operation {
	case "purchase":
		IncCounterVec(SystemVoucher, MetricPurchases, result)
	case "redeem":
		IncCounterVec(SystemVoucher, MetricRedemptions, result)
	case "refund":
		IncCounterVec(SystemVoucher, MetricRefunds, result)
	case "cancel":
		IncCounterVec(SystemVoucher, MetricCancellations, result)
	}
	AddHistogramVec(SystemVoucher, MetricWorkflowDuration, time.Since(started).Seconds(), operation)
}

func AddExpired(n int64) {
	AddCounter(SystemVoucher, MetricExpired, float64(n))
}

func IncWalletMovement(txType string) {
	IncCounterVec(SystemWallet, MetricWalletMovements, txType)
}

func IncEventPublished(eventType, result string) {
	IncCounterVec(SystemEvents, MetricEventsPublished, eventType, result)
}

func IncEventDelivered(eventType, result string) {
	IncCounterVec(SystemEvents, MetricEventsDelivered, eventType, result)
}
