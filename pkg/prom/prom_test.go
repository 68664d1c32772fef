package prom

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkflowMetrics(t *testing.T) {
	MetricSystemEnabled = false
	ObserveWorkflow("purchase", "ok", time.Now())

	require.NoError(t, Create("test-host", "test", "vw"))
	defer func() { MetricSystemEnabled = false }()

	ObserveWorkflow("purchase", "ok", time.Now())
	ObserveWorkflow("purchase", "ok", time.Now())
	ObserveWorkflow("purchase", "out_of_stock", time.Now())
	ObserveWorkflow("redeem", "ok", time.Now())
	AddExpired(3)
	IncWalletMovement("debit")

	purchases := MetricCollectionCounterVec[SystemVoucher+MetricPurchases]
	assert.Equal(t, float64(2), testutil.ToFloat64(purchases.WithLabelValues("ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(purchases.WithLabelValues("out_of_stock")))
	assert.Equal(t, float64(1), testutil.ToFloat64(MetricCollectionCounterVec[SystemVoucher+MetricRedemptions].WithLabelValues("ok")))
	assert.Equal(t, float64(3), testutil.ToFloat64(MetricCollectionCounters[SystemVoucher+MetricExpired]))
	assert.Equal(t, float64(1), testutil.ToFloat64(MetricCollectionCounterVec[SystemWallet+MetricWalletMovements].WithLabelValues("debit")))
}

func TestCreateMetric_UnknownType(t *testing.T) {
	assert.Error(t, CreateMetric("summary", "x", "y"))
}

func TestCreate_Twice(t *testing.T) {
	require.NoError(t, Create("test-host", "test", "vw"))
	defer func() { MetricSystemEnabled = false }()

	before := testutil.ToFloat64(MetricCollectionCounters[SystemVoucher+MetricExpired])
	require.NoError(t, Create("test-host", "test", "vw"))
	AddExpired(2)
	assert.Equal(t, before+2, testutil.ToFloat64(MetricCollectionCounters[SystemVoucher+MetricExpired]))
}
