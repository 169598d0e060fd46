package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsRegistration(t *testing.T) {
	assert.NotNil(t, EventsConsumed)
	assert.NotNil(t, EventsMalformed)
	assert.NotNil(t, EventProcessingDuration)
	assert.NotNil(t, AlertsGenerated)
	assert.NotNil(t, RuleEvaluationErrors)
	assert.NotNil(t, RegexTimeouts)
	assert.NotNil(t, NotificationsSent)
	assert.NotNil(t, CorrelationSweeps)
	assert.NotNil(t, CorrelationSweepDuration)
	assert.NotNil(t, CorrelationAlerts)
	assert.NotNil(t, DetectorFailures)
	assert.NotNil(t, CollectorLines)
}

func TestCounterVecLabels(t *testing.T) {
	before := testutil.ToFloat64(CorrelationAlerts.WithLabelValues("PORT_SCAN"))
	CorrelationAlerts.WithLabelValues("PORT_SCAN").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(CorrelationAlerts.WithLabelValues("PORT_SCAN")))
}
