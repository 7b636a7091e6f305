package telemetry

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMeasurementsRecordAndExpose(t *testing.T) {
	m := NewMeasurements()
	m.CreateUpdateObservableHistogtram("propose_request_time", "propose request time")
	m.CreateUpdateObservableHistogtram("propose_request_time", "registered twice")
	m.CreateUpdateObservableGauge("members", "current members")
	m.CreateUpdateObservableCounter("dropped_events", "dropped events")

	assert.True(t, m.RecordHistogramTime("propose_request_time", 3*time.Millisecond))
	assert.False(t, m.RecordHistogramTime("unknown", time.Millisecond))
	assert.True(t, m.SetGauge("members", 3))
	assert.True(t, m.IncrementGauge("members"))
	assert.True(t, m.DecrementGauge("members"))
	assert.False(t, m.SetGauge("unknown", 1))
	assert.True(t, m.AddToCounter("dropped_events", 2))
	assert.False(t, m.AddToCounter("unknown", 2))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	assert.Nil(t, err)
	text := string(body)
	assert.True(t, strings.Contains(text, "federation_members 3"))
	assert.True(t, strings.Contains(text, "federation_dropped_events 2"))
	assert.True(t, strings.Contains(text, "federation_propose_request_time_count 1"))
}

func TestRunRejectsInvalidPort(t *testing.T) {
	_, err := Run(context.Background(), func() {}, 70000)
	assert.NotNil(t, err)
}

func TestTwoMeasurementsDoNotCollide(t *testing.T) {
	a := NewMeasurements()
	b := NewMeasurements()
	a.CreateUpdateObservableGauge("members", "current members")
	b.CreateUpdateObservableGauge("members", "current members")
	assert.True(t, a.SetGauge("members", 1))
	assert.True(t, b.SetGauge("members", 2))
}
