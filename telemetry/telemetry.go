package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	defaultPort = 2112
	namespace   = "federation"
)

// Config holds telemetry configuration.
type Config struct {
	Port int `yaml:"port"` // Port of the prometheus metrics endpoint, 2112 when not set.
}

// Measurements collects measurements for prometheus.
// Each Measurements owns its registry so many instances can live in a single process.
type Measurements struct {
	mux        sync.RWMutex
	registry   *prometheus.Registry
	factory    promauto.Factory
	histograms map[string]prometheus.Observer
	gauges     map[string]prometheus.Gauge
	counters   map[string]prometheus.Counter
}

// NewMeasurements creates Measurements with the Go runtime and process collectors registered.
func NewMeasurements() *Measurements {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return &Measurements{
		registry:   reg,
		factory:    promauto.With(reg),
		histograms: make(map[string]prometheus.Observer),
		gauges:     make(map[string]prometheus.Gauge),
		counters:   make(map[string]prometheus.Counter),
	}
}

// CreateUpdateObservableHistogtram creates observable histogram if it does not exist yet.
func (m *Measurements) CreateUpdateObservableHistogtram(name, description string) {
	m.mux.Lock()
	defer m.mux.Unlock()
	if _, ok := m.histograms[name]; ok {
		return
	}
	m.histograms[name] = m.factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      name,
		Help:      description,
	})
}

// RecordHistogramTime records histogram time in microseconds if entity with given name exists.
func (m *Measurements) RecordHistogramTime(name string, t time.Duration) bool {
	return m.RecordHistogramValue(name, float64(t.Microseconds()))
}

// RecordHistogramValue records histogram value if entity with given name exists.
func (m *Measurements) RecordHistogramValue(name string, f float64) bool {
	m.mux.RLock()
	defer m.mux.RUnlock()
	if v, ok := m.histograms[name]; ok {
		v.Observe(f)
		return true
	}
	return false
}

// CreateUpdateObservableGauge creates observable gauge if it does not exist yet.
func (m *Measurements) CreateUpdateObservableGauge(name, description string) {
	m.mux.Lock()
	defer m.mux.Unlock()
	if _, ok := m.gauges[name]; ok {
		return
	}
	m.gauges[name] = m.factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      description,
	})
}

// SetGauge sets the gauge to the value if entity with given name exists.
func (m *Measurements) SetGauge(name string, f float64) bool {
	m.mux.RLock()
	defer m.mux.RUnlock()
	if v, ok := m.gauges[name]; ok {
		v.Set(f)
		return true
	}
	return false
}

// IncrementGauge increments gauge the value if entity with given name exists.
func (m *Measurements) IncrementGauge(name string) bool {
	m.mux.RLock()
	defer m.mux.RUnlock()
	if v, ok := m.gauges[name]; ok {
		v.Inc()
		return true
	}
	return false
}

// DecrementGauge decrements gauge the value if entity with given name exists.
func (m *Measurements) DecrementGauge(name string) bool {
	m.mux.RLock()
	defer m.mux.RUnlock()
	if v, ok := m.gauges[name]; ok {
		v.Dec()
		return true
	}
	return false
}

// CreateUpdateObservableCounter creates observable counter if it does not exist yet.
func (m *Measurements) CreateUpdateObservableCounter(name, description string) {
	m.mux.Lock()
	defer m.mux.Unlock()
	if _, ok := m.counters[name]; ok {
		return
	}
	m.counters[name] = m.factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      name,
		Help:      description,
	})
}

// AddToCounter adds the value to counter if entity with given name exists.
func (m *Measurements) AddToCounter(name string, f float64) bool {
	m.mux.RLock()
	defer m.mux.RUnlock()
	if v, ok := m.counters[name]; ok {
		v.Add(f)
		return true
	}
	return false
}

// Handler returns http handler exposing the registry.
func (m *Measurements) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Run starts collecting metrics and server with prometheus telemetry endpoint.
// Returns Measurements structure if successfully started or cancels context otherwise.
// Default port of 2112 is used if port value is set to 0.
func Run(ctx context.Context, cancel context.CancelFunc, port int) (*Measurements, error) {
	if port > 65535 || port < 0 {
		return nil, fmt.Errorf("port range allowed is from 1 to 65535, received %d", port)
	}
	if port == 0 {
		port = defaultPort
	}
	m := NewMeasurements()

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			cancel()
		}
	}()
	go func() {
		<-ctx.Done()
		ctxx, cancelx := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelx()
		srv.Shutdown(ctxx)
	}()

	return m, nil
}
