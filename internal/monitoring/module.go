package monitoring

import (
	"net/http"
	"os"
	"strings"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Options control monitoring module configuration.
type Options struct {
	// Namespace prefixes every metric. Defaults to "mentorlink".
	Namespace string
	// Instance is attached as a constant "instance_id" label so replicas sharing a relay can be
	// told apart. "hostname" resolves to os.Hostname; empty omits the label.
	Instance string

	DisableGoCollector      bool
	DisableProcessCollector bool
}

// Module owns the Prometheus registry, the health manager and the summary state of one process.
type Module struct {
	registry *prometheus.Registry
	metrics  *metricSet
	stats    *statStore
	health   *HealthManager
	instance string
}

// NewModule constructs a monitoring module with its own Prometheus registry.
func NewModule(opts Options) (*Module, error) {
	namespace := strings.TrimSpace(opts.Namespace)
	if namespace == "" {
		namespace = "mentorlink"
	}
	instance := strings.TrimSpace(opts.Instance)
	if strings.EqualFold(instance, "hostname") {
		instance, _ = os.Hostname()
	}

	registry := prometheus.NewRegistry()
	var runtime []prometheus.Collector
	if !opts.DisableGoCollector {
		runtime = append(runtime, collectors.NewGoCollector())
	}
	if !opts.DisableProcessCollector {
		runtime = append(runtime, collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	var domain prometheus.Registerer = registry
	if instance != "" {
		domain = prometheus.WrapRegistererWith(prometheus.Labels{"instance_id": instance}, registry)
	}

	metrics := newMetricSet(namespace)
	if err := registerAll(registry, runtime...); err != nil {
		return nil, err
	}
	if err := registerAll(domain, metrics.all()...); err != nil {
		return nil, err
	}

	return &Module{
		registry: registry,
		metrics:  metrics,
		stats:    newStatStore(),
		health:   NewHealthManager(),
		instance: instance,
	}, nil
}

func registerAll(reg prometheus.Registerer, cs ...prometheus.Collector) error {
	for _, c := range cs {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Registry exposes the underlying Prometheus registry.
func (m *Module) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Instance reports the instance label, if any.
func (m *Module) Instance() string {
	if m == nil {
		return ""
	}
	return m.instance
}

// Handler serves this module's metrics, in OpenMetrics format when the scraper asks for it.
func (m *Module) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "monitoring disabled", http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		Registry:          m.registry,
		EnableOpenMetrics: true,
	})
}

// Health exposes the liveness and readiness probes.
func (m *Module) Health() *HealthManager {
	if m == nil {
		return nil
	}
	return m.health
}

var current atomic.Pointer[Module]

// SetModule installs module as the target of the package-level Record helpers. Nil is ignored.
func SetModule(module *Module) {
	if module != nil {
		current.Store(module)
	}
}

// CurrentModule returns the installed module, or nil.
func CurrentModule() *Module {
	return current.Load()
}

func ensureModule() *Module {
	return current.Load()
}
