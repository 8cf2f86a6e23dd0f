// Package metrics exports render-target registry and object pool
// statistics to Prometheus.
//
// Registries and pools are not safe for concurrent use, while Prometheus
// scrapes from its own goroutine. The Collector therefore serves the
// snapshot taken by the last Observe call, which the host makes on the
// rendering goroutine once per frame:
//
//	c := metrics.NewCollector(reg, metrics.WithPool("cmdbuf", buffers))
//	prometheus.MustRegister(c)
//	for frame := range frames {
//		// render...
//		c.Observe()
//	}
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gogpu/rthandle"
)

// PoolCounter is the counting surface of pool.Pool.
type PoolCounter interface {
	CountAll() int
	CountActive() int
	CountInactive() int
}

type namedPool struct {
	name string
	pool PoolCounter
}

type poolSnapshot struct {
	name     string
	all      int
	active   int
	inactive int
}

type snapshot struct {
	stats rthandle.Stats
	props rthandle.Properties
	pools []poolSnapshot
}

// Collector is a prometheus.Collector over one registry and any number
// of pools.
type Collector struct {
	reg   *rthandle.Registry
	pools []namedPool

	mu   sync.Mutex
	snap snapshot

	liveHandles    *prometheus.Desc
	allocations    *prometheus.Desc
	reallocations  *prometheus.Desc
	skippedResizes *prometheus.Desc
	destroys       *prometheus.Desc
	propagations   *prometheus.Desc
	ownedBytes     *prometheus.Desc
	referenceSize  *prometheus.Desc
	msaaSamples    *prometheus.Desc
	poolObjects    *prometheus.Desc
	poolCreated    *prometheus.Desc
}

// Option configures a Collector.
type Option func(*collectorOptions)

type collectorOptions struct {
	namespace   string
	constLabels prometheus.Labels
	pools       []namedPool
}

// WithNamespace sets the metric namespace. The default is "rthandle".
func WithNamespace(ns string) Option {
	return func(o *collectorOptions) {
		o.namespace = ns
	}
}

// WithConstLabels attaches labels to every metric.
func WithConstLabels(l prometheus.Labels) Option {
	return func(o *collectorOptions) {
		o.constLabels = l
	}
}

// WithPool adds a pool reported under the given name.
func WithPool(name string, p PoolCounter) Option {
	return func(o *collectorOptions) {
		if p != nil {
			o.pools = append(o.pools, namedPool{name: name, pool: p})
		}
	}
}

// NewCollector returns a collector for reg. It takes an initial snapshot.
func NewCollector(reg *rthandle.Registry, opts ...Option) *Collector {
	o := collectorOptions{namespace: "rthandle"}
	for _, opt := range opts {
		opt(&o)
	}
	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(o.namespace, "", name), help, labels, o.constLabels)
	}
	c := &Collector{
		reg:   reg,
		pools: o.pools,

		liveHandles:    desc("live_handles", "Number of registered scaling handles."),
		allocations:    desc("allocations_total", "Backing textures created by Alloc."),
		reallocations:  desc("reallocations_total", "Backing textures recreated by rescale or sample count changes."),
		skippedResizes: desc("skipped_resizes_total", "Handles that kept their backing during a rescale."),
		destroys:       desc("destroys_total", "Owned backing textures freed."),
		propagations:   desc("propagations_total", "Rescale passes over the live handles."),
		ownedBytes:     desc("owned_bytes", "Approximate memory held by owned backings."),
		referenceSize:  desc("reference_size_pixels", "Current reference size.", "axis"),
		msaaSamples:    desc("msaa_samples", "Registry-wide MSAA sample count."),
		poolObjects:    desc("pool_objects", "Pooled objects by state.", "pool", "state"),
		poolCreated:    desc("pool_created_total", "Objects built by the pool factory.", "pool"),
	}
	c.Observe()
	return c
}

// Observe snapshots the registry and pools. Call it on the goroutine
// that owns them.
func (c *Collector) Observe() {
	snap := snapshot{
		stats: c.reg.Stats(),
		props: c.reg.Properties(),
		pools: make([]poolSnapshot, len(c.pools)),
	}
	for i, p := range c.pools {
		snap.pools[i] = poolSnapshot{
			name:     p.name,
			all:      p.pool.CountAll(),
			active:   p.pool.CountActive(),
			inactive: p.pool.CountInactive(),
		}
	}
	c.mu.Lock()
	c.snap = snap
	c.mu.Unlock()
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.liveHandles, c.allocations, c.reallocations, c.skippedResizes,
		c.destroys, c.propagations, c.ownedBytes, c.referenceSize,
		c.msaaSamples, c.poolObjects, c.poolCreated,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mu.Lock()
	snap := c.snap
	c.mu.Unlock()

	s := snap.stats
	gauge := func(d *prometheus.Desc, v float64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v, labels...)
	}
	counter := func(d *prometheus.Desc, v float64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, v, labels...)
	}

	gauge(c.liveHandles, float64(s.LiveHandles))
	counter(c.allocations, float64(s.Allocations))
	counter(c.reallocations, float64(s.Reallocations))
	counter(c.skippedResizes, float64(s.SkippedResizes))
	counter(c.destroys, float64(s.Destroys))
	counter(c.propagations, float64(s.Propagations))
	gauge(c.ownedBytes, float64(s.BytesOwned))
	gauge(c.referenceSize, float64(snap.props.ReferenceSize.Width), "width")
	gauge(c.referenceSize, float64(snap.props.ReferenceSize.Height), "height")
	gauge(c.msaaSamples, float64(snap.props.MSAASamples))

	for _, p := range snap.pools {
		gauge(c.poolObjects, float64(p.active), p.name, "active")
		gauge(c.poolObjects, float64(p.inactive), p.name, "inactive")
		counter(c.poolCreated, float64(p.all), p.name)
	}
}
