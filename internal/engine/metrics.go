package engine

import (
	metrics "github.com/rcrowley/go-metrics"
)

// envMetrics counts operations of one environment. Each environment owns a
// private registry so that snapshots never mix environments.
type envMetrics struct {
	registry metrics.Registry

	finds     metrics.Counter
	inserts   metrics.Counter
	erases    metrics.Counter
	moves     metrics.Counter
	commits   metrics.Counter
	aborts    metrics.Counter
	conflicts metrics.Counter
	selects   metrics.Counter

	databases metrics.Gauge
	txns      metrics.Gauge
	cursors   metrics.Gauge
}

func newEnvMetrics() *envMetrics {
	r := metrics.NewRegistry()
	return &envMetrics{
		registry:  r,
		finds:     metrics.GetOrRegisterCounter("db.find", r),
		inserts:   metrics.GetOrRegisterCounter("db.insert", r),
		erases:    metrics.GetOrRegisterCounter("db.erase", r),
		moves:     metrics.GetOrRegisterCounter("cursor.move", r),
		commits:   metrics.GetOrRegisterCounter("txn.commit", r),
		aborts:    metrics.GetOrRegisterCounter("txn.abort", r),
		conflicts: metrics.GetOrRegisterCounter("txn.conflict", r),
		selects:   metrics.GetOrRegisterCounter("env.select", r),
		databases: metrics.GetOrRegisterGauge("env.open_databases", r),
		txns:      metrics.GetOrRegisterGauge("env.active_txns", r),
		cursors:   metrics.GetOrRegisterGauge("env.open_cursors", r),
	}
}

// observe counts st against c, tracking conflicts separately.
func (m *envMetrics) observe(c metrics.Counter, st Status) Status {
	c.Inc(1)
	if st == TxnConflict {
		m.conflicts.Inc(1)
	}
	return st
}

func (m *envMetrics) snapshot() map[string]int64 {
	out := make(map[string]int64)
	m.registry.Each(func(name string, i interface{}) {
		switch v := i.(type) {
		case metrics.Counter:
			out[name] = v.Count()
		case metrics.Gauge:
			out[name] = v.Value()
		}
	})
	return out
}
