package cmd

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/adalundhe/halflife/core/datasheet"
)

// registerWatchMetrics exposes the watcher's latest snapshot on reg,
// alongside the Go runtime and process collectors.
func registerWatchMetrics(reg prometheus.Registerer, w *datasheet.Watcher) error {
	snapshot := func(f func(*datasheet.LoadResult) int) func() float64 {
		return func() float64 {
			res := w.Current()
			if res == nil {
				return 0
			}
			return float64(f(res))
		}
	}

	cs := []prometheus.Collector{
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "halflife_catalog_reloads_total",
			Help: "Completed datasheet directory loads, including the initial one.",
		}, func() float64 { return float64(w.Reloads()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "halflife_catalog_nuclides",
			Help: "Nuclides in the current catalog snapshot.",
		}, snapshot(func(r *datasheet.LoadResult) int { return r.Catalog.Len() })),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "halflife_catalog_rejected_files",
			Help: "Datasheets rejected by the latest load.",
		}, snapshot(func(r *datasheet.LoadResult) int { return len(r.Failures) })),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "halflife_catalog_lines",
			Help: "Emission lines in the current catalog snapshot.",
		}, snapshot(func(r *datasheet.LoadResult) int { return len(r.Catalog.Lines()) })),
	}
	for _, c := range cs {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
