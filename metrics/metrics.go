// Package metrics exports a jail listing as Prometheus gauges in the
// node_exporter textfile collector format.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/truenas/iocage-list/reconcile"
)

// Register adds gauges describing records to reg.
func Register(reg prometheus.Registerer, records []reconcile.Record) {
	factory := promauto.With(reg)

	jails := factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "iocage_jails",
			Help: "Number of jails by state and type",
		},
		[]string{"state", "type"},
	)

	jailUp := factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "iocage_jail_up",
			Help: "Whether the jail is running",
		},
		[]string{"name", "release"},
	)

	corrupt := factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "iocage_jails_corrupt",
			Help: "Number of jails whose configuration could not be read",
		},
	)

	for _, r := range records {
		jails.WithLabelValues(string(r.RunState), r.Type).Inc()
		if r.Corrupt() {
			corrupt.Inc()
			continue
		}
		up := 0.0
		if r.RunState == reconcile.RunUp {
			up = 1
		}
		jailUp.WithLabelValues(r.Identity, r.FullRelease).Set(up)
	}
}

// WriteTextfile writes the gauges for records to path. The file is
// replaced atomically so a collector never reads a partial file.
func WriteTextfile(path string, records []reconcile.Record) error {
	reg := prometheus.NewRegistry()
	Register(reg, records)
	return prometheus.WriteToTextfile(path, reg)
}
