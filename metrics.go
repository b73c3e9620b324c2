package symbolize

import (
	"errors"
	"io/fs"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	resolutions   *prometheus.CounterVec
	mappingErrors *prometheus.CounterVec
	evictions     prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "symbolize_resolutions_total",
			Help: "Address resolutions by outcome.",
		}, []string{"outcome"}),
		mappingErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "symbolize_mapping_errors_total",
			Help: "Failed attempts to map a binary for resolution.",
		}, []string{"reason"}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "symbolize_mapping_evictions_total",
			Help: "Mappings closed on eviction or cache clear.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.resolutions, m.mappingErrors, m.evictions)
	}
	return m
}

const (
	outcomeFrames     = "frames"
	outcomeSymtab     = "symtab"
	outcomeUnresolved = "unresolved"
)

func errorType(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, fs.ErrNotExist):
		return "not_found"
	case errors.Is(err, fs.ErrPermission):
		return "permission"
	default:
		return "parse"
	}
}
