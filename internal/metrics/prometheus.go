package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus backs Recorder with real histograms, registered against
// the supplied registry by cmd/mempoold. Apart from cmd/mempoold and
// this package's tests, this is the only file in the repository that
// imports client_golang; internal/mempool never does.
type Prometheus struct {
	proposeBlock prometheus.Histogram
	dispatch     prometheus.Histogram
}

func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	p := &Prometheus{
		proposeBlock: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "mempool_propose_new_block_seconds",
			Help: "Time spent assembling one proposed block.",
		}),
		dispatch: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "mempool_dispatcher_request_seconds",
			Help: "Time spent routing one admission request to a worker.",
		}),
	}
	reg.MustRegister(p.proposeBlock, p.dispatch)
	return p
}

func (p *Prometheus) ObserveProposeBlock(d time.Duration) {
	p.proposeBlock.Observe(d.Seconds())
}

func (p *Prometheus) ObserveDispatch(d time.Duration) {
	p.dispatch.Observe(d.Seconds())
}
