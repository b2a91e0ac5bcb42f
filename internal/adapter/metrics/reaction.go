package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/pscheid92/likelovehate/internal/domain"
)

// ReactionMetrics counts user-facing reaction events.
type ReactionMetrics struct {
	ReactionsSet     *prometheus.CounterVec
	ReactionsDeleted prometheus.Counter
}

func NewReactionMetrics(reg prometheus.Registerer) *ReactionMetrics {
	m := &ReactionMetrics{
		ReactionsSet: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reactions_set_total",
			Help:      "Total number of reactions set, by kind.",
		}, []string{"kind"}),
		ReactionsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reactions_deleted_total",
			Help:      "Total number of reaction delete requests.",
		}),
	}

	// Pre-create the kind series so dashboards see zeroes before the first vote.
	for _, kind := range []domain.ReactionKind{domain.ReactionLike, domain.ReactionLove, domain.ReactionHate} {
		m.ReactionsSet.WithLabelValues(kind.String())
	}

	reg.MustRegister(m.ReactionsSet, m.ReactionsDeleted)
	return m
}

func (m *ReactionMetrics) Set(kind domain.ReactionKind) {
	if m == nil {
		return
	}
	m.ReactionsSet.WithLabelValues(kind.String()).Inc()
}

func (m *ReactionMetrics) Deleted() {
	if m == nil {
		return
	}
	m.ReactionsDeleted.Inc()
}
