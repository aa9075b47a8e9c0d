// Package metrics holds the bot's Prometheus collectors.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	MatchesStarted   prometheus.Counter
	MatchesFinished  *prometheus.CounterVec
	MatchesAbandoned *prometheus.CounterVec
	QueuePairings    prometheus.Counter
	QueueExpired     prometheus.Counter
	ActiveMatches    prometheus.Gauge
	DeliveryFailures prometheus.Counter
	RematchTickets   *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New registers the collectors on reg. A nil reg uses a private registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		MatchesStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "battle_matches_started_total",
			Help: "Matches created after a successful pairing or rematch.",
		}),
		MatchesFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "battle_matches_finished_total",
			Help: "Matches finalized with both players done.",
		}, []string{"outcome"}),
		MatchesAbandoned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "battle_matches_abandoned_total",
			Help: "Matches force-ended before both players finished.",
		}, []string{"reason"}),
		QueuePairings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "battle_queue_pairings_total",
			Help: "Pending entries paired with an opponent.",
		}),
		QueueExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "battle_queue_expired_total",
			Help: "Pending entries removed by the expiry sweep.",
		}),
		ActiveMatches: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "battle_active_matches",
			Help: "Matches currently held by the coordinator.",
		}),
		DeliveryFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "battle_delivery_failures_total",
			Help: "Outbound messages that could not be delivered.",
		}),
		RematchTickets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "battle_rematch_tickets_total",
			Help: "Rematch tickets by how they ended.",
		}, []string{"result"}),
		gatherer: reg,
	}
	reg.MustRegister(
		m.MatchesStarted,
		m.MatchesFinished,
		m.MatchesAbandoned,
		m.QueuePairings,
		m.QueueExpired,
		m.ActiveMatches,
		m.DeliveryFailures,
		m.RematchTickets,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx ends.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
