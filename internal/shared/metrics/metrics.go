package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	roundTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "round_transitions_total",
		Help: "transições de estado de rodada",
	}, []string{"game_type", "status"})

	betsPlaced = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bets_placed_total",
		Help: "apostas aceitas",
	}, []string{"game_type"})

	betsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bets_rejected_total",
		Help: "apostas recusadas por classe de erro",
	}, []string{"game_type", "class"})

	betsResolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bets_resolved_total",
		Help: "apostas liquidadas por status final",
	}, []string{"game_type", "status"})

	stakedCents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bets_staked_cents_total",
		Help: "valor apostado em centavos",
	}, []string{"game_type"})

	paidCents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bets_paid_cents_total",
		Help: "valor pago (ganho, cash-out ou estorno) em centavos",
	}, []string{"game_type", "status"})

	settleDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "round_settle_duration_seconds",
		Help:    "duração de uma passada de liquidação",
		Buckets: prometheus.DefBuckets,
	}, []string{"game_type"})

	invariantViolations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_invariant_violations_total",
		Help: "violações de invariante detectadas na liquidação",
	}, []string{"game_type"})

	tickErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "driver_tick_errors_total",
		Help: "erros no tick do driver",
	}, []string{"game_type", "class"})

	outboxPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_published_total",
		Help: "eventos publicados pelo relay",
	}, []string{"sink"})

	outboxFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_failures_total",
		Help: "falhas de publicação do relay",
	}, []string{"sink"})

	outboxBacklog = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "outbox_claimed_batch_size",
		Help: "tamanho do último lote reivindicado pelo relay",
	})

	feedEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feed_events_total",
		Help: "eventos de rodada processados pelo feed por estágio",
	}, []string{"stage"})

	feedErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feed_errors_total",
		Help: "erros do feed por estágio",
	}, []string{"stage"})

	wsConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "feed_ws_connections",
		Help: "conexões websocket abertas",
	})

	auditResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fairness_audit_total",
		Help: "rodadas auditadas por resultado",
	}, []string{"game_type", "result"})

	walletOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_operations_total",
		Help: "operações de carteira via HTTP",
	}, []string{"op", "result"})
)

func RecordTransition(gameType, status string) {
	roundTransitions.WithLabelValues(gameType, status).Inc()
}

func RecordBetPlaced(gameType string, amount int64) {
	betsPlaced.WithLabelValues(gameType).Inc()
	stakedCents.WithLabelValues(gameType).Add(float64(amount))
}

func RecordBetRejected(gameType, class string) {
	betsRejected.WithLabelValues(gameType, class).Inc()
}

// RecordBetResolved conta o status final e o valor devolvido ao usuário
func RecordBetResolved(gameType, status string, paid int64) {
	betsResolved.WithLabelValues(gameType, status).Inc()
	if paid > 0 {
		paidCents.WithLabelValues(gameType, status).Add(float64(paid))
	}
}

func ObserveSettle(gameType string, seconds float64) {
	settleDuration.WithLabelValues(gameType).Observe(seconds)
}

func RecordInvariantViolation(gameType string) {
	invariantViolations.WithLabelValues(gameType).Inc()
}

func RecordTickError(gameType, class string) {
	tickErrors.WithLabelValues(gameType, class).Inc()
}

func RecordOutboxPublished(sink string, n int) {
	outboxPublished.WithLabelValues(sink).Add(float64(n))
}

func RecordOutboxFailure(sink string) {
	outboxFailures.WithLabelValues(sink).Inc()
}

func SetOutboxBatch(n int) {
	outboxBacklog.Set(float64(n))
}

func RecordFeedEvent(stage string) {
	feedEvents.WithLabelValues(stage).Inc()
}

func RecordFeedError(stage string) {
	feedErrors.WithLabelValues(stage).Inc()
}

func AddWSConnections(delta int) {
	wsConnections.Add(float64(delta))
}

func RecordAudit(gameType, result string) {
	auditResults.WithLabelValues(gameType, result).Inc()
}

func RecordWalletOp(op, result string) {
	walletOps.WithLabelValues(op, result).Inc()
}
