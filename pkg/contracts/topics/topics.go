package topics

const (
	// Rodadas
	RoundEvents = "round_events"

	// Apostas
	BetResolved = "bet_resolved"

	// Auditoria
	FairnessViolations = "fairness_violations"

	// DLQs
	RoundEventsDLQ = "round_events_dlq"
)

// Subjects NATS (JetStream)
const (
	StreamRoundEvents  = "ROUND_EVENTS"
	SubjectRoundEvents = "rounds.events"
)
