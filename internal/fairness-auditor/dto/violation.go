package dto

import (
	"time"

	"github.com/radieske/fair-round-engine/pkg/contracts/events"
)

// Motivos de violação publicados na DLQ de fairness
const (
	ReasonSeedMismatch    = "seed_mismatch"
	ReasonOutcomeMismatch = "outcome_mismatch"
	ReasonMalformed       = "malformed_outcome"
)

// Violation descreve uma rodada cujo resultado não pôde ser reproduzido a partir da seed
type Violation struct {
	RoundID        string            `json:"roundId"`
	GameType       string            `json:"gameType"`
	SequenceNumber int64             `json:"sequenceNumber"`
	Reason         string            `json:"reason"`
	Expected       string            `json:"expected,omitempty"`
	Got            string            `json:"got,omitempty"`
	Event          events.RoundEvent `json:"event"`
	DetectedAt     time.Time         `json:"detectedAt"`
}
