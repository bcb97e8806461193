package engine

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/radieske/fair-round-engine/internal/round-service/outcome"
)

// Status é o estado de uma rodada: OPEN -> LOCKED -> RESOLVING -> SETTLED.
type Status string

const (
	StatusOpen      Status = "OPEN"
	StatusLocked    Status = "LOCKED"
	StatusResolving Status = "RESOLVING"
	StatusSettled   Status = "SETTLED"
)

// Active indica se a rodada ainda bloqueia a abertura de outra do mesmo jogo
func (s Status) Active() bool { return s != StatusSettled }

type BetStatus string

const (
	BetPending   BetStatus = "PENDING"
	BetWon       BetStatus = "WON"
	BetLost      BetStatus = "LOST"
	BetCashedOut BetStatus = "CASHED_OUT"
	BetVoid      BetStatus = "VOID"
)

// Direção e motivos dos lançamentos de carteira
const (
	DirectionDebit  = "DEBIT"
	DirectionCredit = "CREDIT"

	ReasonBetPlaced = "bet_placed"
	ReasonBetWon    = "bet_won"
	ReasonCashOut   = "cash_out"
	ReasonBetVoid   = "bet_void"
)

// Round é uma instância do ciclo aposta -> resultado de um jogo.
type Round struct {
	ID              string           `json:"id"`
	GameType        string           `json:"gameType"`
	SequenceNumber  int64            `json:"sequenceNumber"`
	Status          Status           `json:"status"`
	OpenedAt        time.Time        `json:"openedAt"`
	BettingClosesAt time.Time        `json:"bettingClosesAt"`
	LockedAt        *time.Time       `json:"lockedAt,omitempty"`
	ResolvedAt      *time.Time       `json:"resolvedAt,omitempty"`
	SettledAt       *time.Time       `json:"settledAt,omitempty"`
	Seed            string           `json:"-"`
	SeedHash        string           `json:"seedHash"`
	Outcome         *outcome.Outcome `json:"outcome,omitempty"`
}

func (r *Round) gameContext() outcome.GameContext {
	return outcome.GameContext{GameType: r.GameType, RoundID: r.ID, SequenceNumber: r.SequenceNumber}
}

// Bet é uma aposta registrada contra uma rodada.
type Bet struct {
	ID                string           `json:"id"`
	RoundID           string           `json:"roundId"`
	UserID            string           `json:"userId"`
	Amount            int64            `json:"amount"`
	Selection         string           `json:"selection"`
	Status            BetStatus        `json:"status"`
	Payout            *int64           `json:"payout,omitempty"`
	CashOutMultiplier *decimal.Decimal `json:"cashOutMultiplier,omitempty"`
	DebitEntryID      int64            `json:"debitEntryId"`
	CreditEntryID     *int64           `json:"creditEntryId,omitempty"`
	IdempotencyKey    string           `json:"-"`
	CreatedAt         time.Time        `json:"createdAt"`
	ResolvedAt        *time.Time       `json:"resolvedAt,omitempty"`
}

// LedgerEntry é o lançamento imutável produzido pela carteira.
type LedgerEntry struct {
	ID               int64     `json:"id"`
	UserID           string    `json:"userId"`
	Amount           int64     `json:"amount"`
	Direction        string    `json:"direction"`
	Reason           string    `json:"reason"`
	Reference        string    `json:"reference"`
	ResultingBalance int64     `json:"resultingBalance"`
	CreatedAt        time.Time `json:"createdAt"`
}

// IdempotencyRecord guarda o resultado de uma chamada mutável por (userId, key).
type IdempotencyRecord struct {
	UserID      string
	Key         string
	Scope       string
	Fingerprint string
	ResultRef   string
}

// BetTotals agrega as apostas de uma rodada a partir do estado persistido.
type BetTotals struct {
	Bets          int   `json:"bets"`
	Pending       int   `json:"pending"`
	Won           int   `json:"won"`
	Lost          int   `json:"lost"`
	CashedOut     int   `json:"cashedOut"`
	Voided        int   `json:"voided"`
	TotalStaked   int64 `json:"totalStaked"`
	TotalPaid     int64 `json:"totalPaid"`     // WON + CASHED_OUT
	TotalRefunded int64 `json:"totalRefunded"` // VOID
}

// BetFailure descreve uma aposta que não pôde ser liquidada nesta passada.
type BetFailure struct {
	BetID string `json:"betId"`
	Error string `json:"error"`
}

// SettlementReport é calculado do estado persistido, então chamadas repetidas
// sobre uma rodada liquidada retornam o mesmo relatório.
type SettlementReport struct {
	RoundID        string           `json:"roundId"`
	GameType       string           `json:"gameType"`
	SequenceNumber int64            `json:"sequenceNumber"`
	Outcome        *outcome.Outcome `json:"outcome,omitempty"`
	BetTotals
	Failures []BetFailure `json:"failures,omitempty"`
}
