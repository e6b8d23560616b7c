package ports

import (
	"time"

	"github.com/shopspring/decimal"
)

type IngestOutcome string

const (
	IngestStored    IngestOutcome = "stored"
	IngestDropped   IngestOutcome = "dropped"
	IngestDuplicate IngestOutcome = "duplicate"
	IngestFailed    IngestOutcome = "failed"
)

type IngestObservation struct {
	// Source is empty when the origin was not recognised.
	Source   string
	Outcome  IngestOutcome
	Reason   string
	Amount   decimal.Decimal
	Duration time.Duration
}

type IngestMetrics interface {
	ObserveIngest(obs IngestObservation)
}
