package store

import (
	"time"

	"github.com/efreitasn/cogexchange/internal/domain"
)

// Persister is the durable side of the in-memory stores. Every write must
// be atomic for the record it names; callers treat any error as a
// systemic failure.
type Persister interface {
	SaveAccount(s domain.AccountSnapshot) error
	SaveInstrument(symbol string, s domain.InstrumentState) error
	AppendHistory(symbol string, p domain.PricePoint) error
	// TrimHistory drops every history point strictly older than before.
	TrimHistory(symbol string, before time.Time) error
	SaveOrder(o domain.ConditionalOrder) error
	SaveAlert(a domain.PriceAlert) error
}

// Nop is a Persister that keeps nothing. It is used when no data
// directory is configured.
type Nop struct{}

func (Nop) SaveAccount(domain.AccountSnapshot) error { return nil }

func (Nop) SaveInstrument(string, domain.InstrumentState) error { return nil }

func (Nop) AppendHistory(string, domain.PricePoint) error { return nil }

func (Nop) TrimHistory(string, time.Time) error { return nil }

func (Nop) SaveOrder(domain.ConditionalOrder) error { return nil }

func (Nop) SaveAlert(domain.PriceAlert) error { return nil }

var _ Persister = Nop{}
