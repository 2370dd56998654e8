package domain

import (
	"sync"
	"time"
)

// Holding represents an account's position in a single instrument.
type Holding struct {
	Quantity         int64 `json:"quantity"`
	ReservedQuantity int64 `json:"reserved_quantity"`
}

// Account represents a market participant. The ledger is the only writer
// of Cash, ReservedCash and Holdings, and only while holding Mu.
type Account struct {
	AccountID    string
	Team         string              // instrument symbol of the holder's own team, may be empty
	Cash         int64               // total cash in spurs
	ReservedCash int64               // cash locked by pending buy orders
	Holdings     map[string]*Holding // symbol → holding
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Mu           sync.Mutex // per-account lock for balance mutations
}

// AvailableCash returns the account's unreserved cash balance.
func (a *Account) AvailableCash() int64 {
	return a.Cash - a.ReservedCash
}

// AvailableQuantity returns the unreserved quantity for the given symbol,
// or 0 if the account has no holding in that symbol.
func (a *Account) AvailableQuantity(symbol string) int64 {
	h, ok := a.Holdings[symbol]
	if !ok {
		return 0
	}
	return h.Quantity - h.ReservedQuantity
}

// Holding returns the holding for symbol, creating an empty one if needed.
func (a *Account) Holding(symbol string) *Holding {
	h, ok := a.Holdings[symbol]
	if !ok {
		h = &Holding{}
		a.Holdings[symbol] = h
	}
	return h
}

// AccountSnapshot is a lock-free copy of an account used for persistence
// and read views. Callers must hold Mu while taking it.
type AccountSnapshot struct {
	AccountID    string             `json:"account_id"`
	Team         string             `json:"team,omitempty"`
	Cash         int64              `json:"cash"`
	ReservedCash int64              `json:"reserved_cash"`
	Holdings     map[string]Holding `json:"holdings"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// Snapshot copies the account state. The caller must hold a.Mu.
func (a *Account) Snapshot() AccountSnapshot {
	holdings := make(map[string]Holding, len(a.Holdings))
	for symbol, h := range a.Holdings {
		if h.Quantity == 0 && h.ReservedQuantity == 0 {
			continue
		}
		holdings[symbol] = *h
	}
	return AccountSnapshot{
		AccountID:    a.AccountID,
		Team:         a.Team,
		Cash:         a.Cash,
		ReservedCash: a.ReservedCash,
		Holdings:     holdings,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}

// Restore overwrites the account's mutable state from s. The caller must
// hold a.Mu.
func (a *Account) Restore(s AccountSnapshot) {
	a.AccountID = s.AccountID
	a.Team = s.Team
	a.Cash = s.Cash
	a.ReservedCash = s.ReservedCash
	a.Holdings = make(map[string]*Holding, len(s.Holdings))
	for symbol, h := range s.Holdings {
		h := h
		a.Holdings[symbol] = &h
	}
	a.CreatedAt = s.CreatedAt
	a.UpdatedAt = s.UpdatedAt
}

// AccountFromSnapshot builds a new Account from s.
func AccountFromSnapshot(s AccountSnapshot) *Account {
	a := &Account{}
	a.Restore(s)
	return a
}
