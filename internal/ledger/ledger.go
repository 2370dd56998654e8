// Package ledger is the single owner of account balances and holdings.
//
// Every mutation runs under the account's Mu, is validated before it is
// applied, and is written to the Persister before the lock is released.
// A failed write restores the previous in-memory state, so a caller
// either observes the whole effect or none of it.
package ledger

import (
	"fmt"
	"time"

	"github.com/efreitasn/cogexchange/internal/domain"
	"github.com/efreitasn/cogexchange/internal/store"
)

// Ledger mutates accounts held in an AccountStore.
type Ledger struct {
	accounts *store.AccountStore
	persist  store.Persister
	now      func() time.Time
}

// New creates a Ledger. A nil Persister keeps state in memory only.
func New(accounts *store.AccountStore, p store.Persister) *Ledger {
	if p == nil {
		p = store.Nop{}
	}
	return &Ledger{
		accounts: accounts,
		persist:  p,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Open registers a new account with an initial cash grant. The grant is
// the only way cash enters the system.
func (l *Ledger) Open(accountID, team string, grant int64) (domain.AccountSnapshot, error) {
	if grant < 0 {
		return domain.AccountSnapshot{}, domain.Invalid("starting balance must be >= 0")
	}
	now := l.now()
	a := &domain.Account{
		AccountID: accountID,
		Team:      team,
		Cash:      grant,
		Holdings:  make(map[string]*domain.Holding),
		CreatedAt: now,
		UpdatedAt: now,
	}

	a.Mu.Lock()
	defer a.Mu.Unlock()

	if err := l.accounts.Create(a); err != nil {
		return domain.AccountSnapshot{}, err
	}
	snap := a.Snapshot()
	if err := l.persist.SaveAccount(snap); err != nil {
		l.accounts.Remove(accountID)
		return domain.AccountSnapshot{}, fmt.Errorf("save account %s: %v: %w", accountID, err, domain.ErrSystemicFailure)
	}
	return snap, nil
}

// Restore loads an account read back from durable storage.
func (l *Ledger) Restore(s domain.AccountSnapshot) error {
	return l.accounts.Create(domain.AccountFromSnapshot(s))
}

// Snapshot returns a consistent copy of one account.
func (l *Ledger) Snapshot(accountID string) (domain.AccountSnapshot, error) {
	a, err := l.accounts.Get(accountID)
	if err != nil {
		return domain.AccountSnapshot{}, err
	}
	a.Mu.Lock()
	defer a.Mu.Unlock()
	return a.Snapshot(), nil
}

// Snapshots returns a copy of every account, ordered by ID. Each account
// is individually consistent.
func (l *Ledger) Snapshots() []domain.AccountSnapshot {
	accounts := l.accounts.List()
	out := make([]domain.AccountSnapshot, 0, len(accounts))
	for _, a := range accounts {
		a.Mu.Lock()
		out = append(out, a.Snapshot())
		a.Mu.Unlock()
	}
	return out
}

// TotalCash sums cash across every account.
func (l *Ledger) TotalCash() int64 {
	var total int64
	for _, s := range l.Snapshots() {
		total += s.Cash
	}
	return total
}

// DebitCash removes amount from the account's available cash.
func (l *Ledger) DebitCash(accountID string, amount int64) error {
	if amount < 0 {
		return domain.Invalid("amount must be >= 0")
	}
	return l.mutate(accountID, func(a *domain.Account) error {
		if a.AvailableCash() < amount {
			return domain.ErrInsufficientFunds
		}
		a.Cash -= amount
		return nil
	})
}

// CreditCash adds amount to the account's cash.
func (l *Ledger) CreditCash(accountID string, amount int64) error {
	if amount < 0 {
		return domain.Invalid("amount must be >= 0")
	}
	return l.mutate(accountID, func(a *domain.Account) error {
		return addCash(a, amount)
	})
}

// TransferHolding applies delta units of symbol to the account. A
// negative delta may only consume unreserved quantity.
func (l *Ledger) TransferHolding(accountID, symbol string, delta int64) error {
	return l.mutate(accountID, func(a *domain.Account) error {
		if delta < 0 && a.AvailableQuantity(symbol) < -delta {
			return domain.ErrInsufficientHoldings
		}
		h := a.Holding(symbol)
		if delta > 0 && h.Quantity > maxInt64-delta {
			return domain.Invalid("holding quantity overflows")
		}
		h.Quantity += delta
		return nil
	})
}

// ExecuteTrade swaps cash for holdings at unitPrice, or holdings for
// cash, against unreserved balances only. Either both legs apply or
// neither does.
func (l *Ledger) ExecuteTrade(accountID, symbol string, side domain.Side, quantity, unitPrice int64) error {
	if err := validateTrade(side, quantity, unitPrice); err != nil {
		return err
	}
	value, ok := domain.Notional(quantity, unitPrice)
	if !ok {
		return domain.Invalid("trade value overflows")
	}

	return l.mutate(accountID, func(a *domain.Account) error {
		if side == domain.SideBuy {
			if a.AvailableCash() < value {
				return domain.ErrInsufficientFunds
			}
			h := a.Holding(symbol)
			if h.Quantity > maxInt64-quantity {
				return domain.Invalid("holding quantity overflows")
			}
			a.Cash -= value
			h.Quantity += quantity
			return nil
		}

		if a.AvailableQuantity(symbol) < quantity {
			return domain.ErrInsufficientHoldings
		}
		if err := addCash(a, value); err != nil {
			return err
		}
		a.Holding(symbol).Quantity -= quantity
		return nil
	})
}

// Reserve sets aside what a pending limit order needs: quantity ×
// limitPrice of cash for a buy, quantity units for a sell. Reserved
// amounts are excluded from every other debit.
func (l *Ledger) Reserve(accountID, symbol string, side domain.Side, quantity, limitPrice int64) error {
	if err := validateTrade(side, quantity, limitPrice); err != nil {
		return err
	}
	hold, ok := domain.Notional(quantity, limitPrice)
	if !ok {
		return domain.Invalid("order value overflows")
	}

	return l.mutate(accountID, func(a *domain.Account) error {
		if side == domain.SideBuy {
			if a.AvailableCash() < hold {
				return domain.ErrInsufficientFunds
			}
			a.ReservedCash += hold
			return nil
		}
		if a.AvailableQuantity(symbol) < quantity {
			return domain.ErrInsufficientHoldings
		}
		a.Holding(symbol).ReservedQuantity += quantity
		return nil
	})
}

// Release returns a reservation made by Reserve with the same arguments.
func (l *Ledger) Release(accountID, symbol string, side domain.Side, quantity, limitPrice int64) error {
	if err := validateTrade(side, quantity, limitPrice); err != nil {
		return err
	}
	hold, ok := domain.Notional(quantity, limitPrice)
	if !ok {
		return domain.Invalid("order value overflows")
	}

	return l.mutate(accountID, func(a *domain.Account) error {
		if side == domain.SideBuy {
			if a.ReservedCash < hold {
				return fmt.Errorf("release %d exceeds reserved cash %d: %w", hold, a.ReservedCash, domain.ErrInsufficientFunds)
			}
			a.ReservedCash -= hold
			return nil
		}
		h := a.Holding(symbol)
		if h.ReservedQuantity < quantity {
			return fmt.Errorf("release %d exceeds reserved %s %d: %w", quantity, symbol, h.ReservedQuantity, domain.ErrInsufficientHoldings)
		}
		h.ReservedQuantity -= quantity
		return nil
	})
}

// SettleReserved executes a reserved limit order at execPrice. The
// reservation is consumed and the trade applied in one step. For a buy
// the difference between the limit and execPrice stays with the account.
func (l *Ledger) SettleReserved(accountID, symbol string, side domain.Side, quantity, limitPrice, execPrice int64) error {
	if err := validateTrade(side, quantity, limitPrice); err != nil {
		return err
	}
	if execPrice <= 0 {
		return domain.Invalid("execution price must be greater than 0")
	}
	hold, ok := domain.Notional(quantity, limitPrice)
	if !ok {
		return domain.Invalid("order value overflows")
	}
	value, ok := domain.Notional(quantity, execPrice)
	if !ok {
		return domain.Invalid("trade value overflows")
	}

	return l.mutate(accountID, func(a *domain.Account) error {
		if side == domain.SideBuy {
			if a.ReservedCash < hold {
				return fmt.Errorf("settle %d exceeds reserved cash %d: %w", hold, a.ReservedCash, domain.ErrInsufficientFunds)
			}
			a.ReservedCash -= hold
			if a.AvailableCash() < value {
				return fmt.Errorf("settle cost %d exceeds available cash %d: %w", value, a.AvailableCash(), domain.ErrInsufficientFunds)
			}
			h := a.Holding(symbol)
			if h.Quantity > maxInt64-quantity {
				return domain.Invalid("holding quantity overflows")
			}
			a.Cash -= value
			h.Quantity += quantity
			return nil
		}

		h := a.Holding(symbol)
		if h.ReservedQuantity < quantity || h.Quantity < quantity {
			return fmt.Errorf("settle %d exceeds reserved %s %d: %w", quantity, symbol, h.ReservedQuantity, domain.ErrInsufficientHoldings)
		}
		if err := addCash(a, value); err != nil {
			return err
		}
		h.ReservedQuantity -= quantity
		h.Quantity -= quantity
		return nil
	})
}

const maxInt64 = int64(^uint64(0) >> 1)

func addCash(a *domain.Account, amount int64) error {
	if a.Cash > maxInt64-amount {
		return domain.Invalid("cash balance overflows")
	}
	a.Cash += amount
	return nil
}

func validateTrade(side domain.Side, quantity, price int64) error {
	if !side.Valid() {
		return domain.Invalid("side must be 'buy' or 'sell'")
	}
	if quantity <= 0 {
		return domain.Invalid("quantity must be a positive integer")
	}
	if price <= 0 {
		return domain.Invalid("price must be greater than 0")
	}
	return nil
}

// mutate applies fn to the account under its lock. If fn fails, or the
// resulting snapshot cannot be persisted, the account is restored to its
// state before fn ran.
func (l *Ledger) mutate(accountID string, fn func(a *domain.Account) error) error {
	a, err := l.accounts.Get(accountID)
	if err != nil {
		return err
	}

	a.Mu.Lock()
	defer a.Mu.Unlock()

	before := a.Snapshot()
	if err := fn(a); err != nil {
		a.Restore(before)
		return err
	}
	a.UpdatedAt = l.now()

	if err := l.persist.SaveAccount(a.Snapshot()); err != nil {
		a.Restore(before)
		return fmt.Errorf("save account %s: %v: %w", accountID, err, domain.ErrSystemicFailure)
	}
	return nil
}
