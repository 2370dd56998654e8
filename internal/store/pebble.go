package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/efreitasn/cogexchange/internal/domain"
)

// keys: acc:<id>, ins:<symbol>, ord:<id>, alr:<id>, hist:<symbol>:<20-digit unix nanos>
const (
	prefixAccount    = "acc:"
	prefixInstrument = "ins:"
	prefixOrder      = "ord:"
	prefixAlert      = "alr:"
	prefixHistory    = "hist:"
)

func accountKey(id string) []byte        { return []byte(prefixAccount + id) }
func instrumentKey(symbol string) []byte { return []byte(prefixInstrument + symbol) }
func orderKey(id string) []byte          { return []byte(prefixOrder + id) }
func alertKey(id string) []byte          { return []byte(prefixAlert + id) }
func historyPrefix(symbol string) []byte { return []byte(prefixHistory + symbol + ":") }

func historyKey(symbol string, t time.Time) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d", prefixHistory, symbol, t.UnixNano()))
}

// keyUpperBound returns the smallest key greater than every key with the
// given prefix.
func keyUpperBound(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

// PebbleStore is the durable Persister. Records are JSON snapshots; every
// write is synced before it returns.
type PebbleStore struct {
	db *pebble.DB
}

// OpenPebble opens (or creates) a store in dir.
func OpenPebble(dir string) (*PebbleStore, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble at %s: %w", dir, err)
	}
	return &PebbleStore{db: db}, nil
}

// Close flushes and closes the database.
func (s *PebbleStore) Close() error { return s.db.Close() }

func (s *PebbleStore) put(key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	if err := s.db.Set(key, data, pebble.Sync); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// SaveAccount persists an account snapshot.
func (s *PebbleStore) SaveAccount(a domain.AccountSnapshot) error {
	return s.put(accountKey(a.AccountID), a)
}

// SaveInstrument persists an instrument's mutable state.
func (s *PebbleStore) SaveInstrument(symbol string, st domain.InstrumentState) error {
	return s.put(instrumentKey(symbol), st)
}

// SaveOrder persists a conditional order record.
func (s *PebbleStore) SaveOrder(o domain.ConditionalOrder) error {
	return s.put(orderKey(o.OrderID), o)
}

// SaveAlert persists a price alert record.
func (s *PebbleStore) SaveAlert(a domain.PriceAlert) error {
	return s.put(alertKey(a.AlertID), a)
}

// AppendHistory adds one point to a symbol's price history. History
// writes are not synced; losing the tail on a crash only shortens charts.
func (s *PebbleStore) AppendHistory(symbol string, p domain.PricePoint) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal history point: %w", err)
	}
	if err := s.db.Set(historyKey(symbol, p.Timestamp), data, pebble.NoSync); err != nil {
		return fmt.Errorf("write history point: %w", err)
	}
	return nil
}

// TrimHistory deletes every history point for symbol older than before.
func (s *PebbleStore) TrimHistory(symbol string, before time.Time) error {
	if err := s.db.DeleteRange(historyPrefix(symbol), historyKey(symbol, before), pebble.NoSync); err != nil {
		return fmt.Errorf("trim history for %s: %w", symbol, err)
	}
	return nil
}

// LoadInstrument returns the persisted state for symbol, if any.
func (s *PebbleStore) LoadInstrument(symbol string) (domain.InstrumentState, bool, error) {
	data, closer, err := s.db.Get(instrumentKey(symbol))
	if errors.Is(err, pebble.ErrNotFound) {
		return domain.InstrumentState{}, false, nil
	}
	if err != nil {
		return domain.InstrumentState{}, false, fmt.Errorf("read instrument %s: %w", symbol, err)
	}
	defer closer.Close()

	var st domain.InstrumentState
	if err := json.Unmarshal(data, &st); err != nil {
		return domain.InstrumentState{}, false, fmt.Errorf("decode instrument %s: %w", symbol, err)
	}
	return st, true, nil
}

// LoadAccounts returns every persisted account.
func (s *PebbleStore) LoadAccounts() ([]domain.AccountSnapshot, error) {
	return scan[domain.AccountSnapshot](s.db, []byte(prefixAccount))
}

// LoadOrders returns every persisted order record.
func (s *PebbleStore) LoadOrders() ([]domain.ConditionalOrder, error) {
	return scan[domain.ConditionalOrder](s.db, []byte(prefixOrder))
}

// LoadAlerts returns every persisted alert record.
func (s *PebbleStore) LoadAlerts() ([]domain.PriceAlert, error) {
	return scan[domain.PriceAlert](s.db, []byte(prefixAlert))
}

// LoadHistory returns a symbol's history in chronological order.
func (s *PebbleStore) LoadHistory(symbol string) ([]domain.PricePoint, error) {
	return scan[domain.PricePoint](s.db, historyPrefix(symbol))
}

func scan[T any](db *pebble.DB, prefix []byte) ([]T, error) {
	iter, err := db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("iterate %s: %w", prefix, err)
	}
	defer iter.Close()

	var out []T
	for iter.First(); iter.Valid(); iter.Next() {
		var v T
		if err := json.Unmarshal(iter.Value(), &v); err != nil {
			return nil, fmt.Errorf("decode %s: %w", iter.Key(), err)
		}
		out = append(out, v)
	}
	return out, nil
}

var _ Persister = (*PebbleStore)(nil)
