package domain

import (
	"sync"
	"testing"
)

func TestParseVolatility(t *testing.T) {
	for _, s := range []string{"low", "medium", "high"} {
		if _, err := ParseVolatility(s); err != nil {
			t.Errorf("ParseVolatility(%q) unexpected error: %v", s, err)
		}
	}
	if _, err := ParseVolatility("extreme"); err == nil {
		t.Error("ParseVolatility(extreme) expected error")
	}
}

func TestInstrument_StartsAtBaseline(t *testing.T) {
	i := NewInstrument("STMP", "Steamworks", VolatilityMedium, 2000)

	s := i.State()
	if s.Price != 2000 || s.Momentum != 0 {
		t.Errorf("initial state = %+v, want price 2000 and zero momentum", s)
	}
}

func TestInstrument_CommitIsAtomic(t *testing.T) {
	i := NewInstrument("STMP", "Steamworks", VolatilityMedium, 2000)

	var wg sync.WaitGroup
	for n := int64(1); n <= 100; n++ {
		wg.Add(2)
		go func(n int64) {
			defer wg.Done()
			// Price and Activity are always committed together.
			i.Commit(InstrumentState{Price: n, Activity: n})
		}(n)
		go func() {
			defer wg.Done()
			s := i.State()
			if s.Activity != 0 && s.Price != s.Activity {
				t.Errorf("observed torn state %+v", s)
			}
		}()
	}
	wg.Wait()
}
