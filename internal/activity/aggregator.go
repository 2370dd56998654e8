// Package activity turns chat messages into per-instrument activity
// scores for the price process.
package activity

import (
	"context"
	"math"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/efreitasn/cogexchange/internal/domain"
)

var tagPattern = regexp.MustCompile(`\[([^\]]+)\]`)

// Tags returns the [TAG] markers in a message, upper-cased, in order of
// appearance. Doubled brackets such as [[L]] yield "L".
func Tags(content string) []string {
	var out []string
	for _, m := range tagPattern.FindAllStringSubmatch(content, -1) {
		tag := strings.ToUpper(strings.TrimSpace(m[1]))
		tag = strings.TrimPrefix(tag, "[")
		if tag != "" {
			out = append(out, tag)
		}
	}
	return out
}

type user struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Aggregator counts one point per accepted message. Each user may move a
// score at most once per cooldown. Reading a score for a tick decays it,
// so a burst of activity fades over the following ticks.
type Aggregator struct {
	mu       sync.Mutex
	scores   map[string]float64
	users    map[string]*user
	cooldown time.Duration
	decay    float64
	now      func() time.Time
}

// New creates an Aggregator for the given symbols. decay is the fraction
// of a score kept after each read and must be within [0, 1].
func New(symbols []string, cooldown time.Duration, decay float64) *Aggregator {
	scores := make(map[string]float64, len(symbols))
	for _, s := range symbols {
		scores[s] = 0
	}
	return &Aggregator{
		scores:   scores,
		users:    make(map[string]*user),
		cooldown: cooldown,
		decay:    math.Max(0, math.Min(1, decay)),
		now:      time.Now,
	}
}

// Record credits one message from userID to symbol. It returns false when
// the user is still inside their cooldown.
func (a *Aggregator) Record(userID, symbol string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.scores[symbol]; !ok {
		return false, domain.ErrInstrumentNotFound
	}

	now := a.now()
	u, ok := a.users[userID]
	if !ok {
		limit := rate.Inf
		if a.cooldown > 0 {
			limit = rate.Every(a.cooldown)
		}
		u = &user{limiter: rate.NewLimiter(limit, 1)}
		a.users[userID] = u
	}
	u.lastSeen = now
	if !u.limiter.AllowN(now, 1) {
		return false, nil
	}

	a.scores[symbol]++
	return true, nil
}

// Score returns symbol's integer score for the elapsed window and then
// decays the stored value. It never blocks; ctx is honoured so callers
// can treat every source uniformly.
func (a *Aggregator) Score(ctx context.Context, symbol string, _ time.Duration) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	v, ok := a.scores[symbol]
	if !ok {
		return 0, domain.ErrInstrumentNotFound
	}
	a.scores[symbol] = v * a.decay
	a.pruneLocked()
	return int64(math.Floor(v)), nil
}

// pruneLocked forgets users whose cooldown has fully elapsed; a fresh
// limiter would treat them the same way.
func (a *Aggregator) pruneLocked() {
	cutoff := a.now().Add(-a.cooldown)
	for id, u := range a.users {
		if u.lastSeen.Before(cutoff) {
			delete(a.users, id)
		}
	}
}

// Scores returns the current integer scores without decaying them.
func (a *Aggregator) Scores() map[string]int64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make(map[string]int64, len(a.scores))
	for s, v := range a.scores {
		out[s] = int64(math.Floor(v))
	}
	return out
}

// Reset zeroes every score.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	for s := range a.scores {
		a.scores[s] = 0
	}
}
