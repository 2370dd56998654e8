// Package pricing implements the per-instrument stochastic price model.
//
// The model works on log-price. One tick's log-return is the sum of four
// terms, clamped to the class's maximum move:
//
//	drift     = MaxDrift × min(activity, ActivityCap) / ActivityCap
//	reversion = −Reversion × ln(price / baseline)
//	momentum  = MomentumCarry × momentum
//	noise     = Sigma × z,  z ~ N(0, 1)
//
// The new price is price × e^r rounded to a whole spur and clamped to
// [Floor, Ceiling]. Momentum is then blended with the realized log-return:
// momentum' = MomentumBlend × momentum + (1 − MomentumBlend) × ln(new/old).
package pricing

import (
	"fmt"
	"math"

	"github.com/efreitasn/cogexchange/internal/domain"
)

// ClassParams tunes the process for one volatility class.
type ClassParams struct {
	Sigma    float64 // per-tick noise standard deviation (log-return)
	MaxDrift float64 // drift at or above ActivityCap
	MaxMove  float64 // bound on |log-return| for a single tick
}

// Params configures a Process.
type Params struct {
	Classes       map[domain.Volatility]ClassParams
	ActivityCap   int64
	Reversion     float64
	MomentumCarry float64
	MomentumBlend float64
	Floor         int64
	Ceiling       int64
}

// DefaultParams returns the production tuning.
func DefaultParams() Params {
	return Params{
		Classes: map[domain.Volatility]ClassParams{
			domain.VolatilityLow:    {Sigma: 0.01, MaxDrift: 0.02, MaxMove: 0.06},
			domain.VolatilityMedium: {Sigma: 0.025, MaxDrift: 0.04, MaxMove: 0.12},
			domain.VolatilityHigh:   {Sigma: 0.05, MaxDrift: 0.06, MaxMove: 0.20},
		},
		ActivityCap:   100,
		Reversion:     0.05,
		MomentumCarry: 0.3,
		MomentumBlend: 0.5,
		Floor:         1,
		Ceiling:       6_400_000,
	}
}

// Validate checks that the parameters describe a bounded process.
func (p Params) Validate() error {
	if p.Floor < 1 {
		return fmt.Errorf("price floor must be >= 1, got %d", p.Floor)
	}
	if p.Ceiling <= p.Floor {
		return fmt.Errorf("price ceiling %d must be above floor %d", p.Ceiling, p.Floor)
	}
	if p.ActivityCap < 1 {
		return fmt.Errorf("activity cap must be >= 1, got %d", p.ActivityCap)
	}
	if p.MomentumBlend < 0 || p.MomentumBlend > 1 {
		return fmt.Errorf("momentum blend must be within [0, 1], got %v", p.MomentumBlend)
	}
	for _, v := range []domain.Volatility{domain.VolatilityLow, domain.VolatilityMedium, domain.VolatilityHigh} {
		cp, ok := p.Classes[v]
		if !ok {
			return fmt.Errorf("missing parameters for volatility class %s", v)
		}
		if cp.Sigma < 0 || cp.MaxDrift < 0 || cp.MaxMove <= 0 {
			return fmt.Errorf("invalid parameters for volatility class %s", v)
		}
	}
	return nil
}

// Input is the instrument state the process reads.
type Input struct {
	Price      int64
	Momentum   float64
	Baseline   int64
	Volatility domain.Volatility
}

// Terms breaks a tick's log-return into its components.
type Terms struct {
	Drift     float64
	Reversion float64
	Momentum  float64
	Noise     float64
}

// Sum returns the unclamped log-return.
func (t Terms) Sum() float64 {
	return t.Drift + t.Reversion + t.Momentum + t.Noise
}

// Output is the next instrument state.
type Output struct {
	Price     int64
	Momentum  float64
	LogReturn float64 // after the max-move clamp
	Terms     Terms
}

// Process advances instrument prices. It has no side effects beyond
// drawing from its noise source.
type Process struct {
	params Params
	noise  Noise
}

// NewProcess creates a Process. A nil noise source means ZeroNoise.
func NewProcess(params Params, noise Noise) *Process {
	if noise == nil {
		noise = ZeroNoise{}
	}
	return &Process{params: params, noise: noise}
}

// Params returns the process configuration.
func (p *Process) Params() Params {
	return p.params
}

// Advance computes the next price and momentum for one instrument.
func (p *Process) Advance(in Input, activity int64) (Output, error) {
	cp, ok := p.params.Classes[in.Volatility]
	if !ok {
		return Output{}, fmt.Errorf("no price parameters for volatility class %q", in.Volatility)
	}
	if in.Baseline <= 0 {
		return Output{}, fmt.Errorf("baseline must be > 0, got %d", in.Baseline)
	}

	price := p.clamp(in.Price)
	terms := p.terms(cp, price, in, activity)

	r := clampFloat(terms.Sum(), -cp.MaxMove, cp.MaxMove)
	next := p.clamp(roundPrice(float64(price) * math.Exp(r)))

	realized := math.Log(float64(next) / float64(price))
	momentum := p.params.MomentumBlend*in.Momentum + (1-p.params.MomentumBlend)*realized

	return Output{
		Price:     next,
		Momentum:  momentum,
		LogReturn: r,
		Terms:     terms,
	}, nil
}

func (p *Process) terms(cp ClassParams, price int64, in Input, activity int64) Terms {
	if activity < 0 {
		activity = 0
	}
	if activity > p.params.ActivityCap {
		activity = p.params.ActivityCap
	}

	return Terms{
		Drift:     cp.MaxDrift * float64(activity) / float64(p.params.ActivityCap),
		Reversion: -p.params.Reversion * math.Log(float64(price)/float64(in.Baseline)),
		Momentum:  p.params.MomentumCarry * in.Momentum,
		Noise:     cp.Sigma * p.noise.NormFloat64(),
	}
}

func (p *Process) clamp(price int64) int64 {
	if price < p.params.Floor {
		return p.params.Floor
	}
	if price > p.params.Ceiling {
		return p.params.Ceiling
	}
	return price
}

func roundPrice(f float64) int64 {
	if math.IsNaN(f) || f < 0 {
		return 0
	}
	if f >= math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(math.Round(f))
}

func clampFloat(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(lo, math.Min(hi, v))
}
