package service

import (
	"crypto/subtle"
	"time"

	"go.uber.org/zap"

	"github.com/efreitasn/cogexchange/internal/domain"
	"github.com/efreitasn/cogexchange/internal/engine"
	"github.com/efreitasn/cogexchange/internal/market"
	"github.com/efreitasn/cogexchange/internal/scheduler"
)

// AdminService holds operator actions. Every price change it makes is
// evaluated against pending orders and alerts like a tick would be.
type AdminService struct {
	token     string
	registry  *market.Registry
	matcher   *engine.Matcher
	scheduler *scheduler.Scheduler
	logger    *zap.Logger
	now       func() time.Time
}

// NewAdminService creates an AdminService. An empty token disables every
// admin action.
func NewAdminService(token string, registry *market.Registry, matcher *engine.Matcher, sched *scheduler.Scheduler, logger *zap.Logger) *AdminService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminService{
		token:     token,
		registry:  registry,
		matcher:   matcher,
		scheduler: sched,
		logger:    logger.With(zap.String("component", "admin")),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Authorize checks a caller-supplied token.
func (s *AdminService) Authorize(token string) error {
	if s.token == "" || subtle.ConstantTimeCompare([]byte(s.token), []byte(token)) != 1 {
		return domain.ErrUnauthorized
	}
	return nil
}

// SetPrice overrides one instrument's price.
func (s *AdminService) SetPrice(symbol string, price int64) (domain.InstrumentState, error) {
	inst, err := s.registry.Get(symbol)
	if err != nil {
		return domain.InstrumentState{}, err
	}

	err = s.scheduler.Exclusive(func() error {
		prev := inst.Price()
		if err := s.registry.SetPrice(inst.Symbol, price, s.now()); err != nil {
			return err
		}
		_, err := s.matcher.Evaluate(inst.Symbol, prev, price)
		return err
	})
	if err != nil {
		return domain.InstrumentState{}, err
	}

	s.logger.Warn("price overridden", zap.String("symbol", inst.Symbol), zap.Int64("price", price))
	return inst.State(), nil
}

// ResetMarket returns every instrument to its baseline. Each instrument
// is evaluated right after its own reset commits, so a failure part way
// leaves the instruments already reset fully resolved.
func (s *AdminService) ResetMarket() error {
	err := s.scheduler.Exclusive(func() error {
		now := s.now()
		for _, inst := range s.registry.List() {
			prev := inst.Price()
			if err := s.registry.ResetInstrument(inst.Symbol, now); err != nil {
				return err
			}
			if _, err := s.matcher.Evaluate(inst.Symbol, prev, inst.Baseline); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Warn("market reset to baseline")
	return nil
}

// SetTickPeriod changes the scheduler period.
func (s *AdminService) SetTickPeriod(d time.Duration) error {
	if d < time.Second {
		return domain.Invalid("period must be at least 1s")
	}
	return s.scheduler.SetPeriod(d)
}

// TickPeriod returns the scheduler period.
func (s *AdminService) TickPeriod() time.Duration {
	return s.scheduler.Period()
}
