package fee

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JhonesBR/go-fxmatch/internal/domain"
)

// Schedule answers how much a user pays on amount of currency for a trade side.
type Schedule interface {
	Fee(ctx context.Context, userId uuid.UUID, side domain.Side, amount decimal.Decimal, currency string) (decimal.Decimal, error)
}

// RateSchedule charges a fraction of the traded amount, optionally with a
// per-user rate override.
type RateSchedule struct {
	BuyRate   decimal.Decimal
	SellRate  decimal.Decimal
	Overrides map[uuid.UUID]decimal.Decimal
}

func NewRateSchedule(buyRate, sellRate decimal.Decimal) *RateSchedule {
	return &RateSchedule{BuyRate: buyRate, SellRate: sellRate, Overrides: map[uuid.UUID]decimal.Decimal{}}
}

func (s *RateSchedule) Fee(_ context.Context, userId uuid.UUID, side domain.Side, amount decimal.Decimal, _ string) (decimal.Decimal, error) {
	rate := s.SellRate
	if side == domain.Buy {
		rate = s.BuyRate
	}
	if r, ok := s.Overrides[userId]; ok {
		rate = r
	}
	if rate.IsZero() || !amount.IsPositive() {
		return decimal.Zero, nil
	}
	return amount.Mul(rate), nil
}

// Free charges nothing.
type Free struct{}

func (Free) Fee(context.Context, uuid.UUID, domain.Side, decimal.Decimal, string) (decimal.Decimal, error) {
	return decimal.Zero, nil
}
