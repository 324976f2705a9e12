package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JhonesBR/go-fxmatch/internal/domain"
	"github.com/JhonesBR/go-fxmatch/internal/ledger"
	"github.com/JhonesBR/go-fxmatch/internal/store"
)

// reservationAmount decides how much of which currency backs the order.
// Sells withhold the base quantity; buys withhold the quote cost plus the
// buyer fee on it. Market buys estimate the cost from the current asks.
func (e *Engine) reservationAmount(ctx context.Context, book *Book, o domain.Order) (string, decimal.Decimal, error) {
	currency := o.ReservationCurrency()

	if o.Type == domain.Market {
		filled, cost, best := book.estimate(o.Side, o.UserId, o.Quantity)
		if filled.IsZero() {
			return "", decimal.Zero, domain.ErrNoLiquidity
		}
		if err := e.checkSlippage(filled, cost, best); err != nil {
			return "", decimal.Zero, err
		}
		if o.Side == domain.Sell {
			return currency, o.Quantity, nil
		}
		cost = cost.Mul(decimal.NewFromInt(1).Add(e.reserveBuffer))
		return e.withBuyerFee(ctx, o, currency, cost)
	}

	if o.Side == domain.Sell {
		return currency, o.Quantity, nil
	}
	return e.withBuyerFee(ctx, o, currency, o.Quantity.Mul(*o.Price))
}

func (e *Engine) withBuyerFee(ctx context.Context, o domain.Order, currency string, cost decimal.Decimal) (string, decimal.Decimal, error) {
	f, err := e.fees.Fee(ctx, o.UserId, domain.Buy, cost, currency)
	if err != nil {
		return "", decimal.Zero, err
	}
	return currency, cost.Add(f), nil
}

// checkSlippage rejects a market order whose estimated average price is
// further from the best price than the configured fraction.
func (e *Engine) checkSlippage(filled, cost, best decimal.Decimal) error {
	if !e.maxSlippage.IsPositive() || !best.IsPositive() {
		return nil
	}
	avg := cost.Div(filled)
	deviation := avg.Sub(best).Abs().Div(best)
	if deviation.GreaterThan(e.maxSlippage) {
		return domain.ErrSlippageExceeded
	}
	return nil
}

// admit reserves the funds and records the order and its reservation as
// one unit. On InsufficientBalance nothing is written.
func (e *Engine) admit(ctx context.Context, o domain.Order, currency string, amount decimal.Decimal) error {
	return e.store.InTx(ctx, func(tx store.Tx) error {
		key := domain.WalletKey{UserId: o.UserId, Currency: currency}
		if err := ledger.Reserve(ctx, tx, key, amount); err != nil {
			return err
		}
		if err := tx.InsertOrder(ctx, o); err != nil {
			return err
		}
		return tx.InsertReservation(ctx, domain.FundReservation{
			Id:             uuid.New(),
			UserId:         o.UserId,
			OrderId:        o.Id,
			Currency:       currency,
			ReservedAmount: amount,
			ReleasedAmount: decimal.Zero,
			Status:         domain.ReservationActive,
			CreatedAt:      o.CreatedAt,
			UpdatedAt:      o.CreatedAt,
		})
	})
}

// releaseOutstanding returns whatever the reservation still withholds to
// the available balance. Used when the order turns terminal.
func releaseOutstanding(ctx context.Context, tx store.Tx, orderId uuid.UUID, at time.Time) (decimal.Decimal, error) {
	res, err := tx.Reservation(ctx, orderId)
	if err != nil {
		return decimal.Zero, err
	}
	amount := res.Outstanding()
	if err := releaseSurplus(ctx, tx, &res, at); err != nil {
		return decimal.Zero, err
	}
	if err := tx.UpdateReservation(ctx, res); err != nil {
		return decimal.Zero, err
	}
	return amount, nil
}

// terminate releases what the order still withholds and moves it to its
// terminal status. A market order that executed anything ends filled, every
// other order ends cancelled.
func terminate(ctx context.Context, tx store.Tx, orderId uuid.UUID, at time.Time) (domain.Order, decimal.Decimal, error) {
	cur, err := tx.Order(ctx, orderId)
	if err != nil {
		return domain.Order{}, decimal.Zero, err
	}
	switch cur.Status {
	case domain.Filled:
		return domain.Order{}, decimal.Zero, domain.ErrAlreadyFilled
	case domain.Cancelled:
		return domain.Order{}, decimal.Zero, domain.ErrAlreadyCancelled
	}

	released, err := releaseOutstanding(ctx, tx, cur.Id, at)
	if err != nil {
		return domain.Order{}, decimal.Zero, err
	}
	cur.UpdatedAt = at
	if cur.Type == domain.Market && cur.FilledQuantity.IsPositive() {
		cur.Status = domain.Filled
		cur.FilledAt = &at
	} else {
		cur.Status = domain.Cancelled
		cur.CancelledAt = &at
	}
	if err := tx.UpdateOrder(ctx, cur); err != nil {
		return domain.Order{}, decimal.Zero, err
	}
	return cur, released, nil
}
