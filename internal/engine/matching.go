package engine

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/JhonesBR/go-fxmatch/internal/domain"
	"github.com/JhonesBR/go-fxmatch/internal/events"
	"github.com/JhonesBR/go-fxmatch/internal/store"
)

// match runs the taker against the opposite side of its book by price-time
// priority. The caller holds the pair gate. taker is updated in place with
// the state committed by each fill. The returned events are in commit order
// and must be published once the gate is released.
func (e *Engine) match(ctx context.Context, pb *pairBook, taker *domain.Order) ([]domain.Trade, []events.Event, error) {
	trades := make([]domain.Trade, 0)
	var evs []events.Event

	for taker.RemainingQuantity.IsPositive() {
		maker := pb.book.nextMaker(*taker)
		if maker == nil {
			break
		}

		qty := decimal.Min(taker.RemainingQuantity, maker.remaining)
		price := maker.price

		f, err := e.settle(ctx, taker.Id, maker.orderId, qty, price)
		switch {
		case errors.Is(err, errMakerUnderfunded):
			evs = append(evs, e.dropMaker(ctx, pb, maker.orderId)...)
			continue
		case errors.Is(err, errReservationExhausted):
			e.logger.Info("reservation exhausted, stopping scan",
				zap.String("order_id", taker.Id.String()),
				zap.String("filled", taker.FilledQuantity.String()),
			)
			return trades, evs, nil
		case err != nil:
			return trades, evs, err
		}

		pb.book.Reduce(maker.orderId, qty)
		pb.lastPrice = &price
		*taker = f.taker
		trades = append(trades, f.trade)
		evs = append(evs, events.ForTrade(f.trade))
	}
	return trades, evs, nil
}

// dropMaker cancels a resting order that can no longer settle and takes it
// off the book. The entry leaves the book even when the cancel fails, so the
// scan always moves past it.
func (e *Engine) dropMaker(ctx context.Context, pb *pairBook, makerId uuid.UUID) []events.Event {
	defer pb.book.Remove(makerId)

	now := e.now()
	var cancelled domain.Order
	err := e.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		cancelled, _, err = terminate(ctx, tx, makerId, now)
		return err
	})
	if err != nil {
		e.logger.Error("failed to cancel underfunded maker", zap.String("order_id", makerId.String()), zap.Error(err))
		return nil
	}
	e.logger.Warn("underfunded maker cancelled", zap.String("order_id", makerId.String()))
	return []events.Event{events.ForOrder(events.OrderCancelled, cancelled, now)}
}
