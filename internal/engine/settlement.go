package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/JhonesBR/go-fxmatch/internal/domain"
	"github.com/JhonesBR/go-fxmatch/internal/ledger"
	"github.com/JhonesBR/go-fxmatch/internal/store"
)

var (
	// errReservationExhausted means the taker's own buy reservation cannot
	// cover the next fill. It ends the scan instead of failing the order.
	errReservationExhausted = errors.New("reservation exhausted")
	// errMakerUnderfunded means a resting buy can no longer pay for a fill,
	// e.g. after the fee schedule changed. The maker is taken off the book.
	errMakerUnderfunded = errors.New("maker reservation exhausted")
)

type fill struct {
	trade domain.Trade
	taker domain.Order
	maker domain.Order
}

// settle applies one match as a single transaction: both ledgers, fee
// accrual, both orders, both reservations and the trade record.
func (e *Engine) settle(ctx context.Context, takerId, makerId uuid.UUID, qty, price decimal.Decimal) (fill, error) {
	var out fill
	now := e.now()

	err := e.store.InTx(ctx, func(tx store.Tx) error {
		taker, err := tx.Order(ctx, takerId)
		if err != nil {
			return errors.Wrap(err, "load taker")
		}
		maker, err := tx.Order(ctx, makerId)
		if err != nil {
			return errors.Wrap(err, "load maker")
		}
		if taker.Status.Terminal() || maker.Status.Terminal() {
			return errors.Errorf("order %s or %s is no longer active", taker.Id, maker.Id)
		}

		buy, sell := &taker, &maker
		if taker.Side == domain.Sell {
			buy, sell = &maker, &taker
		}
		if buy.UserId == sell.UserId {
			return errors.New("self trade")
		}

		quoteAmount := qty.Mul(price)
		buyerFee, err := e.fees.Fee(ctx, buy.UserId, domain.Buy, quoteAmount, buy.QuoteCurrency)
		if err != nil {
			return errors.Wrap(err, "buyer fee")
		}
		sellerFee, err := e.fees.Fee(ctx, sell.UserId, domain.Sell, quoteAmount, sell.QuoteCurrency)
		if err != nil {
			return errors.Wrap(err, "seller fee")
		}
		if sellerFee.GreaterThan(quoteAmount) {
			return errors.Errorf("seller fee %s exceeds proceeds %s", sellerFee, quoteAmount)
		}

		buyRes, err := tx.Reservation(ctx, buy.Id)
		if err != nil {
			return errors.Wrap(err, "load buyer reservation")
		}
		sellRes, err := tx.Reservation(ctx, sell.Id)
		if err != nil {
			return errors.Wrap(err, "load seller reservation")
		}
		buyerDebit := quoteAmount.Add(buyerFee)
		if buyRes.Outstanding().LessThan(buyerDebit) {
			if buy.Id == takerId {
				return errReservationExhausted
			}
			return errMakerUnderfunded
		}
		if sellRes.Outstanding().LessThan(qty) {
			return errors.Errorf("seller reservation %s below %s", sellRes.Outstanding(), qty)
		}

		buyerQuote := domain.WalletKey{UserId: buy.UserId, Currency: buy.QuoteCurrency}
		buyerBase := domain.WalletKey{UserId: buy.UserId, Currency: buy.BaseCurrency}
		sellerBase := domain.WalletKey{UserId: sell.UserId, Currency: sell.BaseCurrency}
		sellerQuote := domain.WalletKey{UserId: sell.UserId, Currency: sell.QuoteCurrency}
		feeKey := domain.WalletKey{UserId: e.feeAccount, Currency: buy.QuoteCurrency}
		if err := ledger.Lock(ctx, tx, buyerQuote, buyerBase, sellerBase, sellerQuote, feeKey); err != nil {
			return err
		}

		if err := ledger.ConsumeReserved(ctx, tx, buyerQuote, buyerDebit); err != nil {
			return err
		}
		if err := ledger.CreditAvailable(ctx, tx, buyerBase, qty); err != nil {
			return err
		}
		if err := ledger.ConsumeReserved(ctx, tx, sellerBase, qty); err != nil {
			return err
		}
		if err := ledger.CreditAvailable(ctx, tx, sellerQuote, quoteAmount.Sub(sellerFee)); err != nil {
			return err
		}
		if err := ledger.CreditAvailable(ctx, tx, feeKey, buyerFee.Add(sellerFee)); err != nil {
			return err
		}

		buy.ApplyFill(qty, price, now)
		sell.ApplyFill(qty, price, now)
		buyRes.MarkReleased(buyerDebit, now)
		sellRes.MarkReleased(qty, now)

		for _, pair := range []struct {
			o   *domain.Order
			res *domain.FundReservation
		}{{buy, &buyRes}, {sell, &sellRes}} {
			if pair.o.Status == domain.Filled {
				if err := releaseSurplus(ctx, tx, pair.res, now); err != nil {
					return err
				}
			}
			if err := tx.UpdateReservation(ctx, *pair.res); err != nil {
				return err
			}
			if err := tx.UpdateOrder(ctx, *pair.o); err != nil {
				return err
			}
		}

		out.trade = domain.Trade{
			Id:            uuid.New(),
			BuyOrderId:    buy.Id,
			SellOrderId:   sell.Id,
			BuyerId:       buy.UserId,
			SellerId:      sell.UserId,
			BaseCurrency:  buy.BaseCurrency,
			QuoteCurrency: buy.QuoteCurrency,
			Quantity:      qty,
			Price:         price,
			BuyerFee:      buyerFee,
			SellerFee:     sellerFee,
			BaseAmount:    qty,
			QuoteAmount:   quoteAmount,
			ExecutedAt:    now,
		}
		if err := tx.InsertTrade(ctx, out.trade); err != nil {
			return err
		}
		out.taker, out.maker = taker, maker
		return nil
	})
	if err != nil {
		if errors.Is(err, errReservationExhausted) || errors.Is(err, errMakerUnderfunded) {
			return fill{}, err
		}
		return fill{}, &domain.ExecutionError{Op: "settle", Err: err}
	}
	return out, nil
}

// releaseSurplus hands back what a filled order no longer needs.
func releaseSurplus(ctx context.Context, tx store.Tx, res *domain.FundReservation, at time.Time) error {
	surplus := res.Outstanding()
	if !surplus.IsPositive() {
		return nil
	}
	key := domain.WalletKey{UserId: res.UserId, Currency: res.Currency}
	if err := ledger.Release(ctx, tx, key, surplus); err != nil {
		return err
	}
	res.MarkReleased(surplus, at)
	return nil
}
