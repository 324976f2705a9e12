package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestApplyFill(t *testing.T) {
	now := time.Now()
	o := Order{
		Quantity:          decimal.NewFromInt(10),
		RemainingQuantity: decimal.NewFromInt(10),
		FilledQuantity:    decimal.Zero,
		AverageFillPrice:  decimal.Zero,
		Status:            Pending,
	}

	o.ApplyFill(decimal.NewFromInt(4), decimal.NewFromInt(100), now)
	if o.Status != PartiallyFilled || !o.RemainingQuantity.Equal(decimal.NewFromInt(6)) {
		t.Fatalf("expected partially filled with 6 left, got %s %s", o.Status, o.RemainingQuantity)
	}

	o.ApplyFill(decimal.NewFromInt(6), decimal.NewFromInt(110), now)
	if o.Status != Filled || o.FilledAt == nil {
		t.Fatalf("expected filled with timestamp, got %s", o.Status)
	}
	if !o.AverageFillPrice.Equal(decimal.NewFromInt(106)) {
		t.Errorf("expected average 106, got %s", o.AverageFillPrice)
	}
	if !o.FilledQuantity.Add(o.RemainingQuantity).Equal(o.Quantity) {
		t.Errorf("filled + remaining != quantity")
	}
}

func TestApplyFillAverageDoesNotDrift(t *testing.T) {
	now := time.Now()
	o := Order{Quantity: decimal.NewFromInt(3000), RemainingQuantity: decimal.NewFromInt(3000), Status: Pending}
	prices := []decimal.Decimal{decimal.NewFromInt(1), decimal.NewFromInt(1), decimal.NewFromInt(2)}

	value := decimal.Zero
	for i := 0; i < 3000; i++ {
		p := prices[i%len(prices)]
		o.ApplyFill(decimal.NewFromInt(1), p, now)
		value = value.Add(p)
	}

	if !o.FilledValue.Equal(value) {
		t.Fatalf("expected filled value %s, got %s", value, o.FilledValue)
	}
	if want := value.Div(o.FilledQuantity); !o.AverageFillPrice.Equal(want) {
		t.Errorf("expected average %s, got %s", want, o.AverageFillPrice)
	}
}

func TestMarkReleased(t *testing.T) {
	r := FundReservation{ReservedAmount: decimal.NewFromInt(100), ReleasedAmount: decimal.Zero, Status: ReservationActive}

	r.MarkReleased(decimal.NewFromInt(40), time.Now())
	if r.Status != ReservationPartiallyReleased || !r.Outstanding().Equal(decimal.NewFromInt(60)) {
		t.Errorf("expected partially released with 60 outstanding, got %s %s", r.Status, r.Outstanding())
	}

	r.MarkReleased(decimal.NewFromInt(60), time.Now())
	if r.Status != ReservationFullyReleased || !r.Outstanding().IsZero() {
		t.Errorf("expected fully released, got %s %s", r.Status, r.Outstanding())
	}
}

func TestPairAndKeys(t *testing.T) {
	p := NewPair(" usd", "ngn ")
	if p.String() != "USD/NGN" {
		t.Errorf("expected USD/NGN, got %s", p)
	}
	if Buy.Opposite() != Sell || Sell.Opposite() != Buy {
		t.Errorf("unexpected opposite sides")
	}
	if !Filled.Terminal() || !Cancelled.Terminal() || PartiallyFilled.Terminal() {
		t.Errorf("unexpected terminal states")
	}
	o := Order{Side: Buy, BaseCurrency: "USD", QuoteCurrency: "NGN"}
	if o.ReservationCurrency() != "NGN" {
		t.Errorf("buy orders reserve the quote currency")
	}
}
