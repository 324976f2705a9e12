package engine

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JhonesBR/go-fxmatch/internal/domain"
)

func restingOrder(user uuid.UUID, side domain.Side, qty, price string, seq uint64) domain.Order {
	return domain.Order{
		Id:                uuid.New(),
		UserId:            user,
		Type:              domain.Limit,
		Side:              side,
		BaseCurrency:      "USD",
		QuoteCurrency:     "NGN",
		Quantity:          d(qty),
		RemainingQuantity: d(qty),
		Price:             dp(price),
		Seq:               seq,
	}
}

func TestBookLevelsAreBestFirst(t *testing.T) {
	b := NewBook(domain.NewPair("USD", "NGN"))
	u := uuid.New()

	b.Add(restingOrder(u, domain.Buy, "1", "99", 1))
	b.Add(restingOrder(u, domain.Buy, "2", "101", 2))
	b.Add(restingOrder(u, domain.Buy, "3", "101", 3))
	b.Add(restingOrder(u, domain.Sell, "1", "110", 4))
	b.Add(restingOrder(u, domain.Sell, "1", "105", 5))

	snap := b.Snapshot(nil, time.Now())
	if len(snap.Bids) != 2 || !snap.Bids[0].Price.Equal(d("101")) || !snap.Bids[1].Price.Equal(d("99")) {
		t.Fatalf("expected bids 101 then 99, got %+v", snap.Bids)
	}
	if !snap.Bids[0].Quantity.Equal(d("5")) || snap.Bids[0].Orders != 2 {
		t.Errorf("expected 5 over 2 orders at 101, got %s over %d", snap.Bids[0].Quantity, snap.Bids[0].Orders)
	}
	if len(snap.Asks) != 2 || !snap.Asks[0].Price.Equal(d("105")) {
		t.Fatalf("expected asks starting at 105, got %+v", snap.Asks)
	}
}

func TestBookTimePriorityFollowsSeq(t *testing.T) {
	b := NewBook(domain.NewPair("USD", "NGN"))
	late := restingOrder(uuid.New(), domain.Sell, "1", "100", 9)
	early := restingOrder(uuid.New(), domain.Sell, "1", "100", 3)
	b.Add(late)
	b.Add(early)

	taker := domain.Order{UserId: uuid.New(), Type: domain.Market, Side: domain.Buy}
	if m := b.nextMaker(taker); m == nil || m.orderId != early.Id {
		t.Fatalf("expected the lower seq to match first")
	}
}

func TestBookNextMakerRespectsLimit(t *testing.T) {
	b := NewBook(domain.NewPair("USD", "NGN"))
	b.Add(restingOrder(uuid.New(), domain.Sell, "1", "105", 1))

	taker := domain.Order{UserId: uuid.New(), Type: domain.Limit, Side: domain.Buy, Price: dp("100")}
	if m := b.nextMaker(taker); m != nil {
		t.Fatalf("expected no match below the ask, got %s", m.price)
	}
	taker.Price = dp("105")
	if m := b.nextMaker(taker); m == nil {
		t.Fatalf("expected a match at the ask")
	}
}

func TestBookReduceAndRemove(t *testing.T) {
	b := NewBook(domain.NewPair("USD", "NGN"))
	o := restingOrder(uuid.New(), domain.Buy, "5", "100", 1)
	b.Add(o)

	b.Reduce(o.Id, d("2"))
	snap := b.Snapshot(nil, time.Now())
	if !snap.Bids[0].Quantity.Equal(d("3")) {
		t.Errorf("expected 3 left, got %s", snap.Bids[0].Quantity)
	}

	b.Reduce(o.Id, d("3"))
	if b.Contains(o.Id) || b.Len() != 0 {
		t.Errorf("expected fully reduced order to leave the book")
	}
	if len(b.Snapshot(nil, time.Now()).Bids) != 0 {
		t.Errorf("expected empty level to be dropped")
	}
	if b.Remove(o.Id) {
		t.Errorf("expected removing a missing order to report false")
	}
}

func TestBookEstimate(t *testing.T) {
	b := NewBook(domain.NewPair("USD", "NGN"))
	self := uuid.New()
	b.Add(restingOrder(self, domain.Sell, "10", "90", 1))
	b.Add(restingOrder(uuid.New(), domain.Sell, "2", "100", 2))
	b.Add(restingOrder(uuid.New(), domain.Sell, "5", "110", 3))

	tests := []struct {
		name   string
		qty    string
		filled string
		cost   string
		best   string
	}{
		{name: "within first level", qty: "1", filled: "1", cost: "100", best: "100"},
		{name: "across levels", qty: "4", filled: "4", cost: "420", best: "100"},
		{name: "beyond depth", qty: "20", filled: "7", cost: "750", best: "100"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filled, cost, best := b.estimate(domain.Buy, self, d(tt.qty))
			if !filled.Equal(d(tt.filled)) || !cost.Equal(d(tt.cost)) || !best.Equal(d(tt.best)) {
				t.Errorf("expected %s/%s/%s, got %s/%s/%s", tt.filled, tt.cost, tt.best, filled, cost, best)
			}
		})
	}

	filled, _, _ := b.estimate(domain.Sell, self, decimal.NewFromInt(1))
	if !filled.IsZero() {
		t.Errorf("expected no bids to sell into, got %s", filled)
	}
}
