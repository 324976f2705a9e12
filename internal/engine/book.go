package engine

import (
	"sort"
	"time"

	"github.com/google/btree"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JhonesBR/go-fxmatch/internal/domain"
)

// entry is a resting order as the book sees it.
type entry struct {
	orderId   uuid.UUID
	userId    uuid.UUID
	side      domain.Side
	price     decimal.Decimal
	remaining decimal.Decimal
	seq       uint64
}

// level holds the resting orders at one price, oldest admission first.
type level struct {
	price   decimal.Decimal
	entries []*entry
}

func (l *level) quantity() decimal.Decimal {
	total := decimal.Zero
	for _, e := range l.entries {
		total = total.Add(e.remaining)
	}
	return total
}

type bookSide struct {
	levels *btree.BTreeG[*level]
}

// newBookSide orders levels best first: highest bid, lowest ask.
func newBookSide(side domain.Side) *bookSide {
	less := func(a, b *level) bool { return a.price.LessThan(b.price) }
	if side == domain.Buy {
		less = func(a, b *level) bool { return a.price.GreaterThan(b.price) }
	}
	return &bookSide{levels: btree.NewG[*level](16, less)}
}

// Book is the live order book of one currency pair. It is not safe for
// concurrent use; the engine serializes access per pair.
type Book struct {
	pair  domain.Pair
	bids  *bookSide
	asks  *bookSide
	index map[uuid.UUID]*entry
}

func NewBook(pair domain.Pair) *Book {
	return &Book{
		pair:  pair,
		bids:  newBookSide(domain.Buy),
		asks:  newBookSide(domain.Sell),
		index: make(map[uuid.UUID]*entry),
	}
}

func (b *Book) side(s domain.Side) *bookSide {
	if s == domain.Buy {
		return b.bids
	}
	return b.asks
}

func entryFromOrder(o domain.Order) *entry {
	return &entry{
		orderId:   o.Id,
		userId:    o.UserId,
		side:      o.Side,
		price:     *o.Price,
		remaining: o.RemainingQuantity,
		seq:       o.Seq,
	}
}

// Add rests a limit order. Within a level entries stay ordered by seq.
func (b *Book) Add(o domain.Order) {
	e := entryFromOrder(o)
	s := b.side(e.side)

	l, ok := s.levels.Get(&level{price: e.price})
	if !ok {
		l = &level{price: e.price}
		s.levels.ReplaceOrInsert(l)
	}

	i := sort.Search(len(l.entries), func(i int) bool { return l.entries[i].seq > e.seq })
	l.entries = append(l.entries, nil)
	copy(l.entries[i+1:], l.entries[i:])
	l.entries[i] = e

	b.index[e.orderId] = e
}

func (b *Book) Contains(id uuid.UUID) bool {
	_, ok := b.index[id]
	return ok
}

func (b *Book) Len() int { return len(b.index) }

// Remove takes an order off the book.
func (b *Book) Remove(id uuid.UUID) bool {
	e, ok := b.index[id]
	if !ok {
		return false
	}
	delete(b.index, id)

	s := b.side(e.side)
	l, ok := s.levels.Get(&level{price: e.price})
	if !ok {
		return true
	}
	for i, cur := range l.entries {
		if cur.orderId == id {
			l.entries = append(l.entries[:i], l.entries[i+1:]...)
			break
		}
	}
	if len(l.entries) == 0 {
		s.levels.Delete(l)
	}
	return true
}

// Reduce lowers the remaining quantity of a resting order after a fill and
// drops it once nothing is left.
func (b *Book) Reduce(id uuid.UUID, qty decimal.Decimal) {
	e, ok := b.index[id]
	if !ok {
		return
	}
	e.remaining = e.remaining.Sub(qty)
	if !e.remaining.IsPositive() {
		b.Remove(id)
	}
}

// walk visits the entries of one side by price-time priority until fn returns false.
func (b *Book) walk(s domain.Side, fn func(e *entry) bool) {
	b.side(s).levels.Ascend(func(l *level) bool {
		for _, e := range l.entries {
			if !fn(e) {
				return false
			}
		}
		return true
	})
}

func crosses(takerSide domain.Side, limit, makerPrice decimal.Decimal) bool {
	if takerSide == domain.Buy {
		return makerPrice.LessThanOrEqual(limit)
	}
	return makerPrice.GreaterThanOrEqual(limit)
}

// nextMaker returns the best counter-order for the taker, skipping the
// taker's own orders. Nil means nothing compatible is left.
func (b *Book) nextMaker(taker domain.Order) *entry {
	var found *entry
	b.walk(taker.Side.Opposite(), func(e *entry) bool {
		if taker.Type == domain.Limit && !crosses(taker.Side, *taker.Price, e.price) {
			return false
		}
		if e.userId == taker.UserId {
			return true
		}
		found = e
		return false
	})
	return found
}

// estimate walks the side a taker would consume and sums what qty would
// cost, ignoring the taker's own orders. filled is less than qty when the
// book cannot cover it; best is the first price reached.
func (b *Book) estimate(takerSide domain.Side, userId uuid.UUID, qty decimal.Decimal) (filled, cost, best decimal.Decimal) {
	filled, cost = decimal.Zero, decimal.Zero
	b.walk(takerSide.Opposite(), func(e *entry) bool {
		if e.userId == userId {
			return true
		}
		if filled.IsZero() {
			best = e.price
		}
		take := decimal.Min(e.remaining, qty.Sub(filled))
		filled = filled.Add(take)
		cost = cost.Add(take.Mul(e.price))
		return filled.LessThan(qty)
	})
	return filled, cost, best
}

// PriceLevel is one aggregated row of a depth view.
type PriceLevel struct {
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
	Orders   int             `json:"orders"`
}

// Snapshot is an immutable view of a book, published after every mutation
// so readers never take the pair lock.
type Snapshot struct {
	Pair      domain.Pair      `json:"pair"`
	Bids      []PriceLevel     `json:"bids"`
	Asks      []PriceLevel     `json:"asks"`
	LastPrice *decimal.Decimal `json:"last_price,omitempty"`
	UpdatedAt time.Time        `json:"updated_at"`
}

func (b *Book) levels(s domain.Side) []PriceLevel {
	out := make([]PriceLevel, 0, b.side(s).levels.Len())
	b.side(s).levels.Ascend(func(l *level) bool {
		out = append(out, PriceLevel{Price: l.price, Quantity: l.quantity(), Orders: len(l.entries)})
		return true
	})
	return out
}

func (b *Book) Snapshot(lastPrice *decimal.Decimal, at time.Time) *Snapshot {
	return &Snapshot{
		Pair:      b.pair,
		Bids:      b.levels(domain.Buy),
		Asks:      b.levels(domain.Sell),
		LastPrice: lastPrice,
		UpdatedAt: at,
	}
}
