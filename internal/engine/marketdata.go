package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JhonesBR/go-fxmatch/internal/domain"
)

// Market data reads published snapshots and the trade log. None of it takes
// a pair gate, except AvailableLiquidity which needs owner-aware depth.

func (e *Engine) snapshot(pair domain.Pair) *Snapshot {
	e.mu.RLock()
	pb, ok := e.books[pair]
	e.mu.RUnlock()
	if !ok {
		return &Snapshot{Pair: pair, Bids: []PriceLevel{}, Asks: []PriceLevel{}}
	}
	return pb.snapshot.Load()
}

func (e *Engine) checkPair(pair domain.Pair) error {
	if !e.validator.Supported(pair.Base) {
		return &domain.ValidationError{Field: "base_currency", Reason: "unsupported currency"}
	}
	if !e.validator.Supported(pair.Quote) {
		return &domain.ValidationError{Field: "quote_currency", Reason: "unsupported currency"}
	}
	if pair.Base == pair.Quote {
		return &domain.ValidationError{Field: "quote_currency", Reason: "must differ from base currency"}
	}
	return nil
}

type Depth struct {
	Pair      domain.Pair  `json:"pair"`
	Bids      []PriceLevel `json:"bids"`
	Asks      []PriceLevel `json:"asks"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Depth aggregates the book by price level, best first, up to limit levels
// per side. A limit of zero or less returns every level.
func (e *Engine) Depth(pair domain.Pair, limit int) (*Depth, error) {
	if err := e.checkPair(pair); err != nil {
		return nil, err
	}
	s := e.snapshot(pair)
	return &Depth{
		Pair:      pair,
		Bids:      truncate(s.Bids, limit),
		Asks:      truncate(s.Asks, limit),
		UpdatedAt: s.UpdatedAt,
	}, nil
}

func truncate(levels []PriceLevel, limit int) []PriceLevel {
	if limit <= 0 || len(levels) <= limit {
		return levels
	}
	return levels[:limit]
}

type BestPrices struct {
	Pair    domain.Pair      `json:"pair"`
	BestBid *decimal.Decimal `json:"best_bid"`
	BestAsk *decimal.Decimal `json:"best_ask"`
	Spread  *decimal.Decimal `json:"spread"`
}

func (e *Engine) BestPrices(pair domain.Pair) (*BestPrices, error) {
	if err := e.checkPair(pair); err != nil {
		return nil, err
	}
	s := e.snapshot(pair)
	out := &BestPrices{Pair: pair}
	if len(s.Bids) > 0 {
		bid := s.Bids[0].Price
		out.BestBid = &bid
	}
	if len(s.Asks) > 0 {
		ask := s.Asks[0].Price
		out.BestAsk = &ask
	}
	if out.BestBid != nil && out.BestAsk != nil {
		spread := out.BestAsk.Sub(*out.BestBid)
		out.Spread = &spread
	}
	return out, nil
}

func (e *Engine) LastPrice(pair domain.Pair) *decimal.Decimal {
	return e.snapshot(pair).LastPrice
}

// RecentTrades returns the newest trades of the pair first.
func (e *Engine) RecentTrades(ctx context.Context, pair domain.Pair, limit int) ([]domain.Trade, error) {
	if err := e.checkPair(pair); err != nil {
		return nil, err
	}
	return e.store.RecentTrades(ctx, pair, limit)
}

type Stats struct {
	Pair        domain.Pair      `json:"pair"`
	From        time.Time        `json:"from"`
	To          time.Time        `json:"to"`
	Trades      int              `json:"trades"`
	BaseVolume  decimal.Decimal  `json:"base_volume"`
	QuoteVolume decimal.Decimal  `json:"quote_volume"`
	Open        *decimal.Decimal `json:"open"`
	High        *decimal.Decimal `json:"high"`
	Low         *decimal.Decimal `json:"low"`
	Last        *decimal.Decimal `json:"last"`
	VWAP        *decimal.Decimal `json:"vwap"`
}

// Stats summarizes the trades executed within window before now.
func (e *Engine) Stats(ctx context.Context, pair domain.Pair, window time.Duration) (*Stats, error) {
	if err := e.checkPair(pair); err != nil {
		return nil, err
	}
	if window <= 0 {
		return nil, &domain.ValidationError{Field: "window", Reason: "must be positive"}
	}

	to := e.now()
	from := to.Add(-window)
	trades, err := e.store.TradesSince(ctx, pair, from)
	if err != nil {
		return nil, err
	}

	st := &Stats{Pair: pair, From: from, To: to, BaseVolume: decimal.Zero, QuoteVolume: decimal.Zero}
	for _, t := range trades {
		price := t.Price
		if st.Open == nil {
			st.Open, st.High, st.Low = &price, &price, &price
		}
		if price.GreaterThan(*st.High) {
			st.High = &price
		}
		if price.LessThan(*st.Low) {
			st.Low = &price
		}
		st.Last = &price
		st.Trades++
		st.BaseVolume = st.BaseVolume.Add(t.Quantity)
		st.QuoteVolume = st.QuoteVolume.Add(t.QuoteAmount)
	}
	if st.BaseVolume.IsPositive() {
		vwap := st.QuoteVolume.Div(st.BaseVolume)
		st.VWAP = &vwap
	}
	return st, nil
}

type Liquidity struct {
	Requested     decimal.Decimal `json:"requested"`
	Available     decimal.Decimal `json:"available"`
	EstimatedCost decimal.Decimal `json:"estimated_cost"`
	Sufficient    bool            `json:"sufficient"`
}

// AvailableLiquidity reports how much of qty a market order on side would
// find right now, ignoring the user's own resting orders.
func (e *Engine) AvailableLiquidity(pair domain.Pair, side domain.Side, qty decimal.Decimal, userId uuid.UUID) (*Liquidity, error) {
	if err := e.checkPair(pair); err != nil {
		return nil, err
	}
	if side != domain.Buy && side != domain.Sell {
		return nil, &domain.ValidationError{Field: "side", Reason: "must be buy or sell"}
	}
	if !qty.IsPositive() {
		return nil, &domain.ValidationError{Field: "quantity", Reason: "must be a positive number"}
	}

	pb := e.pairBook(pair)
	pb.mu.Lock()
	filled, cost, _ := pb.book.estimate(side, userId, qty)
	pb.mu.Unlock()

	return &Liquidity{
		Requested:     qty,
		Available:     filled,
		EstimatedCost: cost,
		Sufficient:    filled.Equal(qty),
	}, nil
}
