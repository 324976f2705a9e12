package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JhonesBR/go-fxmatch/internal/domain"
	"github.com/JhonesBR/go-fxmatch/internal/events"
	"github.com/JhonesBR/go-fxmatch/internal/fee"
	"github.com/JhonesBR/go-fxmatch/internal/store"
)

type Options struct {
	Currencies []string
	// FeeAccount receives buyer and seller fees in the quote currency.
	FeeAccount    uuid.UUID
	Fees          fee.Schedule
	ReserveBuffer decimal.Decimal
	// MaxSlippage is the largest accepted deviation of a market order's
	// estimated average price from the best price. Zero disables the check.
	MaxSlippage decimal.Decimal
	Publisher   events.Publisher
	Logger      *zap.Logger
	Clock       func() time.Time
}

// pairBook is the single mutation gate of one currency pair.
type pairBook struct {
	mu        sync.Mutex
	book      *Book
	lastPrice *decimal.Decimal
	snapshot  atomic.Pointer[Snapshot]
}

func (pb *pairBook) publishSnapshot(at time.Time) {
	pb.snapshot.Store(pb.book.Snapshot(pb.lastPrice, at))
}

// Engine admits, matches, settles and cancels orders. Mutations of one pair
// are serialized; different pairs run in parallel.
type Engine struct {
	store         store.Store
	validator     *Validator
	fees          fee.Schedule
	feeAccount    uuid.UUID
	reserveBuffer decimal.Decimal
	maxSlippage   decimal.Decimal
	publisher     events.Publisher
	logger        *zap.Logger
	clock         func() time.Time

	seq atomic.Uint64

	mu    sync.RWMutex
	books map[domain.Pair]*pairBook
}

func New(s store.Store, opts Options) *Engine {
	e := &Engine{
		store:         s,
		validator:     NewValidator(opts.Currencies),
		fees:          opts.Fees,
		feeAccount:    opts.FeeAccount,
		reserveBuffer: opts.ReserveBuffer,
		maxSlippage:   opts.MaxSlippage,
		publisher:     opts.Publisher,
		logger:        opts.Logger,
		clock:         opts.Clock,
		books:         make(map[domain.Pair]*pairBook),
	}
	if e.fees == nil {
		e.fees = fee.Free{}
	}
	if e.publisher == nil {
		e.publisher = events.Nop{}
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	e.logger = e.logger.Named("engine")
	if e.clock == nil {
		e.clock = time.Now
	}
	return e
}

func (e *Engine) Validator() *Validator { return e.validator }

func (e *Engine) now() time.Time { return e.clock().UTC() }

func (e *Engine) pairBook(pair domain.Pair) *pairBook {
	e.mu.RLock()
	pb, ok := e.books[pair]
	e.mu.RUnlock()
	if ok {
		return pb
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if pb, ok := e.books[pair]; ok {
		return pb
	}
	pb = &pairBook{book: NewBook(pair)}
	pb.publishSnapshot(e.now())
	e.books[pair] = pb
	return pb
}

func (e *Engine) publish(ctx context.Context, evs ...events.Event) {
	if len(evs) == 0 {
		return
	}
	if err := e.publisher.Publish(ctx, evs...); err != nil {
		e.logger.Warn("failed to publish events", zap.Int("count", len(evs)), zap.Error(err))
	}
}

type MatchSummary struct {
	Trades           []domain.Trade  `json:"trades"`
	FilledQuantity   decimal.Decimal `json:"filled_quantity"`
	AverageFillPrice decimal.Decimal `json:"average_fill_price"`
}

type PlaceResult struct {
	OrderId uuid.UUID          `json:"order_id"`
	Status  domain.OrderStatus `json:"status"`
	Summary MatchSummary       `json:"match_summary"`
	Order   domain.Order       `json:"order"`
}

// PlaceOrder validates, reserves, admits and matches an order. A rejected
// order leaves no trace and returns a nil result. When a fill fails after
// admission the order keeps the fills already committed, its remainder is
// cancelled, and both the result and an ExecutionError are returned.
func (e *Engine) PlaceOrder(ctx context.Context, req OrderRequest) (*PlaceResult, error) {
	if err := e.validator.Validate(req); err != nil {
		return nil, err
	}

	res, evs, err := e.place(ctx, e.pairBook(req.Pair()), req)
	e.publish(ctx, evs...)
	if err != nil && res != nil {
		e.logger.Error("matching stopped",
			zap.String("order_id", res.OrderId.String()),
			zap.String("status", string(res.Status)),
			zap.Error(err),
		)
	}
	return res, err
}

// place does the gated part of PlaceOrder. Events are returned rather than
// published so no publisher I/O happens under the pair gate.
func (e *Engine) place(ctx context.Context, pb *pairBook, req OrderRequest) (*PlaceResult, []events.Event, error) {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	pair := req.Pair()
	now := e.now()
	o := domain.Order{
		Id:                uuid.New(),
		UserId:            req.UserId,
		Type:              req.Type,
		Side:              req.Side,
		BaseCurrency:      pair.Base,
		QuoteCurrency:     pair.Quote,
		Quantity:          req.Quantity,
		RemainingQuantity: req.Quantity,
		FilledQuantity:    decimal.Zero,
		FilledValue:       decimal.Zero,
		Price:             req.Price,
		AverageFillPrice:  decimal.Zero,
		Status:            domain.Pending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	currency, amount, err := e.reservationAmount(ctx, pb.book, o)
	if err != nil {
		return nil, nil, err
	}
	o.ReservedAmount = amount
	o.Seq = e.seq.Add(1)

	if err := e.admit(ctx, o, currency, amount); err != nil {
		return nil, nil, err
	}
	e.logger.Debug("order admitted",
		zap.String("order_id", o.Id.String()),
		zap.String("pair", pair.String()),
		zap.String("side", string(o.Side)),
		zap.String("type", string(o.Type)),
		zap.Uint64("seq", o.Seq),
	)
	evs := []events.Event{events.ForOrder(events.OrderPlaced, o, now)}

	trades, matchEvs, matchErr := e.match(ctx, pb, &o)
	evs = append(evs, matchEvs...)

	// A limit order whose scan failed does not rest: the maker that failed
	// may still cross it.
	if o.Type == domain.Market || matchErr != nil {
		retired, err := e.retire(ctx, &o)
		if err != nil && matchErr == nil {
			matchErr = err
		}
		evs = append(evs, retired...)
	} else if !o.Status.Terminal() {
		pb.book.Add(o)
	}
	pb.publishSnapshot(e.now())

	return &PlaceResult{
		OrderId: o.Id,
		Status:  o.Status,
		Summary: MatchSummary{
			Trades:           trades,
			FilledQuantity:   o.FilledQuantity,
			AverageFillPrice: o.AverageFillPrice,
		},
		Order: o,
	}, evs, matchErr
}

// retire ends an order that will not rest: what executed stays, the rest
// of its reservation is released.
func (e *Engine) retire(ctx context.Context, o *domain.Order) ([]events.Event, error) {
	if o.Status.Terminal() {
		return nil, nil
	}
	now := e.now()
	var final domain.Order
	err := e.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		final, _, err = terminate(ctx, tx, o.Id, now)
		return err
	})
	if err != nil {
		return nil, &domain.ExecutionError{Op: "retire order", Err: err}
	}
	*o = final

	kind := events.OrderUpdated
	if final.Status == domain.Cancelled {
		kind = events.OrderCancelled
	}
	return []events.Event{events.ForOrder(kind, final, now)}, nil
}

type CancelResult struct {
	OrderId        uuid.UUID       `json:"order_id"`
	Currency       string          `json:"currency"`
	ReleasedAmount decimal.Decimal `json:"released_amount"`
}

// CancelOrder takes an active order off its book and releases the rest of
// its reservation. It runs under the pair gate, so a fill that committed
// first wins.
func (e *Engine) CancelOrder(ctx context.Context, orderId uuid.UUID) (*CancelResult, error) {
	o, err := e.store.Order(ctx, orderId)
	if err != nil {
		return nil, err
	}

	now := e.now()
	pb := e.pairBook(o.Pair())
	pb.mu.Lock()
	var (
		cancelled domain.Order
		released  decimal.Decimal
	)
	err = e.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		cancelled, released, err = terminate(ctx, tx, orderId, now)
		return err
	})
	if err == nil {
		pb.book.Remove(orderId)
		pb.publishSnapshot(now)
	}
	pb.mu.Unlock()
	if err != nil {
		return nil, err
	}

	e.logger.Debug("order cancelled",
		zap.String("order_id", orderId.String()),
		zap.String("released", released.String()),
	)
	e.publish(ctx, events.ForOrder(events.OrderCancelled, cancelled, now))
	return &CancelResult{
		OrderId:        cancelled.Id,
		Currency:       cancelled.ReservationCurrency(),
		ReleasedAmount: released,
	}, nil
}

type OrderDetails struct {
	Order       domain.Order           `json:"order"`
	Reservation domain.FundReservation `json:"reservation"`
	Trades      []domain.Trade         `json:"trades"`
}

func (e *Engine) GetOrder(ctx context.Context, orderId uuid.UUID) (*OrderDetails, error) {
	o, err := e.store.Order(ctx, orderId)
	if err != nil {
		return nil, err
	}
	res, err := e.store.Reservation(ctx, orderId)
	if err != nil {
		return nil, err
	}
	trades, err := e.store.TradesByOrder(ctx, orderId)
	if err != nil {
		return nil, err
	}
	return &OrderDetails{Order: o, Reservation: res, Trades: trades}, nil
}

// ListOrders returns a user's orders, newest first.
func (e *Engine) ListOrders(ctx context.Context, userId uuid.UUID, status *domain.OrderStatus, limit int) ([]domain.Order, error) {
	return e.store.Orders(ctx, store.OrderFilter{UserId: userId, Status: status, Limit: limit})
}

// Restore rebuilds the books from the active orders in the store and
// resumes the admission sequence. Market orders left active by a crash are
// finalized since they never rest.
func (e *Engine) Restore(ctx context.Context) error {
	active, err := e.store.ActiveOrders(ctx)
	if err != nil {
		return errors.Wrap(err, "load active orders")
	}

	byPair := make(map[domain.Pair][]domain.Order)
	var maxSeq uint64
	for _, o := range active {
		if o.Seq > maxSeq {
			maxSeq = o.Seq
		}
		if o.Type == domain.Market {
			retired, err := e.retire(ctx, &o)
			if err != nil {
				return err
			}
			e.publish(ctx, retired...)
			continue
		}
		byPair[o.Pair()] = append(byPair[o.Pair()], o)
	}

	g, gctx := errgroup.WithContext(ctx)
	for pair, orders := range byPair {
		g.Go(func() error {
			last, err := e.store.RecentTrades(gctx, pair, 1)
			if err != nil {
				return errors.Wrapf(err, "last trade of %s", pair)
			}

			pb := e.pairBook(pair)
			pb.mu.Lock()
			defer pb.mu.Unlock()
			for _, o := range orders {
				if !pb.book.Contains(o.Id) {
					pb.book.Add(o)
				}
			}
			if len(last) > 0 {
				price := last[0].Price
				pb.lastPrice = &price
			}
			pb.publishSnapshot(e.now())
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for {
		cur := e.seq.Load()
		if cur >= maxSeq || e.seq.CompareAndSwap(cur, maxSeq) {
			break
		}
	}
	e.logger.Info("books restored", zap.Int("orders", len(active)), zap.Int("pairs", len(byPair)), zap.Uint64("seq", maxSeq))
	return nil
}
