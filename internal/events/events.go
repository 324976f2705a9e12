package events

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/multierr"

	"github.com/JhonesBR/go-fxmatch/internal/domain"
)

type Kind string

const (
	OrderPlaced    Kind = "order.placed"
	OrderUpdated   Kind = "order.updated"
	OrderCancelled Kind = "order.cancelled"
	TradeExecuted  Kind = "trade.executed"
)

// Event describes a committed change. Exactly one of Order and Trade is set.
type Event struct {
	Kind  Kind          `json:"kind"`
	Pair  domain.Pair   `json:"pair"`
	At    time.Time     `json:"at"`
	Order *domain.Order `json:"order,omitempty"`
	Trade *domain.Trade `json:"trade,omitempty"`
}

func ForOrder(kind Kind, o domain.Order, at time.Time) Event {
	return Event{Kind: kind, Pair: o.Pair(), At: at, Order: &o}
}

func ForTrade(t domain.Trade) Event {
	return Event{Kind: TradeExecuted, Pair: t.Pair(), At: t.ExecutedAt, Trade: &t}
}

// Key groups events of one pair so that consumers see them in order.
func (e Event) Key() []byte { return []byte(e.Pair.String()) }

func Encode(e Event) ([]byte, error) { return json.Marshal(e) }

func Decode(b []byte) (Event, error) {
	var e Event
	err := json.Unmarshal(b, &e)
	return e, err
}

// Publisher receives events after they are committed. A failed publish
// never undoes the commit.
type Publisher interface {
	Publish(ctx context.Context, events ...Event) error
}

type Nop struct{}

func (Nop) Publish(context.Context, ...Event) error { return nil }

// Multi fans out to every publisher and collects their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, events ...Event) error {
	var err error
	for _, p := range m {
		err = multierr.Append(err, p.Publish(ctx, events...))
	}
	return err
}
