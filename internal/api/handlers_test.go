package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"go.uber.org/zap/zaptest"

	"github.com/JhonesBR/go-fxmatch/internal/engine"
	"github.com/JhonesBR/go-fxmatch/internal/ledger"
	"github.com/JhonesBR/go-fxmatch/internal/store"
)

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	currencies := []string{"USD", "NGN"}
	logger := zaptest.NewLogger(t)
	st := store.NewMemoryStore()

	app := fiber.New()
	InitializeRoutes(app, Dependencies{
		Engine: engine.New(st, engine.Options{Currencies: currencies, FeeAccount: uuid.New(), Logger: logger}),
		Ledger: ledger.NewService(st, currencies, logger),
		Logger: logger,
	})
	return app
}

func call(t *testing.T, app *fiber.App, method, path string, user uuid.UUID, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if user != uuid.Nil {
		req.Header.Set("X-User-ID", user.String())
	}

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	out := map[string]any{}
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 && raw[0] == '{' {
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("decode %s: %v", raw, err)
		}
	}
	return resp.StatusCode, out
}

func TestOrderLifecycleOverHTTP(t *testing.T) {
	app := newTestApp(t)
	seller, buyer := uuid.New(), uuid.New()

	if status, _ := call(t, app, http.MethodPost, "/v1/accounts/"+seller.String()+"/charge", seller,
		map[string]any{"amount": "100", "currency": "USD"}); status != http.StatusOK {
		t.Fatalf("charge seller: %d", status)
	}
	if status, _ := call(t, app, http.MethodPost, "/v1/accounts/"+buyer.String()+"/charge", buyer,
		map[string]any{"amount": "100000", "currency": "NGN"}); status != http.StatusOK {
		t.Fatalf("charge buyer: %d", status)
	}

	status, placed := call(t, app, http.MethodPost, "/v1/order_book", seller, map[string]any{
		"type": "limit", "side": "sell", "base_currency": "USD", "quote_currency": "NGN",
		"quantity": "100", "price": "650",
	})
	if status != http.StatusCreated {
		t.Fatalf("place sell: %d %v", status, placed)
	}
	sellId := placed["order_id"].(string)

	status, bought := call(t, app, http.MethodPost, "/v1/order_book", buyer, map[string]any{
		"type": "market", "side": "buy", "base_currency": "USD", "quote_currency": "NGN", "quantity": "40",
	})
	if status != http.StatusCreated {
		t.Fatalf("market buy: %d %v", status, bought)
	}
	if bought["status"] != "filled" {
		t.Errorf("expected market buy filled, got %v", bought["status"])
	}
	summary := bought["match_summary"].(map[string]any)
	if trades := summary["trades"].([]any); len(trades) != 1 {
		t.Errorf("expected one trade, got %d", len(trades))
	}

	status, shown := call(t, app, http.MethodGet, "/v1/order_book/"+sellId, seller, nil)
	if status != http.StatusOK {
		t.Fatalf("get order: %d", status)
	}
	order := shown["order"].(map[string]any)
	if order["status"] != "partially_filled" || order["remaining_quantity"] != "60" {
		t.Errorf("unexpected order state %v / %v", order["status"], order["remaining_quantity"])
	}

	if status, _ := call(t, app, http.MethodGet, "/v1/order_book/"+sellId, buyer, nil); status != http.StatusNotFound {
		t.Errorf("expected another user's order to be hidden, got %d", status)
	}

	status, depth := call(t, app, http.MethodGet, "/v1/markets/usd/ngn/depth?limit=5", uuid.Nil, nil)
	if status != http.StatusOK {
		t.Fatalf("depth: %d", status)
	}
	asks := depth["asks"].([]any)
	if len(asks) != 1 || asks[0].(map[string]any)["quantity"] != "60" {
		t.Errorf("unexpected asks %v", asks)
	}

	status, cancelled := call(t, app, http.MethodPost, "/v1/order_book/"+sellId+"/cancel", seller, nil)
	if status != http.StatusOK || cancelled["released_amount"] != "60" {
		t.Fatalf("cancel: %d %v", status, cancelled)
	}
	if status, _ := call(t, app, http.MethodPost, "/v1/order_book/"+sellId+"/cancel", seller, nil); status != http.StatusConflict {
		t.Errorf("expected a second cancel to conflict, got %d", status)
	}

	status, account := call(t, app, http.MethodGet, "/v1/accounts/"+seller.String(), seller, nil)
	if status != http.StatusOK {
		t.Fatalf("get account: %d", status)
	}
	balances := account["balances"].([]any)
	if len(balances) != 2 {
		t.Errorf("expected NGN and USD balances, got %v", balances)
	}
}

func TestPlaceOrderErrors(t *testing.T) {
	app := newTestApp(t)
	user := uuid.New()
	call(t, app, http.MethodPost, "/v1/accounts/"+user.String()+"/charge", user,
		map[string]any{"amount": "50", "currency": "NGN"})

	tests := []struct {
		name   string
		user   uuid.UUID
		body   map[string]any
		status int
	}{
		{
			name:   "insufficient balance",
			user:   user,
			body:   map[string]any{"type": "limit", "side": "buy", "base_currency": "USD", "quote_currency": "NGN", "quantity": "1", "price": "60"},
			status: http.StatusPaymentRequired,
		},
		{
			name:   "limit without price",
			user:   user,
			body:   map[string]any{"type": "limit", "side": "buy", "base_currency": "USD", "quote_currency": "NGN", "quantity": "1"},
			status: http.StatusUnprocessableEntity,
		},
		{
			name:   "unknown type",
			user:   user,
			body:   map[string]any{"type": "stop", "side": "buy", "base_currency": "USD", "quote_currency": "NGN", "quantity": "1"},
			status: http.StatusUnprocessableEntity,
		},
		{
			name:   "market without liquidity",
			user:   user,
			body:   map[string]any{"type": "market", "side": "buy", "base_currency": "USD", "quote_currency": "NGN", "quantity": "1"},
			status: http.StatusUnprocessableEntity,
		},
		{
			name:   "malformed quantity",
			user:   user,
			body:   map[string]any{"type": "limit", "side": "buy", "base_currency": "USD", "quote_currency": "NGN", "quantity": "lots", "price": "60"},
			status: http.StatusUnprocessableEntity,
		},
		{
			name:   "numeric quantity",
			user:   user,
			body:   map[string]any{"type": "limit", "side": "buy", "base_currency": "USD", "quote_currency": "NGN", "quantity": 1, "price": 60},
			status: http.StatusPaymentRequired,
		},
		{
			name:   "missing session",
			user:   uuid.Nil,
			body:   map[string]any{"type": "limit", "side": "buy", "base_currency": "USD", "quote_currency": "NGN", "quantity": "1", "price": "1"},
			status: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := call(t, app, http.MethodPost, "/v1/order_book", tt.user, tt.body)
			if status != tt.status {
				t.Errorf("expected %d, got %d (%v)", tt.status, status, body)
			}
		})
	}

	_, body := call(t, app, http.MethodPost, "/v1/order_book", user, tests[4].body)
	if body["field"] != "quantity" {
		t.Errorf("expected the malformed quantity to be named, got %v", body)
	}

	status, body := call(t, app, http.MethodPost, "/v1/order_book", user, tests[0].body)
	if status != http.StatusPaymentRequired || body["required"] != "60" || body["available"] != "50" {
		t.Errorf("expected required/available in the body, got %v", body)
	}
}

func TestListOrdersAndRemoveFunds(t *testing.T) {
	app := newTestApp(t)
	user := uuid.New()
	call(t, app, http.MethodPost, "/v1/accounts/"+user.String()+"/charge", user,
		map[string]any{"amount": "1000", "currency": "NGN"})

	for _, price := range []string{"10", "11", "12"} {
		status, _ := call(t, app, http.MethodPost, "/v1/order_book", user, map[string]any{
			"type": "limit", "side": "buy", "base_currency": "USD", "quote_currency": "NGN", "quantity": "1", "price": price,
		})
		if status != http.StatusCreated {
			t.Fatalf("place: %d", status)
		}
	}

	status, page := call(t, app, http.MethodGet, "/v1/order_book?status=pending&size=2", user, nil)
	if status != http.StatusOK {
		t.Fatalf("list: %d", status)
	}
	if items := page["items"].([]any); len(items) != 2 || page["total"].(float64) != 3 {
		t.Errorf("expected a page of 2 out of 3, got %d of %v", len(items), page["total"])
	}

	if status, _ := call(t, app, http.MethodGet, "/v1/order_book?status=bogus", user, nil); status != http.StatusUnprocessableEntity {
		t.Errorf("expected unknown status to be rejected, got %d", status)
	}

	status, body := call(t, app, http.MethodPost, "/v1/accounts/"+user.String()+"/remove", user,
		map[string]any{"amount": "1000", "currency": "NGN"})
	if status != http.StatusPaymentRequired {
		t.Errorf("expected reserved funds to stay put, got %d %v", status, body)
	}
	status, body = call(t, app, http.MethodPost, "/v1/accounts/"+user.String()+"/remove", user,
		map[string]any{"amount": "967", "currency": "NGN"})
	if status != http.StatusOK || body["available_balance"] != "0" {
		t.Errorf("expected available to drop to 0, got %d %v", status, body)
	}

	status, body = call(t, app, http.MethodGet, "/v1/accounts/"+user.String()+"/balances/ngn", user, nil)
	if status != http.StatusOK || body["reserved_balance"] != "33" {
		t.Errorf("expected 33 NGN reserved, got %d %v", status, body)
	}
	if status, _ := call(t, app, http.MethodGet, "/v1/accounts/"+user.String()+"/balances/XYZ", user, nil); status != http.StatusUnprocessableEntity {
		t.Errorf("expected unsupported currency to be rejected, got %d", status)
	}
}

func TestMarketEndpoints(t *testing.T) {
	app := newTestApp(t)
	seller := uuid.New()
	call(t, app, http.MethodPost, "/v1/accounts/"+seller.String()+"/charge", seller,
		map[string]any{"amount": "10", "currency": "USD"})
	call(t, app, http.MethodPost, "/v1/order_book", seller, map[string]any{
		"type": "limit", "side": "sell", "base_currency": "USD", "quote_currency": "NGN", "quantity": "5", "price": "650",
	})

	status, best := call(t, app, http.MethodGet, "/v1/markets/USD/NGN/best", uuid.Nil, nil)
	if status != http.StatusOK || best["best_ask"] != "650" || best["best_bid"] != nil {
		t.Errorf("unexpected best prices %d %v", status, best)
	}

	status, liq := call(t, app, http.MethodGet, "/v1/markets/USD/NGN/liquidity?side=buy&quantity=3", uuid.New(), nil)
	if status != http.StatusOK || liq["sufficient"] != true {
		t.Errorf("unexpected liquidity %d %v", status, liq)
	}

	if status, _ := call(t, app, http.MethodGet, "/v1/markets/USD/NGN/stats?window=1h", uuid.Nil, nil); status != http.StatusOK {
		t.Errorf("stats: %d", status)
	}
	if status, _ := call(t, app, http.MethodGet, "/v1/markets/USD/NGN/stats?window=soon", uuid.Nil, nil); status != http.StatusUnprocessableEntity {
		t.Errorf("expected bad window to be rejected, got %d", status)
	}
	if status, _ := call(t, app, http.MethodGet, "/v1/markets/USD/XYZ/depth", uuid.Nil, nil); status != http.StatusUnprocessableEntity {
		t.Errorf("expected unsupported pair to be rejected, got %d", status)
	}
}

func TestAccountsAreScopedToTheSession(t *testing.T) {
	app := newTestApp(t)
	owner, other := uuid.New(), uuid.New()
	if status, _ := call(t, app, http.MethodPost, "/v1/accounts/"+owner.String()+"/charge", owner,
		map[string]any{"amount": "100", "currency": "USD"}); status != http.StatusOK {
		t.Fatalf("charge: %d", status)
	}

	tests := []struct {
		name   string
		method string
		path   string
		user   uuid.UUID
		body   any
		status int
	}{
		{"withdraw from another account", http.MethodPost, "/remove", other, map[string]any{"amount": "100", "currency": "USD"}, http.StatusNotFound},
		{"deposit into another account", http.MethodPost, "/charge", other, map[string]any{"amount": "1", "currency": "USD"}, http.StatusNotFound},
		{"read another account", http.MethodGet, "", other, nil, http.StatusNotFound},
		{"read another balance", http.MethodGet, "/balances/USD", other, nil, http.StatusNotFound},
		{"withdraw without a session", http.MethodPost, "/remove", uuid.Nil, map[string]any{"amount": "100", "currency": "USD"}, http.StatusUnauthorized},
		{"malformed amount", http.MethodPost, "/charge", owner, map[string]any{"amount": "much", "currency": "USD"}, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := call(t, app, tt.method, "/v1/accounts/"+owner.String()+tt.path, tt.user, tt.body)
			if status != tt.status {
				t.Errorf("expected %d, got %d (%v)", tt.status, status, body)
			}
		})
	}

	status, body := call(t, app, http.MethodGet, "/v1/accounts/"+owner.String()+"/balances/USD", owner, nil)
	if status != http.StatusOK || body["available_balance"] != "100" {
		t.Errorf("expected the balance untouched, got %d %v", status, body)
	}
}
