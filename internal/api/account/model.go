package account

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JhonesBR/go-fxmatch/internal/domain"
)

type Account struct {
	Id       uuid.UUID        `json:"id"`
	Balances []AccountBalance `json:"balances"`
}

type AccountBalance struct {
	Currency  string          `json:"currency"`
	Available decimal.Decimal `json:"available_balance"`
	Reserved  decimal.Decimal `json:"reserved_balance"`
	Total     decimal.Decimal `json:"total_balance"`
}

func newAccountBalance(w domain.Wallet) AccountBalance {
	return AccountBalance{
		Currency:  w.Currency,
		Available: w.Available,
		Reserved:  w.Reserved,
		Total:     w.Total(),
	}
}
