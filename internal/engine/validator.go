package engine

import (
	"reflect"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JhonesBR/go-fxmatch/internal/domain"
)

// OrderRequest is an incoming order from an already authenticated user.
type OrderRequest struct {
	UserId        uuid.UUID
	Type          domain.OrderType
	Side          domain.Side
	BaseCurrency  string
	QuoteCurrency string
	Quantity      decimal.Decimal
	Price         *decimal.Decimal
}

func (r OrderRequest) Pair() domain.Pair { return domain.NewPair(r.BaseCurrency, r.QuoteCurrency) }

// Validator checks an order request before admission. It never touches state.
type Validator struct {
	validate   *validator.Validate
	currencies map[string]struct{}
}

func NewValidator(currencies []string) *Validator {
	set := make(map[string]struct{}, len(currencies))
	for _, c := range currencies {
		set[domain.NormalizeCurrency(c)] = struct{}{}
	}

	v := validator.New()
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.String()
		}
		return nil
	}, decimal.Decimal{})
	_ = v.RegisterValidation("dpositive", positiveDecimal)
	_ = v.RegisterValidation("currency", func(fl validator.FieldLevel) bool {
		_, ok := set[domain.NormalizeCurrency(fl.Field().String())]
		return ok
	})

	return &Validator{validate: v, currencies: set}
}

func positiveDecimal(fl validator.FieldLevel) bool {
	switch v := fl.Field().Interface().(type) {
	case decimal.Decimal:
		return v.IsPositive()
	case string:
		d, err := decimal.NewFromString(v)
		return err == nil && d.IsPositive()
	}
	return false
}

// Supported reports whether currency is tradable.
func (v *Validator) Supported(currency string) bool {
	_, ok := v.currencies[domain.NormalizeCurrency(currency)]
	return ok
}

// Validate runs the checks in a fixed order and reports the first failing field.
func (v *Validator) Validate(req OrderRequest) error {
	if req.UserId == uuid.Nil {
		return &domain.ValidationError{Field: "user_id", Reason: "is required"}
	}
	if err := v.validate.Var(req.Quantity, "dpositive"); err != nil {
		return &domain.ValidationError{Field: "quantity", Reason: "must be a positive number"}
	}
	if err := v.validate.Var(string(req.Type), "required,oneof=limit market"); err != nil {
		return &domain.ValidationError{Field: "type", Reason: "must be limit or market"}
	}
	if err := v.validate.Var(string(req.Side), "required,oneof=buy sell"); err != nil {
		return &domain.ValidationError{Field: "side", Reason: "must be buy or sell"}
	}

	switch req.Type {
	case domain.Limit:
		if req.Price == nil {
			return &domain.ValidationError{Field: "price", Reason: "is required for limit orders"}
		}
		if err := v.validate.Var(*req.Price, "dpositive"); err != nil {
			return &domain.ValidationError{Field: "price", Reason: "must be a positive number"}
		}
	case domain.Market:
		if req.Price != nil {
			return &domain.ValidationError{Field: "price", Reason: "must be absent for market orders"}
		}
	}

	if err := v.validate.Var(req.BaseCurrency, "required,currency"); err != nil {
		return &domain.ValidationError{Field: "base_currency", Reason: "unsupported currency"}
	}
	if err := v.validate.Var(req.QuoteCurrency, "required,currency"); err != nil {
		return &domain.ValidationError{Field: "quote_currency", Reason: "unsupported currency"}
	}
	if domain.NormalizeCurrency(req.BaseCurrency) == domain.NormalizeCurrency(req.QuoteCurrency) {
		return &domain.ValidationError{Field: "quote_currency", Reason: "must differ from base currency"}
	}
	return nil
}
