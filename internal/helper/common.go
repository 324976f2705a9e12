package helper

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/JhonesBR/go-fxmatch/internal/domain"
)

const UserHeader = "X-User-ID"

type Pagination[T any] struct {
	Page  int  `json:"page"`
	Size  int  `json:"size"`
	Total *int `json:"total"`
	Items []T  `json:"items"`
}

func GetPagination[T any](c fiber.Ctx) Pagination[T] {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	if page < 1 {
		page = 1
	}

	size, _ := strconv.Atoi(c.Query("size", "50"))
	if size < 1 {
		size = 1
	} else if size > 100 {
		size = 100
	}

	return Pagination[T]{
		Page:  page,
		Size:  size,
		Total: nil,
		Items: []T{},
	}
}

// Fill sets the page items out of everything up to the current page.
func (p *Pagination[T]) Fill(all []T) {
	total := len(all)
	p.Total = &total
	start := (p.Page - 1) * p.Size
	if start >= total {
		p.Items = []T{}
		return
	}
	end := start + p.Size
	if end > total {
		end = total
	}
	p.Items = all[start:end]
}

var validate = validator.New()

func ValidateInput(input interface{}) error {
	return validate.Struct(input)
}

// DecimalField accepts a JSON string or number and keeps its text, so a
// malformed value is reported against its field instead of failing the bind.
type DecimalField string

func (f *DecimalField) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = DecimalField(s)
		return nil
	}
	*f = DecimalField(b)
	return nil
}

// Parse returns the value or a ValidationError naming field.
func (f DecimalField) Parse(field string) (decimal.Decimal, error) {
	v, err := decimal.NewFromString(strings.TrimSpace(string(f)))
	if err != nil {
		return decimal.Zero, &domain.ValidationError{Field: field, Reason: "must be a number"}
	}
	return v, nil
}

// UserID reads the authenticated user from the session header.
func UserID(c fiber.Ctx) (uuid.UUID, error) {
	raw := c.Get(UserHeader)
	if raw == "" {
		return uuid.Nil, fiber.ErrUnauthorized
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fiber.ErrUnauthorized
	}
	return id, nil
}

// ParamID parses the :id route parameter.
func ParamID(c fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, fiber.ErrBadRequest
	}
	return id, nil
}

// ErrorResponse writes err with the status its kind maps to. Anything
// unclassified is logged and reported without detail.
func ErrorResponse(c fiber.Ctx, logger *zap.Logger, err error) error {
	var (
		validationErr   *domain.ValidationError
		insufficientErr *domain.InsufficientBalanceError
		fiberErr        *fiber.Error
	)

	switch {
	case errors.As(err, &fiberErr):
		return c.Status(fiberErr.Code).JSON(fiber.Map{
			"error": fiberErr.Message,
		})
	case errors.As(err, &validationErr):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": validationErr.Error(),
			"field": validationErr.Field,
		})
	case errors.As(err, &insufficientErr):
		return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{
			"error":     "Insufficient funds",
			"currency":  insufficientErr.Currency,
			"required":  insufficientErr.Required,
			"available": insufficientErr.Available,
		})
	case errors.Is(err, domain.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Not found",
		})
	case errors.Is(err, domain.ErrAlreadyFilled), errors.Is(err, domain.ErrAlreadyCancelled):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": err.Error(),
		})
	case errors.Is(err, domain.ErrNoLiquidity), errors.Is(err, domain.ErrSlippageExceeded):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	logger.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "Internal error",
	})
}
