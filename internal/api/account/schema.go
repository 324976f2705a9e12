package account

import (
	"github.com/JhonesBR/go-fxmatch/internal/helper"
)

type UpdateBalanceSchema struct {
	Amount   helper.DecimalField `json:"amount" validate:"required"`
	Currency *string             `json:"currency" validate:"required,len=3"`
}
