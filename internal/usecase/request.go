package usecase

import (
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	domainErrors "github.com/polkiloo/payouts/internal/domain/errors"
	"github.com/polkiloo/payouts/internal/domain/model"
)

var requestValidator = validator.New()

// Normalize turns a raw submission into the canonical request.
func Normalize(userID int64, raw model.RawRequest) (model.WithdrawalRequest, error) {
	raw.Plugin = strings.ToLower(strings.TrimSpace(raw.Plugin))
	raw.Amount = strings.TrimSpace(raw.Amount)
	raw.Fields.Address = strings.TrimSpace(raw.Fields.Address)
	raw.Fields.Tag = strings.TrimSpace(raw.Fields.Tag)

	if err := requestValidator.Struct(raw); err != nil {
		return model.WithdrawalRequest{}, domainErrors.NewValidationError(domainErrors.CodeInvalidRequest, "details", err.Error())
	}

	rail, ok := model.ParseRail(raw.Plugin)
	if !ok {
		return model.WithdrawalRequest{}, domainErrors.NewValidationError(domainErrors.CodeUnknownPlugin, "plugin", raw.Plugin)
	}

	amount, err := decimal.NewFromString(raw.Amount)
	if err != nil || !amount.IsPositive() {
		return model.WithdrawalRequest{}, domainErrors.NewValidationError(domainErrors.CodeInvalidAmount)
	}

	network := rail.Network()
	if raw.Network != "" {
		network = model.Network(strings.ToUpper(raw.Network))
	}

	req := model.WithdrawalRequest{
		UserID:          userID,
		Rail:            rail,
		Network:         network,
		Currency:        rail.Currency(),
		Amount:          amount,
		BalanceType:     rail.BalanceType(),
		TransactionType: model.TxWithdrawal,
		Address:         raw.Fields.Address,
		AccountID:       raw.Fields.AccountID,
		TwoFactorCode:   raw.Fields.TwoFactorCode,
	}

	if raw.Fields.Tag != "" {
		tag, err := strconv.ParseUint(raw.Fields.Tag, 10, 32)
		if err != nil {
			return model.WithdrawalRequest{}, domainErrors.NewValidationError(domainErrors.CodeInvalidTag)
		}
		t := uint32(tag)
		req.Tag = &t
	}
	return req, nil
}
