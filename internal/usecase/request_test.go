package usecase

import (
	"testing"

	"github.com/shopspring/decimal"

	domainErrors "github.com/polkiloo/payouts/internal/domain/errors"
	"github.com/polkiloo/payouts/internal/domain/model"
)

func TestNormalizeDefaults(t *testing.T) {
	req, err := Normalize(9, model.RawRequest{
		Plugin: " Ripple ",
		Amount: "25.5",
		Fields: model.RawFields{Address: " rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh ", Tag: "42"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.UserID != 9 || req.Rail != model.RailRipple || req.Network != model.NetworkRipple || req.Currency != "XRP" {
		t.Fatalf("unexpected request %+v", req)
	}
	if !req.Amount.Equal(decimal.RequireFromString("25.5")) {
		t.Fatalf("unexpected amount %s", req.Amount)
	}
	if req.BalanceType != model.BalanceCrypto || req.TransactionType != model.TxWithdrawal {
		t.Fatalf("unexpected balance selection %+v", req)
	}
	if req.Address != "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh" || req.Tag == nil || *req.Tag != 42 {
		t.Fatalf("unexpected fields %+v", req)
	}
}

func TestNormalizeExplicitNetwork(t *testing.T) {
	req, err := Normalize(1, model.RawRequest{Plugin: "ethereum", Amount: "1", Network: "bsc"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Network != model.Network("BSC") {
		t.Fatalf("expected upper-cased network, got %s", req.Network)
	}
}

func TestNormalizeErrors(t *testing.T) {
	cases := []struct {
		name string
		raw  model.RawRequest
		code domainErrors.Code
	}{
		{"missing amount", model.RawRequest{Plugin: "bitcoin"}, domainErrors.CodeInvalidRequest},
		{"bad network", model.RawRequest{Plugin: "bitcoin", Amount: "1", Network: "b-t-c"}, domainErrors.CodeInvalidRequest},
		{"bad 2fa", model.RawRequest{Plugin: "bitcoin", Amount: "1", Fields: model.RawFields{TwoFactorCode: "12ab56"}}, domainErrors.CodeInvalidRequest},
		{"unknown plugin", model.RawRequest{Plugin: "paypal", Amount: "1"}, domainErrors.CodeUnknownPlugin},
		{"not a number", model.RawRequest{Plugin: "bitcoin", Amount: "ten"}, domainErrors.CodeInvalidAmount},
		{"zero", model.RawRequest{Plugin: "bitcoin", Amount: "0"}, domainErrors.CodeInvalidAmount},
		{"tag overflow", model.RawRequest{Plugin: "ripple", Amount: "1", Fields: model.RawFields{Tag: "4294967296"}}, domainErrors.CodeInvalidTag},
		{"negative tag", model.RawRequest{Plugin: "ripple", Amount: "1", Fields: model.RawFields{Tag: "-1"}}, domainErrors.CodeInvalidTag},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Normalize(1, tc.raw)
			v, ok := domainErrors.AsValidation(err)
			if !ok || v.Code != tc.code {
				t.Fatalf("expected %s, got %v", tc.code, err)
			}
		})
	}
}
