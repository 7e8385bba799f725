package bounty

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// AmountScale is the fixed-point precision of all bounty amounts and fees.
const AmountScale = 8

// feeRate is charged twice: once to the funding client on top of the base
// amount, once to the contributor out of the payout.
var feeRate = decimal.RequireFromString("0.025")

// Amount bounds accepted from user input.
var (
	minAmount = decimal.NewFromInt(1)
	maxAmount = decimal.NewFromInt(1_000_000)
)

// ErrInvalidAmount is returned for non-positive base amounts.
var ErrInvalidAmount = errors.New("amount must be positive")

// Breakdown is the fee split derived from a base amount. All fields are
// re-computable from Base alone.
type Breakdown struct {
	Base           decimal.Decimal `json:"base"`
	ClientFee      decimal.Decimal `json:"client_fee"`
	ContributorFee decimal.Decimal `json:"contributor_fee"`
	TotalFee       decimal.Decimal `json:"total_fee"`
	TotalPaid      decimal.Decimal `json:"total_paid"`
	Payout         decimal.Decimal `json:"payout"`
}

// Fees computes the fee breakdown for a base amount. Fees round half to even
// (banker's rounding) at 8 decimal places.
func Fees(base decimal.Decimal) (Breakdown, error) {
	if base.Sign() <= 0 {
		return Breakdown{}, ErrInvalidAmount
	}

	fee := base.Mul(feeRate).RoundBank(AmountScale)

	return Breakdown{
		Base:           base,
		ClientFee:      fee,
		ContributorFee: fee,
		TotalFee:       fee.Add(fee),
		TotalPaid:      base.Add(fee),
		Payout:         base.Sub(fee),
	}, nil
}

// Verify checks that b is internally consistent with its base amount.
// Used to re-validate persisted breakdowns before any payout decision.
func (b Breakdown) Verify() error {
	want, err := Fees(b.Base)
	if err != nil {
		return err
	}
	if !b.ClientFee.Equal(want.ClientFee) ||
		!b.ContributorFee.Equal(want.ContributorFee) ||
		!b.TotalFee.Equal(want.TotalFee) ||
		!b.TotalPaid.Equal(want.TotalPaid) ||
		!b.Payout.Equal(want.Payout) {
		return fmt.Errorf("fee breakdown inconsistent with base %s", b.Base)
	}
	return nil
}
