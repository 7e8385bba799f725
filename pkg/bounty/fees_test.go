package bounty

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestFees_StandardAmount(t *testing.T) {
	b, err := Fees(decimal.NewFromInt(100))
	require.NoError(t, err)

	require.True(t, b.ClientFee.Equal(decimal.RequireFromString("2.5")), "client fee: %s", b.ClientFee)
	require.True(t, b.ContributorFee.Equal(decimal.RequireFromString("2.5")), "contributor fee: %s", b.ContributorFee)
	require.True(t, b.TotalFee.Equal(decimal.RequireFromString("5")), "total fee: %s", b.TotalFee)
	require.True(t, b.TotalPaid.Equal(decimal.RequireFromString("102.5")), "total paid: %s", b.TotalPaid)
	require.True(t, b.Payout.Equal(decimal.RequireFromString("97.5")), "payout: %s", b.Payout)
}

func TestFees_Invariants(t *testing.T) {
	cases := []string{"1", "3", "7.77777777", "0.00000001", "42.42", "999999.99999999", "1000000"}

	for _, c := range cases {
		base := decimal.RequireFromString(c)
		b, err := Fees(base)
		require.NoError(t, err, "base %s", c)

		expectedFee := base.Mul(decimal.RequireFromString("0.025")).RoundBank(AmountScale)
		require.True(t, b.ClientFee.Equal(expectedFee), "base %s: client fee %s != %s", c, b.ClientFee, expectedFee)
		require.True(t, b.ClientFee.Equal(b.ContributorFee), "base %s: fees differ", c)
		require.True(t, b.TotalFee.Equal(b.ClientFee.Add(b.ContributorFee)), "base %s: total fee", c)
		require.True(t, b.TotalPaid.Equal(base.Add(b.ClientFee)), "base %s: total paid", c)
		require.True(t, b.Payout.Equal(base.Sub(b.ContributorFee)), "base %s: payout", c)

		// Round trip: stripping both fee legs recovers the base amount.
		require.True(t, b.TotalPaid.Sub(b.TotalFee).Equal(base.Sub(b.ContributorFee)),
			"base %s: round trip", c)
	}
}

func TestFees_BankersRounding(t *testing.T) {
	// Exact half-ties at the 8th decimal place resolve to the even neighbour.
	cases := []struct {
		base string // base * 0.025 is an exact tie
		want string
	}{
		{"0.0000002", "0"},          // fee 0.000000005 -> 0.00000000 (even)
		{"0.0000006", "0.00000002"}, // fee 0.000000015 -> 0.00000002 (even)
	}

	for _, c := range cases {
		b, err := Fees(decimal.RequireFromString(c.base))
		require.NoError(t, err, "base %s", c.base)
		require.True(t, b.ClientFee.Equal(decimal.RequireFromString(c.want)),
			"base %s: got %s want %s", c.base, b.ClientFee, c.want)
	}
}

func TestFees_RejectsNonPositive(t *testing.T) {
	for _, c := range []string{"0", "-1", "-0.00000001"} {
		_, err := Fees(decimal.RequireFromString(c))
		require.ErrorIs(t, err, ErrInvalidAmount, "base %s", c)
	}
}

func TestBreakdown_Verify(t *testing.T) {
	b, err := Fees(decimal.NewFromInt(250))
	require.NoError(t, err)
	require.NoError(t, b.Verify())

	tampered := b
	tampered.Payout = tampered.Payout.Add(decimal.NewFromInt(1))
	require.Error(t, tampered.Verify())
}
