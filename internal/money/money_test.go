package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestMaxWithdrawal(t *testing.T) {
	tests := []struct {
		name      string
		deposited string
		referral  string
		fee       string
		want      string
	}{
		{name: "plain fee", deposited: "100", referral: "0", fee: "10", want: "90"},
		{name: "referral subtracted", deposited: "200", referral: "50", fee: "10", want: "135"},
		{name: "zero fee", deposited: "100", referral: "0", fee: "0", want: "100"},
		{name: "referral above deposits", deposited: "10", referral: "50", fee: "10", want: "0"},
		{name: "fee above hundred", deposited: "100", referral: "0", fee: "150", want: "0"},
		{name: "fractional", deposited: "33.33", referral: "0", fee: "10", want: "29.99"},
		{name: "fee leaves sub-cent", deposited: "0.05", referral: "0", fee: "10", want: "0.04"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MaxWithdrawal(d(tt.deposited), d(tt.referral), d(tt.fee))
			assert.True(t, got.Equal(d(tt.want)), "got %s, want %s", got, tt.want)
		})
	}
}

func TestReferralEarning(t *testing.T) {
	got := ReferralEarning(d("100"), d("10"))
	assert.True(t, got.Equal(d("10")), "got %s", got)

	got = ReferralEarning(d("55.50"), d("5"))
	assert.True(t, got.Equal(d("2.77")), "got %s", got)

	got = ReferralEarning(d("0.05"), d("10"))
	assert.True(t, got.IsZero(), "got %s", got)

	got = ReferralEarning(d("100"), decimal.Zero)
	assert.True(t, got.IsZero())
}

func TestIsCents(t *testing.T) {
	tests := []struct {
		amount string
		want   bool
	}{
		{"100", true},
		{"0.01", true},
		{"12.50", true},
		{"12.500", true},
		{"0.005", false},
		{"0.001", false},
		{"1.999", false},
	}

	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			assert.Equal(t, tt.want, IsCents(d(tt.amount)))
		})
	}
}
