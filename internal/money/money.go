// Package money содержит чистые функции расчёта денежных лимитов.
package money

import "github.com/shopspring/decimal"

// Places задаёт число знаков после запятой у всех денежных сумм в хранилище.
const Places = 2

var hundred = decimal.NewFromInt(100)

// IsCents сообщает, что сумма не содержит долей меньше одной копейки.
func IsCents(amount decimal.Decimal) bool {
	return amount.Equal(amount.Truncate(Places))
}

// MaxWithdrawal возвращает максимальную сумму вывода: депозиты за вычетом реферальных
// начислений и комиссии, с отбрасыванием долей копейки. Результат никогда не бывает отрицательным.
func MaxWithdrawal(totalDeposited, referralEarnings, feePercent decimal.Decimal) decimal.Decimal {
	available := totalDeposited.Sub(referralEarnings)
	if available.IsNegative() {
		return decimal.Zero
	}
	fee := available.Mul(feePercent).Div(hundred)
	res := available.Sub(fee).Truncate(Places)
	if res.IsNegative() {
		return decimal.Zero
	}
	return res
}

// ReferralEarning возвращает реферальное начисление с суммы пополнения.
// Доли копейки отбрасываются.
func ReferralEarning(depositAmount, referralPercent decimal.Decimal) decimal.Decimal {
	return depositAmount.Mul(referralPercent).Div(hundred).Truncate(Places)
}
