// Package validation содержит функции валидации входных данных.
package validation

import (
	"fmt"
	"strings"
	"unicode"
)

const (
	// TicketNumberPrefix начинает номер каждого билета.
	TicketNumberPrefix = "TKT-"

	// MinTicketQuantity и MaxTicketQuantity ограничивают количество билетов в одной покупке.
	MinTicketQuantity = 1
	MaxTicketQuantity = 10

	serialDigits = 10
)

// TicketNumber строит номер билета из порядкового номера: префикс, десять цифр серийного
// номера и контрольная цифра по алгоритму Луна.
func TicketNumber(serial int64) string {
	digits := fmt.Sprintf("%0*d", serialDigits, serial)
	return TicketNumberPrefix + digits + string(rune('0'+luhnCheckDigit(digits)))
}

// IsValidTicketNumber проверяет формат номера билета и его контрольную цифру.
func IsValidTicketNumber(number string) bool {
	digits, ok := strings.CutPrefix(number, TicketNumberPrefix)
	if !ok || len(digits) < serialDigits+1 {
		return false
	}
	return isLuhnValid(digits)
}

// IsValidQuantity проверяет количество билетов в покупке.
func IsValidQuantity(q int) bool {
	return q >= MinTicketQuantity && q <= MaxTicketQuantity
}

func isLuhnValid(number string) bool {
	if number == "" {
		return false
	}

	sum := 0
	double := false

	for i := len(number) - 1; i >= 0; i-- {
		ch := rune(number[i])
		if !unicode.IsDigit(ch) {
			return false
		}
		digit := int(ch - '0')
		if double {
			digit *= 2
			if digit > 9 {
				digit -= 9
			}
		}
		sum += digit
		double = !double
	}

	return sum%10 == 0
}

func luhnCheckDigit(digits string) int {
	sum := 0
	// контрольная цифра будет добавлена справа, поэтому удваивается последняя цифра payload
	double := true

	for i := len(digits) - 1; i >= 0; i-- {
		digit := int(digits[i] - '0')
		if double {
			digit *= 2
			if digit > 9 {
				digit -= 9
			}
		}
		sum += digit
		double = !double
	}

	return (10 - sum%10) % 10
}
